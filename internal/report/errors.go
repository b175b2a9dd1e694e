package report

import "fmt"

// FatalError aborts a pass after a user error with no valid rewrite.
type FatalError struct {
	Diagnostic Diagnostic
}

func (e *FatalError) Error() string {
	return e.Diagnostic.String()
}

// InternalError is an internal compiler error: a broken invariant.
type InternalError struct {
	Pass    string
	Message string
}

func (e *InternalError) Error() string {
	if e.Pass == "" {
		return "internal compiler error: " + e.Message
	}
	return fmt.Sprintf("internal compiler error in %s: %s", e.Pass, e.Message)
}

// Catch recovers the panics raised by Fatal and ICE and stores them in *errp.
// Other panics keep unwinding.
// NB: Catch must be deferred directly.
func Catch(errp *error) {
	x := recover()
	if x == nil {
		return
	}
	switch err := x.(type) {
	case *FatalError:
		*errp = err
	case *InternalError:
		*errp = err
	default:
		panic(x)
	}
}

// IsFatal reports whether err came from Fatal.
func IsFatal(err error) bool {
	_, ok := err.(*FatalError)
	return ok
}

// IsICE reports whether err came from ICE.
func IsICE(err error) bool {
	_, ok := err.(*InternalError)
	return ok
}
