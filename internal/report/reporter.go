package report

import (
	"fmt"
	"io"
	"sync"

	"github.com/robert-at-pretension-io/fsm-lower/internal/ast"
)

// Severity of a diagnostic.
type Severity int

const (
	SeverityWarning Severity = iota
	SeverityError
	SeverityFatal
)

func (s Severity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityFatal:
		return "fatal"
	default:
		return "warning"
	}
}

// Diagnostic is one message produced while lowering.
type Diagnostic struct {
	Severity Severity `json:"severity"`
	Pass     string   `json:"pass,omitempty"`
	Loc      ast.Loc  `json:"loc"`
	Message  string   `json:"message"`
}

func (d Diagnostic) String() string {
	if d.Pass == "" {
		return fmt.Sprintf("%s: %s: %s", d.Loc, d.Severity, d.Message)
	}
	return fmt.Sprintf("%s: %s [%s]: %s", d.Loc, d.Severity, d.Pass, d.Message)
}

// Reporter is the diagnostic sink of one compilation. Errors and warnings are
// accumulated so a pass can keep going and surface several problems; Fatal and
// ICE abort the running pass by panicking with a typed value that Catch
// recovers at the pass boundary. The reporter is safe for concurrent use.
type Reporter struct {
	mu         sync.Mutex
	diags      []Diagnostic
	errorCount int
	pass       string

	// out, when set, receives every diagnostic as it is reported.
	out io.Writer
}

func NewReporter() *Reporter {
	return &Reporter{}
}

// SetOutput makes the reporter display diagnostics on w as they arrive.
func (r *Reporter) SetOutput(w io.Writer) {
	r.mu.Lock()
	r.out = w
	r.mu.Unlock()
}

// SetPass names the pass subsequent diagnostics are attributed to.
func (r *Reporter) SetPass(name string) {
	r.mu.Lock()
	r.pass = name
	r.mu.Unlock()
}

func (r *Reporter) add(sev Severity, loc ast.Loc, msg string) Diagnostic {
	r.mu.Lock()
	defer r.mu.Unlock()
	d := Diagnostic{Severity: sev, Pass: r.pass, Loc: loc, Message: msg}
	r.diags = append(r.diags, d)
	if sev >= SeverityError {
		r.errorCount++
	}
	if r.out != nil {
		Display(r.out, d)
	}
	return d
}

// Error reports a user error and returns; the caller substitutes a sensible
// node and continues.
func (r *Reporter) Error(loc ast.Loc, format string, args ...any) {
	r.add(SeverityError, loc, fmt.Sprintf(format, args...))
}

func (r *Reporter) Warning(loc ast.Loc, format string, args ...any) {
	r.add(SeverityWarning, loc, fmt.Sprintf(format, args...))
}

// Fatal reports a user error for which no valid rewrite exists and aborts the
// running pass.
func (r *Reporter) Fatal(loc ast.Loc, format string, args ...any) {
	d := r.add(SeverityFatal, loc, fmt.Sprintf(format, args...))
	panic(&FatalError{Diagnostic: d})
}

// ICE aborts the running pass on a broken compiler invariant.
func (r *Reporter) ICE(format string, args ...any) {
	r.mu.Lock()
	pass := r.pass
	r.errorCount++
	r.mu.Unlock()
	panic(&InternalError{Pass: pass, Message: fmt.Sprintf(format, args...)})
}

// Diagnostics returns a copy of everything reported so far.
func (r *Reporter) Diagnostics() []Diagnostic {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Diagnostic(nil), r.diags...)
}

// Errors returns the diagnostics of error severity or worse.
func (r *Reporter) Errors() []Diagnostic {
	var out []Diagnostic
	for _, d := range r.Diagnostics() {
		if d.Severity >= SeverityError {
			out = append(out, d)
		}
	}
	return out
}

func (r *Reporter) ErrorCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.errorCount
}

// ShouldProceed reports whether lowering may continue to the next pass.
func (r *Reporter) ShouldProceed() bool {
	return r.ErrorCount() == 0
}
