package transform

// Stack is a scope stack. Passes push on Enter and pop as the last action
// of Transform, and pop again from Unwind when a traversal is aborted.
type Stack[T any] struct {
	items []T
}

func (s *Stack[T]) Push(v T) { s.items = append(s.items, v) }

// Pop removes the top element. Popping an empty stack returns the zero value.
func (s *Stack[T]) Pop() T {
	var zero T
	if len(s.items) == 0 {
		return zero
	}
	v := s.items[len(s.items)-1]
	s.items[len(s.items)-1] = zero
	s.items = s.items[:len(s.items)-1]
	return v
}

// Top returns the innermost element.
func (s *Stack[T]) Top() T {
	var zero T
	if len(s.items) == 0 {
		return zero
	}
	return s.items[len(s.items)-1]
}

// At returns the element depth levels below the top; At(0) is Top.
func (s *Stack[T]) At(depth int) T {
	var zero T
	i := len(s.items) - 1 - depth
	if i < 0 || i >= len(s.items) {
		return zero
	}
	return s.items[i]
}

func (s *Stack[T]) Len() int { return len(s.items) }

func (s *Stack[T]) Empty() bool { return len(s.items) == 0 }
