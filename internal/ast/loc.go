package ast

import "fmt"

// Loc is a source location. Line and column are 1-based; the zero Loc means
// "no location" and is used for synthesized nodes.
type Loc struct {
	File string `json:"file,omitempty"`
	Line int    `json:"line,omitempty"`
	Col  int    `json:"col,omitempty"`
}

// Valid reports whether the location points into a source file.
func (l Loc) Valid() bool {
	return l.Line > 0
}

// Before orders locations by file, then line, then column. Invalid locations
// sort after every valid one.
func (l Loc) Before(o Loc) bool {
	if l.Valid() != o.Valid() {
		return l.Valid()
	}
	if l.File != o.File {
		return l.File < o.File
	}
	if l.Line != o.Line {
		return l.Line < o.Line
	}
	return l.Col < o.Col
}

func (l Loc) String() string {
	if !l.Valid() {
		return "<synthetic>"
	}
	if l.File == "" {
		return fmt.Sprintf("%d:%d", l.Line, l.Col)
	}
	return fmt.Sprintf("%s:%d:%d", l.File, l.Line, l.Col)
}
