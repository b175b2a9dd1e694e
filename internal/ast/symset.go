package ast

import "github.com/google/btree"

// SymbolSet is a set of symbols iterated in creation order.
type SymbolSet struct {
	tree *btree.BTreeG[*Symbol]
}

func bySymbolID(a, b *Symbol) bool { return a.id < b.id }

// NewSymbolSet returns a set holding syms.
func NewSymbolSet(syms ...*Symbol) *SymbolSet {
	s := &SymbolSet{tree: btree.NewG[*Symbol](8, bySymbolID)}
	for _, sym := range syms {
		s.Add(sym)
	}
	return s
}

// Add inserts sym and reports whether it was absent.
func (s *SymbolSet) Add(sym *Symbol) bool {
	_, found := s.tree.ReplaceOrInsert(sym)
	return !found
}

func (s *SymbolSet) Has(sym *Symbol) bool { return s.tree.Has(sym) }

func (s *SymbolSet) Delete(sym *Symbol) { s.tree.Delete(sym) }

func (s *SymbolSet) Len() int { return s.tree.Len() }

// Slice returns the members ordered by symbol ID.
func (s *SymbolSet) Slice() []*Symbol {
	out := make([]*Symbol, 0, s.tree.Len())
	s.tree.Ascend(func(sym *Symbol) bool {
		out = append(out, sym)
		return true
	})
	return out
}

func (s *SymbolSet) Clone() *SymbolSet {
	return &SymbolSet{tree: s.tree.Clone()}
}

// Union returns a new set with the members of both sets.
func (s *SymbolSet) Union(o *SymbolSet) *SymbolSet {
	out := s.Clone()
	o.tree.Ascend(func(sym *Symbol) bool {
		out.Add(sym)
		return true
	})
	return out
}

// Intersect returns a new set with the members present in both sets.
func (s *SymbolSet) Intersect(o *SymbolSet) *SymbolSet {
	out := NewSymbolSet()
	s.tree.Ascend(func(sym *Symbol) bool {
		if o.Has(sym) {
			out.Add(sym)
		}
		return true
	})
	return out
}
