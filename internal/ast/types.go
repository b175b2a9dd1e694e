package ast

import (
	"fmt"
	"strings"
)

// Type is the closed set of kinds a symbol can carry.
type Type interface {
	String() string
	isType()
}

// FlowControl is the handshake protocol of a port.
type FlowControl int

const (
	FlowNone FlowControl = iota
	FlowValid
	FlowReady // valid/ready
)

func (fc FlowControl) String() string {
	switch fc {
	case FlowValid:
		return "sync"
	case FlowReady:
		return "sync ready"
	default:
		return ""
	}
}

// SliceKind is one stage of a pipelined output register chain.
type SliceKind int

const (
	SliceForward SliceKind = iota
	SliceBackward
	SliceBubble
)

func (sk SliceKind) String() string {
	switch sk {
	case SliceBackward:
		return "bslice"
	case SliceBubble:
		return "bubble"
	default:
		return "fslice"
	}
}

// StorageKind selects the register placement of an output port.
type StorageKind int

const (
	StorageReg StorageKind = iota
	StorageWire
	StorageSlices
)

// Storage describes how an output port is driven. Slices is non-empty
// exactly when Kind is StorageSlices.
type Storage struct {
	Kind   StorageKind
	Slices []SliceKind
}

var (
	StoreReg  = Storage{Kind: StorageReg}
	StoreWire = Storage{Kind: StorageWire}
)

// SliceStorage returns a slice-chain storage.
func SliceStorage(slices ...SliceKind) Storage {
	return Storage{Kind: StorageSlices, Slices: append([]SliceKind(nil), slices...)}
}

func (st Storage) String() string {
	switch st.Kind {
	case StorageWire:
		return "wire"
	case StorageSlices:
		parts := make([]string, len(st.Slices))
		for i, s := range st.Slices {
			parts[i] = s.String()
		}
		return strings.Join(parts, " ")
	default:
		return "reg"
	}
}

// Equal compares two storage descriptions structurally.
func (st Storage) Equal(o Storage) bool {
	if st.Kind != o.Kind || len(st.Slices) != len(o.Slices) {
		return false
	}
	for i := range st.Slices {
		if st.Slices[i] != o.Slices[i] {
			return false
		}
	}
	return true
}

// TypeUInt is an unsigned integer of fixed width.
type TypeUInt struct{ Width int }

// TypeSInt is a signed integer of fixed width.
type TypeSInt struct{ Width int }

// TypeNum is the type of unsized integer literals and constant expressions.
type TypeNum struct{ Signed bool }

// TypeVoid is the type of statements-as-expressions such as port writes.
type TypeVoid struct{}

// Field is one member of a struct type.
type Field struct {
	Name string
	Kind Type
}

// TypeStruct is a packed struct; the first field occupies the most
// significant bits.
type TypeStruct struct {
	Name   string
	Fields []Field
}

// TypeArray is a register array (memory) of Size elements.
type TypeArray struct {
	Elem Type
	Size int
}

// TypeIn is an input port.
type TypeIn struct {
	Kind Type
	FC   FlowControl
}

// TypeOut is an output port.
type TypeOut struct {
	Kind Type
	FC   FlowControl
	ST   Storage
}

// TypeConst is a compile time constant.
type TypeConst struct{ Kind Type }

// TypePipeline is a pipeline variable threaded between stages.
type TypePipeline struct{ Kind Type }

// TypeStack is a hardware stack of Depth elements.
type TypeStack struct {
	Elem  Type
	Depth Expr
}

// TypeEntity is the kind of an entity type symbol. Ports are ordered.
type TypeEntity struct {
	Ports []*Symbol
}

// TypeInstance is the kind of an instance term symbol.
type TypeInstance struct {
	Entity *Symbol
}

func (TypeUInt) isType()     {}
func (TypeSInt) isType()     {}
func (TypeNum) isType()      {}
func (TypeVoid) isType()     {}
func (TypeStruct) isType()   {}
func (TypeArray) isType()    {}
func (TypeIn) isType()       {}
func (TypeOut) isType()      {}
func (TypeConst) isType()    {}
func (TypePipeline) isType() {}
func (TypeStack) isType()    {}
func (TypeEntity) isType()   {}
func (TypeInstance) isType() {}

func (t TypeUInt) String() string { return fmt.Sprintf("u%d", t.Width) }
func (t TypeSInt) String() string { return fmt.Sprintf("i%d", t.Width) }

func (t TypeNum) String() string {
	if t.Signed {
		return "int"
	}
	return "uint"
}

func (TypeVoid) String() string { return "void" }

func (t TypeStruct) String() string { return t.Name }

func (t TypeArray) String() string { return fmt.Sprintf("%s[%d]", t.Elem, t.Size) }

func (t TypeIn) String() string { return portString("in", t.FC, t.Kind, "") }

func (t TypeOut) String() string {
	st := ""
	if t.ST.Kind != StorageReg {
		st = t.ST.String()
	}
	return portString("out", t.FC, t.Kind, st)
}

func portString(dir string, fc FlowControl, kind Type, st string) string {
	parts := []string{dir}
	if fc != FlowNone {
		parts = append(parts, fc.String())
	}
	if st != "" {
		parts = append(parts, st)
	}
	parts = append(parts, kind.String())
	return strings.Join(parts, " ")
}

func (t TypeConst) String() string    { return "const " + t.Kind.String() }
func (t TypePipeline) String() string { return "pipeline " + t.Kind.String() }
func (t TypeStack) String() string    { return fmt.Sprintf("stack<%s>", t.Elem) }

func (t TypeEntity) String() string {
	names := make([]string, len(t.Ports))
	for i, p := range t.Ports {
		names[i] = p.Name()
	}
	return "entity(" + strings.Join(names, ", ") + ")"
}

func (t TypeInstance) String() string {
	if t.Entity == nil {
		return "instance"
	}
	return "instance " + t.Entity.Name()
}

// Underlying strips port, const and pipeline wrappers and returns the value
// type carried.
func Underlying(t Type) Type {
	switch k := t.(type) {
	case TypeIn:
		return Underlying(k.Kind)
	case TypeOut:
		return Underlying(k.Kind)
	case TypeConst:
		return Underlying(k.Kind)
	case TypePipeline:
		return Underlying(k.Kind)
	default:
		return t
	}
}

// Width returns the number of bits of a packed type, or 0 when the type has
// no fixed width.
func Width(t Type) int {
	switch k := Underlying(t).(type) {
	case TypeUInt:
		return k.Width
	case TypeSInt:
		return k.Width
	case TypeStruct:
		w := 0
		for _, f := range k.Fields {
			w += Width(f.Kind)
		}
		return w
	case TypeArray:
		return Width(k.Elem) * k.Size
	default:
		return 0
	}
}

// Signed reports whether the value type is signed.
func Signed(t Type) bool {
	switch k := Underlying(t).(type) {
	case TypeSInt:
		return true
	case TypeNum:
		return k.Signed
	default:
		return false
	}
}

// Packed reports whether values of the type have a fixed bit width.
func Packed(t Type) bool {
	return Width(t) > 0
}

// IsPort reports whether t is an input or output port kind.
func IsPort(t Type) bool {
	switch t.(type) {
	case TypeIn, TypeOut:
		return true
	}
	return false
}

// CloneType returns a deep copy of a kind so that later edits of either copy
// never alias. Symbols and expressions referenced from a kind are shared.
func CloneType(t Type) Type {
	switch k := t.(type) {
	case TypeStruct:
		fields := make([]Field, len(k.Fields))
		for i, f := range k.Fields {
			fields[i] = Field{Name: f.Name, Kind: CloneType(f.Kind)}
		}
		return TypeStruct{Name: k.Name, Fields: fields}
	case TypeArray:
		return TypeArray{Elem: CloneType(k.Elem), Size: k.Size}
	case TypeIn:
		return TypeIn{Kind: CloneType(k.Kind), FC: k.FC}
	case TypeOut:
		return TypeOut{Kind: CloneType(k.Kind), FC: k.FC, ST: Storage{Kind: k.ST.Kind, Slices: append([]SliceKind(nil), k.ST.Slices...)}}
	case TypeConst:
		return TypeConst{Kind: CloneType(k.Kind)}
	case TypePipeline:
		return TypePipeline{Kind: CloneType(k.Kind)}
	case TypeStack:
		return TypeStack{Elem: CloneType(k.Elem), Depth: k.Depth}
	case TypeEntity:
		return TypeEntity{Ports: append([]*Symbol(nil), k.Ports...)}
	default:
		return t
	}
}

// TypesEqual compares two kinds structurally. Symbols inside entity and
// instance kinds are compared by identity.
func TypesEqual(a, b Type) bool {
	switch x := a.(type) {
	case TypeUInt:
		y, ok := b.(TypeUInt)
		return ok && x.Width == y.Width
	case TypeSInt:
		y, ok := b.(TypeSInt)
		return ok && x.Width == y.Width
	case TypeNum:
		y, ok := b.(TypeNum)
		return ok && x.Signed == y.Signed
	case TypeVoid:
		_, ok := b.(TypeVoid)
		return ok
	case TypeStruct:
		y, ok := b.(TypeStruct)
		if !ok || x.Name != y.Name || len(x.Fields) != len(y.Fields) {
			return false
		}
		for i := range x.Fields {
			if x.Fields[i].Name != y.Fields[i].Name || !TypesEqual(x.Fields[i].Kind, y.Fields[i].Kind) {
				return false
			}
		}
		return true
	case TypeArray:
		y, ok := b.(TypeArray)
		return ok && x.Size == y.Size && TypesEqual(x.Elem, y.Elem)
	case TypeIn:
		y, ok := b.(TypeIn)
		return ok && x.FC == y.FC && TypesEqual(x.Kind, y.Kind)
	case TypeOut:
		y, ok := b.(TypeOut)
		return ok && x.FC == y.FC && x.ST.Equal(y.ST) && TypesEqual(x.Kind, y.Kind)
	case TypeConst:
		y, ok := b.(TypeConst)
		return ok && TypesEqual(x.Kind, y.Kind)
	case TypePipeline:
		y, ok := b.(TypePipeline)
		return ok && TypesEqual(x.Kind, y.Kind)
	case TypeStack:
		y, ok := b.(TypeStack)
		return ok && x.Depth == y.Depth && TypesEqual(x.Elem, y.Elem)
	case TypeEntity:
		y, ok := b.(TypeEntity)
		if !ok || len(x.Ports) != len(y.Ports) {
			return false
		}
		for i := range x.Ports {
			if x.Ports[i] != y.Ports[i] {
				return false
			}
		}
		return true
	case TypeInstance:
		y, ok := b.(TypeInstance)
		return ok && x.Entity == y.Entity
	}
	return false
}
