package runtime

import (
	"fmt"

	"github.com/chazu/marten/pkg/gc"
)

// ValueType tags the variants of a Value.
type ValueType uint8

const (
	TypeNil ValueType = iota
	TypeBool
	TypeNumber
	TypeString
	TypeTable
	TypeClosure
)

// String returns a human-readable name for a value type.
func (t ValueType) String() string {
	switch t {
	case TypeNil:
		return "nil"
	case TypeBool:
		return "bool"
	case TypeNumber:
		return "number"
	case TypeString:
		return "string"
	case TypeTable:
		return "table"
	case TypeClosure:
		return "closure"
	default:
		return fmt.Sprintf("ValueType(%d)", uint8(t))
	}
}

// Value is the tagged union placed in operand-stack slots and table
// fields. Values reference GC objects without owning them; ownership is
// the collector's alone.
type Value struct {
	Type ValueType
	B    bool
	Num  float64
	obj  gc.Object
}

// NilValue returns the nil value.
func NilValue() Value {
	return Value{Type: TypeNil}
}

// BoolValue wraps a boolean.
func BoolValue(b bool) Value {
	return Value{Type: TypeBool, B: b}
}

// NumberValue wraps a number.
func NumberValue(n float64) Value {
	return Value{Type: TypeNumber, Num: n}
}

// StringValue wraps an interned string object.
func StringValue(s *String) Value {
	return Value{Type: TypeString, obj: s}
}

// TableValue wraps a table object.
func TableValue(t *Table) Value {
	return Value{Type: TypeTable, obj: t}
}

// ClosureValue wraps a closure object.
func ClosureValue(c *Closure) Value {
	return Value{Type: TypeClosure, obj: c}
}

// IsNil reports whether the value is nil.
func (v Value) IsNil() bool {
	return v.Type == TypeNil
}

// Str returns the string object; valid only when Type is TypeString.
func (v Value) Str() *String {
	return v.obj.(*String)
}

// Table returns the table object; valid only when Type is TypeTable.
func (v Value) Table() *Table {
	return v.obj.(*Table)
}

// Closure returns the closure object; valid only when Type is TypeClosure.
func (v Value) Closure() *Closure {
	return v.obj.(*Closure)
}

// Obj returns the underlying GC object, or nil for immediate values.
func (v Value) Obj() gc.Object {
	return v.obj
}

// traceValue forwards the value's object reference, if any, to a GC trace
// visitor.
func traceValue(v Value, visit func(gc.Object)) {
	if v.obj != nil {
		visit(v.obj)
	}
}
