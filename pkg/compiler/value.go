package compiler

import "fmt"

// ValueTag is the closed tag set shared by compile-time Value (this file)
// and the runtime Value in pkg/vm: nil, int64, float64, bool, a string-table
// index, or one of the three array-instance-table indices.
type ValueTag int

const (
	TagNil ValueTag = iota
	TagInt
	TagFloat
	TagBool
	TagString
	TagArrayInt
	TagArrayFloat
	TagArrayString
)

// Value is the compile-time tagged union used by literal AST nodes and by
// constant-pool entries. S is either a direct string payload (for a
// literal not yet interned) or, once interned by the code generator, unused
// — the generator carries the interned index separately. Keeping the raw
// string here (rather than an index) lets Value be constructed directly by
// the parser, before any constant pool exists.
type Value struct {
	Tag ValueTag
	I   int64
	F   float64
	B   bool
	S   string
}

func NilValue() Value           { return Value{Tag: TagNil} }
func IntValue(i int64) Value    { return Value{Tag: TagInt, I: i} }
func FloatValue(f float64) Value { return Value{Tag: TagFloat, F: f} }
func BoolValue(b bool) Value    { return Value{Tag: TagBool, B: b} }
func StringValue(s string) Value { return Value{Tag: TagString, S: s} }

func (v Value) String() string {
	switch v.Tag {
	case TagNil:
		return "nil"
	case TagInt:
		return fmt.Sprintf("%d", v.I)
	case TagFloat:
		return fmt.Sprintf("%g", v.F)
	case TagBool:
		if v.B {
			return "true"
		}
		return "false"
	case TagString:
		return v.S
	case TagArrayInt, TagArrayFloat, TagArrayString:
		return fmt.Sprintf("array(%d)", v.I)
	default:
		return "?"
	}
}

// Equal implements the reference's deliberately bug-compatible equality:
// both operands are stringified and compared as text (see DESIGN.md for the
// decision to preserve this instead of a structural tag+value comparison).
func (v Value) Equal(other Value) bool {
	return v.String() == other.String()
}

// DefaultForType returns the zero value the compiler pushes for a VarDecl
// with no initializer, per the lowering table: int->0, float->0.0,
// bool->false, str->"", byte->0 (byte shares int's representation, see
// DESIGN.md open-question decision).
func DefaultForType(t ValueType) Value {
	switch t {
	case TypeInt, TypeByte:
		return IntValue(0)
	case TypeFloat:
		return FloatValue(0)
	case TypeBool:
		return BoolValue(false)
	case TypeStr:
		return StringValue("")
	default:
		return NilValue()
	}
}
