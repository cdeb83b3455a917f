package ast

import (
	"strconv"

	"github.com/npillmayer/rulegen/schema"
)

// Unwrap peels value-preserving wrapper nodes (see schema.Schema.Wrappers) off
// v and returns the first node which is not a wrapper, if its operator is op.
// Otherwise Unwrap returns Nil.
func (t *Tree) Unwrap(v NodeID, op string) NodeID {
	for v != Nil {
		if t.Op(v) == op {
			return v
		}
		i, ok := t.Schema.WrapperField(t.Op(v))
		if !ok {
			return Nil
		}
		v = t.Field(v, i)
	}
	return Nil
}

// UnwrapRole is like Unwrap, for the operator the schema assigns to a literal role.
func (t *Tree) UnwrapRole(v NodeID, role schema.Role) NodeID {
	op, ok := t.Schema.Literals[role]
	if !ok {
		return Nil
	}
	return t.Unwrap(v, op)
}

// IntValue returns the integer value of an integer literal, looking through wrappers.
func (t *Tree) IntValue(v NodeID) (int64, bool) {
	if v = t.UnwrapRole(v, schema.RoleInt); v == Nil {
		return 0, false
	}
	n, err := strconv.ParseInt(t.Payload(v), 0, 64)
	return n, err == nil
}

// FloatValue returns the value of a float literal, looking through wrappers.
func (t *Tree) FloatValue(v NodeID) (float64, bool) {
	if v = t.UnwrapRole(v, schema.RoleFloat); v == Nil {
		return 0, false
	}
	f, err := strconv.ParseFloat(t.Payload(v), 64)
	return f, err == nil
}

// StringValue returns the value of a string literal, looking through wrappers.
func (t *Tree) StringValue(v NodeID) (string, bool) {
	if v = t.UnwrapRole(v, schema.RoleString); v == Nil {
		return "", false
	}
	return t.Payload(v), true
}

// BoolValue returns the value of a boolean literal, looking through wrappers.
func (t *Tree) BoolValue(v NodeID) (value bool, ok bool) {
	if t.UnwrapRole(v, schema.RoleTrue) != Nil {
		return true, true
	}
	if t.UnwrapRole(v, schema.RoleFalse) != Nil {
		return false, true
	}
	return false, false
}

// ArrayValue returns the elements of an array literal, looking through wrappers.
func (t *Tree) ArrayValue(v NodeID) ([]NodeID, bool) {
	if v = t.UnwrapRole(v, schema.RoleArray); v == Nil {
		return nil, false
	}
	return t.Children(v), true
}
