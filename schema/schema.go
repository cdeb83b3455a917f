package schema

import (
	"errors"
	"fmt"

	"github.com/Masterminds/semver/v3"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// ErrUnknownOp is returned for operators not present in a schema.
var ErrUnknownOp = errors.New("unknown operator")

// Field describes a fixed field of a node kind.
type Field struct {
	Name     string
	Optional bool
}

// Range describes the variadic range of a node kind. Min is the minimum
// number of elements a node of this kind is expected to carry.
type Range struct {
	Name string
	Min  int
}

// OpInfo is the schema entry for one operator. Fixed fields precede the range
// in the node layout.
type OpInfo struct {
	Op     string
	Fields []Field
	Range  *Range // nil for fixed-arity operators
}

// IsVariadic is true if the operator has a variadic range.
func (oi *OpInfo) IsVariadic() bool {
	return oi.Range != nil
}

// HasChildren is true if nodes of this kind have any child slots at all.
func (oi *OpInfo) HasChildren() bool {
	return len(oi.Fields) > 0 || oi.Range != nil
}

// Arity returns the number of fixed fields.
func (oi *OpInfo) Arity() int {
	return len(oi.Fields)
}

// RangeStart is the index of the first pattern member mapped into the range.
func (oi *OpInfo) RangeStart() int {
	return len(oi.Fields)
}

// RangeBounds returns the indices of the first and the last of n pattern members
// which are mapped into the variadic range. If no member falls into the range,
// last will be first-1.
func (oi *OpInfo) RangeBounds(n int) (first, last int) {
	return len(oi.Fields), n - 1
}

// Arg maps the i-th member of a pattern to a field of the operator.
// For members inside the variadic range, Arg returns the range as a field
// together with the offset into the range. For fixed fields the offset is -1.
// If i is out of bounds for the operator, ok will be false.
func (oi *OpInfo) Arg(i int) (f Field, offset int, ok bool) {
	if i < 0 {
		return Field{}, -1, false
	}
	if i < len(oi.Fields) {
		return oi.Fields[i], -1, true
	}
	if oi.Range == nil {
		return Field{}, -1, false
	}
	return Field{Name: oi.Range.Name}, i - len(oi.Fields), true
}

// FieldIndex returns the position of a fixed field by name, or -1.
func (oi *OpInfo) FieldIndex(name string) int {
	for i, f := range oi.Fields {
		if f.Name == name {
			return i
		}
	}
	return -1
}

func (oi *OpInfo) String() string {
	s := oi.Op + "("
	for i, f := range oi.Fields {
		if i > 0 {
			s += ", "
		}
		s += f.Name
		if f.Optional {
			s += "?"
		}
	}
	if oi.Range != nil {
		if len(oi.Fields) > 0 {
			s += ", "
		}
		s += fmt.Sprintf("%s...≥%d", oi.Range.Name, oi.Range.Min)
	}
	return s + ")"
}

// --- Literal roles ---------------------------------------------------------

// Role names the scalar-literal kinds for which pattern matching unwraps a node
// to its underlying value.
type Role string

// Literal roles.
const (
	RoleString Role = "string"
	RoleInt    Role = "int"
	RoleFloat  Role = "float"
	RoleTrue   Role = "true"
	RoleFalse  Role = "false"
	RoleArray  Role = "array"
)

// DefaultLiterals is the role-to-operator mapping used when a schema file does
// not name its own.
func DefaultLiterals() map[Role]string {
	return map[Role]string{
		RoleString: "op_string",
		RoleInt:    "op_int_const",
		RoleFloat:  "op_float_const",
		RoleTrue:   "op_true",
		RoleFalse:  "op_false",
		RoleArray:  "op_array",
	}
}

// DefaultReclaimable lists node kinds which may be retired for reuse if a rule
// matches them without naming them.
func DefaultReclaimable() []string {
	return []string{"op_func_call", "op_int_const", "op_string"}
}

// --- Schema ----------------------------------------------------------------

// Schema is a set of operator entries plus schema-wide settings.
type Schema struct {
	Version     *semver.Version
	Literals    map[Role]string   // literal role → operator
	Reclaimable []string          // operators which may be retired
	Wrappers    map[string]string // value-preserving wrapper operator → its field
	ops         map[string]*OpInfo
}

// New creates an empty schema with default literal roles and reclaimable kinds.
func New() *Schema {
	return &Schema{
		Version:     semver.MustParse("1.0.0"),
		Literals:    DefaultLiterals(),
		Reclaimable: DefaultReclaimable(),
		Wrappers:    make(map[string]string),
		ops:         make(map[string]*OpInfo),
	}
}

// Define adds an operator to the schema, replacing a previous definition.
func (s *Schema) Define(op string, fields []Field, rng *Range) *OpInfo {
	info := &OpInfo{Op: op, Fields: fields, Range: rng}
	s.ops[op] = info
	tracer().Debugf("schema: %s", info)
	return info
}

// Fixed is a shortcut to define a fixed-arity operator with non-optional fields.
func (s *Schema) Fixed(op string, fields ...string) *OpInfo {
	ff := make([]Field, len(fields))
	for i, f := range fields {
		ff[i] = Field{Name: f}
	}
	return s.Define(op, ff, nil)
}

// Variadic is a shortcut to define an operator with fixed fields followed by
// a range.
func (s *Schema) Variadic(op string, rangeName string, min int, fields ...string) *OpInfo {
	info := s.Fixed(op, fields...)
	info.Range = &Range{Name: rangeName, Min: min}
	return info
}

// Get returns the schema entry for an operator, or an error wrapping ErrUnknownOp.
func (s *Schema) Get(op string) (*OpInfo, error) {
	if info, ok := s.ops[op]; ok {
		return info, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownOp, op)
}

// MustGet is like Get, but panics for unknown operators. It is intended for
// code which has already validated its operators.
func (s *Schema) MustGet(op string) *OpInfo {
	info, err := s.Get(op)
	if err != nil {
		panic(err)
	}
	return info
}

// Has is a predicate: is op defined in this schema?
func (s *Schema) Has(op string) bool {
	_, ok := s.ops[op]
	return ok
}

// Ops returns all operators, sorted.
func (s *Schema) Ops() []string {
	ops := maps.Keys(s.ops)
	slices.Sort(ops)
	return ops
}

// Size returns the number of operators.
func (s *Schema) Size() int {
	return len(s.ops)
}

// LiteralRole returns the literal role of an operator, if it has one.
func (s *Schema) LiteralRole(op string) (Role, bool) {
	for role, o := range s.Literals {
		if o == op {
			return role, true
		}
	}
	return "", false
}

// IsReclaimable is a predicate: may unnamed matches of op be retired?
func (s *Schema) IsReclaimable(op string) bool {
	return slices.Contains(s.Reclaimable, op)
}

// WrapperField returns the index of the wrapped field, if op is a
// value-preserving wrapper.
func (s *Schema) WrapperField(op string) (int, bool) {
	name, ok := s.Wrappers[op]
	if !ok {
		return -1, false
	}
	info, err := s.Get(op)
	if err != nil {
		return -1, false
	}
	i := info.FieldIndex(name)
	return i, i >= 0
}

// Validate checks schema-wide consistency: field names must be unique per
// operator, range minimums non-negative and wrappers must name a fixed field of
// a known operator.
func (s *Schema) Validate() error {
	for _, op := range s.Ops() {
		info := s.ops[op]
		seen := make(map[string]bool)
		for _, f := range info.Fields {
			if f.Name == "" {
				return fmt.Errorf("operator %s: empty field name", op)
			}
			if seen[f.Name] {
				return fmt.Errorf("operator %s: duplicate field %q", op, f.Name)
			}
			seen[f.Name] = true
		}
		if info.Range != nil {
			if info.Range.Min < 0 {
				return fmt.Errorf("operator %s: negative range minimum", op)
			}
			if seen[info.Range.Name] {
				return fmt.Errorf("operator %s: range %q clashes with a field", op, info.Range.Name)
			}
		}
	}
	wrappers := maps.Keys(s.Wrappers)
	slices.Sort(wrappers)
	for _, w := range wrappers {
		info, err := s.Get(w)
		if err != nil {
			return fmt.Errorf("wrapper: %w", err)
		}
		if info.FieldIndex(s.Wrappers[w]) < 0 {
			return fmt.Errorf("wrapper %s: no field %q", w, s.Wrappers[w])
		}
	}
	return nil
}
