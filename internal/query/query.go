// Package query implements the Instance/DataModel/QueryModel predicate
// language spec.md treats as an external collaborator ("a query is a
// predicate over Instances"). The shapes are grounded on
// original_source/oef-core/lib/test/src/schema.cpp: an Instance is a set
// of named, typed attribute values checked against a DataModel; a
// QueryModel is a list of Constraints, each combining an attribute name
// with a ConstraintExpr (Range, Relation, Set, and the And/Or/Not
// combinators exercised in that test file).
package query

import "fmt"

// AttributeType enumerates the value kinds an Attribute may carry.
type AttributeType string

const (
	TypeString  AttributeType = "string"
	TypeInt     AttributeType = "int"
	TypeFloat   AttributeType = "float"
	TypeBool    AttributeType = "bool"
	TypeLocation AttributeType = "location"
)

// Attribute describes one named, typed field of a DataModel.
type Attribute struct {
	Name        string        `cbor:"name"`
	Type        AttributeType `cbor:"type"`
	Required    bool          `cbor:"required"`
	Description string        `cbor:"description,omitempty"`
}

// DataModel names a set of Attributes an Instance may be checked against.
type DataModel struct {
	Name       string      `cbor:"name"`
	Attributes []Attribute `cbor:"attributes"`
}

func (dm DataModel) attribute(name string) (Attribute, bool) {
	for _, attr := range dm.Attributes {
		if attr.Name == name {
			return attr, true
		}
	}
	return Attribute{}, false
}

// Instance is a structured record describing a service or agent: a
// DataModel plus a value for (at least) each required attribute.
type Instance struct {
	Model  DataModel      `cbor:"model"`
	Values map[string]any `cbor:"values"`
}

// Validate reports whether the Instance satisfies its own DataModel: every
// required attribute must be present, and every present attribute's value
// must match its declared type. Mirrors schema.cpp's Instance constructor,
// which throws on a missing required field or a type mismatch.
func (i Instance) Validate() error {
	for _, attr := range i.Model.Attributes {
		value, present := i.Values[attr.Name]
		if !present {
			if attr.Required {
				return fmt.Errorf("query: instance missing required attribute %q", attr.Name)
			}
			continue
		}
		if !typeMatches(attr.Type, value) {
			return fmt.Errorf("query: attribute %q has wrong type for %s", attr.Name, attr.Type)
		}
	}
	return nil
}

func typeMatches(t AttributeType, value any) bool {
	switch t {
	case TypeString:
		_, ok := value.(string)
		return ok
	case TypeInt:
		switch value.(type) {
		case int, int32, int64, uint, uint32, uint64:
			return true
		}
		return false
	case TypeFloat:
		switch value.(type) {
		case float32, float64:
			return true
		}
		return false
	case TypeBool:
		_, ok := value.(bool)
		return ok
	case TypeLocation:
		_, ok := value.(string)
		return ok
	default:
		return true
	}
}

// ConstraintExpr is the interface all predicate combinators implement.
type ConstraintExpr interface {
	check(value any, present bool) bool
}

// Range matches when the attribute's value falls within [Min, Max]
// inclusive. Values are compared as float64 for numeric types and
// lexically for strings.
type Range struct {
	Min any `cbor:"min"`
	Max any `cbor:"max"`
}

func (r Range) check(value any, present bool) bool {
	if !present {
		return false
	}
	return compare(value, r.Min) >= 0 && compare(value, r.Max) <= 0
}

// RelationOp enumerates the comparison operators a Relation may apply.
type RelationOp string

const (
	OpEq RelationOp = "eq"
	OpNe RelationOp = "ne"
	OpLt RelationOp = "lt"
	OpLe RelationOp = "le"
	OpGt RelationOp = "gt"
	OpGe RelationOp = "ge"
)

// Relation matches when the attribute's value stands in the given
// relation to Value.
type Relation struct {
	Op    RelationOp `cbor:"op"`
	Value any        `cbor:"value"`
}

func (r Relation) check(value any, present bool) bool {
	if !present {
		return false
	}
	c := compare(value, r.Value)
	switch r.Op {
	case OpEq:
		return c == 0
	case OpNe:
		return c != 0
	case OpLt:
		return c < 0
	case OpLe:
		return c <= 0
	case OpGt:
		return c > 0
	case OpGe:
		return c >= 0
	default:
		return false
	}
}

// Set matches when the attribute's value is a member of Values.
type Set struct {
	Values []any `cbor:"values"`
}

func (s Set) check(value any, present bool) bool {
	if !present {
		return false
	}
	for _, candidate := range s.Values {
		if compare(value, candidate) == 0 {
			return true
		}
	}
	return false
}

// And matches when every sub-expression matches.
type And struct{ Exprs []ConstraintExpr }

func (a And) check(value any, present bool) bool {
	for _, e := range a.Exprs {
		if !e.check(value, present) {
			return false
		}
	}
	return true
}

// Or matches when any sub-expression matches.
type Or struct{ Exprs []ConstraintExpr }

func (o Or) check(value any, present bool) bool {
	for _, e := range o.Exprs {
		if e.check(value, present) {
			return true
		}
	}
	return false
}

// Not inverts its sub-expression.
type Not struct{ Expr ConstraintExpr }

func (n Not) check(value any, present bool) bool {
	return !n.Expr.check(value, present)
}

// Constraint binds a ConstraintExpr to the attribute name it applies to.
type Constraint struct {
	AttributeName string
	Expr          ConstraintExpr
}

func (c Constraint) check(instance Instance) bool {
	value, present := instance.Values[c.AttributeName]
	return c.Expr.check(value, present)
}

// QueryModel is a predicate over Instances: a conjunction of Constraints,
// optionally scoped to a DataModel name.
type QueryModel struct {
	Constraints []Constraint
	ModelName   string // empty matches any model
}

// Check reports whether instance satisfies every constraint in the model.
// This is the "pure predicate" contract spec.md §1 assigns to QueryModel.
func (q QueryModel) Check(instance Instance) bool {
	if q.ModelName != "" && instance.Model.Name != q.ModelName {
		return false
	}
	for _, c := range q.Constraints {
		if !c.check(instance) {
			return false
		}
	}
	return true
}

// compare orders two attribute values, returning <0, 0, or >0. Numeric
// types are compared as float64; everything else falls back to string
// comparison of fmt.Sprint, which is sufficient for the string/location
// attribute types this package supports.
func compare(a, b any) int {
	af, aok := asFloat(a)
	bf, bok := asFloat(b)
	if aok && bok {
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		default:
			return 0
		}
	}
	as, bs := fmt.Sprint(a), fmt.Sprint(b)
	switch {
	case as < bs:
		return -1
	case as > bs:
		return 1
	default:
		return 0
	}
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}
