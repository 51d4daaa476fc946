package query

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// encMode mirrors internal/wire/codec.go's Core Deterministic Encoding
// setup exactly (sorted map keys, smallest integer encoding, no
// indefinite-length items); decMode uses cbor's default decoding options
// and, unlike wire's, does not set DefaultMapType. query cannot import
// wire for its shared
// encMode — wire already imports query for the envelope's Instance/
// QueryModel fields, and the reverse import would cycle — so the same
// cbor.CoreDetEncOptions() configuration is duplicated here instead,
// keeping the nested constraint bytes just as deterministic as the
// enclosing envelope's.
var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error

	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("query: CBOR encoder initialization failed: " + err.Error())
	}

	decMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("query: CBOR decoder initialization failed: " + err.Error())
	}
}

// ConstraintExpr is a closed set of combinators (Range, Relation, Set,
// And, Or, Not), so it cannot round-trip through CBOR as a bare Go
// interface value. wireExpr is the tagged-union shape actually put on the
// wire; MarshalCBOR/UnmarshalCBOR convert to and from it. Only one field
// is populated per instance, mirroring how the envelope's own
// discriminated unions are encoded in wire/envelope.go.
type wireExpr struct {
	Range    *Range      `cbor:"range,omitempty"`
	Relation *Relation   `cbor:"relation,omitempty"`
	Set      *Set        `cbor:"set,omitempty"`
	And      []wireExpr  `cbor:"and,omitempty"`
	Or       []wireExpr  `cbor:"or,omitempty"`
	Not      *wireExpr   `cbor:"not,omitempty"`
}

func toWireExpr(e ConstraintExpr) wireExpr {
	switch v := e.(type) {
	case Range:
		return wireExpr{Range: &v}
	case Relation:
		return wireExpr{Relation: &v}
	case Set:
		return wireExpr{Set: &v}
	case And:
		exprs := make([]wireExpr, len(v.Exprs))
		for i, sub := range v.Exprs {
			exprs[i] = toWireExpr(sub)
		}
		return wireExpr{And: exprs}
	case Or:
		exprs := make([]wireExpr, len(v.Exprs))
		for i, sub := range v.Exprs {
			exprs[i] = toWireExpr(sub)
		}
		return wireExpr{Or: exprs}
	case Not:
		inner := toWireExpr(v.Expr)
		return wireExpr{Not: &inner}
	default:
		panic(fmt.Sprintf("query: unknown ConstraintExpr %T", e))
	}
}

func (w wireExpr) toExpr() (ConstraintExpr, error) {
	switch {
	case w.Range != nil:
		return *w.Range, nil
	case w.Relation != nil:
		return *w.Relation, nil
	case w.Set != nil:
		return *w.Set, nil
	case w.And != nil:
		exprs := make([]ConstraintExpr, len(w.And))
		for i, sub := range w.And {
			expr, err := sub.toExpr()
			if err != nil {
				return nil, err
			}
			exprs[i] = expr
		}
		return And{Exprs: exprs}, nil
	case w.Or != nil:
		exprs := make([]ConstraintExpr, len(w.Or))
		for i, sub := range w.Or {
			expr, err := sub.toExpr()
			if err != nil {
				return nil, err
			}
			exprs[i] = expr
		}
		return Or{Exprs: exprs}, nil
	case w.Not != nil:
		inner, err := w.Not.toExpr()
		if err != nil {
			return nil, err
		}
		return Not{Expr: inner}, nil
	default:
		return nil, fmt.Errorf("query: empty constraint expression")
	}
}

type wireConstraint struct {
	AttributeName string   `cbor:"attribute_name"`
	Expr          wireExpr `cbor:"expr"`
}

// MarshalCBOR implements cbor.Marshaler.
func (c Constraint) MarshalCBOR() ([]byte, error) {
	return encMode.Marshal(wireConstraint{AttributeName: c.AttributeName, Expr: toWireExpr(c.Expr)})
}

// UnmarshalCBOR implements cbor.Unmarshaler.
func (c *Constraint) UnmarshalCBOR(data []byte) error {
	var w wireConstraint
	if err := decMode.Unmarshal(data, &w); err != nil {
		return err
	}
	expr, err := w.Expr.toExpr()
	if err != nil {
		return err
	}
	c.AttributeName = w.AttributeName
	c.Expr = expr
	return nil
}

type wireQueryModel struct {
	Constraints []Constraint `cbor:"constraints"`
	ModelName   string       `cbor:"model_name,omitempty"`
}

// MarshalCBOR implements cbor.Marshaler.
func (q QueryModel) MarshalCBOR() ([]byte, error) {
	return encMode.Marshal(wireQueryModel{Constraints: q.Constraints, ModelName: q.ModelName})
}

// UnmarshalCBOR implements cbor.Unmarshaler.
func (q *QueryModel) UnmarshalCBOR(data []byte) error {
	var w wireQueryModel
	if err := decMode.Unmarshal(data, &w); err != nil {
		return err
	}
	q.Constraints = w.Constraints
	q.ModelName = w.ModelName
	return nil
}
