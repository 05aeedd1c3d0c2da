// Package filter translates AIP-160 listing filters into parameterized SQL
// for the roll store.
//
// Expressions are parsed and type-checked by go.einride.tech/aip against a
// closed field list, then the checked CEL tree is rendered into a WHERE
// fragment. Only AND/OR over field-to-literal comparisons survive the walk,
// so no filter text ever reaches the database unparameterized.
package filter

import (
	"fmt"
	"strings"
	"time"

	"go.einride.tech/aip/filtering"
	expr "google.golang.org/genproto/googleapis/api/expr/v1alpha1"
)

// Condition is a WHERE fragment with its positional parameters.
type Condition struct {
	Clause string
	Params []any
}

// fieldKind describes how a filter field types and stores.
type fieldKind int

const (
	kindString fieldKind = iota
	kindBool
	kindInt
	kindTimestamp
)

// rollField declares one filterable field and the column it lands on.
type rollField struct {
	column string
	kind   fieldKind
}

// rollFields is the closed set of fields a roll filter may reference.
// Timestamp fields land on the *_at millisecond columns.
var rollFields = map[string]rollField{
	"status":       {column: "status", kind: kindString},
	"creator_id":   {column: "creator_id", kind: kindString},
	"character_id": {column: "character_id", kind: kindString},
	"scene_id":     {column: "scene_id", kind: kindString},
	"confirmed_by": {column: "confirmed_by", kind: kindString},
	"strategy":     {column: "strategy", kind: kindString},
	"outcome":      {column: "outcome", kind: kindString},
	"is_reaction":  {column: "is_reaction", kind: kindBool},
	"might":        {column: "might", kind: kindInt},
	"created":      {column: "created_at", kind: kindTimestamp},
	"executed":     {column: "executed_at", kind: kindTimestamp},
}

// connectives and comparators map checked-CEL call names to SQL spellings.
var (
	connectives = map[string]string{"_&&_": "AND", "AND": "AND", "_||_": "OR", "OR": "OR"}
	comparators = map[string]string{
		"_==_": "=", "=": "=",
		"_!=_": "!=", "!=": "!=",
		"_<_": "<", "<": "<",
		"_<=_": "<=", "<=": "<=",
		"_>_": ">", ">": ">",
		"_>=_": ">=", ">=": ">=",
	}
)

// ParseRollFilter checks filterStr against the roll fields and renders the
// checked expression as SQL. A blank filter yields the zero Condition.
func ParseRollFilter(filterStr string) (Condition, error) {
	if strings.TrimSpace(filterStr) == "" {
		return Condition{}, nil
	}

	decls, err := declarations()
	if err != nil {
		return Condition{}, fmt.Errorf("declare roll fields: %w", err)
	}
	checked, err := filtering.ParseFilterString(filterStr, decls)
	if err != nil {
		return Condition{}, fmt.Errorf("parse filter: %w", err)
	}
	return render(checked.CheckedExpr.GetExpr())
}

func declarations() (*filtering.Declarations, error) {
	opts := []filtering.DeclarationOption{filtering.DeclareStandardFunctions()}
	for name, field := range rollFields {
		switch field.kind {
		case kindBool:
			opts = append(opts, filtering.DeclareIdent(name, filtering.TypeBool))
		case kindInt:
			opts = append(opts, filtering.DeclareIdent(name, filtering.TypeInt))
		case kindTimestamp:
			opts = append(opts, filtering.DeclareIdent(name, filtering.TypeTimestamp))
		default:
			opts = append(opts, filtering.DeclareIdent(name, filtering.TypeString))
		}
	}
	return filtering.NewDeclarations(opts...)
}

func render(e *expr.Expr) (Condition, error) {
	if e == nil {
		return Condition{}, nil
	}
	call := e.GetCallExpr()
	if call == nil {
		return Condition{}, fmt.Errorf("unsupported filter expression %T", e.GetExprKind())
	}

	if op, ok := connectives[call.GetFunction()]; ok {
		return renderPair(call.GetArgs(), op)
	}
	if op, ok := comparators[call.GetFunction()]; ok {
		return renderComparison(call.GetArgs(), op)
	}
	return Condition{}, fmt.Errorf("unsupported filter function %q", call.GetFunction())
}

func renderPair(args []*expr.Expr, op string) (Condition, error) {
	if len(args) != 2 {
		return Condition{}, fmt.Errorf("%s expects two operands", op)
	}
	left, err := render(args[0])
	if err != nil {
		return Condition{}, err
	}
	right, err := render(args[1])
	if err != nil {
		return Condition{}, err
	}
	return Condition{
		Clause: fmt.Sprintf("(%s %s %s)", left.Clause, op, right.Clause),
		Params: append(left.Params, right.Params...),
	}, nil
}

func renderComparison(args []*expr.Expr, op string) (Condition, error) {
	if len(args) != 2 {
		return Condition{}, fmt.Errorf("%s expects a field and a value", op)
	}

	ident := args[0].GetIdentExpr()
	if ident == nil {
		return Condition{}, fmt.Errorf("comparisons must start with a field name")
	}
	field, ok := rollFields[ident.GetName()]
	if !ok {
		return Condition{}, fmt.Errorf("unknown filter field %q", ident.GetName())
	}

	value, err := literal(args[1])
	if err != nil {
		return Condition{}, err
	}
	return Condition{Clause: field.column + " " + op + " ?", Params: []any{value}}, nil
}

// literal evaluates the value side of a comparison: constants, plus the
// timestamp("...") form AIP-160 uses for time fields.
func literal(e *expr.Expr) (any, error) {
	if e == nil {
		return nil, fmt.Errorf("missing comparison value")
	}

	if call := e.GetCallExpr(); call != nil {
		if call.GetFunction() != "timestamp" || len(call.GetArgs()) != 1 {
			return nil, fmt.Errorf("unsupported value function %q", call.GetFunction())
		}
		return timestampMillis(call.GetArgs()[0])
	}

	c := e.GetConstExpr()
	if c == nil {
		return nil, fmt.Errorf("comparison value must be a constant")
	}
	switch kind := c.GetConstantKind().(type) {
	case *expr.Constant_StringValue:
		return kind.StringValue, nil
	case *expr.Constant_Int64Value:
		return kind.Int64Value, nil
	case *expr.Constant_Uint64Value:
		return kind.Uint64Value, nil
	case *expr.Constant_DoubleValue:
		return kind.DoubleValue, nil
	case *expr.Constant_BoolValue:
		// Boolean columns store 0/1 integers.
		if kind.BoolValue {
			return int64(1), nil
		}
		return int64(0), nil
	default:
		return nil, fmt.Errorf("unsupported constant %T", kind)
	}
}

// timestampMillis converts a timestamp("...") argument to the millisecond
// integers the *_at columns store.
func timestampMillis(arg *expr.Expr) (int64, error) {
	value := arg.GetConstExpr().GetStringValue()
	if value == "" {
		return 0, fmt.Errorf("timestamp() expects an RFC 3339 string")
	}
	at, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return 0, fmt.Errorf("invalid timestamp %q", value)
	}
	return at.UTC().UnixMilli(), nil
}
