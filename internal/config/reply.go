package config

import (
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/specialistvlad/chatgraph/internal/outcome"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
	"github.com/zclconf/go-cty/cty/function/stdlib"
)

// evalContext exposes a small set of string functions to reply expressions.
func evalContext() *hcl.EvalContext {
	return &hcl.EvalContext{
		Functions: map[string]function.Function{
			"upper":  stdlib.UpperFunc,
			"lower":  stdlib.LowerFunc,
			"format": stdlib.FormatFunc,
			"join":   stdlib.JoinFunc,
			"trim":   stdlib.TrimSpaceFunc,
		},
	}
}

// EvalReply evaluates an interceptor's reply expression into an outcome.
func EvalReply(expr hcl.Expression) (outcome.Outcome, error) {
	v, diags := expr.Value(evalContext())
	if diags.HasErrors() {
		return nil, fmt.Errorf("evaluating reply: %w", diags)
	}
	return ValueToOutcome(v)
}

// ValueToOutcome maps a cty value onto an outcome: strings and numbers become
// text, null and false become Empty, lists and tuples become a Batch.
func ValueToOutcome(v cty.Value) (outcome.Outcome, error) {
	if v.IsNull() {
		return outcome.Empty{}, nil
	}
	if !v.IsKnown() {
		return nil, fmt.Errorf("reply value is unknown")
	}
	ty := v.Type()
	switch {
	case ty == cty.String:
		return outcome.Of(v.AsString()), nil
	case ty == cty.Number:
		f, _ := v.AsBigFloat().Float64()
		return outcome.Number(f), nil
	case ty == cty.Bool:
		if v.False() {
			return outcome.Empty{}, nil
		}
		return nil, fmt.Errorf("reply cannot be true")
	case ty.IsListType() || ty.IsTupleType() || ty.IsSetType():
		b := make(outcome.Batch, 0, v.LengthInt())
		for it := v.ElementIterator(); it.Next(); {
			_, el := it.Element()
			o, err := ValueToOutcome(el)
			if err != nil {
				return nil, err
			}
			b = append(b, o)
		}
		return b, nil
	}
	return nil, fmt.Errorf("reply of type %s is not supported", ty.FriendlyName())
}
