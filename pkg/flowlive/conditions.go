package flowlive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"github.com/randalmurphal/flowlive/pkg/flowlive/expr"
)

// ConditionBranch is one routed output of a condition node.
type ConditionBranch struct {
	Handle     string `json:"handle"`
	Expression string `json:"expression"`
}

// ConditionParams is the parameter bag of a condition node. Branches are
// tried in order; the else handle takes everything else.
type ConditionParams struct {
	Branches []ConditionBranch `json:"branches"`
}

// ConditionForm returns the form validator for condition nodes. It checks
// that every branch names a declared output handle, that no handle is
// routed twice, and that every expression parses.
func ConditionForm() FormValidator {
	return func(_ context.Context, node Node) ([]string, error) {
		var params ConditionParams
		if len(node.Params) > 0 {
			if err := json.Unmarshal(node.Params, &params); err != nil {
				return []string{fmt.Sprintf("%s: parameters are not valid JSON", node.Label())}, nil
			}
		}

		var msgs []string
		seen := make(map[string]bool)
		for i, b := range params.Branches {
			name := b.Handle
			if name == "" {
				name = fmt.Sprintf("#%d", i+1)
			}
			switch {
			case b.Handle == "":
				msgs = append(msgs, fmt.Sprintf("%s: branch %s has no handle", node.Label(), name))
			case b.Handle == ElseHandle:
				msgs = append(msgs, fmt.Sprintf("%s: branch %s cannot have an expression", node.Label(), name))
				continue
			case !slices.Contains(node.Ports.Outputs, b.Handle):
				msgs = append(msgs, fmt.Sprintf("%s: branch %s is not a declared output", node.Label(), name))
			case seen[b.Handle]:
				msgs = append(msgs, fmt.Sprintf("%s: branch %s is defined twice", node.Label(), name))
			}
			seen[b.Handle] = true

			if _, err := expr.Parse(b.Expression); err != nil {
				var syn *expr.SyntaxError
				if errors.As(err, &syn) {
					msgs = append(msgs, fmt.Sprintf("%s: branch %s: %s", node.Label(), name, syn.Reason))
					continue
				}
				return nil, err
			}
		}
		return msgs, nil
	}
}

// DefaultForms registers the built-in form validators on v.
func DefaultForms() ValidatorOption {
	return WithForm(NodeCondition, ConditionForm())
}
