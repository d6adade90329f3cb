package flowlive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime/debug"

	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/errgroup"

	"github.com/randalmurphal/flowlive/pkg/flowlive/observability"
)

// FormValidator checks the parameter bag of one node. It returns the
// messages to show, or an error when the check itself could not run. An
// error (or a panic) is treated as "no problems found".
type FormValidator func(ctx context.Context, node Node) ([]string, error)

// RegisterForm installs fn as the form validator for nodes of type typ,
// replacing any earlier one.
func (v *Validator) RegisterForm(typ NodeType, fn FormValidator) {
	v.forms.Register(typ, fn)
}

// FormTypes returns the node types with a registered form validator.
func (v *Validator) FormTypes() []NodeType {
	return v.forms.Keys()
}

// runForms runs the form validator of every node concurrently and returns
// the resulting issues in node order.
func (v *Validator) runForms(ctx context.Context, g *Graph) []Issue {
	if v.forms.Len() == 0 {
		return nil
	}

	nodes := g.nodes
	results := make([][]string, len(nodes))

	var eg errgroup.Group
	if v.formConcurrency > 0 {
		eg.SetLimit(v.formConcurrency)
	}
	for i, n := range nodes {
		fn, ok := v.forms.Get(n.Type)
		if !ok {
			continue
		}
		node := n.clone()
		eg.Go(func() error {
			msgs, err := callForm(ctx, fn, node)
			if err != nil {
				observability.LogFormValidatorFailed(v.logger, node.ID, string(node.Type), err)
				return nil
			}
			results[i] = msgs
			return nil
		})
	}
	_ = eg.Wait()

	var issues []Issue
	for i, msgs := range results {
		for _, m := range msgs {
			if m == "" {
				continue
			}
			issues = append(issues, Issue{Kind: IssueForm, Message: m, NodeIDs: []string{nodes[i].ID}})
		}
	}
	return issues
}

func callForm(ctx context.Context, fn FormValidator, node Node) (msgs []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &FormPanicError{NodeID: node.ID, Value: r, Stack: string(debug.Stack())}
		}
	}()
	return fn(ctx, node)
}

var formValidate = validator.New(validator.WithRequiredStructEnabled())

// StructForm returns a FormValidator that decodes a node's Params into T
// and applies T's `validate` struct tags. Each failed field yields one
// message prefixed with the node label. Params that cannot be decoded
// yield a single message.
//
//	type LLMParams struct {
//	    Model       string  `json:"model" validate:"required"`
//	    Temperature float64 `json:"temperature" validate:"gte=0,lte=2"`
//	}
//	v.RegisterForm(flowlive.NodeLLM, flowlive.StructForm[LLMParams]())
func StructForm[T any]() FormValidator {
	return func(_ context.Context, node Node) ([]string, error) {
		var params T
		if len(node.Params) > 0 {
			if err := json.Unmarshal(node.Params, &params); err != nil {
				return []string{fmt.Sprintf("%s: parameters are not valid JSON", node.Label())}, nil
			}
		}
		err := formValidate.Struct(params)
		if err == nil {
			return nil, nil
		}
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return nil, err
		}
		msgs := make([]string, 0, len(fieldErrs))
		for _, fe := range fieldErrs {
			msgs = append(msgs, fieldMessage(node.Label(), fe))
		}
		return msgs, nil
	}
}

func fieldMessage(label string, fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s: %s is required", label, fe.Field())
	case "min", "gte":
		return fmt.Sprintf("%s: %s must be at least %s", label, fe.Field(), fe.Param())
	case "max", "lte":
		return fmt.Sprintf("%s: %s must be at most %s", label, fe.Field(), fe.Param())
	case "oneof":
		return fmt.Sprintf("%s: %s must be one of [%s]", label, fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s: %s failed %q", label, fe.Field(), fe.Tag())
	}
}
