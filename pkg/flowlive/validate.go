package flowlive

import (
	"context"
	"log/slog"
	"time"

	"github.com/randalmurphal/flowlive/pkg/flowlive/event"
	"github.com/randalmurphal/flowlive/pkg/flowlive/observability"
	"github.com/randalmurphal/flowlive/pkg/flowlive/registry"
)

// IssueKind classifies a validation issue.
type IssueKind string

// Issue kinds.
const (
	IssueForm                 IssueKind = "form"
	IssueStartCount           IssueKind = "start_count"
	IssueNoConnections        IssueKind = "no_connections"
	IssueStartNotLinked       IssueKind = "start_not_linked"
	IssueStartInbound         IssueKind = "start_inbound"
	IssueTooComplex           IssueKind = "too_complex"
	IssueUnconnectedNode      IssueKind = "unconnected_node"
	IssueParallelConflict     IssueKind = "parallel_conflict"
	IssueMissingEnd           IssueKind = "missing_end"
	IssueConditionUnconnected IssueKind = "condition_unconnected"
	IssueConditionDuplicate   IssueKind = "condition_duplicate"
)

// Messages reported by structural validation.
const (
	MsgStartCount           = "graph must have exactly one start node"
	MsgNoConnections        = "graph has no connections"
	MsgStartNotLinked       = "start node not linked"
	MsgStartInbound         = "start node has incoming connections"
	MsgTooComplex           = "graph too complex to validate"
	MsgUnconnectedNode      = "unconnected node"
	MsgParallelConflict     = "parallel input/output nodes"
	MsgMissingEnd           = "missing end node"
	MsgConditionUnconnected = "condition node has unconnected branch"
	MsgConditionDuplicate   = "condition node has duplicate branch connection"
)

// Issue is one validation finding.
type Issue struct {
	Kind    IssueKind `json:"kind"`
	Message string    `json:"message"`
	NodeIDs []string  `json:"node_ids,omitempty"`
}

// Result is the outcome of a validation pass. Errors and InvalidNodeIDs are
// never nil; both are empty when the graph is valid.
type Result struct {
	// Errors holds the distinct issue messages in first-seen order.
	Errors []string `json:"errors"`
	// InvalidNodeIDs holds the distinct flagged node ids in first-seen order.
	InvalidNodeIDs []string `json:"invalid_node_ids"`
	// Issues is the complete ordered list of findings.
	Issues []Issue `json:"issues"`
}

// OK reports whether no issues were found.
func (r Result) OK() bool { return len(r.Issues) == 0 }

func newResult(issues []Issue) Result {
	res := Result{Errors: []string{}, InvalidNodeIDs: []string{}, Issues: []Issue{}}
	seenMsg := make(map[string]bool)
	seenNode := make(map[string]bool)
	for _, is := range issues {
		res.Issues = append(res.Issues, is)
		if !seenMsg[is.Message] {
			seenMsg[is.Message] = true
			res.Errors = append(res.Errors, is.Message)
		}
		for _, id := range is.NodeIDs {
			if !seenNode[id] {
				seenNode[id] = true
				res.InvalidNodeIDs = append(res.InvalidNodeIDs, id)
			}
		}
	}
	return res
}

// Validator checks flow graphs before they are run. A Validator is safe for
// concurrent use once configured.
type Validator struct {
	forms           *registry.Registry[NodeType, FormValidator]
	defaults        checkConfig
	formConcurrency int

	bus     event.Bus
	logger  *slog.Logger
	metrics observability.MetricsRecorder
	spans   observability.SpanManager
}

// NewValidator creates a validator.
func NewValidator(opts ...ValidatorOption) *Validator {
	v := &Validator{
		forms:    registry.New[NodeType, FormValidator](),
		defaults: defaultCheckConfig(),
		logger:   slog.Default(),
		metrics:  observability.NoopMetrics{},
		spans:    observability.NoopSpanManager{},
	}
	for _, opt := range opts {
		opt(v)
	}
	if v.logger == nil {
		v.logger = slog.Default()
	}
	return v
}

// Validate checks g in two phases. Form validators always run and every
// message they return is collected. Structural checks run only when
// enabled, and stop early only when the graph has no usable start.
//
// Validate never modifies g. After each pass the full set of flagged node
// ids is published on the configured bus, so a clean pass clears earlier
// highlighting.
func (v *Validator) Validate(ctx context.Context, g *Graph, opts ...ValidateOption) Result {
	if g == nil {
		g, _ = NewGraph(nil, nil)
	}
	cfg := v.defaults.clone()
	for _, opt := range opts {
		opt(&cfg)
	}

	ctx, span := v.spans.StartValidateSpan(ctx, g.NodeCount(), g.EdgeCount(), cfg.structural)
	start := time.Now()

	issues := v.runForms(ctx, g)
	if cfg.structural {
		issues = append(issues, checkStructure(g, cfg)...)
	}
	res := newResult(issues)

	elapsed := time.Since(start)
	v.metrics.RecordValidation(ctx, len(res.Issues), cfg.structural, elapsed)
	observability.LogValidation(v.logger, g.NodeCount(), len(res.Issues), cfg.structural,
		float64(elapsed.Microseconds())/1000)

	if err := event.NodeHighlightTopic.Publish(ctx, v.bus, "validator", "",
		event.NodeHighlight{NodeIDs: append([]string{}, res.InvalidNodeIDs...)}); err != nil {
		v.logger.Warn("publish node highlight failed", slog.String("error", err.Error()))
	}
	v.spans.EndSpanWithError(span, nil)
	return res
}
