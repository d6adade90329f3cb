package flowlive

import (
	"log/slog"

	"github.com/randalmurphal/flowlive/pkg/flowlive/event"
	"github.com/randalmurphal/flowlive/pkg/flowlive/observability"
)

// DefaultMaxPaths bounds branch traversal when no limit is configured.
const DefaultMaxPaths = 10000

// checkConfig holds the knobs of one validation pass.
type checkConfig struct {
	structural   bool
	maxPaths     int
	exclusive    map[NodeType]bool
	exclusiveFor map[NodeType]bool
	implicitElse bool
}

func defaultCheckConfig() checkConfig {
	return checkConfig{
		maxPaths:     DefaultMaxPaths,
		exclusive:    map[NodeType]bool{NodeInput: true, NodeChoose: true},
		exclusiveFor: map[NodeType]bool{NodeCondition: true},
		implicitElse: true,
	}
}

func (c checkConfig) clone() checkConfig {
	out := c
	out.exclusive = make(map[NodeType]bool, len(c.exclusive))
	for k, v := range c.exclusive {
		out.exclusive[k] = v
	}
	out.exclusiveFor = make(map[NodeType]bool, len(c.exclusiveFor))
	for k, v := range c.exclusiveFor {
		out.exclusiveFor[k] = v
	}
	return out
}

// ValidateOption adjusts a single validation pass.
type ValidateOption func(*checkConfig)

// WithStructural enables the structural checks. Default: off.
func WithStructural(enabled bool) ValidateOption {
	return func(c *checkConfig) { c.structural = enabled }
}

// WithMaxPaths bounds how many branch paths traversal may produce before
// the graph is reported as too complex. Default: 10000.
func WithMaxPaths(n int) ValidateOption {
	return func(c *checkConfig) {
		if n > 0 {
			c.maxPaths = n
		}
	}
}

// WithParallelExclusive adds node types that must not appear on two
// parallel sibling branches. input and choose are always included.
func WithParallelExclusive(types ...NodeType) ValidateOption {
	return func(c *checkConfig) {
		for _, t := range types {
			c.exclusive[t] = true
		}
	}
}

// WithExclusiveForks adds node types whose outgoing edges are mutually
// exclusive alternatives rather than parallel branches. condition is always
// included.
func WithExclusiveForks(types ...NodeType) ValidateOption {
	return func(c *checkConfig) {
		for _, t := range types {
			c.exclusiveFor[t] = true
		}
	}
}

// WithImplicitElse controls whether condition nodes have an implicit
// ElseHandle output in addition to their declared outputs. Default: on.
func WithImplicitElse(enabled bool) ValidateOption {
	return func(c *checkConfig) { c.implicitElse = enabled }
}

// ValidatorOption configures a Validator.
type ValidatorOption func(*Validator)

// WithDefaults sets the validation options applied to every pass. Options
// given to Validate are applied after them.
func WithDefaults(opts ...ValidateOption) ValidatorOption {
	return func(v *Validator) {
		for _, opt := range opts {
			opt(&v.defaults)
		}
	}
}

// WithBus publishes a NodeHighlight event after every pass.
func WithBus(bus event.Bus) ValidatorOption {
	return func(v *Validator) { v.bus = bus }
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) ValidatorOption {
	return func(v *Validator) { v.logger = logger }
}

// WithMetrics sets the metrics recorder. Default: no-op.
func WithMetrics(m observability.MetricsRecorder) ValidatorOption {
	return func(v *Validator) { v.metrics = m }
}

// WithSpanManager sets the span manager. Default: no-op.
func WithSpanManager(s observability.SpanManager) ValidatorOption {
	return func(v *Validator) { v.spans = s }
}

// WithFormConcurrency limits how many form validators run at once.
// Zero means unbounded.
func WithFormConcurrency(n int) ValidatorOption {
	return func(v *Validator) {
		if n >= 0 {
			v.formConcurrency = n
		}
	}
}

// WithForm registers a form validator at construction time.
func WithForm(typ NodeType, fn FormValidator) ValidatorOption {
	return func(v *Validator) { v.forms.Register(typ, fn) }
}
