package observability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNoopMetrics(t *testing.T) {
	m := NoopMetrics{}
	ctx := context.Background()

	assert.NotPanics(t, func() {
		m.RecordValidation(ctx, 3, true, time.Millisecond)
		m.RecordEventReceived(ctx, "stream")
		m.RecordEventDropped(ctx, "malformed")
		m.RecordConnectionTransition(ctx, "open", "closed")
		m.RecordSendFailure(ctx, "input")
	})
}

func TestNoopSpanManager(t *testing.T) {
	sm := NoopSpanManager{}
	ctx := context.Background()

	gotCtx, span := sm.StartValidateSpan(ctx, 1, 0, false)
	assert.Equal(t, ctx, gotCtx)
	assert.False(t, span.IsRecording())

	gotCtx, span = sm.StartConnectSpan(ctx, "ws://x")
	assert.Equal(t, ctx, gotCtx)

	assert.NotPanics(t, func() {
		sm.AddSpanEvent(ctx, "x")
		sm.EndSpanWithError(span, errors.New("x"))
	})
}
