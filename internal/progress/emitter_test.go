package progress

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestEmitterEventSequence drives a run through the emitter and checks the
// payload shapes seen by a subscriber.
func TestEmitterEventSequence(t *testing.T) {
	t.Parallel()

	b := NewBroker(nil)
	_, ch := b.Subscribe("demo")
	e := NewEmitter(b, "demo")

	e.EmitStart(map[string]any{"max_ads": 5})
	e.EmitStepStart(1, "Facebook Ad Scraping", "scrape ads")
	e.EmitStepProgress(2, 1, 4, "shop.example.com")
	e.EmitStepComplete(2, map[string]any{"domains_enriched": 3})
	e.EmitLog("info", "hello")
	e.EmitError("exploded", 2)

	start := <-ch
	require.Equal(t, TypePipelineStart, start.Type)
	require.Equal(t, e.CorrelationID(), start.Data["correlation_id"])
	cfg, ok := start.Data["config"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, 5, cfg["max_ads"])

	stepStart := <-ch
	require.Equal(t, TypeStep1Start, stepStart.Type)
	require.Equal(t, 1, stepStart.Data["step"])

	prog := <-ch
	require.Equal(t, TypeStep2Progress, prog.Type)
	require.Equal(t, 25.0, prog.Data["percentage"])
	require.Equal(t, "shop.example.com", prog.Data["current_item"])

	done := <-ch
	require.Equal(t, TypeStep2Complete, done.Type)
	require.Contains(t, done.Data, "duration_seconds")

	logEvt := <-ch
	require.Equal(t, TypeLog, logEvt.Type)
	require.Equal(t, "info", logEvt.Data["level"])

	errEvt := <-ch
	require.Equal(t, TypePipelineError, errEvt.Type)
	require.Equal(t, 2, errEvt.Data["step"])

	st, ok := b.State("demo")
	require.True(t, ok)
	require.Equal(t, "failed", st.Status)
}

// TestEmitterZeroTotalProgress guards the divide-by-zero path.
func TestEmitterZeroTotalProgress(t *testing.T) {
	t.Parallel()

	b := NewBroker(nil)
	_, ch := b.Subscribe("empty")
	NewEmitter(b, "empty").EmitStepProgress(2, 0, 0, "")

	evt := <-ch
	require.Equal(t, 0.0, evt.Data["percentage"])
}
