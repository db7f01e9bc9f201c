package progress

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestBrokerPublishReachesSubscribers verifies basic fan-out to multiple
// subscribers in publish order.
func TestBrokerPublishReachesSubscribers(t *testing.T) {
	t.Parallel()

	b := NewBroker(nil)
	_, ch1 := b.Subscribe("shoes")
	_, ch2 := b.Subscribe("shoes")

	b.Publish("shoes", TypePipelineStart, map[string]any{"message": "go"})
	b.Publish("shoes", TypeStep1Start, map[string]any{"step": 1})

	for _, ch := range []<-chan Event{ch1, ch2} {
		first := <-ch
		require.Equal(t, TypePipelineStart, first.Type)
		second := <-ch
		require.Equal(t, TypeStep1Start, second.Type)
	}
}

// TestBrokerLateSubscriberGetsStateSync asserts a subscriber joining after
// pipeline_start receives a synthetic state_sync carrying the prior history
// before any live event.
func TestBrokerLateSubscriberGetsStateSync(t *testing.T) {
	t.Parallel()

	b := NewBroker(nil)
	b.Publish("mugs", TypePipelineStart, map[string]any{"message": "go"})
	b.Publish("mugs", TypeStep1Start, map[string]any{"step": 1})

	_, ch := b.Subscribe("mugs")
	b.Publish("mugs", TypeStep1Complete, map[string]any{"step": 1})

	sync := <-ch
	require.Equal(t, TypeStateSync, sync.Type)
	require.Equal(t, "running", sync.Data["status"])
	history, ok := sync.Data["events"].([]Event)
	require.True(t, ok)
	require.Len(t, history, 1)
	require.Equal(t, TypeStep1Start, history[0].Type)

	live := <-ch
	require.Equal(t, TypeStep1Complete, live.Type)
}

// TestBrokerNoSyncWithoutState asserts subscribers to an idle keyword get
// nothing until the first publish.
func TestBrokerNoSyncWithoutState(t *testing.T) {
	t.Parallel()

	b := NewBroker(nil)
	_, ch := b.Subscribe("idle")
	select {
	case evt := <-ch:
		t.Fatalf("unexpected event %v", evt.Type)
	case <-time.After(20 * time.Millisecond):
	}
}

// TestBrokerEvictsSlowSubscriber fills one subscriber's queue and checks the
// broker drops it while the healthy subscriber keeps receiving.
func TestBrokerEvictsSlowSubscriber(t *testing.T) {
	t.Parallel()

	b := NewBroker(nil)
	b.timeout = 10 * time.Millisecond

	_, slow := b.Subscribe("gadgets")
	_ = slow // never drained
	_, fast := b.Subscribe("gadgets")

	b.Publish("gadgets", TypePipelineStart, nil)
	// One more than the queue capacity forces the eviction path.
	for i := 0; i <= subscriberBuffer; i++ {
		b.Publish("gadgets", TypeLog, map[string]any{"i": i})
	}
	require.Equal(t, 1, b.SubscriberCount("gadgets"))

	go func() {
		for range fast {
		}
	}()
	b.Publish("gadgets", TypeLog, map[string]any{"final": true})

	// The evicted channel must have been closed after draining its backlog.
	deadline := time.After(time.Second)
	for {
		select {
		case _, open := <-slow:
			if !open {
				return
			}
		case <-deadline:
			t.Fatal("evicted subscriber channel never closed")
		}
	}
}

// TestBrokerTerminalStatusAndClear walks the snapshot through completion and
// explicit clearing.
func TestBrokerTerminalStatusAndClear(t *testing.T) {
	t.Parallel()

	b := NewBroker(nil)
	b.Publish("hats", TypePipelineStart, nil)
	b.Publish("hats", TypeStep2Start, nil)

	st, ok := b.State("hats")
	require.True(t, ok)
	require.Equal(t, "running", st.Status)
	require.Equal(t, "step2", st.CurrentStep)

	b.Publish("hats", TypePipelineComplete, nil)
	st, ok = b.State("hats")
	require.True(t, ok)
	require.Equal(t, "completed", st.Status)

	b.ClearState("hats")
	_, ok = b.State("hats")
	require.False(t, ok)
}

// TestBrokerErrorMarksFailed asserts pipeline_error flips snapshot status.
func TestBrokerErrorMarksFailed(t *testing.T) {
	t.Parallel()

	b := NewBroker(nil)
	b.Publish("lamps", TypePipelineStart, nil)
	b.Publish("lamps", TypePipelineError, map[string]any{"error": "boom"})

	st, ok := b.State("lamps")
	require.True(t, ok)
	require.Equal(t, "failed", st.Status)
	require.Len(t, st.Events, 1)
}

// TestBrokerUnsubscribeClosesChannel verifies unsubscribe closes the channel
// and drops the keyword entry once empty.
func TestBrokerUnsubscribeClosesChannel(t *testing.T) {
	t.Parallel()

	b := NewBroker(nil)
	id, ch := b.Subscribe("belts")
	b.Unsubscribe("belts", id)

	_, open := <-ch
	require.False(t, open)
	require.Zero(t, b.SubscriberCount("belts"))

	// Idempotent.
	b.Unsubscribe("belts", id)
}

// TestBrokerKeywordsIsolated asserts events never cross keywords.
func TestBrokerKeywordsIsolated(t *testing.T) {
	t.Parallel()

	b := NewBroker(nil)
	_, chA := b.Subscribe("alpha")
	b.Publish("beta", TypePipelineStart, nil)

	select {
	case evt := <-chA:
		t.Fatalf("keyword alpha received %v for beta", evt.Type)
	case <-time.After(20 * time.Millisecond):
	}
}
