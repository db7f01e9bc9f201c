package progress

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// subscriberBuffer bounds each subscriber queue.
	subscriberBuffer = 100
	// defaultPublishTimeout caps how long Publish waits on one slow
	// subscriber before marking it dead.
	defaultPublishTimeout = time.Second
)

// Broker fans progress events out to per-keyword subscribers. Delivery is
// best-effort: subscribers whose queues stay full past the publish timeout
// are evicted so producers never block indefinitely. For a single keyword,
// events reach every live subscriber in publish order; there is no ordering
// guarantee across keywords.
type Broker struct {
	mu sync.Mutex
	// subs maps keyword -> subscriber id -> bounded delivery channel.
	subs  map[string]map[string]chan Event
	state map[string]*PipelineState

	timeout time.Duration
	logger  *zap.Logger
	nowFn   func() time.Time
}

// NewBroker builds an empty Broker. A nil logger is replaced with a no-op.
func NewBroker(logger *zap.Logger) *Broker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Broker{
		subs:    make(map[string]map[string]chan Event),
		state:   make(map[string]*PipelineState),
		timeout: defaultPublishTimeout,
		logger:  logger,
		nowFn:   time.Now,
	}
}

// Subscribe registers a new subscriber for the keyword and returns its id and
// delivery channel. If a pipeline state snapshot exists, a synthetic
// state_sync event is enqueued first so late joiners see current progress.
// The channel is closed on Unsubscribe or eviction.
func (b *Broker) Subscribe(keyword string) (string, <-chan Event) {
	id := uuid.NewString()
	ch := make(chan Event, subscriberBuffer)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.subs[keyword] == nil {
		b.subs[keyword] = make(map[string]chan Event)
	}
	b.subs[keyword][id] = ch

	if st, ok := b.state[keyword]; ok {
		snap := st.clone()
		ch <- Event{
			Type:      TypeStateSync,
			Keyword:   keyword,
			Timestamp: b.nowFn(),
			Data: map[string]any{
				"status":       snap.Status,
				"started_at":   snap.StartedAt,
				"current_step": snap.CurrentStep,
				"events":       snap.Events,
			},
		}
	}
	b.logger.Debug("stream subscriber added",
		zap.String("keyword", keyword),
		zap.String("subscriber_id", id),
	)
	return id, ch
}

// Unsubscribe removes and closes the subscriber's channel. The per-keyword
// map entry is dropped once empty; the state snapshot is retained until
// ClearState.
func (b *Broker) Unsubscribe(keyword, id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.removeLocked(keyword, id)
}

func (b *Broker) removeLocked(keyword, id string) {
	conns, ok := b.subs[keyword]
	if !ok {
		return
	}
	ch, ok := conns[id]
	if !ok {
		return
	}
	delete(conns, id)
	close(ch)
	if len(conns) == 0 {
		delete(b.subs, keyword)
	}
	b.logger.Debug("stream subscriber removed",
		zap.String("keyword", keyword),
		zap.String("subscriber_id", id),
	)
}

// Publish updates the keyword's state snapshot and broadcasts the event to
// every live subscriber. The snapshot is initialized on pipeline_start,
// appended to otherwise, and marked terminal on completion/error events. The
// whole operation runs under one critical section, which serializes per-
// keyword publish order.
func (b *Broker) Publish(keyword string, typ EventType, data map[string]any) {
	evt := Event{Type: typ, Keyword: keyword, Timestamp: b.nowFn(), Data: data}

	b.mu.Lock()
	defer b.mu.Unlock()

	switch {
	case typ == TypePipelineStart:
		b.state[keyword] = &PipelineState{
			Status:      "running",
			StartedAt:   evt.Timestamp,
			CurrentStep: "step1",
			Events:      []Event{},
		}
	default:
		if st, ok := b.state[keyword]; ok {
			st.Events = append(st.Events, evt)
			switch typ {
			case TypeStep2Start:
				st.CurrentStep = "step2"
			case TypePipelineComplete:
				st.Status = "completed"
			case TypePipelineError:
				st.Status = "failed"
			}
		}
	}

	conns, ok := b.subs[keyword]
	if !ok {
		return
	}
	var dead []string
	for id, ch := range conns {
		if !b.trySend(ch, evt) {
			dead = append(dead, id)
			b.logger.Warn("subscriber queue full, dropping connection",
				zap.String("keyword", keyword),
				zap.String("subscriber_id", id),
			)
		}
	}
	for _, id := range dead {
		b.removeLocked(keyword, id)
	}
}

// trySend enqueues evt, waiting at most the publish timeout on a full queue.
func (b *Broker) trySend(ch chan Event, evt Event) bool {
	select {
	case ch <- evt:
		return true
	default:
	}
	timer := time.NewTimer(b.timeout)
	defer timer.Stop()
	select {
	case ch <- evt:
		return true
	case <-timer.C:
		return false
	}
}

// State returns a copy of the retained snapshot for the keyword, if any.
func (b *Broker) State(keyword string) (PipelineState, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	st, ok := b.state[keyword]
	if !ok {
		return PipelineState{}, false
	}
	return st.clone(), true
}

// ClearState drops the retained snapshot for a finished keyword.
func (b *Broker) ClearState(keyword string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.state, keyword)
}

// SubscriberCount reports live subscribers for the keyword.
func (b *Broker) SubscriberCount(keyword string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[keyword])
}
