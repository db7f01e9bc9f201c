// Package progress implements the pipeline event bus: typed progress events,
// a per-keyword broadcast broker with bounded subscriber queues, and an
// emitter helper used by the orchestrator.
package progress

import "time"

// EventType tags the kind of milestone an Event represents.
type EventType string

// Event types broadcast over the bus. TypeStateSync is synthetic: it is
// enqueued only to late subscribers and carries the retained pipeline state.
// TypeConnected is emitted once per stream by the SSE handler as a
// connection ack.
const (
	TypePipelineStart    EventType = "pipeline_start"
	TypeStep1Start       EventType = "step1_start"
	TypeStep1Complete    EventType = "step1_complete"
	TypeStep2Start       EventType = "step2_start"
	TypeStep2Progress    EventType = "step2_progress"
	TypeStep2Complete    EventType = "step2_complete"
	TypePipelineComplete EventType = "pipeline_complete"
	TypePipelineError    EventType = "pipeline_error"
	TypeLog              EventType = "log"
	TypeStateSync        EventType = "state_sync"
	TypeConnected        EventType = "connected"
)

// Terminal reports whether the event ends a pipeline run.
func (t EventType) Terminal() bool {
	return t == TypePipelineComplete || t == TypePipelineError
}

// Event is one progress update for a keyword's run. Events are transient:
// they are delivered to live subscribers and retained only inside the run's
// state snapshot.
type Event struct {
	Type      EventType      `json:"type"`
	Keyword   string         `json:"keyword"`
	Timestamp time.Time      `json:"timestamp"`
	Data      map[string]any `json:"data"`
}

// PipelineState is the rolling last-known state retained per keyword so late
// subscribers can catch up.
type PipelineState struct {
	Status      string    `json:"status"`
	StartedAt   time.Time `json:"started_at"`
	CurrentStep string    `json:"current_step"`
	Events      []Event   `json:"events"`
}

func (s *PipelineState) clone() PipelineState {
	out := *s
	out.Events = append([]Event(nil), s.Events...)
	return out
}
