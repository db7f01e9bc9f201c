package progress

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

// Emitter publishes the standard sequence of pipeline events for one run.
// Every payload carries the run's correlation id so stream consumers can tie
// events back to a submission.
type Emitter struct {
	broker        *Broker
	keyword       string
	correlationID string
	start         time.Time
}

// NewEmitter creates an Emitter for one pipeline run.
func NewEmitter(broker *Broker, keyword string) *Emitter {
	return &Emitter{
		broker:        broker,
		keyword:       keyword,
		correlationID: uuid.NewString(),
		start:         time.Now(),
	}
}

// CorrelationID returns the run's correlation id.
func (e *Emitter) CorrelationID() string { return e.correlationID }

// EmitStart announces the run with its submitted configuration.
func (e *Emitter) EmitStart(config map[string]any) {
	e.broker.Publish(e.keyword, TypePipelineStart, map[string]any{
		"correlation_id": e.correlationID,
		"config":         config,
		"message":        fmt.Sprintf("Starting pipeline for keyword: %s", e.keyword),
	})
}

// EmitStepStart announces a stage beginning.
func (e *Emitter) EmitStepStart(step int, name, details string) {
	e.broker.Publish(e.keyword, stepType(step, "start"), map[string]any{
		"correlation_id": e.correlationID,
		"step":           step,
		"step_name":      name,
		"details":        details,
		"message":        fmt.Sprintf("Step %d started: %s", step, name),
	})
}

// EmitStepProgress reports per-item progress within a stage.
func (e *Emitter) EmitStepProgress(step, done, total int, currentItem string) {
	pct := 0.0
	if total > 0 {
		pct = math.Round(float64(done)/float64(total)*1000) / 10
	}
	e.broker.Publish(e.keyword, stepType(step, "progress"), map[string]any{
		"correlation_id": e.correlationID,
		"step":           step,
		"progress":       done,
		"total":          total,
		"percentage":     pct,
		"current_item":   currentItem,
		"message":        fmt.Sprintf("Step %d: %d/%d completed", step, done, total),
	})
}

// EmitStepComplete reports a stage's results and elapsed time.
func (e *Emitter) EmitStepComplete(step int, results map[string]any) {
	e.broker.Publish(e.keyword, stepType(step, "complete"), map[string]any{
		"correlation_id":   e.correlationID,
		"step":             step,
		"results":          results,
		"duration_seconds": roundSeconds(time.Since(e.start)),
		"message":          fmt.Sprintf("Step %d completed successfully", step),
	})
}

// EmitPipelineComplete announces the run's terminal success.
func (e *Emitter) EmitPipelineComplete(summary map[string]any) {
	e.broker.Publish(e.keyword, TypePipelineComplete, map[string]any{
		"correlation_id":         e.correlationID,
		"summary":                summary,
		"total_duration_seconds": roundSeconds(time.Since(e.start)),
		"message":                "Pipeline completed successfully",
	})
}

// EmitError announces the run's terminal failure. step is 0 when the failure
// is not attributable to one stage.
func (e *Emitter) EmitError(errMsg string, step int) {
	data := map[string]any{
		"correlation_id": e.correlationID,
		"error":          errMsg,
		"message":        fmt.Sprintf("Pipeline error: %s", errMsg),
	}
	if step > 0 {
		data["step"] = step
	}
	e.broker.Publish(e.keyword, TypePipelineError, data)
}

// EmitLog streams a log line to live subscribers.
func (e *Emitter) EmitLog(level, message string) {
	e.broker.Publish(e.keyword, TypeLog, map[string]any{
		"correlation_id": e.correlationID,
		"level":          level,
		"message":        message,
	})
}

func stepType(step int, suffix string) EventType {
	return EventType(fmt.Sprintf("step%d_%s", step, suffix))
}

func roundSeconds(d time.Duration) float64 {
	return math.Round(d.Seconds()*10) / 10
}
