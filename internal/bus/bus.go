// Package bus carries extraction progress events to in-process
// subscribers, a Kafka topic and an on-disk run log.
package bus

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Handler is a function that handles events.
type Handler func(ctx context.Context, event Event) error

// Bus defines the interface for event bus implementations.
type Bus interface {
	// Publish publishes an event to a topic.
	Publish(ctx context.Context, topic string, event Event) error

	// Subscribe registers handler for every topic matching pattern. A
	// pattern ending in ".*" matches all topics below that prefix.
	Subscribe(ctx context.Context, pattern string, handler Handler) error

	// Close closes the bus and releases resources.
	Close() error
}

// Topics for extraction progress.
const (
	TopicRunStarted       = "extraction.run.started"
	TopicFeatureStarted   = "extraction.feature.started"
	TopicFeatureCompleted = "extraction.feature.completed"
	TopicRunCompleted     = "extraction.run.completed"

	// TopicAll matches every extraction topic.
	TopicAll = "extraction.*"
)

// Match reports whether topic is selected by pattern.
func Match(pattern, topic string) bool {
	if prefix, ok := strings.CutSuffix(pattern, "*"); ok {
		return strings.HasPrefix(topic, prefix)
	}
	return pattern == topic
}

// Event is one progress notification of an extraction run.
type Event struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	Source    string `json:"source"`
	Timestamp int64  `json:"timestamp"`
	RunID     string `json:"run_id"`

	// Payload is a RunInfo for run events and a FeatureProgress for
	// feature events. Events read back from a run log carry the decoded
	// JSON instead; use Run and Progress to get the typed value.
	Payload any `json:"payload"`
}

// RunInfo describes a run at its start and its end.
type RunInfo struct {
	Mode     string   `json:"mode"`
	Rows     int      `json:"rows"`
	Features []string `json:"features"`
	Dir      string   `json:"dir,omitempty"`
	Files    []string `json:"files,omitempty"`
}

// FeatureProgress reports one feature of a run.
type FeatureProgress struct {
	Feature  string        `json:"feature"`
	Kind     string        `json:"kind"`
	Domain   string        `json:"domain"`
	Rows     int           `json:"rows"`
	Duration time.Duration `json:"duration,omitempty"`
}

// NewEvent creates an event of type typ with a fresh ID.
func NewEvent(typ, source, runID string, payload any) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      typ,
		Source:    source,
		Timestamp: time.Now().UnixMilli(),
		RunID:     runID,
		Payload:   payload,
	}
}

// Time returns the event timestamp.
func (e Event) Time() time.Time {
	return time.UnixMilli(e.Timestamp)
}

// Run returns the payload of a run event.
func (e Event) Run() (RunInfo, bool) {
	return payloadAs[RunInfo](e.Payload)
}

// Progress returns the payload of a feature event.
func (e Event) Progress() (FeatureProgress, bool) {
	return payloadAs[FeatureProgress](e.Payload)
}

func payloadAs[T any](payload any) (T, bool) {
	var v T
	switch p := payload.(type) {
	case T:
		return p, true
	case *T:
		if p == nil {
			return v, false
		}
		return *p, true
	case map[string]any:
		data, err := json.Marshal(p)
		if err != nil {
			return v, false
		}
		return v, json.Unmarshal(data, &v) == nil
	default:
		return v, false
	}
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(context.Context, string, Event) error     { return nil }
func (Nop) Subscribe(context.Context, string, Handler) error { return nil }
func (Nop) Close() error                                     { return nil }
