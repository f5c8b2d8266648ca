package bus

import (
	"context"

	"github.com/lovbench/lovrank/internal/pkg/logger"
)

// RecordingBus appends every published event to a RunLog before handing
// it to the wrapped bus.
type RecordingBus struct {
	Bus
	runs *RunLog
	log  *logger.Logger
}

// NewRecordingBus wraps inner so that its events are kept in runs.
func NewRecordingBus(inner Bus, runs *RunLog, log *logger.Logger) *RecordingBus {
	if log == nil {
		log = logger.Default()
	}
	return &RecordingBus{Bus: inner, runs: runs, log: log.WithComponent("bus")}
}

// Publish records the event, then publishes it. A failed write is logged;
// the run goes on without its record.
func (b *RecordingBus) Publish(ctx context.Context, topic string, event Event) error {
	if err := b.runs.Append(topic, event); err != nil {
		b.log.Warn("Event not recorded", "path", b.runs.Path(), "type", event.Type, "run", event.RunID, "error", err)
	}
	return b.Bus.Publish(ctx, topic, event)
}

// Close closes the wrapped bus, then the run log.
func (b *RecordingBus) Close() error {
	err := b.Bus.Close()
	if cerr := b.runs.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}
