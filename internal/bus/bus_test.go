package bus

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lovbench/lovrank/internal/config"
	"github.com/lovbench/lovrank/internal/pkg/logger"
)

func TestMemoryBus_PublishSubscribe(t *testing.T) {
	bus := NewMemoryBus(logger.Discard())
	defer bus.Close()

	var received atomic.Int32
	var wg sync.WaitGroup

	// Subscribe to topic
	err := bus.Subscribe(context.Background(), "test.topic", func(ctx context.Context, event Event) error {
		received.Add(1)
		wg.Done()
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	// Publish events
	wg.Add(3)
	for i := 0; i < 3; i++ {
		err := bus.Publish(context.Background(), "test.topic", Event{
			ID:   "test-" + string(rune('0'+i)),
			Type: "test",
		})
		if err != nil {
			t.Fatalf("Publish() error = %v", err)
		}
	}

	// Wait for handlers
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		// Success
	case <-time.After(time.Second):
		t.Fatal("Timeout waiting for events")
	}

	if got := received.Load(); got != 3 {
		t.Errorf("Received %d events, want 3", got)
	}
}

func TestMemoryBus_MultipleSubscribers(t *testing.T) {
	bus := NewMemoryBus(logger.Discard())
	defer bus.Close()

	var count1, count2 atomic.Int32
	var wg sync.WaitGroup

	// First subscriber
	bus.Subscribe(context.Background(), "test.topic", func(ctx context.Context, event Event) error {
		count1.Add(1)
		wg.Done()
		return nil
	})

	// Second subscriber
	bus.Subscribe(context.Background(), "test.topic", func(ctx context.Context, event Event) error {
		count2.Add(1)
		wg.Done()
		return nil
	})

	// Publish one event - both subscribers should receive
	wg.Add(2)
	bus.Publish(context.Background(), "test.topic", Event{ID: "test", Type: "test"})

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Timeout")
	}

	if count1.Load() != 1 || count2.Load() != 1 {
		t.Errorf("Expected both subscribers to receive 1 event, got %d and %d", count1.Load(), count2.Load())
	}
}

func TestMemoryBus_NoSubscribers(t *testing.T) {
	bus := NewMemoryBus(logger.Discard())
	defer bus.Close()

	// Publishing to a topic with no subscribers should not error
	err := bus.Publish(context.Background(), "empty.topic", Event{ID: "test", Type: "test"})
	if err != nil {
		t.Errorf("Publish() to empty topic error = %v", err)
	}
}

func TestMemoryBus_Close(t *testing.T) {
	bus := NewMemoryBus(logger.Discard())

	// Close the bus
	if err := bus.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	// Operations should fail after close
	err := bus.Publish(context.Background(), "test", Event{})
	if err == nil {
		t.Error("Publish() after Close() should error")
	}

	err = bus.Subscribe(context.Background(), "test", func(ctx context.Context, event Event) error {
		return nil
	})
	if err == nil {
		t.Error("Subscribe() after Close() should error")
	}
}

func TestMemoryBus_Concurrent(t *testing.T) {
	bus := NewMemoryBus(logger.Discard())
	defer bus.Close()

	var received atomic.Int32
	var wg sync.WaitGroup

	// Subscribe
	bus.Subscribe(context.Background(), "concurrent", func(ctx context.Context, event Event) error {
		received.Add(1)
		wg.Done()
		return nil
	})

	// Publish concurrently
	numPublishers := 10
	eventsPerPublisher := 100
	wg.Add(numPublishers * eventsPerPublisher)

	for p := 0; p < numPublishers; p++ {
		go func(publisher int) {
			for i := 0; i < eventsPerPublisher; i++ {
				bus.Publish(context.Background(), "concurrent", Event{
					ID:   "test",
					Type: "test",
				})
			}
		}(p)
	}

	// Wait with timeout
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("Timeout: received %d events, expected %d", received.Load(), numPublishers*eventsPerPublisher)
	}

	expected := int32(numPublishers * eventsPerPublisher)
	if got := received.Load(); got != expected {
		t.Errorf("Received %d events, want %d", got, expected)
	}
}

func TestMemoryBus_HandlerErrorDoesNotFailPublish(t *testing.T) {
	bus := NewMemoryBus(logger.Discard())
	defer bus.Close()

	done := make(chan struct{})
	bus.Subscribe(context.Background(), TopicRunCompleted, func(ctx context.Context, event Event) error {
		close(done)
		return context.Canceled
	})

	if err := bus.Publish(context.Background(), TopicRunCompleted, NewEvent(TopicRunCompleted, "test", "run", nil)); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Timeout waiting for handler")
	}
}

func TestMemoryBus_OrderedDelivery(t *testing.T) {
	bus := NewMemoryBus(logger.Discard())

	var got []string
	bus.Subscribe(context.Background(), TopicAll, func(ctx context.Context, event Event) error {
		got = append(got, event.Type)
		return nil
	})

	topics := []string{TopicRunStarted, TopicFeatureStarted, TopicFeatureCompleted, TopicFeatureStarted, TopicFeatureCompleted, TopicRunCompleted}
	for _, topic := range topics {
		if err := bus.Publish(context.Background(), topic, NewEvent(topic, "test", "run-1", nil)); err != nil {
			t.Fatalf("Publish(%s) error = %v", topic, err)
		}
	}
	bus.Close()

	if len(got) != len(topics) {
		t.Fatalf("received %d events, want %d", len(got), len(topics))
	}
	for i := range topics {
		if got[i] != topics[i] {
			t.Errorf("event %d = %s, want %s", i, got[i], topics[i])
		}
	}
}

func TestMatch(t *testing.T) {
	tests := []struct {
		pattern, topic string
		want           bool
	}{
		{TopicAll, TopicRunStarted, true},
		{"extraction.feature.*", TopicFeatureCompleted, true},
		{"extraction.feature.*", TopicRunCompleted, false},
		{TopicFeatureCompleted, TopicFeatureCompleted, true},
		{TopicFeatureCompleted, TopicFeatureStarted, false},
	}
	for _, tt := range tests {
		if got := Match(tt.pattern, tt.topic); got != tt.want {
			t.Errorf("Match(%q, %q) = %v, want %v", tt.pattern, tt.topic, got, tt.want)
		}
	}
}

func TestNewEvent(t *testing.T) {
	a := NewEvent(TopicFeatureStarted, "extraction", "run-1", FeatureProgress{Feature: "TF_T"})
	b := NewEvent(TopicFeatureStarted, "extraction", "run-1", FeatureProgress{Feature: "TF_T"})

	if a.ID == "" || a.ID == b.ID {
		t.Errorf("event IDs should be unique, got %q and %q", a.ID, b.ID)
	}
	if a.Type != TopicFeatureStarted || a.RunID != "run-1" || a.Timestamp == 0 {
		t.Errorf("NewEvent() = %+v", a)
	}
	if p, ok := a.Progress(); !ok || p.Feature != "TF_T" {
		t.Errorf("Progress() = %+v, %v", p, ok)
	}
	if _, ok := a.Run(); ok {
		t.Error("Run() on a feature event should fail")
	}
}

func TestEvent_PayloadFromJSON(t *testing.T) {
	e := NewEvent(TopicRunCompleted, "extraction", "run-1", RunInfo{Mode: "term", Rows: 3, Features: []string{"TF_T"}})
	data, err := json.Marshal(e)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	var decoded Event
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}

	run, ok := decoded.Run()
	if !ok || run.Mode != "term" || run.Rows != 3 || len(run.Features) != 1 {
		t.Errorf("Run() = %+v, %v", run, ok)
	}
}

func TestNewBus(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.BusConfig
		wantErr bool
	}{
		{name: "default", cfg: config.BusConfig{}},
		{name: "memory", cfg: config.BusConfig{Type: "memory"}},
		{name: "kafka without brokers", cfg: config.BusConfig{Type: "kafka"}, wantErr: true},
		{name: "unknown", cfg: config.BusConfig{Type: "nats"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := NewBus(tt.cfg, logger.Discard())
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewBus() error = %v, wantErr %v", err, tt.wantErr)
			}
			if b != nil {
				b.Close()
			}
		})
	}
}

func TestNewBus_EventLog(t *testing.T) {
	b, err := NewBus(config.BusConfig{EventLog: t.TempDir() + "/events.jsonl"}, logger.Discard())
	if err != nil {
		t.Fatalf("NewBus() error = %v", err)
	}
	defer b.Close()

	if _, ok := b.(*RecordingBus); !ok {
		t.Errorf("NewBus() = %T, want *RecordingBus", b)
	}
}
