package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/IBM/sarama/mocks"
)

func TestKafkaConfig_Validation(t *testing.T) {
	tests := []struct {
		name    string
		cfg     KafkaConfig
		wantErr bool
	}{
		{
			name: "valid config",
			cfg:  KafkaConfig{Brokers: []string{"localhost:9092"}},
		},
		{
			name:    "empty brokers",
			cfg:     KafkaConfig{Brokers: []string{}},
			wantErr: true,
		},
		{
			name:    "invalid kafka version",
			cfg:     KafkaConfig{Brokers: []string{"localhost:9092"}, Version: "invalid"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.cfg
			_, err := cfg.saramaConfig()
			if (err != nil) != tt.wantErr {
				t.Errorf("saramaConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && cfg.ClientID != "lovrank" {
				t.Errorf("ClientID = %q, want default lovrank", cfg.ClientID)
			}
		})
	}
}

func TestParseKafkaBrokers(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"single broker", "localhost:9092", []string{"localhost:9092"}},
		{"multiple brokers", "broker1:9092,broker2:9092,broker3:9092", []string{"broker1:9092", "broker2:9092", "broker3:9092"}},
		{"with whitespace", "broker1:9092 , broker2:9092 , ", []string{"broker1:9092", "broker2:9092"}},
		{"empty string", "", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseKafkaBrokers(tt.input)
			if len(got) != len(tt.want) {
				t.Fatalf("ParseKafkaBrokers() = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("ParseKafkaBrokers()[%d] = %v, want %v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestKafkaPublisher_Publish(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		var e Event
		if err := json.Unmarshal(val, &e); err != nil {
			return err
		}
		if e.Type != TopicFeatureCompleted || e.RunID != "run-1" {
			return fmt.Errorf("unexpected event %+v", e)
		}
		return nil
	})

	p := newKafkaPublisher(KafkaConfig{Brokers: []string{"localhost:9092"}}, producer)
	event := NewEvent(TopicFeatureCompleted, "extraction", "run-1", map[string]string{"feature": "TF_T"})
	if err := p.Publish(context.Background(), TopicFeatureCompleted, event); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := p.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	if err := p.Publish(context.Background(), TopicFeatureCompleted, event); err == nil {
		t.Error("Publish() after Close() should return error")
	}
}

func TestKafkaPublisher_Subscribe(t *testing.T) {
	p := newKafkaPublisher(KafkaConfig{}, mocks.NewSyncProducer(t, nil))
	defer p.Close()

	err := p.Subscribe(context.Background(), "test", func(context.Context, Event) error { return nil })
	if err == nil {
		t.Error("Subscribe() should fail on a publish-only bus")
	}
}

func TestKafkaPublisher_Interface(t *testing.T) {
	var _ Bus = (*KafkaPublisher)(nil)
}
