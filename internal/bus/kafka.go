package bus

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/IBM/sarama"

	"github.com/lovbench/lovrank/internal/pkg/errors"
)

// KafkaPublisher publishes events to Kafka topics. It does not consume;
// Subscribe fails.
type KafkaPublisher struct {
	config   KafkaConfig
	producer sarama.SyncProducer

	mu     sync.RWMutex
	closed bool
}

// KafkaConfig holds Kafka connection settings.
type KafkaConfig struct {
	Brokers  []string      // Kafka broker addresses
	ClientID string        // Client identifier
	Version  string        // Kafka version (e.g., "2.8.0")
	Timeout  time.Duration // Dial and write timeout (default: 10s)
}

func (cfg *KafkaConfig) saramaConfig() (*sarama.Config, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New(errors.CodeValidation, "kafka brokers cannot be empty")
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "lovrank"
	}
	if cfg.Version == "" {
		cfg.Version = "2.8.0"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}

	version, err := sarama.ParseKafkaVersion(cfg.Version)
	if err != nil {
		return nil, errors.Wrap(errors.CodeValidation, "invalid kafka version", err)
	}

	kc := sarama.NewConfig()
	kc.Version = version
	kc.ClientID = cfg.ClientID
	kc.Producer.Return.Successes = true
	kc.Producer.Return.Errors = true
	kc.Producer.Retry.Max = 3
	kc.Producer.RequiredAcks = sarama.WaitForAll
	kc.Net.DialTimeout = cfg.Timeout
	kc.Net.ReadTimeout = cfg.Timeout
	kc.Net.WriteTimeout = cfg.Timeout
	return kc, nil
}

// NewKafkaPublisher connects a synchronous producer to the brokers.
func NewKafkaPublisher(cfg KafkaConfig) (*KafkaPublisher, error) {
	kc, err := cfg.saramaConfig()
	if err != nil {
		return nil, err
	}

	producer, err := sarama.NewSyncProducer(cfg.Brokers, kc)
	if err != nil {
		return nil, errors.Wrap(errors.CodeUnavailable, "failed to create kafka producer", err)
	}
	return newKafkaPublisher(cfg, producer), nil
}

func newKafkaPublisher(cfg KafkaConfig, producer sarama.SyncProducer) *KafkaPublisher {
	return &KafkaPublisher{config: cfg, producer: producer}
}

// Publish publishes an event to a Kafka topic, keyed by run ID so the
// events of one run stay ordered within a partition.
func (p *KafkaPublisher) Publish(ctx context.Context, topic string, event Event) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return errors.New(errors.CodeUnavailable, "bus is closed")
	}

	data, err := json.Marshal(event)
	if err != nil {
		return errors.Wrap(errors.CodeInternal, "failed to marshal event", err)
	}

	key := event.RunID
	if key == "" {
		key = event.ID
	}
	msg := &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.ByteEncoder(data),
		Headers: []sarama.RecordHeader{
			{Key: []byte("event_type"), Value: []byte(event.Type)},
		},
	}

	if _, _, err := p.producer.SendMessage(msg); err != nil {
		return errors.Wrap(errors.CodeUnavailable, "failed to publish to kafka", err)
	}
	return nil
}

// Subscribe is not supported.
func (p *KafkaPublisher) Subscribe(context.Context, string, Handler) error {
	return errors.New(errors.CodeValidation, "kafka publisher does not consume")
}

// Close closes the producer.
func (p *KafkaPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true

	if err := p.producer.Close(); err != nil {
		return errors.Wrap(errors.CodeInternal, "closing kafka producer", err)
	}
	return nil
}

// ParseKafkaBrokers parses a comma-separated string of Kafka brokers.
func ParseKafkaBrokers(brokersStr string) []string {
	if brokersStr == "" {
		return nil
	}
	var brokers []string
	for _, b := range strings.Split(brokersStr, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}
