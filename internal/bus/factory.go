package bus

import (
	"fmt"
	"strings"

	"github.com/lovbench/lovrank/internal/config"
	"github.com/lovbench/lovrank/internal/pkg/errors"
	"github.com/lovbench/lovrank/internal/pkg/logger"
)

// NewBus creates the bus named by cfg.Type. When an event log path is
// configured the bus records every run into it.
func NewBus(cfg config.BusConfig, log *logger.Logger) (Bus, error) {
	if log == nil {
		log = logger.Default()
	}

	var b Bus
	switch strings.ToLower(cfg.Type) {
	case "memory", "":
		b = NewMemoryBus(log)

	case "kafka":
		brokers := ParseKafkaBrokers(cfg.KafkaBrokers)
		if len(brokers) == 0 {
			return nil, errors.New(errors.CodeValidation, "kafka brokers not configured")
		}
		p, err := NewKafkaPublisher(KafkaConfig{Brokers: brokers})
		if err != nil {
			return nil, err
		}
		b = p

	default:
		return nil, errors.New(errors.CodeValidation, fmt.Sprintf("unknown bus type: %s", cfg.Type))
	}

	if cfg.EventLog == "" {
		return b, nil
	}
	runs, err := OpenRunLog(cfg.EventLog)
	if err != nil {
		b.Close()
		return nil, err
	}
	return NewRecordingBus(b, runs, log), nil
}
