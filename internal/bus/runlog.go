package bus

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/lovbench/lovrank/internal/pkg/errors"
)

const maxRecordSize = 1 << 20

// Record is one line of a run log.
type Record struct {
	Topic    string    `json:"topic"`
	Event    Event     `json:"event"`
	LoggedAt time.Time `json:"logged_at"`
}

// RunLog appends the events of every run to a JSON-lines file so a run's
// progress can be inspected or published again later.
type RunLog struct {
	path string

	mu   sync.Mutex
	file *os.File
	enc  *json.Encoder
}

// OpenRunLog opens path for appending, creating it if needed.
func OpenRunLog(path string) (*RunLog, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.IOError("creating run log directory", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, errors.IOError("opening run log", err)
	}
	return &RunLog{path: path, file: f, enc: json.NewEncoder(f)}, nil
}

// Path returns the log file path.
func (l *RunLog) Path() string {
	return l.path
}

// Append writes event as published on topic.
func (l *RunLog) Append(topic string, event Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return errors.New(errors.CodeUnavailable, "run log is closed")
	}
	if err := l.enc.Encode(Record{Topic: topic, Event: event, LoggedAt: time.Now().UTC()}); err != nil {
		return errors.IOError("appending to run log", err)
	}
	return nil
}

// ReadRunLog reads the records of runID from the log at path. A missing
// file holds no records.
func ReadRunLog(path, runID string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.IOError("opening run log", err)
	}
	defer f.Close()

	var out []Record
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), maxRecordSize)
	for sc.Scan() {
		var r Record
		if err := json.Unmarshal(sc.Bytes(), &r); err != nil {
			continue
		}
		if r.Event.RunID == runID {
			out = append(out, r)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, errors.IOError("scanning run log", err)
	}
	return out, nil
}

// Replay publishes records to target in order and returns how many were
// sent.
func Replay(ctx context.Context, records []Record, target Bus) (int, error) {
	for i, r := range records {
		if err := ctx.Err(); err != nil {
			return i, err
		}
		if err := target.Publish(ctx, r.Topic, r.Event); err != nil {
			return i, fmt.Errorf("replaying event %s of run %s: %w", r.Event.ID, r.Event.RunID, err)
		}
	}
	return len(records), nil
}

// Close closes the log file.
func (l *RunLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file, l.enc = nil, nil
	if err != nil {
		return errors.IOError("closing run log", err)
	}
	return nil
}
