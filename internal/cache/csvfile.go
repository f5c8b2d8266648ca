package cache

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

// CSVFile is a durable table stored as an append-only CSV file. Each row
// holds the key columns followed by the value.
type CSVFile struct {
	path string

	mu     sync.Mutex
	file   *os.File
	writer *csv.Writer
}

// OpenCSVFile opens path for appending, creating it and its directory.
func OpenCSVFile(path string) (*CSVFile, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache file: %w", err)
	}

	return &CSVFile{
		path:   path,
		file:   file,
		writer: csv.NewWriter(file),
	}, nil
}

// Path returns the file location.
func (c *CSVFile) Path() string {
	return c.path
}

func (c *CSVFile) Load(ctx context.Context, fn func(key []string, value string) error) error {
	f, err := os.Open(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to open cache file: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading %s: %w", c.path, err)
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if len(record) < 2 {
			continue
		}
		if err := fn(record[:len(record)-1], record[len(record)-1]); err != nil {
			return err
		}
	}
}

func (c *CSVFile) Append(_ context.Context, key []string, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	row := make([]string, 0, len(key)+1)
	row = append(row, key...)
	row = append(row, value)

	if err := c.writer.Write(row); err != nil {
		return fmt.Errorf("failed to write cache row: %w", err)
	}
	c.writer.Flush()
	return c.writer.Error()
}

func (c *CSVFile) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.writer.Flush()
	if err := c.writer.Error(); err != nil {
		c.file.Close()
		return err
	}
	return c.file.Close()
}

// Discard keeps a table in memory only.
type Discard struct{}

func (Discard) Load(context.Context, func([]string, string) error) error { return nil }
func (Discard) Append(context.Context, []string, string) error          { return nil }
func (Discard) Close() error                                            { return nil }
