package cache

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/lovbench/lovrank/internal/config"
	"github.com/lovbench/lovrank/internal/pkg/logger"
)

func newFloatStore(t *testing.T, d Durable) *Store[Pair, float64] {
	t.Helper()
	s, err := New(context.Background(), TableTF, PairKeys, Floats, d, logger.Discard())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return s
}

func TestStore_GetOrCompute_Once(t *testing.T) {
	s := newFloatStore(t, nil)
	ctx := context.Background()
	key := Pair{"http://schema.org/Person", "http://schema.org/"}

	var calls int32
	compute := func(context.Context) (float64, error) {
		atomic.AddInt32(&calls, 1)
		return 0.7, nil
	}

	for i := 0; i < 3; i++ {
		v, err := s.GetOrCompute(ctx, key, compute)
		if err != nil {
			t.Fatalf("GetOrCompute() error = %v", err)
		}
		if v != 0.7 {
			t.Errorf("GetOrCompute() = %v, want 0.7", v)
		}
	}
	if calls != 1 {
		t.Errorf("compute called %d times, want 1", calls)
	}
}

func TestStore_GetOrCompute_Concurrent(t *testing.T) {
	s := newFloatStore(t, nil)
	ctx := context.Background()

	var calls int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = s.GetOrCompute(ctx, Pair{"a", "b"}, func(context.Context) (float64, error) {
				atomic.AddInt32(&calls, 1)
				return 1, nil
			})
		}()
	}
	wg.Wait()

	if s.Len() != 1 {
		t.Errorf("Len() = %d, want 1", s.Len())
	}
	if calls < 1 {
		t.Errorf("compute never ran")
	}
}

func TestStore_GetOrCompute_Error(t *testing.T) {
	s := newFloatStore(t, nil)
	boom := errors.New("backend down")

	_, err := s.GetOrCompute(context.Background(), Pair{"a", "b"}, func(context.Context) (float64, error) {
		return 0, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("GetOrCompute() error = %v, want %v", err, boom)
	}
	if s.Len() != 0 {
		t.Error("failed computations must not be cached")
	}
}

func TestStore_Put_FirstWriterWins(t *testing.T) {
	s := newFloatStore(t, nil)
	ctx := context.Background()

	if _, err := s.Put(ctx, Pair{"a", "b"}, 1); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	got, _ := s.Put(ctx, Pair{"a", "b"}, 2)
	if got != 1 {
		t.Errorf("second Put() returned %v, want the first value 1", got)
	}
	if v, _ := s.Get(Pair{"a", "b"}); v != 1 {
		t.Errorf("Get() = %v, want 1", v)
	}
}

func TestCSVFile_Persistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache", "tf.csv")
	ctx := context.Background()

	d, err := OpenCSVFile(path)
	if err != nil {
		t.Fatalf("OpenCSVFile() error = %v", err)
	}
	s := newFloatStore(t, d)
	s.Put(ctx, Pair{"http://ex.org/a,b", "http://ex.org/"}, 0.1+0.2)
	s.Put(ctx, Pair{"x", "y"}, 3)
	s.Put(ctx, Pair{"x", "y"}, 4)
	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	d2, err := OpenCSVFile(path)
	if err != nil {
		t.Fatalf("OpenCSVFile() error = %v", err)
	}
	defer d2.Close()
	reloaded := newFloatStore(t, d2)

	if reloaded.Len() != 2 {
		t.Fatalf("reloaded Len() = %d, want 2", reloaded.Len())
	}
	if v, ok := reloaded.Get(Pair{"http://ex.org/a,b", "http://ex.org/"}); !ok || v != 0.1+0.2 {
		t.Errorf("reloaded value = %v, %v; floats must round-trip exactly", v, ok)
	}
	if v, _ := reloaded.Get(Pair{"x", "y"}); v != 3 {
		t.Errorf("reloaded x,y = %v, want 3", v)
	}
}

func TestCSVFile_SkipsBadRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "idf.csv")
	content := "http://a,1.5\nhttp://b,notanumber\nhttp://c,2,extra\nlonely\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	d, err := OpenCSVFile(path)
	if err != nil {
		t.Fatalf("OpenCSVFile() error = %v", err)
	}
	defer d.Close()

	s, err := New(context.Background(), TableIDF, StringKeys, Floats, d, logger.Discard())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if s.Len() != 1 {
		t.Errorf("Len() = %d, want 1", s.Len())
	}
}

func TestBackend_Open(t *testing.T) {
	dir := t.TempDir()

	b, err := NewBackend(config.CacheConfig{Kind: "csv", Dir: dir})
	if err != nil {
		t.Fatalf("NewBackend() error = %v", err)
	}
	defer b.Close()

	d, err := b.Open(TableIDF)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer d.Close()

	if f, ok := d.(*CSVFile); !ok || f.Path() != filepath.Join(dir, "idf.csv") {
		t.Errorf("Open() = %#v, want csv file in %s", d, dir)
	}

	mem, _ := NewBackend(config.CacheConfig{Kind: "memory"})
	if d, _ := mem.Open(TableIDF); d != (Discard{}) {
		t.Errorf("memory backend Open() = %#v, want Discard", d)
	}

	if _, err := NewBackend(config.CacheConfig{Kind: "nope"}); err == nil {
		t.Error("NewBackend() with unknown kind should fail")
	}
}

func TestBackend_Clear(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	b, err := NewBackend(config.CacheConfig{Kind: "csv", Dir: dir})
	if err != nil {
		t.Fatalf("NewBackend() error = %v", err)
	}
	defer b.Close()

	d, err := b.Open(TableTF)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if err := d.Append(ctx, []string{"http://schema.org/Person", "http://schema.org/"}, "0.7"); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	d.Close()

	if err := b.Clear(ctx, TableTF, TableIDF); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "tf.csv")); !os.IsNotExist(err) {
		t.Errorf("tf.csv still present after Clear(): %v", err)
	}
	if err := b.Clear(ctx, "bogus"); err == nil {
		t.Error("Clear(unknown table) should fail")
	}
}

func TestNewRedisClient_InvalidURL(t *testing.T) {
	if _, err := NewRedisClient("invalid://url"); err == nil {
		t.Fatal("expected error for invalid URL")
	}
}

func TestRedisDurable_Persistence(t *testing.T) {
	client, err := NewRedisClient("redis://localhost:6379/15")
	if err != nil {
		t.Skip("Redis not available:", err)
	}
	defer client.Close()

	ctx := context.Background()
	d := NewRedisDurable(client, "test_"+TableMaxFrequencies)
	defer d.Delete(ctx)
	if err := d.Delete(ctx); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	s, err := New(ctx, TableMaxFrequencies, StringKeys, Ints, d, logger.Discard())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	s.Put(ctx, "http://schema.org/", 42)
	s.Put(ctx, "http://xmlns.com/foaf/0.1/", 7)

	reloaded, err := New(ctx, TableMaxFrequencies, StringKeys, Ints, d, logger.Discard())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if reloaded.Len() != 2 {
		t.Errorf("reloaded Len() = %d, want 2", reloaded.Len())
	}
	if v, _ := reloaded.Get("http://schema.org/"); v != 42 {
		t.Errorf("reloaded value = %d, want 42", v)
	}
}
