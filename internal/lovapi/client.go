// Package lovapi provides a throttled client for the LOV term and
// vocabulary search APIs. Raw responses are archived per query and
// scores are mirrored into durable cache tables, so each query reaches
// the API at most once across runs.
package lovapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/lovbench/lovrank/internal/cache"
	"github.com/lovbench/lovrank/internal/config"
	"github.com/lovbench/lovrank/internal/model"
	"github.com/lovbench/lovrank/internal/pkg/errors"
	"github.com/lovbench/lovrank/internal/pkg/logger"
)

// PageSize is requested from every search endpoint.
const PageSize = 500

// fetched marks a query whose results are present in a table.
const fetched = ""

type endpoint string

const (
	termEndpoint  endpoint = "term"
	vocabEndpoint endpoint = "ontology"
)

// Client queries the LOV search API.
type Client struct {
	termURL     string
	vocabURL    string
	responseDir string
	httpClient  *http.Client
	log         *logger.Logger

	termLimiter  *rate.Limiter
	vocabLimiter *rate.Limiter

	termMatch  *cache.Store[cache.Pair, float64]
	termPop    *cache.Store[cache.Pair, float64]
	vocabMatch *cache.Store[cache.Pair, float64]

	mu     sync.Mutex
	failed map[string]error
}

// New creates a client. Score tables are opened on backend; a nil backend
// keeps them in memory.
func New(ctx context.Context, cfg config.LOVConfig, backend *cache.Backend, log *logger.Logger) (*Client, error) {
	if log == nil {
		log = logger.Default()
	}
	log = log.WithComponent("lovapi")

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	c := &Client{
		termURL:      cfg.TermURL,
		vocabURL:     cfg.VocabURL,
		responseDir:  cfg.ResponseDir,
		httpClient:   &http.Client{Timeout: timeout},
		log:          log,
		termLimiter:  newLimiter(cfg.TermDelay),
		vocabLimiter: newLimiter(cfg.VocabDelay),
		failed:       make(map[string]error),
	}

	tables := []struct {
		name string
		dst  **cache.Store[cache.Pair, float64]
	}{
		{cache.TableLOVTermsMatch, &c.termMatch},
		{cache.TableLOVTermsPopular, &c.termPop},
		{cache.TableLOVVocabsMatch, &c.vocabMatch},
	}
	for _, tbl := range tables {
		var durable cache.Durable = cache.Discard{}
		if backend != nil {
			d, err := backend.Open(tbl.name)
			if err != nil {
				return nil, fmt.Errorf("opening %s: %w", tbl.name, err)
			}
			durable = d
		}
		s, err := cache.New(ctx, tbl.name, cache.PairKeys, cache.Floats, durable, log)
		if err != nil {
			return nil, err
		}
		*tbl.dst = s
	}

	return c, nil
}

// newLimiter allows one call per delay. The initial token is spent so
// that the first call waits too.
func newLimiter(delay time.Duration) *rate.Limiter {
	if delay <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	l := rate.NewLimiter(rate.Every(delay), 1)
	l.Allow()
	return l
}

// Close closes the score tables.
func (c *Client) Close() error {
	var first error
	for _, s := range []*cache.Store[cache.Pair, float64]{c.termMatch, c.termPop, c.vocabMatch} {
		if err := s.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// TermMatch returns the LOV hit score of t for q, 0 when LOV did not
// return t.
func (c *Client) TermMatch(ctx context.Context, q model.Query, t model.Term) (float64, error) {
	if err := c.ensureTerms(ctx, q); err != nil {
		return 0, err
	}
	v, _ := c.termMatch.Get(cache.Pair{q.String(), t.URI})
	return v, nil
}

// TermPopularity returns the LOV popularity score of t for q.
func (c *Client) TermPopularity(ctx context.Context, q model.Query, t model.Term) (float64, error) {
	if err := c.ensureTerms(ctx, q); err != nil {
		return 0, err
	}
	v, _ := c.termPop.Get(cache.Pair{q.String(), t.URI})
	return v, nil
}

// VocabMatch returns the LOV vocabulary search score of o for q.
func (c *Client) VocabMatch(ctx context.Context, q model.Query, o model.Ontology) (float64, error) {
	if err := c.ensureVocabs(ctx, q); err != nil {
		return 0, err
	}
	v, _ := c.vocabMatch.Get(cache.Pair{q.String(), o.URI})
	return v, nil
}

type termResponse struct {
	Results []struct {
		URI             json.RawMessage `json:"uri"`
		ScoreFeatureHit float64         `json:"scoreFeatureHit"`
		ScoreFeaturePop float64         `json:"scoreFeaturePop"`
	} `json:"results"`
}

type vocabResponse struct {
	Results []struct {
		ID    json.RawMessage `json:"_id"`
		Score float64         `json:"_score"`
	} `json:"results"`
}

func (c *Client) ensureTerms(ctx context.Context, q model.Query) error {
	marker := cache.Pair{q.String(), fetched}
	if _, ok := c.termMatch.Get(marker); ok {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.termMatch.Get(marker); ok {
		return nil
	}
	if err, ok := c.failed[string(termEndpoint)+q.Key()]; ok {
		return err
	}

	body, err := c.response(ctx, termEndpoint, q)
	if err == nil {
		err = c.storeTerms(ctx, q, body)
	}
	if err != nil {
		c.failed[string(termEndpoint)+q.Key()] = err
		return err
	}
	return nil
}

func (c *Client) storeTerms(ctx context.Context, q model.Query, body []byte) error {
	var resp termResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return errors.RemoteError("decoding LOV term response", err)
	}

	for _, r := range resp.Results {
		uri := resultURI(r.URI)
		if uri == "" {
			continue
		}
		key := cache.Pair{q.String(), uri}
		if _, err := c.termMatch.Put(ctx, key, round6(r.ScoreFeatureHit)); err != nil {
			return err
		}
		if _, err := c.termPop.Put(ctx, key, round6(r.ScoreFeaturePop)); err != nil {
			return err
		}
	}

	n := float64(len(resp.Results))
	if _, err := c.termPop.Put(ctx, cache.Pair{q.String(), fetched}, n); err != nil {
		return err
	}
	_, err := c.termMatch.Put(ctx, cache.Pair{q.String(), fetched}, n)
	return err
}

func (c *Client) ensureVocabs(ctx context.Context, q model.Query) error {
	marker := cache.Pair{q.String(), fetched}
	if _, ok := c.vocabMatch.Get(marker); ok {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.vocabMatch.Get(marker); ok {
		return nil
	}
	if err, ok := c.failed[string(vocabEndpoint)+q.Key()]; ok {
		return err
	}

	body, err := c.response(ctx, vocabEndpoint, q)
	if err == nil {
		err = c.storeVocabs(ctx, q, body)
	}
	if err != nil {
		c.failed[string(vocabEndpoint)+q.Key()] = err
		return err
	}
	return nil
}

func (c *Client) storeVocabs(ctx context.Context, q model.Query, body []byte) error {
	var resp vocabResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return errors.RemoteError("decoding LOV vocabulary response", err)
	}

	for _, r := range resp.Results {
		uri := strings.ReplaceAll(resultURI(r.ID), `"`, "")
		if uri == "" {
			continue
		}
		if _, err := c.vocabMatch.Put(ctx, cache.Pair{q.String(), uri}, round6(r.Score)); err != nil {
			return err
		}
	}

	_, err := c.vocabMatch.Put(ctx, cache.Pair{q.String(), fetched}, float64(len(resp.Results)))
	return err
}

// response returns the archived response of q, fetching and archiving it
// when missing.
func (c *Client) response(ctx context.Context, ep endpoint, q model.Query) ([]byte, error) {
	path := c.archivePath(ep, q)
	if path != "" {
		if body, err := os.ReadFile(path); err == nil {
			c.log.Debug("Reusing archived LOV response", "path", path)
			return body, nil
		}
	}

	base, limiter := c.termURL, c.termLimiter
	if ep == vocabEndpoint {
		base, limiter = c.vocabURL, c.vocabLimiter
	}
	if err := limiter.Wait(ctx); err != nil {
		return nil, err
	}

	url := base + q.LOVAPIQuery() + fmt.Sprintf("&page_size=%d", PageSize)
	c.log.Debug("Querying LOV", "url", url)

	body, err := c.get(ctx, url)
	if err != nil {
		return nil, err
	}

	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, errors.IOError("creating response archive", err)
		}
		if err := os.WriteFile(path, body, 0o644); err != nil {
			return nil, errors.IOError("archiving LOV response", err)
		}
	}
	return body, nil
}

func (c *Client) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.RemoteError("LOV request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.RemoteError("reading LOV response", err)
	}
	if resp.StatusCode >= 400 {
		return nil, errors.RemoteError(fmt.Sprintf("LOV returned HTTP %d", resp.StatusCode), nil)
	}
	return body, nil
}

// archivePath returns <dir>/<term|ontology>/<query>.json, empty when
// archiving is disabled.
func (c *Client) archivePath(ep endpoint, q model.Query) string {
	if c.responseDir == "" {
		return ""
	}
	name := strings.ReplaceAll(q.String(), "/", "_") + ".json"
	return filepath.Join(c.responseDir, string(ep), name)
}

// resultURI reads a URI that LOV serialises either as a string or as a
// one-element array.
func resultURI(raw json.RawMessage) string {
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		if len(list) == 0 {
			return ""
		}
		return list[0]
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSuffix(strings.TrimPrefix(s, `["`), `"]`)
	}
	return ""
}

func round6(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}
