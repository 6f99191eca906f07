// Package searchstore implements C1 (the search-store client) and C2 (the
// lexical/vector query builders) against an Elasticsearch-compatible
// full-text-plus-vector index. It knows nothing about documents or ranking;
// it only knows how to run one query against one index and decode hits.
package searchstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"github.com/karpator/docfusion/internal/metrics"
	"github.com/karpator/docfusion/internal/model"
)

// retry schedule: base 2s, doubling, capped at 10s, 3 attempts total.
var retryDelays = []time.Duration{2 * time.Second, 4 * time.Second}

const retryCeiling = 10 * time.Second

// Client wraps a single long-lived *elasticsearch.Client, shared across the
// whole process (and so across every document-group fetch within a
// request) rather than reopened per call.
type Client struct {
	es *elasticsearch.Client
}

// Config carries the connection details for the search store.
type Config struct {
	Addresses []string
	APIKey    string
	ProxyURL  string
}

// New constructs a Client from addresses/API key/optional outbound proxy.
func New(cfg Config) (*Client, error) {
	esCfg := elasticsearch.Config{
		Addresses: cfg.Addresses,
		APIKey:    cfg.APIKey,
	}

	if cfg.ProxyURL != "" {
		proxyURL, err := url.Parse(cfg.ProxyURL)
		if err != nil {
			return nil, fmt.Errorf("searchstore.New: invalid proxy url: %w", err)
		}
		esCfg.Transport = &http.Transport{Proxy: http.ProxyURL(proxyURL)}
	}

	es, err := elasticsearch.NewClient(esCfg)
	if err != nil {
		return nil, fmt.Errorf("searchstore.New: %w", err)
	}
	return &Client{es: es}, nil
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			Score  float64 `json:"_score"`
			Index  string  `json:"_index"`
			Source struct {
				Content  string               `json:"content"`
				Metadata model.ChunkMetadata  `json:"metadata"`
			} `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// Search executes query against index, requesting up to size hits, and
// decodes the result into SearchHit values tagged with searchType.
// Retries transport errors and 429/5xx responses with exponential backoff
// (2s, then 4s, capped at 10s; 3 attempts total); 4xx responses fail
// immediately.
func (c *Client) Search(ctx context.Context, index string, query map[string]any, size int, searchType string) ([]model.SearchHit, error) {
	start := time.Now()
	defer func() {
		metrics.SearchDuration.WithLabelValues(searchType).Observe(time.Since(start).Seconds())
	}()

	body, err := json.Marshal(query)
	if err != nil {
		return nil, fmt.Errorf("searchstore.Search: marshal query: %w", err)
	}

	var parsed searchResponse
	op := fmt.Sprintf("search index=%s type=%s", index, searchType)
	err = c.withRetry(ctx, op, searchType, func() error {
		req := esapi.SearchRequest{
			Index: []string{index},
			Body:  bytes.NewReader(body),
			Size:  &size,
		}

		res, doErr := req.Do(ctx, c.es)
		if doErr != nil {
			return fmt.Errorf("%w: %v", ErrBackendUnavailable, doErr)
		}
		defer res.Body.Close()

		if res.IsError() {
			if isRetryableStatus(res.StatusCode) {
				return fmt.Errorf("%w: status %d", ErrBackendUnavailable, res.StatusCode)
			}
			return fmt.Errorf("%w: status %d: %s", ErrBackendError, res.StatusCode, res.String())
		}

		if decErr := json.NewDecoder(res.Body).Decode(&parsed); decErr != nil {
			return fmt.Errorf("searchstore.Search: decode: %w", decErr)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	hits := make([]model.SearchHit, 0, len(parsed.Hits.Hits))
	for _, h := range parsed.Hits.Hits {
		meta := h.Source.Metadata
		hits = append(hits, model.SearchHit{
			Content:     h.Source.Content,
			Metadata:    meta,
			Score:       h.Score,
			SourceIndex: index,
			SearchType:  searchType,
		})
	}
	return hits, nil
}

func isRetryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}

// withRetry runs fn up to len(retryDelays)+1 times, retrying only while fn
// returns an error wrapping ErrBackendUnavailable.
func (c *Client) withRetry(ctx context.Context, operation, searchType string, fn func() error) error {
	err := fn()
	if err == nil || !IsBackendUnavailable(err) {
		if err != nil {
			metrics.SearchFailures.WithLabelValues(searchType).Inc()
		}
		return err
	}

	for i, delay := range retryDelays {
		if delay > retryCeiling {
			delay = retryCeiling
		}

		metrics.SearchRetries.WithLabelValues(searchType).Inc()
		slog.Warn("[SEARCHSTORE] retrying after transient failure",
			"operation", operation,
			"attempt", i+2,
			"delay_ms", delay.Milliseconds(),
			"error", err.Error(),
		)

		select {
		case <-ctx.Done():
			return fmt.Errorf("%s: context cancelled during retry: %w", operation, ctx.Err())
		case <-time.After(delay):
		}

		err = fn()
		if err == nil {
			slog.Info("[SEARCHSTORE] retry succeeded", "operation", operation, "attempt", i+2)
			return nil
		}
		if !IsBackendUnavailable(err) {
			metrics.SearchFailures.WithLabelValues(searchType).Inc()
			return err
		}
	}

	metrics.SearchFailures.WithLabelValues(searchType).Inc()
	slog.Error("[SEARCHSTORE] retries exhausted", "operation", operation, "attempts", len(retryDelays)+1)
	return err
}
