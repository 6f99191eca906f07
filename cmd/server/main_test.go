package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/karpator/docfusion/internal/config"
	"github.com/karpator/docfusion/internal/model"
)

type stubSearcher struct {
	hits []model.SearchHit
}

func (s *stubSearcher) Search(ctx context.Context, index string, query map[string]any, size int, searchType string) ([]model.SearchHit, error) {
	if searchType == "full_content" {
		return nil, nil
	}
	return s.hits, nil
}

func TestGetPort_Default(t *testing.T) {
	os.Unsetenv("PORT")
	if got := getPort(); got != "8080" {
		t.Errorf("getPort() = %q, want %q", got, "8080")
	}
}

func TestGetPort_FromEnv(t *testing.T) {
	t.Setenv("PORT", "3000")
	if got := getPort(); got != "3000" {
		t.Errorf("getPort() = %q, want %q", got, "3000")
	}
}

func TestHealthEndpoint(t *testing.T) {
	router := newRouter(nil)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	contentType := rec.Header().Get("Content-Type")
	if contentType != "application/json" {
		t.Errorf("Content-Type = %q, want %q", contentType, "application/json")
	}

	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to parse response body: %v", err)
	}

	if body["status"] != "ok" {
		t.Errorf("status = %q, want %q", body["status"], "ok")
	}

	if body["version"] != Version {
		t.Errorf("version = %q, want %q", body["version"], Version)
	}
}

func TestHealthEndpoint_MethodNotAllowed(t *testing.T) {
	router := newRouter(nil)

	req := httptest.NewRequest(http.MethodPost, "/healthz", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusMethodNotAllowed)
	}
}

func TestVersion(t *testing.T) {
	if Version == "" {
		t.Error("Version must not be empty")
	}
}

func TestMetricsEndpoint(t *testing.T) {
	router := newRouter(nil)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestHandleRetrieve_RequiresIndices(t *testing.T) {
	a := &app{cfg: mustTestConfig(), searcher: &stubSearcher{}}
	router := newRouter(a)

	body, _ := json.Marshal(retrieveRequest{Keywords: []string{"x"}})
	req := httptest.NewRequest(http.MethodPost, "/v1/retrieve", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestHandleRetrieve_ReturnsJSONResults(t *testing.T) {
	hits := []model.SearchHit{
		{Content: "some content", Metadata: model.ChunkMetadata{DocumentID: "doc-a", PageNumber: 1}, Score: 3, SourceIndex: "reports", SearchType: "lexical"},
	}
	a := &app{cfg: mustTestConfig(), searcher: &stubSearcher{hits: hits}}
	router := newRouter(a)

	body, _ := json.Marshal(retrieveRequest{Keywords: []string{"content"}, Indices: []string{"reports"}})
	req := httptest.NewRequest(http.MethodPost, "/v1/retrieve", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d, body=%s", rec.Code, http.StatusOK, rec.Body.String())
	}

	var results []model.DocumentContext
	if err := json.Unmarshal(rec.Body.Bytes(), &results); err != nil {
		t.Fatalf("failed to parse response body: %v", err)
	}
	if len(results) != 1 || results[0].DocumentID != "doc-a" {
		t.Errorf("results = %+v, want one result for doc-a", results)
	}
}

func TestHandleAssets_RequiresURI(t *testing.T) {
	a := &app{cfg: mustTestConfig()}
	router := newRouter(a)

	req := httptest.NewRequest(http.MethodGet, "/v1/assets", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func mustTestConfig() *config.Config {
	return &config.Config{
		Port:                  8080,
		Environment:           "test",
		SearchStoreAddresses:  []string{"http://localhost:9200"},
		GCSBucketPrefix:       "docfusion-processed",
		GCSSignedURLExpiry:    15 * time.Minute,
		GCPProject:            "test-project",
		EmbeddingLocation:     "global",
		EmbeddingModel:        "text-embedding-004",
		SearchMaxConcurrent:   6,
		SearchResultsPerIndex: 50,
		SearchMinLexicalScore: 0.1,
		RRFK:                   60,
		RRFAgreementBoost:      0.3,
		RRFQueryOverlapWeight:  0.2,
		RRFMinOverlapThreshold: 0.3,
		RRFFuzzyThreshold:      85,
		RRFMinTokenCoverage:    0.5,
		RRFTemporalWeight:      0.15,
		RRFTemporalStrategy:    "interaction",
		MaxContextTokens: 125000,
		InitialPadding:   25,
		TopN:             3,
	}
}
