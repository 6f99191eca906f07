package searchstore

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := New(Config{Addresses: []string{srv.URL}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestClient_Search_DecodesHits(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{
			"hits": { "hits": [
				{"_score": 1.5, "_index": "reports", "_source": {"content": "hello", "metadata": {"pdf_name": "doc-1", "page_number": 3}}}
			]}
		}`)
	})

	hits, err := c.Search(context.Background(), "reports", map[string]any{"query": map[string]any{"match_all": map[string]any{}}}, 10, "lexical")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("got %d hits, want 1", len(hits))
	}
	if hits[0].Metadata.DocumentID != "doc-1" || hits[0].Metadata.PageNumber != 3 {
		t.Errorf("unexpected metadata: %+v", hits[0].Metadata)
	}
	if hits[0].SearchType != "lexical" {
		t.Errorf("SearchType = %q, want lexical", hits[0].SearchType)
	}
}

// TestClient_Search_DecodesPDFNameNotDocumentID guards against the wire
// field regressing to "document_id": that key belongs to the teacher's own
// schema, not this store's, and decoding it silently groups every hit from
// every document into one candidate in C4.
func TestClient_Search_DecodesPDFNameNotDocumentID(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{
			"hits": { "hits": [
				{"_score": 2.0, "_index": "reports", "_source": {"content": "x", "metadata": {"document_id": "wrong-field", "pdf_name": "doc-2"}}}
			]}
		}`)
	})

	hits, err := c.Search(context.Background(), "reports", map[string]any{}, 10, "lexical")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("got %d hits, want 1", len(hits))
	}
	if hits[0].Metadata.DocumentID != "doc-2" {
		t.Errorf("DocumentID = %q, want doc-2 (decoded from pdf_name, not document_id)", hits[0].Metadata.DocumentID)
	}
}

func TestClient_Search_RetriesOn503ThenSucceeds(t *testing.T) {
	originalDelays := retryDelays
	retryDelays = []time.Duration{5 * time.Millisecond, 5 * time.Millisecond}
	t.Cleanup(func() { retryDelays = originalDelays })

	calls := 0
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			fmt.Fprint(w, `{"error":"unavailable"}`)
			return
		}
		fmt.Fprint(w, `{"hits": {"hits": []}}`)
	})

	_, err := c.Search(context.Background(), "reports", map[string]any{}, 10, "lexical")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls (1 + 2 retries), got %d", calls)
	}
}

func TestClient_Search_NonRetryableFailsImmediately(t *testing.T) {
	calls := 0
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":"bad request"}`)
	})

	_, err := c.Search(context.Background(), "reports", map[string]any{}, 10, "lexical")
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Fatalf("expected 1 call (no retry on 4xx), got %d", calls)
	}
}
