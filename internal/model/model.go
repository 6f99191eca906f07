// Package model holds the request-scoped data types shared by the retrieval
// pipeline: chunk metadata as returned by the search store, per-hit and
// per-document aggregates, and the tunable knobs for ranking and search
// fan-out. Nothing here is persisted; every value lives for the duration of
// one retrieve() call.
package model

import (
	"regexp"
)

// ChunkMetadata describes one stored chunk as carried on the wire by the
// search store. All fields except DocumentID are optional: a hit may lack a
// page number (non-paginated sources) or a chunk index.
type ChunkMetadata struct {
	// DocumentID groups hits into one document (C4). The wire field name
	// is "pdf_name"; this alias keeps the Go side readable while the JSON
	// tag preserves the original name.
	DocumentID string `json:"pdf_name"`
	ChunkIndex int    `json:"chunk_index,omitempty"`
	PageNumber int    `json:"page_number,omitempty"`
	TotalChunks int   `json:"total_chunks,omitempty"`
	GCSUri     string `json:"gcs_uri,omitempty"`

	// AllPagesMarkdown carries the full document markdown on the one
	// representative hit that requested it (the C4 full-content fetch).
	// The wire field name is "all_md_pages"; this alias keeps the Go side
	// readable while the JSON tag preserves the original name.
	AllPagesMarkdown string `json:"all_md_pages,omitempty"`
}

// SearchHit is one scored result from a single search against one index.
// Immutable after construction.
type SearchHit struct {
	Content     string
	Metadata    ChunkMetadata
	Score       float64
	SourceIndex string

	// SearchType is "lexical" or "semantic:<field>".
	SearchType  string
	VectorField string
}

// Signature identifies a hit's position within its source document,
// independent of which search method produced it. Two hits with the same
// signature found by different search types are cross-method agreement.
func (h SearchHit) Signature() [2]int {
	return [2]int{h.Metadata.PageNumber, h.Metadata.ChunkIndex}
}

// DocumentCandidate aggregates every hit retrieved for one document across
// all lexical and vector searches in a request.
type DocumentCandidate struct {
	DocumentID  string
	Hits        []SearchHit
	FullContent string
	PDFGCSUri   string
}

// HitCount returns the number of hits aggregated for this candidate.
func (c DocumentCandidate) HitCount() int {
	return len(c.Hits)
}

// MaxScore returns the highest hit score, or 0 if there are no hits.
func (c DocumentCandidate) MaxScore() float64 {
	max := 0.0
	for _, h := range c.Hits {
		if h.Score > max {
			max = h.Score
		}
	}
	return max
}

// AvgScore returns the mean hit score, or 0 if there are no hits.
func (c DocumentCandidate) AvgScore() float64 {
	if len(c.Hits) == 0 {
		return 0.0
	}
	sum := 0.0
	for _, h := range c.Hits {
		sum += h.Score
	}
	return sum / float64(len(c.Hits))
}

// DocumentContext is the pipeline's final output for one document: a
// token-budgeted slice of its content ready to hand to a caller.
type DocumentContext struct {
	DocumentID  string
	Context     string
	SourceIndex string
	PDFGCSUri   string
}

// TemporalStrategy controls how the RRF scorer folds year-keyword matches
// into the temporal bonus.
type TemporalStrategy string

const (
	TemporalDisabled    TemporalStrategy = "disabled"
	TemporalInteraction TemporalStrategy = "interaction"
	TemporalWeighted    TemporalStrategy = "weighted"
	TemporalStrict      TemporalStrategy = "strict"
)

// RRFConfig tunes the reciprocal-rank-fusion scorer (C5).
type RRFConfig struct {
	K                   int
	AgreementBoost      float64
	QueryOverlapWeight  float64
	MinOverlapThreshold float64
	FuzzyThreshold      int
	MinTokenCoverage    float64
	TemporalWeight      float64
	TemporalStrategy    TemporalStrategy
	YearPattern         *regexp.Regexp
}

// DefaultRRFConfig returns the scorer defaults from the specification.
func DefaultRRFConfig() RRFConfig {
	return RRFConfig{
		K:                   60,
		AgreementBoost:      0.3,
		QueryOverlapWeight:  0.2,
		MinOverlapThreshold: 0.3,
		FuzzyThreshold:      85,
		MinTokenCoverage:    0.5,
		TemporalWeight:      0.15,
		TemporalStrategy:    TemporalInteraction,
		YearPattern:         regexp.MustCompile(`\b(19|20)\d{2}\b`),
	}
}

// SearchConfig tunes the fan-out coordinator (C3).
type SearchConfig struct {
	Indices          []string
	MaxConcurrent    int
	ResultsPerIndex  int
	MinLexicalScore  float64
}

// DefaultSearchConfig returns the fan-out defaults from the specification.
// Indices must still be set by the caller.
func DefaultSearchConfig() SearchConfig {
	return SearchConfig{
		MaxConcurrent:   6,
		ResultsPerIndex: 50,
		MinLexicalScore: 0.1,
	}
}

var pageSuffixPattern = regexp.MustCompile(`_page_\d+(\.[^.]+)?$`)

// StripPageSuffix removes a trailing "_page_<n>" marker from a GCS object
// name, e.g. "report_page_12.pdf" -> "report.pdf". Applied both when the
// aggregator derives a document's source PDF URI from one of its chunk
// URIs, and again on the extractor's output URI, so it must be idempotent:
// a URI with no such suffix passes through unchanged.
func StripPageSuffix(uri string) string {
	return pageSuffixPattern.ReplaceAllString(uri, "$1")
}
