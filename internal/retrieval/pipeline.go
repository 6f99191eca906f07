package retrieval

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/karpator/docfusion/internal/extract"
	"github.com/karpator/docfusion/internal/metrics"
	"github.com/karpator/docfusion/internal/model"
	"github.com/karpator/docfusion/internal/ranking"
)

// Pipeline wires C3 -> C4 -> C5 -> C6 behind a single Retrieve call. It
// holds no per-request state; everything it needs travels through the
// Retrieve arguments.
type Pipeline struct {
	searcher Searcher
	search   model.SearchConfig
	rrf      model.RRFConfig
	maxTokens int
	initialPadding int
	topN      int
}

// NewPipeline constructs the orchestrator over a shared Searcher.
func NewPipeline(searcher Searcher, search model.SearchConfig, rrf model.RRFConfig, maxTokens, initialPadding, topN int) *Pipeline {
	return &Pipeline{
		searcher:       searcher,
		search:         search,
		rrf:            rrf,
		maxTokens:      maxTokens,
		initialPadding: initialPadding,
		topN:           topN,
	}
}

// Retrieve is the sole entry point exposed to the tool host: given
// keywords and per-field query vectors, it returns a token-budgeted
// context per ranked document. It never returns an error to the caller —
// every internal failure degrades to an empty (or partial) result, logged
// at the point of failure, matching the contract in the error-handling
// design.
func (p *Pipeline) Retrieve(ctx context.Context, keywords []string, vectors map[string][]float32) (results []model.DocumentContext) {
	requestID := uuid.New().String()

	defer func() {
		if r := recover(); r != nil {
			slog.Error("[RETRIEVAL] pipeline panic recovered", "request_id", requestID, "panic", r)
			metrics.RetrieveRequests.WithLabelValues("error").Inc()
			results = []model.DocumentContext{}
		}
	}()

	if len(keywords) == 0 && len(vectors) == 0 {
		slog.Warn("[RETRIEVAL] empty query, skipping backend", "request_id", requestID)
		metrics.RetrieveRequests.WithLabelValues("empty").Inc()
		return []model.DocumentContext{}
	}

	hits, err := Search(ctx, p.searcher, keywords, vectors, p.search)
	if err != nil {
		slog.Warn("[RETRIEVAL] search stage failed", "request_id", requestID, "error", err.Error())
		metrics.RetrieveRequests.WithLabelValues("error").Inc()
		return []model.DocumentContext{}
	}
	if len(hits) == 0 {
		slog.Info("[RETRIEVAL] no hits returned", "request_id", requestID)
		metrics.RetrieveRequests.WithLabelValues("empty").Inc()
		return []model.DocumentContext{}
	}

	candidates := Aggregate(ctx, p.searcher, hits)

	ranked := ranking.RankDocuments(candidates, keywords, p.rrf, p.topN)

	contexts := extract.ExtractContextDelta(ranked, p.maxTokens, p.initialPadding)
	for i := range contexts {
		contexts[i].Context = extract.FormatPageTags(contexts[i].Context)
	}

	slog.Info("[RETRIEVAL] pipeline complete",
		"request_id", requestID,
		"hits", len(hits),
		"candidates", len(candidates),
		"ranked", len(ranked),
	)

	metrics.RetrieveRequests.WithLabelValues("ok").Inc()
	return contexts
}
