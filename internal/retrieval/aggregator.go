package retrieval

import (
	"context"
	"log/slog"
	"sync"

	"github.com/samber/lo"

	"github.com/karpator/docfusion/internal/model"
	"github.com/karpator/docfusion/internal/searchstore"
)

// Aggregate groups hits by document and fetches each group's full markdown
// content from the index that produced its first hit, using the same
// shared searcher the fan-out stage used (no per-group connection). A
// group whose fetch fails still yields a candidate, with FullContent left
// empty — aggregation never drops a document over a fetch failure.
// Candidates are returned in the order their documents first appear in hits.
func Aggregate(ctx context.Context, searcher Searcher, hits []model.SearchHit) []model.DocumentCandidate {
	groups := lo.GroupBy(hits, func(h model.SearchHit) string { return h.Metadata.DocumentID })

	docIDs := lo.Uniq(lo.Map(hits, func(h model.SearchHit, _ int) string { return h.Metadata.DocumentID }))
	candidates := make([]model.DocumentCandidate, len(docIDs))

	var wg sync.WaitGroup
	for i, docID := range docIDs {
		i, docID := i, docID
		groupHits := groups[docID]

		wg.Add(1)
		go func() {
			defer wg.Done()
			candidates[i] = buildCandidate(ctx, searcher, docID, groupHits)
		}()
	}
	wg.Wait()

	return candidates
}

func buildCandidate(ctx context.Context, searcher Searcher, docID string, hits []model.SearchHit) model.DocumentCandidate {
	cand := model.DocumentCandidate{
		DocumentID: docID,
		Hits:       hits,
		PDFGCSUri:  model.StripPageSuffix(firstGCSUri(hits)),
	}

	index := hits[0].SourceIndex
	fullContent, err := fetchFullContent(ctx, searcher, index, docID)
	if err != nil {
		logID := docID
		if len(logID) > 25 {
			logID = logID[:25]
		}
		slog.Warn("[RETRIEVAL] full content fetch failed, candidate kept with empty content",
			"document_id", logID, "index", index, "error", err.Error())
		return cand
	}
	cand.FullContent = fullContent
	return cand
}

func firstGCSUri(hits []model.SearchHit) string {
	for _, h := range hits {
		if h.Metadata.GCSUri != "" {
			return h.Metadata.GCSUri
		}
	}
	return ""
}

func fetchFullContent(ctx context.Context, searcher Searcher, index, docID string) (string, error) {
	hits, err := searcher.Search(ctx, index, searchstore.FullContentQuery(docID), 1, "full_content")
	if err != nil {
		return "", err
	}
	if len(hits) == 0 {
		return "", nil
	}
	return hits[0].Metadata.AllPagesMarkdown, nil
}
