// Package extract implements C6: turning a ranked list of document
// candidates into token-budgeted DocumentContext values, with page-range
// merging and a multi-tier graceful-degradation ladder when nothing fits
// the budget cleanly.
package extract

import (
	"log/slog"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/karpator/docfusion/internal/metrics"
	"github.com/karpator/docfusion/internal/model"
)

var pageMarkerPattern = regexp.MustCompile(`page_(\d+)`)

// paddingSchedule is tried in order; the first padding whose rendered
// context fits the budget wins.
var paddingSchedule = []int{25, 15, 10, 5, 2, 1, 0}

// chunkRatioSchedule is the raw-chunk fallback's decreasing prefix sizes.
var chunkRatioSchedule = []float64{1.0, 0.9, 0.8, 0.7, 0.6, 0.5, 0.4, 0.3, 0.2, 0.1}

// EstimateTokens is a conservative character-based token-count heuristic:
// roughly 3.3 characters per token, inflated 10% for safety margin.
func EstimateTokens(text string) int {
	return int(float64(len(text)) / 3.3 * 1.1)
}

// ExtractContextDelta allocates a proportional token budget to each
// candidate (by hit count) and extracts a context for each, in input
// order, via ExtractWithBudget.
func ExtractContextDelta(candidates []model.DocumentCandidate, maxTokens, initialPadding int) []model.DocumentContext {
	totalWeight := 0
	for _, c := range candidates {
		totalWeight += c.HitCount()
	}

	out := make([]model.DocumentContext, len(candidates))
	for i, c := range candidates {
		budget := 0
		if totalWeight > 0 {
			budget = int(float64(c.HitCount()) / float64(totalWeight) * float64(maxTokens))
		}

		ctx, tokens, padding := ExtractWithBudget(c, budget, initialPadding)
		out[i] = ctx

		if budget > 0 {
			metrics.ContextBudgetUtilization.Observe(float64(tokens) / float64(budget))
		}

		slog.Info("[EXTRACTOR] extracted context",
			"document_id", truncateID(c.DocumentID),
			"hit_count", c.HitCount(),
			"tokens", tokens,
			"budget", budget,
			"padding", padding,
		)
	}
	return out
}

func truncateID(id string) string {
	if len(id) > 25 {
		return id[:25]
	}
	return id
}

// ExtractWithBudget runs the full tiered extraction for one candidate:
// empty -> full-or-empty (no page markers) -> padded page ranges ->
// raw-chunk fallback -> empty.
func ExtractWithBudget(cand model.DocumentCandidate, budget, initialPadding int) (model.DocumentContext, int, int) {
	if len(cand.Hits) == 0 || cand.FullContent == "" {
		return emptyContext(cand), 0, 0
	}

	sourceIndex := cand.Hits[0].SourceIndex
	pageNums := hitPageNumbers(cand.Hits)

	if len(pageNums) == 0 {
		ctx, tokens := fullOrEmpty(cand, sourceIndex, budget)
		return ctx, tokens, 0
	}

	available := availablePages(cand.FullContent)
	if len(available) == 0 {
		ctx, tokens := fullOrEmpty(cand, sourceIndex, budget)
		return ctx, tokens, 0
	}

	schedule := append([]int{initialPadding}, paddingSchedule[1:]...)

	for _, padding := range schedule {
		context := buildContext(cand.FullContent, pageNums, available, padding)
		tokens := EstimateTokens(context)
		if tokens > 0 && tokens <= budget {
			return model.DocumentContext{
				DocumentID:  cand.DocumentID,
				Context:     context,
				SourceIndex: sourceIndex,
				PDFGCSUri:   model.StripPageSuffix(cand.PDFGCSUri),
			}, tokens, padding
		}
	}

	ctx, tokens := extractRawChunks(cand, sourceIndex, budget)
	return ctx, tokens, -1
}

func hitPageNumbers(hits []model.SearchHit) []int {
	var pages []int
	for _, h := range hits {
		if h.Metadata.PageNumber > 0 {
			pages = append(pages, h.Metadata.PageNumber)
		}
	}
	return pages
}

func availablePages(content string) []int {
	matches := pageMarkerPattern.FindAllStringSubmatch(content, -1)
	seen := make(map[int]struct{})
	var pages []int
	for _, m := range matches {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		if _, ok := seen[n]; !ok {
			seen[n] = struct{}{}
			pages = append(pages, n)
		}
	}
	sort.Ints(pages)
	return pages
}

func buildContext(content string, pageNums, available []int, padding int) string {
	minAvail, maxAvail := available[0], available[len(available)-1]

	ranges := make([][2]int, len(pageNums))
	for i, p := range pageNums {
		start := p - padding
		if start < minAvail {
			start = minAvail
		}
		end := p + padding
		if end > maxAvail {
			end = maxAvail
		}
		ranges[i] = [2]int{start, end}
	}

	merged := mergeRanges(ranges)

	parts := make([]string, len(merged))
	for i, r := range merged {
		parts[i] = extractPages(content, r[0], r[1], maxAvail)
	}
	return strings.Join(parts, "\n...\n")
}

func mergeRanges(ranges [][2]int) [][2]int {
	sorted := append([][2]int(nil), ranges...)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i][0] != sorted[j][0] {
			return sorted[i][0] < sorted[j][0]
		}
		return sorted[i][1] < sorted[j][1]
	})

	merged := [][2]int{sorted[0]}
	for _, r := range sorted[1:] {
		last := &merged[len(merged)-1]
		if r[0] <= last[1]+1 {
			if r[1] > last[1] {
				last[1] = r[1]
			}
		} else {
			merged = append(merged, r)
		}
	}
	return merged
}

func extractPages(content string, start, end, lastPage int) string {
	startIdx := strings.Index(content, "page_"+strconv.Itoa(start))
	if startIdx == -1 {
		startIdx = 0
	}

	if end >= lastPage {
		return strings.TrimSpace(content[startIdx:])
	}

	endIdx := strings.Index(content[startIdx:], "page_"+strconv.Itoa(end+1))
	if endIdx == -1 {
		return strings.TrimSpace(content[startIdx:])
	}
	return strings.TrimSpace(content[startIdx : startIdx+endIdx])
}

func fullOrEmpty(cand model.DocumentCandidate, sourceIndex string, budget int) (model.DocumentContext, int) {
	tokens := EstimateTokens(cand.FullContent)
	if tokens <= budget {
		return model.DocumentContext{
			DocumentID:  cand.DocumentID,
			Context:     cand.FullContent,
			SourceIndex: sourceIndex,
			PDFGCSUri:   model.StripPageSuffix(cand.PDFGCSUri),
		}, tokens
	}
	return extractRawChunks(cand, sourceIndex, budget)
}

func extractRawChunks(cand model.DocumentCandidate, sourceIndex string, budget int) (model.DocumentContext, int) {
	total := len(cand.Hits)

	for _, ratio := range chunkRatioSchedule {
		limit := int(math.Ceil(float64(total) * ratio))
		if limit < 1 {
			limit = 1
		}
		if limit > total {
			limit = total
		}

		var parts []string
		tokens := 0
		for _, h := range cand.Hits[:limit] {
			hTokens := EstimateTokens(h.Content)
			if tokens+hTokens <= budget {
				parts = append(parts, h.Content)
				tokens += hTokens
			}
		}

		if len(parts) > 0 {
			return model.DocumentContext{
				DocumentID:  cand.DocumentID,
				Context:     strings.Join(parts, "\n\n"),
				SourceIndex: sourceIndex,
				PDFGCSUri:   model.StripPageSuffix(cand.PDFGCSUri),
			}, tokens
		}
	}

	return emptyContext(cand), 0
}

func emptyContext(cand model.DocumentCandidate) model.DocumentContext {
	sourceIndex := ""
	if len(cand.Hits) > 0 {
		sourceIndex = cand.Hits[0].SourceIndex
	}
	return model.DocumentContext{
		DocumentID:  cand.DocumentID,
		Context:     "",
		SourceIndex: sourceIndex,
	}
}

// FormatPageTags rewrites each "page_<N>" marker into an opening <PAGE N>
// tag, closing the previous page's tag at the boundary, and appends a
// final closing tag for the last page. Idempotent on output that already
// has no page_<N> markers left to rewrite.
func FormatPageTags(content string) string {
	if content == "" {
		return content
	}

	matches := pageMarkerWithNewlinePattern.FindAllStringSubmatchIndex(content, -1)
	if len(matches) == 0 {
		return content
	}

	var sb strings.Builder
	prevPage := ""
	lastPos := 0

	for _, m := range matches {
		start, end := m[0], m[1]
		pageNum := content[m[2]:m[3]]

		if prevPage != "" {
			sb.WriteString(content[lastPos:start])
			sb.WriteString("</PAGE " + prevPage + ">\n")
		} else if start > 0 {
			sb.WriteString(content[lastPos:start])
		}

		sb.WriteString("<PAGE " + pageNum + ">\n")
		prevPage = pageNum
		lastPos = end
	}

	sb.WriteString(content[lastPos:])
	if prevPage != "" {
		sb.WriteString("</PAGE " + prevPage + ">")
	}

	return sb.String()
}

var pageMarkerWithNewlinePattern = regexp.MustCompile(`page_(\d+)\n?`)
