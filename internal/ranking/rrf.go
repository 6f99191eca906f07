// Package ranking implements C5: the reciprocal-rank-fusion scorer that
// turns a set of aggregated document candidates into a ranked, truncated
// list, using base RRF plus cross-method agreement, query-overlap, and
// temporal bonuses.
package ranking

import (
	"regexp"
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"
	"github.com/samber/lo"

	"github.com/karpator/docfusion/internal/model"
)

// Scored pairs a candidate with its fused score and per-component
// breakdown, useful for debugging and the test fixtures in §8.
type Scored struct {
	Candidate model.DocumentCandidate
	FinalScore float64
	Base       float64
	Agreement  float64
	Overlap    float64
	Temporal   float64
}

// textCache memoizes the lower-cased, whitespace-tokenized text of each
// candidate across the four bonus computations within one RankDocuments
// call. Keyed by the candidate's position in the input slice — Go has no
// object-identity hash, so this is the closest equivalent to the id()-keyed
// cache in the original, and like it is scoped to a single call.
type textCache struct {
	tokens map[int][]string
}

func newTextCache() *textCache {
	return &textCache{tokens: make(map[int][]string)}
}

func (c *textCache) tokensFor(idx int, cand model.DocumentCandidate) []string {
	if toks, ok := c.tokens[idx]; ok {
		return toks
	}
	var sb strings.Builder
	for _, h := range cand.Hits {
		sb.WriteString(strings.ToLower(h.Content))
		sb.WriteByte(' ')
	}
	toks := strings.Fields(sb.String())
	c.tokens[idx] = toks
	return toks
}

// RankDocuments scores every candidate against keywords and returns the
// top topN, sorted descending by final score with ties broken by input
// order (stable sort).
func RankDocuments(candidates []model.DocumentCandidate, keywords []string, cfg model.RRFConfig, topN int) []model.DocumentCandidate {
	scored := ScoreDocuments(candidates, keywords, cfg)

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].FinalScore > scored[j].FinalScore
	})

	if topN > len(scored) {
		topN = len(scored)
	}

	out := make([]model.DocumentCandidate, topN)
	for i := 0; i < topN; i++ {
		out[i] = scored[i].Candidate
	}
	return out
}

// ScoreDocuments computes the fused score for every candidate without
// truncating or sorting. Exposed separately so tests can inspect the
// per-component breakdown (see the S1/S2 scenarios).
func ScoreDocuments(candidates []model.DocumentCandidate, keywords []string, cfg model.RRFConfig) []Scored {
	cache := newTextCache()
	out := make([]Scored, len(candidates))

	for i, cand := range candidates {
		base := baseRRF(cand.Hits, cfg.K)
		agreement := agreementBonus(cand.Hits, cfg.AgreementBoost)
		overlap := queryOverlapBonus(cache, i, cand, keywords, cfg)
		temporal := temporalBonus(cache, i, cand, keywords, cfg)

		out[i] = Scored{
			Candidate:  cand,
			Base:       base,
			Agreement:  agreement,
			Overlap:    overlap,
			Temporal:   temporal,
			FinalScore: base + agreement + overlap + temporal,
		}
	}
	return out
}

// baseRRF partitions hits by search type, ranks each partition by score
// descending, and sums 1/(k+rank) contributions across partitions.
func baseRRF(hits []model.SearchHit, k int) float64 {
	if len(hits) == 0 {
		return 0
	}

	byType := lo.GroupBy(hits, func(h model.SearchHit) string { return h.SearchType })

	total := 0.0
	for _, group := range byType {
		sort.SliceStable(group, func(i, j int) bool { return group[i].Score > group[j].Score })
		for rank := range group {
			total += 1.0 / float64(k+rank+1)
		}
	}
	return total
}

// agreementBonus rewards chunks that were surfaced by more than one search
// method: (distinct signatures seen under ≥2 search types / total hits) *
// agreement_boost.
func agreementBonus(hits []model.SearchHit, boost float64) float64 {
	if len(hits) == 0 {
		return 0
	}

	typesBySignature := make(map[[2]int]map[string]struct{})
	for _, h := range hits {
		sig := h.Signature()
		if typesBySignature[sig] == nil {
			typesBySignature[sig] = make(map[string]struct{})
		}
		typesBySignature[sig][h.SearchType] = struct{}{}
	}

	agreeing := 0
	for _, types := range typesBySignature {
		if len(types) >= 2 {
			agreeing++
		}
	}

	return (float64(agreeing) / float64(len(hits))) * boost
}

// queryOverlapBonus measures how well the candidate's text covers the
// query keywords via fuzzy token matching.
func queryOverlapBonus(cache *textCache, idx int, cand model.DocumentCandidate, keywords []string, cfg model.RRFConfig) float64 {
	if len(keywords) == 0 {
		return 0
	}

	docTokens := cache.tokensFor(idx, cand)
	ratio := averageKeywordMatch(docTokens, keywords, cfg.FuzzyThreshold, cfg.MinTokenCoverage)

	if ratio < cfg.MinOverlapThreshold {
		return 0
	}
	return ratio * cfg.QueryOverlapWeight
}

// averageKeywordMatch scores each keyword against docTokens and averages.
// A single-token keyword scores 1.0 if any document token fuzzy-matches it;
// a multi-token keyword scores the fraction of its own tokens that find a
// fuzzy match, collapsed to 0 if that fraction is below minCoverage.
func averageKeywordMatch(docTokens []string, keywords []string, fuzzyThreshold int, minCoverage float64) float64 {
	if len(keywords) == 0 {
		return 0
	}

	sum := 0.0
	for _, kw := range keywords {
		sum += keywordMatchScore(docTokens, kw, fuzzyThreshold, minCoverage)
	}
	return sum / float64(len(keywords))
}

func keywordMatchScore(docTokens []string, keyword string, fuzzyThreshold int, minCoverage float64) float64 {
	kwTokens := strings.Fields(strings.ToLower(keyword))
	if len(kwTokens) == 0 {
		return 0
	}

	if len(kwTokens) == 1 {
		if anyFuzzyMatch(docTokens, kwTokens[0], fuzzyThreshold) {
			return 1.0
		}
		return 0.0
	}

	matched := 0
	for _, t := range kwTokens {
		if anyFuzzyMatch(docTokens, t, fuzzyThreshold) {
			matched++
		}
	}
	coverage := float64(matched) / float64(len(kwTokens))
	if coverage < minCoverage {
		return 0.0
	}
	return coverage
}

func anyFuzzyMatch(docTokens []string, token string, fuzzyThreshold int) bool {
	for _, dt := range docTokens {
		if FuzzyRatio(dt, token) >= float64(fuzzyThreshold) {
			return true
		}
	}
	return false
}

// FuzzyRatio reproduces rapidfuzz.fuzz.ratio's 0-100 similarity scale from
// a plain Levenshtein edit distance: (1 - dist/maxlen) * 100. Two empty
// strings are defined as a perfect match.
func FuzzyRatio(a, b string) float64 {
	maxLen := len(a)
	if len(b) > maxLen {
		maxLen = len(b)
	}
	if maxLen == 0 {
		return 100
	}
	dist := levenshtein.ComputeDistance(a, b)
	return (1 - float64(dist)/float64(maxLen)) * 100
}

// temporalBonus folds year-keyword matches into the score according to the
// configured strategy. Returns 0 if the keyword set has no year token, the
// candidate's text mentions none of the query's own temporal keywords (a
// document citing an unrelated year does not qualify), or the strategy is
// disabled.
func temporalBonus(cache *textCache, idx int, cand model.DocumentCandidate, keywords []string, cfg model.RRFConfig) float64 {
	if cfg.TemporalStrategy == model.TemporalDisabled {
		return 0
	}

	temporalKeywords, nonTemporal := splitTemporalKeywords(keywords, cfg.YearPattern)
	if len(temporalKeywords) == 0 || len(nonTemporal) == 0 {
		return 0
	}

	docTokens := cache.tokensFor(idx, cand)
	docText := strings.Join(docTokens, " ")
	docYears := extractYears(docText, cfg.YearPattern)
	if !anyTemporalKeywordInYears(temporalKeywords, docYears) {
		return 0
	}

	scores := make([]float64, len(nonTemporal))
	for i, kw := range nonTemporal {
		scores[i] = keywordMatchScore(docTokens, kw, cfg.FuzzyThreshold, cfg.MinTokenCoverage)
	}

	switch cfg.TemporalStrategy {
	case model.TemporalInteraction:
		return average(scores) * cfg.TemporalWeight
	case model.TemporalWeighted:
		for _, s := range scores {
			if s > 0 {
				return cfg.TemporalWeight
			}
		}
		return 0
	case model.TemporalStrict:
		for _, s := range scores {
			if s < 0.5 {
				return 0
			}
		}
		return cfg.TemporalWeight
	default:
		return 0
	}
}

// extractYears collects the distinct year-like substrings present in text.
func extractYears(text string, yearPattern *regexp.Regexp) map[string]struct{} {
	years := make(map[string]struct{})
	for _, y := range yearPattern.FindAllString(text, -1) {
		years[y] = struct{}{}
	}
	return years
}

// anyTemporalKeywordInYears reports whether one of the query's own temporal
// keywords is among the document's extracted years - a document mentioning
// an unrelated year must not earn the bonus.
func anyTemporalKeywordInYears(temporalKeywords []string, docYears map[string]struct{}) bool {
	for _, kw := range temporalKeywords {
		if _, ok := docYears[kw]; ok {
			return true
		}
	}
	return false
}

func splitTemporalKeywords(keywords []string, yearPattern *regexp.Regexp) (temporal, nonTemporal []string) {
	for _, kw := range keywords {
		if isExactYear(kw, yearPattern) {
			temporal = append(temporal, kw)
		} else {
			nonTemporal = append(nonTemporal, kw)
		}
	}
	return
}

func isExactYear(kw string, yearPattern *regexp.Regexp) bool {
	return yearPattern.MatchString(kw) && len(strings.Fields(kw)) == 1
}

func average(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}
