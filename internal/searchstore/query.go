package searchstore

import "strings"

// LexicalQuery builds a boolean-disjunction query over four clause
// families: exact keyword match (boost 5.0), stemmed+fuzzy match (boost
// 3.0), a base match (boost 1.5), and adjacent 2-gram phrase matches (boost
// 4.0). minimum_should_match is max(1, len(keywords)/2).
func LexicalQuery(keywords []string, minScore float64) map[string]any {
	lowered := make([]string, len(keywords))
	for i, kw := range keywords {
		lowered[i] = strings.ToLower(kw)
	}

	should := make([]map[string]any, 0, len(lowered)*3+len(lowered))
	for _, kw := range lowered {
		should = append(should,
			map[string]any{
				"term": map[string]any{
					"metadata.keywords": map[string]any{"value": kw, "boost": 5.0},
				},
			},
			map[string]any{
				"match": map[string]any{
					"content.stemmed": map[string]any{
						"query":          kw,
						"fuzziness":      "auto",
						"prefix_length":  2,
						"max_expansions": 50,
						"boost":          3.0,
					},
				},
			},
			map[string]any{
				"match": map[string]any{
					"content": map[string]any{"query": kw, "boost": 1.5},
				},
			},
		)
	}

	for i := 0; i+1 < len(lowered); i++ {
		should = append(should, map[string]any{
			"match_phrase": map[string]any{
				"content": map[string]any{
					"query": lowered[i] + " " + lowered[i+1],
					"boost": 4.0,
				},
			},
		})
	}

	minShouldMatch := len(keywords) / 2
	if minShouldMatch < 1 {
		minShouldMatch = 1
	}

	return map[string]any{
		"query": map[string]any{
			"bool": map[string]any{
				"should":               should,
				"minimum_should_match": minShouldMatch,
			},
		},
		"min_score": minScore,
		"_source":   []string{"content", "id", "metadata.pdf_name", "metadata.gcs_uri", "metadata.page_number", "metadata.chunk_index", "metadata.total_chunks"},
	}
}

// VectorQuery builds a k-nearest-neighbor query over field, requesting
// num_candidates = max(2k, 200).
func VectorQuery(field string, vector []float32, k int) map[string]any {
	numCandidates := 2 * k
	if numCandidates < 200 {
		numCandidates = 200
	}

	return map[string]any{
		"knn": map[string]any{
			"field":          field,
			"query_vector":   vector,
			"k":              k,
			"num_candidates": numCandidates,
		},
		"_source": []string{"content", "id", "metadata.pdf_name", "metadata.gcs_uri", "metadata.page_number", "metadata.chunk_index", "metadata.total_chunks"},
	}
}

// FullContentQuery builds a single-hit query for a document's full markdown
// content, matched by its stable pdf name against both the keyword and enum
// analyzers of that field.
func FullContentQuery(documentID string) map[string]any {
	return map[string]any{
		"query": map[string]any{
			"bool": map[string]any{
				"should": []map[string]any{
					{"term": map[string]any{"metadata.pdf_name.keyword": documentID}},
					{"term": map[string]any{"metadata.pdf_name.enum": documentID}},
				},
				"minimum_should_match": 1,
			},
		},
		"_source": []string{"metadata.all_md_pages"},
	}
}
