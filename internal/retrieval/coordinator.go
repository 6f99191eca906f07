// Package retrieval implements C3 (the bounded-concurrency fan-out search
// coordinator), C4 (the chunk-to-document aggregator), and C7 (the
// pipeline orchestrator that threads a request through search, aggregation,
// ranking, and extraction).
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/karpator/docfusion/internal/model"
	"github.com/karpator/docfusion/internal/searchstore"
)

// ErrInvalidQuery is returned when a request has neither keywords nor
// vectors to search with.
var ErrInvalidQuery = errors.New("retrieval: query must supply keywords and/or vectors")

// Searcher is the narrow interface C3 needs from C1, kept separate from
// *searchstore.Client so tests can substitute a mock.
type Searcher interface {
	Search(ctx context.Context, index string, query map[string]any, size int, searchType string) ([]model.SearchHit, error)
}

type searchTask struct {
	index      string
	query      map[string]any
	size       int
	searchType string
}

type taskOutcome struct {
	hits []model.SearchHit
	err  error
	task searchTask
}

// Search runs one lexical query and one vector-per-field query across every
// configured index, bounded by cfg.MaxConcurrent concurrent in-flight
// requests. A failing task is logged and dropped; it never cancels its
// peers (unlike errgroup's first-error cancellation, which this
// deliberately avoids).
func Search(ctx context.Context, searcher Searcher, keywords []string, vectors map[string][]float32, cfg model.SearchConfig) ([]model.SearchHit, error) {
	if len(keywords) == 0 && len(vectors) == 0 {
		return nil, ErrInvalidQuery
	}

	tasks := buildTasks(keywords, vectors, cfg)
	if len(tasks) == 0 {
		return nil, nil
	}

	maxConcurrent := cfg.MaxConcurrent
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	sem := semaphore.NewWeighted(int64(maxConcurrent))

	outcomes := make(chan taskOutcome, len(tasks))
	var wg sync.WaitGroup

	for _, task := range tasks {
		task := task
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := sem.Acquire(ctx, 1); err != nil {
				outcomes <- taskOutcome{err: err, task: task}
				return
			}
			defer sem.Release(1)

			hits, err := searcher.Search(ctx, task.index, task.query, task.size, task.searchType)
			outcomes <- taskOutcome{hits: hits, err: err, task: task}
		}()
	}

	go func() {
		wg.Wait()
		close(outcomes)
	}()

	var all []model.SearchHit
	for outcome := range outcomes {
		if outcome.err != nil {
			slog.Warn("[RETRIEVAL] search task failed, dropping",
				"index", outcome.task.index,
				"search_type", outcome.task.searchType,
				"error", outcome.err.Error(),
			)
			continue
		}
		all = append(all, outcome.hits...)
	}

	return all, nil
}

func buildTasks(keywords []string, vectors map[string][]float32, cfg model.SearchConfig) []searchTask {
	var tasks []searchTask

	for _, index := range cfg.Indices {
		if len(keywords) > 0 {
			tasks = append(tasks, searchTask{
				index:      index,
				query:      searchstore.LexicalQuery(keywords, cfg.MinLexicalScore),
				size:       cfg.ResultsPerIndex,
				searchType: "lexical",
			})
		}

		for field, vec := range vectors {
			tasks = append(tasks, searchTask{
				index:      index,
				query:      searchstore.VectorQuery(field, vec, cfg.ResultsPerIndex),
				size:       cfg.ResultsPerIndex,
				searchType: fmt.Sprintf("semantic:%s", field),
			})
		}
	}

	return tasks
}
