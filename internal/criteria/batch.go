// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package criteria

import (
	"context"
	"fmt"
	"sync"

	"github.com/panjf2000/ants/v2"

	"github.com/pdiddy/doc-collector/pkg/types"
)

// Document is the extracted text of one downloaded result.
type Document struct {
	ID      int64
	Title   string
	Content string
}

// EvaluateBatch evaluates docs on a bounded worker pool and returns the
// verdicts keyed by document ID. Individual failures become fallback
// verdicts; the error is non-nil only when the pool cannot be created.
func (e *Evaluator) EvaluateBatch(ctx context.Context, docs []Document, ac types.AnalyzedCriteria) (map[int64]types.EvaluationResult, error) {
	out := make(map[int64]types.EvaluationResult, len(docs))
	if len(docs) == 0 {
		return out, nil
	}

	pool, err := ants.NewPool(e.workers)
	if err != nil {
		return nil, fmt.Errorf("creating evaluation pool: %w", err)
	}
	defer pool.Release()

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	record := func(id int64, v types.EvaluationResult) {
		mu.Lock()
		out[id] = v
		mu.Unlock()
	}

	for _, doc := range docs {
		wg.Add(1)
		err := pool.Submit(func() {
			defer wg.Done()
			if ctx.Err() != nil {
				record(doc.ID, FallbackVerdict(ac, "evaluation cancelled"))
				return
			}
			v := e.Evaluate(ctx, doc.Content, ac)
			e.logger.Debug("document evaluated", "id", doc.ID, "relevant", v.Relevant, "score", v.Score)
			record(doc.ID, v)
		})
		if err != nil {
			wg.Done()
			e.logger.Warn("evaluation not scheduled", "id", doc.ID, "err", err)
			record(doc.ID, FallbackVerdict(ac, "evaluation failed"))
		}
	}
	wg.Wait()

	relevant := 0
	for _, v := range out {
		if v.Relevant {
			relevant++
		}
	}
	e.logger.Info("batch evaluated", "documents", len(docs), "relevant", relevant)
	return out, nil
}

// RelevantIDs returns the IDs whose verdict is relevant.
func RelevantIDs(verdicts map[int64]types.EvaluationResult) map[int64]bool {
	ids := make(map[int64]bool, len(verdicts))
	for id, v := range verdicts {
		if v.Relevant {
			ids[id] = true
		}
	}
	return ids
}
