package enrich

import (
	"context"
	"time"

	"github.com/stayops/guest-insights/internal/pkg/logger"
)

// RowEnricher computes derived column values for a single row.
type RowEnricher interface {
	// Kind names the enrichment ("distance", "geocode", "communications").
	Kind() string

	// TargetColumn is checked before enriching: a row whose target cell
	// already holds a valid value is skipped entirely.
	TargetColumn() string

	// Columns lists every derived column this enricher writes.
	Columns() []string

	// EnrichRow returns the derived values for one row. A nil map with a
	// nil error means "not found"; either way the caller writes Sentinel
	// so the row counts as processed.
	EnrichRow(ctx context.Context, row Row) (map[string]any, error)

	// Sentinel is written for rows that failed or yielded no result.
	Sentinel() map[string]any

	// Concurrency is the worker count for row lookups within a chunk.
	// Rate-limit-paced enrichers return 1 and rely on inline pacing.
	Concurrency() int
}

// Engine drives chunked enrichment of a job's dataset.
type Engine struct {
	chunkSize int
}

// NewEngine creates an engine with the configured chunk size.
func NewEngine(chunkSize int) *Engine {
	if chunkSize <= 0 {
		chunkSize = 1500
	}
	return &Engine{chunkSize: chunkSize}
}

// ChunkSize returns the engine's fixed chunk size.
func (e *Engine) ChunkSize() int {
	return e.chunkSize
}

// Advance processes exactly one chunk of the job's dataset, starting at
// the stored cursor. The cursor always moves to the end of the chunk
// range, regardless of per-row outcomes, so a chunk fully consumes its
// rows. Calling Advance on a finished job is a no-op that reports
// completion.
func (e *Engine) Advance(ctx context.Context, job *Job, re RowEnricher) ChunkReport {
	rows := job.Dataset.Rows
	total := len(rows)

	if job.Done() {
		return e.report(job, 0, 0, 0)
	}

	end := job.Cursor + e.chunkSize
	if end > total {
		end = total
	}

	job.Dataset.EnsureColumns(re.Columns()...)

	// Collect the rows in range that still need work.
	var pending []int
	skipped := 0
	for i := job.Cursor; i < end; i++ {
		if hasValue(rows[i][re.TargetColumn()]) {
			skipped++
			continue
		}
		pending = append(pending, i)
	}

	// Each pending row's result lands in its own reserved slot, so
	// parallel workers never contend.
	results := runParallel(ctx, len(pending), re.Concurrency(), func(slot int) map[string]any {
		values, err := re.EnrichRow(ctx, rows[pending[slot]])
		if err != nil {
			logger.Warn("enrich: row failed", "kind", re.Kind(), "row", pending[slot], "err", err)
			return nil
		}
		return values
	})

	enriched, failed := 0, 0
	for slot, rowIdx := range pending {
		values := results[slot]
		if values == nil {
			values = re.Sentinel()
			failed++
		} else {
			enriched++
		}
		for col, v := range values {
			rows[rowIdx][col] = v
		}
	}

	job.Cursor = end
	job.UpdatedAt = time.Now().UTC()
	return e.report(job, enriched, skipped, failed)
}

func (e *Engine) report(job *Job, enriched, skipped, failed int) ChunkReport {
	return ChunkReport{
		JobID:    job.ID,
		Kind:     job.Kind,
		Enriched: enriched,
		Skipped:  skipped,
		Failed:   failed,
		Cursor:   job.Cursor,
		Total:    len(job.Dataset.Rows),
		Done:     job.Done(),
		Progress: job.Progress(),
	}
}
