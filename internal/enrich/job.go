package enrich

import (
	"time"

	"github.com/google/uuid"
)

// Job is a batch's progress cursor over an ordered dataset. The job and
// its partially enriched dataset are the single source of truth; callers
// persist it between invocations keyed by the dataset fingerprint.
type Job struct {
	ID         string    `json:"id"`
	DatasetKey string    `json:"dataset_key"`
	Kind       string    `json:"kind"`
	Cursor     int       `json:"cursor"`
	ChunkSize  int       `json:"chunk_size"`
	Dataset    *Dataset  `json:"dataset"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// NewJob creates a fresh job at cursor zero for the given dataset.
func NewJob(kind string, chunkSize int, d *Dataset) *Job {
	now := time.Now().UTC()
	return &Job{
		ID:         uuid.NewString(),
		DatasetKey: Fingerprint(d),
		Kind:       kind,
		ChunkSize:  chunkSize,
		Dataset:    d,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// Done reports whether the cursor has consumed every row.
func (j *Job) Done() bool {
	return j.Cursor >= len(j.Dataset.Rows)
}

// Progress returns the completed fraction in [0, 1].
func (j *Job) Progress() float64 {
	if len(j.Dataset.Rows) == 0 {
		return 1
	}
	return float64(j.Cursor) / float64(len(j.Dataset.Rows))
}

// ChunkReport summarizes one Advance call.
type ChunkReport struct {
	JobID    string  `json:"job_id"`
	Kind     string  `json:"kind"`
	Enriched int     `json:"enriched"`
	Skipped  int     `json:"skipped"`
	Failed   int     `json:"failed"`
	Cursor   int     `json:"cursor"`
	Total    int     `json:"total"`
	Done     bool    `json:"done"`
	Progress float64 `json:"progress"`
}
