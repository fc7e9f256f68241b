package api

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/stayops/guest-insights/internal/enrich"
	"github.com/stayops/guest-insights/internal/openphone"
	"github.com/stayops/guest-insights/internal/pkg/logger"
	"github.com/stayops/guest-insights/internal/storage"
)

// ErrDatasetNotFound is returned when a dataset key is unknown.
var ErrDatasetNotFound = errors.New("dataset not found")

// ErrUnknownKind is returned when no enricher is registered for a kind.
var ErrUnknownKind = errors.New("unknown enrichment kind")

// SummaryProvider resolves a guest's communication summary. Implemented by
// openphone.Aggregator.
type SummaryProvider interface {
	Aggregate(ctx context.Context, phone string, arrival *time.Time) openphone.CommunicationSummary
}

// JobArchive durably snapshots jobs outside the primary store. Implemented
// by the postgres repository; optional.
type JobArchive interface {
	Save(ctx context.Context, job *enrich.Job) error
	Get(ctx context.Context, datasetKey, kind string) (*enrich.Job, error)
	Delete(ctx context.Context, datasetKey string) error
}

// Service orchestrates dataset uploads, chunked enrichment and summary
// lookups on top of the store.
type Service struct {
	store     storage.Store
	engine    *enrich.Engine
	enrichers map[string]enrich.RowEnricher
	summaries SummaryProvider
	archive   JobArchive
}

// NewService creates the orchestration service. summaries and archive may
// be nil when the corresponding providers are not configured.
func NewService(store storage.Store, engine *enrich.Engine, summaries SummaryProvider) *Service {
	return &Service{
		store:     store,
		engine:    engine,
		enrichers: make(map[string]enrich.RowEnricher),
		summaries: summaries,
	}
}

// Register adds an enricher, addressable by its kind.
func (s *Service) Register(re enrich.RowEnricher) {
	s.enrichers[re.Kind()] = re
}

// Kinds lists the registered enrichment kinds.
func (s *Service) Kinds() []string {
	out := make([]string, 0, len(s.enrichers))
	for k := range s.enrichers {
		out = append(out, k)
	}
	return out
}

// SetArchive wires the durable job archive.
func (s *Service) SetArchive(a JobArchive) { s.archive = a }

// UploadDataset registers a dataset and returns its key. Cached summaries
// for a previous upload under the same key are invalidated.
func (s *Service) UploadDataset(ctx context.Context, d *enrich.Dataset) (string, error) {
	key, err := s.store.SaveDataset(ctx, d)
	if err != nil {
		return "", fmt.Errorf("saving dataset: %w", err)
	}
	if err := s.store.InvalidateSummaries(ctx, key); err != nil {
		logger.Warn("invalidating summaries failed", "dataset", key, "error", err.Error())
	}
	logger.Info("dataset uploaded", "dataset", key, "name", d.Name, "rows", len(d.Rows))
	return key, nil
}

// GetDataset loads a dataset by key.
func (s *Service) GetDataset(ctx context.Context, key string) (*enrich.Dataset, error) {
	d, err := s.store.GetDataset(ctx, key)
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, ErrDatasetNotFound
	}
	return d, nil
}

// AdvanceJob processes the next chunk of one enrichment kind over a
// dataset. The job is created on first call and resumed afterwards; a
// restart falls back to the archived snapshot when the store has no job.
func (s *Service) AdvanceJob(ctx context.Context, datasetKey, kind string) (enrich.ChunkReport, error) {
	re, ok := s.enrichers[kind]
	if !ok {
		return enrich.ChunkReport{}, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}

	dataset, err := s.GetDataset(ctx, datasetKey)
	if err != nil {
		return enrich.ChunkReport{}, err
	}

	job, err := s.loadJob(ctx, datasetKey, kind)
	if err != nil {
		return enrich.ChunkReport{}, err
	}
	if job == nil {
		job = enrich.NewJob(kind, s.engine.ChunkSize(), dataset)
		logger.Info("enrichment job started", "dataset", datasetKey, "kind", kind, "rows", len(dataset.Rows))
	}
	// The stored dataset is the canonical enriched table; reattach it so
	// every kind writes into the same rows.
	job.Dataset = dataset

	report := s.engine.Advance(ctx, job, re)

	if err := s.store.SaveJob(ctx, job); err != nil {
		return report, fmt.Errorf("saving job: %w", err)
	}
	if err := s.store.UpdateDataset(ctx, datasetKey, dataset); err != nil {
		return report, fmt.Errorf("persisting enriched dataset: %w", err)
	}
	if s.archive != nil {
		if err := s.archive.Save(ctx, job); err != nil {
			logger.Warn("archiving job snapshot failed", "dataset", datasetKey, "kind", kind, "error", err.Error())
		}
	}

	logger.Info("chunk processed",
		"dataset", datasetKey, "kind", kind,
		"cursor", report.Cursor, "enriched", report.Enriched,
		"skipped", report.Skipped, "failed", report.Failed, "done", report.Done)
	return report, nil
}

func (s *Service) loadJob(ctx context.Context, datasetKey, kind string) (*enrich.Job, error) {
	job, err := s.store.GetJob(ctx, datasetKey, kind)
	if err != nil {
		return nil, fmt.Errorf("loading job: %w", err)
	}
	if job != nil || s.archive == nil {
		return job, nil
	}

	snapshot, err := s.archive.Get(ctx, datasetKey, kind)
	if err != nil {
		logger.Warn("loading archived job failed", "dataset", datasetKey, "kind", kind, "error", err.Error())
		return nil, nil
	}
	if snapshot != nil {
		logger.Info("job restored from archive", "dataset", datasetKey, "kind", kind, "cursor", snapshot.Cursor)
	}
	return snapshot, nil
}

// JobStatus reports the current progress of one kind's job, or nil when no
// job has been started.
func (s *Service) JobStatus(ctx context.Context, datasetKey, kind string) (*enrich.Job, error) {
	if _, ok := s.enrichers[kind]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}
	return s.loadJob(ctx, datasetKey, kind)
}

// ResetDataset removes a dataset, its jobs, its archived snapshots and its
// cached summaries.
func (s *Service) ResetDataset(ctx context.Context, datasetKey string) error {
	if err := s.store.Reset(ctx, datasetKey); err != nil {
		return fmt.Errorf("resetting dataset: %w", err)
	}
	if s.archive != nil {
		if err := s.archive.Delete(ctx, datasetKey); err != nil {
			logger.Warn("deleting archived jobs failed", "dataset", datasetKey, "error", err.Error())
		}
	}
	logger.Info("dataset reset", "dataset", datasetKey)
	return nil
}

// Summary resolves one guest's communication summary, serving from the
// cache when a fresh entry exists. group scopes the cache, typically the
// dataset key.
func (s *Service) Summary(ctx context.Context, group, phone string, arrival *time.Time) (openphone.CommunicationSummary, error) {
	if s.summaries == nil {
		return openphone.CommunicationSummary{}, errors.New("communications provider not configured")
	}

	if cached, err := s.store.GetSummary(ctx, group, phone); err != nil {
		logger.Warn("summary cache read failed", "error", err.Error())
	} else if cached != nil {
		return *cached, nil
	}

	summary := s.summaries.Aggregate(ctx, phone, arrival)
	if err := s.store.SetSummary(ctx, group, phone, summary); err != nil {
		logger.Warn("summary cache write failed", "error", err.Error())
	}
	return summary, nil
}
