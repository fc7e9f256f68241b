// Package storage persists enrichment jobs, uploaded datasets and cached
// communication summaries between UI invocations.
package storage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/stayops/guest-insights/internal/config"
	"github.com/stayops/guest-insights/internal/enrich"
	"github.com/stayops/guest-insights/internal/openphone"
)

// Store is the persistence boundary for jobs, datasets and the
// communication-summary cache. Summaries are cached per (group, phone)
// and invalidated only by explicit action or a new dataset upload.
type Store interface {
	SaveDataset(ctx context.Context, d *enrich.Dataset) (string, error)
	UpdateDataset(ctx context.Context, key string, d *enrich.Dataset) error
	GetDataset(ctx context.Context, key string) (*enrich.Dataset, error)

	GetJob(ctx context.Context, datasetKey, kind string) (*enrich.Job, error)
	SaveJob(ctx context.Context, job *enrich.Job) error
	Reset(ctx context.Context, datasetKey string) error

	GetSummary(ctx context.Context, group, phone string) (*openphone.CommunicationSummary, error)
	SetSummary(ctx context.Context, group, phone string, s openphone.CommunicationSummary) error
	InvalidateSummaries(ctx context.Context, group string) error

	Close() error
}

// New selects a backend from configuration.
func New(cfg config.StorageConfig) (Store, error) {
	switch cfg.Type {
	case "", "memory":
		return NewMemoryStore(cfg.CacheTTL()), nil
	case "redis":
		return NewRedisStore(cfg.RedisURL, cfg.CacheTTL())
	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.Type)
	}
}

type cachedSummary struct {
	summary openphone.CommunicationSummary
	expires time.Time
}

// MemoryStore keeps everything in process memory. Suitable for a single
// instance; state is lost on restart unless the postgres job archive is
// configured alongside it.
type MemoryStore struct {
	mu        sync.RWMutex
	datasets  map[string]*enrich.Dataset
	jobs      map[string]*enrich.Job // keyed by datasetKey + "/" + kind
	summaries map[string]cachedSummary
	ttl       time.Duration
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		datasets:  make(map[string]*enrich.Dataset),
		jobs:      make(map[string]*enrich.Job),
		summaries: make(map[string]cachedSummary),
		ttl:       ttl,
	}
}

func jobKey(datasetKey, kind string) string { return datasetKey + "/" + kind }

func summaryKey(group, phone string) string { return group + "/" + phone }

// SaveDataset registers a dataset under its fingerprint. Re-uploading a
// dataset with the same name but different contents resets the old
// fingerprint's jobs, so enrichment restarts rather than resuming against
// stale rows.
func (m *MemoryStore) SaveDataset(_ context.Context, d *enrich.Dataset) (string, error) {
	key := enrich.Fingerprint(d)

	m.mu.Lock()
	defer m.mu.Unlock()

	for oldKey, old := range m.datasets {
		if old.Name == d.Name && oldKey != key {
			delete(m.datasets, oldKey)
			m.deleteJobsLocked(oldKey)
		}
	}
	m.datasets[key] = d
	return key, nil
}

// UpdateDataset overwrites the dataset stored under an existing key.
// Enrichment adds derived columns, which would change the fingerprint, so
// updates keep the key the upload established.
func (m *MemoryStore) UpdateDataset(_ context.Context, key string, d *enrich.Dataset) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.datasets[key] = d
	return nil
}

func (m *MemoryStore) GetDataset(_ context.Context, key string) (*enrich.Dataset, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.datasets[key]
	if !ok {
		return nil, nil
	}
	return d, nil
}

func (m *MemoryStore) GetJob(_ context.Context, datasetKey, kind string) (*enrich.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.jobs[jobKey(datasetKey, kind)], nil
}

func (m *MemoryStore) SaveJob(_ context.Context, job *enrich.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[jobKey(job.DatasetKey, job.Kind)] = job
	return nil
}

// Reset removes a dataset, its jobs and its cached summaries.
func (m *MemoryStore) Reset(_ context.Context, datasetKey string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.datasets, datasetKey)
	m.deleteJobsLocked(datasetKey)
	prefix := datasetKey + "/"
	for k := range m.summaries {
		if len(k) > len(prefix) && k[:len(prefix)] == prefix {
			delete(m.summaries, k)
		}
	}
	return nil
}

func (m *MemoryStore) deleteJobsLocked(datasetKey string) {
	for k := range m.jobs {
		if len(k) > len(datasetKey) && k[:len(datasetKey)+1] == datasetKey+"/" {
			delete(m.jobs, k)
		}
	}
}

func (m *MemoryStore) GetSummary(_ context.Context, group, phone string) (*openphone.CommunicationSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entry, ok := m.summaries[summaryKey(group, phone)]
	if !ok || time.Now().After(entry.expires) {
		return nil, nil
	}
	s := entry.summary
	return &s, nil
}

func (m *MemoryStore) SetSummary(_ context.Context, group, phone string, s openphone.CommunicationSummary) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.summaries[summaryKey(group, phone)] = cachedSummary{
		summary: s,
		expires: time.Now().Add(m.ttl),
	}
	return nil
}

func (m *MemoryStore) InvalidateSummaries(_ context.Context, group string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	prefix := group + "/"
	for k := range m.summaries {
		if len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			delete(m.summaries, k)
		}
	}
	return nil
}

func (m *MemoryStore) Close() error { return nil }
