package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/stayops/guest-insights/internal/enrich"
	"github.com/stayops/guest-insights/internal/openphone"
)

const (
	datasetKeyPrefix = "gi:dataset:"
	jobKeyPrefix     = "gi:job:"
	summaryKeyPrefix = "gi:summary:"

	// Uploaded datasets and their jobs expire together after a week of
	// inactivity so abandoned sessions don't accumulate.
	datasetTTL = 7 * 24 * time.Hour
)

// RedisStore persists jobs, datasets and cached summaries in Redis, so
// enrichment resumes across process restarts and instances.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore connects to Redis using a redis:// URL.
func NewRedisStore(url string, ttl time.Duration) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}

	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}

	return &RedisStore{client: client, ttl: ttl}, nil
}

// NewRedisStoreWithClient wraps an existing client. Used in tests.
func NewRedisStoreWithClient(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func (r *RedisStore) SaveDataset(ctx context.Context, d *enrich.Dataset) (string, error) {
	key := enrich.Fingerprint(d)
	data, err := json.Marshal(d)
	if err != nil {
		return "", fmt.Errorf("marshaling dataset: %w", err)
	}
	if err := r.client.Set(ctx, datasetKeyPrefix+key, data, datasetTTL).Err(); err != nil {
		return "", fmt.Errorf("storing dataset: %w", err)
	}
	return key, nil
}

// UpdateDataset overwrites the dataset stored under an existing key,
// keeping the key the upload established even as derived columns change
// the fingerprint.
func (r *RedisStore) UpdateDataset(ctx context.Context, key string, d *enrich.Dataset) error {
	data, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("marshaling dataset: %w", err)
	}
	if err := r.client.Set(ctx, datasetKeyPrefix+key, data, datasetTTL).Err(); err != nil {
		return fmt.Errorf("updating dataset: %w", err)
	}
	return nil
}

func (r *RedisStore) GetDataset(ctx context.Context, key string) (*enrich.Dataset, error) {
	data, err := r.client.Get(ctx, datasetKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading dataset: %w", err)
	}
	var d enrich.Dataset
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("unmarshaling dataset: %w", err)
	}
	return &d, nil
}

func (r *RedisStore) GetJob(ctx context.Context, datasetKey, kind string) (*enrich.Job, error) {
	data, err := r.client.Get(ctx, jobKeyPrefix+datasetKey+":"+kind).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading job: %w", err)
	}
	var job enrich.Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("unmarshaling job: %w", err)
	}
	return &job, nil
}

func (r *RedisStore) SaveJob(ctx context.Context, job *enrich.Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshaling job: %w", err)
	}
	key := jobKeyPrefix + job.DatasetKey + ":" + job.Kind
	if err := r.client.Set(ctx, key, data, datasetTTL).Err(); err != nil {
		return fmt.Errorf("storing job: %w", err)
	}
	return nil
}

// Reset removes a dataset, its jobs and its cached summaries.
func (r *RedisStore) Reset(ctx context.Context, datasetKey string) error {
	if err := r.client.Del(ctx, datasetKeyPrefix+datasetKey).Err(); err != nil {
		return fmt.Errorf("deleting dataset: %w", err)
	}
	if err := r.deletePattern(ctx, jobKeyPrefix+datasetKey+":*"); err != nil {
		return err
	}
	return r.deletePattern(ctx, summaryKeyPrefix+datasetKey+":*")
}

func (r *RedisStore) GetSummary(ctx context.Context, group, phone string) (*openphone.CommunicationSummary, error) {
	data, err := r.client.Get(ctx, summaryKeyPrefix+group+":"+phone).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading summary: %w", err)
	}
	var s openphone.CommunicationSummary
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("unmarshaling summary: %w", err)
	}
	return &s, nil
}

func (r *RedisStore) SetSummary(ctx context.Context, group, phone string, s openphone.CommunicationSummary) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshaling summary: %w", err)
	}
	key := summaryKeyPrefix + group + ":" + phone
	if err := r.client.Set(ctx, key, data, r.ttl).Err(); err != nil {
		return fmt.Errorf("storing summary: %w", err)
	}
	return nil
}

func (r *RedisStore) InvalidateSummaries(ctx context.Context, group string) error {
	return r.deletePattern(ctx, summaryKeyPrefix+group+":*")
}

func (r *RedisStore) deletePattern(ctx context.Context, pattern string) error {
	iter := r.client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		if err := r.client.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("deleting %s: %w", iter.Val(), err)
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("scanning %s: %w", pattern, err)
	}
	return nil
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}
