package storage

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/stayops/guest-insights/internal/enrich"
	"github.com/stayops/guest-insights/internal/openphone"
)

func sampleDataset(name string, rows int) *enrich.Dataset {
	d := &enrich.Dataset{Name: name, Columns: []string{enrich.ColPhone}}
	for i := 0; i < rows; i++ {
		d.Rows = append(d.Rows, enrich.Row{enrich.ColPhone: "+15551230000"})
	}
	return d
}

func TestMemoryStore_JobRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(time.Hour)

	d := sampleDataset("guests.xlsx", 3)
	key, err := store.SaveDataset(ctx, d)
	if err != nil {
		t.Fatalf("SaveDataset: %v", err)
	}

	job := enrich.NewJob("distance", 1500, d)
	job.Cursor = 2
	if err := store.SaveJob(ctx, job); err != nil {
		t.Fatalf("SaveJob: %v", err)
	}

	got, err := store.GetJob(ctx, key, "distance")
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if got == nil || got.Cursor != 2 {
		t.Fatalf("GetJob = %+v, want cursor 2", got)
	}

	// Unknown kind has no job yet.
	missing, err := store.GetJob(ctx, key, "geocode")
	if err != nil || missing != nil {
		t.Fatalf("GetJob(geocode) = %+v, %v, want nil, nil", missing, err)
	}
}

func TestMemoryStore_ReuploadResetsOldJobs(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(time.Hour)

	d1 := sampleDataset("guests.xlsx", 3)
	key1, _ := store.SaveDataset(ctx, d1)
	store.SaveJob(ctx, enrich.NewJob("distance", 1500, d1))

	// Same name, different contents: the fingerprint changes and the old
	// job must not survive to resume against stale rows.
	d2 := sampleDataset("guests.xlsx", 5)
	key2, _ := store.SaveDataset(ctx, d2)
	if key1 == key2 {
		t.Fatal("fingerprints should differ for different contents")
	}

	old, err := store.GetJob(ctx, key1, "distance")
	if err != nil || old != nil {
		t.Errorf("old job survived re-upload: %+v, %v", old, err)
	}
	if d, _ := store.GetDataset(ctx, key1); d != nil {
		t.Error("old dataset survived re-upload")
	}
	if d, _ := store.GetDataset(ctx, key2); d == nil {
		t.Error("new dataset not stored")
	}
}

func TestMemoryStore_SummaryTTL(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(10 * time.Millisecond)

	s := openphone.CommunicationSummary{Status: openphone.StatusActive, TotalCalls: 3}
	if err := store.SetSummary(ctx, "abc123", "+15551230001", s); err != nil {
		t.Fatalf("SetSummary: %v", err)
	}

	got, err := store.GetSummary(ctx, "abc123", "+15551230001")
	if err != nil || got == nil || got.TotalCalls != 3 {
		t.Fatalf("GetSummary = %+v, %v", got, err)
	}

	time.Sleep(20 * time.Millisecond)
	got, err = store.GetSummary(ctx, "abc123", "+15551230001")
	if err != nil || got != nil {
		t.Errorf("expired summary still returned: %+v, %v", got, err)
	}
}

func TestMemoryStore_InvalidateSummariesScopedToGroup(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(time.Hour)

	store.SetSummary(ctx, "groupA", "+15551230001", openphone.CommunicationSummary{TotalCalls: 1})
	store.SetSummary(ctx, "groupB", "+15551230001", openphone.CommunicationSummary{TotalCalls: 2})

	if err := store.InvalidateSummaries(ctx, "groupA"); err != nil {
		t.Fatalf("InvalidateSummaries: %v", err)
	}

	if got, _ := store.GetSummary(ctx, "groupA", "+15551230001"); got != nil {
		t.Error("groupA summary survived invalidation")
	}
	if got, _ := store.GetSummary(ctx, "groupB", "+15551230001"); got == nil || got.TotalCalls != 2 {
		t.Errorf("groupB summary lost: %+v", got)
	}
}

func TestMemoryStore_ResetLeavesSimilarlyNamedGroups(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(time.Hour)

	d := sampleDataset("guests.xlsx", 2)
	key, _ := store.SaveDataset(ctx, d)

	store.SetSummary(ctx, key, "+15551230001", openphone.CommunicationSummary{TotalCalls: 1})
	// A group whose name merely extends the dataset key must survive.
	store.SetSummary(ctx, key+"x", "+15551230001", openphone.CommunicationSummary{TotalCalls: 2})

	if err := store.Reset(ctx, key); err != nil {
		t.Fatalf("Reset: %v", err)
	}

	if got, _ := store.GetSummary(ctx, key, "+15551230001"); got != nil {
		t.Error("reset dataset's summary survived")
	}
	if got, _ := store.GetSummary(ctx, key+"x", "+15551230001"); got == nil || got.TotalCalls != 2 {
		t.Errorf("unrelated group's summary lost: %+v", got)
	}
}

func newTestRedisStore(t *testing.T, ttl time.Duration) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewRedisStoreWithClient(client, ttl)
	t.Cleanup(func() { store.Close() })
	return store, mr
}

func TestRedisStore_JobSurvivesReload(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestRedisStore(t, time.Hour)

	d := sampleDataset("guests.xlsx", 4)
	key, err := store.SaveDataset(ctx, d)
	require.NoError(t, err)

	job := enrich.NewJob("communications", 1500, d)
	job.Cursor = 3
	require.NoError(t, store.SaveJob(ctx, job))

	got, err := store.GetJob(ctx, key, "communications")
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, 3, got.Cursor)
	require.Equal(t, job.ID, got.ID)
	require.Len(t, got.Dataset.Rows, 4)

	back, err := store.GetDataset(ctx, key)
	require.NoError(t, err)
	require.Equal(t, d.Name, back.Name)
}

func TestRedisStore_MissingKeysReturnNil(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestRedisStore(t, time.Hour)

	job, err := store.GetJob(ctx, "nosuch", "distance")
	require.NoError(t, err)
	require.Nil(t, job)

	s, err := store.GetSummary(ctx, "nosuch", "+15551230001")
	require.NoError(t, err)
	require.Nil(t, s)
}

func TestRedisStore_SummaryExpires(t *testing.T) {
	ctx := context.Background()
	store, mr := newTestRedisStore(t, time.Minute)

	require.NoError(t, store.SetSummary(ctx, "abc123", "+15551230001",
		openphone.CommunicationSummary{Status: openphone.StatusActive}))

	got, err := store.GetSummary(ctx, "abc123", "+15551230001")
	require.NoError(t, err)
	require.NotNil(t, got)

	mr.FastForward(2 * time.Minute)

	got, err = store.GetSummary(ctx, "abc123", "+15551230001")
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestRedisStore_ResetClearsEverything(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestRedisStore(t, time.Hour)

	d := sampleDataset("guests.xlsx", 2)
	key, err := store.SaveDataset(ctx, d)
	require.NoError(t, err)
	require.NoError(t, store.SaveJob(ctx, enrich.NewJob("distance", 1500, d)))
	require.NoError(t, store.SetSummary(ctx, key, "+15551230001", openphone.CommunicationSummary{}))

	require.NoError(t, store.Reset(ctx, key))

	got, err := store.GetDataset(ctx, key)
	require.NoError(t, err)
	require.Nil(t, got)

	job, err := store.GetJob(ctx, key, "distance")
	require.NoError(t, err)
	require.Nil(t, job)

	s, err := store.GetSummary(ctx, key, "+15551230001")
	require.NoError(t, err)
	require.Nil(t, s)
}
