package enrich

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
)

// stubEnricher enriches rows from a canned lookup table and records which
// rows it was asked about.
type stubEnricher struct {
	results map[string]map[string]any // keyed by row "ID"
	errs    map[string]error
	workers int

	mu    sync.Mutex
	asked []string
}

func (s *stubEnricher) Kind() string         { return "stub" }
func (s *stubEnricher) TargetColumn() string { return ColDistanceMiles }
func (s *stubEnricher) Columns() []string {
	return []string{ColDistanceMiles, ColTravelTime}
}
func (s *stubEnricher) Concurrency() int {
	if s.workers > 0 {
		return s.workers
	}
	return 1
}
func (s *stubEnricher) Sentinel() map[string]any {
	return map[string]any{ColDistanceMiles: 0.0, ColTravelTime: "0h 0m"}
}
func (s *stubEnricher) EnrichRow(_ context.Context, row Row) (map[string]any, error) {
	id, _ := row["ID"].(string)
	s.mu.Lock()
	s.asked = append(s.asked, id)
	s.mu.Unlock()
	if err := s.errs[id]; err != nil {
		return nil, err
	}
	return s.results[id], nil
}

func datasetOf(n int) *Dataset {
	d := &Dataset{Name: "guests.xlsx", Columns: []string{"ID"}}
	for i := 0; i < n; i++ {
		d.Rows = append(d.Rows, Row{"ID": fmt.Sprintf("r%d", i)})
	}
	return d
}

func TestAdvance_ProcessesExactlyOneChunk(t *testing.T) {
	d := datasetOf(10)
	stub := &stubEnricher{results: map[string]map[string]any{}}
	for i := 0; i < 10; i++ {
		stub.results[fmt.Sprintf("r%d", i)] = map[string]any{ColDistanceMiles: float64(i + 1)}
	}

	engine := NewEngine(4)
	job := NewJob("stub", 4, d)

	report := engine.Advance(context.Background(), job, stub)
	if report.Cursor != 4 || report.Done {
		t.Fatalf("after chunk 1: cursor=%d done=%v, want 4/false", report.Cursor, report.Done)
	}
	if report.Enriched != 4 {
		t.Errorf("Enriched = %d, want 4", report.Enriched)
	}

	report = engine.Advance(context.Background(), job, stub)
	if report.Cursor != 8 {
		t.Fatalf("after chunk 2: cursor=%d, want 8", report.Cursor)
	}

	// Final partial chunk clamps to the dataset length.
	report = engine.Advance(context.Background(), job, stub)
	if report.Cursor != 10 || !report.Done {
		t.Fatalf("after chunk 3: cursor=%d done=%v, want 10/true", report.Cursor, report.Done)
	}

	if d.Rows[9][ColDistanceMiles] != 10.0 {
		t.Errorf("row 9 distance = %v, want 10", d.Rows[9][ColDistanceMiles])
	}
}

func TestAdvance_PastEndIsNoOp(t *testing.T) {
	d := datasetOf(3)
	stub := &stubEnricher{results: map[string]map[string]any{
		"r0": {ColDistanceMiles: 1.0},
		"r1": {ColDistanceMiles: 2.0},
		"r2": {ColDistanceMiles: 3.0},
	}}

	engine := NewEngine(5)
	job := NewJob("stub", 5, d)

	engine.Advance(context.Background(), job, stub)
	askedOnce := len(stub.asked)

	// Repeated advances on a completed job report done without touching rows.
	for i := 0; i < 3; i++ {
		report := engine.Advance(context.Background(), job, stub)
		if !report.Done || report.Cursor != 3 {
			t.Fatalf("no-op advance %d: %+v", i, report)
		}
	}
	if len(stub.asked) != askedOnce {
		t.Errorf("enricher invoked %d times, want %d (no re-processing)", len(stub.asked), askedOnce)
	}
}

func TestAdvance_SkipsRowsWithExistingValues(t *testing.T) {
	d := datasetOf(4)
	d.Rows[1][ColDistanceMiles] = 55.5 // pre-populated: must never be overwritten
	d.Rows[2][ColDistanceMiles] = ""   // empty string is not a valid value

	stub := &stubEnricher{results: map[string]map[string]any{
		"r0": {ColDistanceMiles: 1.0},
		"r1": {ColDistanceMiles: 99.0},
		"r2": {ColDistanceMiles: 2.0},
		"r3": {ColDistanceMiles: 3.0},
	}}

	engine := NewEngine(10)
	report := engine.Advance(context.Background(), NewJob("stub", 10, d), stub)

	if report.Skipped != 1 {
		t.Errorf("Skipped = %d, want 1", report.Skipped)
	}
	if d.Rows[1][ColDistanceMiles] != 55.5 {
		t.Errorf("row 1 overwritten: %v", d.Rows[1][ColDistanceMiles])
	}
	if d.Rows[2][ColDistanceMiles] != 2.0 {
		t.Errorf("row 2 not enriched: %v", d.Rows[2][ColDistanceMiles])
	}
	for _, id := range stub.asked {
		if id == "r1" {
			t.Error("enricher asked about the pre-populated row")
		}
	}
}

func TestAdvance_FailuresGetSentinelAndCursorStillMoves(t *testing.T) {
	d := datasetOf(3)
	stub := &stubEnricher{
		results: map[string]map[string]any{
			"r0": {ColDistanceMiles: 1.0},
			// r1 returns nil (not found), r2 errors.
		},
		errs: map[string]error{"r2": errors.New("provider exploded")},
	}

	engine := NewEngine(10)
	job := NewJob("stub", 10, d)
	report := engine.Advance(context.Background(), job, stub)

	if report.Cursor != 3 {
		t.Fatalf("cursor = %d, want 3 (chunk fully consumed despite failures)", report.Cursor)
	}
	if report.Enriched != 1 || report.Failed != 2 {
		t.Errorf("enriched/failed = %d/%d, want 1/2", report.Enriched, report.Failed)
	}
	if d.Rows[1][ColDistanceMiles] != 0.0 || d.Rows[1][ColTravelTime] != "0h 0m" {
		t.Errorf("row 1 sentinel missing: %+v", d.Rows[1])
	}
	if d.Rows[2][ColDistanceMiles] != 0.0 {
		t.Errorf("errored row 2 sentinel missing: %+v", d.Rows[2])
	}
}

func TestAdvance_AddsDerivedColumnsOnce(t *testing.T) {
	d := datasetOf(2)
	stub := &stubEnricher{results: map[string]map[string]any{
		"r0": {ColDistanceMiles: 1.0},
		"r1": {ColDistanceMiles: 2.0},
	}}

	engine := NewEngine(1)
	job := NewJob("stub", 1, d)
	engine.Advance(context.Background(), job, stub)
	engine.Advance(context.Background(), job, stub)

	count := 0
	for _, c := range d.Columns {
		if c == ColDistanceMiles {
			count++
		}
	}
	if count != 1 {
		t.Errorf("%q appears %d times in columns %v", ColDistanceMiles, count, d.Columns)
	}
}

func TestAdvance_ParallelWorkersFillReservedSlots(t *testing.T) {
	d := datasetOf(50)
	stub := &stubEnricher{results: map[string]map[string]any{}, workers: 5}
	for i := 0; i < 50; i++ {
		stub.results[fmt.Sprintf("r%d", i)] = map[string]any{ColDistanceMiles: float64(i + 1)}
	}

	engine := NewEngine(50)
	engine.Advance(context.Background(), NewJob("stub", 50, d), stub)

	for i, row := range d.Rows {
		if row[ColDistanceMiles] != float64(i+1) {
			t.Fatalf("row %d = %v, want %v (results crossed slots)", i, row[ColDistanceMiles], float64(i+1))
		}
	}
}

func TestFingerprint_ChangesWithDataset(t *testing.T) {
	a := datasetOf(3)
	b := datasetOf(4)
	if Fingerprint(a) == Fingerprint(b) {
		t.Error("different datasets share a fingerprint")
	}
	if Fingerprint(a) != Fingerprint(datasetOf(3)) {
		t.Error("identical datasets produce different fingerprints")
	}
}
