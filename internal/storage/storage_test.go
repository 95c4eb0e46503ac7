package storage

import (
	"path/filepath"
	"testing"
)

func tempStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestJobLifecycle(t *testing.T) {
	s := tempStore(t)

	rec := JobRecord{
		ID:          "job-1",
		JobType:     "convolve",
		Status:      "queued",
		InputPath:   "in.fits",
		OutputPath:  "out.fits",
		OptionsJSON: `{"oldres":4,"newres":16}`,
	}
	if err := s.RecordJobQueued(rec); err != nil {
		t.Fatalf("RecordJobQueued: %v", err)
	}
	if err := s.RecordJobStart("job-1"); err != nil {
		t.Fatalf("RecordJobStart: %v", err)
	}
	if err := s.RecordJobResult("job-1", "completed", map[string]any{"output": "out.fits"}, ""); err != nil {
		t.Fatalf("RecordJobResult: %v", err)
	}

	jobs, err := s.RecentJobs(10)
	if err != nil {
		t.Fatalf("RecentJobs: %v", err)
	}
	if len(jobs) != 1 {
		t.Fatalf("got %d jobs, want 1", len(jobs))
	}
	got := jobs[0]
	if got.ID != "job-1" || got.JobType != "convolve" || got.Status != "completed" {
		t.Errorf("job = %+v", got)
	}
	if got.StartedAt == nil || got.CompletedAt == nil {
		t.Errorf("timestamps should be populated: %+v", got)
	}

	meta, err := s.JobMeta("job-1")
	if err != nil {
		t.Fatalf("JobMeta: %v", err)
	}
	if meta["output"] != "out.fits" {
		t.Errorf("meta = %v", meta)
	}
}

func TestRecordJobFailure(t *testing.T) {
	s := tempStore(t)
	if err := s.RecordJobQueued(JobRecord{ID: "job-2", JobType: "mask", Status: "queued"}); err != nil {
		t.Fatalf("RecordJobQueued: %v", err)
	}
	if err := s.RecordJobResult("job-2", "failed", nil, "no such file"); err != nil {
		t.Fatalf("RecordJobResult: %v", err)
	}
	jobs, err := s.RecentJobs(10)
	if err != nil {
		t.Fatalf("RecentJobs: %v", err)
	}
	if jobs[0].Status != "failed" || jobs[0].Error != "no such file" {
		t.Errorf("job = %+v", jobs[0])
	}
}

func TestProductUpsert(t *testing.T) {
	s := tempStore(t)
	rec := ProductRecord{
		Path:   "/data/avg.fits",
		JobID:  "job-3",
		Object: "field_9",
		Naxis:  2,
		Naxis1: 512,
		Naxis2: 256,
		Ctype1: "GLON-TAN",
		Ctype2: "GLAT-TAN",
	}
	if err := s.RecordProduct(rec); err != nil {
		t.Fatalf("RecordProduct: %v", err)
	}
	// writing the same path again replaces, not duplicates
	rec.Naxis1 = 1024
	if err := s.RecordProduct(rec); err != nil {
		t.Fatalf("RecordProduct: %v", err)
	}

	prods, err := s.Products(10)
	if err != nil {
		t.Fatalf("Products: %v", err)
	}
	if len(prods) != 1 {
		t.Fatalf("got %d products, want 1", len(prods))
	}
	if prods[0].Naxis1 != 1024 || prods[0].Ctype1 != "GLON-TAN" {
		t.Errorf("product = %+v", prods[0])
	}
}

func TestNilStoreIsSafe(t *testing.T) {
	var s *Store
	if err := s.RecordJobQueued(JobRecord{ID: "x"}); err != nil {
		t.Errorf("nil RecordJobQueued: %v", err)
	}
	if err := s.RecordJobResult("x", "completed", nil, ""); err != nil {
		t.Errorf("nil RecordJobResult: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("nil Close: %v", err)
	}
	if _, err := s.RecentJobs(5); err == nil {
		t.Errorf("nil RecentJobs should report an uninitialized store")
	}
}
