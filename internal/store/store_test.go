package store_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/raysh454/tagscope/internal/model"
	"github.com/raysh454/tagscope/internal/store"
	"github.com/raysh454/tagscope/internal/testutil"
)

func newMemoryStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	s, err := store.NewSQLiteStore(&store.Config{Path: ":memory:"}, &testutil.DummyLogger{})
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleRun(id, url string, score int, createdAt int64) *model.Run {
	return &model.Run{
		ID:          id,
		ScanID:      "scan-" + id,
		URL:         url,
		Environment: "prod",
		Score:       score,
		IsValid:     score >= 50,
		TagCount:    1,
		CreatedAt:   time.UnixMilli(createdAt).UTC(),
		Detection: &model.TagDetectionResult{
			Tags: []model.TagInstance{{
				ID:            "ga4-G-AAA111",
				Platform:      "ga4",
				PlatformName:  "Google Analytics 4",
				Confidence:    0.9,
				LoadMethod:    model.LoadDirect,
				Configuration: model.TagConfiguration{PrimaryID: "G-AAA111"},
			}},
		},
		Report: &model.ValidationReport{ID: "report-" + id, Score: score},
	}
}

func TestSaveAndGetRun(t *testing.T) {
	s := newMemoryStore(t)
	ctx := context.Background()

	run := sampleRun("run-1", "https://example.com", 85, 1000)
	if err := s.SaveRun(ctx, run); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}

	got, err := s.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if got.URL != run.URL || got.Score != 85 || !got.IsValid || got.TagCount != 1 {
		t.Errorf("round trip mismatch: %+v", got)
	}
	if !got.CreatedAt.Equal(run.CreatedAt) {
		t.Errorf("createdAt = %v, want %v", got.CreatedAt, run.CreatedAt)
	}
	if got.Detection == nil || len(got.Detection.Tags) != 1 || got.Detection.Tags[0].Platform != "ga4" {
		t.Errorf("detection not restored: %+v", got.Detection)
	}
	if got.Report == nil || got.Report.ID != "report-run-1" {
		t.Errorf("report not restored: %+v", got.Report)
	}
}

func TestGetRunNotFound(t *testing.T) {
	s := newMemoryStore(t)
	_, err := s.GetRun(context.Background(), "missing")
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Fatalf("error = %v, want not found", err)
	}
}

func TestSaveRunWithoutReport(t *testing.T) {
	s := newMemoryStore(t)
	ctx := context.Background()

	run := sampleRun("run-1", "https://example.com", 100, 1000)
	run.Report = nil
	if err := s.SaveRun(ctx, run); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}

	got, err := s.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if got.Report != nil {
		t.Errorf("report = %+v, want nil", got.Report)
	}
}

func TestListRunsNewestFirst(t *testing.T) {
	s := newMemoryStore(t)
	ctx := context.Background()

	for _, run := range []*model.Run{
		sampleRun("run-old", "https://example.com", 50, 1000),
		sampleRun("run-new", "https://example.com", 90, 3000),
		sampleRun("run-mid", "https://example.com", 70, 2000),
	} {
		if err := s.SaveRun(ctx, run); err != nil {
			t.Fatalf("SaveRun(%s): %v", run.ID, err)
		}
	}

	runs, err := s.ListRuns(ctx, 0)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 3 {
		t.Fatalf("got %d runs, want 3", len(runs))
	}
	if runs[0].ID != "run-new" || runs[2].ID != "run-old" {
		t.Errorf("order = %s, %s, %s", runs[0].ID, runs[1].ID, runs[2].ID)
	}

	limited, err := s.ListRuns(ctx, 2)
	if err != nil {
		t.Fatalf("ListRuns(2): %v", err)
	}
	if len(limited) != 2 || limited[0].ID != "run-new" {
		t.Errorf("limited = %+v", limited)
	}
}

func TestRunsForURL(t *testing.T) {
	s := newMemoryStore(t)
	ctx := context.Background()

	for _, run := range []*model.Run{
		sampleRun("run-a", "https://example.com", 50, 1000),
		sampleRun("run-b", "https://other.example", 90, 2000),
		sampleRun("run-c", "https://example.com", 70, 3000),
	} {
		if err := s.SaveRun(ctx, run); err != nil {
			t.Fatalf("SaveRun(%s): %v", run.ID, err)
		}
	}

	runs, err := s.RunsForURL(ctx, "https://example.com")
	if err != nil {
		t.Fatalf("RunsForURL: %v", err)
	}
	if len(runs) != 2 || runs[0].ID != "run-c" || runs[1].ID != "run-a" {
		t.Errorf("runs = %+v", runs)
	}
}
