package orchestrator

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/nextlevelbuilder/harvestgate/internal/connectors"
	"github.com/nextlevelbuilder/harvestgate/internal/taskstore"
)

func TestCreatorMonitor_FiltersRecentAndPinnedNotesStopsOnOldNonPinned(t *testing.T) {
	now := time.Now()
	recent := now.Add(-2 * 24 * time.Hour).UnixMilli()
	old := now.Add(-30 * 24 * time.Hour).UnixMilli()

	conn := &fakeConnector{
		harvestByCreator: map[string][]connectors.NoteSummary{
			"c1": {
				{FullURL: "u1", Pinned: false},
				{FullURL: "u2", Pinned: true},
				{FullURL: "u3", Pinned: false},
				{FullURL: "u4", Pinned: false}, // should never be reached: scan stops at u3
			},
		},
		detailByURL: map[string]connectors.NoteDetail{
			"u1": {URL: "u1", Success: true, Record: map[string]any{"title": "recent post", "publish_time": float64(recent), "liked_count": float64(5)}},
			"u2": {URL: "u2", Success: true, Record: map[string]any{"title": "pinned old", "publish_time": float64(old)}},
			"u3": {URL: "u3", Success: true, Record: map[string]any{"title": "old non-pinned", "publish_time": float64(old)}},
			"u4": {URL: "u4", Success: true, Record: map[string]any{"title": "never reached", "publish_time": float64(recent)}},
		},
	}

	task := newTestTask()
	svc, tasks := newTestService(conn, task)
	mon := NewCreatorMonitor(tasks)

	report, err := mon.Run(context.Background(), svc, task, "shortvideo", []string{"c1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if task.Status != taskstore.StatusCompleted {
		t.Fatalf("expected task completed, got %s", task.Status)
	}
	if !strings.Contains(report, "recent post") || !strings.Contains(report, "pinned old") {
		t.Fatalf("expected report to mention recent and pinned notes, got: %s", report)
	}
	if strings.Contains(report, "never reached") {
		t.Fatalf("expected early exit to stop the scan before u4, got: %s", report)
	}
}

func TestCreatorMonitor_CreatorWithNoNotesDoesNotAbortRun(t *testing.T) {
	conn := &fakeConnector{harvestByCreator: map[string][]connectors.NoteSummary{
		"good": {{FullURL: "u1"}},
	}}
	// harvestByCreator has no entry for "bad", so HarvestUserContent returns
	// an empty summary list for it (not an error) — exercise the case where
	// the whole monitor run still completes even when a creator yields no
	// notes at all.
	task := newTestTask()
	svc, tasks := newTestService(conn, task)
	mon := NewCreatorMonitor(tasks)

	_, err := mon.Run(context.Background(), svc, task, "shortvideo", []string{"good", "bad"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if task.Status != taskstore.StatusCompleted {
		t.Fatalf("expected task completed, got %s", task.Status)
	}
}

