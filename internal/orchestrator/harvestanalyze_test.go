package orchestrator

import (
	"context"
	"testing"

	"github.com/nextlevelbuilder/harvestgate/internal/connectors"
	"github.com/nextlevelbuilder/harvestgate/internal/taskstore"
)

func TestHarvestAnalyze_JoinsSuccessfulArticlesAndRunsChosenAnalysis(t *testing.T) {
	conn := &fakeConnector{detailByURL: map[string]connectors.NoteDetail{
		"u1": {URL: "u1", Success: true, Record: map[string]any{"title": "A1", "author": "alice", "content": "body1"}},
		"u2": {URL: "u2", Success: false, Error: "fetch failed"},
	}}
	task := newTestTask()
	svc, tasks := newTestService(conn, task)

	agent := &fakeLLMAgent{response: "quick summary"}
	h := NewHarvestAnalyze(tasks, agent)

	out, err := h.Run(context.Background(), svc, task, "shortvideo", []string{"u1", "u2"}, AnalysisQuick)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "quick summary" {
		t.Fatalf("expected agent output as result, got %q", out)
	}
	if task.Status != taskstore.StatusCompleted {
		t.Fatalf("expected completed, got %s", task.Status)
	}
}

func TestHarvestAnalyze_AllFetchesFailingFailsTaskWithoutCallingAgent(t *testing.T) {
	conn := &fakeConnector{detailByURL: map[string]connectors.NoteDetail{}}
	task := newTestTask()
	svc, tasks := newTestService(conn, task)

	agent := &fakeLLMAgent{response: "should not be used"}
	h := NewHarvestAnalyze(tasks, agent)

	_, err := h.Run(context.Background(), svc, task, "shortvideo", []string{"u1"}, AnalysisComprehensive)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if task.Status != taskstore.StatusFailed {
		t.Fatalf("expected failed, got %s", task.Status)
	}
}

func TestHarvestAnalyze_RejectsEmptyURLList(t *testing.T) {
	conn := &fakeConnector{}
	task := newTestTask()
	svc, tasks := newTestService(conn, task)
	h := NewHarvestAnalyze(tasks, &fakeLLMAgent{})

	_, err := h.Run(context.Background(), svc, task, "shortvideo", nil, AnalysisComprehensive)
	if err == nil {
		t.Fatalf("expected validation error for empty url list")
	}
}
