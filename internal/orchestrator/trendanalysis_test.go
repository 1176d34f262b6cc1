package orchestrator

import (
	"context"
	"strings"
	"testing"

	"github.com/nextlevelbuilder/harvestgate/internal/connectors"
	"github.com/nextlevelbuilder/harvestgate/internal/llmagent"
	"github.com/nextlevelbuilder/harvestgate/internal/taskstore"
)

type fakeLLMAgent struct {
	response string
	err      error
}

func (a *fakeLLMAgent) Run(ctx context.Context, prompt string) (string, error) {
	return a.response, a.err
}

func TestTrendAnalysis_NotLoggedInTransitionsToWaitingLoginWithoutSearching(t *testing.T) {
	conn := &fakeConnector{search: []connectors.NoteSummary{{NoteID: "1", FullURL: "u1", LikedCount: 10}}}
	task := newTestTask()
	svc, tasks := newTestService(conn, task)

	planner := llmagent.NewPlannerFromAgent(&fakeLLMAgent{response: "a,b,c"})
	ta := NewTrendAnalysis(tasks, planner, &fakeLLMAgent{response: "analysis"})

	probe := func(ctx context.Context) (connectors.LoginResult, error) {
		return connectors.LoginResult{IsLoggedIn: false, ContextID: "ctx1", QRCode: "https://qr"}, nil
	}

	_, err := ta.Run(context.Background(), svc, task, "shortvideo", "camping lamp", probe)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if task.Status != taskstore.StatusWaitingLogin {
		t.Fatalf("expected waiting_login, got %s", task.Status)
	}
}

func TestTrendAnalysis_HappyPathCompletesWithAnalysis(t *testing.T) {
	conn := &fakeConnector{
		search: []connectors.NoteSummary{
			{NoteID: "1", FullURL: "u1", LikedCount: 10},
			{NoteID: "2", FullURL: "u2", LikedCount: 50},
		},
		detailByURL: map[string]connectors.NoteDetail{
			"u1": {URL: "u1", Success: true, Record: map[string]any{"title": "t1", "desc": "d1", "liked_count": float64(10)}},
			"u2": {URL: "u2", Success: true, Record: map[string]any{"title": "t2", "desc": "d2", "liked_count": float64(50)}},
		},
	}
	task := newTestTask()
	svc, tasks := newTestService(conn, task)

	planner := llmagent.NewPlannerFromAgent(&fakeLLMAgent{response: "camping,camping scene,camping pain point"})
	ta := NewTrendAnalysis(tasks, planner, &fakeLLMAgent{response: "final analysis text"})

	probe := func(ctx context.Context) (connectors.LoginResult, error) {
		return connectors.LoginResult{IsLoggedIn: true}, nil
	}

	out, err := ta.Run(context.Background(), svc, task, "shortvideo", "camping lamp", probe)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "final analysis text" {
		t.Fatalf("expected agent output to be the task result, got %q", out)
	}
	if task.Status != taskstore.StatusCompleted {
		t.Fatalf("expected completed, got %s", task.Status)
	}
	if res, ok := task.Result["output"].(string); !ok || !strings.Contains(res, "final analysis text") {
		t.Fatalf("expected task result to carry the analysis output, got %+v", task.Result)
	}
}

func TestTrendAnalysis_NoSearchResultsFailsTask(t *testing.T) {
	conn := &fakeConnector{search: nil}
	task := newTestTask()
	svc, tasks := newTestService(conn, task)

	planner := llmagent.NewPlannerFromAgent(&fakeLLMAgent{response: "a,b,c"})
	ta := NewTrendAnalysis(tasks, planner, &fakeLLMAgent{response: "unused"})

	probe := func(ctx context.Context) (connectors.LoginResult, error) {
		return connectors.LoginResult{IsLoggedIn: true}, nil
	}

	_, err := ta.Run(context.Background(), svc, task, "shortvideo", "camping lamp", probe)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if task.Status != taskstore.StatusFailed {
		t.Fatalf("expected failed, got %s", task.Status)
	}
}
