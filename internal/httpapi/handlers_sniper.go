package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/nextlevelbuilder/harvestgate/internal/apperr"
	"github.com/nextlevelbuilder/harvestgate/internal/connectors"
	"github.com/nextlevelbuilder/harvestgate/internal/orchestrator"
	"github.com/nextlevelbuilder/harvestgate/internal/taskstore"
)

const sniperPlatform = "shortvideo"

// dispatchBackground starts an orchestrator workflow in its own goroutine
// and returns immediately with the task, grounded on
// original_source/services/sniper/task_service.py's
// _start_background_task: a coroutine wrapped so that any panic/error
// still reachable at the task's running status fails it rather than
// leaving it stuck.
func (s *Server) dispatchBackground(task *taskstore.Task, run func(ctx context.Context) error) {
	go func() {
		ctx := context.Background()
		defer func() {
			if rec := recover(); rec != nil {
				slog.Error("sniper.task_panic", "task_id", task.ID, "panic", rec)
				progress := task.Progress
				_ = s.tasks.Fail(ctx, task.ID, "internal error", &progress)
			}
		}()
		if err := run(ctx); err != nil {
			slog.Error("sniper.task_failed", "task_id", task.ID, "error", err)
		}
	}()
}

type sniperHarvestRequest struct {
	CreatorIDs []string `json:"creator_ids"`
}

func (s *Server) handleSniperHarvest(w http.ResponseWriter, r *http.Request) {
	identity, err := identityFrom(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req sniperHarvestRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if len(req.CreatorIDs) == 0 {
		writeError(w, apperr.Validation("creator_ids is required"))
		return
	}
	if !s.localLimit.Allow(identity.Source + ":" + identity.SourceID) {
		writeError(w, apperr.RateLimitExceeded("creator_monitor"))
		return
	}

	task, err := s.tasks.Create(r.Context(), identity.Source, identity.SourceID, "creator_monitor")
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.tasks.Start(r.Context(), task.ID); err != nil {
		writeError(w, err)
		return
	}
	task.Status = taskstore.StatusRunning

	monitor := orchestrator.NewCreatorMonitor(s.tasks)
	s.dispatchBackground(task, func(ctx context.Context) error {
		svc := s.newConnectorService(identity, task)
		_, runErr := monitor.Run(ctx, svc, task, sniperPlatform, req.CreatorIDs)
		svc.Close(ctx, runErr)
		return runErr
	})

	writeOK(w, map[string]any{"task_id": task.ID, "status": task.Status})
}

type sniperTrendRequest struct {
	Keywords string `json:"keywords"`
}

func (s *Server) handleSniperTrend(w http.ResponseWriter, r *http.Request) {
	identity, err := identityFrom(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req sniperTrendRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Keywords == "" {
		writeError(w, apperr.Validation("keywords is required"))
		return
	}
	if !s.localLimit.Allow(identity.Source + ":" + identity.SourceID) {
		writeError(w, apperr.RateLimitExceeded("trend_analysis"))
		return
	}

	task, err := s.tasks.Create(r.Context(), identity.Source, identity.SourceID, "trend_analysis")
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.tasks.Start(r.Context(), task.ID); err != nil {
		writeError(w, err)
		return
	}
	task.Status = taskstore.StatusRunning

	trend := orchestrator.NewTrendAnalysis(s.tasks, s.planner, s.agent)
	s.dispatchBackground(task, func(ctx context.Context) error {
		svc := s.newConnectorService(identity, task)
		probe := func(ctx context.Context) (connectors.LoginResult, error) {
			return svc.Login(ctx, sniperPlatform, "qrcode", nil, 1)
		}
		_, runErr := trend.Run(ctx, svc, task, sniperPlatform, req.Keywords, probe)
		svc.Close(ctx, runErr)
		return runErr
	})

	writeOK(w, map[string]any{"task_id": task.ID, "status": task.Status})
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	if _, err := identityFrom(r); err != nil {
		writeError(w, err)
		return
	}
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, apperr.Validation("invalid task id"))
		return
	}
	task, err := s.tasks.Get(r.Context(), id)
	if err != nil {
		writeError(w, apperr.Internal(err))
		return
	}
	if task == nil {
		writeError(w, apperr.Validation("task not found"))
		return
	}
	writeOK(w, taskstore.ToAgentReadable(task))
}

func (s *Server) handleGetTaskLogs(w http.ResponseWriter, r *http.Request) {
	if _, err := identityFrom(r); err != nil {
		writeError(w, err)
		return
	}
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, apperr.Validation("invalid task id"))
		return
	}
	task, err := s.tasks.Get(r.Context(), id)
	if err != nil {
		writeError(w, apperr.Internal(err))
		return
	}
	if task == nil {
		writeError(w, apperr.Validation("task not found"))
		return
	}

	offset := 0
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}
	logs := task.Logs
	if offset > len(logs) {
		offset = len(logs)
	}
	page := logs[offset:]
	writeOK(w, map[string]any{
		"logs":     page,
		"has_more": len(task.Logs) > offset+len(page),
	})
}

type listTasksRequest struct {
	SourceID string `json:"source_id,omitempty"`
	Status   string `json:"status,omitempty"`
	TaskType string `json:"task_type,omitempty"`
	Limit    int    `json:"limit,omitempty"`
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	identity, err := identityFrom(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req listTasksRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, err)
			return
		}
	}
	sourceID := req.SourceID
	if sourceID == "" {
		sourceID = identity.SourceID
	}
	limit := orDefault(req.Limit, 20)

	tasks, err := s.tasks.List(r.Context(), taskstore.ListFilter{
		SourceID: sourceID,
		Status:   taskstore.TaskStatus(req.Status),
		TaskType: req.TaskType,
		Limit:    limit,
	})
	if err != nil {
		writeError(w, apperr.Internal(err))
		return
	}
	views := make([]taskstore.AgentReadable, 0, len(tasks))
	for _, t := range tasks {
		views = append(views, taskstore.ToAgentReadable(t))
	}
	writeOK(w, map[string]any{"tasks": views})
}
