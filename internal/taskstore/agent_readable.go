package taskstore

import (
	"fmt"
	"strings"
)

// AgentReadable is the natural-language rendering of a Task, grounded on
// original_source/models/task.py's to_agent_readable/_get_next_step_hint.
type AgentReadable struct {
	TaskID      string         `json:"task_id"`
	TaskType    string         `json:"task_type"`
	Status      TaskStatus     `json:"status"`
	Progress    int            `json:"progress"`
	Summary     string         `json:"summary"`
	Logs        []StepLog      `json:"logs"`
	Result      map[string]any `json:"result,omitempty"`
	Error       string         `json:"error,omitempty"`
	NextStepHint string        `json:"next_step_hint"`
}

// ToAgentReadable builds the summary/hint an LLM or a human consumes to
// decide what to do next (spec §4.B).
func ToAgentReadable(t *Task) AgentReadable {
	var parts []string
	parts = append(parts, fmt.Sprintf("task type: %s", t.TaskType))
	parts = append(parts, fmt.Sprintf("status: %s", t.Status))
	parts = append(parts, fmt.Sprintf("progress: %d%%", t.Progress))

	if t.Error != "" {
		parts = append(parts, fmt.Sprintf("error: %s", t.Error))
	}

	if len(t.Logs) > 0 {
		var lb strings.Builder
		fmt.Fprintf(&lb, "%d step(s) executed:", len(t.Logs))
		for _, l := range t.Logs {
			fmt.Fprintf(&lb, "\n  - step %d: %s (%s)", l.Step, l.Name, l.Status)
		}
		parts = append(parts, lb.String())
	}

	if t.Result != nil {
		parts = append(parts, fmt.Sprintf("result: %s", headOfResult(t.Result)))
	}

	return AgentReadable{
		TaskID:       t.ID.String(),
		TaskType:     t.TaskType,
		Status:       t.Status,
		Progress:     t.Progress,
		Summary:      strings.Join(parts, "\n"),
		Logs:         t.Logs,
		Result:       t.Result,
		Error:        t.Error,
		NextStepHint: nextStepHint(t),
	}
}

func headOfResult(result map[string]any) string {
	const maxLen = 100
	for _, key := range []string{"analysis", "report"} {
		if v, ok := result[key]; ok {
			if s, ok := v.(string); ok {
				return truncate(s, maxLen)
			}
		}
	}
	return truncate(fmt.Sprintf("%v", result), maxLen)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func nextStepHint(t *Task) string {
	switch t.Status {
	case StatusPending:
		return "task awaits start; check preconditions"
	case StatusRunning:
		completed := 0
		for _, l := range t.Logs {
			if l.Status == "completed" {
				completed++
			}
		}
		return fmt.Sprintf("task is running; %d step(s) completed, progress %d%%", completed, t.Progress)
	case StatusWaitingLogin:
		return "task awaits login; complete platform login to continue"
	case StatusCompleted:
		return "task completed; result and logs are available"
	case StatusFailed:
		if t.Error != "" {
			return fmt.Sprintf("task failed: %s; see logs for detail", t.Error)
		}
		return "task failed with an unknown error; see logs for detail"
	case StatusCancelled:
		return "task was cancelled"
	default:
		return "unknown task status"
	}
}
