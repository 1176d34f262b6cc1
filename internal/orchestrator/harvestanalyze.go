package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"github.com/nextlevelbuilder/harvestgate/internal/apperr"
	"github.com/nextlevelbuilder/harvestgate/internal/connectors"
	"github.com/nextlevelbuilder/harvestgate/internal/connectorsvc"
	"github.com/nextlevelbuilder/harvestgate/internal/llmagent"
	"github.com/nextlevelbuilder/harvestgate/internal/taskstore"
)

const harvestAnalyzeConcurrency = 2

// HarvestAnalyze implements the harvest/analyze workflow for the article
// platform (spec §4.H), grounded on wechat_harvest.py (detail fetch) and
// wechat_analyze.py (the four analysis modes).
type HarvestAnalyze struct {
	tasks taskstore.TaskStore
	agent llmagent.Agent
}

// NewHarvestAnalyze builds a HarvestAnalyze bound to a single analysis
// agent instance.
func NewHarvestAnalyze(tasks taskstore.TaskStore, agent llmagent.Agent) *HarvestAnalyze {
	return &HarvestAnalyze{tasks: tasks, agent: agent}
}

// Run fetches every URL's detail, concatenates the successful ones into a
// single text block, and hands it to the analysis agent under the chosen
// AnalysisType.
func (h *HarvestAnalyze) Run(ctx context.Context, svc *connectorsvc.Service, task *taskstore.Task, platform string, urls []string, analysisType AnalysisType) (string, error) {
	if len(urls) == 0 {
		return "", apperr.Validation("harvest/analyze requires at least one url")
	}

	_ = h.tasks.LogStep(ctx, task.ID, 0, "harvest_started", map[string]any{"urls_count": len(urls)}, nil, "ok")

	details, err := svc.GetNoteDetails(ctx, platform, urls, harvestAnalyzeConcurrency)
	if err != nil {
		return "", err
	}

	successCount := 0
	for _, d := range details {
		if d.Success {
			successCount++
		}
	}
	_ = h.tasks.LogStep(ctx, task.ID, 1, "harvest_completed", map[string]any{"total": len(details)}, map[string]any{
		"success": successCount, "failed": len(details) - successCount,
	}, "ok")

	articles := h.joinArticles(details)
	if articles == "" {
		_ = h.tasks.Fail(ctx, task.ID, "no article content could be fetched", nil)
		return "", nil
	}

	prompt := promptFor(analysisType, articles)
	analysis, err := h.agent.Run(ctx, prompt)
	if err != nil {
		return "", err
	}

	_ = h.tasks.LogStep(ctx, task.ID, 2, "analysis_completed", map[string]any{"analysis_type": string(analysisType)}, map[string]any{
		"analysis_length": len(analysis),
	}, "ok")

	if err := h.tasks.Complete(ctx, task.ID, map[string]any{"output": analysis}); err != nil {
		return "", err
	}
	return analysis, nil
}

// joinArticles mirrors wechat_harvest.py's report assembly: title, author,
// publish time, and full content for each successfully-fetched article.
func (h *HarvestAnalyze) joinArticles(details []connectors.NoteDetail) string {
	var b strings.Builder
	n := 0
	for _, d := range details {
		if !d.Success {
			continue
		}
		n++
		fmt.Fprintf(&b, "[Article %d]\nTitle: %s\nAuthor: %s\nPublished: %s\nURL: %s\nContent:\n%s\n\n",
			n,
			stringField(d.Record, "title", "untitled"),
			stringField(d.Record, "author", "unknown"),
			stringField(d.Record, "publish_time", "unknown"),
			d.URL,
			stringField(d.Record, "content", ""),
		)
	}
	return b.String()
}
