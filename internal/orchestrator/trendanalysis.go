package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"github.com/nextlevelbuilder/harvestgate/internal/connectors"
	"github.com/nextlevelbuilder/harvestgate/internal/connectorsvc"
	"github.com/nextlevelbuilder/harvestgate/internal/llmagent"
	"github.com/nextlevelbuilder/harvestgate/internal/taskstore"
)

const (
	trendSearchLimit  = 10
	trendTopN         = 10
	trendDetailConcur = 2
)

// TrendAnalysis implements the trend-analysis workflow (spec §4.H), grounded
// on original_source/services/sniper/agent/xhs_trend.py's
// XiaohongshuTrendAgent.execute.
type TrendAnalysis struct {
	tasks   taskstore.TaskStore
	planner *llmagent.Planner
	agent   llmagent.Agent
}

// NewTrendAnalysis builds a TrendAnalysis. planner expands the seed keyword;
// agent performs the final analysis over the collected note cards.
func NewTrendAnalysis(tasks taskstore.TaskStore, planner *llmagent.Planner, agent llmagent.Agent) *TrendAnalysis {
	return &TrendAnalysis{tasks: tasks, planner: planner, agent: agent}
}

// loginProbe checks whether the platform's context already carries a valid
// session (spec §4.H step 3); it wraps the connector's QR-login probe
// without actually waiting for a scan when already logged in.
type loginProbe func(ctx context.Context) (connectors.LoginResult, error)

// Run executes the trend-analysis workflow against a seed keyword. probe is
// called first (spec §4.E.iv QR-login probe reused for a pre-check); when
// the probe reports not-logged-in, Run transitions task to waiting_login
// and returns without touching the connector service further.
func (t *TrendAnalysis) Run(ctx context.Context, svc *connectorsvc.Service, task *taskstore.Task, platform, seedKeyword string, probe loginProbe) (string, error) {
	_ = t.tasks.LogStep(ctx, task.ID, 0, "task_initialized", map[string]any{"seed_keyword": seedKeyword}, nil, "ok")

	loginRes, err := probe(ctx)
	if err != nil {
		return "", err
	}
	if !loginRes.IsLoggedIn {
		info := map[string]any{
			"platform":     platform,
			"context_id":   loginRes.ContextID,
			"resource_url": loginRes.QRCode,
		}
		if err := t.tasks.WaitingLogin(ctx, task.ID, info); err != nil {
			return "", err
		}
		return "", nil
	}

	keywords, err := t.planner.ExpandKeywords(ctx, seedKeyword)
	if err != nil {
		return "", err
	}
	_ = t.tasks.LogStep(ctx, task.ID, 1, "keyword_expansion", map[string]any{"core_keyword": seedKeyword}, map[string]any{"keywords": keywords}, "ok")

	_ = t.tasks.LogStep(ctx, task.ID, 2, "search", map[string]any{"keywords": keywords}, nil, "ok")
	raw, err := svc.SearchAndExtract(ctx, platform, keywords, trendSearchLimit, 2)
	if err != nil {
		return "", err
	}
	topNotes := topSearchResults(raw, trendTopN)
	_ = t.tasks.LogStep(ctx, task.ID, 2, "search", map[string]any{"keywords": keywords}, map[string]any{
		"raw_count": len(raw), "unique_top_count": len(topNotes),
	}, "ok")
	if len(topNotes) == 0 {
		_ = t.tasks.Fail(ctx, task.ID, "no search results found", nil)
		return "", nil
	}

	urls := make([]string, 0, len(topNotes))
	for _, n := range topNotes {
		if n.FullURL != "" {
			urls = append(urls, n.FullURL)
		}
	}

	_ = t.tasks.LogStep(ctx, task.ID, 3, "fetch_details", map[string]any{"note_count": len(urls)}, nil, "ok")
	// A single call covers the whole url list: the connector's own
	// BatchesOf3 already gives the batch-of-3/concurrency-2 shape internally
	// (spec §4.E.iii), and the rate-limit gate in connectorsvc.Service is
	// acquired once per (platform, operation) per Service instance and only
	// released at Close, so calling this twice on one svc would
	// self-conflict against its own held lock.
	details, err := svc.GetNoteDetails(ctx, platform, urls, trendDetailConcur)
	if err != nil {
		return "", err
	}

	analysisContext := t.buildAnalysisContext(topNotes, details)
	_ = t.tasks.LogStep(ctx, task.ID, 3, "fetch_details", map[string]any{"note_count": len(urls)}, map[string]any{"context_length": len(analysisContext)}, "ok")

	prompt := fmt.Sprintf(trendAnalysisPromptTemplate, seedKeyword, analysisContext)
	analysis, err := t.agent.Run(ctx, prompt)
	if err != nil {
		return "", err
	}
	_ = t.tasks.LogStep(ctx, task.ID, 4, "agent_analysis", map[string]any{"data_size": len(analysisContext)}, map[string]any{"analysis_length": len(analysis)}, "ok")

	if err := t.tasks.Complete(ctx, task.ID, map[string]any{"output": analysis}); err != nil {
		return "", err
	}
	return analysis, nil
}

// buildAnalysisContext concatenates note cards into the text block fed to
// the analyzing LLM, grounded on xhs_trend.py's _fetch_details note_str
// formatting.
func (t *TrendAnalysis) buildAnalysisContext(notes []connectors.NoteSummary, details []connectors.NoteDetail) string {
	byURL := make(map[string]connectors.NoteDetail, len(details))
	for _, d := range details {
		if d.Success {
			byURL[d.URL] = d
		}
	}

	var b strings.Builder
	for i, note := range notes {
		detail, ok := byURL[note.FullURL]
		title := note.Title
		desc, likes, collected, comments := "", note.LikedCount, 0, 0
		if ok {
			title = stringField(detail.Record, "title", title)
			desc = stringField(detail.Record, "desc", "")
			likes = intField(detail.Record, "liked_count")
			collected = intField(detail.Record, "collected_count")
			comments = intField(detail.Record, "comment_count")
		}
		fmt.Fprintf(&b, "[Note %d]\nTitle: %s\nURL: %s\nLikes: %d Collected: %d Comments: %d\nContent:\n%s\n%s\n\n",
			i+1, title, note.FullURL, likes, collected, comments, desc, strings.Repeat("=", 40))
	}
	return b.String()
}

const trendAnalysisPromptTemplate = `Core keyword: %s

Here is the freshly collected search and detail data:

%s

Analyze how these posts drive engagement (title hooks, cover appeal, comment pain points), extract the concrete data behind each viral post, and propose 3 actionable content ideas. Cite each claim with the post's full URL as evidence.`
