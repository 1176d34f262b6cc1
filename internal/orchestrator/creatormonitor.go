package orchestrator

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/nextlevelbuilder/harvestgate/internal/connectorsvc"
	"github.com/nextlevelbuilder/harvestgate/internal/connectors"
	"github.com/nextlevelbuilder/harvestgate/internal/taskstore"
)

// defaultMonitorWindow is the creator-monitor "N days" default (spec §4.H).
const defaultMonitorWindow = 10 * 24 * time.Hour

const detailBatchConcurrency = 2

// creatorFilterResult mirrors xhs_creator.py's _filter_today_notes return
// shape: notes inside the window, the first note found outside it (if any),
// and every pinned note regardless of age.
type creatorFilterResult struct {
	recentNotes     []connectors.NoteDetail
	lastNoteOutside *connectors.NoteDetail
	pinnedNotes     []connectors.NoteDetail
}

type creatorOutcome struct {
	creatorID  string
	success    bool
	err        string
	totalNotes int
	filter     creatorFilterResult
}

// CreatorMonitor implements the creator-monitor workflow (spec §4.H),
// grounded on original_source/services/sniper/xhs_creator.py's CreatorSniper.
type CreatorMonitor struct {
	tasks  taskstore.TaskStore
	window time.Duration
}

// NewCreatorMonitor builds a CreatorMonitor with the default 10-day window.
func NewCreatorMonitor(tasks taskstore.TaskStore) *CreatorMonitor {
	return &CreatorMonitor{tasks: tasks, window: defaultMonitorWindow}
}

// Run monitors creatorIDs on platform, producing a natural-language report
// and completing task with {"report": ...}. Errors are returned to the
// caller, which is expected to close its connectorsvc.Service scope with
// the same error so task-lifecycle coupling (spec §4.F step 6) applies.
func (m *CreatorMonitor) Run(ctx context.Context, svc *connectorsvc.Service, task *taskstore.Task, platform string, creatorIDs []string) (string, error) {
	_ = m.tasks.LogStep(ctx, task.ID, 0, "task_initialized", map[string]any{
		"creators_to_monitor":   creatorIDs,
		"monitoring_period_days": int(m.window.Hours() / 24),
	}, map[string]any{"creators_count": len(creatorIDs)}, "ok")

	outcomes := make([]creatorOutcome, 0, len(creatorIDs))
	for i, creatorID := range creatorIDs {
		outcome := m.monitorOneCreator(ctx, svc, platform, creatorID)
		outcomes = append(outcomes, outcome)

		status := "ok"
		if !outcome.success {
			status = "error"
		}
		_ = m.tasks.LogStep(ctx, task.ID, 1+i, fmt.Sprintf("monitor creator %s", creatorID), map[string]any{
			"creator_id": creatorID,
		}, map[string]any{
			"total_notes":  outcome.totalNotes,
			"recent_notes": len(outcome.filter.recentNotes),
			"pinned_notes": len(outcome.filter.pinnedNotes),
			"error":        outcome.err,
		}, status)
	}

	report := m.formatReport(creatorIDs, outcomes)

	totalRecent := 0
	for _, o := range outcomes {
		totalRecent += len(o.filter.recentNotes)
	}
	_ = m.tasks.LogStep(ctx, task.ID, 1+len(creatorIDs), "report_generated", map[string]any{
		"creators_monitored": len(outcomes),
	}, map[string]any{"new_notes_found": totalRecent}, "ok")

	if err := m.tasks.Complete(ctx, task.ID, map[string]any{"report": report}); err != nil {
		return "", err
	}
	return report, nil
}

func (m *CreatorMonitor) monitorOneCreator(ctx context.Context, svc *connectorsvc.Service, platform, creatorID string) creatorOutcome {
	summaries, err := svc.HarvestUserContent(ctx, platform, []string{creatorID}, 0, 1)
	if err != nil {
		return creatorOutcome{creatorID: creatorID, success: false, err: err.Error()}
	}

	urls := make([]string, 0, len(summaries))
	pinnedByURL := make(map[string]bool, len(summaries))
	for _, s := range summaries {
		if s.FullURL == "" {
			continue
		}
		urls = append(urls, s.FullURL)
		pinnedByURL[s.FullURL] = s.Pinned
	}

	filter := m.filterRecentNotes(ctx, svc, platform, urls, pinnedByURL)
	return creatorOutcome{creatorID: creatorID, success: true, totalNotes: len(summaries), filter: filter}
}

// filterRecentNotes mirrors _filter_today_notes: it fetches every URL's
// detail in one call (the connector's own BatchesOf3 gives the batch-of-3
// shape internally, per spec §4.E.iii — connectorsvc.Service's rate-limit
// gate is acquired once per (platform, operation) per Service instance and
// only released at Close, so a second call on the same svc would
// self-conflict against its own held lock), then walks the results in URL
// order applying the same early-exit-on-first-stale-note rule the batched
// version did, while still accumulating pinned notes found after that
// point.
func (m *CreatorMonitor) filterRecentNotes(ctx context.Context, svc *connectorsvc.Service, platform string, urls []string, pinnedByURL map[string]bool) creatorFilterResult {
	var result creatorFilterResult
	if len(urls) == 0 {
		return result
	}

	details, err := svc.GetNoteDetails(ctx, platform, urls, detailBatchConcurrency)
	if err != nil {
		return result
	}
	byURL := make(map[string]connectors.NoteDetail, len(details))
	for _, d := range details {
		byURL[d.URL] = d
	}

	cutoff := time.Now().Add(-m.window)

	for _, url := range urls {
		detail, ok := byURL[url]
		if !ok || !detail.Success {
			continue
		}
		publishedAt, ok := publishTimeOf(detail.Record)
		if !ok {
			continue
		}
		pinned := pinnedByURL[detail.URL]

		switch {
		case publishedAt.After(cutoff) || publishedAt.Equal(cutoff):
			result.recentNotes = append(result.recentNotes, detail)
			if pinned {
				result.pinnedNotes = append(result.pinnedNotes, detail)
			}
		case pinned:
			result.pinnedNotes = append(result.pinnedNotes, detail)
		default:
			d := detail
			if result.lastNoteOutside == nil {
				result.lastNoteOutside = &d
			}
			return result
		}
	}
	return result
}

// publishTimeOf reads the publish_time field (unix milliseconds, per
// xhs_creator.py's "datetime.fromtimestamp(publish_time / 1000)") out of a
// connector's raw detail record.
func publishTimeOf(record map[string]any) (time.Time, bool) {
	raw, ok := record["publish_time"]
	if !ok {
		return time.Time{}, false
	}
	switch v := raw.(type) {
	case float64:
		return time.UnixMilli(int64(v)), true
	case int64:
		return time.UnixMilli(v), true
	case int:
		return time.UnixMilli(int64(v)), true
	default:
		return time.Time{}, false
	}
}

func stringField(record map[string]any, key, fallback string) string {
	if v, ok := record[key].(string); ok && v != "" {
		return v
	}
	return fallback
}

func intField(record map[string]any, key string) int {
	switch v := record[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return 0
	}
}

func (m *CreatorMonitor) formatReport(creatorIDs []string, outcomes []creatorOutcome) string {
	var b strings.Builder
	totalRecent := 0
	for _, o := range outcomes {
		totalRecent += len(o.filter.recentNotes)
	}

	fmt.Fprintf(&b, "Creator monitor report\n")
	fmt.Fprintf(&b, "Monitored: %d/%d creators, window: %d days, new notes: %d\n\n",
		len(outcomes), len(creatorIDs), int(m.window.Hours()/24), totalRecent)

	for _, o := range outcomes {
		fmt.Fprintf(&b, "Creator %s\n", o.creatorID)
		if !o.success {
			fmt.Fprintf(&b, "  monitoring failed: %s\n\n", o.err)
			continue
		}
		fmt.Fprintf(&b, "  total notes: %d, recent: %d, pinned: %d\n", o.totalNotes, len(o.filter.recentNotes), len(o.filter.pinnedNotes))

		if o.filter.lastNoteOutside != nil {
			d := o.filter.lastNoteOutside
			fmt.Fprintf(&b, "  last note outside window: %s (%s)\n", stringField(d.Record, "title", "untitled"), d.URL)
		}

		sorted := append([]connectors.NoteDetail(nil), o.filter.recentNotes...)
		sort.SliceStable(sorted, func(i, j int) bool {
			ti, _ := publishTimeOf(sorted[i].Record)
			tj, _ := publishTimeOf(sorted[j].Record)
			return ti.After(tj)
		})
		for _, d := range sorted {
			fmt.Fprintf(&b, "    [new] %s - %s (likes %d)\n", stringField(d.Record, "title", "untitled"), d.URL, intField(d.Record, "liked_count"))
		}
		for _, d := range o.filter.pinnedNotes {
			fmt.Fprintf(&b, "    [pinned] %s - %s\n", stringField(d.Record, "title", "untitled"), d.URL)
		}
		b.WriteString("\n")
	}
	return b.String()
}
