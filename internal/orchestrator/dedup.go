// Package orchestrator implements the long-running agent workflows that
// compose connector operations into multi-step tasks (spec §4.H): creator
// monitoring, trend analysis, and harvest/analyze. Each workflow runs
// inside a connectorsvc.Service scope so lock cleanup is automatic, and
// narrates its own progress through taskstore's append-only step log.
package orchestrator

import (
	"sort"

	"github.com/nextlevelbuilder/harvestgate/internal/connectors"
)

// topSearchResults deduplicates summaries by NoteID (falling back to
// FullURL), sorts the survivors by descending LikedCount, and truncates to
// limit (spec §4.E.ii / invariant 7), grounded on xhs_trend.py's
// _run_search: "优先使用 note_id，如果没有则使用 full_url" followed by a
// reverse sort on liked_count and a top-N slice.
func topSearchResults(summaries []connectors.NoteSummary, limit int) []connectors.NoteSummary {
	seen := make(map[string]bool, len(summaries))
	unique := make([]connectors.NoteSummary, 0, len(summaries))

	for _, s := range summaries {
		key := s.NoteID
		if key == "" {
			key = s.FullURL
		}
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		unique = append(unique, s)
	}

	sort.SliceStable(unique, func(i, j int) bool {
		return unique[i].LikedCount > unique[j].LikedCount
	})

	if limit > 0 && len(unique) > limit {
		unique = unique[:limit]
	}
	return unique
}
