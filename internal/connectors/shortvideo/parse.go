package shortvideo

import (
	"fmt"

	"github.com/nextlevelbuilder/harvestgate/internal/connectors"
)

// parseSummaries converts the raw JS value returned by extractInitialState
// (a list of note records with varying numeric/string field encodings,
// since it came back through a CDP evaluate round-trip) into NoteSummary
// values, truncated to limit.
func parseSummaries(raw any, limit int) []connectors.NoteSummary {
	items, ok := raw.([]any)
	if !ok {
		return nil
	}
	out := make([]connectors.NoteSummary, 0, len(items))
	for _, item := range items {
		rec, ok := item.(map[string]any)
		if !ok {
			continue
		}
		out = append(out, connectors.NoteSummary{
			NoteID:      stringField(rec, "id", "note_id"),
			FullURL:     stringField(rec, "full_url", "url"),
			Title:       stringField(rec, "title", "display_title"),
			LikedCount:  intField(rec, "liked_count", "likes"),
			Pinned:      boolField(rec, "pinned", "is_pinned"),
			PublishedAt: stringField(rec, "publish_time", "time"),
			Extra:       rec,
		})
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}

func stringField(rec map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := rec[k]; ok {
			if s, ok := v.(string); ok {
				return s
			}
		}
	}
	return ""
}

func intField(rec map[string]any, keys ...string) int {
	for _, k := range keys {
		v, ok := rec[k]
		if !ok {
			continue
		}
		switch n := v.(type) {
		case int:
			return n
		case int64:
			return int(n)
		case float64:
			return int(n)
		case string:
			var i int
			if _, err := fmt.Sscanf(n, "%d", &i); err == nil {
				return i
			}
		}
	}
	return 0
}

func boolField(rec map[string]any, keys ...string) bool {
	for _, k := range keys {
		if v, ok := rec[k]; ok {
			if b, ok := v.(bool); ok {
				return b
			}
		}
	}
	return false
}
