package videoshare

import "github.com/nextlevelbuilder/harvestgate/internal/connectors"

// parseSearchItems maps an agent.Extract result shaped like douyin.py's
// SearchItems/SearchResult pydantic models ({"items": [{"title", "url",
// "author", "liked_count"}, ...]}) into NoteSummary values, truncated to
// limit.
func parseSearchItems(data map[string]any, limit int) []connectors.NoteSummary {
	rawItems, _ := data["items"].([]any)
	out := make([]connectors.NoteSummary, 0, len(rawItems))
	for _, raw := range rawItems {
		item, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		out = append(out, connectors.NoteSummary{
			FullURL: stringField(item, "url"),
			Title:   stringField(item, "title"),
			Extra: map[string]any{
				"author":      stringField(item, "author"),
				"liked_count": stringField(item, "liked_count"),
			},
		})
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}

func stringField(m map[string]any, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}
