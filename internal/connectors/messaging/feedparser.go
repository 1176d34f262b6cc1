// Package messaging implements the external-feed-streaming extraction
// strategy (spec §4.E strategy 3) against a messaging-app article
// platform, grounded on
// original_source/services/sniper/connectors/wechat.py's `_parse_json_stream`.
package messaging

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// FeedBufferSize matches the original's chunked-read buffer size; large
// enough to rarely split a single item across more than a couple of reads.
const FeedBufferSize = 8192

// FeedItem is one parsed article, field-for-field matching the original's
// yielded dict.
type FeedItem struct {
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Link        string         `json:"link"`
	Updated     string         `json:"updated"`
	Content     string         `json:"content"`
	ChannelName string         `json:"channel_name"`
	Feed        map[string]any `json:"feed"`
	ID          string         `json:"id"`
}

// ParseFeed reads a JSON feed from r and yields up to limit items whose
// title+description+channel_name (lowercased, space-joined) contains
// keyword as a substring (case-insensitive). An empty keyword matches
// everything. The parser early-exits the moment limit items have been
// produced (spec §8 invariant 8), without fully buffering the remaining
// input.
//
// Algorithm: find the literal `"items":[`, then walk byte by byte tracking
// string state (with backslash-escape handling) and brace depth; every time
// brace depth returns to zero after having gone positive, the substring
// since the opening `{` is a complete JSON object, parsed and tested.
func ParseFeed(r io.Reader, keyword string, limit int) ([]FeedItem, error) {
	if limit <= 0 {
		limit = 20
	}
	keyword = strings.ToLower(keyword)

	br := bufio.NewReaderSize(r, FeedBufferSize)
	var buffer []byte
	inItems := false
	inString := false
	escapeNext := false
	braceCount := 0
	itemStart := -1

	var out []FeedItem

	chunk := make([]byte, FeedBufferSize)
	for {
		n, readErr := br.Read(chunk)
		if n > 0 {
			buffer = append(buffer, chunk[:n]...)

			if !inItems {
				idx := indexOf(buffer, `"items":[`)
				if idx != -1 {
					inItems = true
					buffer = buffer[idx+len(`"items":[`):]
					braceCount = 0
				}
			}

			if inItems {
				consumed := 0
				for i := 0; i < len(buffer); i++ {
					c := buffer[i]
					if escapeNext {
						escapeNext = false
						continue
					}
					if c == '\\' {
						escapeNext = true
						continue
					}
					if c == '"' {
						inString = !inString
						continue
					}
					if inString {
						continue
					}
					switch c {
					case '{':
						if braceCount == 0 {
							itemStart = i
						}
						braceCount++
					case '}':
						braceCount--
						if braceCount == 0 {
							itemJSON := buffer[itemStart : i+1]
							consumed = i + 1

							item, matched := decodeAndFilter(itemJSON, keyword)
							if matched {
								out = append(out, item)
								if len(out) >= limit {
									return out, nil
								}
							}
						}
					}
				}
				if consumed > 0 {
					buffer = buffer[consumed:]
				}
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return out, fmt.Errorf("messaging: read feed: %w", readErr)
		}
	}
	return out, nil
}

func indexOf(buffer []byte, needle string) int {
	return strings.Index(string(buffer), needle)
}

func decodeAndFilter(itemJSON []byte, keyword string) (FeedItem, bool) {
	var raw map[string]any
	if err := json.Unmarshal(itemJSON, &raw); err != nil {
		return FeedItem{}, false
	}

	item := FeedItem{
		Title:       stringOf(raw["title"]),
		Description: stringOf(raw["description"]),
		Link:        stringOf(raw["link"]),
		Updated:     stringOf(raw["updated"]),
		Content:     stringOf(raw["content"]),
		ChannelName: stringOf(raw["channel_name"]),
		ID:          stringOf(raw["id"]),
	}
	if feed, ok := raw["feed"].(map[string]any); ok {
		item.Feed = feed
	}

	if keyword != "" {
		searchText := strings.ToLower(item.Title + " " + item.Description + " " + item.ChannelName)
		if !strings.Contains(searchText, keyword) {
			return FeedItem{}, false
		}
	}
	return item, true
}

func stringOf(v any) string {
	s, _ := v.(string)
	return s
}
