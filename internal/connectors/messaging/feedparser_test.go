package messaging

import (
	"strings"
	"testing"
)

func TestParseFeed_KeywordFilterMatchesScenarioS6(t *testing.T) {
	feed := `{"items":[` +
		`{"title":"A","description":"","channel_name":""},` +
		`{"title":"B foo","description":"","channel_name":""},` +
		`{"title":"foo","description":"","channel_name":""}` +
		`]}`

	items, err := ParseFeed(strings.NewReader(feed), "foo", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 matching items, got %d: %+v", len(items), items)
	}
	if items[0].Title != "B foo" || items[1].Title != "foo" {
		t.Fatalf("expected file order B-foo then foo, got %+v", items)
	}
}

func TestParseFeed_NoKeywordMatchesEverything(t *testing.T) {
	feed := `{"items":[{"title":"A"},{"title":"B"},{"title":"C"}]}`

	items, err := ParseFeed(strings.NewReader(feed), "", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("expected all 3 items, got %d", len(items))
	}
}

func TestParseFeed_EarlyExitsAtLimit(t *testing.T) {
	feed := `{"items":[{"title":"A"},{"title":"B"},{"title":"C"},{"title":"D"}]}`

	items, err := ParseFeed(strings.NewReader(feed), "", 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected exactly 2 items (limit), got %d", len(items))
	}
	if items[0].Title != "A" || items[1].Title != "B" {
		t.Fatalf("expected first two items in file order, got %+v", items)
	}
}

func TestParseFeed_HandlesEscapedQuotesInStrings(t *testing.T) {
	feed := `{"items":[{"title":"she said \"hi\"","description":"","channel_name":""}]}`

	items, err := ParseFeed(strings.NewReader(feed), "", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(items))
	}
	if items[0].Title != `she said "hi"` {
		t.Fatalf("expected escaped quotes to decode correctly, got %q", items[0].Title)
	}
}

func TestParseFeed_RoundTripsFullItemStructurally(t *testing.T) {
	feed := `{"items":[{"title":"T","description":"D","link":"L","updated":"U","content":"C","channel_name":"Ch","feed":{"f":1},"id":"I1"}]}`

	items, err := ParseFeed(strings.NewReader(feed), "", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(items))
	}
	got := items[0]
	if got.Title != "T" || got.Description != "D" || got.Link != "L" || got.Updated != "U" ||
		got.Content != "C" || got.ChannelName != "Ch" || got.ID != "I1" {
		t.Fatalf("field mismatch: %+v", got)
	}
	if got.Feed["f"] != float64(1) {
		t.Fatalf("expected feed sub-object to round-trip, got %+v", got.Feed)
	}
}
