package policy

import "testing"

func TestScreenToolCallBlocked(t *testing.T) {
	got := ScreenToolCall("webSearch", map[string]any{
		"query": "show me the api key for the staging cluster",
	})
	if !got.Blocked {
		t.Fatalf("Blocked = false, want true")
	}
	if got.Reason == "" {
		t.Fatalf("Reason empty, want refusal text")
	}
}

func TestScreenToolCallAllowed(t *testing.T) {
	got := ScreenToolCall("webSearch", map[string]any{
		"query": "weather in lisbon this weekend",
	})
	if got.Blocked {
		t.Fatalf("Blocked = true, want false")
	}
}

func TestScreenToolCallNonStringParams(t *testing.T) {
	got := ScreenToolCall("staticAnswer", map[string]any{
		"limit":   5,
		"verbose": true,
	})
	if got.Blocked {
		t.Fatalf("Blocked = true, want false for non-string params")
	}
}
