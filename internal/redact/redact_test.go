package redact

import "testing"

func TestFieldRedactor_RedactsNestedField(t *testing.T) {
	r := &FieldRedactor{Fields: []string{"data.token"}}
	result := r.Filter("get_secret", map[string]any{
		"data": map[string]any{"token": "abc123", "name": "ok"},
	})

	m, ok := result.(map[string]any)
	if !ok {
		t.Fatalf("expected map result, got %T", result)
	}
	data, ok := m["data"].(map[string]any)
	if !ok {
		t.Fatalf("expected nested data map, got %T", m["data"])
	}
	if data["token"] != redactedPlaceholder {
		t.Fatalf("expected token redacted, got %v", data["token"])
	}
	if data["name"] != "ok" {
		t.Fatalf("expected name untouched, got %v", data["name"])
	}
}

func TestFieldRedactor_MissingFieldIsNoop(t *testing.T) {
	r := &FieldRedactor{Fields: []string{"data.token"}}
	result := r.Filter("list_items", map[string]any{"items": []any{"a", "b"}})

	m, ok := result.(map[string]any)
	if !ok {
		t.Fatalf("expected map result, got %T", result)
	}
	if len(m["items"].([]any)) != 2 {
		t.Fatalf("expected items untouched")
	}
	if _, present := m["data"]; present {
		t.Fatalf("expected no data key fabricated, got %+v", m)
	}
	if len(m) != 1 {
		t.Fatalf("expected result to gain no keys, got %+v", m)
	}
}

func TestFieldRedactor_NoFieldsConfigured(t *testing.T) {
	r := &FieldRedactor{}
	input := map[string]any{"a": 1}
	result := r.Filter("tool", input)
	m := result.(map[string]any)
	if m["a"] != 1 {
		t.Fatalf("expected passthrough, got %v", result)
	}
}

func TestChain_AppliesFiltersInSequence(t *testing.T) {
	chain := NewChain()
	chain.Add(&FieldRedactor{Fields: []string{"secret"}})
	chain.Add(&FieldRedactor{Fields: []string{"other"}})

	result := chain.Filter("tool", map[string]any{"secret": "x", "other": "y", "keep": "z"})
	m := result.(map[string]any)
	if m["secret"] != redactedPlaceholder || m["other"] != redactedPlaceholder {
		t.Fatalf("expected both fields redacted, got %+v", m)
	}
	if m["keep"] != "z" {
		t.Fatalf("expected unrelated field untouched, got %v", m["keep"])
	}
}
