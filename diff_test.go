package gradio

import (
	"reflect"
	"testing"
)

func TestApplyDiffReplace(t *testing.T) {
	prev := map[string]any{"text": "hi"}
	next := ApplyDiff(prev, DiffOp{Path: []any{"text"}, Op: "replace", Value: "hello"})

	got, ok := next.(map[string]any)
	if !ok {
		t.Fatalf("ApplyDiff returned %T, want map[string]any", next)
	}
	if got["text"] != "hello" {
		t.Errorf("text = %v, want hello", got["text"])
	}
	if prev["text"] != "hi" {
		t.Errorf("ApplyDiff mutated prev in place: %v", prev["text"])
	}
}

func TestApplyDiffAppend(t *testing.T) {
	prev := map[string]any{"items": []any{"a"}}
	next := ApplyDiff(prev, DiffOp{Path: []any{"items"}, Op: "append", Value: "b"})

	got := next.(map[string]any)["items"].([]any)
	want := []any{"a", "b"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("items = %v, want %v", got, want)
	}
}

func TestApplyDiffNestedArrayIndex(t *testing.T) {
	prev := []any{"h"}
	next := ApplyDiff(prev, DiffOp{Path: []any{float64(0)}, Op: "replace", Value: "hi"})

	got, ok := next.([]any)
	if !ok || len(got) != 1 || got[0] != "hi" {
		t.Errorf("ApplyDiff = %v, want [hi]", next)
	}
}

func TestDiffStoreFoldFullThenDiff(t *testing.T) {
	store := NewDiffStore()

	full := InterpretedFrame{Data: &wireOutput{Data: []any{"h"}}}
	v, ok := store.Fold("E1", full)
	if !ok {
		t.Fatal("Fold() on full frame returned ok=false")
	}
	if got := v.([]any); got[0] != "h" {
		t.Errorf("first fold = %v, want [h]", got)
	}

	diffFrame := InterpretedFrame{
		HasDiff: true,
		Diff:    []diffOpWire{{Op: "replace", Path: []any{float64(0)}, Value: "hi"}},
	}
	v2, ok := store.Fold("E1", diffFrame)
	if !ok {
		t.Fatal("Fold() on diff frame returned ok=false")
	}
	got2 := v2.([]any)
	if got2[0] != "hi" {
		t.Errorf("folded value = %v, want [hi]", got2)
	}

	if !store.Has("E1") {
		t.Error("Has(E1) = false, want true before Discard")
	}
	store.Discard("E1")
	if store.Has("E1") {
		t.Error("Has(E1) = true after Discard, want false")
	}
}

func TestDiffStoreFoldNoPayload(t *testing.T) {
	store := NewDiffStore()
	_, ok := store.Fold("E2", InterpretedFrame{})
	if ok {
		t.Error("Fold() on empty frame returned ok=true, want false")
	}
}
