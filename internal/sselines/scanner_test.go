package sselines

import (
	"strings"
	"testing"
)

func TestScannerJoinsContinuationLines(t *testing.T) {
	sc := New(strings.NewReader("data: a\ndata: b\n\n: comment\ndata: c\n\n"))

	first, ok := sc.Next()
	if !ok || first != "a\nb" {
		t.Errorf("first = %q, ok=%v", first, ok)
	}

	second, ok := sc.Next()
	if !ok || second != "c" {
		t.Errorf("second = %q, ok=%v", second, ok)
	}

	if _, ok := sc.Next(); ok {
		t.Error("Next() ok=true at EOF, want false")
	}
	if sc.Err() != nil {
		t.Errorf("Err() = %v, want nil", sc.Err())
	}
}

func TestScannerIgnoresEventAndIDLines(t *testing.T) {
	sc := New(strings.NewReader("event: update\nid: 7\ndata: payload\n\n"))

	got, ok := sc.Next()
	if !ok || got != "payload" {
		t.Errorf("got = %q, ok=%v", got, ok)
	}
}

func TestScannerNoDataLinesYieldsFalse(t *testing.T) {
	sc := New(strings.NewReader(": keepalive\n\n"))
	if _, ok := sc.Next(); ok {
		t.Error("Next() ok=true for comment-only block, want false")
	}
}
