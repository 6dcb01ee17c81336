package analyze_test

import (
	"testing"

	"github.com/ramble-hpc/ramble/internal/analyze"
)

func TestTrimValueShortStringUnchanged(t *testing.T) {
	got := analyze.TrimValue("short", 20)
	if got != "short" {
		t.Fatalf("got %q, want %q", got, "short")
	}
}

func TestTrimValueDisabledWhenMaxLenNonPositive(t *testing.T) {
	long := "this is a fairly long captured value"
	if got := analyze.TrimValue(long, 0); got != long {
		t.Fatalf("got %q, want unchanged %q", got, long)
	}
	if got := analyze.TrimValue(long, -1); got != long {
		t.Fatalf("got %q, want unchanged %q", got, long)
	}
}

func TestTrimValueTruncatesLongString(t *testing.T) {
	long := "0123456789abcdefghij"
	got := analyze.TrimValue(long, 10)
	want := "0123456789<...20 chars>"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}
