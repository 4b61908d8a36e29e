package filter

import (
	"context"
	"regexp"
	"testing"
)

func fill(ch chan<- string, lines ...string) {
	for _, l := range lines {
		ch <- l
	}
	close(ch)
}

func drain(ch <-chan string) []string {
	var out []string
	for l := range ch {
		out = append(out, l)
	}
	return out
}

// --- Contains tests ---

func TestContains_PassesMatchingLines(t *testing.T) {
	in := make(chan string, 4)
	go fill(in,
		"block 100 connected",
		"mempool updated",
		"block 101 connected",
		"peer disconnected",
	)

	out := Contains(context.Background(), in, "block")
	got := drain(out)

	if len(got) != 2 {
		t.Fatalf("got %d lines, want 2", len(got))
	}
	if got[0] != "block 100 connected" {
		t.Errorf("got[0] = %q, want %q", got[0], "block 100 connected")
	}
	if got[1] != "block 101 connected" {
		t.Errorf("got[1] = %q, want %q", got[1], "block 101 connected")
	}
}

func TestContains_EmptyInput(t *testing.T) {
	in := make(chan string)
	close(in)

	out := Contains(context.Background(), in, "block")
	if got := drain(out); len(got) != 0 {
		t.Errorf("got %d lines, want 0", len(got))
	}
}

func TestContains_ContextCancellation(_ *testing.T) {
	in := make(chan string)
	ctx, cancel := context.WithCancel(context.Background())
	out := Contains(ctx, in, "block")

	cancel()

	// Output channel should close after ctx cancel.
	drain(out)
}

// --- Prefix tests ---

func TestPrefix_SplitsByWorkerTag(t *testing.T) {
	in := make(chan string, 4)
	go fill(in,
		"[indexer] syncing",
		"[lightclient] header 500",
		"[indexer] anchor updated",
		"[lightclient] header 501",
	)

	out := Prefix(context.Background(), in, "[indexer]")
	got := drain(out)

	if len(got) != 2 {
		t.Fatalf("got %d lines, want 2", len(got))
	}
	for i, l := range got {
		if l[:9] != "[indexer]" {
			t.Errorf("got[%d] = %q, want [indexer] prefix", i, l)
		}
	}
}

func TestPrefix_EmptyInput(t *testing.T) {
	in := make(chan string)
	close(in)

	out := Prefix(context.Background(), in, "[indexer]")
	if got := drain(out); len(got) != 0 {
		t.Errorf("got %d lines, want 0", len(got))
	}
}

// --- Pattern tests ---

func TestPattern_PassesOnlyMatches(t *testing.T) {
	in := make(chan string, 3)
	go fill(in,
		"height=100",
		"starting up",
		"height=205",
	)

	out := Pattern(context.Background(), in, regexp.MustCompile(`height=\d+`))
	got := drain(out)

	if len(got) != 2 {
		t.Fatalf("got %d lines, want 2", len(got))
	}
}

func TestPattern_ContextCancellation(_ *testing.T) {
	in := make(chan string)
	ctx, cancel := context.WithCancel(context.Background())
	out := Pattern(ctx, in, regexp.MustCompile(`.`))

	cancel()

	drain(out)
}

// --- Match tests ---

func TestMatch_PredicateControlsOutput(t *testing.T) {
	in := make(chan string, 3)
	go fill(in, "keep", "drop", "keep")

	out := Match(context.Background(), in, func(l string) bool { return l == "keep" })
	got := drain(out)

	if len(got) != 2 {
		t.Fatalf("got %d lines, want 2", len(got))
	}
}

func TestMatch_RejectAllDropsEverything(t *testing.T) {
	in := make(chan string, 3)
	go fill(in, "a", "b", "c")

	out := Match(context.Background(), in, func(string) bool { return false })
	if got := drain(out); len(got) != 0 {
		t.Errorf("got %d lines, want 0", len(got))
	}
}
