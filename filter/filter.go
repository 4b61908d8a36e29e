// Package filter provides composable channel middleware for captured
// log-line streams. Consumers wrap a multiplexer subscription with these
// functions to select the lines they need.
package filter

import (
	"context"
	"regexp"
	"strings"
)

// Contains returns a channel that only passes lines containing substr.
// Spawns a goroutine that exits when ctx is cancelled or ch is closed.
// The returned channel is closed when the goroutine exits.
func Contains(ctx context.Context, ch <-chan string, substr string) <-chan string {
	return Match(ctx, ch, func(line string) bool {
		return strings.Contains(line, substr)
	})
}

// Prefix returns a channel that only passes lines starting with prefix.
// Useful for splitting one multiplexed stream back out by worker tag.
// Spawns a goroutine that exits when ctx is cancelled or ch is closed.
func Prefix(ctx context.Context, ch <-chan string, prefix string) <-chan string {
	return Match(ctx, ch, func(line string) bool {
		return strings.HasPrefix(line, prefix)
	})
}

// Pattern returns a channel that only passes lines matching re.
// Spawns a goroutine that exits when ctx is cancelled or ch is closed.
func Pattern(ctx context.Context, ch <-chan string, re *regexp.Regexp) <-chan string {
	return Match(ctx, ch, re.MatchString)
}

// Match spawns a goroutine that reads from ch, passes lines matching
// the predicate to the returned channel, and closes it when ch closes
// or ctx is cancelled. Callers must either drain the returned channel
// or cancel ctx to avoid goroutine leaks. Lines accepted by the
// predicate may be silently dropped if ctx is cancelled mid-send.
func Match(ctx context.Context, ch <-chan string, accept func(string) bool) <-chan string {
	out := make(chan string)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case line, ok := <-ch:
				if !ok {
					return
				}
				if accept(line) && !trySend(ctx, out, line) {
					return
				}
			}
		}
	}()
	return out
}

// trySend sends line on out, returning true on success.
// Returns false if ctx is cancelled before the send completes.
func trySend(ctx context.Context, out chan<- string, line string) bool {
	select {
	case out <- line:
		return true
	case <-ctx.Done():
		return false
	}
}
