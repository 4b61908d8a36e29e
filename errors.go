package harbord

import "errors"

// Sentinel errors shared across the supervisor and its subpackages.
var (
	// ErrUnknownRole indicates a role string outside the closed Role set.
	ErrUnknownRole = errors.New("harbord: unknown role")

	// ErrSupervisorClosed indicates a Start or Stop request submitted
	// after the supervisor's event loop has exited.
	ErrSupervisorClosed = errors.New("harbord: supervisor closed")

	// ErrAttachTimeout indicates a spawned worker never connected back
	// to the supervisor's loopback listener within the attach window.
	// Fatal to that start request only; the supervisor stays alive.
	ErrAttachTimeout = errors.New("harbord: worker did not attach in time")

	// ErrMissingLength indicates a checkpoint server that did not report
	// a Content-Length. The loader needs the total up front for progress
	// reporting and does not support unknown-length sources.
	ErrMissingLength = errors.New("harbord: checkpoint response has no content length")

	// ErrNoAnchors indicates a structurally valid snapshot containing
	// zero extractable anchor records. Distinct from I/O or corruption
	// errors so callers can tell an empty snapshot from a broken one.
	ErrNoAnchors = errors.New("harbord: no anchors in snapshot")
)
