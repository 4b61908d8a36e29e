// Package logmux turns raw worker output streams into a fan-out line feed.
//
// A Mux reads byte streams line by line, strips terminal color escape
// sequences, and republishes each cleaned line to any number of
// subscribers. Publication is fire-and-forget: a slow subscriber loses
// its oldest lines rather than ever blocking the producer, so a stalled
// log viewer can never stall a worker pipe.
package logmux

import (
	"bufio"
	"io"
	"regexp"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// DefaultBacklog is the number of recent lines retained for late
// subscribers. Matches the per-subscriber channel capacity.
const DefaultBacklog = 5000

// maxLineSize bounds a single log line. Longer lines are truncated by the
// scanner rather than growing without bound.
const maxLineSize = 256 * 1024

// ansiPattern matches CSI color/erase sequences (terminated by m or K).
var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;]*[mK]`)

// Mux is a multi-subscriber line feed. One Mux serves a whole supervisor;
// every captured stream feeds the same sink.
type Mux struct {
	log     zerolog.Logger
	backlog int

	mu      sync.Mutex
	history []string      // ring of the most recent backlog lines
	subs    []chan string // buffered; never closed
}

// New creates a Mux retaining backlog lines for late subscribers.
// backlog <= 0 selects DefaultBacklog.
func New(backlog int, log zerolog.Logger) *Mux {
	if backlog <= 0 {
		backlog = DefaultBacklog
	}
	return &Mux{log: log, backlog: backlog}
}

// Subscribe returns a channel carrying every line published from this
// point on, preceded by the retained backlog. The channel is never
// closed; abandoned subscribers cost only their buffer, since a full
// channel drops its oldest entry instead of blocking the Mux.
func (m *Mux) Subscribe() <-chan string {
	m.mu.Lock()
	defer m.mu.Unlock()

	ch := make(chan string, m.backlog)
	for _, line := range m.history {
		ch <- line
	}
	m.subs = append(m.subs, ch)
	return ch
}

// Publish cleans line of ANSI color sequences and fans it out to the
// backlog and all current subscribers. Never blocks.
func (m *Mux) Publish(line string) {
	line = StripANSI(line)

	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.history) == m.backlog {
		copy(m.history, m.history[1:])
		m.history = m.history[:m.backlog-1]
	}
	m.history = append(m.history, line)

	for _, ch := range m.subs {
		select {
		case ch <- line:
		default:
			// Full subscriber: drop its oldest entry to make room.
			// If the subscriber raced us and drained, the retry may
			// still fail; the line is then dropped for that subscriber.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- line:
			default:
			}
		}
	}
}

// Capture consumes stdout and stderr concurrently until both reach EOF,
// publishing each line. It returns immediately; the pumps run in the
// background and log any terminal read error.
func (m *Mux) Capture(stdout, stderr io.Reader) {
	var g errgroup.Group
	g.Go(func() error { return m.pump(stdout) })
	g.Go(func() error { return m.pump(stderr) })
	go func() {
		if err := g.Wait(); err != nil {
			m.log.Debug().Err(err).Msg("log capture ended")
		}
	}()
}

// pump reads r line by line until EOF, then releases r if it is
// closeable — the Mux owns the read end of a captured pipe. A trailing
// fragment without a newline is published once the stream closes;
// bufio.Scanner holds it until then.
func (m *Mux) pump(r io.Reader) error {
	if c, ok := r.(io.Closer); ok {
		defer c.Close()
	}
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 4096), maxLineSize)
	for sc.Scan() {
		m.Publish(sc.Text())
	}
	return sc.Err()
}

// StripANSI removes CSI escape sequences terminated by m or K from line.
// Lines without such sequences are returned unchanged.
func StripANSI(line string) string {
	return ansiPattern.ReplaceAllString(line, "")
}
