package harbord

import "strconv"

// Command is the one-byte control protocol spoken between the supervisor
// and a worker's attach runtime over the loopback connection. There are
// no length prefixes, no payloads, and no response bytes: the absence of
// a write error is a ping's acknowledgment.
//
// The byte values are fixed wire format. New commands get new byte
// values; existing values are never overloaded.
type Command byte

const (
	// CommandPing is a liveness probe. Workers take no action on it.
	CommandPing Command = 0

	// CommandShutdown asks the worker to terminate gracefully.
	CommandShutdown Command = 1
)

// ParseCommand decodes a wire byte. The second return is false for bytes
// outside the protocol; receivers log and ignore those rather than
// failing, so that older workers tolerate newer supervisors.
func ParseCommand(b byte) (Command, bool) {
	switch c := Command(b); c {
	case CommandPing, CommandShutdown:
		return c, true
	default:
		return 0, false
	}
}

// Byte returns the wire encoding of c.
func (c Command) Byte() byte { return byte(c) }

func (c Command) String() string {
	switch c {
	case CommandPing:
		return "ping"
	case CommandShutdown:
		return "shutdown"
	default:
		return "command(" + strconv.Itoa(int(c)) + ")"
	}
}
