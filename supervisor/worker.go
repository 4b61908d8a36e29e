package supervisor

import (
	"net"
	"os/exec"
	"time"

	"github.com/mkrell/harbord"
)

// writeTimeout bounds a control-byte write. A healthy loopback write
// completes immediately; hitting this deadline means the worker stopped
// draining its socket, which counts as a liveness failure.
const writeTimeout = time.Second

// worker is one managed worker: the spawned child process plus its paired
// control connection. Owned exclusively by the event loop; nothing else
// holds or mutates one.
type worker struct {
	role harbord.Role
	conn net.Conn
	cmd  *exec.Cmd // nil for conn-only workers in tests
}

// ping writes one Ping byte. The write succeeding is the entire liveness
// check — workers send no response, and a dead or wedged worker surfaces
// as a write error. No separate exit polling is needed.
func (w *worker) ping() bool {
	return w.send(harbord.CommandPing)
}

// askShutdown writes one Shutdown byte, best effort. The worker is
// trusted to terminate itself on receipt; the supervisor never blocks
// waiting for the process to exit and never force-kills it here.
func (w *worker) askShutdown() bool {
	return w.send(harbord.CommandShutdown)
}

func (w *worker) send(c harbord.Command) bool {
	if err := w.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return false
	}
	_, err := w.conn.Write([]byte{c.Byte()})
	return err == nil
}

// close releases the control connection. The worker's attach runtime
// treats the resulting EOF like an explicit shutdown request, so a
// worker that missed the shutdown byte still terminates.
func (w *worker) close() {
	_ = w.conn.Close()
}
