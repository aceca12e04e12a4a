// Package gateway owns the OS side of terminal panes: creating, writing
// to, resizing and killing PTY sessions, and fanning their output into a
// single session-tagged event stream.
package gateway

import "errors"

var (
	// ErrSessionNotFound is returned by Write/Resize against a session
	// that was already killed. Callers treat it as non-fatal: log and
	// drop.
	ErrSessionNotFound = errors.New("session not found")

	// ErrClosed is returned once the gateway itself has been shut down.
	ErrClosed = errors.New("gateway closed")
)

// Output is one chunk of session output. Events for a given session are
// emitted in arrival order.
type Output struct {
	SessionID string
	Data      []byte
}

// Gateway is the PTY session contract consumed by the workspace manager.
type Gateway interface {
	// Create spawns a new session sized to the given character grid,
	// optionally rooted at workdir. Returns the new session ID.
	Create(rows, cols int, workdir string) (string, error)

	// Write sends bytes to the session's input.
	Write(sessionID string, p []byte) error

	// Resize adjusts the session's character grid.
	Resize(sessionID string, rows, cols int) error

	// Kill terminates the session. Killing an already-dead session is
	// not an error.
	Kill(sessionID string) error

	// Output is the process-wide event stream. It is closed by Close
	// after every session has been reaped.
	Output() <-chan Output

	// Close kills all sessions and waits for their readers to drain, so
	// no OS process outlives the workspace.
	Close() error
}
