package gateway

import (
	"fmt"
	"os"
	"os/exec"
	"sync"

	"github.com/creack/pty"
	"github.com/google/uuid"
)

const outputBufferSize = 256

// Local runs sessions as local shell processes behind PTYs.
type Local struct {
	mu       sync.Mutex
	shell    string
	sessions map[string]*localSession
	out      chan Output
	done     chan struct{}
	wg       sync.WaitGroup
	closed   bool
}

type localSession struct {
	id   string
	ptmx *os.File
	cmd  *exec.Cmd
}

// NewLocal creates a gateway spawning the given shell; empty means $SHELL,
// falling back to /bin/sh.
func NewLocal(shell string) *Local {
	if shell == "" {
		shell = os.Getenv("SHELL")
	}
	if shell == "" {
		shell = "/bin/sh"
	}
	return &Local{
		shell:    shell,
		sessions: make(map[string]*localSession),
		out:      make(chan Output, outputBufferSize),
		done:     make(chan struct{}),
	}
}

// Create spawns a shell behind a new PTY. A bad working directory or
// spawn failure is reported to the caller; nothing is registered in that
// case.
func (l *Local) Create(rows, cols int, workdir string) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return "", ErrClosed
	}

	cmd := exec.Command(l.shell)
	cmd.Env = append(os.Environ(), "TERM=xterm-256color")
	if workdir != "" {
		if info, err := os.Stat(workdir); err != nil || !info.IsDir() {
			return "", fmt.Errorf("create session: bad working directory %q", workdir)
		}
		cmd.Dir = workdir
	}

	ptmx, err := pty.StartWithSize(cmd, &pty.Winsize{Rows: uint16(rows), Cols: uint16(cols)})
	if err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}

	s := &localSession{id: uuid.NewString(), ptmx: ptmx, cmd: cmd}
	l.sessions[s.id] = s

	l.wg.Add(1)
	go l.pump(s)

	return s.id, nil
}

// pump copies PTY output into the shared event stream until the session
// dies or the gateway closes.
func (l *Local) pump(s *localSession) {
	defer l.wg.Done()
	buf := make([]byte, 4096)
read:
	for {
		n, err := s.ptmx.Read(buf)
		if n > 0 {
			data := make([]byte, n)
			copy(data, buf[:n])
			select {
			case l.out <- Output{SessionID: s.id, Data: data}:
			case <-l.done:
				break read
			}
		}
		if err != nil {
			break read
		}
	}
	_ = s.cmd.Wait() // reap
	l.mu.Lock()
	delete(l.sessions, s.id)
	l.mu.Unlock()
}

func (l *Local) lookup(sessionID string) (*localSession, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil, ErrClosed
	}
	s, ok := l.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("session %s: %w", sessionID, ErrSessionNotFound)
	}
	return s, nil
}

// Write sends input bytes to the session.
func (l *Local) Write(sessionID string, p []byte) error {
	s, err := l.lookup(sessionID)
	if err != nil {
		return err
	}
	if _, err := s.ptmx.Write(p); err != nil {
		return fmt.Errorf("write session %s: %w", sessionID, err)
	}
	return nil
}

// Resize adjusts the session's PTY grid.
func (l *Local) Resize(sessionID string, rows, cols int) error {
	s, err := l.lookup(sessionID)
	if err != nil {
		return err
	}
	if err := pty.Setsize(s.ptmx, &pty.Winsize{Rows: uint16(rows), Cols: uint16(cols)}); err != nil {
		return fmt.Errorf("resize session %s: %w", sessionID, err)
	}
	return nil
}

// Kill terminates the session's process and closes its PTY. The session
// is unregistered immediately, so a racing Write or Resize sees
// ErrSessionNotFound rather than a closed-file error from the dying PTY.
// Idempotent: an unknown session ID is not an error.
func (l *Local) Kill(sessionID string) error {
	l.mu.Lock()
	s, ok := l.sessions[sessionID]
	delete(l.sessions, sessionID)
	l.mu.Unlock()
	if !ok {
		return nil
	}
	if s.cmd.Process != nil {
		_ = s.cmd.Process.Kill()
	}
	_ = s.ptmx.Close()
	return nil
}

// Output returns the shared session-tagged event stream.
func (l *Local) Output() <-chan Output {
	return l.out
}

// Close kills every session and waits for their readers to finish before
// closing the output stream; afterwards no session process is left
// behind.
func (l *Local) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	sessions := make([]*localSession, 0, len(l.sessions))
	for _, s := range l.sessions {
		sessions = append(sessions, s)
	}
	l.mu.Unlock()

	close(l.done)
	for _, s := range sessions {
		if s.cmd.Process != nil {
			_ = s.cmd.Process.Kill()
		}
		_ = s.ptmx.Close()
	}
	l.wg.Wait()
	close(l.out)
	return nil
}
