package gateway

import (
	"fmt"
	"sync"
)

// Fake is an in-memory Gateway for tests: no processes, no PTYs. Written
// bytes are recorded per session and can be echoed back through the
// output stream with Emit.
type Fake struct {
	mu      sync.Mutex
	nextID  int
	alive   map[string]bool
	writes  map[string][][]byte
	resizes map[string][2]int
	killed  []string
	out     chan Output
	closed  bool

	// CreateErr, when set, makes the next Create fail with it.
	CreateErr error
}

// NewFake creates an empty fake gateway.
func NewFake() *Fake {
	return &Fake{
		alive:   make(map[string]bool),
		writes:  make(map[string][][]byte),
		resizes: make(map[string][2]int),
		out:     make(chan Output, 64),
	}
}

func (f *Fake) Create(rows, cols int, workdir string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.CreateErr != nil {
		err := f.CreateErr
		f.CreateErr = nil
		return "", err
	}
	f.nextID++
	id := fmt.Sprintf("fake-%d", f.nextID)
	f.alive[id] = true
	f.resizes[id] = [2]int{rows, cols}
	return id, nil
}

func (f *Fake) Write(sessionID string, p []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.alive[sessionID] {
		return fmt.Errorf("session %s: %w", sessionID, ErrSessionNotFound)
	}
	data := make([]byte, len(p))
	copy(data, p)
	f.writes[sessionID] = append(f.writes[sessionID], data)
	return nil
}

func (f *Fake) Resize(sessionID string, rows, cols int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.alive[sessionID] {
		return fmt.Errorf("session %s: %w", sessionID, ErrSessionNotFound)
	}
	f.resizes[sessionID] = [2]int{rows, cols}
	return nil
}

func (f *Fake) Kill(sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.alive[sessionID] {
		delete(f.alive, sessionID)
		f.killed = append(f.killed, sessionID)
	}
	return nil
}

func (f *Fake) Output() <-chan Output {
	return f.out
}

func (f *Fake) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil
	}
	f.closed = true
	for id := range f.alive {
		delete(f.alive, id)
		f.killed = append(f.killed, id)
	}
	close(f.out)
	return nil
}

// Emit pushes output for a session, as if the process had produced it.
func (f *Fake) Emit(sessionID string, data []byte) {
	f.out <- Output{SessionID: sessionID, Data: data}
}

// Written concatenates everything written to a session.
func (f *Fake) Written(sessionID string) []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	var all []byte
	for _, w := range f.writes[sessionID] {
		all = append(all, w...)
	}
	return all
}

// Alive reports whether the session has not been killed.
func (f *Fake) Alive(sessionID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.alive[sessionID]
}

// LastSize returns the most recent grid size for a session.
func (f *Fake) LastSize(sessionID string) (rows, cols int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sz := f.resizes[sessionID]
	return sz[0], sz[1]
}

// Killed returns the IDs of killed sessions in order.
func (f *Fake) Killed() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.killed...)
}
