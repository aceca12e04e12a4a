package store

import (
	"fmt"
	"log"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/time/rate"
)

// Watcher broadcasts project-record rewrites to interested windows. It
// watches the store's project directory and invokes the callback with the
// rewritten project's ID. Events for one project are coalesced through a
// rate limiter so a burst of saves produces a single reload.
type Watcher struct {
	fw       *fsnotify.Watcher
	onChange func(projectID int)

	mu       sync.Mutex
	limiters map[int]*rate.Limiter

	done     chan struct{}
	doneOnce sync.Once
}

// eventsPerSecond bounds reload callbacks per project.
const eventsPerSecond = 10

// NewWatcher creates a watcher over the store's project directory.
func NewWatcher(s *ProjectStore, onChange func(projectID int)) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fs watcher: %w", err)
	}
	if err := fw.Add(s.Dir()); err != nil {
		_ = fw.Close()
		return nil, fmt.Errorf("watch project directory: %w", err)
	}
	return &Watcher{
		fw:       fw,
		onChange: onChange,
		limiters: make(map[int]*rate.Limiter),
		done:     make(chan struct{}),
	}, nil
}

// Start consumes filesystem events until Close. Run it on its own
// goroutine.
func (w *Watcher) Start() {
	for {
		select {
		case <-w.done:
			return
		case ev, ok := <-w.fw.Events:
			if !ok {
				return
			}
			// Saves land as a rename of the .tmp file; direct writes
			// count too.
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			id, ok := projectIDFromFile(ev.Name)
			if !ok {
				continue
			}
			w.notify(id)
		case err, ok := <-w.fw.Errors:
			if !ok {
				return
			}
			log.Printf("[STORE] watcher error: %v", err)
		}
	}
}

// notify fires the callback, rate-limited per project.
func (w *Watcher) notify(id int) {
	w.mu.Lock()
	lim, ok := w.limiters[id]
	if !ok {
		lim = rate.NewLimiter(rate.Limit(eventsPerSecond), 1)
		w.limiters[id] = lim
	}
	allowed := lim.Allow()
	w.mu.Unlock()

	if !allowed {
		return
	}
	if w.onChange != nil {
		w.onChange(id)
	}
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	w.doneOnce.Do(func() { close(w.done) })
	return w.fw.Close()
}

// projectIDFromFile parses "p-003.json" into 3. Temp files and foreign
// names are ignored.
func projectIDFromFile(path string) (int, bool) {
	name := filepath.Base(path)
	if !strings.HasPrefix(name, "p-") || !strings.HasSuffix(name, ".json") {
		return 0, false
	}
	id, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(name, "p-"), ".json"))
	if err != nil {
		return 0, false
	}
	return id, true
}
