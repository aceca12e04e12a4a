// Package workspace manages one terminal workspace window: the pane tree,
// the PTY session behind each leaf, the render widget bound to each pane,
// and the persisted project record they all come from.
//
// All structural mutations and widget rebinds are serialized by the
// workspace mutex; output delivery from the gateway takes the same mutex
// per event, so a session-to-pane remap is atomic with respect to output
// demultiplexing and no event is ever attributed to the wrong leaf.
// Different workspaces are fully independent.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/panemux/panemux/internal/gateway"
	"github.com/panemux/panemux/internal/history"
	"github.com/panemux/panemux/internal/layout"
	"github.com/panemux/panemux/internal/store"
	"github.com/panemux/panemux/internal/term"
)

// DefaultRestartDelay is the pause between the interrupt and the command
// replay during a restart, long enough for the foreground process to die.
const DefaultRestartDelay = 250 * time.Millisecond

// Escape parse states for first-line capture. Arrow keys and other
// terminal sequences pass through to the shell but must not leak their
// payload bytes into the captured command text.
const (
	escNone  = 0
	escIntro = 1 // saw ESC, introducer byte pending
	escBody  = 2 // inside a CSI or SS3 sequence
)

// Options configures optional collaborators. Projects enables
// persistence, History enables restart recall of captured commands.
type Options struct {
	Projects     *store.ProjectStore
	History      *history.Store
	RestartDelay time.Duration
	Scrollback   int // per-pane scrollback cap in bytes, 0 for default
}

// Workspace is one window's workspace state.
type Workspace struct {
	mu      sync.Mutex
	project *store.Project
	root    *layout.Node
	gw      gateway.Gateway

	widgets       map[string]*term.Widget // pane ID -> widget
	sessions      map[string]string       // pane ID -> session ID
	paneBySession map[string]string       // session ID -> pane ID
	capture       map[string][]byte       // pane ID -> pending first-line capture
	captureEsc    map[string]int          // pane ID -> escape parse state

	projects     *store.ProjectStore
	hist         *history.Store
	restartDelay time.Duration
	scrollback   int

	pumpDone chan struct{}
	closed   bool
}

// New builds a workspace from a project record. A missing or unusable
// persisted layout falls back to the default layout; that is a recovery,
// not an error. The output pump starts immediately.
func New(project *store.Project, gw gateway.Gateway, opts Options) *Workspace {
	root := layout.Deserialize(project.Layout, project.CommandsByID())
	if root == nil && len(project.Commands) > 0 {
		if project.Layout != nil {
			log.Printf("[WORKSPACE] persisted layout for project %d unusable, rebuilding default", project.ID)
		}
		root = layout.DefaultLayout(project.Commands)
	}

	delay := opts.RestartDelay
	if delay <= 0 {
		delay = DefaultRestartDelay
	}

	w := &Workspace{
		project:       project,
		root:          root,
		gw:            gw,
		widgets:       make(map[string]*term.Widget),
		sessions:      make(map[string]string),
		paneBySession: make(map[string]string),
		capture:       make(map[string][]byte),
		captureEsc:    make(map[string]int),
		projects:      opts.Projects,
		hist:          opts.History,
		restartDelay:  delay,
		scrollback:    opts.Scrollback,
		pumpDone:      make(chan struct{}),
	}
	go w.pump()
	return w
}

// pump demultiplexes the gateway's output stream to pane widgets. Events
// for one session arrive in order and are written under the workspace
// lock, so they land on whichever pane owns the session at that moment.
func (w *Workspace) pump() {
	defer close(w.pumpDone)
	for ev := range w.gw.Output() {
		w.mu.Lock()
		if paneID, ok := w.paneBySession[ev.SessionID]; ok {
			if widget, ok := w.widgets[paneID]; ok {
				_, _ = widget.Write(ev.Data)
			}
		}
		w.mu.Unlock()
	}
}

// Root returns the current tree root. Views must treat it as read-only;
// all mutations go through workspace methods.
func (w *Workspace) Root() *layout.Node {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.root
}

// Project returns the backing project record.
func (w *Workspace) Project() *store.Project {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.project
}

// Bind attaches a view sink to the pane and ensures it has a widget and a
// running session. On first bind the session is created sized to the
// given grid and, when the pane's command text is non-empty, the command
// is auto-run; an empty command arms first-line capture instead. Session
// spawn failure is surfaced as a diagnostic line in the pane itself and
// returned; sibling panes are unaffected.
func (w *Workspace) Bind(paneID string, rows, cols int, sink io.Writer) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	leaf := layout.Find(w.root, paneID)
	if leaf == nil || !leaf.IsLeaf() {
		return fmt.Errorf("bind pane %s: %w", paneID, layout.ErrNotFound)
	}

	widget, ok := w.widgets[paneID]
	if !ok {
		widget = term.NewWidget(rows, cols)
		widget.SetMaxScrollback(w.scrollback)
		w.widgets[paneID] = widget
	}
	widget.Attach(sink)

	if _, ok := w.sessions[paneID]; ok {
		return nil
	}

	sessionID, err := w.gw.Create(rows, cols, leaf.Command.WorkDir)
	if err != nil {
		w.diagnosticLocked(paneID, "session create failed: %v", err)
		return fmt.Errorf("bind pane %s: %w", paneID, err)
	}
	w.sessions[paneID] = sessionID
	w.paneBySession[sessionID] = paneID

	if text := leaf.Command.Text; text != "" {
		if err := w.gw.Write(sessionID, []byte(text+"\n")); err != nil {
			w.diagnosticLocked(paneID, "auto-run failed: %v", err)
		}
		w.recordHistory(sessionID, text)
	} else {
		w.capture[paneID] = nil
	}
	return nil
}

// Rebind recreates the pane's widget against a new view sink: the old
// widget's scrollback is captured with formatting, replayed into a fresh
// widget, and the session-to-pane mapping is left untouched. Called
// whenever a structural mutation rebuilds the view subtree around a leaf
// whose logical identity did not change.
func (w *Workspace) Rebind(paneID string, sink io.Writer) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	old, ok := w.widgets[paneID]
	if !ok {
		return fmt.Errorf("rebind pane %s: no widget", paneID)
	}
	rows, cols := old.Size()
	snapshot := old.Snapshot()
	old.Detach()

	fresh := term.NewWidget(rows, cols)
	fresh.SetMaxScrollback(w.scrollback)
	fresh.Replay(snapshot)
	fresh.Attach(sink)
	// The swap is the remap point: it happens under the same lock the
	// pump writes under, so no output lands on the dead widget.
	w.widgets[paneID] = fresh
	return nil
}

// Unbind detaches the caller's view from the pane. When another view has
// already taken the sink over, the current sink stays attached; only the
// caller's own binding is released. The widget keeps accumulating output
// and the session stays alive; only closing the pane or the workspace
// kills it.
func (w *Workspace) Unbind(paneID string, sink io.Writer) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if widget, ok := w.widgets[paneID]; ok {
		widget.DetachSink(sink)
	}
}

// Resize recomputes the pane's grid and forwards it to the session.
// Resizes racing a killed session are swallowed.
func (w *Workspace) Resize(paneID string, rows, cols int) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if widget, ok := w.widgets[paneID]; ok {
		widget.Resize(rows, cols)
	}
	sessionID, ok := w.sessions[paneID]
	if !ok {
		return
	}
	if err := w.gw.Resize(sessionID, rows, cols); err != nil && !errors.Is(err, gateway.ErrSessionNotFound) {
		log.Printf("[WORKSPACE] resize pane %s: %v", paneID, err)
	}
}

// Input forwards user keystrokes to the pane's session. While the pane's
// command text is still empty the typed characters are also accumulated
// until the first newline, then committed as the pane's command and
// persisted. Writes against a dead session become a pane diagnostic, not
// an error.
func (w *Workspace) Input(paneID string, p []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	sessionID, ok := w.sessions[paneID]
	if !ok {
		return fmt.Errorf("input pane %s: no session", paneID)
	}

	if buf, capturing := w.capture[paneID]; capturing {
		esc := w.captureEsc[paneID]
		for _, b := range p {
			switch {
			case esc == escIntro:
				// CSI and SS3 run to a final byte; anything else is a
				// two-byte sequence that ends here.
				if b == '[' || b == 'O' {
					esc = escBody
				} else {
					esc = escNone
				}
			case esc == escBody:
				if b >= 0x40 && b <= 0x7e {
					esc = escNone
				}
			case b == 0x1b:
				esc = escIntro
			case b == '\r' || b == '\n':
				delete(w.capture, paneID)
				delete(w.captureEsc, paneID)
				w.commitCaptureLocked(paneID, sessionID, string(buf))
				buf = nil
			case b == 0x7f || b == 0x08:
				if len(buf) > 0 {
					buf = buf[:len(buf)-1]
				}
			case b >= 0x20:
				buf = append(buf, b)
			}
			if _, still := w.capture[paneID]; !still {
				break
			}
			w.capture[paneID] = buf
			w.captureEsc[paneID] = esc
		}
	}

	if err := w.gw.Write(sessionID, p); err != nil {
		if errors.Is(err, gateway.ErrSessionNotFound) {
			w.diagnosticLocked(paneID, "session is gone")
			return nil
		}
		return fmt.Errorf("input pane %s: %w", paneID, err)
	}
	return nil
}

// commitCaptureLocked back-fills the pane's command with the first typed
// line.
func (w *Workspace) commitCaptureLocked(paneID, sessionID, line string) {
	text := strings.TrimSpace(line)
	if text == "" {
		return
	}
	leaf := layout.Find(w.root, paneID)
	if leaf == nil || !leaf.IsLeaf() {
		return
	}
	leaf.Command.Text = text
	w.recordHistory(sessionID, text)
	w.persistLocked()
}

// AddTerminal creates a fresh command and splits it in to the right of
// afterID (the last leaf when empty). The returned rebind flag tells the
// caller the existing pane's view was rewrapped and needs a Rebind once
// its new view element exists.
func (w *Workspace) AddTerminal(afterID string) (leaf *layout.Node, rebind bool, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	cmd := &layout.Command{ID: w.project.NextCommandID()}
	w.project.Commands = append(w.project.Commands, cmd)

	if w.root == nil {
		w.root = layout.NewLeaf(cmd)
		w.persistLocked()
		return w.root, false, nil
	}

	if afterID == "" {
		leaves := layout.Leaves(w.root)
		afterID = leaves[len(leaves)-1].ID
	}
	newRoot, leaf, rewrapped, err := layout.SplitAfter(w.root, afterID, cmd)
	if err != nil {
		w.project.Commands = w.project.Commands[:len(w.project.Commands)-1]
		return nil, false, err
	}
	w.root = newRoot
	w.persistLocked()
	return leaf, rewrapped, nil
}

// ClosePane removes the pane and its command from the workspace and kills
// the underlying session.
func (w *Workspace) ClosePane(paneID string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	leaf := layout.Find(w.root, paneID)
	if leaf == nil || !leaf.IsLeaf() {
		return fmt.Errorf("close pane %s: %w", paneID, layout.ErrNotFound)
	}

	w.releasePaneLocked(paneID)

	for i, c := range w.project.Commands {
		if c.ID == leaf.Command.ID {
			w.project.Commands = append(w.project.Commands[:i], w.project.Commands[i+1:]...)
			break
		}
	}
	w.root = layout.Remove(w.root, paneID)
	w.persistLocked()
	return nil
}

// releasePaneLocked drops the pane's session and widget state.
func (w *Workspace) releasePaneLocked(paneID string) {
	if sessionID, ok := w.sessions[paneID]; ok {
		if err := w.gw.Kill(sessionID); err != nil {
			log.Printf("[WORKSPACE] kill session %s: %v", sessionID, err)
		}
		delete(w.sessions, paneID)
		delete(w.paneBySession, sessionID)
	}
	delete(w.widgets, paneID)
	delete(w.capture, paneID)
	delete(w.captureEsc, paneID)
}

// MovePane applies a drop from the drag controller. The moved leaf keeps
// its widget, session, and command. A source or target that vanished
// mid-gesture cancels the move silently, matching drag semantics. Returns
// whether the tree changed.
func (w *Workspace) MovePane(sourceID string, drop layout.Drop) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	newRoot, changed, err := layout.Move(w.root, sourceID, drop)
	if err != nil {
		log.Printf("[WORKSPACE] move pane %s cancelled: %v", sourceID, err)
		return false
	}
	if !changed {
		return false
	}
	w.root = newRoot
	w.persistLocked()
	return true
}

// Restart interrupts the pane's foreground process and, after a short
// delay, replays the pane's command into the same session, preserving
// shell state. When the command text is empty the last command recorded
// for the session is recalled from history.
func (w *Workspace) Restart(paneID string) error {
	w.mu.Lock()
	leaf := layout.Find(w.root, paneID)
	sessionID, bound := w.sessions[paneID]
	var text string
	if leaf != nil && leaf.IsLeaf() {
		text = leaf.Command.Text
	}
	if text == "" && bound && w.hist != nil {
		if last, err := w.hist.Last(context.Background(), sessionID); err == nil {
			text = last
		}
	}
	delay := w.restartDelay
	w.mu.Unlock()

	if leaf == nil || !leaf.IsLeaf() {
		return fmt.Errorf("restart pane %s: %w", paneID, layout.ErrNotFound)
	}
	if !bound {
		return fmt.Errorf("restart pane %s: no session", paneID)
	}
	if text == "" {
		return fmt.Errorf("restart pane %s: no command to replay", paneID)
	}

	if err := w.gw.Write(sessionID, []byte{0x03}); err != nil {
		return fmt.Errorf("restart pane %s: interrupt: %w", paneID, err)
	}
	go func() {
		time.Sleep(delay)
		if err := w.gw.Write(sessionID, []byte(text+"\n")); err != nil {
			log.Printf("[WORKSPACE] restart pane %s: replay: %v", paneID, err)
			return
		}
		w.recordHistory(sessionID, text)
	}()
	return nil
}

// Reload rebuilds the tree from the stored project record, picking up a
// rewrite by a sibling window. Panes whose IDs survive keep their widgets
// and sessions; panes that disappeared are released.
func (w *Workspace) Reload() error {
	if w.projects == nil {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	project, err := w.projects.Get(w.project.ID)
	if err != nil {
		return fmt.Errorf("reload project %d: %w", w.project.ID, err)
	}

	root := layout.Deserialize(project.Layout, project.CommandsByID())
	if root == nil && len(project.Commands) > 0 {
		root = layout.DefaultLayout(project.Commands)
	}

	alive := make(map[string]bool)
	for _, l := range layout.Leaves(root) {
		alive[l.ID] = true
	}
	for paneID := range w.sessions {
		if !alive[paneID] {
			w.releasePaneLocked(paneID)
		}
	}

	w.project = project
	w.root = root
	return nil
}

// RenameProject updates and persists the project name.
func (w *Workspace) RenameProject(name string) {
	name = strings.TrimSpace(name)
	if name == "" {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.project.Name = name
	w.persistLocked()
}

// SetWindowState records window geometry on the project; persisted on the
// next save.
func (w *Workspace) SetWindowState(ws *store.WindowState) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.project.WindowState = ws
	w.persistLocked()
}

// RenderPane produces the pane's current screen; empty when unbound.
func (w *Workspace) RenderPane(paneID string) string {
	w.mu.Lock()
	widget, ok := w.widgets[paneID]
	w.mu.Unlock()
	if !ok {
		return ""
	}
	return widget.Render()
}

// Snapshot returns the pane's raw scrollback.
func (w *Workspace) Snapshot(paneID string) []byte {
	w.mu.Lock()
	widget, ok := w.widgets[paneID]
	w.mu.Unlock()
	if !ok {
		return nil
	}
	return widget.Snapshot()
}

// Bound reports whether the pane currently owns a session.
func (w *Workspace) Bound(paneID string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.sessions[paneID]
	return ok
}

// Close kills every session and waits for the gateway to reap them before
// returning, so no OS process outlives the window. The final layout is
// persisted first.
func (w *Workspace) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	w.persistLocked()
	w.mu.Unlock()

	err := w.gw.Close()
	<-w.pumpDone
	return err
}

// persistLocked writes the project record, layout included, back to the
// store. The store broadcasts the rewrite to sibling windows.
func (w *Workspace) persistLocked() {
	if w.projects == nil {
		return
	}
	w.project.Layout = layout.Serialize(w.root)
	if err := w.projects.Save(w.project); err != nil {
		log.Printf("[WORKSPACE] persist project %d: %v", w.project.ID, err)
	}
}

// diagnosticLocked surfaces a session-level failure inline in the pane's
// own output area.
func (w *Workspace) diagnosticLocked(paneID, format string, args ...any) {
	widget, ok := w.widgets[paneID]
	if !ok {
		return
	}
	msg := fmt.Sprintf(format, args...)
	_, _ = widget.Write([]byte("\r\n\x1b[31m[panemux] " + msg + "\x1b[0m\r\n"))
}

func (w *Workspace) recordHistory(sessionID, text string) {
	if w.hist == nil {
		return
	}
	if err := w.hist.Record(context.Background(), sessionID, text); err != nil {
		log.Printf("[WORKSPACE] record history: %v", err)
	}
}
