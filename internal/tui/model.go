// Package tui renders a workspace as a full-screen terminal UI: the pane
// tree drawn recursively with lipgloss, keyboard routed to the focused
// pane's session, and mouse drags on pane title bars translated into
// layout moves.
package tui

import (
	"fmt"
	"log"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/panemux/panemux/internal/dragdrop"
	"github.com/panemux/panemux/internal/layout"
	"github.com/panemux/panemux/internal/workspace"
)

// tickInterval drives repaints. Pane output arrives asynchronously from
// the session pump, so the view is pulled on a timer rather than pushed
// per byte.
const tickInterval = 50 * time.Millisecond

// statusBarHeight reserves the bottom row for project name, drag hints,
// and help.
const statusBarHeight = 1

type repaintMsg time.Time

func repaintTick() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg {
		return repaintMsg(t)
	})
}

// Model is the bubbletea model for one workspace window.
type Model struct {
	ws   *workspace.Workspace
	drag *dragdrop.Controller
	keys KeyMap
	help help.Model

	width  int
	height int

	focused    string
	rects      []paneGeometry
	sizes      map[string][2]int // last grid pushed to each pane
	layoutRoot *layout.Node      // tree the current geometry was computed from

	renaming bool
	rename   textinput.Model

	quitting bool
}

// paneGeometry is one leaf's box from the last layout pass. Box is the
// full bordered cell used for drop classification; content is the inner
// grid the session renders into.
type paneGeometry struct {
	ID                       string
	Box                      dragdrop.Rect
	ContentRows, ContentCols int
}

// New creates the workspace UI.
func New(ws *workspace.Workspace, edgeThreshold int) Model {
	ti := textinput.New()
	ti.Placeholder = "project name"
	ti.CharLimit = 64

	return Model{
		ws:     ws,
		drag:   dragdrop.New(edgeThreshold),
		keys:   DefaultKeyMap,
		help:   help.New(),
		sizes:  make(map[string][2]int),
		rename: ti,
	}
}

func (m Model) Init() tea.Cmd {
	return repaintTick()
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.relayout()
		return m, nil

	case repaintMsg:
		if m.quitting {
			return m, nil
		}
		// A sibling window rewriting the project swaps the tree out from
		// under us via Reload; pick the new tree up on the next tick so
		// its panes get bound and the drag rects stay honest.
		if m.ws.Root() != m.layoutRoot {
			m.relayout()
		}
		return m, repaintTick()

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.MouseMsg:
		return m.handleMouse(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.renaming {
		switch msg.Type {
		case tea.KeyEnter:
			m.ws.RenameProject(m.rename.Value())
			m.renaming = false
			return m, nil
		case tea.KeyEsc:
			m.renaming = false
			return m, nil
		}
		var cmd tea.Cmd
		m.rename, cmd = m.rename.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		m.quitting = true
		if err := m.ws.Close(); err != nil {
			log.Printf("[TUI] close workspace: %v", err)
		}
		return m, tea.Quit

	case key.Matches(msg, m.keys.AddPane):
		leaf, _, err := m.ws.AddTerminal(m.focused)
		if err != nil {
			log.Printf("[TUI] add pane: %v", err)
			return m, nil
		}
		m.focused = leaf.ID
		m.relayout()
		return m, nil

	case key.Matches(msg, m.keys.ClosePane):
		if m.focused == "" {
			return m, nil
		}
		if err := m.ws.ClosePane(m.focused); err != nil {
			log.Printf("[TUI] close pane: %v", err)
			return m, nil
		}
		m.focused = ""
		m.relayout()
		m.focusFirst()
		return m, nil

	case key.Matches(msg, m.keys.Restart):
		if m.focused != "" {
			if err := m.ws.Restart(m.focused); err != nil {
				log.Printf("[TUI] restart pane: %v", err)
			}
		}
		return m, nil

	case key.Matches(msg, m.keys.NextPane):
		m.focusNext()
		return m, nil

	case key.Matches(msg, m.keys.Rename):
		m.renaming = true
		m.rename.SetValue(m.ws.Project().Name)
		m.rename.Focus()
		return m, textinput.Blink

	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil
	}

	// Everything else goes to the focused pane's session.
	if m.focused != "" {
		if p := keyToBytes(msg); len(p) > 0 {
			if err := m.ws.Input(m.focused, p); err != nil {
				log.Printf("[TUI] input: %v", err)
			}
		}
	}
	return m, nil
}

func (m Model) handleMouse(msg tea.MouseMsg) (tea.Model, tea.Cmd) {
	switch msg.Action {
	case tea.MouseActionPress:
		if msg.Button != tea.MouseButtonLeft {
			return m, nil
		}
		geo, ok := m.paneAt(msg.X, msg.Y)
		if !ok {
			return m, nil
		}
		m.focused = geo.ID
		// Only the title row starts a drag; clicks in the body focus.
		if msg.Y == geo.Box.Y {
			m.drag.Press(geo.ID, true)
		}
		return m, nil

	case tea.MouseActionMotion:
		if !m.drag.Dragging() {
			return m, nil
		}
		m.drag.Move(msg.X, msg.Y, m.outerRect(), m.paneRects())
		return m, nil

	case tea.MouseActionRelease:
		source := m.drag.Source()
		intent, dropped := m.drag.Release()
		if !dropped || source == "" {
			return m, nil
		}
		if m.ws.MovePane(source, intent.Drop()) {
			m.relayout()
		}
		return m, nil
	}
	return m, nil
}

// paneAt finds the pane geometry under the pointer.
func (m Model) paneAt(x, y int) (paneGeometry, bool) {
	for _, g := range m.rects {
		if g.Box.Contains(x, y) {
			return g, true
		}
	}
	return paneGeometry{}, false
}

// paneRects adapts the geometry snapshot for the drag controller.
func (m Model) paneRects() []dragdrop.PaneRect {
	out := make([]dragdrop.PaneRect, 0, len(m.rects))
	for _, g := range m.rects {
		out = append(out, dragdrop.PaneRect{ID: g.ID, Bounds: g.Box})
	}
	return out
}

func (m Model) outerRect() dragdrop.Rect {
	return dragdrop.Rect{X: 0, Y: 0, Width: m.width, Height: m.height - statusBarHeight}
}

// relayout recomputes pane geometry for the current window and tree,
// binds any unbound leaves, and pushes grid changes to the sessions.
func (m *Model) relayout() {
	if m.width <= 0 || m.height <= statusBarHeight {
		return
	}
	root := m.ws.Root()
	m.layoutRoot = root
	m.rects = computeGeometry(root, 0, 0, m.width, m.height-statusBarHeight)

	alive := make(map[string]bool, len(m.rects))
	for _, g := range m.rects {
		alive[g.ID] = true
		if !m.ws.Bound(g.ID) {
			if err := m.ws.Bind(g.ID, g.ContentRows, g.ContentCols, nil); err != nil {
				log.Printf("[TUI] bind pane: %v", err)
			}
			m.sizes[g.ID] = [2]int{g.ContentRows, g.ContentCols}
			continue
		}
		if m.sizes[g.ID] != [2]int{g.ContentRows, g.ContentCols} {
			m.ws.Resize(g.ID, g.ContentRows, g.ContentCols)
			m.sizes[g.ID] = [2]int{g.ContentRows, g.ContentCols}
		}
	}
	for id := range m.sizes {
		if !alive[id] {
			delete(m.sizes, id)
		}
	}

	if m.focused == "" || !alive[m.focused] {
		m.focused = ""
		m.focusFirst()
	}
}

func (m *Model) focusFirst() {
	if len(m.rects) > 0 {
		m.focused = m.rects[0].ID
	}
}

func (m *Model) focusNext() {
	if len(m.rects) == 0 {
		return
	}
	for i, g := range m.rects {
		if g.ID == m.focused {
			m.focused = m.rects[(i+1)%len(m.rects)].ID
			return
		}
	}
	m.focused = m.rects[0].ID
}

// statusLine builds the bottom bar: project name, drag hint or help.
func (m Model) statusLine() string {
	if m.renaming {
		return statusStyle.Render("rename: " + m.rename.View())
	}
	name := m.ws.Project().Name
	if m.drag.Dragging() {
		return statusStyle.Render(fmt.Sprintf("%s  |  moving pane: release on a pane half or a workspace edge", name))
	}
	return statusStyle.Render(name + "  |  " + m.help.View(m.keys))
}
