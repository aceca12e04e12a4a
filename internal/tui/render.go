package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/panemux/panemux/internal/dragdrop"
	"github.com/panemux/panemux/internal/layout"
)

var (
	borderColor = lipgloss.Color("240")
	accentColor = lipgloss.Color("62")
	targetColor = lipgloss.Color("212")

	paneBorder = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(borderColor)

	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("250")).
			Background(lipgloss.Color("236"))

	titleFocusedStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("231")).
				Background(accentColor).
				Bold(true)

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))

	emptyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243"))
)

func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if m.width <= 0 || m.height <= statusBarHeight {
		return "loading..."
	}

	bodyHeight := m.height - statusBarHeight
	root := m.ws.Root()

	var body string
	if root == nil {
		body = lipgloss.Place(m.width, bodyHeight, lipgloss.Center, lipgloss.Center,
			emptyStyle.Render("no panes — ctrl+n opens a terminal"))
	} else {
		body = m.renderNode(root, m.width, bodyHeight)
	}
	return lipgloss.JoinVertical(lipgloss.Left, body, m.statusLine())
}

// renderNode draws the tree recursively: leaves become bordered pane
// boxes, containers join their children along the split direction. Sizes
// come from the same arithmetic as computeGeometry so the drawn boxes and
// the hit-test rectangles always agree.
func (m Model) renderNode(node *layout.Node, w, h int) string {
	if node == nil || w <= 0 || h <= 0 {
		return ""
	}
	if node.IsLeaf() {
		return m.renderPane(node, w, h)
	}

	parts := make([]string, 0, len(node.Children))
	if node.Direction == layout.Horizontal {
		for i, size := range splitSizes(w, len(node.Children)) {
			parts = append(parts, m.renderNode(node.Children[i], size, h))
		}
		return lipgloss.JoinHorizontal(lipgloss.Top, parts...)
	}
	for i, size := range splitSizes(h, len(node.Children)) {
		parts = append(parts, m.renderNode(node.Children[i], w, size))
	}
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

// renderPane draws one leaf: rounded border, a title row showing the
// command, and the session screen below it.
func (m Model) renderPane(node *layout.Node, w, h int) string {
	innerW := w - 2
	innerH := h - 2
	if innerW < 1 || innerH < 2 {
		return lipgloss.NewStyle().Width(w).Height(h).Render("")
	}
	contentRows := innerH - 1

	title := "shell"
	if node.Command != nil && node.Command.Text != "" {
		title = node.Command.Text
	}
	title = " " + runewidth.Truncate(title, innerW-1, "…")

	ts := titleStyle
	if node.ID == m.focused {
		ts = titleFocusedStyle
	}
	titleBar := ts.Width(innerW).MaxWidth(innerW).Render(title)

	lines := strings.Split(m.ws.RenderPane(node.ID), "\n")
	if len(lines) > contentRows {
		lines = lines[:contentRows]
	}
	clip := lipgloss.NewStyle().MaxWidth(innerW)
	for i := range lines {
		lines[i] = clip.Render(lines[i])
	}
	content := lipgloss.NewStyle().
		Width(innerW).
		Height(contentRows).
		Render(strings.Join(lines, "\n"))

	box := paneBorder
	switch {
	case m.drag.Dragging() && m.drag.CurrentIntent().TargetID == node.ID:
		box = box.BorderForeground(targetColor)
	case node.ID == m.focused:
		box = box.BorderForeground(accentColor)
	}
	return box.Render(lipgloss.JoinVertical(lipgloss.Left, titleBar, content))
}

// computeGeometry walks the tree with the same size arithmetic as the
// renderer and returns every leaf's box plus its inner grid.
func computeGeometry(node *layout.Node, x, y, w, h int) []paneGeometry {
	if node == nil || w <= 0 || h <= 0 {
		return nil
	}
	if node.IsLeaf() {
		rows := h - 3 // border top/bottom plus title row
		cols := w - 2
		if rows < 1 {
			rows = 1
		}
		if cols < 1 {
			cols = 1
		}
		return []paneGeometry{{
			ID:          node.ID,
			Box:         dragdrop.Rect{X: x, Y: y, Width: w, Height: h},
			ContentRows: rows,
			ContentCols: cols,
		}}
	}

	var out []paneGeometry
	if node.Direction == layout.Horizontal {
		cx := x
		for i, size := range splitSizes(w, len(node.Children)) {
			out = append(out, computeGeometry(node.Children[i], cx, y, size, h)...)
			cx += size
		}
		return out
	}
	cy := y
	for i, size := range splitSizes(h, len(node.Children)) {
		out = append(out, computeGeometry(node.Children[i], x, cy, w, size)...)
		cy += size
	}
	return out
}

// splitSizes divides total cells among n children; the remainder goes to
// the leading children one cell each so sizes sum exactly to total.
func splitSizes(total, n int) []int {
	if n <= 0 {
		return nil
	}
	base := total / n
	rem := total % n
	sizes := make([]int, n)
	for i := range sizes {
		sizes[i] = base
		if i < rem {
			sizes[i]++
		}
	}
	return sizes
}
