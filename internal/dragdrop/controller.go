// Package dragdrop translates continuous pointer input into discrete drop
// intents for the layout mutation engine. It is pure UI state: nothing is
// allocated or mutated until the drop is released, so a cancelled drag has
// no side effects.
package dragdrop

import "github.com/panemux/panemux/internal/layout"

// DefaultEdgeThreshold is the width of the band along the workspace
// boundary, in cells, inside which a drag is classified as an outer-edge
// drop regardless of which pane is under the pointer.
const DefaultEdgeThreshold = 2

// State is the controller's phase.
type State int

const (
	StateIdle State = iota
	StateDragging
)

// IntentKind classifies where a release would drop the dragged pane.
type IntentKind int

const (
	IntentNone IntentKind = iota
	IntentPane
	IntentOuterEdge
)

// Intent is the current drop classification. TargetID is set only for
// IntentPane.
type Intent struct {
	Kind     IntentKind
	TargetID string
	Edge     layout.Edge
}

// Drop converts a non-none intent into the mutation engine's drop form.
func (in Intent) Drop() layout.Drop {
	if in.Kind == IntentOuterEdge {
		return layout.Drop{Edge: in.Edge}
	}
	return layout.Drop{TargetID: in.TargetID, Edge: in.Edge}
}

// Rect is a pane's bounding box in workspace coordinates.
type Rect struct {
	X, Y, Width, Height int
}

// Contains reports whether the point lies inside the rectangle.
func (r Rect) Contains(x, y int) bool {
	return x >= r.X && x < r.X+r.Width && y >= r.Y && y < r.Y+r.Height
}

// PaneRect pairs a leaf pane with its current bounds. The view layer
// produces a snapshot of these on every pointer move; panes in a tiling
// layout never overlap, so the first hit wins.
type PaneRect struct {
	ID     string
	Bounds Rect
}

// Controller is the drag state machine: Idle -> Dragging -> Dropped or
// Cancelled. One controller serves one workspace window.
type Controller struct {
	state         State
	sourceID      string
	intent        Intent
	edgeThreshold int
}

// New creates a controller. A non-positive threshold falls back to
// DefaultEdgeThreshold.
func New(edgeThreshold int) *Controller {
	if edgeThreshold <= 0 {
		edgeThreshold = DefaultEdgeThreshold
	}
	return &Controller{edgeThreshold: edgeThreshold}
}

// Press begins a drag from the given pane's drag handle. Containers are
// not draggable: pressing one leaves the controller idle and reports
// false. The view layer should suppress pointer interaction with terminal
// content while this returns true.
func (c *Controller) Press(paneID string, isLeaf bool) bool {
	if c.state != StateIdle || !isLeaf || paneID == "" {
		return false
	}
	c.state = StateDragging
	c.sourceID = paneID
	c.intent = Intent{}
	return true
}

// Move re-evaluates the drop intent for the current pointer position
// against a geometry snapshot. Outer-edge proximity takes priority over
// any pane under the pointer so the user can always escape to a full
// split even in a small window. Hovering the dragged pane itself yields
// no intent.
func (c *Controller) Move(x, y int, outer Rect, panes []PaneRect) Intent {
	if c.state != StateDragging {
		return Intent{}
	}
	if edge, ok := outerEdge(x, y, outer, c.edgeThreshold); ok {
		c.intent = Intent{Kind: IntentOuterEdge, Edge: edge}
		return c.intent
	}
	for _, p := range panes {
		if !p.Bounds.Contains(x, y) {
			continue
		}
		if p.ID == c.sourceID {
			c.intent = Intent{}
			return c.intent
		}
		c.intent = Intent{Kind: IntentPane, TargetID: p.ID, Edge: classifyQuadrant(x, y, p.Bounds)}
		return c.intent
	}
	c.intent = Intent{}
	return c.intent
}

// Release ends the drag. It returns the final intent and whether it is a
// real drop; releasing with no intent is a cancellation. Either way the
// controller returns to Idle with no state carried over.
func (c *Controller) Release() (Intent, bool) {
	if c.state != StateDragging {
		return Intent{}, false
	}
	intent := c.intent
	c.state = StateIdle
	c.sourceID = ""
	c.intent = Intent{}
	return intent, intent.Kind != IntentNone
}

// CurrentIntent returns the live drop classification so the view can
// highlight the target while the drag is still in progress.
func (c *Controller) CurrentIntent() Intent {
	if c.state != StateDragging {
		return Intent{}
	}
	return c.intent
}

// Dragging reports whether a drag is in progress.
func (c *Controller) Dragging() bool {
	return c.state == StateDragging
}

// Source returns the dragged pane's ID, or "" when idle.
func (c *Controller) Source() string {
	return c.sourceID
}

// outerEdge checks proximity to the workspace boundary. When the pointer
// is inside more than one threshold band the nearest edge wins.
func outerEdge(x, y int, outer Rect, threshold int) (layout.Edge, bool) {
	dLeft := x - outer.X
	dRight := outer.X + outer.Width - 1 - x
	dTop := y - outer.Y
	dBottom := outer.Y + outer.Height - 1 - y

	edge := layout.EdgeLeft
	min := dLeft
	if dRight < min {
		edge, min = layout.EdgeRight, dRight
	}
	if dTop < min {
		edge, min = layout.EdgeTop, dTop
	}
	if dBottom < min {
		edge, min = layout.EdgeBottom, dBottom
	}
	return edge, min < threshold
}

// classifyQuadrant maps a pointer position inside a pane to the drop edge.
// Left/right use the horizontal half, but only outside the middle
// 25%-75% relative-x band; inside that band top/bottom wins by vertical
// half. This mirrors common tiling-WM drop-zone heuristics.
func classifyQuadrant(x, y int, b Rect) layout.Edge {
	relX := float64(x-b.X) / float64(b.Width)
	relY := float64(y-b.Y) / float64(b.Height)
	if relX < 0.25 || relX > 0.75 {
		if relX < 0.5 {
			return layout.EdgeLeft
		}
		return layout.EdgeRight
	}
	if relY < 0.5 {
		return layout.EdgeTop
	}
	return layout.EdgeBottom
}
