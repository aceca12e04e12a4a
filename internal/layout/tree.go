package layout

import (
	"fmt"

	"github.com/google/uuid"
)

// Direction is the split axis of a container.
type Direction string

const (
	Horizontal Direction = "horizontal"
	Vertical   Direction = "vertical"
)

// Edge identifies one side of a pane or of the whole layout.
type Edge string

const (
	EdgeLeft   Edge = "left"
	EdgeRight  Edge = "right"
	EdgeTop    Edge = "top"
	EdgeBottom Edge = "bottom"
)

// Direction returns the split axis a drop on this edge produces.
func (e Edge) Direction() Direction {
	if e == EdgeLeft || e == EdgeRight {
		return Horizontal
	}
	return Vertical
}

// before reports whether an insert on this edge lands before the target
// in its parent's child order.
func (e Edge) before() bool {
	return e == EdgeLeft || e == EdgeTop
}

// Command is a user-defined unit of work bound to a pane. Text may start
// empty and be back-filled once from the first line typed into a blank
// terminal.
type Command struct {
	ID      int    `json:"id"`
	Text    string `json:"commandText"`
	WorkDir string `json:"workingDirectory,omitempty"`
}

// Node is one node of the pane tree. A leaf carries a Command and no
// children; a container carries a Direction and at least two children.
// IDs are globally unique and stable across mutations that do not destroy
// the node, so view bindings and running sessions survive tree reshapes.
type Node struct {
	ID        string
	Command   *Command
	Direction Direction
	Children  []*Node
}

// IsLeaf reports whether n is a terminal pane.
func (n *Node) IsLeaf() bool {
	return n != nil && n.Children == nil
}

// NewLeaf creates a leaf pane for the given command with a fresh ID.
func NewLeaf(cmd *Command) *Node {
	return &Node{ID: uuid.NewString(), Command: cmd}
}

func newContainer(dir Direction, children ...*Node) *Node {
	return &Node{ID: uuid.NewString(), Direction: dir, Children: children}
}

// Find returns the first node with the given ID in depth-first order,
// or nil if absent.
func Find(root *Node, id string) *Node {
	if root == nil {
		return nil
	}
	if root.ID == id {
		return root
	}
	for _, c := range root.Children {
		if n := Find(c, id); n != nil {
			return n
		}
	}
	return nil
}

// FindParent returns the container holding the node with the given ID and
// the node's index in its children. Returns (nil, -1) when id is the root
// or not present.
func FindParent(root *Node, id string) (*Node, int) {
	if root == nil || root.IsLeaf() {
		return nil, -1
	}
	for i, c := range root.Children {
		if c.ID == id {
			return root, i
		}
		if p, j := FindParent(c, id); p != nil {
			return p, j
		}
	}
	return nil, -1
}

// Leaves returns all leaf panes flattened depth-first, matching the
// visual left-to-right, top-to-bottom order.
func Leaves(root *Node) []*Node {
	if root == nil {
		return nil
	}
	if root.IsLeaf() {
		return []*Node{root}
	}
	var out []*Node
	for _, c := range root.Children {
		out = append(out, Leaves(c)...)
	}
	return out
}

// Remove deletes the node with the given ID and returns the new root.
// A container left with a single child collapses to that child; a
// container left empty is removed from its own parent, recursively.
// Removing the root, or the last leaf, yields nil. An unknown ID is a
// no-op that returns the tree unchanged.
func Remove(root *Node, id string) *Node {
	if root == nil {
		return nil
	}
	if root.ID == id {
		return nil
	}
	parent, idx := FindParent(root, id)
	if parent == nil {
		return root
	}
	parent.Children = append(parent.Children[:idx], parent.Children[idx+1:]...)
	return collapse(root, parent)
}

// collapse restores the minimality invariant upward from node: containers
// with one child are replaced by that child, empty containers are removed
// from their parent.
func collapse(root, node *Node) *Node {
	for node != nil && !node.IsLeaf() && len(node.Children) < 2 {
		parent, idx := FindParent(root, node.ID)
		switch len(node.Children) {
		case 1:
			child := node.Children[0]
			if parent == nil {
				return child
			}
			parent.Children[idx] = child
			node = parent
		default: // empty
			if parent == nil {
				return nil
			}
			parent.Children = append(parent.Children[:idx], parent.Children[idx+1:]...)
			node = parent
		}
	}
	return root
}

// Validate checks the structural invariants: unique IDs, commands on every
// leaf, and at least two children per container. Violations are programming
// errors; callers log rather than surface them.
func Validate(root *Node) error {
	seen := make(map[string]bool)
	var walk func(n *Node) error
	walk = func(n *Node) error {
		if n == nil {
			return fmt.Errorf("nil node in tree")
		}
		if n.ID == "" {
			return fmt.Errorf("node with empty id")
		}
		if seen[n.ID] {
			return fmt.Errorf("duplicate node id %s", n.ID)
		}
		seen[n.ID] = true
		if n.IsLeaf() {
			if n.Command == nil {
				return fmt.Errorf("leaf %s has no command", n.ID)
			}
			return nil
		}
		if len(n.Children) < 2 {
			return fmt.Errorf("container %s has %d children", n.ID, len(n.Children))
		}
		if n.Direction != Horizontal && n.Direction != Vertical {
			return fmt.Errorf("container %s has direction %q", n.ID, n.Direction)
		}
		for _, c := range n.Children {
			if err := walk(c); err != nil {
				return err
			}
		}
		return nil
	}
	if root == nil {
		return nil
	}
	return walk(root)
}
