package layout

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a mutation names a node that is not in the
// tree, e.g. a drop target closed mid-gesture.
var ErrNotFound = errors.New("node not found")

// Drop describes where a moved or inserted pane lands. A non-empty
// TargetID means a drop on one edge of that pane; an empty TargetID means
// a drop on the named outer edge of the whole layout.
type Drop struct {
	TargetID string
	Edge     Edge
}

// InsertBeside places leaf on the given edge of the target pane and
// returns the new root. When the target's parent already splits along the
// edge's axis the leaf is spliced into the existing child list, so no
// node other than the parent's children changes. Otherwise the target and
// the leaf are wrapped in a fresh container occupying the target's slot;
// wrapping the root produces a new root.
func InsertBeside(root *Node, targetID string, leaf *Node, edge Edge) (*Node, error) {
	target := Find(root, targetID)
	if target == nil {
		return root, fmt.Errorf("insert target %s: %w", targetID, ErrNotFound)
	}
	dir := edge.Direction()
	parent, idx := FindParent(root, targetID)
	if parent != nil && parent.Direction == dir {
		pos := idx
		if !edge.before() {
			pos = idx + 1
		}
		parent.Children = append(parent.Children[:pos], append([]*Node{leaf}, parent.Children[pos:]...)...)
		return root, nil
	}
	var wrap *Node
	if edge.before() {
		wrap = newContainer(dir, leaf, target)
	} else {
		wrap = newContainer(dir, target, leaf)
	}
	if parent == nil {
		return wrap, nil
	}
	parent.Children[idx] = wrap
	return root, nil
}

// InsertAtEdge places leaf along the named outer edge of the whole layout.
// When the root already splits along that axis the leaf joins the root's
// child list directly; otherwise the old root and the leaf are wrapped in
// a new container. An empty tree yields the leaf itself.
func InsertAtEdge(root *Node, leaf *Node, edge Edge) *Node {
	if root == nil {
		return leaf
	}
	dir := edge.Direction()
	if !root.IsLeaf() && root.Direction == dir {
		if edge.before() {
			root.Children = append([]*Node{leaf}, root.Children...)
		} else {
			root.Children = append(root.Children, leaf)
		}
		return root
	}
	if edge.before() {
		return newContainer(dir, leaf, root)
	}
	return newContainer(dir, root, leaf)
}

// Move detaches the leaf with sourceID and reinserts it at the drop
// position. The moved leaf keeps its ID, command, and any transferable
// session/render state: this is a structural move, not a recreation.
// Dropping a pane onto itself, or moving the only leaf to an outer edge,
// is a no-op. Returns the new root and whether the tree changed.
func Move(root *Node, sourceID string, drop Drop) (*Node, bool, error) {
	if drop.TargetID == sourceID {
		return root, false, nil
	}
	source := Find(root, sourceID)
	if source == nil {
		return root, false, fmt.Errorf("move source %s: %w", sourceID, ErrNotFound)
	}
	if !source.IsLeaf() {
		return root, false, fmt.Errorf("move source %s is not a leaf", sourceID)
	}
	if drop.TargetID != "" && Find(root, drop.TargetID) == nil {
		return root, false, fmt.Errorf("move target %s: %w", drop.TargetID, ErrNotFound)
	}
	if root.ID == sourceID {
		// Single-leaf tree; an edge drop cannot change anything.
		return root, false, nil
	}

	detached := Remove(root, sourceID)
	if drop.TargetID == "" {
		return InsertAtEdge(detached, source, drop.Edge), true, nil
	}
	newRoot, err := InsertBeside(detached, drop.TargetID, source, drop.Edge)
	if err != nil {
		// Target vanished with the removal; reinsert at the edge so the
		// pane is never lost.
		return InsertAtEdge(detached, source, drop.Edge), true, nil
	}
	return newRoot, true, nil
}

// SplitAfter adds a new leaf for cmd immediately to the right of the pane
// with afterID. When the pane's parent is already horizontal this is a
// cheap splice; otherwise the pane and the new leaf are wrapped in a new
// horizontal container, which is the only case requiring the existing
// pane's view to be rebuilt. The rewrapped result tells the caller whether
// that rebuild is needed.
func SplitAfter(root *Node, afterID string, cmd *Command) (newRoot, leaf *Node, rewrapped bool, err error) {
	target := Find(root, afterID)
	if target == nil {
		return root, nil, false, fmt.Errorf("split target %s: %w", afterID, ErrNotFound)
	}
	leaf = NewLeaf(cmd)
	parent, idx := FindParent(root, afterID)
	if parent != nil && parent.Direction == Horizontal {
		pos := idx + 1
		parent.Children = append(parent.Children[:pos], append([]*Node{leaf}, parent.Children[pos:]...)...)
		return root, leaf, false, nil
	}
	wrap := newContainer(Horizontal, target, leaf)
	if parent == nil {
		return wrap, leaf, true, nil
	}
	parent.Children[idx] = wrap
	return root, leaf, true, nil
}

// DefaultLayout builds the fallback layout for a command list: a single
// leaf for one command, otherwise one flat horizontal container in
// definition order. Returns nil for an empty list.
func DefaultLayout(commands []*Command) *Node {
	switch len(commands) {
	case 0:
		return nil
	case 1:
		return NewLeaf(commands[0])
	}
	children := make([]*Node, len(commands))
	for i, c := range commands {
		children[i] = NewLeaf(c)
	}
	return newContainer(Horizontal, children...)
}
