package layout

import "github.com/google/uuid"

// NodeType tags persisted layout records.
type NodeType string

const (
	NodeTerminal  NodeType = "terminal"
	NodeContainer NodeType = "container"
)

// Record is the storage-safe mirror of a Node: commands become ID
// references and live resources (sessions, render state) are excluded.
type Record struct {
	ID        string    `json:"id"`
	Type      NodeType  `json:"type"`
	CommandID int       `json:"commandId,omitempty"`
	Direction Direction `json:"direction,omitempty"`
	Children  []*Record `json:"children,omitempty"`
}

// Serialize walks the tree into its persisted form. Node IDs are carried
// through so running sessions can re-bind after a reload.
func Serialize(root *Node) *Record {
	if root == nil {
		return nil
	}
	if root.IsLeaf() {
		return &Record{ID: root.ID, Type: NodeTerminal, CommandID: root.Command.ID}
	}
	rec := &Record{ID: root.ID, Type: NodeContainer, Direction: root.Direction}
	for _, c := range root.Children {
		rec.Children = append(rec.Children, Serialize(c))
	}
	return rec
}

// Deserialize reconstructs a tree from its persisted form, binding
// terminal entries to the given commands. A terminal whose command ID is
// unknown is dropped as a stale reference; a container left with one
// child collapses to that child and an empty container is dropped,
// mirroring Remove's collapse rule so the result always satisfies the
// tree invariants. Returns nil when nothing survives; callers fall back
// to DefaultLayout.
func Deserialize(rec *Record, commandsByID map[int]*Command) *Node {
	if rec == nil {
		return nil
	}
	switch rec.Type {
	case NodeTerminal:
		cmd, ok := commandsByID[rec.CommandID]
		if !ok {
			return nil
		}
		id := rec.ID
		if id == "" {
			id = uuid.NewString()
		}
		return &Node{ID: id, Command: cmd}
	case NodeContainer:
		var children []*Node
		for _, c := range rec.Children {
			if n := Deserialize(c, commandsByID); n != nil {
				children = append(children, n)
			}
		}
		switch len(children) {
		case 0:
			return nil
		case 1:
			return children[0]
		}
		id := rec.ID
		if id == "" {
			id = uuid.NewString()
		}
		return &Node{ID: id, Direction: rec.Direction, Children: children}
	}
	return nil
}
