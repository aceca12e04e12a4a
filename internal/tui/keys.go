package tui

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the global workspace shortcuts. Everything else is
// forwarded to the focused pane's session.
type KeyMap struct {
	Quit      key.Binding
	AddPane   key.Binding
	ClosePane key.Binding
	Restart   key.Binding
	NextPane  key.Binding
	Rename    key.Binding
	Help      key.Binding
}

// DefaultKeyMap is the standard binding set. Ctrl-combos are used so that
// plain typing always reaches the shell.
var DefaultKeyMap = KeyMap{
	Quit: key.NewBinding(
		key.WithKeys("ctrl+q"),
		key.WithHelp("ctrl+q", "quit"),
	),
	AddPane: key.NewBinding(
		key.WithKeys("ctrl+n"),
		key.WithHelp("ctrl+n", "new pane"),
	),
	ClosePane: key.NewBinding(
		key.WithKeys("ctrl+w"),
		key.WithHelp("ctrl+w", "close pane"),
	),
	Restart: key.NewBinding(
		key.WithKeys("ctrl+r"),
		key.WithHelp("ctrl+r", "restart"),
	),
	NextPane: key.NewBinding(
		key.WithKeys("ctrl+o"),
		key.WithHelp("ctrl+o", "next pane"),
	),
	Rename: key.NewBinding(
		key.WithKeys("ctrl+e"),
		key.WithHelp("ctrl+e", "rename"),
	),
	Help: key.NewBinding(
		key.WithKeys("ctrl+g"),
		key.WithHelp("ctrl+g", "help"),
	),
}

// ShortHelp implements help.KeyMap.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.AddPane, k.ClosePane, k.Restart, k.Quit, k.Help}
}

// FullHelp implements help.KeyMap.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.AddPane, k.ClosePane, k.Restart},
		{k.NextPane, k.Rename, k.Quit},
	}
}
