package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	// Timer
	Start  key.Binding
	Stop   key.Binding
	Pause  key.Binding
	Cancel key.Binding

	// Lists and forms
	New    key.Binding
	Delete key.Binding
	Enter  key.Binding
	Back   key.Binding
	Up     key.Binding
	Down   key.Binding
	Left   key.Binding
	Right  key.Binding

	// Views
	Tab1 key.Binding
	Tab2 key.Binding
	Tab3 key.Binding
	Tab4 key.Binding
	Tab5 key.Binding
	Tab  key.Binding

	Export key.Binding
	Help   key.Binding
	Quit   key.Binding
}

func binding(help string, keys ...string) key.Binding {
	return key.NewBinding(key.WithKeys(keys...), key.WithHelp(keys[0], help))
}

var keys = keyMap{
	Start:  binding("start", "s"),
	Stop:   binding("stop", "x"),
	Pause:  key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "pause/resume")),
	Cancel: binding("discard timer", "c"),

	New:    binding("new", "n"),
	Delete: binding("archive", "d"),
	Enter:  binding("select", "enter"),
	Back:   binding("back", "esc"),
	Up:     key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
	Down:   key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
	Left:   key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("←/h", "left")),
	Right:  key.NewBinding(key.WithKeys("right", "l"), key.WithHelp("→/l", "right")),

	Tab1: binding("dashboard", "1"),
	Tab2: binding("pending", "2"),
	Tab3: binding("reports", "3"),
	Tab4: binding("catalog", "4"),
	Tab5: binding("settings", "5"),
	Tab:  binding("next view", "tab"),

	Export: binding("export", "e"),
	Help:   binding("help", "?"),
	Quit:   binding("quit", "q", "ctrl+c"),
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Start, k.Stop, k.Pause, k.Cancel, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Start, k.Stop, k.Pause, k.Cancel},
		{k.New, k.Delete, k.Export},
		{k.Tab1, k.Tab2, k.Tab3, k.Tab4, k.Tab5},
		{k.Up, k.Down, k.Enter, k.Back, k.Quit},
	}
}
