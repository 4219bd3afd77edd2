package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines the [key.Binding] mapping for the TUI.
type keyMap struct {
	search   key.Binding
	play     key.Binding
	download key.Binding
	toggle   key.Binding
	back     key.Binding
	forward  key.Binding
	volUp    key.Binding
	volDown  key.Binding
	slower   key.Binding
	faster   key.Binding
	next     key.Binding
	prev     key.Binding
	quit     key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		search:   key.NewBinding(key.WithKeys("/", "esc"), key.WithHelp("/", "search")),
		play:     key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "play")),
		download: key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "download")),
		toggle:   key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "play/pause")),
		back:     key.NewBinding(key.WithKeys("left"), key.WithHelp("←", "-5s")),
		forward:  key.NewBinding(key.WithKeys("right"), key.WithHelp("→", "+5s")),
		volUp:    key.NewBinding(key.WithKeys("+", "="), key.WithHelp("+", "vol up")),
		volDown:  key.NewBinding(key.WithKeys("-"), key.WithHelp("-", "vol down")),
		slower:   key.NewBinding(key.WithKeys("["), key.WithHelp("[", "slower")),
		faster:   key.NewBinding(key.WithKeys("]"), key.WithHelp("]", "faster")),
		next:     key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "next")),
		prev:     key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "prev")),
		quit:     key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.play, k.toggle, k.download, k.search, k.quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.play, k.toggle, k.download},
		{k.back, k.forward, k.next, k.prev},
		{k.volUp, k.volDown, k.slower, k.faster},
		{k.search, k.quit},
	}
}
