package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines the [key.Binding] mapping for the TUI.
type keyMap struct {
	next    key.Binding
	enter   key.Binding
	back    key.Binding
	read    key.Binding
	readAll key.Binding
	handle  key.Binding
	remove  key.Binding
	clear   key.Binding
	compose key.Binding
	react   key.Binding
	send    key.Binding
	quit    key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		next:    key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "switch view")),
		enter:   key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "open")),
		back:    key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
		read:    key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "mark read")),
		readAll: key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "mark all read")),
		handle:  key.NewBinding(key.WithKeys("h"), key.WithHelp("h", "handled")),
		remove:  key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "delete")),
		clear:   key.NewBinding(key.WithKeys("D"), key.WithHelp("D", "clear all")),
		compose: key.NewBinding(key.WithKeys("i"), key.WithHelp("i", "write")),
		react:   key.NewBinding(key.WithKeys("+"), key.WithHelp("+", "react")),
		send:    key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "send")),
		quit:    key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.next, k.enter, k.back},
		{k.read, k.readAll, k.handle, k.remove, k.clear},
		{k.compose, k.react, k.quit},
	}
}
