package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/tunesync/internal/bridge"
	"github.com/desertthunder/tunesync/internal/models"
	"github.com/desertthunder/tunesync/internal/mutations"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgHubEvent MsgKind = iota
	MsgMutationDone
	MsgRolledBack
	MsgStale
	MsgRefresh
)

// hubEventMsg is the constructor for [MsgHubEvent]
func hubEventMsg(ev models.Event) Msg {
	return Msg{kind: MsgHubEvent, data: ev}
}

// mutationDoneMsg is the constructor for [MsgMutationDone]
func mutationDoneMsg(m mutations.Mutation, result *mutations.Result, err error) Msg {
	return Msg{
		kind: MsgMutationDone,
		data: struct {
			mutation mutations.Mutation
			result   *mutations.Result
			err      error
		}{m, result, err},
	}
}

// rolledBackMsg is the constructor for [MsgRolledBack]
func rolledBackMsg(rb bridge.Rollback) Msg {
	return Msg{kind: MsgRolledBack, data: rb}
}

// staleMsg is the constructor for [MsgStale]
func staleMsg(ids []string) Msg {
	return Msg{kind: MsgStale, data: ids}
}

// refreshMsg is the constructor for [MsgRefresh]
func refreshMsg() Msg {
	return Msg{kind: MsgRefresh}
}
