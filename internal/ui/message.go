package ui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/mdx/internal/models"
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
	MsgSearchDone MsgKind = iota
	MsgDownloadDone
	MsgTick
)

type searchResult struct {
	page *models.SearchPage
	err  error
}

type downloadResult struct {
	track  models.Track
	record *models.DownloadRecord
	err    error
}

// searchDoneMsg is the constructor for [MsgSearchDone]
func searchDoneMsg(page *models.SearchPage, err error) Msg {
	return Msg{kind: MsgSearchDone, data: searchResult{page, err}}
}

// downloadDoneMsg is the constructor for [MsgDownloadDone]
func downloadDoneMsg(track models.Track, record *models.DownloadRecord, err error) Msg {
	return Msg{kind: MsgDownloadDone, data: downloadResult{track, record, err}}
}

// tickMsg is the constructor for [MsgTick]
func tickMsg(t time.Time) Msg {
	return Msg{kind: MsgTick, data: t}
}
