package ui

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/desertthunder/mdx/internal/downloads"
	"github.com/desertthunder/mdx/internal/formatter"
	"github.com/desertthunder/mdx/internal/models"
	"github.com/desertthunder/mdx/internal/player"
	"github.com/desertthunder/mdx/internal/shared"
)

const (
	tickInterval    = 200 * time.Millisecond
	seekStep        = 5.0
	volumeStep      = 0.1
	rateStep        = 0.25
	defaultPageSize = 20
)

// Searcher runs keyword searches.
type Searcher interface {
	Search(ctx context.Context, keyword string, page, pageSize int) (*models.SearchPage, error)
}

// Playback is the part of [player.Player] the TUI drives.
type Playback interface {
	State() player.State
	SetQueue(tracks []models.Track, index int)
	TogglePlay()
	SeekBy(delta float64)
	SetVolume(v float64)
	SetPlaybackRate(r float64)
	Next() bool
	Prev() bool
}

// Downloader is the part of [downloads.Manager] the TUI drives.
type Downloader interface {
	Download(ctx context.Context, track models.Track) (*models.DownloadRecord, error)
	Tracker() *downloads.Tracker
}

// TrackCache remembers search results so CLI commands can find them by hash.
type TrackCache interface {
	Upsert(tracks ...models.Track) error
}

// Opts wires the TUI to its collaborators. Cache and Logger are optional.
type Opts struct {
	Search    Searcher
	Player    Playback
	Downloads Downloader
	Cache     TrackCache
	PageSize  int
	Logger    *log.Logger
}

// focus is the area receiving key presses.
type focus int

const (
	focusInput focus = iota
	focusResults
)

// Model represents the TUI application state.
type Model struct {
	ctx       context.Context
	search    Searcher
	player    Playback
	downloads Downloader
	cache     TrackCache
	pageSize  int
	logger    *log.Logger

	focus   focus
	input   textinput.Model
	results list.Model
	bar     progress.Model
	help    help.Model
	keys    keyMap

	keyword string
	page    int
	hasMore bool
	loading bool
	tracks  []models.Track

	status  string
	warning string
	err     error
	width   int
	height  int
}

// NewModel creates a new TUI model with the provided dependencies.
func NewModel(ctx context.Context, opts Opts) *Model {
	if opts.PageSize <= 0 {
		opts.PageSize = defaultPageSize
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(io.Discard)
	}

	input := textinput.New()
	input.Placeholder = "Search songs, artists, albums..."
	input.Prompt = "> "
	input.CharLimit = 100
	input.Focus()

	results := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	results.Title = "Results"
	results.SetFilteringEnabled(false)
	results.SetShowHelp(false)
	results.SetShowStatusBar(false)

	return &Model{
		ctx:       ctx,
		search:    opts.Search,
		player:    opts.Player,
		downloads: opts.Downloads,
		cache:     opts.Cache,
		pageSize:  opts.PageSize,
		logger:    opts.Logger,
		focus:     focusInput,
		input:     input,
		results:   results,
		bar:       progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage(), progress.WithWidth(30)),
		help:      help.New(),
		keys:      newKeyMap(),
	}
}

// Init starts the refresh ticker and the cursor blink.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, tick())
}

func tick() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.results.SetSize(msg.Width-4, max(msg.Height-14, 5))
		m.bar.Width = max(min(msg.Width-40, 50), 10)
		return m, nil

	case tea.KeyMsg:
		if m.focus == focusInput {
			return m.handleInputKeys(msg)
		}
		return m.handleResultKeys(msg)

	case Msg:
		switch msg.kind {
		case MsgSearchDone:
			return m.handleSearchDone(msg.data.(searchResult))
		case MsgDownloadDone:
			return m.handleDownloadDone(msg.data.(downloadResult))
		case MsgTick:
			return m, tick()
		}
	}

	var cmd tea.Cmd
	if m.focus == focusInput {
		m.input, cmd = m.input.Update(msg)
	} else {
		m.results, cmd = m.results.Update(msg)
	}
	return m, cmd
}

func (m *Model) handleInputKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit
	case "esc":
		if len(m.tracks) > 0 {
			m.setFocus(focusResults)
		}
		return m, nil
	case "enter":
		keyword := strings.TrimSpace(m.input.Value())
		if keyword == "" {
			m.warning = "Enter a keyword to search"
			return m, nil
		}
		m.warning = ""
		m.err = nil
		m.keyword = keyword
		m.tracks = nil
		m.page = 0
		m.hasMore = false
		m.results.SetItems(nil)
		return m, m.fetchPage(1)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) handleResultKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.search):
		m.setFocus(focusInput)
		return m, textinput.Blink
	case key.Matches(msg, m.keys.play):
		if index := m.results.Index(); index >= 0 && index < len(m.tracks) {
			m.player.SetQueue(m.tracks, index)
			m.status = "Loading " + m.tracks[index].Label()
		}
		return m, nil
	case key.Matches(msg, m.keys.download):
		return m, m.startDownload()
	case key.Matches(msg, m.keys.toggle):
		m.player.TogglePlay()
		return m, nil
	case key.Matches(msg, m.keys.back):
		m.player.SeekBy(-seekStep)
		return m, nil
	case key.Matches(msg, m.keys.forward):
		m.player.SeekBy(seekStep)
		return m, nil
	case key.Matches(msg, m.keys.volUp):
		m.player.SetVolume(m.player.State().Volume + volumeStep)
		return m, nil
	case key.Matches(msg, m.keys.volDown):
		m.player.SetVolume(m.player.State().Volume - volumeStep)
		return m, nil
	case key.Matches(msg, m.keys.faster):
		m.player.SetPlaybackRate(m.player.State().PlaybackRate + rateStep)
		return m, nil
	case key.Matches(msg, m.keys.slower):
		m.player.SetPlaybackRate(m.player.State().PlaybackRate - rateStep)
		return m, nil
	case key.Matches(msg, m.keys.next):
		if !m.player.Next() {
			m.status = "End of queue"
		}
		return m, nil
	case key.Matches(msg, m.keys.prev):
		if !m.player.Prev() {
			m.status = "Start of queue"
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.results, cmd = m.results.Update(msg)
	return m, tea.Batch(cmd, m.maybeLoadMore())
}

func (m *Model) setFocus(f focus) {
	m.focus = f
	if f == focusInput {
		m.input.Focus()
	} else {
		m.input.Blur()
	}
}

// maybeLoadMore requests the next page once the cursor sits on the last loaded item.
func (m *Model) maybeLoadMore() tea.Cmd {
	if m.loading || !m.hasMore || len(m.tracks) == 0 {
		return nil
	}
	if m.results.Index() < len(m.tracks)-1 {
		return nil
	}
	return m.fetchPage(m.page + 1)
}

func (m *Model) fetchPage(page int) tea.Cmd {
	m.loading = true
	keyword, size := m.keyword, m.pageSize

	return func() tea.Msg {
		result, err := m.search.Search(m.ctx, keyword, page, size)
		if err == nil && m.cache != nil {
			if cacheErr := m.cache.Upsert(result.Tracks...); cacheErr != nil {
				m.logger.Warn("failed to cache search results", "error", cacheErr)
			}
		}
		return searchDoneMsg(result, err)
	}
}

func (m *Model) handleSearchDone(res searchResult) (tea.Model, tea.Cmd) {
	m.loading = false

	if res.err != nil {
		m.logger.Error("search failed", "keyword", m.keyword, "error", res.err)
		m.err = res.err
		return m, nil
	}

	// results from a search that has since been replaced
	if res.page.Keyword != m.keyword || res.page.Page != m.page+1 {
		return m, nil
	}

	m.page = res.page.Page
	m.hasMore = res.page.HasMore() && len(res.page.Tracks) > 0
	m.tracks = append(m.tracks, res.page.Tracks...)

	cmd := m.results.SetItems(trackItems(m.tracks))
	if res.page.Page == 1 {
		m.results.Select(0)
	}
	m.results.Title = fmt.Sprintf("Results for %q (%d)", m.keyword, len(m.tracks))

	if len(m.tracks) == 0 {
		m.status = "No tracks found"
		return m, cmd
	}

	m.status = ""
	m.setFocus(focusResults)
	return m, cmd
}

func (m *Model) startDownload() tea.Cmd {
	index := m.results.Index()
	if index < 0 || index >= len(m.tracks) {
		return nil
	}

	track := m.tracks[index]
	m.status = "Downloading " + track.Label()

	return func() tea.Msg {
		record, err := m.downloads.Download(m.ctx, track)
		return downloadDoneMsg(track, record, err)
	}
}

func (m *Model) handleDownloadDone(res downloadResult) (tea.Model, tea.Cmd) {
	if res.err != nil {
		m.logger.Error("download failed", "hash", res.track.Hash, "error", res.err)
		m.status = ""
		m.err = res.err
		return m, nil
	}
	m.err = nil
	m.status = "Saved " + res.record.Path
	return m, nil
}

// View renders the search input, results, player bar and active downloads.
func (m *Model) View() string {
	var b strings.Builder

	b.WriteString(styles.title.Render("mdx"))
	b.WriteString("\n")
	b.WriteString(m.input.View())
	b.WriteString("\n")

	switch {
	case m.warning != "":
		b.WriteString(styles.warn.Render(m.warning))
	case m.err != nil:
		b.WriteString(styles.err.Render(fmt.Sprintf("Error: %v", m.err)))
	case m.loading:
		b.WriteString(styles.help.Render("Searching..."))
	case m.status != "":
		b.WriteString(styles.ok.Render(m.status))
	}
	b.WriteString("\n\n")

	if len(m.tracks) > 0 {
		b.WriteString(m.results.View())
		b.WriteString("\n")
	}

	if bar := m.renderPlayer(); bar != "" {
		b.WriteString(bar)
		b.WriteString("\n")
	}
	if dl := m.renderDownloads(); dl != "" {
		b.WriteString(dl)
		b.WriteString("\n")
	}

	b.WriteString(m.help.View(m.keys))
	return b.String()
}

func (m *Model) renderPlayer() string {
	s := m.player.State()
	if s.Track == nil {
		return ""
	}

	icon := "⏸"
	switch {
	case s.IsLoading:
		icon = "…"
	case s.IsPlaying:
		icon = "▶"
	}

	ratio := 0.0
	if s.Duration > 0 {
		ratio = s.CurrentTime / s.Duration
	}

	line := fmt.Sprintf("%s %s\n%s %s / %s  vol %d%%  %.2fx",
		icon,
		s.Track.Label(),
		m.bar.ViewAs(ratio),
		formatter.FormatPosition(s.CurrentTime),
		formatter.FormatPosition(s.Duration),
		int(s.Volume*100+0.5),
		s.PlaybackRate,
	)
	if s.QueueIndex >= 0 {
		line += fmt.Sprintf("  [%d/%d]", s.QueueIndex+1, len(s.Queue))
	}
	if s.Error != "" {
		line += "\n" + styles.err.Render(s.Error)
	}

	return styles.player.Render(line)
}

func (m *Model) renderDownloads() string {
	if m.downloads == nil {
		return ""
	}

	entries := m.downloads.Tracker().Entries()
	if len(entries) == 0 {
		return ""
	}

	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		lines = append(lines, fmt.Sprintf("%s %3d%%  %s  %s  %s",
			m.bar.ViewAs(float64(e.Progress)/100),
			e.Progress,
			formatter.FormatSpeed(e.Speed),
			formatter.FormatETA(e.TimeRemaining, e.Progress),
			e.Filename,
		))
	}
	return strings.Join(lines, "\n")
}
