// Package app wires the tab manager, activation trail engine, storage, and
// UI components into the top-level bubbletea model.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/vidyasagar/tabtrail/internal/browser"
	"github.com/vidyasagar/tabtrail/internal/storage"
	"github.com/vidyasagar/tabtrail/internal/tabs"
	"github.com/vidyasagar/tabtrail/internal/theme"
	"github.com/vidyasagar/tabtrail/internal/trail"
	"github.com/vidyasagar/tabtrail/internal/ui"
)

// Mode represents the current input mode.
type Mode int

const (
	ModeNormal  Mode = iota
	ModeInsert       // URL bar focused
	ModeCommand      // command bar active
	ModeTrail        // trail panel active
)

// tabState holds per-tab view state. Tab identity and metadata live in
// tabs.Manager; this is only what the renderer needs.
type tabState struct {
	viewport   ui.PageViewport
	page       *browser.RenderedPage
	loading    bool
	cancelFunc context.CancelFunc
}

// Model is the top-level bubbletea model for tabtrail.
type Model struct {
	// UI components
	tabBar     ui.TabBar
	urlBar     ui.URLBar
	statusBar  ui.StatusBar
	commandBar ui.CommandBar
	trailPanel ui.TrailPanel

	// Per-tab view state
	tabStates map[int]*tabState

	// Core state
	manager   *tabs.Manager
	engine    *trail.Engine
	fetcher   *browser.Fetcher
	pageCache *lru.Cache[string, *browser.RenderedPage]
	keys      KeyMap
	mode      Mode
	width     int
	height    int
	vpWidth   int
	vpHeight  int
	ready     bool
	startURL  string
	logger    *slog.Logger

	// Storage
	db          *storage.DB
	activations *storage.ActivationLog
	config      *storage.Config

	// Trail feed: the engine notifies observers on its own goroutine, so
	// snapshots cross into the bubbletea loop through this channel.
	snapshots    chan trail.Snapshot
	lastSnap     trail.Snapshot
	lastFrontTab int
}

// pageLoadedMsg is sent when a page finishes loading.
type pageLoadedMsg struct {
	tabID int
	page  *browser.RenderedPage
	url   string
	err   error
}

// tabEventMsg carries one tab notification into the update loop.
type tabEventMsg struct {
	ev tabs.Event
}

// trailSnapshotMsg carries a trail snapshot into the update loop.
type trailSnapshotMsg struct {
	snap trail.Snapshot
}

// memStore is the fallback trail store when the database cannot be opened.
// The trail still works for the session, it just will not survive a restart.
type memStore struct {
	records []trail.TabRecord
	current int
}

func newMemStore() *memStore {
	return &memStore{current: -1}
}

func (s *memStore) Load(ctx context.Context) ([]trail.TabRecord, int, error) {
	return append([]trail.TabRecord(nil), s.records...), s.current, nil
}

func (s *memStore) Save(ctx context.Context, records []trail.TabRecord, currentIndex int) error {
	s.records = append([]trail.TabRecord(nil), records...)
	s.current = currentIndex
	return nil
}

// New creates the tabtrail Model.
func New(startURL string, logger *slog.Logger) Model {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	cfg, err := storage.LoadConfig()
	if err != nil {
		def := storage.DefaultConfig()
		cfg = &def
	}
	if cfg.Theme != "" {
		theme.Set(cfg.Theme)
	}

	mgr := tabs.NewManager()

	// Rendered pages are cached so revisiting a URL is instant.
	pageCache, _ := lru.New[string, *browser.RenderedPage](50)

	m := Model{
		tabBar:     ui.NewTabBar(),
		urlBar:     ui.NewURLBar(),
		statusBar:  ui.NewStatusBar(),
		commandBar: ui.NewCommandBar(),
		trailPanel: ui.NewTrailPanel(),
		tabStates:  make(map[int]*tabState),
		manager:    mgr,
		fetcher:    browser.NewFetcher(),
		pageCache:  pageCache,
		keys:       DefaultKeyMap(),
		mode:       ModeNormal,
		startURL:   startURL,
		logger:     logger,
		config:     cfg,
		snapshots:  make(chan trail.Snapshot, 16),
	}

	// Storage is best-effort: a failed open falls back to an in-memory
	// trail store and no activation log.
	var store trail.Store
	dataDir, err := storage.DataDir()
	if err == nil {
		db, dbErr := storage.OpenDB(dataDir)
		if dbErr == nil {
			m.db = db
			m.activations = storage.NewActivationLog(db)
			store = storage.NewTrailStore(db)
		} else {
			logger.Warn("database unavailable, trail will not persist", "error", dbErr)
		}
	}
	if store == nil {
		store = newMemStore()
	}

	m.engine = trail.New(store, mgr, trail.Options{
		HistoryLimit: cfg.HistoryLimit,
		Throttle:     time.Duration(cfg.ThrottleMS) * time.Millisecond,
		Logger:       logger,
	})

	snapshots := m.snapshots
	m.engine.Subscribe(func(s trail.Snapshot) {
		pushSnapshot(snapshots, s)
	})

	if tab, ok := mgr.Active(); ok {
		m.tabStates[tab.ID] = &tabState{viewport: ui.NewPageViewport()}
	}

	return m
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	// Drop trail entries for tabs that did not survive the restart.
	m.engine.Reconcile()

	cmds := []tea.Cmd{
		m.listenTabEvents(),
		m.listenTrail(),
		m.initialSnapshot(),
	}
	homepage := m.startURL
	if homepage == "" && m.config != nil {
		homepage = m.config.Homepage
	}
	if homepage != "" {
		cmds = append(cmds, m.loadPage(homepage))
	}
	return tea.Batch(cmds...)
}

// listenTabEvents waits for the next tab notification.
func (m Model) listenTabEvents() tea.Cmd {
	ch := m.manager.Events()
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return nil
		}
		return tabEventMsg{ev: ev}
	}
}

// pushSnapshot delivers a snapshot to the UI channel. Only the newest state
// matters, so when the channel is full a stale queued snapshot is dropped to
// make room rather than losing the one just committed.
func pushSnapshot(ch chan trail.Snapshot, s trail.Snapshot) {
	for {
		select {
		case ch <- s:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}

// listenTrail waits for the next trail snapshot.
func (m Model) listenTrail() tea.Cmd {
	ch := m.snapshots
	return func() tea.Msg {
		snap, ok := <-ch
		if !ok {
			return nil
		}
		return trailSnapshotMsg{snap: snap}
	}
}

// initialSnapshot fetches the trail state once at startup so the UI does not
// wait for the first mutation.
func (m Model) initialSnapshot() tea.Cmd {
	engine := m.engine
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		snap, err := engine.Snapshot(ctx)
		if err != nil {
			return nil
		}
		return trailSnapshotMsg{snap: snap}
	}
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.layout()
		m.syncTabs()
		return m, nil

	case pageLoadedMsg:
		return m.handlePageLoaded(msg)

	case tabEventMsg:
		return m.handleTabEvent(msg.ev)

	case trailSnapshotMsg:
		return m.handleTrailSnapshot(msg.snap)

	case tea.KeyMsg:
		return m.handleKeyMsg(msg)
	}

	ts := m.activeTabState()
	if ts != nil {
		vp, cmd := ts.viewport.Update(msg)
		ts.viewport = *vp
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

// handleTabEvent routes the notification to the trail engine and keeps the
// per-tab view state in step with the manager.
func (m Model) handleTabEvent(ev tabs.Event) (tea.Model, tea.Cmd) {
	m.engine.Route(toTrailEvent(ev))

	switch ev.Kind {
	case tabs.EventActivated:
		if _, ok := m.tabStates[ev.TabID]; !ok {
			st := &tabState{viewport: ui.NewPageViewport()}
			st.viewport.SetSize(m.vpWidth, m.vpHeight)
			m.tabStates[ev.TabID] = st
		}
	case tabs.EventRemoved:
		if st, ok := m.tabStates[ev.TabID]; ok {
			if st.cancelFunc != nil {
				st.cancelFunc()
			}
			delete(m.tabStates, ev.TabID)
		}
	}

	m.syncTabs()
	return m, m.listenTabEvents()
}

// handleTrailSnapshot refreshes the trail UI and appends newly current
// activations to the on-disk log.
func (m Model) handleTrailSnapshot(snap trail.Snapshot) (tea.Model, tea.Cmd) {
	m.lastSnap = snap
	m.trailPanel.SetSnapshot(snap, m.openTabIDs())

	if len(snap.Records) == 0 {
		m.statusBar.SetTrail(0, 0)
		m.lastFrontTab = 0
	} else {
		m.statusBar.SetTrail(snap.CurrentIndex+1, len(snap.Records))
		front := snap.Records[0]
		if snap.CurrentIndex == 0 && front.TabID != m.lastFrontTab {
			m.lastFrontTab = front.TabID
			if m.activations != nil {
				if err := m.activations.Append(front.TabID, front.Title); err != nil {
					m.logger.Warn("activation log append failed", "error", err)
				}
			}
		}
	}

	return m, m.listenTrail()
}

func toTrailEvent(ev tabs.Event) trail.TabEvent {
	out := trail.TabEvent{
		TabID:      ev.TabID,
		Title:      ev.Title,
		FaviconURL: ev.FaviconURL,
	}
	switch ev.Kind {
	case tabs.EventRemoved:
		out.Kind = trail.TabRemoved
	case tabs.EventUpdated:
		out.Kind = trail.TabUpdated
	default:
		out.Kind = trail.TabActivated
	}
	return out
}

func (m *Model) openTabIDs() []int {
	list := m.manager.List()
	ids := make([]int, 0, len(list))
	for _, tab := range list {
		ids = append(ids, tab.ID)
	}
	return ids
}

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "\n  Loading tabtrail..."
	}

	var sections []string

	sections = append(sections, m.tabBar.View())
	sections = append(sections, m.urlBar.View())

	ts := m.activeTabState()
	if ts != nil {
		if m.trailPanel.IsVisible() {
			t := theme.Current
			dividerStyle := lipgloss.NewStyle().
				Foreground(t.Border).
				Background(t.Background)

			var dividerLines []string
			for i := 0; i < m.vpHeight; i++ {
				dividerLines = append(dividerLines, "│")
			}
			divider := dividerStyle.Render(strings.Join(dividerLines, "\n"))

			sections = append(sections, lipgloss.JoinHorizontal(lipgloss.Top,
				m.trailPanel.View(),
				divider,
				ts.viewport.View(),
			))
		} else {
			sections = append(sections, ts.viewport.View())
		}
	} else {
		sections = append(sections, "")
	}

	sections = append(sections, m.statusBar.View())

	if m.commandBar.IsActive() {
		sections = append(sections, m.commandBar.View())
	}

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// layout recalculates dimensions for all components.
func (m *Model) layout() {
	m.tabBar.SetWidth(m.width)
	m.urlBar.SetWidth(m.width)
	m.statusBar.SetWidth(m.width)
	m.commandBar.SetWidth(m.width)

	tabBarHeight := 1
	urlBarHeight := 3 // border adds height
	statusBarHeight := 1
	commandBarHeight := 0
	if m.commandBar.IsActive() {
		commandBarHeight = 1
	}
	viewportHeight := m.height - tabBarHeight - urlBarHeight - statusBarHeight - commandBarHeight
	if viewportHeight < 1 {
		viewportHeight = 1
	}

	viewportWidth := m.width
	if m.trailPanel.IsVisible() {
		panelWidth := m.width * 35 / 100
		if panelWidth < 24 {
			panelWidth = 24
		}
		m.trailPanel.SetSize(panelWidth, viewportHeight)
		viewportWidth = m.width - panelWidth - 1 // divider
	}

	m.vpWidth = viewportWidth
	m.vpHeight = viewportHeight

	for _, ts := range m.tabStates {
		ts.viewport.SetSize(viewportWidth, viewportHeight)
	}
}

// handleKeyMsg processes key events based on current mode.
func (m Model) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return m, tea.Quit
	}

	switch m.mode {
	case ModeInsert:
		return m.handleInsertMode(msg)
	case ModeCommand:
		return m.handleCommandMode(msg)
	case ModeTrail:
		return m.handleTrailMode(msg)
	default:
		return m.handleNormalMode(msg)
	}
}

// handleNormalMode processes keys in normal (browsing) mode.
func (m Model) handleNormalMode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	ts := m.activeTabState()

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.ScrollDown):
		if ts != nil {
			ts.viewport.LineDown(1)
			m.syncStatusBar()
		}
		return m, nil

	case key.Matches(msg, m.keys.ScrollUp):
		if ts != nil {
			ts.viewport.LineUp(1)
			m.syncStatusBar()
		}
		return m, nil

	case key.Matches(msg, m.keys.HalfPageDown):
		if ts != nil {
			ts.viewport.HalfPageDown()
			m.syncStatusBar()
		}
		return m, nil

	case key.Matches(msg, m.keys.HalfPageUp):
		if ts != nil {
			ts.viewport.HalfPageUp()
			m.syncStatusBar()
		}
		return m, nil

	case key.Matches(msg, m.keys.GotoTop):
		if ts != nil {
			ts.viewport.GotoTop()
			m.syncStatusBar()
		}
		return m, nil

	case key.Matches(msg, m.keys.GotoBottom):
		if ts != nil {
			ts.viewport.GotoBottom()
			m.syncStatusBar()
		}
		return m, nil

	case key.Matches(msg, m.keys.OpenURL):
		m.mode = ModeInsert
		m.urlBar.Reset()
		m.statusBar.SetMode("INSERT")
		return m, m.urlBar.Focus()

	case key.Matches(msg, m.keys.TrailBack):
		m.engine.GoBack()
		return m, nil

	case key.Matches(msg, m.keys.TrailForward):
		m.engine.GoForward()
		return m, nil

	case key.Matches(msg, m.keys.Reload):
		if tab, ok := m.manager.Active(); ok && tab.URL != "" {
			return m, m.loadPage(tab.URL)
		}
		return m, nil

	case key.Matches(msg, m.keys.FollowLink):
		m.mode = ModeCommand
		m.statusBar.SetMode("COMMAND")
		return m, m.commandBar.Open(ui.CommandFollow)

	case key.Matches(msg, m.keys.NewTab):
		m.manager.Create()
		return m, nil

	case key.Matches(msg, m.keys.CloseTab):
		if tab, ok := m.manager.Active(); ok {
			if !m.manager.Close(tab.ID) {
				// Refusing to close the last tab means quit instead.
				return m, tea.Quit
			}
		}
		return m, nil

	case key.Matches(msg, m.keys.NextTab):
		m.manager.ActivateNext()
		return m, nil

	case key.Matches(msg, m.keys.PrevTab):
		m.manager.ActivatePrev()
		return m, nil

	case key.Matches(msg, m.keys.CommandMode):
		m.mode = ModeCommand
		m.statusBar.SetMode("COMMAND")
		return m, m.commandBar.Open(ui.CommandEx)

	case key.Matches(msg, m.keys.TrailToggle):
		return m.openTrailPanel()

	case key.Matches(msg, m.keys.Help):
		m.showHelp()
		return m, nil
	}

	if ts != nil {
		vp, cmd := ts.viewport.Update(msg)
		ts.viewport = *vp
		m.syncStatusBar()
		return m, cmd
	}

	return m, nil
}

// openTrailPanel shows the trail panel and switches to trail mode.
func (m Model) openTrailPanel() (tea.Model, tea.Cmd) {
	m.trailPanel.SetSnapshot(m.lastSnap, m.openTabIDs())
	m.trailPanel.Show()
	m.mode = ModeTrail
	m.statusBar.SetMode("TRAIL")
	m.layout()
	return m, nil
}

// handleTrailMode processes keys when the trail panel is active.
func (m Model) handleTrailMode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "j", "down":
		m.trailPanel.ResetGKey()
		m.trailPanel.CursorDown()
		return m, nil

	case "k", "up":
		m.trailPanel.ResetGKey()
		m.trailPanel.CursorUp()
		return m, nil

	case "g":
		m.trailPanel.HandleGKey()
		return m, nil

	case "G":
		m.trailPanel.ResetGKey()
		m.trailPanel.GotoBottom()
		return m, nil

	case "[":
		m.engine.GoBack()
		return m, nil

	case "]":
		m.engine.GoForward()
		return m, nil

	case "enter":
		m.trailPanel.ResetGKey()
		if idx := m.trailPanel.SelectedIndex(); idx >= 0 {
			m.engine.OpenByIndex(idx)
		}
		m.trailPanel.Hide()
		m.mode = ModeNormal
		m.statusBar.SetMode("NORMAL")
		m.layout()
		return m, nil

	case "esc", "ctrl+h", "q":
		m.trailPanel.ResetGKey()
		m.trailPanel.Hide()
		m.mode = ModeNormal
		m.statusBar.SetMode("NORMAL")
		m.layout()
		return m, nil
	}

	m.trailPanel.ResetGKey()
	return m, nil
}

// handleInsertMode processes keys when the URL bar is focused.
func (m Model) handleInsertMode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.mode = ModeNormal
		m.urlBar.Blur()
		m.statusBar.SetMode("NORMAL")
		return m, nil

	case tea.KeyEnter:
		url := m.urlBar.Value()
		m.mode = ModeNormal
		m.urlBar.Blur()
		m.statusBar.SetMode("NORMAL")
		if url != "" {
			return m, m.loadPage(url)
		}
		return m, nil
	}

	ub, cmd := m.urlBar.Update(msg)
	m.urlBar = *ub
	return m, cmd
}

// handleCommandMode processes keys in command/follow mode.
func (m Model) handleCommandMode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.commandBar.Close()
		m.mode = ModeNormal
		m.statusBar.SetMode("NORMAL")
		return m, nil

	case tea.KeyEnter:
		result := m.commandBar.Submit()
		m.mode = ModeNormal
		m.statusBar.SetMode("NORMAL")
		switch result.Type {
		case ui.CommandEx:
			return m.executeCommand(result.Value)
		case ui.CommandFollow:
			return m.followLink(result.Value)
		}
		return m, nil
	}

	cb, cmd := m.commandBar.Update(msg)
	m.commandBar = *cb
	return m, cmd
}

// executeCommand handles :commands.
func (m Model) executeCommand(cmd string) (tea.Model, tea.Cmd) {
	parts := strings.Fields(cmd)
	if len(parts) == 0 {
		return m, nil
	}

	switch parts[0] {
	case "q", "quit":
		return m, tea.Quit
	case "o", "open":
		if len(parts) > 1 {
			return m, m.loadPage(strings.Join(parts[1:], " "))
		}
		m.statusBar.SetMessage("Usage: :open <url>")
	case "theme":
		if len(parts) > 1 {
			if theme.Set(parts[1]) {
				m.statusBar.SetMessage(fmt.Sprintf("Theme: %s", parts[1]))
				if m.config != nil {
					m.config.Theme = parts[1]
					m.config.Save()
				}
			} else {
				m.statusBar.SetMessage(fmt.Sprintf("Unknown theme: %s (available: %s)",
					parts[1], strings.Join(theme.List(), ", ")))
			}
		} else {
			m.statusBar.SetMessage(fmt.Sprintf("Current: %s | Available: %s",
				theme.Current.Name, strings.Join(theme.List(), ", ")))
		}
	case "tab", "tabnew":
		m.manager.Create()
		if len(parts) > 1 {
			return m, m.loadPage(strings.Join(parts[1:], " "))
		}
	case "tabclose", "tc":
		if tab, ok := m.manager.Active(); ok {
			if !m.manager.Close(tab.ID) {
				m.statusBar.SetMessage("Cannot close the last tab")
			}
		}
	case "trail":
		return m.openTrailPanel()
	case "cleartrail":
		m.engine.Clear()
		if m.activations != nil {
			m.activations.Clear()
		}
		m.statusBar.SetMessage("Trail cleared")
	case "recent":
		m.showRecent()
	case "help":
		m.showHelp()
	default:
		m.statusBar.SetMessage(fmt.Sprintf("Unknown command: %s", parts[0]))
	}

	return m, nil
}

// followLink navigates to a link by its index number.
func (m Model) followLink(input string) (tea.Model, tea.Cmd) {
	ts := m.activeTabState()
	if ts == nil || ts.page == nil {
		m.statusBar.SetMessage("No page loaded")
		return m, nil
	}

	num, err := strconv.Atoi(strings.TrimSpace(input))
	if err != nil {
		m.statusBar.SetMessage(fmt.Sprintf("Invalid link number: %s", input))
		return m, nil
	}

	for _, link := range ts.page.Links {
		if link.Index == num {
			return m, m.loadPage(link.URL)
		}
	}

	m.statusBar.SetMessage(fmt.Sprintf("Link [%d] not found", num))
	return m, nil
}

// loadPage fetches and renders a page in the active tab.
func (m Model) loadPage(url string) tea.Cmd {
	ts := m.activeTabState()
	tab, ok := m.manager.Active()
	if ts == nil || !ok {
		return nil
	}
	tabID := tab.ID

	if ts.cancelFunc != nil {
		ts.cancelFunc()
	}

	url = browser.NormalizeURL(url)

	if cached, ok := m.pageCache.Get(url); ok {
		ts.loading = false
		m.statusBar.SetLoading(false)
		m.urlBar.SetValue(url)
		return func() tea.Msg {
			return pageLoadedMsg{tabID: tabID, page: cached, url: url}
		}
	}

	ts.loading = true
	m.statusBar.SetLoading(true)
	m.statusBar.SetMessage("")
	m.urlBar.SetValue(url)
	m.manager.SetMetadata(tabID, "Loading...", url, "")

	ctx, cancel := context.WithCancel(context.Background())
	ts.cancelFunc = cancel

	fetcher := m.fetcher
	pageCache := m.pageCache
	renderWidth := m.vpWidth
	if renderWidth <= 0 {
		renderWidth = 80
	}

	return func() tea.Msg {
		result, err := fetcher.Fetch(ctx, url)
		if err != nil {
			return pageLoadedMsg{tabID: tabID, err: err, url: url}
		}

		article, err := browser.Extract(result)
		if err != nil {
			return pageLoadedMsg{tabID: tabID, err: err, url: url}
		}

		page := browser.Render(article, renderWidth)
		pageCache.Add(result.FinalURL, page)

		return pageLoadedMsg{tabID: tabID, page: page, url: result.FinalURL}
	}
}

// handlePageLoaded processes a completed page load.
func (m Model) handlePageLoaded(msg pageLoadedMsg) (tea.Model, tea.Cmd) {
	ts, ok := m.tabStates[msg.tabID]
	if !ok {
		return m, nil
	}

	ts.loading = false
	ts.cancelFunc = nil

	if msg.err != nil {
		m.statusBar.SetLoading(false)
		m.statusBar.SetMessage(fmt.Sprintf("Error: %s", msg.err))

		errStyle := lipgloss.NewStyle().
			Foreground(theme.Current.Error).
			Bold(true).
			Padding(2, 4)
		detailStyle := lipgloss.NewStyle().
			Foreground(theme.Current.TextDim).
			Padding(0, 4)

		ts.viewport.SetContent(errStyle.Render("Failed to load page") + "\n\n" +
			detailStyle.Render(fmt.Sprintf("URL: %s\nError: %s", msg.url, msg.err)))
		m.manager.SetMetadata(msg.tabID, "Error", msg.url, "")
		return m, nil
	}

	ts.page = msg.page
	ts.viewport.SetContent(msg.page.Content)

	// Title and favicon flow through the manager so the trail engine sees
	// the same Updated event as every other observer.
	m.manager.SetMetadata(msg.tabID, msg.page.Title, msg.url, msg.page.FaviconURL)

	m.urlBar.SetValue(msg.url)
	m.statusBar.SetLoading(false)
	m.statusBar.SetTitle(msg.page.Title)
	m.statusBar.SetLinkCount(len(msg.page.Links))
	m.syncStatusBar()
	m.syncTabs()

	return m, nil
}

// activeTabState returns the view state for the currently active tab.
func (m *Model) activeTabState() *tabState {
	tab, ok := m.manager.Active()
	if !ok {
		return nil
	}
	return m.tabStates[tab.ID]
}

// syncTabs refreshes the tab bar and URL bar from the manager.
func (m *Model) syncTabs() {
	tab, ok := m.manager.Active()
	if !ok {
		return
	}
	m.tabBar.SetTabs(m.manager.List(), tab.ID)
	if !m.urlBar.IsActive() {
		m.urlBar.SetValue(tab.URL)
	}
	m.syncStatusBar()
}

// syncStatusBar updates the status bar with current state.
func (m *Model) syncStatusBar() {
	ts := m.activeTabState()
	if ts == nil {
		return
	}
	m.statusBar.SetScrollInfo(ts.viewport.ScrollInfo())

	if tab, ok := m.manager.Active(); ok {
		m.statusBar.SetTitle(tab.Title)
	}
	if ts.page != nil {
		m.statusBar.SetLinkCount(len(ts.page.Links))
	} else {
		m.statusBar.SetLinkCount(0)
	}
}

// showRecent renders the persisted activation log in the viewport.
func (m *Model) showRecent() {
	ts := m.activeTabState()
	if ts == nil {
		return
	}
	if m.activations == nil {
		m.statusBar.SetMessage("Activation log not available")
		return
	}

	entries, err := m.activations.Recent(50)
	if err != nil {
		m.statusBar.SetMessage(fmt.Sprintf("Error: %s", err))
		return
	}

	t := theme.Current
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(t.Primary)
	rowStyle := lipgloss.NewStyle().Foreground(t.Text)
	dimStyle := lipgloss.NewStyle().Foreground(t.TextDim)

	var sb strings.Builder
	sb.WriteString(titleStyle.Render("Recent Activations"))
	sb.WriteString("\n\n")

	if len(entries) == 0 {
		sb.WriteString(dimStyle.Render("  Nothing recorded yet."))
		sb.WriteString("\n")
	}
	for _, e := range entries {
		title := e.Title
		if title == "" {
			title = fmt.Sprintf("Tab %d", e.TabID)
		}
		sb.WriteString(rowStyle.Render(fmt.Sprintf("  %s", title)))
		sb.WriteString(dimStyle.Render(fmt.Sprintf("  (tab %d, %s)", e.TabID, timeAgo(e.ActivatedAt))))
		sb.WriteString("\n")
	}

	ts.viewport.SetContent(sb.String())
	m.statusBar.SetTitle("Recent Activations")
	m.statusBar.SetLinkCount(0)
}

// timeAgo returns a human-readable relative time string.
func timeAgo(t time.Time) string {
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}

// showHelp displays the keybinding reference in the viewport.
func (m *Model) showHelp() {
	ts := m.activeTabState()
	if ts == nil {
		return
	}

	t := theme.Current

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(t.Primary).
		MarginBottom(1)

	sectionStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(t.Accent).
		MarginTop(1)

	keyStyle := lipgloss.NewStyle().
		Foreground(t.Link).
		Width(16)

	descStyle := lipgloss.NewStyle().
		Foreground(t.Text)

	var sb strings.Builder

	sb.WriteString(titleStyle.Render("tabtrail Keybindings"))
	sb.WriteString("\n\n")

	sections := []struct {
		name string
		keys []struct{ k, d string }
	}{
		{"Navigation", []struct{ k, d string }{
			{"j / Down", "Scroll down"},
			{"k / Up", "Scroll up"},
			{"Ctrl+d", "Half page down"},
			{"Ctrl+u", "Half page up"},
			{"g", "Go to top"},
			{"G", "Go to bottom"},
		}},
		{"Browsing", []struct{ k, d string }{
			{"o", "Open URL / search"},
			{"f", "Follow link by number"},
			{"r", "Reload page"},
		}},
		{"Tabs", []struct{ k, d string }{
			{"Ctrl+t", "New tab"},
			{"Ctrl+w", "Close tab"},
			{"J / Tab", "Next tab"},
			{"K / S-Tab", "Previous tab"},
		}},
		{"Trail", []struct{ k, d string }{
			{"[", "Back along the trail"},
			{"]", "Forward along the trail"},
			{"Ctrl+h", "Toggle trail panel"},
			{"Enter", "Jump to selected entry (in panel)"},
		}},
		{"Commands", []struct{ k, d string }{
			{":open <url>", "Open URL"},
			{":theme <n>", "Change theme"},
			{":tabnew", "New tab"},
			{":tabclose", "Close tab"},
			{":trail", "Open trail panel"},
			{":cleartrail", "Collapse trail to current entry"},
			{":recent", "Show persisted activation log"},
			{":quit", "Quit tabtrail"},
		}},
	}

	for _, section := range sections {
		sb.WriteString(sectionStyle.Render(section.name))
		sb.WriteString("\n\n")
		for _, binding := range section.keys {
			sb.WriteString(keyStyle.Render(binding.k))
			sb.WriteString(descStyle.Render(binding.d))
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}

	ts.viewport.SetContent(sb.String())
	m.statusBar.SetTitle("Help - Keybindings")
	m.statusBar.SetLinkCount(0)
}

// Close releases resources on shutdown.
func (m *Model) Close() {
	if m.db != nil {
		m.db.Close()
	}
}
