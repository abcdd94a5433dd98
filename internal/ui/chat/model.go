// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog/log"

	"github.com/danhackerowner-jpg/gemini-bot/internal/controller"
	"github.com/danhackerowner-jpg/gemini-bot/internal/model"
	"github.com/danhackerowner-jpg/gemini-bot/internal/ui/styles"
)

// =============================================================================
// LAYOUT CONSTANTS
// =============================================================================

const (
	headerHeight = 1
	inputHeight  = 2 // top border + input line
	footerHeight = 1

	defaultSidebarWidth = 24
	minMainWidth        = 20
)

// =============================================================================
// OPTIONS
// =============================================================================

// Options configures the chat screen.
type Options struct {
	// Theme defaults to NewTheme(false).
	Theme *styles.Theme
	// Markdown renders assistant replies; nil shows them as plain text.
	Markdown *styles.Markdown
	// SidebarWidth is the conversation list width in columns.
	SidebarWidth int
	// Changes signals external history rewrites (see storage.Watcher).
	Changes <-chan struct{}
}

// =============================================================================
// CHAT MODEL
// =============================================================================

// Model is the Bubble Tea model for the chat screen: a conversation list on
// the left, the active conversation on the right and an input line below.
type Model struct {
	ctrl  *controller.Controller
	theme *styles.Theme
	md    *styles.Markdown
	keys  KeyMap

	// Dimensions
	width        int
	height       int
	sidebarWidth int
	ready        bool

	// UI Components
	viewport viewport.Model
	input    textinput.Model
	spinner  spinner.Model
	help     help.Model

	// In-flight sends per conversation; the map is shared between copies of
	// the model and only touched from Update.
	awaiting map[model.ConversationID]int

	changes <-chan struct{}
	notice  string
}

// New creates the chat model over a controller whose session manager has
// already been initialized.
func New(ctrl *controller.Controller, opts Options) Model {
	theme := opts.Theme
	if theme == nil {
		theme = styles.NewTheme(false)
	}
	sidebarWidth := opts.SidebarWidth
	if sidebarWidth <= 0 {
		sidebarWidth = defaultSidebarWidth
	}

	ti := textinput.New()
	ti.Prompt = "> "
	ti.PromptStyle = theme.InputPrompt
	ti.Placeholder = "Ask Gemini..."
	ti.CharLimit = 8192
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = theme.StatusPending

	return Model{
		ctrl:         ctrl,
		theme:        theme,
		md:           opts.Markdown,
		keys:         DefaultKeyMap(),
		sidebarWidth: sidebarWidth,
		viewport:     viewport.New(0, 0),
		input:        ti,
		spinner:      sp,
		help:         help.New(),
		awaiting:     make(map[model.ConversationID]int),
		changes:      opts.Changes,
	}
}

// Init starts the cursor blink and the external change subscription.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, waitForChange(m.changes))
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		return m.handleResize(msg)

	case tea.KeyMsg:
		return m.handleKey(msg)

	case ReplyMsg:
		return m.handleReply(msg)

	case HistoryChangedMsg:
		m.ctrl.Session().Reload()
		m.notice = "History changed on disk, reloaded"
		m.refresh()
		return m, waitForChange(m.changes)

	case spinner.TickMsg:
		if m.ctrl.Pending() == 0 {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		m.refresh()
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// =============================================================================
// HANDLERS
// =============================================================================

func (m Model) handleResize(msg tea.WindowSizeMsg) (tea.Model, tea.Cmd) {
	m.width = msg.Width
	m.height = msg.Height
	m.ready = true

	m.viewport.Width = m.mainWidth() - 2 // Main padding
	m.viewport.Height = max(1, m.height-headerHeight-inputHeight-footerHeight)
	m.input.Width = max(1, msg.Width-len(m.input.Prompt)-2)
	m.help.Width = msg.Width
	m.refresh()
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Send):
		return m.handleSend()

	case key.Matches(msg, m.keys.NewChat):
		id := m.ctrl.Session().StartNew()
		m.notice = "Started " + id.Label()
		m.refresh()
		return m, nil

	case key.Matches(msg, m.keys.NextChat):
		m.switchBy(1)
		return m, nil

	case key.Matches(msg, m.keys.PrevChat):
		m.switchBy(-1)
		return m, nil

	case key.Matches(msg, m.keys.PageUp):
		m.viewport.HalfViewUp()
		return m, nil

	case key.Matches(msg, m.keys.PageDown):
		m.viewport.HalfViewDown()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) handleSend() (tea.Model, tea.Cmd) {
	send, ok := m.ctrl.Begin(m.input.Value())
	if !ok {
		return m, nil
	}
	m.input.Reset()
	m.notice = ""
	m.awaiting[send.ConversationID]++
	m.refresh()

	log.Debug().Str("send_id", send.ID).Msg("awaiting reply")
	return m, tea.Batch(awaitReply(send), m.spinner.Tick)
}

func (m Model) handleReply(msg ReplyMsg) (tea.Model, tea.Cmd) {
	if m.awaiting[msg.ConversationID] <= 1 {
		delete(m.awaiting, msg.ConversationID)
	} else {
		m.awaiting[msg.ConversationID]--
	}
	m.refresh()
	return m, nil
}

// switchBy moves the active conversation by delta positions, clamped to the
// ends of the list.
func (m *Model) switchBy(delta int) {
	sessions := m.ctrl.Session()
	list := sessions.Conversations()
	if len(list) == 0 {
		return
	}

	idx := len(list) - 1
	if id, ok := sessions.ActiveID(); ok {
		if i := list.IndexOf(id); i >= 0 {
			idx = i
		}
	}
	idx = min(max(idx+delta, 0), len(list)-1)

	sessions.SwitchTo(list[idx].ID)
	m.notice = ""
	m.refresh()
}

// =============================================================================
// ACCESSORS
// =============================================================================

// Input returns the current input text.
func (m Model) Input() string {
	return m.input.Value()
}

// Notice returns the status notice, if any.
func (m Model) Notice() string {
	return m.notice
}

// Awaiting reports how many replies the active conversation is waiting for.
func (m Model) Awaiting() int {
	id, ok := m.ctrl.Session().ActiveID()
	if !ok {
		return 0
	}
	return m.awaiting[id]
}

func (m Model) mainWidth() int {
	return max(minMainWidth, m.width-m.sidebarWidth)
}

// refresh re-renders the active conversation into the viewport.
func (m *Model) refresh() {
	if !m.ready {
		return
	}
	m.viewport.SetContent(m.renderConversation(m.viewport.Width))
	m.viewport.GotoBottom()
}
