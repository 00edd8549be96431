// Package tui provides the terminal user interface for quail.
package tui

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/quailchat/quail/internal/api"
	"github.com/quailchat/quail/internal/conv"
	"github.com/quailchat/quail/internal/session"
)

// refreshInterval is how often the UI re-reads the session snapshot. The
// poll loops run on their own schedule; this only controls render
// freshness.
const refreshInterval = 500 * time.Millisecond

// flashDuration is how long a flash notification stays visible.
const flashDuration = 3 * time.Second

// tab identifies the active navigation tab.
type tab int

const (
	tabChats tab = iota
	tabGroups
	tabPeople
	tabProfile
)

var tabNames = map[tab]string{
	tabChats:   "chats",
	tabGroups:  "groups",
	tabPeople:  "people",
	tabProfile: "profile",
}

func tabFromName(name string) tab {
	for t, n := range tabNames {
		if n == name {
			return t
		}
	}
	return tabChats
}

// focusArea identifies which pane receives key input.
type focusArea int

const (
	focusRoster focusArea = iota
	focusMessages
	focusInput
)

// modalType represents the type of modal dialog.
type modalType int

const (
	modalNone modalType = iota
	modalDeleteConfirm
	modalPollVote
	modalNewGroup
	modalAddMember
	modalHelp
)

// Options configuration for the TUI.
type Options struct {
	Version string
}

// Model is the main TUI model following the Elm architecture.
type Model struct {
	sess    *session.Session
	version string

	snap session.Snapshot

	// Navigation
	activeTab tab
	focus     focusArea

	// Roster state (per-tab cursor positions)
	cursor       map[tab]int
	scrollOffset int

	// Message pane state
	msgCursor    int
	msgScroll    int
	selectedMsgs map[int64]bool

	// Compose input
	input textinput.Model

	// Modal state
	modal       modalType
	modalCursor int
	modalInput  textinput.Model
	deleteScope api.DeleteScope
	deleteAllOK bool // selection is entirely the viewer's own messages

	// Terminal dimensions
	width  int
	height int

	// Flash message (temporary notification)
	flashMessage   string
	flashExpiresAt time.Time

	quitting bool
}

// New creates a TUI model over a started session.
func New(sess *session.Session, opts Options) Model {
	ti := textinput.New()
	ti.Placeholder = "type a message"
	ti.CharLimit = 2000

	mi := textinput.New()
	mi.CharLimit = 100

	return Model{
		sess:         sess,
		version:      opts.Version,
		snap:         sess.Snapshot(),
		activeTab:    tabFromName(sess.Tab()),
		cursor:       make(map[tab]int),
		selectedMsgs: make(map[int64]bool),
		input:        ti,
		modalInput:   mi,
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return refreshTick()
}

// refreshMsg carries a fresh session snapshot.
type refreshMsg struct {
	snap session.Snapshot
}

// actionKind identifies which pending UI state a finished action owns.
// The compose input and the message selection are cleared only after their
// action succeeds; a failure leaves them in place for retry.
type actionKind int

const (
	actionGeneric actionKind = iota
	actionSend
	actionDelete
)

// actionDoneMsg is sent when an async session action completes.
type actionDoneMsg struct {
	kind  actionKind
	flash string // shown on success, if non-empty
	err   error
}

func refreshTick() tea.Cmd {
	return tea.Tick(refreshInterval, func(time.Time) tea.Msg {
		return refreshMsg{}
	})
}

// runAction wraps a session call in a command. The snapshot refresh on the
// next tick picks up any state change.
func (m Model) runAction(flash string, fn func(ctx context.Context) error) tea.Cmd {
	return runAs(actionGeneric, flash, fn)
}

func runAs(kind actionKind, flash string, fn func(ctx context.Context) error) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := fn(ctx); err != nil {
			return actionDoneMsg{kind: kind, err: err}
		}
		return actionDoneMsg{kind: kind, flash: flash}
	}
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case refreshMsg:
		m.snap = m.sess.Snapshot()
		m.clampCursors()
		if m.flashMessage != "" && time.Now().After(m.flashExpiresAt) {
			m.flashMessage = ""
		}
		return m, refreshTick()

	case actionDoneMsg:
		if msg.err != nil {
			m.setFlash(msg.err.Error())
		} else {
			switch msg.kind {
			case actionSend:
				m.input.SetValue("")
			case actionDelete:
				m.selectedMsgs = make(map[int64]bool)
			}
			if msg.flash != "" {
				m.setFlash(msg.flash)
			}
		}
		m.snap = m.sess.Snapshot()
		m.clampCursors()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m *Model) setFlash(text string) {
	m.flashMessage = text
	m.flashExpiresAt = time.Now().Add(flashDuration)
}

// clampCursors keeps cursors inside the freshly loaded lists.
func (m *Model) clampCursors() {
	for t, c := range m.cursor {
		n := m.rosterLen(t)
		if c >= n {
			m.cursor[t] = max(0, n-1)
		}
	}
	if n := len(m.snap.Messages); m.msgCursor >= n {
		m.msgCursor = max(0, n-1)
	}
}

// rosterLen is the number of rows on a tab's roster.
func (m Model) rosterLen(t tab) int {
	switch t {
	case tabChats:
		return len(m.snap.Friends)
	case tabGroups:
		return len(m.snap.Groups)
	case tabPeople:
		return len(m.snap.NewChats)
	default:
		return 0
	}
}

// selectedFriend returns the friend under the roster cursor, if any.
func (m Model) selectedFriend() *api.User {
	i := m.cursor[tabChats]
	if i < 0 || i >= len(m.snap.Friends) {
		return nil
	}
	u := m.snap.Friends[i]
	return &u
}

// selectedGroup returns the group under the roster cursor, if any.
func (m Model) selectedGroup() *api.Group {
	i := m.cursor[tabGroups]
	if i < 0 || i >= len(m.snap.Groups) {
		return nil
	}
	g := m.snap.Groups[i]
	return &g
}

// selectedPerson returns the discovered user under the roster cursor.
func (m Model) selectedPerson() *api.User {
	i := m.cursor[tabPeople]
	if i < 0 || i >= len(m.snap.NewChats) {
		return nil
	}
	u := m.snap.NewChats[i]
	return &u
}

// messageAtCursor returns the message under the message-pane cursor.
func (m Model) messageAtCursor() *api.Message {
	if m.msgCursor < 0 || m.msgCursor >= len(m.snap.Messages) {
		return nil
	}
	msg := m.snap.Messages[m.msgCursor]
	return &msg
}

// ownsSelection reports whether every selected message was sent by the
// viewer. Messages no longer in the list count as not owned.
func (m Model) ownsSelection() bool {
	byID := make(map[int64]api.Message, len(m.snap.Messages))
	for _, msg := range m.snap.Messages {
		byID[msg.ID] = msg
	}
	for id := range m.selectedMsgs {
		msg, ok := byID[id]
		if !ok || !msg.Sender.Is(m.snap.User) {
			return false
		}
	}
	return true
}

// openConversation opens c in the session and moves focus to the message
// pane.
func (m Model) openConversation(c conv.Conversation) (tea.Model, tea.Cmd) {
	m.msgCursor = 0
	m.msgScroll = 0
	m.selectedMsgs = make(map[int64]bool)
	m.focus = focusMessages
	return m, m.runAction("", func(ctx context.Context) error {
		return m.sess.Open(ctx, c)
	})
}

// closeConversation deselects the open conversation and returns focus to
// the roster.
func (m *Model) closeConversation() {
	m.sess.Deselect()
	m.snap = m.sess.Snapshot()
	m.selectedMsgs = make(map[int64]bool)
	m.focus = focusRoster
	m.input.Blur()
}

func (m *Model) switchTab(t tab) {
	if t == m.activeTab {
		return
	}
	m.activeTab = t
	m.sess.SetTab(tabNames[t])
	if m.snap.ActiveKey != nil {
		m.closeConversation()
	}
	m.focus = focusRoster
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
