package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/quailchat/quail/internal/api"
	"github.com/quailchat/quail/internal/readstate"
)

// Monochrome theme, adaptive for light and dark terminals.
var (
	bgBase   = lipgloss.AdaptiveColor{Light: "#ffffff", Dark: "#000000"}
	bgCursor = lipgloss.AdaptiveColor{Light: "#e0e0e0", Dark: "#282828"}

	titleBarStyle = lipgloss.NewStyle().
			Bold(true).
			Background(lipgloss.AdaptiveColor{Light: "#e0e0e0", Dark: "#333333"}).
			Foreground(lipgloss.AdaptiveColor{Light: "#000000", Dark: "#ffffff"}).
			Padding(0, 1)

	tabStyle = lipgloss.NewStyle().
			Faint(true).
			Padding(0, 1)

	activeTabStyle = lipgloss.NewStyle().
			Bold(true).
			Padding(0, 1)

	cursorRowStyle = lipgloss.NewStyle().
			Background(bgCursor)

	selectedRowStyle = lipgloss.NewStyle().
				Bold(true).
				Background(bgBase)

	normalRowStyle = lipgloss.NewStyle().
			Background(bgBase)

	badgeStyle = lipgloss.NewStyle().
			Bold(true)

	senderStyle = lipgloss.NewStyle().
			Bold(true)

	timeStyle = lipgloss.NewStyle().
			Faint(true)

	footerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#555555", Dark: "#999999"}).
			Padding(0, 1)

	flashStyle = lipgloss.NewStyle().
			Italic(true).
			Foreground(lipgloss.AdaptiveColor{Light: "#996600", Dark: "#ffcc00"})

	modalStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			Padding(1, 2)

	modalTitleStyle = lipgloss.NewStyle().
			Bold(true)

	rosterPaneStyle = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder(), false, true, false, false).
			BorderForeground(lipgloss.AdaptiveColor{Light: "#cccccc", Dark: "#444444"})
)

const rosterWidth = 30

// View implements tea.Model.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if m.width == 0 || m.height == 0 {
		return "loading..."
	}

	if m.modal != modalNone {
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, m.renderModal())
	}

	var b strings.Builder
	b.WriteString(m.renderTitleBar())
	b.WriteString("\n")
	b.WriteString(m.renderTabBar())
	b.WriteString("\n")

	contentHeight := m.height - 4 // title, tabs, input, footer
	if m.activeTab == tabProfile {
		b.WriteString(m.renderProfile(contentHeight))
	} else {
		roster := m.renderRoster(contentHeight)
		messages := m.renderMessages(m.width-rosterWidth-1, contentHeight)
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, roster, messages))
	}
	b.WriteString("\n")
	b.WriteString(m.renderInputLine())
	b.WriteString("\n")
	b.WriteString(m.renderFooter())
	return b.String()
}

func (m Model) renderTitleBar() string {
	title := "quail"
	if m.version != "" {
		title += " " + m.version
	}
	right := m.snap.User.DisplayName()
	gap := m.width - lipgloss.Width(title) - lipgloss.Width(right) - 4
	if gap < 1 {
		gap = 1
	}
	return titleBarStyle.Width(m.width).Render(title + strings.Repeat(" ", gap) + right)
}

func (m Model) renderTabBar() string {
	parts := make([]string, 0, 4)
	for _, t := range []tab{tabChats, tabGroups, tabPeople, tabProfile} {
		label := fmt.Sprintf("%d:%s", int(t)+1, tabNames[t])
		if t == tabPeople && len(m.snap.NewChats) > 0 {
			label += " " + badgeStyle.Render(unreadBadge(len(m.snap.NewChats)))
		}
		if t == m.activeTab {
			parts = append(parts, activeTabStyle.Render(label))
		} else {
			parts = append(parts, tabStyle.Render(label))
		}
	}
	return strings.Join(parts, " ")
}

// renderRoster renders the left pane list for the active tab.
func (m Model) renderRoster(height int) string {
	rows := make([]string, 0, height)
	cursor := m.cursor[m.activeTab]

	render := func(i int, label, badge string) {
		width := rosterWidth - 1
		line := " " + padRight(truncate(label, width-len(badge)-2), width-len(badge)-2) + badge
		if i == cursor && m.focus == focusRoster {
			rows = append(rows, cursorRowStyle.Render(padRight(line, width)))
		} else {
			rows = append(rows, normalRowStyle.Render(padRight(line, width)))
		}
	}

	switch m.activeTab {
	case tabChats:
		for i, f := range m.snap.Friends {
			render(i, f.DisplayName(), unreadBadge(m.snap.Unread[readstate.DirectKey(f.ID).String()]))
		}
		if len(m.snap.Friends) == 0 {
			rows = append(rows, "  no friends yet")
		}
	case tabGroups:
		for i, g := range m.snap.Groups {
			render(i, g.Name, unreadBadge(m.snap.Unread[readstate.GroupKey(g.ID).String()]))
		}
		if len(m.snap.Groups) == 0 {
			rows = append(rows, "  no groups — n to create one")
		}
	case tabPeople:
		for i, u := range m.snap.NewChats {
			render(i, u.DisplayName(), "")
		}
		if len(m.snap.NewChats) == 0 {
			rows = append(rows, "  no new chats")
		}
	}

	for len(rows) < height {
		rows = append(rows, "")
	}
	return rosterPaneStyle.Height(height).Width(rosterWidth).Render(strings.Join(rows[:height], "\n"))
}

// renderMessages renders the open conversation, or a hint when none is
// open.
func (m Model) renderMessages(width, height int) string {
	if m.snap.ActiveKey == nil {
		hint := lipgloss.NewStyle().Faint(true).Render("enter to open a conversation")
		return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, hint)
	}

	lines := make([]string, 0, height)
	lines = append(lines, senderStyle.Render(truncate(m.snap.ActiveTitle, width-2)))
	lines = append(lines, "")

	viewer := m.snap.User.Username
	for i, msg := range m.snap.Messages {
		line := m.renderMessageLine(msg, viewer, width-2)
		switch {
		case i == m.msgCursor && m.focus == focusMessages:
			line = cursorRowStyle.Render(line)
		case m.selectedMsgs[msg.ID]:
			line = selectedRowStyle.Render("* " + line)
		}
		lines = append(lines, line)
		if msg.Poll != nil {
			lines = append(lines, pollLines(msg, viewer)...)
		}
	}
	if len(m.snap.Messages) == 0 {
		lines = append(lines, lipgloss.NewStyle().Faint(true).Render("no messages"))
	}

	// Keep the cursor row in view, preferring the tail of the
	// conversation.
	if len(lines) > height {
		lines = lines[len(lines)-height:]
	}
	return lipgloss.NewStyle().Width(width).Render(strings.Join(lines, "\n"))
}

func (m Model) renderMessageLine(msg api.Message, viewer string, width int) string {
	sender := msg.Sender.Canonical()
	if msg.Sender.Is(api.User{Username: viewer}) {
		sender = "you"
	}
	prefix := timeStyle.Render(formatTime(msg.Timestamp)) + " " + senderStyle.Render(sender) + ": "
	body := messageBody(msg)
	return prefix + truncate(body, width-lipgloss.Width(prefix))
}

func (m Model) renderProfile(height int) string {
	u := m.snap.User
	lines := []string{
		senderStyle.Render(u.DisplayName()),
		"",
		"username  " + u.Username,
		fmt.Sprintf("id        %d", u.ID),
	}
	if u.Profile != nil {
		lines = append(lines,
			"bio       "+u.Profile.Bio,
			"email     "+u.Profile.Email,
			"mobile    "+u.Profile.Mobile,
		)
	}
	lines = append(lines, "", footerStyle.Render("edit with: quail profile"))
	for len(lines) < height {
		lines = append(lines, "")
	}
	return strings.Join(lines[:height], "\n")
}

func (m Model) renderInputLine() string {
	if m.focus == focusInput {
		return "> " + m.input.View()
	}
	if m.snap.ActiveKey != nil {
		return footerStyle.Render("i to type · /img /doc /poll for attachments")
	}
	return ""
}

func (m Model) renderFooter() string {
	if m.flashMessage != "" {
		return flashStyle.Render(" " + m.flashMessage)
	}
	var hint string
	switch {
	case m.focus == focusInput:
		hint = "enter send · esc back"
	case m.focus == focusMessages:
		hint = "space select · d delete · v vote · esc close · ? help"
	default:
		hint = "enter open · tab switch · a add · x remove · q quit · ? help"
	}
	return footerStyle.Render(hint)
}

func (m Model) renderModal() string {
	switch m.modal {
	case modalDeleteConfirm:
		return m.renderDeleteConfirm()
	case modalPollVote:
		return m.renderPollVote()
	case modalNewGroup:
		return modalStyle.Render(modalTitleStyle.Render("New group") + "\n\n" + m.modalInput.View())
	case modalAddMember:
		return modalStyle.Render(modalTitleStyle.Render("Add member") + "\n\n" + m.modalInput.View())
	case modalHelp:
		return m.renderHelp()
	}
	return ""
}

func (m Model) renderDeleteConfirm() string {
	var b strings.Builder
	b.WriteString(modalTitleStyle.Render(fmt.Sprintf("Delete %d message(s)?", len(m.selectedMsgs))))
	b.WriteString("\n\n")
	options := []string{"for me"}
	if m.deleteAllOK {
		options = append(options, "for everyone")
	}
	for i, opt := range options {
		marker := "  "
		if i == m.modalCursor {
			marker = "> "
		}
		b.WriteString(marker + opt + "\n")
	}
	b.WriteString("\nenter confirm · esc cancel")
	return modalStyle.Render(b.String())
}

func (m Model) renderPollVote() string {
	cur := m.messageAtCursor()
	if cur == nil || cur.Poll == nil {
		return ""
	}
	var b strings.Builder
	b.WriteString(modalTitleStyle.Render(cur.Poll.Question))
	b.WriteString("\n\n")
	viewer := m.snap.User.Username
	mine := make(map[int]bool)
	for _, i := range cur.PollVotes.VotesFor(viewer) {
		mine[i] = true
	}
	for i, opt := range cur.Poll.Options {
		marker := "  "
		if i == m.modalCursor {
			marker = "> "
		}
		check := "[ ]"
		if mine[i] {
			check = "[x]"
		}
		b.WriteString(fmt.Sprintf("%s%s %s (%d)\n", marker, check, opt, cur.PollVotes.Count(i)))
	}
	if cur.Poll.AllowMultiple {
		b.WriteString("\nspace toggle · esc done")
	} else {
		b.WriteString("\nenter vote · esc cancel")
	}
	return modalStyle.Render(b.String())
}

func (m Model) renderHelp() string {
	help := `Keys

  1-4, tab     switch tab
  j/k, arrows  move cursor
  enter        open conversation / send
  i            compose message
  space        select message
  d            delete selected
  v            vote on poll
  a            add friend / group member
  n            new group
  x            remove friend / leave group
  esc          close conversation
  q, ctrl+c    quit

Compose commands

  /img <url>
  /doc <url> [name]
  /poll <question> | <opt> | <opt>
  /pollm <question> | <opt> | <opt>`
	return modalStyle.Render(modalTitleStyle.Render("Help") + "\n\n" + help + "\n\nany key to close")
}
