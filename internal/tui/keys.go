package tui

import (
	"context"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/quailchat/quail/internal/api"
	"github.com/quailchat/quail/internal/conv"
)

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.modal != modalNone {
		return m.handleModalKeys(msg)
	}
	if m.focus == focusInput {
		return m.handleInputKeys(msg)
	}

	// Global keys.
	switch msg.String() {
	case "ctrl+c", "q":
		m.quitting = true
		return m, tea.Quit
	case "?":
		m.modal = modalHelp
		return m, nil
	case "1":
		m.switchTab(tabChats)
		return m, nil
	case "2":
		m.switchTab(tabGroups)
		return m, nil
	case "3":
		m.switchTab(tabPeople)
		return m, nil
	case "4":
		m.switchTab(tabProfile)
		return m, nil
	case "tab":
		m.switchTab((m.activeTab + 1) % 4)
		return m, nil
	}

	if m.focus == focusMessages {
		return m.handleMessageKeys(msg)
	}
	return m.handleRosterKeys(msg)
}

// handleRosterKeys handles keys when the roster pane has focus.
func (m Model) handleRosterKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		if m.cursor[m.activeTab] > 0 {
			m.cursor[m.activeTab]--
		}
		return m, nil

	case "down", "j":
		if m.cursor[m.activeTab] < m.rosterLen(m.activeTab)-1 {
			m.cursor[m.activeTab]++
		}
		return m, nil

	case "g", "home":
		m.cursor[m.activeTab] = 0
		return m, nil

	case "G", "end":
		m.cursor[m.activeTab] = max(0, m.rosterLen(m.activeTab)-1)
		return m, nil

	case "enter":
		switch m.activeTab {
		case tabChats:
			if f := m.selectedFriend(); f != nil {
				return m.openConversation(m.sess.DirectWith(*f))
			}
		case tabGroups:
			if g := m.selectedGroup(); g != nil {
				return m.openConversation(m.sess.GroupChat(*g))
			}
		case tabPeople:
			// Opening a discovered chat first makes the sender a friend.
			if p := m.selectedPerson(); p != nil {
				person := *p
				m.switchTab(tabChats)
				return m, m.runAction("Added "+person.Username+" to friends", func(ctx context.Context) error {
					return m.sess.AddFriend(ctx, person)
				})
			}
		}
		return m, nil

	case "a":
		switch m.activeTab {
		case tabPeople:
			if p := m.selectedPerson(); p != nil {
				person := *p
				return m, m.runAction("Added "+person.Username+" to friends", func(ctx context.Context) error {
					return m.sess.AddFriend(ctx, person)
				})
			}
		case tabGroups:
			if m.selectedGroup() != nil {
				m.modal = modalAddMember
				m.modalInput.SetValue("")
				m.modalInput.Placeholder = "username"
				m.modalInput.Focus()
			}
		}
		return m, nil

	case "n":
		if m.activeTab == tabGroups {
			m.modal = modalNewGroup
			m.modalInput.SetValue("")
			m.modalInput.Placeholder = "group name"
			m.modalInput.Focus()
		}
		return m, nil

	case "x":
		switch m.activeTab {
		case tabChats:
			if f := m.selectedFriend(); f != nil {
				friend := *f
				return m, m.runAction("Removed "+friend.Username+" from friends", func(ctx context.Context) error {
					return m.sess.RemoveFriend(ctx, friend)
				})
			}
		case tabGroups:
			if g := m.selectedGroup(); g != nil {
				groupID := g.ID
				username := m.snap.User.Username
				return m, m.runAction("Left "+g.Name, func(ctx context.Context) error {
					return m.sess.RemoveGroupMember(ctx, groupID, username)
				})
			}
		}
		return m, nil
	}
	return m, nil
}

// handleMessageKeys handles keys when a conversation is open and the
// message pane has focus.
func (m Model) handleMessageKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.closeConversation()
		return m, nil

	case "up", "k":
		if m.msgCursor > 0 {
			m.msgCursor--
		}
		return m, nil

	case "down", "j":
		if m.msgCursor < len(m.snap.Messages)-1 {
			m.msgCursor++
		}
		return m, nil

	case "g", "home":
		m.msgCursor = 0
		return m, nil

	case "G", "end":
		m.msgCursor = max(0, len(m.snap.Messages)-1)
		return m, nil

	case "i", "enter":
		m.focus = focusInput
		m.input.Focus()
		return m, nil

	case " ":
		if cur := m.messageAtCursor(); cur != nil {
			if m.selectedMsgs[cur.ID] {
				delete(m.selectedMsgs, cur.ID)
			} else {
				m.selectedMsgs[cur.ID] = true
			}
			if m.msgCursor < len(m.snap.Messages)-1 {
				m.msgCursor++
			}
		}
		return m, nil

	case "d":
		if len(m.selectedMsgs) == 0 {
			if cur := m.messageAtCursor(); cur != nil {
				m.selectedMsgs[cur.ID] = true
			}
		}
		if len(m.selectedMsgs) > 0 {
			m.modal = modalDeleteConfirm
			m.modalCursor = 0
			m.deleteScope = api.DeleteForMe
			m.deleteAllOK = m.ownsSelection()
		}
		return m, nil

	case "v":
		if cur := m.messageAtCursor(); cur != nil && cur.Poll != nil {
			m.modal = modalPollVote
			m.modalCursor = 0
		}
		return m, nil
	}
	return m, nil
}

// handleInputKeys handles keys while composing a message.
func (m Model) handleInputKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		m.quitting = true
		return m, tea.Quit

	case "esc":
		m.focus = focusMessages
		m.input.Blur()
		return m, nil

	case "enter":
		out := parseOutgoing(m.input.Value())
		return m, runAs(actionSend, "", func(ctx context.Context) error {
			return m.sess.Send(ctx, out)
		})
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// parseOutgoing turns composed text into a payload. Slash commands attach
// non-text content:
//
//	/img <url>
//	/doc <url> [name]
//	/poll <question> | <option> | <option> [| ...]
//	/pollm ... (multiple-choice)
func parseOutgoing(text string) conv.Outgoing {
	trimmed := strings.TrimSpace(text)
	switch {
	case strings.HasPrefix(trimmed, "/img "):
		return conv.Outgoing{ImageURL: strings.TrimSpace(trimmed[len("/img "):])}

	case strings.HasPrefix(trimmed, "/doc "):
		rest := strings.TrimSpace(trimmed[len("/doc "):])
		url, name, _ := strings.Cut(rest, " ")
		if name == "" {
			name = url
		}
		return conv.Outgoing{DocumentURL: url, DocumentName: strings.TrimSpace(name)}

	case strings.HasPrefix(trimmed, "/poll "), strings.HasPrefix(trimmed, "/pollm "):
		multiple := strings.HasPrefix(trimmed, "/pollm ")
		rest := trimmed[strings.Index(trimmed, " ")+1:]
		parts := strings.Split(rest, "|")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		if len(parts) < 2 {
			return conv.Outgoing{}
		}
		return conv.Outgoing{Poll: &api.Poll{
			Question:      parts[0],
			Options:       parts[1:],
			AllowMultiple: multiple,
		}}
	}
	return conv.Outgoing{Content: trimmed}
}

// handleModalKeys handles keys while a modal dialog is open.
func (m Model) handleModalKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		m.quitting = true
		return m, tea.Quit
	}

	switch m.modal {
	case modalHelp:
		m.modal = modalNone
		return m, nil

	case modalDeleteConfirm:
		return m.handleDeleteConfirmKeys(msg)

	case modalPollVote:
		return m.handlePollVoteKeys(msg)

	case modalNewGroup, modalAddMember:
		return m.handleModalInputKeys(msg)
	}
	return m, nil
}

func (m Model) handleDeleteConfirmKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc", "n":
		m.modal = modalNone
		return m, nil

	case "up", "k", "down", "j", "tab":
		// "for everyone" is offered only when the whole selection is the
		// viewer's own messages.
		if !m.deleteAllOK {
			return m, nil
		}
		m.modalCursor = 1 - m.modalCursor
		if m.modalCursor == 0 {
			m.deleteScope = api.DeleteForMe
		} else {
			m.deleteScope = api.DeleteForEveryone
		}
		return m, nil

	case "enter", "y":
		ids := make([]int64, 0, len(m.selectedMsgs))
		for id := range m.selectedMsgs {
			ids = append(ids, id)
		}
		scope := m.deleteScope
		m.modal = modalNone
		return m, runAs(actionDelete, "Deleted", func(ctx context.Context) error {
			return m.sess.Delete(ctx, ids, scope)
		})
	}
	return m, nil
}

func (m Model) handlePollVoteKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	cur := m.messageAtCursor()
	if cur == nil || cur.Poll == nil {
		m.modal = modalNone
		return m, nil
	}

	switch msg.String() {
	case "esc":
		m.modal = modalNone
		return m, nil

	case "up", "k":
		if m.modalCursor > 0 {
			m.modalCursor--
		}
		return m, nil

	case "down", "j":
		if m.modalCursor < len(cur.Poll.Options)-1 {
			m.modalCursor++
		}
		return m, nil

	case "enter", " ":
		messageID := cur.ID
		option := m.modalCursor
		if !cur.Poll.AllowMultiple {
			m.modal = modalNone
		}
		return m, m.runAction("", func(ctx context.Context) error {
			return m.sess.Vote(ctx, messageID, option)
		})
	}
	return m, nil
}

func (m Model) handleModalInputKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.modal = modalNone
		m.modalInput.Blur()
		return m, nil

	case "enter":
		value := strings.TrimSpace(m.modalInput.Value())
		kind := m.modal
		m.modal = modalNone
		m.modalInput.Blur()
		if value == "" {
			return m, nil
		}
		switch kind {
		case modalNewGroup:
			return m, m.runAction("Created "+value, func(ctx context.Context) error {
				_, err := m.sess.CreateGroup(ctx, value, nil)
				return err
			})
		case modalAddMember:
			g := m.selectedGroup()
			if g == nil {
				return m, nil
			}
			groupID := g.ID
			return m, m.runAction("Added "+value, func(ctx context.Context) error {
				return m.sess.AddGroupMember(ctx, groupID, value)
			})
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.modalInput, cmd = m.modalInput.Update(msg)
	return m, cmd
}
