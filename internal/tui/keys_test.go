package tui

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/quailchat/quail/internal/api"
	"github.com/quailchat/quail/internal/config"
	"github.com/quailchat/quail/internal/readstate"
	"github.com/quailchat/quail/internal/session"
)

// uiBackend is a minimal session backend for driving the model in tests.
type uiBackend struct {
	mu        sync.Mutex
	messages  []api.Message
	sendErr   error
	deleteErr error
	deleted   []int64
}

func (b *uiBackend) Messages(ctx context.Context, user1, user2 string) ([]api.Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]api.Message(nil), b.messages...), nil
}

func (b *uiBackend) GroupMessages(ctx context.Context, groupID int64, username string) ([]api.Message, error) {
	return nil, nil
}

func (b *uiBackend) SendMessage(ctx context.Context, req api.SendRequest) (*api.Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.sendErr != nil {
		return nil, b.sendErr
	}
	m := api.Message{ID: 900, Sender: api.UserRef{Username: req.Sender}, Content: req.Content}
	b.messages = append(b.messages, m)
	return &m, nil
}

func (b *uiBackend) SendGroupMessage(ctx context.Context, req api.GroupSendRequest) (*api.Message, error) {
	return nil, errors.New("not supported")
}

func (b *uiBackend) Friends(ctx context.Context) ([]api.User, error) { return nil, nil }
func (b *uiBackend) Groups(ctx context.Context) ([]api.Group, error) { return nil, nil }
func (b *uiBackend) CheckNewChats(ctx context.Context, username string) ([]api.User, error) {
	return nil, nil
}

func (b *uiBackend) DeleteMessage(ctx context.Context, id int64, scope api.DeleteScope, username string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.deleteErr != nil {
		return b.deleteErr
	}
	b.deleted = append(b.deleted, id)
	return nil
}

func (b *uiBackend) VotePoll(ctx context.Context, messageID int64, voter string, selected api.Selection) (*api.Message, error) {
	return &api.Message{ID: messageID}, nil
}

func (b *uiBackend) AddFriend(ctx context.Context, userID int64) error { return nil }
func (b *uiBackend) RemoveFriend(ctx context.Context, userID, requesterID int64) error {
	return nil
}
func (b *uiBackend) CreateGroup(ctx context.Context, name string, memberIDs []int64) (*api.Group, error) {
	return nil, errors.New("not supported")
}
func (b *uiBackend) AddGroupMember(ctx context.Context, groupID int64, username string) error {
	return nil
}
func (b *uiBackend) RemoveGroupMember(ctx context.Context, groupID int64, username string) error {
	return nil
}
func (b *uiBackend) UpdateProfile(ctx context.Context, user api.User) (*api.User, error) {
	return &user, nil
}
func (b *uiBackend) Logout(ctx context.Context) error { return nil }

type uiStates struct {
	mu       sync.Mutex
	lastRead map[string]int64
	tab      string
}

func (s *uiStates) LastRead(key readstate.Key) (int64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.lastRead[key.String()]
	return v, ok, nil
}

func (s *uiStates) SetLastRead(key readstate.Key, messageID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if messageID > s.lastRead[key.String()] {
		s.lastRead[key.String()] = messageID
	}
	return nil
}

func (s *uiStates) ActiveTab() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tab, nil
}

func (s *uiStates) SetActiveTab(tab string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tab = tab
	return nil
}

// newTestModel builds a model over a started session with the bob
// conversation open and its messages loaded into the snapshot.
func newTestModel(t *testing.T, backend *uiBackend) Model {
	t.Helper()
	alice := api.User{ID: 1, Username: "alice"}
	bob := api.User{ID: 2, Username: "bob"}

	hour := config.Intervals{
		Active: time.Hour, Unread: time.Hour, Roster: time.Hour, Discovery: time.Hour,
	}
	sess := session.New(backend, &uiStates{lastRead: make(map[string]int64)}, alice, hour, nil)
	if err := sess.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		sess.Logout(ctx)
	})
	if err := sess.Open(context.Background(), sess.DirectWith(bob)); err != nil {
		t.Fatalf("Open: %v", err)
	}

	m := New(sess, Options{})
	m.snap = sess.Snapshot()
	return m
}

func keyEnter() tea.KeyMsg { return tea.KeyMsg{Type: tea.KeyEnter} }

func keyRune(r rune) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}}
}

func TestSendFailureKeepsComposedText(t *testing.T) {
	backend := &uiBackend{sendErr: &api.Error{Message: "Network error. Please check your connection and try again."}}
	m := newTestModel(t, backend)
	m.focus = focusInput
	m.input.SetValue("hello bob")

	mm, cmd := m.handleInputKeys(keyEnter())
	m = mm.(Model)
	if got := m.input.Value(); got != "hello bob" {
		t.Fatalf("input cleared before send resolved: %q", got)
	}

	mm, _ = m.Update(cmd())
	m = mm.(Model)
	if got := m.input.Value(); got != "hello bob" {
		t.Errorf("input after failed send = %q, want %q", got, "hello bob")
	}
	if m.flashMessage == "" {
		t.Error("send failure was not surfaced")
	}
}

func TestSendSuccessClearsInput(t *testing.T) {
	m := newTestModel(t, &uiBackend{})
	m.focus = focusInput
	m.input.SetValue("hello bob")

	mm, cmd := m.handleInputKeys(keyEnter())
	m = mm.(Model)
	mm, _ = m.Update(cmd())
	m = mm.(Model)

	if got := m.input.Value(); got != "" {
		t.Errorf("input after successful send = %q, want empty", got)
	}
}

func TestDeleteFailureKeepsSelection(t *testing.T) {
	backend := &uiBackend{
		messages:  []api.Message{{ID: 101, Sender: api.UserRef{Username: "alice"}, Content: "oops"}},
		deleteErr: errors.New("delete failed"),
	}
	m := newTestModel(t, backend)
	m.selectedMsgs[101] = true
	m.modal = modalDeleteConfirm
	m.deleteScope = api.DeleteForMe

	mm, cmd := m.handleDeleteConfirmKeys(keyEnter())
	m = mm.(Model)
	if !m.selectedMsgs[101] {
		t.Fatal("selection cleared before delete resolved")
	}

	mm, _ = m.Update(cmd())
	m = mm.(Model)
	if !m.selectedMsgs[101] {
		t.Error("selection lost after failed delete; retry is impossible")
	}
	if m.flashMessage == "" {
		t.Error("delete failure was not surfaced")
	}
}

func TestDeleteSuccessClearsSelection(t *testing.T) {
	backend := &uiBackend{
		messages: []api.Message{{ID: 101, Sender: api.UserRef{Username: "alice"}, Content: "oops"}},
	}
	m := newTestModel(t, backend)
	m.selectedMsgs[101] = true
	m.modal = modalDeleteConfirm
	m.deleteScope = api.DeleteForMe

	mm, cmd := m.handleDeleteConfirmKeys(keyEnter())
	m = mm.(Model)
	mm, _ = m.Update(cmd())
	m = mm.(Model)

	if len(m.selectedMsgs) != 0 {
		t.Errorf("selection after successful delete = %v, want empty", m.selectedMsgs)
	}
}

func TestDeleteModalHidesForEveryoneForForeignMessages(t *testing.T) {
	backend := &uiBackend{
		messages: []api.Message{
			{ID: 101, Sender: api.UserRef{Username: "bob"}, Content: "theirs"},
			{ID: 102, Sender: api.UserRef{Username: "alice"}, Content: "mine"},
		},
	}
	m := newTestModel(t, backend)
	m.focus = focusMessages
	m.selectedMsgs[101] = true
	m.selectedMsgs[102] = true

	mm, _ := m.handleMessageKeys(keyRune('d'))
	m = mm.(Model)
	if m.modal != modalDeleteConfirm {
		t.Fatal("delete modal did not open")
	}
	if m.deleteAllOK {
		t.Error("for-everyone offered for a selection containing another user's message")
	}

	// Toggling must not reach the for-everyone scope.
	mm, _ = m.handleDeleteConfirmKeys(keyRune('j'))
	m = mm.(Model)
	if m.deleteScope != api.DeleteForMe {
		t.Errorf("deleteScope = %s, want for_me", m.deleteScope)
	}
	if strings.Contains(m.renderDeleteConfirm(), "for everyone") {
		t.Error("modal renders a for-everyone option it must not offer")
	}
}

func TestDeleteModalOffersForEveryoneForOwnMessages(t *testing.T) {
	backend := &uiBackend{
		messages: []api.Message{{ID: 102, Sender: api.UserRef{Username: "alice"}, Content: "mine"}},
	}
	m := newTestModel(t, backend)
	m.focus = focusMessages
	m.selectedMsgs[102] = true

	mm, _ := m.handleMessageKeys(keyRune('d'))
	m = mm.(Model)
	if !m.deleteAllOK {
		t.Fatal("for-everyone not offered for the viewer's own message")
	}

	mm, _ = m.handleDeleteConfirmKeys(keyRune('j'))
	m = mm.(Model)
	if m.deleteScope != api.DeleteForEveryone {
		t.Errorf("deleteScope after toggle = %s, want for_everyone", m.deleteScope)
	}
	if !strings.Contains(m.renderDeleteConfirm(), "for everyone") {
		t.Error("modal does not render the for-everyone option")
	}
}
