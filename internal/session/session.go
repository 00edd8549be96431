// Package session is the view-model layer of the client. It owns the
// polling loops, the active conversation, the roster, and the unread
// counts, and exposes snapshots for the UI to render.
//
// Timer callbacks and user actions interleave freely, so every result is
// applied under a generation check: switching or closing the active
// conversation bumps the generation, and any in-flight response carrying a
// stale generation is discarded rather than applied.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/quailchat/quail/internal/api"
	"github.com/quailchat/quail/internal/config"
	"github.com/quailchat/quail/internal/conv"
	"github.com/quailchat/quail/internal/poller"
	"github.com/quailchat/quail/internal/readstate"
	"github.com/quailchat/quail/internal/unread"
)

// Loop names in the poller registry.
const (
	loopActive    = "active-messages"
	loopUnread    = "unread-scan"
	loopRoster    = "roster"
	loopDiscovery = "new-chat-discovery"
)

// Backend is the API surface the session needs. *api.Client satisfies it.
type Backend interface {
	conv.Messenger

	Friends(ctx context.Context) ([]api.User, error)
	Groups(ctx context.Context) ([]api.Group, error)
	CheckNewChats(ctx context.Context, username string) ([]api.User, error)
	DeleteMessage(ctx context.Context, id int64, scope api.DeleteScope, username string) error
	VotePoll(ctx context.Context, messageID int64, voter string, selected api.Selection) (*api.Message, error)
	AddFriend(ctx context.Context, userID int64) error
	RemoveFriend(ctx context.Context, userID, requesterID int64) error
	CreateGroup(ctx context.Context, name string, memberIDs []int64) (*api.Group, error)
	AddGroupMember(ctx context.Context, groupID int64, username string) error
	RemoveGroupMember(ctx context.Context, groupID int64, username string) error
	UpdateProfile(ctx context.Context, user api.User) (*api.User, error)
	Logout(ctx context.Context) error
}

// States is the persisted client state the session reads and writes.
type States interface {
	LastRead(key readstate.Key) (int64, bool, error)
	SetLastRead(key readstate.Key, messageID int64) error
	ActiveTab() (string, error)
	SetActiveTab(tab string) error
}

// Session holds the logged-in user's live client state.
type Session struct {
	client    Backend
	states    States
	engine    *unread.Engine
	intervals config.Intervals
	logger    *slog.Logger

	// Login identity. Immutable for the session's lifetime, so the poll
	// loops can read these without holding mu; the mutable profile record
	// lives in user below.
	username string
	userID   int64

	mu        sync.Mutex
	poller    *poller.Poller
	user      api.User
	friends   []api.User
	groups    []api.Group
	newChats  []api.User
	active    conv.Conversation
	activeGen uint64
	messages  []api.Message
}

// New creates a session for an already-authenticated user. Call Start to
// begin polling.
func New(client Backend, states States, user api.User, intervals config.Intervals, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		client:    client,
		states:    states,
		engine:    unread.NewEngine(states, user, logger),
		intervals: intervals,
		logger:    logger,
		username:  user.Username,
		userID:    user.ID,
		user:      user,
	}
}

// User returns the logged-in user.
func (s *Session) User() api.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user
}

// Unread exposes the unread counter engine.
func (s *Session) Unread() *unread.Engine {
	return s.engine
}

// DirectWith returns the conversation with one friend, ready for Open.
func (s *Session) DirectWith(u api.User) conv.Conversation {
	return conv.Direct{Client: s.client, Friend: u}
}

// GroupChat returns the conversation for a group, ready for Open.
func (s *Session) GroupChat(g api.Group) conv.Conversation {
	return conv.Group{Client: s.client, Group: g}
}

// Start registers the background loops and begins polling. The roster and
// discovery loops run one immediate tick so the UI is not empty for a full
// interval after login.
func (s *Session) Start() error {
	p := poller.New().WithLogger(s.logger)

	if err := p.AddLoop(loopUnread, s.intervals.Unread, s.unreadTick); err != nil {
		return err
	}
	if err := p.AddLoop(loopRoster, s.intervals.Roster, s.rosterTick); err != nil {
		return err
	}
	if err := p.AddLoop(loopDiscovery, s.intervals.Discovery, s.discoveryTick); err != nil {
		return err
	}

	s.mu.Lock()
	s.poller = p
	s.mu.Unlock()

	p.Start()
	if err := p.Trigger(loopRoster); err != nil {
		s.logger.Debug("initial roster tick", "error", err)
	}
	if err := p.Trigger(loopDiscovery); err != nil {
		s.logger.Debug("initial discovery tick", "error", err)
	}
	return nil
}

// Logout stops every loop, waits for in-flight ticks to drain, ends the
// backend session, and clears all local state. The read-state store is left
// intact so read positions survive the next login.
func (s *Session) Logout(ctx context.Context) {
	s.mu.Lock()
	p := s.poller
	s.poller = nil
	s.mu.Unlock()

	if p != nil {
		<-p.Stop().Done()
	}

	if err := s.client.Logout(ctx); err != nil {
		s.logger.Warn("backend logout failed", "error", err)
	}

	s.mu.Lock()
	s.friends = nil
	s.groups = nil
	s.newChats = nil
	s.active = nil
	s.activeGen++
	s.messages = nil
	s.mu.Unlock()
	s.engine.Reset()
}

// Open makes the conversation active: fetches its messages immediately,
// records the newest message id as read, zeroes its unread count, and
// starts the short-interval message loop for it.
func (s *Session) Open(ctx context.Context, c conv.Conversation) error {
	s.mu.Lock()
	p := s.poller
	if p == nil {
		s.mu.Unlock()
		return fmt.Errorf("session is not started")
	}
	s.activeGen++
	gen := s.activeGen
	s.active = c
	s.messages = nil
	s.mu.Unlock()

	key := c.Key()
	s.engine.Zero(key)

	msgs, err := c.FetchMessages(ctx, s.username)
	switch {
	case err == nil:
		s.applyMessages(gen, key, msgs)
	case api.IsMalformed(err):
		s.applyMessages(gen, key, nil)
	default:
		s.logger.Debug("initial message fetch failed", "conversation", key.String(), "error", err)
	}

	return p.AddLoop(loopActive, s.intervals.Active, s.activeTick)
}

// Deselect closes the active conversation and stops its message loop. Any
// in-flight fetch for it resolves to a stale generation and is discarded.
func (s *Session) Deselect() {
	s.mu.Lock()
	p := s.poller
	s.active = nil
	s.activeGen++
	s.messages = nil
	s.mu.Unlock()

	if p != nil {
		p.RemoveLoop(loopActive)
	}
}

// Active returns the active conversation, or nil.
func (s *Session) Active() conv.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// activeTick is one iteration of the active-conversation message loop.
// Fetch errors keep the prior list; a malformed body clears it, since the
// local copy can no longer be trusted to mirror the server.
func (s *Session) activeTick(ctx context.Context) {
	s.mu.Lock()
	c := s.active
	gen := s.activeGen
	s.mu.Unlock()
	if c == nil {
		return
	}

	msgs, err := c.FetchMessages(ctx, s.username)
	switch {
	case err == nil:
		s.applyMessages(gen, c.Key(), msgs)
	case api.IsMalformed(err):
		s.applyMessages(gen, c.Key(), nil)
	default:
		s.logger.Debug("message poll failed", "conversation", c.Key().String(), "error", err)
	}
}

// applyMessages installs a fetched message list for the active
// conversation, unless the conversation changed while the fetch was in
// flight. While a conversation is open, every applied list advances the
// read position and keeps the unread count at zero.
func (s *Session) applyMessages(gen uint64, key readstate.Key, msgs []api.Message) {
	s.mu.Lock()
	if gen != s.activeGen {
		s.mu.Unlock()
		return
	}
	s.messages = msgs
	s.mu.Unlock()

	s.engine.Zero(key)
	if len(msgs) > 0 {
		if err := s.states.SetLastRead(key, msgs[len(msgs)-1].ID); err != nil {
			s.logger.Warn("persist read state failed", "conversation", key.String(), "error", err)
		}
	}
}

// unreadTick scans every conversation except the active one.
func (s *Session) unreadTick(ctx context.Context) {
	s.mu.Lock()
	conversations := s.conversationsLocked()
	var active *readstate.Key
	if s.active != nil {
		k := s.active.Key()
		active = &k
	}
	s.mu.Unlock()

	s.engine.Scan(ctx, conversations, active)
}

// conversationsLocked builds the conversation set from the current roster.
// Callers must hold s.mu.
func (s *Session) conversationsLocked() []conv.Conversation {
	out := make([]conv.Conversation, 0, len(s.friends)+len(s.groups))
	for _, f := range s.friends {
		out = append(out, conv.Direct{Client: s.client, Friend: f})
	}
	for _, g := range s.groups {
		out = append(out, conv.Group{Client: s.client, Group: g})
	}
	return out
}

// rosterTick refreshes the friends list and the groups the user belongs
// to. Either fetch failing keeps the previous roster.
func (s *Session) rosterTick(ctx context.Context) {
	friends, err := s.client.Friends(ctx)
	if err != nil {
		s.logger.Debug("friends poll failed", "error", err)
	} else {
		s.mu.Lock()
		s.friends = friends
		s.mu.Unlock()
	}

	groups, err := s.client.Groups(ctx)
	if err != nil {
		s.logger.Debug("groups poll failed", "error", err)
		return
	}
	s.mu.Lock()
	member := groups[:0]
	for _, g := range groups {
		if g.HasMember(s.user) {
			member = append(member, g)
		}
	}
	s.groups = member
	s.mu.Unlock()
}

// discoveryTick polls for message activity from users outside the friends
// list. Candidates are surfaced only; nothing is auto-added — adding a
// friend stays an explicit user action.
func (s *Session) discoveryTick(ctx context.Context) {
	users, err := s.client.CheckNewChats(ctx, s.username)
	if err != nil {
		s.logger.Debug("new-chat discovery failed", "error", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	known := make(map[string]bool, len(s.friends)+1)
	known[s.user.Username] = true
	for _, f := range s.friends {
		known[f.Username] = true
	}
	var candidates []api.User
	for _, u := range users {
		if !known[u.Username] {
			candidates = append(candidates, u)
		}
	}
	s.newChats = candidates
}

// Tab returns the persisted navigation tab, or "" if never set.
func (s *Session) Tab() string {
	tab, err := s.states.ActiveTab()
	if err != nil {
		s.logger.Warn("load tab state failed", "error", err)
		return ""
	}
	return tab
}

// SetTab persists the selected navigation tab.
func (s *Session) SetTab(tab string) {
	if err := s.states.SetActiveTab(tab); err != nil {
		s.logger.Warn("persist tab state failed", "error", err)
	}
}

// Snapshot is a point-in-time copy of the session state for rendering.
type Snapshot struct {
	User        api.User
	Friends     []api.User
	Groups      []api.Group
	NewChats    []api.User
	ActiveKey   *readstate.Key
	ActiveTitle string
	Messages    []api.Message
	Unread      map[string]int
}

// Snapshot returns a copy of the current state. The slices are copied so
// the caller can render without racing the poll loops.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	snap := Snapshot{
		User:     s.user,
		Friends:  append([]api.User(nil), s.friends...),
		Groups:   append([]api.Group(nil), s.groups...),
		NewChats: append([]api.User(nil), s.newChats...),
		Messages: append([]api.Message(nil), s.messages...),
	}
	if s.active != nil {
		k := s.active.Key()
		snap.ActiveKey = &k
		snap.ActiveTitle = s.active.Title()
	}
	s.mu.Unlock()

	snap.Unread = s.engine.Counts()
	if snap.ActiveKey != nil {
		// The active conversation is always read while open.
		snap.Unread[snap.ActiveKey.String()] = 0
	}
	return snap
}
