package session

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/quailchat/quail/internal/api"
	"github.com/quailchat/quail/internal/conv"
)

// Send sends an outgoing payload to the active conversation. On success
// the caller clears its input; the sent message is not injected into local
// state and appears on the next poll tick. On failure the caller keeps the
// input so the send can be retried.
func (s *Session) Send(ctx context.Context, out conv.Outgoing) error {
	if out.Empty() {
		return &api.Error{Message: "Please enter a message or attach a file."}
	}

	s.mu.Lock()
	c := s.active
	s.mu.Unlock()
	if c == nil {
		return fmt.Errorf("no conversation selected")
	}

	_, err := c.Send(ctx, s.username, out)
	return err
}

// Delete deletes the given messages with the given scope. A for-everyone
// delete is rejected locally, before any call is issued, unless every
// selected message was sent by the current user. All deletes are issued
// concurrently and awaited; if any fails the first error is returned and
// the caller keeps its selection. After full success the active message
// list is refreshed immediately instead of waiting for the next tick.
func (s *Session) Delete(ctx context.Context, ids []int64, scope api.DeleteScope) error {
	if len(ids) == 0 {
		return nil
	}

	if scope == api.DeleteForEveryone {
		s.mu.Lock()
		byID := make(map[int64]api.Message, len(s.messages))
		for _, m := range s.messages {
			byID[m.ID] = m
		}
		for _, id := range ids {
			m, ok := byID[id]
			if !ok || !m.Sender.Is(s.user) {
				s.mu.Unlock()
				return &api.Error{Message: "Only the sender can delete messages for everyone."}
			}
		}
		s.mu.Unlock()
	}

	var g errgroup.Group
	for _, id := range ids {
		g.Go(func() error {
			return s.client.DeleteMessage(ctx, id, scope, s.username)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	s.refreshActive(ctx)
	return nil
}

// refreshActive re-fetches the active conversation outside its schedule.
func (s *Session) refreshActive(ctx context.Context) {
	s.mu.Lock()
	c := s.active
	gen := s.activeGen
	s.mu.Unlock()
	if c == nil {
		return
	}

	msgs, err := c.FetchMessages(ctx, s.username)
	if err != nil {
		s.logger.Debug("post-delete refresh failed", "conversation", c.Key().String(), "error", err)
		return
	}
	s.applyMessages(gen, c.Key(), msgs)
}

// Vote records the user's vote on a poll message in the active
// conversation. Single-choice polls replace the previous selection with
// the chosen option; multiple-choice polls toggle the option within the
// user's selection set. Either way the backend replaces the voter's
// recorded choices wholesale.
func (s *Session) Vote(ctx context.Context, messageID int64, option int) error {
	s.mu.Lock()
	gen := s.activeGen
	var target *api.Message
	for i := range s.messages {
		if s.messages[i].ID == messageID {
			m := s.messages[i]
			target = &m
			break
		}
	}
	s.mu.Unlock()

	if target == nil {
		return fmt.Errorf("message %d not found", messageID)
	}
	if target.Poll == nil {
		return fmt.Errorf("message %d is not a poll", messageID)
	}
	if option < 0 || option >= len(target.Poll.Options) {
		return fmt.Errorf("option %d out of range", option)
	}

	var selected api.Selection
	if target.Poll.AllowMultiple {
		current := target.PollVotes.VotesFor(s.username)
		next := make([]int, 0, len(current)+1)
		removed := false
		for _, i := range current {
			if i == option {
				removed = true
				continue
			}
			next = append(next, i)
		}
		if !removed {
			next = append(next, option)
		}
		selected = api.MultipleChoice(next)
	} else {
		selected = api.SingleChoice(option)
	}

	updated, err := s.client.VotePoll(ctx, messageID, s.username, selected)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.activeGen {
		// Conversation changed while the vote was in flight.
		return nil
	}
	for i := range s.messages {
		if s.messages[i].ID != messageID {
			continue
		}
		// The vote endpoint serializes the sender and poll payload
		// inconsistently; keep the local copies so the message does not
		// jump or lose its question text.
		updated.Sender = s.messages[i].Sender
		if updated.Poll == nil {
			updated.Poll = s.messages[i].Poll
		}
		s.messages[i] = *updated
		break
	}
	return nil
}

// AddFriend adds the user as a friend and refreshes the roster right away.
func (s *Session) AddFriend(ctx context.Context, u api.User) error {
	if err := s.client.AddFriend(ctx, u.ID); err != nil {
		return err
	}
	s.rosterTick(ctx)
	return nil
}

// RemoveFriend removes the friend relation. If the removed friend's
// conversation is open it is closed, since the roster no longer shows it.
func (s *Session) RemoveFriend(ctx context.Context, u api.User) error {
	if err := s.client.RemoveFriend(ctx, u.ID, s.userID); err != nil {
		return err
	}

	s.mu.Lock()
	activeIsRemoved := false
	if d, ok := s.active.(conv.Direct); ok && d.Friend.ID == u.ID {
		activeIsRemoved = true
	}
	s.mu.Unlock()
	if activeIsRemoved {
		s.Deselect()
	}

	s.rosterTick(ctx)
	return nil
}

// CreateGroup creates a group containing the given members (the current
// user is always included) and refreshes the roster.
func (s *Session) CreateGroup(ctx context.Context, name string, memberIDs []int64) (*api.Group, error) {
	includesSelf := false
	for _, id := range memberIDs {
		if id == s.userID {
			includesSelf = true
			break
		}
	}
	if !includesSelf {
		memberIDs = append(memberIDs, s.userID)
	}

	g, err := s.client.CreateGroup(ctx, name, memberIDs)
	if err != nil {
		return nil, err
	}
	s.rosterTick(ctx)
	return g, nil
}

// AddGroupMember adds a user to a group and refreshes the roster.
func (s *Session) AddGroupMember(ctx context.Context, groupID int64, username string) error {
	if err := s.client.AddGroupMember(ctx, groupID, username); err != nil {
		return err
	}
	s.rosterTick(ctx)
	return nil
}

// RemoveGroupMember removes a user from a group and refreshes the roster.
// Removing yourself from the open group's conversation closes it.
func (s *Session) RemoveGroupMember(ctx context.Context, groupID int64, username string) error {
	if err := s.client.RemoveGroupMember(ctx, groupID, username); err != nil {
		return err
	}

	if username == s.username {
		s.mu.Lock()
		activeIsLeft := false
		if g, ok := s.active.(conv.Group); ok && g.Group.ID == groupID {
			activeIsLeft = true
		}
		s.mu.Unlock()
		if activeIsLeft {
			s.Deselect()
		}
	}

	s.rosterTick(ctx)
	return nil
}

// SaveProfile updates the user's profile and replaces the local user
// record with the backend's response.
func (s *Session) SaveProfile(ctx context.Context, updated api.User) error {
	saved, err := s.client.UpdateProfile(ctx, updated)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.user = *saved
	s.mu.Unlock()
	return nil
}
