// Package conv abstracts over the two conversation kinds. Direct chats and
// group chats differ only in how messages are fetched and sent and in how
// participation is checked; everything above this package (polling, unread
// counting, the session view-model) works against the Conversation
// interface and is written once.
package conv

import (
	"context"

	"github.com/quailchat/quail/internal/api"
	"github.com/quailchat/quail/internal/readstate"
)

// Messenger is the subset of the API client that conversations need.
type Messenger interface {
	Messages(ctx context.Context, user1, user2 string) ([]api.Message, error)
	GroupMessages(ctx context.Context, groupID int64, username string) ([]api.Message, error)
	SendMessage(ctx context.Context, req api.SendRequest) (*api.Message, error)
	SendGroupMessage(ctx context.Context, req api.GroupSendRequest) (*api.Message, error)
}

// Outgoing is an unsent message payload. At least one field must be set.
type Outgoing struct {
	Content      string
	ImageURL     string
	DocumentURL  string
	DocumentName string
	Poll         *api.Poll
}

// Empty reports whether the payload carries nothing to send.
func (o Outgoing) Empty() bool {
	return o.Content == "" && o.ImageURL == "" && o.DocumentURL == "" && o.Poll == nil
}

// Conversation is the capability surface of one chat, direct or group.
type Conversation interface {
	// Key identifies the conversation in the read-state keyspace.
	Key() readstate.Key
	// Title is the display name of the conversation.
	Title() string
	// FetchMessages returns the conversation's full message list as seen
	// by viewer, oldest first.
	FetchMessages(ctx context.Context, viewer string) ([]api.Message, error)
	// Send sends an outgoing payload from viewer.
	Send(ctx context.Context, viewer string, out Outgoing) (*api.Message, error)
	// Includes reports whether the user participates in the conversation.
	Includes(u api.User) bool
}

// Direct is the conversation between the viewer and one friend.
type Direct struct {
	Client Messenger
	Friend api.User
}

func (d Direct) Key() readstate.Key { return readstate.DirectKey(d.Friend.ID) }

func (d Direct) Title() string { return d.Friend.DisplayName() }

func (d Direct) FetchMessages(ctx context.Context, viewer string) ([]api.Message, error) {
	return d.Client.Messages(ctx, viewer, d.Friend.Username)
}

func (d Direct) Send(ctx context.Context, viewer string, out Outgoing) (*api.Message, error) {
	return d.Client.SendMessage(ctx, api.SendRequest{
		Sender:       viewer,
		Receiver:     d.Friend.Username,
		Content:      out.Content,
		ImageURL:     out.ImageURL,
		DocumentURL:  out.DocumentURL,
		DocumentName: out.DocumentName,
		Poll:         out.Poll,
	})
}

func (d Direct) Includes(u api.User) bool {
	return u.Username == d.Friend.Username
}

// Group is a group conversation.
type Group struct {
	Client Messenger
	Group  api.Group
}

func (g Group) Key() readstate.Key { return readstate.GroupKey(g.Group.ID) }

func (g Group) Title() string { return g.Group.Name }

func (g Group) FetchMessages(ctx context.Context, viewer string) ([]api.Message, error) {
	return g.Client.GroupMessages(ctx, g.Group.ID, viewer)
}

func (g Group) Send(ctx context.Context, viewer string, out Outgoing) (*api.Message, error) {
	return g.Client.SendGroupMessage(ctx, api.GroupSendRequest{
		Sender:       viewer,
		GroupID:      g.Group.ID,
		Content:      out.Content,
		ImageURL:     out.ImageURL,
		DocumentURL:  out.DocumentURL,
		DocumentName: out.DocumentName,
		Poll:         out.Poll,
	})
}

func (g Group) Includes(u api.User) bool {
	return g.Group.HasMember(u)
}
