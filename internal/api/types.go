package api

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// User is a backend user record.
type User struct {
	ID        int64    `json:"id"`
	Username  string   `json:"username"`
	FirstName string   `json:"first_name,omitempty"`
	LastName  string   `json:"last_name,omitempty"`
	Profile   *Profile `json:"profile,omitempty"`
}

// Profile holds the mutable profile fields of a user.
type Profile struct {
	Bio     string  `json:"bio,omitempty"`
	Email   string  `json:"email,omitempty"`
	Mobile  string  `json:"mobile_number,omitempty"`
	Friends []int64 `json:"friends,omitempty"`
}

// DisplayName returns the user's full name, falling back to the username.
func (u User) DisplayName() string {
	if u.FirstName != "" || u.LastName != "" {
		if u.LastName == "" {
			return u.FirstName
		}
		if u.FirstName == "" {
			return u.LastName
		}
		return u.FirstName + " " + u.LastName
	}
	return u.Username
}

// UserRef is a user reference as it appears in wire data. The backend is
// inconsistent: message senders are full user objects, while group member
// lists have been observed as objects, bare usernames, and bare numeric ids.
// UserRef decodes all three shapes and exposes a canonical identity string
// so comparisons are uniform everywhere.
type UserRef struct {
	Username string
	ID       int64
	User     *User // set when the wire form was a full object
}

// Ref builds a UserRef from a full user record.
func Ref(u User) UserRef {
	return UserRef{Username: u.Username, ID: u.ID, User: &u}
}

// Canonical returns the canonical identity for this reference: the username
// when known, otherwise the decimal id. Empty references canonicalize to "".
func (r UserRef) Canonical() string {
	if r.Username != "" {
		return r.Username
	}
	if r.ID != 0 {
		return strconv.FormatInt(r.ID, 10)
	}
	return ""
}

// Is reports whether this reference identifies the given user. The user is
// matched by username first, then by id, mirroring Canonical.
func (r UserRef) Is(u User) bool {
	if r.Username != "" {
		return r.Username == u.Username
	}
	return r.ID != 0 && r.ID == u.ID
}

func (r *UserRef) UnmarshalJSON(b []byte) error {
	if len(b) == 0 || string(b) == "null" {
		*r = UserRef{}
		return nil
	}
	switch b[0] {
	case '{':
		var u User
		if err := json.Unmarshal(b, &u); err != nil {
			return err
		}
		*r = UserRef{Username: u.Username, ID: u.ID, User: &u}
		return nil
	case '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*r = UserRef{Username: s}
		return nil
	default:
		var id int64
		if err := json.Unmarshal(b, &id); err != nil {
			return fmt.Errorf("user reference: unsupported shape %s", b)
		}
		*r = UserRef{ID: id}
		return nil
	}
}

func (r UserRef) MarshalJSON() ([]byte, error) {
	if r.User != nil {
		return json.Marshal(r.User)
	}
	if r.Username != "" {
		return json.Marshal(r.Username)
	}
	if r.ID != 0 {
		return json.Marshal(r.ID)
	}
	return []byte("null"), nil
}

// Message is one message in a conversation. Exactly one of the payload
// fields (Content, ImageURL, DocumentURL, Poll) is expected to be the
// primary payload, but the wire format does not enforce that.
type Message struct {
	ID           int64     `json:"id"`
	Sender       UserRef   `json:"sender"`
	Receiver     *UserRef  `json:"receiver,omitempty"`
	Content      string    `json:"content,omitempty"`
	ImageURL     string    `json:"imageUrl,omitempty"`
	DocumentURL  string    `json:"documentUrl,omitempty"`
	DocumentName string    `json:"documentName,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
	Poll         *Poll     `json:"poll,omitempty"`
	PollVotes    PollVotes `json:"pollVotes,omitempty"`
}

// Poll is the poll payload of a poll message.
type Poll struct {
	Question      string   `json:"question"`
	Options       []string `json:"options"`
	AllowMultiple bool     `json:"allowMultiple"`
}

// PollVotes maps a voter identity to the option indices they selected.
// Single-choice polls store one index on the wire (a bare number);
// multiple-choice polls store a list. Both decode to an index slice.
type PollVotes map[string][]int

func (v *PollVotes) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*v = nil
		return nil
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	out := make(PollVotes, len(raw))
	for voter, sel := range raw {
		var indices []int
		if err := json.Unmarshal(sel, &indices); err != nil {
			var single int
			if err := json.Unmarshal(sel, &single); err != nil {
				return fmt.Errorf("poll votes for %q: unsupported shape %s", voter, sel)
			}
			indices = []int{single}
		}
		out[voter] = indices
	}
	*v = out
	return nil
}

// VotesFor returns the option indices voter has selected.
func (v PollVotes) VotesFor(voter string) []int {
	return v[voter]
}

// Count returns how many voters selected the given option.
func (v PollVotes) Count(option int) int {
	n := 0
	for _, indices := range v {
		for _, i := range indices {
			if i == option {
				n++
			}
		}
	}
	return n
}

// Selection is the wire form of a poll vote: a bare option index for
// single-choice polls, an index list for multiple-choice polls. The backend
// replaces the voter's previous selection wholesale either way.
type Selection struct {
	indices []int
	single  bool
}

// SingleChoice selects exactly one option, replacing any prior vote.
func SingleChoice(option int) Selection {
	return Selection{indices: []int{option}, single: true}
}

// MultipleChoice selects a set of options, replacing any prior vote.
func MultipleChoice(options []int) Selection {
	return Selection{indices: options}
}

// Indices returns the selected option indices.
func (s Selection) Indices() []int { return s.indices }

func (s Selection) MarshalJSON() ([]byte, error) {
	if s.single && len(s.indices) == 1 {
		return json.Marshal(s.indices[0])
	}
	if s.indices == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(s.indices)
}

// Group is a named conversation with an explicit member list.
type Group struct {
	ID      int64     `json:"id"`
	Name    string    `json:"name"`
	Members []UserRef `json:"members"`
}

// HasMember reports whether the user is in the group's member list.
func (g Group) HasMember(u User) bool {
	for _, m := range g.Members {
		if m.Is(u) {
			return true
		}
	}
	return false
}

// DeleteScope selects how far a message delete reaches.
type DeleteScope string

const (
	// DeleteForMe removes the message from the requesting user's view only.
	DeleteForMe DeleteScope = "for_me"
	// DeleteForEveryone removes the message for all participants.
	// The backend rejects it unless the requester is the sender.
	DeleteForEveryone DeleteScope = "for_everyone"
)

// SendRequest is the payload for sending a direct message. Receiver is a
// username. At least one of Content, ImageURL, DocumentURL, or Poll must be
// set.
type SendRequest struct {
	Sender       string `json:"sender"`
	Receiver     string `json:"receiver"`
	Content      string `json:"content"`
	ImageURL     string `json:"imageUrl,omitempty"`
	DocumentURL  string `json:"documentUrl,omitempty"`
	DocumentName string `json:"documentName,omitempty"`
	Type         string `json:"type,omitempty"` // "poll" when Poll is set
	Poll         *Poll  `json:"poll,omitempty"`
}

// GroupSendRequest is the payload for sending a group message.
type GroupSendRequest struct {
	Sender       string `json:"sender"`
	GroupID      int64  `json:"group_id"`
	Content      string `json:"content"`
	ImageURL     string `json:"imageUrl,omitempty"`
	DocumentURL  string `json:"documentUrl,omitempty"`
	DocumentName string `json:"documentName,omitempty"`
	Poll         *Poll  `json:"poll,omitempty"`
}

// Empty reports whether the request carries no payload at all.
func (r SendRequest) Empty() bool {
	return r.Content == "" && r.ImageURL == "" && r.DocumentURL == "" && r.Poll == nil
}

// Empty reports whether the request carries no payload at all.
func (r GroupSendRequest) Empty() bool {
	return r.Content == "" && r.ImageURL == "" && r.DocumentURL == "" && r.Poll == nil
}
