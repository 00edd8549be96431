// Package api provides a typed HTTP client for the chat backend.
//
// Every call is a single round trip: no retries, no caching, no implicit
// state beyond the session cookie jar. Failures of any kind (network,
// structured backend error, unexpected status) surface as a uniform *Error;
// the sole exception is UpdateProfile, whose caller uses ordinary
// error-propagation control flow.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const defaultTimeout = 15 * time.Second

// Client talks to one chat backend.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Config holds configuration for creating a client.
type Config struct {
	// URL is the backend base URL, e.g. "http://localhost:8000/api/chat".
	URL     string
	Timeout time.Duration
}

// New creates a client for the backend at cfg.URL. A cookie jar is attached
// so the backend's session cookie survives across calls.
func New(cfg Config) (*Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("server URL is required")
	}
	parsed, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("URL scheme must be http or https, got: %s", parsed.Scheme)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("server URL must include a host (e.g. http://localhost:8000)")
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}

	return &Client{
		baseURL: strings.TrimSuffix(cfg.URL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
			Jar:     jar,
		},
	}, nil
}

// do performs one request. body may be nil. The response body is returned
// along with the status code; transport failures come back as *Error.
func (c *Client) do(ctx context.Context, method, path string, body any) ([]byte, int, error) {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, 0, &Error{Message: fmt.Sprintf("encode request: %v", err)}
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, 0, &Error{Message: fmt.Sprintf("create request: %v", err)}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, &Error{Message: networkErrorMessage}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, &Error{Message: networkErrorMessage}
	}
	return respBody, resp.StatusCode, nil
}

// backendError extracts the {"error": "..."} payload from a non-2xx body,
// translating known messages through the given table (nil for none).
func backendError(body []byte, status int, table map[string]string, fallback string) *Error {
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Error != "" {
		return &Error{Message: translate(table, payload.Error), Status: status}
	}
	return &Error{Message: fallback, Status: status}
}

// call performs a request and decodes a 2xx JSON body into out (out may be
// nil to discard the body).
func (c *Client) call(ctx context.Context, method, path string, body, out any, table map[string]string, fallback string) error {
	respBody, status, err := c.do(ctx, method, path, body)
	if err != nil {
		return err
	}
	if status < 200 || status >= 300 {
		return backendError(respBody, status, table, fallback)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return ErrMalformed
	}
	return nil
}

// messageList decodes a response that must be a JSON array of messages.
// A 2xx body of any other shape is reported as ErrMalformed.
func (c *Client) messageList(ctx context.Context, path string, fallback string) ([]Message, error) {
	respBody, status, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	if status < 200 || status >= 300 {
		return nil, backendError(respBody, status, nil, fallback)
	}
	trimmed := bytes.TrimSpace(respBody)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, ErrMalformed
	}
	var msgs []Message
	if err := json.Unmarshal(trimmed, &msgs); err != nil {
		return nil, ErrMalformed
	}
	return msgs, nil
}

// Register creates a new account.
func (c *Client) Register(ctx context.Context, username, password string) (*User, error) {
	var u User
	body := map[string]string{"username": username, "password": password}
	if err := c.call(ctx, http.MethodPost, "/register/", body, &u, registerErrors, "Registration failed. Please try again."); err != nil {
		return nil, err
	}
	return &u, nil
}

// Login authenticates and stores the session cookie on the client.
func (c *Client) Login(ctx context.Context, username, password string) (*User, error) {
	var u User
	body := map[string]string{"username": username, "password": password}
	if err := c.call(ctx, http.MethodPost, "/login/", body, &u, loginErrors, "Login failed. Please check your credentials and try again."); err != nil {
		return nil, err
	}
	return &u, nil
}

// Logout ends the backend session.
func (c *Client) Logout(ctx context.Context) error {
	return c.call(ctx, http.MethodPost, "/logout/", struct{}{}, nil, nil, "Logout failed.")
}

// CurrentUser returns the authenticated user for the current session.
func (c *Client) CurrentUser(ctx context.Context) (*User, error) {
	var u User
	if err := c.call(ctx, http.MethodGet, "/current-user/", nil, &u, nil, "Failed to fetch current user."); err != nil {
		return nil, err
	}
	return &u, nil
}

// Users lists every registered user.
func (c *Client) Users(ctx context.Context) ([]User, error) {
	var users []User
	if err := c.call(ctx, http.MethodGet, "/users/", nil, &users, nil, "Failed to fetch users."); err != nil {
		return nil, err
	}
	return users, nil
}

// Friends lists the authenticated user's friends.
func (c *Client) Friends(ctx context.Context) ([]User, error) {
	var users []User
	if err := c.call(ctx, http.MethodGet, "/friends/", nil, &users, nil, "Failed to fetch friends."); err != nil {
		return nil, err
	}
	return users, nil
}

// AddFriend adds the user with the given id to the authenticated user's
// friends list. The backend makes the relation mutual.
func (c *Client) AddFriend(ctx context.Context, userID int64) error {
	path := fmt.Sprintf("/users/%d/add_friend/", userID)
	return c.call(ctx, http.MethodPost, path, struct{}{}, nil, nil, "Failed to add friend. Please try again.")
}

// RemoveFriend removes the friend relation between requesterID and userID.
func (c *Client) RemoveFriend(ctx context.Context, userID, requesterID int64) error {
	path := fmt.Sprintf("/users/%d/remove_friend/", userID)
	body := map[string]int64{"user_id": requesterID}
	return c.call(ctx, http.MethodPost, path, body, nil, nil, "Failed to remove friend. Please try again.")
}

// Messages fetches the direct conversation between two usernames, excluding
// messages deleted from user1's view.
func (c *Client) Messages(ctx context.Context, user1, user2 string) ([]Message, error) {
	path := fmt.Sprintf("/messages/user1=%s&user2=%s/", url.PathEscape(user1), url.PathEscape(user2))
	return c.messageList(ctx, path, "Failed to fetch messages. Please try again.")
}

// GroupMessages fetches a group's messages as seen by username.
func (c *Client) GroupMessages(ctx context.Context, groupID int64, username string) ([]Message, error) {
	q := url.Values{}
	q.Set("group_id", strconv.FormatInt(groupID, 10))
	q.Set("username", username)
	return c.messageList(ctx, "/group_messages/?"+q.Encode(), "Failed to fetch messages. Please try again.")
}

// SendMessage sends a direct message. The backend wraps the created message
// in an envelope with sender/receiver info; only the message is returned.
func (c *Client) SendMessage(ctx context.Context, req SendRequest) (*Message, error) {
	if req.Poll != nil {
		req.Type = "poll"
	}
	var envelope struct {
		Message Message `json:"message"`
	}
	if err := c.call(ctx, http.MethodPost, "/send/", req, &envelope, sendErrors, "Failed to send message. Please try again."); err != nil {
		return nil, err
	}
	return &envelope.Message, nil
}

// SendGroupMessage sends a message to a group.
func (c *Client) SendGroupMessage(ctx context.Context, req GroupSendRequest) (*Message, error) {
	var msg Message
	if err := c.call(ctx, http.MethodPost, "/group_messages/", req, &msg, sendErrors, "Failed to send message. Please try again."); err != nil {
		return nil, err
	}
	return &msg, nil
}

// DeleteMessage deletes a message with the given scope on behalf of username.
func (c *Client) DeleteMessage(ctx context.Context, id int64, scope DeleteScope, username string) error {
	q := url.Values{}
	q.Set("type", string(scope))
	q.Set("username", username)
	path := fmt.Sprintf("/messages/%d/?%s", id, q.Encode())
	return c.call(ctx, http.MethodDelete, path, nil, nil, deleteErrors, "Failed to delete message. Please try again.")
}

// VotePoll records voter's selection on a poll message, replacing any
// previous selection, and returns the updated message.
func (c *Client) VotePoll(ctx context.Context, messageID int64, voter string, selected Selection) (*Message, error) {
	body := struct {
		MessageID int64     `json:"message_id"`
		Voter     string    `json:"voter"`
		Selected  Selection `json:"selected"`
	}{messageID, voter, selected}
	var msg Message
	if err := c.call(ctx, http.MethodPost, "/poll/vote/", body, &msg, nil, "Failed to vote. Please try again."); err != nil {
		return nil, err
	}
	return &msg, nil
}

// Groups lists all groups. Callers filter to groups the viewing user
// belongs to; the backend returns everything.
func (c *Client) Groups(ctx context.Context) ([]Group, error) {
	var groups []Group
	if err := c.call(ctx, http.MethodGet, "/groups/", nil, &groups, nil, "Failed to fetch groups."); err != nil {
		return nil, err
	}
	return groups, nil
}

// CreateGroup creates a group with the given member user ids.
func (c *Client) CreateGroup(ctx context.Context, name string, memberIDs []int64) (*Group, error) {
	body := struct {
		Name      string  `json:"name"`
		MemberIDs []int64 `json:"member_ids"`
	}{name, memberIDs}
	var g Group
	if err := c.call(ctx, http.MethodPost, "/groups/", body, &g, nil, "Failed to create group."); err != nil {
		return nil, err
	}
	return &g, nil
}

// AddGroupMember adds username to the group.
func (c *Client) AddGroupMember(ctx context.Context, groupID int64, username string) error {
	path := fmt.Sprintf("/groups/%d/add_member/", groupID)
	body := map[string]string{"username": username}
	return c.call(ctx, http.MethodPost, path, body, nil, nil, "Failed to add member.")
}

// RemoveGroupMember removes username from the group.
func (c *Client) RemoveGroupMember(ctx context.Context, groupID int64, username string) error {
	path := fmt.Sprintf("/groups/%d/remove_member/", groupID)
	body := map[string]string{"username": username}
	return c.call(ctx, http.MethodPost, path, body, nil, nil, "Failed to remove member.")
}

// CheckNewChats returns users with message activity involving username,
// whether or not they are friends. The caller decides what to do with them;
// nothing is auto-added.
func (c *Client) CheckNewChats(ctx context.Context, username string) ([]User, error) {
	q := url.Values{}
	q.Set("username", username)
	var users []User
	if err := c.call(ctx, http.MethodGet, "/check-new-chats/?"+q.Encode(), nil, &users, nil, "Failed to check for new chats."); err != nil {
		return nil, err
	}
	return users, nil
}

// UpdateProfile saves mutable profile fields for the user and returns the
// updated record. Unlike the rest of the client, failures propagate as
// ordinary wrapped errors rather than the uniform *Error shape.
func (c *Client) UpdateProfile(ctx context.Context, user User) (*User, error) {
	path := fmt.Sprintf("/users/%d/", user.ID)
	respBody, status, err := c.do(ctx, http.MethodPut, path, user)
	if err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}
	if status < 200 || status >= 300 {
		var payload struct {
			Error string `json:"error"`
		}
		if jsonErr := json.Unmarshal(respBody, &payload); jsonErr == nil && payload.Error != "" {
			return nil, fmt.Errorf("update profile: %s", payload.Error)
		}
		return nil, fmt.Errorf("update profile: status %d", status)
	}
	var updated User
	if err := json.Unmarshal(respBody, &updated); err != nil {
		return nil, fmt.Errorf("update profile: decode response: %w", err)
	}
	return &updated, nil
}
