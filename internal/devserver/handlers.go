package devserver

import (
	"encoding/json"
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/quailchat/quail/internal/api"
)

// userJSONLocked serializes a user the way the backend does, including the
// profile with the friend id list.
func (s *Server) userJSONLocked(id int64) map[string]any {
	u, ok := s.users[id]
	if !ok {
		return nil
	}
	friends := make([]int64, 0, len(u.friends))
	for fid := range u.friends {
		friends = append(friends, fid)
	}
	sort.Slice(friends, func(i, j int) bool { return friends[i] < friends[j] })

	profile := map[string]any{"friends": friends}
	if u.Profile != nil {
		profile["bio"] = u.Profile.Bio
		profile["email"] = u.Profile.Email
		profile["mobile_number"] = u.Profile.Mobile
	}
	return map[string]any{
		"id":         u.ID,
		"username":   u.Username,
		"first_name": u.FirstName,
		"last_name":  u.LastName,
		"profile":    profile,
	}
}

func (s *Server) messageJSONLocked(m *message) map[string]any {
	out := map[string]any{
		"id":        m.id,
		"sender":    s.userJSONLocked(m.senderID),
		"content":   m.content,
		"timestamp": m.timestamp.UTC().Format(time.RFC3339Nano),
	}
	if m.receiverID != 0 {
		out["receiver"] = s.userJSONLocked(m.receiverID)
	}
	if m.imageURL != "" {
		out["imageUrl"] = m.imageURL
	}
	if m.documentURL != "" {
		out["documentUrl"] = m.documentURL
		out["documentName"] = m.documentName
	}
	if m.poll != nil {
		out["poll"] = m.poll
		out["pollVotes"] = m.votes
	}
	return out
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "Username and password required")
		return
	}
	if len(req.Password) < 8 {
		writeError(w, http.StatusBadRequest, "Password too short")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.usersByName[req.Username]; exists {
		writeError(w, http.StatusBadRequest, "Username already exists")
		return
	}
	u := s.createUserLocked(req.Username, req.Password)
	writeJSON(w, http.StatusOK, s.userJSONLocked(u.ID))
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "Username and password required")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.usersByName[req.Username]
	if !ok {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}
	u := s.users[id]
	if u.password != req.Password {
		writeError(w, http.StatusBadRequest, "Invalid password")
		return
	}

	token := newSessionToken()
	s.sessions[token] = u.ID
	http.SetCookie(w, &http.Cookie{Name: "sessionid", Value: token, Path: "/"})
	writeJSON(w, http.StatusOK, s.userJSONLocked(u.ID))
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	if cookie, err := r.Cookie("sessionid"); err == nil {
		delete(s.sessions, cookie.Value)
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out successfully"})
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]int64, 0, len(s.users))
	for id := range s.users {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := make([]map[string]any, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.userJSONLocked(id))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid user id")
		return
	}
	var req api.User
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	u, exists := s.users[id]
	if !exists {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}
	// id and username are immutable; everything else is caller-settable.
	u.FirstName = req.FirstName
	u.LastName = req.LastName
	if req.Profile != nil {
		if u.Profile == nil {
			u.Profile = &api.Profile{}
		}
		u.Profile.Bio = req.Profile.Bio
		u.Profile.Email = req.Profile.Email
		u.Profile.Mobile = req.Profile.Mobile
	}
	writeJSON(w, http.StatusOK, s.userJSONLocked(id))
}

func (s *Server) handleAddFriend(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid user id")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	current := s.sessionUserLocked(r)
	if current == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}
	friend, exists := s.users[id]
	if !exists {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}
	// The relation is made mutual, matching the backend.
	current.friends[friend.ID] = true
	friend.friends[current.ID] = true
	writeJSON(w, http.StatusOK, map[string]any{
		"message":         "Friend added successfully",
		"user_id":         friend.ID,
		"friend_username": friend.Username,
	})
}

func (s *Server) handleRemoveFriend(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid user id")
		return
	}
	var req struct {
		UserID int64 `json:"user_id"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)

	s.mu.Lock()
	defer s.mu.Unlock()
	current := s.sessionUserLocked(r)
	if current == nil && req.UserID != 0 {
		current = s.users[req.UserID]
	}
	if current == nil {
		writeError(w, http.StatusBadRequest, "Could not determine current user")
		return
	}
	friend, exists := s.users[id]
	if !exists {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}
	if !current.friends[friend.ID] {
		writeError(w, http.StatusBadRequest, "User is not in your friends list")
		return
	}
	delete(current.friends, friend.ID)
	delete(friend.friends, current.ID)
	writeJSON(w, http.StatusOK, map[string]string{"message": "Friend removed successfully"})
}

func (s *Server) handleFriends(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current := s.sessionUserLocked(r)
	if current == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}
	ids := make([]int64, 0, len(current.friends))
	for id := range current.friends {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := make([]map[string]any, 0, len(ids))
	for _, id := range ids {
		if u := s.userJSONLocked(id); u != nil {
			out = append(out, u)
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCurrentUser(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current := s.sessionUserLocked(r)
	if current == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}
	writeJSON(w, http.StatusOK, s.userJSONLocked(current.ID))
}

// handleListMessages serves GET /messages/user1=<a>&user2=<b>/. The path
// segment uses query syntax, an inherited quirk of the backend's URL
// scheme.
func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	pair, err := url.ParseQuery(chi.URLParam(r, "pair"))
	if err != nil || pair.Get("user1") == "" || pair.Get("user2") == "" {
		writeError(w, http.StatusBadRequest, "user1 and user2 required")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	id1, ok1 := s.usersByName[pair.Get("user1")]
	id2, ok2 := s.usersByName[pair.Get("user2")]
	if !ok1 || !ok2 {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}

	out := make([]map[string]any, 0)
	for _, m := range s.messages {
		if m.groupID != 0 || m.deletedAll || m.deletedFor[id1] {
			continue
		}
		direct := (m.senderID == id1 && m.receiverID == id2) ||
			(m.senderID == id2 && m.receiverID == id1)
		if direct {
			out = append(out, s.messageJSONLocked(m))
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleSend(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Sender       string    `json:"sender"`
		Receiver     string    `json:"receiver"`
		Type         string    `json:"type"`
		Content      string    `json:"content"`
		ImageURL     string    `json:"imageUrl"`
		DocumentURL  string    `json:"documentUrl"`
		DocumentName string    `json:"documentName"`
		Poll         *api.Poll `json:"poll"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Sender == "" || req.Receiver == "" {
		writeError(w, http.StatusBadRequest, "sender and receiver required")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	senderID, ok1 := s.usersByName[req.Sender]
	receiverID, ok2 := s.usersByName[req.Receiver]
	if !ok1 || !ok2 {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}

	var m *message
	if req.Type == "poll" || req.Poll != nil {
		if req.Poll == nil || req.Poll.Question == "" || len(req.Poll.Options) == 0 {
			writeError(w, http.StatusBadRequest, "Poll question and options required")
			return
		}
		m = s.createMessageLocked(senderID, receiverID, 0, "", "", "", "")
		m.poll = req.Poll
	} else {
		if req.Content == "" && req.ImageURL == "" && req.DocumentURL == "" {
			writeError(w, http.StatusBadRequest, "content, imageUrl, or documentUrl required")
			return
		}
		m = s.createMessageLocked(senderID, receiverID, 0, req.Content, req.ImageURL, req.DocumentURL, req.DocumentName)
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"message":       s.messageJSONLocked(m),
		"sender_info":   s.userJSONLocked(senderID),
		"receiver_info": s.userJSONLocked(receiverID),
	})
}

func (s *Server) createMessageLocked(senderID, receiverID, groupID int64, content, imageURL, documentURL, documentName string) *message {
	s.nextMessageID++
	m := &message{
		id:           s.nextMessageID,
		senderID:     senderID,
		receiverID:   receiverID,
		groupID:      groupID,
		content:      content,
		imageURL:     imageURL,
		documentURL:  documentURL,
		documentName: documentName,
		votes:        make(map[string]api.Selection),
		timestamp:    time.Now(),
		deletedFor:   make(map[int64]bool),
	}
	s.messages = append(s.messages, m)
	return m
}

func (s *Server) handleDeleteMessage(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(chi.URLParam(r, "pair"))
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid message id")
		return
	}
	scope := r.URL.Query().Get("type")
	if scope == "" {
		scope = string(api.DeleteForMe)
	}
	username := r.URL.Query().Get("username")

	s.mu.Lock()
	defer s.mu.Unlock()
	userID, userOK := s.usersByName[username]
	var m *message
	for _, candidate := range s.messages {
		if candidate.id == id {
			m = candidate
			break
		}
	}
	if m == nil || !userOK {
		writeError(w, http.StatusNotFound, "Message or user not found")
		return
	}

	if m.groupID != 0 {
		g := s.groups[m.groupID]
		if g == nil || !g.members[userID] {
			writeError(w, http.StatusForbidden, "You can only delete messages from groups you are a member of")
			return
		}
	} else if m.senderID != userID && m.receiverID != userID {
		writeError(w, http.StatusForbidden, "You can only delete messages you sent or received")
		return
	}

	switch scope {
	case string(api.DeleteForMe):
		m.deletedFor[userID] = true
		writeJSON(w, http.StatusOK, map[string]string{"success": "Message deleted for you"})
	case string(api.DeleteForEveryone):
		if m.senderID != userID {
			writeError(w, http.StatusForbidden, "Only the sender can delete messages for everyone")
			return
		}
		m.deletedAll = true
		writeJSON(w, http.StatusOK, map[string]string{"success": "Message deleted for everyone"})
	default:
		writeError(w, http.StatusBadRequest, "Invalid delete type")
	}
}

func (s *Server) handleVote(w http.ResponseWriter, r *http.Request) {
	var req struct {
		MessageID int64           `json:"message_id"`
		Voter     string          `json:"voter"`
		Selected  json.RawMessage `json:"selected"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil ||
		req.MessageID == 0 || req.Voter == "" || len(req.Selected) == 0 {
		writeError(w, http.StatusBadRequest, "message_id, voter, and selected required")
		return
	}

	// selected is a bare index (single-choice) or an index list
	// (multiple-choice).
	var selection api.Selection
	var indices []int
	if err := json.Unmarshal(req.Selected, &indices); err == nil {
		selection = api.MultipleChoice(indices)
	} else {
		var single int
		if err := json.Unmarshal(req.Selected, &single); err != nil {
			writeError(w, http.StatusBadRequest, "message_id, voter, and selected required")
			return
		}
		selection = api.SingleChoice(single)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	var m *message
	for _, candidate := range s.messages {
		if candidate.id == req.MessageID {
			m = candidate
			break
		}
	}
	if m == nil {
		writeError(w, http.StatusNotFound, "Message not found")
		return
	}
	if m.poll == nil {
		writeError(w, http.StatusBadRequest, "Message is not a poll")
		return
	}

	// Replacement semantics: the voter's previous selection is discarded,
	// never merged. The voter identity is trusted as supplied.
	m.votes[req.Voter] = selection
	writeJSON(w, http.StatusOK, s.messageJSONLocked(m))
}

func (s *Server) handleCheckNewChats(w http.ResponseWriter, r *http.Request) {
	username := r.URL.Query().Get("username")
	if username == "" {
		writeError(w, http.StatusBadRequest, "username required")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	userID, ok := s.usersByName[username]
	if !ok {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}

	counterparts := make(map[int64]bool)
	for _, m := range s.messages {
		if m.groupID != 0 || m.deletedAll || m.deletedFor[userID] {
			continue
		}
		if m.receiverID == userID {
			counterparts[m.senderID] = true
		}
		if m.senderID == userID && m.receiverID != 0 {
			counterparts[m.receiverID] = true
		}
	}

	ids := make([]int64, 0, len(counterparts))
	for id := range counterparts {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := make([]map[string]any, 0, len(ids))
	for _, id := range ids {
		if u := s.userJSONLocked(id); u != nil {
			out = append(out, u)
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) groupJSONLocked(g *group) map[string]any {
	ids := make([]int64, 0, len(g.members))
	for id := range g.members {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	members := make([]map[string]any, 0, len(ids))
	for _, id := range ids {
		if u := s.userJSONLocked(id); u != nil {
			members = append(members, u)
		}
	}
	return map[string]any{"id": g.id, "name": g.name, "members": members}
}

func (s *Server) handleListGroups(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]int64, 0, len(s.groups))
	for id := range s.groups {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := make([]map[string]any, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.groupJSONLocked(s.groups[id]))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateGroup(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name      string  `json:"name"`
		MemberIDs []int64 `json:"member_ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		writeError(w, http.StatusBadRequest, "name required")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextGroupID++
	g := &group{id: s.nextGroupID, name: req.Name, members: make(map[int64]bool)}
	for _, id := range req.MemberIDs {
		if _, exists := s.users[id]; exists {
			g.members[id] = true
		}
	}
	s.groups[g.id] = g
	writeJSON(w, http.StatusCreated, s.groupJSONLocked(g))
}

func (s *Server) handleAddGroupMember(w http.ResponseWriter, r *http.Request) {
	s.modifyGroupMember(w, r, true)
}

func (s *Server) handleRemoveGroupMember(w http.ResponseWriter, r *http.Request) {
	s.modifyGroupMember(w, r, false)
}

func (s *Server) modifyGroupMember(w http.ResponseWriter, r *http.Request, add bool) {
	id, ok := parseID(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid group id")
		return
	}
	var req struct {
		Username string `json:"username"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Username == "" {
		writeError(w, http.StatusBadRequest, "Username required")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	g, exists := s.groups[id]
	if !exists {
		writeError(w, http.StatusNotFound, "Group not found")
		return
	}
	userID, userOK := s.usersByName[req.Username]
	if !userOK {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}
	if add {
		g.members[userID] = true
	} else {
		delete(g.members, userID)
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleGroupMessages(w http.ResponseWriter, r *http.Request) {
	groupIDStr := r.URL.Query().Get("group_id")
	if groupIDStr == "" {
		writeError(w, http.StatusBadRequest, "group_id required")
		return
	}
	username := r.URL.Query().Get("username")
	if username == "" {
		writeError(w, http.StatusBadRequest, "username required")
		return
	}
	groupID, ok := parseID(groupIDStr)
	if !ok {
		writeError(w, http.StatusBadRequest, "group_id required")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	g, groupOK := s.groups[groupID]
	userID, userOK := s.usersByName[username]
	if !groupOK || !userOK {
		writeError(w, http.StatusNotFound, "Group or user not found")
		return
	}
	_ = g

	out := make([]map[string]any, 0)
	for _, m := range s.messages {
		if m.groupID != groupID || m.deletedAll || m.deletedFor[userID] {
			continue
		}
		out = append(out, s.messageJSONLocked(m))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleSendGroupMessage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Sender       string    `json:"sender"`
		GroupID      int64     `json:"group_id"`
		Content      string    `json:"content"`
		ImageURL     string    `json:"imageUrl"`
		DocumentURL  string    `json:"documentUrl"`
		DocumentName string    `json:"documentName"`
		Poll         *api.Poll `json:"poll"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Sender == "" || req.GroupID == 0 {
		writeError(w, http.StatusBadRequest, "sender and group_id required")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	senderID, ok1 := s.usersByName[req.Sender]
	_, ok2 := s.groups[req.GroupID]
	if !ok1 || !ok2 {
		writeError(w, http.StatusNotFound, "Sender or group not found")
		return
	}

	var m *message
	if req.Poll != nil {
		if req.Poll.Question == "" || len(req.Poll.Options) == 0 {
			writeError(w, http.StatusBadRequest, "Poll question and options required")
			return
		}
		m = s.createMessageLocked(senderID, 0, req.GroupID, "", "", "", "")
		m.poll = req.Poll
	} else {
		if req.Content == "" && req.ImageURL == "" && req.DocumentURL == "" {
			writeError(w, http.StatusBadRequest, "content, imageUrl, or documentUrl required")
			return
		}
		m = s.createMessageLocked(senderID, 0, req.GroupID, req.Content, req.ImageURL, req.DocumentURL, req.DocumentName)
	}

	writeJSON(w, http.StatusCreated, s.messageJSONLocked(m))
}
