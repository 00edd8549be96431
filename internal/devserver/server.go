// Package devserver is an in-memory reference implementation of the chat
// backend's REST contract. It exists so the client can be developed and
// integration-tested without the real backend; it is not meant to face the
// internet.
//
// Fidelity note: like the real backend, the poll-vote endpoint trusts the
// caller-supplied voter identity. That is a property of the contract, not
// an oversight here.
package devserver

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/quailchat/quail/internal/api"
)

// Server is the in-memory backend.
type Server struct {
	logger  *slog.Logger
	router  chi.Router
	limiter *RateLimiter

	mu            sync.Mutex
	users         map[int64]*user
	usersByName   map[string]int64
	sessions      map[string]int64 // session token -> user id
	groups        map[int64]*group
	messages      []*message
	nextUserID    int64
	nextGroupID   int64
	nextMessageID int64
}

type user struct {
	api.User
	password string
	friends  map[int64]bool
}

type group struct {
	id      int64
	name    string
	members map[int64]bool
}

type message struct {
	id           int64
	senderID     int64
	receiverID   int64 // 0 for group messages
	groupID      int64 // 0 for direct messages
	content      string
	imageURL     string
	documentURL  string
	documentName string
	poll         *api.Poll
	votes        map[string]api.Selection
	timestamp    time.Time
	deletedFor   map[int64]bool
	deletedAll   bool
}

// New creates an empty devserver.
func New(logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		logger:      logger,
		limiter:     NewRateLimiter(50, 100),
		users:       make(map[int64]*user),
		usersByName: make(map[string]int64),
		sessions:    make(map[string]int64),
		groups:      make(map[int64]*group),
	}
	// The route table lives under the same prefix the real backend
	// serves, so the client's default base URL works unchanged.
	root := chi.NewRouter()
	root.Mount("/api/chat", s.routes())
	s.router = root
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(requestLogger(s.logger))
	r.Use(chimw.Recoverer)
	r.Use(RateLimitMiddleware(s.limiter))

	r.Post("/register/", s.handleRegister)
	r.Post("/login/", s.handleLogin)
	r.Post("/logout/", s.handleLogout)
	r.Get("/users/", s.handleListUsers)
	r.Put("/users/{id}/", s.handleUpdateUser)
	r.Post("/users/{id}/add_friend/", s.handleAddFriend)
	r.Post("/users/{id}/remove_friend/", s.handleRemoveFriend)
	r.Get("/friends/", s.handleFriends)
	r.Get("/current-user/", s.handleCurrentUser)
	r.Get("/messages/{pair}/", s.handleListMessages)
	r.Delete("/messages/{pair}/", s.handleDeleteMessage)
	r.Post("/send/", s.handleSend)
	r.Post("/poll/vote/", s.handleVote)
	r.Get("/check-new-chats/", s.handleCheckNewChats)
	r.Get("/groups/", s.handleListGroups)
	r.Post("/groups/", s.handleCreateGroup)
	r.Post("/groups/{id}/add_member/", s.handleAddGroupMember)
	r.Post("/groups/{id}/remove_member/", s.handleRemoveGroupMember)
	r.Get("/group_messages/", s.handleGroupMessages)
	r.Post("/group_messages/", s.handleSendGroupMessage)

	return r
}

// Handler returns the HTTP handler, for mounting under httptest or a
// larger mux.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Serve listens on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("devserver listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// requestLogger logs each request at debug level.
func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			logger.Debug("request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
		})
	}
}

// Seed pre-populates a user account, for tests and demos.
func (s *Server) Seed(username, password string) api.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.usersByName[username]; ok {
		return s.users[id].User
	}
	return s.createUserLocked(username, password).User
}

func (s *Server) createUserLocked(username, password string) *user {
	s.nextUserID++
	u := &user{
		User: api.User{
			ID:       s.nextUserID,
			Username: username,
			Profile:  &api.Profile{},
		},
		password: password,
		friends:  make(map[int64]bool),
	}
	s.users[u.ID] = u
	s.usersByName[username] = u.ID
	return u
}

func newSessionToken() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		panic(err) // crypto/rand does not fail on supported platforms
	}
	return hex.EncodeToString(b)
}

// sessionUser resolves the request's session cookie to a user. Returns nil
// when unauthenticated. Callers must hold s.mu.
func (s *Server) sessionUserLocked(r *http.Request) *user {
	cookie, err := r.Cookie("sessionid")
	if err != nil {
		return nil
	}
	id, ok := s.sessions[cookie.Value]
	if !ok {
		return nil
	}
	return s.users[id]
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func parseID(s string) (int64, bool) {
	id, err := strconv.ParseInt(s, 10, 64)
	return id, err == nil
}
