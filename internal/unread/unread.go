// Package unread derives per-conversation unread counts by diffing fetched
// messages against the persisted read state.
package unread

import (
	"context"
	"log/slog"
	"sync"

	"github.com/quailchat/quail/internal/api"
	"github.com/quailchat/quail/internal/conv"
	"github.com/quailchat/quail/internal/readstate"
)

// ReadStates is the read-only view of the read-state store the engine
// needs. The engine never writes read state; the conversation-opened
// transition is the single writer.
type ReadStates interface {
	LastRead(key readstate.Key) (int64, bool, error)
}

// Count returns how many messages are unread for viewer: messages authored
// by someone else with an id greater than lastRead. With hasLastRead false
// every foreign message counts.
func Count(msgs []api.Message, viewer api.User, lastRead int64, hasLastRead bool) int {
	n := 0
	for _, m := range msgs {
		if m.Sender.Is(viewer) {
			continue
		}
		if hasLastRead && m.ID <= lastRead {
			continue
		}
		n++
	}
	return n
}

// Engine computes and caches unread counts across conversations. Counts are
// derived values: they are recomputed on every scan and never persisted.
type Engine struct {
	states ReadStates
	viewer api.User
	logger *slog.Logger

	mu     sync.Mutex
	counts map[string]int // conversation key -> unread count
}

// NewEngine creates an engine counting unread messages for viewer.
func NewEngine(states ReadStates, viewer api.User, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		states: states,
		viewer: viewer,
		logger: logger,
		counts: make(map[string]int),
	}
}

// Scan recomputes unread counts for every conversation except the active
// one. A failed or malformed fetch skips that conversation and retains its
// previous count; one bad conversation never affects the rest of the tick.
// Counts for conversations no longer in the set (removed friend, left
// group) are dropped.
func (e *Engine) Scan(ctx context.Context, conversations []conv.Conversation, active *readstate.Key) {
	current := make(map[string]bool, len(conversations))
	for _, c := range conversations {
		current[c.Key().String()] = true
	}
	e.mu.Lock()
	for k := range e.counts {
		if !current[k] {
			delete(e.counts, k)
		}
	}
	e.mu.Unlock()

	for _, c := range conversations {
		key := c.Key()
		if active != nil && key == *active {
			continue
		}
		msgs, err := c.FetchMessages(ctx, e.viewer.Username)
		if err != nil {
			e.logger.Debug("unread scan: fetch failed, keeping previous count",
				"conversation", key.String(), "error", err)
			continue
		}
		lastRead, ok, err := e.states.LastRead(key)
		if err != nil {
			e.logger.Warn("unread scan: read state unavailable",
				"conversation", key.String(), "error", err)
			continue
		}
		n := Count(msgs, e.viewer, lastRead, ok)

		e.mu.Lock()
		e.counts[key.String()] = n
		e.mu.Unlock()
	}
}

// Zero forces a conversation's count to zero immediately, without waiting
// for the next scan. Called when the conversation becomes active.
func (e *Engine) Zero(key readstate.Key) {
	e.mu.Lock()
	e.counts[key.String()] = 0
	e.mu.Unlock()
}

// CountFor returns the cached unread count for a conversation.
func (e *Engine) CountFor(key readstate.Key) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.counts[key.String()]
}

// Counts returns a snapshot of all cached counts keyed by conversation key.
func (e *Engine) Counts() map[string]int {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make(map[string]int, len(e.counts))
	for k, v := range e.counts {
		out[k] = v
	}
	return out
}

// Reset discards all cached counts. Called on logout.
func (e *Engine) Reset() {
	e.mu.Lock()
	e.counts = make(map[string]int)
	e.mu.Unlock()
}
