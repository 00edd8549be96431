// Package readstate persists per-conversation read positions and small
// pieces of UI state across restarts.
package readstate

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaFS embed.FS

const defaultSQLiteParams = "?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=ON"

// Kind distinguishes the two conversation keyspaces.
type Kind string

const (
	KindDirect Kind = "direct"
	KindGroup  Kind = "group"
)

// Key identifies one conversation. A friend's user id and a group's id may
// collide numerically; the kind prefix keeps their read state separate.
type Key struct {
	Kind Kind
	ID   int64
}

// DirectKey is the key for the direct conversation with the given friend.
func DirectKey(friendID int64) Key { return Key{Kind: KindDirect, ID: friendID} }

// GroupKey is the key for the given group's conversation.
func GroupKey(groupID int64) Key { return Key{Kind: KindGroup, ID: groupID} }

func (k Key) String() string {
	return string(k.Kind) + ":" + strconv.FormatInt(k.ID, 10)
}

// Store is a SQLite-backed persistence layer. A zero-value Store is not
// usable; call Open.
type Store struct {
	db     *sql.DB
	dbPath string
}

// Open opens or creates the database at the given path and applies the
// schema.
func Open(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+defaultSQLiteParams)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	schema, err := schemaFS.ReadFile("schema.sql")
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("read schema: %w", err)
	}
	if _, err := db.Exec(string(schema)); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Store{db: db, dbPath: dbPath}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// LastRead returns the last read message id for the conversation. The
// second return is false when no entry exists, meaning every message in the
// conversation is unread.
func (s *Store) LastRead(key Key) (int64, bool, error) {
	var id int64
	err := s.db.QueryRow(
		"SELECT last_read_id FROM read_state WHERE conversation_key = ?",
		key.String(),
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("query read state %s: %w", key, err)
	}
	return id, true, nil
}

// SetLastRead records messageID as the last read message for the
// conversation. The stored value only moves forward; a smaller id than the
// current entry is ignored so read state never regresses.
func (s *Store) SetLastRead(key Key, messageID int64) error {
	_, err := s.db.Exec(`
		INSERT INTO read_state (conversation_key, last_read_id)
		VALUES (?, ?)
		ON CONFLICT(conversation_key) DO UPDATE SET
			last_read_id = excluded.last_read_id,
			updated_at = strftime('%Y-%m-%dT%H:%M:%fZ', 'now')
		WHERE excluded.last_read_id > read_state.last_read_id`,
		key.String(), messageID)
	if err != nil {
		return fmt.Errorf("set read state %s: %w", key, err)
	}
	return nil
}

// ActiveTab returns the last persisted navigation tab, or "" if none.
func (s *Store) ActiveTab() (string, error) {
	return s.uiValue("active_tab")
}

// SetActiveTab persists the selected navigation tab.
func (s *Store) SetActiveTab(tab string) error {
	return s.setUIValue("active_tab", tab)
}

func (s *Store) uiValue(key string) (string, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM ui_state WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("query ui state %s: %w", key, err)
	}
	return value, nil
}

func (s *Store) setUIValue(key, value string) error {
	_, err := s.db.Exec(`
		INSERT INTO ui_state (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value)
	if err != nil {
		return fmt.Errorf("set ui state %s: %w", key, err)
	}
	return nil
}
