package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/yasirabd/suarasemar/internal/conversation"
)

const sessionPrefix = "sessions/"

// ErrInvalidID is returned for session ids that cannot be used as keys.
var ErrInvalidID = errors.New("invalid session id")

var sessionIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)

// SessionMetadata is computed from the history at save time.
type SessionMetadata struct {
	MessageCount          int       `json:"message_count"`
	UserMessageCount      int       `json:"user_message_count"`
	AssistantMessageCount int       `json:"assistant_message_count"`
	UserName              string    `json:"user_name"`
	CreatedAt             time.Time `json:"created_at"`
	UpdatedAt             time.Time `json:"updated_at"`
}

// SessionRecord is a saved conversation.
type SessionRecord struct {
	ID       string                 `json:"id"`
	Title    string                 `json:"title"`
	Messages []conversation.Message `json:"messages"`
	Metadata SessionMetadata        `json:"metadata"`
}

// SessionSummary is one entry of a session listing. Counts and the user
// name travel under metadata, as in the stored record.
type SessionSummary struct {
	ID        string          `json:"id"`
	Title     string          `json:"title"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
	Metadata  SessionMetadata `json:"metadata"`
}

// Sessions persists SessionRecords under "sessions/<id>.json".
type Sessions struct {
	store Store
	now   func() time.Time
}

// NewSessions wraps s with session record access.
func NewSessions(s Store) *Sessions {
	return &Sessions{store: s, now: time.Now}
}

func sessionKey(id string) (string, error) {
	if !sessionIDPattern.MatchString(id) {
		return "", fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return sessionPrefix + id + ".json", nil
}

// Save writes rec, fully replacing any record with the same id. The original
// creation time of an overwritten record is kept.
func (s *Sessions) Save(ctx context.Context, rec *SessionRecord) error {
	key, err := sessionKey(rec.ID)
	if err != nil {
		return err
	}
	now := s.now().UTC()
	rec.Metadata.CreatedAt = now
	if prev, err := s.Load(ctx, rec.ID); err == nil && !prev.Metadata.CreatedAt.IsZero() {
		rec.Metadata.CreatedAt = prev.Metadata.CreatedAt
	} else if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	rec.Metadata.UpdatedAt = now

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrSaveFailed, key, err)
	}
	return s.store.Save(ctx, key, data)
}

// Load returns the record with the given id, or ErrNotFound.
func (s *Sessions) Load(ctx context.Context, id string) (*SessionRecord, error) {
	key, err := sessionKey(id)
	if err != nil {
		return nil, err
	}
	data, err := s.store.Load(ctx, key)
	if err != nil {
		return nil, err
	}
	var rec SessionRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrLoadFailed, key, err)
	}
	return &rec, nil
}

// List returns summaries of every saved session, most recently updated first.
// Records that fail to decode are skipped.
func (s *Sessions) List(ctx context.Context) ([]SessionSummary, error) {
	keys, err := s.store.List(ctx, sessionPrefix)
	if err != nil {
		return nil, err
	}
	out := make([]SessionSummary, 0, len(keys))
	for _, key := range keys {
		id := strings.TrimSuffix(strings.TrimPrefix(key, sessionPrefix), ".json")
		rec, err := s.Load(ctx, id)
		if err != nil {
			continue
		}
		out = append(out, SessionSummary{
			ID:        rec.ID,
			Title:     rec.Title,
			CreatedAt: rec.Metadata.CreatedAt,
			UpdatedAt: rec.Metadata.UpdatedAt,
			Metadata:  rec.Metadata,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out, nil
}

// Delete removes the record with the given id. It reports false when no
// such record existed.
func (s *Sessions) Delete(ctx context.Context, id string) (bool, error) {
	key, err := sessionKey(id)
	if err != nil {
		return false, err
	}
	if err := s.store.Delete(ctx, key); err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
