package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/yasirabd/suarasemar/internal/conversation"
	"github.com/yasirabd/suarasemar/internal/protocol"
	"github.com/yasirabd/suarasemar/internal/store"
)

const (
	anonymousName = "Anonymous"
	maxTitleRunes = 50
)

// Bridge maps session requests onto the session store. It reads the history
// to save and replaces it on load; it never edits it otherwise.
type Bridge struct {
	history  *conversation.History
	sessions *store.Sessions
	userName func() string
	now      func() time.Time
}

// NewBridge creates a Bridge. userName supplies the display name recorded
// with saved sessions.
func NewBridge(h *conversation.History, sessions *store.Sessions, userName func() string) *Bridge {
	return &Bridge{history: h, sessions: sessions, userName: userName, now: time.Now}
}

// Save persists the current history and returns the session id. A history
// without dialogue fails with ErrEmptyConversation before the store is
// touched. An empty id creates a new session.
func (b *Bridge) Save(ctx context.Context, title, id string) (string, error) {
	msgs := b.history.Snapshot()
	if !hasDialogue(msgs) {
		return "", ErrEmptyConversation
	}
	if id == "" {
		u, err := uuid.NewV7()
		if err != nil {
			return "", fmt.Errorf("generate session id: %w", err)
		}
		id = u.String()
	}
	if title == "" {
		title = b.defaultTitle(msgs)
	}

	rec := &store.SessionRecord{
		ID:       id,
		Title:    title,
		Messages: msgs,
		Metadata: b.metadata(msgs),
	}
	if err := b.sessions.Save(ctx, rec); err != nil {
		return "", err
	}
	return id, nil
}

// Load replaces the history with the saved messages. Identity and vision
// context are not re-applied.
func (b *Bridge) Load(ctx context.Context, id string) (*store.SessionRecord, error) {
	if id == "" {
		return nil, ErrSessionIDRequired
	}
	rec, err := b.sessions.Load(ctx, id)
	if errors.Is(err, store.ErrNotFound) || errors.Is(err, store.ErrInvalidID) {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	b.history.Replace(rec.Messages)
	return rec, nil
}

// List returns saved sessions, most recently updated first.
func (b *Bridge) List(ctx context.Context) ([]store.SessionSummary, error) {
	return b.sessions.List(ctx)
}

// Delete removes a saved session and reports whether it existed.
func (b *Bridge) Delete(ctx context.Context, id string) (bool, error) {
	if id == "" {
		return false, ErrSessionIDRequired
	}
	ok, err := b.sessions.Delete(ctx, id)
	if errors.Is(err, store.ErrInvalidID) {
		return false, nil
	}
	return ok, err
}

func (b *Bridge) metadata(msgs []conversation.Message) store.SessionMetadata {
	md := store.SessionMetadata{MessageCount: len(msgs), UserName: b.userName()}
	if md.UserName == "" {
		md.UserName = anonymousName
	}
	for _, m := range msgs {
		switch m.Role {
		case conversation.RoleUser:
			md.UserMessageCount++
		case conversation.RoleAssistant:
			md.AssistantMessageCount++
		}
	}
	return md
}

func (b *Bridge) defaultTitle(msgs []conversation.Message) string {
	for _, m := range msgs {
		if m.Role != conversation.RoleUser {
			continue
		}
		text := strings.TrimSpace(strings.TrimSuffix(m.Content, visionNote))
		if text == "" {
			continue
		}
		if utf8.RuneCountInString(text) > maxTitleRunes {
			text = strings.TrimSpace(string([]rune(text)[:maxTitleRunes]))
		}
		return text
	}
	return "Conversation " + b.now().Format("2006-01-02 15:04")
}

// Session-facing handlers. Validation failures go inline on the result
// envelope; store failures become error envelopes.

func (s *Session) SaveSession(ctx context.Context, title, id string) {
	id, err := s.bridge.Save(ctx, title, id)
	switch {
	case errors.Is(err, ErrEmptyConversation), errors.Is(err, store.ErrInvalidID):
		r := protocol.NewSessionResult(protocol.TypeSaveSessionResult, false, "")
		r.Error = err.Error()
		s.emit(r)
	case err != nil:
		s.fail(ctx, "Failed to save conversation", err)
	default:
		s.logger.Info("saved conversation session")
		s.emit(protocol.NewSessionResult(protocol.TypeSaveSessionResult, true, id))
	}
}

func (s *Session) LoadSession(ctx context.Context, id string) {
	rec, err := s.bridge.Load(ctx, id)
	switch {
	case errors.Is(err, ErrSessionIDRequired), errors.Is(err, ErrSessionNotFound):
		r := protocol.NewSessionResult(protocol.TypeLoadSessionResult, false, id)
		r.Error = err.Error()
		s.emit(r)
	case err != nil:
		s.fail(ctx, "Failed to load conversation", err)
	default:
		n := len(rec.Messages)
		r := protocol.NewSessionResult(protocol.TypeLoadSessionResult, true, rec.ID)
		r.Title = rec.Title
		r.MessageCount = &n
		s.emit(r)
	}
}

func (s *Session) ListSessions(ctx context.Context) {
	list, err := s.bridge.List(ctx)
	if err != nil {
		s.fail(ctx, "Failed to list conversations", err)
		return
	}
	s.emit(protocol.NewSessionList(list))
}

func (s *Session) DeleteSession(ctx context.Context, id string) {
	ok, err := s.bridge.Delete(ctx, id)
	switch {
	case errors.Is(err, ErrSessionIDRequired):
		r := protocol.NewSessionResult(protocol.TypeDeleteSessionResult, false, id)
		r.Error = err.Error()
		s.emit(r)
	case err != nil:
		s.fail(ctx, "Failed to delete conversation", err)
	default:
		s.emit(protocol.NewSessionResult(protocol.TypeDeleteSessionResult, ok, id))
	}
}
