package agent

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/yasirabd/suarasemar/internal/protocol"
	"github.com/yasirabd/suarasemar/internal/store"
)

// Settings writes go to the store first; the cached value and the history
// only change once the write has succeeded.

func (s *Session) SendSystemPrompt() {
	s.emit(protocol.NewSystemPrompt(s.systemPrompt()))
}

// UpdateSystemPrompt replaces the instruction prompt. An all-whitespace
// prompt is rejected and nothing changes.
func (s *Session) UpdateSystemPrompt(ctx context.Context, prompt string) {
	if strings.TrimSpace(prompt) == "" {
		s.emit(protocol.NewResult(protocol.TypeSystemPromptUpdated, ErrEmptyPrompt))
		return
	}
	if err := s.svc.Settings.SavePrompt(ctx, prompt); err != nil {
		s.fail(ctx, "Error updating system prompt", err)
		return
	}
	s.mu.Lock()
	s.prompt = prompt
	s.mu.Unlock()
	s.history.SetPrompt(prompt)

	s.logger.Info("system prompt updated", zap.Int("length", len(prompt)))
	s.emit(protocol.NewResult(protocol.TypeSystemPromptUpdated, nil))
}

func (s *Session) SendUserProfile() {
	s.emit(protocol.NewUserProfile(s.userName()))
}

// UpdateUserProfile stores the user's name and refreshes the identity
// context. An empty name removes it.
func (s *Session) UpdateUserProfile(ctx context.Context, name string) {
	s.mu.Lock()
	p := store.Profile{Name: name, Preferences: s.profile.Preferences}
	s.mu.Unlock()

	if err := s.svc.Settings.SaveProfile(ctx, p); err != nil {
		s.fail(ctx, "Error updating user profile", err)
		return
	}
	s.mu.Lock()
	s.profile = p
	s.mu.Unlock()
	s.history.SetIdentity(name)

	s.logger.Info("user profile updated", zap.Bool("named", name != ""))
	s.emit(protocol.NewResult(protocol.TypeUserProfileUpdated, nil))
}

func (s *Session) SendVisionSettings() {
	s.emit(protocol.NewVisionSettings(s.VisionEnabled()))
}

func (s *Session) UpdateVisionSettings(ctx context.Context, enabled bool) {
	v := store.VisionSettings{Enabled: enabled}
	if err := s.svc.Settings.SaveVision(ctx, v); err != nil {
		s.fail(ctx, "Error updating vision settings", err)
		return
	}
	s.mu.Lock()
	s.vision = v
	s.mu.Unlock()

	s.logger.Info("vision settings updated", zap.Bool("enabled", enabled))
	s.emit(protocol.NewResult(protocol.TypeVisionSettingsUpdated, nil))
}

// ClearHistory drops the dialogue, keeping the prompt and identity context.
func (s *Session) ClearHistory() {
	s.history.Clear()
	s.emit(protocol.NewStatus(protocol.StatusHistoryCleared, nil))
}
