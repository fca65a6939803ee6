// Package agent owns the per-connection conversation: settings, history,
// the turn pipeline, interruption, follow-ups, greeting, image context and
// the bridge to saved sessions.
package agent

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"

	"go.uber.org/zap"

	"github.com/yasirabd/suarasemar/internal/conversation"
	"github.com/yasirabd/suarasemar/internal/protocol"
	"github.com/yasirabd/suarasemar/internal/store"
)

const (
	defaultTemperature         = 0.5
	defaultFollowupTemperature = 0.7
)

// Config tunes generation.
type Config struct {
	Temperature         float64
	FollowupTemperature float64
}

func (c Config) withDefaults() Config {
	if c.Temperature == 0 {
		c.Temperature = defaultTemperature
	}
	if c.FollowupTemperature == 0 {
		c.FollowupTemperature = defaultFollowupTemperature
	}
	return c
}

// Services are the collaborators a Session calls. They may be shared across
// sessions. A nil Describer disables image understanding.
type Services struct {
	Transcriber Transcriber
	LLM         LLM
	Synthesizer Synthesizer
	Describer   Describer
	Settings    *store.Settings
	Sessions    *store.Sessions
}

// Session orchestrates one connection's conversation.
type Session struct {
	svc    Services
	cfg    Config
	out    Emitter
	logger *zap.Logger

	history *conversation.History
	bridge  *Bridge
	turns   controller

	mu            sync.Mutex
	prompt        string
	profile       store.Profile
	vision        store.VisionSettings
	pendingVision string
	visionSeq     uint64
	hasVision     bool
}

// NewSession creates a session. Call Open before dispatching envelopes.
func NewSession(svc Services, cfg Config, out Emitter, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Session{
		svc:     svc,
		cfg:     cfg.withDefaults(),
		out:     out,
		logger:  logger,
		history: conversation.NewHistory(""),
	}
	s.bridge = NewBridge(s.history, svc.Sessions, s.userName)
	return s
}

// Open loads prompt, profile and vision settings, seeds the history and sends
// the initial status snapshot. A setting that cannot be loaded is reported as
// an error envelope and replaced by its default; the session still opens.
// Open only fails when ctx is already done.
func (s *Session) Open(ctx context.Context) error {
	prompt, err := s.svc.Settings.LoadPrompt(ctx)
	if err != nil {
		s.fail(ctx, "load system prompt", err)
		prompt = store.DefaultPrompt
	}
	profile, err := s.svc.Settings.LoadProfile(ctx)
	if err != nil {
		s.fail(ctx, "load user profile", err)
		profile = store.Profile{}
	}
	vision, err := s.svc.Settings.LoadVision(ctx)
	if err != nil {
		s.fail(ctx, "load vision settings", err)
		vision = store.VisionSettings{}
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("open session: %w", err)
	}

	s.mu.Lock()
	s.prompt = prompt
	s.profile = profile
	s.vision = vision
	s.mu.Unlock()

	s.history.Replace(nil)
	s.history.SetPrompt(prompt)
	s.history.SetIdentity(profile.Name)

	s.emit(protocol.NewStatus(protocol.StatusConnected, map[string]any{
		"transcription_active": false,
		"llm_active":           false,
		"tts_active":           false,
		"vision_enabled":       vision.Enabled,
	}))
	return nil
}

// Close waits for queued and running turns to return. The caller cancels the
// context the turns were started with.
func (s *Session) Close() {
	s.turns.wait()
}

// History exposes the conversation history.
func (s *Session) History() *conversation.History { return s.history }

// Busy reports whether a turn is queued or running.
func (s *Session) Busy() bool { return s.turns.active() }

func (s *Session) userName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.profile.Name
}

func (s *Session) systemPrompt() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.prompt
}

func (s *Session) emit(m protocol.Outbound) {
	if err := s.out.Emit(m); err != nil {
		s.logger.Debug("emit failed", zap.String("type", m.Kind()), zap.Error(err))
	}
}

// fail reports a collaborator failure under the given stage label. Failures
// caused by the connection going away are only logged.
func (s *Session) fail(ctx context.Context, stage string, err error) {
	if ctx.Err() != nil {
		s.logger.Debug(stage+" aborted", zap.Error(err))
		return
	}
	s.logger.Error(stage, zap.Error(err))
	s.emit(protocol.NewError(stage+": "+err.Error(), nil))
}

// guard recovers a panic in f and reports it as an error envelope.
func (s *Session) guard(stage string, f func()) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("recovered panic",
				zap.String("stage", stage),
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()))
			s.emit(protocol.NewError(fmt.Sprintf("%s: internal error", stage), nil))
		}
	}()
	f()
}
