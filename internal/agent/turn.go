package agent

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/yasirabd/suarasemar/internal/conversation"
	"github.com/yasirabd/suarasemar/internal/llm"
	"github.com/yasirabd/suarasemar/internal/protocol"
)

// visionNote is appended to a query answered with fresh image context.
const visionNote = " [Note: This question refers to the image I just analyzed.]"

// HandleAudio starts a turn for one complete utterance, preempting any turn
// in flight. It returns immediately.
func (s *Session) HandleAudio(ctx context.Context, audio []byte) {
	s.emit(protocol.NewStatus(protocol.StatusAudioProcessing, map[string]any{
		"transcription_active": true,
	}))
	s.turns.start(ctx, func(ctx context.Context, t *turn) {
		s.guard("Speech processing error", func() { s.runTurn(ctx, t, audio) })
	})
}

// Interrupt stops playback of the current turn without starting a new one.
func (s *Session) Interrupt() {
	if s.turns.interrupt() {
		s.logger.Info("turn interrupted by client")
	}
	s.emit(protocol.NewStatus(protocol.StatusInterrupted, nil))
}

// runTurn is transcribe, context check, generate, synthesize. Every stage
// emits its result before the next one starts; a failing stage ends the turn.
// The exchange is recorded only if the history was not loaded or cleared
// while the turn ran; the reply is still delivered.
func (s *Session) runTurn(ctx context.Context, t *turn, audio []byte) {
	const stage = "Speech processing error"

	s.emit(protocol.NewStatus(protocol.StatusTranscribing, nil))
	tr, err := s.svc.Transcriber.Transcribe(ctx, audio)
	if err != nil {
		s.fail(ctx, stage, err)
		return
	}
	s.emit(protocol.NewTranscription(tr.Text, tr.Metadata))

	text := strings.TrimSpace(tr.Text)
	if text == "" {
		// nothing was said; let the client reset
		s.logger.Debug("empty transcription, skipping generation")
		s.emit(protocol.NewTTSEnd())
		return
	}

	query := text
	gen := s.history.Generation()
	image, imageSeq, hasImage := s.peekVision()
	if hasImage {
		s.history.UpsertVision(image)
		query += visionNote
	}
	s.emit(protocol.NewStatus(protocol.StatusProcessingLLM, map[string]any{
		"has_vision_context": hasImage,
	}))

	user := conversation.NewMessage(conversation.RoleUser, query)
	reply, err := s.svc.LLM.Generate(ctx, llm.Request{
		Messages:    append(s.history.Snapshot(), user),
		Temperature: s.cfg.Temperature,
	})
	if err != nil {
		s.fail(ctx, stage, err)
		return
	}
	if hasImage {
		s.consumeVision(imageSeq)
	}
	if !s.history.AppendAt(gen, user, conversation.NewMessage(conversation.RoleAssistant, reply.Text)) {
		// history was loaded or cleared while generating
		s.logger.Info("dropping exchange from replaced history", zap.Int("reply_len", len(reply.Text)))
	}
	s.emit(protocol.NewLLMResponse(reply.Text, reply.Metadata))

	s.speak(ctx, t, reply.Text)
}

// speak synthesizes text and emits it unless the turn was cancelled while
// synthesis ran. A cancelled turn never emits audio or tts_end.
func (s *Session) speak(ctx context.Context, t *turn, text string) {
	if strings.TrimSpace(text) == "" {
		s.logger.Debug("empty reply, skipping synthesis")
		return
	}
	s.emit(protocol.NewTTSStart())
	s.emit(protocol.NewStatus(protocol.StatusGeneratingSpeech, nil))

	speech, err := s.svc.Synthesizer.Synthesize(ctx, text)
	if err != nil {
		s.fail(ctx, "TTS streaming error", err)
		return
	}
	if t.isCancelled() {
		s.logger.Info("discarding synthesized audio of interrupted turn", zap.Int("bytes", len(speech.Audio)))
		return
	}
	s.emit(protocol.NewTTSChunk(speech.Audio, speech.Format))
	if t.isCancelled() {
		return
	}
	s.emit(protocol.NewTTSEnd())
}
