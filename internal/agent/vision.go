package agent

import (
	"context"

	"go.uber.org/zap"

	"github.com/yasirabd/suarasemar/internal/protocol"
)

// visionPrompt asks the image model for a description the assistant can
// answer follow-up questions from.
const visionPrompt = "Describe this image in detail. Include information about objects, people, scenes, text, and any notable elements."

// UploadImage describes an image and parks the description for the next
// turn. It runs inline; the router does not read while it is working.
func (s *Session) UploadImage(ctx context.Context, image []byte, mime string) {
	if !s.VisionEnabled() {
		s.emit(protocol.NewError(ErrVisionDisabled.Error(), nil))
		return
	}
	if s.svc.Describer == nil {
		s.fail(ctx, "Vision processing error", ErrNoDescriber)
		return
	}
	s.emit(protocol.NewResult(protocol.TypeVisionFileUploadResult, nil))
	s.emit(protocol.NewVisionProcessing())

	s.logger.Debug("describing image", zap.Int("bytes", len(image)), zap.String("mime", mime))
	desc, err := s.svc.Describer.Describe(ctx, image, visionPrompt)
	if err != nil {
		s.fail(ctx, "Vision processing error", err)
		return
	}
	s.setVision(desc)
	s.emit(protocol.NewVisionReady(desc))
}

// VisionEnabled reports the cached vision toggle.
func (s *Session) VisionEnabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.vision.Enabled
}

// setVision fills the pending slot; a newer image replaces an unconsumed one.
func (s *Session) setVision(desc string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.visionSeq++
	s.pendingVision = desc
	s.hasVision = true
}

func (s *Session) peekVision() (string, uint64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pendingVision, s.visionSeq, s.hasVision
}

// consumeVision clears the slot if it still holds upload seq, keeping an image
// uploaded while the turn was generating for the next turn.
func (s *Session) consumeVision(seq uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hasVision && s.visionSeq == seq {
		s.pendingVision = ""
		s.hasVision = false
	}
}
