package agent

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/yasirabd/suarasemar/internal/conversation"
	"github.com/yasirabd/suarasemar/internal/llm"
	"github.com/yasirabd/suarasemar/internal/protocol"
)

// followupWindow bounds how much recent dialogue a follow-up sees.
const followupWindow = 6

var silenceSignals = [...]string{"[silent]", "[no response]", "[still waiting]"}

// SilenceSignal returns the synthetic utterance for an escalation tier,
// clamping out-of-range tiers.
func SilenceSignal(tier int) string {
	tier = max(0, min(tier, len(silenceSignals)-1))
	return silenceSignals[tier]
}

// Followup nudges a silent user. The model sees the leading system message,
// the last few messages and a silence signal; nothing is written to history.
func (s *Session) Followup(ctx context.Context, tier int) {
	s.turns.start(ctx, func(ctx context.Context, t *turn) {
		s.guard("Follow-up error", func() { s.runFollowup(ctx, t, tier) })
	})
}

func (s *Session) runFollowup(ctx context.Context, t *turn, tier int) {
	msgs := s.history.Recent(followupWindow)
	msgs = append(msgs, conversation.NewMessage(conversation.RoleUser, SilenceSignal(tier)))

	s.logger.Debug("generating follow-up", zap.Int("tier", tier), zap.Int("context", len(msgs)))
	reply, err := s.svc.LLM.Generate(ctx, llm.Request{
		Messages:    msgs,
		Temperature: s.cfg.FollowupTemperature,
	})
	if err != nil {
		s.fail(ctx, "Follow-up error", err)
		return
	}
	s.emit(protocol.NewLLMResponse(reply.Text, reply.Metadata))
	s.speak(ctx, t, reply.Text)
}

// Greet speaks a short greeting when the user opens the microphone. Only the
// prompt and a one-off instruction are sent; history is not touched.
func (s *Session) Greet(ctx context.Context) {
	s.turns.start(ctx, func(ctx context.Context, t *turn) {
		s.guard("Greeting error", func() { s.runGreeting(ctx, t) })
	})
}

func (s *Session) runGreeting(ctx context.Context, t *turn) {
	name := s.userName()
	returning := hasDialogue(s.history.Snapshot())

	var msgs []conversation.Message
	if p := s.systemPrompt(); p != "" {
		msgs = append(msgs, conversation.NewMessage(conversation.RoleSystem, p))
	}
	msgs = append(msgs, conversation.NewMessage(conversation.RoleUser, greetingInstruction(name, returning)))

	reply, err := s.svc.LLM.Generate(ctx, llm.Request{
		Messages:    msgs,
		Temperature: s.cfg.FollowupTemperature,
	})
	if err != nil {
		s.fail(ctx, "Greeting error", err)
		return
	}
	s.history.SetIdentity(name)
	s.emit(protocol.NewLLMResponse(reply.Text, reply.Metadata))
	s.speak(ctx, t, reply.Text)
}

func greetingInstruction(name string, returning bool) string {
	who := "someone"
	if name != "" {
		who = name
	}
	manner := "treat it like you're meeting them for the first time"
	if returning {
		manner = "treat it like you've met them before"
	}
	return fmt.Sprintf("Create a friendly greeting for %s who just activated their microphone. "+
		"Be brief and conversational, but %s. Do not do anything else.", who, manner)
}

// hasDialogue reports whether msgs contain any user or assistant message.
func hasDialogue(msgs []conversation.Message) bool {
	for _, m := range msgs {
		if m.Role != conversation.RoleSystem {
			return true
		}
	}
	return false
}
