package agent

import (
	"context"

	"github.com/yasirabd/suarasemar/internal/llm"
	"github.com/yasirabd/suarasemar/internal/protocol"
	"github.com/yasirabd/suarasemar/internal/transcript"
	"github.com/yasirabd/suarasemar/internal/tts"
)

// Transcriber turns one complete utterance into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte) (transcript.Result, error)
}

// LLM produces a single reply for a role-tagged message sequence.
type LLM interface {
	Generate(ctx context.Context, req llm.Request) (llm.Reply, error)
}

// Synthesizer renders text as one complete audio clip.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) (tts.Speech, error)
}

// Describer produces a text description of an image.
type Describer interface {
	Describe(ctx context.Context, image []byte, prompt string) (string, error)
}

// Emitter delivers outbound envelopes to the client. Implementations must be
// safe for concurrent use; turns emit from their own goroutine.
type Emitter interface {
	Emit(protocol.Outbound) error
}

// EmitterFunc adapts a function to Emitter.
type EmitterFunc func(protocol.Outbound) error

func (f EmitterFunc) Emit(m protocol.Outbound) error { return f(m) }
