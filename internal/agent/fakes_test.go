package agent

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yasirabd/suarasemar/internal/conversation"
	"github.com/yasirabd/suarasemar/internal/llm"
	"github.com/yasirabd/suarasemar/internal/protocol"
	"github.com/yasirabd/suarasemar/internal/store"
	"github.com/yasirabd/suarasemar/internal/transcript"
	"github.com/yasirabd/suarasemar/internal/tts"
)

type recorder struct {
	mu  sync.Mutex
	out []protocol.Outbound
}

func (r *recorder) Emit(m protocol.Outbound) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.out = append(r.out, m)
	return nil
}

func (r *recorder) all() []protocol.Outbound {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]protocol.Outbound(nil), r.out...)
}

// kinds lists envelope types, skipping status envelopes.
func (r *recorder) kinds() []string {
	var ks []string
	for _, m := range r.all() {
		if m.Kind() != protocol.TypeStatus {
			ks = append(ks, m.Kind())
		}
	}
	return ks
}

func (r *recorder) ofType(typ string) []protocol.Outbound {
	var ms []protocol.Outbound
	for _, m := range r.all() {
		if m.Kind() == typ {
			ms = append(ms, m)
		}
	}
	return ms
}

func (r *recorder) statuses() []string {
	var ss []string
	for _, m := range r.ofType(protocol.TypeStatus) {
		ss = append(ss, m.(protocol.Status).Status)
	}
	return ss
}

// fakeTranscriber returns texts in order, one per call.
type fakeTranscriber struct {
	mu    sync.Mutex
	texts []string
	err   error
	calls int
}

func (f *fakeTranscriber) Transcribe(_ context.Context, audio []byte) (transcript.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return transcript.Result{}, f.err
	}
	if len(f.texts) == 0 {
		return transcript.Result{Text: string(audio)}, nil
	}
	t := f.texts[0]
	f.texts = f.texts[1:]
	return transcript.Result{Text: t, Metadata: map[string]any{"confidence": 0.9}}, nil
}

type fakeLLM struct {
	mu     sync.Mutex
	reply  func(req llm.Request) (string, error)
	reqs   []llm.Request
	during func()
}

func (f *fakeLLM) Generate(_ context.Context, req llm.Request) (llm.Reply, error) {
	f.mu.Lock()
	f.reqs = append(f.reqs, req)
	during := f.during
	f.mu.Unlock()
	if during != nil {
		during()
	}
	text := "Hello!"
	if f.reply != nil {
		var err error
		if text, err = f.reply(req); err != nil {
			return llm.Reply{}, err
		}
	}
	return llm.Reply{Text: text, Metadata: map[string]any{"model": "fake"}}, nil
}

func (f *fakeLLM) requests() []llm.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]llm.Request(nil), f.reqs...)
}

// fakeSynth renders text as its own bytes. When gates has an entry for a
// text, Synthesize blocks until that channel is closed.
type fakeSynth struct {
	mu      sync.Mutex
	gates   map[string]chan struct{}
	started chan string
	texts   []string
	err     error
}

func (f *fakeSynth) Synthesize(ctx context.Context, text string) (tts.Speech, error) {
	f.mu.Lock()
	f.texts = append(f.texts, text)
	gate := f.gates[text]
	f.mu.Unlock()
	if f.started != nil {
		f.started <- text
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return tts.Speech{}, ctx.Err()
		}
	}
	if f.err != nil {
		return tts.Speech{}, f.err
	}
	return tts.Speech{Audio: []byte(text), Format: "wav"}, nil
}

func (f *fakeSynth) calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.texts...)
}

type fakeDescriber struct {
	calls atomic.Int32
	desc  string
}

func (f *fakeDescriber) Describe(context.Context, []byte, string) (string, error) {
	f.calls.Add(1)
	return f.desc, nil
}

// countingStore records how many times each operation reached the store.
type countingStore struct {
	store.Store
	saves atomic.Int32
	fail  error
}

func (c *countingStore) Save(ctx context.Context, key string, value []byte) error {
	c.saves.Add(1)
	if c.fail != nil {
		return c.fail
	}
	return c.Store.Save(ctx, key, value)
}

var errBoom = errors.New("boom")

type harness struct {
	sess  *Session
	rec   *recorder
	tr    *fakeTranscriber
	llm   *fakeLLM
	synth *fakeSynth
	desc  *fakeDescriber
	st    *countingStore
	ctx   context.Context
}

// newHarness opens a session over an in-memory store seeded with prompt.
func newHarness(t *testing.T, prompt string) *harness {
	t.Helper()
	h := &harness{
		rec:   &recorder{},
		tr:    &fakeTranscriber{},
		llm:   &fakeLLM{},
		synth: &fakeSynth{gates: map[string]chan struct{}{}},
		desc:  &fakeDescriber{desc: "a red bicycle"},
		st:    &countingStore{Store: store.NewMemoryStore()},
	}
	settings := store.NewSettings(h.st)
	ctx, cancel := context.WithCancel(context.Background())
	h.ctx = ctx
	if prompt != "" {
		require.NoError(t, settings.SavePrompt(ctx, prompt))
	}
	h.sess = NewSession(Services{
		Transcriber: h.tr,
		LLM:         h.llm,
		Synthesizer: h.synth,
		Describer:   h.desc,
		Settings:    settings,
		Sessions:    store.NewSessions(h.st),
	}, Config{}, h.rec, nil)
	require.NoError(t, h.sess.Open(ctx))
	t.Cleanup(func() {
		cancel()
		h.sess.Close()
	})
	return h
}

func (h *harness) settle() { h.sess.turns.wait() }

func msgs(pairs ...string) []conversation.Message {
	var out []conversation.Message
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, conversation.NewMessage(conversation.Role(pairs[i]), pairs[i+1]))
	}
	return out
}
