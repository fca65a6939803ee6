package tts

import (
	"context"
	"fmt"
	"sync"
	"time"

	msginterfaces "github.com/deepgram/deepgram-go-sdk/pkg/api/speak/v1/websocket/interfaces"
	clientinterfaces "github.com/deepgram/deepgram-go-sdk/pkg/client/interfaces/v1"
	"github.com/deepgram/deepgram-go-sdk/pkg/client/speak"
	"go.uber.org/zap"

	"github.com/yasirabd/suarasemar/internal/audio"
)

const (
	deepgramSampleRate = 24000
	deepgramIdleWindow = 400 * time.Millisecond
	deepgramDeadline   = 12 * time.Second
)

type DeepgramClient struct {
	apiKey     string
	model      string
	sampleRate int
	encoding   string
	logger     *zap.Logger
}

func NewDeepgramClient(apiKey, model string, logger *zap.Logger) *DeepgramClient {
	if model == "" {
		model = "aura-2-thalia-en"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DeepgramClient{apiKey: apiKey, model: model, sampleRate: deepgramSampleRate, encoding: "linear16", logger: logger}
}

// Synthesize speaks text over the Deepgram websocket and returns the whole
// clip as a WAV file. Collection ends when the server confirms the flush, or
// after a short quiet period once audio has started.
func (d *DeepgramClient) Synthesize(ctx context.Context, text string) (Speech, error) {
	if d.apiKey == "" {
		return Speech{}, fmt.Errorf("deepgram: API key missing")
	}

	options := &clientinterfaces.WSSpeakOptions{
		Model:      d.model,
		Encoding:   d.encoding,
		SampleRate: d.sampleRate,
	}
	cb := newCollector()

	dg, err := speak.NewWSUsingCallback(ctx, d.apiKey, &clientinterfaces.ClientOptions{}, options, cb)
	if err != nil {
		return Speech{}, fmt.Errorf("deepgram: create ws client: %w", err)
	}
	defer dg.Stop()

	if ok := dg.Connect(); !ok {
		return Speech{}, fmt.Errorf("deepgram: connect failed")
	}
	if err := dg.SpeakWithText(text); err != nil {
		return Speech{}, fmt.Errorf("deepgram: speak text: %w", err)
	}
	if err := dg.Flush(); err != nil {
		d.logger.Debug("deepgram flush error", zap.Error(err))
	}

	pcm, err := cb.wait(ctx, deepgramIdleWindow, deepgramDeadline)
	if err != nil {
		return Speech{}, err
	}
	if len(pcm) == 0 {
		return Speech{}, fmt.Errorf("deepgram: no audio received")
	}
	return Speech{Audio: audio.EncodeWAV(pcm, audio.PCM16Mono(d.sampleRate)), Format: "wav"}, nil
}

// collector implements the speak callback and gathers binary audio frames.
type collector struct {
	mu       sync.Mutex
	buf      []byte
	lastRecv time.Time
	err      error
	flushed  chan struct{}
	once     sync.Once
}

func newCollector() *collector {
	return &collector{flushed: make(chan struct{})}
}

func (c *collector) finish() { c.once.Do(func() { close(c.flushed) }) }

// wait blocks until the stream is flushed, goes idle after audio, hits the
// deadline or ctx ends.
func (c *collector) wait(ctx context.Context, idle, deadline time.Duration) ([]byte, error) {
	ticker := time.NewTicker(idle / 8)
	defer ticker.Stop()
	timeout := time.NewTimer(deadline)
	defer timeout.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-c.flushed:
			return c.result()
		case <-timeout.C:
			return c.result()
		case <-ticker.C:
			c.mu.Lock()
			quiet := !c.lastRecv.IsZero() && time.Since(c.lastRecv) > idle
			c.mu.Unlock()
			if quiet {
				return c.result()
			}
		}
	}
}

func (c *collector) result() ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil && len(c.buf) == 0 {
		return nil, c.err
	}
	return c.buf, nil
}

func (c *collector) Open(*msginterfaces.OpenResponse) error         { return nil }
func (c *collector) Metadata(*msginterfaces.MetadataResponse) error { return nil }
func (c *collector) Clear(*msginterfaces.ClearedResponse) error     { return nil }
func (c *collector) Warning(*msginterfaces.WarningResponse) error   { return nil }
func (c *collector) UnhandledEvent([]byte) error                    { return nil }

func (c *collector) Flush(*msginterfaces.FlushedResponse) error {
	c.finish()
	return nil
}

func (c *collector) Close(*msginterfaces.CloseResponse) error {
	c.finish()
	return nil
}

func (c *collector) Error(e *msginterfaces.ErrorResponse) error {
	c.mu.Lock()
	c.err = fmt.Errorf("deepgram: %+v", e)
	c.mu.Unlock()
	c.finish()
	return nil
}

func (c *collector) Binary(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	c.mu.Lock()
	c.buf = append(c.buf, data...)
	c.lastRecv = time.Now()
	c.mu.Unlock()
	return nil
}
