package tts

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Without an API key Synthesize should error before dialing.
func TestDeepgram_Synthesize_NoKey(t *testing.T) {
	d := NewDeepgramClient("", "", nil)
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err := d.Synthesize(ctx, "hello")
	require.Error(t, err)
}

func TestCollector_StopsOnFlush(t *testing.T) {
	c := newCollector()
	require.NoError(t, c.Binary([]byte{1, 2}))
	require.NoError(t, c.Binary(nil))
	require.NoError(t, c.Binary([]byte{3, 4}))
	require.NoError(t, c.Flush(nil))

	pcm, err := c.wait(context.Background(), time.Hour, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 4}, pcm)
}

func TestCollector_StopsWhenQuiet(t *testing.T) {
	c := newCollector()
	require.NoError(t, c.Binary([]byte{1, 2}))

	start := time.Now()
	pcm, err := c.wait(context.Background(), 40*time.Millisecond, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2}, pcm)
	assert.Less(t, time.Since(start), time.Second)
}

func TestCollector_ErrorWithoutAudio(t *testing.T) {
	c := newCollector()
	require.NoError(t, c.Error(nil))
	_, err := c.wait(context.Background(), time.Hour, time.Hour)
	assert.Error(t, err)
}

func TestCollector_ContextCancel(t *testing.T) {
	c := newCollector()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.wait(ctx, time.Hour, time.Hour)
	assert.True(t, errors.Is(err, context.Canceled))
}
