package ws

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/yasirabd/suarasemar/internal/agent"
	"github.com/yasirabd/suarasemar/internal/llm"
	"github.com/yasirabd/suarasemar/internal/store"
	"github.com/yasirabd/suarasemar/internal/transcript"
	"github.com/yasirabd/suarasemar/internal/tts"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m, goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"))
}

type stubTranscriber struct{ text string }

func (s stubTranscriber) Transcribe(context.Context, []byte) (transcript.Result, error) {
	return transcript.Result{Text: s.text}, nil
}

type stubLLM struct{}

func (stubLLM) Generate(_ context.Context, req llm.Request) (llm.Reply, error) {
	return llm.Reply{Text: "Hello!"}, nil
}

type stubSynth struct{}

func (stubSynth) Synthesize(context.Context, string) (tts.Speech, error) {
	return tts.Speech{Audio: []byte("pcm"), Format: "wav"}, nil
}

func newTestRouter(t *testing.T, opts Options) (*Router, *httptest.Server) {
	t.Helper()
	return newTestRouterOn(t, opts, store.NewMemoryStore())
}

func newTestRouterOn(t *testing.T, opts Options, mem store.Store) (*Router, *httptest.Server) {
	t.Helper()
	opts.Services = agent.Services{
		Transcriber: stubTranscriber{text: "Hi"},
		LLM:         stubLLM{},
		Synthesizer: stubSynth{},
		Settings:    store.NewSettings(mem),
		Sessions:    store.NewSessions(mem),
	}
	r := NewRouter(opts)
	srv := httptest.NewServer(r)
	t.Cleanup(func() {
		r.Close()
		srv.Close()
	})
	return r, srv
}

func dial(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	u := "ws" + strings.TrimPrefix(srv.URL, "http") + "/" + query
	c, _, err := websocket.DefaultDialer.Dial(u, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

type envelope map[string]any

func (e envelope) typ() string {
	s, _ := e["type"].(string)
	return s
}

func read(t *testing.T, c *websocket.Conn) envelope {
	t.Helper()
	require.NoError(t, c.SetReadDeadline(time.Now().Add(2*time.Second)))
	var e envelope
	require.NoError(t, c.ReadJSON(&e))
	return e
}

// readUntil reads envelopes until one of type typ arrives and returns the
// types seen on the way, status envelopes excluded.
func readUntil(t *testing.T, c *websocket.Conn, typ string) (envelope, []string) {
	t.Helper()
	var seen []string
	for {
		e := read(t, c)
		if e.typ() != "status" {
			seen = append(seen, e.typ())
		}
		if e.typ() == typ {
			return e, seen
		}
	}
}

func send(t *testing.T, c *websocket.Conn, v any) {
	t.Helper()
	require.NoError(t, c.WriteJSON(v))
}

func TestRouter_ConnectedSnapshot(t *testing.T) {
	_, srv := newTestRouter(t, Options{})
	c := dial(t, srv, "")

	e := read(t, c)
	assert.Equal(t, "status", e.typ())
	assert.Equal(t, "connected", e["status"])
	data := e["data"].(map[string]any)
	assert.Equal(t, false, data["vision_enabled"])
	assert.NotEmpty(t, e["timestamp"])
}

func TestRouter_CorruptSettingsKeepConnection(t *testing.T) {
	mem := store.NewMemoryStore()
	require.NoError(t, mem.Save(context.Background(), "settings/system_prompt.json", []byte("not json")))
	_, srv := newTestRouterOn(t, Options{}, mem)
	c := dial(t, srv, "")

	e := read(t, c)
	assert.Equal(t, "error", e.typ())
	assert.Contains(t, e["error"], "load system prompt")
	assert.Equal(t, "connected", read(t, c)["status"])

	send(t, c, map[string]any{"type": "ping"})
	assert.Equal(t, "pong", read(t, c).typ())
}

func TestRouter_AudioTurnOrder(t *testing.T) {
	_, srv := newTestRouter(t, Options{})
	c := dial(t, srv, "")
	read(t, c)

	send(t, c, map[string]any{"type": "audio", "audio_data": base64.StdEncoding.EncodeToString([]byte("utterance"))})
	_, seen := readUntil(t, c, "tts_end")
	assert.Equal(t, []string{"transcription", "llm_response", "tts_start", "tts_chunk", "tts_end"}, seen)
}

func TestRouter_PingPongAndUnknown(t *testing.T) {
	_, srv := newTestRouter(t, Options{})
	c := dial(t, srv, "")
	read(t, c)

	send(t, c, map[string]any{"type": "ping"})
	assert.Equal(t, "pong", read(t, c).typ())

	send(t, c, map[string]any{"type": "pong"})
	send(t, c, map[string]any{"type": "dance"})
	e := read(t, c)
	assert.Equal(t, "error", e.typ())
	assert.Equal(t, "Unknown message type: dance", e["error"])
}

func TestRouter_InvalidPayloadKeepsConnection(t *testing.T) {
	_, srv := newTestRouter(t, Options{})
	c := dial(t, srv, "")
	read(t, c)

	send(t, c, map[string]any{"type": "silent_followup", "tier": 7})
	assert.Equal(t, "error", read(t, c).typ())

	send(t, c, map[string]any{"type": "get_system_prompt"})
	e := read(t, c)
	assert.Equal(t, "system_prompt", e.typ())
	assert.Equal(t, store.DefaultPrompt, e["prompt"])
}

func TestRouter_MalformedFrameClosesConnection(t *testing.T) {
	r, srv := newTestRouter(t, Options{})
	c := dial(t, srv, "")
	read(t, c)

	require.NoError(t, c.WriteMessage(websocket.TextMessage, []byte("{not json")))
	require.NoError(t, c.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := c.ReadMessage()
	require.Error(t, err)
	assert.Eventually(t, func() bool { return r.Active() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestRouter_IdlePing(t *testing.T) {
	_, srv := newTestRouter(t, Options{IdleTimeout: 50 * time.Millisecond})
	c := dial(t, srv, "")
	read(t, c)
	assert.Equal(t, "ping", read(t, c).typ())
	assert.Equal(t, "ping", read(t, c).typ())
}

func TestRouter_Auth(t *testing.T) {
	_, srv := newTestRouter(t, Options{Password: "secret"})
	u := "ws" + strings.TrimPrefix(srv.URL, "http") + "/"

	_, resp, err := websocket.DefaultDialer.Dial(u, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	c := dial(t, srv, "?password=secret")
	assert.Equal(t, "status", read(t, c).typ())
}

func TestRouter_ConnectionsAreIndependent(t *testing.T) {
	r, srv := newTestRouter(t, Options{})
	a := dial(t, srv, "")
	b := dial(t, srv, "")
	read(t, a)
	read(t, b)
	assert.Equal(t, 2, r.Active())

	send(t, a, map[string]any{"type": "update_user_profile", "name": "Ana"})
	e, _ := readUntil(t, a, "user_profile_updated")
	assert.Equal(t, true, e["success"])

	send(t, b, map[string]any{"type": "clear_history"})
	st := read(t, b)
	assert.Equal(t, "history_cleared", st["status"])

	require.NoError(t, a.Close())
	assert.Eventually(t, func() bool { return r.Active() == 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestRouter_SessionRoundTrip(t *testing.T) {
	_, srv := newTestRouter(t, Options{})
	c := dial(t, srv, "")
	read(t, c)

	send(t, c, map[string]any{"type": "save_session"})
	e, _ := readUntil(t, c, "save_session_result")
	assert.Equal(t, false, e["success"])
	assert.Equal(t, "empty conversation", e["error"])

	send(t, c, map[string]any{"type": "audio", "audio_data": base64.StdEncoding.EncodeToString([]byte("x"))})
	readUntil(t, c, "tts_end")

	send(t, c, map[string]any{"type": "save_session", "title": "chat"})
	e, _ = readUntil(t, c, "save_session_result")
	require.Equal(t, true, e["success"])
	id := e["session_id"].(string)

	send(t, c, map[string]any{"type": "list_sessions"})
	e, _ = readUntil(t, c, "list_sessions_result")
	raw, _ := json.Marshal(e["sessions"])
	assert.Contains(t, string(raw), id)

	send(t, c, map[string]any{"type": "load_session", "session_id": id})
	e, _ = readUntil(t, c, "load_session_result")
	assert.Equal(t, true, e["success"])
	assert.Equal(t, "chat", e["title"])
}

func TestAuthorized(t *testing.T) {
	if !Authorized(nil, "") {
		t.Fatalf("expected true when expected empty")
	}
	r := httptest.NewRequest(http.MethodGet, "/?password=secret", nil)
	if !Authorized(r, "secret") {
		t.Fatalf("expected true with query password")
	}
	r2 := httptest.NewRequest(http.MethodGet, "/", nil)
	r2.Header.Set("X-Auth-Token", "tok")
	if !Authorized(r2, "tok") {
		t.Fatalf("expected true with X-Auth-Token")
	}
	r3 := httptest.NewRequest(http.MethodGet, "/", nil)
	r3.Header.Set("Authorization", "bearer abc")
	if !Authorized(r3, "abc") {
		t.Fatalf("expected true with lowercase bearer prefix")
	}
}

func TestAuthorized_NegativeCases(t *testing.T) {
	r1 := httptest.NewRequest(http.MethodGet, "/?password=wrong", nil)
	if Authorized(r1, "secret") {
		t.Fatalf("expected false with wrong query token")
	}
	r2 := httptest.NewRequest(http.MethodGet, "/", nil)
	r2.Header.Set("X-Auth-Token", "nope")
	if Authorized(r2, "secret") {
		t.Fatalf("expected false with wrong X-Auth-Token")
	}
	r3 := httptest.NewRequest(http.MethodGet, "/", nil)
	r3.Header.Set("Authorization", "Bearer nope")
	if Authorized(r3, "secret") {
		t.Fatalf("expected false with wrong bearer token")
	}
	if Authorized(nil, "secret") {
		t.Fatalf("expected false for nil request")
	}
}
