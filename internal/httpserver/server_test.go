package httpserver

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeVoice struct {
	active int
	hits   int
}

func (f *fakeVoice) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.hits++
	w.WriteHeader(http.StatusTeapot)
}

func (f *fakeVoice) Active() int { return f.active }

func TestServer_Healthz(t *testing.T) {
	srv := New(&fakeVoice{}, Providers{}, nil)
	r := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	srv.Router.ServeHTTP(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if w.Body.String() != "ok" {
		t.Fatalf("unexpected body %q", w.Body.String())
	}
}

func TestServer_Health(t *testing.T) {
	providers := Providers{Transcription: "assemblyai", LLM: "cerebras", TTS: "deepgram", Store: "file"}
	srv := New(&fakeVoice{active: 3}, providers, nil)
	r := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	srv.Router.ServeHTTP(w, r)
	require.Equal(t, http.StatusOK, w.Code)

	var got healthReport
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "ok", got.Status)
	assert.Equal(t, 3, got.ActiveConnections)
	assert.Equal(t, providers, got.Providers)
}

func TestServer_WSRoute(t *testing.T) {
	v := &fakeVoice{}
	srv := New(v, Providers{}, nil)
	r := httptest.NewRequest(http.MethodGet, "/ws", nil)
	w := httptest.NewRecorder()
	srv.Router.ServeHTTP(w, r)
	assert.Equal(t, http.StatusTeapot, w.Code)
	assert.Equal(t, 1, v.hits)
}

func TestServer_UnknownRoute(t *testing.T) {
	srv := New(&fakeVoice{}, Providers{}, nil)
	r := httptest.NewRequest(http.MethodGet, "/call", nil)
	w := httptest.NewRecorder()
	srv.Router.ServeHTTP(w, r)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
