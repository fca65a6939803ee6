package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/yasirabd/suarasemar/internal/conversation"
)

func TestCerebras_NoKey(t *testing.T) {
	c := NewCerebrasClient("", "model")
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := c.Generate(ctx, Request{}); err == nil {
		t.Fatalf("expected error with missing key")
	}
}

func redirectTo(srv *httptest.Server) *http.Client {
	return &http.Client{Timeout: 1 * time.Second, Transport: roundTripperFunc(func(req *http.Request) (*http.Response, error) {
		req.URL.Scheme = "http"
		req.URL.Host = srv.Listener.Addr().String()
		return http.DefaultTransport.RoundTrip(req)
	})}
}

func TestCerebras_HTTPFailures(t *testing.T) {
	cases := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"status_non_2xx", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(500); _, _ = w.Write([]byte("oops")) }},
		{"bad_json", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); _, _ = w.Write([]byte("not-json")) }},
		{"empty_choices", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(200)
			_, _ = w.Write([]byte(`{"choices":[]}`))
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(tc.handler)
			defer srv.Close()
			c := NewCerebrasClient("key", "model")
			c.HTTPClient = redirectTo(srv)
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			if _, err := c.Generate(ctx, Request{Messages: []conversation.Message{{Role: conversation.RoleUser, Content: "hi"}}}); err == nil {
				t.Fatalf("expected error; got nil")
			}
		})
	}
}

func TestCerebras_SendsMessagesAndTemperature(t *testing.T) {
	var got chatCompletionsRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer key" {
			t.Errorf("missing bearer token")
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"model":"m","choices":[{"finish_reason":"stop","message":{"role":"assistant","content":" Hello! "}}],"usage":{"prompt_tokens":7,"completion_tokens":2,"total_tokens":9}}`))
	}))
	defer srv.Close()

	c := NewCerebrasClient("key", "m")
	c.HTTPClient = redirectTo(srv)
	reply, err := c.Generate(context.Background(), Request{
		Messages: []conversation.Message{
			conversation.NewMessage(conversation.RoleSystem, "prompt"),
			conversation.NewMessage(conversation.RoleUser, "Hi"),
		},
		Temperature: 0.7,
	})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if reply.Text != "Hello!" {
		t.Fatalf("reply text = %q", reply.Text)
	}
	if reply.Metadata["total_tokens"] != 9 {
		t.Fatalf("total_tokens = %v", reply.Metadata["total_tokens"])
	}
	if got.Temperature != 0.7 || got.Model != "m" || len(got.Messages) != 2 || got.Messages[0].Role != "system" {
		t.Fatalf("unexpected request %+v", got)
	}
}

type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }
