// Package transcript turns recorded utterances into text.
package transcript

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/yasirabd/suarasemar/internal/audio"
)

const (
	defaultBaseURL = "wss://streaming.assemblyai.com/v3/ws"
	// 50ms of 16-bit mono audio at 16kHz; the API accepts 50-1000ms frames.
	chunkDuration = 50 * time.Millisecond
)

// Result is the text of one utterance plus recognizer metadata.
type Result struct {
	Text     string
	Metadata map[string]any
}

// AssemblyAIService transcribes one complete utterance per call over the
// AssemblyAI streaming API.
type AssemblyAIService struct {
	apiKey  string
	baseURL string
	dialer  *websocket.Dialer
	logger  *zap.Logger
}

// AssemblyAI message types
type BeginMessage struct {
	Type      string `json:"type"`
	ID        string `json:"id"`
	ExpiresAt int64  `json:"expires_at"`
}

type TurnMessage struct {
	Type                string  `json:"type"`
	TurnOrder           int     `json:"turn_order"`
	Transcript          string  `json:"transcript"`
	EndOfTurn           bool    `json:"end_of_turn"`
	EndOfTurnConfidence float64 `json:"end_of_turn_confidence"`
	TurnFormatted       bool    `json:"turn_is_formatted"`
}

type TerminationMessage struct {
	Type                   string  `json:"type"`
	AudioDurationSeconds   float64 `json:"audio_duration_seconds"`
	SessionDurationSeconds float64 `json:"session_duration_seconds"`
}

type ErrorMessage struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

// NewAssemblyAIService creates a new transcription service
func NewAssemblyAIService(apiKey string, logger *zap.Logger) *AssemblyAIService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AssemblyAIService{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		dialer:  &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		logger:  logger,
	}
}

// WithBaseURL points the service at another streaming endpoint.
func (s *AssemblyAIService) WithBaseURL(u string) *AssemblyAIService {
	s.baseURL = u
	return s
}

// session collects turns until the server terminates the stream.
type session struct {
	turns      map[int]TurnMessage
	confidence float64
}

// Transcribe streams audio to the recognizer and returns the joined text of
// every turn it reported. WAV input is unwrapped; anything else is taken as
// 16kHz PCM16 mono.
func (s *AssemblyAIService) Transcribe(ctx context.Context, data []byte) (Result, error) {
	if s.apiKey == "" {
		return Result{}, fmt.Errorf("AssemblyAI API key is empty")
	}
	format, pcm, err := audio.DecodeUtterance(data)
	if err != nil {
		return Result{}, fmt.Errorf("decode audio: %w", err)
	}

	params := url.Values{}
	params.Set("sample_rate", strconv.Itoa(format.SampleRate))
	params.Set("format_turns", "true")
	params.Set("encoding", "pcm_s16le")
	headers := http.Header{"Authorization": {s.apiKey}}

	start := time.Now()
	conn, resp, err := s.dialer.DialContext(ctx, s.baseURL+"?"+params.Encode(), headers)
	if err != nil {
		if resp != nil {
			s.logger.Warn("assemblyai connection failed", zap.Int("status", resp.StatusCode))
		}
		return Result{}, fmt.Errorf("failed to connect to AssemblyAI: %w", err)
	}
	defer conn.Close()

	// unblock reads and writes when the caller gives up
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	done := make(chan error, 1)
	sess := &session{turns: make(map[int]TurnMessage)}
	go func() { done <- s.readUntilTermination(conn, sess) }()

	if err := s.sendAudio(conn, pcm, format); err != nil {
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		return Result{}, fmt.Errorf("send audio: %w", err)
	}

	if err := <-done; err != nil {
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		return Result{}, err
	}

	md := map[string]any{
		"audio_duration":   audio.Duration(pcm, format),
		"sample_rate_used": format.SampleRate,
		"processing_time":  time.Since(start).Seconds(),
	}
	if sess.confidence > 0 {
		md["confidence"] = sess.confidence
	}
	return Result{Text: sess.text(), Metadata: md}, nil
}

func (s *AssemblyAIService) sendAudio(conn *websocket.Conn, pcm []byte, f audio.Format) error {
	chunk := int(chunkDuration.Seconds() * float64(f.SampleRate*f.BitsPerSample/8))
	if chunk <= 0 {
		chunk = len(pcm)
	}
	for off := 0; off < len(pcm); off += chunk {
		end := min(off+chunk, len(pcm))
		if err := conn.WriteMessage(websocket.BinaryMessage, pcm[off:end]); err != nil {
			return err
		}
	}
	return conn.WriteJSON(map[string]string{"type": "Terminate"})
}

func (s *AssemblyAIService) readUntilTermination(conn *websocket.Conn, sess *session) error {
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return nil
			}
			return fmt.Errorf("read transcript: %w", err)
		}
		var base struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(message, &base); err != nil {
			s.logger.Debug("unparseable assemblyai message", zap.Error(err))
			continue
		}
		switch base.Type {
		case "Begin":
			var msg BeginMessage
			if err := json.Unmarshal(message, &msg); err == nil {
				s.logger.Debug("assemblyai session began", zap.String("id", msg.ID))
			}
		case "Turn":
			var msg TurnMessage
			if err := json.Unmarshal(message, &msg); err != nil {
				return fmt.Errorf("decode turn: %w", err)
			}
			sess.add(msg)
		case "Termination":
			var msg TerminationMessage
			if err := json.Unmarshal(message, &msg); err == nil {
				s.logger.Debug("assemblyai session terminated",
					zap.Float64("audio_duration", msg.AudioDurationSeconds),
					zap.Float64("session_duration", msg.SessionDurationSeconds))
			}
			return nil
		case "Error":
			var msg ErrorMessage
			_ = json.Unmarshal(message, &msg)
			return errors.New("assemblyai: " + msg.Error)
		default:
			s.logger.Debug("unknown assemblyai message", zap.String("type", base.Type))
		}
	}
}

// add records the newest version of a turn. A formatted end-of-turn message
// is final and is not replaced by later partials.
func (s *session) add(m TurnMessage) {
	prev, ok := s.turns[m.TurnOrder]
	if ok && prev.EndOfTurn && prev.TurnFormatted && !(m.EndOfTurn && m.TurnFormatted) {
		return
	}
	s.turns[m.TurnOrder] = m
	if m.EndOfTurn && m.EndOfTurnConfidence > 0 {
		s.confidence = m.EndOfTurnConfidence
	}
}

func (s *session) text() string {
	orders := make([]int, 0, len(s.turns))
	for o := range s.turns {
		orders = append(orders, o)
	}
	sort.Ints(orders)
	parts := make([]string, 0, len(orders))
	for _, o := range orders {
		if t := strings.TrimSpace(s.turns[o].Transcript); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}
