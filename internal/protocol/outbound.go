package protocol

import (
	"encoding/base64"
	"time"

	"github.com/yasirabd/suarasemar/internal/store"
)

// Outbound message types.
const (
	TypeTranscription          = "transcription"
	TypeLLMResponse            = "llm_response"
	TypeTTSStart               = "tts_start"
	TypeTTSChunk               = "tts_chunk"
	TypeTTSEnd                 = "tts_end"
	TypeStatus                 = "status"
	TypeError                  = "error"
	TypeSystemPrompt           = "system_prompt"
	TypeSystemPromptUpdated    = "system_prompt_updated"
	TypeUserProfile            = "user_profile"
	TypeUserProfileUpdated     = "user_profile_updated"
	TypeVisionSettings         = "vision_settings"
	TypeVisionSettingsUpdated  = "vision_settings_updated"
	TypeVisionFileUploadResult = "vision_file_upload_result"
	TypeVisionProcessing       = "vision_processing"
	TypeVisionReady            = "vision_ready"
	TypeSaveSessionResult      = "save_session_result"
	TypeLoadSessionResult      = "load_session_result"
	TypeListSessionsResult     = "list_sessions_result"
	TypeDeleteSessionResult    = "delete_session_result"
)

// Status values carried by status envelopes.
const (
	StatusConnected        = "connected"
	StatusAudioProcessing  = "audio_processing"
	StatusTranscribing     = "transcribing"
	StatusProcessingLLM    = "processing_llm"
	StatusGeneratingSpeech = "generating_speech"
	StatusInterrupted      = "interrupted"
	StatusHistoryCleared   = "history_cleared"
)

// Now stamps outbound envelopes.
var Now = time.Now

// Outbound is any server envelope.
type Outbound interface {
	Kind() string
}

// Header is embedded in every outbound envelope.
type Header struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
}

func (h Header) Kind() string { return h.Type }

func header(t string) Header { return Header{Type: t, Timestamp: Now()} }

// Event is an envelope with no payload.
type Event struct {
	Header
}

type Status struct {
	Header
	Status string         `json:"status"`
	Data   map[string]any `json:"data"`
}

type Error struct {
	Header
	Error   string         `json:"error"`
	Details map[string]any `json:"details"`
}

// Text carries transcription and llm_response payloads.
type Text struct {
	Header
	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata"`
}

type TTSChunk struct {
	Header
	AudioChunk string `json:"audio_chunk"`
	Format     string `json:"format"`
}

// Result acknowledges an update or upload.
type Result struct {
	Header
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

type SystemPrompt struct {
	Header
	Prompt string `json:"prompt"`
}

type UserProfile struct {
	Header
	Name string `json:"name"`
}

type VisionSettings struct {
	Header
	Enabled bool `json:"enabled"`
}

type VisionProcessing struct {
	Header
	Status string `json:"status"`
}

type VisionReady struct {
	Header
	Context string `json:"context"`
}

type SessionResult struct {
	Header
	Success      bool   `json:"success"`
	SessionID    string `json:"session_id,omitempty"`
	Title        string `json:"title,omitempty"`
	MessageCount *int   `json:"message_count,omitempty"`
	Error        string `json:"error,omitempty"`
}

type SessionList struct {
	Header
	Sessions []store.SessionSummary `json:"sessions"`
}

func NewStatus(status string, data map[string]any) Status {
	if data == nil {
		data = map[string]any{}
	}
	return Status{Header: header(TypeStatus), Status: status, Data: data}
}

func NewError(msg string, details map[string]any) Error {
	if details == nil {
		details = map[string]any{}
	}
	return Error{Header: header(TypeError), Error: msg, Details: details}
}

func NewTranscription(text string, metadata map[string]any) Text {
	if metadata == nil {
		metadata = map[string]any{}
	}
	return Text{Header: header(TypeTranscription), Text: text, Metadata: metadata}
}

func NewLLMResponse(text string, metadata map[string]any) Text {
	if metadata == nil {
		metadata = map[string]any{}
	}
	return Text{Header: header(TypeLLMResponse), Text: text, Metadata: metadata}
}

func NewTTSStart() Event { return Event{Header: header(TypeTTSStart)} }

// NewTTSChunk base64-encodes one complete synthesized utterance.
func NewTTSChunk(audio []byte, format string) TTSChunk {
	return TTSChunk{
		Header:     header(TypeTTSChunk),
		AudioChunk: base64.StdEncoding.EncodeToString(audio),
		Format:     format,
	}
}

func NewTTSEnd() Event { return Event{Header: header(TypeTTSEnd)} }
func NewPing() Event   { return Event{Header: header(TypePing)} }
func NewPong() Event   { return Event{Header: header(TypePong)} }

// NewResult builds a success/failure acknowledgement of the given type.
// A non-nil err marks the result failed and carries its message.
func NewResult(typ string, err error) Result {
	r := Result{Header: header(typ), Success: err == nil}
	if err != nil {
		r.Error = err.Error()
	}
	return r
}

func NewSystemPrompt(prompt string) SystemPrompt {
	return SystemPrompt{Header: header(TypeSystemPrompt), Prompt: prompt}
}

func NewUserProfile(name string) UserProfile {
	return UserProfile{Header: header(TypeUserProfile), Name: name}
}

func NewVisionSettings(enabled bool) VisionSettings {
	return VisionSettings{Header: header(TypeVisionSettings), Enabled: enabled}
}

func NewVisionProcessing() VisionProcessing {
	return VisionProcessing{Header: header(TypeVisionProcessing), Status: "Analyzing image..."}
}

func NewVisionReady(description string) VisionReady {
	return VisionReady{Header: header(TypeVisionReady), Context: description}
}

// NewSessionResult builds a save/load/delete result of the given type.
func NewSessionResult(typ string, success bool, sessionID string) SessionResult {
	return SessionResult{Header: header(typ), Success: success, SessionID: sessionID}
}

func NewSessionList(sessions []store.SessionSummary) SessionList {
	if sessions == nil {
		sessions = []store.SessionSummary{}
	}
	return SessionList{Header: header(TypeListSessionsResult), Sessions: sessions}
}
