// Package protocol defines the JSON envelopes exchanged over the voice
// websocket. Inbound frames decode once into a closed set of variants;
// outbound envelopes are built with the constructors in outbound.go.
package protocol

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Inbound message types.
const (
	TypeAudio                = "audio"
	TypeVisionFileUpload     = "vision_file_upload"
	TypeInterrupt            = "interrupt"
	TypeClearHistory         = "clear_history"
	TypeGreeting             = "greeting"
	TypeSilentFollowup       = "silent_followup"
	TypeGetSystemPrompt      = "get_system_prompt"
	TypeUpdateSystemPrompt   = "update_system_prompt"
	TypeGetUserProfile       = "get_user_profile"
	TypeUpdateUserProfile    = "update_user_profile"
	TypeGetVisionSettings    = "get_vision_settings"
	TypeUpdateVisionSettings = "update_vision_settings"
	TypeSaveSession          = "save_session"
	TypeLoadSession          = "load_session"
	TypeListSessions         = "list_sessions"
	TypeDeleteSession        = "delete_session"
	TypePing                 = "ping"
	TypePong                 = "pong"
)

var (
	// ErrMalformed marks a frame that is not a JSON object. The connection
	// cannot be trusted after one.
	ErrMalformed = errors.New("malformed envelope")
	// ErrInvalidPayload marks a well-formed envelope whose fields cannot be used.
	ErrInvalidPayload = errors.New("invalid payload")
)

// Inbound is one decoded client envelope.
type Inbound interface {
	inboundType() string
}

type (
	Audio struct{ Data []byte }
	// VisionUpload carries an image; MIME is set when the client sent a data URL.
	VisionUpload struct {
		Image []byte
		MIME  string
	}
	Interrupt            struct{}
	ClearHistory         struct{}
	Greeting             struct{}
	SilentFollowup       struct{ Tier int }
	GetSystemPrompt      struct{}
	UpdateSystemPrompt   struct{ Prompt string }
	GetUserProfile       struct{}
	UpdateUserProfile    struct{ Name string }
	GetVisionSettings    struct{}
	UpdateVisionSettings struct{ Enabled bool }
	SaveSession          struct{ Title, SessionID string }
	LoadSession          struct{ SessionID string }
	ListSessions         struct{}
	DeleteSession        struct{ SessionID string }
	Ping                 struct{}
	Pong                 struct{}
	// Unknown is any envelope whose type tag is not recognised.
	Unknown struct{ Type string }
)

func (Audio) inboundType() string                { return TypeAudio }
func (VisionUpload) inboundType() string         { return TypeVisionFileUpload }
func (Interrupt) inboundType() string            { return TypeInterrupt }
func (ClearHistory) inboundType() string         { return TypeClearHistory }
func (Greeting) inboundType() string             { return TypeGreeting }
func (SilentFollowup) inboundType() string       { return TypeSilentFollowup }
func (GetSystemPrompt) inboundType() string      { return TypeGetSystemPrompt }
func (UpdateSystemPrompt) inboundType() string   { return TypeUpdateSystemPrompt }
func (GetUserProfile) inboundType() string       { return TypeGetUserProfile }
func (UpdateUserProfile) inboundType() string    { return TypeUpdateUserProfile }
func (GetVisionSettings) inboundType() string    { return TypeGetVisionSettings }
func (UpdateVisionSettings) inboundType() string { return TypeUpdateVisionSettings }
func (SaveSession) inboundType() string          { return TypeSaveSession }
func (LoadSession) inboundType() string          { return TypeLoadSession }
func (ListSessions) inboundType() string         { return TypeListSessions }
func (DeleteSession) inboundType() string        { return TypeDeleteSession }
func (Ping) inboundType() string                 { return TypePing }
func (Pong) inboundType() string                 { return TypePong }
func (u Unknown) inboundType() string            { return u.Type }

// TypeOf returns the wire type tag of m.
func TypeOf(m Inbound) string { return m.inboundType() }

type rawInbound struct {
	Type      string  `json:"type"`
	AudioData string  `json:"audio_data"`
	ImageData string  `json:"image_data"`
	Tier      *int    `json:"tier"`
	Prompt    string  `json:"prompt"`
	Name      string  `json:"name"`
	Enabled   bool    `json:"enabled"`
	Title     *string `json:"title"`
	SessionID *string `json:"session_id"`
}

// Decode parses one client frame. A frame that is not a JSON object yields
// ErrMalformed; unusable field values yield ErrInvalidPayload together with
// the Unknown variant carrying the frame's type.
func Decode(data []byte) (Inbound, error) {
	var raw rawInbound
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	switch raw.Type {
	case TypeAudio:
		b, err := decodeBase64(raw.AudioData)
		if err != nil {
			return Unknown{Type: raw.Type}, fmt.Errorf("%w: audio_data: %v", ErrInvalidPayload, err)
		}
		if len(b) == 0 {
			return Unknown{Type: raw.Type}, fmt.Errorf("%w: audio_data is empty", ErrInvalidPayload)
		}
		return Audio{Data: b}, nil
	case TypeVisionFileUpload:
		img, mime, err := DecodeImage(raw.ImageData)
		if err != nil {
			return Unknown{Type: raw.Type}, fmt.Errorf("%w: image_data: %v", ErrInvalidPayload, err)
		}
		return VisionUpload{Image: img, MIME: mime}, nil
	case TypeInterrupt:
		return Interrupt{}, nil
	case TypeClearHistory:
		return ClearHistory{}, nil
	case TypeGreeting:
		return Greeting{}, nil
	case TypeSilentFollowup:
		tier := 0
		if raw.Tier != nil {
			tier = *raw.Tier
		}
		if tier < 0 || tier > 2 {
			return Unknown{Type: raw.Type}, fmt.Errorf("%w: tier %d out of range 0-2", ErrInvalidPayload, tier)
		}
		return SilentFollowup{Tier: tier}, nil
	case TypeGetSystemPrompt:
		return GetSystemPrompt{}, nil
	case TypeUpdateSystemPrompt:
		return UpdateSystemPrompt{Prompt: raw.Prompt}, nil
	case TypeGetUserProfile:
		return GetUserProfile{}, nil
	case TypeUpdateUserProfile:
		return UpdateUserProfile{Name: strings.TrimSpace(raw.Name)}, nil
	case TypeGetVisionSettings:
		return GetVisionSettings{}, nil
	case TypeUpdateVisionSettings:
		return UpdateVisionSettings{Enabled: raw.Enabled}, nil
	case TypeSaveSession:
		return SaveSession{Title: deref(raw.Title), SessionID: deref(raw.SessionID)}, nil
	case TypeLoadSession:
		return LoadSession{SessionID: deref(raw.SessionID)}, nil
	case TypeListSessions:
		return ListSessions{}, nil
	case TypeDeleteSession:
		return DeleteSession{SessionID: deref(raw.SessionID)}, nil
	case TypePing:
		return Ping{}, nil
	case TypePong:
		return Pong{}, nil
	default:
		return Unknown{Type: raw.Type}, nil
	}
}

// DecodeImage accepts raw base64 or a "data:<mime>;base64,<payload>" URL.
func DecodeImage(s string) ([]byte, string, error) {
	var mime string
	if rest, ok := strings.CutPrefix(s, "data:"); ok {
		header, payload, found := strings.Cut(rest, ",")
		if !found {
			return nil, "", errors.New("data URL without payload")
		}
		mime, _, _ = strings.Cut(header, ";")
		s = payload
	}
	b, err := decodeBase64(s)
	if err != nil {
		return nil, "", err
	}
	if len(b) == 0 {
		return nil, "", errors.New("empty image")
	}
	return b, mime, nil
}

func decodeBase64(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	b, err := base64.StdEncoding.DecodeString(s)
	if err == nil {
		return b, nil
	}
	if rb, rerr := base64.RawStdEncoding.DecodeString(s); rerr == nil {
		return rb, nil
	}
	return nil, err
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}
