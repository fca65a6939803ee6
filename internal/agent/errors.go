package agent

import "errors"

// Validation failures. Their text is sent to the client on result envelopes.
var (
	ErrEmptyConversation = errors.New("empty conversation")
	ErrEmptyPrompt       = errors.New("System prompt cannot be empty")
	ErrVisionDisabled    = errors.New("Vision feature is not enabled")
	ErrSessionIDRequired = errors.New("Session ID is required")
	ErrSessionNotFound   = errors.New("Session not found")
	ErrNoDescriber       = errors.New("no image model configured")
)
