// Package conversation holds the message model and the per-connection
// conversation history with its context injection rules.
package conversation

import "strings"

// Role identifies the sender of a conversation message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

const (
	identityPrefix = "USER CONTEXT:"
	visionPrefix   = "[VISION CONTEXT]:"
)

// Message is a single role-tagged entry of the history.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// NewMessage creates a Message with the given role and content.
func NewMessage(role Role, content string) Message {
	return Message{Role: role, Content: content}
}

// IdentityMessage builds the system message carrying the user's name.
func IdentityMessage(name string) Message {
	return NewMessage(RoleSystem, identityPrefix+" The user's name is "+name+".")
}

// VisionMessage builds the system message carrying an image description.
func VisionMessage(description string) Message {
	return NewMessage(RoleSystem, visionPrefix+" "+description)
}

// IsIdentity reports whether m is an identity context message.
func (m Message) IsIdentity() bool {
	return m.Role == RoleSystem && strings.HasPrefix(m.Content, identityPrefix)
}

// IsVision reports whether m is a vision context message.
func (m Message) IsVision() bool {
	return m.Role == RoleSystem && strings.HasPrefix(m.Content, visionPrefix)
}

// IsPrompt reports whether m can act as the durable instruction prompt:
// a system message that is neither identity nor vision context.
func (m Message) IsPrompt() bool {
	return m.Role == RoleSystem && !m.IsIdentity() && !m.IsVision()
}
