package conversation

import (
	"slices"
	"sync"
)

// History is the ordered message sequence of one connection. It is the sole
// owner of the slice; callers only see copies. Safe for concurrent use.
//
// Invariants held after every mutation except Replace:
//   - at most one vision message, placed right after the last non-vision
//     system message (or at index 0 when there is none);
//   - at most one identity message, at index 1 behind a prompt or at index 0.
type History struct {
	mu       sync.RWMutex
	messages []Message
	identity string
	// gen counts Replace and Clear calls
	gen uint64
}

// NewHistory creates a history seeded with the instruction prompt, if any.
func NewHistory(prompt string) *History {
	h := &History{}
	if prompt != "" {
		h.messages = []Message{NewMessage(RoleSystem, prompt)}
	}
	return h
}

// Snapshot returns a copy of the current messages.
func (h *History) Snapshot() []Message {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return slices.Clone(h.messages)
}

// Len returns the number of messages.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.messages)
}

// Append adds messages to the end of the history.
func (h *History) Append(msgs ...Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.messages = append(h.messages, msgs...)
}

// Generation identifies the current conversation. It changes whenever the
// history is replaced or cleared, and only then.
func (h *History) Generation() uint64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.gen
}

// AppendAt appends msgs only if the history is still at generation gen. It
// reports whether the messages were added.
func (h *History) AppendAt(gen uint64, msgs ...Message) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.gen != gen {
		return false
	}
	h.messages = append(h.messages, msgs...)
	return true
}

// Replace swaps the whole history for msgs. Identity and vision rules are
// not re-applied; a loaded snapshot is taken as-is.
func (h *History) Replace(msgs []Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.messages = slices.Clone(msgs)
	h.gen++
}

// Clear drops every message except a leading prompt and re-applies the
// identity context.
func (h *History) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	var kept []Message
	if len(h.messages) > 0 && h.messages[0].IsPrompt() {
		kept = []Message{h.messages[0]}
	}
	h.messages = kept
	h.gen++
	h.applyIdentity()
}

// SetPrompt installs prompt as the leading instruction message, replacing
// the current one when index 0 already holds a prompt.
func (h *History) SetPrompt(prompt string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	msg := NewMessage(RoleSystem, prompt)
	if len(h.messages) > 0 && h.messages[0].IsPrompt() {
		h.messages[0] = msg
	} else {
		h.messages = slices.Insert(h.messages, 0, msg)
	}
	// a new prompt shifts identity off index 0
	h.applyIdentity()
}

// SetIdentity records the user's name and upserts the identity message.
// An empty name removes it.
func (h *History) SetIdentity(name string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.identity = name
	h.applyIdentity()
}

// UpsertVision places description as the single live vision message.
func (h *History) UpsertVision(description string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.messages = slices.DeleteFunc(h.messages, Message.IsVision)
	h.insertVision(VisionMessage(description))
}

// Recent returns the leading system message (if any) followed by at most n
// of the remaining messages, newest last. The history is not modified.
func (h *History) Recent(n int) []Message {
	h.mu.RLock()
	defer h.mu.RUnlock()
	var out []Message
	rest := h.messages
	if len(rest) > 0 && rest[0].Role == RoleSystem {
		out = append(out, rest[0])
		rest = rest[1:]
	}
	if len(rest) > n {
		rest = rest[len(rest)-n:]
	}
	return append(out, rest...)
}

func (h *History) applyIdentity() {
	h.messages = slices.DeleteFunc(h.messages, Message.IsIdentity)
	if h.identity != "" {
		idx := 0
		if len(h.messages) > 0 && h.messages[0].IsPrompt() {
			idx = 1
		}
		h.messages = slices.Insert(h.messages, idx, IdentityMessage(h.identity))
	}
	h.normalizeVision()
}

// normalizeVision moves an existing vision message back behind the last
// non-vision system message.
func (h *History) normalizeVision() {
	idx := slices.IndexFunc(h.messages, Message.IsVision)
	if idx < 0 {
		return
	}
	msg := h.messages[idx]
	h.messages = slices.Delete(h.messages, idx, idx+1)
	h.insertVision(msg)
}

func (h *History) insertVision(msg Message) {
	last := -1
	for i, m := range h.messages {
		if m.Role == RoleSystem && !m.IsVision() {
			last = i
		}
	}
	h.messages = slices.Insert(h.messages, last+1, msg)
}
