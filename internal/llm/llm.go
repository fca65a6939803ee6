// Package llm holds the language-model clients used to generate replies.
package llm

import "github.com/yasirabd/suarasemar/internal/conversation"

// Request is one generation call: the full message sequence, newest last.
type Request struct {
	Messages    []conversation.Message
	Temperature float64
}

// Reply is the generated text plus provider metadata such as token counts
// and latency.
type Reply struct {
	Text     string
	Metadata map[string]any
}
