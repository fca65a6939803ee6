// Package tts renders reply text as audio.
package tts

// Speech is one complete synthesized clip.
type Speech struct {
	Audio  []byte
	Format string
}
