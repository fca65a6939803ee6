// Package audio reads and writes the WAV containers that carry utterances in
// and synthesized speech out.
package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

// DefaultSampleRate is assumed for headerless PCM.
const DefaultSampleRate = 16000

const formatPCM = 1

var ErrNotWAV = errors.New("audio: not a RIFF/WAVE container")

// Format describes linear PCM samples.
type Format struct {
	SampleRate    int
	Channels      int
	BitsPerSample int
}

// PCM16Mono is the format the recognizer consumes.
func PCM16Mono(rate int) Format {
	return Format{SampleRate: rate, Channels: 1, BitsPerSample: 16}
}

// ParseWAV returns the format and raw sample bytes of a PCM WAV file.
func ParseWAV(b []byte) (Format, []byte, error) {
	if len(b) < 12 || string(b[0:4]) != "RIFF" || string(b[8:12]) != "WAVE" {
		return Format{}, nil, ErrNotWAV
	}
	var (
		f       Format
		haveFmt bool
	)
	off := 12
	for off+8 <= len(b) {
		id := string(b[off : off+4])
		size := int(binary.LittleEndian.Uint32(b[off+4 : off+8]))
		body := off + 8
		end := body + size
		if size < 0 || end > len(b) {
			// browsers sometimes write a streaming size; take what is there
			end = len(b)
		}
		switch id {
		case "fmt ":
			if end-body < 16 {
				return Format{}, nil, fmt.Errorf("audio: short fmt chunk (%d bytes)", end-body)
			}
			tag := binary.LittleEndian.Uint16(b[body : body+2])
			if tag != formatPCM && tag != 0xFFFE {
				return Format{}, nil, fmt.Errorf("audio: unsupported wav format tag %d", tag)
			}
			f.Channels = int(binary.LittleEndian.Uint16(b[body+2 : body+4]))
			f.SampleRate = int(binary.LittleEndian.Uint32(b[body+4 : body+8]))
			f.BitsPerSample = int(binary.LittleEndian.Uint16(b[body+14 : body+16]))
			haveFmt = true
		case "data":
			if !haveFmt {
				return Format{}, nil, errors.New("audio: data chunk before fmt chunk")
			}
			return f, b[body:end], nil
		}
		off = end + size%2
	}
	return Format{}, nil, errors.New("audio: wav has no data chunk")
}

// EncodeWAV wraps pcm in a canonical 44-byte WAV header.
func EncodeWAV(pcm []byte, f Format) []byte {
	blockAlign := f.Channels * f.BitsPerSample / 8
	var buf bytes.Buffer
	buf.Grow(44 + len(pcm))
	buf.WriteString("RIFF")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(36+len(pcm)))
	buf.WriteString("WAVEfmt ")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(16))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(formatPCM))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(f.Channels))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(f.SampleRate))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(f.SampleRate*blockAlign))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(blockAlign))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(f.BitsPerSample))
	buf.WriteString("data")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(len(pcm)))
	buf.Write(pcm)
	return buf.Bytes()
}

// DecodeUtterance turns a client utterance into 16-bit little-endian mono PCM.
// Input without a RIFF header is taken as PCM16 mono at DefaultSampleRate.
func DecodeUtterance(b []byte) (Format, []byte, error) {
	f, pcm, err := ParseWAV(b)
	if errors.Is(err, ErrNotWAV) {
		return PCM16Mono(DefaultSampleRate), b, nil
	}
	if err != nil {
		return Format{}, nil, err
	}
	if f.BitsPerSample != 16 {
		return Format{}, nil, fmt.Errorf("audio: unsupported sample width %d bits", f.BitsPerSample)
	}
	if f.Channels > 1 {
		pcm = downmix16(pcm, f.Channels)
	}
	return PCM16Mono(f.SampleRate), pcm, nil
}

// downmix16 averages interleaved 16-bit channels into one.
func downmix16(pcm []byte, channels int) []byte {
	frame := 2 * channels
	out := make([]byte, 0, len(pcm)/channels)
	for i := 0; i+frame <= len(pcm); i += frame {
		var sum int
		for c := 0; c < channels; c++ {
			sum += int(int16(binary.LittleEndian.Uint16(pcm[i+2*c:])))
		}
		out = binary.LittleEndian.AppendUint16(out, uint16(int16(sum/channels)))
	}
	return out
}

// Duration reports how long pcm plays in format f, in seconds.
func Duration(pcm []byte, f Format) float64 {
	bps := f.SampleRate * f.Channels * f.BitsPerSample / 8
	if bps == 0 {
		return 0
	}
	return float64(len(pcm)) / float64(bps)
}
