package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

const (
	// BitsPerSample is the sample width of every [Recording].
	BitsPerSample = 16

	// SpeechSampleRate is the rate recognisers expect (whisper, Deepgram).
	SpeechSampleRate = 16000

	// DefaultSilenceRMS is the RMS energy below which a recording is treated
	// as silence. Typical speech at normal microphone gain is 1000–5000.
	DefaultSilenceRMS = 300.0
)

// ErrInvalidWAV is returned by [DecodeWAV] when the payload is not a 16-bit
// PCM RIFF/WAVE file.
var ErrInvalidWAV = errors.New("audio: invalid or unsupported WAV payload")

// Recording is a captured utterance as 16-bit signed little-endian PCM.
type Recording struct {
	// PCM holds interleaved samples.
	PCM []byte

	// SampleRate is the number of samples per second per channel.
	SampleRate int

	// Channels is 1 (mono) or 2 (stereo).
	Channels int
}

// DurationMs returns the length of the recording in milliseconds, or 0 for
// an invalid format.
func (r Recording) DurationMs() int64 {
	if r.SampleRate <= 0 || r.Channels <= 0 {
		return 0
	}
	bytesPerSec := int64(r.SampleRate * r.Channels * BitsPerSample / 8)
	return int64(len(r.PCM)) * 1000 / bytesPerSec
}

// Validate checks that the recording format is usable.
func (r Recording) Validate() error {
	if r.SampleRate <= 0 {
		return fmt.Errorf("audio: sample rate must be positive, got %d", r.SampleRate)
	}
	if r.Channels != 1 && r.Channels != 2 {
		return fmt.Errorf("audio: channels must be 1 or 2, got %d", r.Channels)
	}
	if len(r.PCM)%(2*r.Channels) != 0 {
		return fmt.Errorf("audio: PCM length %d is not a whole number of frames", len(r.PCM))
	}
	return nil
}

// EncodeWAV wraps the recording in a minimal 44-byte RIFF/WAVE header.
func EncodeWAV(r Recording) []byte {
	bps := BitsPerSample
	byteRate := r.SampleRate * r.Channels * bps / 8
	blockAlign := r.Channels * bps / 8
	dataSize := len(r.PCM)

	buf := make([]byte, 44+dataSize)

	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+dataSize))
	copy(buf[8:12], "WAVE")

	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)
	binary.LittleEndian.PutUint16(buf[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(buf[22:24], uint16(r.Channels))
	binary.LittleEndian.PutUint32(buf[24:28], uint32(r.SampleRate))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(buf[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(buf[34:36], uint16(bps))

	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataSize))
	copy(buf[44:], r.PCM)

	return buf
}

// DecodeWAV parses a RIFF/WAVE payload holding 16-bit PCM. Unknown chunks
// between "fmt " and "data" are skipped.
func DecodeWAV(b []byte) (Recording, error) {
	if len(b) < 12 || string(b[0:4]) != "RIFF" || string(b[8:12]) != "WAVE" {
		return Recording{}, ErrInvalidWAV
	}

	var (
		rec     Recording
		haveFmt bool
	)
	off := 12
	for off+8 <= len(b) {
		id := string(b[off : off+4])
		size := int(binary.LittleEndian.Uint32(b[off+4 : off+8]))
		body := off + 8
		if size < 0 || body+size > len(b) {
			// Some encoders write a streaming placeholder size for "data".
			if id == "data" {
				size = len(b) - body
			} else {
				return Recording{}, ErrInvalidWAV
			}
		}

		switch id {
		case "fmt ":
			if size < 16 {
				return Recording{}, ErrInvalidWAV
			}
			format := binary.LittleEndian.Uint16(b[body : body+2])
			bits := binary.LittleEndian.Uint16(b[body+14 : body+16])
			if format != 1 || bits != BitsPerSample {
				return Recording{}, fmt.Errorf("%w: format %d, %d bits", ErrInvalidWAV, format, bits)
			}
			rec.Channels = int(binary.LittleEndian.Uint16(b[body+2 : body+4]))
			rec.SampleRate = int(binary.LittleEndian.Uint32(b[body+4 : body+8]))
			haveFmt = true
		case "data":
			if !haveFmt {
				return Recording{}, ErrInvalidWAV
			}
			rec.PCM = b[body : body+size]
			if err := rec.Validate(); err != nil {
				return Recording{}, fmt.Errorf("%w: %w", ErrInvalidWAV, err)
			}
			return rec, nil
		}

		// Chunks are word-aligned.
		off = body + size + size%2
	}
	return Recording{}, ErrInvalidWAV
}

// RMS returns the root-mean-square energy of 16-bit PCM, in sample units
// (0–32767). Returns 0 for buffers shorter than one sample.
func RMS(pcm []byte) float64 {
	n := len(pcm) / 2
	if n == 0 {
		return 0
	}
	var sum float64
	for i := range n {
		v := float64(sample(pcm, i))
		sum += v * v
	}
	return math.Sqrt(sum / float64(n))
}

// IsSilent reports whether the recording's RMS energy is below threshold.
// A non-positive threshold selects [DefaultSilenceRMS].
func IsSilent(r Recording, threshold float64) bool {
	if threshold <= 0 {
		threshold = DefaultSilenceRMS
	}
	return RMS(r.PCM) < threshold
}

// Float32Mono converts 16-bit PCM to float32 mono samples in [-1.0, 1.0],
// averaging channels when the input is stereo.
func Float32Mono(r Recording) []float32 {
	pcm := r.PCM
	if r.Channels == 2 {
		pcm = StereoToMono(pcm)
	}
	n := len(pcm) / 2
	out := make([]float32, n)
	for i := range n {
		out[i] = float32(sample(pcm, i)) / 32768.0
	}
	return out
}
