package audio

import (
	"encoding/binary"
	"log/slog"
)

// Normalize returns r as 16 kHz mono, the input format of every speech
// recogniser. Stereo is downmixed before resampling. A recording already in
// that format is returned as is.
func Normalize(r Recording) Recording {
	if r.SampleRate == SpeechSampleRate && r.Channels == 1 {
		return r
	}
	pcm := r.PCM
	if n := len(pcm); n%2 != 0 {
		slog.Warn("audio: dropping trailing byte of odd-length PCM",
			"bytes", n, "sample_rate", r.SampleRate, "channels", r.Channels)
		pcm = pcm[:n-1]
	}
	if r.Channels == 2 {
		pcm = StereoToMono(pcm)
	}
	return Recording{
		PCM:        ResampleMono16(pcm, r.SampleRate, SpeechSampleRate),
		SampleRate: SpeechSampleRate,
		Channels:   1,
	}
}

// sample reads the i-th little-endian int16 of pcm.
func sample(pcm []byte, i int) int32 {
	return int32(int16(binary.LittleEndian.Uint16(pcm[2*i:])))
}

func putSample(pcm []byte, i int, v int32) {
	binary.LittleEndian.PutUint16(pcm[2*i:], uint16(int16(v)))
}

// StereoToMono averages the two channels of interleaved stereo PCM. A
// trailing partial frame is dropped.
func StereoToMono(pcm []byte) []byte {
	out := make([]byte, len(pcm)/4*2)
	for i := range len(out) / 2 {
		putSample(out, i, (sample(pcm, 2*i)+sample(pcm, 2*i+1))/2)
	}
	return out
}

// ResampleMono16 converts mono PCM from one rate to another by linear
// interpolation. Equal or non-positive rates return pcm untouched.
func ResampleMono16(pcm []byte, from, to int) []byte {
	n := len(pcm) / 2
	if from <= 0 || to <= 0 || from == to || n == 0 {
		return pcm
	}
	m := int(int64(n) * int64(to) / int64(from))
	if m == 0 {
		return nil
	}
	out := make([]byte, 2*m)
	step := float64(from) / float64(to)
	for i := range m {
		pos := float64(i) * step
		j := int(pos)
		a := float64(sample(pcm, j))
		b := a
		if j+1 < n {
			b = float64(sample(pcm, j+1))
		}
		putSample(out, i, int32(a+(b-a)*(pos-float64(j))))
	}
	return out
}
