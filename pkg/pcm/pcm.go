// Package pcm implements the audio sample codec used on the realtime wire.
//
// Capture audio leaves the process as 16 kHz little-endian int16 mono PCM and
// model audio arrives as 24 kHz little-endian int16 mono PCM. Float conversion
// uses the 32768 scale factor in both directions so that a decode of an encode
// reproduces every sample within one quantization step.
package pcm

import (
	"encoding/base64"
	"fmt"
	"math"
	"time"
)

const (
	// CaptureRate is the sample rate of microphone audio sent to the model.
	CaptureRate = 16000

	// PlaybackRate is the sample rate of audio received from the model.
	PlaybackRate = 24000

	// BytesPerSample is the width of one int16 PCM sample.
	BytesPerSample = 2
)

// EncodeFloat32 converts float32 samples in [-1, 1) to little-endian int16
// PCM using the 32768 scale factor. Values are truncated toward zero, not
// rounded, and out-of-range input wraps rather than clamps, matching the
// capture path's behavior for already-normalized data.
func EncodeFloat32(samples []float32) []byte {
	out := make([]byte, len(samples)*BytesPerSample)
	for i, s := range samples {
		v := int16(s * 32768)
		out[i*2] = byte(v)
		out[i*2+1] = byte(v >> 8)
	}
	return out
}

// DecodeToFloat32 converts little-endian int16 PCM bytes to float32 samples
// divided by 32768. A trailing odd byte is dropped.
func DecodeToFloat32(data []byte) []float32 {
	n := len(data) / BytesPerSample
	out := make([]float32, n)
	for i := range n {
		v := int16(data[i*2]) | int16(data[i*2+1])<<8
		out[i] = float32(v) / 32768.0
	}
	return out
}

// EncodeBase64 encodes raw PCM bytes for JSON transport.
func EncodeBase64(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

// DecodeBase64 decodes base64 PCM received from the wire. Malformed input
// returns an error so callers can drop the chunk without tearing down the
// stream.
func DecodeBase64(s string) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("pcm: decode base64: %w", err)
	}
	return data, nil
}

// Buffer is a chunk of int16 PCM at a known sample rate. It is the unit
// handed to the playback scheduler, which needs the duration of each chunk
// to maintain its scheduling cursor.
type Buffer struct {
	Data       []byte
	SampleRate int
}

// Duration returns the playback length of the buffer. Zero or negative
// sample rates yield zero.
func (b Buffer) Duration() time.Duration {
	if b.SampleRate <= 0 {
		return 0
	}
	samples := len(b.Data) / BytesPerSample
	return time.Duration(samples) * time.Second / time.Duration(b.SampleRate)
}

// Samples returns the number of complete int16 samples in the buffer.
func (b Buffer) Samples() int {
	return len(b.Data) / BytesPerSample
}

// RMS returns the root-mean-square amplitude of the buffer normalized to
// [0, 1]. Used for input level metering during device checks.
func RMS(data []byte) float64 {
	n := len(data) / BytesPerSample
	if n == 0 {
		return 0
	}
	var sum float64
	for i := range n {
		v := float64(int16(data[i*2]) | int16(data[i*2+1])<<8)
		sum += v * v
	}
	return math.Sqrt(sum/float64(n)) / 32768.0
}
