package pcm

import (
	"math"
	"testing"
	"time"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	in := []float32{0, 0.25, -0.25, 0.5, -0.5, 0.999, -1.0, 0.0001, -0.0001}
	out := DecodeToFloat32(EncodeFloat32(in))

	if len(out) != len(in) {
		t.Fatalf("round trip length = %d, want %d", len(out), len(in))
	}
	const step = 1.0 / 32768.0
	for i := range in {
		diff := math.Abs(float64(in[i]) - float64(out[i]))
		if diff > step {
			t.Errorf("sample %d: in %v out %v, diff %v exceeds one quantization step", i, in[i], out[i], diff)
		}
	}
}

func TestEncodeFloat32Truncates(t *testing.T) {
	// 0.5*32768 = 16384 exactly; 0.50001*32768 truncates to 16384 as well.
	data := EncodeFloat32([]float32{0.5, 0.50001})
	v0 := int16(data[0]) | int16(data[1])<<8
	v1 := int16(data[2]) | int16(data[3])<<8
	if v0 != 16384 || v1 != 16384 {
		t.Errorf("got %d, %d, want 16384, 16384", v0, v1)
	}
}

func TestDecodeDropsTrailingByte(t *testing.T) {
	out := DecodeToFloat32([]byte{0x00, 0x40, 0x7f})
	if len(out) != 1 {
		t.Fatalf("got %d samples, want 1", len(out))
	}
	if out[0] != 0.5 {
		t.Errorf("sample = %v, want 0.5", out[0])
	}
}

func TestDecodeBase64(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		raw := EncodeFloat32([]float32{0.1, -0.1, 0.9})
		got, err := DecodeBase64(EncodeBase64(raw))
		if err != nil {
			t.Fatalf("DecodeBase64: %v", err)
		}
		if string(got) != string(raw) {
			t.Error("base64 round trip mismatch")
		}
	})

	t.Run("malformed", func(t *testing.T) {
		if _, err := DecodeBase64("not***base64"); err == nil {
			t.Error("expected error for malformed input")
		}
	})
}

func TestBufferDuration(t *testing.T) {
	tests := []struct {
		name    string
		samples int
		rate    int
		want    time.Duration
	}{
		{"one second capture", 16000, CaptureRate, time.Second},
		{"half second playback", 12000, PlaybackRate, 500 * time.Millisecond},
		{"empty", 0, PlaybackRate, 0},
		{"zero rate", 100, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := Buffer{Data: make([]byte, tt.samples*BytesPerSample), SampleRate: tt.rate}
			if got := b.Duration(); got != tt.want {
				t.Errorf("Duration() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRMS(t *testing.T) {
	if got := RMS(make([]byte, 320)); got != 0 {
		t.Errorf("silence RMS = %v, want 0", got)
	}

	// Full-scale square wave: every sample at -32768.
	loud := make([]byte, 320)
	for i := 0; i < len(loud); i += 2 {
		loud[i] = 0x00
		loud[i+1] = 0x80
	}
	if got := RMS(loud); math.Abs(got-1.0) > 1e-9 {
		t.Errorf("full-scale RMS = %v, want 1.0", got)
	}

	if got := RMS(nil); got != 0 {
		t.Errorf("nil RMS = %v, want 0", got)
	}
}
