package audio

import (
	"math"
	"testing"
)

func sine(n int, freq float64, rate int) []int16 {
	samples := make([]int16, n)
	for i := range samples {
		samples[i] = int16(math.Sin(2*math.Pi*freq*float64(i)/float64(rate)) * 16000)
	}
	return samples
}

func TestEncodeDecodeWAV(t *testing.T) {
	in := sine(16000, 440, 16000)
	data, err := EncodeWAV(in, 16000)
	if err != nil {
		t.Fatalf("EncodeWAV: %v", err)
	}
	if len(data) != WAVHeaderSize+len(in)*2 {
		t.Errorf("encoded size = %d, want %d", len(data), WAVHeaderSize+len(in)*2)
	}

	out, rate, err := DecodeWAV(data)
	if err != nil {
		t.Fatalf("DecodeWAV: %v", err)
	}
	if rate != 16000 {
		t.Errorf("rate = %d", rate)
	}
	if len(out) != len(in) {
		t.Fatalf("sample count = %d, want %d", len(out), len(in))
	}
	for i := range in {
		if in[i] != out[i] {
			t.Fatalf("sample %d = %d, want %d", i, out[i], in[i])
		}
	}
}

func TestEncodeWAVRejectsEmpty(t *testing.T) {
	if _, err := EncodeWAV(nil, 16000); err == nil {
		t.Error("expected error for empty samples")
	}
	if _, err := EncodeWAV([]int16{1}, 0); err == nil {
		t.Error("expected error for zero sample rate")
	}
}

func TestDecodeWAVRejectsGarbage(t *testing.T) {
	if _, _, err := DecodeWAV([]byte("not a wav")); err == nil {
		t.Error("expected error for short data")
	}
	data, _ := EncodeWAV(sine(100, 440, 16000), 16000)
	data[0] = 'X'
	if _, _, err := DecodeWAV(data); err == nil {
		t.Error("expected error for corrupt header")
	}
}

func TestIsBluetooth(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"AirPods Pro", true},
		{"Jabra Elite 75t", true},
		{"Built-in Microphone", false},
		{"USB PnP Audio Device", false},
		{"WH-1000XM5", true},
	}
	for _, tt := range tests {
		if got := IsBluetooth(tt.name); got != tt.want {
			t.Errorf("IsBluetooth(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}
