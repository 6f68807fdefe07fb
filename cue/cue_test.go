package cue

import (
	"math"
	"testing"
)

func TestToneShape(t *testing.T) {
	samples := tone(startFreq, 0.15, startVolume, startDecay)
	if len(samples) != int(sampleRate*0.15) {
		t.Fatalf("len = %d, want %d", len(samples), int(sampleRate*0.15))
	}

	// Amplitude decays: the loudest sample in the last quarter must be
	// well below the loudest in the first quarter.
	peak := func(s []int16) int16 {
		var p int16
		for _, v := range s {
			if v < 0 {
				v = -v
			}
			if v > p {
				p = v
			}
		}
		return p
	}
	q := len(samples) / 4
	head, tail := peak(samples[:q]), peak(samples[3*q:])
	if float64(tail) > float64(head)*math.Exp(-1) {
		t.Errorf("tail peak %d vs head peak %d, want clear decay", tail, head)
	}
}

func TestDoubleToneHasGap(t *testing.T) {
	samples := doubleTone(errorFreq, 0.08, 0.05, errorVolume, errorDecay)
	burstLen := int(sampleRate * 0.08)
	gapLen := int(sampleRate * 0.05)
	if len(samples) != burstLen*2+gapLen {
		t.Fatalf("len = %d, want %d", len(samples), burstLen*2+gapLen)
	}
	for i := burstLen; i < burstLen+gapLen; i++ {
		if samples[i] != 0 {
			t.Fatalf("gap sample %d = %d, want silence", i, samples[i])
		}
	}
}

func TestDisable(t *testing.T) {
	disabled = false
	defer func() { disabled = false }()
	Disable()
	// Must not touch the audio device once disabled.
	ListenStart()
	ListenStop()
	Error()
}
