// Package cue plays short earcons marking listening start, listening
// stop and errors, the audible counterpart of the UI state indicator.
package cue

import (
	"math"
	"sync"
)

var disabled bool

// Disable silences all cues (headless mode, tests).
func Disable() { disabled = true }

const (
	sampleRate = 44100

	// Listen-start: high pitch, short
	startFreq   = 1040
	startVolume = 0.5
	startDecay  = 55

	// Listen-stop: lower pitch
	stopFreq   = 780
	stopVolume = 0.5
	stopDecay  = 40

	// Error: low double tone
	errorFreq   = 320
	errorVolume = 0.6
	errorDecay  = 30
)

var (
	startTone []int16
	stopTone  []int16
	errorTone []int16
	toneOnce  sync.Once
)

func initTones() {
	startTone = tone(startFreq, 0.15, startVolume, startDecay)
	stopTone = tone(stopFreq, 0.18, stopVolume, stopDecay)
	errorTone = doubleTone(errorFreq, 0.08, 0.05, errorVolume, errorDecay)
}

// tone synthesizes a mono sine burst with exponential decay.
func tone(freq, duration, volume, decay float64) []int16 {
	n := int(sampleRate * duration)
	samples := make([]int16, n)
	for i := 0; i < n; i++ {
		t := float64(i) / sampleRate
		envelope := math.Exp(-t * decay)
		samples[i] = int16(math.Sin(2*math.Pi*freq*t) * 32767 * volume * envelope)
	}
	return samples
}

func doubleTone(freq, burstDur, gapDur, volume, decay float64) []int16 {
	burst := tone(freq, burstDur, volume, decay)
	gap := make([]int16, int(sampleRate*gapDur))
	out := make([]int16, 0, len(burst)*2+len(gap))
	out = append(out, burst...)
	out = append(out, gap...)
	out = append(out, burst...)
	return out
}

func Init() {
	toneOnce.Do(initTones)
}

func ListenStart() {
	if disabled {
		return
	}
	toneOnce.Do(initTones)
	play(startTone)
}

func ListenStop() {
	if disabled {
		return
	}
	toneOnce.Do(initTones)
	play(stopTone)
}

func Error() {
	if disabled {
		return
	}
	toneOnce.Do(initTones)
	play(errorTone)
}
