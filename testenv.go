package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"voxdo/audio"
	"voxdo/config"
	"voxdo/cue"
	"voxdo/encoder"
	"voxdo/hotkey"
	"voxdo/log"
	"voxdo/recognizer"
	"voxdo/speech"
)

// stdoutSink prints session events as one-line records so a test
// harness can drive the binary over stdin and assert on stdout.
type stdoutSink struct{}

func (stdoutSink) State(s SessionState, _ string) { fmt.Printf("STATE %s\n", s) }
func (stdoutSink) ModeLine(text string)           { fmt.Printf("MODE %s\n", text) }
func (stdoutSink) DeviceLine(string)              {}
func (stdoutSink) AudioLevel(float64)             {}
func (stdoutSink) Interim(string)                 {}
func (stdoutSink) Utterance(text string)          { fmt.Printf("HEARD %s\n", text) }
func (stdoutSink) Response(text string)           { fmt.Printf("REPLY %s\n", text) }
func (stdoutSink) Notice(text string) {
	if text != "" {
		fmt.Printf("NOTICE %s\n", text)
	}
}
func (stdoutSink) ErrorMsg(text string) { fmt.Printf("ERROR %s\n", text) }
func (stdoutSink) TextPrompt(enabled bool) {
	if enabled {
		fmt.Println("PROMPT on")
	} else {
		fmt.Println("PROMPT off")
	}
}

func runTestMode(cfg *config.Config, commands *Commands, synth speech.Synthesizer, probeCh <-chan recognizer.ProbeResult, wavPath string) {
	cue.Disable()
	cfg.Speech.Disabled = true

	if err := log.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not init logging: %v\n", err)
	}
	defer log.Close()

	fakeCtx, err := audio.NewFakeContext(wavPath, false)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading WAV: %v\n", err)
		os.Exit(1)
	}

	capture, err := fakeCtx.NewCapture(nil, audio.CaptureConfig{
		SampleRate: encoder.SampleRate, Channels: encoder.Channels,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating capture: %v\n", err)
		os.Exit(1)
	}
	defer capture.Close()
	fakeCapture := capture.(*audio.FakeCapture)

	session := NewVoiceSession(capture, commands, synth, cfg, stdoutSink{}, probeCh)
	if !session.WaitReady(10 * time.Second) {
		fmt.Fprintln(os.Stderr, "Warning: capability probe did not settle")
	}

	hk := hotkey.NewFake()

	// Stdin driver in background
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			cmd := strings.TrimSpace(scanner.Text())
			switch {
			case cmd == "TOGGLE":
				hk.SimToggle()
			case strings.HasPrefix(cmd, "TEXT "):
				session.ProvideText(strings.TrimSpace(cmd[5:]))
			case cmd == "WAIT":
				session.WaitExchange()
			case cmd == "WAIT_AUDIO_DONE":
				<-fakeCapture.AudioDone()
			case cmd == "QUIT":
				log.SessionEnd(session.Exchanges())
				os.Exit(0)
			case strings.HasPrefix(cmd, "SLEEP "):
				if ms, err := strconv.Atoi(cmd[6:]); err == nil {
					time.Sleep(time.Duration(ms) * time.Millisecond)
				}
			}
		}
		os.Exit(0)
	}()

	// Event loop -- same pattern as run()
	for range hk.Toggles() {
		session.Toggle()
	}
}
