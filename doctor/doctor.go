// Package doctor runs interactive diagnostics against the live setup:
// backend reachability, hotkey delivery, a microphone round trip through
// the negotiated capture backend, and speech output.
package doctor

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"voxdo/audio"
	"voxdo/config"
	"voxdo/encoder"
	"voxdo/hotkey"
	"voxdo/recognizer"
	"voxdo/speech"
)

// Run executes the checks and returns an exit code (0=all pass, 1=any fail).
func Run(cfg *config.Config) int {
	resetTerminal()
	setupInterruptHandler()

	fmt.Println("voxdo doctor - interactive system diagnostics")
	fmt.Println("=============================================")

	allPass := true

	probe, backend := checkBackends(cfg)
	if !probe {
		allPass = false
	}
	if !checkHotkey() {
		allPass = false
	}
	if allPass && backend != nil && !checkMicAndTranscription(cfg, backend) {
		allPass = false
	}
	if allPass && !checkSpeech(cfg) {
		allPass = false
	}

	fmt.Println()
	if allPass {
		fmt.Println("All checks passed!")
	} else {
		fmt.Println("Some checks failed. See details above.")
	}

	if allPass {
		return 0
	}
	return 1
}

func checkBackends(cfg *config.Config) (bool, recognizer.Backend) {
	fmt.Println()
	fmt.Println("[1/4] Capture backends")
	fmt.Printf("  backend:    %s\n", cfg.Backend.BaseURL)
	if cfg.Recognizer.WebsocketURL != "" {
		fmt.Printf("  recognizer: %s\n", cfg.Recognizer.WebsocketURL)
	} else {
		fmt.Println("  recognizer: (not configured)")
	}

	server := recognizer.NewServerTranscriber(cfg.Backend.BaseURL, cfg.Backend.TranscribeTimeout)
	native := recognizer.NewNativeRecognizer(cfg.Recognizer.WebsocketURL)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	result := <-recognizer.Probe(ctx, server, native)

	for _, b := range []recognizer.Backend{server, native} {
		if err, ok := result.Failures[b.Name()]; ok {
			fmt.Printf("  %-10s FAIL: %v\n", b.Name(), err)
		} else {
			fmt.Printf("  %-10s ok\n", b.Name())
		}
	}
	if result.Active == nil {
		fmt.Println("  FAIL: no audio capture backend reachable, only typed input would work")
		return false, nil
	}
	fmt.Printf("  PASS: active mode would be %s\n", result.Mode())
	return true, result.Active
}

func checkHotkey() bool {
	fmt.Println()
	fmt.Println("[2/4] Hotkey detection")
	if diag, err := hotkey.Diagnose(); err != nil {
		fmt.Printf("  Warning: %v\n", err)
	} else if diag != "" {
		fmt.Println(diag)
	}
	fmt.Println("Press Ctrl+Shift+V...")

	hk := hotkey.New()
	if err := hk.Register(); err != nil {
		fmt.Printf("  FAIL: could not register hotkey: %v\n", err)
		return false
	}
	defer hk.Unregister()

	select {
	case <-hk.Toggles():
		fmt.Println("  PASS: toggle detected")
		// Reset terminal after hotkey - it may leave terminal in raw mode
		resetTerminal()
		return true
	case <-time.After(10 * time.Second):
		fmt.Println("  FAIL: timeout waiting for hotkey")
		return false
	}
}

func checkMicAndTranscription(cfg *config.Config, backend recognizer.Backend) bool {
	fmt.Println()
	fmt.Println("[3/4] Microphone and transcription")

	reader := bufio.NewReader(os.Stdin)

	ctx, err := audio.NewContext()
	if err != nil {
		fmt.Printf("  FAIL: cannot connect to audio: %v\n", err)
		return false
	}
	defer ctx.Close()

	devices, err := ctx.Devices()
	if err != nil {
		fmt.Printf("  FAIL: cannot list devices: %v\n", err)
		return false
	}
	if len(devices) == 0 {
		fmt.Println("  FAIL: no capture devices found")
		return false
	}

	var device *audio.DeviceInfo
	if len(devices) == 1 {
		device = &devices[0]
		fmt.Printf("Using device: %s\n", device.Name)
	} else {
		fmt.Println()
		fmt.Println("Select input device:")
		for i, d := range devices {
			fmt.Printf("  %d. %s\n", i+1, d.Name)
		}
		fmt.Printf("Choice [1-%d]: ", len(devices))

		devChoice, _ := reader.ReadString('\n')
		devChoice = strings.TrimSpace(devChoice)
		idx := 0
		if devChoice != "" {
			fmt.Sscanf(devChoice, "%d", &idx)
			idx--
		}
		if idx < 0 || idx >= len(devices) {
			fmt.Println("  FAIL: invalid choice")
			return false
		}
		device = &devices[idx]
		fmt.Printf("Selected: %s\n", device.Name)
	}

	fmt.Println()
	fmt.Print("Press Enter and say something like \"add task test the doctor\"...")
	reader.ReadString('\n')

	stop := make(chan struct{})
	go func() {
		time.Sleep(3 * time.Second)
		close(stop)
	}()

	audioData, err := recordAudio(ctx, device, stop)
	if err != nil {
		fmt.Printf("  FAIL: recording error: %v\n", err)
		return false
	}
	if len(audioData) == 0 {
		fmt.Println("  FAIL: no audio captured")
		return false
	}

	fmt.Printf("  Recorded %.1f KB, sending to %s...\n", float64(len(audioData))/1024, backend.Name())

	sess, err := backend.NewSession(context.Background(), recognizer.SessionConfig{
		Format:   cfg.Capture.Format,
		Language: cfg.Capture.Language,
	})
	if err != nil {
		fmt.Printf("  FAIL: session error: %v\n", err)
		return false
	}
	go func() {
		for range sess.Updates() {
		}
	}()
	sess.Feed(audioData)
	result, err := sess.Close()
	if err != nil {
		fmt.Printf("  FAIL: transcription error: %v\n", err)
		return false
	}

	text := strings.TrimSpace(result.Text)
	if text == "" {
		text = "(no speech detected)"
	}
	fmt.Printf("\n  Transcribed text: %s\n\n", text)

	// Ask user to confirm - fresh reader to clear any buffered input
	confirmReader := bufio.NewReader(os.Stdin)
	fmt.Print("Is this correct? [y/n]: ")
	confirm, _ := confirmReader.ReadString('\n')
	confirm = strings.TrimSpace(strings.ToLower(confirm))

	if confirm == "y" || confirm == "yes" {
		fmt.Println("  PASS: transcription verified by user")
		return true
	}
	fmt.Println("  FAIL: transcription not confirmed")
	return false
}

func recordAudio(ctx audio.Context, device *audio.DeviceInfo, stop <-chan struct{}) ([]byte, error) {
	var pcmBuf []byte
	var bufMu sync.Mutex
	var stopped bool
	done := make(chan struct{})

	config := audio.CaptureConfig{
		SampleRate: encoder.SampleRate,
		Channels:   encoder.Channels,
	}

	captureDevice, err := ctx.NewCapture(device, config)
	if err != nil {
		return nil, err
	}

	captureDevice.SetCallback(func(data []byte, frameCount uint32) {
		bufMu.Lock()
		if stopped {
			bufMu.Unlock()
			return
		}
		pcmBuf = append(pcmBuf, data...)
		bufMu.Unlock()
	})

	if err := captureDevice.Start(); err != nil {
		captureDevice.Close()
		return nil, err
	}

	fmt.Print("  Recording")
	ticker := time.NewTicker(500 * time.Millisecond)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				fmt.Print(".")
			}
		}
	}()

	<-stop
	close(done)

	captureDevice.Stop()
	fmt.Println(" done")
	captureDevice.Close()

	bufMu.Lock()
	stopped = true
	raw := pcmBuf
	bufMu.Unlock()

	return raw, nil
}

func checkSpeech(cfg *config.Config) bool {
	fmt.Println()
	fmt.Println("[4/4] Speech output")

	synth := speech.New(cfg.Speech.Voice)
	if synth.Name() == "null" {
		fmt.Println("  FAIL: no speech engine found (install spd-say or espeak)")
		return false
	}
	fmt.Printf("  engine: %s\n", synth.Name())

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := synth.Speak(ctx, "voxdo doctor check"); err != nil {
		fmt.Printf("  FAIL: speech error: %v\n", err)
		return false
	}

	confirmReader := bufio.NewReader(os.Stdin)
	fmt.Print("Did you hear \"voxdo doctor check\"? [y/n]: ")
	confirm, _ := confirmReader.ReadString('\n')
	confirm = strings.TrimSpace(strings.ToLower(confirm))

	if confirm == "y" || confirm == "yes" {
		fmt.Println("  PASS: speech verified by user")
		return true
	}
	fmt.Println("  FAIL: speech not confirmed")
	return false
}
