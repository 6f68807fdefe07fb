package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"sync"
	"time"

	"voxdo/api"
	"voxdo/audio"
	"voxdo/config"
	"voxdo/cue"
	"voxdo/doctor"
	"voxdo/encoder"
	"voxdo/hotkey"
	"voxdo/log"
	"voxdo/recognizer"
	"voxdo/shutdown"
	"voxdo/speech"
)

var version = "dev"

var (
	tuiMu      sync.Mutex
	tuiProgram interface{ Quit() }
)

var shutdownOnce sync.Once

func gracefulShutdown(session *VoiceSession) {
	shutdownOnce.Do(func() {
		if session != nil {
			log.SessionEnd(session.Exchanges())
		}
		log.Close()
		tuiMu.Lock()
		p := tuiProgram
		tuiMu.Unlock()
		if p != nil {
			p.Quit()
		}
		os.Exit(0)
	})
}

func deviceLineText(name string) string {
	suffix := ""
	if audio.IsBluetooth(name) {
		suffix = " (BT!)"
	}
	return "mic: " + name + suffix
}

func run() {
	configFlag := flag.String("config", "", "Config file path (default: OS-specific location)")
	backendFlag := flag.String("backend", "", "Backend base URL (overrides config)")
	recognizerFlag := flag.String("recognizer", "", "Streaming recognizer websocket URL (overrides config)")
	setupFlag := flag.Bool("setup", false, "Select microphone device and save it to the config")
	deviceFlag := flag.String("device", "", "Use named microphone device")
	formatFlag := flag.String("format", "", "Upload format: wav or flac (overrides config)")
	langFlag := flag.String("lang", "", "Language code for transcription (e.g., en, es)")
	voiceFlag := flag.String("voice", "", "Speech synthesis voice (overrides config)")
	muteFlag := flag.Bool("mute", false, "Disable spoken responses and audio cues")
	logPathFlag := flag.String("logpath", "", "Log directory path (default: OS-specific location, use ./ for current dir)")
	versionFlag := flag.Bool("version", false, "Print version and exit")
	doctorFlag := flag.Bool("doctor", false, "Run system diagnostics and exit")
	testFlag := flag.Bool("test", false, "Test mode (headless, stdin-driven)")
	tuiFlag := flag.Bool("tui", true, "Run with terminal UI")
	flag.Parse()

	// Resolve log directory early
	logPath, err := log.ResolveDir(*logPathFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to resolve log directory: %v\n", err)
		os.Exit(1)
	}
	log.SetDir(logPath)
	if err := log.EnsureDir(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not create log directory: %v\n", err)
	}

	crashPath := filepath.Join(log.Dir(), "crash_log.txt")
	crashFile, err := os.OpenFile(crashPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err == nil {
		fmt.Fprintf(crashFile, "\n=== Session %s [pid=%d] ===\n", time.Now().Format("2006-01-02 15:04:05"), os.Getpid())
		debug.SetCrashOutput(crashFile, debug.CrashOptions{})
	}

	if *versionFlag {
		fmt.Printf("voxdo %s\n", version)
		os.Exit(0)
	}

	cfgPath := *configFlag
	if cfgPath == "" {
		cfgPath = config.DefaultPath()
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	// Flags override config file and environment
	if *backendFlag != "" {
		cfg.Backend.BaseURL = *backendFlag
	}
	if *recognizerFlag != "" {
		cfg.Recognizer.WebsocketURL = *recognizerFlag
	}
	if *formatFlag != "" {
		cfg.Capture.Format = *formatFlag
	}
	if *langFlag != "" {
		cfg.Capture.Language = *langFlag
	}
	if *voiceFlag != "" {
		cfg.Speech.Voice = *voiceFlag
	}
	if *deviceFlag != "" {
		cfg.Capture.Device = *deviceFlag
	}
	if *muteFlag {
		cfg.Speech.Disabled = true
		cue.Disable()
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if *doctorFlag {
		os.Exit(doctor.Run(cfg))
	}

	if err := log.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not init logging: %v\n", err)
	}

	server := recognizer.NewServerTranscriber(cfg.Backend.BaseURL, cfg.Backend.TranscribeTimeout)
	native := recognizer.NewNativeRecognizer(cfg.Recognizer.WebsocketURL)
	probeCh := recognizer.Probe(context.Background(), server, native)

	commands := NewCommands(api.NewClient(cfg.Backend.BaseURL, cfg.Backend.RequestTimeout))
	synth := speech.New(cfg.Speech.Voice)

	if *testFlag {
		args := flag.Args()
		if len(args) == 0 {
			fmt.Fprintln(os.Stderr, "Usage: voxdo -test <wav-file>")
			os.Exit(1)
		}
		runTestMode(cfg, commands, synth, probeCh, args[0])
		return
	}

	// Capture acquisition is part of capability negotiation. Without a
	// microphone the session still starts, settled on text fallback.
	var captureDevice audio.CaptureDevice
	ctx, err := audio.NewContext()
	if err != nil {
		log.Errorf("audio context init error: %v", err)
		fmt.Fprintf(os.Stderr, "Warning: %s\n", audio.FailureMessage(err))
		probeCh = recognizer.WithoutAudio(probeCh, err)
	} else {
		defer ctx.Close()

		var selectedDevice *audio.DeviceInfo
		if *setupFlag {
			selectedDevice, err = audio.SelectDevice(ctx)
			if err != nil {
				log.Warnf("device selection failed: %v", err)
				fmt.Printf("Warning: device selection failed: %v\n", err)
				fmt.Println("Falling back to default device")
			} else if selectedDevice != nil {
				cfg.Capture.Device = selectedDevice.Name
				if saveErr := cfg.Save(cfgPath); saveErr != nil {
					log.Warnf("saving config: %v", saveErr)
				}
			}
		} else if cfg.Capture.Device != "" {
			if devices, err := ctx.Devices(); err == nil {
				for i := range devices {
					if devices[i].Name == cfg.Capture.Device {
						selectedDevice = &devices[i]
						break
					}
				}
			}
			if selectedDevice == nil {
				log.Warnf("configured device %q not found, using default", cfg.Capture.Device)
			}
		}

		captureConfig := audio.CaptureConfig{
			SampleRate: encoder.SampleRate,
			Channels:   encoder.Channels,
		}
		captureDevice, err = ctx.NewCapture(selectedDevice, captureConfig)
		if err != nil {
			log.Errorf("capture device init error: %v", err)
			fmt.Fprintf(os.Stderr, "Warning: %s\n", audio.FailureMessage(err))
			probeCh = recognizer.WithoutAudio(probeCh, err)
		} else {
			defer captureDevice.Close()
		}
	}

	session := NewVoiceSession(captureDevice, commands, synth, cfg, nil, probeCh)

	if *tuiFlag {
		p := NewTUIProgram(session.Toggle, session.ProvideText)
		tuiMu.Lock()
		tuiProgram = p
		tuiMu.Unlock()
		session.SetSink(&tuiSink{p: p})

		go func() {
			if _, err := p.Run(); err != nil {
				log.Errorf("TUI error: %v", err)
				os.Exit(1)
			}
			gracefulShutdown(session)
		}()
	}

	go cue.Init()

	// Announce the negotiated mode once probing settles
	go func() {
		if !session.WaitReady(30 * time.Second) {
			session.out().Notice("capability probe timed out")
		}
		if captureDevice != nil {
			session.out().DeviceLine(deviceLineText(captureDevice.DeviceName()))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	shutdown.Notify(sigChan)
	go func() {
		<-sigChan
		gracefulShutdown(session)
	}()

	hk := hotkey.New()
	if err := hk.Register(); err != nil {
		log.Errorf("hotkey register error: %v", err)
		fmt.Fprintf(os.Stderr, "Error registering hotkey: %v\n", err)
		os.Exit(1)
	}
	defer hk.Unregister()

	for range hk.Toggles() {
		session.Toggle()
	}
}
