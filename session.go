package main

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"sync"
	"time"

	"voxdo/audio"
	"voxdo/clipboard"
	"voxdo/config"
	"voxdo/cue"
	"voxdo/intent"
	"voxdo/log"
	"voxdo/recognizer"
	"voxdo/speech"
)

// SessionState tracks where the pipeline is in one exchange. Error is
// transient; the session always settles back to Idle.
type SessionState int

const (
	StateIdle SessionState = iota
	StateListening
	StateProcessing
	StateSpeaking
	StateError
)

func (s SessionState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateListening:
		return "listening"
	case StateProcessing:
		return "processing"
	case StateSpeaking:
		return "speaking"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// exchange is one toggle-to-response cycle. requestStop is safe to call
// from the hotkey, the silence monitor and text input at once.
type exchange struct {
	stop chan struct{}
	done chan struct{}
	once sync.Once
}

func (e *exchange) requestStop() {
	e.once.Do(func() { close(e.stop) })
}

// VoiceSession owns the state machine: Idle, Listening, Processing,
// Speaking. Exactly one exchange runs at a time; toggles during
// Processing or Speaking are rejected, not queued.
type VoiceSession struct {
	capture  audio.CaptureDevice
	commands *Commands
	synth    speech.Synthesizer
	cfg      *config.Config
	sink     EventSink

	probeCh <-chan recognizer.ProbeResult

	mu         sync.Mutex
	probed     bool
	probe      recognizer.ProbeResult
	downgraded bool
	state      SessionState
	ex         *exchange
	textSess   *recognizer.TextSession
	exchanges  int
}

func NewVoiceSession(capture audio.CaptureDevice, commands *Commands, synth speech.Synthesizer, cfg *config.Config, sink EventSink, probeCh <-chan recognizer.ProbeResult) *VoiceSession {
	if sink == nil {
		sink = nopSink{}
	}
	return &VoiceSession{
		capture:  capture,
		commands: commands,
		synth:    synth,
		cfg:      cfg,
		sink:     sink,
		probeCh:  probeCh,
	}
}

// SetSink swaps the display layer once the UI is up.
func (vs *VoiceSession) SetSink(sink EventSink) {
	vs.mu.Lock()
	vs.sink = sink
	vs.mu.Unlock()
}

func (vs *VoiceSession) out() EventSink {
	vs.mu.Lock()
	defer vs.mu.Unlock()
	return vs.sink
}

func (vs *VoiceSession) State() SessionState {
	vs.mu.Lock()
	defer vs.mu.Unlock()
	return vs.state
}

func (vs *VoiceSession) Exchanges() int {
	vs.mu.Lock()
	defer vs.mu.Unlock()
	return vs.exchanges
}

// Mode reports the active capture mode, or text fallback before the
// probe settles.
func (vs *VoiceSession) Mode() recognizer.Mode {
	vs.mu.Lock()
	defer vs.mu.Unlock()
	return vs.probe.Mode()
}

// pollProbe consumes the probe result if it has arrived. Caller holds mu.
func (vs *VoiceSession) pollProbe() bool {
	if vs.probed {
		return true
	}
	select {
	case r, ok := <-vs.probeCh:
		if !ok {
			return vs.probed
		}
		vs.probe = r
		vs.probed = true
		return true
	default:
		return false
	}
}

// WaitReady blocks until capability negotiation finishes. Used by the
// headless harness and doctor; the UI path never waits.
func (vs *VoiceSession) WaitReady(timeout time.Duration) bool {
	vs.mu.Lock()
	if vs.probed {
		vs.mu.Unlock()
		return true
	}
	vs.mu.Unlock()

	select {
	case r, ok := <-vs.probeCh:
		vs.mu.Lock()
		if ok {
			vs.probe = r
			vs.probed = true
		}
		ready := vs.probed
		vs.mu.Unlock()
		vs.announceMode()
		return ready
	case <-time.After(timeout):
		return false
	}
}

func (vs *VoiceSession) announceMode() {
	vs.mu.Lock()
	r := vs.probe
	probed := vs.probed
	vs.mu.Unlock()
	if !probed {
		return
	}
	mode := r.Mode()
	name := "none"
	if r.Active != nil {
		name = r.Active.Name()
	}
	log.SessionStart(mode.String(), name)
	for backend, err := range r.Failures {
		log.Warnf("probe %s: %v", backend, err)
	}
	vs.out().ModeLine(mode.String())
	if mode == recognizer.ModeTextFallback {
		if cause, ok := r.Failures["microphone"]; ok {
			vs.out().Notice(audio.FailureMessage(cause))
		} else {
			vs.out().Notice("no capture backend available, type your command")
		}
	}
}

// Toggle starts a recording from Idle and stops one from Listening.
// Anything else is rejected with a notice.
func (vs *VoiceSession) Toggle() {
	vs.mu.Lock()
	if !vs.pollProbe() {
		vs.mu.Unlock()
		vs.out().Notice("still initializing, try again in a moment")
		return
	}
	switch vs.state {
	case StateIdle, StateError:
		ex := &exchange{stop: make(chan struct{}), done: make(chan struct{})}
		vs.ex = ex
		vs.state = StateListening
		vs.mu.Unlock()
		go vs.runExchange(ex)
	case StateListening:
		ex := vs.ex
		vs.mu.Unlock()
		ex.requestStop()
	case StateProcessing:
		vs.mu.Unlock()
		vs.out().Notice("still processing, hold on")
	case StateSpeaking:
		vs.mu.Unlock()
		vs.out().Notice("still speaking, hold on")
	default:
		vs.mu.Unlock()
	}
}

// ProvideText feeds typed input into an active text-fallback exchange.
func (vs *VoiceSession) ProvideText(text string) {
	vs.mu.Lock()
	ts, ex := vs.textSess, vs.ex
	vs.mu.Unlock()
	if ts == nil || ex == nil {
		vs.out().Notice("text input is not active, toggle first")
		return
	}
	ts.Provide(text)
	ex.requestStop()
}

// WaitExchange blocks until the current exchange completes. It tolerates
// being called just before the exchange goroutine is installed, which
// happens when a toggle and a wait arrive back to back.
func (vs *VoiceSession) WaitExchange() {
	deadline := time.Now().Add(2 * time.Second)
	for {
		vs.mu.Lock()
		ex := vs.ex
		vs.mu.Unlock()
		if ex != nil {
			<-ex.done
			return
		}
		if time.Now().After(deadline) {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func (vs *VoiceSession) setState(to SessionState, reason string) {
	vs.mu.Lock()
	from := vs.state
	vs.state = to
	vs.mu.Unlock()
	if from != to {
		log.StateChange(from.String(), to.String(), reason)
	}
	vs.out().State(to, reason)
}

func (vs *VoiceSession) activeBackend() recognizer.Backend {
	vs.mu.Lock()
	defer vs.mu.Unlock()
	if vs.probe.Active == nil {
		return recognizer.NewTextInput()
	}
	return vs.probe.Active
}

// downgrade drops to the next healthy audio backend after a runtime
// failure. It fires at most once per process; landing on nothing means
// text fallback from here on.
func (vs *VoiceSession) downgrade(cause error) recognizer.Backend {
	vs.mu.Lock()
	if vs.downgraded || vs.probe.Active == nil {
		vs.mu.Unlock()
		return nil
	}
	vs.downgraded = true
	from := vs.probe.Active.Mode()
	var next recognizer.Backend
	for {
		next = vs.probe.Fallback()
		if next == nil || next.Mode() != recognizer.ModeTextFallback {
			break
		}
	}
	vs.probe.Active = next
	vs.mu.Unlock()

	to := recognizer.ModeTextFallback
	if next != nil {
		to = next.Mode()
	}
	log.ModeDowngrade(from.String(), to.String(), cause.Error())
	vs.out().ModeLine(to.String())
	if next == nil {
		vs.out().Notice("capture unavailable, switched to typed input")
	}
	return next
}

func (vs *VoiceSession) runExchange(ex *exchange) {
	defer close(ex.done)
	defer func() {
		vs.mu.Lock()
		vs.textSess = nil
		vs.mu.Unlock()
	}()

	vs.out().State(StateListening, "toggle")
	log.StateChange(StateIdle.String(), StateListening.String(), "toggle")

	backend := vs.activeBackend()
	sessCfg := recognizer.SessionConfig{
		Format:   vs.cfg.Capture.Format,
		Language: vs.cfg.Capture.Language,
	}

	sess, err := backend.NewSession(context.Background(), sessCfg)
	if err != nil {
		if next := vs.downgrade(err); next != nil {
			backend = next
			sess, err = backend.NewSession(context.Background(), sessCfg)
		}
		if err != nil {
			vs.failExchange(fmt.Sprintf("could not start capture: %v", err))
			return
		}
	}

	textMode := backend.Mode() == recognizer.ModeTextFallback
	if ts, ok := sess.(*recognizer.TextSession); ok {
		vs.mu.Lock()
		vs.textSess = ts
		vs.mu.Unlock()
		vs.out().TextPrompt(true)
		defer vs.out().TextPrompt(false)
	}

	updatesDone := make(chan struct{})
	go func() {
		defer close(updatesDone)
		for text := range sess.Updates() {
			vs.out().Interim(text)
		}
	}()

	var clip *clipBuffer
	if !textMode {
		cue.ListenStart()
		vad, vadErr := newVADProcessor()
		if vadErr != nil {
			log.Warnf("vad init: %v", vadErr)
		}

		clip = newClipBuffer()
		vs.capture.SetCallback(func(data []byte, frameCount uint32) {
			pcm := make([]byte, len(data))
			copy(pcm, data)
			sess.Feed(pcm)
			clip.add(pcm)
			vs.out().AudioLevel(rmsLevel(data))
			if vad != nil {
				vad.Process(data)
			}
		})
		if err := vs.capture.Start(); err != nil {
			vs.capture.ClearCallback()
			sess.Close()
			<-updatesDone
			cue.Error()
			vs.failExchange(fmt.Sprintf("microphone start failed: %v", err))
			return
		}

		monitorDone := make(chan struct{})
		if vad != nil {
			go vs.monitorSilence(ex, vad, monitorDone)
		} else {
			close(monitorDone)
		}

		<-ex.stop
		vs.capture.Stop()
		vs.capture.ClearCallback()
		<-monitorDone
		cue.ListenStop()
	} else {
		<-ex.stop
	}

	vs.setState(StateProcessing, "toggle")
	vs.out().Interim("")
	vs.out().AudioLevel(0)

	result, err := sess.Close()
	<-updatesDone
	if err != nil {
		log.Errorf("%s session: %v", backend.Name(), err)
		result, err = vs.retryWithFallback(clip, sessCfg, err)
		if err != nil {
			cue.Error()
			vs.failExchange("Sorry, I couldn't understand that. Please try again.")
			return
		}
	}

	vs.logMetrics(result)

	if result.NoSpeech || !result.HasText {
		vs.out().Notice("(no speech detected)")
		log.Info("no speech detected, nothing dispatched")
		vs.setState(StateIdle, "no speech")
		return
	}

	utterance := result.Text
	log.Heard(utterance)
	vs.out().Utterance(utterance)
	if cpErr := clipboard.Copy(utterance); cpErr != nil {
		log.Warnf("clipboard: %v", cpErr)
	}

	in := intent.Parse(utterance)
	reply := vs.commands.Execute(context.Background(), in)
	if reply != "" {
		vs.out().Response(reply)
		log.Spoke(reply)
		if !vs.cfg.Speech.Disabled {
			vs.setState(StateSpeaking, in.Kind.String())
			ctx, cancel := context.WithTimeout(context.Background(), speech.Budget(reply))
			if spErr := vs.synth.Speak(ctx, reply); spErr != nil && spErr != speech.ErrNoEngine {
				log.Warnf("speech: %v", spErr)
			}
			cancel()
		}
	}

	vs.mu.Lock()
	vs.exchanges++
	vs.mu.Unlock()
	vs.setState(StateIdle, "done")
}

// retryWithFallback re-transcribes the retained recording on the next
// backend in the chain so the exchange can still complete.
func (vs *VoiceSession) retryWithFallback(clip *clipBuffer, cfg recognizer.SessionConfig, cause error) (recognizer.SessionResult, error) {
	next := vs.downgrade(cause)
	if next == nil || clip == nil || clip.Len() == 0 {
		return recognizer.SessionResult{}, cause
	}
	sess, err := next.NewSession(context.Background(), cfg)
	if err != nil {
		return recognizer.SessionResult{}, cause
	}
	go func() {
		for range sess.Updates() {
		}
	}()
	sess.Feed(clip.Bytes())
	result, err := sess.Close()
	if err != nil {
		return recognizer.SessionResult{}, cause
	}
	log.Infof("retried recording on %s after failure", next.Name())
	return result, nil
}

func (vs *VoiceSession) monitorSilence(ex *exchange, vad *vadProcessor, done chan struct{}) {
	defer close(done)
	monitor := newSilenceMonitor(vs.cfg.Capture.SilenceStop)
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ex.stop:
			return
		case <-ticker.C:
		}
		switch monitor.Tick(vad.HasSpeechTick()) {
		case SilenceWarn, SilenceRepeat:
			vs.out().Notice("no speech detected, still listening")
		case SilenceWarnClear:
			vs.out().Notice("")
		case SilenceAutoStop:
			vs.out().Notice("stopping after sustained silence")
			log.Info("auto-stop after sustained silence")
			ex.requestStop()
			return
		}
	}
}

func (vs *VoiceSession) failExchange(msg string) {
	vs.out().ErrorMsg(msg)
	log.Error(msg)
	vs.setState(StateError, "failure")
	vs.setState(StateIdle, "recovered")
}

func (vs *VoiceSession) logMetrics(r recognizer.SessionResult) {
	if r.Batch != nil {
		log.TranscriptionMetrics(log.BatchMetrics{
			AudioLengthS:     r.Batch.AudioLengthS,
			RawSizeKB:        r.Batch.RawSizeKB,
			CompressedSizeKB: r.Batch.CompressedSizeKB,
			EncodeTimeMs:     r.Batch.EncodeTimeMs,
			TTFBMs:           r.Batch.TTFBMs,
			TotalTimeMs:      r.Batch.TotalTimeMs,
			ConnReused:       r.Batch.ConnReused,
		}, vs.cfg.Capture.Format)
	}
	if r.Stream != nil {
		log.RecognitionMetrics(log.StreamMetrics{
			ConnectMs:    r.Stream.ConnectMs,
			FinalizeMs:   r.Stream.FinalizeMs,
			TotalMs:      r.Stream.TotalMs,
			AudioS:       r.Stream.AudioS,
			SentChunks:   r.Stream.SentChunks,
			SentKB:       r.Stream.SentKB,
			RecvMessages: r.Stream.RecvMessages,
			RecvFinal:    r.Stream.RecvFinal,
			RecvInterim:  r.Stream.RecvInterim,
		})
	}
}

// clipBuffer retains the raw PCM of the recording in flight so a failed
// transcription can be retried on the fallback backend.
type clipBuffer struct {
	mu  sync.Mutex
	pcm []byte
}

func newClipBuffer() *clipBuffer { return &clipBuffer{} }

func (c *clipBuffer) add(pcm []byte) {
	c.mu.Lock()
	c.pcm = append(c.pcm, pcm...)
	c.mu.Unlock()
}

func (c *clipBuffer) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pcm)
}

func (c *clipBuffer) Bytes() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]byte, len(c.pcm))
	copy(out, c.pcm)
	return out
}

// rmsLevel maps a PCM16LE chunk to a 0..1 level for the UI meter.
func rmsLevel(data []byte) float64 {
	n := len(data) / 2
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		s := int16(binary.LittleEndian.Uint16(data[i*2:]))
		f := float64(s) / 32768.0
		sum += f * f
	}
	rms := math.Sqrt(sum / float64(n))
	// perceptual-ish scaling so quiet speech still moves the meter
	level := math.Sqrt(rms) * 2
	if level > 1 {
		level = 1
	}
	return level
}
