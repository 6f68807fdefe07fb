package main

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"voxdo/audio"
	"voxdo/config"
	"voxdo/cue"
	"voxdo/recognizer"
	"voxdo/speech"
)

// recordSink captures everything the session surfaces.
type recordSink struct {
	mu      sync.Mutex
	states  []SessionState
	heard   []string
	replies []string
	notices []string
	errs    []string
	prompts []bool
}

func (s *recordSink) State(st SessionState, _ string) {
	s.mu.Lock()
	s.states = append(s.states, st)
	s.mu.Unlock()
}
func (s *recordSink) ModeLine(string)    {}
func (s *recordSink) DeviceLine(string)  {}
func (s *recordSink) AudioLevel(float64) {}
func (s *recordSink) Interim(string)     {}
func (s *recordSink) Utterance(text string) {
	s.mu.Lock()
	s.heard = append(s.heard, text)
	s.mu.Unlock()
}
func (s *recordSink) Response(text string) {
	s.mu.Lock()
	s.replies = append(s.replies, text)
	s.mu.Unlock()
}
func (s *recordSink) Notice(text string) {
	s.mu.Lock()
	s.notices = append(s.notices, text)
	s.mu.Unlock()
}
func (s *recordSink) ErrorMsg(text string) {
	s.mu.Lock()
	s.errs = append(s.errs, text)
	s.mu.Unlock()
}
func (s *recordSink) TextPrompt(enabled bool) {
	s.mu.Lock()
	s.prompts = append(s.prompts, enabled)
	s.mu.Unlock()
}

func (s *recordSink) sawState(want SessionState) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, st := range s.states {
		if st == want {
			return true
		}
	}
	return false
}

func (s *recordSink) lastPrompt() (bool, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.prompts) == 0 {
		return false, false
	}
	return s.prompts[len(s.prompts)-1], true
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func newTestSession(t *testing.T, stub *backendStub, probe recognizer.ProbeResult) (*VoiceSession, *recordSink, *speech.Fake) {
	t.Helper()
	cue.Disable()

	fakeCtx := audio.NewFakePCMContext(genTone(300, 400), 16000, false)
	capture, err := fakeCtx.NewCapture(nil, audio.CaptureConfig{SampleRate: 16000, Channels: 1})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(capture.Close)

	probeCh := make(chan recognizer.ProbeResult, 1)
	probeCh <- probe

	sink := &recordSink{}
	synth := speech.NewFake()
	cfg := config.Default()
	vs := NewVoiceSession(capture, newTestCommands(t, stub), synth, cfg, sink, probeCh)
	return vs, sink, synth
}

func TestExchangeDispatchesCommand(t *testing.T) {
	stub := &backendStub{}
	server := recognizer.NewFake(recognizer.ModeServerTranscription, "add task buy milk", nil)
	vs, sink, synth := newTestSession(t, stub, recognizer.ProbeResult{Active: server})

	vs.Toggle()
	vs.Toggle()
	vs.WaitExchange()

	if got := vs.State(); got != StateIdle {
		t.Errorf("state after exchange = %v, want idle", got)
	}
	if !sink.sawState(StateProcessing) || !sink.sawState(StateSpeaking) {
		t.Errorf("missing pipeline states, saw %v", sink.states)
	}
	if len(sink.heard) != 1 || sink.heard[0] != "add task buy milk" {
		t.Errorf("heard = %v", sink.heard)
	}
	if got := synth.Last(); got != "Creating new task: buy milk" {
		t.Errorf("spoke %q", got)
	}
	if len(stub.taskPosts) != 1 {
		t.Errorf("expected one task post, got %d", len(stub.taskPosts))
	}
	if vs.Exchanges() != 1 {
		t.Errorf("exchanges = %d", vs.Exchanges())
	}
}

func TestToggleWhileProbePending(t *testing.T) {
	stub := &backendStub{}
	cue.Disable()
	sink := &recordSink{}
	vs := NewVoiceSession(nil, newTestCommands(t, stub), speech.NewFake(), config.Default(), sink, make(chan recognizer.ProbeResult))

	vs.Toggle()

	if got := vs.State(); got != StateIdle {
		t.Errorf("state = %v, want idle", got)
	}
	sink.mu.Lock()
	defer sink.mu.Unlock()
	if len(sink.notices) != 1 {
		t.Fatalf("expected one rejection notice, got %v", sink.notices)
	}
}

func TestRuntimeDowngradeRetriesRecording(t *testing.T) {
	stub := &backendStub{}
	server := recognizer.NewFake(recognizer.ModeServerTranscription, "", errors.New("upstream 500"))
	native := recognizer.NewFake(recognizer.ModeNativeRecognition, "list tasks", nil)
	vs, sink, synth := newTestSession(t, stub, recognizer.ProbeResult{
		Active:    server,
		Fallbacks: []recognizer.Backend{native},
	})

	vs.Toggle()
	vs.Toggle()
	vs.WaitExchange()

	if got := vs.Mode(); got != recognizer.ModeNativeRecognition {
		t.Errorf("mode after downgrade = %v", got)
	}
	if server.Sessions() != 1 || native.Sessions() != 1 {
		t.Errorf("sessions server=%d native=%d", server.Sessions(), native.Sessions())
	}
	if len(sink.heard) != 1 || sink.heard[0] != "list tasks" {
		t.Errorf("heard = %v", sink.heard)
	}
	if got := synth.Last(); got != "You have no tasks." {
		t.Errorf("spoke %q", got)
	}

	// Second exchange goes straight to the downgraded backend
	vs.Toggle()
	vs.Toggle()
	vs.WaitExchange()

	if server.Sessions() != 1 {
		t.Errorf("server reused after downgrade: %d sessions", server.Sessions())
	}
	if native.Sessions() != 2 {
		t.Errorf("native sessions = %d", native.Sessions())
	}
}

func TestDowngradeExhaustedSurfacesError(t *testing.T) {
	stub := &backendStub{}
	server := recognizer.NewFake(recognizer.ModeServerTranscription, "", errors.New("upstream 500"))
	vs, sink, synth := newTestSession(t, stub, recognizer.ProbeResult{Active: server})

	vs.Toggle()
	vs.Toggle()
	vs.WaitExchange()

	if got := vs.Mode(); got != recognizer.ModeTextFallback {
		t.Errorf("mode = %v, want text fallback", got)
	}
	sink.mu.Lock()
	nErrs := len(sink.errs)
	sink.mu.Unlock()
	if nErrs == 0 {
		t.Error("expected an error surface")
	}
	if len(synth.Spoken()) != 0 {
		t.Errorf("nothing should be spoken, got %v", synth.Spoken())
	}
	if got := vs.State(); got != StateIdle {
		t.Errorf("state = %v, want idle", got)
	}
}

func TestTextFallbackExchange(t *testing.T) {
	stub := &backendStub{}
	vs, sink, synth := newTestSession(t, stub, recognizer.ProbeResult{})

	vs.Toggle()
	waitFor(t, "text prompt", func() bool {
		on, ok := sink.lastPrompt()
		return ok && on
	})

	vs.ProvideText("add journal went for a run")
	vs.WaitExchange()

	if got := synth.Last(); got != "Journal entry saved" {
		t.Errorf("spoke %q", got)
	}
	if len(stub.notePosts) != 1 {
		t.Errorf("expected one note post, got %d", len(stub.notePosts))
	}
	if on, ok := sink.lastPrompt(); !ok || on {
		t.Error("prompt should be disabled after the exchange")
	}
}

func TestSilentRecordingSkipsDispatch(t *testing.T) {
	stub := &backendStub{}
	server := recognizer.NewFake(recognizer.ModeServerTranscription, "", nil)
	vs, sink, synth := newTestSession(t, stub, recognizer.ProbeResult{Active: server})

	vs.Toggle()
	vs.Toggle()
	vs.WaitExchange()

	if len(sink.heard) != 0 {
		t.Errorf("nothing should be heard, got %v", sink.heard)
	}
	if len(synth.Spoken()) != 0 {
		t.Errorf("nothing should be spoken, got %v", synth.Spoken())
	}
	if len(stub.taskPosts)+len(stub.notePosts) != 0 {
		t.Error("no backend calls expected")
	}
	if got := vs.State(); got != StateIdle {
		t.Errorf("state = %v, want idle", got)
	}
}

func TestEmptyTranscriptFallsBack(t *testing.T) {
	stub := &backendStub{}
	server := recognizer.NewFake(recognizer.ModeServerTranscription, "", recognizer.ErrTranscriptionEmpty)
	native := recognizer.NewFake(recognizer.ModeNativeRecognition, "list tasks", nil)
	vs, sink, synth := newTestSession(t, stub, recognizer.ProbeResult{
		Active:    server,
		Fallbacks: []recognizer.Backend{native},
	})

	vs.Toggle()
	vs.Toggle()
	vs.WaitExchange()

	if server.Sessions() != 1 || native.Sessions() != 1 {
		t.Errorf("sessions server=%d native=%d, want the fallback consulted once", server.Sessions(), native.Sessions())
	}
	if len(sink.heard) != 1 || sink.heard[0] != "list tasks" {
		t.Errorf("heard = %v", sink.heard)
	}
	if got := synth.Last(); got != "You have no tasks." {
		t.Errorf("spoke %q", got)
	}
}

func TestMicrophoneFailureDegradesToText(t *testing.T) {
	stub := &backendStub{}
	cue.Disable()
	sink := &recordSink{}

	server := recognizer.NewFake(recognizer.ModeServerTranscription, "add task buy milk", nil)
	inner := make(chan recognizer.ProbeResult, 1)
	inner <- recognizer.ProbeResult{Active: server}
	cause := fmt.Errorf("capture device: %w", audio.ErrPermissionDenied)
	probeCh := recognizer.WithoutAudio(inner, cause)

	vs := NewVoiceSession(nil, newTestCommands(t, stub), speech.NewFake(), config.Default(), sink, probeCh)
	if !vs.WaitReady(2 * time.Second) {
		t.Fatal("probe did not settle")
	}
	if got := vs.Mode(); got != recognizer.ModeTextFallback {
		t.Fatalf("mode = %v, want text fallback", got)
	}

	want := audio.FailureMessage(cause)
	sink.mu.Lock()
	var found bool
	for _, n := range sink.notices {
		if n == want {
			found = true
		}
	}
	sink.mu.Unlock()
	if !found {
		t.Errorf("notices = %v, want %q", sink.notices, want)
	}

	vs.Toggle()
	waitFor(t, "text prompt", func() bool {
		on, ok := sink.lastPrompt()
		return ok && on
	})
	vs.ProvideText("list tasks")
	vs.WaitExchange()

	if server.Sessions() != 0 {
		t.Errorf("voice backend consulted without a microphone: %d sessions", server.Sessions())
	}
	if len(sink.heard) != 1 || sink.heard[0] != "list tasks" {
		t.Errorf("heard = %v", sink.heard)
	}
}
