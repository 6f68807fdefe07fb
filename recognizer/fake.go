package recognizer

import (
	"context"
	"fmt"
	"sync"
)

// Fake is a scripted backend for tests and the headless harness.
type Fake struct {
	mode     Mode
	text     string
	err      error
	probeErr error

	mu       sync.Mutex
	sessions int
}

func NewFake(mode Mode, text string, err error) *Fake {
	return &Fake{mode: mode, text: text, err: err}
}

func (f *Fake) WithProbeError(err error) *Fake {
	f.probeErr = err
	return f
}

func (f *Fake) Name() string { return "fake-" + f.mode.String() }
func (f *Fake) Mode() Mode   { return f.mode }

func (f *Fake) Probe(_ context.Context) error { return f.probeErr }

// Sessions reports how many sessions were opened, for assertions.
func (f *Fake) Sessions() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sessions
}

func (f *Fake) NewSession(_ context.Context, _ SessionConfig) (Session, error) {
	f.mu.Lock()
	f.sessions++
	f.mu.Unlock()

	updates := make(chan string, 1)
	if f.text != "" && f.err == nil {
		updates <- f.text
	}
	return &fakeSession{text: f.text, err: f.err, updates: updates}, nil
}

type fakeSession struct {
	text    string
	err     error
	updates chan string
	once    sync.Once
}

func (s *fakeSession) Feed([]byte) {}

func (s *fakeSession) Updates() <-chan string { return s.updates }

func (s *fakeSession) Close() (SessionResult, error) {
	s.once.Do(func() { close(s.updates) })
	if s.err != nil {
		return SessionResult{}, fmt.Errorf("fake backend error: %w", s.err)
	}
	return SessionResult{
		Text:     s.text,
		HasText:  s.text != "",
		NoSpeech: s.text == "",
		Batch: &BatchStats{
			AudioLengthS: 1.0,
			TotalTimeMs:  10,
		},
		Metrics: []string{"total: 10ms (fake)"},
	}, nil
}
