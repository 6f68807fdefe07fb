package recognizer

import (
	"context"
	"strings"
	"sync"
)

// TextInput is the last-resort backend: the user types the command
// instead of speaking it. It always probes healthy, so the downgrade
// chain has a floor.
type TextInput struct{}

func NewTextInput() *TextInput { return &TextInput{} }

func (t *TextInput) Name() string                  { return "text" }
func (t *TextInput) Mode() Mode                    { return ModeTextFallback }
func (t *TextInput) Probe(_ context.Context) error { return nil }

func (t *TextInput) NewSession(_ context.Context, _ SessionConfig) (Session, error) {
	return &TextSession{updates: make(chan string, 1)}, nil
}

type TextSession struct {
	mu      sync.Mutex
	text    string
	closed  bool
	updates chan string
}

// Provide records typed input. Audio fed to the session is ignored.
func (s *TextSession) Provide(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.text = text
	select {
	case s.updates <- text:
	default:
	}
}

func (s *TextSession) Feed([]byte) {}

func (s *TextSession) Updates() <-chan string { return s.updates }

func (s *TextSession) Close() (SessionResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.updates)
	}
	text := strings.TrimSpace(s.text)
	return SessionResult{
		Text:     text,
		HasText:  text != "",
		NoSpeech: text == "",
		Metrics:  []string{"input:      typed"},
	}, nil
}
