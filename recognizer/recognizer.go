// Package recognizer provides the capture backends that turn a recording
// into an utterance: server-side batch transcription, a streaming
// recognizer over websocket, and manual text entry as the last resort.
package recognizer

import (
	"context"
	"errors"
	"time"
)

// Mode identifies which capture path a backend implements. The active
// mode is fixed when the capability probe completes; it only changes
// through the one-time downgrade chain server -> native -> text.
type Mode int

const (
	ModeServerTranscription Mode = iota
	ModeNativeRecognition
	ModeTextFallback
)

func (m Mode) String() string {
	switch m {
	case ModeServerTranscription:
		return "server-transcription"
	case ModeNativeRecognition:
		return "native-recognition"
	case ModeTextFallback:
		return "text-fallback"
	default:
		return "unknown"
	}
}

var (
	ErrTranscriptionFailed = errors.New("transcription failed")
	ErrTranscriptionEmpty  = errors.New("no speech detected")
	ErrRecognition         = errors.New("recognition error")
	ErrUnavailable         = errors.New("capture backend unavailable")
)

type SessionConfig struct {
	Format   string // "wav" or "flac"; batch only
	Language string
}

type NetworkMetrics struct {
	DNS        time.Duration
	ConnWait   time.Duration
	TCP        time.Duration
	TLS        time.Duration
	ReqHeaders time.Duration
	ReqBody    time.Duration
	TTFB       time.Duration
	Download   time.Duration
	Total      time.Duration
	ConnReused bool
}

func (m *NetworkMetrics) Sum() time.Duration {
	return m.ConnWait + m.DNS + m.TCP + m.TLS + m.ReqHeaders + m.ReqBody + m.TTFB + m.Download
}

type BatchStats struct {
	AudioLengthS     float64
	RawSizeKB        float64
	CompressedSizeKB float64
	EncodeTimeMs     float64
	TTFBMs           float64
	TotalTimeMs      float64
	ConnReused       bool
}

type StreamStats struct {
	ConnectMs    float64
	SentChunks   int
	SentKB       float64
	RecvMessages int
	RecvFinal    int
	RecvInterim  int
	FinalizeMs   float64
	TotalMs      float64
	AudioS       float64
}

type SessionResult struct {
	Text     string
	HasText  bool
	NoSpeech bool
	Batch    *BatchStats  // non-nil for batch sessions
	Stream   *StreamStats // non-nil for stream sessions
	Metrics  []string     // pre-formatted lines for the UI
}

// Session consumes one recording. Feed takes little-endian 16-bit mono
// PCM; Updates carries display-only transcript snapshots while the
// session runs. Close flushes, finishes recognition and returns the
// final utterance text. Only Close's text is dispatched.
type Session interface {
	Feed(pcm []byte)
	Updates() <-chan string
	Close() (SessionResult, error)
}

type Backend interface {
	Name() string
	Mode() Mode
	// Probe checks that the backend can serve a session right now.
	// Errors wrap ErrUnavailable.
	Probe(ctx context.Context) error
	NewSession(ctx context.Context, cfg SessionConfig) (Session, error)
}
