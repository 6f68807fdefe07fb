package recognizer

import (
	"encoding/binary"
	"errors"
	"testing"
	"time"

	"voxdo/encoder"
)

func pcmBytes(nSamples int) []byte {
	pcm := make([]byte, nSamples*2)
	for i := 0; i < nSamples; i++ {
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(i%1000))
	}
	return pcm
}

func TestBatchSessionFeedAndClose(t *testing.T) {
	var gotFormat string
	fakeFn := func(audio []byte, format, contentType string) (*transcribeResult, error) {
		gotFormat = format
		return &transcribeResult{
			Text:    "add task buy milk",
			Metrics: &NetworkMetrics{TTFB: 10 * time.Millisecond},
		}, nil
	}

	bs, err := newBatchSession(SessionConfig{}, fakeFn)
	if err != nil {
		t.Fatalf("newBatchSession: %v", err)
	}

	// Drain updates, channel closed by Close()
	go func() {
		for range bs.Updates() {
		}
	}()

	bs.Feed(pcmBytes(encoder.BlockSize + encoder.BlockSize/2))

	result, err := bs.Close()
	if err != nil {
		t.Fatalf("Close: %v", err)
	}
	if gotFormat != "wav" {
		t.Errorf("format = %q, want %q (default)", gotFormat, "wav")
	}
	if result.Text != "add task buy milk" {
		t.Errorf("Text = %q, want %q", result.Text, "add task buy milk")
	}
	if !result.HasText {
		t.Error("HasText should be true")
	}
	if result.Batch == nil {
		t.Fatal("Batch should be non-nil")
	}
	if result.Batch.AudioLengthS <= 0 {
		t.Error("AudioLengthS should be positive")
	}
}

func TestBatchSessionNoAudioSkipsUpload(t *testing.T) {
	called := false
	fakeFn := func(audio []byte, format, contentType string) (*transcribeResult, error) {
		called = true
		return &transcribeResult{Text: "x"}, nil
	}

	bs, err := newBatchSession(SessionConfig{}, fakeFn)
	if err != nil {
		t.Fatalf("newBatchSession: %v", err)
	}

	result, err := bs.Close()
	if err != nil {
		t.Fatalf("Close: %v", err)
	}
	if called {
		t.Error("transcribe should not run for an empty recording")
	}
	if !result.NoSpeech {
		t.Error("NoSpeech should be true")
	}
}

func TestBatchSessionEmptyTranscript(t *testing.T) {
	fakeFn := func(audio []byte, format, contentType string) (*transcribeResult, error) {
		return &transcribeResult{Text: "   "}, nil
	}

	bs, err := newBatchSession(SessionConfig{}, fakeFn)
	if err != nil {
		t.Fatalf("newBatchSession: %v", err)
	}
	go func() {
		for range bs.Updates() {
		}
	}()
	bs.Feed(pcmBytes(encoder.BlockSize))

	_, err = bs.Close()
	if !errors.Is(err, ErrTranscriptionEmpty) {
		t.Fatalf("whitespace transcript should fail with ErrTranscriptionEmpty, got %v", err)
	}
}

func TestBatchSessionUploadError(t *testing.T) {
	fakeFn := func(audio []byte, format, contentType string) (*transcribeResult, error) {
		return nil, errors.New("boom")
	}

	bs, err := newBatchSession(SessionConfig{}, fakeFn)
	if err != nil {
		t.Fatalf("newBatchSession: %v", err)
	}
	bs.Feed(pcmBytes(encoder.BlockSize))

	if _, err := bs.Close(); err == nil {
		t.Fatal("expected upload error from Close")
	}
}
