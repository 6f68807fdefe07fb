package encoder

import (
	"errors"
	"sync"
	"time"

	"voxdo/audio"
)

// WavEncoder buffers PCM frames and emits a complete RIFF/WAVE file on
// Close. The header needs the final frame count, so nothing is written
// until the stream ends.
type WavEncoder struct {
	mu          sync.Mutex
	samples     []int16
	out         []byte
	closed      bool
	totalFrames uint64
	encodeTime  time.Duration
}

func NewWav() *WavEncoder {
	return &WavEncoder{}
}

func (e *WavEncoder) EncodeBlock(block []int16) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return errors.New("wav encoder closed")
	}
	e.samples = append(e.samples, block...)
	e.totalFrames += uint64(len(block))
	return nil
}

func (e *WavEncoder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	start := time.Now()
	out, err := audio.EncodeWAV(e.samples, SampleRate)
	e.encodeTime += time.Since(start)
	if err != nil {
		return err
	}
	e.out = out
	e.samples = nil
	return nil
}

func (e *WavEncoder) Bytes() []byte {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.out
}

func (e *WavEncoder) TotalFrames() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.totalFrames
}

func (e *WavEncoder) Format() string      { return "wav" }
func (e *WavEncoder) ContentType() string { return "audio/wav" }

func (e *WavEncoder) AddEncodeTime(d time.Duration) {
	e.mu.Lock()
	e.encodeTime += d
	e.mu.Unlock()
}

func (e *WavEncoder) EncodeTime() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.encodeTime
}
