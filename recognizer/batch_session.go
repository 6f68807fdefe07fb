package recognizer

import (
	"encoding/binary"
	"fmt"
	"strings"
	"sync"
	"time"

	"voxdo/encoder"
)

type transcribeResult struct {
	Text    string
	Metrics *NetworkMetrics
}

type transcribeFunc func(audio []byte, format, contentType string) (*transcribeResult, error)

// batchSession buffers the whole recording, encoding concurrently with
// capture, and sends a single upload when the recording ends.
type batchSession struct {
	cfg        SessionConfig
	transcribe transcribeFunc
	encoder    encoder.Encoder
	updates    chan string
	blockChan  chan []int16
	encodeDone chan struct{}
	sampleBuf  []int16
	bufMu      sync.Mutex
}

func newBatchSession(cfg SessionConfig, transcribe transcribeFunc) (*batchSession, error) {
	format := cfg.Format
	if format == "" {
		format = "wav"
	}
	enc, err := encoder.New(format)
	if err != nil {
		return nil, err
	}

	bs := &batchSession{
		cfg:        cfg,
		transcribe: transcribe,
		encoder:    enc,
		updates:    make(chan string),
		blockChan:  make(chan []int16, 64),
		encodeDone: make(chan struct{}),
	}

	go func() {
		defer close(bs.encodeDone)
		for block := range bs.blockChan {
			start := time.Now()
			bs.encoder.EncodeBlock(block)
			bs.encoder.AddEncodeTime(time.Since(start))
		}
	}()

	return bs, nil
}

func (bs *batchSession) Feed(pcm []byte) {
	bs.bufMu.Lock()
	for i := 0; i+1 < len(pcm); i += 2 {
		bs.sampleBuf = append(bs.sampleBuf, int16(binary.LittleEndian.Uint16(pcm[i:])))
	}
	var blocks [][]int16
	for len(bs.sampleBuf) >= encoder.BlockSize {
		block := make([]int16, encoder.BlockSize)
		copy(block, bs.sampleBuf[:encoder.BlockSize])
		bs.sampleBuf = bs.sampleBuf[encoder.BlockSize:]
		blocks = append(blocks, block)
	}
	bs.bufMu.Unlock()

	for _, block := range blocks {
		bs.blockChan <- block
	}
}

func (bs *batchSession) Updates() <-chan string {
	return bs.updates
}

func (bs *batchSession) Close() (SessionResult, error) {
	// Flush remaining samples
	bs.bufMu.Lock()
	if len(bs.sampleBuf) > 0 {
		partial := make([]int16, len(bs.sampleBuf))
		copy(partial, bs.sampleBuf)
		bs.blockChan <- partial
	}
	bs.bufMu.Unlock()

	close(bs.blockChan)
	<-bs.encodeDone
	close(bs.updates)

	enc := bs.encoder

	// A quiet on/off toggle records no frames at all. That is benign,
	// not a transcription failure, and there is nothing to upload.
	if enc.TotalFrames() == 0 {
		return SessionResult{NoSpeech: true}, nil
	}

	if err := enc.Close(); err != nil {
		return SessionResult{}, err
	}

	result, err := bs.transcribe(enc.Bytes(), enc.Format(), enc.ContentType())
	if err != nil {
		return SessionResult{}, err
	}

	text := strings.TrimSpace(result.Text)
	if text == "" {
		// The server accepted the audio but produced nothing. Treated
		// as a failure so the session can retry on the fallback chain.
		return SessionResult{}, fmt.Errorf("transcribe: %w", ErrTranscriptionEmpty)
	}

	rawSize := enc.TotalFrames() * 2
	encodedSize := uint64(len(enc.Bytes()))
	audioDuration := float64(enc.TotalFrames()) / float64(encoder.SampleRate)
	netMetrics := result.Metrics
	if netMetrics == nil {
		netMetrics = &NetworkMetrics{}
	}

	return SessionResult{
		Text:    text,
		HasText: true,
		Batch: &BatchStats{
			AudioLengthS:     audioDuration,
			RawSizeKB:        float64(rawSize) / 1024,
			CompressedSizeKB: float64(encodedSize) / 1024,
			EncodeTimeMs:     float64(enc.EncodeTime().Milliseconds()),
			TTFBMs:           float64(netMetrics.TTFB.Milliseconds()),
			TotalTimeMs:      float64(netMetrics.Sum().Milliseconds()),
			ConnReused:       netMetrics.ConnReused,
		},
		Metrics: bs.formatMetrics(rawSize, encodedSize, audioDuration, netMetrics),
	}, nil
}

func (bs *batchSession) formatMetrics(rawSize, encodedSize uint64, audioDuration float64, metrics *NetworkMetrics) []string {
	reusedStatus := ""
	if metrics.ConnReused {
		reusedStatus = " (reused)"
	}

	return []string{
		fmt.Sprintf("audio:      %.1fs | %.1f KB as %s (%.1f KB raw)",
			audioDuration, float64(encodedSize)/1024, bs.encoder.Format(), float64(rawSize)/1024),
		fmt.Sprintf("encode:     %dms (concurrent)", bs.encoder.EncodeTime().Milliseconds()),
		fmt.Sprintf("conn_wait:  %dms%s", metrics.ConnWait.Milliseconds(), reusedStatus),
		fmt.Sprintf("ttfb:       %dms", metrics.TTFB.Milliseconds()),
		fmt.Sprintf("download:   %dms", metrics.Download.Milliseconds()),
		fmt.Sprintf("total:      %dms", metrics.Sum().Milliseconds()),
	}
}
