package recognizer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

const DefaultTranscribeTimeout = 20 * time.Second

// ServerTranscriber records locally and uploads the finished clip to the
// backend's transcription endpoint as one multipart request.
type ServerTranscriber struct {
	client   *TracedClient
	apiURL   string
	probeURL string
	lang     string
}

func NewServerTranscriber(baseURL string, timeout time.Duration) *ServerTranscriber {
	if timeout <= 0 {
		timeout = DefaultTranscribeTimeout
	}
	base := strings.TrimRight(baseURL, "/")
	return &ServerTranscriber{
		client:   NewTracedClient(timeout),
		apiURL:   base + "/api/transcribe",
		probeURL: base + "/",
	}
}

func (s *ServerTranscriber) Name() string { return "server" }
func (s *ServerTranscriber) Mode() Mode   { return ModeServerTranscription }

func (s *ServerTranscriber) Probe(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, "HEAD", s.probeURL, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: backend unreachable: %v", ErrUnavailable, err)
	}
	if resp.StatusCode >= 500 {
		return fmt.Errorf("%w: backend returned %d", ErrUnavailable, resp.StatusCode)
	}
	return nil
}

func (s *ServerTranscriber) NewSession(_ context.Context, cfg SessionConfig) (Session, error) {
	go s.client.Warm(s.probeURL)
	if cfg.Language != "" {
		s.lang = cfg.Language
	}
	return newBatchSession(cfg, s.transcribe)
}

type transcribeResponse struct {
	Text  string `json:"text"`
	Error string `json:"error"`
}

// transcribe uploads the encoded clip under the multipart field "audio"
// and returns the recognized text.
func (s *ServerTranscriber) transcribe(audioData []byte, format, contentType string) (*transcribeResult, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("audio", "recording."+format)
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(audioData); err != nil {
		return nil, err
	}
	if s.lang != "" {
		writer.WriteField("language", s.lang)
	}
	writer.Close()

	req, err := http.NewRequest("POST", s.apiURL, &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTranscriptionFailed, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: status %d: %s", ErrTranscriptionFailed, resp.StatusCode, string(resp.Body))
	}

	var tResp transcribeResponse
	if err := json.Unmarshal(resp.Body, &tResp); err != nil {
		return nil, fmt.Errorf("%w: bad response: %v", ErrTranscriptionFailed, err)
	}
	if tResp.Error != "" {
		return nil, fmt.Errorf("%w: %s", ErrTranscriptionFailed, tResp.Error)
	}

	return &transcribeResult{Text: tResp.Text, Metrics: resp.Metrics}, nil
}
