// Package api is the client for the productivity backend's REST surface.
// Only the endpoints the voice pipeline needs are covered; everything else
// the backend does stays behind this boundary.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultTimeout = 10 * time.Second

// Task is the subset of the backend's task representation the assistant
// reads. Unknown fields are ignored on decode.
type Task struct {
	ID        int    `json:"id"`
	Title     string `json:"title"`
	Completed bool   `json:"completed"`
}

type taskRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Priority    string `json:"priority"`
	DueDate     string `json:"due_date"`
}

type noteRequest struct {
	Transcription string `json:"transcription"`
	NoteType      string `json:"note_type"`
}

type Client struct {
	base   string
	client *http.Client

	// now is swapped in tests to pin the due date.
	now func() time.Time
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		base: baseURL,
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        4,
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     90 * time.Second,
				ForceAttemptHTTP2:   true,
			},
		},
		now: time.Now,
	}
}

// CreateTask posts a new task with the fixed voice-command defaults: a
// canned description, normal priority, and today's local date as due date.
func (c *Client) CreateTask(ctx context.Context, title string) error {
	body := taskRequest{
		Title:       title,
		Description: "Created via voice command",
		Priority:    "normal",
		DueDate:     c.now().Format("2006-01-02"),
	}
	return c.post(ctx, "/api/tasks", body)
}

// CreateJournalNote posts a transcribed note tagged as a journal entry.
func (c *Client) CreateJournalNote(ctx context.Context, text string) error {
	return c.post(ctx, "/api/voice-notes", noteRequest{
		Transcription: text,
		NoteType:      "journal",
	})
}

// ListTasks fetches the full task collection.
func (c *Client) ListTasks(ctx context.Context) ([]Task, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/api/tasks", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("listing tasks: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("listing tasks: backend returned %d", resp.StatusCode)
	}

	var tasks []Task
	if err := json.NewDecoder(resp.Body).Decode(&tasks); err != nil {
		return nil, fmt.Errorf("decoding task list: %w", err)
	}
	return tasks, nil
}

func (c *Client) post(ctx context.Context, path string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("POST %s: %w", path, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("POST %s: backend returned %d", path, resp.StatusCode)
	}
	return nil
}
