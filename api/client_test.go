package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func fixedNow() time.Time {
	return time.Date(2026, 3, 14, 15, 9, 0, 0, time.Local)
}

func TestCreateTaskDefaults(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/tasks" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content type = %q", ct)
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &got); err != nil {
			t.Fatalf("bad body: %v", err)
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	c.now = fixedNow
	if err := c.CreateTask(context.Background(), "buy milk"); err != nil {
		t.Fatalf("CreateTask: %v", err)
	}

	want := map[string]string{
		"title":       "buy milk",
		"description": "Created via voice command",
		"priority":    "normal",
		"due_date":    "2026-03-14",
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("body[%q] = %q, want %q", k, got[k], v)
		}
	}
}

func TestCreateTaskServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	if err := c.CreateTask(context.Background(), "x"); err == nil {
		t.Fatal("expected error on 500")
	}
}

func TestCreateJournalNote(t *testing.T) {
	var got noteRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/voice-notes" {
			t.Errorf("path = %s", r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&got)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	if err := c.CreateJournalNote(context.Background(), "feeling productive today"); err != nil {
		t.Fatalf("CreateJournalNote: %v", err)
	}
	if got.Transcription != "feeling productive today" {
		t.Errorf("transcription = %q", got.Transcription)
	}
	if got.NoteType != "journal" {
		t.Errorf("note_type = %q", got.NoteType)
	}
}

func TestListTasks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `[{"id":1,"title":"A","completed":false},{"id":2,"title":"B","completed":true}]`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	tasks, err := c.ListTasks(context.Background())
	if err != nil {
		t.Fatalf("ListTasks: %v", err)
	}
	if len(tasks) != 2 {
		t.Fatalf("got %d tasks", len(tasks))
	}
	if tasks[0].Title != "A" || tasks[0].Completed {
		t.Errorf("tasks[0] = %+v", tasks[0])
	}
	if tasks[1].Title != "B" || !tasks[1].Completed {
		t.Errorf("tasks[1] = %+v", tasks[1])
	}
}

func TestListTasksTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 20*time.Millisecond)
	if _, err := c.ListTasks(context.Background()); err == nil {
		t.Fatal("expected timeout error")
	}
}
