package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"voxdo/api"
	"voxdo/intent"
)

type backendStub struct {
	mu sync.Mutex

	tasks     []api.Task
	taskPosts []map[string]any
	notePosts []map[string]any
	failAll   bool
}

func (b *backendStub) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/tasks", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		if b.failAll {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		switch r.Method {
		case http.MethodGet:
			json.NewEncoder(w).Encode(b.tasks)
		case http.MethodPost:
			var body map[string]any
			json.NewDecoder(r.Body).Decode(&body)
			b.taskPosts = append(b.taskPosts, body)
			w.WriteHeader(http.StatusCreated)
		}
	})
	mux.HandleFunc("/api/voice-notes", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		if b.failAll {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		b.notePosts = append(b.notePosts, body)
		w.WriteHeader(http.StatusCreated)
	})
	return mux
}

func newTestCommands(t *testing.T, stub *backendStub) *Commands {
	t.Helper()
	srv := httptest.NewServer(stub.handler())
	t.Cleanup(srv.Close)
	return NewCommands(api.NewClient(srv.URL, time.Second))
}

func TestCreateTaskReply(t *testing.T) {
	stub := &backendStub{}
	cmds := newTestCommands(t, stub)

	reply := cmds.Execute(context.Background(), intent.Intent{Kind: intent.CreateTask, Payload: "buy milk"})
	if reply != "Creating new task: buy milk" {
		t.Errorf("unexpected reply: %q", reply)
	}
	if len(stub.taskPosts) != 1 {
		t.Fatalf("expected 1 task post, got %d", len(stub.taskPosts))
	}
	if got := stub.taskPosts[0]["title"]; got != "buy milk" {
		t.Errorf("posted title = %v", got)
	}
	if got := stub.taskPosts[0]["priority"]; got != "normal" {
		t.Errorf("posted priority = %v", got)
	}
}

func TestCreateTaskEmptyTitleSkipsBackend(t *testing.T) {
	stub := &backendStub{}
	cmds := newTestCommands(t, stub)

	reply := cmds.Execute(context.Background(), intent.Intent{Kind: intent.CreateTask})
	if reply != "" {
		t.Errorf("empty title should stay silent, got %q", reply)
	}
	if len(stub.taskPosts) != 0 {
		t.Errorf("empty title must not hit the backend, got %d posts", len(stub.taskPosts))
	}
}

func TestCreateJournalEmptyTextSkipsBackend(t *testing.T) {
	stub := &backendStub{}
	cmds := newTestCommands(t, stub)

	reply := cmds.Execute(context.Background(), intent.Intent{Kind: intent.CreateJournal})
	if reply != "" {
		t.Errorf("empty journal text should stay silent, got %q", reply)
	}
	if len(stub.notePosts) != 0 {
		t.Errorf("empty text must not hit the backend, got %d posts", len(stub.notePosts))
	}
}

func TestCreateTaskFiresRefreshHook(t *testing.T) {
	stub := &backendStub{}
	cmds := newTestCommands(t, stub)
	refreshed := 0
	cmds.OnTasksChanged(func() { refreshed++ })

	cmds.Execute(context.Background(), intent.Intent{Kind: intent.CreateTask, Payload: "buy milk"})
	if refreshed != 1 {
		t.Errorf("refresh hook fired %d times, want 1", refreshed)
	}

	stub.failAll = true
	cmds.Execute(context.Background(), intent.Intent{Kind: intent.CreateTask, Payload: "other"})
	if refreshed != 1 {
		t.Errorf("refresh hook must not fire on failure, fired %d times", refreshed)
	}
}

func TestCreateTaskBackendFailure(t *testing.T) {
	stub := &backendStub{failAll: true}
	cmds := newTestCommands(t, stub)

	reply := cmds.Execute(context.Background(), intent.Intent{Kind: intent.CreateTask, Payload: "buy milk"})
	if reply != "Sorry, there was an error creating the task." {
		t.Errorf("unexpected reply: %q", reply)
	}
}

func TestCreateJournalReply(t *testing.T) {
	stub := &backendStub{}
	cmds := newTestCommands(t, stub)

	reply := cmds.Execute(context.Background(), intent.Intent{Kind: intent.CreateJournal, Payload: "went for a run"})
	if reply != "Journal entry saved" {
		t.Errorf("unexpected reply: %q", reply)
	}
	if len(stub.notePosts) != 1 {
		t.Fatalf("expected 1 note post, got %d", len(stub.notePosts))
	}
	if got := stub.notePosts[0]["transcription"]; got != "went for a run" {
		t.Errorf("posted transcription = %v", got)
	}
	if got := stub.notePosts[0]["note_type"]; got != "journal" {
		t.Errorf("posted note_type = %v", got)
	}
}

func TestListTasksEmpty(t *testing.T) {
	stub := &backendStub{tasks: []api.Task{}}
	cmds := newTestCommands(t, stub)

	reply := cmds.Execute(context.Background(), intent.Intent{Kind: intent.ListTasks})
	if reply != "You have no tasks." {
		t.Errorf("unexpected reply: %q", reply)
	}
}

func TestListTasksAllComplete(t *testing.T) {
	stub := &backendStub{tasks: []api.Task{
		{ID: 1, Title: "done thing", Completed: true},
		{ID: 2, Title: "other done thing", Completed: true},
	}}
	cmds := newTestCommands(t, stub)

	reply := cmds.Execute(context.Background(), intent.Intent{Kind: intent.ListTasks})
	if reply != "Here are your tasks: " {
		t.Errorf("unexpected reply: %q", reply)
	}
}

func TestListTasksPending(t *testing.T) {
	stub := &backendStub{tasks: []api.Task{
		{ID: 1, Title: "buy milk"},
		{ID: 2, Title: "walk dog", Completed: true},
		{ID: 3, Title: "write report"},
	}}
	cmds := newTestCommands(t, stub)

	reply := cmds.Execute(context.Background(), intent.Intent{Kind: intent.ListTasks})
	want := "Here are your tasks: buy milk, write report"
	if reply != want {
		t.Errorf("reply = %q, want %q", reply, want)
	}
}

func TestListTasksBackendFailure(t *testing.T) {
	stub := &backendStub{failAll: true}
	cmds := newTestCommands(t, stub)

	reply := cmds.Execute(context.Background(), intent.Intent{Kind: intent.ListTasks})
	if reply != "Sorry, I could not retrieve your tasks." {
		t.Errorf("unexpected reply: %q", reply)
	}
}

func TestUnrecognizedGetsHelp(t *testing.T) {
	stub := &backendStub{}
	cmds := newTestCommands(t, stub)

	reply := cmds.Execute(context.Background(), intent.Intent{Kind: intent.Unrecognized})
	if reply != "I didn't understand that command. Try saying 'add task', 'create journal', or 'list tasks'." {
		t.Errorf("unexpected reply: %q", reply)
	}
}
