package intent

import "strings"

type Kind int

const (
	CreateTask Kind = iota
	CreateJournal
	ListTasks
	Unrecognized
)

func (k Kind) String() string {
	switch k {
	case CreateTask:
		return "create_task"
	case CreateJournal:
		return "create_journal"
	case ListTasks:
		return "list_tasks"
	default:
		return "unrecognized"
	}
}

// Intent is one parsed voice command. Payload holds the utterance with the
// trigger phrase removed and whitespace trimmed; empty for ListTasks and
// Unrecognized.
type Intent struct {
	Kind    Kind
	Payload string
}

// Trigger sets are checked in order; the first set with a match wins even if
// a later set would also match. Order is a compatibility contract with the
// backend's other clients, not a ranking.
var triggers = []struct {
	kind    Kind
	phrases []string
}{
	{CreateTask, []string{"add task", "create task"}},
	{CreateJournal, []string{"add journal", "create journal"}},
	{ListTasks, []string{"list tasks", "show tasks"}},
}

// Parse maps an utterance to an Intent by case-insensitive substring match.
// Matching and payload extraction happen on the lowercased utterance, and
// only the earliest occurrence of a trigger phrase is stripped.
func Parse(utterance string) Intent {
	text := strings.ToLower(utterance)
	for _, set := range triggers {
		phrase, pos := earliest(text, set.phrases)
		if pos < 0 {
			continue
		}
		payload := strings.TrimSpace(text[:pos] + text[pos+len(phrase):])
		if set.kind == ListTasks {
			payload = ""
		}
		return Intent{Kind: set.kind, Payload: payload}
	}
	return Intent{Kind: Unrecognized}
}

// earliest returns the phrase with the lowest match position. Ties go to the
// phrase listed first.
func earliest(text string, phrases []string) (string, int) {
	best := -1
	var match string
	for _, p := range phrases {
		pos := strings.Index(text, p)
		if pos < 0 {
			continue
		}
		if best < 0 || pos < best {
			best = pos
			match = p
		}
	}
	return match, best
}
