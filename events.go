package main

// EventSink abstracts the display layer so the Bubble Tea TUI, the
// headless harness and tests all receive the same session events.
type EventSink interface {
	State(s SessionState, detail string)
	ModeLine(text string)
	DeviceLine(text string)
	AudioLevel(level float64)
	Interim(text string)
	Utterance(text string)
	Response(text string)
	Notice(text string)
	ErrorMsg(text string)
	TextPrompt(enabled bool)
}

// nopSink drops everything. Used before the UI comes up and in tests
// that do not care about surfaces.
type nopSink struct{}

func (nopSink) State(SessionState, string) {}
func (nopSink) ModeLine(string)            {}
func (nopSink) DeviceLine(string)          {}
func (nopSink) AudioLevel(float64)         {}
func (nopSink) Interim(string)             {}
func (nopSink) Utterance(string)           {}
func (nopSink) Response(string)            {}
func (nopSink) Notice(string)              {}
func (nopSink) ErrorMsg(string)            {}
func (nopSink) TextPrompt(bool)            {}
