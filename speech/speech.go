// Package speech turns response text into audible output through the
// platform's synthesis command. Failures here are reported to the
// caller for logging but must never take the session down.
package speech

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"
)

var ErrNoEngine = errors.New("no speech engine available")

type Synthesizer interface {
	Name() string
	// Speak blocks until the utterance finishes or ctx expires.
	Speak(ctx context.Context, text string) error
}

// Budget bounds how long a Speak call may run so a hung engine cannot
// wedge the session in Speaking. Scales with text length.
func Budget(text string) time.Duration {
	d := 10*time.Second + time.Duration(len(text))*75*time.Millisecond
	if d > 30*time.Second {
		d = 30 * time.Second
	}
	return d
}

// New picks the first synthesis command present on this system, or a
// null synthesizer when none is installed.
func New(voice string) Synthesizer {
	for _, c := range platformEngines(voice) {
		if _, err := exec.LookPath(c.path); err == nil {
			return c
		}
	}
	return Null{}
}

type engine struct {
	path string
	args func(text string) []string
}

func (e engine) Name() string { return e.path }

func (e engine) Speak(ctx context.Context, text string) error {
	if text == "" {
		return nil
	}
	cmd := exec.CommandContext(ctx, e.path, e.args(text)...)
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("%s interrupted: %w", e.path, ctx.Err())
		}
		return fmt.Errorf("%s: %w", e.path, err)
	}
	return nil
}

// Null is the synthesizer of last resort: it cannot speak.
type Null struct{}

func (Null) Name() string { return "null" }

func (Null) Speak(_ context.Context, _ string) error { return ErrNoEngine }
