// Package hotkey delivers the global voice toggle chord
// (Ctrl+Shift+V) regardless of which window has focus.
package hotkey

type Trigger interface {
	Register() error
	Unregister()
	// Toggles fires once per chord press. Releases are not reported;
	// the session toggles listening on press alone.
	Toggles() <-chan struct{}
}
