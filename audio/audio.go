// Package audio abstracts microphone capture so the session can run against
// real hardware or a fake fed from WAV files.
package audio

import (
	"errors"
	"strings"
)

// Capture acquisition failures are classified so the session can tell
// the user what to do about them.
var (
	ErrPermissionDenied = errors.New("microphone permission denied")
	ErrNoDevice         = errors.New("no microphone found")
)

// FailureMessage maps a capture acquisition failure to the line shown
// to the user. Permission problems and missing hardware get specific
// guidance; anything else gets the generic fallback notice.
func FailureMessage(err error) string {
	switch {
	case errors.Is(err, ErrPermissionDenied):
		return "microphone blocked, grant microphone access and restart"
	case errors.Is(err, ErrNoDevice):
		return "no microphone found, falling back to text input"
	default:
		return "microphone unavailable, falling back to text input"
	}
}

// DataCallback receives raw PCM16LE mono frames from an active capture.
type DataCallback func(data []byte, frameCount uint32)

type CaptureConfig struct {
	SampleRate uint32
	Channels   uint32
}

type DeviceInfo struct {
	ID   string // opaque platform-specific identifier
	Name string
}

type Context interface {
	Devices() ([]DeviceInfo, error)
	NewCapture(device *DeviceInfo, config CaptureConfig) (CaptureDevice, error)
	Close()
}

// CaptureDevice is a long-lived handle to a microphone. The device stays
// open for the process lifetime; Start/Stop bracket individual recordings so
// the platform permission prompt fires at most once.
type CaptureDevice interface {
	Start() error
	Stop()
	Close()
	SetCallback(cb DataCallback)
	ClearCallback()
	DeviceName() string
}

var btKeywords = []string{
	"airpods", "beats", "bose", "wh-1000", "wf-1000",
	"jabra", "galaxy buds", "pixel buds", "powerbeats",
	"sennheiser momentum", "soundcore", "skullcandy",
	"bluetooth", " bt ", " bt)", " bt]",
}

// IsBluetooth flags devices whose name suggests a Bluetooth headset, which
// typically captures at phone-call quality and transcribes poorly.
func IsBluetooth(name string) bool {
	lower := strings.ToLower(name)
	for _, kw := range btKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
