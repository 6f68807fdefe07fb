//go:build !linux

package hotkey

import (
	"golang.design/x/hotkey"
)

type xTrigger struct {
	hk      *hotkey.Hotkey
	toggles chan struct{}
	stop    chan struct{}
}

func New() Trigger {
	return &xTrigger{
		hk:      hotkey.New([]hotkey.Modifier{hotkey.ModCtrl, hotkey.ModShift}, hotkey.KeyV),
		toggles: make(chan struct{}, 1),
		stop:    make(chan struct{}),
	}
}

func (h *xTrigger) Register() error {
	if err := h.hk.Register(); err != nil {
		return err
	}
	go func() {
		for {
			select {
			case <-h.hk.Keydown():
				select {
				case h.toggles <- struct{}{}:
				default:
				}
			case <-h.stop:
				return
			}
		}
	}()
	return nil
}

func (h *xTrigger) Unregister() {
	close(h.stop)
	h.hk.Unregister()
}

func (h *xTrigger) Toggles() <-chan struct{} {
	return h.toggles
}

func Diagnose() (string, error) {
	return "hotkey support available (Ctrl+Shift+V)", nil
}
