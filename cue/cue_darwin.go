//go:build darwin

package cue

import (
	"sync"
	"sync/atomic"

	"github.com/gen2brain/malgo"
)

var (
	malgoCtx *malgo.AllocatedContext
	device   *malgo.Device
	initErr  bool
	devOnce  sync.Once

	// Playback state, read from the device callback
	current atomic.Pointer[[]byte]
	pos     atomic.Uint32
	playMu  sync.Mutex
)

func initDevice() error {
	config := malgo.DefaultDeviceConfig(malgo.Playback)
	config.Playback.Format = malgo.FormatS16
	config.Playback.Channels = 1
	config.SampleRate = sampleRate

	var err error
	device, err = malgo.InitDevice(malgoCtx.Context, config, malgo.DeviceCallbacks{Data: dataCallback})
	return err
}

func dataCallback(pOutput, _ []byte, frameCount uint32) {
	buf := current.Load()
	if buf == nil || len(*buf) == 0 {
		zero(pOutput)
		return
	}

	p := pos.Load()
	total := uint32(len(*buf))
	if p >= total {
		current.Store(nil)
		zero(pOutput)
		return
	}

	want := frameCount * 2
	n := total - p
	if n > want {
		n = want
	}
	copy(pOutput[:n], (*buf)[p:p+n])
	pos.Store(p + n)
	zero(pOutput[n:])
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

func setup() {
	var err error
	malgoCtx, err = malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		initErr = true
		return
	}
	if err := initDevice(); err != nil {
		malgoCtx.Uninit()
		malgoCtx = nil
		initErr = true
	}
}

func play(samples []int16) {
	devOnce.Do(setup)
	if initErr || len(samples) == 0 {
		return
	}

	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		buf[i*2] = byte(s)
		buf[i*2+1] = byte(s >> 8)
	}

	playMu.Lock()
	defer playMu.Unlock()

	device.Stop()
	pos.Store(0)
	current.Store(&buf)

	if err := device.Start(); err != nil {
		// Device can go stale across sleep/wake; rebuild once
		device.Uninit()
		if err := initDevice(); err != nil {
			current.Store(nil)
			return
		}
		if err := device.Start(); err != nil {
			current.Store(nil)
		}
	}
}
