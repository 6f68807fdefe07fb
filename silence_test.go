package main

import (
	"testing"
	"time"
)

func warnOnlyMonitor() *silenceMonitor {
	return newSilenceMonitor(0)
}

func autoStopMonitor() *silenceMonitor {
	return newSilenceMonitor(30 * time.Second)
}

func feedN(m *silenceMonitor, speech bool, n int) SilenceEvent {
	var last SilenceEvent
	for i := 0; i < n; i++ {
		last = m.Tick(speech)
	}
	return last
}

func TestSilenceWarnAfter8s(t *testing.T) {
	m := warnOnlyMonitor()
	// 79 ticks of silence - no warning yet
	for i := 0; i < 79; i++ {
		if ev := m.Tick(false); ev != SilenceNone {
			t.Fatalf("unexpected event at tick %d: %d", i, ev)
		}
	}
	// 80th tick triggers warning (8s)
	if ev := m.Tick(false); ev != SilenceWarn {
		t.Fatalf("expected SilenceWarn at tick 80, got %d", ev)
	}
}

func TestSilenceWarnClearsOnSpeech(t *testing.T) {
	m := warnOnlyMonitor()
	feedN(m, false, 80) // triggers warn

	// Sustained speech clears warning (need 25% of 80-tick window)
	for i := 0; i < 80; i++ {
		ev := m.Tick(true)
		if ev == SilenceWarnClear {
			return
		}
	}
	t.Fatal("expected SilenceWarnClear after speech")
}

func TestNoWarnDuringSpeech(t *testing.T) {
	m := warnOnlyMonitor()
	for i := 0; i < 200; i++ {
		if ev := m.Tick(true); ev == SilenceWarn {
			t.Fatalf("unexpected warn during speech at tick %d", i)
		}
	}
}

func TestRepeatWarning(t *testing.T) {
	m := autoStopMonitor()
	feedN(m, false, 80) // warn at tick 80
	// Next repeat at tick 80 + 80 = 160
	var gotRepeat bool
	for i := 0; i < 100; i++ {
		if ev := m.Tick(false); ev == SilenceRepeat {
			gotRepeat = true
			break
		}
	}
	if !gotRepeat {
		t.Fatal("expected SilenceRepeat")
	}
}

func TestAutoStopPriorityOverRepeat(t *testing.T) {
	m := autoStopMonitor()
	for i := 0; i < 400; i++ {
		ev := m.Tick(false)
		if ev == SilenceAutoStop {
			return
		}
		if i >= 300 && ev == SilenceRepeat {
			t.Fatalf("SilenceRepeat fired at tick %d instead of SilenceAutoStop", i)
		}
	}
	t.Fatal("expected SilenceAutoStop within 400 ticks")
}

func TestAutoStopAfterWindow(t *testing.T) {
	m := autoStopMonitor()
	var gotStop bool
	for i := 0; i < 400; i++ {
		if ev := m.Tick(false); ev == SilenceAutoStop {
			gotStop = true
			break
		}
	}
	if !gotStop {
		t.Fatal("expected SilenceAutoStop after 300 ticks")
	}
}

func TestNoAutoStopWhenDisabled(t *testing.T) {
	m := warnOnlyMonitor()
	for i := 0; i < 400; i++ {
		if ev := m.Tick(false); ev == SilenceAutoStop {
			t.Fatalf("unexpected auto-stop with monitor disabled at tick %d", i)
		}
	}
}

func TestAutoStopPreventedBySpeech(t *testing.T) {
	m := autoStopMonitor()
	for i := 0; i < 500; i++ {
		speech := i%10 < 7
		if ev := m.Tick(speech); ev == SilenceAutoStop {
			t.Fatalf("unexpected auto-stop with speech at tick %d", i)
		}
	}
}

func TestWarnOnlyOnce(t *testing.T) {
	m := warnOnlyMonitor()
	warns := 0
	for i := 0; i < 300; i++ {
		if ev := m.Tick(false); ev == SilenceWarn {
			warns++
		}
	}
	if warns != 1 {
		t.Fatalf("expected exactly 1 SilenceWarn, got %d", warns)
	}
}

func TestWarnStaysDuringNoise(t *testing.T) {
	m := warnOnlyMonitor()
	feedN(m, false, 80) // triggers warn

	// Occasional VAD false positives (< 25% speech) should NOT clear
	clears := 0
	for i := 0; i < 80; i++ {
		speech := i%10 == 0 // 10% speech - below clear threshold
		if ev := m.Tick(speech); ev == SilenceWarnClear {
			clears++
		}
	}
	if clears > 0 {
		t.Fatalf("expected warning to stay with 10%% speech, got %d clears", clears)
	}
}

func TestShortAutoStopClampsToWarnWindow(t *testing.T) {
	m := newSilenceMonitor(2 * time.Second)
	var gotStop bool
	for i := 0; i < 200; i++ {
		if ev := m.Tick(false); ev == SilenceAutoStop {
			gotStop = true
			break
		}
	}
	if !gotStop {
		t.Fatal("expected auto-stop with a short window")
	}
}
