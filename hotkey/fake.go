package hotkey

type FakeTrigger struct {
	toggles chan struct{}
}

func NewFake() *FakeTrigger {
	return &FakeTrigger{toggles: make(chan struct{}, 1)}
}

func (f *FakeTrigger) Register() error          { return nil }
func (f *FakeTrigger) Unregister()              {}
func (f *FakeTrigger) Toggles() <-chan struct{} { return f.toggles }

func (f *FakeTrigger) SimToggle() { f.toggles <- struct{}{} }
