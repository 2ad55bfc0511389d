package components

import (
	"context"
	"fmt"
	"sync"
)

// AnalogReader reads one analog input channel.
type AnalogReader interface {
	// Name identifies the channel on its board (e.g. "A1").
	Name() string
	// Read returns the current raw ADC value.
	Read(ctx context.Context) (int32, error)
}

// Board is a GPIO board with named analog readers.
type Board interface {
	// SetGPIO drives the named pin high or low.
	SetGPIO(ctx context.Context, pin string, high bool) error
	// GetGPIO reports the state of the named pin.
	GetGPIO(ctx context.Context, pin string) (bool, error)
	// ReadAnalog reads the analog channel with the given name.
	ReadAnalog(ctx context.Context, name string) (int32, error)
	// AnalogNames lists the board's analog channels.
	AnalogNames() []string
}

// FakeAnalogReader is an AnalogReader returning a settable value.
type FakeAnalogReader struct {
	name string

	mu    sync.Mutex
	value int32
}

// NewFakeAnalogReader returns a reader named name that reads value.
func NewFakeAnalogReader(name string, value int32) *FakeAnalogReader {
	return &FakeAnalogReader{name: name, value: value}
}

func (r *FakeAnalogReader) Name() string { return r.name }

func (r *FakeAnalogReader) Read(_ context.Context) (int32, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.value, nil
}

// SetValue changes the value returned by Read. Test helper.
func (r *FakeAnalogReader) SetValue(v int32) {
	r.mu.Lock()
	r.value = v
	r.mu.Unlock()
}

// FakeBoard is a Board over in-memory pins and a fixed set of readers.
type FakeBoard struct {
	mu      sync.Mutex
	pins    map[string]bool
	analogs map[string]AnalogReader
}

// NewFakeBoard returns a board exposing the given analog readers. All GPIO
// pins exist implicitly and start low.
func NewFakeBoard(analogs []AnalogReader) *FakeBoard {
	m := make(map[string]AnalogReader, len(analogs))
	for _, a := range analogs {
		m[a.Name()] = a
	}
	return &FakeBoard{pins: make(map[string]bool), analogs: m}
}

func (b *FakeBoard) SetGPIO(_ context.Context, pin string, high bool) error {
	b.mu.Lock()
	b.pins[pin] = high
	b.mu.Unlock()
	return nil
}

func (b *FakeBoard) GetGPIO(_ context.Context, pin string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pins[pin], nil
}

func (b *FakeBoard) ReadAnalog(ctx context.Context, name string) (int32, error) {
	b.mu.Lock()
	a, ok := b.analogs[name]
	b.mu.Unlock()
	if !ok {
		return 0, fmt.Errorf("no analog reader %q", name)
	}
	return a.Read(ctx)
}

func (b *FakeBoard) AnalogNames() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	names := make([]string, 0, len(b.analogs))
	for n := range b.analogs {
		names = append(names, n)
	}
	return names
}
