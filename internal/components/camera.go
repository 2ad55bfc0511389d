package components

import (
	"context"
	"sync"
)

// Camera produces single frames on demand.
type Camera interface {
	// Frame captures and returns one encoded frame.
	Frame(ctx context.Context) ([]byte, error)
	// MimeType is the encoding of frames returned by Frame.
	MimeType() string
}

// jpegStub is a minimal but well-formed JPEG (SOI + EOI markers only).
var jpegStub = []byte{0xff, 0xd8, 0xff, 0xd9}

// FakeCamera is a Camera returning a fixed stub frame.
type FakeCamera struct {
	mu    sync.Mutex
	frame []byte
}

// NewFakeCamera returns a camera producing a stub JPEG frame.
func NewFakeCamera() *FakeCamera {
	return &FakeCamera{frame: jpegStub}
}

func (c *FakeCamera) Frame(_ context.Context) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]byte, len(c.frame))
	copy(out, c.frame)
	return out, nil
}

func (c *FakeCamera) MimeType() string { return "image/jpeg" }

// SetFrame replaces the frame returned by Frame. Test helper.
func (c *FakeCamera) SetFrame(b []byte) {
	c.mu.Lock()
	c.frame = b
	c.mu.Unlock()
}
