// Package robot implements the component registry: the map from fully
// qualified resource names to live hardware handles.
//
// The registry is built once during boot and is immutable in membership
// afterwards. Handles are shared: RPC handlers borrow them for the duration
// of a single driver call, and each driver serializes its own state.
package robot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	robotpb "go.viam.com/api/robot/v1"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/minirdk/minirdk/internal/components"
	"github.com/minirdk/minirdk/internal/resource"
)

// Kind tags the capability class of a Handle.
type Kind int

const (
	KindInvalid Kind = iota
	KindMotor
	KindBoard
	KindBase
	KindCamera
)

func (k Kind) String() string {
	switch k {
	case KindMotor:
		return "motor"
	case KindBoard:
		return "board"
	case KindBase:
		return "base"
	case KindCamera:
		return "camera"
	default:
		return "invalid"
	}
}

// Handle is a tagged variant over the component capabilities. Exactly one of
// the capability fields is set, per the kind tag. Dispatch happens by kind,
// not by per-entry virtual calls, so the registry stays flat.
type Handle struct {
	kind   Kind
	motor  components.Motor
	board  components.Board
	base   components.Base
	camera components.Camera
}

// MotorHandle wraps m in a Handle.
func MotorHandle(m components.Motor) Handle { return Handle{kind: KindMotor, motor: m} }

// BoardHandle wraps b in a Handle.
func BoardHandle(b components.Board) Handle { return Handle{kind: KindBoard, board: b} }

// BaseHandle wraps b in a Handle.
func BaseHandle(b components.Base) Handle { return Handle{kind: KindBase, base: b} }

// CameraHandle wraps c in a Handle.
func CameraHandle(c components.Camera) Handle { return Handle{kind: KindCamera, camera: c} }

// Kind returns the capability class of the handle.
func (h Handle) Kind() Kind { return h.kind }

// Motor returns the motor capability, if this handle has one.
func (h Handle) Motor() (components.Motor, bool) { return h.motor, h.kind == KindMotor }

// Board returns the board capability, if this handle has one.
func (h Handle) Board() (components.Board, bool) { return h.board, h.kind == KindBoard }

// Base returns the base capability, if this handle has one.
func (h Handle) Base() (components.Base, bool) { return h.base, h.kind == KindBase }

// Camera returns the camera capability, if this handle has one.
func (h Handle) Camera() (components.Camera, bool) { return h.camera, h.kind == KindCamera }

// Status asks the underlying driver for its current observable state.
func (h Handle) Status(ctx context.Context) (*structpb.Struct, error) {
	switch h.kind {
	case KindMotor:
		powered, err := h.motor.IsPowered(ctx)
		if err != nil {
			return nil, err
		}
		return structpb.NewStruct(map[string]any{"is_powered": powered})
	case KindBoard:
		analogs := map[string]any{}
		for _, name := range h.board.AnalogNames() {
			v, err := h.board.ReadAnalog(ctx, name)
			if err != nil {
				return nil, err
			}
			analogs[name] = int(v)
		}
		return structpb.NewStruct(map[string]any{"analogs": analogs})
	case KindBase:
		moving, err := h.base.IsMoving(ctx)
		if err != nil {
			return nil, err
		}
		return structpb.NewStruct(map[string]any{"is_moving": moving})
	case KindCamera:
		return structpb.NewStruct(map[string]any{"mime_type": h.camera.MimeType()})
	default:
		return nil, fmt.Errorf("handle has no kind")
	}
}

// Robot is the registry of all exposed components.
type Robot struct {
	mu        sync.RWMutex
	resources map[resource.Name]Handle
}

// New returns an empty registry.
func New() *Robot {
	return &Robot{resources: make(map[resource.Name]Handle)}
}

// Insert adds a handle under name. Boot-time only: a duplicate name replaces
// the previous entry silently.
func (r *Robot) Insert(name resource.Name, h Handle) {
	r.mu.Lock()
	r.resources[name] = h
	total := len(r.resources)
	r.mu.Unlock()

	slog.Debug("resource registered",
		"name", name.String(),
		"kind", h.Kind().String(),
		"total", total,
	)
}

// Get returns the handle registered under name.
func (r *Robot) Get(name resource.Name) (Handle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.resources[name]
	return h, ok
}

// Names returns every registered resource name. Ordering is unspecified.
func (r *Robot) Names() []resource.Name {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]resource.Name, 0, len(r.resources))
	for n := range r.resources {
		out = append(out, n)
	}
	return out
}

// Statuses sweeps every handle for its status. A handle that fails is logged
// and skipped; the rest of the sweep still returns.
func (r *Robot) Statuses(ctx context.Context) []*robotpb.Status {
	r.mu.RLock()
	snapshot := make(map[resource.Name]Handle, len(r.resources))
	for n, h := range r.resources {
		snapshot[n] = h
	}
	r.mu.RUnlock()

	out := make([]*robotpb.Status, 0, len(snapshot))
	for n, h := range snapshot {
		st, err := h.Status(ctx)
		if err != nil {
			slog.Warn("status sweep: handle failed", "name", n.String(), "err", err)
			continue
		}
		out = append(out, &robotpb.Status{Name: n.ToProto(), Status: st})
	}
	return out
}

// StopAll stops every motor and base. All handles are attempted; the
// accumulated errors are returned after the sweep completes.
func (r *Robot) StopAll(ctx context.Context) error {
	r.mu.RLock()
	snapshot := make(map[resource.Name]Handle, len(r.resources))
	for n, h := range r.resources {
		snapshot[n] = h
	}
	r.mu.RUnlock()

	var errs []error
	for n, h := range snapshot {
		var err error
		switch h.kind {
		case KindMotor:
			err = h.motor.Stop(ctx)
		case KindBase:
			err = h.base.Stop(ctx)
		default:
			continue
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("stop %s: %w", n.String(), err))
		}
	}
	return errors.Join(errs...)
}
