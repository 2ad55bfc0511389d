package components

import (
	"context"
	"errors"
	"math"
	"sync"
)

// Base is a mobile platform.
type Base interface {
	// SetPower drives the base with linear (forward) and angular (spin)
	// power fractions in [-1.0, 1.0].
	SetPower(ctx context.Context, linear, angular float64) error
	// MoveStraight starts an open-loop straight move of distanceMm at
	// mmPerSec. The base keeps moving until stopped.
	MoveStraight(ctx context.Context, distanceMm int64, mmPerSec float64) error
	// Spin starts an open-loop rotation of angleDeg at degsPerSec.
	Spin(ctx context.Context, angleDeg, degsPerSec float64) error
	// Stop halts all motion.
	Stop(ctx context.Context) error
	// IsMoving reports whether the base is currently in motion.
	IsMoving(ctx context.Context) (bool, error)
}

// WheeledBase is a differential-drive Base over two motors. There is no
// encoder feedback: moves are open-loop and run until Stop.
type WheeledBase struct {
	left  Motor
	right Motor
}

// NewWheeledBase returns a Base driving left and right.
func NewWheeledBase(left, right Motor) *WheeledBase {
	return &WheeledBase{left: left, right: right}
}

// SetPower mixes linear and angular into per-wheel power. The mix is
// normalized so a combined command never exceeds full scale on either wheel.
func (b *WheeledBase) SetPower(ctx context.Context, linear, angular float64) error {
	l, err := clampPower(linear)
	if err != nil {
		return err
	}
	a, err := clampPower(angular)
	if err != nil {
		return err
	}

	lp := l - a
	rp := l + a
	if scale := math.Max(math.Abs(lp), math.Abs(rp)); scale > 1 {
		lp /= scale
		rp /= scale
	}

	if err := b.left.SetPower(ctx, lp); err != nil {
		return err
	}
	return b.right.SetPower(ctx, rp)
}

func (b *WheeledBase) MoveStraight(ctx context.Context, distanceMm int64, mmPerSec float64) error {
	if distanceMm == 0 || mmPerSec == 0 {
		return b.Stop(ctx)
	}
	power := 1.0
	if float64(distanceMm)*mmPerSec < 0 {
		power = -1.0
	}
	return b.SetPower(ctx, power, 0)
}

func (b *WheeledBase) Spin(ctx context.Context, angleDeg, degsPerSec float64) error {
	if angleDeg == 0 || degsPerSec == 0 {
		return b.Stop(ctx)
	}
	power := 1.0
	if angleDeg*degsPerSec < 0 {
		power = -1.0
	}
	return b.SetPower(ctx, 0, power)
}

// Stop halts both wheels, attempting the second even if the first errors.
func (b *WheeledBase) Stop(ctx context.Context) error {
	return errors.Join(b.left.Stop(ctx), b.right.Stop(ctx))
}

func (b *WheeledBase) IsMoving(ctx context.Context) (bool, error) {
	l, err := b.left.IsPowered(ctx)
	if err != nil {
		return false, err
	}
	r, err := b.right.IsPowered(ctx)
	if err != nil {
		return false, err
	}
	return l || r, nil
}

// FakeBase is a Base that only tracks whether it is moving.
type FakeBase struct {
	mu     sync.Mutex
	moving bool
}

// NewFakeBase returns a stationary FakeBase.
func NewFakeBase() *FakeBase { return &FakeBase{} }

func (b *FakeBase) SetPower(_ context.Context, linear, angular float64) error {
	l, err := clampPower(linear)
	if err != nil {
		return err
	}
	a, err := clampPower(angular)
	if err != nil {
		return err
	}
	b.mu.Lock()
	b.moving = l != 0 || a != 0
	b.mu.Unlock()
	return nil
}

func (b *FakeBase) MoveStraight(_ context.Context, distanceMm int64, mmPerSec float64) error {
	b.mu.Lock()
	b.moving = distanceMm != 0 && mmPerSec != 0
	b.mu.Unlock()
	return nil
}

func (b *FakeBase) Spin(_ context.Context, angleDeg, degsPerSec float64) error {
	b.mu.Lock()
	b.moving = angleDeg != 0 && degsPerSec != 0
	b.mu.Unlock()
	return nil
}

func (b *FakeBase) Stop(_ context.Context) error {
	b.mu.Lock()
	b.moving = false
	b.mu.Unlock()
	return nil
}

func (b *FakeBase) IsMoving(_ context.Context) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.moving, nil
}
