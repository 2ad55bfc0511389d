// Package components defines the capability contracts for the hardware the
// robot exposes, together with the in-memory fakes used under emulation.
//
// Every method is synchronous and bounded: a driver that must wait on
// hardware does so within its own deadline and honours ctx. Implementations
// synchronize internally; callers hold no lock across calls.
package components

import (
	"context"
	"fmt"
	"math"
	"sync"
)

// Motor is a single PWM-driven motor.
type Motor interface {
	// SetPower sets the motor power as a fraction in [-1.0, 1.0].
	SetPower(ctx context.Context, powerPct float64) error
	// Position returns the current position in revolutions.
	Position(ctx context.Context) (float64, error)
	// Stop cuts power to the motor.
	Stop(ctx context.Context) error
	// IsPowered reports whether the motor is currently powered.
	IsPowered(ctx context.Context) (bool, error)
}

// clampPower bounds p to [-1, 1] and rejects non-finite values.
func clampPower(p float64) (float64, error) {
	if math.IsNaN(p) || math.IsInf(p, 0) {
		return 0, fmt.Errorf("power %v is not finite", p)
	}
	return math.Max(-1, math.Min(1, p)), nil
}

// FakeMotor is a Motor backed by nothing but state.
type FakeMotor struct {
	mu    sync.Mutex
	power float64
	pos   float64
}

// NewFakeMotor returns a stopped FakeMotor at position 0.
func NewFakeMotor() *FakeMotor { return &FakeMotor{} }

func (m *FakeMotor) SetPower(_ context.Context, powerPct float64) error {
	p, err := clampPower(powerPct)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.power = p
	m.mu.Unlock()
	return nil
}

func (m *FakeMotor) Position(_ context.Context) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pos, nil
}

func (m *FakeMotor) Stop(_ context.Context) error {
	m.mu.Lock()
	m.power = 0
	m.mu.Unlock()
	return nil
}

func (m *FakeMotor) IsPowered(_ context.Context) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.power != 0, nil
}

// Power returns the last power set. Test helper.
func (m *FakeMotor) Power() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.power
}
