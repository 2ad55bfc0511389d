package grpcserver

import (
	"context"

	motorpb "go.viam.com/api/component/motor/v1"
	"google.golang.org/protobuf/proto"

	"github.com/minirdk/minirdk/internal/components"
	"github.com/minirdk/minirdk/internal/resource"
)

func (s *Server) motor(name string) (components.Motor, error) {
	h, err := s.handle(resource.SubtypeMotor, name)
	if err != nil {
		return nil, err
	}
	m, _ := h.Motor()
	return m, nil
}

func (s *Server) motorSetPower(ctx context.Context, payload []byte) (proto.Message, error) {
	var req motorpb.SetPowerRequest
	if err := decode(payload, &req); err != nil {
		return nil, err
	}
	m, err := s.motor(req.GetName())
	if err != nil {
		return nil, err
	}
	if err := m.SetPower(ctx, req.GetPowerPct()); err != nil {
		return nil, driverErr(err)
	}
	return &motorpb.SetPowerResponse{}, nil
}

func (s *Server) motorGetPosition(ctx context.Context, payload []byte) (proto.Message, error) {
	var req motorpb.GetPositionRequest
	if err := decode(payload, &req); err != nil {
		return nil, err
	}
	m, err := s.motor(req.GetName())
	if err != nil {
		return nil, err
	}
	pos, err := m.Position(ctx)
	if err != nil {
		return nil, driverErr(err)
	}
	return &motorpb.GetPositionResponse{Position: pos}, nil
}

func (s *Server) motorStop(ctx context.Context, payload []byte) (proto.Message, error) {
	var req motorpb.StopRequest
	if err := decode(payload, &req); err != nil {
		return nil, err
	}
	m, err := s.motor(req.GetName())
	if err != nil {
		return nil, err
	}
	if err := m.Stop(ctx); err != nil {
		return nil, driverErr(err)
	}
	return &motorpb.StopResponse{}, nil
}

func (s *Server) motorIsMoving(ctx context.Context, payload []byte) (proto.Message, error) {
	var req motorpb.IsMovingRequest
	if err := decode(payload, &req); err != nil {
		return nil, err
	}
	m, err := s.motor(req.GetName())
	if err != nil {
		return nil, err
	}
	powered, err := m.IsPowered(ctx)
	if err != nil {
		return nil, driverErr(err)
	}
	return &motorpb.IsMovingResponse{IsMoving: powered}, nil
}
