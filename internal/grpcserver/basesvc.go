package grpcserver

import (
	"context"

	basepb "go.viam.com/api/component/base/v1"
	"google.golang.org/protobuf/proto"

	"github.com/minirdk/minirdk/internal/components"
	"github.com/minirdk/minirdk/internal/resource"
)

func (s *Server) base(name string) (components.Base, error) {
	h, err := s.handle(resource.SubtypeBase, name)
	if err != nil {
		return nil, err
	}
	b, _ := h.Base()
	return b, nil
}

func (s *Server) baseSetPower(ctx context.Context, payload []byte) (proto.Message, error) {
	var req basepb.SetPowerRequest
	if err := decode(payload, &req); err != nil {
		return nil, err
	}
	b, err := s.base(req.GetName())
	if err != nil {
		return nil, err
	}
	linear := req.GetLinear().GetX()
	angular := req.GetAngular().GetZ()
	if err := b.SetPower(ctx, linear, angular); err != nil {
		return nil, driverErr(err)
	}
	return &basepb.SetPowerResponse{}, nil
}

func (s *Server) baseMoveStraight(ctx context.Context, payload []byte) (proto.Message, error) {
	var req basepb.MoveStraightRequest
	if err := decode(payload, &req); err != nil {
		return nil, err
	}
	b, err := s.base(req.GetName())
	if err != nil {
		return nil, err
	}
	if err := b.MoveStraight(ctx, req.GetDistanceMm(), req.GetMmPerSec()); err != nil {
		return nil, driverErr(err)
	}
	return &basepb.MoveStraightResponse{}, nil
}

func (s *Server) baseSpin(ctx context.Context, payload []byte) (proto.Message, error) {
	var req basepb.SpinRequest
	if err := decode(payload, &req); err != nil {
		return nil, err
	}
	b, err := s.base(req.GetName())
	if err != nil {
		return nil, err
	}
	if err := b.Spin(ctx, req.GetAngleDeg(), req.GetDegsPerSec()); err != nil {
		return nil, driverErr(err)
	}
	return &basepb.SpinResponse{}, nil
}

func (s *Server) baseStop(ctx context.Context, payload []byte) (proto.Message, error) {
	var req basepb.StopRequest
	if err := decode(payload, &req); err != nil {
		return nil, err
	}
	b, err := s.base(req.GetName())
	if err != nil {
		return nil, err
	}
	if err := b.Stop(ctx); err != nil {
		return nil, driverErr(err)
	}
	return &basepb.StopResponse{}, nil
}

func (s *Server) baseIsMoving(ctx context.Context, payload []byte) (proto.Message, error) {
	var req basepb.IsMovingRequest
	if err := decode(payload, &req); err != nil {
		return nil, err
	}
	b, err := s.base(req.GetName())
	if err != nil {
		return nil, err
	}
	moving, err := b.IsMoving(ctx)
	if err != nil {
		return nil, driverErr(err)
	}
	return &basepb.IsMovingResponse{IsMoving: moving}, nil
}
