package grpcserver

import (
	"context"

	commonpb "go.viam.com/api/common/v1"
	boardpb "go.viam.com/api/component/board/v1"
	"google.golang.org/protobuf/proto"

	"github.com/minirdk/minirdk/internal/components"
	"github.com/minirdk/minirdk/internal/resource"
)

func (s *Server) board(name string) (components.Board, error) {
	h, err := s.handle(resource.SubtypeBoard, name)
	if err != nil {
		return nil, err
	}
	b, _ := h.Board()
	return b, nil
}

func (s *Server) boardSetGPIO(ctx context.Context, payload []byte) (proto.Message, error) {
	var req boardpb.SetGPIORequest
	if err := decode(payload, &req); err != nil {
		return nil, err
	}
	b, err := s.board(req.GetName())
	if err != nil {
		return nil, err
	}
	if err := b.SetGPIO(ctx, req.GetPin(), req.GetHigh()); err != nil {
		return nil, driverErr(err)
	}
	return &boardpb.SetGPIOResponse{}, nil
}

func (s *Server) boardGetGPIO(ctx context.Context, payload []byte) (proto.Message, error) {
	var req boardpb.GetGPIORequest
	if err := decode(payload, &req); err != nil {
		return nil, err
	}
	b, err := s.board(req.GetName())
	if err != nil {
		return nil, err
	}
	high, err := b.GetGPIO(ctx, req.GetPin())
	if err != nil {
		return nil, driverErr(err)
	}
	return &boardpb.GetGPIOResponse{High: high}, nil
}

func (s *Server) boardReadAnalog(ctx context.Context, payload []byte) (proto.Message, error) {
	var req boardpb.ReadAnalogReaderRequest
	if err := decode(payload, &req); err != nil {
		return nil, err
	}
	b, err := s.board(req.GetBoardName())
	if err != nil {
		return nil, err
	}
	v, err := b.ReadAnalog(ctx, req.GetAnalogReaderName())
	if err != nil {
		return nil, driverErr(err)
	}
	return &boardpb.ReadAnalogReaderResponse{Value: v}, nil
}

func (s *Server) boardStatus(ctx context.Context, payload []byte) (proto.Message, error) {
	var req boardpb.StatusRequest
	if err := decode(payload, &req); err != nil {
		return nil, err
	}
	b, err := s.board(req.GetName())
	if err != nil {
		return nil, err
	}

	analogs := make(map[string]*commonpb.AnalogStatus)
	for _, name := range b.AnalogNames() {
		v, err := b.ReadAnalog(ctx, name)
		if err != nil {
			return nil, driverErr(err)
		}
		analogs[name] = &commonpb.AnalogStatus{Value: v}
	}
	return &boardpb.StatusResponse{
		Status: &commonpb.BoardStatus{Analogs: analogs},
	}, nil
}
