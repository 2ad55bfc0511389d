package grpcserver

import (
	"context"

	robotpb "go.viam.com/api/robot/v1"
	"google.golang.org/grpc/codes"
	"google.golang.org/protobuf/proto"

	"github.com/minirdk/minirdk/internal/resource"
	"github.com/minirdk/minirdk/internal/robot"
)

// handle resolves a component by subtype and bare name.
func (s *Server) handle(subtype, name string) (robot.Handle, error) {
	h, ok := s.r.Get(resource.NewComponent(subtype, name))
	if !ok {
		return robot.Handle{}, rpcErrorf(codes.NotFound,
			"no %s named %q", subtype, name)
	}
	return h, nil
}

func (s *Server) resourceNames(_ context.Context, payload []byte) (proto.Message, error) {
	var req robotpb.ResourceNamesRequest
	if err := decode(payload, &req); err != nil {
		return nil, err
	}

	names := s.r.Names()
	resp := &robotpb.ResourceNamesResponse{}
	for _, n := range names {
		resp.Resources = append(resp.Resources, n.ToProto())
	}
	return resp, nil
}

func (s *Server) getStatus(ctx context.Context, payload []byte) (proto.Message, error) {
	var req robotpb.GetStatusRequest
	if err := decode(payload, &req); err != nil {
		return nil, err
	}

	// No filter: sweep everything the registry holds.
	if len(req.GetResourceNames()) == 0 {
		return &robotpb.GetStatusResponse{Status: s.r.Statuses(ctx)}, nil
	}

	resp := &robotpb.GetStatusResponse{}
	for _, pbName := range req.GetResourceNames() {
		name := resource.FromProto(pbName)
		h, ok := s.r.Get(name)
		if !ok {
			return nil, rpcErrorf(codes.NotFound, "no resource %s", name.String())
		}
		st, err := h.Status(ctx)
		if err != nil {
			return nil, driverErr(err)
		}
		resp.Status = append(resp.Status, &robotpb.Status{
			Name:   pbName,
			Status: st,
		})
	}
	return resp, nil
}

func (s *Server) stopAll(ctx context.Context, payload []byte) (proto.Message, error) {
	var req robotpb.StopAllRequest
	if err := decode(payload, &req); err != nil {
		return nil, err
	}
	if err := s.r.StopAll(ctx); err != nil {
		return nil, driverErr(err)
	}
	return &robotpb.StopAllResponse{}, nil
}
