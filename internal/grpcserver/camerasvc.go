package grpcserver

import (
	"context"

	camerapb "go.viam.com/api/component/camera/v1"
	"google.golang.org/protobuf/proto"

	"github.com/minirdk/minirdk/internal/resource"
)

func (s *Server) cameraGetImage(ctx context.Context, payload []byte) (proto.Message, error) {
	var req camerapb.GetImageRequest
	if err := decode(payload, &req); err != nil {
		return nil, err
	}
	h, err := s.handle(resource.SubtypeCamera, req.GetName())
	if err != nil {
		return nil, err
	}
	cam, _ := h.Camera()
	frame, err := cam.Frame(ctx)
	if err != nil {
		return nil, driverErr(err)
	}
	return &camerapb.GetImageResponse{
		MimeType: cam.MimeType(),
		Image:    frame,
	}, nil
}
