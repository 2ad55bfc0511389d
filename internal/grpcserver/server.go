// Package grpcserver implements the robot's inbound gRPC surface by hand:
// request validation, length-prefixed framing, a static routing table, and
// status trailers, served over HTTP/2.
//
// The dispatcher is deliberately not built on a general-purpose gRPC server:
// the target device serves one connection and one stream at a time, and owns
// its framing end to end. Unary request/response is the only supported shape.
package grpcserver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/protobuf/proto"

	"github.com/minirdk/minirdk/internal/grpcframe"
	"github.com/minirdk/minirdk/internal/robot"
)

const contentTypeGRPC = "application/grpc"

// defaultDriverTimeout bounds a single driver call made by a handler.
const defaultDriverTimeout = time.Second

// methodHandler decodes a request payload, invokes a driver, and returns the
// response message.
type methodHandler func(ctx context.Context, payload []byte) (proto.Message, error)

// rpcError carries an explicit gRPC status code through a handler return.
type rpcError struct {
	code codes.Code
	msg  string
}

func (e *rpcError) Error() string { return e.msg }

func rpcErrorf(code codes.Code, format string, args ...any) *rpcError {
	return &rpcError{code: code, msg: fmt.Sprintf(format, args...)}
}

// Server routes gRPC requests to the handles of a robot registry. It
// implements http.Handler and expects to be served over HTTP/2.
type Server struct {
	r       *robot.Robot
	timeout time.Duration
	routes  map[string]map[string]methodHandler
}

// Option configures a Server.
type Option func(*Server)

// WithDriverTimeout overrides the per-driver-call deadline.
func WithDriverTimeout(d time.Duration) Option {
	return func(s *Server) { s.timeout = d }
}

// New returns a Server dispatching onto r.
func New(r *robot.Robot, opts ...Option) *Server {
	s := &Server{r: r, timeout: defaultDriverTimeout}
	for _, o := range opts {
		o(s)
	}
	s.routes = map[string]map[string]methodHandler{
		"viam.robot.v1.RobotService": {
			"ResourceNames": s.resourceNames,
			"GetStatus":     s.getStatus,
			"StopAll":       s.stopAll,
		},
		"viam.component.motor.v1.MotorService": {
			"SetPower":    s.motorSetPower,
			"GetPosition": s.motorGetPosition,
			"Stop":        s.motorStop,
			"IsMoving":    s.motorIsMoving,
		},
		"viam.component.board.v1.BoardService": {
			"SetGPIO":          s.boardSetGPIO,
			"GetGPIO":          s.boardGetGPIO,
			"ReadAnalogReader": s.boardReadAnalog,
			"Status":           s.boardStatus,
		},
		"viam.component.base.v1.BaseService": {
			"SetPower":     s.baseSetPower,
			"MoveStraight": s.baseMoveStraight,
			"Spin":         s.baseSpin,
			"Stop":         s.baseStop,
			"IsMoving":     s.baseIsMoving,
		},
		"viam.component.camera.v1.CameraService": {
			"GetImage": s.cameraGetImage,
		},
	}
	return s
}

// ServeHTTP handles one gRPC request. Headers are written exactly once and
// trailers always close the stream; per-request failures are reported in the
// grpc-status trailer with the response staying HTTP 200.
func (s *Server) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	payload, err := s.dispatch(req)

	code := codes.OK
	msg := ""
	if err != nil {
		code, msg = toStatus(err)
		slog.Debug("request failed",
			"path", req.URL.Path,
			"code", code.String(),
			"err", err,
		)
	}

	w.Header().Set("Content-Type", contentTypeGRPC)
	w.WriteHeader(http.StatusOK)
	if code == codes.OK && payload != nil {
		if _, werr := w.Write(grpcframe.Encode(payload)); werr != nil {
			slog.Warn("response write failed", "path", req.URL.Path, "err", werr)
		}
	}

	w.Header().Set(http.TrailerPrefix+"grpc-status", strconv.Itoa(int(code)))
	if msg != "" {
		w.Header().Set(http.TrailerPrefix+"grpc-message", encodeGrpcMessage(msg))
	}
}

// dispatch validates the request, routes it, and returns the serialized
// response payload.
func (s *Server) dispatch(req *http.Request) ([]byte, error) {
	if req.Method != http.MethodPost {
		return nil, rpcErrorf(codes.Unimplemented, "method %s not allowed", req.Method)
	}
	if !strings.HasPrefix(req.Header.Get("Content-Type"), contentTypeGRPC) {
		return nil, rpcErrorf(codes.Unimplemented, "unexpected content type")
	}

	service, method, ok := splitPath(req.URL.Path)
	if !ok {
		return nil, rpcErrorf(codes.Unimplemented, "malformed path %q", req.URL.Path)
	}
	methods, ok := s.routes[service]
	if !ok {
		return nil, rpcErrorf(codes.Unimplemented, "unknown service %s", service)
	}
	handler, ok := methods[method]
	if !ok {
		return nil, rpcErrorf(codes.Unimplemented, "unknown method %s/%s", service, method)
	}

	body, err := grpcframe.ReadUnary(req.Body)
	if err != nil {
		if err == io.EOF {
			return nil, rpcErrorf(codes.InvalidArgument, "missing request frame")
		}
		return nil, rpcErrorf(codes.InvalidArgument, "bad request frame: %v", err)
	}

	ctx, cancel := context.WithTimeout(req.Context(), s.timeout)
	defer cancel()

	resp, err := handler(ctx, body)
	if err != nil {
		return nil, err
	}
	out, err := proto.Marshal(resp)
	if err != nil {
		return nil, fmt.Errorf("marshal response: %w", err)
	}
	return out, nil
}

// splitPath parses "/{fully.qualified.Service}/{Method}".
func splitPath(path string) (service, method string, ok bool) {
	if !strings.HasPrefix(path, "/") {
		return "", "", false
	}
	service, method, found := strings.Cut(path[1:], "/")
	if !found || service == "" || method == "" || !strings.Contains(service, ".") ||
		strings.Contains(method, "/") {
		return "", "", false
	}
	return service, method, true
}

// toStatus maps a handler error to a gRPC status code and message.
func toStatus(err error) (codes.Code, string) {
	var re *rpcError
	switch {
	case errors.As(err, &re):
		return re.code, re.msg
	case errors.Is(err, context.DeadlineExceeded):
		return codes.DeadlineExceeded, "driver deadline exceeded"
	default:
		return codes.Unknown, err.Error()
	}
}

// decode unmarshals payload into msg, mapping failures to INVALID_ARGUMENT.
func decode(payload []byte, msg proto.Message) error {
	if err := proto.Unmarshal(payload, msg); err != nil {
		return rpcErrorf(codes.InvalidArgument, "bad request payload: %v", err)
	}
	return nil
}

// driverErr wraps a driver failure, preserving deadline errors.
func driverErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return context.DeadlineExceeded
	}
	return err
}

// encodeGrpcMessage percent-encodes msg for the grpc-message trailer:
// every byte outside the printable ASCII range, plus '%', becomes %XX.
func encodeGrpcMessage(msg string) string {
	var b strings.Builder
	for i := 0; i < len(msg); i++ {
		c := msg[i]
		if c >= 0x20 && c <= 0x7e && c != '%' {
			b.WriteByte(c)
			continue
		}
		fmt.Fprintf(&b, "%%%02X", c)
	}
	return b.String()
}
