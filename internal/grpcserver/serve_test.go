package grpcserver

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	motorpb "go.viam.com/api/component/motor/v1"
	robotpb "go.viam.com/api/robot/v1"
	"golang.org/x/net/http2"
	"google.golang.org/grpc/codes"
	"google.golang.org/protobuf/proto"

	"github.com/minirdk/minirdk/internal/components"
	"github.com/minirdk/minirdk/internal/grpcframe"
	"github.com/minirdk/minirdk/internal/rendezvous"
	"github.com/minirdk/minirdk/internal/resource"
	"github.com/minirdk/minirdk/internal/robot"
	"github.com/minirdk/minirdk/internal/tlsconf"
)

// startServer runs the accept loop on a loopback listener and returns its
// address and an h2 client that skips certificate verification (the test
// server uses an ephemeral self-signed identity).
func startServer(t *testing.T, handler http.Handler) (addr string, client *http.Client) {
	t.Helper()

	tlsCfg, err := tlsconf.EphemeralServerConfig("serve-test")
	require.NoError(t, err)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = Serve(ctx, ln, tlsCfg, handler)
	}()
	t.Cleanup(func() {
		cancel()
		ln.Close()
		<-done
	})

	client = &http.Client{
		Transport: &http2.Transport{
			TLSClientConfig: &tls.Config{
				InsecureSkipVerify: true, //nolint:gosec
				NextProtos:         []string{"h2"},
			},
		},
		Timeout: 10 * time.Second,
	}
	return ln.Addr().String(), client
}

// callOverWire performs one gRPC request over the real TLS+h2 stack.
func callOverWire(t *testing.T, client *http.Client, addr, path string, req, resp proto.Message) codes.Code {
	t.Helper()
	payload, err := proto.Marshal(req)
	require.NoError(t, err)

	httpReq, err := http.NewRequest(http.MethodPost,
		fmt.Sprintf("https://%s%s", addr, path),
		bytes.NewReader(grpcframe.Encode(payload)))
	require.NoError(t, err)
	httpReq.Header.Set("Content-Type", contentTypeGRPC)
	httpReq.Header.Set("TE", "trailers")

	res, err := client.Do(httpReq)
	require.NoError(t, err)
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)

	code := trailerStatus(t, res)
	if code == codes.OK && resp != nil && len(body) > 0 {
		inner, err := grpcframe.Read(bytes.NewReader(body))
		require.NoError(t, err)
		require.NoError(t, proto.Unmarshal(inner, resp))
	}
	return code
}

func TestServeEndToEnd(t *testing.T) {
	f := newFixture()
	addr, client := startServer(t, New(f.r))

	var resp robotpb.ResourceNamesResponse
	code := callOverWire(t, client, addr, "/viam.robot.v1.RobotService/ResourceNames",
		&robotpb.ResourceNamesRequest{}, &resp)
	require.Equal(t, codes.OK, code)
	assert.Len(t, resp.GetResources(), 5)
}

// A per-request failure must leave the connection and the accept loop fully
// usable.
func TestServeSurvivesRequestErrors(t *testing.T) {
	f := newFixture()
	addr, client := startServer(t, New(f.r))

	code := callOverWire(t, client, addr, "/viam.component.motor.v1.MotorService/SetPower",
		&motorpb.SetPowerRequest{Name: "ghost"}, nil)
	require.Equal(t, codes.NotFound, code)

	var resp motorpb.IsMovingResponse
	code = callOverWire(t, client, addr, "/viam.component.motor.v1.MotorService/IsMoving",
		&motorpb.IsMovingRequest{Name: "m1"}, &resp)
	require.Equal(t, codes.OK, code)
}

// A failed TLS handshake aborts that connection only; the next accept works.
func TestServeSurvivesHandshakeFailure(t *testing.T) {
	f := newFixture()
	addr, client := startServer(t, New(f.r))

	raw, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	_, _ = raw.Write([]byte("this is not a client hello\r\n"))
	_ = raw.Close()

	var resp robotpb.ResourceNamesResponse
	code := callOverWire(t, client, addr, "/viam.robot.v1.RobotService/ResourceNames",
		&robotpb.ResourceNamesRequest{}, &resp)
	require.Equal(t, codes.OK, code)
}

// With one concurrent stream, two in-flight requests on one connection are
// served strictly one after the other.
func TestSingleStreamSerializesRequests(t *testing.T) {
	blocked := &blockedMotor{release: make(chan struct{})}
	r := robot.New()
	r.Insert(resource.NewComponent(resource.SubtypeMotor, "m1"), robot.MotorHandle(blocked))
	r.Insert(resource.NewComponent(resource.SubtypeMotor, "m2"),
		robot.MotorHandle(components.NewFakeMotor()))
	addr, client := startServer(t, New(r, WithDriverTimeout(5*time.Second)))

	// Honour the server's SETTINGS_MAX_CONCURRENT_STREAMS=1 on one
	// connection instead of dialing a second one.
	client.Transport.(*http2.Transport).StrictMaxConcurrentStreams = true

	first := make(chan codes.Code, 1)
	go func() {
		first <- callOverWire(t, client, addr, "/viam.component.motor.v1.MotorService/SetPower",
			&motorpb.SetPowerRequest{Name: "m1", PowerPct: 1}, nil)
	}()

	// Let the first stream open and block in its driver call.
	time.Sleep(100 * time.Millisecond)

	second := make(chan codes.Code, 1)
	go func() {
		second <- callOverWire(t, client, addr, "/viam.component.motor.v1.MotorService/IsMoving",
			&motorpb.IsMovingRequest{Name: "m2"}, &motorpb.IsMovingResponse{})
	}()

	// The second stream must not complete while the first holds the
	// connection's only stream slot.
	select {
	case <-second:
		t.Fatal("second stream completed while the first was still in flight")
	case <-time.After(300 * time.Millisecond):
	}

	close(blocked.release)
	assert.Equal(t, codes.OK, <-first)
	assert.Equal(t, codes.OK, <-second)
}

// The first dispatched request happens strictly after the bootstrap
// rendezvous fires, whichever value it carries.
func TestFirstRequestAfterBootstrapNotify(t *testing.T) {
	for _, value := range []uint32{0, 1} {
		bootDone := rendezvous.New()
		var bootstrapped atomic.Bool

		f := newFixture()
		inner := New(f.r)
		checking := http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			assert.True(t, bootstrapped.Load(), "request dispatched during bootstrap")
			inner.ServeHTTP(w, req)
		})

		tlsCfg, err := tlsconf.EphemeralServerConfig("bootstrap-test")
		require.NoError(t, err)
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		require.NoError(t, err)

		// Cloud-client stand-in: bootstrap takes a while, then notifies.
		go func(v uint32) {
			time.Sleep(150 * time.Millisecond)
			bootstrapped.Store(true)
			bootDone.Notify(v)
		}(value)

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})
		go func() {
			defer close(done)
			// The main task's contract: wait for the rendezvous before the
			// first accept is serviced.
			_, _ = bootDone.Wait(5 * time.Second)
			_ = Serve(ctx, ln, tlsCfg, checking)
		}()

		client := &http.Client{
			Transport: &http2.Transport{
				TLSClientConfig: &tls.Config{
					InsecureSkipVerify: true, //nolint:gosec
					NextProtos:         []string{"h2"},
				},
			},
			Timeout: 10 * time.Second,
		}

		// The client may connect while bootstrap is still running; its
		// request must not be dispatched until the notify lands.
		var resp robotpb.ResourceNamesResponse
		code := callOverWire(t, client, ln.Addr().String(),
			"/viam.robot.v1.RobotService/ResourceNames",
			&robotpb.ResourceNamesRequest{}, &resp)
		assert.Equal(t, codes.OK, code)

		cancel()
		ln.Close()
		<-done
	}
}
