// Package cloud implements the outbound bootstrap against the cloud control
// plane: authenticate with the robot's build-time credentials, fetch the
// robot configuration, then hand off to the local server via the rendezvous.
//
// The exchange is best-effort from the server's point of view: whatever the
// outcome, the main task is notified and serves. The fetched configuration
// is decoded and logged only; nothing on the serving path depends on it.
package cloud

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/cenkalti/backoff/v5"
	apppb "go.viam.com/api/app/v1"
	rpcpb "go.viam.com/utils/proto/rpc/v1"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/metadata"

	"github.com/minirdk/minirdk/internal/rendezvous"
	"github.com/minirdk/minirdk/internal/tlsconf"
)

// DefaultAddr is the cloud control plane endpoint.
const DefaultAddr = "app.viam.com:443"

const (
	userAgent       = "esp32"
	credentialsType = "robot-secret"
	agentOS         = "esp32"
	agentVersion    = "0.0.2"

	// rpcTimeout bounds one bootstrap RPC attempt.
	rpcTimeout = 10 * time.Second
	// retryBudget bounds all attempts of one bootstrap RPC.
	retryBudget = 60 * time.Second
	// standDownCycle is how long a detached client idles between checks
	// for a stand-down notification.
	standDownCycle = 30 * time.Second
)

// Notification values delivered to the main task.
const (
	// NotifyExited means the client task ended without completing bootstrap.
	NotifyExited uint32 = 0
	// NotifyBootstrapped means authentication and config fetch succeeded.
	NotifyBootstrapped uint32 = 1
)

// Config identifies the robot to the control plane.
type Config struct {
	RobotID     string
	RobotSecret string
	// LocalIP is the address acquired at network bring-up, advertised in
	// AgentInfo so LAN clients can be pointed at the robot.
	LocalIP string
	// Addr overrides DefaultAddr. Tests point this at a local server.
	Addr string
	// Creds overrides the transport credentials derived from Addr.
	Creds credentials.TransportCredentials
}

// Client runs the bootstrap exchange.
type Client struct {
	cfg       Config
	main      *rendezvous.Rendezvous
	standDown *rendezvous.Rendezvous
	jwt       string // "Bearer <token>"; set once, never cleared
}

// New returns a Client that reports to main. main may be nil; the client
// then idles after bootstrap until stood down.
func New(cfg Config, main *rendezvous.Rendezvous) *Client {
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	return &Client{
		cfg:       cfg,
		main:      main,
		standDown: rendezvous.New(),
	}
}

// StandDown tells a detached client that a local client is arriving and the
// bootstrap task should exit.
func (c *Client) StandDown() {
	c.standDown.Notify(1)
}

// Run performs the bootstrap and notifies the main task of the outcome.
// It never returns an error: bootstrap failure is logged, reported as
// NotifyExited, and the server proceeds without JWT or config.
func (c *Client) Run(ctx context.Context) {
	if err := c.bootstrap(ctx); err != nil {
		slog.Error("cloud bootstrap failed", "err", err)
		c.notifyMain(NotifyExited)
		return
	}
	c.notifyMain(NotifyBootstrapped)

	if c.main == nil {
		c.idleUntilStandDown(ctx)
	}
}

func (c *Client) notifyMain(value uint32) {
	if c.main == nil {
		return
	}
	c.main.Notify(value)
	slog.Info("notified main task", "value", value)
}

// idleUntilStandDown parks the detached client in bounded wait cycles until
// it is stood down or the context ends.
func (c *Client) idleUntilStandDown(ctx context.Context) {
	for ctx.Err() == nil {
		if _, ok := c.standDown.Wait(standDownCycle); ok {
			slog.Info("connection incoming, cloud client task stopping")
			return
		}
	}
}

// bootstrap dials the control plane, authenticates, and fetches the config.
func (c *Client) bootstrap(ctx context.Context) error {
	creds := c.cfg.Creds
	if creds == nil {
		host, _, err := net.SplitHostPort(c.cfg.Addr)
		if err != nil {
			host = c.cfg.Addr
		}
		creds = tlsconf.CloudCredentials(host)
	}

	conn, err := grpc.NewClient(c.cfg.Addr,
		grpc.WithTransportCredentials(creds),
		grpc.WithUserAgent(userAgent),
	)
	if err != nil {
		return fmt.Errorf("dial %s: %w", c.cfg.Addr, err)
	}
	defer conn.Close()

	if err := c.authenticate(ctx, conn); err != nil {
		return fmt.Errorf("authenticate: %w", err)
	}
	if err := c.readConfig(ctx, conn); err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

// authenticate trades the robot secret for a JWT.
func (c *Client) authenticate(ctx context.Context, conn *grpc.ClientConn) error {
	client := rpcpb.NewAuthServiceClient(conn)
	req := &rpcpb.AuthenticateRequest{
		Entity: c.cfg.RobotID,
		Credentials: &rpcpb.Credentials{
			Type:    credentialsType,
			Payload: c.cfg.RobotSecret,
		},
	}

	resp, err := retryRPC(ctx, "Authenticate", func(ctx context.Context) (*rpcpb.AuthenticateResponse, error) {
		return client.Authenticate(ctx, req)
	})
	if err != nil {
		return err
	}

	c.jwt = "Bearer " + resp.GetAccessToken()
	slog.Info("authenticated with control plane", "entity", c.cfg.RobotID)
	return nil
}

// readConfig fetches the robot configuration. The response is only logged.
func (c *Client) readConfig(ctx context.Context, conn *grpc.ClientConn) error {
	client := apppb.NewRobotServiceClient(conn)
	req := &apppb.ConfigRequest{
		Id: c.cfg.RobotID,
		AgentInfo: &apppb.AgentInfo{
			Os:      agentOS,
			Host:    agentOS,
			Ips:     []string{c.cfg.LocalIP},
			Version: agentVersion,
		},
	}

	ctx = metadata.AppendToOutgoingContext(ctx, "authorization", c.jwt)
	resp, err := retryRPC(ctx, "Config", func(ctx context.Context) (*apppb.ConfigResponse, error) {
		return client.Config(ctx, req)
	})
	if err != nil {
		return err
	}

	cfg := resp.GetConfig()
	slog.Info("robot config received",
		"fqdn", cfg.GetCloud().GetFqdn(),
		"components", len(cfg.GetComponents()),
		"services", len(cfg.GetServices()),
	)
	return nil
}

// retryRPC runs one bootstrap RPC with a per-attempt timeout and exponential
// back-off within a bounded budget.
func retryRPC[T any](ctx context.Context, name string, call func(context.Context) (T, error)) (T, error) {
	attempt := 0
	return backoff.Retry(ctx, func() (T, error) {
		attempt++
		if attempt > 1 {
			slog.Warn("retrying cloud RPC", "rpc", name, "attempt", attempt)
		}
		callCtx, cancel := context.WithTimeout(ctx, rpcTimeout)
		defer cancel()
		return call(callCtx)
	},
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxElapsedTime(retryBudget),
	)
}
