package main

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/minirdk/minirdk/internal/cloud"
	"github.com/minirdk/minirdk/internal/grpcserver"
	"github.com/minirdk/minirdk/internal/platform"
	"github.com/minirdk/minirdk/internal/rendezvous"
	"github.com/minirdk/minirdk/internal/tlsconf"
)

// bootstrapWait caps how long the first accept is delayed waiting for the
// cloud client's notification. The client's own retry budget is shorter, so
// a notification normally arrives well before this.
const bootstrapWait = 2 * time.Minute

func newServeCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the robot server",
		Long: `Starts the robot server. Boot order: wait for the network, build the
component registry, advertise over mDNS, start the cloud bootstrap task,
then accept RPCs on the listen address.

The cloud bootstrap authenticates with the robot's secret and fetches the
robot configuration. Its failure is not fatal: the server still serves LAN
clients, just without a cloud session.

Transport
  Inbound connections are TLS + HTTP/2 on port 80 (TLS on a non-standard
  port is deliberate; the expected LAN client dials it). One connection and
  one stream are served at a time.

Identity
  robot-id, robot-secret, and robot-name are baked in at build time and can
  be overridden here for emulation.

Flag                Env var                   Config key
  ─────────────────────────────────────────────────────────
  --addr              MINIRDK_ADDR              addr
  --cert              MINIRDK_CERT              cert
  --key               MINIRDK_KEY               key
  --robot-id          MINIRDK_ROBOT_ID          robot-id
  --robot-secret      MINIRDK_ROBOT_SECRET      robot-secret
  --robot-name        MINIRDK_ROBOT_NAME        robot-name
  --cloud-addr        MINIRDK_CLOUD_ADDR        cloud-addr
  --no-cloud          MINIRDK_NO_CLOUD          no-cloud
  --with-camera       MINIRDK_WITH_CAMERA       with-camera
  --network-timeout   MINIRDK_NETWORK_TIMEOUT   network-timeout
  --log-level         MINIRDK_LOG_LEVEL         log-level
  --log-format        MINIRDK_LOG_FORMAT        log-format

Config file
  A path supplied via --config is used as is and skips the search.
  Otherwise the search order is (first found wins):
  /etc/minirdk/minirdk.toml
  $HOME/.config/minirdk/minirdk.toml`,
		Args:    cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error { return bindViper(cmd, v) },
		RunE:    func(_ *cobra.Command, _ []string) error { return runServe(v) },
	}

	f := cmd.Flags()
	f.String("addr", "0.0.0.0:80", "TCP listen address (TLS + HTTP/2)")
	f.String("cert", "", "path to the server certificate chain (PEM)")
	f.String("key", "", "path to the server private key (PEM)")
	f.String("robot-id", RobotID, "robot ID registered with the control plane")
	f.String("robot-secret", RobotSecret, "robot secret for control plane authentication")
	f.String("robot-name", RobotName, "robot name advertised over mDNS")
	f.String("cloud-addr", cloud.DefaultAddr, "cloud control plane address")
	f.Bool("no-cloud", false, "skip the cloud bootstrap entirely")
	f.Bool("with-camera", false, "register the camera component")
	f.Duration("network-timeout", 30*time.Second, "how long to wait for a routable address at boot")
	addLoggingFlags(cmd)
	addConfigFlag(cmd)

	return cmd
}

func runServe(v *viper.Viper) error {
	setupLogging(v)

	addr := v.GetString("addr")
	robotID := v.GetString("robot-id")
	robotSecret := v.GetString("robot-secret")
	robotName := v.GetString("robot-name")

	slog.Info("minirdk starting",
		"version", Version,
		"addr", addr,
		"robot", robotName,
		"cloud", !v.GetBool("no-cloud"),
	)

	ctx := context.Background()

	// Bring-up failures from here to the first accept are fatal.
	ip, err := platform.WaitForNetwork(ctx, v.GetDuration("network-timeout"))
	if err != nil {
		return fmt.Errorf("network bring-up: %w", err)
	}
	slog.Info("network up", "ip", ip)

	r := buildRobot(v.GetBool("with-camera"))

	tlsCfg, err := listenerTLS(v, robotSecret)
	if err != nil {
		return fmt.Errorf("TLS setup: %w", err)
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	slog.Info("listening", "addr", ln.Addr())

	if shutdown, err := platform.AdvertiseMDNS(robotName, listenPort(ln)); err != nil {
		slog.Warn("mdns advertisement unavailable", "err", err)
	} else {
		defer shutdown()
	}

	// Cloud bootstrap runs concurrently; the first accept waits for its
	// notification, whatever the value.
	var cloudClient *cloud.Client
	if v.GetBool("no-cloud") {
		slog.Info("cloud bootstrap disabled")
	} else if robotID == "" || robotSecret == "" {
		slog.Warn("no robot credentials configured, skipping cloud bootstrap")
	} else {
		bootDone := rendezvous.New()
		cloudClient = cloud.New(cloud.Config{
			RobotID:     robotID,
			RobotSecret: robotSecret,
			LocalIP:     ip,
			Addr:        v.GetString("cloud-addr"),
		}, bootDone)
		go cloudClient.Run(ctx)

		if value, ok := bootDone.Wait(bootstrapWait); ok {
			slog.Info("cloud client signalled", "value", value)
		} else {
			slog.Warn("cloud client never signalled, serving anyway")
		}
		cloudClient.StandDown()
	}

	srv := grpcserver.New(r)
	return grpcserver.Serve(ctx, ln, tlsCfg, srv)
}

// listenerTLS loads the provisioned certificate pair, or derives an
// ephemeral identity when none is configured.
func listenerTLS(v *viper.Viper, robotSecret string) (*tls.Config, error) {
	certPath := v.GetString("cert")
	keyPath := v.GetString("key")

	if certPath != "" && keyPath != "" {
		certPEM, err := os.ReadFile(certPath)
		if err != nil {
			return nil, fmt.Errorf("read cert: %w", err)
		}
		keyPEM, err := os.ReadFile(keyPath)
		if err != nil {
			return nil, fmt.Errorf("read key: %w", err)
		}
		return tlsconf.ServerConfig(certPEM, keyPEM)
	}

	slog.Warn("no certificate configured, using ephemeral server identity")
	seed := robotSecret
	if seed == "" {
		seed = v.GetString("robot-name")
	}
	return tlsconf.EphemeralServerConfig(seed)
}

// listenPort extracts the bound TCP port for the mDNS advertisement.
func listenPort(ln net.Listener) int {
	if addr, ok := ln.Addr().(*net.TCPAddr); ok {
		return addr.Port
	}
	_, portStr, err := net.SplitHostPort(ln.Addr().String())
	if err != nil {
		return 80
	}
	port, _ := strconv.Atoi(portStr)
	return port
}
