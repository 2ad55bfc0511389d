// Package platform covers the bring-up contracts the firmware expects from
// its environment: a network interface with a routable IPv4 address, and
// mDNS advertisement of the RPC service.
package platform

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/grandcat/zeroconf"
)

// pollInterval is how often WaitForNetwork re-checks the interfaces.
const pollInterval = 500 * time.Millisecond

// LocalIP returns the first non-loopback IPv4 address of an interface that
// is up.
func LocalIP() (string, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return "", fmt.Errorf("list interfaces: %w", err)
	}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			ipNet, ok := addr.(*net.IPNet)
			if !ok {
				continue
			}
			if ip4 := ipNet.IP.To4(); ip4 != nil && !ip4.IsUnspecified() {
				return ip4.String(), nil
			}
		}
	}
	return "", fmt.Errorf("no routable IPv4 address")
}

// WaitForNetwork polls until the host holds a non-zero IPv4 address or
// timeout elapses. Bring-up failures here are fatal for the firmware.
func WaitForNetwork(ctx context.Context, timeout time.Duration) (string, error) {
	deadline := time.Now().Add(timeout)
	for {
		ip, err := LocalIP()
		if err == nil {
			return ip, nil
		}
		if time.Now().After(deadline) {
			return "", fmt.Errorf("network not up after %s: %w", timeout, err)
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}

// AdvertiseMDNS registers the robot as an "_rpc._tcp" service with hostname
// and instance name equal to the robot name. The returned shutdown function
// is safe to call once; advertisement failure is not fatal to serving.
func AdvertiseMDNS(robotName string, port int) (func(), error) {
	srv, err := zeroconf.Register(robotName, "_rpc._tcp", "local.", port, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("mdns register: %w", err)
	}
	slog.Info("mdns service advertised", "instance", robotName, "service", "_rpc._tcp", "port", port)
	return srv.Shutdown, nil
}
