// minirdk: Viam-compatible robot server for microcontroller-class devices.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Build-time identity, set via -ldflags "-X main.RobotID=... -X main.RobotSecret=...".
// Config file, env vars, and flags override these under emulation.
var (
	Version     = "dev"
	RobotID     = ""
	RobotSecret = ""
	RobotName   = "minirdk"
)

func main() {
	root := &cobra.Command{
		Use:   "minirdk",
		Short: "Robot server for microcontroller-class devices",
		Long: `minirdk exposes locally attached hardware (motors, boards, wheeled
bases, analog sensors, an optional camera) as remotely controllable
components over gRPC.

On boot the robot authenticates against the cloud control plane, fetches
its configuration, and advertises itself on the LAN; it then serves
inbound RPCs over TLS + HTTP/2 on port 80.`,
		SilenceUsage: true,
	}

	root.AddCommand(
		newServeCmd(),
		newVersionCmd(),
	)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Printf("minirdk %s\n", Version)
		},
	}
}
