package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/stlinkgdb/stlinkgdb/pkg/probe"
)

// probeAgentCmd represents the probe-agent command: a relay that owns the
// USB probe directly and answers RemoteClient requests over TCP, for the
// case where the probe is attached to a different host than the one
// running serve. Mirrors the teacher's tcp-bridge command.
var probeAgentCmd = &cobra.Command{
	Use:   "probe-agent <listen-addr>",
	Short: "Relay a locally-attached USB probe to a remote stlinkgdb serve",
	Long: `probe-agent opens the USB probe on this host and listens on listen-addr
for a single stlinkgdb "serve --remote-probe" connection at a time,
relaying every probe operation over TCP.

Example:
  stlinkgdb probe-agent 0.0.0.0:4243`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runProbeAgent(args[0])
	},
}

func init() {
	rootCmd.AddCommand(probeAgentCmd)
}

func runProbeAgent(addr string) error {
	usb := &probe.USBProbe{Serial: selectedSerial()}
	if err := usb.OpenFirst(); err != nil {
		return fmt.Errorf("failed to open probe: %w", err)
	}
	defer usb.Close()

	agent := &probe.Agent{Local: usb}
	printInfo("stlinkgdb: probe-agent listening on %s\n", addr)
	return agent.Listen(addr)
}
