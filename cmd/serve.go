package cmd

import (
	"fmt"
	"net"

	"github.com/spf13/cobra"
	"github.com/stlinkgdb/stlinkgdb/internal/session"
	"github.com/stlinkgdb/stlinkgdb/pkg/probe"
)

// serveCmd represents the serve command, the server's main mode: listen
// for a GDB connection and bridge it to the target.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the GDB remote-serial-protocol server",
	Long: `serve opens the configured probe (USB-attached, or a remote probe-agent
when --remote-probe is set), listens for a "target remote host:port"
connection from GDB, and bridges it to the target until the client
disconnects.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe() error {
	p, err := openFacade()
	if err != nil {
		return fmt.Errorf("failed to open probe: %w", err)
	}

	addr := fmt.Sprintf("%s:%d", cfg.ListenHost, cfg.ListenPort)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	defer ln.Close()

	printInfo("stlinkgdb: listening on %s\n", addr)
	return session.Serve(ln, p, cfg)
}

// openFacade picks between a local USB probe and a remote probe-agent
// relay depending on cfg.RemoteProbe, mirroring the teacher's
// connection.NewBridge host-vs-serial dispatch.
func openFacade() (probe.Facade, error) {
	if cfg.RemoteProbe != "" {
		printInfo("stlinkgdb: relaying through probe-agent at %s\n", cfg.RemoteProbe)
		return probe.NewRemoteClient(cfg.RemoteProbe)
	}

	usb := &probe.USBProbe{Serial: selectedSerial()}
	if err := usb.OpenFirst(); err != nil {
		return nil, err
	}
	return usb, nil
}

// selectedSerial prefers the explicit --serial flag / ini setting, falling
// back to STLINK_DEVICE so multiple attached probes can be disambiguated
// without a flag.
func selectedSerial() string {
	if cfg.Serial != "" {
		return cfg.Serial
	}
	return cfg.STLinkDevice
}
