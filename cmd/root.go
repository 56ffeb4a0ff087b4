// Package cmd implements the stlinkgdb command-line interface.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/stlinkgdb/stlinkgdb/pkg/config"
)

var (
	cfg *config.Config

	listenPortFlag  int
	multiFlag       bool
	noResetFlag     bool
	hotPlugFlag     bool
	underResetFlag  bool
	freqFlag        int
	semihostingFlag bool
	serialFlag      string
	verboseFlag     bool
	remoteProbeFlag string
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "stlinkgdb",
	Short: "stlinkgdb - a GDB remote-serial-protocol server for ST-Link-class probes",
	Long: `stlinkgdb bridges GDB's remote serial protocol to an ST-Link-class USB
debug probe attached to an ARM Cortex-M target.

It accepts a "target remote" connection from GDB, translates register,
memory, breakpoint, watchpoint, and flash-programming requests into probe
commands, and services semihosting calls the target makes while running.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		applyFlagOverrides()
		return nil
	},
}

// Execute adds all child commands to the root command and runs it. Called
// once by main.main.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().IntVar(&listenPortFlag, "listen_port", 0, "TCP port to listen on (default from stlinkgdb.ini, else 4242)")
	rootCmd.PersistentFlags().BoolVar(&multiFlag, "multi", false, "keep accepting connections after a client disconnects")
	rootCmd.PersistentFlags().BoolVar(&noResetFlag, "no-reset", false, "attach without resetting (hot-plug), same as --hot-plug")
	rootCmd.PersistentFlags().BoolVar(&hotPlugFlag, "hot-plug", false, "attach to a running target without resetting it")
	rootCmd.PersistentFlags().BoolVar(&underResetFlag, "connect-under-reset", false, "hold the target in reset while attaching")
	rootCmd.PersistentFlags().IntVar(&freqFlag, "freq", 0, "SWD/JTAG clock frequency in kHz")
	rootCmd.PersistentFlags().BoolVar(&semihostingFlag, "semihosting", true, "service ARM semihosting calls")
	rootCmd.PersistentFlags().StringVar(&serialFlag, "serial", "", "probe serial number to select when more than one is attached")
	rootCmd.PersistentFlags().BoolVar(&verboseFlag, "verbose", false, "print status messages (listen address, probe relay)")
	rootCmd.PersistentFlags().StringVar(&remoteProbeFlag, "remote-probe", "", "host:port of a probe-agent relay, instead of a local USB probe")

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// applyFlagOverrides layers explicitly-set CLI flags on top of the loaded
// configuration, mirroring the teacher's --port/--target override pattern
// in cmd/root.go.
func applyFlagOverrides() {
	if listenPortFlag != 0 {
		cfg.ListenPort = listenPortFlag
	}
	if multiFlag {
		cfg.Multi = true
	}
	if hotPlugFlag || noResetFlag {
		cfg.ConnectMode = "hotplug"
	}
	if underResetFlag {
		cfg.ConnectMode = "underreset"
	}
	if freqFlag != 0 {
		cfg.Freq = freqFlag
	}
	if rootCmd.PersistentFlags().Changed("semihosting") {
		cfg.Semihosting = semihostingFlag
	}
	if serialFlag != "" {
		cfg.Serial = serialFlag
	}
	if verboseFlag {
		cfg.Verbose = true
	}
	if remoteProbeFlag != "" {
		cfg.RemoteProbe = remoteProbeFlag
	}
}

func printInfo(format string, args ...interface{}) {
	if !cfg.Verbose {
		return
	}
	fmt.Printf(format, args...)
}

func printError(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "stlinkgdb: "+format+"\n", args...)
}
