// stlinkgdb bridges GDB's remote serial protocol to an ARM Cortex-M
// target through an ST-Link-class USB debug probe.
package main

import (
	"fmt"
	"os"

	"github.com/stlinkgdb/stlinkgdb/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
