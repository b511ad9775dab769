// Package cli wires the cobra command tree: check (the default leak
// check), watch (periodic re-checks), and version.
package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// errLeakDetected signals a FAIL verdict without an operational error;
// the report has already been printed when it surfaces.
var errLeakDetected = errors.New("leak detected")

func Execute() int {
	root := &cobra.Command{
		Use:   "tunnelprobe",
		Short: "VPN leak detection from the client side",
		Long: `tunnelprobe checks whether a privacy tunnel leaks the real network
identity through side channels: peer-connection candidate gathering,
DNS resolution compared across independent resolvers, and public
address identification compared across independent services.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newCheckCmd())
	root.AddCommand(newWatchCmd())
	root.AddCommand(newVersionCmd())

	if err := root.Execute(); err != nil {
		if errors.Is(err, errLeakDetected) {
			return 1
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 2
	}
	return 0
}
