package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/baptistax/tunnelprobe/internal/version"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("tunnelprobe %s (commit=%s build_date=%s)\n", version.Version, version.Commit, version.BuildDate)
		},
	}
}
