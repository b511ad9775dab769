package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/baptistax/tunnelprobe/internal/logging"
	"github.com/baptistax/tunnelprobe/internal/monitor"
	"github.com/baptistax/tunnelprobe/internal/orchestrator"
)

func newWatchCmd() *cobra.Command {
	flags := &checkFlags{}
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Re-run the leak check on an interval and report changes",
		RunE: func(cmd *cobra.Command, args []string) error {
			logging.Setup(flags.logLevel)

			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			orch, err := orchestrator.New(cfg)
			if err != nil {
				return err
			}
			defer orch.Close()
			orch.PrimaryOnly = flags.primaryOnly

			format := strings.ToLower(flags.format)
			monitor.Run(ctx, orch, monitor.Options{Interval: interval, Timeout: flags.timeout}, func(ev monitor.Event) {
				if format == "json" {
					enc := json.NewEncoder(os.Stdout)
					enc.SetIndent("", "  ")
					_ = enc.Encode(ev)
					return
				}
				fmt.Printf("[%s] %s\n", ev.AtUTC.Format("2006-01-02T15:04:05Z"), ev.Message)
			})

			return nil
		},
	}

	bindCommon(cmd, flags)
	cmd.Flags().BoolVar(&flags.primaryOnly, "primary-only", true, "Skip the secondary fingerprint/timing heuristics")
	cmd.Flags().DurationVar(&interval, "interval", time.Minute, "Check interval")

	return cmd
}
