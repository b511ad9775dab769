package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/baptistax/tunnelprobe/internal/config"
	"github.com/baptistax/tunnelprobe/internal/logging"
	"github.com/baptistax/tunnelprobe/internal/orchestrator"
	"github.com/baptistax/tunnelprobe/internal/report"
	"github.com/baptistax/tunnelprobe/internal/runctx"
	"github.com/baptistax/tunnelprobe/internal/tui"
)

const defaultExportsDir = "exports"

type checkFlags struct {
	configPath  string
	logLevel    string
	format      string
	exports     string
	timeout     time.Duration
	liveView    bool
	primaryOnly bool

	stunServers []string
	resolvers   []string
	domains     []string
}

func newCheckCmd() *cobra.Command {
	flags := &checkFlags{}

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Run the full leak check once",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(flags)
		},
	}

	bindCommon(cmd, flags)
	cmd.Flags().BoolVar(&flags.liveView, "tui", false, "Show live probe status while running")
	cmd.Flags().BoolVar(&flags.primaryOnly, "primary-only", false, "Skip the secondary fingerprint/timing heuristics")

	return cmd
}

func bindCommon(cmd *cobra.Command, flags *checkFlags) {
	cmd.Flags().StringVar(&flags.configPath, "config", "", "YAML config file (defaults are built in)")
	cmd.Flags().StringVar(&flags.logLevel, "log-level", "info", "Log level: debug|info|warn|error")
	cmd.Flags().StringVar(&flags.format, "format", "text", "Output format: json|text")
	cmd.Flags().StringVar(&flags.exports, "exports", defaultExportsDir, "Base exports directory")
	cmd.Flags().DurationVar(&flags.timeout, "timeout", 2*time.Minute, "Overall run timeout")
	cmd.Flags().StringSliceVar(&flags.stunServers, "stun-servers", nil, "Override STUN servers (host:port)")
	cmd.Flags().StringSliceVar(&flags.resolvers, "doh-resolvers", nil, "Override DoH resolver endpoints")
	cmd.Flags().StringSliceVar(&flags.domains, "domains", nil, "Override test domains")
}

func loadConfig(flags *checkFlags) (config.Config, error) {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return cfg, err
	}

	if len(flags.stunServers) > 0 {
		cfg.StunServers = flags.stunServers
	}
	if len(flags.resolvers) > 0 {
		cfg.DoHResolvers = flags.resolvers
	}
	if len(flags.domains) > 0 {
		cfg.TestDomains = flags.domains
	}

	return cfg, cfg.Validate()
}

func runCheck(flags *checkFlags) error {
	logging.Setup(flags.logLevel)

	cfg, err := loadConfig(flags)
	if err != nil {
		return err
	}

	rc, err := runctx.New(flags.exports)
	if err != nil {
		return fmt.Errorf("create run directory: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), flags.timeout)
	defer cancel()
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	orch, err := orchestrator.New(cfg)
	if err != nil {
		return err
	}
	defer orch.Close()
	orch.PrimaryOnly = flags.primaryOnly

	var r report.Report
	if flags.liveView {
		r, err = tui.Run(ctx, orch)
		if err != nil {
			return err
		}
	} else {
		r = orch.Run(ctx)
	}
	r.RunID = rc.RunID
	r.StartedUTC = rc.StartedAtUTC

	writeOutputs(rc.OutputDir, r)

	if strings.ToLower(flags.format) == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(r)
	} else {
		fmt.Print(report.Render(r, true))
		fmt.Printf("\nOutputs written to: %s\n", rc.OutputDir)
	}

	if r.Overall == "FAIL" {
		return errLeakDetected
	}
	return nil
}

func writeOutputs(dir string, r report.Report) {
	if err := report.WriteJSON(filepath.Join(dir, "report.json"), r); err != nil {
		slog.Warn("write report.json failed", "err", err)
	}
	if err := report.WriteText(filepath.Join(dir, "report.txt"), r); err != nil {
		slog.Warn("write report.txt failed", "err", err)
	}
	if err := report.WriteRTTChart(filepath.Join(dir, "rtt.png"), r); err != nil {
		slog.Warn("write rtt.png failed", "err", err)
	}
}
