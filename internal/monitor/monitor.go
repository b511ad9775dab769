package monitor

import (
	"context"
	"strings"
	"time"

	"github.com/baptistax/tunnelprobe/internal/orchestrator"
	"github.com/baptistax/tunnelprobe/internal/report"
)

type Event struct {
	AtUTC    time.Time      `json:"at_utc"`
	Kind     string         `json:"kind"` // "changed"
	Message  string         `json:"message"`
	Previous *report.Report `json:"previous,omitempty"`
	Current  *report.Report `json:"current,omitempty"`
}

type Options struct {
	Interval time.Duration
	Timeout  time.Duration
}

// Run re-executes the full check every interval and emits an event when
// the verdict-relevant parts of the report change: the overall verdict,
// the primary exit address, the DNS leak flag, or the set of public
// addresses visible during negotiation.
func Run(ctx context.Context, orch *orchestrator.Orchestrator, opt Options, onEvent func(Event)) {
	var prev *report.Report

	ticker := time.NewTicker(opt.Interval)
	defer ticker.Stop()

	take := func() {
		runCtx, cancel := context.WithTimeout(ctx, opt.Timeout)
		r := orch.Run(runCtx)
		cancel()

		if prev != nil {
			if reasons := changed(prev, &r); len(reasons) > 0 {
				onEvent(Event{
					AtUTC:    time.Now().UTC(),
					Kind:     "changed",
					Message:  strings.Join(reasons, "; "),
					Previous: prev,
					Current:  &r,
				})
			}
		}
		prev = &r
	}

	take()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			take()
		}
	}
}

func changed(a, b *report.Report) []string {
	var reasons []string

	if a.Overall != b.Overall {
		reasons = append(reasons, "overall verdict "+a.Overall+" -> "+b.Overall)
	}
	if pa, pb := primaryAddress(a), primaryAddress(b); pa != pb {
		reasons = append(reasons, "exit address "+orEmpty(pa)+" -> "+orEmpty(pb))
	}
	if a.DNS.Leaked != b.DNS.Leaked {
		reasons = append(reasons, "DNS leak flag changed")
	}
	if !a.Peer.PublicAddresses.Equal(b.Peer.PublicAddresses) {
		reasons = append(reasons, "negotiation-visible public addresses changed")
	}

	return reasons
}

func primaryAddress(r *report.Report) string {
	if r.IP == nil {
		return ""
	}
	return r.IP.PrimaryAddress
}

func orEmpty(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}
