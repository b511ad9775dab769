// Package orchestrator runs the probes with controlled concurrency and
// deadlines and aggregates their verdicts into a report. The three primary
// probes run concurrently, each inside its own failure boundary, so one
// probe blowing up never discards its siblings' results. Secondary probes
// run sequentially with a courtesy delay between them.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/baptistax/tunnelprobe/internal/config"
	"github.com/baptistax/tunnelprobe/internal/geodb"
	"github.com/baptistax/tunnelprobe/internal/logging"
	"github.com/baptistax/tunnelprobe/internal/netutil"
	"github.com/baptistax/tunnelprobe/internal/probes"
	"github.com/baptistax/tunnelprobe/internal/report"
)

type Orchestrator struct {
	cfg config.Config
	geo probes.GeoLookup
	db  *geodb.DB

	// OnUpdate, when set, receives a copy of every outcome transition.
	// Used by the live TUI; failures there cannot reach probe state.
	OnUpdate func(report.Outcome)

	// PrimaryOnly skips the secondary heuristics entirely; the report
	// then carries only the three primary outcomes.
	PrimaryOnly bool
}

func New(cfg config.Config) (*Orchestrator, error) {
	o := &Orchestrator{cfg: cfg}

	if cfg.GeoIP.CityDatabase != "" {
		db, err := geodb.Open(cfg.GeoIP.CityDatabase, cfg.GeoIP.ASNDatabase)
		if err != nil {
			return nil, err
		}
		o.db = db
		o.geo = db
	} else {
		o.geo = &probes.HTTPGeoService{
			BaseURL: cfg.GeoServiceURL,
			Client:  netutil.QueryClient(cfg.Timeouts.Query),
		}
	}

	return o, nil
}

func (o *Orchestrator) Close() error {
	if o.db != nil {
		return o.db.Close()
	}
	return nil
}

// Run executes the full probe suite and returns the aggregated report by
// value.
func (o *Orchestrator) Run(ctx context.Context) report.Report {
	tests := report.AllTests
	if o.PrimaryOnly {
		tests = report.PrimaryTests
	}
	r := report.New(tests)
	var mu sync.Mutex

	queryClient := netutil.QueryClient(o.cfg.Timeouts.Query)

	var wg sync.WaitGroup
	wg.Add(3)

	go func() {
		defer wg.Done()
		rec := logging.NewRecorder(report.TestPeerConnection)
		// The gather budget is the probe's own hard bound; the outer
		// deadline only catches a wedged probe.
		o.execute(ctx, &r, &mu, report.TestPeerConnection, o.cfg.Timeouts.GatherBudget+2*time.Second, rec,
			func(pctx context.Context) (report.Status, string, func(*report.Report)) {
				p := &probes.PeerConnectionProbe{
					Servers:      o.cfg.StunServers,
					GatherBudget: o.cfg.Timeouts.GatherBudget,
					Log:          rec,
				}
				res := p.Run(pctx)
				apply := func(r *report.Report) { r.Peer = res }
				switch {
				case res.Erred:
					return report.StatusPassed, "candidate gathering unavailable; nothing observed", apply
				case res.Leaked:
					return report.StatusFailed,
						fmt.Sprintf("%d public addresses visible during negotiation", res.PublicAddresses.Len()),
						apply
				default:
					return report.StatusPassed, "at most one public egress address visible", apply
				}
			})
	}()

	go func() {
		defer wg.Done()
		rec := logging.NewRecorder(report.TestDNSResolvers)
		o.execute(ctx, &r, &mu, report.TestDNSResolvers, o.cfg.Timeouts.Probe, rec,
			func(pctx context.Context) (report.Status, string, func(*report.Report)) {
				p := &probes.ResolverProbe{
					Resolvers: o.cfg.DoHResolvers,
					Domains:   o.cfg.TestDomains,
					Client:    queryClient,
					Log:       rec,
				}
				verdict := p.Run(pctx)
				apply := func(r *report.Report) { r.DNS = verdict }
				if verdict.Leaked {
					return report.StatusFailed, verdict.Message, apply
				}
				return report.StatusPassed, verdict.Message, apply
			})
	}()

	go func() {
		defer wg.Done()
		rec := logging.NewRecorder(report.TestIdentification)
		o.execute(ctx, &r, &mu, report.TestIdentification, o.cfg.Timeouts.Probe, rec,
			func(pctx context.Context) (report.Status, string, func(*report.Report)) {
				services := make([]probes.IdentService, 0, len(o.cfg.IdentServices))
				for _, svc := range o.cfg.IdentServices {
					services = append(services, probes.IdentService{Name: svc.Name, URL: svc.URL})
				}
				p := &probes.IdentificationProbe{
					Services: services,
					Geo:      o.geo,
					Client:   queryClient,
					Log:      rec,
				}
				verdict, err := p.Run(pctx)
				apply := func(r *report.Report) {
					if verdict.PrimaryAddress != "" {
						r.IP = &verdict
					}
				}
				switch {
				case errors.Is(err, probes.ErrNoIdentSources):
					return report.StatusError, err.Error(), apply
				case err != nil:
					return report.StatusError, err.Error(), apply
				case !verdict.Consistent:
					addrs := verdict.AllAddresses.Values()
					sort.Strings(addrs)
					return report.StatusFailed,
						"identification services disagree: " + strings.Join(addrs, ", "),
						apply
				default:
					return report.StatusPassed, "all services agree on " + verdict.PrimaryAddress, apply
				}
			})
	}()

	wg.Wait()

	if !o.PrimaryOnly {
		o.runSecondary(ctx, &r, &mu)
	}

	mu.Lock()
	r.Finish()
	out := r
	mu.Unlock()
	return out
}

func (o *Orchestrator) runSecondary(ctx context.Context, r *report.Report, mu *sync.Mutex) {
	mu.Lock()
	var exitLocation probes.GeoLocation
	if r.IP != nil && len(r.IP.Locations) > 0 {
		exitLocation = r.IP.Locations[0]
	}
	mu.Unlock()

	client := netutil.QueryClient(o.cfg.Timeouts.Query)

	type secondary struct {
		name string
		fn   func(pctx context.Context, rec *logging.Recorder) (report.Status, string, func(*report.Report))
	}

	steps := []secondary{
		{report.TestTimezone, func(pctx context.Context, rec *logging.Recorder) (report.Status, string, func(*report.Report)) {
			p := &probes.TimezoneProbe{TimeEndpoints: o.cfg.TimeEndpoints, Client: client, Log: rec}
			res := p.Run(pctx, exitLocation)
			apply := func(r *report.Report) { r.Timezone = res }
			// Diagnostic only: a mismatch is reported but never fails the run.
			if res.Mismatch {
				return report.StatusPassed, "timezone region differs from exit-address region (diagnostic)", apply
			}
			return report.StatusPassed, "timezone consistent with exit address", apply
		}},
		{report.TestFingerprint, func(pctx context.Context, rec *logging.Recorder) (report.Status, string, func(*report.Report)) {
			p := &probes.FingerprintProbe{Log: rec}
			res := p.Run()
			apply := func(r *report.Report) { r.Fingerprint = res }
			if res.Inconsistent {
				return report.StatusFailed, "host fingerprint looks sanitized or mismatched", apply
			}
			return report.StatusPassed, "host fingerprint consistent", apply
		}},
		{report.TestNetInterface, func(pctx context.Context, rec *logging.Recorder) (report.Status, string, func(*report.Report)) {
			p := &probes.NetInterfaceProbe{
				EchoURL:      o.cfg.EchoURL,
				PayloadSizes: o.cfg.PayloadSizes,
				RTTThreshold: o.cfg.Thresholds.FragmentationRTT,
				Delay:        o.cfg.ProbeDelay,
				Client:       client,
				Log:          rec,
			}
			res := p.Run(pctx)
			apply := func(r *report.Report) { r.NetInterface = res }
			if res.FragmentationSuspected {
				return report.StatusFailed, "possible fragmentation along the tunnel path", apply
			}
			return report.StatusPassed, "no fragmentation signal", apply
		}},
		{report.TestTraffic, func(pctx context.Context, rec *logging.Recorder) (report.Status, string, func(*report.Report)) {
			p := &probes.TrafficPatternProbe{
				URL:             o.cfg.EchoURL,
				Samples:         o.cfg.TrafficSamples,
				Delay:           o.cfg.TrafficDelay,
				MeanThreshold:   o.cfg.Thresholds.TrafficMean,
				StdDevThreshold: o.cfg.Thresholds.TrafficStdDev,
				Client:          client,
				Log:             rec,
			}
			res := p.Run(pctx)
			apply := func(r *report.Report) { r.Traffic = res }
			// Looking tunneled is the expected state for this tool's users.
			if res.SuspectedVPN {
				return report.StatusPassed, "latency profile consistent with tunneled traffic", apply
			}
			return report.StatusPassed, "no tunnel-like latency profile (diagnostic)", apply
		}},
	}

	for i, step := range steps {
		if i > 0 && !sleepOrDone(ctx, o.cfg.ProbeDelay) {
			break
		}
		rec := logging.NewRecorder(step.name)
		fn := step.fn
		o.execute(ctx, r, mu, step.name, o.cfg.Timeouts.Secondary, rec,
			func(pctx context.Context) (report.Status, string, func(*report.Report)) {
				return fn(pctx, rec)
			})
	}
}

// execute wraps one probe in its failure boundary: a Running transition,
// a panic recover, and an external deadline race. When the deadline fires
// the probe goroutine is abandoned and whatever evidence it had recorded
// is preserved on the Error outcome.
func (o *Orchestrator) execute(
	ctx context.Context,
	r *report.Report,
	mu *sync.Mutex,
	name string,
	deadline time.Duration,
	rec *logging.Recorder,
	fn func(ctx context.Context) (report.Status, string, func(*report.Report)),
) {
	o.transition(r, mu, name, report.StatusRunning, "", nil)

	type done struct {
		status report.Status
		msg    string
		apply  func(*report.Report)
	}
	ch := make(chan done, 1)

	pctx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	go func() {
		defer func() {
			if p := recover(); p != nil {
				ch <- done{report.StatusError, fmt.Sprintf("probe panicked: %v", p), nil}
			}
		}()
		status, msg, apply := fn(pctx)
		ch <- done{status, msg, apply}
	}()

	// Probes are expected to honor their context; the extra grace only
	// catches one that is wedged beyond cancellation.
	timer := time.NewTimer(deadline + 2*time.Second)
	defer timer.Stop()

	select {
	case d := <-ch:
		if d.apply != nil {
			mu.Lock()
			d.apply(r)
			mu.Unlock()
		}
		o.transition(r, mu, name, d.status, d.msg, rec.Lines())
	case <-timer.C:
		o.transition(r, mu, name, report.StatusError, "deadline exceeded", rec.Lines())
	}
}

func (o *Orchestrator) transition(r *report.Report, mu *sync.Mutex, name string, status report.Status, msg string, evidence []string) {
	mu.Lock()
	oc := r.Outcome(name)
	var snapshot report.Outcome
	applied := false
	if oc != nil {
		applied = oc.Transition(status, msg, evidence)
		snapshot = *oc
	}
	mu.Unlock()

	if applied && o.OnUpdate != nil {
		o.OnUpdate(snapshot)
	}
}

func sleepOrDone(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
