package probes

import (
	"context"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/baptistax/tunnelprobe/internal/logging"
	"github.com/baptistax/tunnelprobe/internal/netutil"
)

// TrafficPatternProbe samples sequential round trips to one endpoint and
// compares their mean and spread against configurable thresholds.
// Sustained high latency or jitter is consistent with an extra tunnel hop.
// The thresholds are heuristics, not facts about any particular network.
type TrafficPatternProbe struct {
	URL             string
	Samples         int
	Delay           time.Duration
	MeanThreshold   time.Duration
	StdDevThreshold time.Duration
	Client          *http.Client
	Log             *logging.Recorder
}

func (p *TrafficPatternProbe) Run(ctx context.Context) TrafficPatternResult {
	var res TrafficPatternResult

	note := func(format string, args ...any) {
		line := fmt.Sprintf(format, args...)
		res.Details = append(res.Details, line)
		p.Log.Logf("%s", line)
	}

	samples := p.Samples
	if samples <= 0 {
		samples = 5
	}

	for i := 0; i < samples; i++ {
		if i > 0 && !sleepOrDone(ctx, p.Delay) {
			break
		}

		rtt, err := p.fetch(ctx)
		if err != nil {
			note("request %d failed: %v", i+1, err)
			continue
		}
		res.RTTs = append(res.RTTs, rtt)
		note("request %d: %dms", i+1, rtt.Milliseconds())
	}

	if len(res.RTTs) == 0 {
		note("no successful samples")
		return res
	}

	res.Mean, res.StdDev = meanStdDev(res.RTTs)
	note("mean %dms, stddev %dms over %d samples", res.Mean.Milliseconds(), res.StdDev.Milliseconds(), len(res.RTTs))

	if res.Mean > p.MeanThreshold || res.StdDev > p.StdDevThreshold {
		res.SuspectedVPN = true
		note("latency profile consistent with tunneled traffic")
	}

	return res
}

func (p *TrafficPatternProbe) fetch(ctx context.Context) (time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.URL, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("User-Agent", netutil.UserAgent)

	start := time.Now()
	resp, err := p.Client.Do(req)
	if err != nil {
		return 0, err
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, fmt.Errorf("http status %d", resp.StatusCode)
	}
	return time.Since(start), nil
}

func meanStdDev(rtts []time.Duration) (time.Duration, time.Duration) {
	if len(rtts) == 0 {
		return 0, 0
	}

	var sum float64
	for _, rtt := range rtts {
		sum += float64(rtt)
	}
	mean := sum / float64(len(rtts))

	var variance float64
	for _, rtt := range rtts {
		d := float64(rtt) - mean
		variance += d * d
	}
	variance /= float64(len(rtts))

	return time.Duration(mean), time.Duration(math.Sqrt(variance))
}
