package probes

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/baptistax/tunnelprobe/internal/logging"
	"github.com/baptistax/tunnelprobe/internal/netutil"
)

// NetInterfaceProbe sends payloads of decreasing sizes to a public echo
// endpoint and measures the round trip per size. A round trip above the
// threshold at typical MTU-boundary sizes suggests fragmentation along the
// tunnel path. Route metadata (interface name, MTU) is recorded as
// diagnostic detail.
type NetInterfaceProbe struct {
	EchoURL      string
	PayloadSizes []int
	RTTThreshold time.Duration
	Delay        time.Duration
	Client       *http.Client
	Log          *logging.Recorder
}

func (p *NetInterfaceProbe) Run(ctx context.Context) NetInterfaceResult {
	var res NetInterfaceResult

	note := func(format string, args ...any) {
		line := fmt.Sprintf(format, args...)
		res.Details = append(res.Details, line)
		p.Log.Logf("%s", line)
	}

	if route, err := netutil.DefaultRoute(); err == nil {
		res.Interface = route.Interface
		res.MTU = route.MTU
		note("default route via %s (mtu %d)", route.Interface, route.MTU)
	} else {
		note("default route unknown: %v", err)
	}

	for i, size := range p.PayloadSizes {
		if i > 0 && !sleepOrDone(ctx, p.Delay) {
			break
		}

		rtt, err := p.echo(ctx, size)
		sample := RTTSample{SizeBytes: size, RTT: rtt}
		if err != nil {
			sample.Err = err.Error()
			res.Samples = append(res.Samples, sample)
			note("payload %d: failed: %v", size, err)
			continue
		}
		res.Samples = append(res.Samples, sample)
		note("payload %d: %dms", size, rtt.Milliseconds())

		if rtt > p.RTTThreshold {
			res.FragmentationSuspected = true
			note("payload %d exceeded %dms threshold", size, p.RTTThreshold.Milliseconds())
		}
	}

	return res
}

func (p *NetInterfaceProbe) echo(ctx context.Context, size int) (time.Duration, error) {
	payload := bytes.Repeat([]byte{'x'}, size)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.EchoURL, bytes.NewReader(payload))
	if err != nil {
		return 0, err
	}
	req.Header.Set("User-Agent", netutil.UserAgent)
	req.Header.Set("Content-Type", "application/octet-stream")

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
