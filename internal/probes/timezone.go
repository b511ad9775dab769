package probes

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/baptistax/tunnelprobe/internal/logging"
	"github.com/baptistax/tunnelprobe/internal/netutil"
)

// TimezoneProbe cross-checks the system timezone against the timezone the
// exit address geolocates to. A mismatch is a weak signal that local time
// configuration and network egress sit in different regions. The result is
// diagnostic only; it does not feed the pass/fail verdict.
type TimezoneProbe struct {
	TimeEndpoints []string
	Client        *http.Client
	Log           *logging.Recorder
}

func (p *TimezoneProbe) Run(ctx context.Context, exitLocation GeoLocation) TimezoneResult {
	res := TimezoneResult{
		Zone:       systemZone(),
		IPTimezone: exitLocation.Timezone,
	}
	res.Region = regionPrefix(res.Zone)

	note := func(format string, args ...any) {
		line := fmt.Sprintf(format, args...)
		res.Details = append(res.Details, line)
		p.Log.Logf("%s", line)
	}

	note("system timezone %q (region %q)", res.Zone, res.Region)

	ipRegion := regionPrefix(res.IPTimezone)
	if res.Region != "" && ipRegion != "" && res.Region != ipRegion {
		res.Mismatch = true
		note("timezone region %q does not match exit-address region %q", res.Region, ipRegion)
	}

	// Connectivity evidence only.
	for _, endpoint := range p.TimeEndpoints {
		start := time.Now()
		if err := p.reach(ctx, endpoint); err != nil {
			note("time endpoint %s failed: %v", endpoint, err)
			continue
		}
		note("time endpoint %s reachable in %dms", endpoint, time.Since(start).Milliseconds())
	}

	return res
}

func (p *TimezoneProbe) reach(ctx context.Context, endpoint string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", netutil.UserAgent)

	resp, err := p.Client.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("http status %d", resp.StatusCode)
	}
	return nil
}

// systemZone resolves the configured IANA zone name, or the abbreviated
// zone name when no full name is discoverable.
func systemZone() string {
	if tz := strings.TrimSpace(os.Getenv("TZ")); tz != "" {
		return tz
	}
	if data, err := os.ReadFile("/etc/timezone"); err == nil {
		if tz := strings.TrimSpace(string(data)); tz != "" {
			return tz
		}
	}
	if target, err := os.Readlink("/etc/localtime"); err == nil {
		if idx := strings.Index(target, "/zoneinfo/"); idx >= 0 {
			return target[idx+len("/zoneinfo/"):]
		}
	}
	name, _ := time.Now().Zone()
	return name
}

func regionPrefix(zone string) string {
	if idx := strings.Index(zone, "/"); idx > 0 {
		return zone[:idx]
	}
	return ""
}
