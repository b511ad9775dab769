package probes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sort"
	"strings"
	"sync"

	"github.com/baptistax/tunnelprobe/internal/analysis"
	"github.com/baptistax/tunnelprobe/internal/ipclass"
	"github.com/baptistax/tunnelprobe/internal/logging"
	"github.com/baptistax/tunnelprobe/internal/netutil"
)

// IdentService is one "what is my address" endpoint queried by the
// identification probe.
type IdentService struct {
	Name string
	URL  string
}

// ErrNoIdentSources is returned when every configured identification
// service failed. Partial success is acceptable; zero successes is the one
// hard failure.
var ErrNoIdentSources = errors.New("no identification service reachable")

// IdentificationProbe queries several independent identification services
// concurrently and checks that they all agree on the externally visible
// address. Disagreement means traffic reaches the services over more than
// one path.
type IdentificationProbe struct {
	Services []IdentService
	Geo      GeoLookup
	Client   *http.Client
	Log      *logging.Recorder
}

func (p *IdentificationProbe) Run(ctx context.Context) (IPVerdict, error) {
	addresses := make([]string, len(p.Services))

	var wg sync.WaitGroup
	for i, svc := range p.Services {
		wg.Add(1)
		go func(i int, svc IdentService) {
			defer wg.Done()
			addr, err := p.fetchAddress(ctx, svc)
			if err != nil {
				p.Log.Logf("%s failed: %v", svc.Name, err)
				return
			}
			p.Log.Logf("%s reports %s", svc.Name, addr)
			addresses[i] = addr
		}(i, svc)
	}
	wg.Wait()

	var records []IdentificationRecord
	distinct := analysis.NewSet[string]()
	for i, addr := range addresses {
		if addr == "" {
			continue
		}
		records = append(records, IdentificationRecord{Service: p.Services[i].Name, Address: addr})
		distinct.Add(ipclass.Normalize(addr))
	}

	if len(records) == 0 {
		return IPVerdict{}, ErrNoIdentSources
	}

	verdict := IPVerdict{
		// The primary address is the first successful service's answer,
		// consistent or not; no majority vote is attempted.
		PrimaryAddress: records[0].Address,
		AllAddresses:   distinct,
		Consistent:     distinct.Len() == 1,
		Records:        records,
	}

	// When the host has global IPv6, ask one service again over an
	// IPv6-pinned client: a v6 egress outside the tunnel would answer with
	// a different address family than the pooled queries above.
	if netutil.HasGlobalIPv6() {
		svc := p.Services[0]
		if addr, err := p.fetch(ctx, netutil.HTTPClientForFamily("ipv6"), svc); err != nil {
			p.Log.Logf("ipv6-pinned query to %s failed: %v", svc.Name, err)
		} else {
			verdict.IPv6Address = ipclass.Normalize(addr)
			p.Log.Logf("ipv6-pinned query reports %s", verdict.IPv6Address)
		}
	}

	// One location per distinct address, not per service. A geolocation
	// failure fails the whole probe: without locations the result cannot
	// be presented, so the caller should retry.
	addrs := distinct.Values()
	sort.Strings(addrs)
	for _, addr := range addrs {
		loc, err := p.Geo.Lookup(ctx, addr)
		if err != nil {
			return verdict, fmt.Errorf("geolocate %s: %w", addr, err)
		}
		verdict.Locations = append(verdict.Locations, loc)
	}

	return verdict, nil
}

func (p *IdentificationProbe) fetchAddress(ctx context.Context, svc IdentService) (string, error) {
	return p.fetch(ctx, p.Client, svc)
}

// fetch reads one service's answer: either a bare address in plain text,
// or a JSON object carrying the address under one of several known field
// names.
func (p *IdentificationProbe) fetch(ctx context.Context, client *http.Client, svc IdentService) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, svc.URL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", netutil.UserAgent)

	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return "", err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("http status %d", resp.StatusCode)
	}

	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return "", errors.New("empty response body")
	}

	if strings.HasPrefix(trimmed, "{") {
		var raw map[string]any
		if err := json.Unmarshal([]byte(trimmed), &raw); err != nil {
			return "", fmt.Errorf("malformed body: %w", err)
		}
		addr := pickString(raw, "ip", "ip_address", "address", "query")
		if addr == "" {
			return "", errors.New("no address field in response")
		}
		return addr, nil
	}

	if net.ParseIP(trimmed) == nil {
		return "", fmt.Errorf("not an address: %q", trimmed)
	}
	return trimmed, nil
}
