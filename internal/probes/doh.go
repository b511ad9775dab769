package probes

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/baptistax/tunnelprobe/internal/analysis"
	"github.com/baptistax/tunnelprobe/internal/ipclass"
	"github.com/baptistax/tunnelprobe/internal/logging"
)

// ResolverProbe asks every configured DNS-over-HTTPS resolver for the same
// fixed domain list and compares the answers across resolvers. A tunneled
// setup should see identical answers everywhere; region-dependent answers
// from one resolver but not another indicate queries escaping the tunnel.
type ResolverProbe struct {
	Resolvers []string
	Domains   []string
	Client    *http.Client
	Log       *logging.Recorder
}

const noDNSLeakMessage = "No DNS leaks detected"

func (p *ResolverProbe) Run(ctx context.Context) DNSLeakVerdict {
	var records []ResolverRecord

	for _, domain := range p.Domains {
		for _, resolver := range p.Resolvers {
			rec, ok := p.collect(ctx, resolver, domain)
			if !ok {
				continue
			}
			records = append(records, rec)
		}
	}

	return AnalyzeResolverRecords(records)
}

// collect gathers A, AAAA and reverse-PTR answers for one
// (domain, resolver) pair. A pair with any failed forward query
// contributes no record but never aborts the outer loop: a transport
// failure is not "resolved to nothing", and treating it as an empty set
// would read as a cross-resolver mismatch.
func (p *ResolverProbe) collect(ctx context.Context, resolver, domain string) (ResolverRecord, bool) {
	ipv4, err4 := p.query(ctx, resolver, domain, "A")
	ipv6, err6 := p.query(ctx, resolver, domain, "AAAA")

	if err4 != nil {
		p.Log.Logf("%s: A %s failed: %v", resolver, domain, err4)
	}
	if err6 != nil {
		p.Log.Logf("%s: AAAA %s failed: %v", resolver, domain, err6)
	}
	if err4 != nil || err6 != nil {
		return ResolverRecord{}, false
	}

	rec := ResolverRecord{
		Server: resolver,
		Domain: domain,
		IPv4:   ipv4,
		IPv6:   ipv6,
	}
	rec.ReversePTR = p.reverseLookup(ctx, resolver, ipv4)

	p.Log.Logf("%s: %s -> %d A, %d AAAA, ptr %q", resolver, domain, len(ipv4), len(ipv6), rec.ReversePTR)
	return rec, true
}

// reverseLookup resolves PTR records for every IPv4 answer against the
// same resolver, concurrently, and returns the first non-empty answer in
// address order. One address's failure never drops its siblings.
func (p *ResolverProbe) reverseLookup(ctx context.Context, resolver string, addrs []string) string {
	if len(addrs) == 0 {
		return ""
	}

	ptrs := make([]string, len(addrs))
	var wg sync.WaitGroup
	for i, addr := range addrs {
		wg.Add(1)
		go func(i int, addr string) {
			defer wg.Done()
			answers, err := p.query(ctx, resolver, reverseName(addr), "PTR")
			if err != nil {
				p.Log.Logf("%s: PTR %s failed: %v", resolver, addr, err)
				return
			}
			if len(answers) > 0 {
				ptrs[i] = answers[0]
			}
		}(i, addr)
	}
	wg.Wait()

	for _, ptr := range ptrs {
		if ptr != "" {
			return ptr
		}
	}
	return ""
}

type dohAnswer struct {
	Data string `json:"data"`
}

type dohResponse struct {
	Answer []dohAnswer `json:"Answer"`
}

// query issues one DoH query. Malformed bodies and absent Answer arrays
// yield an empty answer list; only transport failures and non-OK statuses
// surface as errors.
func (p *ResolverProbe) query(ctx context.Context, resolver, name, qtype string) ([]string, error) {
	sep := "?"
	if strings.Contains(resolver, "?") {
		sep = "&"
	}
	reqURL := resolver + sep + "name=" + url.QueryEscape(name) + "&type=" + qtype

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/dns-json")

	resp, err := p.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("http status %d", resp.StatusCode)
	}

	var parsed dohResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		// No data from this source, not a failure.
		return nil, nil
	}

	var out []string
	for _, a := range parsed.Answer {
		data := strings.TrimSpace(a.Data)
		if data == "" {
			continue
		}
		switch qtype {
		case "A":
			if ip := net.ParseIP(data); ip != nil && ip.To4() != nil {
				out = append(out, data)
			}
		case "AAAA":
			if ip := net.ParseIP(data); ip != nil && ip.To4() == nil {
				out = append(out, ipclass.Normalize(data))
			}
		default:
			// Answer arrays can interleave CNAMEs; the first hostname-like
			// entry is the PTR we want.
			out = append(out, strings.TrimSuffix(data, "."))
		}
	}
	return out, nil
}

func reverseName(ipv4 string) string {
	octets := strings.Split(ipv4, ".")
	for i, j := 0, len(octets)-1; i < j; i, j = i+1, j-1 {
		octets[i], octets[j] = octets[j], octets[i]
	}
	return strings.Join(octets, ".") + ".in-addr.arpa"
}

// AnalyzeResolverRecords groups records by domain and flags any domain
// where resolvers disagree on the IPv4 set, the IPv6 set, or the reverse
// PTR. One mismatched domain taints the whole run.
func AnalyzeResolverRecords(records []ResolverRecord) DNSLeakVerdict {
	v := DNSLeakVerdict{Records: records}

	byDomain := make(map[string][]ResolverRecord)
	for _, rec := range records {
		byDomain[rec.Domain] = append(byDomain[rec.Domain], rec)
	}

	for _, group := range byDomain {
		if len(group) < 2 {
			continue
		}

		v4 := make([]analysis.Set[string], 0, len(group))
		v6 := make([]analysis.Set[string], 0, len(group))
		ptrs := analysis.NewSet[string]()
		ptrCount := 0

		for _, rec := range group {
			v4 = append(v4, analysis.NewSet(rec.IPv4...))
			v6 = append(v6, analysis.NewSet(rec.IPv6...))
			if rec.ReversePTR != "" {
				ptrs.Add(rec.ReversePTR)
				ptrCount++
			}
		}

		if !analysis.AllEqual(v4) {
			v.InconsistentIPv4 = true
		}
		if !analysis.AllEqual(v6) {
			v.InconsistentIPv6 = true
		}
		// PTR is only comparable when at least two resolvers answered.
		if ptrCount >= 2 && ptrs.Len() > 1 {
			v.MismatchedPTR = true
		}
	}

	var reasons []string
	if v.InconsistentIPv4 {
		reasons = append(reasons, "IPv4 answers differ across resolvers")
	}
	if v.InconsistentIPv6 {
		reasons = append(reasons, "IPv6 answers differ across resolvers")
	}
	if v.MismatchedPTR {
		reasons = append(reasons, "reverse DNS answers differ across resolvers")
	}

	v.Leaked = len(reasons) > 0
	if v.Leaked {
		v.Message = strings.Join(reasons, "; ")
	} else {
		v.Message = noDNSLeakMessage
	}
	return v
}
