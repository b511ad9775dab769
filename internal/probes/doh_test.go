package probes

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

// fakeResolver serves the dns-json convention from a static answer table
// keyed by "name|type".
type fakeResolver struct {
	answers map[string][]string
	fail    map[string]bool // "name|type" -> return 500
}

func (f *fakeResolver) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := r.URL.Query().Get("name")
		qtype := r.URL.Query().Get("type")
		key := name + "|" + qtype

		if f.fail[key] {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}

		type answer struct {
			Data string `json:"data"`
		}
		var out struct {
			Answer []answer `json:"Answer"`
		}
		for _, data := range f.answers[key] {
			out.Answer = append(out.Answer, answer{Data: data})
		}
		_ = json.NewEncoder(w).Encode(out)
	})
}

func newResolverServer(t *testing.T, f *fakeResolver) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(f.handler())
	t.Cleanup(srv.Close)
	return srv
}

func TestResolverProbe_ConsistentAnswers(t *testing.T) {
	answers := map[string][]string{
		"example.com|A":                  {"93.184.216.34"},
		"example.com|AAAA":               {},
		"34.216.184.93.in-addr.arpa|PTR": {"example.com."},
	}
	a := newResolverServer(t, &fakeResolver{answers: answers})
	b := newResolverServer(t, &fakeResolver{answers: answers})

	p := &ResolverProbe{
		Resolvers: []string{a.URL, b.URL},
		Domains:   []string{"example.com"},
		Client:    a.Client(),
	}
	v := p.Run(context.Background())

	if v.Leaked || v.InconsistentIPv4 || v.InconsistentIPv6 || v.MismatchedPTR {
		t.Fatalf("expected clean verdict, got %+v", v)
	}
	if v.Message != noDNSLeakMessage {
		t.Fatalf("expected %q, got %q", noDNSLeakMessage, v.Message)
	}
	if len(v.Records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(v.Records))
	}
	if v.Records[0].ReversePTR != "example.com" {
		t.Fatalf("expected trailing dot stripped, got %q", v.Records[0].ReversePTR)
	}
}

func TestResolverProbe_DisagreeingAnswers(t *testing.T) {
	a := newResolverServer(t, &fakeResolver{answers: map[string][]string{
		"example.com|A": {"1.2.3.4"},
	}})
	b := newResolverServer(t, &fakeResolver{answers: map[string][]string{
		"example.com|A": {"5.6.7.8"},
	}})

	p := &ResolverProbe{
		Resolvers: []string{a.URL, b.URL},
		Domains:   []string{"example.com"},
		Client:    a.Client(),
	}
	v := p.Run(context.Background())

	if !v.InconsistentIPv4 {
		t.Fatal("expected inconsistent IPv4")
	}
	if !v.Leaked {
		t.Fatal("expected leaked verdict")
	}
	if v.InconsistentIPv6 {
		t.Fatal("IPv6 was empty on both sides, must not be flagged")
	}
}

func TestResolverProbe_PTRFailureIsolated(t *testing.T) {
	f := &fakeResolver{
		answers: map[string][]string{
			"example.com|A":            {"9.9.9.1", "9.9.9.2", "9.9.9.3"},
			"2.9.9.9.in-addr.arpa|PTR": {"host2.example."},
			"3.9.9.9.in-addr.arpa|PTR": {"host3.example."},
		},
		fail: map[string]bool{
			"1.9.9.9.in-addr.arpa|PTR": true,
		},
	}
	srv := newResolverServer(t, f)
	other := newResolverServer(t, f)

	p := &ResolverProbe{
		Resolvers: []string{srv.URL, other.URL},
		Domains:   []string{"example.com"},
		Client:    srv.Client(),
	}
	v := p.Run(context.Background())

	if len(v.Records) != 2 {
		t.Fatalf("PTR failure dropped a record: got %d", len(v.Records))
	}
	// First address's PTR failed; the first surviving sibling answer wins.
	if v.Records[0].ReversePTR != "host2.example" {
		t.Fatalf("expected sibling PTR, got %q", v.Records[0].ReversePTR)
	}
}

func TestResolverProbe_QueryFailureSkipsPair(t *testing.T) {
	dead := newResolverServer(t, &fakeResolver{fail: map[string]bool{
		"example.com|A":    true,
		"example.com|AAAA": true,
	}})
	alive := newResolverServer(t, &fakeResolver{answers: map[string][]string{
		"example.com|A": {"93.184.216.34"},
	}})

	p := &ResolverProbe{
		Resolvers: []string{dead.URL, alive.URL},
		Domains:   []string{"example.com"},
		Client:    alive.Client(),
	}
	v := p.Run(context.Background())

	if len(v.Records) != 1 {
		t.Fatalf("expected 1 record from the alive resolver, got %d", len(v.Records))
	}
	// A single contributing source cannot disagree with itself.
	if v.Leaked {
		t.Fatalf("expected clean verdict with one source, got %+v", v)
	}
}

func TestResolverProbe_OneFamilyFailureSkipsPair(t *testing.T) {
	answers := map[string][]string{
		"example.com|A":    {"93.184.216.34"},
		"example.com|AAAA": {"2606:2800:220:1:248:1893:25c8:1946"},
	}
	flaky := newResolverServer(t, &fakeResolver{
		answers: answers,
		fail:    map[string]bool{"example.com|AAAA": true},
	})
	healthy := newResolverServer(t, &fakeResolver{answers: answers})

	p := &ResolverProbe{
		Resolvers: []string{flaky.URL, healthy.URL},
		Domains:   []string{"example.com"},
		Client:    healthy.Client(),
	}
	v := p.Run(context.Background())

	if len(v.Records) != 1 {
		t.Fatalf("a pair with a failed query must contribute no record, got %d", len(v.Records))
	}
	if v.InconsistentIPv6 || v.Leaked {
		t.Fatalf("transient failure read as a leak: %+v", v)
	}
	if v.Message != noDNSLeakMessage {
		t.Fatalf("expected %q, got %q", noDNSLeakMessage, v.Message)
	}
}

func TestResolverProbe_MalformedBodyYieldsEmpty(t *testing.T) {
	garbage := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not json"))
	}))
	defer garbage.Close()

	p := &ResolverProbe{
		Resolvers: []string{garbage.URL, garbage.URL},
		Domains:   []string{"example.com"},
		Client:    garbage.Client(),
	}
	v := p.Run(context.Background())

	if v.Leaked {
		t.Fatalf("malformed bodies must read as no data, got %+v", v)
	}
	for _, rec := range v.Records {
		if len(rec.IPv4) != 0 || len(rec.IPv6) != 0 {
			t.Fatalf("expected empty answer lists, got %+v", rec)
		}
	}
}

func TestAnalyzeResolverRecords_PTRNeedsTwoSources(t *testing.T) {
	records := []ResolverRecord{
		{Server: "a", Domain: "example.com", IPv4: []string{"1.1.1.1"}, ReversePTR: "one.example"},
		{Server: "b", Domain: "example.com", IPv4: []string{"1.1.1.1"}},
	}
	v := AnalyzeResolverRecords(records)
	if v.MismatchedPTR {
		t.Fatal("one non-empty PTR is not comparable")
	}

	records[1].ReversePTR = "two.example"
	v = AnalyzeResolverRecords(records)
	if !v.MismatchedPTR || !v.Leaked {
		t.Fatalf("expected PTR mismatch, got %+v", v)
	}
}

func TestAnalyzeResolverRecords_OneDomainTaintsRun(t *testing.T) {
	records := []ResolverRecord{
		{Server: "a", Domain: "same.example", IPv4: []string{"1.1.1.1"}},
		{Server: "b", Domain: "same.example", IPv4: []string{"1.1.1.1"}},
		{Server: "a", Domain: "drift.example", IPv6: []string{"2001:db8::1"}},
		{Server: "b", Domain: "drift.example", IPv6: []string{"2001:db8::2"}},
	}
	v := AnalyzeResolverRecords(records)
	if !v.InconsistentIPv6 || !v.Leaked {
		t.Fatalf("one mismatched domain must taint the run, got %+v", v)
	}
	if v.InconsistentIPv4 {
		t.Fatal("IPv4 agreed everywhere")
	}
}

func TestReverseName(t *testing.T) {
	if got := reverseName("93.184.216.34"); got != "34.216.184.93.in-addr.arpa" {
		t.Fatalf("unexpected reverse name %q", got)
	}
}
