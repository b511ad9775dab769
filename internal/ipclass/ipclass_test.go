package ipclass

import (
	"reflect"
	"testing"
)

func TestClassify_PrivateRanges(t *testing.T) {
	cases := []struct {
		literal string
		scope   Scope
	}{
		{"10.0.0.1", ScopePrivate},
		{"10.255.255.255", ScopePrivate},
		{"172.16.0.1", ScopePrivate},
		{"172.31.9.9", ScopePrivate},
		{"192.168.1.50", ScopePrivate},
		{"169.254.10.10", ScopePrivate},
		{"172.15.0.1", ScopePublic},
		{"172.32.0.1", ScopePublic},
		{"11.0.0.1", ScopePublic},
		{"8.8.8.8", ScopePublic},
		{"203.0.113.7", ScopePublic},
	}

	for _, tc := range cases {
		obs := Classify("candidate:0 1 udp 2122260223 " + tc.literal + " 54321 typ host")
		if len(obs) != 1 {
			t.Fatalf("%s: expected 1 observation, got %d", tc.literal, len(obs))
		}
		if obs[0].Family != FamilyIPv4 {
			t.Fatalf("%s: expected ipv4, got %s", tc.literal, obs[0].Family)
		}
		if obs[0].Scope != tc.scope {
			t.Errorf("%s: expected scope %s, got %s", tc.literal, tc.scope, obs[0].Scope)
		}
	}
}

func TestClassify_BothFamiliesInOneLine(t *testing.T) {
	line := "reflexive 192.168.1.4 via 2001:0DB8:0000:0000:0000:0000:0000:0001 done"
	obs := Classify(line)
	if len(obs) != 2 {
		t.Fatalf("expected 2 observations, got %d: %v", len(obs), obs)
	}
	if obs[0].Family != FamilyIPv4 || obs[0].Literal != "192.168.1.4" {
		t.Errorf("unexpected ipv4 observation: %+v", obs[0])
	}
	if obs[1].Family != FamilyIPv6 {
		t.Errorf("unexpected ipv6 observation: %+v", obs[1])
	}
	if obs[1].Literal != "2001:0db8:0000:0000:0000:0000:0000:0001" {
		t.Errorf("ipv6 literal not lowercased: %q", obs[1].Literal)
	}
	if obs[1].Scope != ScopeUnknown {
		t.Errorf("ipv6 scope must be unknown, got %s", obs[1].Scope)
	}
}

func TestClassify_Deterministic(t *testing.T) {
	line := "candidate 10.1.2.3 and fe80:0000:0000:0000:0202:b3ff:fe1e:8329"
	first := Classify(line)
	for i := 0; i < 5; i++ {
		if got := Classify(line); !reflect.DeepEqual(first, got) {
			t.Fatalf("call %d differed: %v vs %v", i, first, got)
		}
	}
}

func TestClassify_NoMatch(t *testing.T) {
	if obs := Classify("candidate gathering complete"); obs != nil {
		t.Fatalf("expected nil, got %v", obs)
	}
	// Out-of-range octets are not addresses.
	if obs := Classify("version 300.400.500.600 build"); obs != nil {
		t.Fatalf("expected nil for invalid octets, got %v", obs)
	}
}

func TestNormalize(t *testing.T) {
	if got := Normalize("2001:DB8:0:0:0:0:0:1"); got != "2001:db8:0:0:0:0:0:1" {
		t.Errorf("ipv6 not lowercased: %q", got)
	}
	if got := Normalize("203.0.113.7"); got != "203.0.113.7" {
		t.Errorf("ipv4 changed: %q", got)
	}
}
