package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultValidates(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}
	if len(cfg.DoHResolvers) < 2 {
		t.Fatal("defaults must carry enough resolvers to compare")
	}
	if len(cfg.TestDomains) < 2 {
		t.Fatal("defaults must carry domains across registries")
	}
}

func TestLoad_EmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Timeouts.GatherBudget != 5*time.Second {
		t.Fatalf("gather budget = %v", cfg.Timeouts.GatherBudget)
	}
}

func TestLoad_OverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `
stun_servers:
  - stun.example.net:3478
timeouts:
  gather_budget: 2s
thresholds:
  traffic_mean: 250ms
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if len(cfg.StunServers) != 1 || cfg.StunServers[0] != "stun.example.net:3478" {
		t.Fatalf("stun servers = %v", cfg.StunServers)
	}
	if cfg.Timeouts.GatherBudget != 2*time.Second {
		t.Fatalf("gather budget = %v", cfg.Timeouts.GatherBudget)
	}
	if cfg.Thresholds.TrafficMean != 250*time.Millisecond {
		t.Fatalf("traffic mean = %v", cfg.Thresholds.TrafficMean)
	}
	// Keys absent from the file keep their defaults.
	if len(cfg.DoHResolvers) != 2 {
		t.Fatalf("resolvers overwritten: %v", cfg.DoHResolvers)
	}
}

func TestLoad_RejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `
doh_resolvers:
  - https://one.example/dns-query
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), "two DoH resolvers") {
		t.Fatalf("expected resolver-count error, got %v", err)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for a missing explicit path")
	}
}

func TestValidate_DomainFloor(t *testing.T) {
	cfg := Default()
	cfg.TestDomains = cfg.TestDomains[:4]
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "five test domains") {
		t.Fatalf("expected domain-floor error, got %v", err)
	}

	cfg.TestDomains = Default().TestDomains[:5]
	if err := cfg.Validate(); err != nil {
		t.Fatalf("five domains must validate: %v", err)
	}
}

func TestValidate_GeoSourceRequired(t *testing.T) {
	cfg := Default()
	cfg.GeoServiceURL = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error without any geolocation source")
	}

	cfg.GeoIP.CityDatabase = "/var/lib/geoip/city.mmdb"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("offline database must satisfy the requirement: %v", err)
	}
}

func TestValidate_PayloadSizes(t *testing.T) {
	cfg := Default()
	cfg.PayloadSizes = []int{1500, 0}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for non-positive payload size")
	}
}
