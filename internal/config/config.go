package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// IdentService is one "what is my address" endpoint. The response format
// (plain text vs JSON) is detected from the body, not configured.
type IdentService struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

// Timeouts groups the per-stage deadlines. GatherBudget is the hard bound
// on candidate gathering; Secondary bounds each heuristic probe as a whole.
type Timeouts struct {
	GatherBudget time.Duration `yaml:"gather_budget"`
	Query        time.Duration `yaml:"query"`
	Probe        time.Duration `yaml:"probe"`
	Secondary    time.Duration `yaml:"secondary"`
}

// Thresholds are the heuristic cut-offs for the timing probes. They are
// environment-dependent and deliberately configurable.
type Thresholds struct {
	FragmentationRTT time.Duration `yaml:"fragmentation_rtt"`
	TrafficMean      time.Duration `yaml:"traffic_mean"`
	TrafficStdDev    time.Duration `yaml:"traffic_stddev"`
}

// GeoIP configures optional offline geolocation via MaxMind databases.
// When CityDatabase is set it replaces the HTTP geolocation service.
type GeoIP struct {
	CityDatabase string `yaml:"city_database,omitempty"`
	ASNDatabase  string `yaml:"asn_database,omitempty"`
}

type Config struct {
	StunServers   []string       `yaml:"stun_servers"`
	DoHResolvers  []string       `yaml:"doh_resolvers"`
	TestDomains   []string       `yaml:"test_domains"`
	IdentServices []IdentService `yaml:"ident_services"`
	GeoServiceURL string         `yaml:"geo_service_url"`
	EchoURL       string         `yaml:"echo_url"`
	TimeEndpoints []string       `yaml:"time_endpoints"`

	GeoIP      GeoIP      `yaml:"geoip,omitempty"`
	Timeouts   Timeouts   `yaml:"timeouts"`
	Thresholds Thresholds `yaml:"thresholds"`

	// TrafficSamples sequential requests, TrafficDelay apart, feed the
	// traffic-pattern heuristic. ProbeDelay spaces the secondary probes to
	// stay polite to shared public endpoints.
	TrafficSamples int           `yaml:"traffic_samples"`
	TrafficDelay   time.Duration `yaml:"traffic_delay"`
	ProbeDelay     time.Duration `yaml:"probe_delay"`

	PayloadSizes []int `yaml:"payload_sizes"`
}

func Default() Config {
	return Config{
		StunServers: []string{
			"stun.l.google.com:19302",
			"stun1.l.google.com:19302",
			"stun2.l.google.com:19302",
			"stun.cloudflare.com:3478",
		},
		DoHResolvers: []string{
			"https://cloudflare-dns.com/dns-query",
			"https://dns.google/resolve",
		},
		TestDomains: []string{
			"example.com",
			"wikipedia.org",
			"bbc.co.uk",
			"canada.ca",
			"data.gov.au",
			"rnids.rs",
		},
		IdentServices: []IdentService{
			{Name: "ipify", URL: "https://api.ipify.org?format=json"},
			{Name: "ifconfig.me", URL: "https://ifconfig.me/ip"},
			{Name: "ipinfo", URL: "https://ipinfo.io/ip"},
			{Name: "ident.me", URL: "https://ident.me"},
		},
		GeoServiceURL: "http://ip-api.com/json/",
		EchoURL:       "https://httpbin.org/post",
		TimeEndpoints: []string{
			"https://worldtimeapi.org/api/ip",
		},
		Timeouts: Timeouts{
			GatherBudget: 5 * time.Second,
			Query:        5 * time.Second,
			Probe:        15 * time.Second,
			Secondary:    30 * time.Second,
		},
		Thresholds: Thresholds{
			FragmentationRTT: 100 * time.Millisecond,
			TrafficMean:      100 * time.Millisecond,
			TrafficStdDev:    50 * time.Millisecond,
		},
		TrafficSamples: 5,
		TrafficDelay:   time.Second,
		ProbeDelay:     time.Second,
		PayloadSizes:   []int{1500, 1400, 1300, 1200},
	}
}

// Load reads a YAML config file over the defaults. An empty path returns
// the defaults unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if len(c.StunServers) == 0 {
		return fmt.Errorf("config: at least one STUN server is required")
	}
	if len(c.DoHResolvers) < 2 {
		return fmt.Errorf("config: at least two DoH resolvers are required for cross-resolver comparison")
	}
	// The cross-resolver comparison is only meaningful over several
	// domains spanning independent registries: with too few, one
	// CDN-localized answer dominates the verdict.
	if len(c.TestDomains) < 5 {
		return fmt.Errorf("config: at least five test domains are required for a meaningful cross-resolver comparison")
	}
	if len(c.IdentServices) < 2 {
		return fmt.Errorf("config: at least two identification services are required for cross-source comparison")
	}
	if c.GeoServiceURL == "" && c.GeoIP.CityDatabase == "" {
		return fmt.Errorf("config: a geolocation source is required (geo_service_url or geoip.city_database)")
	}
	if c.Timeouts.GatherBudget <= 0 {
		return fmt.Errorf("config: gather_budget must be positive")
	}
	for _, size := range c.PayloadSizes {
		if size <= 0 {
			return fmt.Errorf("config: payload sizes must be positive, got %d", size)
		}
	}
	return nil
}
