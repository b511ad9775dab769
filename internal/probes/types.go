// Package probes implements the leak probes: peer-connection candidate
// gathering, cross-resolver DNS comparison, public-address identification,
// and the secondary fingerprint/timing heuristics. Each probe exposes one
// Run entry point returning its structured verdict; failures are recovered
// at the probe boundary.
package probes

import (
	"time"

	"github.com/baptistax/tunnelprobe/internal/analysis"
)

// PeerConnectionResult holds every address surfaced during candidate
// gathering, bucketed by classification. A correctly tunneled connection
// exposes at most one public egress address; Leaked means a second,
// non-tunneled path was visible.
type PeerConnectionResult struct {
	Leaked          bool                 `json:"leaked"`
	AllAddresses    analysis.Set[string] `json:"all_addresses"`
	LocalAddresses  analysis.Set[string] `json:"local_addresses"`
	PublicAddresses analysis.Set[string] `json:"public_addresses"`
	IPv6Addresses   analysis.Set[string] `json:"ipv6_addresses"`
	Erred           bool                 `json:"erred"`
}

// ResolverRecord is the answer one resolver gave for one domain. Records
// are collected in insertion order and never mutated afterwards.
type ResolverRecord struct {
	Server     string   `json:"server"`
	Domain     string   `json:"domain"`
	IPv4       []string `json:"ipv4"`
	IPv6       []string `json:"ipv6"`
	ReversePTR string   `json:"reverse_ptr,omitempty"`
}

type DNSLeakVerdict struct {
	Leaked           bool             `json:"leaked"`
	InconsistentIPv4 bool             `json:"inconsistent_ipv4"`
	InconsistentIPv6 bool             `json:"inconsistent_ipv6"`
	MismatchedPTR    bool             `json:"mismatched_ptr"`
	Message          string           `json:"message"`
	Records          []ResolverRecord `json:"records,omitempty"`
}

// IdentificationRecord is one successful "what is my address" response.
type IdentificationRecord struct {
	Service string `json:"service"`
	Address string `json:"address"`
}

type GeoLocation struct {
	Address  string  `json:"address"`
	Country  string  `json:"country,omitempty"`
	City     string  `json:"city,omitempty"`
	Lat      float64 `json:"lat,omitempty"`
	Lon      float64 `json:"lon,omitempty"`
	ISP      string  `json:"isp,omitempty"`
	Timezone string  `json:"timezone,omitempty"`
}

type IPVerdict struct {
	PrimaryAddress string                 `json:"primary_address"`
	IPv6Address    string                 `json:"ipv6_address,omitempty"`
	AllAddresses   analysis.Set[string]   `json:"all_addresses"`
	Consistent     bool                   `json:"consistent"`
	Locations      []GeoLocation          `json:"locations,omitempty"`
	Records        []IdentificationRecord `json:"records,omitempty"`
}

// TimezoneResult is diagnostic-only: Mismatch does not feed any pass/fail
// verdict.
type TimezoneResult struct {
	Zone       string   `json:"zone"`
	Region     string   `json:"region"`
	IPTimezone string   `json:"ip_timezone,omitempty"`
	Mismatch   bool     `json:"mismatch"`
	Details    []string `json:"details,omitempty"`
}

type FingerprintResult struct {
	Languages    []string `json:"languages,omitempty"`
	Platform     string   `json:"platform"`
	Timezone     string   `json:"timezone"`
	Inconsistent bool     `json:"inconsistent"`
	Details      []string `json:"details,omitempty"`
}

type RTTSample struct {
	SizeBytes int           `json:"size_bytes"`
	RTT       time.Duration `json:"rtt"`
	Err       string        `json:"err,omitempty"`
}

type NetInterfaceResult struct {
	Samples                []RTTSample `json:"samples"`
	FragmentationSuspected bool        `json:"fragmentation_suspected"`
	Interface              string      `json:"interface,omitempty"`
	MTU                    int         `json:"mtu,omitempty"`
	Details                []string    `json:"details,omitempty"`
}

type TrafficPatternResult struct {
	RTTs         []time.Duration `json:"rtts"`
	Mean         time.Duration   `json:"mean"`
	StdDev       time.Duration   `json:"stddev"`
	SuspectedVPN bool            `json:"suspected_vpn"`
	Details      []string        `json:"details,omitempty"`
}
