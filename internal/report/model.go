package report

import (
	"time"

	"github.com/baptistax/tunnelprobe/internal/probes"
)

type Status string

const (
	StatusPending Status = "pending"
	StatusRunning Status = "running"
	StatusPassed  Status = "passed"
	StatusFailed  Status = "failed"
	StatusError   Status = "error"
)

// Outcome is the presentation-facing result of one test. It moves
// pending -> running -> one terminal state; a terminal state is never
// overwritten (a passed or failed test must not regress to running).
type Outcome struct {
	Name     string   `json:"name"`
	Status   Status   `json:"status"`
	Message  string   `json:"message,omitempty"`
	Evidence []string `json:"evidence,omitempty"`
}

func NewOutcome(name string) Outcome {
	return Outcome{Name: name, Status: StatusPending}
}

func (o *Outcome) Terminal() bool {
	switch o.Status {
	case StatusPassed, StatusFailed, StatusError:
		return true
	}
	return false
}

// Transition applies a state change, refusing to leave a terminal state.
// It reports whether the change was applied.
func (o *Outcome) Transition(status Status, message string, evidence []string) bool {
	if o.Terminal() {
		return false
	}
	o.Status = status
	o.Message = message
	if evidence != nil {
		o.Evidence = evidence
	}
	return true
}

// Test names, in presentation order.
const (
	TestPeerConnection = "peer-connection"
	TestDNSResolvers   = "dns-resolvers"
	TestIdentification = "ip-identification"
	TestTimezone       = "timezone"
	TestFingerprint    = "fingerprint"
	TestNetInterface   = "network-interface"
	TestTraffic        = "traffic-pattern"
)

// Report aggregates one full run. It is built by the orchestrator and
// returned by value; nothing in it is shared mutable state.
type Report struct {
	RunID      string    `json:"run_id"`
	StartedUTC time.Time `json:"started_utc"`

	Outcomes []Outcome `json:"outcomes"`

	Peer         probes.PeerConnectionResult `json:"peer_connection"`
	DNS          probes.DNSLeakVerdict       `json:"dns"`
	IP           *probes.IPVerdict           `json:"ip,omitempty"`
	Timezone     probes.TimezoneResult       `json:"timezone"`
	Fingerprint  probes.FingerprintResult    `json:"fingerprint"`
	NetInterface probes.NetInterfaceResult   `json:"network_interface"`
	Traffic      probes.TrafficPatternResult `json:"traffic_pattern"`

	Notes   []string `json:"notes,omitempty"`
	Overall string   `json:"overall"` // PASS|FAIL|INCONCLUSIVE
}

// PrimaryTests are the three probes with hard verdicts; AllTests adds the
// secondary heuristics.
var (
	PrimaryTests = []string{TestPeerConnection, TestDNSResolvers, TestIdentification}
	AllTests     = []string{
		TestPeerConnection, TestDNSResolvers, TestIdentification,
		TestTimezone, TestFingerprint, TestNetInterface, TestTraffic,
	}
)

func New(tests []string) Report {
	r := Report{
		RunID:      time.Now().UTC().Format("20060102_150405"),
		StartedUTC: time.Now().UTC(),
	}
	for _, name := range tests {
		r.Outcomes = append(r.Outcomes, NewOutcome(name))
	}
	return r
}

// Outcome returns the named outcome for in-place transitions.
func (r *Report) Outcome(name string) *Outcome {
	for i := range r.Outcomes {
		if r.Outcomes[i].Name == name {
			return &r.Outcomes[i]
		}
	}
	return nil
}

// Finish derives the overall verdict: any failed test fails the run; a
// run with errors but no failures is inconclusive.
func (r *Report) Finish() {
	overall := "PASS"
	for _, o := range r.Outcomes {
		switch o.Status {
		case StatusFailed:
			r.Overall = "FAIL"
			return
		case StatusError, StatusPending, StatusRunning:
			overall = "INCONCLUSIVE"
		}
	}
	r.Overall = overall
}
