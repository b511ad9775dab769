package report

import "testing"

func TestOutcome_NoRegressFromTerminal(t *testing.T) {
	o := NewOutcome(TestPeerConnection)

	if !o.Transition(StatusRunning, "", nil) {
		t.Fatal("pending -> running refused")
	}
	if !o.Transition(StatusPassed, "clean", []string{"line"}) {
		t.Fatal("running -> passed refused")
	}
	if o.Transition(StatusRunning, "late", nil) {
		t.Fatal("terminal state overwritten")
	}
	if o.Status != StatusPassed || o.Message != "clean" {
		t.Fatalf("terminal state mutated: %+v", o)
	}
}

func TestOutcome_EvidencePreservedOnNilUpdate(t *testing.T) {
	o := NewOutcome(TestDNSResolvers)
	o.Transition(StatusRunning, "", []string{"query sent"})
	o.Transition(StatusFailed, "mismatch", nil)

	if len(o.Evidence) != 1 || o.Evidence[0] != "query sent" {
		t.Fatalf("nil evidence must keep prior evidence, got %v", o.Evidence)
	}
}

func TestReport_Outcome(t *testing.T) {
	r := New(PrimaryTests)

	if r.Outcome(TestDNSResolvers) == nil {
		t.Fatal("known test not found")
	}
	if r.Outcome(TestTraffic) != nil {
		t.Fatal("secondary test present in a primary-only report")
	}
	if got := r.Outcome("nope"); got != nil {
		t.Fatalf("unknown name returned %+v", got)
	}

	r.Outcome(TestDNSResolvers).Transition(StatusPassed, "", nil)
	if r.Outcomes[1].Status != StatusPassed {
		t.Fatal("Outcome must alias the stored slice element")
	}
}

func TestReport_Finish(t *testing.T) {
	mk := func(statuses ...Status) Report {
		r := New(PrimaryTests[:len(statuses)])
		for i, s := range statuses {
			r.Outcomes[i].Status = s
		}
		return r
	}

	r := mk(StatusPassed, StatusPassed, StatusPassed)
	r.Finish()
	if r.Overall != "PASS" {
		t.Fatalf("got %q", r.Overall)
	}

	// A failure dominates errors.
	r = mk(StatusError, StatusFailed, StatusPassed)
	r.Finish()
	if r.Overall != "FAIL" {
		t.Fatalf("got %q", r.Overall)
	}

	r = mk(StatusPassed, StatusError, StatusPassed)
	r.Finish()
	if r.Overall != "INCONCLUSIVE" {
		t.Fatalf("got %q", r.Overall)
	}

	// An unfinished test cannot be a pass.
	r = mk(StatusPassed, StatusPassed, StatusPending)
	r.Finish()
	if r.Overall != "INCONCLUSIVE" {
		t.Fatalf("got %q", r.Overall)
	}
}
