package probes

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/baptistax/tunnelprobe/internal/analysis"
	"github.com/baptistax/tunnelprobe/internal/ipclass"
	"github.com/baptistax/tunnelprobe/internal/logging"
	"github.com/baptistax/tunnelprobe/internal/netutil"
)

// PeerConnectionProbe negotiates candidate gathering the way a local peer
// connection would: host addresses from the interface table plus the
// server-reflexive addresses each rendezvous server reports. Candidates
// arrive on a channel that is drained until the gather budget elapses;
// whatever was collected by then is the result ("gather what you can,
// then stop").
type PeerConnectionProbe struct {
	Servers      []string
	GatherBudget time.Duration
	Log          *logging.Recorder

	// hostAddrs overrides the interface walk in tests.
	hostAddrs func() []string
}

const defaultGatherBudget = 5 * time.Second

func (p *PeerConnectionProbe) Run(ctx context.Context) PeerConnectionResult {
	res := PeerConnectionResult{
		AllAddresses:    analysis.NewSet[string](),
		LocalAddresses:  analysis.NewSet[string](),
		PublicAddresses: analysis.NewSet[string](),
		IPv6Addresses:   analysis.NewSet[string](),
	}

	budget := p.GatherBudget
	if budget <= 0 {
		budget = defaultGatherBudget
	}

	// Opening the gathering socket is the negotiation step that can fail
	// outright. That path resolves immediately as erred, without waiting
	// for the budget.
	sock, err := net.ListenPacket("udp", ":0")
	if err != nil {
		p.Log.Logf("candidate gathering unavailable: %v", err)
		res.Erred = true
		return res
	}
	_ = sock.Close()

	hostAddrs := p.hostAddrs
	if hostAddrs == nil {
		hostAddrs = netutil.HostAddresses
	}
	hosts := hostAddrs()

	// Buffered for every possible candidate, so senders can never block
	// after the drain loop has given up.
	candidates := make(chan string, len(hosts)+len(p.Servers))
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i, addr := range hosts {
			candidates <- fmt.Sprintf("candidate:%d 1 udp 2122260223 %s 0 typ host", i, addr)
		}
	}()

	for _, server := range p.Servers {
		wg.Add(1)
		go func(server string) {
			defer wg.Done()
			ip, err := stunBindingAddress(ctx, server, budget)
			if err != nil {
				p.Log.Logf("rendezvous %s: %v", server, err)
				return
			}
			candidates <- fmt.Sprintf("candidate:0 1 udp 1686052607 %s 0 typ srflx raddr 0.0.0.0 rport 0", ip)
		}(server)
	}

	go func() {
		wg.Wait()
		close(candidates)
	}()

	timer := time.NewTimer(budget)
	defer timer.Stop()

gather:
	for {
		select {
		case line, ok := <-candidates:
			if !ok {
				break gather
			}
			p.record(&res, line)
		case <-timer.C:
			// Hard bound: abandon whatever is still in flight. The
			// per-server sockets close themselves on return.
			break gather
		case <-ctx.Done():
			break gather
		}
	}

	res.Leaked = res.PublicAddresses.Len() > 1
	p.Log.Logf("gathered %d addresses (%d public, %d local, %d ipv6)",
		res.AllAddresses.Len(), res.PublicAddresses.Len(), res.LocalAddresses.Len(), res.IPv6Addresses.Len())
	return res
}

func (p *PeerConnectionProbe) record(res *PeerConnectionResult, line string) {
	for _, obs := range ipclass.Classify(line) {
		res.AllAddresses.Add(obs.Literal)
		switch {
		case obs.Family == ipclass.FamilyIPv6:
			res.IPv6Addresses.Add(obs.Literal)
		case obs.Scope == ipclass.ScopePrivate:
			res.LocalAddresses.Add(obs.Literal)
		default:
			res.PublicAddresses.Add(obs.Literal)
		}
		p.Log.Logf("candidate %s (%s/%s)", obs.Literal, obs.Family, obs.Scope)
	}
}
