package netutil

import (
	"context"
	"crypto/tls"
	"net"
	"net/http"
	"strings"
	"time"
)

// UserAgent is sent on every outbound probe request.
const UserAgent = "tunnelprobe/0.1"

func HTTPClientForFamily(family string) *http.Client {
	dialer := &net.Dialer{
		Timeout:   6 * time.Second,
		KeepAlive: 15 * time.Second,
	}

	transport := &http.Transport{
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			switch strings.ToLower(family) {
			case "ipv4":
				return dialer.DialContext(ctx, "tcp4", addr)
			case "ipv6":
				return dialer.DialContext(ctx, "tcp6", addr)
			default:
				return dialer.DialContext(ctx, network, addr)
			}
		},
		TLSClientConfig: &tls.Config{MinVersion: tls.VersionTLS12},
	}

	return &http.Client{
		Timeout:   10 * time.Second,
		Transport: transport,
	}
}

// QueryClient returns the client used for DoH and identification queries.
// It carries no cookie jar and follows no redirects, so every query is
// isolated from ambient credentials and from redirect-based localization.
func QueryClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Jar:     nil,
		Transport: &http.Transport{
			TLSClientConfig:   &tls.Config{MinVersion: tls.VersionTLS12},
			DisableKeepAlives: true,
		},
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}
