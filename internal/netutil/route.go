package netutil

import (
	"fmt"
	"net"
	"time"
)

// Route describes the interface the default route currently uses.
type Route struct {
	Interface string
	MTU       int
	LocalIP   string
}

// DefaultRoute resolves the outbound interface by opening a throwaway UDP
// "connection" (no packet is sent) and matching the chosen local address
// against the interface table.
func DefaultRoute() (Route, error) {
	localIP := localOutboundIP()
	if localIP == "" {
		return Route{}, fmt.Errorf("no outbound route")
	}

	parsed := net.ParseIP(localIP)
	ifaces, err := net.Interfaces()
	if err != nil {
		return Route{}, err
	}

	for _, iface := range ifaces {
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, a := range addrs {
			if ip := addrToIP(a); ip != nil && ip.Equal(parsed) {
				return Route{Interface: iface.Name, MTU: iface.MTU, LocalIP: localIP}, nil
			}
		}
	}

	return Route{LocalIP: localIP}, nil
}

func localOutboundIP() string {
	conn, err := net.DialTimeout("udp", "8.8.8.8:80", 500*time.Millisecond)
	if err != nil {
		return ""
	}
	defer conn.Close()

	if ua, ok := conn.LocalAddr().(*net.UDPAddr); ok {
		return ua.IP.String()
	}
	return ""
}
