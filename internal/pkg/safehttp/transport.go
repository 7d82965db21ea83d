package safehttp

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"
)

// SafeTransport rejects connections to private or loopback IP ranges so that a
// misconfigured upstream base URL cannot be pointed at internal services.
var SafeTransport = &http.Transport{
	Proxy:               http.ProxyFromEnvironment,
	DialContext:         DialPublic,
	TLSHandshakeTimeout: 10 * time.Second,
	MaxIdleConnsPerHost: 4,
	IdleConnTimeout:     90 * time.Second,
}

// DialPublic dials addr and closes the connection again if the remote end is not a public address.
func DialPublic(ctx context.Context, network, addr string) (net.Conn, error) {
	dialer := &net.Dialer{Timeout: 5 * time.Second}
	conn, err := dialer.DialContext(ctx, network, addr)
	if err != nil {
		return nil, err
	}

	host, _, _ := net.SplitHostPort(conn.RemoteAddr().String())
	ip := net.ParseIP(host)
	if ip == nil {
		conn.Close()
		return nil, fmt.Errorf("failed to parse remote IP for %q", addr)
	}

	if !IsPublic(ip) {
		conn.Close()
		return nil, fmt.Errorf("access to private IP %s is denied", ip)
	}

	return conn, nil
}

// IsPublic reports whether ip is outside the loopback, private and link-local ranges.
func IsPublic(ip net.IP) bool {
	return !(ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() || ip.IsUnspecified())
}
