// Package netdns resolves the session server's host name, falling back to
// public DNS providers when the system resolver fails (captive portals,
// broken VPN split DNS). Client dialers use it for HTTP and WebSocket traffic.
package netdns

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"
)

var publicDNS = []string{
	"1.1.1.1",         // Cloudflare
	"1.0.0.1",         // Cloudflare
	"8.8.8.8",         // Google
	"8.8.4.4",         // Google
	"9.9.9.9",         // Quad9
	"149.112.112.112", // Quad9
	"208.67.222.222",  // Cisco OpenDNS
}

// Resolver looks names up locally first and then races public servers.
type Resolver struct {
	LocalTimeout  time.Duration
	RemoteTimeout time.Duration
	Servers       []string

	local *net.Resolver
}

// New returns a resolver with default timeouts and the built-in public
// server list.
func New() *Resolver {
	return &Resolver{
		LocalTimeout:  time.Second,
		RemoteTimeout: 2 * time.Second,
		Servers:       publicDNS,
		local:         net.DefaultResolver,
	}
}

// Lookup resolves host to one IP address, preferring IPv4. IP literals are
// returned unchanged.
func (r *Resolver) Lookup(ctx context.Context, host string) (string, error) {
	if ip := net.ParseIP(host); ip != nil {
		return host, nil
	}

	lctx, cancel := context.WithTimeout(ctx, r.LocalTimeout)
	ip, err := lookupWith(lctx, r.local, host)
	cancel()
	if err == nil {
		return ip, nil
	}
	if len(r.Servers) == 0 {
		return "", err
	}
	return r.race(ctx, host)
}

// race queries every public server at once and returns the first answer.
func (r *Resolver) race(ctx context.Context, host string) (string, error) {
	type result struct {
		ip  string
		err error
	}

	ctx, cancel := context.WithTimeout(ctx, r.RemoteTimeout)
	defer cancel()

	results := make(chan result, len(r.Servers))
	for _, server := range r.Servers {
		go func(server string) {
			ip, err := lookupWith(ctx, viaServer(server), host)
			results <- result{ip: ip, err: err}
		}(server)
	}

	var errs []error
	for range r.Servers {
		select {
		case res := <-results:
			if res.err == nil {
				return res.ip, nil
			}
			errs = append(errs, res.err)
		case <-ctx.Done():
			return "", fmt.Errorf("resolve %s: public DNS race timed out", host)
		}
	}
	return "", fmt.Errorf("resolve %s: all %d public DNS servers failed: %w", host, len(r.Servers), errors.Join(errs...))
}

// DialContext resolves addr's host with Lookup and dials the result. It fits
// http.Transport.DialContext and websocket.Dialer.NetDialContext.
func (r *Resolver) DialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, err
	}
	ip, err := r.Lookup(ctx, host)
	if err != nil {
		return nil, fmt.Errorf("dns lookup failed: %w", err)
	}
	var d net.Dialer
	return d.DialContext(ctx, network, net.JoinHostPort(ip, port))
}

func viaServer(server string) *net.Resolver {
	return &net.Resolver{
		PreferGo: true,
		Dial: func(ctx context.Context, network, _ string) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(ctx, network, net.JoinHostPort(server, "53"))
		},
	}
}

func lookupWith(ctx context.Context, res *net.Resolver, host string) (string, error) {
	ips, err := res.LookupHost(ctx, host)
	if err != nil {
		return "", err
	}
	if len(ips) == 0 {
		return "", errors.New("no IP addresses found")
	}
	for _, ip := range ips {
		if net.ParseIP(ip).To4() != nil {
			return ip, nil
		}
	}
	return ips[0], nil
}
