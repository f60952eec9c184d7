package resolvers

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/dnswall-io/dnswall/internal/dns"
	"github.com/dnswall-io/dnswall/internal/helpers"
)

// Default upstream query timing. The Forwarder is intentionally a thin
// passthrough: no response cache, no singleflight, no upstream health
// tracking. Registry lookups are always tried first in the resolver
// chain; this resolver only runs for names the registry does not own.
const (
	DefaultUDPTimeout = 3 * time.Second
	DefaultTCPTimeout = 5 * time.Second
)

// ForwardingResolver relays a query to a fixed list of upstream
// nameservers, trying them in order and returning the first response
// received. It does not cache or track upstream health; it exists to satisfy
// queries the registry does not own, in the spirit of the original
// dnswall ProxyResolver.
type ForwardingResolver struct {
	upstreams   []string // host[:port], port defaults to 53
	udpTimeout  time.Duration
	tcpTimeout  time.Duration
	tcpFallback bool
}

// NewForwardingResolver builds a ForwardingResolver over the given upstream
// servers. If udpTimeout/tcpTimeout are zero the package defaults are used.
func NewForwardingResolver(upstreams []string, tcpFallback bool, udpTimeout, tcpTimeout time.Duration) *ForwardingResolver {
	if udpTimeout <= 0 {
		udpTimeout = DefaultUDPTimeout
	}
	if tcpTimeout <= 0 {
		tcpTimeout = DefaultTCPTimeout
	}
	ups := make([]string, 0, len(upstreams))
	for _, u := range upstreams {
		if u == "" {
			continue
		}
		if _, _, err := net.SplitHostPort(u); err != nil {
			u = net.JoinHostPort(u, "53")
		}
		ups = append(ups, u)
	}
	return &ForwardingResolver{
		upstreams:   ups,
		udpTimeout:  udpTimeout,
		tcpTimeout:  tcpTimeout,
		tcpFallback: tcpFallback,
	}
}

// Close is a no-op; the forwarder holds no persistent resources.
func (f *ForwardingResolver) Close() error { return nil }

// Resolve tries each configured upstream in order, returning the first
// successful response. The client's original transaction ID is restored
// on the response before it is handed back.
func (f *ForwardingResolver) Resolve(ctx context.Context, req dns.Packet, reqBytes []byte) (Result, error) {
	if len(f.upstreams) == 0 {
		return Result{}, errors.New("forwarding resolver: no upstream servers configured")
	}
	txid := req.Header.ID

	var lastErr error
	for _, up := range f.upstreams {
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		resp, err := f.queryOne(ctx, up, reqBytes)
		if err != nil {
			lastErr = err
			continue
		}
		return Result{ResponseBytes: PatchTransactionID(resp, txid), Source: "upstream"}, nil
	}
	return Result{}, fmt.Errorf("forwarding resolver: all upstreams failed: %w", lastErr)
}

// queryOne sends the query to a single upstream over UDP, falling back to
// TCP when the UDP reply is truncated (TC bit set) and fallback is enabled.
func (f *ForwardingResolver) queryOne(ctx context.Context, upstream string, req []byte) ([]byte, error) {
	resp, err := queryUpstreamUDP(ctx, upstream, req, f.udpTimeout)
	if err != nil {
		return nil, err
	}
	if f.tcpFallback && dns.IsTruncated(resp) {
		return queryUpstreamTCP(ctx, upstream, req, f.tcpTimeout)
	}
	return resp, nil
}

// queryUpstreamUDP performs a single UDP request/response round trip.
func queryUpstreamUDP(ctx context.Context, upstream string, req []byte, timeout time.Duration) ([]byte, error) {
	d := net.Dialer{Timeout: timeout}
	conn, err := d.DialContext(ctx, "udp", upstream)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	deadline := time.Now().Add(timeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}
	_ = conn.SetDeadline(deadline)

	if _, err := conn.Write(req); err != nil {
		return nil, err
	}

	buf := make([]byte, dns.MaxIncomingDNSMessageSize)
	n, err := conn.Read(buf)
	if err != nil {
		return nil, err
	}
	return buf[:n:n], nil
}

// queryUpstreamTCP sends a DNS query over TCP with length-prefix framing
// (RFC 1035 section 4.2.2).
func queryUpstreamTCP(ctx context.Context, upstream string, req []byte, timeout time.Duration) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	d := net.Dialer{}
	conn, err := d.DialContext(ctx, "tcp", upstream)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	var prefix [2]byte
	binary.BigEndian.PutUint16(prefix[:], helpers.ClampIntToUint16(len(req)))
	if _, err := conn.Write(prefix[:]); err != nil {
		return nil, err
	}
	if _, err := conn.Write(req); err != nil {
		return nil, err
	}

	if _, err := io.ReadFull(conn, prefix[:]); err != nil {
		return nil, err
	}
	respLen := int(binary.BigEndian.Uint16(prefix[:]))
	if respLen <= 0 || respLen > 65535 {
		return nil, fmt.Errorf("forwarding resolver: invalid TCP response length %d", respLen)
	}

	resp := make([]byte, respLen)
	if _, err := io.ReadFull(conn, resp); err != nil {
		return nil, err
	}
	return resp, nil
}
