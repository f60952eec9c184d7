// Package resolvers provides DNS resolution strategies for dnswall.
//
// Architecture:
//
// The resolver chain allows multiple resolution strategies to work together:
//
//   1. RegistryResolver - answers A/AAAA authoritatively from the Registry
//   2. ForwardingResolver - relays to upstream servers (resolv.conf, then explicit -nameservers)
//   3. Chained - tries resolvers in order, falling back as needed
//
// Caching:
//
// Nothing in this package caches responses: the ForwardingResolver relays
// every query it receives upstream, and concurrent queries for the same
// name each make their own upstream request.
package resolvers

import (
	"context"

	"github.com/dnswall-io/dnswall/internal/dns"
)

// Result holds the outcome of a DNS resolution.
type Result struct {
	ResponseBytes []byte // Wire-format DNS response
	Source        string // Where the answer came from ("registry" or "upstream")
}

// QuestionKey identifies a DNS question by QNAME, QTYPE and QCLASS.
// DNS names are case-insensitive, so QName should be normalized to lowercase.
// Transaction IDs are not part of the key. No resolver in this package keys
// a cache by it.
type QuestionKey struct {
	QName  string // Lowercase domain name
	QType  uint16 // Query type (A, AAAA, MX, etc.)
	QClass uint16 // Query class (usually IN=1)
}

// Resolver is the interface for DNS resolution strategies.
// Implementations include RegistryResolver (authoritative Registry lookups),
// ForwardingResolver (upstream), and Chained (combining multiple resolvers).
type Resolver interface {
	// Resolve processes a DNS query and returns a response.
	// The context can be used for cancellation and timeouts.
	Resolve(ctx context.Context, req dns.Packet, reqBytes []byte) (Result, error)

	// Close releases any resources held by the resolver (e.g., connection pools).
	Close() error
}

// PatchTransactionID replaces the transaction ID in a DNS message.
//
// The transaction ID occupies the first 2 bytes of every DNS message (big-endian).
// The ForwardingResolver uses it to restore the original client txid on an
// upstream response before returning it. The input slice is not modified;
// a patched copy is returned.
//
// Optimization: Early returns avoid unnecessary allocations when the txid already matches.
func PatchTransactionID(msg []byte, txid uint16) []byte {
	if len(msg) < 2 {
		return msg
	}
	// Check if already has the desired txid (avoid allocation)
	if msg[0] == byte(txid>>8) && msg[1] == byte(txid) {
		return msg
	}
	out := make([]byte, len(msg))
	copy(out, msg)
	out[0] = byte(txid >> 8) // High byte
	out[1] = byte(txid)      // Low byte
	return out
}
