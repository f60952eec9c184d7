package resolvers

import (
	"context"
	"errors"
	"math/rand/v2"
	"net"

	"github.com/dnswall-io/dnswall/internal/dns"
	"github.com/dnswall-io/dnswall/internal/registry"
)

// DefaultAnswerTTL is the TTL attached to A/AAAA answers synthesized
// from Registry items. The registry's own TTL governs how long an
// item survives in the KV store; this is only the DNS record TTL
// advertised to clients.
const DefaultAnswerTTL = 60

// RegistryResolver answers A/AAAA queries out of a Registry. It is the
// authoritative path for names the registry supports (spec §4.5): the
// DNS Front-end tries it first and falls through to the Forwarder for
// any query it declines, and on any lookup failure.
type RegistryResolver struct {
	Registry *registry.Registry
}

// NewRegistryResolver builds a RegistryResolver over reg.
func NewRegistryResolver(reg *registry.Registry) *RegistryResolver {
	return &RegistryResolver{Registry: reg}
}

// Close is a no-op; the resolver holds no resources of its own beyond
// the Registry it was given.
func (r *RegistryResolver) Close() error { return nil }

// Resolve declines (returns an error, so Chained tries the next
// resolver) when the question is not a single A/AAAA query or the
// name is not supported by the Registry's pattern filter. Otherwise
// it performs the lookup and, on success, builds a shuffled answer
// set — possibly empty, which is a valid NOERROR/NODATA response.
func (r *RegistryResolver) Resolve(ctx context.Context, req dns.Packet, _ []byte) (Result, error) {
	if len(req.Questions) != 1 {
		return Result{}, errors.New("registry resolver: expected exactly one question")
	}
	q := req.Questions[0]
	qtype := dns.RecordType(q.Type)
	if qtype != dns.TypeA && qtype != dns.TypeAAAA {
		return Result{}, errors.New("registry resolver: unsupported query type")
	}
	if r.Registry == nil || !r.Registry.Supports(q.Name) {
		return Result{}, errors.New("registry resolver: name not supported")
	}

	detail, err := r.Registry.Lookup(ctx, q.Name)
	if err != nil {
		return Result{}, err
	}

	answers := buildAnswers(q, detail, qtype)
	shuffleAnswers(answers)

	resp := dns.Packet{
		Header: dns.Header{
			ID:    req.Header.ID,
			Flags: registryResponseFlags(req.Header.Flags),
		},
		Questions: []dns.Question{q},
		Answers:   answers,
	}
	b, err := resp.Marshal()
	if err != nil {
		return Result{}, err
	}
	return Result{ResponseBytes: b, Source: "registry"}, nil
}

// buildAnswers projects a DomainDetail's items into A or AAAA records,
// deduplicating on the encoded address (the Registry already
// deduplicates on the (v4, v6) pair, but a single query type can still
// see two items whose other-family address differs).
func buildAnswers(q dns.Question, detail registry.DomainDetail, qtype dns.RecordType) []dns.Record {
	seen := make(map[string]struct{}, len(detail.Items))
	answers := make([]dns.Record, 0, len(detail.Items))
	for _, item := range detail.Items {
		data, ok := encodedAddress(item, qtype)
		if !ok {
			continue
		}
		key := string(data)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		answers = append(answers, dns.Record{
			Name:  q.Name,
			Type:  q.Type,
			Class: q.Class,
			TTL:   DefaultAnswerTTL,
			Data:  data,
		})
	}
	return answers
}

// encodedAddress extracts and wire-encodes the address matching qtype
// from item, reporting false if item has no usable address of that
// family.
func encodedAddress(item registry.DomainItem, qtype dns.RecordType) ([]byte, bool) {
	var addr string
	switch qtype {
	case dns.TypeA:
		if item.HostIPv4 == nil || *item.HostIPv4 == "" {
			return nil, false
		}
		addr = *item.HostIPv4
	case dns.TypeAAAA:
		if item.HostIPv6 == nil || *item.HostIPv6 == "" {
			return nil, false
		}
		addr = *item.HostIPv6
	default:
		return nil, false
	}

	ip := net.ParseIP(addr)
	if ip == nil {
		return nil, false
	}
	if qtype == dns.TypeA {
		v4 := ip.To4()
		if v4 == nil {
			return nil, false
		}
		return v4, true
	}
	if ip.To4() != nil {
		return nil, false
	}
	return ip.To16(), true
}

// shuffleAnswers randomizes answer order in place so repeated queries
// for the same name round-robin across replicas client-side (spec §4.5
// step 4, testable property 8).
func shuffleAnswers(answers []dns.Record) {
	rand.Shuffle(len(answers), func(i, j int) {
		answers[i], answers[j] = answers[j], answers[i]
	})
}

// registryResponseFlags marks the response as an authoritative
// registry answer, preserving the client's RD bit the way
// dns.BuildErrorResponse does.
func registryResponseFlags(reqFlags uint16) uint16 {
	return dns.QRFlag | dns.AAFlag | (reqFlags & dns.RDFlag)
}
