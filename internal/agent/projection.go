package agent

import (
	"github.com/dnswall-io/dnswall/internal/containersrc"
	"github.com/dnswall-io/dnswall/internal/registry"
)

// DefaultTTL is the heartbeat TTL applied to every registration, per
// spec §3's lifecycle rule ("TTL (default 60s)").
const DefaultTTL = 60

// Projection is one container's desired registry registration.
type Projection struct {
	Names string
	Item  registry.DomainItem
}

// Project applies the container → registration rules to one
// container's inspection detail. It returns ok=false when the
// container should not be registered at all (no DOMAIN_NAME, TTY,
// unresolvable addresses) — the caller treats that as "let it age out"
// rather than as an error.
func Project(info containersrc.ContainerInfo) (Projection, bool) {
	env := parseEnv(info.Env)

	domainName := env["DOMAIN_NAME"]
	if domainName == "" {
		return Projection{}, false
	}
	if info.TTY {
		return Projection{}, false
	}

	ipv4, ipv6 := resolveAddresses(info, env)
	if ipv4 == "" && ipv6 == "" {
		return Projection{}, false
	}

	item, err := registry.NewDomainItem(info.ID, ipv4, ipv6)
	if err != nil {
		return Projection{}, false
	}
	return Projection{Names: domainName, Item: item}, true
}

// resolveAddresses applies the DOMAIN_NETWORK-vs-explicit-override
// precedence: when DOMAIN_NETWORK names an attached network, its
// addresses are used; otherwise the explicit DOMAIN_IPV4_ADDR /
// DOMAIN_IPV6_ADDR overrides apply.
func resolveAddresses(info containersrc.ContainerInfo, env map[string]string) (ipv4, ipv6 string) {
	if netName := env["DOMAIN_NETWORK"]; netName != "" {
		if net, ok := info.Networks[netName]; ok {
			return net.IPAddress, net.GlobalIPv6Address
		}
		return "", ""
	}
	return env["DOMAIN_IPV4_ADDR"], env["DOMAIN_IPV6_ADDR"]
}
