package resolvers

import (
	"bufio"
	"net"
	"os"
	"strings"
)

// DefaultResolvConfPath is the conventional location of the system
// resolver configuration consulted for upstream nameservers; its servers
// are tried after the registry and before any explicitly given ones
// (spec §4.6).
const DefaultResolvConfPath = "/etc/resolv.conf"

// LoadResolvConfNameservers reads the "nameserver <ip>" lines out of a
// resolv.conf-formatted file, ignoring comments and anything else
// (search/options/sortlist directives are irrelevant to a stub
// forwarder). A missing file yields an empty slice, not an error,
// since resolv.conf is an optional fallback source, not a requirement.
//
// This is a deliberately minimal reader rather than a pull of
// github.com/miekg/dns's resolver-config support: the project already
// owns its DNS wire format in internal/dns, and resolv.conf's grammar
// is three keywords wide, so a full third-party DNS library would not
// earn its way in for parsing six lines of text.
func LoadResolvConfNameservers(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var servers []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, ";") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 || fields[0] != "nameserver" {
			continue
		}
		addr := fields[1]
		if net.ParseIP(addr) == nil {
			continue
		}
		servers = append(servers, net.JoinHostPort(addr, "53"))
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return servers, nil
}
