package registry

import "fmt"

// DomainItem is one address binding for one container under one name.
//
// Field order mirrors the wire format's sorted-key JSON encoding
// (host_ipv4, host_ipv6, uuid); encoding/json preserves struct field
// order for marshaling, so no explicit sorting step is needed.
type DomainItem struct {
	HostIPv4 *string `json:"host_ipv4"`
	HostIPv6 *string `json:"host_ipv6"`
	UUID     string  `json:"uuid"`
}

// NewDomainItem builds a DomainItem, rejecting it at construction if
// neither address is set.
func NewDomainItem(uuid, hostIPv4, hostIPv6 string) (DomainItem, error) {
	if hostIPv4 == "" && hostIPv6 == "" {
		return DomainItem{}, fmt.Errorf("%w: item for uuid %q has neither host_ipv4 nor host_ipv6", ErrBackendValue, uuid)
	}
	item := DomainItem{UUID: uuid}
	if hostIPv4 != "" {
		item.HostIPv4 = &hostIPv4
	}
	if hostIPv6 != "" {
		item.HostIPv6 = &hostIPv6
	}
	return item, nil
}

// addrKey returns the (host_ipv4, host_ipv6) pair identity used for
// equality and deduplication; two items with the same addrKey are
// duplicates regardless of uuid.
func (d DomainItem) addrKey() string {
	v4, v6 := "", ""
	if d.HostIPv4 != nil {
		v4 = *d.HostIPv4
	}
	if d.HostIPv6 != nil {
		v6 = *d.HostIPv6
	}
	return v4 + "\x00" + v6
}

// DomainDetail is the resolved, deduplicated item set for one name.
type DomainDetail struct {
	Name  string
	Items []DomainItem
}

// dedupeItems removes items that share an addrKey, keeping the first
// occurrence. Iteration order of the input is preserved for the
// survivors, so lookups are stable within one call and shuffling is
// the only nondeterminism left to the caller.
func dedupeItems(items []DomainItem) []DomainItem {
	seen := make(map[string]struct{}, len(items))
	out := make([]DomainItem, 0, len(items))
	for _, it := range items {
		k := it.addrKey()
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, it)
	}
	return out
}

// newDomainDetail builds a DomainDetail with deduplicated items.
func newDomainDetail(name string, items []DomainItem) DomainDetail {
	return DomainDetail{Name: name, Items: dedupeItems(items)}
}
