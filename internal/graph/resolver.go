package graph

import (
	"strings"

	"casegraph/pkg/models"
)

// HostIndex resolves loosely-identified host references within a single
// incident. Legacy and imported records carry host identity as free
// text rather than a foreign key; this is the one place both paths are
// reconciled.
type HostIndex struct {
	byHostname map[string]string
	byIP       map[string]string
}

// NewHostIndex builds hostname and IP lookups from the incident's hosts.
func NewHostIndex(hosts []*models.Host) *HostIndex {
	ix := &HostIndex{
		byHostname: make(map[string]string, len(hosts)),
		byIP:       make(map[string]string, len(hosts)),
	}
	for _, h := range hosts {
		if h.Hostname != "" {
			ix.byHostname[strings.ToLower(h.Hostname)] = h.ID
		}
		if h.IPAddress != "" {
			ix.byIP[strings.ToLower(h.IPAddress)] = h.ID
		}
	}
	return ix
}

// Resolve maps a reference to a host id. A foreign key wins
// unconditionally; otherwise the text is normalized and matched against
// hostnames first, then IP addresses. An empty result means the
// reference does not map to a known host and the entity is excluded
// from the graph; it is never an error.
func (ix *HostIndex) Resolve(hostRefID, hostText string) string {
	if hostRefID != "" {
		return hostRefID
	}
	key := strings.ToLower(strings.TrimSpace(hostText))
	if key == "" {
		return ""
	}
	if id, ok := ix.byHostname[key]; ok {
		return id
	}
	if id, ok := ix.byIP[key]; ok {
		return id
	}
	return ""
}

// groupByHost partitions items by resolved host id, dropping items whose
// reference resolves to no host.
func groupByHost[T any](items []T, ix *HostIndex, ref func(T) (hostID, hostText string)) map[string][]T {
	grouped := make(map[string][]T)
	for _, item := range items {
		hostID, hostText := ref(item)
		if id := ix.Resolve(hostID, hostText); id != "" {
			grouped[id] = append(grouped[id], item)
		}
	}
	return grouped
}

// InferNodeType picks a node type from a host's system type string.
func InferNodeType(systemType string) models.NodeType {
	st := strings.ToLower(systemType)
	if st != "" {
		if strings.Contains(st, "domain_controller") || strings.Contains(st, "dc") {
			return models.NodeDomainController
		}
		if strings.Contains(st, "server") {
			return models.NodeServer
		}
	}
	return models.NodeWorkstation
}

// looksLikeIP reports whether the text is a dotted-numeric literal, the
// shape worth retrying against the IP lookup.
func looksLikeIP(s string) bool {
	stripped := strings.ReplaceAll(s, ".", "")
	if stripped == "" {
		return false
	}
	for _, r := range stripped {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
