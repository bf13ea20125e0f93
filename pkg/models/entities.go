package models

import "time"

// Host is a compromised host record. FirstSeen may be unknown for
// imported data; hosts without it sort last in first-seen order.
type Host struct {
	ID                string     `json:"id"`
	IncidentID        string     `json:"incident_id"`
	Hostname          string     `json:"hostname"`
	IPAddress         string     `json:"ip_address,omitempty"`
	SystemType        string     `json:"system_type,omitempty"`
	OSVersion         string     `json:"os_version,omitempty"`
	FirstSeen         *time.Time `json:"first_seen,omitempty"`
	LastSeen          *time.Time `json:"last_seen,omitempty"`
	ContainmentStatus string     `json:"containment_status,omitempty"`
}

// Account is a compromised account record. HostID is the trusted
// foreign key; HostSystem carries the legacy free-text host reference.
type Account struct {
	ID           string `json:"id"`
	IncidentID   string `json:"incident_id"`
	AccountName  string `json:"account_name"`
	Domain       string `json:"domain,omitempty"`
	HostID       string `json:"host_id,omitempty"`
	HostSystem   string `json:"host_system,omitempty"`
	AccountType  string `json:"account_type,omitempty"`
	SID          string `json:"sid,omitempty"`
	IsPrivileged bool   `json:"is_privileged"`
	Status       string `json:"status,omitempty"`
}

// Malware is a malware or attacker-tool record.
type Malware struct {
	ID            string `json:"id"`
	IncidentID    string `json:"incident_id"`
	FileName      string `json:"file_name"`
	FilePath      string `json:"file_path,omitempty"`
	MD5           string `json:"md5,omitempty"`
	SHA256        string `json:"sha256,omitempty"`
	MalwareFamily string `json:"malware_family,omitempty"`
	ThreatActor   string `json:"threat_actor,omitempty"`
	IsTool        bool   `json:"is_tool"`
	HostID        string `json:"host_id,omitempty"`
	Host          string `json:"host,omitempty"`
}

// HostIndicator is a host-based indicator of compromise.
type HostIndicator struct {
	ID            string `json:"id"`
	IncidentID    string `json:"incident_id"`
	ArtifactType  string `json:"artifact_type"`
	ArtifactValue string `json:"artifact_value"`
	IsMalicious   bool   `json:"is_malicious"`
	Remediated    bool   `json:"remediated"`
	Notes         string `json:"notes,omitempty"`
	HostID        string `json:"host_id,omitempty"`
	Host          string `json:"host,omitempty"`
}

// NetworkIndicator is a network-based indicator of compromise.
// DNSOrIP is the observable; SourceHost is the legacy free-text
// host reference used when HostID is absent.
type NetworkIndicator struct {
	ID                string `json:"id"`
	IncidentID        string `json:"incident_id"`
	DNSOrIP           string `json:"dns_ip"`
	Direction         string `json:"direction,omitempty"`
	Protocol          string `json:"protocol,omitempty"`
	Port              int    `json:"port,omitempty"`
	Description       string `json:"description,omitempty"`
	DestinationHost   string `json:"destination_host,omitempty"`
	ThreatIntelSource string `json:"threat_intel_source,omitempty"`
	IsMalicious       bool   `json:"is_malicious"`
	HostID            string `json:"host_id,omitempty"`
	SourceHost        string `json:"source_host,omitempty"`
}

// TimelineEvent is one entry of an incident's chronology. Source names
// the origin of the activity (for lateral movement, the host moved
// from) as free text.
type TimelineEvent struct {
	ID             string         `json:"id"`
	IncidentID     string         `json:"incident_id"`
	Timestamp      time.Time      `json:"timestamp"`
	HostID         string         `json:"host_id,omitempty"`
	Hostname       string         `json:"hostname,omitempty"`
	Activity       string         `json:"activity"`
	Source         string         `json:"source,omitempty"`
	MitreTactic    string         `json:"mitre_tactic,omitempty"`
	MitreTechnique string         `json:"mitre_technique,omitempty"`
	Attributes     map[string]any `json:"extra_data,omitempty"`
	CreatedBy      string         `json:"created_by,omitempty"`
}

// MITRE tactic values the updater reacts to.
const (
	TacticInitialAccess   = "initial-access"
	TacticLateralMovement = "lateral-movement"
	TacticImpact          = "impact"
)
