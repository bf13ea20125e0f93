package timeline

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"casegraph/pkg/models"
)

// wireEvent is the JSON shape the platform publishes after persisting a
// timeline event. Timestamps arrive as strings in a few layouts
// depending on the producer.
type wireEvent struct {
	ID             string         `json:"id"`
	IncidentID     string         `json:"incident_id"`
	Timestamp      string         `json:"timestamp"`
	HostID         string         `json:"host_id"`
	Hostname       string         `json:"hostname"`
	Activity       string         `json:"activity"`
	Source         string         `json:"source"`
	MitreTactic    string         `json:"mitre_tactic"`
	MitreTechnique string         `json:"mitre_technique"`
	Attributes     map[string]any `json:"extra_data"`
	CreatedBy      string         `json:"created_by"`
}

// Parse converts a timeline-event notification into a normalized event.
func Parse(data []byte) (*models.TimelineEvent, error) {
	var raw wireEvent
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	if raw.IncidentID == "" {
		return nil, fmt.Errorf("timeline event missing incident_id")
	}
	if raw.Activity == "" {
		return nil, fmt.Errorf("timeline event missing activity")
	}

	ts, ok := parseTimestamp(raw.Timestamp)
	if !ok {
		return nil, fmt.Errorf("timeline event has unparseable timestamp %q", raw.Timestamp)
	}

	return &models.TimelineEvent{
		ID:             raw.ID,
		IncidentID:     raw.IncidentID,
		Timestamp:      ts,
		HostID:         raw.HostID,
		Hostname:       raw.Hostname,
		Activity:       raw.Activity,
		Source:         raw.Source,
		MitreTactic:    raw.MitreTactic,
		MitreTechnique: raw.MitreTechnique,
		Attributes:     raw.Attributes,
		CreatedBy:      raw.CreatedBy,
	}, nil
}

func parseTimestamp(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}

	for _, layout := range []string{time.RFC3339Nano, time.RFC3339} {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), true
		}
	}

	for _, layout := range []string{
		"2006-01-02T15:04:05.999999",
		"2006-01-02 15:04:05.999999",
		"2006-01-02 15:04:05",
	} {
		if t, err := time.ParseInLocation(layout, value, time.UTC); err == nil {
			return t.UTC(), true
		}
	}

	return time.Time{}, false
}
