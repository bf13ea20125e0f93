package timeline

import (
	"testing"
	"time"
)

func TestParseValidEvent(t *testing.T) {
	data := []byte(`{
		"id": "e1",
		"incident_id": "inc-1",
		"timestamp": "2026-04-01T08:30:00Z",
		"host_id": "h1",
		"hostname": "WS-01",
		"activity": "RDP session established",
		"source": "WS-02",
		"mitre_tactic": "lateral-movement",
		"mitre_technique": "T1021",
		"extra_data": {"port": 3389},
		"created_by": "analyst-1"
	}`)

	event, err := Parse(data)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if event.IncidentID != "inc-1" || event.HostID != "h1" {
		t.Fatalf("unexpected identity fields: %+v", event)
	}
	want := time.Date(2026, 4, 1, 8, 30, 0, 0, time.UTC)
	if !event.Timestamp.Equal(want) {
		t.Fatalf("unexpected timestamp: %v", event.Timestamp)
	}
	if event.MitreTactic != "lateral-movement" || event.MitreTechnique != "T1021" {
		t.Fatalf("unexpected MITRE fields: %+v", event)
	}
	if event.Attributes["port"] != float64(3389) {
		t.Fatalf("unexpected extra data: %+v", event.Attributes)
	}
}

func TestParseAcceptsMultipleTimestampLayouts(t *testing.T) {
	layouts := []struct {
		raw  string
		want time.Time
	}{
		{"2026-04-01T08:30:00Z", time.Date(2026, 4, 1, 8, 30, 0, 0, time.UTC)},
		{"2026-04-01T08:30:00.123456Z", time.Date(2026, 4, 1, 8, 30, 0, 123456000, time.UTC)},
		{"2026-04-01T08:30:00+02:00", time.Date(2026, 4, 1, 6, 30, 0, 0, time.UTC)},
		{"2026-04-01T08:30:00.123456", time.Date(2026, 4, 1, 8, 30, 0, 123456000, time.UTC)},
		{"2026-04-01 08:30:00", time.Date(2026, 4, 1, 8, 30, 0, 0, time.UTC)},
	}

	for _, tc := range layouts {
		event, err := Parse([]byte(`{"incident_id":"inc-1","activity":"a","timestamp":"` + tc.raw + `"}`))
		if err != nil {
			t.Fatalf("parse of %q failed: %v", tc.raw, err)
		}
		if !event.Timestamp.Equal(tc.want) {
			t.Fatalf("timestamp %q parsed as %v, want %v", tc.raw, event.Timestamp, tc.want)
		}
	}
}

func TestParseRejectsInvalidPayloads(t *testing.T) {
	cases := []struct {
		name string
		data string
	}{
		{"not json", `{{`},
		{"missing incident", `{"activity":"a","timestamp":"2026-04-01T08:30:00Z"}`},
		{"missing activity", `{"incident_id":"inc-1","timestamp":"2026-04-01T08:30:00Z"}`},
		{"missing timestamp", `{"incident_id":"inc-1","activity":"a"}`},
		{"bad timestamp", `{"incident_id":"inc-1","activity":"a","timestamp":"yesterday"}`},
	}
	for _, tc := range cases {
		if _, err := Parse([]byte(tc.data)); err == nil {
			t.Fatalf("%s: expected error", tc.name)
		}
	}
}
