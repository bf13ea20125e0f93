package graph

import (
	"testing"

	"casegraph/pkg/models"
)

func TestResolvePrefersForeignKey(t *testing.T) {
	ix := NewHostIndex([]*models.Host{
		{ID: "h1", Hostname: "WS-01", IPAddress: "10.0.0.5"},
	})

	// A foreign key wins even when the text points elsewhere.
	if got := ix.Resolve("h-other", "WS-01"); got != "h-other" {
		t.Fatalf("expected foreign key to win, got %q", got)
	}
}

func TestResolveMatchesHostnameCaseInsensitively(t *testing.T) {
	ix := NewHostIndex([]*models.Host{
		{ID: "h1", Hostname: "WS-01", IPAddress: "10.0.0.5"},
		{ID: "h2", Hostname: "srv-01"},
	})

	cases := []struct {
		text string
		want string
	}{
		{"ws-01", "h1"},
		{"WS-01", "h1"},
		{"  SRV-01  ", "h2"},
		{"10.0.0.5", "h1"},
		{"", ""},
		{"unknown-host", ""},
	}
	for _, tc := range cases {
		if got := ix.Resolve("", tc.text); got != tc.want {
			t.Fatalf("Resolve(%q) = %q, want %q", tc.text, got, tc.want)
		}
	}
}

func TestResolveHostnameShadowsIP(t *testing.T) {
	// Text matching both a hostname and an IP resolves as a hostname.
	ix := NewHostIndex([]*models.Host{
		{ID: "h1", Hostname: "10.0.0.5"},
		{ID: "h2", Hostname: "SRV-01", IPAddress: "10.0.0.5"},
	})
	if got := ix.Resolve("", "10.0.0.5"); got != "h1" {
		t.Fatalf("expected hostname match to win, got %q", got)
	}
}

func TestInferNodeType(t *testing.T) {
	cases := []struct {
		systemType string
		want       models.NodeType
	}{
		{"domain_controller", models.NodeDomainController},
		{"Primary DC", models.NodeDomainController},
		{"file server", models.NodeServer},
		{"Server 2019", models.NodeServer},
		{"workstation", models.NodeWorkstation},
		{"laptop", models.NodeWorkstation},
		{"", models.NodeWorkstation},
	}
	for _, tc := range cases {
		if got := InferNodeType(tc.systemType); got != tc.want {
			t.Fatalf("InferNodeType(%q) = %q, want %q", tc.systemType, got, tc.want)
		}
	}
}

func TestLooksLikeIP(t *testing.T) {
	cases := []struct {
		text string
		want bool
	}{
		{"10.0.0.5", true},
		{"192.168.1.200", true},
		{"WS-01", false},
		{"10.0.0.evil", false},
		{"...", false},
		{"", false},
	}
	for _, tc := range cases {
		if got := looksLikeIP(tc.text); got != tc.want {
			t.Fatalf("looksLikeIP(%q) = %v, want %v", tc.text, got, tc.want)
		}
	}
}
