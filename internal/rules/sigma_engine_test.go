package rules

import (
	"os"
	"path/filepath"
	"testing"

	"casegraph/pkg/models"
)

const lateralMovementRule = `title: RDP Lateral Movement
id: rule-lateral-rdp
level: high
logsource:
  product: windows
tags:
  - attack.lateral_movement
  - attack.t1021.001
detection:
  selection:
    Activity|contains: RDP
  condition: selection
`

const keywordRule = `title: Keyword Rule
id: rule-keywords
logsource:
  product: windows
detection:
  keywords:
    - mimikatz
  condition: keywords
`

func writeRule(t *testing.T, dir, name, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0644); err != nil {
		t.Fatalf("write rule: %v", err)
	}
}

func TestSigmaEngineTagsMatchingEvents(t *testing.T) {
	dir := t.TempDir()
	writeRule(t, dir, "lateral.yml", lateralMovementRule)

	engine, stats, err := NewSigmaEngine(dir)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if stats.Loaded != 1 {
		t.Fatalf("expected 1 loaded rule, got %+v", stats)
	}

	tags := engine.Apply(&models.TimelineEvent{
		IncidentID: "inc-1",
		Activity:   "RDP session established from WS-01",
	})
	if len(tags) != 1 {
		t.Fatalf("expected 1 tag, got %d", len(tags))
	}
	tag := tags[0]
	if tag.RuleID != "rule-lateral-rdp" || tag.Severity != "high" {
		t.Fatalf("unexpected tag: %+v", tag)
	}
	if tag.Tactic != "lateral-movement" {
		t.Fatalf("unexpected tactic: %q", tag.Tactic)
	}
	if tag.Technique != "T1021/001" {
		t.Fatalf("unexpected technique: %q", tag.Technique)
	}

	if got := engine.Apply(&models.TimelineEvent{IncidentID: "inc-1", Activity: "Benign logon"}); got != nil {
		t.Fatalf("expected no tags for non-matching event, got %+v", got)
	}
}

func TestSigmaEngineSkipsUnsupportedRules(t *testing.T) {
	dir := t.TempDir()
	writeRule(t, dir, "keywords.yml", keywordRule)
	writeRule(t, dir, "broken.yml", "detection: [not: valid")

	_, stats, err := NewSigmaEngine(dir)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if stats.TotalFiles != 2 {
		t.Fatalf("expected 2 files, got %d", stats.TotalFiles)
	}
	if stats.Loaded != 0 {
		t.Fatalf("expected no loaded rules, got %d", stats.Loaded)
	}
	if stats.SkippedComplex != 1 || stats.SkippedInvalid != 1 {
		t.Fatalf("unexpected skip counts: %+v", stats)
	}
}
