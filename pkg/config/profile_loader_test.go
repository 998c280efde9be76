package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeProfile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "profile.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write profile: %v", err)
	}
	return path
}

func TestLoadProfile_EmptyPathReturnsDefault(t *testing.T) {
	p, err := LoadProfile("")
	if err != nil {
		t.Fatalf("LoadProfile(\"\"): %v", err)
	}
	if p.Name != "default" {
		t.Errorf("expected default profile, got %q", p.Name)
	}
	if p.InitialVersion != "0.1.0" {
		t.Errorf("expected initial version 0.1.0, got %q", p.InitialVersion)
	}
}

func TestLoadProfile_ParsesOverrides(t *testing.T) {
	path := writeProfile(t, `
name: strict
advisor_expression: "action == 'deploy'"
ai_actor_id: gummy-ai
initial_version: 2.0.0
presence_ttl_seconds: 120
context_channels:
  - name: global
    limit: 200
  - name: support
    limit: 25
`)

	p, err := LoadProfile(path)
	if err != nil {
		t.Fatalf("LoadProfile: %v", err)
	}
	if p.Name != "strict" {
		t.Errorf("expected name 'strict', got %q", p.Name)
	}
	if p.AdvisorExpression != "action == 'deploy'" {
		t.Errorf("unexpected advisor expression %q", p.AdvisorExpression)
	}
	if p.AIActorID != "gummy-ai" {
		t.Errorf("unexpected actor id %q", p.AIActorID)
	}
	if len(p.ContextChannels) != 2 || p.ContextChannels[0].Limit != 200 {
		t.Errorf("unexpected context channels %+v", p.ContextChannels)
	}
	if p.PresenceTTLSeconds != 120 {
		t.Errorf("unexpected presence ttl %d", p.PresenceTTLSeconds)
	}
}

func TestLoadProfile_MissingFileIsError(t *testing.T) {
	if _, err := LoadProfile(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing profile file")
	}
}

func TestLoadProfile_RejectsBadChannels(t *testing.T) {
	path := writeProfile(t, `
context_channels:
  - name: ""
    limit: 10
`)
	if _, err := LoadProfile(path); err == nil {
		t.Error("expected error for unnamed channel")
	}

	path = writeProfile(t, `
context_channels:
  - name: global
    limit: 0
`)
	if _, err := LoadProfile(path); err == nil {
		t.Error("expected error for non-positive limit")
	}
}
