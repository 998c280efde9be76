package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// PolicyProfile is the operator-tunable governance policy, loaded from YAML.
// Everything here has a safe default; a missing profile file is not an error
// at the call sites that use DefaultProfile.
type PolicyProfile struct {
	Name string `yaml:"name" json:"name"`

	// AdvisorExpression is the CEL expression that annotates queued changes
	// with a risk level for the review UI.
	AdvisorExpression string `yaml:"advisor_expression" json:"advisor_expression"`

	// ContextChannels controls which channels, and how many recent messages
	// of each, the AI context aggregate includes.
	ContextChannels []ContextChannel `yaml:"context_channels" json:"context_channels"`

	// AIActorID overrides the actor recorded for requests without a caller.
	AIActorID string `yaml:"ai_actor_id,omitempty" json:"ai_actor_id,omitempty"`

	// InitialVersion seeds the built-in deployer's semver counter.
	InitialVersion string `yaml:"initial_version,omitempty" json:"initial_version,omitempty"`

	// PresenceTTLSeconds is the online window for the presence registry.
	PresenceTTLSeconds int `yaml:"presence_ttl_seconds,omitempty" json:"presence_ttl_seconds,omitempty"`
}

// ContextChannel names a channel and its message window.
type ContextChannel struct {
	Name  string `yaml:"name" json:"name"`
	Limit int    `yaml:"limit" json:"limit"`
}

// DefaultProfile returns the policy used when no YAML overrides it.
func DefaultProfile() *PolicyProfile {
	return &PolicyProfile{
		Name:           "default",
		InitialVersion: "0.1.0",
	}
}

// LoadProfile reads a policy profile YAML. An empty path returns the default
// profile; a missing or malformed file is an error so a typo'd policy never
// silently falls back.
func LoadProfile(path string) (*PolicyProfile, error) {
	if path == "" {
		return DefaultProfile(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load policy profile %q: %w", path, err)
	}

	profile := DefaultProfile()
	if err := yaml.Unmarshal(data, profile); err != nil {
		return nil, fmt.Errorf("parse policy profile %q: %w", path, err)
	}

	for i, ch := range profile.ContextChannels {
		if ch.Name == "" {
			return nil, fmt.Errorf("policy profile %q: context_channels[%d] has no name", path, i)
		}
		if ch.Limit <= 0 {
			return nil, fmt.Errorf("policy profile %q: context_channels[%d] limit must be positive", path, i)
		}
	}

	return profile, nil
}
