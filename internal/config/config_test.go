package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestInteractiveOutput(t *testing.T) {
	tests := []struct {
		name     string
		runner   runnerConfig
		expected bool
	}{
		{
			name:     "clean environment",
			runner:   runnerConfig{},
			expected: true,
		},
		{
			name:     "ci marker set",
			runner:   runnerConfig{CI: "true"},
			expected: false,
		},
		{
			name:     "ci marker set to false still counts as set",
			runner:   runnerConfig{CI: "false"},
			expected: false,
		},
		{
			name:     "agent marker set",
			runner:   runnerConfig{ClaudeCode: "1"},
			expected: false,
		},
		{
			name:     "github actions marker set",
			runner:   runnerConfig{GithubActions: "true"},
			expected: false,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			cfg := &Config{Runner: &test.runner}
			assert.Equal(t, test.expected, cfg.InteractiveOutput())
		})
	}
}

func TestPersonasSuggestTimeout(t *testing.T) {
	cfg := &Config{Personas: &personasConfig{SuggestTimeout: 120}}
	assert.Equal(t, 120*time.Second, cfg.PersonasSuggestTimeout())
}
