package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

var singleConfig *Config = nil

type Config struct {
	Service  *svcConfig
	Personas *personasConfig
	Runner   *runnerConfig
}

type svcConfig struct {
	BaseUrl  string `envconfig:"FLUXLOOP_API_URL" default:""`
	LogLevel string `envconfig:"FLUXLOOP_LOG_LEVEL" default:"error"`
}

type personasConfig struct {
	SuggestTimeout int `envconfig:"FLUXLOOP_PERSONAS_SUGGEST_TIMEOUT" default:"120"`
}

// runnerConfig mirrors the markers CI systems and coding agents export.
// The values stay raw strings, any non empty value counts as set.
type runnerConfig struct {
	ClaudeCode    string `envconfig:"CLAUDE_CODE" default:""`
	CursorAgent   string `envconfig:"CURSOR_AGENT" default:""`
	CI            string `envconfig:"CI" default:""`
	GithubActions string `envconfig:"GITHUB_ACTIONS" default:""`
}

func New() (*Config, error) {
	if singleConfig == nil {
		singleConfig = new(Config)
		if err := envconfig.Process("", singleConfig); err != nil {
			return nil, err
		}
	}
	return singleConfig, nil
}

// PersonasSuggestTimeout is the default deadline for persona suggestion
// calls. Individual invocations may override it via flag.
func (c *Config) PersonasSuggestTimeout() time.Duration {
	return time.Duration(c.Personas.SuggestTimeout) * time.Second
}

// InteractiveOutput reports whether spinners and other animated terminal
// output are safe. Inside CI or an agent driven session they are not.
func (c *Config) InteractiveOutput() bool {
	return c.Runner.ClaudeCode == "" &&
		c.Runner.CursorAgent == "" &&
		c.Runner.CI == "" &&
		c.Runner.GithubActions == ""
}
