// Package config provides configuration loading for afk.
package config

import (
	"fmt"

	"github.com/fyrsmithlabs/afk/internal/logging"
	"github.com/fyrsmithlabs/afk/internal/telemetry"
)

// Config is the root configuration for afk.
type Config struct {
	Agent     AgentConfig      `koanf:"agent"`
	Session   SessionConfig    `koanf:"session"`
	Logging   logging.Config   `koanf:"logging"`
	Telemetry telemetry.Config `koanf:"telemetry"`
}

// AgentConfig configures the external coding-agent CLI.
type AgentConfig struct {
	// Binary is the agent CLI executable name or path.
	Binary string `koanf:"binary"`

	// Model is passed to the agent via --model when non-empty.
	Model string `koanf:"model"`

	// Wrapper is the pseudo-terminal wrapper utility. The agent is run
	// under it so the CLI's terminal detection enables streaming output.
	Wrapper string `koanf:"wrapper"`
}

// SessionConfig configures the session being driven.
type SessionConfig struct {
	// Name identifies the session and its tag namespace (afk-<name>-<n>).
	Name string `koanf:"name"`

	// Root is the repository root directory the session works in.
	Root string `koanf:"root"`
}

// DefaultConfig returns the hardcoded defaults.
func DefaultConfig() *Config {
	return &Config{
		Agent: AgentConfig{
			Binary:  "claude",
			Wrapper: "script",
		},
		Logging:   *logging.NewDefaultConfig(),
		Telemetry: *telemetry.NewDefaultConfig(),
	}
}

// Validate checks configuration invariants that do not depend on the
// filesystem. Session name and root are validated by the session layer.
func (c *Config) Validate() error {
	if c.Agent.Binary == "" {
		return fmt.Errorf("agent.binary must not be empty")
	}
	if c.Agent.Wrapper == "" {
		return fmt.Errorf("agent.wrapper must not be empty")
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	if err := c.Telemetry.Validate(); err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	return nil
}
