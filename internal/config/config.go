// Package config handles NekoAI configuration loading.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultSearchPaths returns the config file search order.
// An explicit path (from -config flag) is checked first.
// Then: ./config.yaml, ~/.config/nekoai/config.yaml, /etc/nekoai/config.yaml.
func DefaultSearchPaths() []string {
	paths := []string{"config.yaml"}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "nekoai", "config.yaml"))
	}

	paths = append(paths, "/etc/nekoai/config.yaml")
	return paths
}

// FindConfig locates a config file. If explicit is non-empty, it must exist.
// Otherwise, searches DefaultSearchPaths and returns the first that exists.
// Returns the path found, or an error if nothing was found.
func FindConfig(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	for _, p := range DefaultSearchPaths() {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	return "", fmt.Errorf("no config file found (searched: %v)", DefaultSearchPaths())
}

// Config holds all NekoAI configuration.
type Config struct {
	Discord    DiscordConfig `yaml:"discord"`
	OpenAI     OpenAIConfig  `yaml:"openai"`
	Agent      AgentConfig   `yaml:"agent"`
	PromptFile string        `yaml:"prompt_file"`
	LogLevel   string        `yaml:"log_level"`
}

// DiscordConfig defines the Discord connection and access settings.
type DiscordConfig struct {
	Token string `yaml:"token"`
	// GuildID is the guild used for administrative tools when a tool
	// call omits an explicit guild id.
	GuildID string `yaml:"guild_id"`
	// AllowedUserID restricts inbound messages to a single user.
	// Empty means everyone may talk to the agent.
	AllowedUserID string `yaml:"allowed_user_id"`
	// CommandPrefix introduces bot commands (default "w!").
	CommandPrefix string `yaml:"command_prefix"`
}

// OpenAIConfig defines the completion backend settings.
type OpenAIConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"` // default: https://api.openai.com/v1
	Model   string `yaml:"model"`
	// Temperature and MaxTokens are passed through on every request.
	// Zero values are omitted from the wire format.
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
}

// AgentConfig defines turn orchestration policy.
type AgentConfig struct {
	// MaxHistory bounds the per-user conversation memory (default 20).
	MaxHistory int `yaml:"max_history"`
	// MaxToolRounds caps tool-calling rounds per turn (default 10).
	// Hitting the cap fails the turn rather than looping forever.
	MaxToolRounds int `yaml:"max_tool_rounds"`
	// ModelTimeoutSec bounds a single completion call (default 120).
	ModelTimeoutSec int `yaml:"model_timeout_sec"`
	// ToolTimeoutSec bounds a single tool execution (default 30).
	ToolTimeoutSec int `yaml:"tool_timeout_sec"`
	// ToolsEnabled exposes the tool catalogue on ordinary messages.
	// The w!exec command uses tools regardless.
	ToolsEnabled bool `yaml:"tools_enabled"`
}

// Defaults for AgentConfig zero values.
const (
	DefaultMaxHistory    = 20
	DefaultMaxToolRounds = 10
	DefaultModelTimeout  = 120 * time.Second
	DefaultToolTimeout   = 30 * time.Second
	DefaultCommandPrefix = "w!"
	DefaultOpenAIBaseURL = "https://api.openai.com/v1"
)

// Load reads configuration from a YAML file.
// ${VAR} references are expanded from the environment before parsing,
// so secrets can stay out of the file itself.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()

	return cfg, nil
}

// Default returns a default configuration.
func Default() *Config {
	return &Config{
		Discord: DiscordConfig{
			CommandPrefix: DefaultCommandPrefix,
		},
		OpenAI: OpenAIConfig{
			BaseURL: DefaultOpenAIBaseURL,
			Model:   "gpt-4o-mini",
		},
		Agent: AgentConfig{
			MaxHistory:      DefaultMaxHistory,
			MaxToolRounds:   DefaultMaxToolRounds,
			ModelTimeoutSec: int(DefaultModelTimeout / time.Second),
			ToolTimeoutSec:  int(DefaultToolTimeout / time.Second),
		},
	}
}

// applyDefaults fills zero values left by an explicit-but-partial file.
func (c *Config) applyDefaults() {
	if c.Discord.CommandPrefix == "" {
		c.Discord.CommandPrefix = DefaultCommandPrefix
	}
	if c.OpenAI.BaseURL == "" {
		c.OpenAI.BaseURL = DefaultOpenAIBaseURL
	}
	if c.Agent.MaxHistory <= 0 {
		c.Agent.MaxHistory = DefaultMaxHistory
	}
	if c.Agent.MaxToolRounds <= 0 {
		c.Agent.MaxToolRounds = DefaultMaxToolRounds
	}
	if c.Agent.ModelTimeoutSec <= 0 {
		c.Agent.ModelTimeoutSec = int(DefaultModelTimeout / time.Second)
	}
	if c.Agent.ToolTimeoutSec <= 0 {
		c.Agent.ToolTimeoutSec = int(DefaultToolTimeout / time.Second)
	}
}

// Validate checks that required credentials are present. Called once at
// startup; a failure here is fatal, not a per-turn condition.
func (c *Config) Validate() error {
	if c.Discord.Token == "" {
		return fmt.Errorf("discord.token is required")
	}
	if c.OpenAI.APIKey == "" {
		return fmt.Errorf("openai.api_key is required")
	}
	if c.OpenAI.Model == "" {
		return fmt.Errorf("openai.model is required")
	}
	return nil
}

// ModelTimeout returns the per-completion-call timeout as a Duration.
func (c *AgentConfig) ModelTimeout() time.Duration {
	return time.Duration(c.ModelTimeoutSec) * time.Second
}

// ToolTimeout returns the per-tool-execution timeout as a Duration.
func (c *AgentConfig) ToolTimeout() time.Duration {
	return time.Duration(c.ToolTimeoutSec) * time.Second
}
