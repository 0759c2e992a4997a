// ABOUTME: Loads configuration from a YAML file with environment variable
// ABOUTME: overrides - provider selection, loop settings, and MCP servers.
package config

import (
	"context"
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/latchkey-labs/crossbar/llm"
	"github.com/latchkey-labs/crossbar/mcp"
)

// ProviderConfig selects and configures one LLM provider.
type ProviderConfig struct {
	// Name is one of "anthropic", "openai", "gemini", "ollama".
	Name string `yaml:"name" env:"CROSSBAR_PROVIDER"`

	// Model overrides the provider's default model.
	Model string `yaml:"model" env:"CROSSBAR_MODEL"`

	// APIKey is usually left out of the file and supplied via the
	// environment; the vendor-specific variables (ANTHROPIC_API_KEY,
	// OPENAI_API_KEY, GEMINI_API_KEY) are consulted when it is empty.
	APIKey string `yaml:"api_key" env:"CROSSBAR_API_KEY"`

	// BaseURL points at a proxy or compatible endpoint. For ollama it
	// defaults to the local daemon.
	BaseURL string `yaml:"base_url" env:"CROSSBAR_BASE_URL"`
}

// OrchestratorConfig tunes the tool execution loop.
type OrchestratorConfig struct {
	MaxTurns     int    `yaml:"max_turns" env:"CROSSBAR_MAX_TURNS"`
	WorkerLimit  int    `yaml:"worker_limit" env:"CROSSBAR_WORKER_LIMIT"`
	SystemPrompt string `yaml:"system_prompt"`
}

// Config is the root configuration document.
type Config struct {
	Provider     ProviderConfig     `yaml:"provider"`
	Orchestrator OrchestratorConfig `yaml:"orchestrator"`
	Servers      []mcp.ServerConfig `yaml:"servers"`
}

// Default returns a configuration that talks to Anthropic with no MCP
// servers.
func Default() *Config {
	return &Config{Provider: ProviderConfig{Name: "anthropic"}}
}

// Load reads the YAML file at path and applies environment overrides.
// A missing file is not an error: the defaults plus environment are
// used, so a deployment can run on variables alone.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case os.IsNotExist(err):
	default:
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("environment overrides: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations that cannot be wired.
func (c *Config) Validate() error {
	switch c.Provider.Name {
	case "anthropic", "openai", "gemini", "ollama":
	case "":
		return fmt.Errorf("provider name is required")
	default:
		return fmt.Errorf("unknown provider %q", c.Provider.Name)
	}
	if c.Orchestrator.MaxTurns < 0 {
		return fmt.Errorf("max_turns cannot be negative")
	}
	seen := make(map[string]bool, len(c.Servers))
	for i, srv := range c.Servers {
		if srv.Name == "" {
			return fmt.Errorf("server %d: name is required", i)
		}
		if seen[srv.Name] {
			return fmt.Errorf("server %q configured twice", srv.Name)
		}
		seen[srv.Name] = true
	}
	return nil
}

// APIKeyOrEnv returns the configured key, falling back to the vendor's
// conventional environment variable.
func (p ProviderConfig) APIKeyOrEnv() string {
	if p.APIKey != "" {
		return p.APIKey
	}
	switch p.Name {
	case "anthropic":
		return os.Getenv("ANTHROPIC_API_KEY")
	case "openai":
		return os.Getenv("OPENAI_API_KEY")
	case "gemini":
		return os.Getenv("GEMINI_API_KEY")
	}
	return ""
}

// BuildProvider constructs the adapter and SDK-backed sender for the
// configured provider. This is the one place that branches on the
// vendor name; past construction everything speaks the universal
// format.
func (p ProviderConfig) BuildProvider(ctx context.Context) (llm.Adapter, llm.Sender, error) {
	key := p.APIKeyOrEnv()
	switch p.Name {
	case "anthropic":
		if p.BaseURL != "" {
			return llm.AnthropicAdapter{}, llm.NewAnthropicClientWithBaseURL(key, p.Model, p.BaseURL), nil
		}
		return llm.AnthropicAdapter{}, llm.NewAnthropicClient(key, p.Model), nil
	case "openai":
		if p.BaseURL != "" {
			return llm.OpenAIAdapter{}, llm.NewOpenAIClientWithBaseURL(key, p.Model, p.BaseURL), nil
		}
		return llm.OpenAIAdapter{}, llm.NewOpenAIClient(key, p.Model), nil
	case "gemini":
		client, err := llm.NewGeminiClient(ctx, key, p.Model)
		if err != nil {
			return nil, nil, err
		}
		return llm.GeminiAdapter{}, client, nil
	case "ollama":
		return llm.OllamaAdapter{}, llm.NewOllamaClient(p.BaseURL, p.Model), nil
	default:
		return nil, nil, fmt.Errorf("unknown provider %q", p.Name)
	}
}
