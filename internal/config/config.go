package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var DefaultConfigYAML []byte

type Config struct {
	Transcription Transcription `yaml:"transcription"`
	Generation    Generation    `yaml:"generation"`
	Capture       Capture       `yaml:"capture"`
	Session       Session       `yaml:"session"`
	Output        Output        `yaml:"output"`
	Logging       Logging       `yaml:"logging"`
}

type Transcription struct {
	Provider    string `yaml:"provider"`
	WhisperURL  string `yaml:"whisper_url"`
	OpenAIModel string `yaml:"openai_model"`
	APIKeyEnv   string `yaml:"api_key_env"`
}

type Generation struct {
	Provider    string `yaml:"provider"`
	Model       string `yaml:"model"`
	OllamaURL   string `yaml:"ollama_url"`
	OpenAIModel string `yaml:"openai_model"`
	APIKeyEnv   string `yaml:"api_key_env"`
	MaxTokens   int    `yaml:"max_tokens"`
}

type Capture struct {
	// Command is the external audio capture invocation; the output path is
	// appended as the final argument.
	Command []string `yaml:"command"`
}

type Session struct {
	MaxTags          int     `yaml:"max_tags"`
	LatencyWindow    int     `yaml:"latency_window"`
	LatencyThreshold float64 `yaml:"latency_threshold_seconds"`
	ConnectivityURL  string  `yaml:"connectivity_url"`
}

type Output struct {
	DataDir string `yaml:"data_dir"`
}

type Logging struct {
	Level string `yaml:"level"`
}

// ConfigDir returns the XDG config directory for innervoice.
func ConfigDir() string {
	return filepath.Join(homeDir(), ".config", "innervoice")
}

// DataDir returns the XDG data directory for innervoice.
func DataDir() string {
	return filepath.Join(homeDir(), ".local", "share", "innervoice")
}

// ResolveConfigPath finds the config file following priority:
// explicit path > ~/.config/innervoice/config.yaml > ./config.yaml
func ResolveConfigPath(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	xdgConfig := filepath.Join(ConfigDir(), "config.yaml")
	if _, err := os.Stat(xdgConfig); err == nil {
		return xdgConfig, nil
	}

	cwdConfig := "config.yaml"
	if _, err := os.Stat(cwdConfig); err == nil {
		return cwdConfig, nil
	}

	return "", fmt.Errorf(
		"no config file found; searched:\n  %s\n  ./config.yaml\n\nRun 'innervoice init' to create a default config",
		xdgConfig,
	)
}

// Load reads and parses a config YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return parse(data)
}

// parse parses YAML bytes into a Config, applying defaults.
func parse(data []byte) (*Config, error) {
	cfg := &Config{
		Transcription: Transcription{
			Provider:    "whisper",
			WhisperURL:  "http://localhost:8090",
			OpenAIModel: "whisper-1",
			APIKeyEnv:   "OPENAI_API_KEY",
		},
		Generation: Generation{
			Provider:    "ollama",
			Model:       "qwen2.5:7b",
			OllamaURL:   "http://localhost:11434",
			OpenAIModel: "gpt-4o-mini",
			APIKeyEnv:   "OPENAI_API_KEY",
			MaxTokens:   512,
		},
		Capture: Capture{
			Command: []string{"sox", "-d", "-q", "-r", "16000", "-c", "1"},
		},
		Session: Session{
			MaxTags:          3,
			LatencyWindow:    3,
			LatencyThreshold: 4.0,
			ConnectivityURL:  "http://localhost:11434",
		},
		Logging: Logging{Level: "INFO"},
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	return cfg, nil
}

// GetDataDir returns the effective data directory from config or XDG default.
func (c *Config) GetDataDir() string {
	if c.Output.DataDir != "" {
		return c.Output.DataDir
	}
	return DataDir()
}

// LatencyThresholdDuration converts the configured threshold to a Duration.
func (c *Config) LatencyThresholdDuration() time.Duration {
	return time.Duration(c.Session.LatencyThreshold * float64(time.Second))
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
