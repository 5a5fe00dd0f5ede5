package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
)

const (
	DefaultPort           = 6970
	DefaultConfigFilename = "config.json"
	DefaultHost           = "127.0.0.1"
	DefaultMainSubject    = "CSIRCHEM100"
)

// FunctionEndpoint is the upstream connection detail for one agent function.
// Endpoint and APIKey are mandatory; APIVersion and Model have
// upstream-specific defaults applied by the adapter layer.
type FunctionEndpoint struct {
	Endpoint   string `json:"endpoint"`
	APIKey     string `json:"api_key"`
	APIVersion string `json:"api_version,omitempty"`
	Model      string `json:"model,omitempty"`
}

// AgentConfig maps a function name (ask_agent, mcq, websearch,
// youtube_summarize) to its endpoint configuration.
type AgentConfig map[string]FunctionEndpoint

type Config struct {
	Host        string                 `json:"HOST,omitempty"`
	Port        int                    `json:"PORT,omitempty"`
	APIKey      string                 `json:"APIKEY,omitempty"`
	PromptsDir  string                 `json:"prompts_dir,omitempty"`
	SyllabusDir string                 `json:"syllabus_dir,omitempty"`
	MainSubject string                 `json:"main_subject,omitempty"`
	HistoryFile string                 `json:"history_file,omitempty"`
	Agents      map[string]AgentConfig `json:"Agents"`
}

type Manager struct {
	configPath  string
	configValue atomic.Value
}

func NewManager(baseDir string) *Manager {
	return &Manager{
		configPath: filepath.Join(baseDir, DefaultConfigFilename),
	}
}

func (m *Manager) Load() (*Config, error) {
	data, err := os.ReadFile(m.configPath)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// Set defaults
	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}
	if cfg.Host == "" {
		cfg.Host = DefaultHost
	}
	if cfg.MainSubject == "" {
		cfg.MainSubject = DefaultMainSubject
	}

	m.configValue.Store(&cfg)
	return &cfg, nil
}

func (m *Manager) Get() *Config {
	if v := m.configValue.Load(); v != nil {
		return v.(*Config)
	}

	cfg, err := m.Load()
	if err != nil {
		// Return a config with defaults if loading fails
		return &Config{
			Host:        DefaultHost,
			Port:        DefaultPort,
			MainSubject: DefaultMainSubject,
		}
	}
	return cfg
}

func (m *Manager) Save(cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(m.configPath), 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(m.configPath, data, 0600); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}

	m.configValue.Store(cfg)
	return nil
}

// AgentConfig returns the configuration bundle for one agent key.
// Lookup is exact-match and case-sensitive.
func (m *Manager) AgentConfig(agentKey string) (AgentConfig, bool) {
	cfg := m.Get()
	agent, ok := cfg.Agents[agentKey]
	return agent, ok
}

func (m *Manager) GetPath() string {
	return m.configPath
}

func (m *Manager) Exists() bool {
	_, err := os.Stat(m.configPath)
	return err == nil
}
