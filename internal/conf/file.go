package conf

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// FileConfig is the YAML configuration file
type FileConfig struct {
	Monitors     []MonitorConfig    `yaml:"monitors"`
	Destination  *DestinationConfig `yaml:"destination"`
	HistorySize  int                `yaml:"history_size"`
	EnrichPolicy string             `yaml:"enrich_policy"`
	Phrases      PhrasesConfig      `yaml:"phrases"`
	Profile      ProfileFileConfig  `yaml:"profile"`
	Danmaku      DanmakuFileConfig  `yaml:"danmaku"`
	ScreenPrompt string             `yaml:"screen_prompt"`
}

// DestinationConfig is the forwarding destination
type DestinationConfig struct {
	ID      string `yaml:"id"`
	IsGroup *bool  `yaml:"is_group"`
}

// ProfileFileConfig is the profile API section
type ProfileFileConfig struct {
	BaseURL    string  `yaml:"base_url"`
	RatePerSec float64 `yaml:"rate_per_sec"`
}

// DanmakuFileConfig is the notification fan-out section
type DanmakuFileConfig struct {
	BaseURL      string                `yaml:"base_url"`
	RetryDelayMS int                   `yaml:"retry_delay_ms"`
	Targets      []DanmakuTargetConfig `yaml:"targets"`
}

// LoadFile reads the YAML configuration.
// With an empty path the default locations are searched; finding none is not an error.
func LoadFile(configPath string) (*FileConfig, string, error) {
	paths := []string{configPath}
	if configPath == "" {
		paths = []string{
			"configs/relay.yaml",
			"/etc/reward-relay/relay.yaml",
		}
		if execPath, err := os.Executable(); err == nil {
			paths = append(paths, filepath.Join(filepath.Dir(execPath), "configs", "relay.yaml"))
		}
	}

	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			if configPath != "" {
				return nil, "", fmt.Errorf("read config %s: %w", p, err)
			}
			continue
		}

		var fc FileConfig
		if err := yaml.Unmarshal(data, &fc); err != nil {
			return nil, "", fmt.Errorf("parse config %s: %w", p, err)
		}
		return &fc, p, nil
	}

	return nil, "", nil
}

func (f *FileConfig) applyTo(cfg *Config) {
	cfg.Relay.Monitors = f.Monitors
	if f.Destination != nil {
		cfg.Relay.DestID = f.Destination.ID
		if f.Destination.IsGroup != nil {
			cfg.Relay.DestIsGroup = *f.Destination.IsGroup
		}
	}
	if f.HistorySize != 0 {
		cfg.Relay.HistorySize = f.HistorySize
	}
	if f.EnrichPolicy != "" {
		cfg.Relay.EnrichPolicy = f.EnrichPolicy
	}
	cfg.Phrases = f.Phrases
	if f.Profile.BaseURL != "" {
		cfg.Profile.BaseURL = f.Profile.BaseURL
	}
	if f.Profile.RatePerSec != 0 {
		cfg.Profile.RatePerSec = f.Profile.RatePerSec
	}
	if f.Danmaku.BaseURL != "" {
		cfg.Danmaku.BaseURL = f.Danmaku.BaseURL
	}
	if f.Danmaku.RetryDelayMS > 0 {
		cfg.Danmaku.RetryDelay = time.Duration(f.Danmaku.RetryDelayMS) * time.Millisecond
	}
	cfg.Danmaku.Targets = f.Danmaku.Targets
	cfg.Moonshot.ScreenPrompt = f.ScreenPrompt
}
