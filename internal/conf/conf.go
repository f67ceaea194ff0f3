package conf

import (
	"os"
	"strconv"
	"time"

	"github.com/DevRickLin/reward-relay/internal/biz/domain"
	"github.com/DevRickLin/reward-relay/internal/biz/usecase"
	"github.com/DevRickLin/reward-relay/internal/service"
)

const (
	DefaultHistorySize   = 30
	MaxHistorySize       = 500
	DefaultAPIPort       = 9876
	defaultHandleTimeout = 60 * time.Second
	defaultRetryDelay    = 2 * time.Second
)

// Config represents application configuration
type Config struct {
	// Feishu configuration
	Feishu FeishuConfig

	// Relay configuration
	Relay RelayConfig

	// Profile API configuration
	Profile ProfileConfig

	// Danmaku fan-out configuration (optional)
	Danmaku DanmakuConfig

	// Archive configuration (optional)
	Archive ArchiveConfig

	// Moonshot configuration (optional)
	Moonshot MoonshotConfig

	// Phrase lists for the keyword gates
	Phrases PhrasesConfig

	// Admin API port, 0 disables the API
	APIPort int

	// Debug mode
	Debug bool

	// FilePath is the YAML file that was loaded, empty if none
	FilePath string
}

// FeishuConfig contains Feishu configuration
type FeishuConfig struct {
	AppID     string
	AppSecret string
}

// RelayConfig contains dispatch configuration
type RelayConfig struct {
	DestID        string
	DestIsGroup   bool
	HistorySize   int
	EnrichPolicy  string
	HandleTimeout time.Duration
	Monitors      []MonitorConfig
}

// MonitorConfig is one monitored chat
type MonitorConfig struct {
	ChannelID          string `yaml:"channel_id"`
	SendHelperMessages bool   `yaml:"send_helper_messages"`
}

// ProfileConfig contains the profile API configuration
type ProfileConfig struct {
	BaseURL    string
	RatePerSec float64
}

// DanmakuConfig contains notification fan-out configuration
type DanmakuConfig struct {
	BaseURL    string
	RetryDelay time.Duration
	Targets    []DanmakuTargetConfig
}

// DanmakuTargetConfig is one notification credential
type DanmakuTargetConfig struct {
	Label     string `yaml:"label"`
	AccessKey string `yaml:"access_key"`
	AppKey    string `yaml:"app_key"`
	AppSecret string `yaml:"app_secret"`
	RoomID    string `yaml:"room_id"`
}

// ArchiveConfig contains archive configuration
type ArchiveConfig struct {
	DBPath string
}

// MoonshotConfig contains Moonshot configuration
type MoonshotConfig struct {
	APIKey       string
	Model        string
	ScreenPrompt string
}

// PhrasesConfig overrides the built-in phrase lists; empty lists keep the defaults
type PhrasesConfig struct {
	HardReject []string `yaml:"hard_reject"`
	SoftReject []string `yaml:"soft_reject"`
	Currency   []string `yaml:"currency"`
	GiveVerbs  []string `yaml:"give_verbs"`
}

// LoadFromEnv loads configuration from the YAML file, then environment variables.
// Environment variables win over the file.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		Relay: RelayConfig{
			DestIsGroup:   true,
			HistorySize:   DefaultHistorySize,
			EnrichPolicy:  string(service.EnrichAbort),
			HandleTimeout: defaultHandleTimeout,
		},
		Danmaku: DanmakuConfig{
			RetryDelay: defaultRetryDelay,
		},
		APIPort: DefaultAPIPort,
	}

	file, path, err := LoadFile(os.Getenv("RELAY_CONFIG_PATH"))
	if err != nil {
		return nil, err
	}
	if file != nil {
		file.applyTo(cfg)
		cfg.FilePath = path
	}

	setString(&cfg.Feishu.AppID, "FEISHU_APP_ID")
	setString(&cfg.Feishu.AppSecret, "FEISHU_APP_SECRET")
	setString(&cfg.Relay.DestID, "RELAY_DEST_ID")
	setBool(&cfg.Relay.DestIsGroup, "RELAY_DEST_IS_GROUP")
	setInt(&cfg.Relay.HistorySize, "RELAY_HISTORY_SIZE")
	setString(&cfg.Relay.EnrichPolicy, "RELAY_ENRICH_POLICY")
	setSeconds(&cfg.Relay.HandleTimeout, "HANDLE_TIMEOUT_SECONDS")
	setString(&cfg.Profile.BaseURL, "PROFILE_BASE_URL")
	setFloat(&cfg.Profile.RatePerSec, "PROFILE_RATE_PER_SEC")
	setString(&cfg.Danmaku.BaseURL, "DANMAKU_BASE_URL")
	setMillis(&cfg.Danmaku.RetryDelay, "DANMAKU_RETRY_DELAY_MS")
	setString(&cfg.Archive.DBPath, "ARCHIVE_DB_PATH")
	setString(&cfg.Moonshot.APIKey, "MOONSHOT_API_KEY")
	setString(&cfg.Moonshot.Model, "MOONSHOT_MODEL")
	setInt(&cfg.APIPort, "API_PORT")
	cfg.Debug = os.Getenv("DEBUG") == "true"

	return cfg, nil
}

// Validate validates the configuration needed to run the relay
func (c *Config) Validate() error {
	if c.Feishu.AppID == "" || c.Feishu.AppSecret == "" {
		return &ConfigError{Field: "FEISHU_APP_ID/FEISHU_APP_SECRET", Message: "required"}
	}
	if c.Relay.DestID == "" {
		return &ConfigError{Field: "RELAY_DEST_ID", Message: "required"}
	}
	if len(c.Relay.Monitors) == 0 {
		return &ConfigError{Field: "monitors", Message: "at least one monitored chat is required"}
	}
	for i, m := range c.Relay.Monitors {
		if m.ChannelID == "" {
			return &ConfigError{Field: "monitors[" + strconv.Itoa(i) + "].channel_id", Message: "required"}
		}
	}
	if c.Relay.HistorySize < 1 || c.Relay.HistorySize > MaxHistorySize {
		return &ConfigError{Field: "RELAY_HISTORY_SIZE", Message: "must be between 1 and " + strconv.Itoa(MaxHistorySize)}
	}
	switch service.EnrichPolicy(c.Relay.EnrichPolicy) {
	case service.EnrichAbort, service.EnrichForwardBare:
	default:
		return &ConfigError{Field: "RELAY_ENRICH_POLICY", Message: "must be abort or forward_bare"}
	}
	if c.Profile.BaseURL == "" {
		return &ConfigError{Field: "PROFILE_BASE_URL", Message: "required"}
	}
	if len(c.Danmaku.Targets) > 0 && c.Danmaku.BaseURL == "" {
		return &ConfigError{Field: "DANMAKU_BASE_URL", Message: "required when danmaku targets are configured"}
	}
	return nil
}

// ToMonitors converts to domain monitor targets
func (c *Config) ToMonitors() []domain.MonitorTarget {
	out := make([]domain.MonitorTarget, 0, len(c.Relay.Monitors))
	for _, m := range c.Relay.Monitors {
		out = append(out, domain.MonitorTarget{ChannelID: m.ChannelID, SendHelperMessages: m.SendHelperMessages})
	}
	return out
}

// ToAdmissionRules merges the configured phrases over the defaults
func (c *Config) ToAdmissionRules() usecase.AdmissionRules {
	rules := usecase.DefaultAdmissionRules()
	if len(c.Phrases.HardReject) > 0 {
		rules.HardReject = c.Phrases.HardReject
	}
	if len(c.Phrases.SoftReject) > 0 {
		rules.SoftReject = c.Phrases.SoftReject
	}
	if len(c.Phrases.Currency) > 0 {
		rules.Currency = c.Phrases.Currency
	}
	if len(c.Phrases.GiveVerbs) > 0 {
		rules.GiveVerbs = c.Phrases.GiveVerbs
	}
	return rules
}

// ToNotifyTargets converts to domain notification targets
func (c *Config) ToNotifyTargets() []domain.NotifyTarget {
	out := make([]domain.NotifyTarget, 0, len(c.Danmaku.Targets))
	for _, t := range c.Danmaku.Targets {
		out = append(out, domain.NotifyTarget{
			Label:     t.Label,
			AccessKey: t.AccessKey,
			AppKey:    t.AppKey,
			AppSecret: t.AppSecret,
			RoomID:    t.RoomID,
		})
	}
	return out
}

// ToRelayConfig converts to the relay service configuration
func (c *Config) ToRelayConfig() service.RelayConfig {
	return service.RelayConfig{
		Destination:  domain.Target{ID: c.Relay.DestID, IsGroup: c.Relay.DestIsGroup},
		EnrichPolicy: service.EnrichPolicy(c.Relay.EnrichPolicy),
		Timeout:      c.Relay.HandleTimeout,
	}
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return e.Field + ": " + e.Message
}

func setString(dst *string, key string) {
	if val := os.Getenv(key); val != "" {
		*dst = val
	}
}

func setBool(dst *bool, key string) {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseBool(val); err == nil {
			*dst = parsed
		}
	}
}

func setInt(dst *int, key string) {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			*dst = parsed
		}
	}
}

func setFloat(dst *float64, key string) {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseFloat(val, 64); err == nil {
			*dst = parsed
		}
	}
}

func setSeconds(dst *time.Duration, key string) {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			*dst = time.Duration(parsed) * time.Second
		}
	}
}

func setMillis(dst *time.Duration, key string) {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			*dst = time.Duration(parsed) * time.Millisecond
		}
	}
}
