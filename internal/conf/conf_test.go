package conf

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DevRickLin/reward-relay/internal/service"
)

const sampleYAML = `
monitors:
  - channel_id: oc_watch_a
    send_helper_messages: true
  - channel_id: oc_watch_b
destination:
  id: oc_dest
  is_group: true
history_size: 50
enrich_policy: forward_bare
phrases:
  soft_reject: [签到]
profile:
  base_url: http://profile.local
  rate_per_sec: 2
danmaku:
  base_url: http://danmaku.local
  retry_delay_ms: 500
  targets:
    - label: main
      access_key: ak
      app_key: key
      app_secret: secret
      room_id: "100"
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "relay.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func validConfig() *Config {
	return &Config{
		Feishu: FeishuConfig{AppID: "id", AppSecret: "secret"},
		Relay: RelayConfig{
			DestID:       "oc_dest",
			HistorySize:  DefaultHistorySize,
			EnrichPolicy: string(service.EnrichAbort),
			Monitors:     []MonitorConfig{{ChannelID: "oc_watch"}},
		},
		Profile: ProfileConfig{BaseURL: "http://profile.local"},
	}
}

func TestLoadFromEnv_FileThenEnv(t *testing.T) {
	t.Setenv("RELAY_CONFIG_PATH", writeConfig(t, sampleYAML))
	t.Setenv("FEISHU_APP_ID", "cli_x")
	t.Setenv("FEISHU_APP_SECRET", "s")
	t.Setenv("RELAY_HISTORY_SIZE", "40")
	t.Setenv("API_PORT", "0")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 40, cfg.Relay.HistorySize, "env overrides the file")
	assert.Equal(t, "oc_dest", cfg.Relay.DestID)
	assert.Equal(t, "forward_bare", cfg.Relay.EnrichPolicy)
	assert.Equal(t, 500*time.Millisecond, cfg.Danmaku.RetryDelay)
	assert.Equal(t, 2.0, cfg.Profile.RatePerSec)
	assert.Equal(t, 0, cfg.APIPort)

	monitors := cfg.ToMonitors()
	require.Len(t, monitors, 2)
	assert.True(t, monitors[0].SendHelperMessages)
	assert.False(t, monitors[1].SendHelperMessages)

	targets := cfg.ToNotifyTargets()
	require.Len(t, targets, 1)
	assert.Equal(t, "main", targets[0].Name())

	rules := cfg.ToAdmissionRules()
	assert.Equal(t, []string{"签到"}, rules.SoftReject)
	assert.NotEmpty(t, rules.HardReject, "unset lists keep the defaults")

	relay := cfg.ToRelayConfig()
	assert.Equal(t, service.EnrichForwardBare, relay.EnrichPolicy)
	assert.True(t, relay.Destination.IsGroup)
}

func TestLoadFromEnv_Defaults(t *testing.T) {
	t.Setenv("RELAY_CONFIG_PATH", writeConfig(t, "monitors: []\n"))

	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, DefaultHistorySize, cfg.Relay.HistorySize)
	assert.Equal(t, string(service.EnrichAbort), cfg.Relay.EnrichPolicy)
	assert.Equal(t, DefaultAPIPort, cfg.APIPort)
	assert.Equal(t, 60*time.Second, cfg.Relay.HandleTimeout)
}

func TestLoadFile_MissingExplicitPath(t *testing.T) {
	_, _, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadFile_Malformed(t *testing.T) {
	_, _, err := LoadFile(writeConfig(t, "monitors: [unterminated"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		field  string
	}{
		{"valid", func(c *Config) {}, ""},
		{"missing credentials", func(c *Config) { c.Feishu.AppSecret = "" }, "FEISHU_APP_ID/FEISHU_APP_SECRET"},
		{"missing destination", func(c *Config) { c.Relay.DestID = "" }, "RELAY_DEST_ID"},
		{"no monitors", func(c *Config) { c.Relay.Monitors = nil }, "monitors"},
		{"blank monitor", func(c *Config) { c.Relay.Monitors = []MonitorConfig{{}} }, "monitors[0].channel_id"},
		{"history too small", func(c *Config) { c.Relay.HistorySize = 0 }, "RELAY_HISTORY_SIZE"},
		{"history too large", func(c *Config) { c.Relay.HistorySize = MaxHistorySize + 1 }, "RELAY_HISTORY_SIZE"},
		{"unknown policy", func(c *Config) { c.Relay.EnrichPolicy = "retry" }, "RELAY_ENRICH_POLICY"},
		{"missing profile api", func(c *Config) { c.Profile.BaseURL = "" }, "PROFILE_BASE_URL"},
		{"targets without endpoint", func(c *Config) {
			c.Danmaku.Targets = []DanmakuTargetConfig{{RoomID: "1"}}
		}, "DANMAKU_BASE_URL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.field == "" {
				assert.NoError(t, err)
				return
			}
			var cerr *ConfigError
			require.ErrorAs(t, err, &cerr)
			assert.Equal(t, tt.field, cerr.Field)
		})
	}
}
