package daemon

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulse-metrics/pulse/internal/domain"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.API.Host != "127.0.0.1" {
		t.Errorf("API.Host = %q, want %q", cfg.API.Host, "127.0.0.1")
	}
	if cfg.API.Port != 7420 {
		t.Errorf("API.Port = %d, want %d", cfg.API.Port, 7420)
	}
	if cfg.Challenge.WindowDays != 30 {
		t.Errorf("Challenge.WindowDays = %d, want 30", cfg.Challenge.WindowDays)
	}
	if cfg.Cache.TTL != "60s" {
		t.Errorf("Cache.TTL = %q, want 60s", cfg.Cache.TTL)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestReportChallenge(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Challenge.StartDate = "2026-10-01"

	ch, err := cfg.ReportChallenge()
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC), ch.StartDate)
	assert.Equal(t, domain.FieldConnectionsSent, ch.TargetField)
	assert.Equal(t, 20, ch.DailyGoals[domain.FieldConnectionsSent])
	assert.Equal(t, 1, ch.DailyGoals[domain.FieldConversions])
}

func TestValidate_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero window", func(c *Config) { c.Challenge.WindowDays = 0 }},
		{"negative goal", func(c *Config) { c.Challenge.GoalTotal = -1 }},
		{"unknown target", func(c *Config) { c.Challenge.TargetField = "likes" }},
		{"bad start date", func(c *Config) { c.Challenge.StartDate = "Oct 1" }},
		{"unknown goal field", func(c *Config) { c.Goals["likes"] = 3 }},
		{"negative daily goal", func(c *Config) { c.Goals["messages_sent"] = -2 }},
		{"bad ttl", func(c *Config) { c.Cache.TTL = "soon" }},
		{"bad health interval", func(c *Config) { c.Health.Interval = "often" }},
		{"bad level", func(c *Config) { c.Logging.Level = "loud" }},
		{"bad format", func(c *Config) { c.Logging.Format = "xml" }},
		{"bad port", func(c *Config) { c.API.Port = 70000 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if !errors.Is(err, domain.ErrInvalidConfig) {
				t.Errorf("Validate() = %v, want ErrInvalidConfig", err)
			}
		})
	}

	cfg := DefaultConfig()
	cfg.Mapping.MessagesSent = cfg.Mapping.ConnectionsSent
	assert.ErrorIs(t, cfg.Validate(), domain.ErrInvalidMapping)
}

func TestCacheTTL(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Cache.TTL = ""
	ttl, err := cfg.CacheTTL()
	require.NoError(t, err)
	assert.Equal(t, 60*time.Second, ttl)

	cfg.Cache.TTL = "0s"
	ttl, err = cfg.CacheTTL()
	require.NoError(t, err)
	assert.Zero(t, ttl)
}

func TestSaveLoadConfig(t *testing.T) {
	t.Setenv("PULSE_HOME", t.TempDir())

	cfg := DefaultConfig()
	cfg.Challenge.StartDate = "2026-10-01"
	cfg.Challenge.GoalTotal = 900
	cfg.Mapping.MessagesSent = "Initial_Messages_Sent"
	require.NoError(t, SaveConfig(cfg))

	got, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "2026-10-01", got.Challenge.StartDate)
	assert.Equal(t, 900, got.Challenge.GoalTotal)
	assert.Equal(t, "Initial_Messages_Sent", got.Mapping.MessagesSent)
	assert.Equal(t, cfg.Goals, got.Goals)
}

func TestLoadConfig_Missing(t *testing.T) {
	t.Setenv("PULSE_HOME", t.TempDir())

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().API, cfg.API)
}

func TestLoadConfig_PartialFileKeepsDefaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("PULSE_HOME", home)

	doc := `
[challenge]
start_date = "2026-11-01"

[mapping]
date = "Date"
`
	require.NoError(t, os.WriteFile(filepath.Join(home, "config.toml"), []byte(doc), 0600))

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "2026-11-01", cfg.Challenge.StartDate)
	assert.Equal(t, 30, cfg.Challenge.WindowDays)
	assert.Equal(t, "Date", cfg.Mapping.Date)
	assert.Equal(t, "connections_sent", cfg.Mapping.ConnectionsSent)
}

func TestLoadConfig_GoalsSectionReplacesDefaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("PULSE_HOME", home)
	require.NoError(t, os.WriteFile(filepath.Join(home, "config.toml"),
		[]byte("[goals]\nmessages_sent = 10\n"), 0600))

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"messages_sent": 10}, cfg.Goals)

	ch, err := cfg.ReportChallenge()
	require.NoError(t, err)
	assert.NotContains(t, ch.DailyGoals, domain.FieldConnectionsSent)
}

func TestLoadConfig_NoGoalsSectionKeepsDefaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("PULSE_HOME", home)
	require.NoError(t, os.WriteFile(filepath.Join(home, "config.toml"),
		[]byte("[api]\nport = 8000\n"), 0600))

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Goals, cfg.Goals)
	assert.Equal(t, 8000, cfg.API.Port)
}

func TestLoadConfig_Invalid(t *testing.T) {
	home := t.TempDir()
	t.Setenv("PULSE_HOME", home)
	require.NoError(t, os.WriteFile(filepath.Join(home, "config.toml"),
		[]byte("[challenge]\nwindow_days = -3\n"), 0600))

	_, err := LoadConfig()
	assert.ErrorIs(t, err, domain.ErrInvalidConfig)
}

func TestPulseHome(t *testing.T) {
	t.Setenv("PULSE_HOME", "/tmp/pulse-test-home")
	assert.Equal(t, "/tmp/pulse-test-home", pulseHome())
	assert.Equal(t, "/tmp/pulse-test-home/config.toml", ConfigPath())
}

// ─── Logging ────────────────────────────────────────────────────────────────

func TestSetupLogging_File(t *testing.T) {
	t.Cleanup(func() {
		log.SetOutput(os.Stderr)
		log.SetLevel(log.InfoLevel)
		log.SetFormatter(&log.TextFormatter{})
	})

	path := filepath.Join(t.TempDir(), "logs", "pulse.log")
	closer, err := SetupLogging(LoggingConfig{Level: "debug", Format: "json", File: path})
	require.NoError(t, err)

	log.WithFields(log.Fields{"k": "v"}).Debug("hello")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"hello"`)
	assert.Contains(t, string(data), `"k":"v"`)
}

func TestSetupLogging_BadLevel(t *testing.T) {
	_, err := SetupLogging(LoggingConfig{Level: "chatty"})
	assert.ErrorIs(t, err, domain.ErrInvalidConfig)
}

// ─── Daemon Lifecycle ───────────────────────────────────────────────────────

func TestDaemon_ServeAndShutdown(t *testing.T) {
	t.Cleanup(func() { log.SetOutput(os.Stderr) })

	cfg := DefaultConfig()
	cfg.Storage.Dir = t.TempDir()
	cfg.Logging.Level = "error"

	d, err := NewWithConfig(cfg)
	require.NoError(t, err)
	defer d.Close()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.ServeListener(ctx, ln) }()

	url := "http://" + ln.Addr().String()
	require.Eventually(t, func() bool {
		resp, err := http.Get(url + "/health")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	resp, err := http.Get(url + "/api/snapshot")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("ServeListener did not return after cancel")
	}
}

func TestNewWithConfig_Invalid(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Storage.Dir = t.TempDir()
	cfg.Challenge.WindowDays = 0

	_, err := NewWithConfig(cfg)
	assert.ErrorIs(t, err, domain.ErrInvalidConfig)
}
