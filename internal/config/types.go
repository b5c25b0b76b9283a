package config

import (
	"strings"
	"time"

	"salesboard/internal/scheduler"
)

// Config 是 salesboard 的主配置载体。
type Config struct {
	App       AppConfig       `toml:"app"`
	Source    SourceConfig    `toml:"source"`
	Render    RenderConfig    `toml:"render"`
	Selection SelectionConfig `toml:"selection"`
	Backend   BackendConfig   `toml:"backend"`
	Notify    NotifyConfig    `toml:"notify"`
}

type AppConfig struct {
	Env      string `toml:"env"`
	LogLevel string `toml:"log_level"`
	HTTPAddr string `toml:"http_addr"`
	LogPath  string `toml:"log_path"`
}

// SourceConfig 描述销售数据 REST 接口的访问方式。
type SourceConfig struct {
	APIURL                 string `toml:"api_url"`
	Resource               string `toml:"resource"`
	APIToken               string `toml:"api_token"`
	TimeoutSeconds         int    `toml:"timeout_seconds"`
	InsecureSkipVerify     bool   `toml:"insecure_skip_verify"`
	BreakerThreshold       int    `toml:"breaker_threshold"`
	BreakerCooldownSeconds int    `toml:"breaker_cooldown_seconds"`
	// RefreshInterval 为空表示不自动刷新，例如 "5m"、"1h"。
	RefreshInterval string `toml:"refresh_interval"`
}

func (s SourceConfig) Timeout() time.Duration {
	return time.Duration(s.TimeoutSeconds) * time.Second
}

func (s SourceConfig) BreakerCooldown() time.Duration {
	return time.Duration(s.BreakerCooldownSeconds) * time.Second
}

// RefreshEvery 返回自动刷新周期，未配置时为 0。
func (s SourceConfig) RefreshEvery() time.Duration {
	d, _ := scheduler.ParseIntervalDuration(s.RefreshInterval)
	return d
}

// RenderConfig 是图表渲染器的静态配置（尺寸、边距、动画时长、数字格式的 locale）。
type RenderConfig struct {
	Title           string `toml:"title"`
	Theme           string `toml:"theme"`
	Width           int    `toml:"width"`
	Height          int    `toml:"height"`
	MarginTop       int    `toml:"margin_top"`
	MarginRight     int    `toml:"margin_right"`
	MarginBottom    int    `toml:"margin_bottom"`
	MarginLeft      int    `toml:"margin_left"`
	DurationMS      int    `toml:"duration_ms"`
	Locale          string `toml:"locale"`
	SnapshotEnabled bool   `toml:"snapshot_enabled"`
}

// SelectionConfig 控制启动时的初始选择。
type SelectionConfig struct {
	ChartType string `toml:"chart_type"`
	Cohort    string `toml:"cohort"`
	Statistic string `toml:"statistic"`
	OrderBy   string `toml:"order_by"`
}

// BackendConfig 控制内置的参考销售数据接口。
type BackendConfig struct {
	Enabled      bool   `toml:"enabled"`
	HTTPAddr     string `toml:"http_addr"`
	DBPath       string `toml:"db_path"`
	SeedPath     string `toml:"seed_path"`
	QueryLogPath string `toml:"querylog_path"`
}

// NotifyConfig 控制数据源告警推送。
type NotifyConfig struct {
	Telegram TelegramConfig `toml:"telegram"`
}

type TelegramConfig struct {
	Enabled  bool   `toml:"enabled"`
	BotToken string `toml:"bot_token"`
	ChatID   string `toml:"chat_id"`
}

type keySet map[string]struct{}

func (k keySet) mark(path string) {
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return
	}
	k[path] = struct{}{}
}

func (k keySet) isSet(path string) bool {
	if len(k) == 0 {
		return false
	}
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return false
	}
	_, ok := k[path]
	return ok
}
