package config

import (
	"fmt"
	"net/url"
	"strings"

	"salesboard/internal/catalog"
	"salesboard/internal/sales"
	"salesboard/internal/scheduler"

	"golang.org/x/text/language"
)

// validate 对配置进行基础校验。
func validate(c *Config) error {
	if err := c.App.validate(); err != nil {
		return err
	}
	if err := c.Source.validate(); err != nil {
		return err
	}
	if err := c.Render.validate(); err != nil {
		return err
	}
	if err := c.Selection.validate(); err != nil {
		return err
	}
	if err := c.Backend.validate(); err != nil {
		return err
	}
	if err := c.Notify.validate(); err != nil {
		return err
	}
	return nil
}

func (n *NotifyConfig) validate() error {
	tg := n.Telegram
	if tg.Enabled && (strings.TrimSpace(tg.BotToken) == "" || strings.TrimSpace(tg.ChatID) == "") {
		return fmt.Errorf("notify.telegram requires bot_token and chat_id when enabled")
	}
	return nil
}

func (a *AppConfig) validate() error {
	if strings.TrimSpace(a.HTTPAddr) == "" {
		return fmt.Errorf("app.http_addr cannot be empty")
	}
	return nil
}

func (s *SourceConfig) validate() error {
	raw := strings.TrimSpace(s.APIURL)
	if raw == "" {
		return fmt.Errorf("source.api_url cannot be empty")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("source.api_url invalid: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("source.api_url must be http(s), got %q", u.Scheme)
	}
	if strings.ContainsAny(s.Resource, "?#") {
		return fmt.Errorf("source.resource must be a plain path")
	}
	if strings.TrimSpace(s.RefreshInterval) != "" {
		if _, ok := scheduler.ParseIntervalDuration(s.RefreshInterval); !ok {
			return fmt.Errorf("source.refresh_interval %q invalid (want e.g. 30s, 5m, 1h)", s.RefreshInterval)
		}
	}
	return nil
}

func (r *RenderConfig) validate() error {
	if r.MarginTop < 0 || r.MarginRight < 0 || r.MarginBottom < 0 || r.MarginLeft < 0 {
		return fmt.Errorf("render margins must be >= 0")
	}
	if _, err := language.Parse(r.Locale); err != nil {
		return fmt.Errorf("render.locale %q invalid: %w", r.Locale, err)
	}
	return nil
}

func (s *SelectionConfig) validate() error {
	if err := catalog.Default().Validate(s.Selection()); err != nil {
		return fmt.Errorf("selection: %w", err)
	}
	return nil
}

// Selection converts the configured initial choice into the domain type.
func (s SelectionConfig) Selection() sales.Selection {
	return sales.Selection{
		ChartType: sales.ChartType(strings.TrimSpace(s.ChartType)),
		Cohort:    sales.Cohort(strings.TrimSpace(s.Cohort)),
		Statistic: sales.Statistic(strings.TrimSpace(s.Statistic)),
		OrderBy:   sales.OrderBy(strings.TrimSpace(s.OrderBy)),
	}
}

func (b *BackendConfig) validate() error {
	if !b.Enabled {
		return nil
	}
	if strings.TrimSpace(b.HTTPAddr) == "" {
		return fmt.Errorf("backend.http_addr cannot be empty when backend is enabled")
	}
	if strings.TrimSpace(b.DBPath) == "" {
		return fmt.Errorf("backend.db_path cannot be empty when backend is enabled")
	}
	return nil
}
