package config

import (
	"strings"

	"salesboard/internal/catalog"
)

// 默认值常量
const (
	defaultAppEnv          = "dev"
	defaultAppLogLevel     = "info"
	defaultAppHTTPAddr     = ":9991"
	defaultSourceAPIURL    = "http://127.0.0.1:9992"
	defaultSourceResource  = "/api/sales"
	defaultSourceTimeout   = 15
	defaultBreakerLimit    = 5
	defaultBreakerCooldown = 30
	defaultRenderTitle     = "Sales"
	defaultRenderTheme     = "westeros"
	defaultRenderWidth     = 960
	defaultRenderHeight    = 450
	defaultMarginTop       = 20
	defaultMarginRight     = 20
	defaultMarginBottom    = 60
	defaultMarginLeft      = 80
	defaultDurationMS      = 500
	defaultLocale          = "en-US"
	defaultBackendAddr     = ":9992"
	defaultBackendDB       = "data/sales.db"
	defaultBackendQueryLog = "data/queries.db"
)

// applyDefaults 为所有子配置应用默认值。
func (c *Config) applyDefaults(keys keySet) {
	c.App.applyDefaults(keys)
	c.Source.applyDefaults(keys)
	c.Render.applyDefaults(keys)
	c.Selection.applyDefaults(keys)
	c.Backend.applyDefaults(keys)
}

func (a *AppConfig) applyDefaults(keys keySet) {
	if a == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("app.env", &a.Env, defaultAppEnv),
		stringFieldDefault("app.log_level", &a.LogLevel, defaultAppLogLevel),
		stringFieldDefault("app.http_addr", &a.HTTPAddr, defaultAppHTTPAddr),
	)
}

func (s *SourceConfig) applyDefaults(keys keySet) {
	if s == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("source.api_url", &s.APIURL, defaultSourceAPIURL),
		stringFieldDefault("source.resource", &s.Resource, defaultSourceResource),
		positiveIntDefault(&s.TimeoutSeconds, defaultSourceTimeout),
		positiveIntDefault(&s.BreakerThreshold, defaultBreakerLimit),
		positiveIntDefault(&s.BreakerCooldownSeconds, defaultBreakerCooldown),
	)
	s.APIURL = strings.TrimRight(strings.TrimSpace(s.APIURL), "/")
	if s.Resource != "" && !strings.HasPrefix(s.Resource, "/") {
		s.Resource = "/" + s.Resource
	}
}

func (r *RenderConfig) applyDefaults(keys keySet) {
	if r == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("render.title", &r.Title, defaultRenderTitle),
		stringFieldDefault("render.theme", &r.Theme, defaultRenderTheme),
		stringFieldDefault("render.locale", &r.Locale, defaultLocale),
		positiveIntDefault(&r.Width, defaultRenderWidth),
		positiveIntDefault(&r.Height, defaultRenderHeight),
		positiveIntDefault(&r.DurationMS, defaultDurationMS),
	)
	// 边距允许显式设置为 0，只有未出现在配置中的 key 才补默认值。
	applyFieldDefaults(keys,
		unsetIntDefault(keys, "render.margin_top", &r.MarginTop, defaultMarginTop),
		unsetIntDefault(keys, "render.margin_right", &r.MarginRight, defaultMarginRight),
		unsetIntDefault(keys, "render.margin_bottom", &r.MarginBottom, defaultMarginBottom),
		unsetIntDefault(keys, "render.margin_left", &r.MarginLeft, defaultMarginLeft),
	)
}

// applyDefaults fills the initial selection from the catalog. Empty strings are
// legitimate values (all records, count), so only keys absent from the file
// are defaulted.
func (s *SelectionConfig) applyDefaults(keys keySet) {
	if s == nil {
		return
	}
	def := catalog.Default().DefaultSelection()
	applyFieldDefaults(keys,
		stringFieldDefault("selection.chart_type", &s.ChartType, string(def.ChartType)),
		stringFieldDefault("selection.order_by", &s.OrderBy, string(def.OrderBy)),
	)
	if !keys.isSet("selection.cohort") {
		s.Cohort = string(def.Cohort)
	}
	if !keys.isSet("selection.statistic") {
		s.Statistic = string(def.Statistic)
	}
}

func (b *BackendConfig) applyDefaults(keys keySet) {
	if b == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("backend.http_addr", &b.HTTPAddr, defaultBackendAddr),
		stringFieldDefault("backend.db_path", &b.DBPath, defaultBackendDB),
		stringFieldDefault("backend.querylog_path", &b.QueryLogPath, defaultBackendQueryLog),
	)
}

type fieldDefault struct {
	key   string
	need  func() bool
	apply func()
}

func applyFieldDefaults(keys keySet, defs ...fieldDefault) {
	for _, def := range defs {
		if def.apply == nil {
			continue
		}
		if def.key != "" && keys.isSet(def.key) {
			continue
		}
		if def.need != nil && !def.need() {
			continue
		}
		def.apply()
	}
}

func stringFieldDefault(key string, target *string, def string) fieldDefault {
	return fieldDefault{
		key: key,
		need: func() bool {
			return target != nil && strings.TrimSpace(*target) == ""
		},
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}

// positiveIntDefault also overrides explicit zero or negative values.
func positiveIntDefault(target *int, def int) fieldDefault {
	return fieldDefault{
		need: func() bool { return target != nil && *target <= 0 },
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}

func unsetIntDefault(keys keySet, key string, target *int, def int) fieldDefault {
	return fieldDefault{
		key:  key,
		need: func() bool { return target != nil && !keys.isSet(key) },
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}
