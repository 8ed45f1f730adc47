package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"
)

// Settings is the typed configuration of a shipbrain core.
type Settings struct {
	Bus       BusSettings
	Memory    MemorySettings
	Unify     UnifySettings
	Alerts    AlertSettings
	Decisions DecisionSettings
	Analysis  AnalysisSettings
	Storage   StorageSettings
	Rules     RulesSettings
	Log       LogSettings
}

// BusSettings sizes the event bus.
type BusSettings struct {
	HistorySize int
	QueueSize   int
}

// MemorySettings holds tier lifetimes and the sweep interval.
type MemorySettings struct {
	ShortTTL        time.Duration
	MediumTTL       time.Duration
	LongTTL         time.Duration
	SemanticTTL     time.Duration
	CleanupInterval time.Duration
}

// UnifySettings tunes matching and delay detection.
type UnifySettings struct {
	DelayDays   int
	FuzzyWindow time.Duration
	MinDigits   int
}

// AlertSettings controls alert expiry and how many closed alerts are kept.
type AlertSettings struct {
	TTL            time.Duration
	ExpireInterval time.Duration
	HistoryLimit   int
}

// DecisionSettings controls pending decision expiry.
type DecisionSettings struct {
	PendingTTL     time.Duration
	ExpireInterval time.Duration
}

// AnalysisSettings controls periodic pattern and learning runs.
type AnalysisSettings struct {
	Interval        time.Duration
	InsightCooldown time.Duration
	// RefreshInterval is how often delay flags are recomputed.
	RefreshInterval time.Duration
}

// StorageSettings selects the snapshot backend.
type StorageSettings struct {
	Driver          string
	Path            string
	PersistInterval time.Duration
}

// RulesSettings points at an optional rule file.
type RulesSettings struct {
	File  string
	Watch bool
}

// LogSettings configures the CLI log handler.
type LogSettings struct {
	Level  string
	Format string
}

// Defaults returns the settings used when nothing is configured.
func Defaults() Settings {
	return Settings{
		Bus: BusSettings{HistorySize: 1000, QueueSize: 10000},
		Memory: MemorySettings{
			ShortTTL:        30 * time.Minute,
			MediumTTL:       1440 * time.Minute,
			LongTTL:         43200 * time.Minute,
			SemanticTTL:     525600 * time.Minute,
			CleanupInterval: 5 * time.Minute,
		},
		Unify: UnifySettings{
			DelayDays:   5,
			FuzzyWindow: 7 * 24 * time.Hour,
			MinDigits:   6,
		},
		Alerts:    AlertSettings{TTL: 7 * 24 * time.Hour, ExpireInterval: 10 * time.Minute, HistoryLimit: 1000},
		Decisions: DecisionSettings{PendingTTL: 24 * time.Hour, ExpireInterval: 10 * time.Minute},
		Analysis:  AnalysisSettings{Interval: 30 * time.Minute, InsightCooldown: 6 * time.Hour, RefreshInterval: 15 * time.Minute},
		Storage:   StorageSettings{Driver: "memory", PersistInterval: 5 * time.Minute},
		Log:       LogSettings{Level: "info", Format: "text"},
	}
}

// FromConfig reads settings from cfg, keeping defaults for missing keys.
func FromConfig(cfg Config) Settings {
	d := Defaults()

	bus := cfg.Sub("bus")
	mem := cfg.Sub("memory")
	uni := cfg.Sub("unify")
	alerts := cfg.Sub("alerts")
	decisions := cfg.Sub("decisions")
	analysis := cfg.Sub("analysis")
	store := cfg.Sub("storage")
	rules := cfg.Sub("rules")
	log := cfg.Sub("log")

	return Settings{
		Bus: BusSettings{
			HistorySize: bus.Int("history_size", d.Bus.HistorySize),
			QueueSize:   bus.Int("queue_size", d.Bus.QueueSize),
		},
		Memory: MemorySettings{
			ShortTTL:        mem.Duration("short_ttl", d.Memory.ShortTTL),
			MediumTTL:       mem.Duration("medium_ttl", d.Memory.MediumTTL),
			LongTTL:         mem.Duration("long_ttl", d.Memory.LongTTL),
			SemanticTTL:     mem.Duration("semantic_ttl", d.Memory.SemanticTTL),
			CleanupInterval: mem.Duration("cleanup_interval", d.Memory.CleanupInterval),
		},
		Unify: UnifySettings{
			DelayDays:   uni.Int("delay_days", d.Unify.DelayDays),
			FuzzyWindow: uni.Duration("fuzzy_window", d.Unify.FuzzyWindow),
			MinDigits:   uni.Int("min_digits", d.Unify.MinDigits),
		},
		Alerts: AlertSettings{
			TTL:            alerts.Duration("ttl", d.Alerts.TTL),
			ExpireInterval: alerts.Duration("expire_interval", d.Alerts.ExpireInterval),
			HistoryLimit:   alerts.Int("history_limit", d.Alerts.HistoryLimit),
		},
		Decisions: DecisionSettings{
			PendingTTL:     decisions.Duration("pending_ttl", d.Decisions.PendingTTL),
			ExpireInterval: decisions.Duration("expire_interval", d.Decisions.ExpireInterval),
		},
		Analysis: AnalysisSettings{
			Interval:        analysis.Duration("interval", d.Analysis.Interval),
			InsightCooldown: analysis.Duration("insight_cooldown", d.Analysis.InsightCooldown),
			RefreshInterval: analysis.Duration("refresh_interval", d.Analysis.RefreshInterval),
		},
		Storage: StorageSettings{
			Driver:          store.String("driver", d.Storage.Driver),
			Path:            store.String("path", d.Storage.Path),
			PersistInterval: store.Duration("persist_interval", d.Storage.PersistInterval),
		},
		Rules: RulesSettings{
			File:  rules.String("file", d.Rules.File),
			Watch: rules.Bool("watch", d.Rules.Watch),
		},
		Log: LogSettings{
			Level:  log.String("level", d.Log.Level),
			Format: log.String("format", d.Log.Format),
		},
	}
}

// Environment variables read by ApplyEnv.
const (
	EnvStorageDriver = "SHIPBRAIN_STORAGE_DRIVER"
	EnvStoragePath   = "SHIPBRAIN_STORAGE_PATH"
	EnvRulesFile     = "SHIPBRAIN_RULES_FILE"
	EnvRulesWatch    = "SHIPBRAIN_RULES_WATCH"
	EnvLogLevel      = "SHIPBRAIN_LOG_LEVEL"
	EnvLogFormat     = "SHIPBRAIN_LOG_FORMAT"
)

// ApplyEnv overrides settings from the environment. lookup is usually
// os.LookupEnv.
func (s *Settings) ApplyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvStorageDriver); ok && v != "" {
		s.Storage.Driver = v
	}
	if v, ok := lookup(EnvStoragePath); ok && v != "" {
		s.Storage.Path = v
	}
	if v, ok := lookup(EnvRulesFile); ok && v != "" {
		s.Rules.File = v
	}
	if v, ok := lookup(EnvRulesWatch); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			s.Rules.Watch = b
		}
	}
	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		s.Log.Level = v
	}
	if v, ok := lookup(EnvLogFormat); ok && v != "" {
		s.Log.Format = v
	}
}

// Validate reports every invalid setting at once.
func (s Settings) Validate() error {
	var errs []error
	positive := func(name string, v int) {
		if v <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %d", name, v))
		}
	}
	positiveDur := func(name string, v time.Duration) {
		if v <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %s", name, v))
		}
	}

	positive("bus.history_size", s.Bus.HistorySize)
	positive("bus.queue_size", s.Bus.QueueSize)
	positiveDur("memory.short_ttl", s.Memory.ShortTTL)
	positiveDur("memory.medium_ttl", s.Memory.MediumTTL)
	positiveDur("memory.long_ttl", s.Memory.LongTTL)
	positiveDur("memory.semantic_ttl", s.Memory.SemanticTTL)
	positive("unify.delay_days", s.Unify.DelayDays)
	positive("unify.min_digits", s.Unify.MinDigits)
	positiveDur("decisions.pending_ttl", s.Decisions.PendingTTL)

	switch s.Storage.Driver {
	case "memory":
	case "sqlite", "file":
		if s.Storage.Path == "" {
			errs = append(errs, fmt.Errorf("storage.path is required for driver %s", s.Storage.Driver))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage.driver: %q", s.Storage.Driver))
	}

	if _, err := ParseLevel(s.Log.Level); err != nil {
		errs = append(errs, err)
	}
	switch s.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("unknown log.format: %q", s.Log.Format))
	}

	return errors.Join(errs...)
}

// ParseLevel maps a level name to a slog.Level.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log.level: %q", name)
}
