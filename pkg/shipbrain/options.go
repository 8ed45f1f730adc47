package shipbrain

import (
	"log/slog"

	"github.com/litpercolombia-glitch/ASDA3EEEE-sub002/pkg/shipbrain/action"
	"github.com/litpercolombia-glitch/ASDA3EEEE-sub002/pkg/shipbrain/clock"
	"github.com/litpercolombia-glitch/ASDA3EEEE-sub002/pkg/shipbrain/observability"
	"github.com/litpercolombia-glitch/ASDA3EEEE-sub002/pkg/shipbrain/rules"
	"github.com/litpercolombia-glitch/ASDA3EEEE-sub002/pkg/shipbrain/storage"
)

// Option configures a Core.
type Option func(*options)

type options struct {
	clock        clock.Clock
	logger       *slog.Logger
	metrics      observability.MetricsRecorder
	spans        observability.SpanManager
	store        storage.Store
	notifier     action.Notifier
	rules        []rules.Rule
	skipDefaults bool
}

// WithClock sets the clock every component uses.
// Default: the system clock.
func WithClock(c clock.Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithLogger sets the base logger. Components derive their own loggers from
// it with a component attribute.
// Default: slog.Default()
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithMetrics enables metrics recording.
// Default: no metrics.
//
// Example:
//
//	core, err := shipbrain.New(settings, shipbrain.WithMetrics(observability.NewMetricsRecorder()))
func WithMetrics(m observability.MetricsRecorder) Option {
	return func(o *options) { o.metrics = m }
}

// WithSpans enables tracing of ingests, analyses and actions.
// Default: no spans.
func WithSpans(s observability.SpanManager) Option {
	return func(o *options) { o.spans = s }
}

// WithStore overrides the snapshot backend selected by the settings. The
// core does not close a store passed this way.
func WithStore(s storage.Store) Option {
	return func(o *options) { o.store = s }
}

// WithNotifier sets the delivery channel for send_notification actions.
// Default: action.LogNotifier, which only logs.
func WithNotifier(n action.Notifier) Option {
	return func(o *options) { o.notifier = n }
}

// WithRules adds rules at construction, after the default rules.
func WithRules(rs ...rules.Rule) Option {
	return func(o *options) { o.rules = append(o.rules, rs...) }
}

// WithoutDefaultRules starts with an empty rule set.
func WithoutDefaultRules() Option {
	return func(o *options) { o.skipDefaults = true }
}
