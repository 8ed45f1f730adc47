package brain

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/litpercolombia-glitch/ASDA3EEEE-sub002/pkg/shipbrain/event"
)

// HealthChecker reports whether a module is working. A nil checker is
// always healthy.
type HealthChecker func(ctx context.Context) error

// Module is a component registered with the brain.
type Module struct {
	Name         string    `json:"name"`
	Version      string    `json:"version,omitempty"`
	RegisteredAt time.Time `json:"registeredAt"`

	check HealthChecker
}

// ModuleHealth is the result of one module check.
type ModuleHealth struct {
	Name    string `json:"name"`
	Version string `json:"version,omitempty"`
	Healthy bool   `json:"healthy"`
	Error   string `json:"error,omitempty"`
}

// Health is the result of HealthCheck.
type Health struct {
	Healthy   bool           `json:"healthy"`
	Modules   []ModuleHealth `json:"modules"`
	Shipments int            `json:"shipments"`
	CheckedAt time.Time      `json:"checkedAt"`
}

// RegisterModule adds a module and emits module.registered. Names are
// unique.
func (b *Brain) RegisterModule(ctx context.Context, name, version string, check HealthChecker) error {
	m := &Module{Name: name, Version: version, RegisteredAt: b.clock.Now(), check: check}
	if err := b.modules.Add(name, m); err != nil {
		return fmt.Errorf("register module: %w", err)
	}
	if _, err := b.emitter.Emit(ctx, event.ModuleRegistered{Name: name, Version: version}, event.WithSource("brain")); err != nil {
		b.logger.Warn("module event dropped", slog.String("module", name), slog.Any("error", err))
	}
	return nil
}

// Modules lists registered modules in registration order.
func (b *Brain) Modules() []Module {
	mods := b.modules.Values()
	out := make([]Module, len(mods))
	for i, m := range mods {
		out[i] = Module{Name: m.Name, Version: m.Version, RegisteredAt: m.RegisteredAt}
	}
	return out
}

// HealthCheck runs every module check. The brain is healthy when all
// modules are. A panicking check counts as unhealthy.
func (b *Brain) HealthCheck(ctx context.Context) Health {
	h := Health{Healthy: true, Shipments: b.Len(), CheckedAt: b.clock.Now()}
	b.modules.Range(func(_ string, m *Module) bool {
		mh := ModuleHealth{Name: m.Name, Version: m.Version, Healthy: true}
		if err := runCheck(ctx, m.check); err != nil {
			mh.Healthy = false
			mh.Error = err.Error()
			h.Healthy = false
		}
		h.Modules = append(h.Modules, mh)
		return true
	})
	if !h.Healthy {
		b.logger.Warn("health check failed", slog.Int("modules", len(h.Modules)))
	}
	return h
}

func runCheck(ctx context.Context, check HealthChecker) (err error) {
	if check == nil {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("health check panicked: %v", r)
		}
	}()
	return check(ctx)
}
