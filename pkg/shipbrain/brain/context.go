package brain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"math"

	"github.com/litpercolombia-glitch/ASDA3EEEE-sub002/pkg/shipbrain/event"
	"github.com/litpercolombia-glitch/ASDA3EEEE-sub002/pkg/shipbrain/model"
	"github.com/litpercolombia-glitch/ASDA3EEEE-sub002/pkg/shipbrain/observability"
	"github.com/litpercolombia-glitch/ASDA3EEEE-sub002/pkg/shipbrain/storage"
)

// Snapshot location of the operational context.
const (
	ContextNamespace = "context"
	ContextKey       = "session"
)

func (b *Brain) markDirty() {
	b.ctxMu.Lock()
	b.ctxDirty = true
	b.ctxMu.Unlock()
}

// Context returns the operational context, recomputing it if shipments
// changed since the last call.
func (b *Brain) Context() model.OperationalContext {
	b.ctxMu.Lock()
	defer b.ctxMu.Unlock()
	if b.ctxDirty {
		b.opCtx = b.aggregate()
		b.ctxDirty = false
	}
	return cloneContext(b.opCtx)
}

// RefreshContext recomputes the context and emits context.changed.
func (b *Brain) RefreshContext(ctx context.Context) model.OperationalContext {
	b.ctxMu.Lock()
	b.opCtx = b.aggregate()
	b.ctxDirty = false
	out := cloneContext(b.opCtx)
	b.ctxMu.Unlock()

	if _, err := b.emitter.Emit(ctx, event.ContextChanged{Context: cloneContext(out)}, event.WithSource("brain")); err != nil {
		b.logger.Warn("context event dropped", slog.Any("error", err))
	}
	return out
}

func (b *Brain) aggregate() model.OperationalContext {
	b.mu.RLock()
	defer b.mu.RUnlock()

	c := model.OperationalContext{
		TotalShipments: len(b.shipments),
		ByStatus:       make(map[model.Status]int),
		ByCarrier:      make(map[string]int),
		UpdatedAt:      b.clock.Now(),
	}
	for _, s := range b.shipments {
		c.ByStatus[s.CurrentStatus()]++
		if name := s.CarrierName(); name != "" {
			c.ByCarrier[name]++
		}
		if s.IsDelayed {
			c.Delayed++
		}
		if s.HasIssue {
			c.WithIssues++
		}
		if s.CurrentStatus() == model.StatusDelivered {
			c.Delivered++
		}
		if s.CreatedAt.After(c.LastShipmentAt) {
			c.LastShipmentAt = s.CreatedAt
		}
	}
	if c.TotalShipments > 0 {
		c.DeliveryRate = math.Round(float64(c.Delivered)/float64(c.TotalShipments)*1000) / 10
	}
	return c
}

func cloneContext(c model.OperationalContext) model.OperationalContext {
	c.ByStatus = maps.Clone(c.ByStatus)
	c.ByCarrier = maps.Clone(c.ByCarrier)
	return c
}

// SaveContext writes the current operational context as the session blob.
func (b *Brain) SaveContext(st storage.Store) error {
	data, err := json.Marshal(b.Context())
	if err != nil {
		return fmt.Errorf("encode context: %w", err)
	}
	if err := st.Put(ContextNamespace, ContextKey, data); err != nil {
		observability.LogSnapshotError(b.logger, ContextNamespace, "save", err)
		return fmt.Errorf("save context: %w", err)
	}
	observability.LogSnapshot(b.logger, ContextNamespace, len(data))
	return nil
}

// LoadContext reads the last saved session blob. It reports false when
// nothing was saved. The loaded value is returned as is; the live context
// is always derived from the registry.
func LoadContext(st storage.Store) (model.OperationalContext, bool, error) {
	var c model.OperationalContext
	data, err := st.Get(ContextNamespace, ContextKey)
	if errors.Is(err, storage.ErrNotFound) {
		return c, false, nil
	}
	if err != nil {
		return c, false, fmt.Errorf("load context: %w", err)
	}
	if err := json.Unmarshal(data, &c); err != nil {
		return c, false, fmt.Errorf("decode context: %w", err)
	}
	return c, true, nil
}
