package shipbrain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/litpercolombia-glitch/ASDA3EEEE-sub002/pkg/shipbrain/brain"
	"github.com/litpercolombia-glitch/ASDA3EEEE-sub002/pkg/shipbrain/learning"
	"github.com/litpercolombia-glitch/ASDA3EEEE-sub002/pkg/shipbrain/memory"
	"github.com/litpercolombia-glitch/ASDA3EEEE-sub002/pkg/shipbrain/model"
	"github.com/litpercolombia-glitch/ASDA3EEEE-sub002/pkg/shipbrain/observability"
	"github.com/litpercolombia-glitch/ASDA3EEEE-sub002/pkg/shipbrain/storage"
	"github.com/litpercolombia-glitch/ASDA3EEEE-sub002/pkg/shipbrain/unify"
)

// Snapshot locations written next to the memory and context snapshots.
const (
	LearningNamespace = "learning"
	LearningKey       = "model"
	InsightNamespace  = "insights"
	InsightKey        = "dismissed"
)

// RestoreResult summarizes a Restore call.
type RestoreResult struct {
	MemoryEntries     int  `json:"memoryEntries"`
	Shipments         int  `json:"shipments"`
	Session           bool `json:"session"`
	LearningModel     bool `json:"learningModel"`
	DismissedInsights int  `json:"dismissedInsights"`
}

// Persist writes every snapshot. Each part is attempted; failures are
// joined into the returned error.
func (c *Core) Persist(ctx context.Context) error {
	var errs []error
	if err := c.memory.Persist(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := c.brain.SaveContext(c.store); err != nil {
		errs = append(errs, err)
	}
	if err := c.putJSON(LearningNamespace, LearningKey, c.learner.Model()); err != nil {
		errs = append(errs, err)
	}
	if err := c.putJSON(InsightNamespace, InsightKey, c.insights.Dismissed()); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (c *Core) putJSON(namespace, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", namespace, key, err)
	}
	if err := c.store.Put(namespace, key, data); err != nil {
		observability.LogSnapshotError(c.logger, namespace, "save", err)
		return fmt.Errorf("save %s/%s: %w", namespace, key, err)
	}
	observability.LogSnapshot(c.logger, namespace, len(data))
	return nil
}

// getJSON decodes a snapshot into v. It reports false when nothing was
// saved.
func (c *Core) getJSON(namespace, key string, v any) (bool, error) {
	data, err := c.store.Get(namespace, key)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		observability.LogSnapshotError(c.logger, namespace, "load", err)
		return false, fmt.Errorf("load %s/%s: %w", namespace, key, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("decode %s/%s: %w", namespace, key, err)
	}
	return true, nil
}

// Restore loads the snapshots written by Persist and rebuilds the shipment
// registry from the memory store. Restored shipments emit no lifecycle
// events. Missing snapshots are not errors.
func (c *Core) Restore(ctx context.Context) (RestoreResult, error) {
	var res RestoreResult
	var errs []error

	n, err := c.memory.Restore(ctx)
	if err != nil {
		errs = append(errs, err)
	}
	res.MemoryEntries = n
	res.Shipments = c.restoreShipments(ctx)

	session, ok, err := brain.LoadContext(c.store)
	if err != nil {
		errs = append(errs, err)
	} else if ok {
		c.sessionMu.Lock()
		c.session = &session
		c.sessionMu.Unlock()
		res.Session = true
	}

	var mdl learning.Model
	ok, err = c.getJSON(LearningNamespace, LearningKey, &mdl)
	if err != nil {
		errs = append(errs, err)
	} else if ok {
		c.learner.Load(mdl)
		res.LearningModel = true
	}

	var dismissed []string
	ok, err = c.getJSON(InsightNamespace, InsightKey, &dismissed)
	if err != nil {
		errs = append(errs, err)
	} else if ok {
		c.insights.RestoreDismissed(dismissed)
		res.DismissedInsights = len(dismissed)
	}

	c.logger.Info("restore complete",
		slog.Int("memory_entries", res.MemoryEntries),
		slog.Int("shipments", res.Shipments),
		slog.Bool("session", res.Session),
		slog.Bool("learning_model", res.LearningModel))
	return res, errors.Join(errs...)
}

func (c *Core) restoreShipments(ctx context.Context) int {
	c.ingestMu.Lock()
	defer c.ingestMu.Unlock()

	n := 0
	for _, e := range c.memory.Search(memory.Query{Category: CategoryShipment}) {
		s, err := decodeShipment(e.Data)
		if err != nil || s.ID == "" {
			c.logger.Warn("skipping unreadable shipment snapshot", slog.String("entry_id", e.ID), slog.Any("error", err))
			continue
		}
		c.brain.Register(ctx, s, unify.Change{})
		n++
	}
	return n
}

// decodeShipment accepts a live shipment or the JSON-shaped value an
// imported snapshot holds.
func decodeShipment(data any) (*model.UnifiedShipment, error) {
	if s, ok := data.(*model.UnifiedShipment); ok {
		return s.Clone(), nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	var s model.UnifiedShipment
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// Session returns the operational context loaded by the last Restore.
// The live context is always Context(); the session is what the previous
// process saw when it last persisted.
func (c *Core) Session() (model.OperationalContext, bool) {
	c.sessionMu.Lock()
	defer c.sessionMu.Unlock()
	if c.session == nil {
		return model.OperationalContext{}, false
	}
	return *c.session, true
}
