package brain

import (
	"context"
	"log/slog"

	"github.com/litpercolombia-glitch/ASDA3EEEE-sub002/pkg/shipbrain/event"
	"github.com/litpercolombia-glitch/ASDA3EEEE-sub002/pkg/shipbrain/model"
)

// BuildJourney assembles the ordered timeline of a shipment and emits
// journey.built. Consecutive events with the same status collapse into one
// step. A step's dwell runs until the next step, or until delivery or now
// for the last one.
func (b *Brain) BuildJourney(ctx context.Context, id string) (*model.Journey, error) {
	s, err := b.Get(id)
	if err != nil {
		return nil, err
	}
	now := b.clock.Now()

	j := &model.Journey{
		ShipmentID:     s.ID,
		TrackingNumber: s.TrackingNumber,
		CurrentStatus:  s.CurrentStatus(),
		Completed:      s.CurrentStatus().IsTerminal(),
		BuiltAt:        now,
	}
	for _, e := range s.Events {
		if n := len(j.Steps); n > 0 && j.Steps[n-1].Status == e.Status {
			continue
		}
		j.Steps = append(j.Steps, model.JourneyStep{
			Status:      e.Status,
			Description: e.Description,
			Location:    e.Location,
			Source:      e.Source,
			EnteredAt:   e.Timestamp,
		})
	}

	end := now
	if s.DeliveredAt != nil {
		end = *s.DeliveredAt
	}
	for i := range j.Steps {
		next := end
		if i+1 < len(j.Steps) {
			next = j.Steps[i+1].EnteredAt
		}
		if j.Completed && i == len(j.Steps)-1 {
			// Terminal steps have no dwell.
			next = j.Steps[i].EnteredAt
		}
		if d := next.Sub(j.Steps[i].EnteredAt); d > 0 {
			j.Steps[i].Dwell = d
		}
	}
	if len(j.Steps) > 0 {
		last := j.Steps[len(j.Steps)-1].EnteredAt
		if !j.Completed {
			last = now
		}
		if d := last.Sub(j.Steps[0].EnteredAt); d > 0 {
			j.TotalDuration = d
		}
	}

	if _, err := b.emitter.Emit(ctx, event.JourneyBuilt{Journey: j}, event.WithSource("brain")); err != nil {
		b.logger.Warn("journey event dropped", slog.String("shipment_id", id), slog.Any("error", err))
	}
	return j, nil
}
