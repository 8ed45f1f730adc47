// Package pattern detects recurring conditions across the shipment
// population.
//
// Detection is pull-based: Analyze scans the full set it is given and
// returns a fresh list every time. Each rule declares a minimum sample and is
// skipped below it. Confidence values are sample-size heuristics that grow
// with the number of observations and stop at a per-rule cap. They are not
// calibrated probabilities.
package pattern

import (
	"cmp"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/litpercolombia-glitch/ASDA3EEEE-sub002/pkg/shipbrain/clock"
	"github.com/litpercolombia-glitch/ASDA3EEEE-sub002/pkg/shipbrain/model"
	"github.com/litpercolombia-glitch/ASDA3EEEE-sub002/pkg/shipbrain/observability"
	"github.com/litpercolombia-glitch/ASDA3EEEE-sub002/pkg/shipbrain/unify"
)

// Thresholds tunes the detection rules.
type Thresholds struct {
	CarrierDelayRate     float64
	CarrierMinSample     int
	DestinationIssueRate float64
	DestinationMinSample int
	WeekdayMinSample     int
	StalledAfter         time.Duration
	ReturnRate           float64
	ProductMinSample     int
	OrderHourMinSample   int
	OrderHourMinBucket   int
}

// DefaultThresholds returns the standard rule thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{
		CarrierDelayRate:     0.30,
		CarrierMinSample:     5,
		DestinationIssueRate: 0.25,
		DestinationMinSample: 3,
		WeekdayMinSample:     10,
		StalledAfter:         72 * time.Hour,
		ReturnRate:           0.20,
		ProductMinSample:     3,
		OrderHourMinSample:   10,
		OrderHourMinBucket:   3,
	}
}

// Detector runs the pattern rules.
type Detector struct {
	thresholds Thresholds
	clock      clock.Clock
	logger     *slog.Logger
}

// Option configures a Detector.
type Option func(*Detector)

// WithThresholds replaces the default thresholds.
func WithThresholds(t Thresholds) Option {
	return func(d *Detector) { d.thresholds = t }
}

// WithClock sets the clock used for stall detection and timestamps.
func WithClock(c clock.Clock) Option {
	return func(d *Detector) { d.clock = c }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Detector) { d.logger = l }
}

// NewDetector creates a detector.
func NewDetector(opts ...Option) *Detector {
	d := &Detector{thresholds: DefaultThresholds()}
	for _, opt := range opts {
		opt(d)
	}
	d.clock = clock.OrSystem(d.clock)
	d.logger = observability.ComponentLogger(d.logger, "pattern")
	return d
}

type rule struct {
	name string
	run  func(*Detector, []*model.UnifiedShipment, time.Time) []model.DetectedPattern
}

var rules = []rule{
	{"carrier_delay", (*Detector).carrierDelay},
	{"destination_issue", (*Detector).destinationIssue},
	{"delivery_weekday", (*Detector).deliveryWeekday},
	{"stalled", (*Detector).stalled},
	{"high_return_product", (*Detector).highReturnProduct},
	{"optimal_order_hour", (*Detector).optimalOrderHour},
}

// Analyze runs every rule over shipments and returns the detected patterns,
// highest confidence first.
func (d *Detector) Analyze(shipments []*model.UnifiedShipment) []model.DetectedPattern {
	now := d.clock.Now()
	var out []model.DetectedPattern
	for _, r := range rules {
		found := r.run(d, shipments, now)
		d.logger.Debug("pattern rule evaluated", slog.String("rule", r.name), slog.Int("found", len(found)))
		out = append(out, found...)
	}
	slices.SortStableFunc(out, func(a, b model.DetectedPattern) int {
		if c := cmp.Compare(b.Confidence, a.Confidence); c != 0 {
			return c
		}
		return cmp.Compare(a.Type, b.Type)
	})
	return out
}

// Confidence is min(cap, base + n*step).
func Confidence(n int, base, step, ceiling float64) float64 {
	return math.Min(ceiling, base+float64(n)*step)
}

func newPattern(t model.PatternType, now time.Time) model.DetectedPattern {
	return model.DetectedPattern{ID: uuid.NewString(), Type: t, DetectedAt: now}
}

// percent rounds a ratio to a one-decimal percentage.
func percent(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(part)/float64(total)*1000) / 10
}

// group counts shipments per key, keeping the first spelling seen as label.
type group struct {
	label string
	total int
	hits  int
}

func tally(shipments []*model.UnifiedShipment, key func(*model.UnifiedShipment) (string, string), hit func(*model.UnifiedShipment) bool) []*group {
	byKey := make(map[string]*group)
	var order []*group
	for _, s := range shipments {
		k, label := key(s)
		if k == "" {
			continue
		}
		g, ok := byKey[k]
		if !ok {
			g = &group{label: label}
			byKey[k] = g
			order = append(order, g)
		}
		g.total++
		if hit(s) {
			g.hits++
		}
	}
	return order
}

func (d *Detector) carrierDelay(shipments []*model.UnifiedShipment, now time.Time) []model.DetectedPattern {
	th := d.thresholds
	groups := tally(shipments,
		func(s *model.UnifiedShipment) (string, string) { return s.CarrierName(), s.CarrierName() },
		func(s *model.UnifiedShipment) bool { return s.IsDelayed })

	var out []model.DetectedPattern
	for _, g := range groups {
		if g.total < th.CarrierMinSample {
			continue
		}
		rate := float64(g.hits) / float64(g.total)
		if rate < th.CarrierDelayRate {
			continue
		}
		p := newPattern(model.PatternCarrierDelay, now)
		p.Confidence = Confidence(g.total, 60, 2, 95)
		p.Occurrences = g.hits
		p.Description = fmt.Sprintf("%s delays %.1f%% of its shipments (%d of %d)", g.label, percent(g.hits, g.total), g.hits, g.total)
		p.Data = map[string]any{"carrier": g.label, "total": g.total, "delayed": g.hits, "delayRate": percent(g.hits, g.total)}
		p.Actionable = true
		p.SuggestedAction = fmt.Sprintf("Review service levels with %s or move volume to a faster carrier", g.label)
		out = append(out, p)
	}
	return out
}

func (d *Detector) destinationIssue(shipments []*model.UnifiedShipment, now time.Time) []model.DetectedPattern {
	th := d.thresholds
	groups := tally(shipments,
		func(s *model.UnifiedShipment) (string, string) {
			city := s.DestinationCity()
			return unify.NormalizeCity(city), city
		},
		func(s *model.UnifiedShipment) bool { return s.HasIssue || s.HadIssue })

	var out []model.DetectedPattern
	for _, g := range groups {
		if g.total < th.DestinationMinSample {
			continue
		}
		rate := float64(g.hits) / float64(g.total)
		if rate < th.DestinationIssueRate {
			continue
		}
		p := newPattern(model.PatternDestinationIssue, now)
		p.Confidence = Confidence(g.total, 55, 3, 90)
		p.Occurrences = g.hits
		p.Description = fmt.Sprintf("%.1f%% of shipments to %s report issues", percent(g.hits, g.total), g.label)
		p.Data = map[string]any{"city": g.label, "total": g.total, "issues": g.hits, "issueRate": percent(g.hits, g.total)}
		p.Actionable = true
		p.SuggestedAction = fmt.Sprintf("Confirm addresses and phone numbers before dispatching to %s", g.label)
		out = append(out, p)
	}
	return out
}

// deliveryWeekday reports the weekdays with the most and the fewest
// deliveries. It needs deliveries on at least two distinct weekdays.
func (d *Detector) deliveryWeekday(shipments []*model.UnifiedShipment, now time.Time) []model.DetectedPattern {
	var counts [7]int
	total := 0
	for _, s := range shipments {
		if s.CurrentStatus() != model.StatusDelivered || s.DeliveredAt == nil {
			continue
		}
		counts[s.DeliveredAt.Weekday()]++
		total++
	}
	if total < d.thresholds.WeekdayMinSample {
		return nil
	}

	best, worst := -1, -1
	for day, n := range counts {
		if n == 0 {
			continue
		}
		if best < 0 || n > counts[best] {
			best = day
		}
		if worst < 0 || n < counts[worst] {
			worst = day
		}
	}
	if best == worst {
		return nil
	}

	conf := Confidence(total, 50, 1, 85)
	bp := newPattern(model.PatternBestDeliveryDay, now)
	bp.Confidence = conf
	bp.Occurrences = counts[best]
	bp.Description = fmt.Sprintf("%s concentrates %.1f%% of deliveries", time.Weekday(best), percent(counts[best], total))
	bp.Data = map[string]any{"weekday": time.Weekday(best).String(), "deliveries": counts[best], "total": total, "share": percent(counts[best], total)}

	wp := newPattern(model.PatternWorstDeliveryDay, now)
	wp.Confidence = conf
	wp.Occurrences = counts[worst]
	wp.Description = fmt.Sprintf("%s has the fewest deliveries (%.1f%%)", time.Weekday(worst), percent(counts[worst], total))
	wp.Data = map[string]any{"weekday": time.Weekday(worst).String(), "deliveries": counts[worst], "total": total, "share": percent(counts[worst], total)}
	wp.Actionable = true
	wp.SuggestedAction = fmt.Sprintf("Avoid promising %s deliveries to customers", time.Weekday(worst))
	return []model.DetectedPattern{bp, wp}
}

// stalled reports non-terminal shipments with no source activity for longer
// than the stall threshold. Recomputed fields do not count as activity.
func (d *Detector) stalled(shipments []*model.UnifiedShipment, now time.Time) []model.DetectedPattern {
	cutoff := now.Add(-d.thresholds.StalledAfter)
	var ids []string
	for _, s := range shipments {
		if s.CurrentStatus().IsTerminal() {
			continue
		}
		if s.LastActivity().Before(cutoff) {
			ids = append(ids, s.ID)
		}
	}
	if len(ids) == 0 {
		return nil
	}
	slices.Sort(ids)

	hours := int(d.thresholds.StalledAfter.Hours())
	p := newPattern(model.PatternStalledShipments, now)
	p.Confidence = Confidence(len(ids), 70, 5, 95)
	p.Occurrences = len(ids)
	p.Description = fmt.Sprintf("%d shipments have not moved in over %d hours", len(ids), hours)
	p.Data = map[string]any{"shipmentIds": ids, "thresholdHours": hours}
	p.Actionable = true
	p.SuggestedAction = "Open a claim with the carrier for each stalled shipment"
	return []model.DetectedPattern{p}
}

func (d *Detector) highReturnProduct(shipments []*model.UnifiedShipment, now time.Time) []model.DetectedPattern {
	th := d.thresholds
	var completed []*model.UnifiedShipment
	for _, s := range shipments {
		if s.CurrentStatus().IsCompleted() {
			completed = append(completed, s)
		}
	}
	groups := tally(completed,
		func(s *model.UnifiedShipment) (string, string) { return s.ProductName(), s.ProductName() },
		func(s *model.UnifiedShipment) bool { return s.CurrentStatus() == model.StatusReturned })

	var out []model.DetectedPattern
	for _, g := range groups {
		if g.total < th.ProductMinSample {
			continue
		}
		if float64(g.hits)/float64(g.total) < th.ReturnRate {
			continue
		}
		p := newPattern(model.PatternHighReturnProduct, now)
		p.Confidence = Confidence(g.total, 55, 3, 90)
		p.Occurrences = g.hits
		p.Description = fmt.Sprintf("%s is returned in %.1f%% of completed orders", g.label, percent(g.hits, g.total))
		p.Data = map[string]any{"product": g.label, "total": g.total, "returned": g.hits, "returnRate": percent(g.hits, g.total)}
		p.Actionable = true
		p.SuggestedAction = fmt.Sprintf("Confirm %s orders with the customer before shipping", g.label)
		out = append(out, p)
	}
	return out
}

// optimalOrderHour finds the order creation hour whose shipments are
// delivered fastest on average.
func (d *Detector) optimalOrderHour(shipments []*model.UnifiedShipment, now time.Time) []model.DetectedPattern {
	th := d.thresholds
	var sum [24]float64
	var n [24]int
	total := 0
	for _, s := range shipments {
		if s.OrderCreatedAt.IsZero() {
			continue
		}
		days, ok := s.DeliveryDays()
		if !ok {
			continue
		}
		h := s.OrderCreatedAt.Hour()
		sum[h] += days
		n[h]++
		total++
	}
	if total < th.OrderHourMinSample {
		return nil
	}

	best := -1
	var bestAvg float64
	for h := range 24 {
		if n[h] < th.OrderHourMinBucket {
			continue
		}
		avg := sum[h] / float64(n[h])
		if best < 0 || avg < bestAvg {
			best, bestAvg = h, avg
		}
	}
	if best < 0 {
		return nil
	}

	p := newPattern(model.PatternOptimalOrderHour, now)
	p.Confidence = Confidence(n[best], 50, 2, 80)
	p.Occurrences = n[best]
	p.Description = fmt.Sprintf("Orders placed at %02d:00 arrive in %.1f days on average", best, bestAvg)
	p.Data = map[string]any{"hour": best, "avgDeliveryDays": math.Round(bestAvg*10) / 10, "samples": n[best], "total": total}
	p.Actionable = true
	p.SuggestedAction = fmt.Sprintf("Schedule dispatch cut-off around %02d:00", best)
	return []model.DetectedPattern{p}
}
