package model

import "time"

// PatternType names a pattern detection rule.
type PatternType string

// Pattern types.
const (
	PatternCarrierDelay      PatternType = "carrier_delay"
	PatternDestinationIssue  PatternType = "destination_issue"
	PatternBestDeliveryDay   PatternType = "best_delivery_day"
	PatternWorstDeliveryDay  PatternType = "worst_delivery_day"
	PatternStalledShipments  PatternType = "stalled_shipments"
	PatternHighReturnProduct PatternType = "high_return_product"
	PatternOptimalOrderHour  PatternType = "optimal_order_hour"
)

// DetectedPattern is a heuristically detected recurring condition.
// Confidence is a sample-size heuristic, not a calibrated probability.
type DetectedPattern struct {
	ID              string         `json:"id"`
	Type            PatternType    `json:"type"`
	Description     string         `json:"description"`
	Confidence      float64        `json:"confidence"`
	Occurrences     int            `json:"occurrences"`
	Data            map[string]any `json:"data,omitempty"`
	Actionable      bool           `json:"actionable"`
	SuggestedAction string         `json:"suggestedAction,omitempty"`
	DetectedAt      time.Time      `json:"detectedAt"`
}

// InsightType names an insight generator.
type InsightType string

// Insight types.
const (
	InsightPerformanceSummary     InsightType = "performance_summary"
	InsightBestCarrier            InsightType = "best_carrier"
	InsightAtRiskShipments        InsightType = "at_risk_shipments"
	InsightWeeklyTrend            InsightType = "weekly_trend"
	InsightImprovementOpportunity InsightType = "improvement_opportunity"
	InsightDeliveryMilestone      InsightType = "delivery_milestone"
)

// Insight is a higher-level summary synthesized from the shipment population.
type Insight struct {
	ID          string         `json:"id"`
	Type        InsightType    `json:"type"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Priority    int            `json:"priority"`
	Data        map[string]any `json:"data,omitempty"`
	GeneratedAt time.Time      `json:"generatedAt"`
}

// Prediction is the output of one learning model.
// Confidence is a heuristic in 0–100, not a calibrated probability.
type Prediction struct {
	Value      float64  `json:"value"`
	Confidence float64  `json:"confidence"`
	Factors    []string `json:"factors"`
	ModelUsed  string   `json:"modelUsed"`
}

// ShipmentPrediction bundles the per-model predictions for one shipment.
type ShipmentPrediction struct {
	ShipmentID   string     `json:"shipmentId"`
	DeliveryDays Prediction `json:"deliveryDays"`
	SuccessRate  Prediction `json:"successRate"`
	IssueRate    Prediction `json:"issueRate"`
	Trained      bool       `json:"trained"`
}

// OperationalContext aggregates the registry for dashboards and rules.
type OperationalContext struct {
	TotalShipments int            `json:"totalShipments"`
	ByStatus       map[Status]int `json:"byStatus"`
	ByCarrier      map[string]int `json:"byCarrier"`
	Delayed        int            `json:"delayed"`
	WithIssues     int            `json:"withIssues"`
	Delivered      int            `json:"delivered"`
	DeliveryRate   float64        `json:"deliveryRate"`
	LastShipmentAt time.Time      `json:"lastShipmentAt,omitempty"`
	UpdatedAt      time.Time      `json:"updatedAt"`
}

// AnalysisReport is the output of one full analysis run over the registry.
type AnalysisReport struct {
	Shipments       int                `json:"shipments"`
	Patterns        []DetectedPattern  `json:"patterns"`
	Insights        []Insight          `json:"insights"`
	Trained         bool               `json:"trained"`
	LearningSamples int                `json:"learningSamples"`
	Context         OperationalContext `json:"context"`
	Duration        time.Duration      `json:"durationNs"`
	GeneratedAt     time.Time          `json:"generatedAt"`
}
