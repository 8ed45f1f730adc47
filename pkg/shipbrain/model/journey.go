package model

import "time"

// JourneyStep is one stop of a shipment journey.
type JourneyStep struct {
	Status      Status        `json:"status"`
	Description string        `json:"description"`
	Location    string        `json:"location,omitempty"`
	Source      Source        `json:"source"`
	EnteredAt   time.Time     `json:"enteredAt"`
	Dwell       time.Duration `json:"dwellNs"`
}

// Journey is the ordered timeline of a shipment with time spent per step.
type Journey struct {
	ShipmentID     string        `json:"shipmentId"`
	TrackingNumber string        `json:"trackingNumber,omitempty"`
	Steps          []JourneyStep `json:"steps"`
	CurrentStatus  Status        `json:"currentStatus"`
	TotalDuration  time.Duration `json:"totalDurationNs"`
	Completed      bool          `json:"completed"`
	BuiltAt        time.Time     `json:"builtAt"`
}
