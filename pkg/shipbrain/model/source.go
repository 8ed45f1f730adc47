package model

import "time"

// Source identifies where a field value came from.
type Source string

// Data sources.
const (
	SourceTracking Source = "TRACKING"
	SourceOrder    Source = "ORDER"
	SourceManual   Source = "MANUAL"
	SourceSystem   Source = "SYSTEM"
)

// SourcedData carries one field value together with its provenance.
// It is replaced wholesale when a better value arrives, never edited.
type SourcedData[T any] struct {
	Value      T         `json:"value"`
	Source     Source    `json:"source"`
	Timestamp  time.Time `json:"timestamp"`
	Confidence float64   `json:"confidence"`
}

// Sourced builds a SourcedData value.
func Sourced[T any](value T, source Source, ts time.Time, confidence float64) *SourcedData[T] {
	return &SourcedData[T]{
		Value:      value,
		Source:     source,
		Timestamp:  ts,
		Confidence: confidence,
	}
}
