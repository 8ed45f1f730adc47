package model

import "time"

// TrackingEvent is one carrier scan reported by a tracking feed.
type TrackingEvent struct {
	Timestamp   time.Time `json:"timestamp"`
	Description string    `json:"description"`
	Location    string    `json:"location,omitempty"`
	Status      string    `json:"status,omitempty"`
}

// TrackingRecord is a normalized payload from a carrier tracking feed.
type TrackingRecord struct {
	TrackingNumber string          `json:"trackingNumber"`
	Carrier        string          `json:"carrier"`
	Status         string          `json:"status"`
	LastUpdate     time.Time       `json:"lastUpdate"`
	Location       string          `json:"location,omitempty"`
	Origin         string          `json:"origin,omitempty"`
	Destination    string          `json:"destination,omitempty"`
	Events         []TrackingEvent `json:"events,omitempty"`
}

// Customer is the order recipient.
type Customer struct {
	Name       string `json:"name"`
	Phone      string `json:"phone,omitempty"`
	Email      string `json:"email,omitempty"`
	Address    string `json:"address"`
	City       string `json:"city"`
	Department string `json:"department,omitempty"`
}

// Product is the ordered item.
type Product struct {
	Name     string  `json:"name"`
	Quantity int     `json:"quantity"`
	Value    float64 `json:"value"`
}

// OrderRecord is a normalized payload from an order feed.
type OrderRecord struct {
	OrderNumber    string    `json:"orderNumber"`
	TrackingNumber string    `json:"trackingNumber,omitempty"`
	Carrier        string    `json:"carrier,omitempty"`
	Customer       Customer  `json:"customer"`
	Product        Product   `json:"product"`
	CreatedAt      time.Time `json:"createdAt"`
}

// Place is an origin or destination.
type Place struct {
	City       string `json:"city"`
	Department string `json:"department,omitempty"`
	Address    string `json:"address,omitempty"`
}
