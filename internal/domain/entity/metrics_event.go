package entity

// MetricsCategoryNetwork is the event category used for network lifecycle
// analytics.
const MetricsCategoryNetwork = "Network"

// EventCustomNetworkAdded is emitted the first time a custom network is
// inserted into the registry.
const EventCustomNetworkAdded = "Custom Network Added"

// MetricsReferrer identifies the surface that initiated a tracked action.
type MetricsReferrer struct {
	URL string `json:"url"`
}

// MetricsEvent is the payload handed to the analytics sink. The sink itself
// is external; only this shape is part of the contract.
type MetricsEvent struct {
	Event      string          `json:"event"`
	Category   string          `json:"category"`
	Referrer   MetricsReferrer `json:"referrer"`
	Properties map[string]any  `json:"properties,omitempty"`
}
