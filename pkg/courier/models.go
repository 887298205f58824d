package courier

import (
	"encoding/json"
	"time"
)

// ShipmentStatus represents the canonical status of a shipment,
// independent of any provider's vocabulary.
type ShipmentStatus string

const (
	StatusPending           ShipmentStatus = "pending"
	StatusPickedUp          ShipmentStatus = "picked_up"
	StatusInTransit         ShipmentStatus = "in_transit"
	StatusOutForDelivery    ShipmentStatus = "out_for_delivery"
	StatusDelivered         ShipmentStatus = "delivered"
	StatusAttemptedDelivery ShipmentStatus = "attempted_delivery"
	StatusFailed            ShipmentStatus = "failed"
	StatusReturned          ShipmentStatus = "returned"
	StatusCancelled         ShipmentStatus = "cancelled"
	StatusUnknown           ShipmentStatus = "unknown"
)

// TerminalStatuses are statuses after which no further tracking updates
// are expected.
var TerminalStatuses = []ShipmentStatus{
	StatusDelivered,
	StatusReturned,
	StatusCancelled,
}

// IsTerminal reports whether no further tracking updates are expected.
func (s ShipmentStatus) IsTerminal() bool {
	for _, t := range TerminalStatuses {
		if s == t {
			return true
		}
	}
	return false
}

// CancelStatus is the outcome of a cancellation request.
type CancelStatus string

const (
	CancelSucceeded CancelStatus = "cancelled"
	CancelFailed    CancelStatus = "cancellation_failed"
)

// WaybillRequest is the canonical field set for creating a waybill.
// Each adapter translates it to the provider's wire format.
type WaybillRequest struct {
	ReferenceNumber    string
	CustomerName       string
	CustomerID         string
	ShippingDate       time.Time
	DestinationCountry string
	DestinationCity    string
	PostalCode         string
	POBox              string
	AddressLine1       string
	AddressLine2       string
	PhoneNumber        string
	AlternativePhone   string
	Email              string
	PackageCount       int
	Weight             float64
	Description        string
	CODAmount          float64
	Currency           string
}

// Waybill is the normalized result of a successful waybill creation.
type Waybill struct {
	WaybillID        string
	TrackingURL      string
	Status           string // always "created" on success
	CourierReference string
	Raw              json.RawMessage
}

// Label is a shipping label in one of two valid shapes: inline bytes or
// a provider-hosted URL.
type Label struct {
	Data []byte
	URL  string
}

// Inline reports whether the label carries raw bytes.
func (l *Label) Inline() bool { return len(l.Data) > 0 }

// Hosted reports whether the label is a URL reference.
func (l *Label) Hosted() bool { return l.URL != "" }

// TrackingEvent is one normalized tracking event.
type TrackingEvent struct {
	CourierStatus string // raw provider status string
	Status        ShipmentStatus
	Location      string
	Timestamp     time.Time
	Description   string
	Raw           json.RawMessage
}

// TrackingInfo is the normalized result of a tracking query. History is
// time-ordered and may be empty when the provider does not expose it.
type TrackingInfo struct {
	WaybillID       string
	CurrentStatus   ShipmentStatus
	CurrentLocation string
	Timestamp       time.Time
	History         []TrackingEvent
	Raw             json.RawMessage
}

// CancelResult is the normalized result of a cancellation request.
type CancelResult struct {
	WaybillID string
	Status    CancelStatus
	Message   string
	Raw       json.RawMessage
}
