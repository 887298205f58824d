package aramex

import (
	"context"
)

// APIClient defines the interface for ARAMEX Shipping API operations.
// This abstraction allows for mock implementations during testing and
// real SOAP implementations in production.
type APIClient interface {
	// CreateShipment creates a shipment and returns the assigned waybill
	// with a hosted label URL.
	CreateShipment(ctx context.Context, req *ShipmentRequest) (*ShipmentResponse, error)

	// GetLabel retrieves the hosted label URL for an existing waybill.
	GetLabel(ctx context.Context, waybillID string) (*LabelResponse, error)

	// GetTracking retrieves the tracking updates for a waybill.
	GetTracking(ctx context.Context, waybillID string) (*TrackingResponse, error)

	// CancelShipment requests cancellation of a waybill. A provider-side
	// refusal is reported on the response, not as an error.
	CancelShipment(ctx context.Context, waybillID, comments string) (*CancelResponse, error)
}

// ============================================================================
// API Request/Response Types (match the ARAMEX SOAP document structure)
// ============================================================================

// ClientInfo is the authentication block carried in every request body.
type ClientInfo struct {
	UserName           string
	Password           string
	Version            string
	AccountNumber      string
	AccountPin         string
	AccountEntity      string
	AccountCountryCode string
}

// Party is the shipper or consignee block of a shipment request.
type Party struct {
	Name        string
	CompanyName string
	Line1       string
	Line2       string
	City        string
	PostCode    string
	POBox       string
	CountryCode string
	PhoneNumber string
	CellPhone   string
	Email       string
}

// ShipmentDetails carries package-level attributes.
type ShipmentDetails struct {
	NumberOfPieces     int
	ActualWeight       float64
	WeightUnit         string // "KG"
	DescriptionOfGoods string
	ProductGroup       string // "DOM" or "EXP"
	ProductType        string
	PaymentType        string
	CODAmount          float64
	CODCurrencyCode    string
	ShippingDateTime   string
}

// ShipmentRequest is the CreateShipments request body.
type ShipmentRequest struct {
	Reference string
	Consignee Party
	Details   ShipmentDetails
}

// Notification is one provider error or warning entry.
type Notification struct {
	Code    string
	Message string
}

// ShipmentResponse is the CreateShipments result. The waybill id comes
// from the processed shipment's ID element; the label is hosted.
type ShipmentResponse struct {
	WaybillID     string
	LabelURL      string
	Notifications []Notification

	Raw []byte
}

// LabelResponse is the PrintLabel result.
type LabelResponse struct {
	WaybillID string
	LabelURL  string

	Raw []byte
}

// TrackingUpdate is a single ARAMEX tracking result entry.
type TrackingUpdate struct {
	UpdateCode        string
	UpdateDescription string
	UpdateLocation    string
	UpdateDateTime    string
	Comments          string
}

// TrackingResponse is the TrackShipments result. Updates are ordered
// most recent first, matching the provider.
type TrackingResponse struct {
	WaybillID string
	Updates   []TrackingUpdate

	Raw []byte
}

// CancelResponse is the CancelShipment result. A false Success flag is a
// provider-side refusal, not a transport error.
type CancelResponse struct {
	Success bool
	Message string

	Raw []byte
}
