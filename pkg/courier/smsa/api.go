package smsa

import (
	"context"
	"encoding/json"
)

// APIClient defines the interface for SMSA API operations. This
// abstraction allows for mock implementations during testing and real
// implementations in production.
type APIClient interface {
	// CreateShipment submits a new shipment and returns the assigned waybill.
	CreateShipment(ctx context.Context, req *ShipmentRequest) (*ShipmentResponse, error)

	// GetLabel retrieves the waybill label as raw PDF bytes.
	GetLabel(ctx context.Context, awbNo string) ([]byte, error)

	// GetTracking retrieves tracking information for a waybill.
	GetTracking(ctx context.Context, awbNo string) (*TrackingResponse, error)

	// CancelShipment requests cancellation of a waybill.
	CancelShipment(ctx context.Context, awbNo, reason string) (*CancelResponse, error)
}

// ============================================================================
// API Request/Response Types (match the SMSA REST/JSON API structure)
// ============================================================================

// ShipmentRequest is the flat createShipment body. Field names are
// dictated by the provider.
type ShipmentRequest struct {
	PassKey  string  `json:"passKey"`
	RefNo    string  `json:"refNo"`
	SentDate string  `json:"sentDate"`
	IDNo     string  `json:"idNo"`
	CName    string  `json:"cName"`
	Cntry    string  `json:"cntry"`
	CCity    string  `json:"cCity"`
	CZip     string  `json:"cZip"`
	CPOBox   string  `json:"cPOBox"`
	CMobile  string  `json:"cMobile"`
	CTel1    string  `json:"cTel1"`
	CAddr1   string  `json:"cAddr1"`
	CAddr2   string  `json:"cAddr2"`
	ShipType string  `json:"shipType"`
	PCs      int     `json:"PCs"`
	CEmail   string  `json:"cEmail"`
	Weight   float64 `json:"weight"`
	ItemDesc string  `json:"itemDesc"`
}

// ShipmentResponse is the createShipment result, keyed by "sawb".
type ShipmentResponse struct {
	Sawb    string `json:"sawb"`
	Success bool   `json:"success"`
	Message string `json:"message"`

	Raw json.RawMessage `json:"-"`
}

// TrackingResponse is the getTracking result.
type TrackingResponse struct {
	AwbNo    string          `json:"awbNo"`
	Status   string          `json:"status"`
	Location string          `json:"location"`
	Date     string          `json:"date"`
	History  []TrackingEvent `json:"history"`

	Raw json.RawMessage `json:"-"`
}

// TrackingEvent is a single provider tracking event.
type TrackingEvent struct {
	Activity string `json:"activity"`
	Location string `json:"location"`
	Date     string `json:"date"`
}

// CancelResponse is the cancelShipment result. A false success flag is a
// provider-side refusal, not a transport error.
type CancelResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`

	Raw json.RawMessage `json:"-"`
}
