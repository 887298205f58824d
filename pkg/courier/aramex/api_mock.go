package aramex

import (
	"context"
	"time"

	"github.com/wasil/courierbridge/pkg/courier"
)

// mockWaybillID is the waybill assigned by the default mock responses.
const mockWaybillID = "ARAMEX12345678"

// MockAPIClient is a mock implementation of APIClient for testing.
type MockAPIClient struct {
	SimulateErrors  bool
	SimulateLatency time.Duration

	OnCreateShipment func(ctx context.Context, req *ShipmentRequest) (*ShipmentResponse, error)
	OnGetLabel       func(ctx context.Context, waybillID string) (*LabelResponse, error)
	OnGetTracking    func(ctx context.Context, waybillID string) (*TrackingResponse, error)
	OnCancelShipment func(ctx context.Context, waybillID, comments string) (*CancelResponse, error)
}

// NewMockAPIClient creates a new mock API client with default behavior.
func NewMockAPIClient() *MockAPIClient {
	return &MockAPIClient{}
}

func (m *MockAPIClient) simulate() error {
	if m.SimulateLatency > 0 {
		time.Sleep(m.SimulateLatency)
	}
	if m.SimulateErrors {
		return courier.NewAPIError(courierCode, "MOCK_ERROR", "Simulated API error")
	}
	return nil
}

// CreateShipment returns a mock waybill with a hosted label URL.
func (m *MockAPIClient) CreateShipment(ctx context.Context, req *ShipmentRequest) (*ShipmentResponse, error) {
	if err := m.simulate(); err != nil {
		return nil, err
	}
	if m.OnCreateShipment != nil {
		return m.OnCreateShipment(ctx, req)
	}

	return &ShipmentResponse{
		WaybillID: mockWaybillID,
		LabelURL:  "https://labels.aramex.example.com/" + mockWaybillID + ".pdf",
		Raw:       []byte("<ShipmentCreationResponse/>"),
	}, nil
}

// GetLabel returns a mock hosted label URL.
func (m *MockAPIClient) GetLabel(ctx context.Context, waybillID string) (*LabelResponse, error) {
	if err := m.simulate(); err != nil {
		return nil, err
	}
	if m.OnGetLabel != nil {
		return m.OnGetLabel(ctx, waybillID)
	}

	return &LabelResponse{
		WaybillID: waybillID,
		LabelURL:  "https://labels.aramex.example.com/" + waybillID + ".pdf",
		Raw:       []byte("<LabelPrintingResponse/>"),
	}, nil
}

// GetTracking returns a mock tracking response with a two-update history,
// most recent first.
func (m *MockAPIClient) GetTracking(ctx context.Context, waybillID string) (*TrackingResponse, error) {
	if err := m.simulate(); err != nil {
		return nil, err
	}
	if m.OnGetTracking != nil {
		return m.OnGetTracking(ctx, waybillID)
	}

	now := time.Now().UTC()
	return &TrackingResponse{
		WaybillID: waybillID,
		Updates: []TrackingUpdate{
			{
				UpdateCode:        "SH005",
				UpdateDescription: "Shipment picked up",
				UpdateLocation:    "Riyadh",
				UpdateDateTime:    now.Add(-24 * time.Hour).Format(time.RFC3339),
			},
			{
				UpdateCode:        "SH001",
				UpdateDescription: "Record created",
				UpdateLocation:    "Riyadh",
				UpdateDateTime:    now.Add(-48 * time.Hour).Format(time.RFC3339),
			},
		},
		Raw: []byte("<ShipmentTrackingResponse/>"),
	}, nil
}

// CancelShipment reports a successful mock cancellation.
func (m *MockAPIClient) CancelShipment(ctx context.Context, waybillID, comments string) (*CancelResponse, error) {
	if err := m.simulate(); err != nil {
		return nil, err
	}
	if m.OnCancelShipment != nil {
		return m.OnCancelShipment(ctx, waybillID, comments)
	}

	return &CancelResponse{
		Success: true,
		Message: "Shipment cancelled successfully",
		Raw:     []byte("<ShipmentCancellationResponse/>"),
	}, nil
}

var _ APIClient = (*MockAPIClient)(nil)
