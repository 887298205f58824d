// Package courier provides an abstraction layer for courier providers.
package courier

import (
	"context"
)

// Courier defines the interface that all courier providers must implement.
type Courier interface {
	// Code returns the provider identifier (e.g., "smsa", "aramex").
	Code() string

	// CreateWaybill creates a shipment with the provider and returns the
	// provider-assigned waybill.
	CreateWaybill(ctx context.Context, req *WaybillRequest) (*Waybill, error)

	// PrintWaybillLabel retrieves the shipping label for a waybill. The
	// label is either inline bytes or a hosted URL depending on the
	// provider; callers must handle both shapes.
	PrintWaybillLabel(ctx context.Context, waybillID string) (*Label, error)

	// TrackShipment retrieves the current status and event history for a
	// waybill, normalized to canonical statuses.
	TrackShipment(ctx context.Context, waybillID string) (*TrackingInfo, error)

	// CancelShipment requests cancellation of a waybill. Providers that do
	// not support cancellation return ErrCancellationNotSupported; a
	// provider-side refusal is reported as CancelFailed, not an error.
	CancelShipment(ctx context.Context, waybillID string) (*CancelResult, error)

	// MapStatus maps a provider status string to the canonical enum.
	// Lookup is case-insensitive; unmapped input yields StatusUnknown.
	MapStatus(courierStatus string) ShipmentStatus
}
