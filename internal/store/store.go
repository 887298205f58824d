// Package store provides the durable record store for couriers,
// shipments, and tracking history.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/wasil/courierbridge/pkg/courier"
)

var (
	// ErrCourierInUse is returned when deleting a courier that shipments
	// still reference.
	ErrCourierInUse = errors.New("courier is referenced by shipments")

	// ErrDuplicateReference is returned when a shipment reference number
	// already exists.
	ErrDuplicateReference = errors.New("reference number already exists")

	// ErrDuplicateCourier is returned when a courier code already exists.
	ErrDuplicateCourier = errors.New("courier code already exists")
)

// Courier is a registered shipping provider.
type Courier struct {
	ID                   int64             `json:"id"`
	Code                 string            `json:"code"`
	Name                 string            `json:"name"`
	IsActive             bool              `json:"is_active"`
	SupportsCancellation bool              `json:"supports_cancellation"`
	Config               map[string]string `json:"config,omitempty"`
	CreatedAt            time.Time         `json:"created_at"`
	UpdatedAt            time.Time         `json:"updated_at"`
}

// Shipment is one parcel with at most one active waybill.
type Shipment struct {
	ID                 uuid.UUID              `json:"id"`
	ReferenceNumber    string                 `json:"reference_number"`
	CourierCode        string                 `json:"courier_code"`
	WaybillID          string                 `json:"waybill_id"`
	Status             courier.ShipmentStatus `json:"status"`
	LastTrackingUpdate *time.Time             `json:"last_tracking_update,omitempty"`
	Data               json.RawMessage        `json:"data,omitempty"`
	CreatedAt          time.Time              `json:"created_at"`
	UpdatedAt          time.Time              `json:"updated_at"`
}

// ShipmentTracking is one historical tracking event. Rows are append
// only and ordered by event timestamp descending for display.
type ShipmentTracking struct {
	ID            int64                  `json:"id"`
	ShipmentID    uuid.UUID              `json:"shipment_id"`
	CourierStatus string                 `json:"courier_status"`
	Status        courier.ShipmentStatus `json:"status"`
	Location      string                 `json:"location"`
	Timestamp     time.Time              `json:"timestamp"`
	Description   string                 `json:"description"`
	RawData       json.RawMessage        `json:"raw_data,omitempty"`
	CreatedAt     time.Time              `json:"created_at"`
}

// Store is the durable record store. Implementations must make
// ApplyTrackingUpdate atomic: a reader never observes the new status
// without its history rows or vice versa.
type Store interface {
	// GetCourierByCode looks a courier up by its lowercase code.
	// With activeOnly set, inactive couriers report courier.ErrCourierNotFound.
	GetCourierByCode(ctx context.Context, code string, activeOnly bool) (*Courier, error)
	ListCouriers(ctx context.Context, activeOnly bool) ([]Courier, error)
	CreateCourier(ctx context.Context, c *Courier) error
	// DeleteCourier removes a courier. It fails with ErrCourierInUse
	// while any shipment references the courier.
	DeleteCourier(ctx context.Context, code string) error

	CreateShipment(ctx context.Context, s *Shipment) error
	GetShipment(ctx context.Context, id uuid.UUID) (*Shipment, error)
	GetShipmentByReference(ctx context.Context, reference string) (*Shipment, error)
	ListShipments(ctx context.Context) ([]Shipment, error)
	// SetShipmentWaybill records the provider-assigned waybill id after
	// a successful create call.
	SetShipmentWaybill(ctx context.Context, id uuid.UUID, waybillID string, data json.RawMessage) error
	// ApplyTrackingUpdate atomically sets the shipment status, stamps
	// LastTrackingUpdate, and appends every given tracking event.
	ApplyTrackingUpdate(ctx context.Context, id uuid.UUID, status courier.ShipmentStatus, updatedAt time.Time, events []ShipmentTracking) error
	SetShipmentStatus(ctx context.Context, id uuid.UUID, status courier.ShipmentStatus) error
	// ListRefreshable returns shipments in a non-terminal status whose
	// LastTrackingUpdate is null or older than the staleness cutoff.
	ListRefreshable(ctx context.Context, staleBefore time.Time) ([]Shipment, error)
	ListTracking(ctx context.Context, shipmentID uuid.UUID) ([]ShipmentTracking, error)
}
