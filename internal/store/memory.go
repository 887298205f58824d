package store

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/wasil/courierbridge/pkg/courier"
)

// MemoryStore is a mutex-guarded in-memory Store used by tests and
// mock-only deployments.
type MemoryStore struct {
	mu        sync.RWMutex
	couriers  map[string]*Courier
	shipments map[uuid.UUID]*Shipment
	tracking  map[uuid.UUID][]ShipmentTracking

	nextCourierID  int64
	nextTrackingID int64
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		couriers:  make(map[string]*Courier),
		shipments: make(map[uuid.UUID]*Shipment),
		tracking:  make(map[uuid.UUID][]ShipmentTracking),
	}
}

func (m *MemoryStore) GetCourierByCode(ctx context.Context, code string, activeOnly bool) (*Courier, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.couriers[code]
	if !ok || (activeOnly && !c.IsActive) {
		return nil, courier.ErrCourierNotFound
	}
	out := *c
	return &out, nil
}

func (m *MemoryStore) ListCouriers(ctx context.Context, activeOnly bool) ([]Courier, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Courier, 0, len(m.couriers))
	for _, c := range m.couriers {
		if activeOnly && !c.IsActive {
			continue
		}
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (m *MemoryStore) CreateCourier(ctx context.Context, c *Courier) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.couriers[c.Code]; ok {
		return ErrDuplicateCourier
	}
	m.nextCourierID++
	c.ID = m.nextCourierID
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now

	stored := *c
	m.couriers[c.Code] = &stored
	return nil
}

func (m *MemoryStore) DeleteCourier(ctx context.Context, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.couriers[code]; !ok {
		return courier.ErrCourierNotFound
	}
	for _, s := range m.shipments {
		if s.CourierCode == code {
			return ErrCourierInUse
		}
	}
	delete(m.couriers, code)
	return nil
}

func (m *MemoryStore) CreateShipment(ctx context.Context, s *Shipment) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.shipments {
		if existing.ReferenceNumber == s.ReferenceNumber {
			return ErrDuplicateReference
		}
	}
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	if s.Status == "" {
		s.Status = courier.StatusPending
	}
	now := time.Now().UTC()
	s.CreatedAt = now
	s.UpdatedAt = now

	stored := *s
	m.shipments[s.ID] = &stored
	return nil
}

func (m *MemoryStore) GetShipment(ctx context.Context, id uuid.UUID) (*Shipment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.shipments[id]
	if !ok {
		return nil, courier.ErrShipmentNotFound
	}
	out := *s
	return &out, nil
}

func (m *MemoryStore) GetShipmentByReference(ctx context.Context, reference string) (*Shipment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, s := range m.shipments {
		if s.ReferenceNumber == reference {
			out := *s
			return &out, nil
		}
	}
	return nil, courier.ErrShipmentNotFound
}

func (m *MemoryStore) ListShipments(ctx context.Context) ([]Shipment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Shipment, 0, len(m.shipments))
	for _, s := range m.shipments {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryStore) SetShipmentWaybill(ctx context.Context, id uuid.UUID, waybillID string, data json.RawMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.shipments[id]
	if !ok {
		return courier.ErrShipmentNotFound
	}
	s.WaybillID = waybillID
	if data != nil {
		s.Data = data
	}
	s.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *MemoryStore) ApplyTrackingUpdate(ctx context.Context, id uuid.UUID, status courier.ShipmentStatus, updatedAt time.Time, events []ShipmentTracking) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.shipments[id]
	if !ok {
		return courier.ErrShipmentNotFound
	}

	s.Status = status
	ts := updatedAt
	s.LastTrackingUpdate = &ts
	s.UpdatedAt = time.Now().UTC()

	for _, ev := range events {
		m.nextTrackingID++
		ev.ID = m.nextTrackingID
		ev.ShipmentID = id
		ev.CreatedAt = time.Now().UTC()
		m.tracking[id] = append(m.tracking[id], ev)
	}
	return nil
}

func (m *MemoryStore) SetShipmentStatus(ctx context.Context, id uuid.UUID, status courier.ShipmentStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.shipments[id]
	if !ok {
		return courier.ErrShipmentNotFound
	}
	s.Status = status
	s.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *MemoryStore) ListRefreshable(ctx context.Context, staleBefore time.Time) ([]Shipment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Shipment
	for _, s := range m.shipments {
		if s.Status.IsTerminal() {
			continue
		}
		if s.LastTrackingUpdate != nil && !s.LastTrackingUpdate.Before(staleBefore) {
			continue
		}
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryStore) ListTracking(ctx context.Context, shipmentID uuid.UUID) ([]ShipmentTracking, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	events := m.tracking[shipmentID]
	out := make([]ShipmentTracking, len(events))
	copy(out, events)
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	return out, nil
}

var _ Store = (*MemoryStore)(nil)
