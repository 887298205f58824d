package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/wasil/courierbridge/pkg/courier"
)

const schema = `
CREATE TABLE IF NOT EXISTS couriers (
	id BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
	code TEXT NOT NULL UNIQUE,
	name TEXT NOT NULL,
	is_active BOOLEAN NOT NULL DEFAULT TRUE,
	supports_cancellation BOOLEAN NOT NULL DEFAULT FALSE,
	config JSONB NOT NULL DEFAULT '{}',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS shipments (
	id UUID PRIMARY KEY,
	reference_number TEXT NOT NULL UNIQUE,
	courier_code TEXT NOT NULL REFERENCES couriers(code) ON DELETE RESTRICT,
	waybill_id TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL DEFAULT 'pending',
	last_tracking_update TIMESTAMPTZ,
	data JSONB,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS shipment_tracking (
	id BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
	shipment_id UUID NOT NULL REFERENCES shipments(id) ON DELETE CASCADE,
	courier_status TEXT NOT NULL,
	status TEXT NOT NULL,
	location TEXT NOT NULL DEFAULT '',
	ts TIMESTAMPTZ NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	raw_data JSONB,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_shipments_refreshable
	ON shipments (status, last_tracking_update);
CREATE INDEX IF NOT EXISTS idx_shipment_tracking_shipment
	ON shipment_tracking (shipment_id, ts DESC);
`

// PostgresStore is the pgx-backed Store implementation.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// Connect opens a pgx pool against the given DSN and verifies it.
func Connect(ctx context.Context, dsn string) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parsing database url: %w", err)
	}
	cfg.MaxConns = 8
	cfg.MinConns = 1
	cfg.HealthCheckPeriod = 30 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

// Migrate creates the schema if it does not exist.
func (p *PostgresStore) Migrate(ctx context.Context) error {
	_, err := p.pool.Exec(ctx, schema)
	return err
}

// Close releases the connection pool.
func (p *PostgresStore) Close() {
	p.pool.Close()
}

func (p *PostgresStore) GetCourierByCode(ctx context.Context, code string, activeOnly bool) (*Courier, error) {
	q := `SELECT id, code, name, is_active, supports_cancellation, config, created_at, updated_at
	      FROM couriers WHERE code=$1`
	if activeOnly {
		q += ` AND is_active`
	}

	c, err := scanCourier(p.pool.QueryRow(ctx, q, code))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, courier.ErrCourierNotFound
	}
	return c, err
}

func (p *PostgresStore) ListCouriers(ctx context.Context, activeOnly bool) ([]Courier, error) {
	q := `SELECT id, code, name, is_active, supports_cancellation, config, created_at, updated_at
	      FROM couriers`
	if activeOnly {
		q += ` WHERE is_active`
	}
	q += ` ORDER BY code`

	rows, err := p.pool.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Courier
	for rows.Next() {
		c, err := scanCourier(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

func (p *PostgresStore) CreateCourier(ctx context.Context, c *Courier) error {
	cfg := c.Config
	if cfg == nil {
		cfg = map[string]string{}
	}
	err := p.pool.QueryRow(ctx,
		`INSERT INTO couriers (code, name, is_active, supports_cancellation, config)
		 VALUES ($1,$2,$3,$4,$5)
		 RETURNING id, created_at, updated_at`,
		c.Code, c.Name, c.IsActive, c.SupportsCancellation, cfg,
	).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	if isUniqueViolation(err) {
		return ErrDuplicateCourier
	}
	return err
}

func (p *PostgresStore) DeleteCourier(ctx context.Context, code string) error {
	tag, err := p.pool.Exec(ctx, `DELETE FROM couriers WHERE code=$1`, code)
	if isForeignKeyViolation(err) {
		return ErrCourierInUse
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return courier.ErrCourierNotFound
	}
	return nil
}

func (p *PostgresStore) CreateShipment(ctx context.Context, s *Shipment) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	if s.Status == "" {
		s.Status = courier.StatusPending
	}

	err := p.pool.QueryRow(ctx,
		`INSERT INTO shipments (id, reference_number, courier_code, waybill_id, status, data)
		 VALUES ($1,$2,$3,$4,$5,$6)
		 RETURNING created_at, updated_at`,
		s.ID, s.ReferenceNumber, s.CourierCode, s.WaybillID, string(s.Status), s.Data,
	).Scan(&s.CreatedAt, &s.UpdatedAt)
	if isUniqueViolation(err) {
		return ErrDuplicateReference
	}
	return err
}

func (p *PostgresStore) GetShipment(ctx context.Context, id uuid.UUID) (*Shipment, error) {
	s, err := scanShipment(p.pool.QueryRow(ctx, selectShipment+` WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, courier.ErrShipmentNotFound
	}
	return s, err
}

func (p *PostgresStore) GetShipmentByReference(ctx context.Context, reference string) (*Shipment, error) {
	s, err := scanShipment(p.pool.QueryRow(ctx, selectShipment+` WHERE reference_number=$1`, reference))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, courier.ErrShipmentNotFound
	}
	return s, err
}

func (p *PostgresStore) ListShipments(ctx context.Context) ([]Shipment, error) {
	rows, err := p.pool.Query(ctx, selectShipment+` ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectShipments(rows)
}

func (p *PostgresStore) SetShipmentWaybill(ctx context.Context, id uuid.UUID, waybillID string, data json.RawMessage) error {
	tag, err := p.pool.Exec(ctx,
		`UPDATE shipments SET waybill_id=$2, data=COALESCE($3, data), updated_at=now() WHERE id=$1`,
		id, waybillID, data,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return courier.ErrShipmentNotFound
	}
	return nil
}

// ApplyTrackingUpdate runs the status update and history append in one
// transaction so a reader never observes a partial transition.
func (p *PostgresStore) ApplyTrackingUpdate(ctx context.Context, id uuid.UUID, status courier.ShipmentStatus, updatedAt time.Time, events []ShipmentTracking) error {
	tx, err := p.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx,
		`UPDATE shipments SET status=$2, last_tracking_update=$3, updated_at=now() WHERE id=$1`,
		id, string(status), updatedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return courier.ErrShipmentNotFound
	}

	for _, ev := range events {
		_, err = tx.Exec(ctx,
			`INSERT INTO shipment_tracking (shipment_id, courier_status, status, location, ts, description, raw_data)
			 VALUES ($1,$2,$3,$4,$5,$6,$7)`,
			id, ev.CourierStatus, string(ev.Status), ev.Location, ev.Timestamp, ev.Description, ev.RawData,
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

func (p *PostgresStore) SetShipmentStatus(ctx context.Context, id uuid.UUID, status courier.ShipmentStatus) error {
	tag, err := p.pool.Exec(ctx,
		`UPDATE shipments SET status=$2, updated_at=now() WHERE id=$1`,
		id, string(status),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return courier.ErrShipmentNotFound
	}
	return nil
}

func (p *PostgresStore) ListRefreshable(ctx context.Context, staleBefore time.Time) ([]Shipment, error) {
	terminal := make([]string, 0, len(courier.TerminalStatuses))
	for _, s := range courier.TerminalStatuses {
		terminal = append(terminal, string(s))
	}

	rows, err := p.pool.Query(ctx,
		selectShipment+` WHERE status != ALL($1)
		 AND (last_tracking_update IS NULL OR last_tracking_update < $2)
		 ORDER BY created_at`,
		terminal, staleBefore,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectShipments(rows)
}

func (p *PostgresStore) ListTracking(ctx context.Context, shipmentID uuid.UUID) ([]ShipmentTracking, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT id, shipment_id, courier_status, status, location, ts, description, raw_data, created_at
		 FROM shipment_tracking WHERE shipment_id=$1 ORDER BY ts DESC`,
		shipmentID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ShipmentTracking
	for rows.Next() {
		var ev ShipmentTracking
		var status string
		if err := rows.Scan(&ev.ID, &ev.ShipmentID, &ev.CourierStatus, &status,
			&ev.Location, &ev.Timestamp, &ev.Description, &ev.RawData, &ev.CreatedAt); err != nil {
			return nil, err
		}
		ev.Status = courier.ShipmentStatus(status)
		out = append(out, ev)
	}
	return out, rows.Err()
}

// ============================================================================
// Scan helpers
// ============================================================================

const selectShipment = `SELECT id, reference_number, courier_code, waybill_id, status,
	last_tracking_update, data, created_at, updated_at FROM shipments`

func scanCourier(row pgx.Row) (*Courier, error) {
	var c Courier
	if err := row.Scan(&c.ID, &c.Code, &c.Name, &c.IsActive, &c.SupportsCancellation,
		&c.Config, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

func scanShipment(row pgx.Row) (*Shipment, error) {
	var s Shipment
	var status string
	if err := row.Scan(&s.ID, &s.ReferenceNumber, &s.CourierCode, &s.WaybillID, &status,
		&s.LastTrackingUpdate, &s.Data, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return nil, err
	}
	s.Status = courier.ShipmentStatus(status)
	return &s, nil
}

func collectShipments(rows pgx.Rows) ([]Shipment, error) {
	var out []Shipment
	for rows.Next() {
		s, err := scanShipment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}

var _ Store = (*PostgresStore)(nil)
