// Package scheduler periodically refreshes tracking for shipments whose
// status is not terminal and whose last update has gone stale.
package scheduler

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"github.com/wasil/courierbridge/internal/service"
	"github.com/wasil/courierbridge/internal/store"
	"github.com/wasil/courierbridge/internal/telemetry"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	defaultInterval    = 15 * time.Minute
	defaultStaleness   = 6 * time.Hour
	defaultConcurrency = 4
)

// Refresher runs the periodic tracking refresh loop.
type Refresher struct {
	store       store.Store
	shipments   *service.ShipmentService
	logger      *otelzap.Logger
	metrics     *telemetry.Metrics
	interval    time.Duration
	staleness   time.Duration
	concurrency int
}

// Config holds the refresh loop tunables. Zero values fall back to the
// defaults.
type Config struct {
	Interval    time.Duration
	Staleness   time.Duration
	Concurrency int
}

// New creates a new Refresher.
func New(st store.Store, shipments *service.ShipmentService, logger *otelzap.Logger, metrics *telemetry.Metrics, cfg Config) *Refresher {
	if cfg.Interval <= 0 {
		cfg.Interval = defaultInterval
	}
	if cfg.Staleness <= 0 {
		cfg.Staleness = defaultStaleness
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConcurrency
	}
	return &Refresher{
		store:       st,
		shipments:   shipments,
		logger:      logger,
		metrics:     metrics,
		interval:    cfg.Interval,
		staleness:   cfg.Staleness,
		concurrency: cfg.Concurrency,
	}
}

// Run executes refresh batches until ctx is cancelled. The first batch
// runs immediately.
func (r *Refresher) Run(ctx context.Context) {
	r.logger.Info("Starting tracking refresh loop",
		zap.Duration("interval", r.interval),
		zap.Duration("staleness", r.staleness),
	)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.RefreshOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("Stopping tracking refresh loop")
			return
		case <-ticker.C:
			r.RefreshOnce(ctx)
		}
	}
}

// RefreshOnce runs a single refresh batch. Individual shipment failures
// are logged and never abort the batch.
func (r *Refresher) RefreshOnce(ctx context.Context) {
	staleBefore := time.Now().UTC().Add(-r.staleness)
	candidates, err := r.store.ListRefreshable(ctx, staleBefore)
	if err != nil {
		r.logger.Error("Listing refreshable shipments failed", zap.Error(err))
		return
	}
	if r.metrics != nil {
		r.metrics.RecordRefreshBatch(len(candidates))
	}
	if len(candidates) == 0 {
		return
	}

	r.logger.Info("Refreshing shipment tracking", zap.Int("count", len(candidates)))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for _, candidate := range candidates {
		g.Go(func() error {
			r.refreshShipment(gctx, candidate.ID)
			return nil
		})
	}
	_ = g.Wait()
}

func (r *Refresher) refreshShipment(ctx context.Context, id uuid.UUID) {
	// Re-read before acting: the shipment may have reached a terminal
	// status since the batch was listed.
	shipment, err := r.store.GetShipment(ctx, id)
	if err != nil {
		r.logger.Warn("Shipment vanished during refresh", zap.Error(err))
		return
	}
	if shipment.Status.IsTerminal() || shipment.WaybillID == "" {
		return
	}

	if _, err := r.shipments.UpdateTrackingStatus(ctx, shipment.ID); err != nil {
		r.logger.Warn("Tracking refresh failed",
			zap.String("shipment_id", shipment.ID.String()),
			zap.String("courier", shipment.CourierCode),
			zap.Error(err),
		)
	}
}
