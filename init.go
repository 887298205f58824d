package main

import (
	"context"
	"errors"

	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"github.com/wasil/courierbridge/internal/config"
	"github.com/wasil/courierbridge/internal/store"
	"github.com/wasil/courierbridge/internal/telemetry"
	"github.com/wasil/courierbridge/pkg/courier"
	"github.com/wasil/courierbridge/pkg/courier/aramex"
	"github.com/wasil/courierbridge/pkg/courier/smsa"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

func loadConfig() (*config.Config, error) {
	return config.Load()
}

func initLogger(level string) (*otelzap.Logger, error) {
	return telemetry.NewLogger(level)
}

func initTracer(ctx context.Context, cfg *config.Config) (func(context.Context) error, error) {
	if !cfg.OTELEnabled {
		return func(context.Context) error { return nil }, nil
	}

	_, shutdown, err := telemetry.InitTracer(ctx, cfg.OTELEndpoint, cfg.ServiceName, cfg.Version, cfg.Attributes()...)
	return shutdown, err
}

// initStore selects the backing store: Postgres when DATABASE_URL is
// set, in-memory otherwise.
func initStore(ctx context.Context, cfg *config.Config, logger *otelzap.Logger) (store.Store, func(), error) {
	if cfg.DatabaseURL == "" {
		logger.Warn("DATABASE_URL not set, using in-memory store")
		return store.NewMemoryStore(), func() {}, nil
	}

	pg, err := store.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	if err := pg.Migrate(ctx); err != nil {
		pg.Close()
		return nil, nil, err
	}
	logger.Info("Connected to Postgres")
	return pg, pg.Close, nil
}

func initCourierRegistry(cfg *config.Config, logger *otelzap.Logger) *courier.Registry {
	registry := courier.NewRegistry()
	tracer := otel.GetTracerProvider().Tracer(cfg.ServiceName)

	if cfg.SMSAEnabled {
		registry.Register(smsa.New(smsa.Config{
			APIURL:      cfg.SMSAAPIURL,
			PassKey:     cfg.SMSAPassKey,
			TrackingURL: cfg.SMSATrackingURL,
			UseMock:     cfg.SMSAUseMock,
		}, logger, tracer))
	}

	if cfg.AramexEnabled {
		registry.Register(aramex.New(aramex.Config{
			APIURL:             cfg.AramexAPIURL,
			UserName:           cfg.AramexUserName,
			Password:           cfg.AramexPassword,
			AccountNumber:      cfg.AramexAccountNumber,
			AccountPin:         cfg.AramexAccountPin,
			AccountEntity:      cfg.AramexAccountEntity,
			AccountCountryCode: cfg.AramexAccountCountryCode,
			TrackingURL:        cfg.AramexTrackingURL,
			UseMock:            cfg.AramexUseMock,
		}, logger, tracer))
	}

	return registry
}

// seedCouriers inserts the courier records, skipping ones already
// present.
func seedCouriers(ctx context.Context, st store.Store, logger *otelzap.Logger) error {
	couriers := []store.Courier{
		{
			Code:                 "smsa",
			Name:                 "SMSA Express",
			IsActive:             true,
			SupportsCancellation: true,
			Config:               map[string]string{"region": "SA"},
		},
		{
			Code:                 "aramex",
			Name:                 "Aramex",
			IsActive:             true,
			SupportsCancellation: true,
			Config:               map[string]string{"region": "SA", "product_group": "DOM"},
		},
	}

	for _, c := range couriers {
		if err := st.CreateCourier(ctx, &c); err != nil {
			if errors.Is(err, store.ErrDuplicateCourier) {
				logger.Info("Courier already seeded", zap.String("code", c.Code))
				continue
			}
			return err
		}
		logger.Info("Seeded courier", zap.String("code", c.Code))
	}
	return nil
}
