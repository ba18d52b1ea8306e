package observability

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"

	"github.com/fleetway/fleetway/internal/config"
)

type AppMetrics struct {
	authLoginCounter   metric.Int64Counter
	authRefreshCounter metric.Int64Counter
	authLogoutCounter  metric.Int64Counter
	tokenTheftCounter  metric.Int64Counter
	backupCodeCounter  metric.Int64Counter
	accessTokenCounter metric.Int64Counter
}

var (
	metricsMu  sync.RWMutex
	appMetrics *AppMetrics

	repoMetricsOnce sync.Once
	repoCounter     metric.Int64Counter

	rateLimitOnce    sync.Once
	rateLimitCounter metric.Int64Counter
)

func InitMetrics(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*sdkmetric.MeterProvider, error) {
	if !cfg.OTELMetricsEnabled {
		mp := sdkmetric.NewMeterProvider()
		otel.SetMeterProvider(mp)
		logger.Info("otel metrics disabled")
		return mp, nil
	}

	opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(cfg.OTELExporterOTLPEndpoint)}
	if cfg.OTELExporterOTLPInsecure {
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}
	exporter, err := otlpmetricgrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create otlp metric exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			attribute.String("service.name", cfg.OTELServiceName),
			attribute.String("deployment.environment", cfg.OTELEnvironment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("create metric resource: %w", err)
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(cfg.OTELMetricsExportInterval))
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(reader),
	)
	otel.SetMeterProvider(mp)

	meter := mp.Meter("fleetway")
	loginCounter, err := meter.Int64Counter("auth.login.attempts")
	if err != nil {
		return nil, err
	}
	refreshCounter, err := meter.Int64Counter("auth.refresh.attempts")
	if err != nil {
		return nil, err
	}
	logoutCounter, err := meter.Int64Counter("auth.logout.attempts")
	if err != nil {
		return nil, err
	}
	theftCounter, err := meter.Int64Counter("auth.token.theft_detected")
	if err != nil {
		return nil, err
	}
	backupCounter, err := meter.Int64Counter("auth.mfa.backup_code_redemptions")
	if err != nil {
		return nil, err
	}
	accessCounter, err := meter.Int64Counter("auth.access_token.validations")
	if err != nil {
		return nil, err
	}

	metricsMu.Lock()
	appMetrics = &AppMetrics{
		authLoginCounter:   loginCounter,
		authRefreshCounter: refreshCounter,
		authLogoutCounter:  logoutCounter,
		tokenTheftCounter:  theftCounter,
		backupCodeCounter:  backupCounter,
		accessTokenCounter: accessCounter,
	}
	metricsMu.Unlock()

	logger.Info("otel metrics initialized", "endpoint", cfg.OTELExporterOTLPEndpoint)
	return mp, nil
}

func RecordAuthLogin(status string) {
	metricsMu.RLock()
	m := appMetrics
	metricsMu.RUnlock()
	if m == nil {
		return
	}
	m.authLoginCounter.Add(context.Background(), 1, metric.WithAttributes(attribute.String("status", status)))
}

func RecordAuthRefresh(status string) {
	metricsMu.RLock()
	m := appMetrics
	metricsMu.RUnlock()
	if m == nil {
		return
	}
	m.authRefreshCounter.Add(context.Background(), 1, metric.WithAttributes(attribute.String("status", status)))
}

func RecordAuthLogout(status string) {
	metricsMu.RLock()
	m := appMetrics
	metricsMu.RUnlock()
	if m == nil {
		return
	}
	m.authLogoutCounter.Add(context.Background(), 1, metric.WithAttributes(attribute.String("status", status)))
}

func RecordTokenTheft() {
	metricsMu.RLock()
	m := appMetrics
	metricsMu.RUnlock()
	if m == nil {
		return
	}
	m.tokenTheftCounter.Add(context.Background(), 1)
}

func RecordBackupCodeRedemption(status string) {
	metricsMu.RLock()
	m := appMetrics
	metricsMu.RUnlock()
	if m == nil {
		return
	}
	m.backupCodeCounter.Add(context.Background(), 1, metric.WithAttributes(attribute.String("status", status)))
}

func RecordAccessTokenValidation(ctx context.Context, result, source string) {
	metricsMu.RLock()
	m := appMetrics
	metricsMu.RUnlock()
	if m == nil {
		return
	}
	m.accessTokenCounter.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("result", result),
			attribute.String("source", source),
		),
	)
}

// RecordRepositoryOperation initializes lazily so repositories work before
// (or without) InitMetrics.
func RecordRepositoryOperation(ctx context.Context, entity, operation, status string) {
	repoMetricsOnce.Do(func() {
		counter, err := otel.Meter("fleetway").Int64Counter("repository.operations")
		if err == nil {
			repoCounter = counter
		}
	})
	if repoCounter == nil {
		return
	}
	repoCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("entity", entity),
		attribute.String("operation", operation),
		attribute.String("status", status),
	))
}

func RecordRateLimitDecision(ctx context.Context, scope, decision string) {
	rateLimitOnce.Do(func() {
		counter, err := otel.Meter("fleetway").Int64Counter("http.rate_limit.decisions")
		if err == nil {
			rateLimitCounter = counter
		}
	})
	if rateLimitCounter == nil {
		return
	}
	rateLimitCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("scope", scope),
		attribute.String("decision", decision),
	))
}
