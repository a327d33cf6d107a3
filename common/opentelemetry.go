package common

import (
	"context"

	"github.com/uptrace/uptrace-go/uptrace"
	"go.opentelemetry.io/contrib/propagators/aws/xray"
	"go.opentelemetry.io/otel"
)

// InitOpentelemetry configures the uptrace exporter when a DSN is set. The
// returned shutdown flushes pending spans and is safe to call either way.
func InitOpentelemetry(cfg OtlpConfig) (func(context.Context) error, error) {
	if !cfg.TracingEnabled() {
		return func(context.Context) error { return nil }, nil
	}

	var options []uptrace.Option
	options = append(options, uptrace.WithDSN(cfg.Dsn()))
	options = append(options, uptrace.WithTracingEnabled(true))
	options = append(options, uptrace.WithMetricsEnabled(false))
	options = append(options, uptrace.WithLoggingEnabled(true))
	options = append(options, uptrace.WithServiceName(cfg.ServiceName()),
		uptrace.WithDeploymentEnvironment(cfg.Environment()),
		uptrace.WithServiceVersion(cfg.Version()),
	)
	uptrace.ConfigureOpentelemetry(options...)
	otel.SetTextMapPropagator(xray.Propagator{})

	return func(ctx context.Context) error {
		if err := uptrace.ForceFlush(ctx); err != nil {
			return err
		}
		return uptrace.Shutdown(ctx)
	}, nil
}
