//go:build otel

package cmd

import (
	"context"
	"log/slog"

	"github.com/nextlevelbuilder/gomemory/internal/config"
	"github.com/nextlevelbuilder/gomemory/internal/tracing/otelexport"
)

// initTelemetry installs the OTLP trace exporter when telemetry is enabled
// and returns its shutdown func. Only compiled with -tags otel.
func initTelemetry(ctx context.Context, cfg *config.Config) func(context.Context) {
	tc := cfg.Telemetry
	if !tc.Enabled || tc.Endpoint == "" {
		slog.Debug("OTel export available but not enabled (set telemetry.enabled + telemetry.endpoint)")
		return func(context.Context) {}
	}

	exp, err := otelexport.New(ctx, otelexport.Config{
		Endpoint:    tc.Endpoint,
		Protocol:    tc.Protocol,
		Insecure:    tc.Insecure,
		ServiceName: tc.ServiceName,
		Headers:     tc.Headers,
		Version:     Version,
	})
	if err != nil {
		slog.Warn("failed to create OTel exporter", "error", err)
		return func(context.Context) {}
	}

	slog.Info("OpenTelemetry OTLP export enabled", "endpoint", tc.Endpoint, "protocol", tc.Protocol)
	return func(ctx context.Context) {
		if err := exp.Shutdown(ctx); err != nil {
			slog.Warn("OTel exporter shutdown", "error", err)
		}
	}
}
