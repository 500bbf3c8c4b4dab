// Copyright (C) 2026 roar contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

// OTelProvider emits one span per recorded job via an OTLP/HTTP exporter.
type OTelProvider struct {
	tracer   trace.Tracer
	provider *sdktrace.TracerProvider
}

// NewOTelProvider builds an OTelProvider exporting spans to endpoint
// ("host:port", no scheme) over OTLP/HTTP.
func NewOTelProvider(ctx context.Context, endpoint, serviceName string) (*OTelProvider, error) {
	exporter, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpoint(endpoint), otlptracehttp.WithInsecure())
	if err != nil {
		return nil, fmt.Errorf("telemetry: build otlp exporter: %w", err)
	}

	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceName(serviceName)))
	if err != nil {
		return nil, fmt.Errorf("telemetry: build resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)

	return &OTelProvider{
		tracer:   tp.Tracer("roar/recording"),
		provider: tp,
	}, nil
}

// RecordJob emits a completed span carrying the job's command, exit code,
// duration, session hash, and step number as attributes.
func (p *OTelProvider) RecordJob(ctx context.Context, job JobSummary) error {
	attrs := []attribute.KeyValue{
		attribute.String("roar.command", job.Command),
		attribute.String("roar.session_hash", job.SessionHash),
	}
	if job.ExitCode != nil {
		attrs = append(attrs, attribute.Int("roar.exit_code", *job.ExitCode))
	}
	if job.DurationSeconds != nil {
		attrs = append(attrs, attribute.Float64("roar.duration_seconds", *job.DurationSeconds))
	}
	if job.StepNumber != nil {
		attrs = append(attrs, attribute.Int("roar.step_number", *job.StepNumber))
	}

	_, span := p.tracer.Start(ctx, "roar.job", trace.WithAttributes(attrs...))
	span.End()
	return nil
}

// Close flushes and shuts down the underlying tracer provider.
func (p *OTelProvider) Close(ctx context.Context) error {
	return p.provider.Shutdown(ctx)
}

// NullProvider is the default no-op telemetry provider.
type NullProvider struct{}

// NewNullProvider builds a no-op Provider.
func NewNullProvider() *NullProvider { return &NullProvider{} }

func (NullProvider) RecordJob(context.Context, JobSummary) error { return nil }
func (NullProvider) Close(context.Context) error                 { return nil }
