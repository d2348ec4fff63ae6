/*
Copyright 2024 The Attic Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package httpapi

import (
	"context"
	"net/http"

	chi "github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"

	"github.com/attic-rs/trusted-publisher/pkg/exchange"
)

// Server assembles the HTTP surface for the trusted publisher service.
type Server struct {
	// Options are server specific options e.g. listener address etc.
	Options Options

	// Logger receives request and lifecycle logs.
	Logger *zap.Logger

	// Config is the loaded policy configuration shared across all
	// in-flight exchanges.
	Config *exchange.Configuration

	// Orchestrator performs the verify-then-issue pipeline.
	Orchestrator *exchange.Orchestrator

	// Registry is the Prometheus registry metrics are registered
	// against. Defaults to prometheus.DefaultRegisterer when nil.
	Registry prometheus.Registerer
}

// SetupOpenTelemetry installs a span processor that logs every root span,
// optionally shipping them to an OTLP endpoint as well.
func (s *Server) SetupOpenTelemetry(ctx context.Context) (*sdktrace.TracerProvider, error) {
	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithSpanProcessor(&LoggingSpanProcessor{Logger: s.Logger}),
	}

	if s.Options.OTLPEndpoint != "" {
		exporter, err := otlptracehttp.New(ctx,
			otlptracehttp.WithEndpoint(s.Options.OTLPEndpoint),
			otlptracehttp.WithInsecure(),
		)
		if err != nil {
			return nil, err
		}

		opts = append(opts, sdktrace.WithBatcher(exporter))
	}

	provider := sdktrace.NewTracerProvider(opts...)

	otel.SetTracerProvider(provider)

	return provider, nil
}

// GetServer builds the *http.Server ready to ListenAndServe.
func (s *Server) GetServer() *http.Server {
	registry := s.Registry
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	h := &handler{
		orchestrator: s.Orchestrator,
		config:       s.Config,
		logger:       s.Logger,
		metrics:      newMetrics(registry),
	}

	tracer := otel.Tracer("trusted-publisher")

	router := chi.NewRouter()
	router.Use(Logger(s.Logger, tracer))
	router.Use(Timeout(s.Options.RequestTimeout))

	router.Get("/healthz", h.handleHealthz)
	metricsHandler := promhttp.Handler()
	if gatherer, ok := s.Registry.(prometheus.Gatherer); ok {
		metricsHandler = promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
	}

	router.Handle("/metrics", metricsHandler)
	router.Post("/_trusted-publisher/token", h.handleExchange)

	return &http.Server{
		Addr:              s.Options.ListenAddress,
		ReadTimeout:       s.Options.ReadTimeout,
		ReadHeaderTimeout: s.Options.ReadHeaderTimeout,
		WriteTimeout:      s.Options.WriteTimeout,
		Handler:           router,
	}
}
