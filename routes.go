// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/justinas/alice"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/xmidt-org/candlelight"
	"github.com/xmidt-org/httpaux"
	"github.com/xmidt-org/httpaux/recovery"
	"github.com/xmidt-org/ladon/api"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"
	"go.uber.org/fx"
)

const (
	primaryServer = "primary"
	metricsServer = "metrics"
)

type PrimaryRouterIn struct {
	fx.In
	// Tracing will be used to set up tracing instrumentation code.
	Tracing    candlelight.Tracing
	Handlers   api.Handlers
	Measures   ServerMeasures
	HealthPath HealthPath
}

type MetricsRouterIn struct {
	fx.In
	Gatherer prometheus.Gatherer
	Path     MetricsPath
}

func provideRoutes() fx.Option {
	return fx.Provide(
		candlelight.New,
		fx.Annotated{
			Name:   "primary_handler",
			Target: buildPrimaryRoutes,
		},
		fx.Annotated{
			Name:   "metrics_handler",
			Target: buildMetricsRoutes,
		},
	)
}

func buildPrimaryRoutes(in PrimaryRouterIn) http.Handler {
	router := mux.NewRouter()
	router.Use(otelmux.Middleware("server_primary",
		otelmux.WithTracerProvider(in.Tracing.TracerProvider()),
		otelmux.WithPropagators(in.Tracing.Propagator()),
	))

	router.Handle(string(in.HealthPath), httpaux.ConstantHandler{
		StatusCode: http.StatusOK,
	}).Methods(http.MethodGet)
	in.Handlers.Register(router, apiBase)

	return alice.New(recovery.Middleware(recovery.WithStatusCode(555))).
		Extend(in.Measures.instrument(primaryServer)).
		Then(router)
}

func buildMetricsRoutes(in MetricsRouterIn) http.Handler {
	router := mux.NewRouter()
	router.Handle(string(in.Path), promhttp.HandlerFor(in.Gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	return router
}
