// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"net/http"

	"github.com/justinas/alice"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/xmidt-org/touchstone"
	"go.uber.org/fx"
)

// Names
const (
	ServerRequestCounter   = "server_request_count"
	ServerRequestDuration  = "server_request_duration_seconds"
	ServerRequestsInFlight = "server_requests_in_flight"
)

// Labels
const (
	ServerLabel = "server"
	CodeLabel   = "code"
	MethodLabel = "method"
)

// provideMetrics builds the application metrics and makes them available to the container
func provideMetrics() fx.Option {
	return fx.Options(
		touchstone.CounterVec(
			prometheus.CounterOpts{
				Name: ServerRequestCounter,
				Help: "total incoming HTTP requests",
			},
			CodeLabel,
			MethodLabel,
			ServerLabel,
		),
		touchstone.HistogramVec(
			prometheus.HistogramOpts{
				Name:    ServerRequestDuration,
				Help:    "tracks incoming request durations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			CodeLabel,
			MethodLabel,
			ServerLabel,
		),
		touchstone.GaugeVec(
			prometheus.GaugeOpts{
				Name: ServerRequestsInFlight,
				Help: "tracks the current number of incoming requests being processed",
			},
			ServerLabel,
		),
	)
}

// ServerMeasures are the HTTP server metrics.
type ServerMeasures struct {
	fx.In
	Requests *prometheus.CounterVec   `name:"server_request_count"`
	Duration *prometheus.HistogramVec `name:"server_request_duration_seconds"`
	InFlight *prometheus.GaugeVec     `name:"server_requests_in_flight"`
}

// instrument returns the middleware that records requests to the named server.
func (m ServerMeasures) instrument(server string) alice.Chain {
	labels := prometheus.Labels{ServerLabel: server}
	requests := m.Requests.MustCurryWith(labels)
	duration := m.Duration.MustCurryWith(labels)
	inFlight := m.InFlight.With(labels)

	return alice.New(
		func(next http.Handler) http.Handler {
			return promhttp.InstrumentHandlerInFlight(inFlight, next)
		},
		func(next http.Handler) http.Handler {
			return promhttp.InstrumentHandlerDuration(duration, next)
		},
		func(next http.Handler) http.Handler {
			return promhttp.InstrumentHandlerCounter(requests, next)
		},
	)
}
