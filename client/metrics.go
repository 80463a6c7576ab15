// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/xmidt-org/touchstone"
	"go.uber.org/fx"
)

// Names
const (
	RemoteRequestsCounter = "ladon_remote_requests_total"
)

// Labels
const (
	OperationLabel = "operation"
	OutcomeLabel   = "outcome"
)

// Label Values
const (
	DiscoverOperation = "discover"
	FetchOperation    = "fetch"
	PutOperation      = "put"

	SuccessOutcome  = "success"
	FailureOutcome  = "failure"
	NotFoundOutcome = "not_found"
	RejectedOutcome = "rejected"
)

// ProvideMetrics returns the Metrics relevant to this package
func ProvideMetrics() fx.Option {
	return fx.Options(
		touchstone.CounterVec(
			prometheus.CounterOpts{
				Name: RemoteRequestsCounter,
				Help: "Counter for requests made to the remote device store, by operation and outcome.",
			},
			OperationLabel,
			OutcomeLabel,
		),
	)
}

type Measures struct {
	fx.In
	RemoteRequests *prometheus.CounterVec `name:"ladon_remote_requests_total"`
}
