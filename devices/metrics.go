// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package devices

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/xmidt-org/touchstone"
	"go.uber.org/fx"
)

// Names
const (
	DiscoveriesCounter = "ladon_discoveries_total"
	FastRejectsCounter = "ladon_fast_rejects_total"
)

// Labels
const (
	OutcomeLabel = "outcome"
	PolicyLabel  = "policy"
	TriggerLabel = "trigger"
)

// Label Values
const (
	SuccessOutcome = "success"
	FailureOutcome = "failure"

	MissTrigger    = "miss"
	RefreshTrigger = "refresh"
)

// ProvideMetrics returns the Metrics relevant to this package
func ProvideMetrics() fx.Option {
	return fx.Options(
		touchstone.CounterVec(
			prometheus.CounterOpts{
				Name: DiscoveriesCounter,
				Help: "Counter for discoveries run against the remote store, by trigger and outcome.",
			},
			TriggerLabel,
			OutcomeLabel,
		),
		touchstone.CounterVec(
			prometheus.CounterOpts{
				Name: FastRejectsCounter,
				Help: "Counter for guid lookups answered without any remote call.",
			},
			PolicyLabel,
		),
	)
}

type Measures struct {
	fx.In
	Discoveries *prometheus.CounterVec `name:"ladon_discoveries_total"`
	FastRejects *prometheus.CounterVec `name:"ladon_fast_rejects_total"`
}

func (m *Measures) discovery(trigger string, err error) {
	if m == nil || m.Discoveries == nil {
		return
	}
	outcome := SuccessOutcome
	if err != nil {
		outcome = FailureOutcome
	}
	m.Discoveries.With(prometheus.Labels{TriggerLabel: trigger, OutcomeLabel: outcome}).Add(1)
}

func (m *Measures) fastReject(policy string) {
	if m == nil || m.FastRejects == nil {
		return
	}
	m.FastRejects.With(prometheus.Labels{PolicyLabel: policy}).Add(1)
}
