// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/xmidt-org/touchstone"
	"go.uber.org/fx"
)

// Names
const (
	LookupsCounter         = "ladon_cache_lookups_total"
	SurgicalUpdatesCounter = "ladon_surgical_updates_total"
)

// Labels
const (
	CacheLabel     = "cache"
	ResultLabel    = "result"
	OperationLabel = "operation"
)

// Label Values
const (
	DiscoveryCacheName = "discovery"
	DocumentCacheName  = "document"

	HitResult     = "hit"
	StaleResult   = "stale"
	MissResult    = "miss"
	AppliedResult = "applied"
	SkippedResult = "skipped"

	AddOperation    = "add"
	UpdateOperation = "update"
	RemoveOperation = "remove"
)

// ProvideMetrics returns the Metrics relevant to this package
func ProvideMetrics() fx.Option {
	return fx.Options(
		touchstone.CounterVec(
			prometheus.CounterOpts{
				Name: LookupsCounter,
				Help: "Counter for cache lookups, by cache and result.",
			},
			CacheLabel,
			ResultLabel,
		),
		touchstone.CounterVec(
			prometheus.CounterOpts{
				Name: SurgicalUpdatesCounter,
				Help: "Counter for in-place edits of cached cluster documents, by operation and result.",
			},
			OperationLabel,
			ResultLabel,
		),
	)
}

type Measures struct {
	fx.In
	Lookups         *prometheus.CounterVec `name:"ladon_cache_lookups_total"`
	SurgicalUpdates *prometheus.CounterVec `name:"ladon_surgical_updates_total"`
}

func (m *Measures) lookup(cache, result string) {
	if m == nil || m.Lookups == nil {
		return
	}
	m.Lookups.With(prometheus.Labels{CacheLabel: cache, ResultLabel: result}).Add(1)
}

func (m *Measures) surgical(operation string, applied bool) {
	if m == nil || m.SurgicalUpdates == nil {
		return
	}
	result := SkippedResult
	if applied {
		result = AppliedResult
	}
	m.SurgicalUpdates.With(prometheus.Labels{OperationLabel: operation, ResultLabel: result}).Add(1)
}
