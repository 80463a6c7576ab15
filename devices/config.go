// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package devices

import (
	"time"

	"github.com/xmidt-org/ladon/model"
)

const (
	defaultMaxConcurrency  = 8
	defaultRefreshInterval = 0
)

// FastRejectConfig configures the guid fast-reject policy.
type FastRejectConfig struct {
	// Disabled sends every lookup to the remote store.
	Disabled bool

	// Patterns replace DefaultRejectPatterns when set.
	Patterns []string
}

// FinderConfig configures the guid search.
type FinderConfig struct {
	// MaxConcurrency bounds the cluster fetches in flight per search.
	// (Optional) Defaults to 8.
	MaxConcurrency int
}

// RetryConfig configures the retry of failed discoveries.
type RetryConfig struct {
	// Attempts is the total number of tries. Values below 2 disable retries.
	Attempts uint

	// Delay is the fixed pause between tries.
	Delay time.Duration
}

// RefreshConfig configures background rediscovery.
type RefreshConfig struct {
	// Interval between discoveries. Zero disables the refresher.
	Interval time.Duration
}

// LayoutConfig overrides the record type a kind is stored under.
type LayoutConfig struct {
	RecType string
}

// LayoutsConfig holds the per kind overrides.
type LayoutsConfig struct {
	Gateway LayoutConfig
	Sensor  LayoutConfig
}

// Config configures the device service.
type Config struct {
	FastReject FastRejectConfig
	Finder     FinderConfig

	// SerializeWrites makes writes to one cluster wait for each other inside
	// this process. Writers in other processes can still overwrite each other.
	SerializeWrites bool

	DiscoveryRetry RetryConfig
	Refresh        RefreshConfig
	Layouts        LayoutsConfig
}

// BuildLayouts returns the layout registry for the configured record types.
func (c LayoutsConfig) BuildLayouts() (model.Layouts, error) {
	gateway := model.GatewayCategory
	if len(c.Gateway.RecType) > 0 {
		gateway = model.Category(c.Gateway.RecType)
	}
	sensor := model.SensorCategory
	if len(c.Sensor.RecType) > 0 {
		sensor = model.Category(c.Sensor.RecType)
	}
	return model.NewLayouts(model.GatewayLayout(gateway), model.SensorLayout(sensor))
}

func validateConfig(config *Config) {
	if config.Finder.MaxConcurrency <= 0 {
		config.Finder.MaxConcurrency = defaultMaxConcurrency
	}
	if config.DiscoveryRetry.Attempts < 1 {
		config.DiscoveryRetry.Attempts = 1
	}
	if config.Refresh.Interval < 0 {
		config.Refresh.Interval = defaultRefreshInterval
	}
}
