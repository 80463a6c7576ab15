// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"time"

	"emperror.dev/emperror"
	"github.com/spf13/viper"
	"github.com/xmidt-org/candlelight"
	"github.com/xmidt-org/ladon/cache"
	"github.com/xmidt-org/ladon/client"
	"github.com/xmidt-org/ladon/devices"
	"github.com/xmidt-org/touchstone"
	"go.uber.org/fx"
)

// ServerConfig configures one of the HTTP servers.
type ServerConfig struct {
	Address           string
	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
}

// ServersConfig holds the primary and metrics servers.
type ServersConfig struct {
	Primary ServerConfig
	Metrics ServerConfig
}

// PrometheusConfig is the metrics registry plus the path it is served on.
type PrometheusConfig struct {
	touchstone.Config `mapstructure:",squash"`
	Path              string
}

// HealthConfig configures the health route.
type HealthConfig struct {
	Path string
}

// MetricsPath is where the metrics server serves prometheus.
type MetricsPath string

// HealthPath is where the primary server answers health checks.
type HealthPath string

// Config is the whole configuration file.
type Config struct {
	Remote     client.BasicClientConfig
	Cache      cache.Config
	Devices    devices.Config
	Servers    ServersConfig
	Prometheus PrometheusConfig
	Health     HealthConfig
	Tracing    candlelight.Config
}

// loadConfig decodes every section at once so that defaults set on nested
// keys are merged with the file.
func loadConfig(v *viper.Viper) (Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return config, emperror.WrapWith(err, "failed to unmarshal configuration", "file", v.ConfigFileUsed())
	}
	config.Tracing.ApplicationName = applicationName
	return config, nil
}

type configOut struct {
	fx.Out
	Remote      client.BasicClientConfig
	Cache       cache.Config
	Devices     devices.Config
	Servers     ServersConfig
	Metrics     touchstone.Config
	MetricsPath MetricsPath
	HealthPath  HealthPath
	Tracing     candlelight.Config
}

func provideConfig() fx.Option {
	return fx.Provide(
		func(v *viper.Viper) (configOut, error) {
			config, err := loadConfig(v)
			if err != nil {
				return configOut{}, err
			}
			return configOut{
				Remote:      config.Remote,
				Cache:       config.Cache,
				Devices:     config.Devices,
				Servers:     config.Servers,
				Metrics:     config.Prometheus.Config,
				MetricsPath: MetricsPath(config.Prometheus.Path),
				HealthPath:  HealthPath(config.Health.Path),
				Tracing:     config.Tracing,
			}, nil
		},
	)
}
