// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/pflag"
	"github.com/xmidt-org/ladon/api"
	"github.com/xmidt-org/ladon/cache"
	"github.com/xmidt-org/ladon/client"
	"github.com/xmidt-org/ladon/devices"
	"github.com/xmidt-org/sallust"
	"github.com/xmidt-org/touchstone"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

const (
	applicationName = "ladon"
	apiBase         = "api/v1"
)

var (
	GitCommit = "undefined"
	Version   = "undefined"
	BuildTime = "undefined"
)

type clientIn struct {
	fx.In
	Config   client.BasicClientConfig
	Measures client.Measures
	Logger   *zap.Logger
}

func provideClient(in clientIn) (*client.BasicClient, error) {
	in.Config.Logger = in.Logger
	return client.NewBasicClient(in.Config, &in.Measures, sallust.Get)
}

type cachesIn struct {
	fx.In
	Config    cache.Config
	Measures  cache.Measures
	Logger    *zap.Logger
	Lifecycle fx.Lifecycle
}

func provideCaches(in cachesIn) *cache.Caches {
	c := cache.New(in.Config, cache.WithMeasures(&in.Measures), cache.WithLogger(in.Logger))
	in.Lifecycle.Append(fx.Hook{
		OnStart: c.Start,
		OnStop:  c.Stop,
	})
	return c
}

type serviceIn struct {
	fx.In
	Config   devices.Config
	Remote   *client.BasicClient
	Caches   *cache.Caches
	Measures devices.Measures
	Logger   *zap.Logger
}

func provideService(in serviceIn) (*devices.Service, error) {
	return devices.NewService(in.Config, in.Remote, in.Caches, in.Logger, &in.Measures)
}

type refresherIn struct {
	fx.In
	Config    devices.Config
	Service   *devices.Service
	Logger    *zap.Logger
	Lifecycle fx.Lifecycle
}

func provideRefresher(in refresherIn) (*devices.Refresher, error) {
	r, err := devices.NewRefresher(in.Config.Refresh, in.Service, in.Logger)
	if err != nil {
		return nil, err
	}
	in.Lifecycle.Append(fx.Hook{
		OnStart: r.Start,
		OnStop:  r.Stop,
	})
	return r, nil
}

func main() {
	v, logger, err := setup(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	app := fx.New(
		fx.WithLogger(func(l *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: l}
		}),
		fx.Supply(logger, v),
		provideConfig(),
		touchstone.Provide(),
		provideMetrics(),
		client.ProvideMetrics(),
		cache.ProvideMetrics(),
		devices.ProvideMetrics(),
		api.ProvideHandlers(),
		fx.Provide(
			provideClient,
			provideCaches,
			provideService,
			provideRefresher,
			func(s *devices.Service) api.Service { return s },
		),
		provideServers(),
		fx.Invoke(
			func(*devices.Refresher) {},
			func(l *zap.Logger) {
				l.Info("starting", zap.String("version", Version), zap.String("gitCommit", GitCommit))
			},
		),
	)

	switch err := app.Err(); {
	case errors.Is(err, pflag.ErrHelp):
		return
	case err == nil:
		app.Run()
	default:
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
}
