// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"net"
	"net/http"

	"emperror.dev/emperror"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type ServersIn struct {
	fx.In
	Config    ServersConfig
	Primary   http.Handler `name:"primary_handler"`
	Metrics   http.Handler `name:"metrics_handler"`
	Logger    *zap.Logger
	Lifecycle fx.Lifecycle
}

func provideServers() fx.Option {
	return fx.Options(
		provideRoutes(),
		fx.Invoke(
			func(in ServersIn) {
				bindServer(in.Lifecycle, primaryServer, newServer(in.Config.Primary, in.Primary, in.Logger), in.Logger)
				bindServer(in.Lifecycle, metricsServer, newServer(in.Config.Metrics, in.Metrics, in.Logger), in.Logger)
			},
		),
	)
}

func newServer(config ServerConfig, handler http.Handler, logger *zap.Logger) *http.Server {
	return &http.Server{
		Addr:              config.Address,
		Handler:           handler,
		ReadHeaderTimeout: config.ReadHeaderTimeout,
		ReadTimeout:       config.ReadTimeout,
		WriteTimeout:      config.WriteTimeout,
		IdleTimeout:       config.IdleTimeout,
		ErrorLog:          zap.NewStdLog(logger),
	}
}

// bindServer starts listening when the application starts and shuts the
// server down gracefully when it stops.
func bindServer(lc fx.Lifecycle, name string, server *http.Server, logger *zap.Logger) {
	logger = logger.With(zap.String("server", name), zap.String("address", server.Addr))
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			ln, err := net.Listen("tcp", server.Addr)
			if err != nil {
				return emperror.WrapWith(err, "failed to listen", "server", name, "address", server.Addr)
			}
			go func() {
				if err := server.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
					logger.Error("server stopped unexpectedly", zap.Error(err))
				}
			}()
			logger.Info("server started")
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("stopping server")
			return server.Shutdown(ctx)
		},
	})
}
