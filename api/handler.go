// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"net/http"

	"github.com/go-kit/kit/endpoint"
	kithttp "github.com/go-kit/kit/transport/http"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Handler http.Handler

type handlerIn struct {
	fx.In

	Service Service
	Logger  *zap.Logger
}

func newHandler(in handlerIn, e endpoint.Endpoint, dec kithttp.DecodeRequestFunc, code int) Handler {
	logger := in.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return kithttp.NewServer(
		e,
		dec,
		encodeJSONResponse(code),
		kithttp.ServerBefore(requestLogger(logger)),
		kithttp.ServerErrorEncoder(encodeError),
	)
}

func newListDevicesHandler(in handlerIn) Handler {
	return newHandler(in, newListDevicesEndpoint(in.Service), decodeNoRequest, http.StatusOK)
}

func newCreateDeviceHandler(in handlerIn) Handler {
	return newHandler(in, newCreateDeviceEndpoint(in.Service), decodeCreateDeviceRequest, http.StatusCreated)
}

func newGetDeviceHandler(in handlerIn) Handler {
	return newHandler(in, newGetDeviceEndpoint(in.Service), decodeDeviceRequest, http.StatusOK)
}

func newUpdateDeviceHandler(in handlerIn) Handler {
	return newHandler(in, newUpdateDeviceEndpoint(in.Service), decodeUpdateDeviceRequest, http.StatusOK)
}

func newDeleteDeviceHandler(in handlerIn) Handler {
	return newHandler(in, newDeleteDeviceEndpoint(in.Service), decodeDeviceRequest, http.StatusOK)
}

func newClustersHandler(in handlerIn) Handler {
	return newHandler(in, newClustersEndpoint(in.Service), decodeNoRequest, http.StatusOK)
}

func newGetClusterHandler(in handlerIn) Handler {
	return newHandler(in, newGetClusterEndpoint(in.Service), decodeClusterRequest, http.StatusOK)
}

func newRefreshClustersHandler(in handlerIn) Handler {
	return newHandler(in, newRefreshClustersEndpoint(in.Service), decodeNoRequest, http.StatusOK)
}

func newCacheStatusHandler(in handlerIn) Handler {
	return newHandler(in, newCacheStatusEndpoint(in.Service), decodeNoRequest, http.StatusOK)
}

func newClearCacheHandler(in handlerIn) Handler {
	return newHandler(in, newClearCacheEndpoint(in.Service), decodeNoRequest, http.StatusOK)
}

func newInvalidateClusterHandler(in handlerIn) Handler {
	return newHandler(in, newInvalidateClusterEndpoint(in.Service), decodeClusterRequest, http.StatusOK)
}
