// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// ProvideHandlers builds the device, cluster and cache handlers.
func ProvideHandlers() fx.Option {
	return fx.Provide(
		fx.Annotated{
			Name:   "list_devices_handler",
			Target: newListDevicesHandler,
		},
		fx.Annotated{
			Name:   "create_device_handler",
			Target: newCreateDeviceHandler,
		},
		fx.Annotated{
			Name:   "get_device_handler",
			Target: newGetDeviceHandler,
		},
		fx.Annotated{
			Name:   "update_device_handler",
			Target: newUpdateDeviceHandler,
		},
		fx.Annotated{
			Name:   "delete_device_handler",
			Target: newDeleteDeviceHandler,
		},
		fx.Annotated{
			Name:   "clusters_handler",
			Target: newClustersHandler,
		},
		fx.Annotated{
			Name:   "get_cluster_handler",
			Target: newGetClusterHandler,
		},
		fx.Annotated{
			Name:   "refresh_clusters_handler",
			Target: newRefreshClustersHandler,
		},
		fx.Annotated{
			Name:   "cache_status_handler",
			Target: newCacheStatusHandler,
		},
		fx.Annotated{
			Name:   "clear_cache_handler",
			Target: newClearCacheHandler,
		},
		fx.Annotated{
			Name:   "invalidate_cluster_handler",
			Target: newInvalidateClusterHandler,
		},
	)
}

// Handlers are the named handlers ProvideHandlers builds.
type Handlers struct {
	fx.In

	ListDevices       Handler `name:"list_devices_handler"`
	CreateDevice      Handler `name:"create_device_handler"`
	GetDevice         Handler `name:"get_device_handler"`
	UpdateDevice      Handler `name:"update_device_handler"`
	DeleteDevice      Handler `name:"delete_device_handler"`
	Clusters          Handler `name:"clusters_handler"`
	GetCluster        Handler `name:"get_cluster_handler"`
	RefreshClusters   Handler `name:"refresh_clusters_handler"`
	CacheStatus       Handler `name:"cache_status_handler"`
	ClearCache        Handler `name:"clear_cache_handler"`
	InvalidateCluster Handler `name:"invalidate_cluster_handler"`
}

// Register adds every route under apiBase to r.
func (h Handlers) Register(r *mux.Router, apiBase string) {
	devicesPath := fmt.Sprintf("/%s/devices", apiBase)
	devicePath := fmt.Sprintf("%s/{%s}", devicesPath, guidVarKey)
	clustersPath := fmt.Sprintf("/%s/clusters", apiBase)
	cachePath := fmt.Sprintf("/%s/cache", apiBase)

	r.Handle(devicesPath, h.ListDevices).Methods(http.MethodGet)
	r.Handle(devicesPath, h.CreateDevice).Methods(http.MethodPost)
	r.Handle(devicePath, h.GetDevice).Methods(http.MethodGet)
	r.Handle(devicePath, h.UpdateDevice).Methods(http.MethodPut)
	r.Handle(devicePath, h.DeleteDevice).Methods(http.MethodDelete)

	r.Handle(clustersPath, h.Clusters).Methods(http.MethodGet)
	r.Handle(clustersPath+"/refresh", h.RefreshClusters).Methods(http.MethodPost)
	r.Handle(fmt.Sprintf("%s/{%s}", clustersPath, clusterVarKey), h.GetCluster).Methods(http.MethodGet)

	r.Handle(cachePath+"/status", h.CacheStatus).Methods(http.MethodGet)
	r.Handle(cachePath+"/clear", h.ClearCache).Methods(http.MethodPost)
	r.Handle(fmt.Sprintf("%s/clusters/{%s}", cachePath, clusterVarKey), h.InvalidateCluster).Methods(http.MethodDelete)
}

// NewHandlers builds the handlers without a container.
func NewHandlers(s Service, logger *zap.Logger) Handlers {
	in := handlerIn{Service: s, Logger: logger}
	return Handlers{
		ListDevices:       newListDevicesHandler(in),
		CreateDevice:      newCreateDeviceHandler(in),
		GetDevice:         newGetDeviceHandler(in),
		UpdateDevice:      newUpdateDeviceHandler(in),
		DeleteDevice:      newDeleteDeviceHandler(in),
		Clusters:          newClustersHandler(in),
		GetCluster:        newGetClusterHandler(in),
		RefreshClusters:   newRefreshClustersHandler(in),
		CacheStatus:       newCacheStatusHandler(in),
		ClearCache:        newClearCacheHandler(in),
		InvalidateCluster: newInvalidateClusterHandler(in),
	}
}
