// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"context"

	"github.com/xmidt-org/ladon/cache"
	"github.com/xmidt-org/ladon/devices"
	"github.com/xmidt-org/ladon/model"
)

// Service is what the HTTP API exposes. *devices.Service implements it.
type Service interface {
	Create(ctx context.Context, req devices.CreateRequest) (devices.Created, error)
	List(ctx context.Context) (devices.ListResult, error)
	Get(ctx context.Context, guid string) (model.DeviceView, error)
	UpdateByGUID(ctx context.Context, guid string, update model.DeviceUpdate) (model.DeviceView, error)
	DeleteByGUID(ctx context.Context, guid string) (devices.Deleted, error)

	Clusters(ctx context.Context) (model.Discovery, error)
	Cluster(ctx context.Context, clusterID string, category model.Category) (model.Cluster, error)
	RefreshDiscovery(ctx context.Context) (model.Discovery, error)

	CacheStatus() cache.Status
	ClearCache()
	InvalidateCluster(clusterID string)
}

var _ Service = (*devices.Service)(nil)
