// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"context"

	"github.com/go-kit/kit/endpoint"
	"github.com/xmidt-org/ladon/devices"
)

func newListDevicesEndpoint(s Service) endpoint.Endpoint {
	return func(ctx context.Context, _ interface{}) (interface{}, error) {
		list, err := s.List(ctx)
		if err != nil {
			return nil, err
		}
		return &list, nil
	}
}

func newCreateDeviceEndpoint(s Service) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		createRequest := request.(*devices.CreateRequest)
		created, err := s.Create(ctx, *createRequest)
		if err != nil {
			return nil, err
		}
		return &created, nil
	}
}

func newGetDeviceEndpoint(s Service) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		deviceRequest := request.(*deviceRequest)
		view, err := s.Get(ctx, deviceRequest.guid)
		if err != nil {
			return nil, err
		}
		return &view, nil
	}
}

func newUpdateDeviceEndpoint(s Service) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		updateRequest := request.(*updateDeviceRequest)
		view, err := s.UpdateByGUID(ctx, updateRequest.guid, updateRequest.update)
		if err != nil {
			return nil, err
		}
		return &view, nil
	}
}

func newDeleteDeviceEndpoint(s Service) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		deviceRequest := request.(*deviceRequest)
		deleted, err := s.DeleteByGUID(ctx, deviceRequest.guid)
		if err != nil {
			return nil, err
		}
		return &deleted, nil
	}
}

func newClustersEndpoint(s Service) endpoint.Endpoint {
	return func(ctx context.Context, _ interface{}) (interface{}, error) {
		m, err := s.Clusters(ctx)
		if err != nil {
			return nil, err
		}
		return &m, nil
	}
}

func newGetClusterEndpoint(s Service) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		clusterRequest := request.(*clusterRequest)
		c, err := s.Cluster(ctx, clusterRequest.clusterID, clusterRequest.category)
		if err != nil {
			return nil, err
		}
		return &c, nil
	}
}

func newRefreshClustersEndpoint(s Service) endpoint.Endpoint {
	return func(ctx context.Context, _ interface{}) (interface{}, error) {
		m, err := s.RefreshDiscovery(ctx)
		if err != nil {
			return nil, err
		}
		return &m, nil
	}
}

func newCacheStatusEndpoint(s Service) endpoint.Endpoint {
	return func(_ context.Context, _ interface{}) (interface{}, error) {
		status := s.CacheStatus()
		return &status, nil
	}
}

func newClearCacheEndpoint(s Service) endpoint.Endpoint {
	return func(_ context.Context, _ interface{}) (interface{}, error) {
		s.ClearCache()
		status := s.CacheStatus()
		return &status, nil
	}
}

func newInvalidateClusterEndpoint(s Service) endpoint.Endpoint {
	return func(_ context.Context, request interface{}) (interface{}, error) {
		clusterRequest := request.(*clusterRequest)
		s.InvalidateCluster(clusterRequest.clusterID)
		status := s.CacheStatus()
		return &status, nil
	}
}
