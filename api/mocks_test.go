// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"context"

	"github.com/stretchr/testify/mock"
	"github.com/xmidt-org/ladon/cache"
	"github.com/xmidt-org/ladon/devices"
	"github.com/xmidt-org/ladon/model"
)

type MockService struct {
	mock.Mock
}

func (m *MockService) Create(_ context.Context, req devices.CreateRequest) (devices.Created, error) {
	args := m.Called(req)
	return args.Get(0).(devices.Created), args.Error(1)
}

func (m *MockService) List(_ context.Context) (devices.ListResult, error) {
	args := m.Called()
	return args.Get(0).(devices.ListResult), args.Error(1)
}

func (m *MockService) Get(_ context.Context, guid string) (model.DeviceView, error) {
	args := m.Called(guid)
	return args.Get(0).(model.DeviceView), args.Error(1)
}

func (m *MockService) UpdateByGUID(_ context.Context, guid string, update model.DeviceUpdate) (model.DeviceView, error) {
	args := m.Called(guid, update)
	return args.Get(0).(model.DeviceView), args.Error(1)
}

func (m *MockService) DeleteByGUID(_ context.Context, guid string) (devices.Deleted, error) {
	args := m.Called(guid)
	return args.Get(0).(devices.Deleted), args.Error(1)
}

func (m *MockService) Clusters(_ context.Context) (model.Discovery, error) {
	args := m.Called()
	return args.Get(0).(model.Discovery), args.Error(1)
}

func (m *MockService) Cluster(_ context.Context, clusterID string, category model.Category) (model.Cluster, error) {
	args := m.Called(clusterID, category)
	return args.Get(0).(model.Cluster), args.Error(1)
}

func (m *MockService) RefreshDiscovery(_ context.Context) (model.Discovery, error) {
	args := m.Called()
	return args.Get(0).(model.Discovery), args.Error(1)
}

func (m *MockService) CacheStatus() cache.Status {
	args := m.Called()
	return args.Get(0).(cache.Status)
}

func (m *MockService) ClearCache() {
	m.Called()
}

func (m *MockService) InvalidateCluster(clusterID string) {
	m.Called(clusterID)
}
