// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package devices

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xmidt-org/ladon/cache"
	"github.com/xmidt-org/ladon/client"
	"github.com/xmidt-org/ladon/model"
	"github.com/xmidt-org/ladon/remotetest"
)

func newTestClient(t *testing.T, store *remotetest.Store) *client.BasicClient {
	server := store.Server(t)
	c, err := client.NewBasicClient(client.BasicClientConfig{
		Address:    server.URL,
		HTTPClient: server.Client(),
	}, nil, nil)
	require.NoError(t, err)
	return c
}

func TestPatternReject(t *testing.T) {
	tcs := []struct {
		Description string
		Policy      FastReject
		GUID        string
		Expected    bool
	}{
		{Description: "Fake prefix", Policy: NewFastReject(FastRejectConfig{}), GUID: "fake-123", Expected: true},
		{Description: "Mixed case", Policy: NewFastReject(FastRejectConfig{}), GUID: "ERP-DEVICE-TEST-9", Expected: true},
		{Description: "Substring", Policy: NewFastReject(FastRejectConfig{}), GUID: "x-mock-y", Expected: true},
		{Description: "Real guid", Policy: NewFastReject(FastRejectConfig{}), GUID: "erp-device-5b0c4a10", Expected: false},
		{Description: "Disabled", Policy: NewFastReject(FastRejectConfig{Disabled: true}), GUID: "fake-123", Expected: false},
		{Description: "Custom patterns", Policy: NewFastReject(FastRejectConfig{Patterns: []string{"Staging-", " "}}), GUID: "staging-1", Expected: true},
		{Description: "Custom patterns replace defaults", Policy: NewFastReject(FastRejectConfig{Patterns: []string{"staging-"}}), GUID: "fake-1", Expected: false},
	}

	for _, tc := range tcs {
		t.Run(tc.Description, func(t *testing.T) {
			assert.Equal(t, tc.Expected, tc.Policy.Reject(tc.GUID))
		})
	}
}

func TestCachedDiscovererCollapsesMisses(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	store := remotetest.TwoClusters()
	store.SetLatency(50 * time.Millisecond)
	caches := cache.New(cache.DefaultConfig())
	d := NewCachedDiscoverer(caches.Discovery, newTestClient(t, store), RetryConfig{}, nil, nil)

	var wg sync.WaitGroup
	errs := make([]error, 10)
	for i := range errs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m, err := d.Discover(context.Background())
			if err == nil && len(m.Clusters) != 2 {
				err = fmt.Errorf("unexpected mapping %v", m)
			}
			errs[i] = err
		}()
	}
	wg.Wait()
	for _, err := range errs {
		require.NoError(err)
	}
	assert.Equal(1, store.Calls(remotetest.Discover))
	assert.True(caches.Discovery.IsValid())

	_, err := d.Discover(context.Background())
	require.NoError(err)
	assert.Equal(1, store.Calls(remotetest.Discover))

	_, err = d.Refresh(context.Background())
	require.NoError(err)
	assert.Equal(2, store.Calls(remotetest.Discover))
}

func TestCachedDiscovererRefreshDuringMiss(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	var calls int32
	release := make(chan struct{})
	remote := client.DiscovererFunc(func(context.Context) (model.Discovery, error) {
		n := atomic.AddInt32(&calls, 1)
		<-release
		return model.Discovery{Clusters: []model.ClusterInfo{
			{ID: fmt.Sprintf("c%d", n), Category: model.SensorCategory},
		}}, nil
	})
	caches := cache.New(cache.DefaultConfig())
	d := NewCachedDiscoverer(caches.Discovery, remote, RetryConfig{}, nil, nil)

	var wg sync.WaitGroup
	var missErr, refreshErr error
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, missErr = d.Discover(context.Background())
	}()
	require.Eventually(func() bool { return atomic.LoadInt32(&calls) == 1 }, time.Second, time.Millisecond)

	go func() {
		defer wg.Done()
		_, refreshErr = d.Refresh(context.Background())
	}()
	require.Eventually(func() bool { return atomic.LoadInt32(&calls) == 2 }, time.Second, time.Millisecond,
		"a refresh must not join the miss already in flight")

	close(release)
	wg.Wait()
	assert.NoError(missErr)
	assert.NoError(refreshErr)
	assert.True(caches.Discovery.IsValid())
}

func TestCachedDiscovererRetry(t *testing.T) {
	unavailable := fmt.Errorf("%w: boom", model.ErrRemoteUnavailable)
	mapping := model.Discovery{Clusters: []model.ClusterInfo{{ID: "c", Category: model.SensorCategory}}}

	tcs := []struct {
		Description   string
		Attempts      uint
		Failures      int
		Err           error
		ExpectedCalls int32
		ExpectedErr   error
	}{
		{
			Description:   "No retry by default",
			Failures:      1,
			Err:           unavailable,
			ExpectedCalls: 1,
			ExpectedErr:   model.ErrRemoteUnavailable,
		},
		{
			Description:   "Retry until success",
			Attempts:      3,
			Failures:      2,
			Err:           unavailable,
			ExpectedCalls: 3,
		},
		{
			Description:   "Retries exhausted",
			Attempts:      2,
			Failures:      5,
			Err:           unavailable,
			ExpectedCalls: 2,
			ExpectedErr:   model.ErrRemoteUnavailable,
		},
		{
			Description:   "Other errors are not retried",
			Attempts:      3,
			Failures:      5,
			Err:           model.ErrInvalidInput,
			ExpectedCalls: 1,
			ExpectedErr:   model.ErrInvalidInput,
		},
	}

	for _, tc := range tcs {
		t.Run(tc.Description, func(t *testing.T) {
			assert := assert.New(t)

			var calls int32
			remote := client.DiscovererFunc(func(context.Context) (model.Discovery, error) {
				if int(atomic.AddInt32(&calls, 1)) <= tc.Failures {
					return model.Discovery{}, tc.Err
				}
				return mapping, nil
			})
			caches := cache.New(cache.DefaultConfig())
			d := NewCachedDiscoverer(caches.Discovery, remote, RetryConfig{Attempts: tc.Attempts, Delay: time.Millisecond}, nil, nil)

			m, err := d.Discover(context.Background())
			assert.Equal(tc.ExpectedCalls, atomic.LoadInt32(&calls))
			if tc.ExpectedErr != nil {
				assert.True(errors.Is(err, tc.ExpectedErr), err)
				assert.False(caches.Status().Discovery.Populated, "failed discoveries cache nothing")
				return
			}
			assert.NoError(err)
			assert.Equal(mapping, m)
		})
	}
}

func TestFindByGUID(t *testing.T) {
	tcs := []struct {
		Description       string
		GUID              string
		Setup             func(*remotetest.Store)
		ExpectedCluster   string
		ExpectedIndex     int
		ExpectedErr       error
		ExpectedDiscovers int
	}{
		{
			Description:       "Sensor",
			GUID:              "erp-device-trap-2",
			ExpectedCluster:   remotetest.SensorClusterID,
			ExpectedIndex:     1,
			ExpectedDiscovers: 1,
		},
		{
			Description:       "Gateway",
			GUID:              "erp-device-gw-1",
			ExpectedCluster:   remotetest.GatewayClusterID,
			ExpectedIndex:     0,
			ExpectedDiscovers: 1,
		},
		{
			Description:       "Unknown",
			GUID:              "erp-device-nowhere",
			ExpectedErr:       model.ErrDeviceNotFound,
			ExpectedDiscovers: 1,
		},
		{
			Description: "Fast rejected",
			GUID:        "fake-device-1",
			ExpectedErr: model.ErrDeviceNotFound,
		},
		{
			Description: "Empty guid",
			ExpectedErr: model.ErrInvalidInput,
		},
		{
			Description:       "All clusters unreadable",
			GUID:              "erp-device-trap-2",
			Setup:             func(s *remotetest.Store) { s.Fail(remotetest.Fetch, http.StatusInternalServerError) },
			ExpectedErr:       model.ErrDeviceNotFound,
			ExpectedDiscovers: 1,
		},
		{
			Description:       "Unreadable sibling cluster",
			GUID:              "erp-device-trap-2",
			Setup:             func(s *remotetest.Store) { s.FailCluster(remotetest.GatewayClusterID, http.StatusInternalServerError) },
			ExpectedCluster:   remotetest.SensorClusterID,
			ExpectedIndex:     1,
			ExpectedDiscovers: 1,
		},
		{
			Description:       "Device in the unreadable cluster",
			GUID:              "erp-device-gw-2",
			Setup:             func(s *remotetest.Store) { s.FailCluster(remotetest.GatewayClusterID, http.StatusServiceUnavailable) },
			ExpectedErr:       model.ErrDeviceNotFound,
			ExpectedDiscovers: 1,
		},
		{
			Description:       "Discovery failure",
			GUID:              "erp-device-trap-2",
			Setup:             func(s *remotetest.Store) { s.Fail(remotetest.Discover, http.StatusBadGateway) },
			ExpectedErr:       model.ErrRemoteUnavailable,
			ExpectedDiscovers: 1,
		},
	}

	for _, tc := range tcs {
		t.Run(tc.Description, func(t *testing.T) {
			assert := assert.New(t)

			store := remotetest.TwoClusters()
			if tc.Setup != nil {
				tc.Setup(store)
			}
			remote := newTestClient(t, store)
			caches := cache.New(cache.DefaultConfig())
			d := NewCachedDiscoverer(caches.Discovery, remote, RetryConfig{}, nil, nil)
			f := NewFinder(FinderConfig{MaxConcurrency: 1}, d, remote, NewFastReject(FastRejectConfig{}), nil, nil)

			located, err := f.FindByGUID(context.Background(), tc.GUID)
			assert.Equal(tc.ExpectedDiscovers, store.Calls(remotetest.Discover))
			assert.Equal(0, caches.Status().Documents.CachedClusters, "the finder never caches documents")
			if tc.ExpectedErr != nil {
				assert.True(errors.Is(err, tc.ExpectedErr), err)
				return
			}
			assert.NoError(err)
			assert.Equal(tc.ExpectedCluster, located.Info.ID)
			assert.Equal(tc.ExpectedIndex, located.Index)
			assert.Equal(tc.GUID, located.Device.GUID)
			assert.Equal(tc.GUID, located.Cluster.Devices[located.Index].GUID)
		})
	}
}

func TestFindByGUIDStopsAtFirstMatch(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	clusters := []model.Cluster{remotetest.SensorCluster()}
	for i := 0; i < 20; i++ {
		c := remotetest.GatewayCluster()
		c.ID = fmt.Sprintf("gateways-%02d", i)
		c.Devices = nil
		clusters = append(clusters, c)
	}
	store := remotetest.NewStore(clusters...)
	remote := newTestClient(t, store)
	caches := cache.New(cache.DefaultConfig())
	d := NewCachedDiscoverer(caches.Discovery, remote, RetryConfig{}, nil, nil)
	f := NewFinder(FinderConfig{MaxConcurrency: 1}, d, remote, NeverReject{}, nil, nil)

	located, err := f.FindByGUID(context.Background(), "erp-device-trap-1")
	require.NoError(err)
	assert.Equal(remotetest.SensorClusterID, located.Info.ID)
	assert.Less(store.Calls(remotetest.Fetch), len(clusters))
}
