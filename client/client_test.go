// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xmidt-org/ladon/model"
	"github.com/xmidt-org/ladon/remotetest"
	"go.uber.org/zap"
)

func newTestMeasures() *Measures {
	return &Measures{
		RemoteRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: RemoteRequestsCounter,
		}, []string{OperationLabel, OutcomeLabel}),
	}
}

func newTestClient(t *testing.T, store *remotetest.Store, config BasicClientConfig) (*BasicClient, *Measures) {
	server := store.Server(t)
	config.Address = server.URL
	config.HTTPClient = server.Client()
	m := newTestMeasures()
	c, err := NewBasicClient(config, m, nil)
	require.NoError(t, err)
	return c, m
}

func TestValidateBasicConfig(t *testing.T) {
	type testCase struct {
		Description    string
		Input          *BasicClientConfig
		ExpectedErr    error
		ExpectedConfig *BasicClientConfig
	}

	myAmazingClient := &http.Client{Timeout: time.Hour}
	logger := zap.NewExample()

	tcs := []testCase{
		{
			Description: "No address",
			Input:       &BasicClientConfig{},
			ExpectedErr: ErrAddressEmpty,
		},
		{
			Description: "All defined",
			Input: &BasicClientConfig{
				Address:    "http://legit-store-hostname.io",
				HTTPClient: myAmazingClient,
				Timeouts:   Timeouts{Fetch: time.Second, Discovery: time.Minute, Write: 2 * time.Second},
				PerPage:    50,
				Logger:     logger,
			},
			ExpectedConfig: &BasicClientConfig{
				Address:    "http://legit-store-hostname.io",
				HTTPClient: myAmazingClient,
				Timeouts:   Timeouts{Fetch: time.Second, Discovery: time.Minute, Write: 2 * time.Second},
				PerPage:    50,
				Logger:     logger,
			},
		},
	}

	for _, tc := range tcs {
		t.Run(tc.Description, func(t *testing.T) {
			assert := assert.New(t)
			err := validateBasicConfig(tc.Input)
			assert.Equal(tc.ExpectedErr, err)
			if tc.ExpectedErr == nil {
				assert.Equal(tc.ExpectedConfig, tc.Input)
			}
		})
	}
}

func TestValidateBasicConfigDefaults(t *testing.T) {
	assert := assert.New(t)
	config := BasicClientConfig{Address: "http://store.io"}
	assert.NoError(validateBasicConfig(&config))
	assert.Equal(http.DefaultClient, config.HTTPClient)
	assert.Equal(Timeouts{Fetch: 10 * time.Second, Discovery: 30 * time.Second, Write: 30 * time.Second}, config.Timeouts)
	assert.Equal(2000, config.PerPage)
	assert.NotNil(config.Logger)
}

func TestBuildTokenAcquirer(t *testing.T) {
	tcs := []struct {
		Description string
		Auth        Auth
		Expected    string
	}{
		{
			Description: "Bearer",
			Auth:        Auth{Bearer: "abc", Basic: "Basic xyz"},
			Expected:    "Bearer abc",
		},
		{
			Description: "Basic",
			Auth:        Auth{Basic: "Basic xyz"},
			Expected:    "Basic xyz",
		},
		{
			Description: "None",
		},
	}

	for _, tc := range tcs {
		t.Run(tc.Description, func(t *testing.T) {
			assert := assert.New(t)
			require := require.New(t)
			acquirer, err := buildTokenAcquirer(tc.Auth)
			require.NoError(err)
			token, err := acquirer.Acquire()
			require.NoError(err)
			assert.Equal(tc.Expected, token)
		})
	}
}

func TestDiscover(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		assert := assert.New(t)
		require := require.New(t)

		store := remotetest.TwoClusters()
		store.RequireToken("secret")
		c, m := newTestClient(t, store, BasicClientConfig{Auth: Auth{Bearer: "secret"}})

		d, err := c.Discover(context.Background())
		require.NoError(err)
		assert.Equal(model.Discovery{
			Clusters: []model.ClusterInfo{
				{ID: remotetest.GatewayClusterID, Name: "Gateways", Category: model.GatewayCategory, DeviceCount: 2},
				{ID: remotetest.SensorClusterID, Name: "Rodent Traps", Category: model.SensorCategory, DeviceCount: 3},
			},
			TotalDevices: 5,
		}, d)
		assert.Equal(1, store.Calls(remotetest.Discover))
		assert.Equal(float64(1), testutil.ToFloat64(m.RemoteRequests.WithLabelValues(DiscoverOperation, SuccessOutcome)))
	})

	failures := []struct {
		Description string
		Setup       func(*remotetest.Store)
		ExpectedErr error
	}{
		{
			Description: "Server error",
			Setup:       func(s *remotetest.Store) { s.Fail(remotetest.Discover, http.StatusInternalServerError) },
			ExpectedErr: errNonSuccessResponse,
		},
		{
			Description: "Unauthorized",
			Setup:       func(s *remotetest.Store) { s.RequireToken("other") },
			ExpectedErr: ErrFailedAuthentication,
		},
		{
			Description: "Timeout",
			Setup:       func(s *remotetest.Store) { s.SetLatency(time.Second) },
			ExpectedErr: errDoRequestFailure,
		},
	}

	for _, tc := range failures {
		t.Run(tc.Description, func(t *testing.T) {
			assert := assert.New(t)

			store := remotetest.TwoClusters()
			tc.Setup(store)
			c, m := newTestClient(t, store, BasicClientConfig{
				Timeouts: Timeouts{Discovery: 50 * time.Millisecond},
			})

			d, err := c.Discover(context.Background())
			assert.True(errors.Is(err, model.ErrRemoteUnavailable))
			assert.True(errors.Is(err, tc.ExpectedErr))
			assert.True(d.Empty())
			assert.Equal(float64(1), testutil.ToFloat64(m.RemoteRequests.WithLabelValues(DiscoverOperation, FailureOutcome)))
		})
	}
}

func TestDiscoverBadBody(t *testing.T) {
	assert := assert.New(t)
	server := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, _ *http.Request) {
		rw.Write([]byte(`{"objs": "nope"}`)) // nolint:errcheck
	}))
	defer server.Close()

	c, err := NewBasicClient(BasicClientConfig{Address: server.URL}, nil, nil)
	require.NoError(t, err)
	_, err = c.Discover(context.Background())
	assert.True(errors.Is(err, model.ErrRemoteUnavailable))
	assert.True(errors.Is(err, errJSONUnmarshal))
}

func TestFetchCluster(t *testing.T) {
	tcs := []struct {
		Description     string
		Category        model.Category
		ClusterID       string
		Setup           func(*remotetest.Store)
		ExpectedErr     error
		ExpectedDevices int
	}{
		{
			Description:     "Success",
			Category:        model.SensorCategory,
			ClusterID:       remotetest.SensorClusterID,
			ExpectedDevices: 3,
		},
		{
			Description: "Empty objs",
			Category:    model.GatewayCategory,
			ClusterID:   "missing",
			ExpectedErr: model.ErrClusterNotFound,
		},
		{
			Description: "Not found",
			Category:    model.GatewayCategory,
			ClusterID:   remotetest.GatewayClusterID,
			Setup:       func(s *remotetest.Store) { s.Fail(remotetest.Fetch, http.StatusNotFound) },
			ExpectedErr: model.ErrClusterNotFound,
		},
		{
			Description: "Server error",
			Category:    model.GatewayCategory,
			ClusterID:   remotetest.GatewayClusterID,
			Setup:       func(s *remotetest.Store) { s.Fail(remotetest.Fetch, http.StatusServiceUnavailable) },
			ExpectedErr: model.ErrRemoteUnavailable,
		},
		{
			Description: "Missing cluster id",
			Category:    model.GatewayCategory,
			ExpectedErr: model.ErrInvalidInput,
		},
	}

	for _, tc := range tcs {
		t.Run(tc.Description, func(t *testing.T) {
			assert := assert.New(t)
			store := remotetest.TwoClusters()
			if tc.Setup != nil {
				tc.Setup(store)
			}
			c, _ := newTestClient(t, store, BasicClientConfig{})

			cluster, err := c.FetchCluster(context.Background(), tc.Category, tc.ClusterID)
			if tc.ExpectedErr != nil {
				assert.True(errors.Is(err, tc.ExpectedErr), err)
				return
			}
			assert.NoError(err)
			assert.Equal(tc.ClusterID, cluster.ID)
			assert.Equal(tc.Category, cluster.Category)
			assert.Len(cluster.Devices, tc.ExpectedDevices)
		})
	}
}

func TestPutCluster(t *testing.T) {
	t.Run("Updated and created", func(t *testing.T) {
		assert := assert.New(t)
		require := require.New(t)
		store := remotetest.TwoClusters()
		c, m := newTestClient(t, store, BasicClientConfig{})

		cluster := remotetest.SensorCluster()
		cluster.Devices = append(cluster.Devices, remotetest.NewDevice("id", "erp-device-new", "Acme"))
		result, err := c.PutCluster(context.Background(), cluster.Category, cluster.ID, cluster)
		require.NoError(err)
		assert.Equal(UpdatedPushResult, result)
		stored, ok := store.Cluster(cluster.ID)
		require.True(ok)
		assert.Len(stored.Devices, 4)

		cluster.ID = "brand-new"
		result, err = c.PutCluster(context.Background(), cluster.Category, cluster.ID, cluster)
		require.NoError(err)
		assert.Equal(CreatedPushResult, result)
		assert.Equal("created", result.String())
		assert.Equal(float64(2), testutil.ToFloat64(m.RemoteRequests.WithLabelValues(PutOperation, SuccessOutcome)))
	})

	t.Run("Rejected", func(t *testing.T) {
		assert := assert.New(t)
		store := remotetest.TwoClusters()
		store.Fail(remotetest.Put, http.StatusBadRequest)
		c, m := newTestClient(t, store, BasicClientConfig{})

		result, err := c.PutCluster(context.Background(), model.SensorCategory, remotetest.SensorClusterID, remotetest.SensorCluster())
		assert.Equal(NilPushResult, result)
		assert.True(errors.Is(err, model.ErrWriteRejected))
		assert.True(errors.Is(err, ErrBadRequest))
		assert.Equal(float64(1), testutil.ToFloat64(m.RemoteRequests.WithLabelValues(PutOperation, RejectedOutcome)))
	})

	t.Run("Unreachable", func(t *testing.T) {
		assert := assert.New(t)
		server := httptest.NewServer(http.NotFoundHandler())
		server.Close()

		c, err := NewBasicClient(BasicClientConfig{Address: server.URL}, nil, nil)
		require.NoError(t, err)
		_, err = c.PutCluster(context.Background(), model.SensorCategory, "c", model.Cluster{})
		assert.True(errors.Is(err, model.ErrRemoteUnavailable))
		assert.False(errors.Is(err, model.ErrWriteRejected))
	})
}
