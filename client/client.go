// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/xmidt-org/bascule/acquire"
	"github.com/xmidt-org/ladon/model"
	"github.com/xmidt-org/sallust"
	"go.uber.org/zap"
)

var (
	ErrAddressEmpty         = errors.New("remote store address is required")
	ErrAuthAcquirerFailure  = errors.New("failed acquiring auth token")
	ErrFailedAuthentication = errors.New("failed to authenticate with the remote store")
	ErrBadRequest           = errors.New("remote store rejected the request as invalid")
	ErrCategoryEmpty        = errors.New("category is required")
	ErrClusterIDEmpty       = errors.New("cluster ID is required")
)

var (
	errNonSuccessResponse = errors.New("remote store responded with a non-success status code")
	errNewRequestFailure  = errors.New("failed creating an HTTP request")
	errDoRequestFailure   = errors.New("http client failed while sending request")
	errReadingBodyFailure = errors.New("failed while reading http response body")
	errJSONUnmarshal      = errors.New("failed unmarshaling JSON response payload")
	errJSONMarshal        = errors.New("failed marshaling cluster as JSON payload")
)

const (
	devicePath       = "/device"
	errWrappedFmt    = "%w: %s"
	errStatusCodeFmt = "%w: %w: received status %v"
	errorHeaderKey   = "errorHeader"

	defaultFetchTimeout     = 10 * time.Second
	defaultDiscoveryTimeout = 30 * time.Second
	defaultWriteTimeout     = 30 * time.Second
	defaultPerPage          = 2000
)

// Auth contains authorization data for requests to the remote store. The
// first non-empty option wins, in field order.
type Auth struct {
	// Bearer is a raw token, sent as "Bearer <token>".
	Bearer string

	// Basic is a complete Authorization header value.
	Basic string

	JWT acquire.RemoteBearerTokenAcquirerOptions
}

// Timeouts bound each kind of remote call.
type Timeouts struct {
	Fetch     time.Duration
	Discovery time.Duration
	Write     time.Duration
}

// BasicClientConfig contains config data for the client that will be used to
// make requests to the remote device store.
type BasicClientConfig struct {
	// Address is the API base URL (i.e. https://api.example.io/share).
	Address string

	// HTTPClient refers to the client that will be used to send requests.
	// (Optional) Defaults to http.DefaultClient.
	HTTPClient *http.Client

	// Auth provides the mechanism to add auth headers to outgoing requests.
	// (Optional) If not provided, no auth headers are added.
	Auth Auth

	// Timeouts per kind of call.
	// (Optional) Defaults to 10s fetch, 30s discovery and 30s write.
	Timeouts Timeouts

	// PerPage is the page size of a discovery request.
	// (Optional) Defaults to 2000.
	PerPage int

	// Logger to be used by the client.
	// (Optional). By default a no op logger will be used.
	Logger *zap.Logger
}

// BasicClient talks to the remote device store.
type BasicClient struct {
	client    *http.Client
	auth      acquire.Acquirer
	baseURL   string
	timeouts  Timeouts
	perPage   int
	logger    *zap.Logger
	measures  *Measures
	getLogger func(context.Context) *zap.Logger
}

type response struct {
	Body        []byte
	ErrorHeader string
	Code        int
}

// objs is the envelope every device read answers with.
type objs struct {
	Objs []json.RawMessage `json:"objs"`
}

// NewBasicClient creates a new BasicClient. Measures are optional.
func NewBasicClient(config BasicClientConfig, measures *Measures, getLogger func(context.Context) *zap.Logger) (*BasicClient, error) {
	err := validateBasicConfig(&config)
	if err != nil {
		return nil, err
	}
	if getLogger == nil {
		getLogger = sallust.Get
	}

	tokenAcquirer, err := buildTokenAcquirer(config.Auth)
	if err != nil {
		return nil, err
	}

	return &BasicClient{
		client:    config.HTTPClient,
		auth:      tokenAcquirer,
		baseURL:   config.Address + devicePath,
		timeouts:  config.Timeouts,
		perPage:   config.PerPage,
		logger:    config.Logger,
		measures:  measures,
		getLogger: getLogger,
	}, nil
}

// discoveredCluster only decodes what discovery needs from a full document.
type discoveredCluster struct {
	ID      string `json:"_id"`
	RecType string `json:"recType"`
	Name    string `json:"name"`
	Data    struct {
		Devices []json.RawMessage `json:"devices"`
	} `json:"data"`
}

// Discover enumerates every cluster in one wildcard request. It never retries.
func (c *BasicClient) Discover(ctx context.Context) (model.Discovery, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeouts.Discovery)
	defer cancel()

	q := url.Values{}
	q.Set("details", "true")
	q.Set("page", "1")
	q.Set("perPage", strconv.Itoa(c.perPage))
	q.Set("discover", "true")

	resp, err := c.sendRequest(ctx, http.MethodGet, c.baseURL+"/*?"+q.Encode(), nil)
	if err != nil {
		c.observe(DiscoverOperation, FailureOutcome)
		return model.Discovery{}, fmt.Errorf("%w: %w", model.ErrRemoteUnavailable, err)
	}
	if resp.Code != http.StatusOK {
		c.observe(DiscoverOperation, FailureOutcome)
		c.logNonSuccess(ctx, "Remote store responded with non-200 response for a discovery request", resp)
		return model.Discovery{}, fmt.Errorf(errStatusCodeFmt, model.ErrRemoteUnavailable, translateNonSuccessStatusCode(resp.Code), resp.Code)
	}

	var body struct {
		Objs []discoveredCluster `json:"objs"`
	}
	if err := json.Unmarshal(resp.Body, &body); err != nil {
		c.observe(DiscoverOperation, FailureOutcome)
		return model.Discovery{}, fmt.Errorf("Discover: %w: %w: %s", model.ErrRemoteUnavailable, errJSONUnmarshal, err.Error())
	}

	var d model.Discovery
	for _, dc := range body.Objs {
		if len(dc.ID) == 0 || len(dc.RecType) == 0 {
			c.loggerFor(ctx).Debug("skipping discovered cluster without an id or record type",
				zap.String("clusterID", dc.ID), zap.String("recType", dc.RecType))
			continue
		}
		name := dc.Name
		if len(name) == 0 {
			name = "Unknown"
		}
		info := model.ClusterInfo{
			ID:          dc.ID,
			Name:        name,
			Category:    model.Category(dc.RecType),
			DeviceCount: len(dc.Data.Devices),
		}
		d.Clusters = append(d.Clusters, info)
		d.TotalDevices += info.DeviceCount
	}

	c.observe(DiscoverOperation, SuccessOutcome)
	return d, nil
}

// FetchCluster reads one cluster document.
func (c *BasicClient) FetchCluster(ctx context.Context, category model.Category, clusterID string) (model.Cluster, error) {
	if err := validateClusterKey(category, clusterID); err != nil {
		return model.Cluster{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeouts.Fetch)
	defer cancel()

	resp, err := c.sendRequest(ctx, http.MethodGet, c.clusterURL(category, clusterID), nil)
	if err != nil {
		c.observe(FetchOperation, FailureOutcome)
		return model.Cluster{}, fmt.Errorf("%w: %w", model.ErrRemoteUnavailable, err)
	}
	if resp.Code == http.StatusNotFound {
		c.observe(FetchOperation, NotFoundOutcome)
		return model.Cluster{}, fmt.Errorf("%w: %s/%s", model.ErrClusterNotFound, category, clusterID)
	}
	if resp.Code != http.StatusOK {
		c.observe(FetchOperation, FailureOutcome)
		c.logNonSuccess(ctx, "Remote store responded with non-200 response for a cluster fetch", resp,
			zap.String("clusterID", clusterID))
		return model.Cluster{}, fmt.Errorf(errStatusCodeFmt, model.ErrRemoteUnavailable, translateNonSuccessStatusCode(resp.Code), resp.Code)
	}

	var body objs
	if err := json.Unmarshal(resp.Body, &body); err != nil {
		c.observe(FetchOperation, FailureOutcome)
		return model.Cluster{}, fmt.Errorf("FetchCluster: %w: %w: %s", model.ErrRemoteUnavailable, errJSONUnmarshal, err.Error())
	}
	if len(body.Objs) == 0 {
		c.observe(FetchOperation, NotFoundOutcome)
		return model.Cluster{}, fmt.Errorf("%w: %s/%s", model.ErrClusterNotFound, category, clusterID)
	}

	var cluster model.Cluster
	if err := json.Unmarshal(body.Objs[0], &cluster); err != nil {
		c.observe(FetchOperation, FailureOutcome)
		return model.Cluster{}, fmt.Errorf("FetchCluster: %w: %w: %s", model.ErrRemoteUnavailable, errJSONUnmarshal, err.Error())
	}
	if len(cluster.ID) == 0 {
		cluster.ID = clusterID
	}
	if len(cluster.Category) == 0 {
		cluster.Category = category
	}

	c.observe(FetchOperation, SuccessOutcome)
	return cluster, nil
}

// PutCluster replaces the whole cluster document. There is no concurrency
// control: the last writer wins.
func (c *BasicClient) PutCluster(ctx context.Context, category model.Category, clusterID string, cluster model.Cluster) (PushResult, error) {
	if err := validateClusterKey(category, clusterID); err != nil {
		return NilPushResult, err
	}

	data, err := json.Marshal(cluster)
	if err != nil {
		return NilPushResult, fmt.Errorf(errWrappedFmt, errJSONMarshal, err.Error())
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeouts.Write)
	defer cancel()

	resp, err := c.sendRequest(ctx, http.MethodPut, c.clusterURL(category, clusterID), bytes.NewReader(data))
	if err != nil {
		c.observe(PutOperation, FailureOutcome)
		return NilPushResult, fmt.Errorf("%w: %w", model.ErrRemoteUnavailable, err)
	}

	switch resp.Code {
	case http.StatusCreated:
		c.observe(PutOperation, SuccessOutcome)
		return CreatedPushResult, nil
	case http.StatusOK:
		c.observe(PutOperation, SuccessOutcome)
		return UpdatedPushResult, nil
	}

	c.observe(PutOperation, RejectedOutcome)
	c.logNonSuccess(ctx, "Remote store responded with a non-successful status code for a cluster write", resp,
		zap.String("clusterID", clusterID))
	return NilPushResult, fmt.Errorf(errStatusCodeFmt, model.ErrWriteRejected, translateNonSuccessStatusCode(resp.Code), resp.Code)
}

func (c *BasicClient) clusterURL(category model.Category, clusterID string) string {
	return fmt.Sprintf("%s/%s/%s", c.baseURL, url.PathEscape(string(category)), url.PathEscape(clusterID))
}

func (c *BasicClient) sendRequest(ctx context.Context, method, target string, body io.Reader) (response, error) {
	r, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return response{}, fmt.Errorf(errWrappedFmt, errNewRequestFailure, err.Error())
	}
	err = acquire.AddAuth(r, c.auth)
	if err != nil {
		return response{}, fmt.Errorf(errWrappedFmt, ErrAuthAcquirerFailure, err.Error())
	}
	r.Header.Set("Accept", "application/json")
	if body != nil {
		r.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.client.Do(r)
	if err != nil {
		return response{}, fmt.Errorf("%w: %w", errDoRequestFailure, err)
	}
	defer resp.Body.Close()
	var sqResp = response{
		Code:        resp.StatusCode,
		ErrorHeader: resp.Header.Get(model.XmidtErrorHeaderKey),
	}
	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return sqResp, fmt.Errorf(errWrappedFmt, errReadingBodyFailure, err.Error())
	}
	sqResp.Body = bodyBytes
	return sqResp, nil
}

func (c *BasicClient) loggerFor(ctx context.Context) *zap.Logger {
	l := c.getLogger(ctx)
	if l == nil {
		l = c.logger
	}
	return l
}

func (c *BasicClient) logNonSuccess(ctx context.Context, msg string, resp response, fields ...zap.Field) {
	fields = append(fields, zap.Int("code", resp.Code), zap.String(errorHeaderKey, resp.ErrorHeader))
	c.loggerFor(ctx).Error(msg, fields...)
}

func (c *BasicClient) observe(operation, outcome string) {
	if c.measures == nil || c.measures.RemoteRequests == nil {
		return
	}
	c.measures.RemoteRequests.With(prometheus.Labels{
		OperationLabel: operation,
		OutcomeLabel:   outcome,
	}).Add(1)
}

func validateClusterKey(category model.Category, clusterID string) error {
	if len(category) == 0 {
		return fmt.Errorf("%w: %w", model.ErrInvalidInput, ErrCategoryEmpty)
	}
	if len(clusterID) == 0 {
		return fmt.Errorf("%w: %w", model.ErrInvalidInput, ErrClusterIDEmpty)
	}
	return nil
}

func isEmpty(options acquire.RemoteBearerTokenAcquirerOptions) bool {
	return len(options.AuthURL) < 1 || options.Buffer == 0 || options.Timeout == 0
}

// translateNonSuccessStatusCode returns as specific error
// for known remote store status codes.
func translateNonSuccessStatusCode(code int) error {
	switch code {
	case http.StatusBadRequest:
		return ErrBadRequest
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrFailedAuthentication
	default:
		return errNonSuccessResponse
	}
}

func buildTokenAcquirer(auth Auth) (acquire.Acquirer, error) {
	switch {
	case len(auth.Bearer) > 0:
		return acquire.NewFixedAuthAcquirer("Bearer " + auth.Bearer)
	case len(auth.Basic) > 0:
		return acquire.NewFixedAuthAcquirer(auth.Basic)
	case !isEmpty(auth.JWT):
		return acquire.NewRemoteBearerTokenAcquirer(auth.JWT)
	}
	return &acquire.DefaultAcquirer{}, nil
}

func validateBasicConfig(config *BasicClientConfig) error {
	if config.Address == "" {
		return ErrAddressEmpty
	}

	if config.HTTPClient == nil {
		config.HTTPClient = http.DefaultClient
	}

	if config.Timeouts.Fetch <= 0 {
		config.Timeouts.Fetch = defaultFetchTimeout
	}
	if config.Timeouts.Discovery <= 0 {
		config.Timeouts.Discovery = defaultDiscoveryTimeout
	}
	if config.Timeouts.Write <= 0 {
		config.Timeouts.Write = defaultWriteTimeout
	}

	if config.PerPage <= 0 {
		config.PerPage = defaultPerPage
	}

	if config.Logger == nil {
		config.Logger = sallust.Default()
	}
	return nil
}
