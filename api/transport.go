// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	kithttp "github.com/go-kit/kit/transport/http"
	"github.com/gorilla/mux"
	"github.com/xmidt-org/ladon/devices"
	"github.com/xmidt-org/ladon/model"
	"github.com/xmidt-org/sallust"
	"go.uber.org/zap"
)

const (
	guidVarKey    = "guid"
	clusterVarKey = "cluster"

	recTypeQueryKey = "recType"
)

const (
	guidVarMissingMsg    = "{guid} URL path parameter missing"
	clusterVarMissingMsg = "{cluster} URL path parameter missing"
	readBodyFailureMsg   = "failed to read body"
	unmarshalFailureMsg  = "failed to unmarshal json"
)

// ErrCasting indicates there was a middleware wiring mistake with the go-kit style
// encoders.
var ErrCasting = errors.New("casting error due to middleware wiring mistake")

type deviceRequest struct {
	guid string
}

type updateDeviceRequest struct {
	guid   string
	update model.DeviceUpdate
}

type clusterRequest struct {
	clusterID string
	category  model.Category
}

// requestLogger puts a request scoped logger into the context so that the
// service and the remote client log with the request's details.
func requestLogger(logger *zap.Logger) kithttp.RequestFunc {
	return func(ctx context.Context, r *http.Request) context.Context {
		return sallust.With(ctx, logger.With(
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
		))
	}
}

func decodeNoRequest(_ context.Context, _ *http.Request) (interface{}, error) {
	return nil, nil
}

func decodeCreateDeviceRequest(_ context.Context, r *http.Request) (interface{}, error) {
	var req devices.CreateRequest
	if err := decodeBody(r, &req); err != nil {
		return nil, err
	}
	return &req, nil
}

func decodeDeviceRequest(_ context.Context, r *http.Request) (interface{}, error) {
	guid, ok := mux.Vars(r)[guidVarKey]
	if !ok {
		return nil, &BadRequestErr{Message: guidVarMissingMsg}
	}
	return &deviceRequest{guid: guid}, nil
}

func decodeUpdateDeviceRequest(_ context.Context, r *http.Request) (interface{}, error) {
	guid, ok := mux.Vars(r)[guidVarKey]
	if !ok {
		return nil, &BadRequestErr{Message: guidVarMissingMsg}
	}
	var update model.DeviceUpdate
	if err := decodeBody(r, &update); err != nil {
		return nil, err
	}
	return &updateDeviceRequest{guid: guid, update: update}, nil
}

func decodeClusterRequest(_ context.Context, r *http.Request) (interface{}, error) {
	clusterID, ok := mux.Vars(r)[clusterVarKey]
	if !ok {
		return nil, &BadRequestErr{Message: clusterVarMissingMsg}
	}
	return &clusterRequest{
		clusterID: clusterID,
		category:  model.Category(r.URL.Query().Get(recTypeQueryKey)),
	}, nil
}

// decodeBody rejects bodies with fields v does not have.
func decodeBody(r *http.Request, v interface{}) error {
	data, err := io.ReadAll(r.Body)
	if err != nil {
		return &BadRequestErr{Message: readBodyFailureMsg}
	}
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(v); err != nil {
		return &BadRequestErr{Message: unmarshalFailureMsg + ": " + err.Error()}
	}
	return nil
}

// encodeJSONResponse writes the response as JSON with the given status code.
func encodeJSONResponse(code int) kithttp.EncodeResponseFunc {
	return func(_ context.Context, rw http.ResponseWriter, response interface{}) error {
		if response == nil {
			return ErrCasting
		}
		data, err := json.Marshal(response)
		if err != nil {
			return err
		}
		rw.Header().Add("Content-Type", "application/json")
		rw.WriteHeader(code)
		rw.Write(data) // nolint:errcheck
		return nil
	}
}

func encodeError(ctx context.Context, err error, w http.ResponseWriter) {
	w.Header().Set(model.XmidtErrorHeaderKey, err.Error())
	var headerer kithttp.Headerer
	if errors.As(err, &headerer) {
		for k, values := range headerer.Headers() {
			for _, v := range values {
				w.Header().Add(k, v)
			}
		}
	}
	code := model.StatusCode(err)
	var sc kithttp.StatusCoder
	if errors.As(err, &sc) {
		code = sc.StatusCode()
	}
	if code >= http.StatusInternalServerError {
		sallust.Get(ctx).Error("request failed", zap.Int("code", code), zap.Error(err))
	}
	w.WriteHeader(code)
}
