// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/xmidt-org/ladon/devices"
	"github.com/xmidt-org/ladon/model"
)

func TestDecodeDeviceRequest(t *testing.T) {
	testCases := []struct {
		Name                   string
		URLVars                map[string]string
		ExpectedDecodedRequest interface{}
		ExpectedErr            error
	}{
		{
			Name:        "Missing guid",
			ExpectedErr: &BadRequestErr{Message: guidVarMissingMsg},
		},
		{
			Name:                   "Happy path",
			URLVars:                map[string]string{guidVarKey: "erp-device-1"},
			ExpectedDecodedRequest: &deviceRequest{guid: "erp-device-1"},
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.Name, func(t *testing.T) {
			assert := assert.New(t)
			r := httptest.NewRequest(http.MethodGet, "http://localhost/test", nil)
			r = mux.SetURLVars(r, testCase.URLVars)

			decodedRequest, err := decodeDeviceRequest(context.Background(), r)
			if testCase.ExpectedErr != nil {
				assert.Equal(testCase.ExpectedErr, err)
				return
			}
			assert.NoError(err)
			assert.Equal(testCase.ExpectedDecodedRequest, decodedRequest)
		})
	}
}

func TestDecodeUpdateDeviceRequest(t *testing.T) {
	status := "online"
	site := "S9"
	testCases := []struct {
		Name                   string
		URLVars                map[string]string
		Body                   string
		ExpectedDecodedRequest interface{}
		ExpectBadRequest       bool
	}{
		{
			Name:             "Missing guid",
			Body:             `{"status":"online"}`,
			ExpectBadRequest: true,
		},
		{
			Name:             "Bad json",
			URLVars:          map[string]string{guidVarKey: "erp-device-1"},
			Body:             `{"status":`,
			ExpectBadRequest: true,
		},
		{
			Name:             "Unknown field",
			URLVars:          map[string]string{guidVarKey: "erp-device-1"},
			Body:             `{"colour":"red"}`,
			ExpectBadRequest: true,
		},
		{
			Name:    "Happy path",
			URLVars: map[string]string{guidVarKey: "erp-device-1"},
			Body:    `{"status":"online","site":"S9"}`,
			ExpectedDecodedRequest: &updateDeviceRequest{
				guid:   "erp-device-1",
				update: model.DeviceUpdate{Status: &status, Site: &site},
			},
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.Name, func(t *testing.T) {
			assert := assert.New(t)
			r := httptest.NewRequest(http.MethodPut, "http://localhost/test", strings.NewReader(testCase.Body))
			r = mux.SetURLVars(r, testCase.URLVars)

			decodedRequest, err := decodeUpdateDeviceRequest(context.Background(), r)
			if testCase.ExpectBadRequest {
				var bre *BadRequestErr
				assert.True(errors.As(err, &bre), err)
				return
			}
			assert.NoError(err)
			assert.Equal(testCase.ExpectedDecodedRequest, decodedRequest)
		})
	}
}

func TestDecodeCreateDeviceRequest(t *testing.T) {
	assert := assert.New(t)
	body := `{"device_type":"gateway","customer":"Acme","site":"S1","area":"Roof","erp_reference":"GW-9"}`
	r := httptest.NewRequest(http.MethodPost, "http://localhost/test", strings.NewReader(body))

	decodedRequest, err := decodeCreateDeviceRequest(context.Background(), r)
	assert.NoError(err)
	assert.Equal(&devices.CreateRequest{
		Kind:         model.GatewayKind,
		Customer:     "Acme",
		Site:         "S1",
		Area:         "Roof",
		ERPReference: "GW-9",
	}, decodedRequest)
}

func TestDecodeClusterRequest(t *testing.T) {
	assert := assert.New(t)
	r := httptest.NewRequest(http.MethodDelete, "http://localhost/test", nil)

	_, err := decodeClusterRequest(context.Background(), r)
	assert.Equal(&BadRequestErr{Message: clusterVarMissingMsg}, err)

	r = mux.SetURLVars(r, map[string]string{clusterVarKey: "c1"})
	decodedRequest, err := decodeClusterRequest(context.Background(), r)
	assert.NoError(err)
	assert.Equal(&clusterRequest{clusterID: "c1"}, decodedRequest)

	r = httptest.NewRequest(http.MethodGet, "http://localhost/test?recType=io.example.traps", nil)
	r = mux.SetURLVars(r, map[string]string{clusterVarKey: "c2"})
	decodedRequest, err = decodeClusterRequest(context.Background(), r)
	assert.NoError(err)
	assert.Equal(&clusterRequest{clusterID: "c2", category: "io.example.traps"}, decodedRequest)
}

func TestEncodeJSONResponse(t *testing.T) {
	assert := assert.New(t)

	recorder := httptest.NewRecorder()
	err := encodeJSONResponse(http.StatusCreated)(context.Background(), recorder, &devices.Deleted{GUID: "g"})
	assert.NoError(err)
	assert.Equal(http.StatusCreated, recorder.Code)
	assert.Equal("application/json", recorder.Header().Get("Content-Type"))
	assert.JSONEq(`{"found":false,"guid":"g"}`, recorder.Body.String())

	recorder = httptest.NewRecorder()
	assert.Equal(ErrCasting, encodeJSONResponse(http.StatusOK)(context.Background(), recorder, nil))
}

func TestEncodeError(t *testing.T) {
	testCases := []struct {
		Name         string
		Err          error
		ExpectedCode int
	}{
		{Name: "Bad request", Err: &BadRequestErr{Message: "nope"}, ExpectedCode: http.StatusBadRequest},
		{Name: "Invalid input", Err: fmt.Errorf("%w: customer", model.ErrInvalidInput), ExpectedCode: http.StatusBadRequest},
		{Name: "Device not found", Err: fmt.Errorf("%w: g", model.ErrDeviceNotFound), ExpectedCode: http.StatusNotFound},
		{Name: "Cluster not found", Err: model.ErrClusterNotFound, ExpectedCode: http.StatusNotFound},
		{Name: "Write rejected", Err: model.ErrWriteRejected, ExpectedCode: http.StatusBadGateway},
		{Name: "Remote unavailable", Err: model.ErrRemoteUnavailable, ExpectedCode: http.StatusServiceUnavailable},
		{Name: "Unknown", Err: errors.New("boom"), ExpectedCode: http.StatusInternalServerError},
	}

	for _, testCase := range testCases {
		t.Run(testCase.Name, func(t *testing.T) {
			assert := assert.New(t)
			recorder := httptest.NewRecorder()
			encodeError(context.Background(), testCase.Err, recorder)
			assert.Equal(testCase.ExpectedCode, recorder.Code)
			assert.Equal(testCase.Err.Error(), recorder.Header().Get(model.XmidtErrorHeaderKey))
		})
	}
}
