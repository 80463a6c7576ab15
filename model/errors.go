// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package model

import (
	"errors"
	"net/http"
)

// XmidtErrorHeaderKey carries a short error message on failed HTTP responses.
const XmidtErrorHeaderKey = "X-Xmidt-Error"

// Errors shared by the client, cache and device packages. They are usually
// returned wrapped so use errors.Is() to check for them.
var (
	ErrRemoteUnavailable = errors.New("remote store unavailable")
	ErrClusterNotFound   = errors.New("cluster not found")
	ErrDeviceNotFound    = errors.New("device not found")
	ErrWriteRejected     = errors.New("remote store rejected the write")
	ErrInvalidInput      = errors.New("invalid input")
)

// StatusCode maps an error from this module to the HTTP status an API
// should answer with.
func StatusCode(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrDeviceNotFound), errors.Is(err, ErrClusterNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrWriteRejected):
		return http.StatusBadGateway
	case errors.Is(err, ErrRemoteUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
