// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package client

// PushResult is the outcome of a successful PutCluster.
type PushResult int64

// Types of PutCluster results.
const (
	UnknownPushResult PushResult = iota
	CreatedPushResult
	UpdatedPushResult
	NilPushResult
)

func (p PushResult) String() string {
	switch p {
	case NilPushResult:
		return ""
	case CreatedPushResult:
		return "created"
	case UpdatedPushResult:
		return "ok"
	}
	return "unknown"
}
