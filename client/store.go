// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"context"

	"github.com/xmidt-org/ladon/model"
)

// ClusterStore reads and writes single cluster documents.
type ClusterStore interface {
	ClusterReader
	ClusterWriter
}

type ClusterReader interface {
	// FetchCluster returns the current document of one cluster.
	FetchCluster(ctx context.Context, category model.Category, clusterID string) (model.Cluster, error)
}

type ClusterWriter interface {
	// PutCluster replaces the whole document of one cluster.
	PutCluster(ctx context.Context, category model.Category, clusterID string, cluster model.Cluster) (PushResult, error)
}

type Discoverer interface {
	// Discover enumerates every cluster of the remote store.
	Discover(ctx context.Context) (model.Discovery, error)
}

// Remote is everything the device service needs from the remote store.
type Remote interface {
	Discoverer
	ClusterStore
}

// DiscovererFunc adapts a function to a Discoverer.
type DiscovererFunc func(ctx context.Context) (model.Discovery, error)

func (f DiscovererFunc) Discover(ctx context.Context) (model.Discovery, error) {
	return f(ctx)
}
