// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package devices

import (
	"context"
	"fmt"
	"sync"

	"github.com/xmidt-org/ladon/client"
	"github.com/xmidt-org/ladon/model"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Located is a device found by guid, along with the document it lives in.
type Located struct {
	Device model.Device

	// Index is the device's position in Cluster.Devices.
	Index int

	Info model.ClusterInfo

	// Cluster is the full document as just read from the remote store.
	Cluster model.Cluster
}

// Finder searches every known cluster for a guid. It reads the remote store
// directly and never touches the document cache.
type Finder struct {
	mapping        client.Discoverer
	reader         client.ClusterReader
	reject         FastReject
	maxConcurrency int
	logger         *zap.Logger
	measures       *Measures
}

// NewFinder creates a Finder. The mapping is usually a CachedDiscoverer.
func NewFinder(config FinderConfig, mapping client.Discoverer, reader client.ClusterReader, reject FastReject, logger *zap.Logger, measures *Measures) *Finder {
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = defaultMaxConcurrency
	}
	if reject == nil {
		reject = NeverReject{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Finder{
		mapping:        mapping,
		reader:         reader,
		reject:         reject,
		maxConcurrency: config.MaxConcurrency,
		logger:         logger,
		measures:       measures,
	}
}

// Rejects reports whether the fast-reject policy refuses guid.
func (f *Finder) Rejects(guid string) bool {
	if f.reject.Reject(guid) {
		f.measures.fastReject(f.reject.Name())
		return true
	}
	return false
}

// FindByGUID returns the first cluster found holding guid. Clusters that
// cannot be read are treated as not holding it.
func (f *Finder) FindByGUID(ctx context.Context, guid string) (Located, error) {
	if len(guid) == 0 {
		return Located{}, fmt.Errorf("%w: guid is required", model.ErrInvalidInput)
	}
	if f.Rejects(guid) {
		return Located{}, fmt.Errorf("%w: %s", model.ErrDeviceNotFound, guid)
	}

	mapping, err := f.mapping.Discover(ctx)
	if err != nil {
		return Located{}, err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.maxConcurrency)

	var (
		once  sync.Once
		found Located
		ok    bool
	)
	for _, info := range mapping.Clusters {
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			cluster, err := f.reader.FetchCluster(gctx, info.Category, info.ID)
			if err != nil {
				if gctx.Err() == nil {
					f.logger.Warn("skipping cluster in guid search",
						zap.String("clusterID", info.ID), zap.Error(err))
				}
				return nil
			}
			i := cluster.IndexOf(guid)
			if i < 0 {
				return nil
			}
			once.Do(func() {
				found = Located{
					Device:  cluster.Devices[i].Clone(),
					Index:   i,
					Info:    info,
					Cluster: cluster,
				}
				ok = true
				cancel()
			})
			return nil
		})
	}
	g.Wait() // nolint:errcheck

	if !ok {
		return Located{}, fmt.Errorf("%w: %s", model.ErrDeviceNotFound, guid)
	}
	f.logger.Debug("found device", zap.String("guid", guid), zap.String("clusterID", found.Info.ID))
	return found, nil
}
