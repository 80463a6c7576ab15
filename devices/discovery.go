// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package devices

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/xmidt-org/ladon/cache"
	"github.com/xmidt-org/ladon/client"
	"github.com/xmidt-org/ladon/model"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Misses and refreshes fly separately: a refresh must reach the remote store
// even while a miss is being served.
const (
	missFlight    = "discovery.miss"
	refreshFlight = "discovery.refresh"
)

// CachedDiscoverer serves the cluster mapping from the discovery cache and
// discovers on a miss. Concurrent discoveries collapse into one remote call.
type CachedDiscoverer struct {
	cache    *cache.DiscoveryCache
	remote   client.Discoverer
	retry    RetryConfig
	group    singleflight.Group
	logger   *zap.Logger
	measures *Measures
}

// NewCachedDiscoverer wraps remote with the discovery cache.
func NewCachedDiscoverer(c *cache.DiscoveryCache, remote client.Discoverer, retryConfig RetryConfig, logger *zap.Logger, measures *Measures) *CachedDiscoverer {
	if retryConfig.Attempts < 1 {
		retryConfig.Attempts = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedDiscoverer{
		cache:    c,
		remote:   remote,
		retry:    retryConfig,
		logger:   logger,
		measures: measures,
	}
}

// Discover returns the cached mapping, discovering only when there is none.
func (d *CachedDiscoverer) Discover(ctx context.Context) (model.Discovery, error) {
	if m, ok := d.cache.Get(); ok {
		return m, nil
	}
	return d.load(ctx, MissTrigger)
}

// Refresh discovers and replaces the cached mapping.
func (d *CachedDiscoverer) Refresh(ctx context.Context) (model.Discovery, error) {
	return d.load(ctx, RefreshTrigger)
}

func (d *CachedDiscoverer) load(ctx context.Context, trigger string) (model.Discovery, error) {
	key := missFlight
	if trigger == RefreshTrigger {
		key = refreshFlight
	}
	ch := d.group.DoChan(key, func() (interface{}, error) {
		if trigger == MissTrigger {
			if m, ok := d.cache.Get(); ok {
				return m, nil
			}
		}
		// the flight is shared, so one caller giving up must not fail the rest
		m, err := d.discover(context.WithoutCancel(ctx))
		d.measures.discovery(trigger, err)
		if err != nil {
			d.logger.Error("cluster discovery failed", zap.String("trigger", trigger), zap.Error(err))
			return nil, err
		}
		d.cache.Set(m)
		d.logger.Info("discovered clusters",
			zap.String("trigger", trigger),
			zap.Int("clusters", len(m.Clusters)),
			zap.Int("devices", m.TotalDevices))
		return m, nil
	})

	select {
	case r := <-ch:
		if r.Err != nil {
			return model.Discovery{}, r.Err
		}
		return r.Val.(model.Discovery).Clone(), nil
	case <-ctx.Done():
		return model.Discovery{}, fmt.Errorf("%w: %w", model.ErrRemoteUnavailable, ctx.Err())
	}
}

func (d *CachedDiscoverer) discover(ctx context.Context) (model.Discovery, error) {
	start := time.Now()
	var m model.Discovery
	err := retry.Do(
		func() error {
			var err error
			m, err = d.remote.Discover(ctx)
			return err
		},
		retry.Context(ctx),
		retry.Attempts(d.retry.Attempts),
		retry.Delay(d.retry.Delay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			return errors.Is(err, model.ErrRemoteUnavailable)
		}),
		retry.OnRetry(func(attempt uint, err error) {
			if attempt+1 < d.retry.Attempts {
				d.logger.Warn("discovery attempt failed", zap.Uint("attempt", attempt+1), zap.Error(err))
			}
		}),
	)
	if err != nil {
		return model.Discovery{}, err
	}
	d.logger.Debug("discovery finished", zap.Duration("elapsed", time.Since(start)))
	return m, nil
}
