// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package devices

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/xmidt-org/ladon/model"
	"github.com/xmidt-org/sallust"
	"go.uber.org/zap"
)

var (
	ErrRefresherNotStopped = errors.New("refresher is either running or starting")
	ErrRefresherNotRunning = errors.New("refresher is either stopped or stopping")
	ErrNoDiscoveryRefresh  = errors.New("no discovery refresh provided")
)

// refresher states
const (
	stopped int32 = iota
	running
	transitioning
)

// DiscoveryRefresh replaces the cached cluster mapping. Service implements it.
type DiscoveryRefresh interface {
	RefreshDiscovery(ctx context.Context) (model.Discovery, error)
}

// Refresher rediscovers on an interval so requests rarely pay for a
// discovery themselves.
type Refresher struct {
	target   DiscoveryRefresh
	interval time.Duration
	logger   *zap.Logger
	shutdown chan struct{}
	done     chan struct{}
	state    int32
}

// NewRefresher creates a Refresher. A zero interval yields a refresher whose
// Start and Stop do nothing.
func NewRefresher(config RefreshConfig, target DiscoveryRefresh, logger *zap.Logger) (*Refresher, error) {
	if target == nil {
		return nil, ErrNoDiscoveryRefresh
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Refresher{
		target:   target,
		interval: config.Interval,
		logger:   logger,
	}, nil
}

// Enabled reports whether the refresher has an interval to run on.
func (r *Refresher) Enabled() bool {
	return r.interval > 0
}

// Start begins rediscovering on the interval. If the refresher is already
// running, Start returns ErrRefresherNotStopped.
func (r *Refresher) Start(_ context.Context) error {
	if !r.Enabled() {
		r.logger.Debug("discovery refresher disabled")
		return nil
	}
	if !atomic.CompareAndSwapInt32(&r.state, stopped, transitioning) {
		r.logger.Error("Start called when the refresher was not in stopped state", zap.Error(ErrRefresherNotStopped))
		return ErrRefresherNotStopped
	}

	r.shutdown = make(chan struct{})
	r.done = make(chan struct{})
	ticker := time.NewTicker(r.interval)
	go func(shutdown, done chan struct{}) {
		defer close(done)
		defer ticker.Stop()
		for {
			select {
			case <-shutdown:
				return
			case <-ticker.C:
				ctx := sallust.With(context.Background(), r.logger)
				if _, err := r.target.RefreshDiscovery(ctx); err != nil {
					r.logger.Error("Failed to refresh the cluster mapping", zap.Error(err))
				}
			}
		}
	}(r.shutdown, r.done)

	atomic.StoreInt32(&r.state, running)
	return nil
}

// Stop requests the refresher to stop and waits for its goroutine to finish.
func (r *Refresher) Stop(ctx context.Context) error {
	if !r.Enabled() {
		return nil
	}
	if !atomic.CompareAndSwapInt32(&r.state, running, transitioning) {
		r.logger.Error("Stop called when the refresher was not in running state", zap.Error(ErrRefresherNotRunning))
		return ErrRefresherNotRunning
	}

	close(r.shutdown)
	defer atomic.StoreInt32(&r.state, stopped)
	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
