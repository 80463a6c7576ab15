// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package cache

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

var (
	ErrAlreadyRunning = errors.New("cache cleanup is already running")
	ErrNotRunning     = errors.New("cache cleanup is not running")
)

const (
	defaultDiscoveryTTL    = time.Minute
	defaultDocumentTTL     = 5 * time.Minute
	defaultCleanupInterval = time.Minute
)

// DiscoveryConfig configures the discovery cache.
type DiscoveryConfig struct {
	TTL time.Duration

	// TolerateStale lets lookups use an expired mapping rather than miss.
	TolerateStale bool
}

// DocumentConfig configures the document cache.
type DocumentConfig struct {
	TTL time.Duration

	// CleanupInterval is how often expired documents are dropped.
	// A negative value disables the cleanup loop.
	CleanupInterval time.Duration
}

// Config configures both caches.
type Config struct {
	Discovery DiscoveryConfig
	Documents DocumentConfig
}

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() Config {
	return Config{
		Discovery: DiscoveryConfig{TTL: defaultDiscoveryTTL, TolerateStale: true},
		Documents: DocumentConfig{TTL: defaultDocumentTTL, CleanupInterval: defaultCleanupInterval},
	}
}

func validateConfig(config Config) Config {
	if config.Discovery.TTL <= 0 {
		config.Discovery.TTL = defaultDiscoveryTTL
	}
	if config.Documents.TTL <= 0 {
		config.Documents.TTL = defaultDocumentTTL
	}
	if config.Documents.CleanupInterval == 0 {
		config.Documents.CleanupInterval = defaultCleanupInterval
	}
	return config
}

type options struct {
	now      func() time.Time
	measures *Measures
	logger   *zap.Logger
}

// Option configures a Caches.
type Option func(*options)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithMeasures records lookups and surgical updates.
func WithMeasures(m *Measures) Option {
	return func(o *options) {
		o.measures = m
	}
}

// WithLogger sets the logger of the cleanup loop.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// Caches owns the discovery and document caches of one service.
type Caches struct {
	Discovery *DiscoveryCache
	Documents *DocumentCache

	cleanupInterval time.Duration
	logger          *zap.Logger

	lock sync.Mutex
	stop chan struct{}
	done chan struct{}
}

// New creates both caches.
func New(config Config, opts ...Option) *Caches {
	config = validateConfig(config)
	o := options{
		now:    time.Now,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return &Caches{
		Discovery:       newDiscoveryCache(config.Discovery, o.now, o.measures),
		Documents:       newDocumentCache(config.Documents, o.now, o.measures),
		cleanupInterval: config.Documents.CleanupInterval,
		logger:          o.logger,
	}
}

// ClearAll wipes both caches.
func (c *Caches) ClearAll() {
	c.Documents.Clear()
	c.Discovery.Clear()
}

// Status describes both caches.
type Status struct {
	Discovery DiscoveryStatus `json:"discovery_cache"`
	Documents DocumentStatus  `json:"device_cache"`
}

// Status is a read-only snapshot of both caches.
func (c *Caches) Status() Status {
	return Status{
		Discovery: c.Discovery.Status(),
		Documents: c.Documents.Status(),
	}
}

// Start runs the loop that drops expired documents. It does nothing when the
// cleanup interval is negative.
func (c *Caches) Start(_ context.Context) error {
	if c.cleanupInterval < 0 {
		return nil
	}
	c.lock.Lock()
	defer c.lock.Unlock()
	if c.stop != nil {
		return ErrAlreadyRunning
	}
	c.stop = make(chan struct{})
	c.done = make(chan struct{})

	go func(stop, done chan struct{}) {
		defer close(done)
		ticker := time.NewTicker(c.cleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				if removed := c.Documents.CleanUp(); removed > 0 {
					c.logger.Debug("dropped expired cluster documents", zap.Int("count", removed))
				}
			}
		}
	}(c.stop, c.done)
	return nil
}

// Stop ends the cleanup loop and waits for it to exit.
func (c *Caches) Stop(ctx context.Context) error {
	if c.cleanupInterval < 0 {
		return nil
	}
	c.lock.Lock()
	defer c.lock.Unlock()
	if c.stop == nil {
		return ErrNotRunning
	}
	done := c.done
	close(c.stop)
	c.stop, c.done = nil, nil
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}
