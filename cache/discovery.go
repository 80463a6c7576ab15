// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package cache

import (
	"sync"
	"time"

	"github.com/xmidt-org/ladon/model"
)

type discoveryEnvelope struct {
	creation  time.Time
	discovery model.Discovery
}

// DiscoveryCache holds the result of the last discovery.
type DiscoveryCache struct {
	lock          sync.RWMutex
	entry         *discoveryEnvelope
	ttl           time.Duration
	tolerateStale bool
	now           func() time.Time
	measures      *Measures
}

func newDiscoveryCache(config DiscoveryConfig, now func() time.Time, measures *Measures) *DiscoveryCache {
	return &DiscoveryCache{
		ttl:           config.TTL,
		tolerateStale: config.TolerateStale,
		now:           now,
		measures:      measures,
	}
}

// usable must be called with the lock held.
func (c *DiscoveryCache) usable() (model.Discovery, bool) {
	if c.entry == nil {
		c.measures.lookup(DiscoveryCacheName, MissResult)
		return model.Discovery{}, false
	}
	if c.valid() {
		c.measures.lookup(DiscoveryCacheName, HitResult)
		return c.entry.discovery, true
	}
	if c.tolerateStale {
		c.measures.lookup(DiscoveryCacheName, StaleResult)
		return c.entry.discovery, true
	}
	c.measures.lookup(DiscoveryCacheName, MissResult)
	return model.Discovery{}, false
}

func (c *DiscoveryCache) valid() bool {
	return c.entry != nil && c.now().Sub(c.entry.creation) < c.ttl
}

// Get returns a copy of the cached mapping. An expired mapping is still
// returned when the cache tolerates stale entries.
func (c *DiscoveryCache) Get() (model.Discovery, bool) {
	c.lock.RLock()
	defer c.lock.RUnlock()
	d, ok := c.usable()
	if !ok {
		return model.Discovery{}, false
	}
	return d.Clone(), true
}

// Set replaces the mapping and restarts its ttl.
func (c *DiscoveryCache) Set(d model.Discovery) {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.entry = &discoveryEnvelope{
		creation:  c.now(),
		discovery: d.Clone(),
	}
}

// IsValid reports whether the cache holds a mapping younger than its ttl.
func (c *DiscoveryCache) IsValid() bool {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return c.valid()
}

// FindForCategory returns the first cached cluster holding the category.
func (c *DiscoveryCache) FindForCategory(category model.Category) (model.ClusterInfo, bool) {
	c.lock.RLock()
	defer c.lock.RUnlock()
	d, ok := c.usable()
	if !ok {
		return model.ClusterInfo{}, false
	}
	return d.ForCategory(category)
}

// Clear drops the mapping.
func (c *DiscoveryCache) Clear() {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.entry = nil
}

// DiscoveryStatus describes the discovery cache.
type DiscoveryStatus struct {
	Populated     bool    `json:"populated"`
	Valid         bool    `json:"valid"`
	TolerateStale bool    `json:"tolerate_stale"`
	AgeSeconds    float64 `json:"age_seconds"`
	ClusterCount  int     `json:"cluster_count"`
	TotalDevices  int     `json:"total_devices"`
	TTLSeconds    float64 `json:"ttl_seconds"`
}

// Status describes the cache without changing it.
func (c *DiscoveryCache) Status() DiscoveryStatus {
	c.lock.RLock()
	defer c.lock.RUnlock()
	s := DiscoveryStatus{
		TolerateStale: c.tolerateStale,
		TTLSeconds:    c.ttl.Seconds(),
	}
	if c.entry == nil {
		return s
	}
	s.Populated = true
	s.Valid = c.valid()
	s.AgeSeconds = c.now().Sub(c.entry.creation).Seconds()
	s.ClusterCount = len(c.entry.discovery.Clusters)
	s.TotalDevices = c.entry.discovery.TotalDevices
	return s
}
