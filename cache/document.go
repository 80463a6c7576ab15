// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package cache

import (
	"sync"
	"time"

	"github.com/xmidt-org/ladon/model"
)

type documentEnvelope struct {
	written time.Time
	cluster model.Cluster
}

// DocumentCache holds full cluster documents keyed by cluster id. Cached
// documents are only handed out as copies.
type DocumentCache struct {
	lock     sync.RWMutex
	docs     map[string]documentEnvelope
	ttl      time.Duration
	now      func() time.Time
	measures *Measures
}

func newDocumentCache(config DocumentConfig, now func() time.Time, measures *Measures) *DocumentCache {
	return &DocumentCache{
		docs:     map[string]documentEnvelope{},
		ttl:      config.TTL,
		now:      now,
		measures: measures,
	}
}

func (c *DocumentCache) fresh(e documentEnvelope) bool {
	return c.now().Sub(e.written) < c.ttl
}

// live returns the entry for id if it has not expired. Must be called with
// the lock held.
func (c *DocumentCache) live(id string) (documentEnvelope, bool) {
	e, ok := c.docs[id]
	if !ok || !c.fresh(e) {
		return documentEnvelope{}, false
	}
	return e, true
}

// Get returns a copy of the cached document.
func (c *DocumentCache) Get(id string) (model.Cluster, bool) {
	c.lock.RLock()
	defer c.lock.RUnlock()
	e, ok := c.live(id)
	if !ok {
		c.measures.lookup(DocumentCacheName, MissResult)
		return model.Cluster{}, false
	}
	c.measures.lookup(DocumentCacheName, HitResult)
	return e.cluster.Clone(), true
}

// Store caches a copy of the document under id.
func (c *DocumentCache) Store(id string, cluster model.Cluster) {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.docs[id] = documentEnvelope{
		written: c.now(),
		cluster: cluster.Clone(),
	}
}

// edit applies f to the live entry for id and refreshes its write time.
func (c *DocumentCache) edit(id string, f func(*model.Cluster) bool) bool {
	c.lock.Lock()
	defer c.lock.Unlock()
	e, ok := c.live(id)
	if !ok {
		return false
	}
	if !f(&e.cluster) {
		return false
	}
	e.written = c.now()
	c.docs[id] = e
	return true
}

// AddDevice appends a device to the cached document. A device with the same
// guid is replaced instead. It returns false when id is not cached.
func (c *DocumentCache) AddDevice(id string, device model.Device) bool {
	device = device.Clone()
	applied := c.edit(id, func(cluster *model.Cluster) bool {
		if i := cluster.IndexOf(device.GUID); i >= 0 && len(device.GUID) > 0 {
			cluster.Devices[i] = device
			return true
		}
		cluster.Devices = append(cluster.Devices, device)
		return true
	})
	c.measures.surgical(AddOperation, applied)
	return applied
}

// UpdateDevice merges patch into the cached device with the given guid.
func (c *DocumentCache) UpdateDevice(id, guid string, patch model.DevicePatch) bool {
	applied := c.edit(id, func(cluster *model.Cluster) bool {
		i := cluster.IndexOf(guid)
		if i < 0 {
			return false
		}
		patch.ApplyTo(&cluster.Devices[i])
		return true
	})
	c.measures.surgical(UpdateOperation, applied)
	return applied
}

// RemoveDevice drops the device with the given guid from the cached document
// and returns it.
func (c *DocumentCache) RemoveDevice(id, guid string) (model.Device, bool) {
	var removed model.Device
	applied := c.edit(id, func(cluster *model.Cluster) bool {
		i := cluster.IndexOf(guid)
		if i < 0 {
			return false
		}
		removed = cluster.Devices[i]
		devices := make([]model.Device, 0, len(cluster.Devices)-1)
		devices = append(devices, cluster.Devices[:i]...)
		cluster.Devices = append(devices, cluster.Devices[i+1:]...)
		return true
	})
	c.measures.surgical(RemoveOperation, applied)
	return removed, applied
}

// Invalidate drops one document.
func (c *DocumentCache) Invalidate(id string) {
	c.lock.Lock()
	defer c.lock.Unlock()
	delete(c.docs, id)
}

// Clear drops every document.
func (c *DocumentCache) Clear() {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.docs = map[string]documentEnvelope{}
}

// CleanUp drops expired documents and returns how many were removed.
func (c *DocumentCache) CleanUp() int {
	c.lock.Lock()
	defer c.lock.Unlock()
	removed := 0
	for id, e := range c.docs {
		if !c.fresh(e) {
			delete(c.docs, id)
			removed++
		}
	}
	return removed
}

// ClusterStatus describes one cached document.
type ClusterStatus struct {
	AgeSeconds  float64 `json:"age_seconds"`
	Valid       bool    `json:"valid"`
	DeviceCount int     `json:"device_count"`
}

// DocumentStatus describes the document cache.
type DocumentStatus struct {
	CachedClusters  int                      `json:"cached_clusters"`
	ValidClusters   int                      `json:"valid_clusters"`
	ExpiredClusters int                      `json:"expired_clusters"`
	TTLSeconds      float64                  `json:"ttl_seconds"`
	Clusters        map[string]ClusterStatus `json:"clusters"`
}

// Status describes the cache without changing it.
func (c *DocumentCache) Status() DocumentStatus {
	c.lock.RLock()
	defer c.lock.RUnlock()
	s := DocumentStatus{
		CachedClusters: len(c.docs),
		TTLSeconds:     c.ttl.Seconds(),
		Clusters:       make(map[string]ClusterStatus, len(c.docs)),
	}
	for id, e := range c.docs {
		valid := c.fresh(e)
		if valid {
			s.ValidClusters++
		} else {
			s.ExpiredClusters++
		}
		s.Clusters[id] = ClusterStatus{
			AgeSeconds:  c.now().Sub(e.written).Seconds(),
			Valid:       valid,
			DeviceCount: len(e.cluster.Devices),
		}
	}
	return s
}
