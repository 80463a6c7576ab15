// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package devices

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/xmidt-org/ladon/cache"
	"github.com/xmidt-org/ladon/client"
	"github.com/xmidt-org/ladon/model"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	ErrNilRemote = errors.New("remote store client is required")
	ErrNilCaches = errors.New("caches are required")
)

// legacySensorKind is accepted on create for sensors.
const legacySensorKind = "rodent_sensor"

// CreateRequest describes a device to add.
type CreateRequest struct {
	// Kind is "gateway" or "sensor". Defaults to "sensor".
	Kind          string `json:"device_type" validate:"omitempty,oneof=gateway sensor rodent_sensor"`
	Customer      string `json:"customer" validate:"required"`
	Site          string `json:"site" validate:"required"`
	Area          string `json:"area" validate:"required"`
	ERPReference  string `json:"erp_reference" validate:"required"`
	Placement     string `json:"placement,omitempty"`
	Configuration string `json:"configuration,omitempty"`

	// ID defaults to model.DefaultDeviceID.
	ID string `json:"device_id,omitempty"`

	// Status defaults to model.DefaultDeviceStatus.
	Status string `json:"status,omitempty"`
}

// Created is the result of a successful create.
type Created struct {
	Device    model.DeviceView `json:"device"`
	ClusterID string           `json:"cluster_id"`
}

// ClusterListing reports how one cluster contributed to a listing.
type ClusterListing struct {
	Info    model.ClusterInfo `json:"cluster"`
	Devices int               `json:"devices"`
	Cached  bool              `json:"cached"`
	Error   string            `json:"error,omitempty"`

	Err error `json:"-"`
}

// ListResult is every device of every readable cluster.
type ListResult struct {
	Devices    []model.DeviceView `json:"devices"`
	TotalCount int                `json:"total_count"`
	Clusters   []ClusterListing   `json:"clusters"`
}

// Deleted is the result of a delete. Found is false when there was nothing
// to delete.
type Deleted struct {
	Found     bool              `json:"found"`
	GUID      string            `json:"guid"`
	ClusterID string            `json:"cluster_id,omitempty"`
	Device    *model.DeviceView `json:"device,omitempty"`
}

// Service runs device CRUD on top of whole-document cluster reads and writes,
// keeping the caches surgically up to date.
type Service struct {
	layouts    model.Layouts
	caches     *cache.Caches
	remote     client.ClusterStore
	discoverer *CachedDiscoverer
	finder     *Finder
	validate   *validator.Validate
	logger     *zap.Logger

	maxConcurrency int
	serialize      bool
	clusterLocks   sync.Map

	newGUID func() string
	now     func() time.Time
}

// NewService wires a Service together. Measures and logger are optional.
func NewService(config Config, remote client.Remote, caches *cache.Caches, logger *zap.Logger, measures *Measures) (*Service, error) {
	if remote == nil {
		return nil, ErrNilRemote
	}
	if caches == nil {
		return nil, ErrNilCaches
	}
	validateConfig(&config)
	if logger == nil {
		logger = zap.NewNop()
	}

	layouts, err := config.Layouts.BuildLayouts()
	if err != nil {
		return nil, err
	}

	discoverer := NewCachedDiscoverer(caches.Discovery, remote, config.DiscoveryRetry, logger, measures)
	return &Service{
		layouts:        layouts,
		caches:         caches,
		remote:         remote,
		discoverer:     discoverer,
		finder:         NewFinder(config.Finder, discoverer, remote, NewFastReject(config.FastReject), logger, measures),
		validate:       validator.New(),
		logger:         logger,
		maxConcurrency: config.Finder.MaxConcurrency,
		serialize:      config.SerializeWrites,
		newGUID: func() string {
			return model.GUIDPrefix + uuid.NewString()
		},
		now: time.Now,
	}, nil
}

// Layouts returns the layout registry in use.
func (s *Service) Layouts() model.Layouts {
	return s.layouts
}

// lockCluster serializes writers to one cluster when configured to.
func (s *Service) lockCluster(id string) func() {
	if !s.serialize {
		return func() {}
	}
	l, _ := s.clusterLocks.LoadOrStore(id, new(sync.Mutex))
	m := l.(*sync.Mutex)
	m.Lock()
	return m.Unlock
}

// clusterFor resolves the cluster that holds a category, discovering only
// when the cache has no usable mapping.
func (s *Service) clusterFor(ctx context.Context, category model.Category) (model.ClusterInfo, error) {
	if info, ok := s.caches.Discovery.FindForCategory(category); ok {
		return info, nil
	}
	m, err := s.discoverer.Discover(ctx)
	if err != nil {
		return model.ClusterInfo{}, err
	}
	info, ok := m.ForCategory(category)
	if !ok {
		return model.ClusterInfo{}, fmt.Errorf("%w: no cluster holds %s", model.ErrClusterNotFound, category)
	}
	return info, nil
}

// document returns the cached document of a cluster, reading and caching it
// on a miss.
func (s *Service) document(ctx context.Context, info model.ClusterInfo) (model.Cluster, bool, error) {
	if c, ok := s.caches.Documents.Get(info.ID); ok {
		return c, true, nil
	}
	c, err := s.remote.FetchCluster(ctx, info.Category, info.ID)
	if err != nil {
		return model.Cluster{}, false, err
	}
	s.caches.Documents.Store(info.ID, c)
	return c, false, nil
}

func (s *Service) layoutForKind(kind string) (model.Layout, error) {
	switch kind {
	case "", legacySensorKind:
		kind = model.SensorKind
	}
	l, ok := s.layouts.ForKind(kind)
	if !ok {
		return model.Layout{}, fmt.Errorf("%w: unknown device type %q", model.ErrInvalidInput, kind)
	}
	return l, nil
}

func (s *Service) validateCreate(req CreateRequest) error {
	err := s.validate.Struct(req)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("%w: %s", model.ErrInvalidInput, err.Error())
	}
	problems := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		problems = append(problems, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
	}
	return fmt.Errorf("%w: %s", model.ErrInvalidInput, strings.Join(problems, ", "))
}

// Create adds a device to the cluster of its category.
func (s *Service) Create(ctx context.Context, req CreateRequest) (Created, error) {
	if err := s.validateCreate(req); err != nil {
		return Created{}, err
	}
	layout, err := s.layoutForKind(req.Kind)
	if err != nil {
		return Created{}, err
	}

	info, err := s.clusterFor(ctx, layout.Category)
	if err != nil {
		return Created{}, err
	}

	unlock := s.lockCluster(info.ID)
	defer unlock()

	cluster, _, err := s.document(ctx, info)
	if err != nil {
		return Created{}, err
	}

	device := model.Device{
		ID:     req.ID,
		GUID:   s.newGUID(),
		Status: req.Status,
		Meta: model.Meta{
			Location: model.BuildLocation(layout, map[model.Field]string{
				model.FieldCustomer:      req.Customer,
				model.FieldSite:          req.Site,
				model.FieldArea:          req.Area,
				model.FieldERPReference:  req.ERPReference,
				model.FieldPlacement:     req.Placement,
				model.FieldConfiguration: req.Configuration,
			}),
		},
	}
	if len(device.ID) == 0 {
		device.ID = model.DefaultDeviceID
	}
	if len(device.Status) == 0 {
		device.Status = model.DefaultDeviceStatus
	}
	cluster.Devices = append(cluster.Devices, device)

	if _, err := s.remote.PutCluster(ctx, info.Category, info.ID, cluster); err != nil {
		return Created{}, err
	}
	if !s.caches.Documents.AddDevice(info.ID, device) {
		s.caches.Documents.Invalidate(info.ID)
	}

	s.logger.Info("created device", zap.String("guid", device.GUID), zap.String("clusterID", info.ID))
	info.DeviceCount = len(cluster.Devices)
	return Created{
		Device:    model.Decorate(device, info, layout),
		ClusterID: info.ID,
	}, nil
}

// List returns every device of every cluster whose category has a layout.
// Clusters that cannot be read are reported in the result, not as an error.
func (s *Service) List(ctx context.Context) (ListResult, error) {
	m, err := s.discoverer.Discover(ctx)
	if err != nil {
		return ListResult{}, err
	}

	type listed struct {
		include bool
		layout  model.Layout
		cluster model.Cluster
		cached  bool
		err     error
	}
	results := make([]listed, len(m.Clusters))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.maxConcurrency)
	for i, info := range m.Clusters {
		layout, ok := s.layouts.ForCategory(info.Category)
		if !ok {
			continue
		}
		results[i] = listed{include: true, layout: layout}
		g.Go(func() error {
			c, cached, err := s.document(gctx, info)
			results[i].cluster, results[i].cached, results[i].err = c, cached, err
			return nil
		})
	}
	g.Wait() // nolint:errcheck

	out := ListResult{
		Devices:  []model.DeviceView{},
		Clusters: []ClusterListing{},
	}
	for i, r := range results {
		if !r.include {
			continue
		}
		info := m.Clusters[i]
		listing := ClusterListing{Info: info, Cached: r.cached}
		if r.err != nil {
			s.logger.Warn("failed to read cluster for listing", zap.String("clusterID", info.ID), zap.Error(r.err))
			listing.Err = r.err
			listing.Error = r.err.Error()
			out.Clusters = append(out.Clusters, listing)
			continue
		}
		info.DeviceCount = len(r.cluster.Devices)
		listing.Info = info
		listing.Devices = len(r.cluster.Devices)
		for _, d := range r.cluster.Devices {
			out.Devices = append(out.Devices, model.Decorate(d, info, r.layout))
		}
		out.Clusters = append(out.Clusters, listing)
	}
	out.TotalCount = len(out.Devices)
	return out, nil
}

// Get returns one device by guid, read fresh from the remote store.
func (s *Service) Get(ctx context.Context, guid string) (model.DeviceView, error) {
	located, err := s.finder.FindByGUID(ctx, guid)
	if err != nil {
		return model.DeviceView{}, err
	}
	layout, ok := s.layouts.ForCategory(located.Info.Category)
	if !ok {
		layout = model.Layout{Category: located.Info.Category, Kind: "unknown"}
	}
	return model.Decorate(located.Device, located.Info, layout), nil
}

// reread fetches the document again under the cluster lock so a serialized
// write starts from the latest state.
func (s *Service) reread(ctx context.Context, located Located) (model.Cluster, int, error) {
	if !s.serialize {
		return located.Cluster, located.Index, nil
	}
	c, err := s.remote.FetchCluster(ctx, located.Info.Category, located.Info.ID)
	if err != nil {
		return model.Cluster{}, -1, err
	}
	i := c.IndexOf(located.Device.GUID)
	if i < 0 {
		return model.Cluster{}, -1, fmt.Errorf("%w: %s", model.ErrDeviceNotFound, located.Device.GUID)
	}
	return c, i, nil
}

// UpdateByGUID applies a partial update to one device.
func (s *Service) UpdateByGUID(ctx context.Context, guid string, update model.DeviceUpdate) (model.DeviceView, error) {
	if update.Empty() {
		return model.DeviceView{}, fmt.Errorf("%w: update sets no fields", model.ErrInvalidInput)
	}
	located, err := s.finder.FindByGUID(ctx, guid)
	if err != nil {
		return model.DeviceView{}, err
	}
	info := located.Info
	layout, ok := s.layouts.ForCategory(info.Category)
	if !ok {
		return model.DeviceView{}, fmt.Errorf("%w: devices of %s cannot be updated", model.ErrInvalidInput, info.Category)
	}
	if err := update.Validate(layout); err != nil {
		return model.DeviceView{}, err
	}

	unlock := s.lockCluster(info.ID)
	defer unlock()

	cluster, i, err := s.reread(ctx, located)
	if err != nil {
		return model.DeviceView{}, err
	}
	patch, err := update.Apply(&cluster.Devices[i], layout, s.now())
	if err != nil {
		return model.DeviceView{}, err
	}

	if _, err := s.remote.PutCluster(ctx, info.Category, info.ID, cluster); err != nil {
		return model.DeviceView{}, err
	}
	if !s.caches.Documents.UpdateDevice(info.ID, guid, patch) {
		s.caches.Documents.Invalidate(info.ID)
	}

	s.logger.Info("updated device", zap.String("guid", guid), zap.String("clusterID", info.ID))
	info.DeviceCount = len(cluster.Devices)
	return model.Decorate(cluster.Devices[i], info, layout), nil
}

// DeleteByGUID removes one device. Deleting a device that does not exist is
// not an error.
func (s *Service) DeleteByGUID(ctx context.Context, guid string) (Deleted, error) {
	located, err := s.finder.FindByGUID(ctx, guid)
	if errors.Is(err, model.ErrDeviceNotFound) {
		return Deleted{GUID: guid}, nil
	}
	if err != nil {
		return Deleted{}, err
	}
	info := located.Info

	unlock := s.lockCluster(info.ID)
	defer unlock()

	cluster, i, err := s.reread(ctx, located)
	if errors.Is(err, model.ErrDeviceNotFound) {
		return Deleted{GUID: guid}, nil
	}
	if err != nil {
		return Deleted{}, err
	}

	removed := cluster.Devices[i]
	devices := make([]model.Device, 0, len(cluster.Devices)-1)
	devices = append(devices, cluster.Devices[:i]...)
	cluster.Devices = append(devices, cluster.Devices[i+1:]...)

	if _, err := s.remote.PutCluster(ctx, info.Category, info.ID, cluster); err != nil {
		return Deleted{}, err
	}
	if _, ok := s.caches.Documents.RemoveDevice(info.ID, guid); !ok {
		s.caches.Documents.Invalidate(info.ID)
	}

	s.logger.Info("deleted device", zap.String("guid", guid), zap.String("clusterID", info.ID))
	layout, ok := s.layouts.ForCategory(info.Category)
	if !ok {
		layout = model.Layout{Category: info.Category, Kind: "unknown"}
	}
	info.DeviceCount = len(cluster.Devices)
	view := model.Decorate(removed, info, layout)
	return Deleted{
		Found:     true,
		GUID:      guid,
		ClusterID: info.ID,
		Device:    &view,
	}, nil
}

// Clusters returns the cluster mapping, discovering if needed.
func (s *Service) Clusters(ctx context.Context) (model.Discovery, error) {
	return s.discoverer.Discover(ctx)
}

// Cluster returns one cluster document, from the cache when it is fresh.
// The category is taken from the mapping; category is only used for clusters
// the mapping does not know.
func (s *Service) Cluster(ctx context.Context, clusterID string, category model.Category) (model.Cluster, error) {
	if len(clusterID) == 0 {
		return model.Cluster{}, fmt.Errorf("%w: cluster id is required", model.ErrInvalidInput)
	}
	m, err := s.discoverer.Discover(ctx)
	if err != nil {
		return model.Cluster{}, err
	}
	info, ok := m.ForID(clusterID)
	if !ok {
		if len(category) == 0 {
			return model.Cluster{}, fmt.Errorf("%w: %s is not a known cluster", model.ErrClusterNotFound, clusterID)
		}
		info = model.ClusterInfo{ID: clusterID, Category: category}
	}
	c, _, err := s.document(ctx, info)
	return c, err
}

// RefreshDiscovery discovers again and replaces the cached mapping.
func (s *Service) RefreshDiscovery(ctx context.Context) (model.Discovery, error) {
	return s.discoverer.Refresh(ctx)
}

// CacheStatus describes both caches without changing them.
func (s *Service) CacheStatus() cache.Status {
	return s.caches.Status()
}

// ClearCache drops everything cached. The next operation rediscovers.
func (s *Service) ClearCache() {
	s.caches.ClearAll()
	s.logger.Info("cleared all caches")
}

// InvalidateCluster drops one cached document.
func (s *Service) InvalidateCluster(clusterID string) {
	s.caches.Documents.Invalidate(clusterID)
}
