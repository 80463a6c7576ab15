// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package model

import "fmt"

// Category is the record type tag a cluster is stored under (recType).
type Category string

// Default record types for the two known device kinds.
const (
	GatewayCategory Category = "io.microshare.gateway.health.packed"
	SensorCategory  Category = "io.microshare.trap.packed"
)

// Device kinds, as used by API clients when creating devices.
const (
	GatewayKind = "gateway"
	SensorKind  = "sensor"
)

// Placeholder values applied when the remote store has not assigned them yet.
const (
	DefaultDeviceID     = "00-00-00-00-00-00-00-00"
	DefaultDeviceStatus = "pending"
	GUIDPrefix          = "erp-device-"
)

// Field names a position within a device's location vector.
type Field string

const (
	FieldCustomer      Field = "customer"
	FieldSite          Field = "site"
	FieldArea          Field = "area"
	FieldERPReference  Field = "erp_reference"
	FieldPlacement     Field = "placement"
	FieldConfiguration Field = "configuration"
)

// Layout describes the positional meaning of the location vector for one
// category.
type Layout struct {
	Category Category
	Kind     string

	// Fields is the ordered list of location vector positions.
	Fields []Field

	// CreateDefaults fill positions a create request left empty.
	CreateDefaults map[Field]string

	// ReadDefaults decorate read results for fields the layout does not
	// carry (i.e. a gateway's placement).
	ReadDefaults map[Field]string
}

// Position returns the index of f in the location vector.
func (l Layout) Position(f Field) (int, bool) {
	for i, field := range l.Fields {
		if field == f {
			return i, true
		}
	}
	return 0, false
}

// Len is the number of positions a fully populated vector has.
func (l Layout) Len() int {
	return len(l.Fields)
}

// GatewayLayout returns the 4-field gateway layout stored under c.
func GatewayLayout(c Category) Layout {
	return Layout{
		Category: c,
		Kind:     GatewayKind,
		Fields:   []Field{FieldCustomer, FieldSite, FieldArea, FieldERPReference},
		ReadDefaults: map[Field]string{
			FieldPlacement:     "Infrastructure",
			FieldConfiguration: "Gateway",
		},
	}
}

// SensorLayout returns the 6-field sensor layout stored under c.
func SensorLayout(c Category) Layout {
	return Layout{
		Category: c,
		Kind:     SensorKind,
		Fields: []Field{
			FieldCustomer, FieldSite, FieldArea, FieldERPReference,
			FieldPlacement, FieldConfiguration,
		},
		CreateDefaults: map[Field]string{
			FieldPlacement:     "Internal",
			FieldConfiguration: "Bait/Lured",
		},
		ReadDefaults: map[Field]string{
			FieldPlacement:     "Internal",
			FieldConfiguration: "Bait/Lured",
		},
	}
}

// Layouts is a registry of the layouts the service knows about.
type Layouts struct {
	byCategory map[Category]Layout
	byKind     map[string]Layout
}

// NewLayouts builds a registry. Categories and kinds must be unique.
func NewLayouts(layouts ...Layout) (Layouts, error) {
	r := Layouts{
		byCategory: make(map[Category]Layout, len(layouts)),
		byKind:     make(map[string]Layout, len(layouts)),
	}
	for _, l := range layouts {
		if len(l.Category) == 0 || len(l.Kind) == 0 {
			return Layouts{}, fmt.Errorf("%w: layout requires a category and a kind", ErrInvalidInput)
		}
		if _, dup := r.byCategory[l.Category]; dup {
			return Layouts{}, fmt.Errorf("%w: duplicate layout category %s", ErrInvalidInput, l.Category)
		}
		if _, dup := r.byKind[l.Kind]; dup {
			return Layouts{}, fmt.Errorf("%w: duplicate layout kind %s", ErrInvalidInput, l.Kind)
		}
		r.byCategory[l.Category] = l
		r.byKind[l.Kind] = l
	}
	return r, nil
}

// DefaultLayouts is the gateway + sensor registry under the default record types.
func DefaultLayouts() Layouts {
	r, _ := NewLayouts(GatewayLayout(GatewayCategory), SensorLayout(SensorCategory))
	return r
}

// ForCategory returns the layout for a record type.
func (r Layouts) ForCategory(c Category) (Layout, bool) {
	l, ok := r.byCategory[c]
	return l, ok
}

// ForKind returns the layout for a device kind ("gateway", "sensor").
func (r Layouts) ForKind(kind string) (Layout, bool) {
	l, ok := r.byKind[kind]
	return l, ok
}

// ClusterInfo is what discovery learns about one cluster.
type ClusterInfo struct {
	ID          string   `json:"cluster_id"`
	Name        string   `json:"cluster_name"`
	Category    Category `json:"rec_type"`
	DeviceCount int      `json:"device_count"`
}

// Discovery is the result of one bulk enumeration of the remote store.
type Discovery struct {
	// Clusters are kept in the order the remote store returned them.
	Clusters     []ClusterInfo `json:"clusters"`
	TotalDevices int           `json:"total_devices"`
}

// ForCategory returns the first cluster holding category c.
func (d Discovery) ForCategory(c Category) (ClusterInfo, bool) {
	for _, info := range d.Clusters {
		if info.Category == c {
			return info, true
		}
	}
	return ClusterInfo{}, false
}

// ForID returns the cluster with the given id.
func (d Discovery) ForID(id string) (ClusterInfo, bool) {
	for _, info := range d.Clusters {
		if info.ID == id {
			return info, true
		}
	}
	return ClusterInfo{}, false
}

// Empty reports whether discovery found no clusters at all.
func (d Discovery) Empty() bool {
	return len(d.Clusters) == 0
}

// Clone returns a copy that shares nothing with d.
func (d Discovery) Clone() Discovery {
	c := Discovery{TotalDevices: d.TotalDevices}
	if d.Clusters != nil {
		c.Clusters = append([]ClusterInfo(nil), d.Clusters...)
	}
	return c
}
