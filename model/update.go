// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package model

import (
	"fmt"
	"time"
)

// DeviceUpdate is a partial update of one device. Nil fields are left alone.
type DeviceUpdate struct {
	ID            *string `json:"device_id,omitempty"`
	Status        *string `json:"status,omitempty"`
	Customer      *string `json:"customer,omitempty"`
	Site          *string `json:"site,omitempty"`
	Area          *string `json:"area,omitempty"`
	ERPReference  *string `json:"erp_reference,omitempty"`
	Placement     *string `json:"placement,omitempty"`
	Configuration *string `json:"configuration,omitempty"`
}

type fieldValue struct {
	field Field
	value string
}

func (u DeviceUpdate) locationValues() []fieldValue {
	var values []fieldValue
	for _, fv := range []struct {
		field Field
		value *string
	}{
		{FieldCustomer, u.Customer},
		{FieldSite, u.Site},
		{FieldArea, u.Area},
		{FieldERPReference, u.ERPReference},
		{FieldPlacement, u.Placement},
		{FieldConfiguration, u.Configuration},
	} {
		if fv.value != nil {
			values = append(values, fieldValue{field: fv.field, value: *fv.value})
		}
	}
	return values
}

// Empty reports whether the update sets nothing.
func (u DeviceUpdate) Empty() bool {
	return u.ID == nil && u.Status == nil && len(u.locationValues()) == 0
}

// Validate checks the update against the layout of the device's category.
func (u DeviceUpdate) Validate(l Layout) error {
	if u.Empty() {
		return fmt.Errorf("%w: update sets no fields", ErrInvalidInput)
	}
	for _, fv := range u.locationValues() {
		if _, ok := l.Position(fv.field); !ok {
			return fmt.Errorf("%w: field %s is not part of the %s layout", ErrInvalidInput, fv.field, l.Kind)
		}
	}
	return nil
}

// Apply validates the update and applies it to d. The returned patch holds
// exactly what changed so it can be merged into a cached copy of d.
func (u DeviceUpdate) Apply(d *Device, l Layout, now time.Time) (DevicePatch, error) {
	if err := u.Validate(l); err != nil {
		return DevicePatch{}, err
	}

	var patch DevicePatch
	if values := u.locationValues(); len(values) > 0 {
		location := append([]string(nil), d.Meta.Location...)
		for _, fv := range values {
			pos, _ := l.Position(fv.field)
			for len(location) <= pos {
				location = append(location, "")
			}
			location[pos] = fv.value
		}
		patch.Location = location
	}
	if u.Status != nil {
		status := *u.Status
		patch.Status = &status
	}
	if u.ID != nil {
		id := *u.ID
		patch.ID = &id
	}
	patch.LastModified = now.UTC().Format(time.RFC3339)

	patch.ApplyTo(d)
	return patch, nil
}

// DevicePatch is a shallow, per field merge onto a device.
type DevicePatch struct {
	ID       *string
	Status   *string
	Location []string

	// LastModified is set when not empty.
	LastModified string
}

// ApplyTo merges the patch into d.
func (p DevicePatch) ApplyTo(d *Device) {
	if p.ID != nil {
		d.ID = *p.ID
	}
	if p.Status != nil {
		d.Status = *p.Status
	}
	if p.Location != nil {
		d.Meta.Location = append([]string(nil), p.Location...)
	}
	if len(p.LastModified) > 0 {
		d.LastModified = p.LastModified
	}
}

// BuildLocation lays values out in the order of l. Empty values take the
// layout's create default, if it has one.
func BuildLocation(l Layout, values map[Field]string) []string {
	location := make([]string, len(l.Fields))
	for i, f := range l.Fields {
		v := values[f]
		if len(v) == 0 {
			v = l.CreateDefaults[f]
		}
		location[i] = v
	}
	return location
}

// DeviceView is a device decorated with its cluster and the decoded
// location vector.
type DeviceView struct {
	ID            string   `json:"id"`
	GUID          string   `json:"guid"`
	Status        string   `json:"status"`
	Kind          string   `json:"device_type"`
	Category      Category `json:"rec_type"`
	ClusterID     string   `json:"cluster_id"`
	ClusterName   string   `json:"cluster_name"`
	Customer      string   `json:"customer"`
	Site          string   `json:"site"`
	Area          string   `json:"area"`
	ERPReference  string   `json:"erp_reference"`
	Placement     string   `json:"placement"`
	Configuration string   `json:"configuration"`
	Location      []string `json:"location"`

	// LocationLayers is the length of the raw location vector.
	LocationLayers int `json:"location_layers"`

	// FullyPopulated is false when the vector is shorter than the layout.
	FullyPopulated bool   `json:"fully_populated"`
	LastModified   string `json:"last_modified,omitempty"`
}

// Decorate decodes d's location vector through l.
func Decorate(d Device, info ClusterInfo, l Layout) DeviceView {
	location := d.Meta.Location
	decode := func(f Field) string {
		if pos, ok := l.Position(f); ok && pos < len(location) {
			return location[pos]
		}
		return l.ReadDefaults[f]
	}

	return DeviceView{
		ID:             d.ID,
		GUID:           d.GUID,
		Status:         d.Status,
		Kind:           l.Kind,
		Category:       l.Category,
		ClusterID:      info.ID,
		ClusterName:    info.Name,
		Customer:       decode(FieldCustomer),
		Site:           decode(FieldSite),
		Area:           decode(FieldArea),
		ERPReference:   decode(FieldERPReference),
		Placement:      decode(FieldPlacement),
		Configuration:  decode(FieldConfiguration),
		Location:       append([]string{}, location...),
		LocationLayers: len(location),
		FullyPopulated: len(location) >= l.Len(),
		LastModified:   d.LastModified,
	}
}
