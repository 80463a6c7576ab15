// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package model

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/spf13/cast"
)

// wire keys
const (
	deviceIDKey           = "id"
	deviceGUIDKey         = "guid"
	deviceStatusKey       = "status"
	deviceMetaKey         = "meta"
	deviceLastModifiedKey = "lastModified"
	metaLocationKey       = "location"

	clusterIDKey      = "_id"
	clusterRecTypeKey = "recType"
	clusterNameKey    = "name"
	clusterDataKey    = "data"
	dataDevicesKey    = "devices"
)

// Meta is the device's meta object. Only the location vector is interpreted;
// everything else is carried through untouched.
type Meta struct {
	Location []string
	Extra    map[string]json.RawMessage
}

// Device is a single entry of a cluster's device list.
type Device struct {
	// ID is the device identifier. It is not unique and is often a
	// placeholder until the remote system assigns one.
	ID string

	// GUID is the globally unique token used to find a device.
	GUID string

	Status       string
	Meta         Meta
	LastModified string

	// Extra holds the keys this package does not interpret.
	Extra map[string]json.RawMessage

	// source is the device exactly as it was decoded. Encoding reuses it
	// for everything that has not been modified since.
	source json.RawMessage
}

// Cluster is one remote document: a category-scoped container of devices.
type Cluster struct {
	ID       string
	Category Category
	Name     string
	Devices  []Device

	// DataExtra holds keys of the data object other than devices.
	DataExtra map[string]json.RawMessage

	// Extra holds top level keys this package does not interpret.
	Extra map[string]json.RawMessage
}

// Info summarizes the cluster the way discovery does.
func (c Cluster) Info() ClusterInfo {
	return ClusterInfo{
		ID:          c.ID,
		Name:        c.Name,
		Category:    c.Category,
		DeviceCount: len(c.Devices),
	}
}

// IndexOf returns the position of the device with the given guid, or -1.
func (c Cluster) IndexOf(guid string) int {
	for i := range c.Devices {
		if c.Devices[i].GUID == guid {
			return i
		}
	}
	return -1
}

// Clone returns a deep copy of the cluster. Raw extra values are shared since
// they are never modified in place.
func (c Cluster) Clone() Cluster {
	out := c
	out.DataExtra = cloneRaw(c.DataExtra)
	out.Extra = cloneRaw(c.Extra)
	if c.Devices != nil {
		out.Devices = make([]Device, len(c.Devices))
		for i := range c.Devices {
			out.Devices[i] = c.Devices[i].Clone()
		}
	}
	return out
}

// Clone returns a deep copy of the device.
func (d Device) Clone() Device {
	out := d
	out.Extra = cloneRaw(d.Extra)
	out.Meta.Extra = cloneRaw(d.Meta.Extra)
	if d.Meta.Location != nil {
		out.Meta.Location = append([]string(nil), d.Meta.Location...)
	}
	return out
}

func cloneRaw(m map[string]json.RawMessage) map[string]json.RawMessage {
	if m == nil {
		return nil
	}
	out := make(map[string]json.RawMessage, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// UnmarshalJSON decodes a device, keeping unknown keys. The id is accepted as
// either a string or a number.
func (d *Device) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	out := Device{source: append(json.RawMessage(nil), data...)}
	var err error
	if out.ID, err = takeString(raw, deviceIDKey); err != nil {
		return err
	}
	if out.GUID, err = takeString(raw, deviceGUIDKey); err != nil {
		return err
	}
	if out.Status, err = takeString(raw, deviceStatusKey); err != nil {
		return err
	}
	if out.LastModified, err = takeString(raw, deviceLastModifiedKey); err != nil {
		return err
	}
	if m, ok := raw[deviceMetaKey]; ok {
		delete(raw, deviceMetaKey)
		if err := json.Unmarshal(m, &out.Meta); err != nil {
			return fmt.Errorf("device meta: %w", err)
		}
	}
	if len(raw) > 0 {
		out.Extra = raw
	}
	*d = out
	return nil
}

// MarshalJSON encodes the device. A device that is unchanged since it was
// decoded is written back byte for byte; otherwise each unmodified key keeps
// its original encoding and absent keys stay absent unless they were set.
func (d Device) MarshalJSON() ([]byte, error) {
	var (
		fetched map[string]json.RawMessage
		orig    Device
	)
	if len(d.source) > 0 {
		if err := json.Unmarshal(d.source, &fetched); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(d.source, &orig); err != nil {
			return nil, err
		}
		if d.equal(orig) {
			return d.source, nil
		}
	}

	out := make(map[string]interface{}, len(d.Extra)+5)
	for k, v := range d.Extra {
		out[k] = v
	}
	putString(out, fetched, deviceIDKey, d.ID, orig.ID)
	putString(out, fetched, deviceGUIDKey, d.GUID, orig.GUID)
	putString(out, fetched, deviceStatusKey, d.Status, orig.Status)
	putString(out, fetched, deviceLastModifiedKey, d.LastModified, orig.LastModified)

	metaRaw, hadMeta := fetched[deviceMetaKey]
	switch {
	case hadMeta && d.Meta.equal(orig.Meta):
		out[deviceMetaKey] = metaRaw
	case hadMeta || d.Meta.Location != nil || len(d.Meta.Extra) > 0:
		out[deviceMetaKey] = d.Meta
	}
	return json.Marshal(out)
}

func (d Device) equal(o Device) bool {
	return d.ID == o.ID &&
		d.GUID == o.GUID &&
		d.Status == o.Status &&
		d.LastModified == o.LastModified &&
		d.Meta.equal(o.Meta) &&
		rawEqual(d.Extra, o.Extra)
}

// putString writes value under key, reusing the fetched encoding when the
// value has not changed.
func putString(out map[string]interface{}, fetched map[string]json.RawMessage, key, value, was string) {
	raw, ok := fetched[key]
	switch {
	case ok && value == was:
		out[key] = raw
	case ok || len(value) > 0:
		out[key] = value
	}
}

// UnmarshalJSON decodes meta, converting location entries to strings.
func (m *Meta) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	var out Meta
	if l, ok := raw[metaLocationKey]; ok {
		delete(raw, metaLocationKey)
		var values []interface{}
		if err := json.Unmarshal(l, &values); err != nil {
			return fmt.Errorf("location: %w", err)
		}
		out.Location = make([]string, 0, len(values))
		for _, v := range values {
			s, err := cast.ToStringE(v)
			if err != nil {
				return fmt.Errorf("location entry: %w", err)
			}
			out.Location = append(out.Location, s)
		}
	}
	if len(raw) > 0 {
		out.Extra = raw
	}
	*m = out
	return nil
}

// MarshalJSON encodes meta with its preserved keys.
func (m Meta) MarshalJSON() ([]byte, error) {
	out := make(map[string]interface{}, len(m.Extra)+1)
	for k, v := range m.Extra {
		out[k] = v
	}
	if m.Location != nil {
		out[metaLocationKey] = m.Location
	}
	return json.Marshal(out)
}

func (m Meta) equal(o Meta) bool {
	if len(m.Location) != len(o.Location) || (m.Location == nil) != (o.Location == nil) {
		return false
	}
	for i := range m.Location {
		if m.Location[i] != o.Location[i] {
			return false
		}
	}
	return rawEqual(m.Extra, o.Extra)
}

func rawEqual(a, b map[string]json.RawMessage) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		w, ok := b[k]
		if !ok || !bytes.Equal(v, w) {
			return false
		}
	}
	return true
}

// UnmarshalJSON decodes a cluster document, keeping unknown keys.
func (c *Cluster) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	var out Cluster
	var err error
	if out.ID, err = takeString(raw, clusterIDKey); err != nil {
		return err
	}
	var category string
	if category, err = takeString(raw, clusterRecTypeKey); err != nil {
		return err
	}
	out.Category = Category(category)
	if out.Name, err = takeString(raw, clusterNameKey); err != nil {
		return err
	}

	if d, ok := raw[clusterDataKey]; ok {
		delete(raw, clusterDataKey)
		var dataRaw map[string]json.RawMessage
		if err := json.Unmarshal(d, &dataRaw); err != nil {
			return fmt.Errorf("cluster data: %w", err)
		}
		if devices, ok := dataRaw[dataDevicesKey]; ok {
			delete(dataRaw, dataDevicesKey)
			if err := json.Unmarshal(devices, &out.Devices); err != nil {
				return fmt.Errorf("cluster devices: %w", err)
			}
		}
		if len(dataRaw) > 0 {
			out.DataExtra = dataRaw
		}
	}
	if len(raw) > 0 {
		out.Extra = raw
	}
	*c = out
	return nil
}

// MarshalJSON encodes the whole cluster document, the form the remote store
// expects on a PUT.
func (c Cluster) MarshalJSON() ([]byte, error) {
	data := make(map[string]interface{}, len(c.DataExtra)+1)
	for k, v := range c.DataExtra {
		data[k] = v
	}
	devices := c.Devices
	if devices == nil {
		devices = []Device{}
	}
	data[dataDevicesKey] = devices

	out := make(map[string]interface{}, len(c.Extra)+4)
	for k, v := range c.Extra {
		out[k] = v
	}
	out[clusterIDKey] = c.ID
	out[clusterRecTypeKey] = c.Category
	out[clusterNameKey] = c.Name
	out[clusterDataKey] = data
	return json.Marshal(out)
}

// takeString removes key from raw and converts its value to a string.
// Missing keys and JSON nulls yield the empty string.
func takeString(raw map[string]json.RawMessage, key string) (string, error) {
	v, ok := raw[key]
	if !ok {
		return "", nil
	}
	delete(raw, key)
	var value interface{}
	if err := json.Unmarshal(v, &value); err != nil {
		return "", fmt.Errorf("%s: %w", key, err)
	}
	if value == nil {
		return "", nil
	}
	s, err := cast.ToStringE(value)
	if err != nil {
		return "", fmt.Errorf("%s: %w", key, err)
	}
	return s, nil
}
