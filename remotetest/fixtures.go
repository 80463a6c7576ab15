// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package remotetest

import "github.com/xmidt-org/ladon/model"

// Fixture cluster ids.
const (
	GatewayClusterID = "cluster-gateways"
	SensorClusterID  = "cluster-traps"
)

// NewDevice builds a device with a location vector.
func NewDevice(id, guid string, location ...string) model.Device {
	return model.Device{
		ID:     id,
		GUID:   guid,
		Status: model.DefaultDeviceStatus,
		Meta:   model.Meta{Location: location},
	}
}

// GatewayCluster is a gateway cluster with two fully populated devices.
func GatewayCluster() model.Cluster {
	return model.Cluster{
		ID:       GatewayClusterID,
		Category: model.GatewayCategory,
		Name:     "Gateways",
		Devices: []model.Device{
			NewDevice("58-A0-CB-FF-FE-80-0A-11", "erp-device-gw-1", "Acme", "S1", "Roof", "GW-1"),
			NewDevice("58-A0-CB-FF-FE-80-0A-12", "erp-device-gw-2", "Acme", "S2", "Basement", "GW-2"),
		},
	}
}

// SensorCluster is a trap cluster with three devices, the last of which
// has a short location vector.
func SensorCluster() model.Cluster {
	return model.Cluster{
		ID:       SensorClusterID,
		Category: model.SensorCategory,
		Name:     "Rodent Traps",
		Devices: []model.Device{
			NewDevice("00-11-22-33-44-55-66-01", "erp-device-trap-1", "Acme", "S1", "Kitchen", "T-1", "Internal", "Bait/Lured"),
			NewDevice("00-11-22-33-44-55-66-02", "erp-device-trap-2", "Acme", "S1", "Storage", "T-2", "External", "Bait"),
			NewDevice(model.DefaultDeviceID, "erp-device-trap-3", "Acme", "S2", "Dock"),
		},
	}
}

// TwoClusters seeds a store with GatewayCluster and SensorCluster, in that
// order.
func TwoClusters() *Store {
	return NewStore(GatewayCluster(), SensorCluster())
}
