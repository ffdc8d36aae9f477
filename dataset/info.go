/*
Copyright (c) Facebook, Inc. and its affiliates.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package dataset

// SecurityPolicy is the decoded form of the SecurityPolicy TLV: a
// rotation time in hours, plus a small flags byte string whose length
// (1 or 2 bytes) depends on the Thread protocol version in use.
type SecurityPolicy struct {
	RotationTime uint16
	Flags        []byte
}

// Info is the fully structured view of a Dataset: one bool/value pair
// per known component, mirroring spec.md §3.5. Converting a Dataset to
// an Info is total (every known TLV type has a home; unknown TLVs are
// skipped); converting an Info
// to a Dataset is fallible only on buffer exhaustion (ErrNoBufs).
type Info struct {
	HasActiveTimestamp  bool
	ActiveTimestamp     Timestamp
	HasPendingTimestamp bool
	PendingTimestamp    Timestamp
	HasDelay            bool
	Delay               uint32
	HasChannel          bool
	Channel             uint16
	HasWakeupChannel    bool
	WakeupChannel       uint16
	HasChannelMask      bool
	ChannelMask         uint32
	HasExtendedPanID    bool
	ExtendedPanID       [8]byte
	HasMeshLocalPrefix  bool
	MeshLocalPrefix     [8]byte
	HasNetworkKey       bool
	NetworkKey          [16]byte
	HasNetworkName      bool
	NetworkName         string
	HasPanID            bool
	PanID               uint16
	HasPskc             bool
	Pskc                [16]byte
	HasSecurityPolicy   bool
	SecurityPolicy      SecurityPolicy

	HasCommissionerSessionID bool
	CommissionerSessionID    uint16
}
