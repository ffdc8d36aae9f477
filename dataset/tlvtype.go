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

import "github.com/facebook/meshcop/tlv"

// Known MeshCoP Operational Dataset TLV types, per the Thread 1.x
// MeshCoP TLV tag assignments.
const (
	TypeChannel               tlv.Type = 0
	TypePanID                 tlv.Type = 1
	TypeExtendedPanID         tlv.Type = 2
	TypeNetworkName           tlv.Type = 3
	TypePskc                  tlv.Type = 4
	TypeNetworkKey            tlv.Type = 5
	TypeNetworkKeySeqCounter  tlv.Type = 6
	TypeMeshLocalPrefix       tlv.Type = 7
	TypeSteeringData          tlv.Type = 8
	TypeBorderAgentLocator    tlv.Type = 9
	TypeCommissionerID        tlv.Type = 10
	TypeCommissionerSessionID tlv.Type = 11
	TypeSecurityPolicy        tlv.Type = 12
	TypeGet                   tlv.Type = 13
	TypeActiveTimestamp       tlv.Type = 14
	TypeState                 tlv.Type = 16
	TypePendingTimestamp      tlv.Type = 51
	TypeDelayTimer            tlv.Type = 52
	TypeChannelMask           tlv.Type = 53
	TypeWakeupChannel         tlv.Type = 74
)

// State TLV values (response to MGMT_*_SET/REPLACE).
const (
	StateAccept  = 1
	StateReject  = 0xFF
	StatePending = 2
)

// knownFixedLength gives, for every known TLV type with a fixed-size
// value, the minimum encoded value length isValidTlv requires, per
// spec.md §3.2; a longer value passes this check. ChannelMask,
// SecurityPolicy, and NetworkName carry variable-but-bounded lengths and
// are validated separately in validate.go, as are the Channel and
// WakeupChannel ranges.
var knownFixedLength = map[tlv.Type]int{
	TypePanID:                 2,
	TypeExtendedPanID:         8,
	TypePskc:                  16,
	TypeNetworkKey:            16,
	TypeNetworkKeySeqCounter:  4,
	TypeMeshLocalPrefix:       8,
	TypeBorderAgentLocator:    2,
	TypeCommissionerSessionID: 2,
	TypeActiveTimestamp:       8,
	TypePendingTimestamp:      8,
	TypeDelayTimer:            4,
	TypeChannel:               3,
	TypeWakeupChannel:         3,
}

// activeRequiredTlvs are the ten TLVs an Active Dataset must contain to
// be considered complete (spec.md §4.2 contains_all_required_for).
var activeRequiredTlvs = []tlv.Type{
	TypeActiveTimestamp,
	TypeChannel,
	TypeChannelMask,
	TypeExtendedPanID,
	TypeMeshLocalPrefix,
	TypeNetworkKey,
	TypeNetworkName,
	TypePanID,
	TypePskc,
	TypeSecurityPolicy,
}

// pendingRequiredTlvs additionally requires PendingTimestamp and DelayTimer.
var pendingRequiredTlvs = append(append([]tlv.Type{}, activeRequiredTlvs...), TypePendingTimestamp, TypeDelayTimer)
