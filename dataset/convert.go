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

import (
	"encoding/binary"

	"github.com/facebook/meshcop/tlv"
)

// ToInfo converts the Dataset to its structured Info view. The
// conversion is total: every known TLV type has a corresponding Info
// field, and unknown/unrecognized TLVs are silently skipped.
func (d *Dataset) ToInfo() Info {
	var info Info
	_ = tlv.Iterate(d.buf[:d.length], d.length, func(r tlv.Record) error {
		switch r.Type {
		case TypeActiveTimestamp:
			if ts, err := DecodeTimestamp(r.Value); err == nil {
				info.HasActiveTimestamp, info.ActiveTimestamp = true, ts
			}
		case TypePendingTimestamp:
			if ts, err := DecodeTimestamp(r.Value); err == nil {
				info.HasPendingTimestamp, info.PendingTimestamp = true, ts
			}
		case TypeDelayTimer:
			if len(r.Value) >= 4 {
				info.HasDelay, info.Delay = true, binary.BigEndian.Uint32(r.Value)
			}
		case TypeChannel:
			if v, ok := decodeChannelValue(r.Value); ok {
				info.HasChannel, info.Channel = true, v.Channel
			}
		case TypeWakeupChannel:
			if v, ok := decodeChannelValue(r.Value); ok {
				info.HasWakeupChannel, info.WakeupChannel = true, v.Channel
			}
		case TypeChannelMask:
			if mask, ok := firstChannelMaskPage0(r.Value); ok {
				info.HasChannelMask, info.ChannelMask = true, mask
			}
		case TypeExtendedPanID:
			if len(r.Value) >= 8 {
				info.HasExtendedPanID = true
				copy(info.ExtendedPanID[:], r.Value)
			}
		case TypeMeshLocalPrefix:
			if len(r.Value) >= 8 {
				info.HasMeshLocalPrefix = true
				copy(info.MeshLocalPrefix[:], r.Value)
			}
		case TypeNetworkKey:
			if len(r.Value) >= 16 {
				info.HasNetworkKey = true
				copy(info.NetworkKey[:], r.Value)
			}
		case TypeNetworkName:
			info.HasNetworkName, info.NetworkName = true, string(r.Value)
		case TypePanID:
			if len(r.Value) >= 2 {
				info.HasPanID, info.PanID = true, binary.BigEndian.Uint16(r.Value)
			}
		case TypePskc:
			if len(r.Value) >= 16 {
				info.HasPskc = true
				copy(info.Pskc[:], r.Value)
			}
		case TypeSecurityPolicy:
			if len(r.Value) >= 3 {
				info.HasSecurityPolicy = true
				info.SecurityPolicy = SecurityPolicy{
					RotationTime: binary.BigEndian.Uint16(r.Value),
					Flags:        append([]byte{}, r.Value[2:]...),
				}
			}
		case TypeCommissionerSessionID:
			if len(r.Value) >= 2 {
				info.HasCommissionerSessionID, info.CommissionerSessionID = true, binary.BigEndian.Uint16(r.Value)
			}
		}
		return nil
	})
	return info
}

// SetFromInfo resets d and writes every present field of info as a
// TLV, in the canonical order spec.md §4.2 requires: ActiveTimestamp,
// PendingTimestamp, DelayTimer, Channel, WakeupChannel, ChannelMask,
// ExtendedPanId, MeshLocalPrefix, NetworkKey, NetworkName, PanId, Pskc,
// SecurityPolicy.
func (d *Dataset) SetFromInfo(info Info, now int64) error {
	d.Clear()
	return d.WriteTlvsFromInfo(info, now)
}

// WriteTlvsFromInfo writes every present field of info into d (without
// clearing existing content first), in the canonical order.
func (d *Dataset) WriteTlvsFromInfo(info Info, now int64) error {
	if info.HasActiveTimestamp {
		b := make([]byte, 8)
		info.ActiveTimestamp.Encode(b)
		if err := d.WriteTlv(TypeActiveTimestamp, b, now); err != nil {
			return err
		}
	}
	if info.HasPendingTimestamp {
		b := make([]byte, 8)
		info.PendingTimestamp.Encode(b)
		if err := d.WriteTlv(TypePendingTimestamp, b, now); err != nil {
			return err
		}
	}
	if info.HasDelay {
		b := make([]byte, 4)
		binary.BigEndian.PutUint32(b, info.Delay)
		if err := d.WriteTlv(TypeDelayTimer, b, now); err != nil {
			return err
		}
	}
	if info.HasChannel {
		if err := d.WriteTlv(TypeChannel, encodeChannelValue(channelTlvValue{Channel: info.Channel}), now); err != nil {
			return err
		}
	}
	if info.HasWakeupChannel {
		if err := d.WriteTlv(TypeWakeupChannel, encodeChannelValue(channelTlvValue{Channel: info.WakeupChannel}), now); err != nil {
			return err
		}
	}
	if info.HasChannelMask {
		if err := d.WriteTlv(TypeChannelMask, encodeChannelMaskPage0(info.ChannelMask), now); err != nil {
			return err
		}
	}
	if info.HasExtendedPanID {
		if err := d.WriteTlv(TypeExtendedPanID, info.ExtendedPanID[:], now); err != nil {
			return err
		}
	}
	if info.HasMeshLocalPrefix {
		if err := d.WriteTlv(TypeMeshLocalPrefix, info.MeshLocalPrefix[:], now); err != nil {
			return err
		}
	}
	if info.HasNetworkKey {
		if err := d.WriteTlv(TypeNetworkKey, info.NetworkKey[:], now); err != nil {
			return err
		}
	}
	if info.HasNetworkName {
		name := info.NetworkName
		if len(name) > 16 {
			name = name[:16]
		}
		if err := d.WriteTlv(TypeNetworkName, []byte(name), now); err != nil {
			return err
		}
	}
	if info.HasPanID {
		b := make([]byte, 2)
		binary.BigEndian.PutUint16(b, info.PanID)
		if err := d.WriteTlv(TypePanID, b, now); err != nil {
			return err
		}
	}
	if info.HasPskc {
		if err := d.WriteTlv(TypePskc, info.Pskc[:], now); err != nil {
			return err
		}
	}
	if info.HasSecurityPolicy {
		b := make([]byte, 2+len(info.SecurityPolicy.Flags))
		binary.BigEndian.PutUint16(b, info.SecurityPolicy.RotationTime)
		copy(b[2:], info.SecurityPolicy.Flags)
		if err := d.WriteTlv(TypeSecurityPolicy, b, now); err != nil {
			return err
		}
	}
	if info.HasCommissionerSessionID {
		b := make([]byte, 2)
		binary.BigEndian.PutUint16(b, info.CommissionerSessionID)
		if err := d.WriteTlv(TypeCommissionerSessionID, b, now); err != nil {
			return err
		}
	}
	return nil
}
