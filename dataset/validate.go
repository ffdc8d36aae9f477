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

// channelTlvValue is the 3-byte Page+Channel payload shared by the
// Channel and WakeupChannel TLVs.
type channelTlvValue struct {
	Page    uint8
	Channel uint16
}

func decodeChannelValue(b []byte) (channelTlvValue, bool) {
	if len(b) < 3 {
		return channelTlvValue{}, false
	}
	return channelTlvValue{Page: b[0], Channel: binary.BigEndian.Uint16(b[1:3])}, true
}

func encodeChannelValue(v channelTlvValue) []byte {
	b := make([]byte, 3)
	b[0] = v.Page
	binary.BigEndian.PutUint16(b[1:], v.Channel)
	return b
}

// isValid reports whether a Page/Channel pair is within the
// 2.4GHz (page 0) channel range Thread defines: channels 11-26.
func (v channelTlvValue) isValid() bool {
	if v.Page != 0 {
		// Other pages (e.g. sub-GHz) are accepted without a range
		// check: this module does not know their bounds.
		return true
	}
	return v.Channel >= 11 && v.Channel <= 26
}

// isValidTlv reports whether a record's value passes the per-type
// validity rule from spec.md §3.2. Unknown types are always valid:
// Dataset storage is forward-compatible with TLVs it doesn't interpret.
func isValidTlv(t tlv.Type, value []byte) bool {
	if minLen, ok := knownFixedLength[t]; ok {
		if len(value) < minLen {
			return false
		}
	}

	switch t {
	case TypeChannel, TypeWakeupChannel:
		v, ok := decodeChannelValue(value)
		return ok && v.isValid()
	case TypeNetworkName:
		return len(value) >= 1 && len(value) <= 16
	case TypeSecurityPolicy:
		return len(value) >= 3 && len(value) <= 4
	case TypeChannelMask:
		return isValidChannelMask(value)
	default:
		return true
	}
}

// isValidChannelMask validates a ChannelMask TLV's value as a
// concatenation of (Page uint8, MaskLength uint8, Mask []byte) entries
// that exactly fill the value.
func isValidChannelMask(value []byte) bool {
	pos := 0
	for pos < len(value) {
		if pos+2 > len(value) {
			return false
		}
		maskLen := int(value[pos+1])
		if pos+2+maskLen > len(value) {
			return false
		}
		pos += 2 + maskLen
	}
	return len(value) > 0
}

// firstChannelMaskPage0 extracts the 32-bit page-0 channel mask from a
// ChannelMask TLV's value, if present.
func firstChannelMaskPage0(value []byte) (uint32, bool) {
	pos := 0
	for pos+2 <= len(value) {
		page := value[pos]
		maskLen := int(value[pos+1])
		if pos+2+maskLen > len(value) {
			return 0, false
		}
		if page == 0 {
			var mask uint32
			for i := 0; i < maskLen && i < 4; i++ {
				mask |= uint32(value[pos+2+i]) << (8 * uint(maskLen-1-i))
			}
			return mask, true
		}
		pos += 2 + maskLen
	}
	return 0, false
}

// encodeChannelMaskPage0 builds a single-page (page 0) ChannelMask TLV
// value from a 32-bit channel bitmask, using a 4-byte mask field.
func encodeChannelMaskPage0(mask uint32) []byte {
	b := make([]byte, 6)
	b[0] = 0
	b[1] = 4
	binary.BigEndian.PutUint32(b[2:], mask)
	return b
}
