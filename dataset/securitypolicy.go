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
	"fmt"

	"github.com/hashicorp/go-version"
)

// twoByteFlagsSince is the Thread protocol version that introduced the
// second SecurityPolicy flags byte (the CCM/AE/NMP bits); devices
// reporting an earlier version only ever carry the original one-byte
// flags field (spec.md §3.2).
var twoByteFlagsSince = version.Must(version.NewVersion("1.2.0"))

// DefaultSecurityPolicyFlags returns the flags byte string a freshly
// generated Dataset should carry for the given Thread protocol version
// string (e.g. "1.1.0", "1.3.0"): one reserved-bits-set byte for
// versions before 1.2, two for 1.2 and later. An unparseable
// threadVersion is treated as pre-1.2, the conservative (shorter) form.
func DefaultSecurityPolicyFlags(threadVersion string) []byte {
	v, err := version.NewVersion(threadVersion)
	if err != nil || v.LessThan(twoByteFlagsSince) {
		return []byte{0xff}
	}
	return []byte{0xff, 0xff}
}

// obtainNetworkKeyBit is the O bit (MSB) of the first SecurityPolicy
// flags byte: when clear, MGMT_*_GET responses must omit the
// NetworkKey TLV (spec.md §4.4.5 step 4 / dataset_manager.cpp's
// mObtainNetworkKeyEnabled).
const obtainNetworkKeyBit = 0x80

// ObtainNetworkKeyEnabled reports whether this SecurityPolicy permits
// the NetworkKey TLV to be handed out in a dataset Get response. Flags
// with no bytes at all (should not occur on a validated TLV, but is
// not itself a parse error here) are treated as permissive, matching
// DefaultSecurityPolicyFlags's all-bits-set default.
func (sp SecurityPolicy) ObtainNetworkKeyEnabled() bool {
	if len(sp.Flags) == 0 {
		return true
	}
	return sp.Flags[0]&obtainNetworkKeyBit != 0
}

// ValidateSecurityPolicyFlagsLen checks a decoded SecurityPolicy TLV's
// flags length against what the given Thread protocol version allows:
// exactly 1 byte before 1.2.0, 1 or 2 bytes from 1.2.0 onward (a 1.2+
// device must still accept a 1.1 peer's shorter TLV per spec.md §3.2's
// "reserved-bit rules per Thread version").
func ValidateSecurityPolicyFlagsLen(threadVersion string, flagsLen int) error {
	v, err := version.NewVersion(threadVersion)
	if err != nil {
		return fmt.Errorf("parsing thread version %q: %w", threadVersion, err)
	}
	if flagsLen < 1 || flagsLen > 2 {
		return ErrParse
	}
	if flagsLen == 2 && v.LessThan(twoByteFlagsSince) {
		return ErrParse
	}
	return nil
}
