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

// Package dataset implements the MeshCoP Operational Dataset container:
// a fixed-capacity buffer of TLV records plus the structured Info view
// that application code actually reads and writes.
package dataset

import (
	"fmt"

	"github.com/cespare/xxhash/v2"
	"github.com/facebook/meshcop/tlv"
)

// MaxLength is the largest encoded size of a Dataset: 254 bytes of
// concatenated non-extended TLVs.
const MaxLength = 254

// Kind distinguishes an Active Dataset from a Pending Dataset. Several
// operations (required-TLV lists, which Timestamp TLV applies) depend
// on which kind a Dataset is being treated as.
type Kind int

const (
	Active Kind = iota
	Pending
)

func (k Kind) String() string {
	if k == Active {
		return "Active"
	}
	return "Pending"
}

func timestampTlvFor(k Kind) tlv.Type {
	if k == Active {
		return TypeActiveTimestamp
	}
	return TypePendingTimestamp
}

// Dataset is a fixed-capacity, in-memory TLV buffer plus a local
// monotonic update time used only to age the DelayTimer TLV on load.
// The zero value is an empty, ready-to-use Dataset.
type Dataset struct {
	buf        [MaxLength]byte
	length     int
	updateTime int64 // unix milliseconds, local monotonic clock
}

// Length returns the number of encoded bytes currently in the Dataset.
func (d *Dataset) Length() int { return d.length }

// Bytes returns the encoded TLV bytes. The slice aliases the Dataset's
// internal buffer and is only valid until the next mutating call.
func (d *Dataset) Bytes() []byte { return d.buf[:d.length] }

// UpdateTime returns the local monotonic time (unix milliseconds) the
// Dataset was last modified.
func (d *Dataset) UpdateTime() int64 { return d.updateTime }

// Clear resets the Dataset to empty without touching capacity.
func (d *Dataset) Clear() {
	d.length = 0
	d.updateTime = 0
}

// SetFrom overwrites d with a copy of other's bytes and update time.
func (d *Dataset) SetFrom(other *Dataset) {
	d.length = other.length
	copy(d.buf[:d.length], other.buf[:d.length])
	d.updateTime = other.updateTime
}

// SetFromBytes replaces d's contents with b, stamping the update time
// as now (unix milliseconds). Returns ErrInvalidArgs if b exceeds
// MaxLength.
func (d *Dataset) SetFromBytes(b []byte, now int64) error {
	if len(b) > MaxLength {
		return fmt.Errorf("%w: %d bytes exceeds dataset max length %d", ErrInvalidArgs, len(b), MaxLength)
	}
	d.length = copy(d.buf[:], b)
	d.updateTime = now
	return nil
}

// ValidateTlvs reports whether the Dataset is a well-formed sequence of
// non-extended TLVs with no duplicate types and every known TLV passing
// its per-type validity rule.
func (d *Dataset) ValidateTlvs() error {
	seen := map[tlv.Type]bool{}
	err := tlv.Iterate(d.buf[:d.length], d.length, func(r tlv.Record) error {
		if seen[r.Type] {
			return fmt.Errorf("%w: duplicate TLV of type %d", ErrParse, r.Type)
		}
		seen[r.Type] = true
		if !isValidTlv(r.Type, r.Value) {
			return fmt.Errorf("%w: TLV of type %d failed validity check", ErrParse, r.Type)
		}
		return nil
	})
	if err != nil {
		return err
	}
	return nil
}

// FindTlv returns the value of the first record of type t, if present.
func (d *Dataset) FindTlv(t tlv.Type) ([]byte, bool) {
	return tlv.Find(d.buf[:d.length], d.length, t)
}

// ContainsTlv reports whether the Dataset has a record of type t.
func (d *Dataset) ContainsTlv(t tlv.Type) bool {
	return tlv.Contains(d.buf[:d.length], d.length, t)
}

// ContainsAllTlvs reports whether the Dataset contains a record for
// every type in types.
func (d *Dataset) ContainsAllTlvs(types []tlv.Type) bool {
	for _, t := range types {
		if !d.ContainsTlv(t) {
			return false
		}
	}
	return true
}

// ContainsAllRequiredFor reports whether the Dataset has every TLV
// required to be considered a complete Dataset of the given kind.
func (d *Dataset) ContainsAllRequiredFor(k Kind) bool {
	if k == Active {
		return d.ContainsAllTlvs(activeRequiredTlvs)
	}
	return d.ContainsAllTlvs(pendingRequiredTlvs)
}

// WriteTlv writes (replacing any existing record of the same type) a
// TLV of type t with the given value, stamping the update time as now.
func (d *Dataset) WriteTlv(t tlv.Type, value []byte, now int64) error {
	newLength, err := tlv.ReplaceOrAppend(d.buf[:], d.length, MaxLength, t, value)
	if err != nil {
		return fmt.Errorf("writing TLV %d: %w", t, err)
	}
	d.length = newLength
	d.updateTime = now
	return nil
}

// RemoveTlv deletes any record of type t.
func (d *Dataset) RemoveTlv(t tlv.Type) {
	d.length, _ = tlv.Remove(d.buf[:], d.length, t)
}

// AppendTlvsFrom appends the raw encoded bytes of another well-formed
// TLV sequence to the end of d, without deduplicating against existing
// records. Used when assembling a Dataset from a wire message whose
// TLVs are already known not to collide.
func (d *Dataset) AppendTlvsFrom(b []byte) error {
	if d.length+len(b) > MaxLength {
		return ErrNoBufs
	}
	d.length += copy(d.buf[d.length:], b)
	return nil
}

// WriteTlvsFrom copies every TLV from other into d, replacing any
// existing record of the same type, preserving other's TLV order.
func (d *Dataset) WriteTlvsFrom(other *Dataset) error {
	if err := other.ValidateTlvs(); err != nil {
		return err
	}
	var writeErr error
	_ = tlv.Iterate(other.buf[:other.length], other.length, func(r tlv.Record) error {
		if err := d.WriteTlv(r.Type, r.Value, other.updateTime); err != nil {
			writeErr = err
			return err
		}
		return nil
	})
	return writeErr
}

// ReadTimestamp returns the Active or Pending Timestamp TLV value.
func (d *Dataset) ReadTimestamp(k Kind) (Timestamp, error) {
	v, ok := d.FindTlv(timestampTlvFor(k))
	if !ok {
		return Timestamp{}, ErrNotFound
	}
	return DecodeTimestamp(v)
}

// WriteTimestamp writes the Active or Pending Timestamp TLV.
func (d *Dataset) WriteTimestamp(k Kind, ts Timestamp, now int64) error {
	b := make([]byte, 8)
	ts.Encode(b)
	return d.WriteTlv(timestampTlvFor(k), b, now)
}

// RemoveTimestamp deletes the Active or Pending Timestamp TLV.
func (d *Dataset) RemoveTimestamp(k Kind) {
	d.RemoveTlv(timestampTlvFor(k))
}

// IsSubsetOf reports whether every TLV in d, except ActiveTimestamp,
// PendingTimestamp, and DelayTimer, appears bytewise-identically
// (including its header) in other. Comparison is exact-byte, not
// semantic: callers should compare canonically re-encoded data.
func (d *Dataset) IsSubsetOf(other *Dataset) bool {
	isSubset := true
	_ = tlv.Iterate(d.buf[:d.length], d.length, func(r tlv.Record) error {
		if r.Type == TypeActiveTimestamp || r.Type == TypePendingTimestamp || r.Type == TypeDelayTimer {
			return nil
		}
		otherValue, ok := other.FindTlv(r.Type)
		if !ok || !bytesEqual(r.Value, otherValue) {
			isSubset = false
			return fmt.Errorf("stop")
		}
		return nil
	})
	return isSubset
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Fingerprint returns a content hash of the Dataset's encoded bytes.
// No protocol decision in this module uses it, and neither the daemon
// nor the CLI calls it.
func (d *Dataset) Fingerprint() uint64 {
	return xxhash.Sum64(d.buf[:d.length])
}
