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

// Package tlv implements a generic, fixed-capacity Type-Length-Value
// codec for non-extended MeshCoP records: a 1-byte type, a 1-byte
// length, and up to 255 bytes of value, packed back to back inside a
// caller-owned buffer.
package tlv

import (
	"errors"
	"fmt"
)

// HeadSize is the size in bytes of a non-extended TLV header.
const HeadSize = 2

// MaxValueLength is the largest value a non-extended TLV can carry.
const MaxValueLength = 255

// ErrParse is returned when a buffer cannot be interpreted as a
// well-formed sequence of TLVs.
var ErrParse = errors.New("tlv: malformed TLV sequence")

// ErrNoBufs is returned when an operation would grow the encoded
// sequence past the capacity of the destination buffer.
var ErrNoBufs = errors.New("tlv: insufficient buffer capacity")

// Record is a decoded type/value pair. Value aliases the source
// buffer; callers that need to retain it past the buffer's next
// mutation must copy it.
type Record struct {
	Type  Type
	Value []byte
}

// Type is the 1-byte TLV type tag.
type Type uint8

// Find returns the value of the first record of type t within
// buf[:length], scanning left to right. ok is false if no such record
// exists or if the buffer is malformed before reaching one.
func Find(buf []byte, length int, t Type) (value []byte, ok bool) {
	_ = Iterate(buf, length, func(r Record) error {
		if r.Type == t && !ok {
			value = r.Value
			ok = true
		}
		return nil
	})
	return value, ok
}

// Contains reports whether buf[:length] contains a record of type t.
func Contains(buf []byte, length int, t Type) bool {
	_, ok := Find(buf, length, t)
	return ok
}

// Iterate walks every well-formed record in buf[:length] in order,
// calling fn for each. It stops and returns ErrParse at the first
// truncated or malformed header. fn may return an error to stop
// iteration early; that error is returned unwrapped.
func Iterate(buf []byte, length int, fn func(Record) error) error {
	pos := 0
	for pos < length {
		if pos+HeadSize > length {
			return fmt.Errorf("%w: truncated header at offset %d", ErrParse, pos)
		}
		typ := Type(buf[pos])
		l := int(buf[pos+1])
		if pos+HeadSize+l > length {
			return fmt.Errorf("%w: record of type %d at offset %d overruns length %d", ErrParse, typ, pos, length)
		}
		if err := fn(Record{Type: typ, Value: buf[pos+HeadSize : pos+HeadSize+l]}); err != nil {
			return err
		}
		pos += HeadSize + l
	}
	return nil
}

// Validate reports whether buf[:length] is a well-formed, non-extended
// TLV sequence that exactly fills [0, length).
func Validate(buf []byte, length int) error {
	return Iterate(buf, length, func(Record) error { return nil })
}

// Append writes a new record of type t with the given value to the end
// of buf[:length], returning the new length. capacity is the usable
// capacity of buf. Returns ErrNoBufs if the record would not fit, or
// ErrParse if value is too long to encode in a non-extended TLV.
func Append(buf []byte, length, capacity int, t Type, value []byte) (int, error) {
	if len(value) > MaxValueLength {
		return length, fmt.Errorf("%w: value of %d bytes exceeds non-extended TLV limit", ErrParse, len(value))
	}
	need := HeadSize + len(value)
	if length+need > capacity {
		return length, ErrNoBufs
	}
	buf[length] = byte(t)
	buf[length+1] = byte(len(value))
	copy(buf[length+HeadSize:], value)
	return length + need, nil
}

// Remove deletes the first record of type t from buf[:length],
// shifting the remaining bytes left. Returns the new length and
// whether a record was found and removed.
func Remove(buf []byte, length int, t Type) (int, bool) {
	pos := 0
	for pos < length {
		if pos+HeadSize > length {
			break
		}
		typ := Type(buf[pos])
		l := int(buf[pos+1])
		recLen := HeadSize + l
		if pos+recLen > length {
			break
		}
		if typ == t {
			copy(buf[pos:], buf[pos+recLen:length])
			return length - recLen, true
		}
		pos += recLen
	}
	return length, false
}

// recordSize reports the total on-wire size (header + value) of the
// first record of type t in buf[:length], without modifying buf.
func recordSize(buf []byte, length int, t Type) (size int, found bool) {
	pos := 0
	for pos < length {
		if pos+HeadSize > length {
			return 0, false
		}
		typ := Type(buf[pos])
		l := int(buf[pos+1])
		recLen := HeadSize + l
		if pos+recLen > length {
			return 0, false
		}
		if typ == t {
			return recLen, true
		}
		pos += recLen
	}
	return 0, false
}

// ReplaceOrAppend removes any existing record of type t, then appends
// a fresh record of type t with the given value. The resulting size is
// checked against capacity before anything is mutated, so a value that
// would not fit leaves buf[:length] completely unchanged and returns
// ErrNoBufs, rather than discarding the old record and then failing to
// write the new one.
func ReplaceOrAppend(buf []byte, length, capacity int, t Type, value []byte) (int, error) {
	if len(value) > MaxValueLength {
		return length, fmt.Errorf("%w: value of %d bytes exceeds non-extended TLV limit", ErrParse, len(value))
	}
	existing, _ := recordSize(buf, length, t)
	if length-existing+HeadSize+len(value) > capacity {
		return length, ErrNoBufs
	}
	length, _ = Remove(buf, length, t)
	return Append(buf, length, capacity, t, value)
}
