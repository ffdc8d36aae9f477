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

// Package platform declares the external collaborators the dataset
// manager and updater depend on but never implement themselves: the
// radio/MAC layer, MLE role state, settings storage, secure key
// storage, and randomness. Every collaborator here is explicitly out
// of scope per spec.md §1 -- they are interfaces injected into the
// manager package, not singletons it reaches for, so the package never
// needs an OpenThread-style InstanceLocator back-reference.
package platform

import "github.com/facebook/meshcop/dataset"

// Role is a node's current MLE role, as far as the dataset subsystem
// needs to know it.
type Role int

const (
	RoleDisabled Role = iota
	RoleDetached
	RoleChild
	RoleRouter
	RoleLeader
)

// Mle reports the node's current role in the mesh.
type Mle interface {
	Role() Role
}

// Radio applies dataset-derived parameters (channel, PAN ID, network
// key, ...) to the running radio/MAC layer. ApplyConfiguration calls
// this once the Active Dataset changes.
type Radio interface {
	// Apply pushes the given Active Dataset's parameters to the radio.
	// SupportsWakeup reports whether the radio can act on a
	// WakeupChannel TLV; ApplyConfiguration only forwards that TLV
	// when this is true (spec.md §9 Open Question 1).
	Apply(info dataset.Info) error
	SupportedChannelMask() uint32
	// PreferredChannelMask reports the subset of SupportedChannelMask
	// the radio currently favors (e.g. for lower interference); zero
	// means no preference, and callers fall back to the full supported
	// mask (spec.md §4.5 create_new_network).
	PreferredChannelMask() uint32
	SupportsWakeup() bool
}

// SettingsKey names a settings-store entry.
type SettingsKey string

const (
	SettingsActiveDataset  SettingsKey = "DatasetActive"
	SettingsPendingDataset SettingsKey = "DatasetPending"
)

// Settings is a minimal key/value persistence port: exactly the
// surface spec.md §6.3 names, nothing more.
type Settings interface {
	Read(key SettingsKey) ([]byte, bool)
	Save(key SettingsKey, value []byte) error
	Delete(key SettingsKey)
}

// SecureKeyRef identifies a key held in a secure key store rather than
// in plaintext settings.
type SecureKeyRef string

const (
	SecureKeyActiveNetworkKey  SecureKeyRef = "active/network-key"
	SecureKeyActivePskc        SecureKeyRef = "active/pskc"
	SecureKeyPendingNetworkKey SecureKeyRef = "pending/network-key"
	SecureKeyPendingPskc       SecureKeyRef = "pending/pskc"
)

// SecureStore is the secure key storage port (spec.md §4.3 migration
// logic). Implementations report Enabled() == false when no secure
// store is available, which the dataset manager treats as "operate on
// plaintext settings values instead".
type SecureStore interface {
	// Enabled reports whether a secure store is available at all.
	Enabled() bool
	Import(ref SecureKeyRef, value []byte) error
	Export(ref SecureKeyRef) ([]byte, bool)
	Destroy(ref SecureKeyRef)
}

// Clock supplies the local monotonic time used to stamp Dataset update
// times and age the DelayTimer TLV, per spec.md §3.4/§4.3.
type Clock interface {
	NowMilli() int64
}

// RNG supplies randomness for Timestamp.AdvanceRandomTicks.
type RNG interface {
	Uint32() uint32
}

// EventKind distinguishes the two dataset-changed notifications the
// Notifier delivers.
type EventKind int

const (
	EventActiveDatasetChanged EventKind = iota
	EventPendingDatasetChanged
	// EventCommissionerNotify fires when the leader accepts a
	// MGMT_SET/REPLACE that did not originate from the commissioner
	// itself, so the commissioner's session can be told the dataset
	// changed underneath it (spec.md §4.4.3 step 8). Actual ALOC
	// addressing and message delivery are out of scope; this is the
	// hook a transport layer would use to originate that notification.
	EventCommissionerNotify
)

// Notifier delivers dataset-changed events to subscribers (the
// Updater's HandleNotifierEvents). DatasetManager calls Emit whenever
// it locally saves a new Active or Pending Dataset.
type Notifier interface {
	Emit(kind EventKind)
	Subscribe(fn func(kind EventKind))
}
