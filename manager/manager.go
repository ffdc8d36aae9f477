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

// Package manager implements the Operational Dataset state machine:
// the shared base behavior (C4), the Active Dataset manager (C5), and
// the Pending Dataset manager (C6), grounded on
// src/core/meshcop/dataset_manager.cpp and dataset_manager_ftd.cpp from
// the original OpenThread implementation.
package manager

import (
	"context"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/facebook/meshcop/dataset"
	"github.com/facebook/meshcop/platform"
	"github.com/facebook/meshcop/tlv"
	"github.com/facebook/meshcop/transport"
)

// kSendSetDelay is the fixed backoff before retrying a MGMT_SET to the
// leader after a stale local save, per spec.md §4.4.
const kSendSetDelay = 5000 * time.Millisecond

// Deps bundles every collaborator a DatasetManager needs. The same
// Deps struct is shared by the Active and Pending managers; each keeps
// its own Dataset state but they operate against one set of platform
// ports, exactly as a single Thread device has one radio, one settings
// store, and one secure key store regardless of how many dataset kinds
// it tracks.
type Deps struct {
	Settings    platform.Settings
	SecureStore platform.SecureStore
	Clock       platform.Clock
	RNG         platform.RNG
	Radio       platform.Radio
	Mle         platform.Mle
	Notifier    platform.Notifier
	Transport   transport.Client

	// ThreadVersion is this device's Thread protocol version string
	// (e.g. "1.3.0"), used only to pick the SecurityPolicy flags width
	// when synthesizing a default Active Dataset (spec.md §3.2's
	// per-version reserved-bit rule; see dataset.DefaultSecurityPolicyFlags).
	// An empty value is treated as pre-1.2, the conservative one-byte form.
	ThreadVersion string
}

// Base is the shared DatasetManager state machine (C4), embedded by
// both ActiveDatasetManager and PendingDatasetManager. It is not meant
// to be used directly by callers.
type Base struct {
	kind        dataset.Kind
	settingsKey platform.SettingsKey
	deps        Deps

	mu               sync.Mutex
	localTimestamp   dataset.Timestamp
	networkTimestamp dataset.Timestamp
	localSaved       bool
	mgmtPending      bool
	retryTimer       *time.Timer
}

func newBase(kind dataset.Kind, key platform.SettingsKey, deps Deps) Base {
	return Base{kind: kind, settingsKey: key, deps: deps}
}

// Kind reports whether this is the Active or Pending manager instance.
func (b *Base) Kind() dataset.Kind { return b.kind }

// Timestamp returns the last known local timestamp (Active or Pending,
// matching Kind), or the zero Timestamp if none has ever been saved.
func (b *Base) Timestamp() dataset.Timestamp {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.localTimestamp
}

// IsLocalSaved reports whether a local save has ever succeeded, i.e.
// whether Read would find anything.
func (b *Base) IsLocalSaved() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.localSaved
}

// secureRefs returns the secure-store key references relevant to
// this manager's kind, for NetworkKey and Pskc respectively.
func (b *Base) secureRefs() (networkKey, pskc platform.SecureKeyRef) {
	if b.kind == dataset.Active {
		return platform.SecureKeyActiveNetworkKey, platform.SecureKeyActivePskc
	}
	return platform.SecureKeyPendingNetworkKey, platform.SecureKeyPendingPskc
}

// Restore loads persisted state from settings at startup, priming
// localTimestamp/localSaved. It never fails: a missing or corrupt
// settings entry just leaves the manager in its empty initial state,
// matching dataset_manager.cpp's Restore().
func (b *Base) Restore() {
	var d dataset.Dataset
	if err := b.readRaw(&d); err != nil {
		log.Debugf("meshcop: %s manager restore found no usable dataset: %v", b.kind, err)
		return
	}
	b.mu.Lock()
	b.localSaved = true
	b.localTimestamp, _ = d.ReadTimestamp(b.timestampKindForReading())
	b.mu.Unlock()
	log.Infof("meshcop: %s manager restored dataset (timestamp=%+v)", b.kind, b.localTimestamp)
}

func (b *Base) timestampKindForReading() dataset.Kind { return b.kind }

// readRaw loads the raw Dataset from settings, applying the Active
// "strip PendingTimestamp/DelayTimer" rule, the Pending "age the
// DelayTimer" rule, and the secure-store key re-embedding/migration
// logic, per spec.md §4.3.
func (b *Base) readRaw(out *dataset.Dataset) error {
	raw, ok := b.deps.Settings.Read(b.settingsKey)
	if !ok {
		return dataset.ErrNotFound
	}
	if err := out.SetFromBytes(raw, b.deps.Clock.NowMilli()); err != nil {
		return err
	}

	if b.kind == dataset.Active {
		out.RemoveTimestamp(dataset.Pending)
		out.RemoveTlv(dataset.TypeDelayTimer)
	} else if v, ok := out.FindTlv(dataset.TypeDelayTimer); ok && len(v) >= 4 {
		elapsed := b.deps.Clock.NowMilli() - out.UpdateTime()
		remaining := int64(beUint32(v)) - elapsed
		if remaining < 0 {
			remaining = 0
		}
		_ = out.WriteTlv(dataset.TypeDelayTimer, beBytes32(uint32(remaining)), out.UpdateTime())
	}

	b.migrateSecureKeys(out)
	return nil
}

// migrateSecureKeys re-embeds NetworkKey/Pskc values exported from the
// secure store (in place when the stored TLV has the same length, so
// the TLV order is kept), or, on first boot after secure storage was
// enabled, imports the in-buffer plaintext values into the secure
// store; the next localSave zeroes them in the settings copy.
func (b *Base) migrateSecureKeys(d *dataset.Dataset) {
	if !b.deps.SecureStore.Enabled() {
		return
	}
	networkKeyRef, pskcRef := b.secureRefs()

	if v, ok := b.deps.SecureStore.Export(networkKeyRef); ok {
		if cur, found := d.FindTlv(dataset.TypeNetworkKey); found && len(cur) == len(v) {
			copy(cur, v)
		} else {
			_ = d.WriteTlv(dataset.TypeNetworkKey, v, d.UpdateTime())
		}
	} else if v, ok := d.FindTlv(dataset.TypeNetworkKey); ok {
		if err := b.deps.SecureStore.Import(networkKeyRef, v); err != nil {
			log.Warningf("meshcop: %s manager failed migrating network key to secure storage: %v", b.kind, err)
		}
	}

	if v, ok := b.deps.SecureStore.Export(pskcRef); ok {
		if cur, found := d.FindTlv(dataset.TypePskc); found && len(cur) == len(v) {
			copy(cur, v)
		} else {
			_ = d.WriteTlv(dataset.TypePskc, v, d.UpdateTime())
		}
	} else if v, ok := d.FindTlv(dataset.TypePskc); ok {
		if err := b.deps.SecureStore.Import(pskcRef, v); err != nil {
			log.Warningf("meshcop: %s manager failed migrating pskc to secure storage: %v", b.kind, err)
		}
	}
}

// Read loads the current persisted Dataset into out. Returns
// dataset.ErrNotFound if nothing has been saved.
func (b *Base) Read(out *dataset.Dataset) error {
	return b.readRaw(out)
}

// localSave writes d to settings (when secure storage is enabled,
// NetworkKey/Pskc are imported into the secure store and their values
// zeroed in the persisted copy; d itself is left untouched), updates
// the cached local timestamp, and emits a dataset-changed
// notification. This is the single choke point every write path
// (SaveLocal, Save, promotion) funnels through, mirroring
// dataset_manager.cpp's LocalSave().
func (b *Base) localSave(d *dataset.Dataset) error {
	toStore := *d
	networkKeyRef, pskcRef := b.secureRefs()
	if b.deps.SecureStore.Enabled() {
		if v, ok := toStore.FindTlv(dataset.TypeNetworkKey); ok {
			if err := b.deps.SecureStore.Import(networkKeyRef, v); err != nil {
				return fmt.Errorf("saving network key to secure storage: %w", err)
			}
			clear(v)
		}
		if v, ok := toStore.FindTlv(dataset.TypePskc); ok {
			if err := b.deps.SecureStore.Import(pskcRef, v); err != nil {
				return fmt.Errorf("saving pskc to secure storage: %w", err)
			}
			clear(v)
		}
	}

	if err := b.deps.Settings.Save(b.settingsKey, toStore.Bytes()); err != nil {
		return fmt.Errorf("%w: %v", dataset.ErrNoBufs, err)
	}

	ts, _ := toStore.ReadTimestamp(b.kind)
	b.mu.Lock()
	b.localSaved = true
	b.localTimestamp = ts
	b.mu.Unlock()

	b.signalChanged()
	return nil
}

func (b *Base) signalChanged() {
	if b.kind == dataset.Active {
		b.deps.Notifier.Emit(platform.EventActiveDatasetChanged)
	} else {
		b.deps.Notifier.Emit(platform.EventPendingDatasetChanged)
	}
}

// Clear deletes all persisted and cached state: the settings entry,
// any secure-store keys, the cached timestamps, and any pending retry.
// It always signals a change, matching dataset_manager.cpp's Clear().
func (b *Base) Clear() {
	b.stopRetryTimer()
	b.deps.Settings.Delete(b.settingsKey)
	networkKeyRef, pskcRef := b.secureRefs()
	b.deps.SecureStore.Destroy(networkKeyRef)
	b.deps.SecureStore.Destroy(pskcRef)

	b.mu.Lock()
	b.localTimestamp = dataset.Zero
	b.networkTimestamp = dataset.Zero
	b.localSaved = false
	b.mgmtPending = false
	b.mu.Unlock()

	b.signalChanged()
}

func (b *Base) stopRetryTimer() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.retryTimer != nil {
		b.retryTimer.Stop()
		b.retryTimer = nil
	}
	b.mgmtPending = false
}

// scheduleSyncRetry arms (replacing any existing) a one-shot timer
// that invokes sync after kSendSetDelay, matching
// dataset_manager.cpp's HandleTimer/SyncLocalWithLeader retry loop.
func (b *Base) scheduleSyncRetry(sync func(ctx context.Context)) {
	b.mu.Lock()
	if b.retryTimer != nil {
		b.retryTimer.Stop()
	}
	b.mgmtPending = true
	b.retryTimer = time.AfterFunc(kSendSetDelay, func() {
		sync(context.Background())
	})
	b.mu.Unlock()
}

// Save is the leader/arbiter entry point (spec.md §4.4 save). It
// compares d's timestamp against the cached network and local
// timestamps and decides whether to adopt it as the new network state,
// local-save it, or schedule a retry. allowOlderTimestamp bypasses the
// staleness check entirely (used by the Pending->Active promotion
// path).
func (b *Base) Save(ctx context.Context, d *dataset.Dataset, allowOlderTimestamp bool, applyToRadio func(dataset.Info) error) error {
	incoming, err := d.ReadTimestamp(b.kind)
	if err != nil {
		return fmt.Errorf("%w: dataset has no %s timestamp", dataset.ErrInvalidArgs, b.kind)
	}

	b.mu.Lock()
	network := b.networkTimestamp
	local := b.localTimestamp
	b.mu.Unlock()

	switch {
	case allowOlderTimestamp:
		// fall through to unconditional local-save below.
	case incoming.GreaterOrEqual(network) || !network.IsValid():
		b.mu.Lock()
		b.networkTimestamp = incoming
		b.mu.Unlock()
		if applyToRadio != nil {
			if err := applyToRadio(d.ToInfo()); err != nil {
				log.Warningf("meshcop: %s manager failed applying configuration: %v", b.kind, err)
			}
		}
	case incoming.GreaterOrEqual(local):
		// newer than what we have locally saved: fall through to save.
	default:
		log.Infof("meshcop: %s manager deferring stale save, scheduling MGMT_SET retry", b.kind)
		b.scheduleSyncRetry(func(ctx context.Context) {
			_ = b.SyncLocalWithLeader(ctx, nil)
		})
		b.signalChanged()
		return nil
	}

	return b.localSave(d)
}

// SaveLocal is the local/user entry point (spec.md §4.4 save_local). A
// Leader saves directly; any other role must push the change to the
// leader via MGMT_SET and only local-saves once accepted.
func (b *Base) SaveLocal(ctx context.Context, d *dataset.Dataset, uri transport.URI) error {
	if b.deps.Mle.Role() == platform.RoleLeader {
		return b.localSave(d)
	}
	return b.SyncLocalWithLeader(ctx, d)
}

// SyncLocalWithLeader sends the current (or supplied) local dataset to
// the leader via MGMT_SET and, if accepted, local-saves the dataset it
// sent; on a transport error or a rejection it arms a retry after
// kSendSetDelay, as dataset_manager.cpp does.
func (b *Base) SyncLocalWithLeader(ctx context.Context, d *dataset.Dataset) error {
	if b.deps.Transport == nil {
		return fmt.Errorf("%w: no transport configured for MGMT_SET", dataset.ErrInvalidState)
	}

	var toSend dataset.Dataset
	if d != nil {
		toSend = *d
	} else if err := b.Read(&toSend); err != nil {
		return err
	}

	uri := transport.URIActiveSet
	if b.kind == dataset.Pending {
		uri = transport.URIPendingSet
	}

	resp, err := b.deps.Transport.Post(ctx, uri, transport.Request{URI: uri, Payload: toSend.Bytes()})
	if err != nil {
		b.scheduleSyncRetry(func(ctx context.Context) { _ = b.SyncLocalWithLeader(ctx, nil) })
		return err
	}

	b.stopRetryTimer()

	switch resp.State {
	case dataset.StateAccept:
		return b.localSave(&toSend)
	case dataset.StatePending:
		log.Infof("meshcop: %s manager MGMT_SET deferred as pending by leader", b.kind)
		return nil
	default:
		b.scheduleSyncRetry(func(ctx context.Context) { _ = b.SyncLocalWithLeader(ctx, nil) })
		return dataset.ErrRejected
	}
}

// CheckMode selects whether HandleGet enforces the current
// SecurityPolicy's NetworkKey-retrieval restriction, mirroring
// dataset_manager.hpp's SecurityPolicyCheckMode.
type CheckMode int

const (
	// CheckSecurityPolicyFlags omits the NetworkKey TLV from the
	// response when the dataset's SecurityPolicy disallows obtaining
	// it (spec.md §4.4.5 step 4). This is what both MGMT_ACTIVE_GET
	// and MGMT_PENDING_GET use in the original implementation.
	CheckSecurityPolicyFlags CheckMode = iota
	// IgnoreSecurityPolicyFlags always includes NetworkKey if present
	// and requested.
	IgnoreSecurityPolicyFlags
)

// HandleGet answers a MGMT_*_GET request: if the Get-TLV in req
// requests specific types, only those (intersected with what's
// present) are returned; otherwise every TLV is returned, per
// spec.md §4.4 handle_get / process_get_request. When mode is
// CheckSecurityPolicyFlags, the NetworkKey TLV is additionally omitted
// if the dataset's own SecurityPolicy disallows obtaining it.
func (b *Base) HandleGet(req transport.Request, mode CheckMode) transport.Response {
	var d dataset.Dataset
	if err := b.Read(&d); err != nil {
		return transport.Response{Payload: nil}
	}

	suppressNetworkKey := false
	if mode == CheckSecurityPolicyFlags {
		if v, ok := d.FindTlv(dataset.TypeSecurityPolicy); ok && len(v) >= 3 {
			suppressNetworkKey = !(dataset.SecurityPolicy{Flags: v[2:]}).ObtainNetworkKeyEnabled()
		}
	}

	requested, hasFilter := parseGetTlv(req.Payload)
	if !hasFilter {
		if !suppressNetworkKey {
			return transport.Response{Payload: append([]byte{}, d.Bytes()...)}
		}
		d.RemoveTlv(dataset.TypeNetworkKey)
		return transport.Response{Payload: append([]byte{}, d.Bytes()...)}
	}

	if b.kind == dataset.Pending && len(requested) > 0 {
		hasDelay := false
		for _, t := range requested {
			if t == dataset.TypeDelayTimer {
				hasDelay = true
			}
		}
		if !hasDelay {
			requested = append(requested, dataset.TypeDelayTimer)
		}
	}

	var out dataset.Dataset
	for _, t := range requested {
		if t == dataset.TypeNetworkKey && suppressNetworkKey {
			continue
		}
		if v, ok := d.FindTlv(t); ok {
			_ = out.WriteTlv(t, v, 0)
		}
	}
	return transport.Response{Payload: append([]byte{}, out.Bytes()...)}
}

// parseGetTlv interprets a MGMT_*_GET request payload as the raw list
// of requested TLV types (the Get-TLV's value, already unwrapped by
// the transport layer). An empty payload means "no filter: return
// everything".
func parseGetTlv(payload []byte) (types []tlv.Type, hasFilter bool) {
	if len(payload) == 0 {
		return nil, false
	}
	out := make([]tlv.Type, len(payload))
	for i, b := range payload {
		out[i] = tlv.Type(b)
	}
	return out, true
}

func beUint32(b []byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}

func beBytes32(v uint32) []byte {
	return []byte{byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v)}
}
