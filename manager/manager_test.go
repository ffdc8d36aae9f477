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

package manager

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/facebook/meshcop/dataset"
	"github.com/facebook/meshcop/platform"
	"github.com/facebook/meshcop/platform/fake"
	"github.com/facebook/meshcop/transport"
)

func newTestDeps() (Deps, *fake.Settings, *fake.SecureStore, *fake.Clock, *fake.Radio, *fake.Mle, *fake.Notifier) {
	settings := fake.NewSettings()
	secure := fake.NewSecureStore()
	clock := fake.NewClock(1_000_000)
	radio := fake.NewRadio()
	mle := fake.NewMle(platform.RoleLeader)
	notifier := fake.NewNotifier()
	deps := Deps{
		Settings:    settings,
		SecureStore: secure,
		Clock:       clock,
		RNG:         fake.NewRNG(42),
		Radio:       radio,
		Mle:         mle,
		Notifier:    notifier,
	}
	return deps, settings, secure, clock, radio, mle, notifier
}

func sampleActiveInfo() dataset.Info {
	return dataset.Info{
		HasActiveTimestamp: true, ActiveTimestamp: dataset.Timestamp{Seconds: 5},
		HasChannel: true, Channel: 15,
		HasChannelMask: true, ChannelMask: 0x07FFF800,
		HasPanID: true, PanID: 0xABCD,
		HasExtendedPanID: true, ExtendedPanID: [8]byte{1, 2, 3, 4, 5, 6, 7, 8},
		HasMeshLocalPrefix: true, MeshLocalPrefix: [8]byte{0xfd, 1, 2, 3, 4, 5, 6, 0},
		HasNetworkKey: true, NetworkKey: [16]byte{1: 1},
		HasNetworkName: true, NetworkName: "TestNet",
		HasPskc: true, Pskc: [16]byte{2: 2},
		HasSecurityPolicy: true, SecurityPolicy: dataset.SecurityPolicy{RotationTime: 672, Flags: []byte{0xff}},
	}
}

func TestRestoreLoadsPersistedDataset(t *testing.T) {
	deps, settings, _, clock, _, _, _ := newTestDeps()
	active := NewActiveDatasetManager(deps, 10_000)

	var d dataset.Dataset
	require.NoError(t, d.SetFromInfo(sampleActiveInfo(), clock.NowMilli()))
	require.NoError(t, settings.Save(platform.SettingsActiveDataset, d.Bytes()))

	active.Restore()
	assert.True(t, active.IsLocalSaved())
	assert.Equal(t, dataset.Timestamp{Seconds: 5}, active.Timestamp())

	var got dataset.Dataset
	require.NoError(t, active.Read(&got))
	assert.True(t, got.ContainsAllRequiredFor(dataset.Active))
}

func TestReadMigratesKeysToSecureStorageOnFirstBoot(t *testing.T) {
	deps, settings, secure, clock, _, _, _ := newTestDeps()
	secure.EnabledFlag = false // secure storage not yet enabled when this Dataset was first written.
	active := NewActiveDatasetManager(deps, 10_000)

	var d dataset.Dataset
	info := sampleActiveInfo()
	require.NoError(t, d.SetFromInfo(info, clock.NowMilli()))
	require.NoError(t, settings.Save(platform.SettingsActiveDataset, d.Bytes()))

	// Secure storage becomes available: the next Read should migrate the
	// plaintext NetworkKey/Pskc out of settings and into the secure store.
	secure.EnabledFlag = true
	var out dataset.Dataset
	require.NoError(t, active.Read(&out))

	v, ok := secure.Export(platform.SecureKeyActiveNetworkKey)
	require.True(t, ok)
	assert.Equal(t, info.NetworkKey[:], v)

	v, ok = secure.Export(platform.SecureKeyActivePskc)
	require.True(t, ok)
	assert.Equal(t, info.Pskc[:], v)
}

func TestMigrateSecureKeysReembedsExportedValues(t *testing.T) {
	deps, settings, secure, clock, _, _, _ := newTestDeps()
	active := NewActiveDatasetManager(deps, 10_000)

	info := sampleActiveInfo()
	var d dataset.Dataset
	require.NoError(t, d.SetFromInfo(info, clock.NowMilli()))
	require.NoError(t, active.localSave(&d))

	// The key now lives only in the secure store; blow away the settings
	// copy's NetworkKey to prove Read re-embeds it from there.
	raw, _ := settings.Read(platform.SettingsActiveDataset)
	var stripped dataset.Dataset
	require.NoError(t, stripped.SetFromBytes(raw, clock.NowMilli()))
	stripped.RemoveTlv(dataset.TypeNetworkKey)
	require.NoError(t, settings.Save(platform.SettingsActiveDataset, stripped.Bytes()))

	var out dataset.Dataset
	require.NoError(t, active.Read(&out))
	v, ok := out.FindTlv(dataset.TypeNetworkKey)
	require.True(t, ok)
	assert.Equal(t, info.NetworkKey[:], v)
}

func TestSaveAdoptsNewerNetworkTimestampAndApplies(t *testing.T) {
	deps, _, _, clock, radio, _, _ := newTestDeps()
	active := NewActiveDatasetManager(deps, 10_000)

	var d dataset.Dataset
	require.NoError(t, d.SetFromInfo(sampleActiveInfo(), clock.NowMilli()))

	require.NoError(t, active.Save(context.Background(), &d, false))
	assert.Equal(t, dataset.Timestamp{Seconds: 5}, active.Timestamp())
	_, ok := radio.LastApplied()
	assert.True(t, ok)
}

func TestSaveDefersStaleDatasetAndSchedulesRetry(t *testing.T) {
	deps, _, _, clock, _, mle, _ := newTestDeps()
	mle.SetRole(platform.RoleRouter)
	active := NewActiveDatasetManager(deps, 10_000)

	var newer dataset.Dataset
	info := sampleActiveInfo()
	info.ActiveTimestamp = dataset.Timestamp{Seconds: 100}
	require.NoError(t, newer.SetFromInfo(info, clock.NowMilli()))
	require.NoError(t, active.Save(context.Background(), &newer, false))

	var stale dataset.Dataset
	staleInfo := sampleActiveInfo()
	staleInfo.ActiveTimestamp = dataset.Timestamp{Seconds: 1}
	require.NoError(t, stale.SetFromInfo(staleInfo, clock.NowMilli()))

	require.NoError(t, active.Save(context.Background(), &stale, false))
	// The stale save neither adopted nor local-saved: cached timestamp is
	// still the newer one from the first Save.
	assert.Equal(t, dataset.Timestamp{Seconds: 100}, active.Timestamp())
}

func TestSaveLocalLeaderSavesDirectly(t *testing.T) {
	deps, _, _, clock, radio, _, _ := newTestDeps()
	active := NewActiveDatasetManager(deps, 10_000)

	var d dataset.Dataset
	require.NoError(t, d.SetFromInfo(sampleActiveInfo(), clock.NowMilli()))
	require.NoError(t, active.SaveLocal(context.Background(), &d))

	assert.True(t, active.IsLocalSaved())
	_, ok := radio.LastApplied()
	assert.True(t, ok)
}

func TestSyncLocalWithLeaderAcceptsAndLocalSaves(t *testing.T) {
	deps, _, _, clock, _, mle, _ := newTestDeps()
	mle.SetRole(platform.RoleRouter)
	fakeTransport := transport.NewFake()
	deps.Transport = fakeTransport
	fakeTransport.Handle(transport.URIActiveSet, func(_ context.Context, req transport.Request) transport.Response {
		return transport.Response{State: dataset.StateAccept}
	})
	active := NewActiveDatasetManager(deps, 10_000)

	var d dataset.Dataset
	require.NoError(t, d.SetFromInfo(sampleActiveInfo(), clock.NowMilli()))
	require.NoError(t, active.SaveLocal(context.Background(), &d))
	assert.True(t, active.IsLocalSaved())
}

func TestSyncLocalWithLeaderRejectionReturnsError(t *testing.T) {
	deps, _, _, clock, _, mle, _ := newTestDeps()
	mle.SetRole(platform.RoleRouter)
	fakeTransport := transport.NewFake()
	deps.Transport = fakeTransport
	fakeTransport.Handle(transport.URIActiveSet, func(_ context.Context, req transport.Request) transport.Response {
		return transport.Response{State: dataset.StateReject}
	})
	active := NewActiveDatasetManager(deps, 10_000)

	var d dataset.Dataset
	require.NoError(t, d.SetFromInfo(sampleActiveInfo(), clock.NowMilli()))
	err := active.SaveLocal(context.Background(), &d)
	assert.ErrorIs(t, err, dataset.ErrRejected)
	assert.False(t, active.IsLocalSaved())
}

func TestHandleGetFiltersByRequestedTypes(t *testing.T) {
	deps, _, _, clock, _, _, _ := newTestDeps()
	active := NewActiveDatasetManager(deps, 10_000)

	var d dataset.Dataset
	require.NoError(t, d.SetFromInfo(sampleActiveInfo(), clock.NowMilli()))
	require.NoError(t, active.SaveLocal(context.Background(), &d))

	resp := active.HandleGet(transport.Request{Payload: []byte{byte(dataset.TypeNetworkName)}}, CheckSecurityPolicyFlags)
	var out dataset.Dataset
	require.NoError(t, out.SetFromBytes(resp.Payload, clock.NowMilli()))
	assert.True(t, out.ContainsTlv(dataset.TypeNetworkName))
	assert.False(t, out.ContainsTlv(dataset.TypeChannel))
}

// TestHandleGetOmitsNetworkKeyWhenSecurityPolicyDisallowsIt is spec.md
// §4.4.5 step 4: a SecurityPolicy with the Obtain-Network-Key bit clear
// suppresses NetworkKey from both the unfiltered and filtered Get
// response, but only when checking is requested.
func TestHandleGetOmitsNetworkKeyWhenSecurityPolicyDisallowsIt(t *testing.T) {
	deps, _, _, clock, _, _, _ := newTestDeps()
	active := NewActiveDatasetManager(deps, 10_000)

	info := sampleActiveInfo()
	info.SecurityPolicy.Flags = []byte{0x00}
	var d dataset.Dataset
	require.NoError(t, d.SetFromInfo(info, clock.NowMilli()))
	require.NoError(t, active.SaveLocal(context.Background(), &d))

	resp := active.HandleGet(transport.Request{}, CheckSecurityPolicyFlags)
	var out dataset.Dataset
	require.NoError(t, out.SetFromBytes(resp.Payload, clock.NowMilli()))
	assert.False(t, out.ContainsTlv(dataset.TypeNetworkKey))
	assert.True(t, out.ContainsTlv(dataset.TypeNetworkName))

	filtered := active.HandleGet(transport.Request{Payload: []byte{byte(dataset.TypeNetworkKey)}}, CheckSecurityPolicyFlags)
	var filteredOut dataset.Dataset
	require.NoError(t, filteredOut.SetFromBytes(filtered.Payload, clock.NowMilli()))
	assert.False(t, filteredOut.ContainsTlv(dataset.TypeNetworkKey))

	unfiltered := active.HandleGet(transport.Request{}, IgnoreSecurityPolicyFlags)
	var unfilteredOut dataset.Dataset
	require.NoError(t, unfilteredOut.SetFromBytes(unfiltered.Payload, clock.NowMilli()))
	assert.True(t, unfilteredOut.ContainsTlv(dataset.TypeNetworkKey))
}

func TestHandleGetWithNoFilterReturnsEverything(t *testing.T) {
	deps, _, _, clock, _, _, _ := newTestDeps()
	active := NewActiveDatasetManager(deps, 10_000)

	var d dataset.Dataset
	require.NoError(t, d.SetFromInfo(sampleActiveInfo(), clock.NowMilli()))
	require.NoError(t, active.SaveLocal(context.Background(), &d))

	resp := active.HandleGet(transport.Request{}, CheckSecurityPolicyFlags)
	assert.Equal(t, d.Bytes(), resp.Payload)
}

func TestClearResetsStateAndSignals(t *testing.T) {
	deps, _, _, clock, _, _, notifier := newTestDeps()
	active := NewActiveDatasetManager(deps, 10_000)

	var seen []platform.EventKind
	notifier.Subscribe(func(kind platform.EventKind) { seen = append(seen, kind) })

	var d dataset.Dataset
	require.NoError(t, d.SetFromInfo(sampleActiveInfo(), clock.NowMilli()))
	require.NoError(t, active.SaveLocal(context.Background(), &d))

	active.Clear()
	assert.False(t, active.IsLocalSaved())
	assert.Equal(t, dataset.Zero, active.Timestamp())
	var out dataset.Dataset
	assert.ErrorIs(t, active.Read(&out), dataset.ErrNotFound)
	assert.Contains(t, seen, platform.EventActiveDatasetChanged)
}
