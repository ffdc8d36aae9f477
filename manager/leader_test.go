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
	"github.com/facebook/meshcop/transport"
)

type fakeMetricsObserver struct {
	calls []string
}

func (f *fakeMetricsObserver) ObserveMGMT(uri, result string) {
	f.calls = append(f.calls, uri+":"+result)
}

// TestLeaderReportsMetricsForSetOutcomes posts one stale MGMT_ACTIVE_SET
// through RegisterHandlers' wrapped handler and confirms its Reject
// outcome reaches an attached MetricsObserver.
func TestLeaderReportsMetricsForSetOutcomes(t *testing.T) {
	deps, _, _, clock, _, _, _ := newTestDeps()
	active := NewActiveDatasetManager(deps, 10_000)
	pending := NewPendingDatasetManager(deps, active)
	leader := NewLeader(active, pending)
	obs := &fakeMetricsObserver{}
	leader.SetMetrics(obs)

	server := transport.NewFake()
	leader.RegisterHandlers(server)

	var staleReq dataset.Dataset
	require.NoError(t, staleReq.WriteTimestamp(dataset.Active, dataset.Timestamp{Seconds: 0}, clock.NowMilli()))
	resp, err := server.Post(context.Background(), transport.URIActiveSet, transport.Request{
		URI:     transport.URIActiveSet,
		Payload: staleReq.Bytes(),
	})
	require.NoError(t, err)
	assert.Equal(t, uint8(dataset.StateReject), resp.State)

	require.Len(t, obs.calls, 1)
	assert.Equal(t, "/c/as:reject", obs.calls[0])
}

// TestLeaderAcceptsNonConnectivityCommissionerActiveSet is spec.md §8
// scenario 2.
func TestLeaderAcceptsNonConnectivityCommissionerActiveSet(t *testing.T) {
	deps, _, _, clock, _, _, _ := newTestDeps()
	active := NewActiveDatasetManager(deps, 10_000)
	pending := NewPendingDatasetManager(deps, active)
	leader := NewLeader(active, pending)
	leader.SetCommissionerSession(7)

	initial := sampleActiveInfo()
	initial.ActiveTimestamp = dataset.Timestamp{Seconds: 10}
	initial.NetworkName = "Alpha"
	var initialDS dataset.Dataset
	require.NoError(t, initialDS.SetFromInfo(initial, clock.NowMilli()))
	require.NoError(t, active.localSave(&initialDS))

	var req dataset.Dataset
	require.NoError(t, req.WriteTimestamp(dataset.Active, dataset.Timestamp{Seconds: 11}, clock.NowMilli()))
	require.NoError(t, req.WriteTlv(dataset.TypeNetworkName, []byte("Beta"), clock.NowMilli()))

	server := transport.NewFake()
	leader.RegisterHandlers(server)
	resp, err := server.Post(context.Background(), transport.URIActiveSet, transport.Request{
		URI:                    transport.URIActiveSet,
		Payload:                req.Bytes(),
		HasCommissionerSession: true,
		CommissionerSessionID:  7,
		FromCommissioner:       true,
	})
	require.NoError(t, err)
	assert.Equal(t, uint8(dataset.StateAccept), resp.State)

	var got dataset.Dataset
	require.NoError(t, active.Read(&got))
	info := got.ToInfo()
	assert.Equal(t, "Beta", info.NetworkName)
	assert.Equal(t, dataset.Timestamp{Seconds: 11}, info.ActiveTimestamp)
	assert.Equal(t, initial.Channel, info.Channel)
	assert.Equal(t, initial.PanID, info.PanID)
	assert.False(t, got.ContainsTlv(dataset.TypeCommissionerSessionID))
}

// TestLeaderDefersConnectivityAffectingActiveSet is spec.md §8 scenario 3.
func TestLeaderDefersConnectivityAffectingActiveSet(t *testing.T) {
	deps, _, _, clock, _, _, _ := newTestDeps()
	leaderMinDelay := uint32(10_000)
	active := NewActiveDatasetManager(deps, leaderMinDelay)
	pending := NewPendingDatasetManager(deps, active)
	leader := NewLeader(active, pending)

	initial := sampleActiveInfo()
	initial.Channel = 15
	initial.ActiveTimestamp = dataset.Timestamp{Seconds: 20}
	var initialDS dataset.Dataset
	require.NoError(t, initialDS.SetFromInfo(initial, clock.NowMilli()))
	require.NoError(t, active.localSave(&initialDS))

	var req dataset.Dataset
	require.NoError(t, req.WriteTimestamp(dataset.Active, dataset.Timestamp{Seconds: 21}, clock.NowMilli()))
	require.NoError(t, req.WriteTlv(dataset.TypeChannel, []byte{0, 0, 20}, clock.NowMilli()))

	server := transport.NewFake()
	leader.RegisterHandlers(server)
	resp, err := server.Post(context.Background(), transport.URIActiveSet, transport.Request{
		URI:     transport.URIActiveSet,
		Payload: req.Bytes(),
	})
	require.NoError(t, err)
	assert.Equal(t, uint8(dataset.StateAccept), resp.State)

	var gotActive dataset.Dataset
	require.NoError(t, active.Read(&gotActive))
	activeInfo := gotActive.ToInfo()
	assert.Equal(t, uint16(15), activeInfo.Channel)
	assert.Equal(t, dataset.Timestamp{Seconds: 20}, activeInfo.ActiveTimestamp)

	var gotPending dataset.Dataset
	require.NoError(t, pending.Read(&gotPending))
	pendingInfo := gotPending.ToInfo()
	assert.Equal(t, uint16(20), pendingInfo.Channel)
	assert.Equal(t, dataset.Timestamp{Seconds: 21}, pendingInfo.ActiveTimestamp)
	assert.True(t, pendingInfo.HasPendingTimestamp)
	assert.Equal(t, dataset.Timestamp{Seconds: 21}, pendingInfo.PendingTimestamp)
	assert.True(t, pendingInfo.HasDelay)
	assert.Equal(t, leaderMinDelay, pendingInfo.Delay)
}

func TestLeaderRejectsStaleActiveSet(t *testing.T) {
	deps, _, _, clock, _, _, _ := newTestDeps()
	active := NewActiveDatasetManager(deps, 10_000)
	pending := NewPendingDatasetManager(deps, active)
	leader := NewLeader(active, pending)

	initial := sampleActiveInfo()
	initial.ActiveTimestamp = dataset.Timestamp{Seconds: 50}
	var initialDS dataset.Dataset
	require.NoError(t, initialDS.SetFromInfo(initial, clock.NowMilli()))
	require.NoError(t, active.localSave(&initialDS))

	var req dataset.Dataset
	require.NoError(t, req.WriteTimestamp(dataset.Active, dataset.Timestamp{Seconds: 10}, clock.NowMilli()))

	server := transport.NewFake()
	leader.RegisterHandlers(server)
	resp, err := server.Post(context.Background(), transport.URIActiveSet, transport.Request{Payload: req.Bytes()})
	require.NoError(t, err)
	assert.Equal(t, uint8(dataset.StateReject), resp.State)
}

func TestLeaderRejectsCommissionerActiveSetAffectingConnectivity(t *testing.T) {
	deps, _, _, clock, _, _, _ := newTestDeps()
	active := NewActiveDatasetManager(deps, 10_000)
	pending := NewPendingDatasetManager(deps, active)
	leader := NewLeader(active, pending)
	leader.SetCommissionerSession(1)

	initial := sampleActiveInfo()
	initial.Channel = 15
	initial.ActiveTimestamp = dataset.Timestamp{Seconds: 1}
	var initialDS dataset.Dataset
	require.NoError(t, initialDS.SetFromInfo(initial, clock.NowMilli()))
	require.NoError(t, active.localSave(&initialDS))

	var req dataset.Dataset
	require.NoError(t, req.WriteTimestamp(dataset.Active, dataset.Timestamp{Seconds: 2}, clock.NowMilli()))
	require.NoError(t, req.WriteTlv(dataset.TypeChannel, []byte{0, 0, 20}, clock.NowMilli()))

	server := transport.NewFake()
	leader.RegisterHandlers(server)
	resp, err := server.Post(context.Background(), transport.URIActiveSet, transport.Request{
		Payload:                req.Bytes(),
		HasCommissionerSession: true,
		CommissionerSessionID:  1,
	})
	require.NoError(t, err)
	assert.Equal(t, uint8(dataset.StateReject), resp.State)
}

func TestLeaderRejectsRequestsWhenNotLeader(t *testing.T) {
	deps, _, _, clock, _, mle, _ := newTestDeps()
	mle.SetRole(platform.RoleRouter)
	active := NewActiveDatasetManager(deps, 10_000)
	pending := NewPendingDatasetManager(deps, active)
	leader := NewLeader(active, pending)

	var req dataset.Dataset
	require.NoError(t, req.WriteTimestamp(dataset.Active, dataset.Timestamp{Seconds: 1}, clock.NowMilli()))

	server := transport.NewFake()
	leader.RegisterHandlers(server)
	resp, err := server.Post(context.Background(), transport.URIActiveSet, transport.Request{Payload: req.Bytes()})
	require.NoError(t, err)
	assert.Equal(t, uint8(dataset.StateReject), resp.State)
}
