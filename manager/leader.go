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
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/facebook/meshcop/dataset"
	"github.com/facebook/meshcop/platform"
	"github.com/facebook/meshcop/tlv"
	"github.com/facebook/meshcop/transport"
)

// Leader wires the Active and Pending managers together to implement
// the leader-side MGMT_SET / MGMT_REPLACE decision algorithm (spec.md
// §4.4.3), grounded on DatasetManager::ProcessSetOrReplaceRequest and
// DatasetManager::HandleSetOrReplace in dataset_manager_ftd.cpp. It is
// only meaningful while this device's Mle role is Leader; requests
// arriving otherwise are rejected.
type Leader struct {
	active  *ActiveDatasetManager
	pending *PendingDatasetManager
	metrics MetricsObserver

	mu             sync.Mutex
	hasCommSession bool
	commSessionID  uint16
}

// MetricsObserver receives one ObserveMGMT call per handled MGMT
// request, labeled by CoAP URI and State TLV outcome ("accept" or
// "reject" — a connectivity-deferred Active Set still reports "accept"
// per spec.md §4.4.3, the deferral is invisible at this level).
// metrics.Metrics satisfies this interface; Leader works with a nil
// observer too.
type MetricsObserver interface {
	ObserveMGMT(uri, result string)
}

// NewLeader constructs a Leader bound to the given Active and Pending
// managers.
func NewLeader(active *ActiveDatasetManager, pending *PendingDatasetManager) *Leader {
	return &Leader{active: active, pending: pending}
}

// SetMetrics attaches a MetricsObserver that RegisterHandlers' wrapped
// handlers report every decision to. Optional; a Leader with no
// observer attached simply skips reporting.
func (l *Leader) SetMetrics(m MetricsObserver) {
	l.metrics = m
}

// SetCommissionerSession records the currently authorized commissioner
// session id, against which an incoming CommissionerSessionId TLV is
// checked (spec.md §4.4.3 step 5). Establishing and tearing down an
// actual commissioner session is out of scope; callers that do
// implement that layer call this when a session is established.
func (l *Leader) SetCommissionerSession(id uint16) {
	l.mu.Lock()
	l.hasCommSession = true
	l.commSessionID = id
	l.mu.Unlock()
}

// ClearCommissionerSession forgets the current commissioner session,
// causing any CommissionerSessionId TLV to fail verification.
func (l *Leader) ClearCommissionerSession() {
	l.mu.Lock()
	l.hasCommSession = false
	l.mu.Unlock()
}

func (l *Leader) commissionerSessionMatches(id uint16) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.hasCommSession && l.commSessionID == id
}

// RegisterHandlers binds the five MGMT URIs to this Leader's handling
// on the given transport.Server, for use once this device becomes
// Leader (spec.md §6.1).
func (l *Leader) RegisterHandlers(server transport.Server) {
	server.Handle(transport.URIActiveGet, func(_ context.Context, req transport.Request) transport.Response {
		return l.active.HandleGet(req, CheckSecurityPolicyFlags)
	})
	server.Handle(transport.URIPendingGet, func(_ context.Context, req transport.Request) transport.Response {
		return l.pending.HandleGet(req, CheckSecurityPolicyFlags)
	})
	server.Handle(transport.URIActiveSet, func(ctx context.Context, req transport.Request) transport.Response {
		state := l.handleSetOrReplace(ctx, dataset.Active, false, req)
		l.observeMGMT(transport.URIActiveSet, state)
		return transport.Response{State: state}
	})
	server.Handle(transport.URIActiveReplace, func(ctx context.Context, req transport.Request) transport.Response {
		state := l.handleSetOrReplace(ctx, dataset.Active, true, req)
		l.observeMGMT(transport.URIActiveReplace, state)
		return transport.Response{State: state}
	})
	server.Handle(transport.URIPendingSet, func(ctx context.Context, req transport.Request) transport.Response {
		state := l.handleSetOrReplace(ctx, dataset.Pending, false, req)
		l.observeMGMT(transport.URIPendingSet, state)
		return transport.Response{State: state}
	})
}

// observeMGMT reports a handled MGMT_SET/MGMT_REPLACE outcome to the
// attached MetricsObserver, if any.
func (l *Leader) observeMGMT(uri transport.URI, state uint8) {
	if l.metrics == nil {
		return
	}
	result := "reject"
	if state == dataset.StateAccept {
		result = "accept"
	}
	l.metrics.ObserveMGMT(string(uri), result)
}

// handleSetOrReplace runs the full decision algorithm and, on success,
// notifies the commissioner when the accepted change did not itself
// originate from one (spec.md §4.4.3 step 8). With no commissioner
// session recorded, no notification is emitted.
func (l *Leader) handleSetOrReplace(ctx context.Context, kind dataset.Kind, isReplace bool, req transport.Request) uint8 {
	state, fromCommissioner := l.decide(ctx, kind, isReplace, req)
	l.mu.Lock()
	hasSession := l.hasCommSession
	l.mu.Unlock()
	if state == dataset.StateAccept && !fromCommissioner && hasSession {
		l.active.deps.Notifier.Emit(platform.EventCommissionerNotify)
	}
	return state
}

// decide implements ProcessSetOrReplaceRequest + HandleSetOrReplace:
// parse and validate, check timestamp freshness, classify connectivity
// impact, validate and strip any commissioner session, apply partial-
// update overlay semantics, normalize the DelayTimer, and finally
// either Accept (saving directly or deferring to Pending) or Reject.
func (l *Leader) decide(ctx context.Context, kind dataset.Kind, isReplace bool, req transport.Request) (state uint8, fromCommissioner bool) {
	if l.active.deps.Mle.Role() != platform.RoleLeader {
		return dataset.StateReject, false
	}

	var incoming dataset.Dataset
	if err := incoming.SetFromBytes(req.Payload, l.active.deps.Clock.NowMilli()); err != nil {
		return dataset.StateReject, false
	}
	if err := incoming.ValidateTlvs(); err != nil {
		return dataset.StateReject, false
	}

	var currentActive, currentPending dataset.Dataset
	hasActive := l.active.Read(&currentActive) == nil
	hasPending := l.pending.Read(&currentPending) == nil

	activeTs, err := incoming.ReadTimestamp(dataset.Active)
	if err != nil {
		return dataset.StateReject, false
	}
	var localActiveTs dataset.Timestamp
	if hasActive {
		localActiveTs, _ = currentActive.ReadTimestamp(dataset.Active)
	}

	if kind == dataset.Pending {
		pendingTs, err := incoming.ReadTimestamp(dataset.Pending)
		if err != nil {
			return dataset.StateReject, false
		}
		var localPendingTs dataset.Timestamp
		if hasPending {
			localPendingTs, _ = currentPending.ReadTimestamp(dataset.Pending)
		}
		if pendingTs.Compare(localPendingTs) <= 0 {
			return dataset.StateReject, false
		}
	} else if activeTs.Compare(localActiveTs) <= 0 {
		return dataset.StateReject, false
	}

	affectsNetworkKey := changesField(&incoming, &currentActive, hasActive, dataset.TypeNetworkKey)
	affectsConnectivity := affectsNetworkKey ||
		changesField(&incoming, &currentActive, hasActive, dataset.TypeChannel) ||
		changesField(&incoming, &currentActive, hasActive, dataset.TypePanID) ||
		changesField(&incoming, &currentActive, hasActive, dataset.TypeMeshLocalPrefix)

	if kind == dataset.Pending && !affectsNetworkKey && activeTs.Compare(localActiveTs) <= 0 {
		return dataset.StateReject, false
	}

	if req.HasCommissionerSession {
		fromCommissioner = true
		if !l.commissionerSessionMatches(req.CommissionerSessionID) {
			return dataset.StateReject, fromCommissioner
		}
		// The CommissionerSessionId TLV is a wire-only artifact of the
		// request; it is never part of a persisted Dataset.
		incoming.RemoveTlv(dataset.TypeCommissionerSessionID)
	}

	result := incoming
	if isReplace {
		if !fromCommissioner || kind != dataset.Active || !incoming.ContainsAllRequiredFor(dataset.Active) {
			return dataset.StateReject, fromCommissioner
		}
	} else if fromCommissioner && kind == dataset.Active {
		if affectsConnectivity {
			return dataset.StateReject, fromCommissioner
		}
		var overlay dataset.Dataset
		if hasActive {
			overlay.SetFrom(&currentActive)
		}
		if err := overlay.WriteTlvsFrom(&incoming); err != nil {
			return dataset.StateReject, fromCommissioner
		}
		result = overlay
	}

	if v, ok := result.FindTlv(dataset.TypeDelayTimer); ok && len(v) >= 4 {
		delay := clampDelay(beUint32(v))
		if affectsNetworkKey && delay < kDefaultDelayTimer {
			delay = kDefaultDelayTimer
		} else if delay < l.active.leaderMinDelay {
			delay = l.active.leaderMinDelay
		}
		if err := result.WriteTlv(dataset.TypeDelayTimer, beBytes32(delay), result.UpdateTime()); err != nil {
			return dataset.StateReject, fromCommissioner
		}
	}

	if kind == dataset.Active && affectsConnectivity {
		log.Infof("meshcop: leader deferring connectivity-affecting active set as pending")
		if err := l.pending.ApplyActiveDataset(ctx, &result, l.active.leaderMinDelay); err != nil {
			log.Warningf("meshcop: leader failed deferring active set as pending: %v", err)
			return dataset.StateReject, fromCommissioner
		}
		return dataset.StateAccept, fromCommissioner
	}

	if kind == dataset.Active {
		if err := l.active.Save(ctx, &result, false); err != nil {
			log.Warningf("meshcop: leader failed accepting active set: %v", err)
			return dataset.StateReject, fromCommissioner
		}
	} else if err := l.pending.Save(ctx, &result, false); err != nil {
		log.Warningf("meshcop: leader failed accepting pending set: %v", err)
		return dataset.StateReject, fromCommissioner
	}
	return dataset.StateAccept, fromCommissioner
}

// changesField reports whether type t is present in incoming and its
// value differs from (or is altogether absent from) current, i.e.
// whether this request actually changes that field. A type incoming
// doesn't mention at all never counts as a change.
func changesField(incoming, current *dataset.Dataset, hasCurrent bool, t tlv.Type) bool {
	iv, ok := incoming.FindTlv(t)
	if !ok {
		return false
	}
	if !hasCurrent {
		return true
	}
	cv, ok := current.FindTlv(t)
	if !ok {
		return true
	}
	return !bytesEqual(iv, cv)
}
