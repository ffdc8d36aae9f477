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

// Package updater implements the Dataset Updater (C7): a user-facing
// orchestrator that turns a partial configuration change into a
// correctly-stamped Pending Dataset and reports the outcome -- success,
// conflict, or failure -- once the change (or a competing one) takes
// effect. Grounded on src/core/meshcop/dataset_updater.cpp.
package updater

import (
	"context"
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/facebook/meshcop/dataset"
	"github.com/facebook/meshcop/manager"
	"github.com/facebook/meshcop/platform"
)

// kDefaultDelay is the DelayTimer value used when a request_update call
// doesn't supply its own. original_source/ ties this to a build-time
// config macro (OPENTHREAD_CONFIG_DATASET_UPDATER_DEFAULT_DELAY)
// without giving the pack a concrete value; see DESIGN.md for the
// chosen constant.
const kDefaultDelay uint32 = 1000

// Deps bundles the collaborators RequestUpdate and the completion
// handlers need.
type Deps struct {
	Active   *manager.ActiveDatasetManager
	Pending  *manager.PendingDatasetManager
	Mle      platform.Mle
	RNG      platform.RNG
	Clock    platform.Clock
	Notifier platform.Notifier
}

// Updater is C7: it holds at most one in-flight update request at a
// time, tracked as the originally-requested (not overlaid) Dataset plus
// its completion callback.
type Updater struct {
	deps Deps

	mu        sync.Mutex
	requested *dataset.Dataset
	callback  func(error)
}

// NewUpdater constructs an Updater and subscribes it to dataset-changed
// notifications.
func NewUpdater(deps Deps) *Updater {
	u := &Updater{deps: deps}
	deps.Notifier.Subscribe(u.HandleNotifierEvents)
	return u
}

// IsUpdateOngoing reports whether a request_update is currently
// in-flight, awaiting a completion event.
func (u *Updater) IsUpdateOngoing() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.requested != nil
}

// RequestUpdate builds a Dataset from info and submits it; see
// requestUpdate for the full precondition/scheduling sequence.
func (u *Updater) RequestUpdate(ctx context.Context, info dataset.Info, callback func(error)) error {
	var d dataset.Dataset
	if err := d.SetFromInfo(info, u.deps.Clock.NowMilli()); err != nil {
		return fmt.Errorf("%w: %v", dataset.ErrInvalidArgs, err)
	}
	return u.requestUpdate(ctx, &d, callback)
}

// requestUpdate runs every precondition check before touching any
// state (spec.md §4.7), then advances the Active and Pending
// timestamps, defaults the DelayTimer, overlays the request onto the
// current Active Dataset, and schedules the overlaid result through
// PendingDatasetManager.SaveLocal. The originally-requested (non-
// overlaid) Dataset is kept in the in-flight slot for conflict
// detection in HandleDatasetChanged.
func (u *Updater) requestUpdate(ctx context.Context, d *dataset.Dataset, callback func(error)) error {
	u.mu.Lock()

	if u.deps.Mle.Role() == platform.RoleDisabled {
		u.mu.Unlock()
		return dataset.ErrInvalidState
	}

	var active dataset.Dataset
	if err := u.deps.Active.Read(&active); err != nil {
		u.mu.Unlock()
		return fmt.Errorf("%w: no active dataset", dataset.ErrInvalidState)
	}
	activeTs, err := active.ReadTimestamp(dataset.Active)
	if err != nil {
		u.mu.Unlock()
		return fmt.Errorf("%w: active dataset has no timestamp", dataset.ErrInvalidState)
	}

	if err := d.ValidateTlvs(); err != nil {
		u.mu.Unlock()
		return fmt.Errorf("%w: %v", dataset.ErrInvalidArgs, err)
	}
	if d.ContainsTlv(dataset.TypeActiveTimestamp) || d.ContainsTlv(dataset.TypePendingTimestamp) {
		u.mu.Unlock()
		return fmt.Errorf("%w: requested dataset must not carry a timestamp", dataset.ErrInvalidArgs)
	}

	if u.requested != nil {
		u.mu.Unlock()
		return dataset.ErrBusy
	}

	if d.IsSubsetOf(&active) {
		u.mu.Unlock()
		return dataset.ErrAlready
	}

	now := u.deps.Clock.NowMilli()

	activeTs.AdvanceRandomTicks(u.deps.RNG.Uint32)
	if err := d.WriteTimestamp(dataset.Active, activeTs, now); err != nil {
		u.mu.Unlock()
		return err
	}

	pendingTs := u.deps.Pending.Timestamp()
	if !pendingTs.IsValid() {
		pendingTs = dataset.Zero
	}
	pendingTs.AdvanceRandomTicks(u.deps.RNG.Uint32)
	if err := d.WriteTimestamp(dataset.Pending, pendingTs, now); err != nil {
		u.mu.Unlock()
		return err
	}

	if !d.ContainsTlv(dataset.TypeDelayTimer) {
		if err := d.WriteTlv(dataset.TypeDelayTimer, beBytes32(kDefaultDelay), now); err != nil {
			u.mu.Unlock()
			return err
		}
	}

	overlaid := active
	if err := overlaid.WriteTlvsFrom(d); err != nil {
		u.mu.Unlock()
		return fmt.Errorf("%w: %v", dataset.ErrNoBufs, err)
	}

	// Reserve the in-flight slot before releasing the lock and saving:
	// Pending.SaveLocal below runs this process's leader path inline,
	// which emits a synchronous dataset-changed notification that
	// re-enters HandleDatasetChanged on this same goroutine -- and that
	// also takes u.mu. Holding the lock across the save would deadlock.
	// Setting u.requested first still keeps a concurrent requestUpdate
	// from racing in while this one's save is outstanding.
	requested := *d
	u.requested = &requested
	u.callback = callback
	u.mu.Unlock()

	if err := u.deps.Pending.SaveLocal(ctx, &overlaid); err != nil {
		u.mu.Lock()
		u.requested = nil
		u.callback = nil
		u.mu.Unlock()
		return err
	}

	log.Infof("meshcop: updater scheduled request-update, awaiting completion event")
	return nil
}

// CancelUpdate drops the in-flight slot without invoking its callback.
func (u *Updater) CancelUpdate() {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.requested = nil
	u.callback = nil
}

// Finish clears the in-flight slot and invokes its callback (if one is
// ongoing) with err.
func (u *Updater) Finish(err error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.finishLocked(err)
}

func (u *Updater) finishLocked(err error) {
	if u.requested == nil {
		return
	}
	cb := u.callback
	u.requested = nil
	u.callback = nil
	if cb != nil {
		cb(err)
	}
}

// HandleNotifierEvents dispatches an Active/Pending-dataset-changed
// notification to HandleDatasetChanged.
func (u *Updater) HandleNotifierEvents(kind platform.EventKind) {
	switch kind {
	case platform.EventActiveDatasetChanged:
		u.HandleDatasetChanged(dataset.Active)
	case platform.EventPendingDatasetChanged:
		u.HandleDatasetChanged(dataset.Pending)
	}
}

// HandleDatasetChanged implements the Updater's completion logic
// (spec.md §4.7 Completion): if the originally-requested Dataset is
// now a subset of the Active Dataset, the update succeeded; if it's a
// subset of the Pending Dataset, it's still waiting for promotion; else
// a timestamp that has caught up or overtaken the requested one means
// a conflicting update won, and the request fails with ErrAlready.
func (u *Updater) HandleDatasetChanged(kind dataset.Kind) {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.requested == nil {
		return
	}

	var current dataset.Dataset
	var err error
	if kind == dataset.Active {
		err = u.deps.Active.Read(&current)
	} else {
		err = u.deps.Pending.Read(&current)
	}
	if err != nil {
		return
	}

	if u.requested.IsSubsetOf(&current) {
		if kind == dataset.Active {
			u.finishLocked(nil)
		}
		return
	}

	newTs, err := current.ReadTimestamp(kind)
	if err != nil {
		return
	}
	requestedTs, err := u.requested.ReadTimestamp(kind)
	if err != nil {
		return
	}

	if newTs.GreaterOrEqual(requestedTs) {
		log.Infof("meshcop: updater detected conflicting %s dataset update, reporting already", kind)
		u.finishLocked(dataset.ErrAlready)
	}
}

func beBytes32(v uint32) []byte {
	return []byte{byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v)}
}
