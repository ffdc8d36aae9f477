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
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/facebook/meshcop/dataset"
	"github.com/facebook/meshcop/platform"
	"github.com/facebook/meshcop/transport"
)

// kMaxDelayTimer and kDefaultDelayTimer are Thread 1.x reference
// values: the pack's original_source/ defines these via build-time
// config macros rather than literals (see DESIGN.md).
const (
	kMaxDelayTimer     uint32 = 259200000 // 3 days, in ms
	kDefaultDelayTimer uint32 = 300000    // 5 minutes, in ms
)

// PendingDatasetManager is C6: the DatasetManager specialization that
// tracks a scheduled future configuration and promotes it to Active
// when its delay timer expires.
type PendingDatasetManager struct {
	Base
	active *ActiveDatasetManager

	dtMu       sync.Mutex
	delayTimer *time.Timer
}

// NewPendingDatasetManager constructs a PendingDatasetManager. active
// is the ActiveDatasetManager instance it promotes into on expiry.
func NewPendingDatasetManager(deps Deps, active *ActiveDatasetManager) *PendingDatasetManager {
	return &PendingDatasetManager{
		Base:   newBase(dataset.Pending, platform.SettingsPendingDataset, deps),
		active: active,
	}
}

// clampDelay normalizes a requested DelayTimer value to
// [0, kMaxDelayTimer].
func clampDelay(ms uint32) uint32 {
	if ms > kMaxDelayTimer {
		return kMaxDelayTimer
	}
	return ms
}

// SaveLocal is the local/user entry point for the Pending Dataset; on
// success it (re)arms the delay timer from the freshly saved Dataset.
func (p *PendingDatasetManager) SaveLocal(ctx context.Context, d *dataset.Dataset) error {
	if d != nil {
		if v, ok := d.FindTlv(dataset.TypeDelayTimer); ok && len(v) >= 4 {
			_ = d.WriteTlv(dataset.TypeDelayTimer, beBytes32(clampDelay(beUint32(v))), d.UpdateTime())
		}
	}
	if err := p.Base.SaveLocal(ctx, d, transport.URIPendingSet); err != nil {
		return err
	}
	return p.StartDelayTimer(nil)
}

// Save is the leader/arbiter entry point for the Pending Dataset.
func (p *PendingDatasetManager) Save(ctx context.Context, d *dataset.Dataset, allowOlderTimestamp bool) error {
	if err := p.Base.Save(ctx, d, allowOlderTimestamp, nil); err != nil {
		return err
	}
	return p.StartDelayTimer(nil)
}

// StartDelayTimer stops any running delay timer and, if ds (or the
// currently saved Pending Dataset, when ds is nil) carries a
// DelayTimer TLV, arms a fresh one for the clamped remaining duration
// anchored at that Dataset's update time (spec.md §4.6
// start_delay_timer).
func (p *PendingDatasetManager) StartDelayTimer(ds *dataset.Dataset) error {
	p.stopDelayTimer()

	var d dataset.Dataset
	if ds != nil {
		d = *ds
	} else if err := p.Read(&d); err != nil {
		return nil //nolint: nilerr // no Pending Dataset means nothing to arm.
	}

	v, ok := d.FindTlv(dataset.TypeDelayTimer)
	if !ok || len(v) < 4 {
		return nil
	}
	delay := clampDelay(beUint32(v))
	elapsed := uint32(p.deps.Clock.NowMilli() - d.UpdateTime())
	var remaining time.Duration
	if elapsed >= delay {
		remaining = 0
	} else {
		remaining = time.Duration(delay-elapsed) * time.Millisecond
	}

	p.dtMu.Lock()
	p.delayTimer = time.AfterFunc(remaining, func() { p.HandleDelayTimer(context.Background()) })
	p.dtMu.Unlock()
	return nil
}

// Clear stops the delay timer and then performs Base.Clear's full
// teardown of the Pending Dataset.
func (p *PendingDatasetManager) Clear() {
	p.stopDelayTimer()
	p.Base.Clear()
}

func (p *PendingDatasetManager) stopDelayTimer() {
	p.dtMu.Lock()
	defer p.dtMu.Unlock()
	if p.delayTimer != nil {
		p.delayTimer.Stop()
		p.delayTimer = nil
	}
}

// HandleDelayTimer fires when the delay timer expires: it decides
// whether to promote the Pending Dataset to Active (spec.md §4.6 /
// dataset_manager_ftd.cpp HandleDelayTimer), then unconditionally
// clears the Pending Dataset regardless of the promotion outcome.
func (p *PendingDatasetManager) HandleDelayTimer(ctx context.Context) {
	var pending dataset.Dataset
	if err := p.Read(&pending); err != nil {
		return
	}

	promote := false
	var active dataset.Dataset
	if err := p.active.Read(&active); err != nil {
		promote = true // no Active Dataset at all: anything is an improvement.
	} else {
		activeTs, _ := active.ReadTimestamp(dataset.Active)
		pendingActiveTs, err := pending.ReadTimestamp(dataset.Active)
		if err == nil && pendingActiveTs.GreaterOrEqual(activeTs) && pendingActiveTs != activeTs {
			promote = true
		} else if networkKeyDiffers(&pending, &active) {
			promote = true
		}
	}

	if promote {
		pending.RemoveTimestamp(dataset.Pending)
		pending.RemoveTlv(dataset.TypeDelayTimer)
		log.Infof("meshcop: pending manager promoting pending dataset to active")
		if err := p.active.Save(ctx, &pending, true); err != nil {
			log.Warningf("meshcop: pending manager failed promoting dataset: %v", err)
		} else if err := p.active.ApplyConfiguration(); err != nil {
			log.Warningf("meshcop: pending manager failed applying promoted dataset: %v", err)
		}
	} else {
		log.Infof("meshcop: pending manager delay timer expired with nothing to promote")
	}

	p.Base.Clear()
}

func networkKeyDiffers(a, b *dataset.Dataset) bool {
	av, aok := a.FindTlv(dataset.TypeNetworkKey)
	bv, bok := b.FindTlv(dataset.TypeNetworkKey)
	if aok != bok {
		return true
	}
	if !aok {
		return false
	}
	return !bytesEqual(av, bv)
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

// ApplyActiveDataset is the leader-only helper used by the Set/Replace
// decision algorithm's DeferAsPending branch (spec.md §4.4.3 step 7):
// it stamps d's PendingTimestamp from its ActiveTimestamp, sets
// DelayTimer to the leader's configured minimum, saves it as Pending,
// and arms the delay timer.
func (p *PendingDatasetManager) ApplyActiveDataset(ctx context.Context, d *dataset.Dataset, leaderMinDelayMillis uint32) error {
	activeTs, err := d.ReadTimestamp(dataset.Active)
	if err != nil {
		return err
	}
	now := p.deps.Clock.NowMilli()
	if err := d.WriteTimestamp(dataset.Pending, activeTs, now); err != nil {
		return err
	}
	if err := d.WriteTlv(dataset.TypeDelayTimer, beBytes32(clampDelay(leaderMinDelayMillis)), now); err != nil {
		return err
	}
	if err := p.localSave(d); err != nil {
		return err
	}
	return p.StartDelayTimer(d)
}

// StartLeader is called once when this device becomes Leader: it
// re-arms the delay timer from whatever Pending Dataset is already
// persisted (spec.md §12 supplemented feature 6).
func (p *PendingDatasetManager) StartLeader(ctx context.Context) error {
	return p.StartDelayTimer(nil)
}
