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
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/facebook/meshcop/dataset"
	"github.com/facebook/meshcop/platform"
	"github.com/facebook/meshcop/tlv"
	"github.com/facebook/meshcop/transport"
)

// defaultNetworkNamePrefix is the NetworkName prefix both the
// start_leader default dataset and CreateNewNetwork's random one build
// from (dataset_manager_ftd.cpp's kNetworkNamePrefix).
const defaultNetworkNamePrefix = "MeshCoP"

// ActiveDatasetManager is C5: the DatasetManager specialization that
// owns the currently-in-effect network configuration.
type ActiveDatasetManager struct {
	Base
	leaderMinDelay uint32
}

// NewActiveDatasetManager constructs an ActiveDatasetManager. leaderMinDelay
// is the minimum DelayTimer (ms) this device enforces when acting as
// leader (spec.md §4.4.3 step 6).
func NewActiveDatasetManager(deps Deps, leaderMinDelay uint32) *ActiveDatasetManager {
	return &ActiveDatasetManager{
		Base:           newBase(dataset.Active, platform.SettingsActiveDataset, deps),
		leaderMinDelay: leaderMinDelay,
	}
}

// ApplyConfiguration pushes the current Active Dataset's parameters to
// the radio. WakeupChannel is only forwarded when the radio reports
// wake-up support (spec.md §9 Open Question 1 resolution; see
// DESIGN.md).
func (a *ActiveDatasetManager) ApplyConfiguration() error {
	var d dataset.Dataset
	if err := a.Read(&d); err != nil {
		return err
	}
	info := d.ToInfo()
	if !a.deps.Radio.SupportsWakeup() {
		info.HasWakeupChannel = false
	}
	if err := a.deps.Radio.Apply(info); err != nil {
		return fmt.Errorf("applying active configuration: %w", err)
	}
	return nil
}

// Save is the leader/arbiter entry point for the Active Dataset,
// applying the accepted configuration to the radio whenever the
// network timestamp advances. As in ApplyConfiguration, WakeupChannel
// is only forwarded when the radio reports wake-up support.
func (a *ActiveDatasetManager) Save(ctx context.Context, d *dataset.Dataset, allowOlderTimestamp bool) error {
	return a.Base.Save(ctx, d, allowOlderTimestamp, func(info dataset.Info) error {
		if !a.deps.Radio.SupportsWakeup() {
			info.HasWakeupChannel = false
		}
		return a.deps.Radio.Apply(info)
	})
}

// SaveLocal is the local/user entry point for the Active Dataset.
func (a *ActiveDatasetManager) SaveLocal(ctx context.Context, d *dataset.Dataset) error {
	if err := a.Base.SaveLocal(ctx, d, transport.URIActiveSet); err != nil {
		return err
	}
	if a.deps.Mle.Role() == platform.RoleLeader {
		return a.ApplyConfiguration()
	}
	return nil
}

// IsPartiallyComplete reports whether a Dataset has been locally saved
// but its network timestamp has never been confirmed valid.
func (a *ActiveDatasetManager) IsPartiallyComplete() bool {
	return a.IsLocalSaved() && !a.networkTimestampValid()
}

// IsComplete reports whether a Dataset has been both locally saved and
// its network timestamp confirmed.
func (a *ActiveDatasetManager) IsComplete() bool {
	return a.IsLocalSaved() && a.networkTimestampValid()
}

func (a *ActiveDatasetManager) networkTimestampValid() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.networkTimestamp.IsValid()
}

// IsCommissioned reports whether the Active Dataset exists and carries
// the five TLVs needed to join the network: NetworkKey, NetworkName,
// ExtendedPanId, PanId, and Channel.
func (a *ActiveDatasetManager) IsCommissioned() bool {
	var d dataset.Dataset
	if err := a.Read(&d); err != nil {
		return false
	}
	return d.ContainsAllTlvs([]tlv.Type{
		dataset.TypeNetworkKey,
		dataset.TypeNetworkName,
		dataset.TypeExtendedPanID,
		dataset.TypePanID,
		dataset.TypeChannel,
	})
}

// ChannelMask reports the Active Dataset's ChannelMask TLV intersected
// with the radio's supported channels. ErrNotFound if the intersection
// is empty or no Active Dataset exists (spec.md §12 supplemented
// feature 3 / dataset_manager.cpp GetChannelMask).
func (a *ActiveDatasetManager) ChannelMask(ctx context.Context) (uint32, error) {
	var d dataset.Dataset
	if err := a.Read(&d); err != nil {
		return 0, err
	}
	info := d.ToInfo()
	if !info.HasChannelMask {
		return 0, dataset.ErrNotFound
	}
	mask := info.ChannelMask & a.deps.Radio.SupportedChannelMask()
	if mask == 0 {
		return 0, dataset.ErrNotFound
	}
	return mask, nil
}

// StartLeader is called once when this device becomes Leader. If no
// Active Dataset exists yet, it synthesizes a default one (spec.md §4.5
// / dataset_manager_ftd.cpp GenerateLocal) and local-saves it; if one
// exists already, it is simply applied to the radio.
func (a *ActiveDatasetManager) StartLeader(ctx context.Context) error {
	var d dataset.Dataset
	if err := a.Read(&d); err == nil {
		return a.ApplyConfiguration()
	}

	info := generateDefaultActiveDataset(a.deps)
	if err := d.SetFromInfo(info, a.deps.Clock.NowMilli()); err != nil {
		return err
	}
	log.Infof("meshcop: active manager generating default dataset on leader start")
	if err := a.localSave(&d); err != nil {
		return err
	}
	return a.ApplyConfiguration()
}

// generateDefaultActiveDataset synthesizes a brand-new Active Dataset
// when none exists, per dataset_manager_ftd.cpp's GenerateLocal: an
// ActiveTimestamp of (1, 0, authoritative), a single supported channel,
// the radio's full supported channel mask, and randomly generated
// network identity fields.
func generateDefaultActiveDataset(deps Deps) dataset.Info {
	mask := deps.Radio.SupportedChannelMask()
	channel := firstSetChannel(mask)
	extPanID, meshPrefix, networkKey, pskc := randomIdentityFields(deps.RNG)

	return dataset.Info{
		HasActiveTimestamp: true, ActiveTimestamp: dataset.Timestamp{Seconds: 1, Authoritative: true},
		HasChannel: true, Channel: channel,
		HasChannelMask: true, ChannelMask: mask,
		HasExtendedPanID: true, ExtendedPanID: extPanID,
		HasMeshLocalPrefix: true, MeshLocalPrefix: meshPrefix,
		HasNetworkKey: true, NetworkKey: networkKey,
		HasNetworkName: true, NetworkName: defaultNetworkNamePrefix,
		HasPanID: true, PanID: randomPanID(deps.RNG),
		HasPskc: true, Pskc: pskc,
		HasSecurityPolicy: true, SecurityPolicy: dataset.SecurityPolicy{
			RotationTime: 672,
			Flags:        dataset.DefaultSecurityPolicyFlags(deps.ThreadVersion),
		},
	}
}

// CreateNewNetwork produces a fresh, fully-random candidate Active
// Dataset (spec.md §4.5 create_new_network / Info::GenerateRandom): the
// Channel is drawn from the radio's preferred channels intersected with
// its supported ones, falling back to the full supported set if that
// intersection is empty; WakeupChannel is drawn independently from the
// supported set; every identity field is freshly randomized; and
// NetworkName encodes the chosen PanId so two independently generated
// networks are easy to tell apart at a glance. It does not save or
// apply anything -- callers convert the result with Dataset.SetFromInfo
// and pass that to SaveLocal.
func (a *ActiveDatasetManager) CreateNewNetwork() dataset.Info {
	return generateRandomActiveDataset(a.deps)
}

func generateRandomActiveDataset(deps Deps) dataset.Info {
	supported := deps.Radio.SupportedChannelMask()
	channelMask := deps.Radio.PreferredChannelMask() & supported
	if channelMask == 0 {
		channelMask = supported
	}
	channel := randomSetChannel(deps.RNG, channelMask)
	wakeupChannel := randomSetChannel(deps.RNG, supported)
	extPanID, meshPrefix, networkKey, pskc := randomIdentityFields(deps.RNG)
	panID := randomPanID(deps.RNG)

	return dataset.Info{
		HasActiveTimestamp: true, ActiveTimestamp: dataset.Timestamp{Seconds: 1, Authoritative: false},
		HasChannel: true, Channel: channel,
		HasWakeupChannel: true, WakeupChannel: wakeupChannel,
		HasChannelMask: true, ChannelMask: supported,
		HasExtendedPanID: true, ExtendedPanID: extPanID,
		HasMeshLocalPrefix: true, MeshLocalPrefix: meshPrefix,
		HasNetworkKey: true, NetworkKey: networkKey,
		HasNetworkName: true, NetworkName: fmt.Sprintf("%s-%04x", defaultNetworkNamePrefix, panID),
		HasPanID: true, PanID: panID,
		HasPskc: true, Pskc: pskc,
		HasSecurityPolicy: true, SecurityPolicy: dataset.SecurityPolicy{
			RotationTime: 672,
			Flags:        dataset.DefaultSecurityPolicyFlags(deps.ThreadVersion),
		},
	}
}

// randomIdentityFields draws the network-identity byte fields every
// freshly synthesized Active Dataset needs: a random ExtendedPanId,
// NetworkKey, and Pskc, plus a random ULA MeshLocalPrefix (the
// fd00::/8 locally-assigned range with the global ID randomized).
func randomIdentityFields(rng platform.RNG) (extPanID, meshPrefix [8]byte, networkKey, pskc [16]byte) {
	fillRandom(rng, extPanID[:])
	fillRandom(rng, networkKey[:])
	fillRandom(rng, pskc[:])
	meshPrefix[0] = 0xfd
	fillRandom(rng, meshPrefix[1:7])
	meshPrefix[7] = 0x00
	return extPanID, meshPrefix, networkKey, pskc
}

func firstSetChannel(mask uint32) uint16 {
	for ch := uint16(11); ch <= 26; ch++ {
		if mask&(1<<ch) != 0 {
			return ch
		}
	}
	return 11
}

// randomSetChannel picks a uniformly random channel among those set in
// mask (channels 11-26), falling back to channel 11 if mask is empty.
func randomSetChannel(rng platform.RNG, mask uint32) uint16 {
	var channels []uint16
	for ch := uint16(11); ch <= 26; ch++ {
		if mask&(1<<ch) != 0 {
			channels = append(channels, ch)
		}
	}
	if len(channels) == 0 {
		return 11
	}
	return channels[rng.Uint32()%uint32(len(channels))]
}

func fillRandom(rng platform.RNG, b []byte) {
	for i := 0; i < len(b); i += 4 {
		v := rng.Uint32()
		for j := 0; j < 4 && i+j < len(b); j++ {
			b[i+j] = byte(v >> (8 * uint(j)))
		}
	}
}

func randomPanID(rng platform.RNG) uint16 {
	v := uint16(rng.Uint32())
	if v == 0xFFFF {
		v = 0x1234
	}
	return v
}
