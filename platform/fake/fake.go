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

// Package fake provides in-memory implementations of every
// platform.* port, used by manager/updater tests in place of real
// radio, settings, secure storage, and randomness.
package fake

import (
	"sync"

	"github.com/facebook/meshcop/dataset"
	"github.com/facebook/meshcop/platform"
)

// Settings is an in-memory platform.Settings.
type Settings struct {
	mu   sync.Mutex
	data map[platform.SettingsKey][]byte
}

// NewSettings returns an empty in-memory settings store.
func NewSettings() *Settings {
	return &Settings{data: map[platform.SettingsKey][]byte{}}
}

func (s *Settings) Read(key platform.SettingsKey) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[key]
	return v, ok
}

func (s *Settings) Save(key platform.SettingsKey, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := append([]byte{}, value...)
	s.data[key] = cp
	return nil
}

func (s *Settings) Delete(key platform.SettingsKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
}

// SecureStore is an in-memory platform.SecureStore. EnabledFlag
// controls whether it reports itself as available, so tests can
// exercise the "first boot after enabling secure storage" migration
// path by flipping it mid-test.
type SecureStore struct {
	mu          sync.Mutex
	EnabledFlag bool
	keys        map[platform.SecureKeyRef][]byte
}

// NewSecureStore returns an in-memory secure store, enabled by default.
func NewSecureStore() *SecureStore {
	return &SecureStore{EnabledFlag: true, keys: map[platform.SecureKeyRef][]byte{}}
}

func (s *SecureStore) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.EnabledFlag
}

func (s *SecureStore) Import(ref platform.SecureKeyRef, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys[ref] = append([]byte{}, value...)
	return nil
}

func (s *SecureStore) Export(ref platform.SecureKeyRef) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.keys[ref]
	return v, ok
}

func (s *SecureStore) Destroy(ref platform.SecureKeyRef) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.keys, ref)
}

// Clock is a settable fake platform.Clock.
type Clock struct {
	mu  sync.Mutex
	now int64
}

// NewClock returns a Clock starting at the given unix-millisecond time.
func NewClock(start int64) *Clock { return &Clock{now: start} }

func (c *Clock) NowMilli() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the fake clock forward by deltaMillis.
func (c *Clock) Advance(deltaMillis int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now += deltaMillis
}

// RNG is a deterministic fake platform.RNG for reproducible tests.
type RNG struct {
	mu   sync.Mutex
	next uint32
}

// NewRNG returns an RNG that always returns the given value.
func NewRNG(value uint32) *RNG { return &RNG{next: value} }

func (r *RNG) Uint32() uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.next = r.next*1664525 + 1013904223 // deterministic LCG step
	return r.next
}

// Radio is an in-memory platform.Radio that records every applied
// Info and reports a fixed supported channel mask / wake-up capability.
type Radio struct {
	mu            sync.Mutex
	Applied       []dataset.Info
	SupportedMask uint32
	PreferredMask uint32
	WakeupCapable bool
	ApplyErr      error
}

// NewRadio returns a Radio supporting channels 11-26 (mask bits 11..26).
func NewRadio() *Radio {
	return &Radio{SupportedMask: 0x07FFF800}
}

func (r *Radio) Apply(info dataset.Info) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ApplyErr != nil {
		return r.ApplyErr
	}
	r.Applied = append(r.Applied, info)
	return nil
}

func (r *Radio) SupportedChannelMask() uint32 { return r.SupportedMask }
func (r *Radio) PreferredChannelMask() uint32 { return r.PreferredMask }
func (r *Radio) SupportsWakeup() bool         { return r.WakeupCapable }

// LastApplied returns the most recently applied Info, if any.
func (r *Radio) LastApplied() (dataset.Info, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.Applied) == 0 {
		return dataset.Info{}, false
	}
	return r.Applied[len(r.Applied)-1], true
}

// Mle is a settable fake platform.Mle.
type Mle struct {
	mu   sync.Mutex
	role platform.Role
}

// NewMle returns an Mle fake starting in the given role.
func NewMle(role platform.Role) *Mle { return &Mle{role: role} }

func (m *Mle) Role() platform.Role {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.role
}

// SetRole updates the fake's reported role.
func (m *Mle) SetRole(role platform.Role) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.role = role
}

// Notifier is a synchronous in-memory platform.Notifier: Emit calls
// every subscriber inline, matching the single-threaded event-loop
// model spec.md §5 describes (no goroutine pool, no queue).
type Notifier struct {
	mu   sync.Mutex
	subs []func(platform.EventKind)
}

// NewNotifier returns an empty Notifier.
func NewNotifier() *Notifier { return &Notifier{} }

func (n *Notifier) Emit(kind platform.EventKind) {
	n.mu.Lock()
	subs := append([]func(platform.EventKind){}, n.subs...)
	n.mu.Unlock()
	for _, fn := range subs {
		fn(kind)
	}
}

func (n *Notifier) Subscribe(fn func(platform.EventKind)) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.subs = append(n.subs, fn)
}
