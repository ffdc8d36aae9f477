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

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadDynamicConfigAppliesDefaultsAndOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dynamic.yaml")
	require.NoError(t, os.WriteFile(path, []byte("leader_min_delay_millis: 1000\n"), 0644))

	dc, err := ReadDynamicConfig(path)
	require.NoError(t, err)
	assert.Equal(t, uint32(1000), dc.LeaderMinDelayMillis)
	assert.Equal(t, uint16(672), dc.DefaultSecurityPolicyRotation)
}

func TestReadDynamicConfigRejectsZeroLeaderDelay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dynamic.yaml")
	require.NoError(t, os.WriteFile(path, []byte("leader_min_delay_millis: 0\n"), 0644))

	_, err := ReadDynamicConfig(path)
	assert.Error(t, err)
}

func TestDynamicConfigWriteRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dynamic.yaml")
	dc := &DynamicConfig{LeaderMinDelayMillis: 42000, DefaultSecurityPolicyRotation: 100, DefaultChannelMask: 0xFF}
	require.NoError(t, dc.Write(path))

	got, err := ReadDynamicConfig(path)
	require.NoError(t, err)
	assert.Equal(t, dc, got)
}

func TestWatcherReloadsOnFileChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dynamic.yaml")
	require.NoError(t, os.WriteFile(path, []byte("leader_min_delay_millis: 1000\n"), 0644))

	w, err := WatchDynamicConfig(path)
	require.NoError(t, err)
	defer w.Close()
	assert.Equal(t, uint32(1000), w.Current().LeaderMinDelayMillis)

	require.NoError(t, os.WriteFile(path, []byte("leader_min_delay_millis: 5000\n"), 0644))

	require.Eventually(t, func() bool {
		return w.Current().LeaderMinDelayMillis == 5000
	}, 2*time.Second, 10*time.Millisecond)
}
