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

package cmd

import (
	"context"
	"time"

	"github.com/facebook/meshcop/dataset"
	"github.com/facebook/meshcop/manager"
	"github.com/facebook/meshcop/platform"
	"github.com/facebook/meshcop/platform/fake"
)

// demoActiveDataset stands in for "the Active Dataset meshcopd
// currently holds". A real control-transport client is out of scope
// (transport.go's package doc: actual CoAP/DTLS wire framing is an
// explicit Non-goal), so show/debug demonstrate the same
// StartLeader/GenerateLocal path meshcopd itself runs on first boot
// (manager.ActiveDatasetManager.StartLeader), rather than rendering
// whatever happens to be in a remote process.
func demoActiveDataset() (dataset.Info, error) {
	settings := fake.NewSettings()
	secure := fake.NewSecureStore()
	clock := fake.NewClock(time.Now().UnixMilli())
	rng := fake.NewRNG(42)
	radio := fake.NewRadio()
	mle := fake.NewMle(platform.RoleLeader)
	notifier := fake.NewNotifier()

	deps := manager.Deps{
		Settings:    settings,
		SecureStore: secure,
		Clock:       clock,
		RNG:         rng,
		Radio:       radio,
		Mle:         mle,
		Notifier:    notifier,

		ThreadVersion: "1.3.0",
	}
	active := manager.NewActiveDatasetManager(deps, 300000)
	if err := active.StartLeader(context.Background()); err != nil {
		return dataset.Info{}, err
	}

	var d dataset.Dataset
	if err := active.Read(&d); err != nil {
		return dataset.Info{}, err
	}
	return d.ToInfo(), nil
}
