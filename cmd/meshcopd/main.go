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

// meshcopd wires the Active/Pending dataset managers, the leader
// decision logic, and the DatasetUpdater into a long-running process,
// the same role cmd/ptp4u/main.go plays for the PTP server: parse
// flags into a Config, validate it, start the monitoring endpoint, and
// run until told to stop. Where ptp4u opens a real UDP socket, meshcopd
// operates the in-memory transport.Fake (actual CoAP/DTLS/mesh
// addressing is an explicit Non-goal of the dataset subsystem, per
// platform.go's and transport.go's package docs), so this binary is a
// runnable reference for the state machine rather than a deployable
// Thread stack.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/daemon"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/facebook/meshcop/config"
	"github.com/facebook/meshcop/manager"
	"github.com/facebook/meshcop/metrics"
	"github.com/facebook/meshcop/platform"
	"github.com/facebook/meshcop/platform/fake"
	"github.com/facebook/meshcop/transport"
	"github.com/facebook/meshcop/updater"
)

var rootCmd = &cobra.Command{
	Use:   "meshcopd",
	Short: "MeshCoP Operational Dataset daemon",
	RunE:  run,
}

func init() {
	config.BindFlags(rootCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "meshcopd: %v\n", err)
		os.Exit(1)
	}
}

func run(_ *cobra.Command, _ []string) error {
	sc, err := config.LoadStatic()
	if err != nil {
		return err
	}
	if err := sc.SetLogLevel(); err != nil {
		return err
	}

	var dc *config.DynamicConfig
	var watcher *config.Watcher
	if sc.ConfigFile != "" {
		watcher, err = config.WatchDynamicConfig(sc.ConfigFile)
		if err != nil {
			return fmt.Errorf("loading dynamic config: %w", err)
		}
		defer watcher.Close()
		dc = watcher.Current()
	} else {
		dc = config.DefaultDynamicConfig()
	}

	if err := writePidFile(sc.PidFile); err != nil {
		log.Warningf("meshcop: failed writing pidfile %s: %v", sc.PidFile, err)
	} else {
		defer os.Remove(sc.PidFile)
	}

	// The underlying radio, settings store, secure key store, and
	// randomness source are all explicit Non-goals (platform.go's
	// package doc): this binary stands them up as the package's
	// in-memory fakes, making it a runnable demonstration of the state
	// machine rather than a real Thread device.
	settings := fake.NewSettings()
	secure := fake.NewSecureStore()
	clock := fake.NewClock(time.Now().UnixMilli())
	rng := fake.NewRNG(uint32(time.Now().UnixNano()))
	radio := fake.NewRadio()
	mle := fake.NewMle(platform.RoleLeader)
	notifier := fake.NewNotifier()
	tr := transport.NewFake()

	deps := manager.Deps{
		Settings:    settings,
		SecureStore: secure,
		Clock:       clock,
		RNG:         rng,
		Radio:       radio,
		Mle:         mle,
		Notifier:    notifier,
		Transport:   tr,

		ThreadVersion: dc.ThreadVersion,
	}

	active := manager.NewActiveDatasetManager(deps, dc.LeaderMinDelayMillis)
	pending := manager.NewPendingDatasetManager(deps, active)
	active.Restore()
	pending.Restore()

	m := metrics.New()

	leader := manager.NewLeader(active, pending)
	leader.SetMetrics(m)
	leader.RegisterHandlers(tr)

	upd := updater.NewUpdater(updater.Deps{
		Active:   active,
		Pending:  pending,
		Mle:      mle,
		RNG:      rng,
		Clock:    clock,
		Notifier: notifier,
	})
	log.Debugf("meshcop: dataset updater ready, update-ongoing=%v", upd.IsUpdateOngoing())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if mle.Role() == platform.RoleLeader {
		if err := active.StartLeader(ctx); err != nil {
			return fmt.Errorf("starting active manager as leader: %w", err)
		}
		if err := pending.StartLeader(ctx); err != nil {
			return fmt.Errorf("starting pending manager as leader: %w", err)
		}
	}

	if ok, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		log.Warningf("meshcop: sd_notify failed: %v", err)
	} else if !ok {
		log.Debug("meshcop: sd_notify not supported (NOTIFY_SOCKET unset)")
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return m.ListenAndServe(fmt.Sprintf(":%d", sc.MonitoringPort))
	})
	g.Go(func() error {
		return waitForSignal(gctx)
	})

	log.Infof("meshcop: meshcopd running, interface=%s monitoring-port=%d", sc.Interface, sc.MonitoringPort)
	return g.Wait()
}

func waitForSignal(ctx context.Context) error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		log.Infof("meshcop: received %s, shutting down", sig)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func writePidFile(path string) error {
	if path == "" {
		return nil
	}
	return os.WriteFile(path, []byte(fmt.Sprintf("%d\n", os.Getpid())), 0644)
}
