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

// Package config splits meshcopd's settings into a StaticConfig (bound
// from cobra flags/environment through viper, fixed for the process's
// lifetime) and a DynamicConfig (a YAML file, hot-reloaded with
// fsnotify), mirroring ptp4u/server's StaticConfig/DynamicConfig split
// and armandParser-gofast-server's viper binding idiom.
package config

import (
	"fmt"
	"os"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v2"

	"github.com/fsnotify/fsnotify"
)

// StaticConfig holds the settings that require a daemon restart to
// change: where it listens, what it persists to, and how it logs.
type StaticConfig struct {
	Interface      string `mapstructure:"interface"`
	MonitoringPort int    `mapstructure:"monitoring_port"`
	PidFile        string `mapstructure:"pidfile"`
	ConfigFile     string `mapstructure:"config"`
	LogLevel       string `mapstructure:"log_level"`
}

// DefaultStaticConfig returns the baseline StaticConfig, the same
// values BindFlags registers as flag defaults.
func DefaultStaticConfig() *StaticConfig {
	return &StaticConfig{
		Interface:      "wpan0",
		MonitoringPort: 8888,
		PidFile:        "/var/run/meshcopd.pid",
		LogLevel:       "info",
	}
}

// BindFlags registers meshcopd's static settings as persistent flags on
// cmd and binds each one into viper, following
// armandParser-gofast-server's cmd.go pattern of one PersistentFlags()
// call plus one viper.BindPFlag per field.
func BindFlags(cmd *cobra.Command) {
	d := DefaultStaticConfig()
	flags := cmd.PersistentFlags()
	flags.String("interface", d.Interface, "mesh network interface to operate on")
	flags.Int("monitoring-port", d.MonitoringPort, "port to serve Prometheus metrics on")
	flags.String("pidfile", d.PidFile, "pid file location")
	flags.String("config", d.ConfigFile, "path to the dynamic settings YAML file")
	flags.String("log-level", d.LogLevel, "log level: debug, info, warning, error")

	viper.BindPFlag("interface", flags.Lookup("interface"))
	viper.BindPFlag("monitoring_port", flags.Lookup("monitoring-port"))
	viper.BindPFlag("pidfile", flags.Lookup("pidfile"))
	viper.BindPFlag("config", flags.Lookup("config"))
	viper.BindPFlag("log_level", flags.Lookup("log-level"))

	viper.SetEnvPrefix("MESHCOPD")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

// LoadStatic unmarshals viper's current bound values (flags, env, and
// any config file previously read with viper.ReadInConfig) into a
// StaticConfig.
func LoadStatic() (*StaticConfig, error) {
	c := DefaultStaticConfig()
	if err := viper.Unmarshal(c); err != nil {
		return nil, fmt.Errorf("unmarshaling static config: %w", err)
	}
	return c, nil
}

// SetLogLevel applies LogLevel to logrus, matching cmd/ptp4u/main.go's
// switch on c.LogLevel.
func (c *StaticConfig) SetLogLevel() error {
	lvl, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		return fmt.Errorf("unrecognized log level %q: %w", c.LogLevel, err)
	}
	log.SetLevel(lvl)
	return nil
}

// DynamicConfig holds the settings kept in the watched YAML file: the
// leader's minimum enforced DelayTimer, a default Security Policy
// rotation time, a default channel mask, and the Thread version.
// meshcopd reads it once at startup; a later reload does not reach the
// managers already constructed. Mirrors ptp4u/server.DynamicConfig.
type DynamicConfig struct {
	// LeaderMinDelayMillis is the minimum DelayTimer (ms) this device
	// enforces for a connectivity-affecting change while acting as
	// leader (spec.md §4.4.3 step 6).
	LeaderMinDelayMillis uint32 `yaml:"leader_min_delay_millis"`
	// DefaultSecurityPolicyRotation is a Security Policy rotation time
	// (in units of hours). meshcopd does not pass it to the managers:
	// a generated default Active Dataset always uses 672 hours.
	DefaultSecurityPolicyRotation uint16 `yaml:"default_security_policy_rotation"`
	// DefaultChannelMask is a channel mask setting. meshcopd does not
	// pass it to the managers: a generated default Active Dataset
	// advertises the radio's full supported mask.
	DefaultChannelMask uint32 `yaml:"default_channel_mask"`
	// ThreadVersion is this device's Thread protocol version string,
	// fed into manager.Deps.ThreadVersion to pick the SecurityPolicy
	// flags width (dataset.DefaultSecurityPolicyFlags).
	ThreadVersion string `yaml:"thread_version"`
}

// DefaultDynamicConfig returns the baseline DynamicConfig used when no
// config file is supplied.
func DefaultDynamicConfig() *DynamicConfig {
	return &DynamicConfig{
		LeaderMinDelayMillis:          300000, // 5 minutes, matches manager.kDefaultDelayTimer
		DefaultSecurityPolicyRotation: 672,
		DefaultChannelMask:            0x07FFF800, // channels 11-26
		ThreadVersion:                 "1.3.0",
	}
}

// ReadDynamicConfig loads and validates a DynamicConfig from a YAML
// file, the same shape as ptp4u/server.ReadDynamicConfig.
func ReadDynamicConfig(path string) (*DynamicConfig, error) {
	dc := DefaultDynamicConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, dc); err != nil {
		return nil, err
	}
	if dc.LeaderMinDelayMillis == 0 {
		return nil, fmt.Errorf("leader_min_delay_millis must be nonzero")
	}
	return dc, nil
}

// Write serializes dc back to path as YAML, the counterpart to
// ReadDynamicConfig (ptp4u/server.DynamicConfig.Write).
func (dc *DynamicConfig) Write(path string) error {
	data, err := yaml.Marshal(dc)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Watcher holds the live DynamicConfig and keeps it current by
// watching its backing file with fsnotify, the same hot-reload
// mechanism spec.md §10.3 calls for in place of ptp4u's
// restart-to-reload StaticConfig/DynamicConfig split.
type Watcher struct {
	path    string
	watcher *fsnotify.Watcher

	mu      sync.RWMutex
	current *DynamicConfig
}

// WatchDynamicConfig reads path once, then starts a background
// goroutine that reloads it on every write/create event fsnotify
// reports, logging and keeping the last-known-good config on a parse
// failure rather than tearing anything down.
func WatchDynamicConfig(path string) (*Watcher, error) {
	dc, err := ReadDynamicConfig(path)
	if err != nil {
		return nil, err
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("starting config watcher: %w", err)
	}
	if err := fw.Add(path); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watching %s: %w", path, err)
	}

	w := &Watcher{path: path, watcher: fw, current: dc}
	go w.loop()
	return w, nil
}

func (w *Watcher) loop() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			dc, err := ReadDynamicConfig(w.path)
			if err != nil {
				log.Warningf("meshcop: config watcher failed reloading %s, keeping previous settings: %v", w.path, err)
				continue
			}
			w.mu.Lock()
			w.current = dc
			w.mu.Unlock()
			log.Infof("meshcop: reloaded dynamic config from %s", w.path)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Warningf("meshcop: config watcher error: %v", err)
		}
	}
}

// Current returns the most recently loaded DynamicConfig.
func (w *Watcher) Current() *DynamicConfig {
	w.mu.RLock()
	defer w.mu.RUnlock()
	c := *w.current
	return &c
}

// Close stops the watcher goroutine and releases the underlying
// fsnotify.Watcher.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}
