// Copyright 2025 walteh LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"gitlab.com/tozd/go/errors"
)

const (
	DriverMongo  = "mongo"
	DriverSQLite = "sqlite"

	DefaultTestBatch   = "proquest2023071720-993578-gsd"
	DefaultServiceName = "etd-alma-drs-holding-service"
)

// 📚 Config represents the complete worker configuration
type Config struct {
	DataDir  string `json:"data_dir,omitempty" yaml:"data_dir,omitempty"`
	Instance string `json:"instance,omitempty" yaml:"instance,omitempty"`
	LogLevel string `json:"log_level,omitempty" yaml:"log_level,omitempty"`
	JobCode  string `json:"job_code,omitempty" yaml:"job_code,omitempty"`

	Alma      AlmaConfig      `json:"alma" yaml:"alma"`
	Dropbox   DropboxConfig   `json:"dropbox" yaml:"dropbox"`
	Store     StoreConfig     `json:"store" yaml:"store"`
	Broker    BrokerConfig    `json:"broker" yaml:"broker"`
	Health    HealthConfig    `json:"health" yaml:"health"`
	Telemetry TelemetryConfig `json:"telemetry" yaml:"telemetry"`
	Lock      LockConfig      `json:"lock" yaml:"lock"`
	Features  FeaturesConfig  `json:"features" yaml:"features"`
}

// 📖 AlmaConfig points at the catalog
type AlmaConfig struct {
	APIBase string `json:"api_base,omitempty" yaml:"api_base,omitempty" hcl:"api_base,optional"`
	APIKey  string `json:"api_key,omitempty" yaml:"api_key,omitempty" hcl:"api_key,optional"`
	SRUBase string `json:"sru_base,omitempty" yaml:"sru_base,omitempty" hcl:"sru_base,optional"`
	// Template is a path to a dropbox record template; the built-in one is used when empty
	Template  string `json:"template,omitempty" yaml:"template,omitempty" hcl:"template,optional"`
	TestBatch string `json:"test_batch,omitempty" yaml:"test_batch,omitempty" hcl:"test_batch,optional"`
	URNPrefix string `json:"urn_prefix,omitempty" yaml:"urn_prefix,omitempty" hcl:"urn_prefix,optional"`
}

// 📦 DropboxConfig selects and configures the dropbox transport
type DropboxConfig struct {
	Transport      string `json:"transport,omitempty" yaml:"transport,omitempty" hcl:"transport,optional"`
	Server         string `json:"server,omitempty" yaml:"server,omitempty" hcl:"server,optional"`
	User           string `json:"user,omitempty" yaml:"user,omitempty" hcl:"user,optional"`
	PrivateKeyPath string `json:"private_key_path,omitempty" yaml:"private_key_path,omitempty" hcl:"private_key_path,optional"`
	KnownHostsPath string `json:"known_hosts_path,omitempty" yaml:"known_hosts_path,omitempty" hcl:"known_hosts_path,optional"`
	Dir            string `json:"dir,omitempty" yaml:"dir,omitempty" hcl:"dir,optional"`
}

// 💾 StoreConfig selects the processing record store
type StoreConfig struct {
	Driver          string `json:"driver,omitempty" yaml:"driver,omitempty" hcl:"driver,optional"`
	MongoURL        string `json:"mongo_url,omitempty" yaml:"mongo_url,omitempty" hcl:"mongo_url,optional"`
	MongoDB         string `json:"mongo_db,omitempty" yaml:"mongo_db,omitempty" hcl:"mongo_db,optional"`
	MongoCollection string `json:"mongo_collection,omitempty" yaml:"mongo_collection,omitempty" hcl:"mongo_collection,optional"`
	SQLitePath      string `json:"sqlite_path,omitempty" yaml:"sqlite_path,omitempty" hcl:"sqlite_path,optional"`
}

type BrokerConfig struct {
	URL          string `json:"url,omitempty" yaml:"url,omitempty" hcl:"url,optional"`
	ConsumeQueue string `json:"consume_queue,omitempty" yaml:"consume_queue,omitempty" hcl:"consume_queue,optional"`
	PublishQueue string `json:"publish_queue,omitempty" yaml:"publish_queue,omitempty" hcl:"publish_queue,optional"`
	Concurrency  int    `json:"concurrency,omitempty" yaml:"concurrency,omitempty" hcl:"concurrency,optional"`
	// DrainSeconds is how long running tasks may finish after shutdown starts
	DrainSeconds int `json:"drain_seconds,omitempty" yaml:"drain_seconds,omitempty" hcl:"drain_seconds,optional"`
}

type HealthConfig struct {
	HeartbeatFile   string  `json:"heartbeat_file,omitempty" yaml:"heartbeat_file,omitempty" hcl:"heartbeat_file,optional"`
	ReadinessFile   string  `json:"readiness_file,omitempty" yaml:"readiness_file,omitempty" hcl:"readiness_file,optional"`
	IntervalSeconds float64 `json:"interval_seconds,omitempty" yaml:"interval_seconds,omitempty" hcl:"interval_seconds,optional"`
	// Listen enables the http endpoints, e.g. ":8080"
	Listen string `json:"listen,omitempty" yaml:"listen,omitempty" hcl:"listen,optional"`
}

type TelemetryConfig struct {
	Endpoint    string `json:"endpoint,omitempty" yaml:"endpoint,omitempty" hcl:"endpoint,optional"`
	ServiceName string `json:"service_name,omitempty" yaml:"service_name,omitempty" hcl:"service_name,optional"`
}

// 🔒 LockConfig enables the per-identifier run lock when RedisAddr is set
type LockConfig struct {
	RedisAddr     string `json:"redis_addr,omitempty" yaml:"redis_addr,omitempty" hcl:"redis_addr,optional"`
	RedisPassword string `json:"redis_password,omitempty" yaml:"redis_password,omitempty" hcl:"redis_password,optional"`
	RedisDB       int    `json:"redis_db,omitempty" yaml:"redis_db,omitempty" hcl:"redis_db,optional"`
	TTLSeconds    int    `json:"ttl_seconds,omitempty" yaml:"ttl_seconds,omitempty" hcl:"ttl_seconds,optional"`
}

type FeaturesConfig struct {
	RoutingEnabled bool `json:"routing_enabled,omitempty" yaml:"routing_enabled,omitempty" hcl:"routing_enabled,optional"`
	// Async runs workflows on their own goroutine so a cancelled task returns promptly
	Async bool `json:"async,omitempty" yaml:"async,omitempty" hcl:"async,optional"`
}

// 🔧 Defaults fills every unset field that has a sensible default
func (cfg *Config) Defaults() {
	if cfg.DataDir == "" {
		cfg.DataDir = "."
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "warn"
	}
	if cfg.Alma.TestBatch == "" {
		cfg.Alma.TestBatch = DefaultTestBatch
	}
	if cfg.Dropbox.Transport == "" {
		cfg.Dropbox.Transport = "sftp"
	}
	if cfg.Store.Driver == "" {
		cfg.Store.Driver = DriverSQLite
		if cfg.Store.MongoURL != "" {
			cfg.Store.Driver = DriverMongo
		}
	}
	if cfg.Store.Driver == DriverSQLite && cfg.Store.SQLitePath == "" {
		cfg.Store.SQLitePath = filepath.Join(cfg.DataDir, "drsholding.db")
	}
	if cfg.Broker.Concurrency <= 0 {
		cfg.Broker.Concurrency = 1
	}
	if cfg.Broker.DrainSeconds <= 0 {
		cfg.Broker.DrainSeconds = 300
	}
	if cfg.Health.HeartbeatFile == "" {
		cfg.Health.HeartbeatFile = "/tmp/worker_heartbeat"
	}
	if cfg.Health.ReadinessFile == "" {
		cfg.Health.ReadinessFile = "/tmp/worker_ready"
	}
	if cfg.Health.IntervalSeconds <= 0 {
		cfg.Health.IntervalSeconds = 15
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = DefaultServiceName
	}
	if cfg.Lock.TTLSeconds <= 0 {
		cfg.Lock.TTLSeconds = 900
	}
}

// 🔍 Validate checks what every command needs
func (cfg *Config) Validate() error {
	if strings.TrimSpace(cfg.DataDir) == "" {
		return errors.Errorf("data_dir is required")
	}
	switch cfg.Store.Driver {
	case DriverMongo:
		if cfg.Store.MongoURL == "" {
			return errors.Errorf("store.mongo_url is required for the mongo driver")
		}
		if cfg.Store.MongoDB == "" {
			return errors.Errorf("store.mongo_db is required for the mongo driver")
		}
		if cfg.Store.MongoCollection == "" {
			return errors.Errorf("store.mongo_collection is required for the mongo driver")
		}
	case DriverSQLite:
		if cfg.Store.SQLitePath == "" {
			return errors.Errorf("store.sqlite_path is required for the sqlite driver")
		}
	default:
		return errors.Errorf("unknown store driver %q, options: %s, %s", cfg.Store.Driver, DriverMongo, DriverSQLite)
	}
	if cfg.Broker.Concurrency < 1 {
		return errors.Errorf("broker.concurrency must be at least 1")
	}
	return nil
}

// RequireCatalog checks the settings the api workflow needs
func (cfg *Config) RequireCatalog() error {
	if cfg.Alma.APIBase == "" {
		return errors.Errorf("alma.api_base is required")
	}
	if cfg.Alma.APIKey == "" {
		return errors.Errorf("alma.api_key is required")
	}
	if cfg.Alma.SRUBase == "" {
		return errors.Errorf("alma.sru_base is required")
	}
	return nil
}

// RequireDropbox checks the settings the configured transport needs
func (cfg *Config) RequireDropbox() error {
	switch cfg.Dropbox.Transport {
	case "sftp":
		if cfg.Dropbox.Server == "" {
			return errors.Errorf("dropbox.server is required for sftp")
		}
		if cfg.Dropbox.User == "" {
			return errors.Errorf("dropbox.user is required for sftp")
		}
		if cfg.Dropbox.PrivateKeyPath == "" {
			return errors.Errorf("dropbox.private_key_path is required for sftp")
		}
	case "local":
		if cfg.Dropbox.Dir == "" {
			return errors.Errorf("dropbox.dir is required for the local transport")
		}
	}
	return nil
}

// RequireBroker checks the settings the worker needs
func (cfg *Config) RequireBroker() error {
	if cfg.Broker.URL == "" {
		return errors.Errorf("broker.url is required")
	}
	if cfg.Broker.ConsumeQueue == "" {
		return errors.Errorf("broker.consume_queue is required")
	}
	if cfg.Broker.PublishQueue == "" {
		return errors.Errorf("broker.publish_queue is required")
	}
	return nil
}

func (cfg *Config) HeartbeatInterval() time.Duration {
	return time.Duration(cfg.Health.IntervalSeconds * float64(time.Second))
}

func (cfg *Config) DrainTimeout() time.Duration {
	return time.Duration(cfg.Broker.DrainSeconds) * time.Second
}

func (cfg *Config) LockTTL() time.Duration {
	return time.Duration(cfg.Lock.TTLSeconds) * time.Second
}

// 📝 String returns a one-line summary without secrets
func (cfg *Config) String() string {
	instance := cfg.Instance
	if instance == "" {
		instance = "-"
	}
	return fmt.Sprintf("instance=%s data_dir=%s store=%s dropbox=%s routing=%t", instance, cfg.DataDir, cfg.Store.Driver, cfg.Dropbox.Transport, cfg.Features.RoutingEnabled)
}
