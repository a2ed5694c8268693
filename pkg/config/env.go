package config

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"gitlab.com/tozd/go/errors"
)

// envBinding ties a config key to the environment variables that can set it, highest precedence first
type envBinding struct {
	key    string
	envs   []string
	set    func(v *viper.Viper, key string)
	secret bool
}

func str(p *string) func(*viper.Viper, string) {
	return func(v *viper.Viper, key string) { *p = v.GetString(key) }
}

func integer(p *int) func(*viper.Viper, string) {
	return func(v *viper.Viper, key string) { *p = v.GetInt(key) }
}

func float(p *float64) func(*viper.Viper, string) {
	return func(v *viper.Viper, key string) { *p = v.GetFloat64(key) }
}

func boolean(p *bool) func(*viper.Viper, string) {
	return func(v *viper.Viper, key string) { *p = v.GetBool(key) }
}

func (cfg *Config) envBindings() []envBinding {
	return []envBinding{
		{key: "data_dir", envs: []string{"DATA_DIR"}, set: str(&cfg.DataDir)},
		{key: "instance", envs: []string{"INSTANCE"}, set: str(&cfg.Instance)},
		{key: "log_level", envs: []string{"APP_LOG_LEVEL"}, set: str(&cfg.LogLevel)},

		{key: "alma.api_base", envs: []string{"ALMA_API_BASE"}, set: str(&cfg.Alma.APIBase)},
		{key: "alma.api_key", envs: []string{"ALMA_API_KEY_2", "ALMA_API_KEY"}, set: str(&cfg.Alma.APIKey), secret: true},
		{key: "alma.sru_base", envs: []string{"ALMA_SRU_MARCXML_BASE"}, set: str(&cfg.Alma.SRUBase)},
		{key: "alma.template", envs: []string{"ALMA_MARCXML_DRSHOLDING_TEMPLATE"}, set: str(&cfg.Alma.Template)},
		{key: "alma.test_batch", envs: []string{"ALMA_TEST_BATCH_NAME"}, set: str(&cfg.Alma.TestBatch)},
		{key: "alma.urn_prefix", envs: []string{"ALMA_URN_PREFIX"}, set: str(&cfg.Alma.URNPrefix)},

		{key: "dropbox.transport", envs: []string{"DROPBOX_TRANSPORT"}, set: str(&cfg.Dropbox.Transport)},
		{key: "dropbox.server", envs: []string{"DROPBOX_SERVER"}, set: str(&cfg.Dropbox.Server)},
		{key: "dropbox.user", envs: []string{"DROPBOX_USER"}, set: str(&cfg.Dropbox.User)},
		{key: "dropbox.private_key_path", envs: []string{"PRIVATE_KEY_PATH"}, set: str(&cfg.Dropbox.PrivateKeyPath)},
		{key: "dropbox.known_hosts_path", envs: []string{"KNOWN_HOSTS_PATH"}, set: str(&cfg.Dropbox.KnownHostsPath)},
		{key: "dropbox.dir", envs: []string{"DROPBOX_DIR"}, set: str(&cfg.Dropbox.Dir)},

		{key: "store.driver", envs: []string{"STORE_DRIVER"}, set: str(&cfg.Store.Driver)},
		{key: "store.mongo_url", envs: []string{"MONGO_URL"}, set: str(&cfg.Store.MongoURL), secret: true},
		{key: "store.mongo_db", envs: []string{"MONGO_DB"}, set: str(&cfg.Store.MongoDB)},
		{key: "store.mongo_collection", envs: []string{"MONGO_COLLECTION"}, set: str(&cfg.Store.MongoCollection)},
		{key: "store.sqlite_path", envs: []string{"SQLITE_PATH"}, set: str(&cfg.Store.SQLitePath)},

		{key: "broker.url", envs: []string{"BROKER_URL"}, set: str(&cfg.Broker.URL), secret: true},
		{key: "broker.consume_queue", envs: []string{"CONSUME_QUEUE_NAME"}, set: str(&cfg.Broker.ConsumeQueue)},
		{key: "broker.publish_queue", envs: []string{"PUBLISH_QUEUE_NAME"}, set: str(&cfg.Broker.PublishQueue)},
		{key: "broker.concurrency", envs: []string{"WORKER_CONCURRENCY"}, set: integer(&cfg.Broker.Concurrency)},
		{key: "broker.drain_seconds", envs: []string{"WORKER_DRAIN_SECONDS"}, set: integer(&cfg.Broker.DrainSeconds)},

		{key: "health.heartbeat_file", envs: []string{"HEARTBEAT_FILE"}, set: str(&cfg.Health.HeartbeatFile)},
		{key: "health.readiness_file", envs: []string{"READINESS_FILE"}, set: str(&cfg.Health.ReadinessFile)},
		{key: "health.interval_seconds", envs: []string{"HEALTHCHECK_UPDATE_INTERVAL"}, set: float(&cfg.Health.IntervalSeconds)},
		{key: "health.listen", envs: []string{"HTTP_LISTEN"}, set: str(&cfg.Health.Listen)},

		{key: "telemetry.endpoint", envs: []string{"JAEGER_NAME"}, set: str(&cfg.Telemetry.Endpoint)},
		{key: "telemetry.service_name", envs: []string{"JAEGER_SERVICE_NAME"}, set: str(&cfg.Telemetry.ServiceName)},

		{key: "lock.redis_addr", envs: []string{"REDIS_ADDR"}, set: str(&cfg.Lock.RedisAddr)},
		{key: "lock.redis_password", envs: []string{"REDIS_PASSWORD"}, set: str(&cfg.Lock.RedisPassword), secret: true},
		{key: "lock.redis_db", envs: []string{"REDIS_DB"}, set: integer(&cfg.Lock.RedisDB)},

		{key: "features.routing_enabled", envs: []string{"ROUTING_ENABLED"}, set: boolean(&cfg.Features.RoutingEnabled)},
	}
}

// 🌍 OverlayEnv replaces config values whose environment variables are set
func OverlayEnv(ctx context.Context, cfg *Config) error {
	logger := zerolog.Ctx(ctx)
	v := viper.New()

	for _, b := range cfg.envBindings() {
		if err := v.BindEnv(append([]string{b.key}, b.envs...)...); err != nil {
			return errors.Errorf("binding %s: %w", b.key, err)
		}
		if !v.IsSet(b.key) {
			continue
		}
		b.set(v, b.key)

		ev := logger.Debug().Str("key", b.key)
		if !b.secret {
			ev = ev.Str("value", v.GetString(b.key))
		}
		ev.Msg("config value from environment")
	}
	return nil
}
