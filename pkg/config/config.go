package config

import (
	"context"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/hashicorp/vault-client-go"
	"github.com/spf13/viper"
	_ "github.com/spf13/viper/remote"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var (
	config       = viper.New()
	configHolder atomic.Value
	backend      = "consul"
	backendAddr  = "127.0.0.1:8500"
	backendPath  = "development" // e.g., app/<env>/<service_name>
	configType   = "yaml"
)

type Config struct {
	AppEnv     string `mapstructure:"APP_ENV"`
	AppName    string `mapstructure:"APP_NAME"`
	AppVersion string `mapstructure:"APP_VERSION"`
	NodeID     int64  `mapstructure:"NODE_ID"`
	TLS        struct {
		Enable   bool   `mapstructure:"ENABLE"`
		CertPath string `mapstructure:"CERT_PATH"`
		KeyPath  string `mapstructure:"KEY_PATH"`
	} `mapstructure:"TLS"`
	Otel struct {
		Addr     string `mapstructure:"ADDR"`
		Protocol string `mapstructure:"PROTOCOL"` // grpc | http
	} `mapstructure:"OTEL"`
	Pyroscope struct {
		Addr string `mapstructure:"ADDR"`
	} `mapstructure:"PYROSCOPE"`
	Server struct {
		Addr         string        `mapstructure:"ADDR"`
		ReadTimeout  time.Duration `mapstructure:"READ_TIMEOUT"`
		WriteTimeout time.Duration `mapstructure:"WRITE_TIMEOUT"`
		IdleTimeout  time.Duration `mapstructure:"IDLE_TIMEOUT"`
	} `mapstructure:"HTTP_SERVER"`
	Grpc struct {
		Addr string `mapstructure:"ADDR"`
	} `mapstructure:"GRPC_SERVER"`
	Database struct {
		Type           string `mapstructure:"TYPE"`
		Host           string `mapstructure:"HOST"`
		Port           string `mapstructure:"PORT"`
		DBNAME         string `mapstructure:"DBNAME"`
		User           string `mapstructure:"USER"`
		Password       string `mapstructure:"PASSWORD"`
		SSLMode        string `mapstructure:"SSLMODE"`
		Timezone       string `mapstructure:"TIMEZONE"`
		Path           string `mapstructure:"PATH"` // sqlite file
		Metrics        bool   `mapstructure:"METRICS"`
		ConnectionPool struct {
			MaxIdleConn     int           `mapstructure:"MAX_IDLE_CONN"`
			MaxOpenConns    int           `mapstructure:"MAX_OPEN_CONNS"`
			ConnMaxLifetime time.Duration `mapstructure:"CONN_MAX_LIFETIME"`
			ConnMaxIdleTime time.Duration `mapstructure:"CONN_MAX_IDLE_TIME"`
		} `mapstructure:"CONNECTION_POOL"`
	} `mapstructure:"DATABASE"`
	Redis struct {
		Addr        string        `mapstructure:"ADDR"`
		Password    string        `mapstructure:"PASSWORD"`
		DB          int           `mapstructure:"DB"`
		PoolSize    int           `mapstructure:"POOL_SIZE"`
		PoolTimeout time.Duration `mapstructure:"POOL_TIMEOUT"`
	} `mapstructure:"REDIS"`
	Flagsmith struct {
		Addr   string `mapstructure:"ADDR"`
		ApiKey string `mapstructure:"API_KEY"`
	} `mapstructure:"FLAGSMITH"`
	Minio struct {
		Enable     bool   `mapstructure:"ENABLE"`
		Endpoint   string `mapstructure:"ENDPOINT"`
		AccessKey  string `mapstructure:"ACCESS_KEY"`
		SecretKey  string `mapstructure:"SECRET_KEY"`
		Secure     bool   `mapstructure:"SECURE"`
		BucketName string `mapstructure:"BUCKET_NAME"`
	} `mapstructure:"MINIO"`
	Source struct {
		BaseURL  string        `mapstructure:"BASE_URL"`
		Timeout  time.Duration `mapstructure:"TIMEOUT"`
		MaxPages int           `mapstructure:"MAX_PAGES"`
		Fallback string        `mapstructure:"FALLBACK"` // sample | none
	} `mapstructure:"TRANSACTION_SOURCE"`
	Sync struct {
		Scheduler            string        `mapstructure:"SCHEDULER"` // asynq | ticker | none
		Cron                 string        `mapstructure:"CRON"`
		Interval             time.Duration `mapstructure:"INTERVAL"`
		Timeout              time.Duration `mapstructure:"TIMEOUT"`
		Lookback             time.Duration `mapstructure:"LOOKBACK"`
		CursorStore          string        `mapstructure:"CURSOR_STORE"` // memory | redis
		ReconcileConcurrency int           `mapstructure:"RECONCILE_CONCURRENCY"`
	} `mapstructure:"SYNC"`
	Cache struct {
		Enable bool          `mapstructure:"ENABLE"`
		TTL    time.Duration `mapstructure:"TTL"`
	} `mapstructure:"SUMMARY_CACHE"`
}

var Module = fx.Module("config", fx.Provide(LoadConfig))
var RemoteModule = fx.Module("remote.config", fx.Provide(LoadRemote))

type Params struct {
	fx.In
	Vault *vault.Client `optional:"true"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("APP_NAME", "ledgersync")
	v.SetDefault("NODE_ID", 1)
	v.SetDefault("HTTP_SERVER.ADDR", "8080")
	v.SetDefault("HTTP_SERVER.READ_TIMEOUT", 15*time.Second)
	v.SetDefault("HTTP_SERVER.WRITE_TIMEOUT", 60*time.Second)
	v.SetDefault("HTTP_SERVER.IDLE_TIMEOUT", 60*time.Second)
	v.SetDefault("GRPC_SERVER.ADDR", "9090")
	v.SetDefault("OTEL.PROTOCOL", "grpc")
	v.SetDefault("DATABASE.TYPE", "sqlite")
	v.SetDefault("DATABASE.PATH", "ledgersync.db")
	v.SetDefault("DATABASE.SSLMODE", "disable")
	v.SetDefault("DATABASE.TIMEZONE", "UTC")
	v.SetDefault("REDIS.ADDR", "127.0.0.1:6379")
	v.SetDefault("REDIS.POOL_SIZE", 10)
	v.SetDefault("REDIS.POOL_TIMEOUT", 4*time.Second)
	v.SetDefault("TRANSACTION_SOURCE.BASE_URL", "http://localhost:3001")
	v.SetDefault("TRANSACTION_SOURCE.TIMEOUT", 10*time.Second)
	v.SetDefault("TRANSACTION_SOURCE.MAX_PAGES", 100)
	v.SetDefault("TRANSACTION_SOURCE.FALLBACK", "sample")
	v.SetDefault("SYNC.SCHEDULER", "asynq")
	v.SetDefault("SYNC.CRON", "@every 1m")
	v.SetDefault("SYNC.INTERVAL", time.Minute)
	v.SetDefault("SYNC.TIMEOUT", 5*time.Minute)
	v.SetDefault("SYNC.LOOKBACK", 24*time.Hour)
	v.SetDefault("SYNC.CURSOR_STORE", "memory")
	v.SetDefault("SYNC.RECONCILE_CONCURRENCY", 4)
	v.SetDefault("SUMMARY_CACHE.TTL", 5*time.Minute)
}

func LoadConfig(p Params) *Config {

	config.SetConfigName("config")
	config.SetConfigType("yaml")
	config.AddConfigPath(".")

	config.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	config.AutomaticEnv()
	setDefaults(config)

	if err := config.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			zap.L().Error("failed to read config file", zap.Error(err))
			os.Exit(1)
		}
	}

	var cfg Config
	if err := config.Unmarshal(&cfg); err != nil {
		zap.L().Error("failed to unmarshal config", zap.Error(err))
		os.Exit(1)
	}

	if p.Vault != nil {
		applySecrets(p.Vault, &cfg)
	}

	configHolder.Store(&cfg)
	return &cfg
}

func LoadRemote(p Params) *Config {
	if v, ok := os.LookupEnv("REMOTE_CONFIG_PROVIDER"); ok {
		backend = v
	}

	if v, ok := os.LookupEnv("REMOTE_CONFIG_ADDR"); ok {
		backendAddr = v
	}

	if v, ok := os.LookupEnv("REMOTE_CONFIG_PATH"); ok {
		backendPath = v
	}

	setDefaults(config)
	config.SetConfigType(configType)
	if err := config.AddRemoteProvider(backend, backendAddr, backendPath); err != nil {
		zap.L().Error("failed to add remote config provider", zap.String("backend", backend), zap.Error(err))
		os.Exit(1)
	}

	if err := config.ReadRemoteConfig(); err != nil {
		zap.L().Error("failed to read remote config", zap.String("path", backendPath), zap.Error(err))
		os.Exit(1)
	}

	var cfg Config
	if err := config.Unmarshal(&cfg); err != nil {
		os.Exit(1)
	}
	if p.Vault != nil {
		applySecrets(p.Vault, &cfg)
	}
	configHolder.Store(&cfg)

	go func() {
		for {
			time.Sleep(time.Second * 5) // delay after each request

			if err := config.WatchRemoteConfig(); err != nil {
				zap.L().Error("unable to read remote config", zap.Error(err))
				continue
			}

			var newcfg Config
			if err := config.Unmarshal(&newcfg); err != nil {
				zap.L().Error("unable to unmarshal remote config", zap.Error(err))
				continue
			}
			if p.Vault != nil {
				applySecrets(p.Vault, &newcfg)
			}
			configHolder.Store(&newcfg)
		}
	}()

	return &cfg
}

// Current returns the most recently loaded configuration. Remote configs are
// refreshed in the background, so callers that care about hot values read it here.
func Current() *Config {
	cfg, _ := configHolder.Load().(*Config)
	return cfg
}

func applySecrets(client *vault.Client, cfg *Config) {
	ctx := context.Background()

	zap.L().Info("Starting Get Secrets", zap.String("path", cfg.AppEnv))
	secret, err := client.Secrets.KvV2Read(ctx, cfg.AppEnv, vault.WithMountPath("secret"))
	if err != nil {
		zap.L().Error("failed get secret from vault", zap.Error(err))
		os.Exit(1)
	}
	zap.L().Info("Success Get Secret")

	get := func(key string) string {
		if val, ok := secret.Data.Data[key].(string); ok {
			return val
		}
		return ""
	}

	if v := get("database_user"); v != "" {
		cfg.Database.User = v
	}
	if v := get("database_password"); v != "" {
		cfg.Database.Password = v
	}
	if v := get("redis_password"); v != "" {
		cfg.Redis.Password = v
	}
	if v := get("flagsmith_api_key"); v != "" {
		cfg.Flagsmith.ApiKey = v
	}
	if v := get("minio_secret_key"); v != "" {
		cfg.Minio.SecretKey = v
	}
}
