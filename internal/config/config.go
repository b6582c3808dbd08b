package config

import (
	"time"

	"github.com/Netflix/go-env"
	"github.com/joho/godotenv"
	"github.com/nimasrn/kamoa-supervision/pkg/logger"
	"github.com/pkg/errors"
)

const ConfigTagName = "env"
const ConfigDefaultTagName = "default"

// DefaultShiftCron fires at the 06:00 and 18:00 shift changes. go-env splits
// tags on commas so the default cannot live in the struct tag.
const DefaultShiftCron = "0 6,18 * * *"

var config *Config

// Config holds every setting of the api server, the console and the migrator.
// Nothing else in the module reads the environment directly.
type Config struct {
	AppEnv              string `env:"APP_ENV,default=dev"`
	AppName             string `env:"APP_NAME,default=kamoa_supervision"`
	AppDebug            bool   `env:"APP_DEBUG,default=true"`
	AppDebugMetricsAddr string `env:"APP_DEBUG_METRIC_ADDR"`
	AppDebugMetricsURI  string `env:"APP_DEBUG_METRIC_URI,default=/metrics"`
	SiteName            string `env:"SITE_NAME,default=KAMOA 1"`

	HttpListenAddr            string        `env:"HTTP_LISTEN_ADDR,default=:8080"`
	HttpServerReadTimeout     time.Duration `env:"HTTP_SERVER_READ_TIMEOUT,default=10s"`
	HttpServerWriteTimeout    time.Duration `env:"HTTP_SERVER_WRITE_TIMEOUT,default=0s"`
	HttpServerReadBufferSize  int           `env:"HTTP_SERVER_READ_BUFFER_SIZE,default=16384"`
	HttpServerWriteBufferSize int           `env:"HTTP_SERVER_WRITE_BUFFER_SIZE,default=16384"`
	HttpHandlerTimeout        time.Duration `env:"HTTP_HANDLER_TIMEOUT,default=5s"`
	AdminAPIKey               string        `env:"ADMIN_API_KEY"`

	PostgresReadHost     string `env:"POSTGRES_READ_HOST"`
	PostgresReadPort     string `env:"POSTGRES_READ_PORT,default=5432"`
	PostgresReadUser     string `env:"POSTGRES_READ_USER"`
	PostgresReadPassword string `env:"POSTGRES_READ_PASSWORD"`
	PostgresReadDatabase string `env:"POSTGRES_READ_DBNAME"`

	PostgresWriteHost     string `env:"POSTGRES_WRITE_HOST"`
	PostgresWritePort     string `env:"POSTGRES_WRITE_PORT,default=5432"`
	PostgresWriteUser     string `env:"POSTGRES_WRITE_USER"`
	PostgresWritePassword string `env:"POSTGRES_WRITE_PASSWORD"`
	PostgresWriteDatabase string `env:"POSTGRES_WRITE_DBNAME"`
	PostgresSSLMode       string `env:"POSTGRES_SSLMODE,default=disable"`

	RedisAddr               string `env:"REDIS_ADDR,default=localhost:6379"`
	RedisUsername           string `env:"REDIS_USER"`
	RedisPassword           string `env:"REDIS_PASS"`
	RedisDatabase           int    `env:"REDIS_DATABASE"`
	RedisUniversalKeyPrefix string `env:"REDIS_UNIVERSAL_KEY_PREFIX,default=kamoa:"`

	PromNamespace string `env:"PROM_NAMESPACE,default=kamoa"`

	FeedStream       string        `env:"FEED_STREAM,default=reports:feed"`
	FeedPollInterval time.Duration `env:"FEED_POLL_INTERVAL,default=200ms"`
	FeedBatchSize    int64         `env:"FEED_BATCH_SIZE,default=50"`
	FeedMaxLen       int64         `env:"FEED_MAX_LEN,default=10000"`

	APIBaseURL           string        `env:"API_BASE_URL,default=http://localhost:8080/api/v1"`
	ConsoleSubmitTimeout time.Duration `env:"CONSOLE_SUBMIT_TIMEOUT,default=0s"`
	ConsoleTheme         string        `env:"CONSOLE_THEME,default=ios"`
	LocalStoreDriver     string        `env:"LOCAL_STORE_DRIVER,default=sqlite"`
	LocalStorePath       string        `env:"LOCAL_STORE_PATH,default=kamoa_local.db"`
	ShiftCron            string        `env:"SHIFT_CRON"`
}

func Load(path string) error {
	logger.Info("loading configs..", "path", path)
	c := &Config{}
	var err error
	if path != "" {
		logger.Info("trying to load env from file", "path", path)
		err = godotenv.Load(path)
		if err != nil {
			return errors.Wrap(err, "failed to load configuration file "+path)
		}
	}

	_, err = env.UnmarshalFromEnviron(c)
	if err != nil {
		return errors.Wrap(err, "failed to map env variables to Configuration object")
	}

	if c.ShiftCron == "" {
		c.ShiftCron = DefaultShiftCron
	}

	config = c
	return nil
}

// Set installs c as the process configuration. Used by tests and by
// commands that build a Config by hand.
func Set(c *Config) {
	config = c
}

func Get() *Config {
	if config == nil {
		logger.Panic("Config is not initialized")
	}
	return config
}
