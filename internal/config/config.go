package config

import (
	"time"

	"github.com/Netflix/go-env"
	"github.com/joho/godotenv"
	"github.com/leaseline/lead-gateway/pkg/logger"
	"github.com/pkg/errors"
)

var config *Config

// Config holds every env-sourced setting. Nothing else in the service reads
// env, ini or any other config source directly.
type Config struct {
	AppEnv              string `env:"APP_ENV" default:"dev"`
	AppName             string `env:"APP_NAME" default:"lead_gateway"`
	AppDebug            bool   `env:"APP_DEBUG" default:"1"`
	AppDebugMetricsAddr string `env:"APP_DEBUG_METRIC_ADDR"`
	AppDebugMetricsURI  string `env:"APP_DEBUG_METRIC_URI"`

	HttpListenAddr         string `env:"HTTP_LISTEN_ADDR"`
	HttpServerReadTimeout  int    `env:"HTTP_SERVER_READ_TIMEOUT"`
	HttpServerWriteTimeout int    `env:"HTTP_SERVER_WRITE_TIMEOUT"`

	PostgresReadHost     string `env:"POSTGRES_READ_HOST"`
	PostgresReadPort     string `env:"POSTGRES_READ_PORT"`
	PostgresReadUser     string `env:"POSTGRES_READ_USER"`
	PostgresReadPassword string `env:"POSTGRES_READ_PASSWORD"`
	PostgresReadDatabase string `env:"POSTGRES_READ_DBNAME"`

	PostgresWriteHost     string `env:"POSTGRES_WRITE_HOST"`
	PostgresWritePort     string `env:"POSTGRES_WRITE_PORT"`
	PostgresWriteUser     string `env:"POSTGRES_WRITE_USER"`
	PostgresWritePassword string `env:"POSTGRES_WRITE_PASSWORD"`
	PostgresWriteDatabase string `env:"POSTGRES_WRITE_DBNAME"`

	RedisAddr               string `env:"REDIS_ADDR"`
	RedisUsername           string `env:"REDIS_USER"`
	RedisPassword           string `env:"REDIS_PASS"`
	RedisDatabase           int    `env:"REDIS_DATABASE"`
	RedisUniversalKeyPrefix string `env:"REDIS_UNIVERSAL_KEY_PREFIX"`

	PromNamespace string `env:"PROM_NAMESPACE"`

	LogLevel []string `env:"LOG_LEVEL"`

	GradingQueueName         string        `env:"GRADING_QUEUE_NAME" default:"grading:jobs"`
	GradingConsumerGroup     string        `env:"GRADING_CONSUMER_GROUP" default:"graders"`
	GradingConsumerName      string        `env:"GRADING_CONSUMER_NAME"`
	GradingMaxRetries        int           `env:"GRADING_MAX_RETRIES"`
	GradingVisibilityTimeout time.Duration `env:"GRADING_VISIBILITY_TIMEOUT"`
	GradingPollInterval      time.Duration `env:"GRADING_POLL_INTERVAL"`
	GradingBatchSize         int64         `env:"GRADING_BATCH_SIZE"`
	GradingQueueMaxLen       int64         `env:"GRADING_QUEUE_MAX_LEN"`
	GradingEnableDLQ         bool          `env:"GRADING_ENABLE_DLQ"`

	LLMPrimaryURL   string        `env:"LLM_PRIMARY_URL"`
	LLMSecondaryURL string        `env:"LLM_SECONDARY_URL"`
	LLMAPIKey       string        `env:"LLM_API_KEY"`
	LLMTimeout      time.Duration `env:"LLM_TIMEOUT" default:"60s"`
	LeadModel       string        `env:"LEAD_MODEL" default:"gpt-4.1"`
	GraderModel     string        `env:"GRADER_MODEL" default:"gpt-4o"`
}

func Load(path string) error {
	logger.Info("loading configs..", "path", path)
	c := &Config{}
	var err error
	if path != "" {
		err = godotenv.Load(path)
		if err != nil {
			return errors.New("failed to load configuration file " + path + " error: " + err.Error())
		}
	}

	_, err = env.UnmarshalFromEnviron(c)
	if err != nil {
		return errors.New("failed to map env variables to Configuration object, error: " + err.Error())
	}

	config = c
	return nil
}

func Get() *Config {
	if config == nil {
		logger.Panic("Config is not initialized")
	}
	return config
}
