package config

import (
	"sync"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Mongo     MongoConfig
	Redis     RedisConfig
	Kafka     KafkaConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
}

type ServerConfig struct {
	Host         string
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type MongoConfig struct {
	URI      string
	Database string
}

type RedisConfig struct {
	URL string
}

type KafkaConfig struct {
	Brokers []string
	Topic   string
}

type AuthConfig struct {
	GuestSecret string
	GuestExpire time.Duration
}

type RateLimitConfig struct {
	Requests int
	Window   time.Duration
}

var (
	configInstance *Config
	once           sync.Once
)

// Load reads configuration from the environment with sane defaults.
func Load() *Config {
	once.Do(func() {
		viper.SetDefault("POLLS_HOST", "")
		viper.SetDefault("POLLS_PORT", "8080")
		viper.SetDefault("POLLS_READ_TIMEOUT", 30*time.Second)
		viper.SetDefault("POLLS_WRITE_TIMEOUT", 30*time.Second)
		viper.SetDefault("POLLS_IDLE_TIMEOUT", 60*time.Second)
		viper.SetDefault("POLLS_GUEST_SECRET", "secret")
		viper.SetDefault("POLLS_GUEST_EXPIRE", "1h")
		viper.SetDefault("POLLS_RATE_LIMIT_REQUESTS", 30)
		viper.SetDefault("POLLS_RATE_LIMIT_WINDOW", time.Minute)
		viper.SetDefault("MONGO_URI", "mongodb://localhost:27017")
		viper.SetDefault("MONGO_DB", "polls")
		viper.SetDefault("REDIS_URL", "redis://localhost:6379/0")
		viper.SetDefault("KAFKA_BROKERS", []string{})
		viper.SetDefault("KAFKA_TOPIC", "poll-events")
		viper.AutomaticEnv()

		configInstance = &Config{
			Server: ServerConfig{
				Host:         viper.GetString("POLLS_HOST"),
				Port:         viper.GetString("POLLS_PORT"),
				ReadTimeout:  viper.GetDuration("POLLS_READ_TIMEOUT"),
				WriteTimeout: viper.GetDuration("POLLS_WRITE_TIMEOUT"),
				IdleTimeout:  viper.GetDuration("POLLS_IDLE_TIMEOUT"),
			},
			Mongo: MongoConfig{
				URI:      viper.GetString("MONGO_URI"),
				Database: viper.GetString("MONGO_DB"),
			},
			Redis: RedisConfig{
				URL: viper.GetString("REDIS_URL"),
			},
			Kafka: KafkaConfig{
				Brokers: viper.GetStringSlice("KAFKA_BROKERS"),
				Topic:   viper.GetString("KAFKA_TOPIC"),
			},
			Auth: AuthConfig{
				GuestSecret: viper.GetString("POLLS_GUEST_SECRET"),
				GuestExpire: viper.GetDuration("POLLS_GUEST_EXPIRE"),
			},
			RateLimit: RateLimitConfig{
				Requests: viper.GetInt("POLLS_RATE_LIMIT_REQUESTS"),
				Window:   viper.GetDuration("POLLS_RATE_LIMIT_WINDOW"),
			},
		}
	})

	return configInstance
}
