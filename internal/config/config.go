package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Redis    RedisConfig    `yaml:"redis"`
	Postgres PostgresConfig `yaml:"postgres"`
	Quiz     QuizConfig     `yaml:"quiz"`
	Log      LogConfig      `yaml:"log"`
	Tracing  TracingConfig  `yaml:"tracing"`
	Limits   LimitsConfig   `yaml:"limits"`
}

type ServerConfig struct {
	Port string `yaml:"port" env:"QUIZ_SERVER_PORT"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr" env:"QUIZ_REDIS_ADDR"`
	Password string `yaml:"password" env:"QUIZ_REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"QUIZ_REDIS_DB"`
	TTL      string `yaml:"ttl" env:"QUIZ_REDIS_TTL"`
}

type PostgresConfig struct {
	URL string `yaml:"url" env:"QUIZ_POSTGRES_URL"`
}

type QuizConfig struct {
	// TTL is how long quiz content stays cached.
	TTL string `yaml:"ttl" env:"QUIZ_CACHE_TTL"`
	// QuestionTime is the answer window of quizzes that do not set their own.
	QuestionTime string `yaml:"question_time" env:"QUIZ_QUESTION_TIME"`
}

type LogConfig struct {
	Level    string `yaml:"level" env:"QUIZ_LOG_LEVEL"`
	Encoding string `yaml:"encoding" env:"QUIZ_LOG_ENCODING"`
	File     string `yaml:"file" env:"QUIZ_LOG_FILE"`
}

type TracingConfig struct {
	Endpoint    string `yaml:"endpoint" env:"QUIZ_TRACING_ENDPOINT"`
	ServiceName string `yaml:"service_name" env:"QUIZ_TRACING_SERVICE_NAME"`
}

type LimitsConfig struct {
	AnswersPerSecond float64 `yaml:"answers_per_second" env:"QUIZ_LIMITS_ANSWERS_PER_SECOND"`
	Burst            int     `yaml:"burst" env:"QUIZ_LIMITS_BURST"`
}

// Defaults returns the configuration used for anything the file and environment leave unset.
func Defaults() Config {
	return Config{
		Server:  ServerConfig{Port: "8080"},
		Redis:   RedisConfig{TTL: "10m"},
		Quiz:    QuizConfig{TTL: "10m", QuestionTime: "15s"},
		Log:     LogConfig{Level: "info", Encoding: "json"},
		Tracing: TracingConfig{ServiceName: "live-quiz-service"},
		Limits:  LimitsConfig{AnswersPerSecond: 5, Burst: 10},
	}
}

// Load reads YAML config from path and overlays QUIZ_* environment variables. A missing
// file is not an error; defaults and the environment are used instead.
func Load(path string) (Config, error) {
	cfg := Defaults()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return cfg, err
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parse %s: %w", path, err)
			}
		}
	}
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
