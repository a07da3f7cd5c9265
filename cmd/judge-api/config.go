package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"interviewoj/internal/common/cache"
	"interviewoj/internal/common/db"
	commonmw "interviewoj/internal/common/http/middleware"
	"interviewoj/internal/common/mq"
	"interviewoj/internal/common/storage"
	"interviewoj/internal/judge/executor/judge0"
	"interviewoj/internal/judge/model"
	"interviewoj/internal/submit/service"
	"interviewoj/pkg/utils/logger"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	defaultHTTPAddr        = "0.0.0.0:8080"
	defaultReadTimeout     = 10 * time.Second
	defaultWriteTimeout    = 90 * time.Second
	defaultIdleTimeout     = 60 * time.Second
	defaultShutdownTimeout = 10 * time.Second
)

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr         string        `yaml:"addr"`
	ReadTimeout  time.Duration `yaml:"readTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
	IdleTimeout  time.Duration `yaml:"idleTimeout"`

	CORS commonmw.CORSConfig `yaml:"cors"`
}

// DatabaseConfig selects the SQL dialect and its pool.
type DatabaseConfig struct {
	Driver        string `yaml:"driver"`
	db.PoolConfig `yaml:",inline"`
}

// KafkaSection enables the judged-event pipeline when brokers are set.
type KafkaSection struct {
	mq.KafkaConfig `yaml:",inline"`
	JudgedTopic    string `yaml:"judgedTopic"`
	ConsumerGroup  string `yaml:"consumerGroup"`
	Concurrency    int    `yaml:"concurrency"`
}

// Enabled reports whether any broker is configured.
func (k KafkaSection) Enabled() bool {
	return len(k.Brokers) > 0
}

// JudgeConfig holds orchestration limits.
type JudgeConfig struct {
	WorkerPoolSize           int           `yaml:"workerPoolSize"`
	BatchSize                int           `yaml:"batchSize"`
	MaxConcurrentSubmissions int           `yaml:"maxConcurrentSubmissions"`
	AcquireTimeout           time.Duration `yaml:"acquireTimeout"`
	OrchestrationTimeout     time.Duration `yaml:"orchestrationTimeout"`
	MaxCodeBytes             int           `yaml:"maxCodeBytes"`
	CompileShortCircuit      *bool         `yaml:"compileShortCircuit"`
	ComputeBeats             *bool         `yaml:"computeBeats"`
}

// CacheConfig holds cache lifetimes for the repositories.
type CacheConfig struct {
	ProblemTTL      time.Duration `yaml:"problemTTL"`
	ProblemEmptyTTL time.Duration `yaml:"problemEmptyTTL"`
	PackTTL         time.Duration `yaml:"packTTL"`
	PackEntries     int           `yaml:"packEntries"`
	SubmissionTTL   time.Duration `yaml:"submissionTTL"`
	SubmissionEmpty time.Duration `yaml:"submissionEmptyTTL"`
	HistoryTTL      time.Duration `yaml:"historyTTL"`
}

// AppConfig holds judge-api configuration.
type AppConfig struct {
	Server    ServerConfig            `yaml:"server"`
	Logger    logger.Config           `yaml:"logger"`
	Database  DatabaseConfig          `yaml:"database"`
	Redis     cache.RedisConfig       `yaml:"redis"`
	Kafka     KafkaSection            `yaml:"kafka"`
	MinIO     storage.MinIOConfig     `yaml:"minio"`
	Judge0    judge0.Config           `yaml:"judge0"`
	Judge     JudgeConfig             `yaml:"judge"`
	Languages map[model.Language]int  `yaml:"languages"`
	RateLimit service.RateLimitConfig `yaml:"rateLimit"`
	Timeouts  service.TimeoutConfig   `yaml:"timeouts"`
	Cache     CacheConfig             `yaml:"cache"`
}

// loadYAML reads path, expands ${VAR} references from the environment and
// decodes the result. A .env file next to the working directory is optional.
func loadYAML(path string, out interface{}) error {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("load .env failed: %w", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file failed: %w", err)
	}
	expanded := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), out); err != nil {
		return fmt.Errorf("parse config file failed: %w", err)
	}
	return nil
}

func loadAppConfig(path string) (*AppConfig, error) {
	var cfg AppConfig
	if err := loadYAML(path, &cfg); err != nil {
		return nil, err
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = defaultHTTPAddr
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = defaultReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = defaultWriteTimeout
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = defaultIdleTimeout
	}

	cfg.Database.Driver = strings.ToLower(strings.TrimSpace(cfg.Database.Driver))
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = string(db.DialectMySQL)
	}
	if cfg.Database.DSN == "" {
		return nil, fmt.Errorf("database dsn is required")
	}
	if cfg.Redis.Addr == "" {
		return nil, fmt.Errorf("redis addr is required")
	}
	if cfg.Judge0.BaseURL == "" {
		return nil, fmt.Errorf("judge0 baseURL is required")
	}
	if cfg.MinIO.Bucket == "" {
		cfg.MinIO.Bucket = "problem-cases"
	}

	if cfg.Kafka.JudgedTopic == "" {
		cfg.Kafka.JudgedTopic = service.DefaultJudgedTopic
	}
	if cfg.Kafka.ConsumerGroup == "" {
		cfg.Kafka.ConsumerGroup = "solved-tracker"
	}
	if cfg.Kafka.Concurrency == 0 {
		cfg.Kafka.Concurrency = 2
	}

	if cfg.Judge.CompileShortCircuit == nil {
		enabled := true
		cfg.Judge.CompileShortCircuit = &enabled
	}
	if cfg.Judge.ComputeBeats == nil {
		enabled := true
		cfg.Judge.ComputeBeats = &enabled
	}

	if cfg.RateLimit.Window == 0 {
		cfg.RateLimit.Window = time.Minute
	}
	if cfg.RateLimit.RunMax == 0 {
		cfg.RateLimit.RunMax = 30
	}
	if cfg.RateLimit.SubmitMax == 0 {
		cfg.RateLimit.SubmitMax = 10
	}
	if cfg.Timeouts.DB == 0 {
		cfg.Timeouts.DB = 3 * time.Second
	}
	if cfg.Timeouts.Cache == 0 {
		cfg.Timeouts.Cache = 1 * time.Second
	}
	if cfg.Timeouts.MQ == 0 {
		cfg.Timeouts.MQ = 3 * time.Second
	}
	if cfg.Timeouts.Problem == 0 {
		cfg.Timeouts.Problem = 5 * time.Second
	}

	if cfg.Cache.ProblemTTL == 0 {
		cfg.Cache.ProblemTTL = 30 * time.Minute
	}
	if cfg.Cache.ProblemEmptyTTL == 0 {
		cfg.Cache.ProblemEmptyTTL = time.Minute
	}
	if cfg.Cache.PackTTL == 0 {
		cfg.Cache.PackTTL = 10 * time.Minute
	}
	if cfg.Cache.PackEntries == 0 {
		cfg.Cache.PackEntries = 128
	}
	if cfg.Cache.SubmissionTTL == 0 {
		cfg.Cache.SubmissionTTL = 30 * time.Minute
	}
	if cfg.Cache.SubmissionEmpty == 0 {
		cfg.Cache.SubmissionEmpty = 5 * time.Minute
	}
	if cfg.Cache.HistoryTTL == 0 {
		cfg.Cache.HistoryTTL = 10 * time.Minute
	}

	return &cfg, nil
}
