package main

import (
	"fmt"
	"os"
	"strings"

	"interviewoj/internal/common/cache"
	"interviewoj/internal/common/db"
	"interviewoj/internal/common/storage"
	"interviewoj/internal/judge/executor/judge0"
	"interviewoj/internal/judge/model"
	"interviewoj/pkg/utils/logger"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const defaultPackPrefix = "problems/"

// DatabaseConfig selects the SQL dialect and its pool.
type DatabaseConfig struct {
	Driver        string `yaml:"driver"`
	db.PoolConfig `yaml:",inline"`
}

// ImportConfig holds problem-import configuration. It reads the same file
// layout as judge-api so one config can drive both binaries.
type ImportConfig struct {
	Logger     logger.Config          `yaml:"logger"`
	Database   DatabaseConfig         `yaml:"database"`
	Redis      cache.RedisConfig      `yaml:"redis"`
	MinIO      storage.MinIOConfig    `yaml:"minio"`
	Judge0     judge0.Config          `yaml:"judge0"`
	Languages  map[model.Language]int `yaml:"languages"`
	PackPrefix string                 `yaml:"packPrefix"`
}

func loadYAML(path string, out interface{}) error {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("load .env failed: %w", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file failed: %w", err)
	}
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), out); err != nil {
		return fmt.Errorf("parse config file failed: %w", err)
	}
	return nil
}

func loadImportConfig(path string) (*ImportConfig, error) {
	var cfg ImportConfig
	if err := loadYAML(path, &cfg); err != nil {
		return nil, err
	}
	cfg.Database.Driver = strings.ToLower(strings.TrimSpace(cfg.Database.Driver))
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = string(db.DialectMySQL)
	}
	if cfg.Database.DSN == "" {
		return nil, fmt.Errorf("database dsn is required")
	}
	if cfg.MinIO.Bucket == "" {
		cfg.MinIO.Bucket = "problem-cases"
	}
	if cfg.PackPrefix == "" {
		cfg.PackPrefix = defaultPackPrefix
	}
	if !strings.HasSuffix(cfg.PackPrefix, "/") {
		cfg.PackPrefix += "/"
	}
	return &cfg, nil
}
