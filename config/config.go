package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration.
type Config struct {
	CaseGraph CaseGraphConfig `yaml:"casegraph"`
}

// CaseGraphConfig is the project configuration.
type CaseGraphConfig struct {
	Store     StoreConfig     `yaml:"store"`
	Input     InputConfig     `yaml:"input"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	Rules     RulesConfig     `yaml:"rules"`
	Broadcast BroadcastConfig `yaml:"broadcast"`
	HTTP      HTTPConfig      `yaml:"http"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// StoreConfig selects and configures the entity store backend.
type StoreConfig struct {
	Backend string      `yaml:"backend"` // mysql|memory
	MySQL   MySQLConfig `yaml:"mysql"`
}

// MySQLConfig configures the relational store.
type MySQLConfig struct {
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// InputConfig controls the timeline-event input reader.
type InputConfig struct {
	Redis RedisConfig `yaml:"redis"`
}

// RedisConfig controls Redis list consumption.
type RedisConfig struct {
	Addr         string        `yaml:"addr"`
	Password     string        `yaml:"password"`
	DB           int           `yaml:"db"`
	Key          string        `yaml:"key"`
	BlockTimeout time.Duration `yaml:"block_timeout"`
}

// PipelineConfig controls event-update workers.
type PipelineConfig struct {
	Workers int `yaml:"workers"`
}

// RulesConfig controls Sigma tagging of untagged timeline events.
type RulesConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// BroadcastConfig controls graph delta fan-out.
type BroadcastConfig struct {
	Redis RedisBroadcastConfig `yaml:"redis"`
}

// RedisBroadcastConfig controls pub/sub delta publishing.
type RedisBroadcastConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Addr          string `yaml:"addr"`
	Password      string `yaml:"password"`
	DB            int    `yaml:"db"`
	ChannelPrefix string `yaml:"channel_prefix"`
}

// HTTPConfig controls the HTTP surface (rebuild trigger, graph reads,
// WebSocket subscriptions, metrics).
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// LoggingConfig controls logging output.
type LoggingConfig struct {
	Enabled bool   `yaml:"enabled"`
	Level   string `yaml:"level"`
	File    string `yaml:"file"`
	Console bool   `yaml:"console"`
}

// LoadConfig reads and parses a YAML config file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
