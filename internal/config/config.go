// Package config loads the filehub configuration from a YAML file with
// environment-variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v2"
)

// User is a statically configured principal. Password hashing and user
// persistence live behind the identity provider boundary; the built-in
// provider reads these entries.
type User struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Role     string `yaml:"role"`
}

// Config is the application configuration.
type Config struct {
	Listen string `yaml:"listen"`

	Minio struct {
		Endpoint  string `yaml:"endpoint"`
		AccessKey string `yaml:"accessKey"`
		SecretKey string `yaml:"secretKey"`
		UseSSL    bool   `yaml:"useSSL"`
	} `yaml:"minio"`

	Elasticsearch struct {
		URL string `yaml:"url"`
	} `yaml:"elasticsearch"`

	Auth struct {
		JWTSecret    string `yaml:"jwtSecret"`
		TokenTTLHour int    `yaml:"tokenTTLHours"`
		Users        []User `yaml:"users"`
	} `yaml:"auth"`

	Indexer struct {
		Workers   int `yaml:"workers"`
		QueueSize int `yaml:"queueSize"`
	} `yaml:"indexer"`

	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
}

// Load reads the YAML file at path (optional: an empty path skips the file),
// applies environment overrides and fills defaults.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	cfg.applyEnv()
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyEnv() {
	setString(&c.Listen, "FILEHUB_LISTEN")
	setString(&c.Minio.Endpoint, "MINIO_ENDPOINT")
	setString(&c.Minio.AccessKey, "MINIO_ACCESS_KEY")
	setString(&c.Minio.SecretKey, "MINIO_SECRET_KEY")
	if v := os.Getenv("MINIO_USE_SSL"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Minio.UseSSL = b
		}
	}
	setString(&c.Elasticsearch.URL, "ELASTICSEARCH_URL")
	setString(&c.Auth.JWTSecret, "FILEHUB_JWT_SECRET")
	setString(&c.Log.Level, "FILEHUB_LOG_LEVEL")
}

func (c *Config) applyDefaults() {
	if c.Listen == "" {
		c.Listen = ":8080"
	}
	if c.Minio.Endpoint == "" {
		c.Minio.Endpoint = "127.0.0.1:9000"
	}
	if c.Elasticsearch.URL == "" {
		c.Elasticsearch.URL = "http://localhost:9200"
	}
	if c.Auth.TokenTTLHour <= 0 {
		c.Auth.TokenTTLHour = 7 * 24
	}
	if c.Indexer.Workers <= 0 {
		c.Indexer.Workers = 4
	}
	if c.Indexer.QueueSize <= 0 {
		c.Indexer.QueueSize = 256
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
}

func setString(dst *string, env string) {
	if v := os.Getenv(env); v != "" {
		*dst = v
	}
}
