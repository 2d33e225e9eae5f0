// Package config loads crm.yaml. Values are layered: defaults, then the
// file, then CRM_* environment variables. Command line flags are applied on
// top by the caller.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/acksell/crm"
)

const FileName = "crm.yaml"

const (
	DriverDynamoDB = "dynamodb"
	DriverBadger   = "badger"
	DriverMemory   = "memory"
)

type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Store   StoreConfig   `yaml:"store"`
	AWS     AWSConfig     `yaml:"aws"`
	Storage StorageConfig `yaml:"storage"`
	Events  EventsConfig  `yaml:"events"`
	Log     LogConfig     `yaml:"log"`
}

type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	RequestTimeout  time.Duration `yaml:"requestTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

type StoreConfig struct {
	// Driver is one of dynamodb, badger or memory.
	Driver string `yaml:"driver"`
	Table  string `yaml:"table"`
	// Path is the badger data directory.
	Path string `yaml:"path"`
	// Endpoint overrides the DynamoDB endpoint, e.g. DynamoDB Local.
	Endpoint           string `yaml:"endpoint"`
	CascadeConcurrency int    `yaml:"cascadeConcurrency"`
}

type AWSConfig struct {
	Region string `yaml:"region"`
	// Endpoint overrides every AWS service endpoint, e.g. LocalStack.
	Endpoint string `yaml:"endpoint"`
}

type StorageConfig struct {
	Bucket        string        `yaml:"bucket"`
	PresignTTL    time.Duration `yaml:"presignTTL"`
	VerifyObjects bool          `yaml:"verifyObjects"`
	Endpoint      string        `yaml:"endpoint"`
	UsePathStyle  bool          `yaml:"usePathStyle"`
}

type EventsConfig struct {
	// QueueURL is the SQS queue events are sent to. Empty logs events instead.
	QueueURL string `yaml:"queueURL"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:            ":8080",
			RequestTimeout:  5 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Store: StoreConfig{
			Driver:             DriverMemory,
			Table:              crm.DefaultTableName,
			CascadeConcurrency: 8,
		},
		Storage: StorageConfig{
			Bucket:     "crm-attachments",
			PresignTTL: 300 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads path, or crm.yaml found by walking up from the working
// directory when path is empty. A missing crm.yaml is not an error, a
// missing explicit path is.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		path = findConfigFile()
	} else if _, err := os.Stat(path); err != nil {
		return Config{}, fmt.Errorf("config file: %w", err)
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// findConfigFile searches for crm.yaml walking up from current directory.
func findConfigFile() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return path
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := map[string]*string{
		"CRM_SERVER_ADDR":      &c.Server.Addr,
		"CRM_STORE_DRIVER":     &c.Store.Driver,
		"CRM_STORE_TABLE":      &c.Store.Table,
		"CRM_STORE_PATH":       &c.Store.Path,
		"CRM_STORE_ENDPOINT":   &c.Store.Endpoint,
		"CRM_AWS_REGION":       &c.AWS.Region,
		"CRM_AWS_ENDPOINT":     &c.AWS.Endpoint,
		"CRM_STORAGE_BUCKET":   &c.Storage.Bucket,
		"CRM_STORAGE_ENDPOINT": &c.Storage.Endpoint,
		"CRM_EVENTS_QUEUE_URL": &c.Events.QueueURL,
		"CRM_LOG_LEVEL":        &c.Log.Level,
		"CRM_LOG_FORMAT":       &c.Log.Format,
	}
	for name, dst := range str {
		if v, ok := lookup(name); ok {
			*dst = v
		}
	}

	durations := map[string]*time.Duration{
		"CRM_SERVER_REQUEST_TIMEOUT":  &c.Server.RequestTimeout,
		"CRM_SERVER_SHUTDOWN_TIMEOUT": &c.Server.ShutdownTimeout,
		"CRM_STORAGE_PRESIGN_TTL":     &c.Storage.PresignTTL,
	}
	for name, dst := range durations {
		if v, ok := lookup(name); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			*dst = d
		}
	}

	bools := map[string]*bool{
		"CRM_STORAGE_VERIFY_OBJECTS": &c.Storage.VerifyObjects,
		"CRM_STORAGE_USE_PATH_STYLE": &c.Storage.UsePathStyle,
	}
	for name, dst := range bools {
		if v, ok := lookup(name); ok {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			*dst = b
		}
	}

	if v, ok := lookup("CRM_STORE_CASCADE_CONCURRENCY"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("CRM_STORE_CASCADE_CONCURRENCY: %w", err)
		}
		c.Store.CascadeConcurrency = n
	}
	return nil
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var errs []error
	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr is required"))
	}
	if c.Server.RequestTimeout <= 0 {
		errs = append(errs, errors.New("server.requestTimeout must be positive"))
	}
	if c.Server.ShutdownTimeout <= 0 {
		errs = append(errs, errors.New("server.shutdownTimeout must be positive"))
	}
	switch c.Store.Driver {
	case DriverDynamoDB, DriverMemory:
	case DriverBadger:
		if c.Store.Path == "" {
			errs = append(errs, errors.New("store.path is required for the badger driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("store.driver %q must be one of dynamodb, badger, memory", c.Store.Driver))
	}
	if c.Store.Table == "" {
		errs = append(errs, errors.New("store.table is required"))
	}
	if c.Store.CascadeConcurrency < 1 {
		errs = append(errs, errors.New("store.cascadeConcurrency must be at least 1"))
	}
	if c.Storage.Bucket == "" {
		errs = append(errs, errors.New("storage.bucket is required"))
	}
	if c.Storage.PresignTTL <= 0 {
		errs = append(errs, errors.New("storage.presignTTL must be positive"))
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		errs = append(errs, fmt.Errorf("log.format %q must be text or json", c.Log.Format))
	}
	return errors.Join(errs...)
}

// NewLogger builds the process logger described by the log section.
func (l LogConfig) NewLogger(w io.Writer) *slog.Logger {
	level, err := parseLevel(l.Level)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if l.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(s))); err != nil {
		return 0, fmt.Errorf("log.level %q: %w", s, err)
	}
	return level, nil
}
