// Package config provides hierarchical configuration management.
// Priority: defaults < system < user < project < explicit file < env < flags
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all pmdash configuration.
type Config struct {
	Version int `yaml:"version"`

	Analysis  AnalysisConfig  `yaml:"analysis"`
	Server    ServerConfig    `yaml:"server"`
	Store     StoreConfig     `yaml:"store"`
	Ingest    IngestConfig    `yaml:"ingest"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Log       LogConfig       `yaml:"log"`
}

// AnalysisConfig controls the analysis engine.
type AnalysisConfig struct {
	ExpectedSequence []string `yaml:"expected_sequence"`
	TopVariants      int      `yaml:"top_variants"`
	SampleRows       int      `yaml:"sample_rows"`
}

// ServerConfig for the HTTP server.
type ServerConfig struct {
	Port          int      `yaml:"port"`
	Host          string   `yaml:"host"`
	MaxUploadSize string   `yaml:"max_upload_size"` // e.g., "50MB"
	CORSOrigins   []string `yaml:"cors_origins"`
}

// StoreConfig selects where the active event log lives.
type StoreConfig struct {
	Backend string      `yaml:"backend"` // memory | redis
	Redis   RedisConfig `yaml:"redis"`
}

// RedisConfig for the shared snapshot backend.
type RedisConfig struct {
	Address  string        `yaml:"address"`
	Password string        `yaml:"password"`
	Database int           `yaml:"database"`
	Prefix   string        `yaml:"prefix"`
	Timeout  time.Duration `yaml:"timeout"`
}

// IngestConfig controls how record sets are read.
type IngestConfig struct {
	Engine string   `yaml:"engine"` // native | duckdb
	S3     S3Config `yaml:"s3"`
}

// S3Config for s3:// sources.
type S3Config struct {
	Region       string `yaml:"region"`
	Endpoint     string `yaml:"endpoint"`
	UsePathStyle bool   `yaml:"use_path_style"`
}

// TelemetryConfig for optional tracing.
type TelemetryConfig struct {
	Enabled       bool    `yaml:"enabled"`
	Endpoint      string  `yaml:"endpoint"`
	ServiceName   string  `yaml:"service_name"`
	SamplingRatio float64 `yaml:"sampling_ratio"`
}

// LogConfig for the process logger.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // console | json
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Version: 1,
		Analysis: AnalysisConfig{
			ExpectedSequence: []string{"Start", "Review", "Approve", "End"},
			TopVariants:      10,
			SampleRows:       5,
		},
		Server: ServerConfig{
			Port:          10000,
			Host:          "0.0.0.0",
			MaxUploadSize: "50MB",
			CORSOrigins:   []string{"*"},
		},
		Store: StoreConfig{
			Backend: "memory",
			Redis: RedisConfig{
				Address: "localhost:6379",
				Prefix:  "pmdash:",
				Timeout: 5 * time.Second,
			},
		},
		Ingest: IngestConfig{
			Engine: "native",
		},
		Telemetry: TelemetryConfig{
			Enabled:       false,
			Endpoint:      "localhost:4317",
			ServiceName:   "pmdash",
			SamplingRatio: 1.0,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Manager handles configuration loading and merging.
type Manager struct {
	mu     sync.RWMutex
	config *Config
	paths  []string // Paths that were loaded
}

// NewManager creates a new configuration manager.
func NewManager() *Manager {
	return &Manager{
		config: Default(),
	}
}

// Load loads configuration from all sources in priority order.
// explicit, when non-empty, is loaded after the standard locations and
// must exist.
func (m *Manager) Load(explicit string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.config = Default()
	m.paths = nil

	for _, path := range m.getConfigPaths() {
		if err := m.loadFile(path); err != nil {
			// Ignore missing files, but fail on broken ones
			if !os.IsNotExist(err) {
				return fmt.Errorf("config %s: %w", path, err)
			}
		} else {
			m.paths = append(m.paths, path)
		}
	}

	if explicit != "" {
		if err := m.loadFile(explicit); err != nil {
			return fmt.Errorf("config %s: %w", explicit, err)
		}
		m.paths = append(m.paths, explicit)
	}

	return m.loadEnv()
}

// getConfigPaths returns config file paths in priority order.
func (m *Manager) getConfigPaths() []string {
	var paths []string

	if runtime.GOOS != "windows" {
		paths = append(paths, "/etc/pmdash/config.yaml")
	}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".pmdash", "config.yaml"))
	}

	if cwd, err := os.Getwd(); err == nil {
		paths = append(paths, filepath.Join(cwd, ".pmdash.yaml"))
	}

	return paths
}

// loadFile loads a single config file and merges it.
func (m *Manager) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var partial Config
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &partial); err != nil {
		return err
	}

	m.merge(&partial)
	return nil
}

// merge merges non-zero values from src into config.
func (m *Manager) merge(src *Config) {
	// Analysis
	if len(src.Analysis.ExpectedSequence) > 0 {
		m.config.Analysis.ExpectedSequence = src.Analysis.ExpectedSequence
	}
	if src.Analysis.TopVariants != 0 {
		m.config.Analysis.TopVariants = src.Analysis.TopVariants
	}
	if src.Analysis.SampleRows != 0 {
		m.config.Analysis.SampleRows = src.Analysis.SampleRows
	}

	// Server
	if src.Server.Port != 0 {
		m.config.Server.Port = src.Server.Port
	}
	if src.Server.Host != "" {
		m.config.Server.Host = src.Server.Host
	}
	if src.Server.MaxUploadSize != "" {
		m.config.Server.MaxUploadSize = src.Server.MaxUploadSize
	}
	if len(src.Server.CORSOrigins) > 0 {
		m.config.Server.CORSOrigins = src.Server.CORSOrigins
	}

	// Store
	if src.Store.Backend != "" {
		m.config.Store.Backend = src.Store.Backend
	}
	if src.Store.Redis.Address != "" {
		m.config.Store.Redis.Address = src.Store.Redis.Address
	}
	if src.Store.Redis.Password != "" {
		m.config.Store.Redis.Password = src.Store.Redis.Password
	}
	if src.Store.Redis.Database != 0 {
		m.config.Store.Redis.Database = src.Store.Redis.Database
	}
	if src.Store.Redis.Prefix != "" {
		m.config.Store.Redis.Prefix = src.Store.Redis.Prefix
	}
	if src.Store.Redis.Timeout != 0 {
		m.config.Store.Redis.Timeout = src.Store.Redis.Timeout
	}

	// Ingest
	if src.Ingest.Engine != "" {
		m.config.Ingest.Engine = src.Ingest.Engine
	}
	if src.Ingest.S3.Region != "" {
		m.config.Ingest.S3.Region = src.Ingest.S3.Region
	}
	if src.Ingest.S3.Endpoint != "" {
		m.config.Ingest.S3.Endpoint = src.Ingest.S3.Endpoint
	}
	if src.Ingest.S3.UsePathStyle {
		m.config.Ingest.S3.UsePathStyle = true
	}

	// Telemetry
	if src.Telemetry.Enabled {
		m.config.Telemetry.Enabled = true
	}
	if src.Telemetry.Endpoint != "" {
		m.config.Telemetry.Endpoint = src.Telemetry.Endpoint
	}
	if src.Telemetry.ServiceName != "" {
		m.config.Telemetry.ServiceName = src.Telemetry.ServiceName
	}
	if src.Telemetry.SamplingRatio != 0 {
		m.config.Telemetry.SamplingRatio = src.Telemetry.SamplingRatio
	}

	// Log
	if src.Log.Level != "" {
		m.config.Log.Level = src.Log.Level
	}
	if src.Log.Format != "" {
		m.config.Log.Format = src.Log.Format
	}
}

// loadEnv loads configuration from environment variables.
func (m *Manager) loadEnv() error {
	// PORT is honored for hosting platforms that assign the port
	if v := os.Getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid PORT %q: %w", v, err)
		}
		m.config.Server.Port = port
	}

	if v := os.Getenv("PMDASH_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid PMDASH_PORT %q: %w", v, err)
		}
		m.config.Server.Port = port
	}

	if v := os.Getenv("PMDASH_HOST"); v != "" {
		m.config.Server.Host = v
	}

	if v := os.Getenv("PMDASH_EXPECTED_SEQUENCE"); v != "" {
		var seq []string
		for _, part := range strings.Split(v, ",") {
			if p := strings.TrimSpace(part); p != "" {
				seq = append(seq, p)
			}
		}
		if len(seq) > 0 {
			m.config.Analysis.ExpectedSequence = seq
		}
	}

	if v := os.Getenv("PMDASH_STORE"); v != "" {
		m.config.Store.Backend = v
	}

	if v := os.Getenv("PMDASH_REDIS_ADDR"); v != "" {
		m.config.Store.Redis.Address = v
	}

	if v := os.Getenv("PMDASH_REDIS_PASSWORD"); v != "" {
		m.config.Store.Redis.Password = v
	}

	if v := os.Getenv("PMDASH_INGEST_ENGINE"); v != "" {
		m.config.Ingest.Engine = v
	}

	if v := os.Getenv("PMDASH_OTLP_ENDPOINT"); v != "" {
		m.config.Telemetry.Enabled = true
		m.config.Telemetry.Endpoint = v
	}

	if v := os.Getenv("PMDASH_LOG_LEVEL"); v != "" {
		m.config.Log.Level = v
	}

	if v := os.Getenv("PMDASH_LOG_FORMAT"); v != "" {
		m.config.Log.Format = v
	}

	return nil
}

// Get returns the current configuration.
func (m *Manager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config
}

// GetPaths returns the paths that were loaded.
func (m *Manager) GetPaths() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.paths
}

// ParseSize parses sizes like "50MB", "512KB" or "1024" into bytes.
func ParseSize(s string) (int64, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return 0, fmt.Errorf("empty size")
	}

	multiplier := int64(1)
	for _, unit := range []struct {
		suffix string
		mult   int64
	}{
		{"GB", 1 << 30},
		{"MB", 1 << 20},
		{"KB", 1 << 10},
		{"B", 1},
	} {
		if strings.HasSuffix(s, unit.suffix) {
			multiplier = unit.mult
			s = strings.TrimSpace(strings.TrimSuffix(s, unit.suffix))
			break
		}
	}

	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid size %q", s)
	}
	return n * multiplier, nil
}
