package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Loader builds a Config from, lowest priority first:
//  1. defaults
//  2. base.yaml
//  3. <environment>.yaml
//  4. local.yaml (development only)
//  5. environment variables
type Loader struct {
	dir         string
	environment Environment
	getenv      func(string) string
}

func NewLoader(dir string, env Environment) *Loader {
	if dir == "" {
		dir = "config"
	}
	return &Loader{dir: dir, environment: env, getenv: os.Getenv}
}

// Dir returns the directory the loader reads files from.
func (l *Loader) Dir() string {
	return l.dir
}

func (l *Loader) Load() (*Config, error) {
	cfg := Defaults(l.environment)
	sources := []string{"defaults"}

	files := []string{"base", string(l.environment)}
	if l.environment == Development {
		files = append(files, "local")
	}
	for _, name := range files {
		path, err := l.loadFile(name, cfg)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to load %s config: %w", name, err)
		}
		sources = append(sources, path)
	}

	if err := l.applyEnv(cfg); err != nil {
		return nil, err
	}
	sources = append(sources, "environment")
	cfg.LoadedFrom = sources

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func (l *Loader) loadFile(name string, cfg *Config) (string, error) {
	for _, ext := range []string{".yaml", ".yml"} {
		path := filepath.Join(l.dir, name+ext)
		data, err := os.ReadFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return "", err
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return "", fmt.Errorf("failed to parse %s: %w", path, err)
		}
		return path, nil
	}
	return "", fs.ErrNotExist
}

// applyEnv overlays environment variables. Malformed values are errors
// rather than silently ignored.
func (l *Loader) applyEnv(cfg *Config) error {
	var errs []error
	str := func(key string, dst *string) {
		if v := l.getenv(key); v != "" {
			*dst = v
		}
	}
	dur := func(key string, dst *time.Duration) {
		if v := l.getenv(key); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = d
		}
	}
	boolean := func(key string, dst *bool) {
		if v := l.getenv(key); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = b
		}
	}

	str("API_BASE_URL", &cfg.API.BaseURL)
	dur("API_TIMEOUT", &cfg.API.Timeout)
	dur("QUERY_STALE_TIME", &cfg.Query.StaleTime)
	dur("QUERY_GC_TIME", &cfg.Query.GCTime)
	dur("QUERY_RETRY_DELAY", &cfg.Query.RetryDelay)

	str("SERVER_ADDRESS", &cfg.Server.Address)
	if port := l.getenv("PORT"); port != "" {
		cfg.Server.Address = ":" + port
	}

	str("UPLOAD_CLOUD_NAME", &cfg.Uploads.CloudName)
	str("UPLOAD_API_KEY", &cfg.Uploads.APIKey)
	str("UPLOAD_API_SECRET", &cfg.Uploads.APISecret)
	str("UPLOAD_FOLDER", &cfg.Uploads.Folder)

	str("JWT_SECRET", &cfg.Auth.JWTSecret)
	str("JWT_ISSUER", &cfg.Auth.Issuer)
	str("JWT_AUDIENCE", &cfg.Auth.Audience)
	if origins := l.getenv("CORS_ALLOWED_ORIGINS"); origins != "" {
		cfg.CORS.AllowedOrigins = splitList(origins)
	}

	str("LOG_LEVEL", &cfg.Logging.Level)
	str("LOG_FORMAT", &cfg.Logging.Format)
	boolean("ENABLE_METRICS", &cfg.Metrics.Enabled)
	boolean("ENABLE_TRACING", &cfg.Tracing.Enabled)
	str("OTEL_EXPORTER_OTLP_ENDPOINT", &cfg.Tracing.Endpoint)
	str("OTEL_SERVICE_NAME", &cfg.Tracing.ServiceName)

	return errors.Join(errs...)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Defaults returns a configuration that runs without any files.
func Defaults(env Environment) *Config {
	cfg := &Config{
		Environment: env,
		API: API{
			BaseURL:   "http://localhost:3000",
			Timeout:   15 * time.Second,
			UserAgent: "wayfinder/1.0",
		},
		Query: Query{
			StaleTime:  time.Minute,
			GCTime:     5 * time.Minute,
			GCInterval: time.Minute,
		},
		Breaker: Breaker{
			MaxRequests:      5,
			Interval:         30 * time.Second,
			Timeout:          60 * time.Second,
			FailureThreshold: 0.8,
			MinRequests:      5,
		},
		Server: Server{
			Address:         ":8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Uploads: Uploads{
			Folder: "wayfinder",
		},
		Auth: Auth{
			Issuer:   "wayfinder",
			Audience: "wayfinder-api",
		},
		CORS: CORS{
			AllowedOrigins: []string{"http://localhost:3000"},
			MaxAge:         300,
		},
		Logging: Logging{
			Level:  "info",
			Format: "json",
		},
		Metrics: Metrics{
			Enabled:   true,
			Path:      "/metrics",
			Namespace: "wayfinder",
		},
		Tracing: Tracing{
			Endpoint:    "localhost:4317",
			ServiceName: "wayfinder",
			SampleRate:  0.1,
		},
	}
	if env == Development {
		cfg.Auth.JWTSecret = "development-secret-change-in-production"
		cfg.Uploads.APISecret = "development-upload-secret"
		cfg.Logging.Level = "debug"
		cfg.Logging.Format = "console"
		cfg.Tracing.SampleRate = 1
	}
	return cfg
}

// Load reads configuration from CONFIG_DIR (default ./config) for the
// environment named by ENVIRONMENT.
func Load() (*Config, error) {
	dir := os.Getenv("CONFIG_DIR")
	return NewLoader(dir, CurrentEnvironment()).Load()
}

// MustLoad is Load for main functions.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}
