package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Config holds all service configuration
type Config struct {
	Service   ServiceConfig
	Storage   StorageConfig
	Session   SessionConfig
	Image     ImageConfig
	Redis     RedisConfig
	RateLimit RateLimitConfig
	Telemetry TelemetryConfig
}

// ServiceConfig holds service-specific settings
type ServiceConfig struct {
	Name        string
	Port        int
	Environment string
	LogLevel    string
	LogFormat   string
}

// StorageConfig holds the on-disk layout settings
type StorageConfig struct {
	UploadDir string // session directories live here, one per sid
	TmpDir    string // multipart parts are staged here before processing
}

// SessionConfig holds session lifecycle limits
type SessionConfig struct {
	TTL           time.Duration
	MaxFiles      int
	MaxTotalBytes int64
	MaxFileBytes  int64
}

// ImageConfig holds conversion pipeline settings
type ImageConfig struct {
	Quality          int    // output quality (0-100)
	MaxDimension     int    // cap long edge (px); 0 disables
	AnimatedPolicy   string // "first-frame" or "reject"
	LimitInputPixels int64  // safety guard vs decompression bombs
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Host     string
	Port     int
	Password string
}

// RateLimitConfig holds session-creation rate limit settings
type RateLimitConfig struct {
	Enabled        bool
	SessionsPerMin int64
}

// TelemetryConfig holds observability settings
type TelemetryConfig struct {
	EnablePprof bool
	PprofPort   int
}

// Load loads configuration from environment variables
func Load(serviceName string) (*Config, error) {
	cfg := &Config{
		Service: ServiceConfig{
			Name:        serviceName,
			Port:        getEnvInt("PORT", 8080),
			Environment: getEnv("ENVIRONMENT", "development"),
			LogLevel:    getEnv("LOG_LEVEL", "info"),
			LogFormat:   getEnv("LOG_FORMAT", "text"), // Default to text for development
		},
		Storage: StorageConfig{
			UploadDir: absPath(getEnv("UPLOAD_DIR", filepath.Join("data", "uploads"))),
			TmpDir:    absPath(getEnv("UPLOAD_TMP_DIR", filepath.Join("data", "tmp"))),
		},
		Session: SessionConfig{
			TTL:           time.Duration(getEnvInt("SESSION_TTL_MINUTES", 15)) * time.Minute,
			MaxFiles:      getEnvInt("SESSION_MAX_FILES", 20),
			MaxTotalBytes: getEnvInt64("SESSION_MAX_TOTAL_BYTES", 500_000_000),
			MaxFileBytes:  getEnvInt64("SESSION_PER_FILE_BYTES", 20_000_000),
		},
		Image: ImageConfig{
			Quality:          getEnvInt("IMAGE_QUALITY", 85),
			MaxDimension:     getEnvInt("IMAGE_MAX_DIMENSION", 8192),
			AnimatedPolicy:   getEnv("IMAGE_ANIMATED_POLICY", "first-frame"),
			LimitInputPixels: getEnvInt64("IMAGE_LIMIT_INPUT_PIXELS", 200_000_000),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnvInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
		},
		RateLimit: RateLimitConfig{
			Enabled:        getEnvBool("RATE_LIMIT_ENABLED", false),
			SessionsPerMin: getEnvInt64("RATE_LIMIT_SESSIONS_PER_MIN", 3),
		},
		Telemetry: TelemetryConfig{
			EnablePprof: getEnvBool("ENABLE_PPROF", false),
			PprofPort:   getEnvInt("PPROF_PORT", 6060),
		},
	}

	return cfg, cfg.Validate()
}

// Validate checks if configuration is valid
func (c *Config) Validate() error {
	if c.Service.Port < 1 || c.Service.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Service.Port)
	}

	if c.Session.TTL <= 0 {
		return fmt.Errorf("session TTL must be positive")
	}

	if c.Image.Quality < 0 || c.Image.Quality > 100 {
		return fmt.Errorf("image quality must be 0-100, got %d", c.Image.Quality)
	}

	if p := c.Image.AnimatedPolicy; p != "first-frame" && p != "reject" {
		return fmt.Errorf("unknown animated policy: %q", p)
	}

	return nil
}

// RedisAddr returns the host:port address for the Redis client
func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

// absPath resolves a possibly relative dir against the working directory.
// Stored asset paths must be absolute when handed to the response writer.
func absPath(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	wd, err := os.Getwd()
	if err != nil {
		return p
	}
	return filepath.Join(wd, p)
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
