package profile

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Profile is the configuration to start the main server.
type Profile struct {
	// Mode can be "prod" or "dev" or "demo"
	Mode string
	// Addr is the binding address for the admin server
	Addr string
	// Port is the binding port for the admin server
	Port int
	// Version is the current version of the server
	Version string

	// Redis connection
	RedisAddr     string // CACHEWARDEN_REDIS_ADDR (default: localhost:6379)
	RedisPassword string // CACHEWARDEN_REDIS_PASSWORD
	RedisDB       int    // CACHEWARDEN_REDIS_DB (default: 0)

	// Cache behavior
	KeyPrefix            string        // CACHEWARDEN_KEY_PREFIX (default: cw:)
	DefaultTTL           time.Duration // CACHEWARDEN_DEFAULT_TTL_SECONDS (default: 3600s)
	CompressionThreshold int           // CACHEWARDEN_COMPRESSION_THRESHOLD (default: 1024 bytes)
	MaxKeyLength         int           // CACHEWARDEN_MAX_KEY_LENGTH (default: 250)

	// Memory governor
	MemoryLimitBytes int64         // CACHEWARDEN_MEMORY_LIMIT_BYTES (default: 23 MiB)
	WarningRatio     float64       // CACHEWARDEN_MEMORY_WARNING_RATIO (default: 0.87)
	EmergencyRatio   float64       // CACHEWARDEN_MEMORY_EMERGENCY_RATIO (default: 0.96)
	MonitorInterval  time.Duration // CACHEWARDEN_MONITOR_INTERVAL_SECONDS (default: 30s)

	// Foreign cache prefixes sharing the same store instance. These live
	// under KeyPrefix but are written by other subsystems; the governor is
	// allowed to shed them.
	VoiceTranscriptPrefix string // CACHEWARDEN_VOICE_TRANSCRIPT_PREFIX (default: voice_transcription)
	AIContextPrefix       string // CACHEWARDEN_AI_CONTEXT_PREFIX (default: ai_context)
}

func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

// WarningBytes returns the absolute warning threshold.
func (p *Profile) WarningBytes() int64 {
	return int64(float64(p.MemoryLimitBytes) * p.WarningRatio)
}

// EmergencyBytes returns the absolute emergency threshold.
func (p *Profile) EmergencyBytes() int64 {
	return int64(float64(p.MemoryLimitBytes) * p.EmergencyRatio)
}

// getEnvOrDefault returns the environment variable value or the default value.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnvOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getInt64EnvOrDefault(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.ParseInt(value, 10, 64); err == nil {
			return n
		}
	}
	return defaultValue
}

func getFloatEnvOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// FromEnv loads configuration from CACHEWARDEN_* environment variables.
func (p *Profile) FromEnv() {
	p.RedisAddr = getEnvOrDefault("CACHEWARDEN_REDIS_ADDR", "localhost:6379")
	p.RedisPassword = os.Getenv("CACHEWARDEN_REDIS_PASSWORD")
	p.RedisDB = getIntEnvOrDefault("CACHEWARDEN_REDIS_DB", 0)

	p.KeyPrefix = getEnvOrDefault("CACHEWARDEN_KEY_PREFIX", "cw:")
	p.DefaultTTL = time.Duration(getIntEnvOrDefault("CACHEWARDEN_DEFAULT_TTL_SECONDS", 3600)) * time.Second
	p.CompressionThreshold = getIntEnvOrDefault("CACHEWARDEN_COMPRESSION_THRESHOLD", 1024)
	p.MaxKeyLength = getIntEnvOrDefault("CACHEWARDEN_MAX_KEY_LENGTH", 250)

	p.MemoryLimitBytes = getInt64EnvOrDefault("CACHEWARDEN_MEMORY_LIMIT_BYTES", 23*1024*1024)
	p.WarningRatio = getFloatEnvOrDefault("CACHEWARDEN_MEMORY_WARNING_RATIO", 0.87)
	p.EmergencyRatio = getFloatEnvOrDefault("CACHEWARDEN_MEMORY_EMERGENCY_RATIO", 0.96)
	p.MonitorInterval = time.Duration(getIntEnvOrDefault("CACHEWARDEN_MONITOR_INTERVAL_SECONDS", 30)) * time.Second

	p.VoiceTranscriptPrefix = getEnvOrDefault("CACHEWARDEN_VOICE_TRANSCRIPT_PREFIX", "voice_transcription")
	p.AIContextPrefix = getEnvOrDefault("CACHEWARDEN_AI_CONTEXT_PREFIX", "ai_context")
}

// longestNamespace must track the longest namespace prefix defined in the
// store package, so that MaxKeyLength always leaves room for the hash
// surrogate of every namespace.
const longestNamespace = "analytics"

func (p *Profile) Validate() error {
	if p.Mode != "demo" && p.Mode != "dev" && p.Mode != "prod" {
		p.Mode = "dev"
	}

	if p.RedisAddr == "" {
		return errors.New("redis address must not be empty")
	}
	if p.KeyPrefix == "" {
		return errors.New("key prefix must not be empty")
	}
	if strings.ContainsAny(p.KeyPrefix, " \t\n") {
		return errors.Errorf("key prefix %q must not contain whitespace", p.KeyPrefix)
	}
	if p.MaxKeyLength < len(p.KeyPrefix)+len(longestNamespace)+1+len("hashed:")+16 {
		return errors.Errorf("max key length %d too small for prefix %q plus namespace and hash surrogate", p.MaxKeyLength, p.KeyPrefix)
	}
	if p.DefaultTTL <= 0 {
		return errors.Errorf("default TTL must be positive, got %s", p.DefaultTTL)
	}
	if p.MemoryLimitBytes <= 0 {
		return errors.Errorf("memory limit must be positive, got %d", p.MemoryLimitBytes)
	}
	if p.WarningRatio <= 0 || p.WarningRatio >= 1 {
		return errors.Errorf("warning ratio must be in (0, 1), got %f", p.WarningRatio)
	}
	if p.EmergencyRatio <= p.WarningRatio || p.EmergencyRatio >= 1 {
		return errors.Errorf("emergency ratio must be in (warning ratio, 1), got %f", p.EmergencyRatio)
	}
	if p.MonitorInterval <= 0 {
		return errors.Errorf("monitor interval must be positive, got %s", p.MonitorInterval)
	}

	return nil
}
