package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/edulink/chat/internal/domain"
)

// Config holds all application configuration
type Config struct {
	// Server
	Port           string
	AllowedOrigins []string
	JWTSecret      string
	MaxHistorySize int

	// Rate Limiting
	RateLimitAPI rate.Limit
	RateLimitWS  rate.Limit

	// Client
	ServerURL         string
	FallbackURL       string
	ReconnectAttempts int
	ReconnectDelay    time.Duration
	ReconnectDelayMax time.Duration
	DialTimeout       time.Duration
	PresenceInterval  time.Duration
	SendRate          rate.Limit
	SendBurst         int

	// Logging
	LogLevel string
}

// DefaultConfig returns configuration with default values
func DefaultConfig() *Config {
	return &Config{
		Port:              "8080",
		AllowedOrigins:    []string{"http://localhost:8080", "http://localhost:3000"},
		JWTSecret:         "dev-secret-change-me",
		MaxHistorySize:    domain.MaxHistorySize,
		RateLimitAPI:      10,
		RateLimitWS:       5,
		ServerURL:         "ws://localhost:8080/ws",
		ReconnectAttempts: domain.DefaultReconnectAttempts,
		ReconnectDelay:    domain.DefaultReconnectDelay,
		ReconnectDelayMax: domain.DefaultReconnectDelayMax,
		DialTimeout:       domain.DefaultDialTimeout,
		PresenceInterval:  domain.DefaultPresenceInterval,
		SendRate:          5,
		SendBurst:         10,
		LogLevel:          "info", // Options: debug, info, warn, error, silent
	}
}

// LoadFromEnv loads configuration from environment variables
func LoadFromEnv() *Config {
	cfg := DefaultConfig()

	// Server
	if port := os.Getenv("PORT"); port != "" {
		cfg.Port = port
	}
	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		cfg.AllowedOrigins = parseOrigins(origins)
	}
	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		cfg.JWTSecret = secret
	}
	if size := os.Getenv("MAX_HISTORY_SIZE"); size != "" {
		if val, err := strconv.Atoi(size); err == nil && val > 0 {
			cfg.MaxHistorySize = val
		}
	}

	// Rate Limiting
	if rl := os.Getenv("RATE_LIMIT_API"); rl != "" {
		if val, err := strconv.Atoi(rl); err == nil && val > 0 {
			cfg.RateLimitAPI = rate.Limit(val)
		}
	}
	if rl := os.Getenv("RATE_LIMIT_WS"); rl != "" {
		if val, err := strconv.Atoi(rl); err == nil && val > 0 {
			cfg.RateLimitWS = rate.Limit(val)
		}
	}

	// Client
	if u := os.Getenv("CHAT_SERVER_URL"); u != "" {
		cfg.ServerURL = u
	}
	if u := os.Getenv("CHAT_FALLBACK_URL"); u != "" {
		cfg.FallbackURL = u
	}
	if n := os.Getenv("RECONNECT_ATTEMPTS"); n != "" {
		if val, err := strconv.Atoi(n); err == nil && val > 0 {
			cfg.ReconnectAttempts = val
		}
	}
	if n := os.Getenv("DIAL_TIMEOUT_SECONDS"); n != "" {
		if val, err := strconv.Atoi(n); err == nil && val > 0 {
			cfg.DialTimeout = time.Duration(val) * time.Second
		}
	}
	if n := os.Getenv("PRESENCE_INTERVAL_SECONDS"); n != "" {
		if val, err := strconv.Atoi(n); err == nil && val > 0 {
			cfg.PresenceInterval = time.Duration(val) * time.Second
		}
	}
	if rl := os.Getenv("SEND_RATE"); rl != "" {
		if val, err := strconv.Atoi(rl); err == nil && val > 0 {
			cfg.SendRate = rate.Limit(val)
		}
	}

	// Logging
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		cfg.LogLevel = level
	}

	return cfg
}

// parseOrigins parses comma-separated origins
func parseOrigins(origins string) []string {
	parts := strings.Split(origins, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}

// Global configuration instance
var AppConfig = LoadFromEnv()
