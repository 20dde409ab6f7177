package config // package config loads application configuration from environment variables

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

const (
	// MinJWTSecretLength is the shortest signing secret the server accepts.
	MinJWTSecretLength = 32
	// AppleIssuer is the only issuer Apple identity tokens are accepted from.
	AppleIssuer = "https://appleid.apple.com"
	// AppleKeysURL is Apple's published JWKS endpoint.
	AppleKeysURL = "https://appleid.apple.com/auth/keys"
)

// Config holds all runtime configuration values. Each field corresponds to
// an environment variable.
type Config struct {
	Env           string // application environment (development, production, test)
	Port          string // HTTP port to listen on
	DBUser        string // database username
	DBPass        string // database password (optional)
	DBHost        string // database host address
	DBPort        string // database port number
	DBName        string // database name
	JWTSecret     string // HS256 secret used to sign session tokens
	AppleAudience string // iOS bundle id expected in Apple identity tokens
	AppleIssuer   string // expected issuer of Apple identity tokens
	AppleKeysURL  string // JWKS endpoint for Apple identity token keys
	CORSOrigin    string // allowed CORS origin
	RabbitMQURL   string // broker URL; empty disables the notification queue
	LogLevel      string // debug, info, warn, error
	RunMigrations bool   // apply embedded migrations at startup
}

// Load reads configuration values from the environment (and a .env file when
// present) and validates them. Every problem found is reported in the
// returned error so a misconfigured deployment fails once, loudly.
func Load() (Config, error) {
	// A missing .env file is normal in production.
	_ = godotenv.Load()

	var problems []string
	required := func(key string) string {
		v := strings.TrimSpace(os.Getenv(key))
		if v == "" {
			problems = append(problems, key+" is required")
		}
		return v
	}

	cfg := Config{
		Env:           envStr("APP_ENV", "development"),
		Port:          envStr("APP_PORT", "3000"),
		DBUser:        required("DB_USER"),
		DBPass:        os.Getenv("DB_PASS"),
		DBHost:        envStr("DB_HOST", "localhost"),
		DBPort:        envStr("DB_PORT", "3306"),
		DBName:        required("DB_NAME"),
		JWTSecret:     required("JWT_SECRET"),
		AppleAudience: required("APPLE_AUDIENCE"),
		AppleIssuer:   envStr("APPLE_ISSUER", AppleIssuer),
		AppleKeysURL:  envStr("APPLE_KEYS_URL", AppleKeysURL),
		CORSOrigin:    envStr("CORS_ORIGIN", "*"),
		RabbitMQURL:   os.Getenv("RABBITMQ_URL"),
		LogLevel:      envStr("LOG_LEVEL", "info"),
		RunMigrations: envBool("RUN_MIGRATIONS", false),
	}

	if cfg.JWTSecret != "" && len(cfg.JWTSecret) < MinJWTSecretLength {
		problems = append(problems, fmt.Sprintf("JWT_SECRET must be at least %d characters long", MinJWTSecretLength))
	}
	if cfg.AppleIssuer != AppleIssuer {
		problems = append(problems, "APPLE_ISSUER must be "+AppleIssuer)
	}
	switch cfg.Env {
	case "development", "production", "test":
	default:
		problems = append(problems, "APP_ENV must be one of development, production, test")
	}

	if len(problems) > 0 {
		return Config{}, errors.New("invalid configuration: " + strings.Join(problems, "; "))
	}
	return cfg, nil
}
