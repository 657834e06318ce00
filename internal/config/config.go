package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application. Storage backends are
// configured separately by storage.LoadConfig.
type Config struct {
	Port           string
	AllowedOrigins []string
	WSReadTimeout  time.Duration
	WSWriteTimeout time.Duration
	LogLevel       string
	PingPeriod     time.Duration
	PongWait       time.Duration
	WriteWait      time.Duration
	MaxMessageSize int64

	// Processing loop
	RefreshInterval       time.Duration
	RefreshIntervalHidden time.Duration
	HiddenBackoffAfter    time.Duration
	TickInterval          time.Duration
	MenuDebounce          time.Duration
	SlotMaxAge            time.Duration

	// Sessions and alerts
	CallAlert          time.Duration
	ChatAlert          time.Duration
	AlertsEnabled      bool
	CallClearTicks     int
	ChatCapacity       int
	ShowChatMultiplier bool
	HistoryLimit       int
	VocabularyFile     string

	// Auth
	SkipAuth        bool
	VerifySignature bool
	OIDCIssuer      string

	// Alert fan-out
	NATSURL     string
	NATSSubject string

	// Daily report archive
	ExportBucket    string
	ExportPrefix    string
	ExportEndpoint  string
	ExportRegion    string
	ExportAccessKey string
	ExportSecretKey string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	config := &Config{
		Port:           getEnv("PORT", "8080"),
		AllowedOrigins: strings.Split(getEnv("ALLOWED_ORIGINS", "http://localhost:5173"), ","),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		VocabularyFile: os.Getenv("VOCABULARY_FILE"),
		SkipAuth:       os.Getenv("SKIP_AUTH") == "true",
		NATSURL:        os.Getenv("NATS_URL"),
		NATSSubject:    getEnv("NATS_SUBJECT", "queuemonitor.alerts"),
		ExportBucket:   os.Getenv("EXPORT_BUCKET"),
		ExportPrefix:   getEnv("EXPORT_PREFIX", "reports/"),
		ExportEndpoint: os.Getenv("EXPORT_ENDPOINT"),
		ExportRegion:   getEnv("EXPORT_REGION", "eu-central-1"),

		ExportAccessKey: os.Getenv("EXPORT_ACCESS_KEY"),
		ExportSecretKey: os.Getenv("EXPORT_SECRET_KEY"),
	}

	var err error

	// Parse WebSocket timeouts
	if config.WSReadTimeout, err = getSeconds("WS_READ_TIMEOUT", 60); err != nil {
		return nil, err
	}
	if config.WSWriteTimeout, err = getSeconds("WS_WRITE_TIMEOUT", 10); err != nil {
		return nil, err
	}

	// Calculate WebSocket constants
	config.PongWait = config.WSReadTimeout
	config.PingPeriod = (config.PongWait * 9) / 10 // Must be less than pongWait
	config.WriteWait = config.WSWriteTimeout
	config.MaxMessageSize = 512

	for _, d := range []struct {
		key string
		def int
		dst *time.Duration
	}{
		{"REFRESH_INTERVAL_MS", 1500, &config.RefreshInterval},
		{"REFRESH_INTERVAL_HIDDEN_MS", 4000, &config.RefreshIntervalHidden},
		{"HIDDEN_BACKOFF_AFTER_MS", 60000, &config.HiddenBackoffAfter},
		{"TICK_INTERVAL_MS", 1000, &config.TickInterval},
		{"MENU_DEBOUNCE_MS", 500, &config.MenuDebounce},
	} {
		if *d.dst, err = getMillis(d.key, d.def); err != nil {
			return nil, err
		}
	}

	if config.CallAlert, err = getSeconds("CALL_ALERT_SECS", 600); err != nil {
		return nil, err
	}
	if config.ChatAlert, err = getSeconds("CHAT_ALERT_SECS", 600); err != nil {
		return nil, err
	}

	days, err := getInt("SLOT_MAX_AGE_DAYS", 7)
	if err != nil {
		return nil, err
	}
	config.SlotMaxAge = time.Duration(days) * 24 * time.Hour

	if config.CallClearTicks, err = getInt("CALL_CLEAR_TICKS", 3); err != nil {
		return nil, err
	}
	if config.ChatCapacity, err = getInt("CHAT_CAPACITY", 2); err != nil {
		return nil, err
	}
	if config.HistoryLimit, err = getInt("HISTORY_LIMIT", 200); err != nil {
		return nil, err
	}
	if config.AlertsEnabled, err = getBool("ALERTS_ENABLED", true); err != nil {
		return nil, err
	}
	if config.ShowChatMultiplier, err = getBool("SHOW_CHAT_MULTIPLIER", false); err != nil {
		return nil, err
	}

	config.OIDCIssuer = oidcIssuer()
	// Production verifies signatures unless explicitly in development
	env := os.Getenv("ENV")
	config.VerifySignature = os.Getenv("VERIFY_JWT_SIGNATURE") == "true" || (env != "" && env != "development")

	// Trim spaces from allowed origins
	for i, origin := range config.AllowedOrigins {
		config.AllowedOrigins[i] = strings.TrimSpace(origin)
	}

	return config, nil
}

// oidcIssuer prefers OIDC_ISSUER and falls back to the Keycloak realm URL
func oidcIssuer() string {
	if issuer := os.Getenv("OIDC_ISSUER"); issuer != "" {
		return issuer
	}
	base, realm := os.Getenv("KEYCLOAK_URL"), os.Getenv("KEYCLOAK_REALM")
	if base == "" || realm == "" {
		return ""
	}
	return strings.TrimSuffix(base, "/") + "/realms/" + realm
}

// getEnv gets an environment variable with a fallback default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) (int, error) {
	v, err := strconv.Atoi(getEnv(key, strconv.Itoa(defaultValue)))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func getBool(key string, defaultValue bool) (bool, error) {
	v, err := strconv.ParseBool(getEnv(key, strconv.FormatBool(defaultValue)))
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func getSeconds(key string, defaultValue int) (time.Duration, error) {
	v, err := getInt(key, defaultValue)
	return time.Duration(v) * time.Second, err
}

func getMillis(key string, defaultValue int) (time.Duration, error) {
	v, err := getInt(key, defaultValue)
	return time.Duration(v) * time.Millisecond, err
}
