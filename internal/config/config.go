package config

import (
	"errors"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// ErrMissingCredentials is returned when one of the PowerOffice keys is absent.
// The run must not start without them.
var ErrMissingCredentials = errors.New("missing_poweroffice_credentials")

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	LogLevel    string

	PowerOffice PowerOfficeConfig

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int

	BatchAutoConfirm bool
	OrderEmailTo     string
}

// PowerOfficeConfig carries the credentials and endpoints for the
// PowerOffice GO API. Demo and production live on different hosts; the
// URLs default from Environment and can be overridden individually.
type PowerOfficeConfig struct {
	AppKey          string
	ClientKey       string
	SubscriptionKey string
	TokenURL        string
	APIBaseURL      string
}

const (
	EnvDemo       = "demo"
	EnvProduction = "production"

	demoTokenURL      = "https://goapi.poweroffice.net/demo/oauth/Token"
	demoAPIBaseURL    = "https://goapi.poweroffice.net/demo/v2"
	defaultTokenURL   = "https://goapi.poweroffice.net/oauth/Token"
	defaultAPIBaseURL = "https://goapi.poweroffice.net/v2"
)

// Load loads configuration from environment variables and .env file.
// Missing PowerOffice credentials are fatal: the batch must fail before
// touching the database or the API.
func Load() (Config, error) {
	_ = godotenv.Load()

	environment := normalizeEnvironment(getenv("ENVIRONMENT", EnvDemo))

	tokenURL := defaultTokenURL
	apiBaseURL := defaultAPIBaseURL
	if environment == EnvDemo {
		tokenURL = demoTokenURL
		apiBaseURL = demoAPIBaseURL
	}

	cfg := Config{
		AppName:     getenv("APP_SERVICE", "invoicerun"),
		AppVersion:  getenv("APP_VERSION", "0.1.0"),
		Environment: environment,
		LogLevel:    getenv("LOG_LEVEL", "info"),
		PowerOffice: PowerOfficeConfig{
			AppKey:          strings.TrimSpace(getenv("PO_APP_KEY", "")),
			ClientKey:       strings.TrimSpace(getenv("PO_CLIENT_KEY", "")),
			SubscriptionKey: strings.TrimSpace(getenv("PO_SUB_KEY", "")),
			TokenURL:        getenv("PO_TOKEN_URL", tokenURL),
			APIBaseURL:      getenv("PO_API_BASE_URL", apiBaseURL),
		},
		DBType:            getenv("DATABASE_TYPE", "mysql"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "3306"),
		DBName:            getenv("DATABASE_NAME", "billing"),
		DBUser:            getenv("DATABASE_USER", "billing"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 2),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 4),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 300),
		BatchAutoConfirm:  getenvBool("BATCH_AUTO_CONFIRM", false),
		OrderEmailTo:      strings.TrimSpace(getenv("ORDER_EMAIL_TO", "")),
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	po := c.PowerOffice
	if po.AppKey == "" || po.ClientKey == "" || po.SubscriptionKey == "" {
		return ErrMissingCredentials
	}
	return nil
}

func (c Config) IsProduction() bool {
	return c.Environment == EnvProduction
}

func normalizeEnvironment(raw string) string {
	value := strings.ToLower(strings.TrimSpace(raw))
	switch value {
	case EnvProduction, "prod":
		return EnvProduction
	default:
		return EnvDemo
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}
