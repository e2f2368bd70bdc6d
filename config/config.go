package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	TypeaheadURL   string
	SearchURL      string
	SiteOrigin     string
	PageSize       int
	MaxAPIResults  int
	TargetResults  int
	Frequencies    []string
	Transport      string
	UserAgent      string
	ChromeBin      string
	MaxConcurrency int
	RateLimitMs    int
	MaxRetries     int
	RequestTimeout time.Duration

	LocalDBPath string

	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string
	RemoteSync       bool

	TravelTimeURL    string
	TravelTimeAppID  string
	TravelTimeAPIKey string
	OriginLat        float64
	OriginLng        float64
	TravelTimeBatch  int

	UserBudget    float64
	CSVOutputPath string
	MetricsAddr   string
	SearchesFile  string
}

// Load reads the .env file and returns a populated Config struct.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, falling back to system env vars")
	}

	return &Config{
		TypeaheadURL:   getEnv("TYPEAHEAD_URL", "https://www.rightmove.co.uk/typeAhead/uknostreet"),
		SearchURL:      getEnv("SEARCH_URL", "https://www.rightmove.co.uk/api/_search"),
		SiteOrigin:     getEnv("SITE_ORIGIN", "https://www.rightmove.co.uk"),
		PageSize:       getEnvInt("PAGE_SIZE", 24),
		MaxAPIResults:  getEnvInt("MAX_API_RESULTS", 1000),
		TargetResults:  getEnvInt("TARGET_RESULTS", 250),
		Frequencies:    []string{"monthly", "weekly"},
		Transport:      getEnv("TRANSPORT", "http"),
		UserAgent:      getEnv("USER_AGENT", "Mozilla/5.0 (Windows NT 10.0; Win64; x64)"),
		ChromeBin:      getEnv("CHROME_BIN", ""),
		MaxConcurrency: getEnvInt("MAX_CONCURRENCY", 8),
		RateLimitMs:    getEnvInt("RATE_LIMIT_MS", 250),
		MaxRetries:     getEnvInt("MAX_RETRIES", 1),
		RequestTimeout: time.Duration(getEnvInt("REQUEST_TIMEOUT_MS", 20000)) * time.Millisecond,

		LocalDBPath: getEnv("LOCAL_DB_PATH", "./data/properties.db"),

		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "postgres"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", ""),
		PostgresDB:       getEnv("POSTGRES_DB", "postgres"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "require"),
		RemoteSync:       getEnvBool("REMOTE_SYNC", true),

		TravelTimeURL:    getEnv("TRAVELTIME_URL", "https://api.traveltimeapp.com/v4/time-filter"),
		TravelTimeAppID:  getEnv("TRAVELTIME_APP_ID", ""),
		TravelTimeAPIKey: getEnv("TRAVELTIME_API_KEY", ""),
		OriginLat:        getEnvFloat("ORIGIN_LAT", 51.513),
		OriginLng:        getEnvFloat("ORIGIN_LNG", -0.088),
		TravelTimeBatch:  getEnvInt("TRAVELTIME_BATCH", 2000),

		UserBudget:    getEnvFloat("USER_BUDGET", 1200),
		CSVOutputPath: getEnv("CSV_OUTPUT_PATH", "./output/clean_listings.csv"),
		MetricsAddr:   getEnv("METRICS_ADDR", ""),
		SearchesFile:  getEnv("SEARCHES_FILE", ""),
	}
}

// DSN returns the PostgreSQL connection string for the remote store.
func (c *Config) DSN() string {
	return "host=" + c.PostgresHost +
		" port=" + c.PostgresPort +
		" user=" + c.PostgresUser +
		" password=" + c.PostgresPassword +
		" dbname=" + c.PostgresDB +
		" sslmode=" + c.PostgresSSLMode
}

// TravelTimeEnabled reports whether TravelTime credentials are configured.
func (c *Config) TravelTimeEnabled() bool {
	return c.TravelTimeAppID != "" && c.TravelTimeAPIKey != ""
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.Atoi(val)
		if err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if val := os.Getenv(key); val != "" {
		f, err := strconv.ParseFloat(val, 64)
		if err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		b, err := strconv.ParseBool(val)
		if err == nil {
			return b
		}
	}
	return fallback
}
