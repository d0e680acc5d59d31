package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"
)

const (
	StoreMongo  = "mongo"
	StoreMemory = "memory"

	NotificationsMongo    = "mongo"
	NotificationsPostgres = "postgres"

	UploadsLocal    = "local"
	UploadsFirebase = "firebase"
)

type Config struct {
	Port        string `yaml:"port"`
	Env         string `yaml:"env"`
	MetricsPort string `yaml:"metrics_port"`
	LogLevel    string `yaml:"log_level"`

	StoreDriver       string        `yaml:"store_driver"`
	MongoURI          string        `yaml:"mongo_uri"`
	MongoDatabase     string        `yaml:"mongo_database"`
	NotificationStore string        `yaml:"notification_store"`
	PostgresUrl       string        `yaml:"postgres_url"`
	StorePingInterval time.Duration `yaml:"store_ping_interval"`

	RedisAddr      string        `yaml:"redis_addr"`
	RedisPassword  string        `yaml:"redis_password"`
	RedisDB        int           `yaml:"redis_db"`
	UnreadCacheTTL time.Duration `yaml:"unread_cache_ttl"`

	JWTSecret string        `yaml:"jwt_secret"`
	TokenTTL  time.Duration `yaml:"token_ttl"`

	FirebaseCredentialsPath string `yaml:"firebase_credentials_path"`
	FirebaseStorageBucket   string `yaml:"firebase_storage_bucket"`

	UploadBackend string `yaml:"upload_backend"`
	UploadDir     string `yaml:"upload_dir"`

	FeedLimit          int `yaml:"feed_limit"`
	MaxLiveConnections int `yaml:"max_live_connections"`
}

func Default() *Config {
	return &Config{
		Port:               "8080",
		Env:                "development",
		MetricsPort:        "9090",
		LogLevel:           "info",
		StoreDriver:        StoreMongo,
		MongoURI:           "mongodb://localhost:27017",
		MongoDatabase:      "socialmedia",
		NotificationStore:  NotificationsMongo,
		StorePingInterval:  10 * time.Second,
		UnreadCacheTTL:     30 * time.Second,
		JWTSecret:          "supersecretjwtkey",
		TokenTTL:           72 * time.Hour,
		UploadBackend:      UploadsLocal,
		UploadDir:          "./uploads",
		FeedLimit:          50,
		MaxLiveConnections: 1000,
	}
}

// Load builds the configuration from defaults, an optional YAML file named by
// CONFIG_FILE, a .env file and finally the process environment.
func Load() (*Config, error) {
	cfg := Default()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.readFile(path); err != nil {
			return nil, err
		}
	}

	if err := godotenv.Load(); err != nil {
		log.Debug("No .env file found, assuming environment variables are set.")
	}
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) readFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Port = getEnv("PORT", c.Port)
	c.Env = getEnv("ENV", c.Env)
	c.MetricsPort = getEnv("METRICS_PORT", c.MetricsPort)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)

	c.StoreDriver = getEnv("STORE_DRIVER", c.StoreDriver)
	c.MongoURI = getEnv("MONGO_URI", c.MongoURI)
	c.MongoDatabase = getEnv("MONGO_DATABASE", c.MongoDatabase)
	c.NotificationStore = getEnv("NOTIFICATION_STORE", c.NotificationStore)
	c.PostgresUrl = getEnv("POSTGRES_URL", c.PostgresUrl)
	c.StorePingInterval = getEnvDuration("STORE_PING_INTERVAL", c.StorePingInterval)

	c.RedisAddr = getEnv("REDIS_ADDR", c.RedisAddr)
	c.RedisPassword = getEnv("REDIS_PASSWORD", c.RedisPassword)
	c.RedisDB = getEnvInt("REDIS_DB", c.RedisDB)
	c.UnreadCacheTTL = getEnvDuration("UNREAD_CACHE_TTL", c.UnreadCacheTTL)

	c.JWTSecret = getEnv("JWT_SECRET", c.JWTSecret)
	c.TokenTTL = getEnvDuration("TOKEN_TTL", c.TokenTTL)

	c.FirebaseCredentialsPath = getEnv("FIREBASE_CREDENTIALS_PATH", c.FirebaseCredentialsPath)
	c.FirebaseStorageBucket = getEnv("FIREBASE_STORAGE_BUCKET", c.FirebaseStorageBucket)

	c.UploadBackend = getEnv("UPLOAD_BACKEND", c.UploadBackend)
	c.UploadDir = getEnv("UPLOAD_DIR", c.UploadDir)

	c.FeedLimit = getEnvInt("FEED_LIMIT", c.FeedLimit)
	c.MaxLiveConnections = getEnvInt("MAX_LIVE_CONNECTIONS", c.MaxLiveConnections)
}

// Validate rejects combinations the server cannot start with.
func (c *Config) Validate() error {
	switch c.StoreDriver {
	case StoreMongo, StoreMemory:
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}
	switch c.NotificationStore {
	case NotificationsMongo:
	case NotificationsPostgres:
		if c.PostgresUrl == "" {
			return fmt.Errorf("POSTGRES_URL is required when NOTIFICATION_STORE=postgres")
		}
	default:
		return fmt.Errorf("unknown NOTIFICATION_STORE %q", c.NotificationStore)
	}
	switch c.UploadBackend {
	case UploadsLocal:
	case UploadsFirebase:
		if c.FirebaseStorageBucket == "" || c.FirebaseCredentialsPath == "" {
			return fmt.Errorf("firebase uploads need FIREBASE_CREDENTIALS_PATH and FIREBASE_STORAGE_BUCKET")
		}
	default:
		return fmt.Errorf("unknown UPLOAD_BACKEND %q", c.UploadBackend)
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET must not be empty")
	}
	if c.RedisAddr != "" && c.UnreadCacheTTL <= 0 {
		return fmt.Errorf("UNREAD_CACHE_TTL must be positive")
	}
	if c.FeedLimit <= 0 {
		return fmt.Errorf("FEED_LIMIT must be positive")
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		log.Warnf("Ignoring invalid %s=%q", key, value)
		return defaultValue
	}
	return n
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		log.Warnf("Ignoring invalid %s=%q", key, value)
		return defaultValue
	}
	return d
}
