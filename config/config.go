package config

import (
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// AppConfig holds environment driven configuration values.
// Credentials must come from the config file or the environment, never from
// defaults in code.
type AppConfig struct {
	AppPort            string
	RateLimitPerMinute int
	AllowedOrigins     []string
	UploadDir          string
	// Gin framework configuration
	GinMode string
	GinPath string
	// MySQL for durable subscriptions
	DatabaseURI string
	DBHost      string
	DBPort      string
	DBUser      string
	DBPassword  string
	DBName      string
	// Search cluster holding the post and notification indexes. Leave
	// addresses empty to run with process-resident stores (dev mode).
	SearchAddresses         []string
	SearchUsername          string
	SearchPassword          string
	SearchInsecureTLS       bool
	SearchPostIndex         string
	SearchNotificationIndex string
	// Redis for response caching
	RedisHost     string
	RedisPort     int
	RedisDB       int
	RedisPassword string
	// Logging configuration
	LogLevel      string
	LogPath       string
	LogMaxSizeMB  int
	LogMaxBackups int
	LogMaxAgeDays int
	LogCompress   bool
}

var cfg AppConfig
var loaded bool

// Load loads the application configuration. It should be called once during
// boot. Precedence: config/config.json -> defaults -> environment overrides.
func Load() AppConfig {
	if loaded {
		return cfg
	}

	if err := loadJSONConfig(filepath.Join("config", "config.json"), &cfg); err != nil {
		log.Fatalf("invalid config file: %v", err)
	}
	applyDefaults(&cfg)
	applyEnvOverrides(&cfg)

	loaded = true
	return cfg
}

// Get returns the cached configuration, loading it if necessary.
func Get() AppConfig {
	if !loaded {
		return Load()
	}
	return cfg
}

// loadJSONConfig reads the grouped JSON file into out if present. Returns
// an error only for invalid JSON.
func loadJSONConfig(path string, out *AppConfig) error {
	f, err := os.Open(path)
	if err != nil {
		return nil // silently ignore missing file
	}
	defer f.Close()

	var raw map[string]map[string]any
	if err := json.NewDecoder(f).Decode(&raw); err != nil {
		return err
	}

	if app, ok := raw["app"]; ok {
		setString(app, "AppPort", &out.AppPort)
		setInt(app, "RateLimitPerMinute", &out.RateLimitPerMinute)
		setStringSlice(app, "AllowedOrigins", &out.AllowedOrigins)
		setString(app, "UploadDir", &out.UploadDir)
	}
	if g, ok := raw["gin"]; ok {
		setString(g, "Mode", &out.GinMode)
		setString(g, "LogPath", &out.GinPath)
	}
	if db, ok := raw["database"]; ok {
		setString(db, "DatabaseURI", &out.DatabaseURI)
		setString(db, "DBHost", &out.DBHost)
		setString(db, "DBPort", &out.DBPort)
		setString(db, "DBUser", &out.DBUser)
		setString(db, "DBPassword", &out.DBPassword)
		setString(db, "DBName", &out.DBName)
	}
	if s, ok := raw["search"]; ok {
		setStringSlice(s, "Addresses", &out.SearchAddresses)
		setString(s, "Username", &out.SearchUsername)
		setString(s, "Password", &out.SearchPassword)
		setBool(s, "InsecureTLS", &out.SearchInsecureTLS)
		setString(s, "PostIndex", &out.SearchPostIndex)
		setString(s, "NotificationIndex", &out.SearchNotificationIndex)
	}
	if r, ok := raw["redis"]; ok {
		setString(r, "RedisHost", &out.RedisHost)
		setInt(r, "RedisPort", &out.RedisPort)
		setInt(r, "RedisDB", &out.RedisDB)
		setString(r, "RedisPassword", &out.RedisPassword)
	}
	if lg, ok := raw["log"]; ok {
		setString(lg, "Level", &out.LogLevel)
		setString(lg, "Path", &out.LogPath)
		setInt(lg, "MaxSizeMB", &out.LogMaxSizeMB)
		setInt(lg, "MaxBackups", &out.LogMaxBackups)
		setInt(lg, "MaxAgeDays", &out.LogMaxAgeDays)
		setBool(lg, "Compress", &out.LogCompress)
	}
	return nil
}

// applyDefaults sets sane defaults for zero-value fields.
func applyDefaults(c *AppConfig) {
	if c.AppPort == "" {
		c.AppPort = "8080"
	}
	if c.GinMode == "" {
		c.GinMode = "release"
	}
	if c.GinPath == "" {
		c.GinPath = "logs/go_gin.log"
	}
	if c.RateLimitPerMinute == 0 {
		c.RateLimitPerMinute = 60
	}
	if len(c.AllowedOrigins) == 0 {
		c.AllowedOrigins = []string{"*"}
	}
	if c.UploadDir == "" {
		c.UploadDir = "static/uploads"
	}
	if c.DBHost == "" {
		c.DBHost = "127.0.0.1"
	}
	if c.DBPort == "" {
		c.DBPort = "3306"
	}
	if c.DBUser == "" {
		c.DBUser = "root"
	}
	if c.DBName == "" {
		c.DBName = "topichub"
	}
	if c.SearchPostIndex == "" {
		c.SearchPostIndex = "posts"
	}
	if c.SearchNotificationIndex == "" {
		c.SearchNotificationIndex = "notifications"
	}
	if c.RedisHost == "" {
		c.RedisHost = "127.0.0.1"
	}
	if c.RedisPort == 0 {
		c.RedisPort = 6379
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogMaxSizeMB == 0 {
		c.LogMaxSizeMB = 100
	}
	if c.LogMaxBackups == 0 {
		c.LogMaxBackups = 3
	}
	if c.LogMaxAgeDays == 0 {
		c.LogMaxAgeDays = 7
	}
}

// applyEnvOverrides maps known environment variables onto config values when present.
func applyEnvOverrides(c *AppConfig) {
	setEnvString("APP_PORT", &c.AppPort)
	setEnvInt("RATE_LIMIT_PER_MINUTE", &c.RateLimitPerMinute)
	setEnvList("CORS_ALLOWED_ORIGINS", &c.AllowedOrigins)
	setEnvString("UPLOAD_DIR", &c.UploadDir)
	setEnvString("GIN_MODE", &c.GinMode)
	setEnvString("GIN_PATH", &c.GinPath)
	setEnvString("DATABASE_URI", &c.DatabaseURI)
	setEnvString("DB_HOST", &c.DBHost)
	setEnvString("DB_PORT", &c.DBPort)
	setEnvString("DB_USER", &c.DBUser)
	setEnvString("DB_PASSWORD", &c.DBPassword)
	setEnvString("DB_NAME", &c.DBName)
	setEnvList("SEARCH_ADDRESSES", &c.SearchAddresses)
	setEnvString("SEARCH_USERNAME", &c.SearchUsername)
	setEnvString("SEARCH_PASSWORD", &c.SearchPassword)
	setEnvBool("SEARCH_INSECURE_TLS", &c.SearchInsecureTLS)
	setEnvString("SEARCH_POST_INDEX", &c.SearchPostIndex)
	setEnvString("SEARCH_NOTIFICATION_INDEX", &c.SearchNotificationIndex)
	setEnvString("REDIS_HOST", &c.RedisHost)
	setEnvInt("REDIS_PORT", &c.RedisPort)
	setEnvInt("REDIS_DB", &c.RedisDB)
	setEnvString("REDIS_PASSWORD", &c.RedisPassword)
	setEnvString("LOG_LEVEL", &c.LogLevel)
	setEnvString("LOG_PATH", &c.LogPath)
	setEnvInt("LOG_MAX_SIZE_MB", &c.LogMaxSizeMB)
	setEnvInt("LOG_MAX_BACKUPS", &c.LogMaxBackups)
	setEnvInt("LOG_MAX_AGE_DAYS", &c.LogMaxAgeDays)
	setEnvBool("LOG_COMPRESS", &c.LogCompress)
}

func setString(m map[string]any, key string, dst *string) {
	if v, ok := m[key].(string); ok && v != "" {
		*dst = v
	}
}

func setInt(m map[string]any, key string, dst *int) {
	switch v := m[key].(type) {
	case float64:
		if v != 0 {
			*dst = int(v)
		}
	case json.Number:
		if i, err := v.Int64(); err == nil && i != 0 {
			*dst = int(i)
		}
	}
}

func setBool(m map[string]any, key string, dst *bool) {
	if v, ok := m[key].(bool); ok {
		*dst = v
	}
}

func setStringSlice(m map[string]any, key string, dst *[]string) {
	arr, ok := m[key].([]any)
	if !ok {
		return
	}
	res := make([]string, 0, len(arr))
	for _, it := range arr {
		if s, ok := it.(string); ok {
			res = append(res, s)
		}
	}
	if len(res) > 0 {
		*dst = res
	}
}

func setEnvString(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setEnvInt(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err != nil {
			log.Fatalf("invalid integer value for %s: %v", key, err)
		}
		*dst = i
	}
}

func setEnvBool(key string, dst *bool) {
	if v := os.Getenv(key); v != "" {
		*dst = v == "true"
	}
}

func setEnvList(key string, dst *[]string) {
	raw := os.Getenv(key)
	if raw == "" {
		return
	}
	items := []string{}
	for _, item := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			items = append(items, trimmed)
		}
	}
	if len(items) > 0 {
		*dst = items
	}
}
