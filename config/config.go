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
// Sensitive data should never have defaults inside code and must be provided via env files or the environment.
type AppConfig struct {
	AppPort            string
	JWTSecret          string
	RateLimitPerMinute int
	AllowedOrigins     []string
	OAuthRedirectBase  string
	// Emails granted the administrador role on first login
	AdminEmails []string
	// Database
	DBDriver    string
	DatabaseURI string
	DBHost      string
	DBPort      string
	DBUser      string
	DBPassword  string
	DBName      string
	DBPath      string
	// OAuth providers
	GitHubClientID     string
	GitHubClientSecret string
	GoogleClientID     string
	GoogleClientSecret string
	// Gin framework configuration
	GinMode string
	GinPath string
	// Redis for caching, OAuth state and token revocation
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
	// Media library
	MediaRoot           string
	MediaURLPrefix      string
	MaxUploadMB         int
	FFmpegPath          string
	FFprobePath         string
	TrustDeclaredType   bool
	TranscodeTimeoutSec int
	// Streaming service
	BroadcastBaseURL    string
	BroadcastURLParam   string
	BroadcastTimeoutSec int
	PublicBaseURL       string
}

var cfg AppConfig
var loaded bool

// Load loads the application configuration from environment variables. It should be called once during boot.
func Load() AppConfig {
	if loaded {
		return cfg
	}

	// Precedence: config/config.json -> defaults -> environment variable overrides
	if err := loadJSONConfig(filepath.Join("config", "config.json"), &cfg); err != nil {
		log.Printf("ignoring invalid config/config.json: %v", err)
	}

	applyDefaults(&cfg)
	applyEnvOverrides(&cfg)

	if cfg.JWTSecret == "" {
		log.Fatal("JWT_SECRET must be set in environment variables")
	}

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

// Set replaces the cached configuration. Zero fields are filled with defaults.
func Set(c AppConfig) AppConfig {
	applyDefaults(&c)
	cfg = c
	loaded = true
	return cfg
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// loadJSONConfig reads JSON file into cfg if present. Returns error only for invalid JSON.
func loadJSONConfig(path string, out *AppConfig) error {
	f, err := os.Open(path)
	if err != nil {
		return nil // silently ignore missing file
	}
	defer f.Close()

	var raw map[string]any
	if err := json.NewDecoder(f).Decode(&raw); err != nil {
		return err
	}

	getString := func(m map[string]any, key string) string {
		if v, ok := m[key]; ok {
			if s, ok := v.(string); ok {
				return s
			}
		}
		return ""
	}
	getInt := func(m map[string]any, key string) int {
		if v, ok := m[key]; ok {
			switch t := v.(type) {
			case float64:
				return int(t)
			case int:
				return t
			}
		}
		return 0
	}
	getBool := func(m map[string]any, key string) (bool, bool) {
		if v, ok := m[key]; ok {
			if b, ok := v.(bool); ok {
				return b, true
			}
		}
		return false, false
	}
	getStringSlice := func(m map[string]any, key string) []string {
		if v, ok := m[key]; ok {
			if arr, ok := v.([]any); ok {
				res := make([]string, 0, len(arr))
				for _, it := range arr {
					if s, ok := it.(string); ok {
						res = append(res, s)
					}
				}
				return res
			}
		}
		return nil
	}

	if app, ok := raw["app"].(map[string]any); ok {
		out.AppPort = getString(app, "AppPort")
		out.JWTSecret = getString(app, "JWTSecret")
		out.RateLimitPerMinute = getInt(app, "RateLimitPerMinute")
		out.AllowedOrigins = getStringSlice(app, "AllowedOrigins")
		out.OAuthRedirectBase = getString(app, "OAuthRedirectBase")
		out.AdminEmails = getStringSlice(app, "AdminEmails")
	}

	if g, ok := raw["gin"].(map[string]any); ok {
		out.GinMode = getString(g, "Mode")
		out.GinPath = getString(g, "LogPath")
	}

	if dbs, ok := raw["database"].(map[string]any); ok {
		out.DBDriver = getString(dbs, "Driver")
		out.DatabaseURI = getString(dbs, "DatabaseURI")
		out.DBHost = getString(dbs, "DBHost")
		out.DBPort = getString(dbs, "DBPort")
		out.DBUser = getString(dbs, "DBUser")
		out.DBPassword = getString(dbs, "DBPassword")
		out.DBName = getString(dbs, "DBName")
		out.DBPath = getString(dbs, "Path")
	}

	if rds, ok := raw["redis"].(map[string]any); ok {
		out.RedisHost = getString(rds, "RedisHost")
		out.RedisPort = getInt(rds, "RedisPort")
		out.RedisDB = getInt(rds, "RedisDB")
		out.RedisPassword = getString(rds, "RedisPassword")
	}

	if oa, ok := raw["oauth"].(map[string]any); ok {
		out.GitHubClientID = getString(oa, "GitHubClientID")
		out.GitHubClientSecret = getString(oa, "GitHubClientSecret")
		out.GoogleClientID = getString(oa, "GoogleClientID")
		out.GoogleClientSecret = getString(oa, "GoogleClientSecret")
	}

	if lg, ok := raw["log"].(map[string]any); ok {
		out.LogLevel = getString(lg, "Level")
		out.LogPath = getString(lg, "Path")
		if v := getString(lg, "GinMode"); v != "" {
			out.GinMode = v
		}
		if v := getString(lg, "GinPath"); v != "" {
			out.GinPath = v
		}
		out.LogMaxSizeMB = getInt(lg, "MaxSizeMB")
		out.LogMaxBackups = getInt(lg, "MaxBackups")
		out.LogMaxAgeDays = getInt(lg, "MaxAgeDays")
		out.LogCompress, _ = getBool(lg, "Compress")
	}

	if md, ok := raw["media"].(map[string]any); ok {
		out.MediaRoot = getString(md, "Root")
		out.MediaURLPrefix = getString(md, "URLPrefix")
		out.MaxUploadMB = getInt(md, "MaxUploadMB")
		out.FFmpegPath = getString(md, "FFmpegPath")
		out.FFprobePath = getString(md, "FFprobePath")
		out.TranscodeTimeoutSec = getInt(md, "TranscodeTimeoutSec")
		out.TrustDeclaredType, _ = getBool(md, "TrustDeclaredType")
	}

	if bc, ok := raw["broadcast"].(map[string]any); ok {
		out.BroadcastBaseURL = getString(bc, "BaseURL")
		out.BroadcastURLParam = getString(bc, "URLParam")
		out.BroadcastTimeoutSec = getInt(bc, "TimeoutSec")
		out.PublicBaseURL = getString(bc, "PublicBaseURL")
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
	if c.OAuthRedirectBase == "" {
		c.OAuthRedirectBase = "http://localhost:8080"
	}
	if c.DBDriver == "" {
		c.DBDriver = "mysql"
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
		c.DBName = "radiocms"
	}
	if c.DBPath == "" {
		c.DBPath = "data/radiocms.db"
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
	if c.MediaRoot == "" {
		c.MediaRoot = "public"
	}
	if c.MediaURLPrefix == "" {
		c.MediaURLPrefix = "/media"
	}
	c.MediaURLPrefix = "/" + strings.Trim(c.MediaURLPrefix, "/")
	if c.MaxUploadMB == 0 {
		c.MaxUploadMB = 50
	}
	if c.FFmpegPath == "" {
		c.FFmpegPath = "ffmpeg"
	}
	if c.FFprobePath == "" {
		c.FFprobePath = "ffprobe"
	}
	if c.TranscodeTimeoutSec == 0 {
		c.TranscodeTimeoutSec = 300
	}
	if c.BroadcastBaseURL == "" {
		c.BroadcastBaseURL = "http://localhost:8001/play"
	}
	if c.BroadcastURLParam == "" {
		c.BroadcastURLParam = "url"
	}
	if c.BroadcastTimeoutSec == 0 {
		c.BroadcastTimeoutSec = 10
	}
	c.PublicBaseURL = strings.TrimRight(c.PublicBaseURL, "/")
}

// applyEnvOverrides maps known environment variables onto config values when present.
func applyEnvOverrides(c *AppConfig) {
	if v := getEnv("APP_PORT", ""); v != "" {
		c.AppPort = v
	}
	if v := getEnv("JWT_SECRET", ""); v != "" {
		c.JWTSecret = v
	}
	if v := getEnv("GIN_MODE", ""); v != "" {
		c.GinMode = v
	}
	if v := getEnv("GIN_PATH", ""); v != "" {
		c.GinPath = v
	}
	if v := getEnv("DB_DRIVER", ""); v != "" {
		c.DBDriver = v
	}
	if v := getEnv("DATABASE_URI", ""); v != "" {
		c.DatabaseURI = v
	}
	if v := getEnv("DB_HOST", ""); v != "" {
		c.DBHost = v
	}
	if v := getEnv("DB_PORT", ""); v != "" {
		c.DBPort = v
	}
	if v := getEnv("DB_USER", ""); v != "" {
		c.DBUser = v
	}
	if v := getEnv("DB_PASSWORD", ""); v != "" {
		c.DBPassword = v
	}
	if v := getEnv("DB_NAME", ""); v != "" {
		c.DBName = v
	}
	if v := getEnv("DB_PATH", ""); v != "" {
		c.DBPath = v
	}
	if v := getEnv("GITHUB_CLIENT_ID", ""); v != "" {
		c.GitHubClientID = v
	}
	if v := getEnv("GITHUB_CLIENT_SECRET", ""); v != "" {
		c.GitHubClientSecret = v
	}
	if v := getEnv("GOOGLE_CLIENT_ID", ""); v != "" {
		c.GoogleClientID = v
	}
	if v := getEnv("GOOGLE_CLIENT_SECRET", ""); v != "" {
		c.GoogleClientSecret = v
	}
	if v := getEnv("RATE_LIMIT_PER_MINUTE", ""); v != "" {
		c.RateLimitPerMinute = mustParseInt(v)
	}
	if v := getEnv("CORS_ALLOWED_ORIGINS", ""); v != "" {
		c.AllowedOrigins = readListEnv("CORS_ALLOWED_ORIGINS", c.AllowedOrigins)
	}
	if v := getEnv("ADMIN_EMAILS", ""); v != "" {
		c.AdminEmails = readListEnv("ADMIN_EMAILS", c.AdminEmails)
	}
	if v := getEnv("OAUTH_REDIRECT_BASE_URL", ""); v != "" {
		c.OAuthRedirectBase = v
	}
	if v := getEnv("REDIS_HOST", ""); v != "" {
		c.RedisHost = v
	}
	if v := getEnv("REDIS_PORT", ""); v != "" {
		c.RedisPort = mustParseInt(v)
	}
	if v := getEnv("REDIS_DB", ""); v != "" {
		c.RedisDB = mustParseInt(v)
	}
	if v := getEnv("REDIS_PASSWORD", ""); v != "" {
		c.RedisPassword = v
	}
	if v := getEnv("LOG_LEVEL", ""); v != "" {
		c.LogLevel = v
	}
	if v := getEnv("LOG_PATH", ""); v != "" {
		c.LogPath = v
	}
	if v := getEnv("LOG_MAX_SIZE_MB", ""); v != "" {
		c.LogMaxSizeMB = mustParseInt(v)
	}
	if v := getEnv("LOG_MAX_BACKUPS", ""); v != "" {
		c.LogMaxBackups = mustParseInt(v)
	}
	if v := getEnv("LOG_MAX_AGE_DAYS", ""); v != "" {
		c.LogMaxAgeDays = mustParseInt(v)
	}
	if v := getEnv("LOG_COMPRESS", ""); v != "" {
		c.LogCompress = v == "true"
	}
	if v := getEnv("MEDIA_ROOT", ""); v != "" {
		c.MediaRoot = v
	}
	if v := getEnv("MEDIA_URL_PREFIX", ""); v != "" {
		c.MediaURLPrefix = "/" + strings.Trim(v, "/")
	}
	if v := getEnv("MEDIA_MAX_UPLOAD_MB", ""); v != "" {
		c.MaxUploadMB = mustParseInt(v)
	}
	if v := getEnv("FFMPEG_PATH", ""); v != "" {
		c.FFmpegPath = v
	}
	if v := getEnv("FFPROBE_PATH", ""); v != "" {
		c.FFprobePath = v
	}
	if v := getEnv("MEDIA_TRUST_DECLARED_TYPE", ""); v != "" {
		c.TrustDeclaredType = v == "true"
	}
	if v := getEnv("TRANSCODE_TIMEOUT_SEC", ""); v != "" {
		c.TranscodeTimeoutSec = mustParseInt(v)
	}
	if v := getEnv("BROADCAST_BASE", ""); v != "" {
		c.BroadcastBaseURL = v
	}
	if v := getEnv("BROADCAST_URL_PARAM", ""); v != "" {
		c.BroadcastURLParam = v
	}
	if v := getEnv("BROADCAST_TIMEOUT_SEC", ""); v != "" {
		c.BroadcastTimeoutSec = mustParseInt(v)
	}
	if v := getEnv("PUBLIC_BASE_URL", ""); v != "" {
		c.PublicBaseURL = strings.TrimRight(v, "/")
	}
}

func mustParseInt(val string) int {
	i, err := strconv.Atoi(val)
	if err != nil {
		log.Fatalf("invalid integer value %s: %v", val, err)
	}
	return i
}

func readListEnv(key string, defaults []string) []string {
	if raw := os.Getenv(key); raw != "" {
		return splitAndTrim(raw)
	}
	return defaults
}

func splitAndTrim(raw string) []string {
	items := []string{}
	for _, item := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}
