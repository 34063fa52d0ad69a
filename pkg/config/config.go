package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database    DatabaseConfig
	Redis       RedisConfig
	JWT         JWTConfig
	CORS        CORSConfig
	Log         LogConfig
	Portal      PortalConfig
	Graduation  GraduationConfig
	VectorStore VectorStoreConfig
	LLM         LLMConfig
	Admin       AdminConfig
	Jobs        JobsConfig
	Export      ExportConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret     string
	Expiration time.Duration
	Issuer     string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// PortalConfig describes the university portal endpoints scraped during sync.
type PortalConfig struct {
	BaseURL             string
	LoginPath           string
	UserInfoPath        string
	GradePath           string
	SessionCookie       string
	Charset             string
	Timeout             time.Duration
	PrimaryTrackLabel   string
	SecondaryTrackLabel string
}

// GraduationConfig holds the credit policy and cache tuning for graduation views.
type GraduationConfig struct {
	TrackRequiredCredits int
	TotalRequiredCredits int
	CacheEnabled         bool
	CacheTTL             time.Duration
}

// VectorStoreConfig points at the Qdrant collection holding course embeddings.
type VectorStoreConfig struct {
	URL        string
	Collection string
	VectorDim  int
	TopK       int
	Timeout    time.Duration
}

// LLMConfig configures the OpenAI-compatible chat and embedding endpoints.
type LLMConfig struct {
	BaseURL        string
	APIKey         string
	ChatModel      string
	EmbeddingModel string
	Embedder       string
	Timeout        time.Duration
}

// AdminConfig guards operator endpoints.
type AdminConfig struct {
	APIKeyHash string
}

// JobsConfig tunes the background worker queue.
type JobsConfig struct {
	Workers    int
	MaxRetries int
}

// ExportConfig tunes roadmap documents.
type ExportConfig struct {
	PDFFontPath string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !isMissingFile(err) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Enabled:  v.GetBool("REDIS_ENABLED"),
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:     v.GetString("JWT_SECRET"),
		Expiration: parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
		Issuer:     v.GetString("JWT_ISSUER"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Portal = PortalConfig{
		BaseURL:             v.GetString("PORTAL_BASE_URL"),
		LoginPath:           v.GetString("PORTAL_LOGIN_PATH"),
		UserInfoPath:        v.GetString("PORTAL_USER_INFO_PATH"),
		GradePath:           v.GetString("PORTAL_GRADE_PATH"),
		SessionCookie:       v.GetString("PORTAL_SESSION_COOKIE"),
		Charset:             v.GetString("PORTAL_CHARSET"),
		Timeout:             parseDuration(v.GetString("PORTAL_TIMEOUT"), 5*time.Second),
		PrimaryTrackLabel:   v.GetString("PORTAL_PRIMARY_TRACK_LABEL"),
		SecondaryTrackLabel: v.GetString("PORTAL_SECONDARY_TRACK_LABEL"),
	}

	cfg.Graduation = GraduationConfig{
		TrackRequiredCredits: v.GetInt("GRADUATION_TRACK_REQUIRED_CREDITS"),
		TotalRequiredCredits: v.GetInt("GRADUATION_TOTAL_REQUIRED_CREDITS"),
		CacheEnabled:         v.GetBool("GRADUATION_CACHE_ENABLED"),
		CacheTTL:             parseDuration(v.GetString("GRADUATION_CACHE_TTL"), 5*time.Minute),
	}

	cfg.VectorStore = VectorStoreConfig{
		URL:        v.GetString("QDRANT_URL"),
		Collection: v.GetString("QDRANT_COLLECTION"),
		VectorDim:  v.GetInt("QDRANT_VECTOR_DIM"),
		TopK:       v.GetInt("QDRANT_TOP_K"),
		Timeout:    parseDuration(v.GetString("QDRANT_TIMEOUT"), 10*time.Second),
	}

	cfg.LLM = LLMConfig{
		BaseURL:        v.GetString("LLM_BASE_URL"),
		APIKey:         v.GetString("LLM_API_KEY"),
		ChatModel:      v.GetString("LLM_CHAT_MODEL"),
		EmbeddingModel: v.GetString("LLM_EMBEDDING_MODEL"),
		Embedder:       strings.ToLower(v.GetString("LLM_EMBEDDER")),
		Timeout:        parseDuration(v.GetString("LLM_TIMEOUT"), 60*time.Second),
	}

	cfg.Admin = AdminConfig{APIKeyHash: v.GetString("ADMIN_API_KEY_HASH")}

	cfg.Jobs = JobsConfig{
		Workers:    v.GetInt("JOBS_WORKERS"),
		MaxRetries: v.GetInt("JOBS_MAX_RETRIES"),
	}

	cfg.Export = ExportConfig{PDFFontPath: v.GetString("EXPORT_PDF_FONT_PATH")}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "advising")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_ENABLED", false)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "24h")
	v.SetDefault("JWT_ISSUER", "advising-api")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("PORTAL_BASE_URL", "https://portal.example.ac.kr")
	v.SetDefault("PORTAL_LOGIN_PATH", "/login/loginProc.do")
	v.SetDefault("PORTAL_USER_INFO_PATH", "/main/userInfo.do")
	v.SetDefault("PORTAL_GRADE_PATH", "/grade/gradeList.do")
	v.SetDefault("PORTAL_SESSION_COOKIE", "ssotoken")
	v.SetDefault("PORTAL_CHARSET", "euc-kr")
	v.SetDefault("PORTAL_TIMEOUT", "5s")
	v.SetDefault("PORTAL_PRIMARY_TRACK_LABEL", "1트랙")
	v.SetDefault("PORTAL_SECONDARY_TRACK_LABEL", "2트랙")

	v.SetDefault("GRADUATION_TRACK_REQUIRED_CREDITS", 39)
	v.SetDefault("GRADUATION_TOTAL_REQUIRED_CREDITS", 130)
	v.SetDefault("GRADUATION_CACHE_ENABLED", false)
	v.SetDefault("GRADUATION_CACHE_TTL", "5m")

	v.SetDefault("QDRANT_URL", "http://localhost:6333")
	v.SetDefault("QDRANT_COLLECTION", "courses")
	v.SetDefault("QDRANT_VECTOR_DIM", 384)
	v.SetDefault("QDRANT_TOP_K", 20)
	v.SetDefault("QDRANT_TIMEOUT", "10s")

	v.SetDefault("LLM_BASE_URL", "https://api.openai.com")
	v.SetDefault("LLM_API_KEY", "")
	v.SetDefault("LLM_CHAT_MODEL", "gpt-4o-mini")
	v.SetDefault("LLM_EMBEDDING_MODEL", "text-embedding-3-small")
	v.SetDefault("LLM_EMBEDDER", "random")
	v.SetDefault("LLM_TIMEOUT", "60s")

	v.SetDefault("ADMIN_API_KEY_HASH", "")

	v.SetDefault("JOBS_WORKERS", 1)
	v.SetDefault("JOBS_MAX_RETRIES", 1)

	v.SetDefault("EXPORT_PDF_FONT_PATH", "")
}

func isMissingFile(err error) bool {
	return err != nil && strings.Contains(err.Error(), "no such file")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
