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

	Database   DatabaseConfig
	Redis      RedisConfig
	JWT        JWTConfig
	CORS       CORSConfig
	Log        LogConfig
	DCM        DCMConfig
	Scheduling SchedulingConfig
	CauseList  CauseListConfig
	Exports    ExportsConfig
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
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret            string
	Expiration        time.Duration
	RefreshExpiration time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// DCMConfig holds the differentiated case management rule tables consumed by
// the classification engine. The tables are injected at construction time;
// there is no process-wide mutable rule state.
type DCMConfig struct {
	FastTrackKeywords    []string
	ComplexTrackKeywords []string
	ComplexCaseTypes     []string
	FastDurationMinutes  int
	LongDurationMinutes  int
	PriorityWeights      map[string]float64
}

// SchedulingConfig tunes the greedy hearing allocator.
type SchedulingConfig struct {
	DailyCapacityMinutes int
	SlackFraction        float64
	OpeningTime          string
	MaxWindowDays        int
}

// CauseListConfig governs cause list cache behaviour.
type CauseListConfig struct {
	CacheTTL time.Duration
}

// ExportsConfig configures asynchronous cause list / case register exports.
type ExportsConfig struct {
	Enabled           bool
	StorageDir        string
	SignedURLSecret   string
	SignedURLTTL      time.Duration
	WorkerConcurrency int
	WorkerRetries     int
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
		if !errors.As(err, &notFound) {
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
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:            v.GetString("JWT_SECRET"),
		Expiration:        parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
		RefreshExpiration: parseDuration(v.GetString("REFRESH_TOKEN_EXPIRATION"), 7*24*time.Hour),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.DCM = DCMConfig{
		FastTrackKeywords:    splitAndTrim(v.GetString("DCM_FAST_TRACK_KEYWORDS")),
		ComplexTrackKeywords: splitAndTrim(v.GetString("DCM_COMPLEX_TRACK_KEYWORDS")),
		ComplexCaseTypes:     splitAndTrim(v.GetString("DCM_COMPLEX_CASE_TYPES")),
		FastDurationMinutes:  v.GetInt("DCM_FAST_DURATION_MINUTES"),
		LongDurationMinutes:  v.GetInt("DCM_LONG_DURATION_MINUTES"),
		PriorityWeights: map[string]float64{
			"URGENT": v.GetFloat64("DCM_PRIORITY_WEIGHT_URGENT"),
			"HIGH":   v.GetFloat64("DCM_PRIORITY_WEIGHT_HIGH"),
			"MEDIUM": v.GetFloat64("DCM_PRIORITY_WEIGHT_MEDIUM"),
			"LOW":    v.GetFloat64("DCM_PRIORITY_WEIGHT_LOW"),
		},
	}

	cfg.Scheduling = SchedulingConfig{
		DailyCapacityMinutes: v.GetInt("SCHEDULING_DAILY_CAPACITY_MINUTES"),
		SlackFraction:        v.GetFloat64("SCHEDULING_SLACK_FRACTION"),
		OpeningTime:          v.GetString("SCHEDULING_OPENING_TIME"),
		MaxWindowDays:        v.GetInt("SCHEDULING_MAX_WINDOW_DAYS"),
	}

	cfg.CauseList = CauseListConfig{
		CacheTTL: parseDuration(v.GetString("CAUSE_LIST_CACHE_TTL"), 5*time.Minute),
	}

	cfg.Exports = ExportsConfig{
		Enabled:           v.GetBool("ENABLE_EXPORTS"),
		StorageDir:        v.GetString("EXPORTS_STORAGE_DIR"),
		SignedURLSecret:   v.GetString("EXPORTS_SIGNED_URL_SECRET"),
		SignedURLTTL:      parseDuration(v.GetString("EXPORTS_SIGNED_URL_TTL"), 24*time.Hour),
		WorkerConcurrency: v.GetInt("EXPORTS_WORKER_CONCURRENCY"),
		WorkerRetries:     v.GetInt("EXPORTS_WORKER_RETRIES"),
	}

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
	v.SetDefault("DB_NAME", "court_dcm")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "24h")
	v.SetDefault("REFRESH_TOKEN_EXPIRATION", "168h")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("DCM_FAST_TRACK_KEYWORDS", "traffic violation,minor dispute,simple contract,cheque bounce,summary proceeding,bail application,interim order,simple divorce,rent dispute")
	v.SetDefault("DCM_COMPLEX_TRACK_KEYWORDS", "murder,rape,fraud,corruption,conspiracy,money laundering,constitutional,public interest,class action,corporate dispute,intellectual property,environmental,cyber crime")
	v.SetDefault("DCM_COMPLEX_CASE_TYPES", "CONSTITUTIONAL,COMMERCIAL")
	v.SetDefault("DCM_FAST_DURATION_MINUTES", 120)
	v.SetDefault("DCM_LONG_DURATION_MINUTES", 480)
	v.SetDefault("DCM_PRIORITY_WEIGHT_URGENT", 1.5)
	v.SetDefault("DCM_PRIORITY_WEIGHT_HIGH", 1.2)
	v.SetDefault("DCM_PRIORITY_WEIGHT_MEDIUM", 1.0)
	v.SetDefault("DCM_PRIORITY_WEIGHT_LOW", 0.8)

	v.SetDefault("SCHEDULING_DAILY_CAPACITY_MINUTES", 480)
	v.SetDefault("SCHEDULING_SLACK_FRACTION", 0.15)
	v.SetDefault("SCHEDULING_OPENING_TIME", "09:00")
	v.SetDefault("SCHEDULING_MAX_WINDOW_DAYS", 90)

	v.SetDefault("CAUSE_LIST_CACHE_TTL", "5m")

	v.SetDefault("ENABLE_EXPORTS", false)
	v.SetDefault("EXPORTS_STORAGE_DIR", "./exports")
	v.SetDefault("EXPORTS_SIGNED_URL_SECRET", "dev_exports_secret")
	v.SetDefault("EXPORTS_SIGNED_URL_TTL", "24h")
	v.SetDefault("EXPORTS_WORKER_CONCURRENCY", 1)
	v.SetDefault("EXPORTS_WORKER_RETRIES", 3)
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
