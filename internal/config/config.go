package config

import (
	"errors"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"restaurant_booking_backend/pkg/utils"
)

// Config is the process configuration read from the environment.
type Config struct {
	Port   string
	AppEnv string
	TZName string
	Loc    *time.Location

	LogLevel  string
	LogFormat string

	DB DBConfig

	JWTSecret          string
	JWTTTL             time.Duration
	CORSAllowedOrigins []string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	RabbitMQURL string

	LineChannelSecret string
	LineChannelToken  string
	LineStaffUserIDs  []string

	ChatRestaurantID int64
	BookingDuration  time.Duration
	DedupTTL         time.Duration
	SweepInterval    time.Duration
}

// DBConfig holds PostgreSQL connection settings.
type DBConfig struct {
	Host        string
	Port        string
	User        string
	Password    string
	Name        string
	SSLMode     string
	MaxOpen     int
	MaxIdle     int
	ApplySchema bool
}

// Load reads .env (if present) and the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		utils.LogWarn("could not load .env file", map[string]interface{}{"error": err.Error()})
	}

	cfg := &Config{
		Port:      utils.Getenv("PORT", "8080"),
		AppEnv:    utils.Getenv("APP_ENV", "development"),
		TZName:    utils.Getenv("TZ_NAME", "Asia/Bangkok"),
		LogLevel:  utils.Getenv("LOG_LEVEL", "info"),
		LogFormat: utils.Getenv("LOG_FORMAT", "console"),
		DB: DBConfig{
			Host:        utils.Getenv("DB_HOST", "localhost"),
			Port:        utils.Getenv("DB_PORT", "5432"),
			User:        utils.Getenv("DB_USER", "postgres"),
			Password:    utils.Getenv("DB_PASSWORD", "postgres"),
			Name:        utils.Getenv("DB_NAME", "restaurant_booking"),
			SSLMode:     utils.Getenv("DB_SSLMODE", "disable"),
			MaxOpen:     utils.GetenvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdle:     utils.GetenvInt("DB_MAX_IDLE_CONNS", 5),
			ApplySchema: utils.GetenvBool("DB_APPLY_SCHEMA", false),
		},
		JWTSecret:          utils.Getenv("JWT_SECRET", ""),
		JWTTTL:             utils.GetenvDuration("JWT_TTL", utils.DefaultAccessTokenTTL),
		CORSAllowedOrigins: utils.GetenvList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
		RedisAddr:          utils.Getenv("REDIS_ADDR", ""),
		RedisPassword:      utils.Getenv("REDIS_PASSWORD", ""),
		RedisDB:            utils.GetenvInt("REDIS_DB", 0),
		RabbitMQURL:        utils.Getenv("RABBITMQ_URL", ""),
		LineChannelSecret:  utils.Getenv("LINE_CHANNEL_SECRET", ""),
		LineChannelToken:   utils.Getenv("LINE_CHANNEL_TOKEN", ""),
		LineStaffUserIDs:   utils.GetenvList("LINE_STAFF_USER_IDS", nil),
		BookingDuration:    utils.GetenvDuration("BOOKING_DURATION", 2*time.Hour),
		DedupTTL:           utils.GetenvDuration("DEDUP_TTL", 5*time.Minute),
		SweepInterval:      utils.GetenvDuration("SWEEP_INTERVAL", 5*time.Minute),
	}

	rid, err := strconv.ParseInt(utils.Getenv("CHAT_RESTAURANT_ID", "1"), 10, 64)
	if err != nil || rid <= 0 {
		return nil, errors.New("CHAT_RESTAURANT_ID must be a positive integer")
	}
	cfg.ChatRestaurantID = rid

	loc, err := time.LoadLocation(cfg.TZName)
	if err != nil {
		utils.LogWarn("unknown TZ_NAME, using UTC", map[string]interface{}{"tz": cfg.TZName})
		loc = time.UTC
	}
	cfg.Loc = loc

	if cfg.IsProduction() && cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required in production")
	}
	return cfg, nil
}

// IsProduction reports whether APP_ENV is production.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// LineEnabled reports whether LINE credentials are configured.
func (c *Config) LineEnabled() bool {
	return c.LineChannelSecret != "" && c.LineChannelToken != ""
}
