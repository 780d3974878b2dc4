package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Rules carries every tunable game/consistency constant. It is built once at
// startup and handed to each component at construction, so tests can run
// several configurations side by side.
type Rules struct {
	BaseCompletionXP int
	AllHabitsBonusXP int
	Streak7BonusXP   int
	Streak30BonusXP  int
	DailyLoginXP     int
	RewardedAdXP     int
	MaxAdsPerDay     int
	XPPerLevel       int
	MaxXPPerEvent    int

	FreeHabitLimit int
	ZoneCapacity   int
	DefaultShields int
	ShieldWindow   time.Duration

	// GracePeriod shifts the logical-day boundary past midnight: a completion
	// at 01:30 with a 3h grace period still counts for the previous day.
	GracePeriod time.Duration

	// StageThresholds are the cumulative growth levels at which a habit is
	// promoted to sprout, sapling, tree and forest respectively.
	StageThresholds [4]int

	CompletionRetentionDays int
	SyncQueueMax            int
	SyncWatchdog            time.Duration
}

func DefaultRules() Rules {
	return Rules{
		BaseCompletionXP: 10,
		AllHabitsBonusXP: 25,
		Streak7BonusXP:   50,
		Streak30BonusXP:  200,
		DailyLoginXP:     5,
		RewardedAdXP:     15,
		MaxAdsPerDay:     3,
		XPPerLevel:       100,
		MaxXPPerEvent:    1000,

		FreeHabitLimit: 7,
		ZoneCapacity:   10,
		DefaultShields: 3,
		ShieldWindow:   24 * time.Hour,

		GracePeriod:     0,
		StageThresholds: [4]int{7, 14, 30, 60},

		CompletionRetentionDays: 90,
		SyncQueueMax:            500,
		SyncWatchdog:            5 * time.Minute,
	}
}

// Config is the full server configuration: infrastructure settings plus the
// rule constants above.
type Config struct {
	Port string

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	JWTSecret string
	JWTIssuer string

	// LocalDBPath is the SQLite file backing the device-side cache the sync
	// engine reconciles against the Postgres store.
	LocalDBPath string

	Rules Rules
}

func (c Config) PostgresDSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

// Load reads the environment (optionally seeded from a .env file) into a
// Config. Missing values fall back to development defaults.
func Load() Config {
	_ = godotenv.Load()

	rules := DefaultRules()
	rules.MaxAdsPerDay = envIntOr("MAX_ADS_PER_DAY", rules.MaxAdsPerDay)
	rules.FreeHabitLimit = envIntOr("FREE_HABIT_LIMIT", rules.FreeHabitLimit)
	rules.SyncQueueMax = envIntOr("SYNC_QUEUE_MAX", rules.SyncQueueMax)
	if h := envIntOr("GRACE_PERIOD_HOURS", 0); h > 0 {
		rules.GracePeriod = time.Duration(h) * time.Hour
	}

	return Config{
		Port: envOr("PORT", "8080"),

		DBHost:     envOr("DB_HOST", "localhost"),
		DBPort:     envOr("DB_PORT", "5432"),
		DBUser:     os.Getenv("DB_USER"),
		DBPassword: os.Getenv("DB_PASSWORD"),
		DBName:     os.Getenv("DB_NAME"),

		RedisHost:     os.Getenv("REDIS_HOST"),
		RedisPort:     envOr("REDIS_PORT", "6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       envIntOr("REDIS_DB", 0),

		JWTSecret: envOr("JWT_SECRET", "dev-secret-do-not-use"),
		JWTIssuer: envOr("JWT_ISSUER", "habit-island"),

		LocalDBPath: envOr("LOCAL_DB_PATH", "habit-island-cache.db"),

		Rules: rules,
	}
}
