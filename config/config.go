package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var DB *gorm.DB

// Config holds the process settings read from the environment.
type Config struct {
	Port        string
	DBDriver    string
	DBDSN       string
	LogLevel    string
	LogFormat   string
	OutputDir   string
	UseGCS      bool
	GCSBucket   string
	LPPTemplate string
}

// Load reads .env (when present) and the environment.
func Load() *Config {
	envErr := godotenv.Load()

	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		DBDriver:    strings.ToLower(getEnv("DB_DRIVER", "sqlite")),
		DBDSN:       getEnv("DB_DSN", "data/desenhos.db"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		LogFormat:   getEnv("LOG_FORMAT", "json"),
		OutputDir:   getEnv("OUTPUT_DIR", "output"),
		UseGCS:      os.Getenv("USE_GCS") == "true",
		GCSBucket:   os.Getenv("GCS_BUCKET"),
		LPPTemplate: getEnv("LPP_TEMPLATE", "data/LPP_TEMPLATE.xlsx"),
	}
	if cfg.GCSBucket != "" {
		cfg.UseGCS = true
	}

	if envErr != nil {
		// Logger may not be installed yet; zap.L() is a no-op until then.
		zap.L().Debug("No .env file found, using system environment variables")
	}
	return cfg
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// Open connects to the configured database. A SQLite file's parent directory
// is created on demand.
func Open(cfg *Config) (*gorm.DB, error) {
	gormCfg := &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Warn)}

	switch cfg.DBDriver {
	case "postgres":
		return gorm.Open(postgres.Open(cfg.DBDSN), gormCfg)
	case "sqlite", "":
		if !strings.HasPrefix(cfg.DBDSN, "file:") && cfg.DBDSN != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(cfg.DBDSN), 0755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
		return gorm.Open(sqlite.Open(cfg.DBDSN), gormCfg)
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DBDriver)
	}
}

// Connect opens the database, runs the migrations and stores the handle in DB.
func Connect(cfg *Config) error {
	db, err := Open(cfg)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := Migrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	DB = db
	zap.L().Info("Database ready",
		zap.String("driver", cfg.DBDriver),
	)
	return nil
}
