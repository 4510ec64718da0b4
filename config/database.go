package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var db *gorm.DB

// InitDatabase establishes a connection using configuration values and performs automatic migrations.
func InitDatabase(modelDefs ...interface{}) *gorm.DB {
	if db != nil {
		return db
	}

	conn, err := OpenDatabase(Get())
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}
	if err := Migrate(conn, modelDefs...); err != nil {
		log.Fatalf("database migration failed: %v", err)
	}
	db = conn
	return db
}

// OpenDatabase opens the configured driver without touching the package-level handle.
func OpenDatabase(c AppConfig) (*gorm.DB, error) {
	// Configure GORM logger: derive level from app LogLevel and raise slow-sql threshold to reduce noise
	gLogger := logger.New(
		log.New(os.Stdout, "", log.LstdFlags),
		logger.Config{
			SlowThreshold:             2 * time.Second,
			LogLevel:                  toGormLogLevel(c.LogLevel),
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	gormCfg := &gorm.Config{
		Logger:                                   gLogger,
		DisableForeignKeyConstraintWhenMigrating: true,
		TranslateError:                           true,
	}

	var dialector gorm.Dialector
	switch strings.ToLower(c.DBDriver) {
	case "sqlite":
		if dir := filepath.Dir(c.DBPath); dir != "" && !strings.HasPrefix(c.DBPath, "file:") {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create sqlite directory: %w", err)
			}
		}
		dialector = sqlite.Open(c.DBPath)
	case "mysql", "":
		dsn := c.DatabaseURI
		if dsn == "" {
			dsn = fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
				c.DBUser,
				c.DBPassword,
				c.DBHost,
				c.DBPort,
				c.DBName,
			)
		}
		dialector = mysql.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", c.DBDriver)
	}

	conn, err := gorm.Open(dialector, gormCfg)
	if err != nil {
		return nil, err
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql.DB: %w", err)
	}
	if strings.EqualFold(c.DBDriver, "sqlite") {
		// sqlite serializes writers; one connection avoids "database is locked"
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxIdleConns(5)
		sqlDB.SetMaxOpenConns(20)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
		sqlDB.SetConnMaxIdleTime(10 * time.Minute)
	}

	// Ping at startup so network/auth problems surface before the first query
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("database ping failed: %w", err)
	}
	return conn, nil
}

// Migrate creates missing tables and adds missing columns. It never drops anything.
func Migrate(conn *gorm.DB, modelDefs ...interface{}) error {
	for _, model := range modelDefs {
		if err := conn.AutoMigrate(model); err != nil {
			return fmt.Errorf("auto migration failed for %T: %w", model, err)
		}
	}
	return nil
}

// toGormLogLevel maps application LogLevel to GORM's logger level.
func toGormLogLevel(level string) logger.LogLevel {
	switch level {
	case "debug":
		// GORM 'Info' shows SQL; use with caution
		return logger.Info
	case "info", "", "warn":
		return logger.Warn
	case "error":
		return logger.Error
	case "silent":
		return logger.Silent
	default:
		return logger.Warn
	}
}
