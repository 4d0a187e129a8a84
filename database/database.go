package database

import (
	"fmt"
	"net"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/sirupsen/logrus"
	gormmysql "gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/sitsofe/pos-terminal/config"
	"github.com/sitsofe/pos-terminal/models"
)

// Open connects to the catalog cache described by cfg and migrates its tables.
func Open(cfg *config.Configuration, log *logrus.Logger) (*gorm.DB, error) {
	dialector, err := dialectorFor(cfg)
	if err != nil {
		return nil, err
	}

	gcfg := &gorm.Config{}
	if log != nil {
		gcfg.Logger = gormlogger.New(log, gormlogger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
		})
	}

	db, err := gorm.Open(dialector, gcfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s cache: %w", cfg.CacheDriver, err)
	}

	if cfg.CacheDriver == "sqlite" || cfg.CacheDriver == "" {
		// single connection: SQLite has one writer, and in-memory databases live per connection
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

// Migrate creates or updates the cache tables.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&models.Product{}, &models.Customer{}); err != nil {
		return fmt.Errorf("auto-migrate failed: %w", err)
	}
	return nil
}

func dialectorFor(cfg *config.Configuration) (gorm.Dialector, error) {
	switch cfg.CacheDriver {
	case "", "sqlite":
		return sqlite.Open(cfg.CacheDSN), nil
	case "postgres":
		dsn := cfg.CacheDSN
		if dsn == "" || dsn == "catalog.db" {
			dsn = fmt.Sprintf(
				"host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
				cfg.DBHost, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBPort,
			)
		}
		return postgres.Open(dsn), nil
	case "mysql":
		dsn := cfg.CacheDSN
		if dsn == "" || dsn == "catalog.db" {
			dsn = MySQLDSN(cfg)
		}
		return gormmysql.Open(dsn), nil
	default:
		return nil, fmt.Errorf("unsupported cache driver %q", cfg.CacheDriver)
	}
}

// MySQLDSN builds a DSN from the discrete DB_* settings.
func MySQLDSN(cfg *config.Configuration) string {
	port := cfg.DBPort
	if port == "" {
		port = "3306"
	}
	m := mysql.NewConfig()
	m.User = cfg.DBUser
	m.Passwd = cfg.DBPassword
	m.Net = "tcp"
	m.Addr = net.JoinHostPort(cfg.DBHost, port)
	m.DBName = cfg.DBName
	m.ParseTime = true
	m.Params = map[string]string{"charset": "utf8mb4"}
	return m.FormatDSN()
}
