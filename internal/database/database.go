package database

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/studyshare/studyshare-backend/internal/config"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Open connects to the configured database. All timestamps are written in UTC so
// that lastUpdated / lastReadAt comparisons behave the same on every driver.
func Open(cfg config.DatabaseConfig) (*gorm.DB, error) {
	dialector, err := dialectorFor(cfg)
	if err != nil {
		return nil, err
	}

	level := gormlogger.Warn
	if cfg.LogSQL {
		level = gormlogger.Info
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.New(log.New(os.Stdout, "\r\n", log.LstdFlags), gormlogger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  level,
			IgnoreRecordNotFoundError: true,
		}),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	if cfg.Driver == "sqlite" {
		// a single connection keeps in-memory databases shared and avoids
		// SQLITE_BUSY between concurrent writers
		sqlDB.SetMaxOpenConns(1)
		return db, nil
	}

	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Second)

	return db, nil
}

func dialectorFor(cfg config.DatabaseConfig) (gorm.Dialector, error) {
	switch cfg.Driver {
	case "mysql":
		mysqlCfg, err := mysqldriver.ParseDSN(cfg.GetDSN())
		if err != nil {
			return nil, fmt.Errorf("parse mysql dsn: %w", err)
		}
		if mysqlCfg.Params == nil {
			mysqlCfg.Params = map[string]string{}
		}
		mysqlCfg.Params["time_zone"] = "'+00:00'"
		mysqlCfg.ParseTime = true
		mysqlCfg.Loc = time.UTC
		return mysql.Open(mysqlCfg.FormatDSN()), nil
	case "postgres":
		return postgres.Open(cfg.GetDSN()), nil
	case "sqlite":
		return sqlite.Open(cfg.GetDSN()), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

// OpenMemory opens a private in-memory sqlite database. Connections opened with
// the same name share data until the last one is closed.
func OpenMemory(name string) (*gorm.DB, error) {
	safe := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		}
		return '_'
	}, name)
	return Open(config.DatabaseConfig{
		Driver: "sqlite",
		DSN:    "file:" + safe + "?mode=memory&cache=shared",
	})
}
