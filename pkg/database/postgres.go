package database

import (
	"fmt"
	"time"

	"investor-portal/pkg/config"

	kitlog "github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// NewPostgresConnection opens the relational store. TranslateError maps
// driver errors such as unique violations onto gorm.ErrDuplicatedKey.
func NewPostgresConnection(cfg *config.Config, logger kitlog.Logger) (*gorm.DB, error) {
	gormLog := gormlogger.New(printfAdapter{level.Warn(logger)}, gormlogger.Config{
		SlowThreshold:             500 * time.Millisecond,
		LogLevel:                  gormlogger.Warn,
		IgnoreRecordNotFoundError: true,
	})

	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{
		TranslateError: true,
		Logger:         gormLog,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	return db, nil
}

type printfAdapter struct {
	logger kitlog.Logger
}

func (p printfAdapter) Printf(format string, args ...interface{}) {
	p.logger.Log("component", "gorm", "msg", fmt.Sprintf(format, args...))
}
