// Package store opens the database and hands out gorm sessions that carry the
// caller's tenant scope.
package store

import (
	"errors"
	"fmt"
	"time"

	"clinic-management-server/internal/apperr"
	"clinic-management-server/internal/config"
	"clinic-management-server/internal/models"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open connects to the configured database, installs the tenant guard and
// migrates the schema.
func Open(cfg config.DatabaseConfig, log *zap.Logger) (*DB, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "mysql":
		dialector = mysql.Open(cfg.DSN)
	case "postgres":
		dialector = postgres.Open(cfg.DSN)
	case "sqlite":
		dialector = sqlite.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	gormDB, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
		Logger: logger.New(zap.NewStdLog(log.Named("gorm")), logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
	})
	if err != nil {
		return nil, err
	}

	if cfg.Driver == "sqlite" {
		// A single connection keeps in-memory databases alive and serializes
		// writers, which sqlite needs anyway.
		sqlDB, err := gormDB.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}

	return New(gormDB)
}

// New installs the tenant guard on an open gorm handle and migrates the schema.
func New(gormDB *gorm.DB) (*DB, error) {
	if err := gormDB.Use(&TenantGuard{}); err != nil {
		return nil, fmt.Errorf("install tenant guard: %w", err)
	}
	if err := gormDB.AutoMigrate(models.All()...); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &DB{gorm: gormDB}, nil
}

// NotFound converts gorm.ErrRecordNotFound into a not-found error for
// resource. Other errors become internal errors.
func NotFound(err error, resource string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.NotFound(resource)
	}
	return Internal(err)
}

// Internal wraps a database failure, keeping typed errors as they are.
func Internal(err error) error {
	if err == nil {
		return nil
	}
	var e *apperr.Error
	if errors.As(err, &e) {
		return e
	}
	return apperr.Internal(err, "database error")
}

// IsDuplicate reports whether err is a unique-constraint violation.
func IsDuplicate(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey)
}
