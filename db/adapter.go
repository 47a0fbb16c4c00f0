// Package db opens the profile database for the configured mode.
package db

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/kasuganosora/raidsim/server/config"
	dbmysql "github.com/kasuganosora/raidsim/server/db/mysql"
	dbsqlite "github.com/kasuganosora/raidsim/server/db/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const (
	ModeMemory = "memory"
	ModeSQLite = "sqlite"
	ModeMySQL  = "mysql"
)

// Open returns a *gorm.DB for the configured database mode. Statements are
// logged through log; a nil log silences GORM.
func Open(cfg config.DatabaseConfig, log *zap.Logger) (*gorm.DB, error) {
	gcfg := &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)}
	if log != nil {
		gcfg.Logger = newZapLogger(log, cfg.SlowQuery)
	}
	switch cfg.Mode {
	case ModeMemory:
		// Each call gets its own named database shared by every pooled connection.
		return dbsqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()), gcfg)
	case ModeSQLite:
		return dbsqlite.Open(cfg.SQLitePath, gcfg)
	case ModeMySQL:
		return dbmysql.Open(cfg.MySQLDSN, gcfg, dbmysql.Pool{
			MaxOpen: cfg.MySQLMaxOpen, MaxIdle: cfg.MySQLMaxIdle, MaxLife: cfg.MySQLMaxLife,
		})
	default:
		return nil, fmt.Errorf("db: unknown mode %q", cfg.Mode)
	}
}
