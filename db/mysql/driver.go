package mysql

import (
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

// Pool sizes the connection pool. Profile writes hold a connection only for
// the duration of one upsert, so a modest pool serves many players.
type Pool struct {
	MaxOpen int
	MaxIdle int
	MaxLife time.Duration
}

// Open creates a GORM *DB backed by MySQL. The DSN must set parseTime=true
// so mail expiry and audit timestamps scan into time.Time.
func Open(dsn string, gcfg *gorm.Config, pool Pool) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(dsn), gcfg)
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if pool.MaxOpen > 0 {
		sqlDB.SetMaxOpenConns(pool.MaxOpen)
	}
	if pool.MaxIdle > 0 {
		sqlDB.SetMaxIdleConns(pool.MaxIdle)
	}
	if pool.MaxLife > 0 {
		sqlDB.SetConnMaxLifetime(pool.MaxLife)
	}
	return db, nil
}
