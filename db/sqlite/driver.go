package sqlite

import (
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// Open creates a GORM *DB backed by SQLite. Profile writes are serialized by
// the profile lock, so a single writer connection avoids SQLITE_BUSY. Callers
// must therefore never query the database while holding a transaction.
func Open(path string, gcfg *gorm.Config) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), gcfg)
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	return db, nil
}
