package model

import (
	"time"

	"gorm.io/datatypes"
)

// ProfileRecord stores a whole player profile as one JSON document. The
// scalar columns are denormalised copies for listing and admin queries.
type ProfileRecord struct {
	ID          string         `gorm:"primaryKey;size:36" json:"id"`
	Nickname    string         `gorm:"size:32" json:"nickname"`
	Level       int            `json:"level"`
	Side        string         `gorm:"size:8" json:"side"`
	GameVersion string         `gorm:"size:32" json:"game_version"`
	Data        datatypes.JSON `gorm:"not null" json:"data"`
	UpdatedAt   time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
}

// ProfileBackup is a zstd-compressed profile snapshot taken before a
// destructive admin operation.
type ProfileBackup struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	ProfileID string    `gorm:"index:idx_backup_profile;size:36;not null" json:"profile_id"`
	Reason    string    `gorm:"size:64" json:"reason"`
	Snapshot  []byte    `gorm:"not null" json:"-"`
	CreatedAt time.Time `gorm:"index:idx_backup_created;autoCreateTime" json:"created_at"`
}
