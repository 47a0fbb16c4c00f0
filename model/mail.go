package model

import (
	"time"

	"gorm.io/datatypes"
)

// Mail is a trader or system message in a profile's mailbox. Text is not
// stored; TemplateID is a locale key resolved when the mailbox is read.
type Mail struct {
	ID          int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	ProfileID   string         `gorm:"index:idx_mail_profile;size:36;not null" json:"profile_id"`
	TraderID    string         `gorm:"size:36" json:"trader_id"`
	MessageType int            `gorm:"not null" json:"message_type"`
	TemplateID  string         `gorm:"size:64" json:"template_id"`
	Items       datatypes.JSON `json:"items"`
	SystemData  datatypes.JSON `json:"system_data"`
	Claimed     bool           `gorm:"default:false" json:"claimed"`
	CreatedAt   time.Time      `gorm:"autoCreateTime" json:"created_at"`
	ExpireAt    *time.Time     `gorm:"index:idx_mail_expire" json:"expire_at"`
}
