package model

import "time"

// UserSettings stores per-user simulation preferences. BrokerageSimulation
// controls whether the flat per-order fee is charged on fills.
type UserSettings struct {
	ID                   uint      `gorm:"primaryKey" json:"id"`
	UserID               uint      `gorm:"not null;uniqueIndex" json:"user_id"`
	BrokerageSimulation  bool      `gorm:"not null;default:true" json:"brokerage_simulation"`
	DarkMode             bool      `gorm:"not null;default:false" json:"dark_mode"`
	NotificationsEnabled bool      `gorm:"not null;default:true" json:"notifications_enabled"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// TableName allows you to control the exact table name for user settings.
func (UserSettings) TableName() string {
	return "user_settings"
}
