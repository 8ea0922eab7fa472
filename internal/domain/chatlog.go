package domain

import "time"

// ChatLog records one conversation turn for a session. Rows are pruned by
// the history sweep job after the configured retention period.
type ChatLog struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	SessionID string    `gorm:"size:32;index" json:"session_id"`
	Role      string    `gorm:"size:16" json:"role"` // user or assistant
	Content   string    `gorm:"size:2000" json:"content"`
	State     string    `gorm:"size:32" json:"state"`
	CreatedAt time.Time `json:"created_at"`
}
