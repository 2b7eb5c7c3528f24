package model

import "time"

// Event represents a single alert record to be fanned out and acknowledged.
type Event struct {
	ID           string    `gorm:"primaryKey;size:36" json:"id"`
	Title        string    `gorm:"size:256;not null" json:"title"`
	Body         string    `gorm:"size:2048;not null" json:"body"`
	Type         string    `gorm:"size:64;index" json:"type"`
	Priority     Priority  `gorm:"size:16;not null" json:"priority"`
	Metadata     JSONMap   `gorm:"type:text" json:"metadata,omitempty"`
	Acknowledged bool      `gorm:"not null;default:false" json:"acknowledged"`
	SentCount    int       `gorm:"not null;default:0" json:"sentCount"`
	FailedCount  int       `gorm:"not null;default:0" json:"failedCount"`
	CreatedAt    time.Time `gorm:"not null;index" json:"createdAt"`
}
