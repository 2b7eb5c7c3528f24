package model

import "time"

// Subscription holds the information for a registered push endpoint.
type Subscription struct {
	ID        string    `gorm:"primaryKey;size:36"`
	Endpoint  string    `gorm:"uniqueIndex;size:1024;not null"`
	P256DH    string    `gorm:"column:p256dh;not null"`
	Auth      string    `gorm:"not null"`
	UserAgent string    `gorm:"size:512"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}
