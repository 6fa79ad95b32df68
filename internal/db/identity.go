package db

import "time"

// Identity is an anonymous user bound to a browser session key.
type Identity struct {
	ID         string    `gorm:"primaryKey;size:36"`
	SessionKey string    `gorm:"size:64;uniqueIndex;not null"`
	CreatedAt  time.Time `gorm:"not null"`
	UpdatedAt  time.Time `gorm:"not null"`
}
