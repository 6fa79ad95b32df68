package db

import (
	"time"

	"gorm.io/datatypes"
)

type Player struct {
	ID        uint           `gorm:"primaryKey"`
	RoomCode  string         `gorm:"size:4;not null;uniqueIndex:idx_players_room_user"`
	UserID    string         `gorm:"size:36;not null;index;uniqueIndex:idx_players_room_user"`
	Name      string         `gorm:"size:50;not null"`
	Avatar    string         `gorm:"size:50"`
	Score     int            `gorm:"not null;default:0"`
	IsHost    bool           `gorm:"not null;default:false"`
	IsOnline  bool           `gorm:"not null;default:true"`
	Hand      datatypes.JSON `gorm:"type:jsonb;not null"`
	JoinedAt  time.Time      `gorm:"not null"`
	UpdatedAt time.Time      `gorm:"not null"`
}
