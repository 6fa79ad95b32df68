package db

import (
	"time"

	"gorm.io/datatypes"
)

type Room struct {
	Code                string         `gorm:"primaryKey;size:4"`
	HostID              string         `gorm:"size:36;not null"`
	Status              string         `gorm:"size:20;not null;index"`
	Phase               string         `gorm:"size:20;not null"`
	PackID              *string        `gorm:"size:50;index"`
	Pack                *Pack          `gorm:"constraint:OnDelete:SET NULL"`
	MaxRounds           int            `gorm:"not null;default:10"`
	CurrentRound        int            `gorm:"not null;default:0"`
	CzarID              string         `gorm:"size:36"`
	CurrentQuestion     string         `gorm:"not null;default:''"`
	RoundExpiresAt      *time.Time     `gorm:"index"`
	QuestionDeck        datatypes.JSON `gorm:"type:jsonb;not null"`
	AnswerDeck          datatypes.JSON `gorm:"type:jsonb;not null"`
	LastRoundWinnerID   string         `gorm:"size:36"`
	LastRoundWinnerName string         `gorm:"size:50"`
	LastRoundCard       string
	LastRoundNumber     *int
	CreatedAt           time.Time    `gorm:"not null"`
	UpdatedAt           time.Time    `gorm:"not null"`
	Players             []Player     `gorm:"foreignKey:RoomCode;references:Code;constraint:OnDelete:CASCADE"`
	Submissions         []Submission `gorm:"foreignKey:RoomCode;references:Code;constraint:OnDelete:CASCADE"`
}

type Submission struct {
	ID          uint      `gorm:"primaryKey"`
	RoomCode    string    `gorm:"size:4;not null;uniqueIndex:idx_submissions_room_player_round"`
	PlayerID    string    `gorm:"size:36;not null;uniqueIndex:idx_submissions_room_player_round"`
	RoundNumber int       `gorm:"not null;uniqueIndex:idx_submissions_room_player_round"`
	CardText    string    `gorm:"not null"`
	CreatedAt   time.Time `gorm:"not null"`
}
