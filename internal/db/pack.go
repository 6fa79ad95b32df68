package db

import "time"

const (
	CardTypeQuestion = "question"
	CardTypeAnswer   = "answer"
)

type Pack struct {
	ID        string    `gorm:"primaryKey;size:50"`
	Name      string    `gorm:"size:100;not null"`
	Enabled   bool      `gorm:"not null;default:true"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
	Cards     []Card    `gorm:"constraint:OnDelete:CASCADE"`
}

type Card struct {
	ID        uint      `gorm:"primaryKey"`
	PackID    string    `gorm:"size:50;not null;uniqueIndex:idx_cards_pack_type_text"`
	Type      string    `gorm:"size:10;not null;uniqueIndex:idx_cards_pack_type_text"`
	Text      string    `gorm:"not null;uniqueIndex:idx_cards_pack_type_text"`
	CreatedAt time.Time `gorm:"not null"`
}
