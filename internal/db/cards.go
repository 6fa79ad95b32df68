package db

import (
	"encoding/csv"
	"fmt"
	"os"
	"strings"

	"gorm.io/gorm"
)

// CardRecord is one row of a cards CSV: pack_id,pack_name,type,text.
type CardRecord struct {
	PackID   string
	PackName string
	Type     string
	Text     string
}

// NormalizeCardType accepts the black/white aliases used by card exports.
func NormalizeCardType(raw string) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case CardTypeQuestion, "black":
		return CardTypeQuestion, true
	case CardTypeAnswer, "white":
		return CardTypeAnswer, true
	default:
		return "", false
	}
}

// LoadCardPacks reads cards from a CSV and upserts packs and cards.
func LoadCardPacks(conn *gorm.DB, path string) (int, error) {
	if conn == nil {
		return 0, nil
	}
	records, err := ReadCardRecords(path)
	if err != nil {
		return 0, err
	}
	inserted := 0
	for _, record := range records {
		pack := Pack{ID: record.PackID, Name: record.PackName, Enabled: true}
		if err := conn.FirstOrCreate(&pack, Pack{ID: record.PackID}).Error; err != nil {
			return inserted, err
		}
		card := Card{PackID: record.PackID, Type: record.Type, Text: record.Text}
		if err := conn.FirstOrCreate(&card, Card{PackID: card.PackID, Type: card.Type, Text: card.Text}).Error; err != nil {
			return inserted, err
		}
		inserted++
	}
	return inserted, nil
}

func ReadCardRecords(path string) ([]CardRecord, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}

	var records []CardRecord
	for i, row := range rows {
		if i == 0 {
			continue
		}
		if len(row) < 4 {
			continue
		}
		cardType, ok := NormalizeCardType(row[2])
		if !ok {
			return nil, fmt.Errorf("line %d: unknown card type %q", i+1, row[2])
		}
		record := CardRecord{
			PackID:   strings.TrimSpace(row[0]),
			PackName: strings.TrimSpace(row[1]),
			Type:     cardType,
			Text:     strings.TrimSpace(row[3]),
		}
		if record.PackID == "" || record.Text == "" {
			continue
		}
		if record.PackName == "" {
			record.PackName = record.PackID
		}
		records = append(records, record)
	}
	return records, nil
}
