package server

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"cards-chaos/internal/db"
	"cards-chaos/internal/game"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	errPackNotFound = fmt.Errorf("pack %w", game.ErrNotFound)
	errPackExists   = &game.RuleError{Code: "pack_exists", Message: "Pack already exists"}
)

type Pack struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Enabled   bool      `json:"enabled"`
	CardCount CardCount `json:"card_count"`
}

type CardCount struct {
	Black int `json:"black"`
	White int `json:"white"`
}

type Card struct {
	ID     uint   `json:"id"`
	PackID string `json:"pack_id"`
	Type   string `json:"type"`
	Text   string `json:"text"`
}

// catalog serves packs and cards from Postgres, or from memory when no
// database is configured.
type catalog struct {
	db *gorm.DB

	mu     sync.RWMutex
	nextID uint
	packs  map[string]*memoryPack
}

type memoryPack struct {
	pack  Pack
	cards []Card
}

func newCatalog(conn *gorm.DB) *catalog {
	return &catalog{
		db:     conn,
		nextID: 1,
		packs:  make(map[string]*memoryPack),
	}
}

func (c *catalog) ListPacks(ctx context.Context, enabledOnly bool) ([]Pack, error) {
	if c.db == nil {
		c.mu.RLock()
		defer c.mu.RUnlock()
		packs := make([]Pack, 0, len(c.packs))
		for _, entry := range c.packs {
			if enabledOnly && !entry.pack.Enabled {
				continue
			}
			packs = append(packs, entry.withCounts())
		}
		sort.Slice(packs, func(i, j int) bool { return packs[i].ID < packs[j].ID })
		return packs, nil
	}
	var records []db.Pack
	query := c.db.WithContext(ctx).Order("id")
	if enabledOnly {
		query = query.Where("enabled = ?", true)
	}
	if err := query.Find(&records).Error; err != nil {
		return nil, err
	}
	counts, err := c.cardCounts(ctx)
	if err != nil {
		return nil, err
	}
	packs := make([]Pack, 0, len(records))
	for _, record := range records {
		packs = append(packs, Pack{
			ID:        record.ID,
			Name:      record.Name,
			Enabled:   record.Enabled,
			CardCount: counts[record.ID],
		})
	}
	return packs, nil
}

func (c *catalog) GetPack(ctx context.Context, id string) (Pack, error) {
	if c.db == nil {
		c.mu.RLock()
		defer c.mu.RUnlock()
		entry, ok := c.packs[id]
		if !ok {
			return Pack{}, errPackNotFound
		}
		return entry.withCounts(), nil
	}
	var record db.Pack
	if err := c.db.WithContext(ctx).Where("id = ?", id).First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Pack{}, errPackNotFound
		}
		return Pack{}, err
	}
	counts, err := c.cardCounts(ctx, id)
	if err != nil {
		return Pack{}, err
	}
	return Pack{ID: record.ID, Name: record.Name, Enabled: record.Enabled, CardCount: counts[id]}, nil
}

// EnabledPack resolves a pack that can be attached to a room.
func (c *catalog) EnabledPack(ctx context.Context, id string) (Pack, bool, error) {
	pack, err := c.GetPack(ctx, id)
	if errors.Is(err, game.ErrNotFound) {
		return Pack{}, false, nil
	}
	if err != nil {
		return Pack{}, false, err
	}
	return pack, pack.Enabled, nil
}

func (c *catalog) CreatePack(ctx context.Context, id, name string, enabled bool) (Pack, error) {
	if c.db == nil {
		c.mu.Lock()
		defer c.mu.Unlock()
		if _, exists := c.packs[id]; exists {
			return Pack{}, errPackExists
		}
		entry := &memoryPack{pack: Pack{ID: id, Name: name, Enabled: enabled}}
		c.packs[id] = entry
		return entry.withCounts(), nil
	}
	record := db.Pack{ID: id, Name: name, Enabled: enabled}
	result := c.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&record)
	if result.Error != nil {
		return Pack{}, result.Error
	}
	if result.RowsAffected == 0 {
		return Pack{}, errPackExists
	}
	return Pack{ID: id, Name: name, Enabled: enabled}, nil
}

func (c *catalog) TogglePack(ctx context.Context, id string) (Pack, error) {
	if c.db == nil {
		c.mu.Lock()
		entry, ok := c.packs[id]
		if ok {
			entry.pack.Enabled = !entry.pack.Enabled
		}
		c.mu.Unlock()
		if !ok {
			return Pack{}, errPackNotFound
		}
		return c.GetPack(ctx, id)
	}
	result := c.db.WithContext(ctx).Model(&db.Pack{}).Where("id = ?", id).
		Updates(map[string]any{"enabled": gorm.Expr("NOT enabled"), "updated_at": timeNowUTC()})
	if result.Error != nil {
		return Pack{}, result.Error
	}
	if result.RowsAffected == 0 {
		return Pack{}, errPackNotFound
	}
	return c.GetPack(ctx, id)
}

// DeletePack removes a pack and its cards. Rooms keep running; the database
// nulls their pack reference.
func (c *catalog) DeletePack(ctx context.Context, id string) error {
	if c.db == nil {
		c.mu.Lock()
		defer c.mu.Unlock()
		if _, ok := c.packs[id]; !ok {
			return errPackNotFound
		}
		delete(c.packs, id)
		return nil
	}
	result := c.db.WithContext(ctx).Where("id = ?", id).Delete(&db.Pack{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return errPackNotFound
	}
	return nil
}

func (c *catalog) ListCards(ctx context.Context, packID, cardType string, page, perPage int) ([]Card, int64, error) {
	offset := (page - 1) * perPage
	if c.db == nil {
		c.mu.RLock()
		defer c.mu.RUnlock()
		matched := make([]Card, 0)
		for _, entry := range c.sortedPacks() {
			if packID != "" && entry.pack.ID != packID {
				continue
			}
			for _, card := range entry.cards {
				if cardType == "" || card.Type == cardType {
					matched = append(matched, card)
				}
			}
		}
		total := int64(len(matched))
		if offset >= len(matched) {
			return []Card{}, total, nil
		}
		end := offset + perPage
		if end > len(matched) {
			end = len(matched)
		}
		return matched[offset:end], total, nil
	}
	filter := func(query *gorm.DB) *gorm.DB {
		if packID != "" {
			query = query.Where("pack_id = ?", packID)
		}
		if cardType != "" {
			query = query.Where("type = ?", cardType)
		}
		return query
	}
	var total int64
	if err := c.db.WithContext(ctx).Model(&db.Card{}).Scopes(filter).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var records []db.Card
	err := c.db.WithContext(ctx).Scopes(filter).Order("pack_id, type, id").Offset(offset).Limit(perPage).Find(&records).Error
	if err != nil {
		return nil, 0, err
	}
	cards := make([]Card, 0, len(records))
	for _, record := range records {
		cards = append(cards, Card{ID: record.ID, PackID: record.PackID, Type: record.Type, Text: record.Text})
	}
	return cards, total, nil
}

// AddCard creates a card unless an identical one already exists in the pack.
func (c *catalog) AddCard(ctx context.Context, packID, cardType, text string) (Card, bool, error) {
	if c.db == nil {
		c.mu.Lock()
		defer c.mu.Unlock()
		entry, ok := c.packs[packID]
		if !ok {
			return Card{}, false, errPackNotFound
		}
		for _, card := range entry.cards {
			if card.Type == cardType && card.Text == text {
				return card, false, nil
			}
		}
		card := Card{ID: c.nextID, PackID: packID, Type: cardType, Text: text}
		c.nextID++
		entry.cards = append(entry.cards, card)
		return card, true, nil
	}
	if _, err := c.GetPack(ctx, packID); err != nil {
		return Card{}, false, err
	}
	record := db.Card{PackID: packID, Type: cardType, Text: text}
	result := c.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&record)
	if result.Error != nil {
		return Card{}, false, result.Error
	}
	created := result.RowsAffected > 0
	if !created {
		if err := c.db.WithContext(ctx).Where("pack_id = ? AND type = ? AND text = ?", packID, cardType, text).First(&record).Error; err != nil {
			return Card{}, false, err
		}
	}
	return Card{ID: record.ID, PackID: record.PackID, Type: record.Type, Text: record.Text}, created, nil
}

// Import adds question and answer texts to a pack, creating it if needed.
// Texts already present are skipped.
func (c *catalog) Import(ctx context.Context, packID, packName string, questions, answers []string) (int, error) {
	if _, err := c.GetPack(ctx, packID); errors.Is(err, game.ErrNotFound) {
		if packName == "" {
			packName = packID
		}
		if _, err := c.CreatePack(ctx, packID, packName, true); err != nil && !errors.Is(err, errPackExists) {
			return 0, err
		}
	} else if err != nil {
		return 0, err
	}
	created := 0
	batches := []struct {
		cardType string
		texts    []string
	}{
		{db.CardTypeQuestion, questions},
		{db.CardTypeAnswer, answers},
	}
	for _, batch := range batches {
		for _, text := range batch.texts {
			text = strings.TrimSpace(text)
			if text == "" {
				continue
			}
			_, isNew, err := c.AddCard(ctx, packID, batch.cardType, text)
			if err != nil {
				return created, err
			}
			if isNew {
				created++
			}
		}
	}
	return created, nil
}

// PackCards returns the texts a game is dealt from. Missing or disabled packs
// yield no cards.
func (c *catalog) PackCards(ctx context.Context, packID string) (game.PackCards, error) {
	cards := game.PackCards{}
	if packID == "" {
		return cards, nil
	}
	if c.db == nil {
		c.mu.RLock()
		defer c.mu.RUnlock()
		entry, ok := c.packs[packID]
		if !ok || !entry.pack.Enabled {
			return cards, nil
		}
		for _, card := range entry.cards {
			if card.Type == db.CardTypeQuestion {
				cards.Questions = append(cards.Questions, card.Text)
			} else {
				cards.Answers = append(cards.Answers, card.Text)
			}
		}
		return cards, nil
	}
	var records []db.Card
	err := c.db.WithContext(ctx).
		Joins("JOIN packs ON packs.id = cards.pack_id").
		Where("cards.pack_id = ? AND packs.enabled = ?", packID, true).
		Order("cards.id").
		Find(&records).Error
	if err != nil {
		return cards, err
	}
	for _, record := range records {
		if record.Type == db.CardTypeQuestion {
			cards.Questions = append(cards.Questions, record.Text)
		} else {
			cards.Answers = append(cards.Answers, record.Text)
		}
	}
	return cards, nil
}

// LoadCSV seeds the catalog from a cards CSV file.
func (c *catalog) LoadCSV(ctx context.Context, path string) (int, error) {
	if c.db != nil {
		return db.LoadCardPacks(c.db.WithContext(ctx), path)
	}
	records, err := db.ReadCardRecords(path)
	if err != nil {
		return 0, err
	}
	loaded := 0
	for _, record := range records {
		if _, err := c.GetPack(ctx, record.PackID); errors.Is(err, game.ErrNotFound) {
			if _, err := c.CreatePack(ctx, record.PackID, record.PackName, true); err != nil {
				return loaded, err
			}
		}
		if _, _, err := c.AddCard(ctx, record.PackID, record.Type, record.Text); err != nil {
			return loaded, err
		}
		loaded++
	}
	return loaded, nil
}

func (c *catalog) cardCounts(ctx context.Context, packIDs ...string) (map[string]CardCount, error) {
	type row struct {
		PackID string
		Type   string
		Total  int
	}
	var rows []row
	query := c.db.WithContext(ctx).Model(&db.Card{}).Select("pack_id, type, count(*) AS total").Group("pack_id, type")
	if len(packIDs) > 0 {
		query = query.Where("pack_id IN ?", packIDs)
	}
	if err := query.Scan(&rows).Error; err != nil {
		return nil, err
	}
	counts := make(map[string]CardCount)
	for _, r := range rows {
		count := counts[r.PackID]
		if r.Type == db.CardTypeQuestion {
			count.Black += r.Total
		} else {
			count.White += r.Total
		}
		counts[r.PackID] = count
	}
	return counts, nil
}

func (c *catalog) sortedPacks() []*memoryPack {
	entries := make([]*memoryPack, 0, len(c.packs))
	for _, entry := range c.packs {
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].pack.ID < entries[j].pack.ID })
	return entries
}

func (p *memoryPack) withCounts() Pack {
	pack := p.pack
	pack.CardCount = CardCount{}
	for _, card := range p.cards {
		if card.Type == db.CardTypeQuestion {
			pack.CardCount.Black++
		} else {
			pack.CardCount.White++
		}
	}
	return pack
}
