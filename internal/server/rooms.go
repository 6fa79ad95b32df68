package server

import (
	"context"
	"log"

	"cards-chaos/internal/game"
)

const maxRoundsLimit = 50

var (
	errSettingsNotHost = &game.RuleError{Code: "not_host", Message: "Only host can change settings"}
	errPackUnavailable = &game.RuleError{Code: "validation", Message: "Pack not found or disabled"}
)

type roomSettings struct {
	PackID    *string
	MaxRounds *int
}

func (s *Server) createRoom(ctx context.Context, hostID, hostName, avatar, packID string, maxRounds *int) (*game.Room, error) {
	resolved, err := s.resolvePack(ctx, packID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	room := &game.Room{
		HostID:    hostID,
		Status:    game.StatusWaiting,
		Phase:     game.PhaseWaiting,
		PackID:    resolved,
		MaxRounds: s.cfg.DefaultMaxRounds,
		CreatedAt: now,
		Players: []game.Player{{
			UserID:   hostID,
			Name:     hostName,
			Avatar:   avatar,
			IsHost:   true,
			IsOnline: true,
			Hand:     []string{},
			JoinedAt: now,
		}},
	}
	if maxRounds != nil {
		room.MaxRounds = *maxRounds
	}
	if err := s.rooms.Create(ctx, room); err != nil {
		return nil, err
	}
	log.Printf("room created room=%s host_id=%s pack_id=%s", room.Code, hostID, room.PackID)
	return room, nil
}

// resolvePack checks an explicitly requested pack and falls back to the
// configured default when none is given. A missing default leaves the room
// without a pack.
func (s *Server) resolvePack(ctx context.Context, packID string) (string, error) {
	if packID != "" {
		_, enabled, err := s.catalog.EnabledPack(ctx, packID)
		if err != nil {
			return "", err
		}
		if !enabled {
			return "", errPackUnavailable
		}
		return packID, nil
	}
	if s.cfg.DefaultPackID == "" {
		return "", nil
	}
	_, enabled, err := s.catalog.EnabledPack(ctx, s.cfg.DefaultPackID)
	if err != nil || !enabled {
		return "", err
	}
	return s.cfg.DefaultPackID, nil
}

// joinRoom adds a player, or brings an existing one back online. Only new
// players are subject to the lobby and capacity checks.
func (s *Server) joinRoom(ctx context.Context, code, userID, name, avatar string) (*game.Room, error) {
	room, err := s.rooms.Update(ctx, code, func(room *game.Room) error {
		if player := room.Player(userID); player != nil {
			player.IsOnline = true
			if name != "" {
				player.Name = name
			}
			if avatar != "" {
				player.Avatar = avatar
			}
			return nil
		}
		if room.Status != game.StatusWaiting {
			return game.ErrAlreadyStarted
		}
		if room.OnlineCount() >= s.cfg.MaxPlayers {
			return game.ErrRoomFull
		}
		room.Players = append(room.Players, game.Player{
			UserID:   userID,
			Name:     name,
			Avatar:   avatar,
			IsOnline: true,
			Hand:     []string{},
			JoinedAt: s.now(),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Printf("player joined room=%s user_id=%s", code, userID)
	s.publishRoom(code, "player_joined")
	return room, nil
}

func (s *Server) leaveRoom(ctx context.Context, code, userID string) (*game.Room, error) {
	room, _, err := s.setOnline(ctx, code, userID, false)
	if err != nil {
		return nil, err
	}
	log.Printf("player left room=%s user_id=%s", code, userID)
	s.publishRoom(code, "player_left")
	return room, nil
}

// setOnline flips a player's presence and reports whether it changed.
func (s *Server) setOnline(ctx context.Context, code, userID string, online bool) (*game.Room, bool, error) {
	changed := false
	room, err := s.rooms.Update(ctx, code, func(room *game.Room) error {
		player := room.Player(userID)
		if player == nil {
			return game.ErrPlayerNotFound
		}
		changed = player.IsOnline != online
		player.IsOnline = online
		return nil
	})
	return room, changed, err
}

func (s *Server) startGame(ctx context.Context, code, userID string) (*game.Room, error) {
	room, err := s.rooms.Update(ctx, code, func(room *game.Room) error {
		if room.HostID != userID {
			return game.ErrNotHost
		}
		if room.Status != game.StatusWaiting {
			return game.ErrAlreadyStarted
		}
		if room.OnlineCount() < s.cfg.MinPlayers {
			return game.ErrNotEnoughPlayers
		}
		cards, err := s.catalog.PackCards(ctx, room.PackID)
		if err != nil {
			return err
		}
		return s.engine.StartGame(room, cards, s.now())
	})
	if err != nil {
		return nil, err
	}
	log.Printf("game started room=%s players=%d czar_id=%s", code, room.OnlineCount(), room.CzarID)
	s.publishRoom(code, "game_started")
	return room, nil
}

func (s *Server) submitCard(ctx context.Context, code, userID, card string) (*game.Room, error) {
	room, err := s.rooms.Update(ctx, code, func(room *game.Room) error {
		return s.engine.SubmitCard(room, userID, card, s.now())
	})
	if err != nil {
		return nil, err
	}
	log.Printf("card submitted room=%s user_id=%s round=%d phase=%s", code, userID, room.CurrentRound, room.Phase)
	s.publishRoom(code, "card_submitted")
	return room, nil
}

// pickWinner ignores picks outside the picking phase, so a repeated pick for
// an already resolved round succeeds without changing anything.
func (s *Server) pickWinner(ctx context.Context, code, userID, winnerID string) (*game.Room, bool, error) {
	changed := false
	room, err := s.rooms.Update(ctx, code, func(room *game.Room) error {
		if room.Phase != game.PhasePicking {
			return nil
		}
		if room.CzarID != userID {
			return game.ErrNotCzar
		}
		if err := s.engine.PickWinner(room, winnerID, s.now()); err != nil {
			return err
		}
		changed = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	if changed {
		log.Printf("winner picked room=%s winner_id=%s round=%d status=%s", code, winnerID, room.LastRound.RoundNumber, room.Status)
		s.publishRoom(code, "winner_picked")
	}
	return room, changed, nil
}

func (s *Server) handleTimeout(ctx context.Context, code string) (*game.Room, bool, error) {
	changed := false
	room, err := s.rooms.Update(ctx, code, func(room *game.Room) error {
		changed = s.engine.HandleTimeout(room, s.now())
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	if changed {
		log.Printf("round timed out room=%s round=%d phase=%s", code, room.CurrentRound, room.Phase)
	}
	return room, changed, nil
}

func (s *Server) updateSettings(ctx context.Context, code, userID string, settings roomSettings) (*game.Room, error) {
	var packID string
	if settings.PackID != nil && *settings.PackID != "" {
		resolved, err := s.resolvePack(ctx, *settings.PackID)
		if err != nil {
			return nil, err
		}
		packID = resolved
	}
	room, err := s.rooms.Update(ctx, code, func(room *game.Room) error {
		if room.HostID != userID {
			return errSettingsNotHost
		}
		if room.Status != game.StatusWaiting {
			return game.ErrAlreadyStarted
		}
		if settings.PackID != nil {
			room.PackID = packID
		}
		if settings.MaxRounds != nil {
			room.MaxRounds = *settings.MaxRounds
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Printf("room settings updated room=%s pack_id=%s max_rounds=%d", code, room.PackID, room.MaxRounds)
	s.publishRoom(code, "settings_updated")
	return room, nil
}
