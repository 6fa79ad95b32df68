package server

import (
	"context"
	"log"
	"time"
)

const videoSweepInterval = 30 * time.Second

// RunTimeoutSweeper resolves rounds whose deadline passed until ctx ends.
func (s *Server) RunTimeoutSweeper(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.SweepInterval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.SweepTimeouts(ctx)
		}
	}
}

// SweepTimeouts runs HandleTimeout on every room past its deadline. Rooms
// are re-checked under their lock, so a player action that landed first
// turns the timeout into a no-op.
func (s *Server) SweepTimeouts(ctx context.Context) int {
	codes, err := s.rooms.DueRooms(ctx, s.now())
	if err != nil {
		log.Printf("timeout sweep failed error=%v", err)
		return 0
	}
	advanced := 0
	for _, code := range codes {
		room, changed, err := s.handleTimeout(ctx, code)
		if err != nil {
			log.Printf("timeout sweep room failed room=%s error=%v", code, err)
			continue
		}
		if !changed {
			continue
		}
		advanced++
		log.Printf("auto advance room=%s phase=%s status=%s", code, room.Phase, room.Status)
		s.publishRoom(code, "timeout")
	}
	return advanced
}

func (s *Server) RunVideoSweeper(ctx context.Context) error {
	ticker := time.NewTicker(videoSweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.SweepVideo(ctx)
		}
	}
}

// SweepVideo disconnects participants that stopped sending heartbeats and
// prunes old signals.
func (s *Server) SweepVideo(ctx context.Context) {
	now := s.now()
	stale, err := s.video.Sweep(ctx, now.Add(-s.cfg.HeartbeatTimeout()))
	if err != nil {
		log.Printf("video sweep failed error=%v", err)
	}
	pruned, err := s.signals.Prune(ctx, now.Add(-s.cfg.SignalRetention()))
	if err != nil {
		log.Printf("signal prune failed error=%v", err)
	}
	if stale > 0 || pruned > 0 {
		log.Printf("video sweep participants_disconnected=%d signals_pruned=%d", stale, pruned)
	}
}
