package server

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"cards-chaos/internal/game"
)

const maxRoomCodeAttempts = 100

var errRoomCodesExhausted = errors.New("could not allocate a unique room code")

// RoomStore persists rooms. Update is the only write path for an existing
// room: it runs fn against a private copy while holding that room's lock and
// commits only if fn succeeds.
type RoomStore interface {
	Create(ctx context.Context, room *game.Room) error
	Get(ctx context.Context, code string) (*game.Room, error)
	Update(ctx context.Context, code string, fn func(room *game.Room) error) (*game.Room, error)
	DueRooms(ctx context.Context, now time.Time) ([]string, error)
	HasPlayer(ctx context.Context, userID string) (bool, error)
}

type memoryRoomStore struct {
	mu    sync.Mutex
	rooms map[string]*game.Room
	locks *keyedMutex
}

func newMemoryRoomStore() *memoryRoomStore {
	return &memoryRoomStore{
		rooms: make(map[string]*game.Room),
		locks: newKeyedMutex(),
	}
}

func (s *memoryRoomStore) Create(_ context.Context, room *game.Room) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for attempt := 0; attempt < maxRoomCodeAttempts; attempt++ {
		code := newRoomCode()
		if _, exists := s.rooms[code]; exists {
			continue
		}
		room.Code = code
		s.rooms[code] = room.Clone()
		return nil
	}
	return errRoomCodesExhausted
}

func (s *memoryRoomStore) Get(_ context.Context, code string) (*game.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[code]
	if !ok {
		return nil, game.ErrRoomNotFound
	}
	return room.Clone(), nil
}

func (s *memoryRoomStore) Update(_ context.Context, code string, fn func(room *game.Room) error) (*game.Room, error) {
	unlock := s.locks.Lock(code)
	defer unlock()

	s.mu.Lock()
	current, ok := s.rooms[code]
	s.mu.Unlock()
	if !ok {
		return nil, game.ErrRoomNotFound
	}

	working := current.Clone()
	if err := fn(working); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.rooms[code] = working
	s.mu.Unlock()
	return working.Clone(), nil
}

func (s *memoryRoomStore) DueRooms(_ context.Context, now time.Time) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	codes := make([]string, 0)
	for code, room := range s.rooms {
		if room.Status != game.StatusPlaying || room.RoundExpiresAt == nil {
			continue
		}
		if !now.Before(*room.RoundExpiresAt) {
			codes = append(codes, code)
		}
	}
	sort.Strings(codes)
	return codes, nil
}

func (s *memoryRoomStore) HasPlayer(_ context.Context, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, room := range s.rooms {
		if room.Player(userID) != nil {
			return true, nil
		}
	}
	return false, nil
}

// keyedMutex serializes work per key without holding a global lock while the
// work runs. Entries are dropped once nobody holds or waits on them.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedLock
}

type keyedLock struct {
	mu   sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*keyedLock)}
}

func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	lock := k.locks[key]
	if lock == nil {
		lock = &keyedLock{}
		k.locks[key] = lock
	}
	lock.refs++
	k.mu.Unlock()

	lock.mu.Lock()
	return func() {
		lock.mu.Unlock()
		k.mu.Lock()
		lock.refs--
		if lock.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

func (k *keyedMutex) size() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}

func timeNowUTC() time.Time {
	return time.Now().UTC()
}
