package server

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"cards-chaos/internal/db"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	sessionCookieName = "cc_session"
	orphanedKeyPrefix = "orphaned_"
)

type Identity struct {
	ID         string
	SessionKey string
	CreatedAt  time.Time
}

type AuthResult struct {
	Identity  Identity
	Created   bool
	Recovered bool
}

// sessionRegistry maps browser session keys to stable user ids. A client may
// also present a user id it stored earlier, which wins over the session key.
type sessionRegistry struct {
	db        *gorm.DB
	rooms     RoomStore
	keys      *keyedMutex
	mu        sync.Mutex
	byID      map[string]*Identity
	bySession map[string]*Identity
}

func newSessionRegistry(conn *gorm.DB, rooms RoomStore) *sessionRegistry {
	return &sessionRegistry{
		db:        conn,
		rooms:     rooms,
		keys:      newKeyedMutex(),
		byID:      make(map[string]*Identity),
		bySession: make(map[string]*Identity),
	}
}

// Authenticate resolves the identity for sessionKey. When storedUID names an
// existing identity it is recovered onto this session; an identity already
// holding the session key is deleted if it never played, otherwise its key is
// rewritten to an orphan placeholder.
func (r *sessionRegistry) Authenticate(ctx context.Context, sessionKey, storedUID string) (AuthResult, error) {
	if sessionKey == "" {
		return AuthResult{}, errors.New("session key is required")
	}
	unlock := r.keys.Lock(sessionKey)
	defer unlock()
	if r.db == nil {
		return r.authenticateMemory(ctx, sessionKey, storedUID)
	}
	result, err := r.authenticateSQL(ctx, sessionKey, storedUID)
	if isUniqueViolation(err) {
		// Another replica created the identity for this key first.
		return r.authenticateSQL(ctx, sessionKey, storedUID)
	}
	return result, err
}

func (r *sessionRegistry) authenticateMemory(ctx context.Context, sessionKey, storedUID string) (AuthResult, error) {
	if storedUID != "" {
		r.mu.Lock()
		stored := r.byID[storedUID]
		if stored != nil && stored.SessionKey == sessionKey {
			identity := *stored
			r.mu.Unlock()
			return AuthResult{Identity: identity}, nil
		}
		var otherID string
		if other := r.bySession[sessionKey]; other != nil && stored != nil && other.ID != stored.ID {
			otherID = other.ID
		}
		r.mu.Unlock()

		if stored != nil {
			played := false
			if otherID != "" {
				var err error
				if played, err = r.rooms.HasPlayer(ctx, otherID); err != nil {
					return AuthResult{}, err
				}
			}
			r.mu.Lock()
			defer r.mu.Unlock()
			if other := r.bySession[sessionKey]; other != nil && other.ID == otherID {
				delete(r.bySession, sessionKey)
				if played {
					other.SessionKey = orphanedKeyPrefix + uuid.NewString()
					r.bySession[other.SessionKey] = other
				} else {
					delete(r.byID, other.ID)
				}
			}
			delete(r.bySession, stored.SessionKey)
			stored.SessionKey = sessionKey
			r.byID[stored.ID] = stored
			r.bySession[sessionKey] = stored
			return AuthResult{Identity: *stored, Recovered: true}, nil
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing := r.bySession[sessionKey]; existing != nil {
		return AuthResult{Identity: *existing}, nil
	}
	identity := &Identity{ID: uuid.NewString(), SessionKey: sessionKey, CreatedAt: timeNowUTC()}
	r.byID[identity.ID] = identity
	r.bySession[sessionKey] = identity
	return AuthResult{Identity: *identity, Created: true}, nil
}

func (r *sessionRegistry) authenticateSQL(ctx context.Context, sessionKey, storedUID string) (AuthResult, error) {
	var result AuthResult
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if storedUID != "" {
			var stored db.Identity
			err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", storedUID).First(&stored).Error
			switch {
			case err == nil:
				if stored.SessionKey == sessionKey {
					result = AuthResult{Identity: identityFromRecord(stored)}
					return nil
				}
				if err := r.releaseSessionKey(ctx, tx, sessionKey, stored.ID); err != nil {
					return err
				}
				stored.SessionKey = sessionKey
				if err := tx.Save(&stored).Error; err != nil {
					return err
				}
				result = AuthResult{Identity: identityFromRecord(stored), Recovered: true}
				return nil
			case !errors.Is(err, gorm.ErrRecordNotFound):
				return err
			}
		}

		var existing db.Identity
		err := tx.Where("session_key = ?", sessionKey).First(&existing).Error
		if err == nil {
			result = AuthResult{Identity: identityFromRecord(existing)}
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		created := db.Identity{ID: uuid.NewString(), SessionKey: sessionKey}
		if err := tx.Create(&created).Error; err != nil {
			return err
		}
		result = AuthResult{Identity: identityFromRecord(created), Created: true}
		return nil
	})
	return result, err
}

func (r *sessionRegistry) releaseSessionKey(ctx context.Context, tx *gorm.DB, sessionKey, keepID string) error {
	var other db.Identity
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("session_key = ? AND id <> ?", sessionKey, keepID).
		First(&other).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	played, err := r.rooms.HasPlayer(ctx, other.ID)
	if err != nil {
		return err
	}
	if !played {
		return tx.Delete(&other).Error
	}
	other.SessionKey = orphanedKeyPrefix + uuid.NewString()
	return tx.Save(&other).Error
}

// Lookup returns the identity with the given user id.
func (r *sessionRegistry) Lookup(ctx context.Context, userID string) (Identity, bool, error) {
	if userID == "" {
		return Identity{}, false, nil
	}
	if r.db == nil {
		r.mu.Lock()
		defer r.mu.Unlock()
		identity, ok := r.byID[userID]
		if !ok {
			return Identity{}, false, nil
		}
		return *identity, true, nil
	}
	var record db.Identity
	if err := r.db.WithContext(ctx).Where("id = ?", userID).First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Identity{}, false, nil
		}
		return Identity{}, false, err
	}
	return identityFromRecord(record), true, nil
}

// BySessionKey returns the identity currently holding sessionKey.
func (r *sessionRegistry) BySessionKey(ctx context.Context, sessionKey string) (Identity, bool, error) {
	if sessionKey == "" {
		return Identity{}, false, nil
	}
	if r.db == nil {
		r.mu.Lock()
		defer r.mu.Unlock()
		identity, ok := r.bySession[sessionKey]
		if !ok {
			return Identity{}, false, nil
		}
		return *identity, true, nil
	}
	var record db.Identity
	if err := r.db.WithContext(ctx).Where("session_key = ?", sessionKey).First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Identity{}, false, nil
		}
		return Identity{}, false, err
	}
	return identityFromRecord(record), true, nil
}

func identityFromRecord(record db.Identity) Identity {
	return Identity{ID: record.ID, SessionKey: record.SessionKey, CreatedAt: record.CreatedAt}
}

func ensureSessionKey(c *gin.Context) string {
	if cookie, err := c.Request.Cookie(sessionCookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	key := newSessionKey()
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     sessionCookieName,
		Value:    key,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return key
}

func newSessionKey() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("sess-%d", time.Now().UnixNano())
	}
	return fmt.Sprintf("%x", buf)
}
