// Package session keeps the per-user conversation state: one session per
// Telegram user, holding an opaque conversation handle and a turn counter.
// Everything lives in process memory; a restart starts every user fresh.
package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/univoxai/univox/internal/genai"
)

// Conversation is the opaque multi-turn capability a session owns. The
// store never inspects it beyond identity; it is created fresh on session
// init and discarded wholesale on reset.
type Conversation interface {
	ID() string
	Send(ctx context.Context, parts []genai.Part) (string, error)
}

// Session is the state for one user.
type Session struct {
	ID      string
	OwnerID int64
	Conv    Conversation
}

// Store maps owner IDs to sessions. All mutation goes through GetOrCreate,
// Reset, and Increment; callers never see the map itself.
type Store struct {
	mu       sync.Mutex
	entries  map[int64]*entry
	openConv func() Conversation
	idleTTL  time.Duration
	logger   *slog.Logger
}

type entry struct {
	sess     *Session
	count    int
	lastSeen time.Time
	turnMu   sync.Mutex
}

// NewStore creates a Store. openConv supplies a fresh conversation handle
// for each new or reset session. idleTTL of 0 disables eviction.
func NewStore(log *slog.Logger, openConv func() Conversation, idleTTL time.Duration) *Store {
	if log == nil {
		log = slog.Default()
	}
	return &Store{
		entries:  make(map[int64]*entry),
		openConv: openConv,
		idleTTL:  idleTTL,
		logger:   log.With(slog.String("service", "session_store")),
	}
}

// GetOrCreate returns the session for ownerID, creating one with a zero
// counter and a fresh conversation handle on first contact.
func (st *Store) GetOrCreate(ownerID int64) *Session {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.getOrCreateLocked(ownerID).sess
}

// Reset unconditionally replaces the session for ownerID. The previous
// conversation handle is discarded and its context is unrecoverable.
func (st *Store) Reset(ownerID int64) *Session {
	st.mu.Lock()
	defer st.mu.Unlock()
	e := st.getOrCreateLocked(ownerID)
	e.sess = st.newSession(ownerID)
	e.count = 0
	e.lastSeen = time.Now()
	st.logger.Info("session reset", slog.Int64("owner_id", ownerID), slog.String("session_id", e.sess.ID))
	return e.sess
}

// Increment credits a successful text or voice turn to sess and returns
// the new counter. A session replaced or evicted while the turn was
// running is not credited; the fresh session keeps its zero counter and
// Increment reports 0.
func (st *Store) Increment(sess *Session) int {
	st.mu.Lock()
	defer st.mu.Unlock()
	e, ok := st.entries[sess.OwnerID]
	if !ok || e.sess.ID != sess.ID {
		return 0
	}
	e.count++
	return e.count
}

// Count returns the current turn counter for ownerID without creating a
// session.
func (st *Store) Count(ownerID int64) int {
	st.mu.Lock()
	defer st.mu.Unlock()
	if e, ok := st.entries[ownerID]; ok {
		return e.count
	}
	return 0
}

// Len reports how many sessions the store currently holds.
func (st *Store) Len() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.entries)
}

// BeginTurn resolves the session for ownerID and serializes the turn
// against other turns of the same owner. The returned release func must be
// called when the turn finishes. Turns of distinct owners do not block
// each other.
func (st *Store) BeginTurn(ownerID int64) (*Session, func()) {
	st.mu.Lock()
	e := st.getOrCreateLocked(ownerID)
	e.lastSeen = time.Now()
	st.mu.Unlock()

	e.turnMu.Lock()

	// Reset writes e.sess under st.mu without taking the turn lock, so
	// the pointer must be re-read under st.mu once the turn is ours. This
	// also picks up a session swapped in while we waited for the lock.
	st.mu.Lock()
	sess := e.sess
	st.mu.Unlock()
	return sess, e.turnMu.Unlock
}

// EvictIdle removes sessions idle for longer than the configured TTL and
// returns how many were dropped. A zero TTL makes this a no-op.
func (st *Store) EvictIdle(now time.Time) int {
	if st.idleTTL <= 0 {
		return 0
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	evicted := 0
	for ownerID, e := range st.entries {
		if now.Sub(e.lastSeen) > st.idleTTL {
			delete(st.entries, ownerID)
			evicted++
		}
	}
	if evicted > 0 {
		st.logger.Info("idle sessions evicted", slog.Int("count", evicted), slog.Int("remaining", len(st.entries)))
	}
	return evicted
}

func (st *Store) getOrCreateLocked(ownerID int64) *entry {
	if e, ok := st.entries[ownerID]; ok {
		return e
	}
	e := &entry{sess: st.newSession(ownerID), lastSeen: time.Now()}
	st.entries[ownerID] = e
	st.logger.Info("session created", slog.Int64("owner_id", ownerID), slog.String("session_id", e.sess.ID))
	return e
}

func (st *Store) newSession(ownerID int64) *Session {
	return &Session{
		ID:      uuid.NewString(),
		OwnerID: ownerID,
		Conv:    st.openConv(),
	}
}
