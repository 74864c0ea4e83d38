// Package session implements an in-memory registry of voice-pipeline
// sessions: lifecycle state, TTL-based expiry, and free-form metadata.
package session

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrSessionNotFound is returned by any operation addressing a session ID
// that is not (or no longer) registered.
var ErrSessionNotFound = errors.New("session: not found")

// ErrCapacityReached is returned by Create when the registry is at its
// configured maximum and a reap pass still leaves no room.
var ErrCapacityReached = errors.New("session: capacity reached")

// State is a session's lifecycle state.
type State int

const (
	Active State = iota
	Paused
	Terminating
	Ended
)

func (s State) String() string {
	switch s {
	case Paused:
		return "paused"
	case Terminating:
		return "terminating"
	case Ended:
		return "ended"
	default:
		return "active"
	}
}

// Counters holds the cumulative per-session stats the pipeline updates as
// it processes datagrams and turn events. Snapshotted under the
// registry's lock like Room.Stats() in the teacher server.
type Counters struct {
	PacketsReceived uint64
	PacketsLost     uint64
	FramesProcessed uint64
	TurnEvents      uint64
	BargeIns        uint64
}

// Status holds the instantaneous (non-cumulative) per-session values the
// pipeline refreshes every frame, as opposed to Counters' additive deltas.
type Status struct {
	JitterLevelPercent float64
	TurnState          string
	FusedConfidence    float32
	ConfidenceLevel    string
}

// Record is the registry's view of one session. Callers receive copies
// from Get/List — mutation happens only through registry methods.
type Record struct {
	ID           string
	UserID       string
	CreatedAt    time.Time
	LastActivity time.Time
	State        State
	Metadata     map[string]string
	Counters     Counters
	Status       Status
}

func (r Record) isExpired(ttl time.Duration, now time.Time) bool {
	return now.Sub(r.LastActivity) > ttl
}

// Config tunes the registry's capacity and expiry behaviour.
type Config struct {
	TTL         time.Duration
	MaxSessions int
}

// DefaultConfig returns a 1-hour TTL and a 10000-session capacity,
// matching the distilled specification's defaults.
func DefaultConfig() Config {
	return Config{TTL: time.Hour, MaxSessions: 10000}
}

// Registry is a concurrency-safe in-memory session store. Zero value is
// not usable; use New().
type Registry struct {
	mu       sync.RWMutex
	config   Config
	sessions map[string]*Record
}

// New creates a Registry with the given configuration.
func New(config Config) *Registry {
	return &Registry{
		config:   config,
		sessions: make(map[string]*Record),
	}
}

// Create allocates a new session for userID (may be empty) and returns its
// ID. If the registry is at capacity, expired sessions are reaped first;
// if it is still at capacity afterward, ErrCapacityReached is returned.
func (r *Registry) Create(userID string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.sessions) >= r.config.MaxSessions {
		r.reapExpiredLocked(time.Now())
		if len(r.sessions) >= r.config.MaxSessions {
			return "", ErrCapacityReached
		}
	}

	id := uuid.NewString()
	now := time.Now()
	r.sessions[id] = &Record{
		ID:           id,
		UserID:       userID,
		CreatedAt:    now,
		LastActivity: now,
		State:        Active,
		Metadata:     make(map[string]string),
	}
	return id, nil
}

// Get returns a copy of the session's record.
func (r *Registry) Get(id string) (Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.sessions[id]
	if !ok {
		return Record{}, fmt.Errorf("session %s: %w", id, ErrSessionNotFound)
	}
	return cloneRecord(rec), nil
}

// Touch refreshes a session's last-activity timestamp.
func (r *Registry) Touch(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.sessions[id]
	if !ok {
		return fmt.Errorf("session %s: %w", id, ErrSessionNotFound)
	}
	rec.LastActivity = time.Now()
	return nil
}

// UpdateState sets a session's lifecycle state and refreshes its
// last-activity timestamp.
func (r *Registry) UpdateState(id string, state State) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.sessions[id]
	if !ok {
		return fmt.Errorf("session %s: %w", id, ErrSessionNotFound)
	}
	rec.State = state
	rec.LastActivity = time.Now()
	return nil
}

// SetMetadata attaches a key/value pair to a session's metadata map.
func (r *Registry) SetMetadata(id, key, value string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.sessions[id]
	if !ok {
		return fmt.Errorf("session %s: %w", id, ErrSessionNotFound)
	}
	rec.Metadata[key] = value
	return nil
}

// RecordCounters applies a delta to a session's counters, used by the
// pipeline to report packets/frames/events processed this tick.
func (r *Registry) RecordCounters(id string, delta Counters) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.sessions[id]
	if !ok {
		return fmt.Errorf("session %s: %w", id, ErrSessionNotFound)
	}
	rec.Counters.PacketsReceived += delta.PacketsReceived
	rec.Counters.PacketsLost += delta.PacketsLost
	rec.Counters.FramesProcessed += delta.FramesProcessed
	rec.Counters.TurnEvents += delta.TurnEvents
	rec.Counters.BargeIns += delta.BargeIns
	return nil
}

// UpdateStatus overwrites a session's instantaneous status fields (jitter
// level, turn state, fused confidence) with the pipeline's latest reading,
// unlike RecordCounters' additive deltas.
func (r *Registry) UpdateStatus(id string, status Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.sessions[id]
	if !ok {
		return fmt.Errorf("session %s: %w", id, ErrSessionNotFound)
	}
	rec.Status = status
	return nil
}

// End removes a session from the registry outright. Unlike the Rust
// precursor, which marks the record Ended before deleting it within the
// same lock (a no-op visible to no reader), this simply removes it.
func (r *Registry) End(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[id]; !ok {
		return fmt.Errorf("session %s: %w", id, ErrSessionNotFound)
	}
	delete(r.sessions, id)
	return nil
}

// ActiveCount returns the number of sessions currently in the Active
// state.
func (r *Registry) ActiveCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, rec := range r.sessions {
		if rec.State == Active {
			n++
		}
	}
	return n
}

// TotalCount returns the total number of registered sessions.
func (r *Registry) TotalCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// CleanupExpired removes every session whose last activity exceeds the
// registry's TTL and returns how many were removed.
func (r *Registry) CleanupExpired() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.reapExpiredLocked(time.Now())
}

func (r *Registry) reapExpiredLocked(now time.Time) int {
	var expired []string
	for id, rec := range r.sessions {
		if rec.isExpired(r.config.TTL, now) {
			expired = append(expired, id)
		}
	}
	for _, id := range expired {
		delete(r.sessions, id)
	}
	return len(expired)
}

// List returns a copy of every registered session's record.
func (r *Registry) List() []Record {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Record, 0, len(r.sessions))
	for _, rec := range r.sessions {
		out = append(out, cloneRecord(rec))
	}
	return out
}

func cloneRecord(rec *Record) Record {
	meta := make(map[string]string, len(rec.Metadata))
	for k, v := range rec.Metadata {
		meta[k] = v
	}
	clone := *rec
	clone.Metadata = meta
	return clone
}
