// Package session keeps human-in-the-loop review sessions. A session is
// created pending, and either completed exactly once or timed out.
package session

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"
)

// Session errors indicate caller misuse and are never retried
var (
	ErrNotFound         = errors.New("session not found")
	ErrAlreadyCompleted = errors.New("session already completed")
	ErrExpired          = errors.New("session expired")
)

const (
	DefaultTimeout   = 15 * time.Minute
	DefaultRetention = time.Hour
)

// State is the lifecycle state of a session
type State string

const (
	StatePending   State = "pending"
	StateCompleted State = "completed"
	StateTimedOut  State = "timed_out"
)

// Terminal reports whether no further transition is possible
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateTimedOut
}

// ReviewItem is a claim that needs a human decision
type ReviewItem struct {
	Claim           string  `json:"claim"`
	Sentence        int     `json:"sentence"`
	Confidence      float64 `json:"confidence"`
	IsHallucination bool    `json:"is_hallucination"`
}

// Feedback is the reviewer's answer
type Feedback struct {
	Reviewer    string         `json:"reviewer,omitempty"`
	Approved    bool           `json:"approved"`
	Corrections map[int]string `json:"corrections,omitempty"` // Sentence index -> corrected text
	Notes       string         `json:"notes,omitempty"`
}

// Session is a snapshot of one review session
type Session struct {
	ID          string       `json:"id"`
	State       State        `json:"state"`
	Items       []ReviewItem `json:"items"`
	CreatedAt   time.Time    `json:"created_at"`
	ExpiresAt   time.Time    `json:"expires_at"`
	CompletedAt *time.Time   `json:"completed_at,omitempty"`
	Feedback    *Feedback    `json:"feedback,omitempty"`
}

func (s *Session) clone() Session {
	out := *s
	out.Items = append([]ReviewItem(nil), s.Items...)
	if s.CompletedAt != nil {
		t := *s.CompletedAt
		out.CompletedAt = &t
	}
	if s.Feedback != nil {
		fb := *s.Feedback
		if s.Feedback.Corrections != nil {
			fb.Corrections = make(map[int]string, len(s.Feedback.Corrections))
			for k, v := range s.Feedback.Corrections {
				fb.Corrections[k] = v
			}
		}
		out.Feedback = &fb
	}
	return out
}

// Store holds sessions keyed by id. Expiry is checked lazily on every access;
// the go-cache janitor drops sessions once their retention window has passed.
type Store struct {
	mu        sync.Mutex
	items     *gocache.Cache
	timeout   time.Duration
	retention time.Duration
	now       func() time.Time
	logger    *slog.Logger
}

// NewStore creates a session store. Zero durations use the defaults.
func NewStore(timeout, retention time.Duration, logger *slog.Logger) *Store {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if retention <= 0 {
		retention = DefaultRetention
	}
	if logger == nil {
		logger = slog.Default()
	}

	items := gocache.New(timeout+retention, time.Minute)
	items.OnEvicted(func(id string, v interface{}) {
		if s, ok := v.(*Session); ok {
			logger.Debug("session evicted", "id", id, "state", s.State)
		}
	})

	return &Store{
		items:     items,
		timeout:   timeout,
		retention: retention,
		now:       time.Now,
		logger:    logger,
	}
}

// Create opens a pending session for the given items
func (st *Store) Create(items []ReviewItem) Session {
	st.mu.Lock()
	defer st.mu.Unlock()

	now := st.now().UTC()
	s := &Session{
		ID:        uuid.NewString(),
		State:     StatePending,
		Items:     append([]ReviewItem(nil), items...),
		CreatedAt: now,
		ExpiresAt: now.Add(st.timeout),
	}
	st.items.Set(s.ID, s, st.timeout+st.retention)
	return s.clone()
}

// Get returns the session, timing it out first if its window has passed
func (st *Store) Get(id string) (Session, error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	s, err := st.lookup(id)
	if err != nil {
		return Session{}, err
	}
	return s.clone(), nil
}

// Complete records feedback on a pending session. Completing a session
// twice, or after it timed out, is an error.
func (st *Store) Complete(id string, fb Feedback) (Session, error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	s, err := st.lookup(id)
	if err != nil {
		return Session{}, err
	}
	switch s.State {
	case StateCompleted:
		return Session{}, fmt.Errorf("complete %s: %w", id, ErrAlreadyCompleted)
	case StateTimedOut:
		return Session{}, fmt.Errorf("complete %s: %w", id, ErrExpired)
	}

	now := st.now().UTC()
	s.State = StateCompleted
	s.CompletedAt = &now
	s.Feedback = &fb
	st.items.Set(s.ID, s, st.retention)
	return s.clone(), nil
}

// List returns all retained sessions ordered by creation time
func (st *Store) List() []Session {
	st.mu.Lock()
	defer st.mu.Unlock()

	var out []Session
	for id := range st.items.Items() {
		s, err := st.lookup(id)
		if err != nil {
			continue
		}
		out = append(out, s.clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// lookup finds a session and applies lazy expiry. Callers hold st.mu.
func (st *Store) lookup(id string) (*Session, error) {
	v, ok := st.items.Get(id)
	if !ok {
		return nil, fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	s := v.(*Session)
	if s.State == StatePending && st.now().After(s.ExpiresAt) {
		s.State = StateTimedOut
		st.logger.Warn("session timed out", "id", s.ID, "expired_at", s.ExpiresAt)
		st.items.Set(s.ID, s, st.retention)
	}
	return s, nil
}
