package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"ingrevia/internal/core"
	"ingrevia/pkg"
)

// ErrSessionNotFound is returned for unknown or expired session ids
var ErrSessionNotFound = errors.New("session not found")

// SessionManager keeps conversation sessions for the length of a conversation
type SessionManager interface {
	GetSession(ctx context.Context, sessionID string) (*core.Session, error)
	SaveSession(ctx context.Context, session *core.Session) error
	DeleteSession(ctx context.Context, sessionID string) error
}

// LoadOrCreate returns the stored session or a fresh one for the id
func LoadOrCreate(ctx context.Context, m SessionManager, sessionID string) (*core.Session, error) {
	session, err := m.GetSession(ctx, sessionID)
	if errors.Is(err, ErrSessionNotFound) {
		return core.NewSession(sessionID), nil
	}
	if err != nil {
		return nil, err
	}
	return session, nil
}

// MemorySessionManager is an in-memory implementation with idle expiry
type MemorySessionManager struct {
	mu       sync.RWMutex
	sessions map[string]*core.Session
	ttl      time.Duration
	now      func() time.Time
}

// NewMemorySessionManager creates a new in-memory session manager. A zero ttl never expires.
func NewMemorySessionManager(ttl time.Duration) *MemorySessionManager {
	return &MemorySessionManager{
		sessions: make(map[string]*core.Session),
		ttl:      ttl,
		now:      time.Now,
	}
}

// GetSession retrieves a session by id
func (m *MemorySessionManager) GetSession(ctx context.Context, sessionID string) (*core.Session, error) {
	m.mu.RLock()
	session, exists := m.sessions[sessionID]
	m.mu.RUnlock()
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}

	// Check if session has expired
	if m.ttl > 0 && m.now().Unix()-session.UpdatedAt > int64(m.ttl.Seconds()) {
		m.mu.Lock()
		delete(m.sessions, sessionID)
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: %s expired", ErrSessionNotFound, sessionID)
	}
	return session, nil
}

// SaveSession saves or updates a session
func (m *MemorySessionManager) SaveSession(ctx context.Context, session *core.Session) error {
	if err := ValidateSession(session); err != nil {
		return err
	}

	now := m.now().Unix()
	if session.CreatedAt == 0 {
		session.CreatedAt = now
	}
	session.UpdatedAt = now
	if session.Metadata == nil {
		session.Metadata = make(map[string]any)
	}

	m.mu.Lock()
	m.sessions[session.ID] = session
	m.mu.Unlock()
	return nil
}

// DeleteSession removes a session
func (m *MemorySessionManager) DeleteSession(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	delete(m.sessions, sessionID)
	m.mu.Unlock()
	return nil
}

// SessionStats provides statistics about a session
type SessionStats struct {
	SessionID       string `json:"session_id"`
	MessageCount    int    `json:"message_count"`
	UserTurns       int    `json:"user_turns"`
	CreatedAt       int64  `json:"created_at"`
	UpdatedAt       int64  `json:"updated_at"`
	DurationMinutes int64  `json:"duration_minutes"`
}

// GetSessionStats returns statistics for a session
func GetSessionStats(session *core.Session) SessionStats {
	stats := SessionStats{
		SessionID:    session.ID,
		MessageCount: len(session.Messages),
		CreatedAt:    session.CreatedAt,
		UpdatedAt:    session.UpdatedAt,
	}
	for _, msg := range session.Messages {
		if msg.Role == pkg.RoleUser {
			stats.UserTurns++
		}
	}
	if session.CreatedAt > 0 && session.UpdatedAt > 0 {
		stats.DurationMinutes = (session.UpdatedAt - session.CreatedAt) / 60
	}
	return stats
}

// ValidateSession checks if a session is valid
func ValidateSession(session *core.Session) error {
	if session == nil {
		return fmt.Errorf("session cannot be nil")
	}
	if session.ID == "" {
		return fmt.Errorf("session ID cannot be empty")
	}

	validRoles := map[string]bool{pkg.RoleUser: true, pkg.RoleAssistant: true, pkg.RoleSystem: true}
	for i, msg := range session.Messages {
		if msg.Content == "" {
			return fmt.Errorf("message %d has empty content", i)
		}
		if !validRoles[msg.Role] {
			return fmt.Errorf("message %d has invalid role: %s", i, msg.Role)
		}
	}
	return nil
}
