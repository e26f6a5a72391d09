// Package session tracks who is signed in. Queries for user-scoped resources
// stay disabled until a session exists and has finished loading.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

var (
	ErrInvalidToken  = errors.New("invalid token")
	ErrExpiredToken  = errors.New("token has expired")
	ErrMissingToken  = errors.New("missing authentication token")
	ErrInvalidClaims = errors.New("invalid token claims")
)

// Claims are the token claims the API issues.
type Claims struct {
	UserID string   `json:"sub"`
	Email  string   `json:"email"`
	Name   string   `json:"name,omitempty"`
	Roles  []string `json:"roles,omitempty"`
	jwt.RegisteredClaims
}

// Identity is the signed-in user.
type Identity struct {
	ID        string
	Email     string
	Name      string
	Roles     []string
	ExpiresAt time.Time
}

// State is a point-in-time view of the session.
type State struct {
	User    *Identity
	Loading bool
	Token   string
}

// Ready reports whether user-scoped queries may run.
func (s State) Ready() bool {
	return !s.Loading && s.User != nil
}

// UserID returns the signed-in user's id, or "".
func (s State) UserID() string {
	if s.User == nil {
		return ""
	}
	return s.User.ID
}

// Provider exposes the current session.
type Provider interface {
	Current() State
}

// Static is a fixed session.
type Static State

func (s Static) Current() State { return State(s) }

// Anonymous is a finished session with nobody signed in.
var Anonymous Provider = Static{}

// Manager is a mutable Provider.
type Manager struct {
	mu       sync.RWMutex
	state    State
	now      func() time.Time
	logger   *zap.Logger
	onChange []func(State)
}

// NewManager creates a manager with no session.
func NewManager(logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		now:    time.Now,
		logger: logger.Named("session"),
	}
}

// Current returns the session state. An expired token reads as signed out.
func (m *Manager) Current() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s := m.state
	if s.User != nil && !s.User.ExpiresAt.IsZero() && !m.now().Before(s.User.ExpiresAt) {
		return State{}
	}
	return s
}

// OnChange registers fn to run after every state change.
func (m *Manager) OnChange(fn func(State)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onChange = append(m.onChange, fn)
}

// Begin marks the session as loading.
func (m *Manager) Begin() {
	m.set(State{Loading: true})
}

// SignIn decodes token and makes it the current session. The signature is
// not checked here: the API does that on every call.
func (m *Manager) SignIn(token string) (*Identity, error) {
	claims, err := ParseUnverified(token)
	if err != nil {
		m.set(State{})
		return nil, err
	}
	id := claims.Identity()
	if !id.ExpiresAt.IsZero() && !m.now().Before(id.ExpiresAt) {
		m.set(State{})
		return nil, ErrExpiredToken
	}

	m.set(State{User: id, Token: normalize(token)})
	m.logger.Info("Signed in", zap.String("user_id", id.ID))
	return id, nil
}

// SignOut clears the session.
func (m *Manager) SignOut() {
	m.set(State{})
	m.logger.Info("Signed out")
}

func (m *Manager) set(s State) {
	m.mu.Lock()
	m.state = s
	callbacks := append([]func(State){}, m.onChange...)
	m.mu.Unlock()

	for _, fn := range callbacks {
		fn(s)
	}
}

// Tokens adapts a Provider to a bearer token source.
func Tokens(p Provider) func(context.Context) string {
	return func(context.Context) string {
		return p.Current().Token
	}
}

// Identity converts the claims into an Identity.
func (c *Claims) Identity() *Identity {
	id := &Identity{
		ID:    c.UserID,
		Email: c.Email,
		Name:  c.Name,
		Roles: c.Roles,
	}
	if c.ExpiresAt != nil {
		id.ExpiresAt = c.ExpiresAt.Time
	}
	return id
}

// ParseUnverified decodes the claims of token without checking its signature.
func ParseUnverified(token string) (*Claims, error) {
	token = normalize(token)
	if token == "" {
		return nil, ErrMissingToken
	}
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.UserID == "" {
		return nil, fmt.Errorf("%w: missing user ID", ErrInvalidClaims)
	}
	return claims, nil
}

func normalize(token string) string {
	return strings.TrimSpace(strings.TrimPrefix(token, "Bearer "))
}
