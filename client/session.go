package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type User struct {
	ID       string `json:"_id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	ImageURL string `json:"imageUrl,omitempty"`
}

// Profile is the signed-in user as kept by the browser client under the
// "profile" key.
type Profile struct {
	Result User   `json:"result"`
	Token  string `json:"token"`
}

// Expired reports whether the token's exp claim lies before now.
// Unparseable tokens count as expired; the signature is not checked here
// since only the server holds the secret.
func (p *Profile) Expired(now time.Time) bool {
	if p == nil || p.Token == "" {
		return true
	}

	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(p.Token, &claims); err != nil {
		return true
	}
	if claims.ExpiresAt == nil {
		return false
	}
	return claims.ExpiresAt.Time.Before(now)
}

// Live reports whether the profile can be used to authenticate requests.
func (p *Profile) Live(now time.Time) bool {
	return p != nil && !p.Expired(now)
}

// SessionStore keeps the profile in a JSON file between runs.
type SessionStore struct {
	path string
}

func NewSessionStore(path string) *SessionStore {
	return &SessionStore{path: path}
}

// Load returns nil without error when nobody is signed in.
func (s *SessionStore) Load() (*Profile, error) {
	raw, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read session: %w", err)
	}

	var profile Profile
	if err = json.Unmarshal(raw, &profile); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &profile, nil
}

func (s *SessionStore) Save(profile *Profile) error {
	raw, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err = os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}
	if err = os.WriteFile(s.path, raw, 0o600); err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	return nil
}

func (s *SessionStore) Clear() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

// Current loads the profile and signs out a profile whose token has expired.
func (s *SessionStore) Current(now time.Time) (*Profile, error) {
	profile, err := s.Load()
	if err != nil || profile == nil {
		return nil, err
	}
	if profile.Expired(now) {
		return nil, s.Clear()
	}
	return profile, nil
}
