package gotrue

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/jrsteele09/voter-registration/identity"
	"golang.org/x/oauth2"
)

// SessionStore persists the current session between runs.
type SessionStore interface {
	Load() (*identity.Session, error)
	Save(session *identity.Session) error
	Clear() error
}

type noopStore struct{}

func (noopStore) Load() (*identity.Session, error) { return nil, nil }

func (noopStore) Save(*identity.Session) error { return nil }

func (noopStore) Clear() error { return nil }

// FileStore keeps the session as JSON in a single file readable only by the owner.
type FileStore struct {
	Path string
}

var _ SessionStore = FileStore{}

type storedSession struct {
	AccessToken  string            `json:"access_token"`
	TokenType    string            `json:"token_type"`
	RefreshToken string            `json:"refresh_token"`
	Expiry       time.Time         `json:"expiry"`
	User         identity.Identity `json:"user"`
}

func (f FileStore) Load() (*identity.Session, error) {
	data, err := os.ReadFile(f.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read session file: %w", err)
	}

	var s storedSession
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode session file: %w", err)
	}
	return &identity.Session{
		Token: &oauth2.Token{
			AccessToken:  s.AccessToken,
			TokenType:    s.TokenType,
			RefreshToken: s.RefreshToken,
			Expiry:       s.Expiry,
		},
		User: s.User,
	}, nil
}

func (f FileStore) Save(session *identity.Session) error {
	if session == nil || session.Token == nil {
		return f.Clear()
	}
	data, err := json.Marshal(storedSession{
		AccessToken:  session.Token.AccessToken,
		TokenType:    session.Token.TokenType,
		RefreshToken: session.Token.RefreshToken,
		Expiry:       session.Token.Expiry,
		User:         session.User,
	})
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(f.Path), 0o700); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}
	return os.WriteFile(f.Path, data, 0o600)
}

func (f FileStore) Clear() error {
	if err := os.Remove(f.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove session file: %w", err)
	}
	return nil
}
