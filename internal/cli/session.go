package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Session is the token the player pasted at login plus who it belongs to.
type Session struct {
	AccessToken string `json:"access_token"`
	AccountID   string `json:"account_id"`
	Email       string `json:"email"`
}

// SessionStore keeps the session file under Dir.
type SessionStore struct {
	Dir string
}

// DefaultSessionStore uses ~/.sw.
func DefaultSessionStore() (SessionStore, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return SessionStore{}, err
	}
	return SessionStore{Dir: filepath.Join(home, ".sw")}, nil
}

func (s SessionStore) path() (string, error) {
	if err := os.MkdirAll(s.Dir, 0o700); err != nil {
		return "", err
	}
	return filepath.Join(s.Dir, "session.json"), nil
}

func (s SessionStore) Save(sess Session) error {
	path, err := s.path()
	if err != nil {
		return err
	}
	body, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, body, 0o600)
}

func (s SessionStore) Load() (Session, error) {
	path, err := s.path()
	if err != nil {
		return Session{}, err
	}
	body, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Session{}, fmt.Errorf("not logged in, run `sw login`")
		}
		return Session{}, err
	}
	var sess Session
	if err := json.Unmarshal(body, &sess); err != nil {
		return Session{}, err
	}
	if strings.TrimSpace(sess.AccessToken) == "" {
		return Session{}, fmt.Errorf("no access token found in session")
	}
	return sess, nil
}

func (s SessionStore) Clear() error {
	path, err := s.path()
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
