package session

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
)

// well-known keys of a browser namespace
const (
	KeyToken = "token"
	KeyUser  = "user"
)

var (
	ErrEmptyToken   = errors.New("session token is empty")
	ErrEmptyBrowser = errors.New("browser id is empty")
)

// KV is a durable key/value backend partitioned by namespace (one per browser).
// Set and Delete apply all of their keys atomically: a concurrent Get never observes a partial write.
type KV interface {
	// Get returns the values present among keys; missing keys are absent from the map.
	Get(ctx context.Context, namespace string, keys ...string) (map[string]string, error)
	Set(ctx context.Context, namespace string, entries map[string]string) error
	// Delete removes keys, or the whole namespace when none is given.
	Delete(ctx context.Context, namespace string, keys ...string) error
}

// Store reads and writes the session of one browser.
type Store struct {
	kv        KV
	namespace string
}

// NewStore returns the Store of the browser identified by browserID.
func NewStore(kv KV, browserID string) (*Store, error) {
	if browserID == "" {
		return nil, ErrEmptyBrowser
	}
	return &Store{kv: kv, namespace: browserID}, nil
}

func (s *Store) BrowserID() string { return s.namespace }

// Save persists token and user together.
func (s *Store) Save(ctx context.Context, token string, user UserRecord) error {
	if token == "" {
		return ErrEmptyToken
	}
	if _, err := NewUserRecord(user); err != nil {
		return err
	}
	err := s.kv.Set(ctx, s.namespace, map[string]string{
		KeyToken: token,
		KeyUser:  string(user),
	})
	return errors.Wrap(err, "saving session")
}

// Load returns the persisted session, or an empty one when nothing is stored.
// A corrupted session (user not valid JSON, or only one of the two entries present)
// is cleared and reported as empty. Only backend failures are returned as errors.
func (s *Store) Load(ctx context.Context) (Session, error) {
	vals, err := s.kv.Get(ctx, s.namespace, KeyToken, KeyUser)
	if err != nil {
		return Session{}, errors.Wrap(err, "loading session")
	}

	token, hasToken := vals[KeyToken]
	user, hasUser := vals[KeyUser]
	if !hasToken && !hasUser {
		return Session{}, nil
	}
	if token == "" || !hasUser || !json.Valid([]byte(user)) {
		if err = s.Clear(ctx); err != nil {
			return Session{}, err
		}
		return Session{}, nil
	}
	return Session{Token: token, User: UserRecord(user)}, nil
}

// Clear removes both entries. Clearing an empty session is a no-op.
func (s *Store) Clear(ctx context.Context) error {
	err := s.kv.Delete(ctx, s.namespace, KeyToken, KeyUser)
	return errors.Wrap(err, "clearing session")
}

// Token returns the stored bearer token, or "" when there is none.
func (s *Store) Token(ctx context.Context) (string, error) {
	sess, err := s.Load(ctx)
	if err != nil {
		return "", err
	}
	return sess.Token, nil
}
