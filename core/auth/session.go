package auth

import (
	"context"
	"encoding/json"

	"github.com/dgrijalva/jwt-go"
	"github.com/pkg/errors"

	"github.com/trezcool/elimu/core"
)

// Storage keys of the credentials.
const (
	TokenKey = "token"
	UserKey  = "user"
)

var ErrInvalidToken = errors.New("invalid token")

// Session holds the credentials of the logged in user.
type Session struct {
	Token string
	User  core.Profile
}

// Claims is the payload of the tokens issued by the backend.
type Claims struct {
	jwt.StandardClaims
	ID    string `json:"id"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

func (c Claims) Profile() core.Profile {
	id := c.ID
	if id == "" {
		id = c.Subject
	}
	return core.Profile{ID: id, Name: c.Name, Email: c.Email}
}

// ProfileFromToken reads the user profile from the claims of token.
// The signature is not checked: the backend remains the authority on its tokens.
func ProfileFromToken(token string) (core.Profile, error) {
	var claims Claims
	if _, _, err := new(jwt.Parser).ParseUnverified(token, &claims); err != nil {
		return core.Profile{}, errors.Wrap(ErrInvalidToken, err.Error())
	}
	usr := claims.Profile()
	if usr.ID == "" {
		return core.Profile{}, errors.Wrap(ErrInvalidToken, "missing user id")
	}
	return usr, nil
}

// Store keeps the session in a key/value store.
type Store struct {
	kv     core.KVStore
	logger core.Logger
}

func NewStore(kv core.KVStore, logger core.Logger) *Store {
	return &Store{kv: kv, logger: logger}
}

// Load returns the stored session, or core.ErrNotAuthenticated when either credential is missing.
// A corrupt profile is removed.
func (s *Store) Load(ctx context.Context) (Session, error) {
	token, err := s.get(ctx, TokenKey)
	if err != nil {
		return Session{}, err
	}
	raw, err := s.get(ctx, UserKey)
	if err != nil {
		return Session{}, err
	}

	var usr core.Profile
	if err := json.Unmarshal([]byte(raw), &usr); err != nil || usr.ID == "" {
		s.logger.Warn("discarding corrupt user profile", err)
		if err := s.kv.Remove(ctx, UserKey); err != nil {
			s.logger.Error("removing corrupt user profile", err)
		}
		return Session{}, core.ErrNotAuthenticated
	}
	return Session{Token: token, User: usr}, nil
}

func (s *Store) get(ctx context.Context, key string) (string, error) {
	v, err := s.kv.Get(ctx, key)
	switch {
	case errors.Cause(err) == core.ErrKeyNotFound:
		return "", core.ErrNotAuthenticated
	case err != nil:
		return "", errors.Wrapf(err, "reading %s", key)
	case v == "":
		return "", core.ErrNotAuthenticated
	}
	return v, nil
}

// Login stores token and the user profile. The profile is read from the token when usr is omitted.
func (s *Store) Login(ctx context.Context, token string, usr ...core.Profile) (Session, error) {
	if token == "" {
		return Session{}, ErrInvalidToken
	}
	var profile core.Profile
	if len(usr) > 0 && usr[0].ID != "" {
		profile = usr[0]
	} else {
		var err error
		if profile, err = ProfileFromToken(token); err != nil {
			return Session{}, err
		}
	}

	data, err := json.Marshal(profile)
	if err != nil {
		return Session{}, errors.Wrap(err, "encoding user profile")
	}
	if err := s.kv.Set(ctx, TokenKey, token); err != nil {
		return Session{}, errors.Wrap(err, "storing token")
	}
	if err := s.kv.Set(ctx, UserKey, string(data)); err != nil {
		return Session{}, errors.Wrap(err, "storing user profile")
	}
	return Session{Token: token, User: profile}, nil
}

func (s *Store) Logout(ctx context.Context) error {
	if err := s.kv.Remove(ctx, TokenKey); err != nil {
		return errors.Wrap(err, "removing token")
	}
	return errors.Wrap(s.kv.Remove(ctx, UserKey), "removing user profile")
}
