package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/geocoder89/civicfix/internal/apperr"
	"github.com/geocoder89/civicfix/internal/domain/user"
	"github.com/geocoder89/civicfix/internal/identity"
)

// Session is what register and login hand back to the client.
type Session struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expiresAt"`
	User      user.Summary `json:"user"`
}

// Accounts is the credential store: registration, login and profile lookup.
type Accounts struct {
	users  UserStore
	hasher PasswordHasher
	tokens TokenIssuer
	log    *slog.Logger

	// compared against when the email is unknown so both failure paths
	// cost one bcrypt comparison
	dummyHash string
}

func NewAccounts(users UserStore, hasher PasswordHasher, tokens TokenIssuer, log *slog.Logger) *Accounts {
	if log == nil {
		log = slog.Default()
	}

	dummy, err := hasher.Hash("civicfix-timing-equaliser")
	if err != nil {
		log.Warn("accounts.dummy_hash_failed", "err", err)
	}

	return &Accounts{
		users:     users,
		hasher:    hasher,
		tokens:    tokens,
		log:       log,
		dummyHash: dummy,
	}
}

func (a *Accounts) Register(ctx context.Context, req user.RegisterRequest) (Session, error) {
	req.Email = user.NormalizeEmail(req.Email)

	if len(req.Password) > user.MaxPasswordBytes {
		return Session{}, apperr.Validation("Password must be at most 72 bytes")
	}

	if _, err := a.users.GetByEmail(ctx, req.Email); err == nil {
		return Session{}, apperr.Validation("User already exists")
	} else if !errors.Is(err, user.ErrNotFound) {
		return Session{}, apperr.Internal(err)
	}

	hash, err := a.hasher.Hash(req.Password)
	if err != nil {
		return Session{}, apperr.Internal(err)
	}

	u := user.New(req, hash, user.RoleUser)

	if err := a.users.Create(ctx, u); err != nil {
		// lost a race with a concurrent registration
		if errors.Is(err, user.ErrEmailTaken) {
			return Session{}, apperr.Validation("User already exists")
		}
		return Session{}, apperr.Internal(err)
	}

	a.log.InfoContext(ctx, "accounts.registered", "user_id", u.ID)

	return a.session(u)
}

func (a *Accounts) Login(ctx context.Context, req user.LoginRequest) (Session, error) {
	u, err := a.users.GetByEmail(ctx, user.NormalizeEmail(req.Email))
	if err != nil {
		if !errors.Is(err, user.ErrNotFound) {
			return Session{}, apperr.Internal(err)
		}
		_ = a.hasher.Compare(a.dummyHash, req.Password)
		return Session{}, apperr.Unauthenticated("Invalid credentials")
	}

	if err := a.hasher.Compare(u.PasswordHash, req.Password); err != nil {
		return Session{}, apperr.Unauthenticated("Invalid credentials")
	}

	return a.session(u)
}

// Profile returns the caller's own summary.
func (a *Accounts) Profile(ctx context.Context, id identity.Identity) (user.Summary, error) {
	u, err := a.users.GetByID(ctx, id.UserID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			// token outlived its account
			return user.Summary{}, apperr.Unauthenticated("Account no longer exists")
		}
		return user.Summary{}, apperr.Internal(err)
	}
	return u.Summary(), nil
}

func (a *Accounts) session(u user.User) (Session, error) {
	token, exp, err := a.tokens.Issue(u.ID, u.Email, string(u.Role))
	if err != nil {
		return Session{}, apperr.Internal(err)
	}
	return Session{Token: token, ExpiresAt: exp, User: u.Summary()}, nil
}
