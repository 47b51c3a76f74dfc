// Package auth supplies the current user and role checks the calling
// layer enforces before payment linking and administrative deletes. The
// engine itself assumes callers are pre-authorized.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"tally/internal/books"
	"tally/internal/core"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUsernameTaken      = errors.New("username already taken")
	ErrForbidden          = errors.New("insufficient role")
	ErrUnknownRole        = errors.New("unknown role")
)

// roleRank orders roles by privilege for RequireRole.
var roleRank = map[string]int{
	core.RoleViewer: 1,
	core.RoleEditor: 2,
	core.RoleAdmin:  3,
}

type Service struct {
	store books.Store
}

func NewService(store books.Store) *Service {
	return &Service{store: store}
}

// Register creates a user storing only the bcrypt hash of the password.
func (s *Service) Register(ctx context.Context, username, email, password, role string) (core.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return core.User{}, fmt.Errorf("username: %w", core.ErrEmptyName)
	}
	if _, ok := roleRank[role]; !ok {
		return core.User{}, fmt.Errorf("%q: %w", role, ErrUnknownRole)
	}

	if _, ok, err := s.findByUsername(ctx, username); err != nil {
		return core.User{}, err
	} else if ok {
		return core.User{}, fmt.Errorf("%s: %w", username, ErrUsernameTaken)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return core.User{}, fmt.Errorf("hash password: %w", err)
	}

	user := core.User{
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
		Role:         role,
	}
	id, err := s.store.Create(ctx, books.Users, user.Record())
	if err != nil {
		return core.User{}, fmt.Errorf("create user: %w", err)
	}
	user.ID = id
	return user, nil
}

// Authenticate verifies a username/password pair. The same error comes
// back for an unknown user and a wrong password.
func (s *Service) Authenticate(ctx context.Context, username, password string) (core.User, error) {
	user, ok, err := s.findByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		return core.User{}, err
	}
	if !ok {
		return core.User{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return core.User{}, ErrInvalidCredentials
	}
	return user, nil
}

func (s *Service) findByUsername(ctx context.Context, username string) (core.User, bool, error) {
	records, err := s.store.List(ctx, books.Users)
	if err != nil {
		return core.User{}, false, fmt.Errorf("list users: %w", err)
	}
	for _, r := range records {
		u := core.UserFrom(r)
		if u.Username == username {
			return u, true, nil
		}
	}
	return core.User{}, false, nil
}

// RequireRole fails with ErrForbidden unless the user's role grants at
// least the given role's privileges.
func RequireRole(u core.User, role string) error {
	need, ok := roleRank[role]
	if !ok {
		return fmt.Errorf("%q: %w", role, ErrUnknownRole)
	}
	if roleRank[u.Role] < need {
		return fmt.Errorf("%s needs %s: %w", u.Username, role, ErrForbidden)
	}
	return nil
}
