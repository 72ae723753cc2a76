package service

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/skillbridge/skillbridge-oauth/internal/domain"
)

// UserDirectory resolves and authenticates end users. The interface is
// the seam for plugging in a real identity backend; the in-memory
// implementation below is the interchangeable default.
type UserDirectory interface {
	FindByUsername(ctx context.Context, username string) (domain.User, error)
	// VerifyCredentials returns the user when the password matches and
	// domain.ErrBadCredentials otherwise.
	VerifyCredentials(ctx context.Context, username, password string) (domain.User, error)
}

// InMemoryUserDirectory holds a fixed user set with bcrypt password hashes.
type InMemoryUserDirectory struct {
	users map[string]domain.User
}

var _ UserDirectory = (*InMemoryUserDirectory)(nil)

func NewInMemoryUserDirectory(users ...domain.User) *InMemoryUserDirectory {
	byName := make(map[string]domain.User, len(users))
	for _, user := range users {
		byName[user.UserName] = user
	}
	return &InMemoryUserDirectory{users: byName}
}

func (d *InMemoryUserDirectory) FindByUsername(ctx context.Context, username string) (domain.User, error) {
	user, ok := d.users[username]
	if !ok {
		return domain.User{}, fmt.Errorf("user %s: %w", username, domain.ErrNotFound)
	}
	return user, nil
}

func (d *InMemoryUserDirectory) VerifyCredentials(ctx context.Context, username, password string) (domain.User, error) {
	user, err := d.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.User{}, domain.ErrBadCredentials
		}
		return domain.User{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return domain.User{}, domain.ErrBadCredentials
	}
	return user, nil
}
