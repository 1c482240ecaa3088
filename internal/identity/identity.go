// Package identity abstracts the signed-in user and the sign-in flow.
package identity

import (
	"context"
	"errors"
)

// ErrNotSignedIn is returned when an operation requires a user and none
// is signed in.
var ErrNotSignedIn = errors.New("not signed in")

// User is the signed-in identity. The zero ID means "no user".
type User struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Email       string `json:"email"`
}

// Provider exposes the current user and the sign-in/sign-out flow.
type Provider interface {
	// CurrentUser returns the signed-in user, or ErrNotSignedIn.
	CurrentUser(ctx context.Context) (User, error)
	// SignIn runs the provider's sign-in flow and returns the resulting
	// user. A cancelled flow returns ctx.Err.
	SignIn(ctx context.Context) (User, error)
	SignOut(ctx context.Context) error
}

// Static is a fixed-user Provider for tests and DEV_MODE.
type Static struct {
	User User
}

// CurrentUser implements Provider.
func (s *Static) CurrentUser(ctx context.Context) (User, error) {
	if s.User.ID == "" {
		return User{}, ErrNotSignedIn
	}
	return s.User, nil
}

// SignIn implements Provider.
func (s *Static) SignIn(ctx context.Context) (User, error) {
	if err := ctx.Err(); err != nil {
		return User{}, err
	}
	if s.User.ID == "" {
		return User{}, ErrNotSignedIn
	}
	return s.User, nil
}

// SignOut implements Provider.
func (s *Static) SignOut(ctx context.Context) error {
	s.User = User{}
	return nil
}
