package auth

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/awadmin/awadmin-api-go/internal/storage"
	"github.com/stretchr/testify/assert"
	"golang.org/x/crypto/bcrypt"
)

func newService() *Service {
	return NewService(storage.NewMemory()).WithCost(bcrypt.MinCost)
}

func TestRegisterAndAuthenticate(t *testing.T) {
	is := assert.New(t)
	ctx := context.Background()
	s := newService()

	user, err := s.Register(ctx, RegisterRequest{Username: "alice", Email: "alice@example.com", Password: "s3cret-pass"})
	is.Nil(err)
	is.Equal("alice", user.Username)
	is.False(user.IsStaff)
	is.NotEqual("s3cret-pass", user.PasswordHash)

	got, err := s.Authenticate(ctx, CredentialsRequest{Username: "alice", Password: "s3cret-pass"})
	is.Nil(err)
	is.Equal(user.ID, got.ID)

	_, err = s.Authenticate(ctx, CredentialsRequest{Username: "alice", Password: "wrong-pass"})
	is.ErrorIs(err, ErrInvalidCredentials)

	_, err = s.Authenticate(ctx, CredentialsRequest{Username: "nobody", Password: "whatever"})
	is.ErrorIs(err, ErrInvalidCredentials)

	_, err = s.Register(ctx, RegisterRequest{Username: "alice", Email: "other@example.com", Password: "another-pass"})
	is.ErrorIs(err, ErrUserExists)
}

func TestRegisterValidation(t *testing.T) {
	is := assert.New(t)
	s := newService()

	_, err := s.Register(context.Background(), RegisterRequest{Username: "bob", Email: "not-an-email", Password: "short"})
	var verr *ValidationError
	is.True(errors.As(err, &verr))

	fields := map[string]string{}
	for _, f := range verr.Fields {
		fields[f.Field] = f.Message
	}
	is.Contains(fields, "email")
	is.Contains(fields, "password")
	is.NotContains(fields, "username")
}

func TestRegisterPasswordByteLimit(t *testing.T) {
	is := assert.New(t)
	ctx := context.Background()
	s := newService()

	tests := []struct {
		name     string
		password string
	}{
		{"ascii", strings.Repeat("a", 100)},
		{"multibyte under the rune limit", strings.Repeat("é", 40)},
	}
	for _, tt := range tests {
		_, err := s.Register(ctx, RegisterRequest{Username: "long", Email: "long@example.com", Password: tt.password})
		var verr *ValidationError
		if is.True(errors.As(err, &verr), tt.name) {
			is.Equal("password", verr.Fields[0].Field, tt.name)
		}
	}

	_, err := s.Register(ctx, RegisterRequest{Username: "edge", Email: "edge@example.com", Password: strings.Repeat("a", 72)})
	is.Nil(err)

	_, err = s.EnsureSuperuser(ctx, "root", strings.Repeat("a", 100))
	var verr *ValidationError
	is.True(errors.As(err, &verr))
}

func TestAuthenticateRequiresFields(t *testing.T) {
	is := assert.New(t)
	s := newService()

	_, err := s.Authenticate(context.Background(), CredentialsRequest{Username: "alice"})
	var verr *ValidationError
	is.True(errors.As(err, &verr))
	is.Equal("password", verr.Fields[0].Field)
}

func TestEnsureSuperuser(t *testing.T) {
	is := assert.New(t)
	ctx := context.Background()
	s := newService()

	admin, err := s.EnsureSuperuser(ctx, "admin", "admin-pass")
	is.Nil(err)
	is.True(admin.IsStaff)

	again, err := s.EnsureSuperuser(ctx, "admin", "ignored")
	is.Nil(err)
	is.Equal(admin.ID, again.ID)

	_, err = s.Authenticate(ctx, CredentialsRequest{Username: "admin", Password: "admin-pass"})
	is.Nil(err)
}
