// internal/auth/auth.go
// Package auth handles user registration and credential checks for the
// admin API. Passwords are stored as bcrypt hashes and request bodies are
// validated with struct tags.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/awadmin/awadmin-api-go/internal/model"
	"github.com/awadmin/awadmin-api-go/internal/storage"
	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserExists         = errors.New("user already exists")
)

// RegisterRequest is the body of POST /api/register/.
type RegisterRequest struct {
	Username string `json:"username" validate:"required,max=150,excludesall= /"`
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,min=8,bcryptlen"`
}

// maxPasswordBytes is the longest input bcrypt hashes.
const maxPasswordBytes = 72

// CredentialsRequest is the body of POST /api/login/ and POST /api/token/.
type CredentialsRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// RefreshRequest is the body of POST /api/token/refresh/.
type RefreshRequest struct {
	Refresh string `json:"refresh" validate:"required"`
}

// FieldError is one failed struct constraint.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError lists the failed constraints of a request body.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		msgs[i] = f.Field + ": " + f.Message
	}
	return "invalid request: " + strings.Join(msgs, "; ")
}

// Service registers and authenticates users.
type Service struct {
	store    storage.Store
	validate *validator.Validate
	cost     int
}

// NewService creates a Service backed by s.
func NewService(s storage.Store) *Service {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Registration only fails for an empty tag name.
	_ = v.RegisterValidation("bcryptlen", func(fl validator.FieldLevel) bool {
		return len(fl.Field().String()) <= maxPasswordBytes
	})
	return &Service{
		store:    s,
		validate: v,
		cost:     bcrypt.DefaultCost,
	}
}

// WithCost returns a copy of the service hashing with the given bcrypt cost.
func (s *Service) WithCost(cost int) *Service {
	cp := *s
	cp.cost = cost
	return &cp
}

// Validate checks req against its struct tags.
func (s *Service) Validate(req any) error {
	err := s.validate.Struct(req)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	out := &ValidationError{}
	for _, fe := range verrs {
		out.Fields = append(out.Fields, FieldError{
			Field:   strings.ToLower(fe.Field()),
			Message: message(fe),
		})
	}
	return out
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required."
	case "email":
		return "Enter a valid email address."
	case "min":
		return fmt.Sprintf("Ensure this field has at least %s characters.", fe.Param())
	case "max":
		return fmt.Sprintf("Ensure this field has no more than %s characters.", fe.Param())
	case "excludesall":
		return "This field may not contain spaces or slashes."
	case "bcryptlen":
		return fmt.Sprintf("Ensure this field has no more than %d bytes.", maxPasswordBytes)
	}
	return fmt.Sprintf("failed %s constraint", fe.Tag())
}

// Register validates req and stores a new non-staff user.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*model.User, error) {
	if err := s.Validate(req); err != nil {
		return nil, err
	}
	return s.create(ctx, req.Username, req.Email, req.Password, false)
}

// EnsureSuperuser creates a staff user unless one with the same username
// already exists.
func (s *Service) EnsureSuperuser(ctx context.Context, username, password string) (*model.User, error) {
	if existing, err := s.store.GetUser(ctx, username); err == nil {
		return existing, nil
	} else if !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}
	return s.create(ctx, username, "", password, true)
}

func (s *Service) create(ctx context.Context, username, email, password string, staff bool) (*model.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return nil, &ValidationError{Fields: []FieldError{{
			Field:   "password",
			Message: fmt.Sprintf("Ensure this field has no more than %d bytes.", maxPasswordBytes),
		}}}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	user, err := s.store.CreateUser(ctx, model.User{
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
		IsStaff:      staff,
	})
	if err != nil {
		if errors.Is(err, storage.ErrConflict) {
			return nil, ErrUserExists
		}
		return nil, err
	}
	return user, nil
}

// Authenticate returns the user matching the credentials.
func (s *Service) Authenticate(ctx context.Context, req CredentialsRequest) (*model.User, error) {
	if err := s.Validate(req); err != nil {
		return nil, err
	}
	user, err := s.store.GetUser(ctx, req.Username)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// Lookup returns the user with the given username.
func (s *Service) Lookup(ctx context.Context, username string) (*model.User, error) {
	return s.store.GetUser(ctx, username)
}
