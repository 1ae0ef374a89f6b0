package auth

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrDuplicateEmail     = errors.New("email is already taken")
	ErrUserNotFound       = errors.New("user not found")
)

var emailRegex = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// dummyDigest is compared against when login hits an unknown email, so
// the unknown-email and wrong-password paths cost the same.
const dummyDigest = "$2a$10$N9qo8uLOickgx2ZMRZoMye1VdLZHUqWrappmO5rN1QhSHoslGuyIO"

// ValidationError collects per-field failures; handlers render it as a
// 422 with the field map.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// UserStore is the credential store the gate orchestrates. The Postgres
// Repository implements it; tests substitute fakes.
type UserStore interface {
	Create(ctx context.Context, user User) error
	GetByEmail(ctx context.Context, email string) (User, error)
	GetByID(ctx context.Context, id string) (User, error)
}

// Service is the authentication gate: registration, login, logout and
// token-to-user resolution.
type Service struct {
	users  UserStore
	tokens *TokenService
	hasher *Hasher
}

func NewService(users UserStore, tokens *TokenService, hasher *Hasher) *Service {
	return &Service{users: users, tokens: tokens, hasher: hasher}
}

func (s *Service) Register(ctx context.Context, input RegisterInput) (User, error) {
	input.Name = strings.TrimSpace(input.Name)
	input.Email = strings.ToLower(strings.TrimSpace(input.Email))
	input.Role = strings.TrimSpace(input.Role)

	fields := map[string]string{}
	if n := len(input.Name); n < 10 || n > 100 {
		fields["name"] = "name must be between 10 and 100 characters"
	}
	role, err := ParseRole(input.Role)
	if err != nil {
		fields["role"] = "role must be admin or user"
	}
	if n := len(input.Email); n < 10 || n > 50 || !emailRegex.MatchString(input.Email) {
		fields["email"] = "email must be a valid address between 10 and 50 characters"
	}
	if n := len(input.Password); n < 10 || n > 200 {
		fields["password"] = "password must be between 10 and 200 characters"
	} else if input.Password != input.PasswordConfirmation {
		fields["password"] = "password confirmation does not match"
	}
	if len(fields) > 0 {
		return User{}, &ValidationError{Fields: fields}
	}

	if _, err := s.users.GetByEmail(ctx, input.Email); err == nil {
		return User{}, &ValidationError{Fields: map[string]string{"email": ErrDuplicateEmail.Error()}}
	} else if !errors.Is(err, ErrUserNotFound) {
		return User{}, fmt.Errorf("check existing email: %w", err)
	}

	digest, err := s.hasher.Hash(input.Password)
	if err != nil {
		return User{}, err
	}

	id, err := uuid.NewV7()
	if err != nil {
		return User{}, fmt.Errorf("generate user id: %w", err)
	}

	now := time.Now().UTC()
	user := User{
		ID:           id.String(),
		Name:         input.Name,
		Email:        input.Email,
		Role:         role,
		PasswordHash: digest,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, ErrDuplicateEmail) {
			// Lost the race with a concurrent registration.
			return User{}, &ValidationError{Fields: map[string]string{"email": ErrDuplicateEmail.Error()}}
		}
		return User{}, err
	}

	return user, nil
}

// Login deliberately reports unknown email and wrong password the same
// way so responses cannot enumerate accounts. An out-of-policy payload
// is rejected before any credential check.
func (s *Service) Login(ctx context.Context, email, password string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	fields := map[string]string{}
	if n := len(email); n < 10 || n > 50 || !emailRegex.MatchString(email) {
		fields["email"] = "email must be a valid address between 10 and 50 characters"
	}
	if n := len(password); n < 10 || n > 200 {
		fields["password"] = "password must be between 10 and 200 characters"
	}
	if len(fields) > 0 {
		return "", &ValidationError{Fields: fields}
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			s.hasher.Verify(password, dummyDigest)
			return "", ErrInvalidCredentials
		}
		return "", err
	}

	if !s.hasher.Verify(password, user.PasswordHash) {
		return "", ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return "", fmt.Errorf("issue token: %w", err)
	}

	return token, nil
}

func (s *Service) Logout(ctx context.Context, token string) error {
	return s.tokens.Invalidate(ctx, token)
}

func (s *Service) CurrentUser(ctx context.Context, token string) (User, error) {
	userID, err := s.tokens.Verify(ctx, token)
	if err != nil {
		if errors.Is(err, ErrInvalidToken) {
			return User{}, ErrInvalidToken
		}
		return User{}, err
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return User{}, ErrInvalidToken
		}
		return User{}, err
	}

	return user, nil
}
