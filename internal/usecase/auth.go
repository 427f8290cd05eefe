package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/biexec/core/internal/crypto"
	"github.com/biexec/core/internal/domain"
	"github.com/biexec/core/internal/repository"
	"github.com/golang-jwt/jwt/v5"
)

type AuthUsecase struct {
	orgs   repository.OrganizationRepository
	users  repository.UserRepository
	jwtKey []byte
	jwtTTL time.Duration
}

func NewAuthUsecase(orgs repository.OrganizationRepository, users repository.UserRepository, jwtKey []byte, jwtTTL time.Duration) *AuthUsecase {
	return &AuthUsecase{orgs: orgs, users: users, jwtKey: jwtKey, jwtTTL: jwtTTL}
}

type RegisterInput struct {
	OrgName     string
	Email       string
	Password    string
	DisplayName string
}

// Register creates a new organization with a single admin user. Joining
// an existing organization happens through a separate invite flow, not
// modeled here.
func (u *AuthUsecase) Register(ctx context.Context, input RegisterInput) (*domain.User, string, error) {
	org, err := u.orgs.Create(ctx, input.OrgName)
	if err != nil {
		return nil, "", fmt.Errorf("create organization: %w", err)
	}

	hash, err := crypto.HashPassword(input.Password)
	if err != nil {
		return nil, "", fmt.Errorf("hash password: %w", err)
	}

	user := &domain.User{
		OrgID:        org.ID,
		Email:        input.Email,
		PasswordHash: hash,
		DisplayName:  input.DisplayName,
		Role:         domain.RoleAdmin,
	}
	created, err := u.users.Create(ctx, user)
	if err != nil {
		return nil, "", fmt.Errorf("create user: %w", err)
	}

	token, err := u.signToken(created)
	if err != nil {
		return nil, "", err
	}
	return created, token, nil
}

// Login verifies the password and issues a fresh JWT. The error returned
// for both "no such user" and "wrong password" is the same
// domain.ErrInvalidCredentials so the response never discloses which
// half was wrong.
func (u *AuthUsecase) Login(ctx context.Context, email, password string) (*domain.User, string, error) {
	user, err := u.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, "", domain.ErrInvalidCredentials
	}

	if err := crypto.VerifyPassword(user.PasswordHash, password); err != nil {
		return nil, "", domain.ErrInvalidCredentials
	}

	token, err := u.signToken(user)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

func (u *AuthUsecase) signToken(user *domain.User) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":    user.ID,
		"org_id": user.OrgID,
		"role":   string(user.Role),
		"iat":    now.Unix(),
		"exp":    now.Add(u.jwtTTL).Unix(),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString(u.jwtKey)
	if err != nil {
		return "", fmt.Errorf("sign jwt: %w", err)
	}
	return signed, nil
}
