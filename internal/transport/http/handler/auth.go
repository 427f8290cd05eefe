package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/biexec/core/internal/domain"
	"github.com/biexec/core/internal/usecase"
	"github.com/gin-gonic/gin"
)

// authUsecaser is the subset of AuthUsecase the handler needs, defined
// at point of use so tests can inject a fake.
type authUsecaser interface {
	Register(ctx context.Context, input usecase.RegisterInput) (*domain.User, string, error)
	Login(ctx context.Context, email, password string) (*domain.User, string, error)
}

type AuthHandler struct {
	authUsecase authUsecaser
	logger      *slog.Logger
}

func NewAuthHandler(authUsecase authUsecaser, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{authUsecase: authUsecase, logger: logger.With("component", "auth_handler")}
}

type registerRequest struct {
	OrgName     string `json:"org_name"     binding:"required,max=256"`
	Email       string `json:"email"        binding:"required,email"`
	Password    string `json:"password"     binding:"required,min=12"`
	DisplayName string `json:"display_name" binding:"required,max=256"`
}

type authResponse struct {
	Token string      `json:"token"`
	User  userSummary `json:"user"`
}

type userSummary struct {
	ID          string `json:"id"`
	OrgID       string `json:"org_id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role"`
}

func toUserSummary(u *domain.User) userSummary {
	return userSummary{ID: u.ID, OrgID: u.OrgID, Email: u.Email, DisplayName: u.DisplayName, Role: string(u.Role)}
}

// POST /auth/register
func (h *AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, h.logger, http.StatusBadRequest, errTypeBadRequest, err.Error(), "register: bind", nil)
		return
	}

	user, token, err := h.authUsecase.Register(c.Request.Context(), usecase.RegisterInput{
		OrgName:     req.OrgName,
		Email:       req.Email,
		Password:    req.Password,
		DisplayName: req.DisplayName,
	})
	if err != nil {
		if errors.Is(err, domain.ErrUserEmailTaken) {
			respondError(c, h.logger, http.StatusConflict, errTypeConflict, domain.ErrUserEmailTaken.Error(), "register", nil)
			return
		}
		respondInternal(c, h.logger, "register", err)
		return
	}

	c.JSON(http.StatusCreated, authResponse{Token: token, User: toUserSummary(user)})
}

type loginRequest struct {
	Email    string `json:"email"    binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// POST /auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, h.logger, http.StatusBadRequest, errTypeBadRequest, err.Error(), "login: bind", nil)
		return
	}

	user, token, err := h.authUsecase.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidCredentials) {
			respondError(c, h.logger, http.StatusUnauthorized, errTypeUnauthorized, errInvalidCredentials, "login", nil)
			return
		}
		respondInternal(c, h.logger, "login", err)
		return
	}

	c.JSON(http.StatusOK, authResponse{Token: token, User: toUserSummary(user)})
}
