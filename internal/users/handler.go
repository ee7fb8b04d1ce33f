package users

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"intellidoc-backend/internal/shared/server/middleware"
	"intellidoc-backend/internal/shared/server/respond"
)

type Handler struct {
	Svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type forgotRequest struct {
	Email string `json:"email"`
}

type resetRequest struct {
	NewPassword string `json:"newPassword"`
}

// RegisterPublicRoutes attaches the unauthenticated /auth routes.
func (h *Handler) RegisterPublicRoutes(rg *gin.RouterGroup) {
	rg.POST("/auth/register", h.register)
	rg.POST("/auth/login", h.login)
	rg.POST("/auth/forgot-password", h.forgotPassword)
	rg.POST("/auth/reset-password", h.resetPassword)
}

// RegisterRoutes attaches routes that require an authenticated user.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/me", h.me)
}

func (h *Handler) register(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "Email and Password required", nil)
		return
	}
	user, err := h.Svc.Register(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		writeError(c, err, "Error registering user")
		return
	}
	respond.Created(c, gin.H{"message": "User registered successfully", "userId": user.ID})
}

func (h *Handler) login(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "Email and password not found", nil)
		return
	}
	token, _, err := h.Svc.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		writeError(c, err, "Error logging in")
		return
	}
	respond.OK(c, gin.H{"token": token})
}

func (h *Handler) forgotPassword(c *gin.Context) {
	var req forgotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "Email is required", nil)
		return
	}
	if err := h.Svc.ForgotPassword(c.Request.Context(), req.Email); err != nil {
		writeError(c, err, "Internal server error")
		return
	}
	respond.OK(c, gin.H{"message": ForgotPasswordMessage})
}

func (h *Handler) resetPassword(c *gin.Context) {
	var req resetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "Token and new password required", nil)
		return
	}
	if err := h.Svc.ResetPassword(c.Request.Context(), c.Query("token"), req.NewPassword); err != nil {
		writeError(c, err, "Error resetting password")
		return
	}
	respond.OK(c, gin.H{"message": "Password reset successful"})
}

func (h *Handler) me(c *gin.Context) {
	user, err := h.Svc.GetByID(c.Request.Context(), middleware.UserIDFromContext(c))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			respond.Error(c, http.StatusNotFound, "not_found", "user not found", nil)
			return
		}
		writeError(c, err, "failed to load user")
		return
	}
	respond.OK(c, gin.H{
		"id":        user.ID,
		"email":     user.Email,
		"name":      user.Name,
		"picture":   user.Picture,
		"provider":  user.Provider,
		"createdAt": user.CreatedAt,
	})
}

func writeError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, ErrInvalidInput):
		respond.Error(c, http.StatusBadRequest, "validation_error", strings.TrimPrefix(err.Error(), ErrInvalidInput.Error()+": "), nil)
	case errors.Is(err, ErrEmailTaken):
		respond.Error(c, http.StatusConflict, "conflict", "User already exists", nil)
	case errors.Is(err, ErrInvalidCredentials):
		respond.Error(c, http.StatusUnauthorized, "invalid_credentials", "Invalid Credentials", nil)
	case errors.Is(err, ErrInvalidResetToken):
		respond.Error(c, http.StatusBadRequest, "invalid_token", "Invalid or expired token", nil)
	default:
		respond.Error(c, http.StatusInternalServerError, "internal_error", fallback, nil)
	}
}
