// Package server exposes the directory service over HTTP: the provider
// capabilities (credentials, handshake registration, reset messages) and
// the profile store consumed by remote Screenhall clients.
package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/screenhall/screenhall/internal/profile"
	"github.com/screenhall/screenhall/internal/provider"
	"github.com/screenhall/screenhall/internal/provider/directory"
	"go.uber.org/zap"
)

// directorySvc is the interface expected by Handler, satisfied by
// *directory.Directory.
type directorySvc interface {
	CreateCredentials(ctx context.Context, email, password string) (*provider.Identity, error)
	VerifyCredentials(ctx context.Context, email, password string) (*provider.Identity, error)
	UpdateDisplayName(ctx context.Context, id, name string) error
	RegisterHandshake(ctx context.Context, ext *directory.ExternalIdentity) (*provider.Identity, error)
	SendResetMessage(ctx context.Context, email string) error
	CompleteReset(ctx context.Context, token, newPassword string) error
}

// Handler serves the auth and profile routes.
type Handler struct {
	directory directorySvc
	profiles  profile.Store
	logger    *zap.Logger
}

// NewHandler creates a Handler.
func NewHandler(dir directorySvc, profiles profile.Store, logger *zap.Logger) *Handler {
	return &Handler{directory: dir, profiles: profiles, logger: logger}
}

// Register mounts all routes on the provided router group.
func (h *Handler) Register(rg *gin.RouterGroup) {
	auth := rg.Group("/auth")
	{
		auth.POST("/signup", h.Signup)
		auth.POST("/login", h.Login)
		auth.POST("/display-name", h.DisplayName)
		auth.POST("/handshake", h.Handshake)
		auth.POST("/reset", h.Reset)
		auth.POST("/reset/complete", h.ResetComplete)
	}
	rg.GET("/profiles/:id", h.ReadProfile)
	rg.PUT("/profiles/:id", h.WriteProfile)
}

// ─── Request types ───────────────────────────────────────────────────────────

type credentialsRequest struct {
	Email    string `json:"email"    binding:"required"`
	Password string `json:"password" binding:"required"`
}

type displayNameRequest struct {
	ID          string `json:"id" binding:"required"`
	DisplayName string `json:"display_name"`
}

type resetRequest struct {
	Email string `json:"email" binding:"required"`
}

type resetCompleteRequest struct {
	Token    string `json:"token"    binding:"required"`
	Password string `json:"password" binding:"required"`
}

// ─── Handlers ────────────────────────────────────────────────────────────────

// Signup handles POST /auth/signup — registers a new email/password account.
func (h *Handler) Signup(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ident, err := h.directory.CreateCredentials(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.writeProviderError(c, "signup", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"identity": ident})
}

// Login handles POST /auth/login — verifies email/password credentials.
func (h *Handler) Login(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ident, err := h.directory.VerifyCredentials(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.writeProviderError(c, "login", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"identity": ident})
}

// DisplayName handles POST /auth/display-name.
func (h *Handler) DisplayName(c *gin.Context) {
	var req displayNameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.directory.UpdateDisplayName(c.Request.Context(), req.ID, req.DisplayName); err != nil {
		h.writeProviderError(c, "display-name", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Handshake handles POST /auth/handshake — registers a third-party identity
// the client's broker has already verified and returns the linked account.
func (h *Handler) Handshake(c *gin.Context) {
	var ext directory.ExternalIdentity
	if err := c.ShouldBindJSON(&ext); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if ext.Provider == "" || ext.SubjectID == "" || ext.Email == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "provider, subject_id, and email are required"})
		return
	}

	ident, err := h.directory.RegisterHandshake(c.Request.Context(), &ext)
	if err != nil {
		h.writeProviderError(c, "handshake", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"identity": ident})
}

// Reset handles POST /auth/reset — sends a password-reset message.
func (h *Handler) Reset(c *gin.Context) {
	var req resetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.directory.SendResetMessage(c.Request.Context(), req.Email); err != nil {
		h.writeProviderError(c, "reset", err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"message": "reset message sent"})
}

// ResetComplete handles POST /auth/reset/complete.
func (h *Handler) ResetComplete(c *gin.Context) {
	var req resetCompleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.directory.CompleteReset(c.Request.Context(), req.Token, req.Password); err != nil {
		if errors.Is(err, directory.ErrNotFound) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid or expired reset token"})
			return
		}
		h.writeProviderError(c, "reset-complete", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ReadProfile handles GET /profiles/:id.
func (h *Handler) ReadProfile(c *gin.Context) {
	p, err := h.profiles.Read(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, profile.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "profile not found"})
			return
		}
		h.logger.Error("read profile", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "read failed"})
		return
	}
	c.JSON(http.StatusOK, p)
}

// WriteProfile handles PUT /profiles/:id. First writer wins; a duplicate
// write for an existing id is accepted and dropped by the store.
func (h *Handler) WriteProfile(c *gin.Context) {
	var p profile.Profile
	if err := c.ShouldBindJSON(&p); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.profiles.Write(c.Request.Context(), c.Param("id"), &p); err != nil {
		h.logger.Error("write profile", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "write failed"})
		return
	}
	c.Status(http.StatusNoContent)
}

// writeProviderError maps a provider error code to an HTTP response that
// carries the code for client-side normalization.
func (h *Handler) writeProviderError(c *gin.Context, op string, err error) {
	var perr *provider.Error
	if !errors.As(err, &perr) {
		h.logger.Error(op, zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": op + " failed"})
		return
	}

	status := http.StatusInternalServerError
	switch perr.Code {
	case provider.CodeEmailInUse:
		status = http.StatusConflict
	case provider.CodeInvalidEmail, provider.CodeWeakPassword:
		status = http.StatusBadRequest
	case provider.CodeUserNotFound:
		status = http.StatusNotFound
	case provider.CodeWrongPassword:
		status = http.StatusUnauthorized
	case provider.CodeTooManyRequests:
		status = http.StatusTooManyRequests
	}
	c.JSON(status, gin.H{"code": perr.Code, "error": op + " failed"})
}
