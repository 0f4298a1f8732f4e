// Package admin is the credential-gated view over the signature registry:
// list, edit, and delete entries. It mutates the same registry store as the
// signing pipeline and therefore relies on the store's single-writer
// serialization.
package admin

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"permit-portal/signing-backend/internal/registry"
)

// Store is the registry surface the admin panel needs.
type Store interface {
	List() ([]string, error)
	Update(index int, identity string) error
	Remove(index int) error
}

// Config carries the admin credentials and token settings. The password is
// stored as a bcrypt hash; the plaintext never appears in configuration.
type Config struct {
	Username     string
	PasswordHash string
	JWTSecret    []byte
	TokenTTL     time.Duration
}

// Handler handles the admin HTTP surface.
type Handler struct {
	store  Store
	cfg    Config
	logger *zap.Logger
}

// NewHandler creates a new admin handler.
func NewHandler(store Store, cfg Config, logger *zap.Logger) *Handler {
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = time.Hour
	}
	return &Handler{store: store, cfg: cfg, logger: logger}
}

// RegisterRoutes registers admin routes.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	admin := rg.Group("/admin")
	admin.POST("/login", h.Login)

	authed := admin.Group("")
	authed.Use(h.RequireAuth)
	{
		authed.GET("/signatures", h.List)
		authed.PUT("/signatures/:index", h.Update)
		authed.DELETE("/signatures/:index", h.Delete)
	}
}

type loginPayload struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// configured reports whether the admin surface can be used at all. An
// empty password hash or JWT secret means no credential was provisioned;
// every admin request is rejected rather than verified against empty keys.
func (h *Handler) configured() bool {
	return h.cfg.Username != "" && h.cfg.PasswordHash != "" && len(h.cfg.JWTSecret) > 0
}

// Login exchanges admin credentials for a bearer token.
func (h *Handler) Login(c *gin.Context) {
	if !h.configured() {
		h.logger.Warn("Admin login attempted but no admin credentials are configured")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "admin access is not configured"})
		return
	}

	var payload loginPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userOK := subtle.ConstantTimeCompare([]byte(payload.Username), []byte(h.cfg.Username)) == 1
	passErr := bcrypt.CompareHashAndPassword([]byte(h.cfg.PasswordHash), []byte(payload.Password))
	if !userOK || passErr != nil {
		h.logger.Warn("Rejected admin login", zap.String("username", payload.Username))
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   h.cfg.Username,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(h.cfg.TokenTTL)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(h.cfg.JWTSecret)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":      token,
		"expires_at": claims.ExpiresAt.Time,
	})
}

// RequireAuth validates the bearer token on protected routes. With no
// configured JWT secret there is no key tokens could legitimately be signed
// with, so everything is rejected.
func (h *Handler) RequireAuth(c *gin.Context) {
	if !h.configured() {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "admin access is not configured"})
		return
	}

	header := c.GetHeader("Authorization")
	raw, found := strings.CutPrefix(header, "Bearer ")
	if !found || raw == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
		return
	}

	_, err := jwt.ParseWithClaims(raw, &jwt.RegisteredClaims{}, func(t *jwt.Token) (interface{}, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, jwt.ErrSignatureInvalid
		}
		return h.cfg.JWTSecret, nil
	})
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	c.Next()
}

// List returns all recorded signer identities with their positions.
func (h *Handler) List(c *gin.Context) {
	entries, err := h.store.List()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"total":      len(entries),
		"signatures": entries,
	})
}

// Update rewrites the entry at the given position.
func (h *Handler) Update(c *gin.Context) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid index"})
		return
	}

	var payload struct {
		Name string `json:"name"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if strings.TrimSpace(payload.Name) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}

	if err := h.store.Update(index, payload.Name); err != nil {
		h.renderStoreError(c, err)
		return
	}

	h.logger.Info("Admin updated registry entry", zap.Int("index", index))
	c.Status(http.StatusNoContent)
}

// Delete removes the entry at the given position.
func (h *Handler) Delete(c *gin.Context) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid index"})
		return
	}

	if err := h.store.Remove(index); err != nil {
		h.renderStoreError(c, err)
		return
	}

	h.logger.Info("Admin removed registry entry", zap.Int("index", index))
	c.Status(http.StatusNoContent)
}

func (h *Handler) renderStoreError(c *gin.Context, err error) {
	if errors.Is(err, registry.ErrOutOfRange) {
		c.JSON(http.StatusNotFound, gin.H{"error": "entry not found"})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}
