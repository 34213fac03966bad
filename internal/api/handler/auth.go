package handler

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"brandlink/backend/internal/config"
	"brandlink/backend/internal/models"

	"github.com/gin-gonic/gin"
	jwt "github.com/golang-jwt/jwt/v5"
)

const identityKey = "identity"

var errInvalidToken = errors.New("invalid token")

type sessionRequest struct {
	Email       string `json:"email" binding:"required,email"`
	DisplayName string `json:"display_name" binding:"required"`
	Role        string `json:"role"`
}

// CreateSession finds or creates the marketplace account for the given email
// and returns a signed session token the chat endpoints accept.
func (h *Handler) CreateSession(c *gin.Context) {
	var req sessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Role == "" {
		req.Role = "franchisee"
	}

	user, err := h.DB.FindOrCreateUser(req.Email, req.DisplayName, req.Role)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create account"})
		return
	}

	token, err := h.generateToken(user)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token, "user": user})
}

// generateToken signs a session token carrying the chat identity.
func (h *Handler) generateToken(user *models.User) (string, error) {
	claims := jwt.MapClaims{
		"sub":   user.ID,
		"name":  user.DisplayName,
		"role":  user.Role,
		"photo": user.PhotoRef,
		"exp":   time.Now().Add(config.SessionTokenTTL).Unix(),
		"iss":   "brandlink-chat",
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(h.Cfg.JWTSecret))
}

// parseToken validates a session token and recovers the identity it carries.
func (h *Handler) parseToken(tokenString string) (models.Identity, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errInvalidToken
		}
		return []byte(h.Cfg.JWTSecret), nil
	})
	if err != nil || !token.Valid {
		return models.Identity{}, errInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return models.Identity{}, errInvalidToken
	}
	id, _ := claims["sub"].(string)
	if id == "" {
		return models.Identity{}, errInvalidToken
	}
	name, _ := claims["name"].(string)
	role, _ := claims["role"].(string)
	photo, _ := claims["photo"].(string)
	return models.Identity{ID: id, DisplayName: name, Role: role, PhotoRef: photo}, nil
}

// identityFromRequest accepts the token as a bearer header or, for WebSocket
// upgrades where browsers cannot set headers, a query parameter.
func (h *Handler) identityFromRequest(c *gin.Context) (models.Identity, error) {
	auth := c.GetHeader("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return h.parseToken(strings.TrimPrefix(auth, "Bearer "))
	}
	if token := c.Query("token"); token != "" {
		return h.parseToken(token)
	}
	return models.Identity{}, errInvalidToken
}

// RequireAuth guards the REST endpoints.
func (h *Handler) RequireAuth(c *gin.Context) {
	identity, err := h.identityFromRequest(c)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token or expired"})
		return
	}
	c.Set(identityKey, identity)
	c.Next()
}

func identityFrom(c *gin.Context) models.Identity {
	v, _ := c.Get(identityKey)
	identity, _ := v.(models.Identity)
	return identity
}
