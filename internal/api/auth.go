package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"speakup/internal/utils"
)

const userIDKey = "userID"

// Claims identify the learner. The user id is read from uid, then sub.
type Claims struct {
	UID  string `json:"uid,omitempty"`
	Name string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// SignToken issues an HS256 token for uid.
func SignToken(secret []byte, uid, name string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{UID: uid, Name: name, RegisteredClaims: jwt.RegisteredClaims{
		Subject:   uid,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

func parseToken(secret []byte, tok string) (*Claims, error) {
	t, err := jwt.ParseWithClaims(tok, &Claims{}, func(*jwt.Token) (interface{}, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	if c, ok := t.Claims.(*Claims); ok && t.Valid {
		return c, nil
	}
	return nil, errors.New("invalid token")
}

func bearerToken(c *gin.Context) string {
	h := c.GetHeader("Authorization")
	if strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	// browsers cannot set headers on websocket upgrades
	return c.Query("token")
}

// requireAuth validates the bearer token and provisions the learner record.
func (h *Handler) requireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		tok := bearerToken(c)
		if tok == "" {
			utils.Error(c, http.StatusUnauthorized, "Unauthorized")
			return
		}
		claims, err := parseToken(h.secret, tok)
		if err != nil {
			utils.Error(c, http.StatusUnauthorized, "Unauthorized")
			return
		}
		raw := claims.UID
		if raw == "" {
			raw = claims.Subject
		}
		userID, err := uuid.Parse(raw)
		if err != nil {
			utils.Error(c, http.StatusUnauthorized, "token does not carry a valid user id")
			return
		}
		if err := h.svc.EnsureUser(c.Request.Context(), userID, claims.Name); err != nil {
			utils.Fail(c, err)
			return
		}
		c.Set(userIDKey, userID)
		c.Next()
	}
}

func currentUser(c *gin.Context) uuid.UUID {
	return c.MustGet(userIDKey).(uuid.UUID)
}
