package handler

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	jwt "github.com/golang-jwt/jwt/v5"
)

const (
	tokenIssuer = "supportdesk"
	tokenTTL    = 30 * 24 * time.Hour
)

type anonClaims struct {
	AnonID string `json:"anon_id"`
	jwt.RegisteredClaims
}

// generateJWT signs a token carrying the anonymous id.
func (h *Handler) generateJWT(anonID string) (string, error) {
	now := time.Now()
	claims := anonClaims{
		AnonID: anonID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(h.jwtSecret)
}

// validateAndGetAnonID checks the signature, issuer and expiry of a token and
// returns its anonymous id.
func (h *Handler) validateAndGetAnonID(tokenString string) (string, error) {
	claims := &anonClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return h.jwtSecret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(tokenIssuer), jwt.WithExpirationRequired())
	if err != nil {
		return "", fmt.Errorf("parse token: %w", err)
	}
	if claims.AnonID == "" {
		return "", errors.New("token has no anon_id")
	}
	return claims.AnonID, nil
}

// GetAnonID issues a token for the supplied anonymous id when it is a UUID, or for
// a fresh one otherwise.
func (h *Handler) GetAnonID(c *gin.Context) {
	anonID := c.Query("anonymous_id")
	if _, err := uuid.Parse(anonID); err != nil {
		anonID = uuid.NewString()
	}

	token, err := h.generateJWT(anonID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse{Error: "failed to create token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token, "anon_id": anonID})
}
