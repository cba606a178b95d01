package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidAdminKey = errors.New("invalid admin key")
	ErrInvalidToken    = errors.New("invalid token")
)

type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// JWTManager issues and validates bearer tokens for the admin surface
// (manual learning cycles, knowledge base writes).
type JWTManager struct {
	secretKey    []byte
	expiration   time.Duration
	adminKeyHash string
}

func NewJWTManager(secretKey string, expiration time.Duration, adminKeyHash string) *JWTManager {
	return &JWTManager{
		secretKey:    []byte(secretKey),
		expiration:   expiration,
		adminKeyHash: adminKeyHash,
	}
}

// Enabled reports whether an admin key hash is configured at all.
func (m *JWTManager) Enabled() bool {
	return m.adminKeyHash != ""
}

// IssueAdminToken compares the presented key against the configured bcrypt
// hash and returns a signed token on match.
func (m *JWTManager) IssueAdminToken(adminKey string) (string, error) {
	if !m.Enabled() {
		return "", ErrInvalidAdminKey
	}
	if err := bcrypt.CompareHashAndPassword([]byte(m.adminKeyHash), []byte(adminKey)); err != nil {
		return "", ErrInvalidAdminKey
	}

	now := time.Now()
	claims := Claims{
		Role: "admin",
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.expiration)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secretKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Validate parses a token and returns its claims.
func (m *JWTManager) Validate(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return m.secretKey, nil
	})
	if err != nil {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
