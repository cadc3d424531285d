package auth

import (
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"

	"github.com/Stone-Creek-Software/armory-back/internal/config"
	"github.com/Stone-Creek-Software/armory-back/internal/db"
)

type (
	Claims struct {
		UserID uint64
		Email  string
		Role   string
	}

	// TokenManager signs and verifies the HS256 access tokens the HTTP
	// layer carries in the Authorization header.
	TokenManager struct {
		secret []byte
		ttl    time.Duration
	}
)

func NewTokenManager(cfg *config.Config) *TokenManager {
	return &TokenManager{
		secret: []byte(cfg.JWTSecret),
		ttl:    cfg.JWTTTL,
	}
}

func (m *TokenManager) Sign(user *db.User) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":   strconv.FormatUint(user.ID, 10),
		"email": user.Email,
		"role":  user.Role,
		"exp":   now.Add(m.ttl).Unix(),
		"iat":   now.Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

func (m *TokenManager) Verify(tokenStr string) (Claims, error) {
	tok, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return m.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil || !tok.Valid {
		return Claims{}, errors.New("invalid token")
	}
	mapc, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return Claims{}, errors.New("invalid claims")
	}
	sub, _ := mapc["sub"].(string)
	userID, err := strconv.ParseUint(sub, 10, 64)
	if err != nil {
		return Claims{}, errors.New("invalid subject")
	}
	email, _ := mapc["email"].(string)
	role, _ := mapc["role"].(string)
	return Claims{UserID: userID, Email: email, Role: role}, nil
}
