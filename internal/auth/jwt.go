package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("expired token")
)

type JWTService struct {
	secret               string
	accessTokenDuration  time.Duration
	refreshTokenDuration time.Duration
}

type Claims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	Type   string `json:"type"` // "access" or "refresh"
	jwt.RegisteredClaims
}

func NewJWTService(secret string, accessDuration, refreshDuration time.Duration) *JWTService {
	return &JWTService{
		secret:               secret,
		accessTokenDuration:  accessDuration,
		refreshTokenDuration: refreshDuration,
	}
}

// AccessTokenDuration is the lifetime of issued access tokens.
func (j *JWTService) AccessTokenDuration() time.Duration {
	return j.accessTokenDuration
}

// RefreshTokenDuration is the lifetime of issued refresh tokens and their
// sessions.
func (j *JWTService) RefreshTokenDuration() time.Duration {
	return j.refreshTokenDuration
}

// GenerateTokenPair issues an access and a refresh token for user.
func (j *JWTService) GenerateTokenPair(user *AdminUser) (accessToken, refreshToken string, err error) {
	accessToken, err = j.generateToken(user.ID, user.Email, user.Role, TokenAccess, j.accessTokenDuration)
	if err != nil {
		return "", "", err
	}

	refreshToken, err = j.generateToken(user.ID, user.Email, user.Role, TokenRefresh, j.refreshTokenDuration)
	if err != nil {
		return "", "", err
	}

	return accessToken, refreshToken, nil
}

func (j *JWTService) generateToken(userID, email, role, tokenType string, duration time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID: userID,
		Email:  email,
		Role:   role,
		Type:   tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(now.Add(duration)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}
	// Two pairs issued in the same second must still differ.
	if tokenType == TokenRefresh {
		claims.ID = newTokenID()
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(j.secret))
}

// ValidateToken validates and parses a token.
func (j *JWTService) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(j.secret), nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

// RefreshAccessToken issues a new access token from a valid refresh token.
func (j *JWTService) RefreshAccessToken(refreshToken string) (string, *Claims, error) {
	claims, err := j.ValidateToken(refreshToken)
	if err != nil {
		return "", nil, err
	}

	if claims.Type != TokenRefresh {
		return "", nil, ErrInvalidToken
	}

	accessToken, err := j.generateToken(claims.UserID, claims.Email, claims.Role, TokenAccess, j.accessTokenDuration)
	if err != nil {
		return "", nil, err
	}

	return accessToken, claims, nil
}
