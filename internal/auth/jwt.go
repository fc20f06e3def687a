package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/utafrali/zaver-checkout/pkg/middleware"
)

// RoleAdmin is the role allowed to act on payments and refunds.
const RoleAdmin = "admin"

// Claims represents the JWT claims of a staff access token.
type Claims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// JWTManager signs and validates staff access tokens.
type JWTManager struct {
	secret []byte
	issuer string
	expiry time.Duration
}

// NewJWTManager creates a JWT manager. An empty issuer disables the issuer
// check.
func NewJWTManager(secret, issuer string, expiry time.Duration) *JWTManager {
	return &JWTManager{
		secret: []byte(secret),
		issuer: issuer,
		expiry: expiry,
	}
}

// GenerateAccessToken creates a signed access token for a staff member.
func (m *JWTManager) GenerateAccessToken(userID, email, role string) (string, error) {
	now := time.Now().UTC()
	claims := &Claims{
		UserID: userID,
		Email:  email,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.expiry)),
			Issuer:    m.issuer,
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}
	return signed, nil
}

// Validate parses an access token and returns the request claims. It matches
// middleware.TokenValidator.
func (m *JWTManager) Validate(tokenString string) (*middleware.Claims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if m.issuer != "" {
		opts = append(opts, jwt.WithIssuer(m.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("parse access token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid access token claims")
	}
	if claims.UserID == "" {
		claims.UserID = claims.Subject
	}

	return &middleware.Claims{UserID: claims.UserID, Email: claims.Email, Role: claims.Role}, nil
}
