package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const issuer = "searchai-api"

// Claims are the HMAC-signed bearer token claims
type Claims struct {
	UserID string `json:"userId"`
	Email  string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// ValidateToken validates a token using HMAC signing
func ValidateToken(tokenString, secret string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(secret), nil
	}, jwt.WithIssuer(issuer))
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	if claims.UserID == "" {
		return nil, jwt.ErrTokenInvalidClaims
	}

	return claims, nil
}

// GenerateToken signs a token for userID. A zero ttl produces a token
// without expiry.
func GenerateToken(userID, email, secret string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID: userID,
		Email:  email,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:   issuer,
			Subject:  userID,
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	if ttl != 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}
