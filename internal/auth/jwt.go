package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/mamounbq1/Info-Plat-sub004/internal/model"
)

// Claims is the access-token payload. Role, approved, and status mirror
// the issuer's claims registry at mint time; downstream checks read
// them without touching the profile store.
type Claims struct {
	UserID   string       `json:"user_id"`
	Role     model.Role   `json:"role"`
	Approved bool         `json:"approved"`
	Status   model.Status `json:"status"`
	jwt.RegisteredClaims
}

func (c *Claims) AuthClaims() model.Claims {
	return model.Claims{Role: c.Role, Approved: c.Approved, Status: c.Status}
}

func NewAccessToken(secret, issuer string, ttl time.Duration, userID string, claims model.Claims) (string, error) {
	now := time.Now().UTC()
	payload := Claims{
		UserID:   userID,
		Role:     claims.Role,
		Approved: claims.Approved,
		Status:   claims.Status,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, payload)
	return token.SignedString([]byte(secret))
}

func ParseToken(secret, issuer, tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithIssuer(issuer), jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return claims, nil
}
