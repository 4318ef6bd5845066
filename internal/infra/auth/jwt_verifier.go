package auth

import (
	"context"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"reminder_service/internal/domain/notification"
)

// JWTVerifier validates HS256 access tokens locally, no network involved.
// The user id is the "sub" claim, or "userId" for tokens minted by older clients.
type JWTVerifier struct {
	secret []byte
}

func NewJWTVerifier(secret string) *JWTVerifier {
	return &JWTVerifier{secret: []byte(secret)}
}

func (v *JWTVerifier) Verify(_ context.Context, tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", fmt.Errorf("%w: %v", notification.ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", notification.ErrInvalidToken
	}
	if sub, err := claims.GetSubject(); err == nil && sub != "" {
		return sub, nil
	}
	if userID, ok := claims["userId"].(string); ok && userID != "" {
		return userID, nil
	}
	return "", fmt.Errorf("%w: no subject claim", notification.ErrInvalidToken)
}
