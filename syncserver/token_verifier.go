package syncserver

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// JWTTokenVerifier validates HMAC-signed tokens and maps them to the user id
// carried in the subject claim.
type JWTTokenVerifier struct {
	secret []byte
}

func NewJWTTokenVerifier(secret string) *JWTTokenVerifier {
	return &JWTTokenVerifier{secret: []byte(secret)}
}

func (v *JWTTokenVerifier) Verify(token string) (string, error) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return "", err
	}
	subject, err := parsed.Claims.GetSubject()
	if err != nil {
		return "", err
	}
	if subject == "" {
		return "", fmt.Errorf("token has no subject")
	}
	return subject, nil
}
