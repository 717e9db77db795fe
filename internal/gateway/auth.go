package gateway

import (
	"context"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"parlor/internal/domain"
)

// TokenVerifier turns the opaque handshake credential into an authenticated
// user, or fails. Verification runs before the socket is admitted; there
// are no retries on a failed credential.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*domain.User, error)
}

// JWTVerifier validates HMAC-signed tokens carrying sub/email/name claims.
type JWTVerifier struct {
	secret []byte
}

func NewJWTVerifier(secret string) *JWTVerifier {
	return &JWTVerifier{secret: []byte(secret)}
}

func (v *JWTVerifier) Verify(_ context.Context, token string) (*domain.User, error) {
	if token == "" {
		return nil, fmt.Errorf("%w: missing token", ErrAuthFailed)
	}
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAuthFailed, err)
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected claims", ErrAuthFailed)
	}
	sub, _ := claims.GetSubject()
	if sub == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrAuthFailed)
	}
	email, _ := claims["email"].(string)
	name, _ := claims["name"].(string)
	user, err := domain.NewUser(domain.UserID(sub), email, name)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAuthFailed, err)
	}
	return user, nil
}

// DevVerifier treats the token itself as the user id, the way the emulator
// deployment does. Debug mode only.
type DevVerifier struct{}

func (DevVerifier) Verify(_ context.Context, token string) (*domain.User, error) {
	if token == "" {
		return nil, fmt.Errorf("%w: missing token", ErrAuthFailed)
	}
	return domain.NewUser(domain.UserID(token), token+"@example.com", token)
}
