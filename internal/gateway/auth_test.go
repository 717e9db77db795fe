package gateway

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"parlor/internal/domain"
)

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func Test_JWTVerifier_ValidToken(t *testing.T) {
	req := require.New(t)
	verifier := NewJWTVerifier("s3cret")
	token := signToken(t, "s3cret", jwt.MapClaims{
		"sub":   "alice",
		"email": "alice@example.com",
		"name":  "Alice",
		"exp":   time.Now().Add(time.Hour).Unix(),
	})

	user, err := verifier.Verify(context.Background(), token)
	req.NoError(err)
	req.Equal(domain.UserID("alice"), user.ID)
	req.Equal("alice@example.com", user.Email)
	req.Equal("Alice", user.Name)
}

func Test_JWTVerifier_RejectsBadCredentials(t *testing.T) {
	verifier := NewJWTVerifier("s3cret")
	ctx := context.Background()

	cases := map[string]string{
		"empty token": "",
		"garbage":     "not-a-jwt",
		"wrong secret": signToken(t, "other", jwt.MapClaims{
			"sub": "alice",
			"exp": time.Now().Add(time.Hour).Unix(),
		}),
		"expired": signToken(t, "s3cret", jwt.MapClaims{
			"sub": "alice",
			"exp": time.Now().Add(-time.Hour).Unix(),
		}),
		"no subject": signToken(t, "s3cret", jwt.MapClaims{
			"email": "alice@example.com",
			"exp":   time.Now().Add(time.Hour).Unix(),
		}),
	}
	for name, token := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := verifier.Verify(ctx, token)
			require.ErrorIs(t, err, ErrAuthFailed)
		})
	}
}

func Test_JWTVerifier_RejectsUnsignedAlg(t *testing.T) {
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "alice"}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = NewJWTVerifier("s3cret").Verify(context.Background(), token)
	require.ErrorIs(t, err, ErrAuthFailed)
}

func Test_DevVerifier_TokenIsTheIdentity(t *testing.T) {
	req := require.New(t)

	user, err := DevVerifier{}.Verify(context.Background(), "bob")
	req.NoError(err)
	req.Equal(domain.UserID("bob"), user.ID)
	req.Equal("bob@example.com", user.Email)

	_, err = DevVerifier{}.Verify(context.Background(), "")
	req.ErrorIs(err, ErrAuthFailed)
}
