package auth

import (
	"chat-relay/errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const secret = "0123456789abcdef0123456789abcdef"

func TestTokenIssuer_Issue_Then_Validate(t *testing.T) {
	req := require.New(t)
	issuer, err := NewTokenIssuer(secret, time.Hour)
	req.NoError(err)

	token, err := issuer.Issue("session-1")
	req.NoError(err)

	claims, err := issuer.Validate(token)
	req.NoError(err)
	req.Equal("session-1", claims.SessionID)
	req.Equal("chat-relay", claims.Issuer)
}

func TestTokenIssuer_Rejects(t *testing.T) {
	req := require.New(t)
	issuer, err := NewTokenIssuer(secret, time.Hour)
	req.NoError(err)
	other, err := NewTokenIssuer(strings.Repeat("x", 32), time.Hour)
	req.NoError(err)

	t.Run("garbage", func(t *testing.T) {
		_, err := issuer.Validate("not-a-token")
		require.ErrorIs(t, err, errors.ErrInvalidToken)
	})

	t.Run("foreign signature", func(t *testing.T) {
		token, err := other.Issue("session-1")
		require.NoError(t, err)
		_, err = issuer.Validate(token)
		require.ErrorIs(t, err, errors.ErrInvalidToken)
	})

	t.Run("expired", func(t *testing.T) {
		token, err := issuer.Issue("session-1")
		require.NoError(t, err)
		issuer.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
		defer func() { issuer.now = time.Now }()
		_, err = issuer.Validate(token)
		require.ErrorIs(t, err, errors.ErrInvalidToken)
	})
}

func TestNewTokenIssuer_Weak_Secret(t *testing.T) {
	_, err := NewTokenIssuer("short", time.Hour)
	require.ErrorIs(t, err, errors.ErrWeakSecret)
}

func TestValidateSignIn(t *testing.T) {
	tests := []struct {
		name     string
		identity string
		wantErr  error
	}{
		{"Valid identity", "Carol", nil},
		{"Unicode identity", "Zoë Ødegaard", nil},
		{"Blank identity", "   ", errors.ErrEmptyIdentity},
		{"Line break", "car\nol", errors.ErrInvalidIdentity},
		{"Too long", strings.Repeat("a", 65), errors.ErrInvalidIdentity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSignIn(SignInRequest{Identity: tt.identity})
			if tt.wantErr == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}
