package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestAdminToken_RoundTrip(t *testing.T) {
	tok, err := IssueAdminToken("U123", "k", time.Hour, time.Now())
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	claims, err := ParseAdminToken(tok, "k")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.Subject != "U123" {
		t.Fatalf("subject = %q", claims.Subject)
	}
}

func TestParseAdminToken_Rejects(t *testing.T) {
	good, _ := IssueAdminToken("U1", "k", time.Hour, time.Now())
	expired, _ := IssueAdminToken("U1", "k", time.Minute, time.Now().Add(-time.Hour))
	none, _ := jwt.NewWithClaims(jwt.SigningMethodNone, AdminClaims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "U1", Issuer: tokenIssuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	otherIssuer, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, AdminClaims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "U1", Issuer: "someone-else",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
	}).SignedString([]byte("k"))

	cases := map[string]struct{ token, secret string }{
		"wrong secret": {good, "other"},
		"expired":      {expired, "k"},
		"alg none":     {none, "k"},
		"issuer":       {otherIssuer, "k"},
		"garbage":      {"not.a.token", "k"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := ParseAdminToken(tc.token, tc.secret); !errors.Is(err, ErrInvalidToken) {
				t.Fatalf("expected ErrInvalidToken, got %v", err)
			}
		})
	}
}

func TestIssueAdminToken_Validation(t *testing.T) {
	if _, err := IssueAdminToken("", "k", time.Hour, time.Now()); err == nil {
		t.Fatalf("empty subject should fail")
	}
	if _, err := IssueAdminToken("U1", "", time.Hour, time.Now()); err == nil {
		t.Fatalf("empty secret should fail")
	}
}
