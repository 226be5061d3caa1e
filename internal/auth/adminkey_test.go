package auth

import (
	"net/http"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestHashAndVerifyKey(t *testing.T) {
	t.Parallel()

	hash, err := HashKey("opsdash-admin-key-1")
	if err != nil {
		t.Fatalf("hash key: %v", err)
	}
	if err := CheckHash(hash); err != nil {
		t.Fatalf("expected generated hash to check: %v", err)
	}
	if !VerifyKey(" opsdash-admin-key-1 ", hash) {
		t.Fatalf("expected key verification to succeed")
	}
	if VerifyKey("wrong-admin-key-000", hash) {
		t.Fatalf("did not expect wrong key to verify")
	}
	if VerifyKey("", hash) {
		t.Fatalf("did not expect empty key to verify")
	}
}

func TestHashKeyRejectsShortKeys(t *testing.T) {
	t.Parallel()

	if _, err := HashKey("short"); err == nil {
		t.Fatalf("expected short key to be rejected")
	}
}

func TestCheckHash(t *testing.T) {
	t.Parallel()

	if err := CheckHash("plaintext"); err == nil {
		t.Fatalf("expected plaintext to be rejected")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte("x"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if err := CheckHash(string(hash)); err != nil {
		t.Fatalf("expected min-cost hash to check: %v", err)
	}
}

func TestKeyFromHeader(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		header http.Header
		want   string
	}{
		{name: "admin header", header: http.Header{"X-Admin-Key": {" k1 "}}, want: "k1"},
		{name: "bearer", header: http.Header{"Authorization": {"Bearer k2"}}, want: "k2"},
		{name: "lowercase bearer", header: http.Header{"Authorization": {"bearer k3"}}, want: "k3"},
		{name: "admin header wins", header: http.Header{"X-Admin-Key": {"k4"}, "Authorization": {"Bearer k5"}}, want: "k4"},
		{name: "basic ignored", header: http.Header{"Authorization": {"Basic abc"}}, want: ""},
		{name: "none", header: http.Header{}, want: ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := KeyFromHeader(tc.header); got != tc.want {
				t.Fatalf("got %q want %q", got, tc.want)
			}
		})
	}
}
