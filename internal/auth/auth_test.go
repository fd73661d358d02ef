package auth

import (
	"context"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"
)

func TestCallerCan(t *testing.T) {
	cases := []struct {
		name       string
		caps       []string
		capability string
		want       bool
	}{
		{"view with view", []string{CapView}, CapView, true},
		{"manage with manage", []string{CapManage}, CapManage, true},
		{"manage implies view", []string{CapManage}, CapView, true},
		{"view does not imply manage", []string{CapView}, CapManage, false},
		{"no caps", nil, CapView, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := Caller{ID: "u1", Capabilities: tc.caps}
			if got := c.Can(tc.capability); got != tc.want {
				t.Fatalf("Can(%q) = %v, want %v", tc.capability, got, tc.want)
			}
		})
	}
}

func TestTokenRoundTrip(t *testing.T) {
	issuer := NewTokenIssuer("test-secret", time.Hour)
	in := Caller{ID: "alice", Name: "Alice", Capabilities: []string{CapManage}}

	token, err := issuer.Mint(in)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}

	out, err := issuer.Verify(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if out.ID != in.ID || out.Name != in.Name {
		t.Fatalf("caller mismatch: %+v", out)
	}
	if !out.Can(CapManage) || !out.Can(CapView) {
		t.Fatalf("capabilities lost: %+v", out.Capabilities)
	}
}

func TestVerifyRejectsGarbageAndWrongSecret(t *testing.T) {
	issuer := NewTokenIssuer("test-secret", time.Hour)
	if _, err := issuer.Verify("not-a-token"); err == nil {
		t.Fatal("expected error for garbage token")
	}

	other := NewTokenIssuer("other-secret", time.Hour)
	token, err := other.Mint(Caller{ID: "mallory"})
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if _, err := issuer.Verify(token); err == nil {
		t.Fatal("expected error for token signed with another secret")
	}
}

func TestVerifyRejectsExpired(t *testing.T) {
	issuer := NewTokenIssuer("test-secret", -time.Minute)
	token, err := issuer.Mint(Caller{ID: "alice"})
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if _, err := issuer.Verify(token); err == nil {
		t.Fatal("expected error for expired token")
	}
}

func TestParseUsersAndAuthenticate(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}

	store, err := ParseUsers("alice:" + string(hash) + ":funding.manage|funding.view")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if store.Len() != 1 {
		t.Fatalf("expected 1 user, got %d", store.Len())
	}

	caller, err := store.Authenticate("alice", "s3cret")
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if !caller.Can(CapManage) {
		t.Fatalf("expected manage capability, got %v", caller.Capabilities)
	}

	if _, err := store.Authenticate("alice", "wrong"); err != ErrBadCredentials {
		t.Fatalf("expected ErrBadCredentials, got %v", err)
	}
	if _, err := store.Authenticate("bob", "s3cret"); err != ErrBadCredentials {
		t.Fatalf("expected ErrBadCredentials for unknown user, got %v", err)
	}
}

func TestParseUsersMalformed(t *testing.T) {
	for _, bad := range []string{"alice", "alice:hash", ":hash:caps"} {
		if _, err := ParseUsers(bad); err == nil {
			t.Fatalf("%q expected error", bad)
		}
	}
}

func TestCallerContext(t *testing.T) {
	ctx := WithCaller(context.Background(), Caller{ID: "alice"})
	caller, ok := CallerFromContext(ctx)
	if !ok || caller.ID != "alice" {
		t.Fatalf("expected caller from context, got %+v ok=%v", caller, ok)
	}
	if _, ok := CallerFromContext(context.Background()); ok {
		t.Fatal("expected no caller on empty context")
	}
}
