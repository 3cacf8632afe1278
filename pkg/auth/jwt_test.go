package auth

import (
	"strings"
	"testing"
	"time"
)

func TestExtractToken(t *testing.T) {
	tests := []struct {
		name    string
		header  string
		want    string
		wantErr bool
	}{
		{"valid bearer", "Bearer abc.def.ghi", "abc.def.ghi", false},
		{"case insensitive scheme", "bearer token123", "token123", false},
		{"empty header", "", "", true},
		{"missing scheme", "abc.def.ghi", "", true},
		{"wrong scheme", "Basic dXNlcjpwYXNz", "", true},
		{"empty token", "Bearer   ", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractToken(tt.header)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ExtractToken(%q) error = %v, wantErr %v", tt.header, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ExtractToken(%q) = %q, want %q", tt.header, got, tt.want)
			}
		})
	}
}

func TestIssueAndVerifyToken(t *testing.T) {
	a, err := NewJWTAuth("test-secret", time.Hour)
	if err != nil {
		t.Fatalf("NewJWTAuth failed: %v", err)
	}

	token, err := a.IssueToken("user-1", "user@example.com", "client-1", "user")
	if err != nil {
		t.Fatalf("IssueToken failed: %v", err)
	}

	user, err := a.VerifyAccessToken(token)
	if err != nil {
		t.Fatalf("VerifyAccessToken failed: %v", err)
	}
	if user.ID != "user-1" || user.Email != "user@example.com" || user.ClientID != "client-1" || user.Role != "user" {
		t.Errorf("unexpected user: %+v", user)
	}
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	issuer, _ := NewJWTAuth("secret-a", time.Hour)
	verifier, _ := NewJWTAuth("secret-b", time.Hour)

	token, err := issuer.IssueToken("user-1", "user@example.com", "client-1", "user")
	if err != nil {
		t.Fatalf("IssueToken failed: %v", err)
	}

	if _, err := verifier.VerifyAccessToken(token); err == nil {
		t.Error("expected verification to fail with wrong secret")
	}
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	a, _ := NewJWTAuth("test-secret", time.Hour)
	a.AccessTokenExpiry = -time.Minute

	token, err := a.IssueToken("user-1", "user@example.com", "client-1", "user")
	if err != nil {
		t.Fatalf("IssueToken failed: %v", err)
	}

	_, err = a.VerifyAccessToken(token)
	if err == nil || !strings.Contains(err.Error(), "expired") {
		t.Errorf("expected expiry error, got %v", err)
	}
}

func TestNewJWTAuthRequiresSecret(t *testing.T) {
	if _, err := NewJWTAuth("", time.Hour); err == nil {
		t.Error("expected error for empty secret")
	}
}
