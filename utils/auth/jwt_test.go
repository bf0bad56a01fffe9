package auth

import (
	"testing"
	"time"

	"github.com/scholarproof/api/model"
)

func newTestManager(expiry time.Duration) *JWTManager {
	return NewJWTManager(JWTConfig{
		Secret:        "test-secret",
		Expiry:        expiry,
		RefreshExpiry: 2 * expiry,
		Issuer:        "scholarproof-test",
	})
}

func TestGenerateAndValidateAccessToken(t *testing.T) {
	manager := newTestManager(time.Hour)

	token, jti, err := manager.GenerateAccessToken(42, "student@example.com", model.RoleStudent, 3)
	if err != nil {
		t.Fatalf("GenerateAccessToken() error = %v", err)
	}
	if jti == "" {
		t.Fatal("GenerateAccessToken() returned empty JTI")
	}

	claims, err := manager.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken() error = %v", err)
	}

	if claims.UserID != 42 {
		t.Errorf("UserID = %d, want 42", claims.UserID)
	}
	if claims.Email != "student@example.com" {
		t.Errorf("Email = %q", claims.Email)
	}
	if claims.Role != model.RoleStudent {
		t.Errorf("Role = %q, want student", claims.Role)
	}
	if claims.TokenType != "access" {
		t.Errorf("TokenType = %q, want access", claims.TokenType)
	}
	if claims.TokenVersion != 3 {
		t.Errorf("TokenVersion = %d, want 3", claims.TokenVersion)
	}
	if claims.ID != jti {
		t.Errorf("claims.ID = %q, want %q", claims.ID, jti)
	}
}

func TestValidateTokenRejectsWrongSecret(t *testing.T) {
	manager := newTestManager(time.Hour)
	other := NewJWTManager(JWTConfig{Secret: "different-secret", Expiry: time.Hour})

	token, _, err := manager.GenerateAccessToken(1, "a@b.c", model.RoleAdmin, 0)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := other.ValidateToken(token); err == nil {
		t.Error("ValidateToken() accepted a token signed with another secret")
	}
}

func TestValidateTokenRejectsExpired(t *testing.T) {
	manager := newTestManager(-time.Minute)

	token, _, err := manager.GenerateAccessToken(1, "a@b.c", model.RoleStudent, 0)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := manager.ValidateToken(token); err != ErrExpiredToken {
		t.Errorf("ValidateToken() error = %v, want ErrExpiredToken", err)
	}
}

func TestValidateTokenRejectsGarbage(t *testing.T) {
	manager := newTestManager(time.Hour)
	if _, err := manager.ValidateToken("not-a-token"); err != ErrInvalidToken {
		t.Errorf("ValidateToken() error = %v, want ErrInvalidToken", err)
	}
}

func TestRefreshAccessToken(t *testing.T) {
	manager := newTestManager(time.Hour)

	refresh, _, err := manager.GenerateRefreshToken(7, "x@y.z", model.RoleLecturer, 1)
	if err != nil {
		t.Fatal(err)
	}

	access, _, err := manager.RefreshAccessToken(refresh, 1)
	if err != nil {
		t.Fatalf("RefreshAccessToken() error = %v", err)
	}

	claims, err := manager.ValidateToken(access)
	if err != nil {
		t.Fatal(err)
	}
	if claims.TokenType != "access" {
		t.Errorf("refreshed token type = %q, want access", claims.TokenType)
	}
	if claims.UserID != 7 {
		t.Errorf("refreshed UserID = %d, want 7", claims.UserID)
	}
}

func TestRefreshAccessTokenRejectsAccessToken(t *testing.T) {
	manager := newTestManager(time.Hour)

	access, _, err := manager.GenerateAccessToken(7, "x@y.z", model.RoleLecturer, 1)
	if err != nil {
		t.Fatal(err)
	}

	if _, _, err := manager.RefreshAccessToken(access, 1); err == nil {
		t.Error("RefreshAccessToken() accepted an access token")
	}
}
