package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"assetflow.org/internal/rbac"
)

func setSecret(t *testing.T) {
	t.Helper()
	t.Setenv("ASSETFLOW_AUTH_SECRET", "unit-test-secret")
	ResetSecretForTests()
	t.Cleanup(ResetSecretForTests)
}

func TestGenerateAndValidateRoundTrip(t *testing.T) {
	setSecret(t)
	token, err := GenerateToken("user-42", rbac.RoleAssetManager, time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	actorID, role, err := ParseAndValidate(token)
	if err != nil {
		t.Fatal(err)
	}
	if actorID != "user-42" {
		t.Fatalf("actorID = %s", actorID)
	}
	if role != rbac.RoleAssetManager {
		t.Fatalf("role = %s", role)
	}
}

func TestGenerateTokenRejectsUnknownRole(t *testing.T) {
	setSecret(t)
	if _, err := GenerateToken("user-1", rbac.Role("superuser"), time.Minute); err == nil {
		t.Fatal("expected error for unknown role")
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	setSecret(t)
	for _, token := range []string{"", "not-a-jwt", "a.b.c"} {
		if _, _, err := ParseAndValidate(token); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("token %q: expected ErrInvalidToken, got %v", token, err)
		}
	}
}

func TestParseRejectsExpiredToken(t *testing.T) {
	setSecret(t)
	token, err := GenerateToken("user-1", rbac.RoleViewer, time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}
	time.Sleep(10 * time.Millisecond)
	if _, _, err := ParseAndValidate(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestMissingSecret(t *testing.T) {
	t.Setenv("ASSETFLOW_AUTH_SECRET", "")
	ResetSecretForTests()
	t.Cleanup(ResetSecretForTests)
	if _, err := GenerateToken("user-1", rbac.RoleViewer, time.Minute); err == nil {
		t.Fatal("expected error without configured secret")
	}
}

func TestContextRoundTrip(t *testing.T) {
	ctx := ContextWithActor(context.Background(), "user-7", rbac.RoleFinance)
	id, ok := ActorIDFromContext(ctx)
	if !ok || id != "user-7" {
		t.Fatalf("actor = %q ok=%v", id, ok)
	}
	role, ok := RoleFromContext(ctx)
	if !ok || role != rbac.RoleFinance {
		t.Fatalf("role = %q ok=%v", role, ok)
	}
	if _, ok := ActorIDFromContext(context.Background()); ok {
		t.Fatal("empty context should have no actor")
	}
}
