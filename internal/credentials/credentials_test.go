package credentials

import (
	"context"
	"testing"
)

func TestSetAndGetFromKeyring(t *testing.T) {
	m := NewManager(WithKeyring(NewMockKeyring()))
	ctx := context.Background()

	if err := m.Set(ctx, "Alice@Example.com", "tok-123"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	// Lookup is case-insensitive on the account.
	info, err := m.Get(ctx, "alice@example.com")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !info.Found {
		t.Fatal("token not found")
	}
	if info.Source != SourceKeyring {
		t.Errorf("source = %q, want keyring", info.Source)
	}
	if info.Token != "tok-123" {
		t.Errorf("token = %q", info.Token)
	}
}

func TestSetRequiresAccount(t *testing.T) {
	m := NewManager(WithKeyring(NewMockKeyring()))
	if err := m.Set(context.Background(), "  ", "tok"); err == nil {
		t.Fatal("expected error for empty account")
	}
}

func TestEnvironmentFallback(t *testing.T) {
	m := NewManager(WithKeyring(NewMockKeyring()))
	t.Setenv(EnvToken, "env-tok")

	info, err := m.Get(context.Background(), "alice@example.com")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !info.Found || info.Source != SourceEnvironment {
		t.Errorf("info = %+v, want environment fallback", info)
	}
	if info.Token != "env-tok" {
		t.Errorf("token = %q", info.Token)
	}
}

func TestKeyringTakesPriorityOverEnvironment(t *testing.T) {
	m := NewManager(WithKeyring(NewMockKeyring()))
	ctx := context.Background()
	t.Setenv(EnvToken, "env-tok")

	if err := m.Set(ctx, "alice@example.com", "ring-tok"); err != nil {
		t.Fatal(err)
	}

	info, err := m.Get(ctx, "alice@example.com")
	if err != nil {
		t.Fatal(err)
	}
	if info.Source != SourceKeyring || info.Token != "ring-tok" {
		t.Errorf("info = %+v, want keyring priority", info)
	}
}

func TestGetMissing(t *testing.T) {
	m := NewManager(WithKeyring(NewMockKeyring()))

	info, err := m.Get(context.Background(), "nobody@example.com")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if info.Found || info.Source != SourceNone {
		t.Errorf("info = %+v, want not found", info)
	}
}

func TestDeleteIsIdempotent(t *testing.T) {
	m := NewManager(WithKeyring(NewMockKeyring()))
	ctx := context.Background()

	if err := m.Set(ctx, "alice@example.com", "tok"); err != nil {
		t.Fatal(err)
	}
	if err := m.Delete(ctx, "alice@example.com"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := m.Delete(ctx, "alice@example.com"); err != nil {
		t.Errorf("second Delete errored: %v", err)
	}

	info, _ := m.Get(ctx, "alice@example.com")
	if info.Found {
		t.Error("token survived delete")
	}
}
