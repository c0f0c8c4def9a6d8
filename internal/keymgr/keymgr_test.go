package keymgr

import "testing"

func TestAddKeyAndGetKey(t *testing.T) {
	m := NewManager()
	m.AddKey("openai", "sk-test")

	k, err := m.GetKey("openai")
	if err != nil {
		t.Fatalf("GetKey: %v", err)
	}
	if k.Value() != "sk-test" {
		t.Fatalf("Value() = %q, want sk-test", k.Value())
	}
}

func TestGetKeyMissingProvider(t *testing.T) {
	m := NewManager()
	if _, err := m.GetKey("missing"); err == nil {
		t.Fatal("expected error for unregistered provider")
	}
}

func TestNeedsRotationOnUsageLimit(t *testing.T) {
	m := NewManager()
	m.AddKeyWithRotation("openai", "sk-test", 2)
	k, _ := m.GetKey("openai")

	if k.NeedsRotation() {
		t.Fatal("fresh key should not need rotation")
	}
	k.RecordUse()
	if k.NeedsRotation() {
		t.Fatal("key under limit should not need rotation")
	}
	k.RecordUse()
	if !k.NeedsRotation() {
		t.Fatal("key at limit should need rotation")
	}
}

func TestCheckRotationNeeded(t *testing.T) {
	m := NewManager()
	m.AddKeyWithRotation("openai", "sk-a", 1)
	m.AddKey("claude", "sk-b")

	k, _ := m.GetKey("openai")
	k.RecordUse()

	needing := m.CheckRotationNeeded()
	if len(needing) != 1 || needing[0] != "openai" {
		t.Fatalf("expected only openai to need rotation, got %v", needing)
	}
}

func TestProvidersListsAll(t *testing.T) {
	m := NewManager()
	m.AddKey("openai", "sk-a")
	m.AddKey("claude", "sk-b")

	providers := m.Providers()
	if len(providers) != 2 {
		t.Fatalf("expected 2 providers, got %d", len(providers))
	}
}
