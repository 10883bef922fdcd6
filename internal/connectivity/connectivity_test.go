package connectivity

import "testing"

func TestShouldSyncRequiresAllThree(t *testing.T) {
	tests := []struct {
		name    string
		online  bool
		account string
		enabled bool
		want    bool
	}{
		{"all set", true, "a@b.com", true, true},
		{"offline", false, "a@b.com", true, false},
		{"signed out", true, "", true, false},
		{"opted out", true, "a@b.com", false, false},
		{"nothing", false, "", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMonitor(tt.account, tt.enabled)
			m.SetOnline(tt.online)
			if got := m.ShouldSync(); got != tt.want {
				t.Errorf("ShouldSync() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCallbackFiresOnSyncBecomingAvailable(t *testing.T) {
	m := NewMonitor("a@b.com", true)
	m.SetOnline(false)

	fired := 0
	m.OnChange(func() { fired++ })

	m.SetOnline(true)
	if fired != 1 {
		t.Fatalf("expected 1 callback after reconnect, got %d", fired)
	}

	// Repeating the same state is not a transition.
	m.SetOnline(true)
	if fired != 1 {
		t.Errorf("duplicate SetOnline fired callback, count %d", fired)
	}

	// Going offline never fires.
	m.SetOnline(false)
	if fired != 1 {
		t.Errorf("offline transition fired callback, count %d", fired)
	}
}

func TestCallbackFiresOnSignIn(t *testing.T) {
	m := NewMonitor("", true)

	fired := 0
	m.OnChange(func() { fired++ })

	m.SetAccount("a@b.com")
	if fired != 1 {
		t.Fatalf("expected callback on sign-in, got %d", fired)
	}
	if m.Account() != "a@b.com" {
		t.Errorf("Account() = %q", m.Account())
	}

	m.SetAccount("")
	if m.ShouldSync() {
		t.Error("ShouldSync true after sign-out")
	}
}

func TestCallbackFiresOnOptIn(t *testing.T) {
	m := NewMonitor("a@b.com", false)

	fired := 0
	m.OnChange(func() { fired++ })

	m.SetSyncEnabled(true)
	if fired != 1 {
		t.Fatalf("expected callback on opt-in, got %d", fired)
	}
}
