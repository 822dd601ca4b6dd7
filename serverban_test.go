package main

import (
	"net"
	"testing"
	"time"
)

func TestServerBanActive(t *testing.T) {
	past := time.Now().Add(-time.Minute)
	future := time.Now().Add(time.Minute)

	tests := []struct {
		name   string
		ban    ServerBan
		active bool
	}{
		{"no expiry", ServerBan{}, true},
		{"expires in the future", ServerBan{ExpiresAt: &future}, true},
		{"expired", ServerBan{ExpiresAt: &past}, false},
	}

	for _, test := range tests {
		if got := test.ban.active(); got != test.active {
			t.Errorf("%s: active() = %v, wanted %v", test.name, got, test.active)
		}
	}
}

func TestServerBanMatches(t *testing.T) {
	ban := ServerBan{UserMask: "*", HostMask: "*.evil.example"}

	if !ban.matches(nil, "host.evil.example", "alice") {
		t.Error("expected hostmask match to succeed")
	}
	if ban.matches(nil, "host.good.example", "alice") {
		t.Error("expected non-matching host to fail")
	}

	ipBan := ServerBan{UserMask: "*", HostMask: "203.0.113.*"}
	if !ipBan.matches(net.ParseIP("203.0.113.5"), "some.host", "alice") {
		t.Error("expected IP-based hostmask to match against the connection IP")
	}
}

func TestMemoryServerBanRepoAddRemoveLookup(t *testing.T) {
	repo := newMemoryServerBanRepo()

	_ = repo.Add(ServerBan{UserMask: "*", HostMask: "*.evil.example",
		Reason: "spam"})

	ban, found := repo.LookupMatching(nil, "host.evil.example", "alice")
	if !found || ban.Reason != "spam" {
		t.Fatalf("expected to find the added ban, got %v found=%v", ban, found)
	}

	id := repo.klineID("*", "*.evil.example")
	if err := repo.Remove(id); err != nil {
		t.Fatalf("Remove of an existing ban should succeed: %s", err)
	}

	if err := repo.Remove(id); err == nil {
		t.Fatal("Remove of an already-removed ban should error")
	}

	if _, found := repo.LookupMatching(nil, "host.evil.example", "alice"); found {
		t.Fatal("removed ban should no longer match")
	}
}

func TestMemoryServerBanRepoSweep(t *testing.T) {
	repo := newMemoryServerBanRepo()
	past := time.Now().Add(-time.Minute)
	future := time.Now().Add(time.Minute)

	_ = repo.Add(ServerBan{ID: "expired", ExpiresAt: &past})
	_ = repo.Add(ServerBan{ID: "live", ExpiresAt: &future})
	_ = repo.Add(ServerBan{ID: "permanent"})

	removed := repo.Sweep()
	if removed != 1 {
		t.Fatalf("Sweep() = %d, wanted 1", removed)
	}

	if _, found := repo.bans["expired"]; found {
		t.Error("expired ban should have been swept")
	}
	if _, found := repo.bans["live"]; !found {
		t.Error("unexpired ban should survive the sweep")
	}
	if _, found := repo.bans["permanent"]; !found {
		t.Error("non-expiring ban should survive the sweep")
	}

	if removed := repo.Sweep(); removed != 0 {
		t.Errorf("second Sweep() should find nothing left to remove, got %d", removed)
	}
}
