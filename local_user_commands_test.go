package main

import (
	"testing"

	"github.com/summercat/catbox/irc"
)

func TestAwayCommandSetsAndClears(t *testing.T) {
	u := newTestLocalUser(1, "alice")

	u.awayCommand(irc.Message{Params: []string{"gone fishing"}})
	if u.User.AwayMessage != "gone fishing" {
		t.Fatalf("AwayMessage = %q, wanted %q", u.User.AwayMessage, "gone fishing")
	}
	msg := <-u.WriteChan
	if msg.Command != "306" {
		t.Errorf("expected 306 RPL_NOWAWAY, got %s", msg.Command)
	}

	u.awayCommand(irc.Message{})
	if u.User.AwayMessage != "" {
		t.Fatalf("AwayMessage should be cleared, got %q", u.User.AwayMessage)
	}
	msg = <-u.WriteChan
	if msg.Command != "305" {
		t.Errorf("expected 305 RPL_UNAWAY, got %s", msg.Command)
	}
}

func TestIsonCommand(t *testing.T) {
	u := newTestLocalUser(1, "alice")
	bob := newTestLocalUser(2, "bob")

	cb := &Catbox{
		Config: Config{ServerName: "irc.example.org"},
		Nicks:  map[string]TS6UID{"alice": u.User.UID, "bob": bob.User.UID},
		Users:  map[TS6UID]*User{u.User.UID: u.User, bob.User.UID: bob.User},
	}
	u.Catbox = cb

	u.isonCommand(irc.Message{Params: []string{"bob", "carol"}})

	msg := <-u.WriteChan
	if msg.Command != "303" {
		t.Fatalf("expected 303 RPL_ISON, got %s", msg.Command)
	}
	if msg.Params[len(msg.Params)-1] != "bob" {
		t.Errorf("expected only bob reported online, got %q", msg.Params[len(msg.Params)-1])
	}
}

func TestUserhostCommandReportsOperAndAwayFlags(t *testing.T) {
	u := newTestLocalUser(1, "alice")
	bob := newTestLocalUser(2, "bob")
	bob.User.Modes = map[byte]struct{}{'o': {}}
	bob.User.AwayMessage = "out"
	bob.User.Username = "~bob"
	bob.User.Hostname = "host.example"

	cb := &Catbox{
		Config: Config{ServerName: "irc.example.org"},
		Nicks:  map[string]TS6UID{"bob": bob.User.UID},
		Users:  map[TS6UID]*User{bob.User.UID: bob.User},
	}
	u.Catbox = cb

	u.userhostCommand(irc.Message{Params: []string{"bob"}})

	msg := <-u.WriteChan
	if msg.Command != "302" {
		t.Fatalf("expected 302 RPL_USERHOST, got %s", msg.Command)
	}
	want := "bob*=-~bob@host.example"
	got := msg.Params[len(msg.Params)-1]
	if got != want {
		t.Errorf("userhost reply = %q, wanted %q", got, want)
	}
}
