package main

import "testing"

func TestCanonicalizeNick(t *testing.T) {
	tests := []struct {
		input  string
		output string
	}{
		{"Alice", "alice"},
		{"Bob[Away]", "bob[away]"},
		{"Bob{Away}", "bob[away]"},
		{"Tilde~User", "tilde^user"},
		{"Pipe|User", "pipe\\user"},
	}

	for _, test := range tests {
		got := canonicalizeNick(test.input)
		if got != test.output {
			t.Errorf("canonicalizeNick(%s) = %s, wanted %s", test.input, got,
				test.output)
		}
	}
}

func TestIsValidNick(t *testing.T) {
	tests := []struct {
		nick  string
		valid bool
	}{
		{"Alice", true},
		{"_alice", true},
		{"[alice]", true},
		{"alice-1", true},
		{"1alice", false},
		{"", false},
		{"thisnicknameisexactlythirtycharsx", false},
		{"has space", false},
	}

	for _, test := range tests {
		got := isValidNick(maxNickLength, test.nick)
		if got != test.valid {
			t.Errorf("isValidNick(%s) = %v, wanted %v", test.nick, got, test.valid)
		}
	}
}

func TestIsValidChannel(t *testing.T) {
	tests := []struct {
		channel string
		valid   bool
	}{
		{"#dev", true},
		{"&local", true},
		{"dev", false},
		{"#has space", false},
		{"#has,comma", false},
		{"", false},
	}

	for _, test := range tests {
		got := isValidChannel(test.channel)
		if got != test.valid {
			t.Errorf("isValidChannel(%s) = %v, wanted %v", test.channel, got,
				test.valid)
		}
	}
}

func TestMatchMask(t *testing.T) {
	tests := []struct {
		mask   string
		target string
		match  bool
	}{
		{"*!*@evil.host", "alice!~alice@evil.host", true},
		{"*!*@evil.host", "alice!~alice@good.host", false},
		{"alice!*@*", "alice!~alice@good.host", true},
		{"a?ice!*@*", "alice!~alice@good.host", true},
		{"bob!*@*", "alice!~alice@good.host", false},
		{"ALICE!*@*", "alice!~alice@good.host", true},
	}

	for _, test := range tests {
		got := matchMask(test.mask, test.target)
		if got != test.match {
			t.Errorf("matchMask(%s, %s) = %v, wanted %v", test.mask, test.target,
				got, test.match)
		}
	}
}
