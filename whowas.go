package main

import "time"

// WhoWasEntry is a single historical record of a nickname that has since
// quit or changed nick, answering the WHOWAS command.
type WhoWasEntry struct {
	Nick     string
	Username string
	Hostname string
	RealName string
	Server   string
	At       time.Time
}

// maxWhoWasPerNick bounds how many historical records we keep for a single
// nickname, oldest dropped first.
const maxWhoWasPerNick = 10

// recordWhoWas appends a WHOWAS history entry for u's current identity,
// called right before its nick stops being reachable (on QUIT, and on NICK
// change for the nick being given up).
func (cb *Catbox) recordWhoWas(u *User) {
	serverName := cb.Config.ServerName
	if u.Server != nil {
		serverName = u.Server.Name
	}

	entry := WhoWasEntry{
		Nick:     u.DisplayNick,
		Username: u.Username,
		Hostname: u.Hostname,
		RealName: u.RealName,
		Server:   serverName,
		At:       time.Now(),
	}

	key := canonicalizeNick(u.DisplayNick)
	history := append(cb.WhoWas[key], entry)
	if len(history) > maxWhoWasPerNick {
		history = history[len(history)-maxWhoWasPerNick:]
	}
	cb.WhoWas[key] = history
}
