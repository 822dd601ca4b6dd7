package main

import (
	"fmt"
	"time"

	"github.com/summercat/catbox/irc"
)

// RegistrationState tracks a client's progress through the pre-registration
// handshake described in the CONNECTION LIFECYCLE section: capability
// negotiation and SASL may interleave with NICK/USER/PASS in any order, but
// a client only becomes Registered once all of its required pieces (and any
// CAP END / SASL conclusion) have arrived.
type RegistrationState int

const (
	StateAccepted RegistrationState = iota
	StateCapNegotiating
	StatePassReceived
	StateNickReceived
	StateUserReceived
	StateAuthInProgress
	StateRegistered
	StateQuit
)

func (s RegistrationState) String() string {
	switch s {
	case StateAccepted:
		return "accepted"
	case StateCapNegotiating:
		return "cap-negotiating"
	case StatePassReceived:
		return "pass-received"
	case StateNickReceived:
		return "nick-received"
	case StateUserReceived:
		return "user-received"
	case StateAuthInProgress:
		return "auth-in-progress"
	case StateRegistered:
		return "registered"
	case StateQuit:
		return "quit"
	}
	return "unknown"
}

// ConnectionId is an opaque, server-local identifier for a client
// connection, stable across nick changes and independent of UID (which is
// assigned only once a client registers).
type ConnectionId uint64

// TS6UID is a user's globally unique TS6 identifier: the introducing
// server's TS6SID followed by six base36 characters allocated locally
// (see LocalUser.makeTS6UID). Stable for the life of the client, unlike its
// DisplayNick.
type TS6UID string

// User holds information about a user. It may be remote or local.
type User struct {
	ConnectionId ConnectionId

	DisplayNick string
	HopCount    int
	NickTS      int64
	Modes       map[byte]struct{}
	Username    string
	Hostname    string
	IP          string
	UID         TS6UID
	RealName    string

	// Secure is true if the client's connection to its local server is
	// TLS-protected. Only meaningful to check directly on a local user; for a
	// remote user it reflects what their server told us.
	Secure bool

	// CertFingerprint is the SHA-256 fingerprint of the client certificate
	// presented during the TLS handshake, normalized to uppercase hex with no
	// separators. Blank if the client did not present one.
	CertFingerprint string

	// Account is the services account name the client is logged in as, or
	// blank if not logged in.
	Account string

	// Away, if non-blank, is the client's AWAY message. Blank means not away.
	AwayMessage string

	// Bot marks a client that identified itself with the bot mode/flag.
	Bot bool

	ConnectedAt   time.Time
	LastActivity  time.Time

	RegistrationState RegistrationState

	// Channel name (canonicalized) to Channel.
	Channels map[string]*Channel

	// LocalUser set if this is a local user.
	LocalUser *LocalUser

	// This is the server we heard about the user from. It is not necessarily the
	// server they are on. It could be on a server linked to the one we are
	// linked to.
	ClosestServer *LocalServer

	// This is the server the user is connected to.
	Server *Server
}

func (u *User) String() string {
	return fmt.Sprintf("%s: %s", u.UID, u.nickUhost())
}

func (u *User) nickUhost() string {
	return fmt.Sprintf("%s!~%s@%s", u.DisplayNick, u.Username, u.Hostname)
}

func (u *User) isOperator() bool {
	_, exists := u.Modes['o']
	return exists
}

func (u *User) isAway() bool {
	return u.AwayMessage != ""
}

func (u *User) isInvisible() bool {
	_, exists := u.Modes['i']
	return exists
}

func (u *User) wantsWallops() bool {
	_, exists := u.Modes['w']
	return exists
}

func (u *User) isRegistered() bool {
	return u.RegistrationState == StateRegistered
}

func (u *User) isLoggedIn() bool {
	return u.Account != ""
}

func (u *User) onChannel(channel *Channel) bool {
	_, exists := u.Channels[channel.Name]
	return exists
}

// channelMember returns the user's own Member record on the given channel,
// if they're on it.
func (u *User) channelMember(channel *Channel) (*Member, bool) {
	if _, exists := u.Channels[channel.Name]; !exists {
		return nil, false
	}
	return channel.member(u.UID)
}

func (u *User) modesString() string {
	s := "+"
	for m := range u.Modes {
		s += string(m)
	}
	return s
}

// messageUser sends an IRC message to target, appearing to originate from
// u. Only has an effect if target is local; delivery to a remote target is
// the caller's responsibility (it must propagate to the right server).
func (u *User) messageUser(target *User, command string, params []string) {
	if !target.isLocal() {
		return
	}
	target.LocalUser.maybeQueueMessage(irc.Message{
		Prefix:  u.nickUhost(),
		Command: command,
		Params:  params,
	})
}

// matchesMask reports whether the user's username/hostname/IP match the
// given userMask/hostMask pair, as used for KLine application.
func (u *User) matchesMask(userMask, hostMask string) bool {
	if !matchMask(userMask, u.Username) {
		return false
	}
	return matchMask(hostMask, u.Hostname) || matchMask(hostMask, u.IP)
}

func (u *User) isLocal() bool {
	return u.LocalUser != nil
}

func (u *User) isRemote() bool {
	return !u.isLocal()
}
