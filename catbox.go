package main

import (
	"fmt"
	"log"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/summercat/catbox/irc"
)

// EventType identifies what kind of Event was sent to the Catbox event
// loop.
type EventType int

const (
	NewClientEvent EventType = iota
	DeadClientEvent
	MessageFromClientEvent
)

// Event is everything that can happen that the single event loop goroutine
// needs to react to: a new connection accepted, a connection dying, or a
// complete IRC message parsed off one. All server/channel/user state is
// mutated only from inside the goroutine that drains these off Catbox's
// event channel, so nothing here needs a lock.
type Event struct {
	Type EventType

	Client *LocalClient

	Conn net.Conn

	Message irc.Message
}

// Catbox is the top level structure holding all server state. A single
// goroutine (the one running Catbox.loop) owns every field below and is the
// only goroutine permitted to read or write them; every other goroutine
// (one reader and one writer per connection) communicates with it only by
// sending on events or EventsChan.
type Catbox struct {
	Config Config

	// Listeners we're accepting connections on.
	listeners []net.Listener

	// ConnectionIdCounter hands out unique ConnectionId/LocalClient IDs.
	ConnectionIdCounter uint64

	LocalClients map[uint64]*LocalClient
	LocalUsers   map[uint64]*LocalUser
	LocalServers map[uint64]*LocalServer

	Users    map[TS6UID]*User
	Nicks    map[string]TS6UID
	Opers    map[TS6UID]*User
	Channels map[string]*Channel
	Servers  map[TS6SID]*Server

	// WhoWas holds WHOWAS history, keyed by canonicalized nick.
	WhoWas map[string][]WhoWasEntry

	BanRepo ServerBanRepo

	// BansExpiredTotal counts server bans the housekeeping sweep has
	// reaped since startup. Not wired to any external metrics exporter;
	// WHOIS/STATS-style introspection can read it directly off Catbox.
	BansExpiredTotal int

	Accounts  AccountService
	Operators OperatorConfig

	// connAdmission and dnsbl guard connection accept; both are touched only
	// from acceptLoop goroutines and carry their own locks, independent of
	// the single-goroutine ownership the rest of this struct relies on.
	connAdmission *connAdmissionLimiter
	dnsbl         *dnsblCache

	// EventsChan is how every other goroutine talks to us.
	EventsChan chan Event

	ShutdownChan chan struct{}
	shuttingDown bool

	WG sync.WaitGroup
}

// NewCatbox creates a Catbox in its initial, pre-Start state.
func NewCatbox(configFile string) (*Catbox, error) {
	cb := &Catbox{
		LocalClients: make(map[uint64]*LocalClient),
		LocalUsers:   make(map[uint64]*LocalUser),
		LocalServers: make(map[uint64]*LocalServer),

		Users:    make(map[TS6UID]*User),
		Nicks:    make(map[string]TS6UID),
		Opers:    make(map[TS6UID]*User),
		Channels: make(map[string]*Channel),
		Servers:  make(map[TS6SID]*Server),

		WhoWas: make(map[string][]WhoWasEntry),

		BanRepo:   newMemoryServerBanRepo(),
		Accounts:  newMemoryAccountService(),
		Operators: newFlatOperatorConfig(),

		dnsbl: newDNSBLCache(),

		EventsChan:   make(chan Event, 1024),
		ShutdownChan: make(chan struct{}),
	}

	if err := cb.checkAndParseConfig(configFile); err != nil {
		return nil, errors.Wrap(err, "unable to load config")
	}

	cb.connAdmission = newConnAdmissionLimiter(cb.Config.RateLimit.ConnectionsPerMinute,
		cb.Config.RateLimit.ConnectionsBurst)

	if op, ok := cb.Operators.(*flatOperatorConfig); ok {
		op.load(cb.Config.Opers)
	}

	return cb, nil
}

// Start begins listening for connections and runs the event loop. It
// blocks until the server shuts down.
func (cb *Catbox) Start() error {
	listener, err := net.Listen("tcp", net.JoinHostPort(cb.Config.ListenHost,
		cb.Config.ListenPort))
	if err != nil {
		return fmt.Errorf("unable to listen: %s", err)
	}
	cb.listeners = append(cb.listeners, listener)

	cb.WG.Add(1)
	go cb.acceptLoop(listener)

	if cb.Config.TLSListenPort != "" && cb.Config.TLSCert != "" && cb.Config.TLSKey != "" {
		tlsListener, err := newTLSListener(cb.Config.ListenHost, cb.Config.TLSListenPort,
			cb.Config.TLSCert, cb.Config.TLSKey)
		if err != nil {
			return fmt.Errorf("unable to listen (TLS): %s", err)
		}
		cb.listeners = append(cb.listeners, tlsListener)
		cb.WG.Add(1)
		go cb.acceptLoop(tlsListener)
	}

	cb.WG.Add(1)
	go cb.wakeLoop()

	cb.loop()

	cb.WG.Wait()
	return nil
}

func (cb *Catbox) acceptLoop(listener net.Listener) {
	defer cb.WG.Done()

	for {
		conn, err := listener.Accept()
		if err != nil {
			if cb.isShuttingDown() {
				return
			}
			log.Printf("Accept error: %s", err)
			continue
		}

		ip := remoteIP(conn)

		if !cb.connAdmission.allow(ip) {
			log.Printf("Rejecting connection from %s: connection rate exceeded", ip)
			_ = conn.Close()
			continue
		}

		if listed, reason := cb.checkDNSBL(ip); listed {
			log.Printf("Rejecting connection from %s: DNSBL listed: %s", ip, reason)
			_ = conn.Close()
			continue
		}

		cb.newEvent(Event{Type: NewClientEvent, Conn: conn})
	}
}

// wakeLoop periodically wakes the event loop to run housekeeping (PING
// idle clients, expire bans) even when nothing else is happening.
func (cb *Catbox) wakeLoop() {
	defer cb.WG.Done()

	ticker := time.NewTicker(cb.Config.WakeupTime)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			cb.newEvent(Event{Type: -1})
		case <-cb.ShutdownChan:
			return
		}
	}
}

// newEvent sends an event to the event loop. Safe to call from any
// goroutine.
func (cb *Catbox) newEvent(e Event) {
	if cb.isShuttingDown() {
		return
	}
	select {
	case cb.EventsChan <- e:
	case <-cb.ShutdownChan:
	}
}

// loop is the single goroutine that owns every piece of server state. It
// drains events one at a time, so nothing it touches needs a lock.
func (cb *Catbox) loop() {
	for e := range cb.EventsChan {
		switch e.Type {
		case NewClientEvent:
			cb.handleNewClient(e.Conn)
		case DeadClientEvent:
			cb.handleDeadClient(e.Client)
		case MessageFromClientEvent:
			cb.handleClientMessage(e.Client, e.Message)
		default:
			cb.checkIdleClients()
		}

		if cb.shuttingDown && len(cb.LocalClients) == 0 &&
			len(cb.LocalUsers) == 0 && len(cb.LocalServers) == 0 {
			close(cb.ShutdownChan)
			return
		}
	}
}

func (cb *Catbox) handleNewClient(conn net.Conn) {
	cb.ConnectionIdCounter++
	id := cb.ConnectionIdCounter

	c := NewLocalClient(cb, id, conn)
	cb.LocalClients[id] = c

	cb.WG.Add(2)
	go c.readLoop()
	go c.writeLoop()
}

func (cb *Catbox) handleDeadClient(c *LocalClient) {
	if lu, ok := cb.LocalUsers[c.ID]; ok {
		lu.quit("Connection reset", true)
		return
	}
	if ls, ok := cb.LocalServers[c.ID]; ok {
		ls.quit("Connection reset")
		return
	}
	c.quit("Connection reset")
}

func (cb *Catbox) handleClientMessage(c *LocalClient, m irc.Message) {
	// Linked servers are trusted; flood control exists to stop an abusive or
	// compromised end-user client, not a peer we administer ourselves.
	if ls, ok := cb.LocalServers[c.ID]; ok {
		ls.handleMessage(m)
		return
	}

	if !c.chargeCommand(m.Command) {
		return
	}

	if lu, ok := cb.LocalUsers[c.ID]; ok {
		lu.handleMessage(m)
		return
	}
	c.handleMessage(m)
}

// checkIdleClients pings clients that have been idle too long and drops
// ones that haven't answered a PING within DeadTime. It also sweeps expired
// server bans, since both are housekeeping done on the same wakeup tick.
func (cb *Catbox) checkIdleClients() {
	cb.BansExpiredTotal += cb.BanRepo.Sweep()

	now := time.Now()

	for _, lu := range cb.LocalUsers {
		if now.Sub(lu.getLastActivityTime()) > cb.Config.DeadTime {
			lu.quit("Ping timeout", true)
			continue
		}
		if now.Sub(lu.getLastActivityTime()) > cb.Config.PingTime &&
			now.Sub(lu.getLastPingTime()) > cb.Config.PingTime {
			lu.maybeQueueMessage(irc.Message{
				Command: "PING",
				Params:  []string{cb.Config.ServerName},
			})
			lu.setLastPingTime(now)
		}
	}

	for _, ls := range cb.LocalServers {
		if now.Sub(ls.LastActivityTime) > cb.Config.DeadTime*4 {
			ls.quit("Ping timeout")
			continue
		}
		if now.Sub(ls.LastActivityTime) > cb.Config.PingTime &&
			now.Sub(ls.LastPingTime) > cb.Config.PingTime {
			ls.maybeQueueMessage(irc.Message{
				Command: "PING",
				Params:  []string{cb.Config.ServerName, string(cb.Config.TS6SID)},
			})
			ls.LastPingTime = now
		}
	}
}

func (cb *Catbox) isShuttingDown() bool {
	return cb.shuttingDown
}

// shutdown begins graceful shutdown: stop accepting new work and tell every
// local connection why.
func (cb *Catbox) shutdown(reason string) {
	if cb.shuttingDown {
		return
	}
	cb.shuttingDown = true

	for _, l := range cb.listeners {
		_ = l.Close()
	}

	for _, c := range cb.LocalClients {
		c.quit(reason)
	}
	for _, lu := range cb.LocalUsers {
		lu.quit(reason, true)
	}
	for _, ls := range cb.LocalServers {
		ls.quit(reason)
	}

	if len(cb.LocalClients) == 0 && len(cb.LocalUsers) == 0 &&
		len(cb.LocalServers) == 0 {
		close(cb.ShutdownChan)
	}

	close(cb.EventsChan)
}

func (cb *Catbox) getClientID() uint64 {
	cb.ConnectionIdCounter++
	return cb.ConnectionIdCounter
}

func (cb *Catbox) isLinkedToServer(name string) bool {
	for _, s := range cb.Servers {
		if s.Name == name {
			return true
		}
	}
	return false
}

// issueKill forcibly disconnects a user, local or remote, propagating KILL
// to every linked server.
func (cb *Catbox) issueKill(u *User, reason string) {
	if u.isLocal() {
		u.LocalUser.quit(reason, false)
	} else {
		delete(cb.Users, u.UID)
		delete(cb.Nicks, canonicalizeNick(u.DisplayNick))
		if u.isOperator() {
			delete(cb.Opers, u.UID)
		}
	}

	for _, server := range cb.LocalServers {
		server.maybeQueueMessage(irc.Message{
			Prefix:  string(cb.Config.TS6SID),
			Command: "KILL",
			Params:  []string{string(u.UID), fmt.Sprintf("%s (%s)", cb.Config.ServerName, reason)},
		})
	}
}

// noticeOpers sends a server notice to all operators, local and remote
// (remote ones only hear about it if their own server relays it; we send
// WALLOPS-style only to local ones here and rely on propagation elsewhere
// for cross-server notices of this kind).
func (cb *Catbox) noticeOpers(msg string) {
	cb.noticeLocalOpers(msg)
}

// noticeLocalOpers logs msg and sends it as a server NOTICE to every local
// operator. No user mode is consulted.
func (cb *Catbox) noticeLocalOpers(msg string) {
	log.Print(msg)
	for _, u := range cb.Opers {
		if !u.isLocal() {
			continue
		}
		u.LocalUser.serverNotice(msg)
	}
}

// createWHOISResponse builds the numeric reply sequence for a WHOIS of
// target as seen by source, addressed with source's nick (used to answer a
// remote server's WHOIS request on target's behalf).
func (cb *Catbox) createWHOISResponse(target, source *User, full bool) []irc.Message {
	var msgs []irc.Message

	reply := func(numeric string, params ...string) {
		allParams := append([]string{source.DisplayNick}, params...)
		msgs = append(msgs, irc.Message{
			Prefix:  cb.Config.ServerName,
			Command: numeric,
			Params:  allParams,
		})
	}

	// 311 RPL_WHOISUSER
	reply("311", target.DisplayNick, target.Username, target.Hostname, "*",
		target.RealName)

	// 312 RPL_WHOISSERVER
	serverName := cb.Config.ServerName
	if target.Server != nil {
		serverName = target.Server.Name
	}
	reply("312", target.DisplayNick, serverName, cb.Config.ServerInfo)

	if target.isAway() {
		// 301 RPL_AWAY
		reply("301", target.DisplayNick, target.AwayMessage)
	}

	if target.isOperator() {
		// 313 RPL_WHOISOPERATOR
		reply("313", target.DisplayNick, "is an IRC operator")
	}

	if full {
		var channels string
		for name, ch := range target.Channels {
			if ch.hasMode(ChanSecret) && !source.onChannel(ch) {
				continue
			}
			if len(channels) > 0 {
				channels += " "
			}
			if m, ok := ch.member(target.UID); ok {
				channels += string(m.Modes.Prefix())
			}
			channels += name
		}
		if len(channels) > 0 {
			// 319 RPL_WHOISCHANNELS
			reply("319", target.DisplayNick, channels)
		}
	}

	// 318 RPL_ENDOFWHOIS
	reply("318", target.DisplayNick, "End of WHOIS list")

	return msgs
}

// errorToQuitMessage converts a connection-level error into the message we
// give the client and any linked servers as the reason it disconnected.
func (cb *Catbox) errorToQuitMessage(err error) string {
	if err == nil {
		return "I/O error"
	}

	msg := err.Error()
	if msg == "" {
		return "I/O error"
	}

	if strings.Contains(msg, "i/o timeout") {
		return fmt.Sprintf("Ping timeout: %d seconds", int(cb.Config.DeadTime.Seconds()))
	}

	if strings.Contains(msg, "connection reset by peer") {
		return "Connection reset by peer"
	}

	return msg
}
