package main

import (
	"net"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// connAdmissionLimiter guards how fast new connections are accepted per
// source address. It is consulted from acceptLoop, which runs on its own
// goroutine outside the single event-loop goroutine that owns the rest of
// Catbox's state, so it carries its own lock.
type connAdmissionLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter

	perMinute float64
	burst     int
}

func newConnAdmissionLimiter(perMinute float64, burst int) *connAdmissionLimiter {
	return &connAdmissionLimiter{
		limiters:  make(map[string]*rate.Limiter),
		perMinute: perMinute,
		burst:     burst,
	}
}

// remoteIP extracts the bare IP from a net.Conn's remote address, used
// before we've wrapped the connection in our own Conn type.
func remoteIP(conn net.Conn) net.IP {
	host, _, err := net.SplitHostPort(conn.RemoteAddr().String())
	if err != nil {
		return net.IPv4zero
	}
	return net.ParseIP(host)
}

// admissionKey buckets an IPv6 address by its /64 (the usual unit a single
// residential or cloud customer is assigned) and an IPv4 address by itself.
func admissionKey(ip net.IP) string {
	if v4 := ip.To4(); v4 != nil {
		return v4.String()
	}
	v6 := ip.To16()
	if v6 == nil {
		return ip.String()
	}
	prefix := make(net.IP, net.IPv6len)
	copy(prefix, v6[:8])
	return prefix.String() + "/64"
}

// allow reports whether a new connection from ip should be admitted.
// Loopback is always exempt, since it is link monitoring, not a stranger.
func (l *connAdmissionLimiter) allow(ip net.IP) bool {
	if l.perMinute <= 0 {
		return true
	}
	if ip.IsLoopback() {
		return true
	}

	key := admissionKey(ip)

	l.mu.Lock()
	lim, ok := l.limiters[key]
	if !ok {
		lim = rate.NewLimiter(rate.Limit(l.perMinute/60.0), l.burst)
		l.limiters[key] = lim
	}
	l.mu.Unlock()

	return lim.Allow()
}

// commandPenalty is how many penalty units (1 unit = 100ms of ircd-style
// flood penalty) a command costs to process. Values follow the classic
// ratbox/charybdis penalty table: cheap keepalive commands are nearly free,
// commands that fan out to other clients or do lookups cost more.
func commandPenalty(command string) int {
	switch command {
	case "PING", "PONG":
		return 1
	case "PRIVMSG", "NOTICE":
		return 10
	case "JOIN", "PART":
		return 15
	case "MODE":
		return 20
	case "WHO", "WHOIS", "LIST":
		return 30
	default:
		return 10
	}
}

// maxFloodViolations is how many times in a row a connection may have a
// command deferred for insufficient penalty credit before we give up on it
// and disconnect as flooding.
const maxFloodViolations = 3

// commandLimiter lazily creates the per-connection command credit bucket.
// Burst and refill rate are both expressed in penalty units (commandPenalty
// scale), so a config of one command/sec at burst 10 refills 10 units a
// second (one PRIVMSG per second, or one PONG every 100ms, in steady state)
// with room for a burst of up to 100 units.
func (c *LocalClient) commandLimiter() *rate.Limiter {
	if c.cmdLimiter == nil {
		cfg := c.Catbox.Config.RateLimit
		c.cmdLimiter = rate.NewLimiter(rate.Limit(cfg.CommandsPerSecond*10), cfg.CommandsBurst*10)
	}
	return c.cmdLimiter
}

// chargeCommand debits the cost of processing command from the client's
// flood credit. It returns false if the command should not be processed
// right now; the caller must not act on the message in that case. A client
// that keeps running out of credit is disconnected outright rather than
// queued, since queuing would just move the flood into our own memory.
func (c *LocalClient) chargeCommand(command string) bool {
	if c.Catbox.Config.RateLimit.CommandsPerSecond <= 0 {
		return true
	}

	if c.commandLimiter().AllowN(time.Now(), commandPenalty(command)) {
		c.floodViolations = 0
		return true
	}

	c.floodViolations++
	if c.floodViolations > maxFloodViolations {
		c.quitAny("Excess Flood")
		return false
	}

	c.messageFromServer("NOTICE", []string{"Flood warning: you are sending commands too quickly"})
	return false
}

// quitAny disconnects the client regardless of what registration stage it
// is at, since flood control can trip before a User/LocalServer has been
// created around this LocalClient.
func (c *LocalClient) quitAny(msg string) {
	if lu, ok := c.Catbox.LocalUsers[c.ID]; ok {
		lu.quit(msg, true)
		return
	}
	if ls, ok := c.Catbox.LocalServers[c.ID]; ok {
		ls.quit(msg)
		return
	}
	c.quit(msg)
}

// dnsblCacheEntry remembers a reverse-DNS blacklist verdict for an IP so we
// don't re-query the zone for every reconnect within the TTL.
type dnsblCacheEntry struct {
	listed    bool
	reason    string
	expiresAt time.Time
}

const dnsblCacheTTL = 15 * time.Minute

// dnsblCache is consulted/populated only from acceptLoop goroutines, so
// like connAdmissionLimiter it carries its own lock rather than going
// through the event loop.
type dnsblCache struct {
	mu      sync.Mutex
	entries map[string]dnsblCacheEntry
}

func newDNSBLCache() *dnsblCache {
	return &dnsblCache{entries: make(map[string]dnsblCacheEntry)}
}

// checkDNSBL reverses ip and queries every configured zone, short-circuiting
// on the first hit. It never blocks longer than dnsblLookupTimeout per zone.
func (cb *Catbox) checkDNSBL(ip net.IP) (bool, string) {
	v4 := ip.To4()
	if v4 == nil || len(cb.Config.DNSBLs) == 0 {
		return false, ""
	}

	key := v4.String()

	cb.dnsbl.mu.Lock()
	if entry, ok := cb.dnsbl.entries[key]; ok && time.Now().Before(entry.expiresAt) {
		cb.dnsbl.mu.Unlock()
		return entry.listed, entry.reason
	}
	cb.dnsbl.mu.Unlock()

	reversed := reverseIPv4(v4)

	for _, zone := range cb.Config.DNSBLs {
		query := reversed + "." + zone.Zone
		addrs, err := net.LookupHost(query)
		if err != nil || len(addrs) == 0 {
			continue
		}

		cb.dnsbl.mu.Lock()
		cb.dnsbl.entries[key] = dnsblCacheEntry{
			listed:    true,
			reason:    zone.Reason,
			expiresAt: time.Now().Add(dnsblCacheTTL),
		}
		cb.dnsbl.mu.Unlock()
		return true, zone.Reason
	}

	cb.dnsbl.mu.Lock()
	cb.dnsbl.entries[key] = dnsblCacheEntry{expiresAt: time.Now().Add(dnsblCacheTTL)}
	cb.dnsbl.mu.Unlock()
	return false, ""
}

// reverseIPv4 turns 1.2.3.4 into 4.3.2.1, the form DNSBL zones expect a
// query to be prefixed with.
func reverseIPv4(ip net.IP) string {
	return strconv.Itoa(int(ip[3])) + "." + strconv.Itoa(int(ip[2])) + "." +
		strconv.Itoa(int(ip[1])) + "." + strconv.Itoa(int(ip[0]))
}
