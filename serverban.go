package main

import (
	"fmt"
	"net"
	"time"
)

// ServerBanType distinguishes the kinds of network ban a server can carry.
type ServerBanType int

const (
	BanKLine ServerBanType = iota
	BanGLine
	BanZLine
	BanJupe
)

// ServerBan is a single network ban entry: a KLine/GLine/ZLine (user@host,
// or bare IP for ZLine) or a Jupe (reserved server/nick name).
type ServerBan struct {
	ID        string
	Type      ServerBanType
	UserMask  string
	HostMask  string
	Reason    string
	SetBy     string
	CreatedAt time.Time
	ExpiresAt *time.Time
}

// KLine is kept as a thin alias of the historical wire shape (user@host +
// reason) that our S2S handling already speaks in ENCAP KLINE/UNKLINE; it is
// what addAndApplyKLine/removeKLine accept and is backed by the ServerBan
// store.
type KLine struct {
	UserMask string
	HostMask string
	Reason   string
}

// active reports whether the ban applies right now.
func (b ServerBan) active() bool {
	return b.ExpiresAt == nil || b.ExpiresAt.After(time.Now())
}

func (b ServerBan) matches(ip net.IP, host, user string) bool {
	if !b.active() {
		return false
	}
	if !matchMask(b.UserMask, user) {
		return false
	}
	if matchMask(b.HostMask, host) {
		return true
	}
	if ip != nil && matchMask(b.HostMask, ip.String()) {
		return true
	}
	return false
}

// ServerBanRepo is the storage contract for network bans, consulted on
// connection admission and registration.
type ServerBanRepo interface {
	Add(ban ServerBan) error
	Remove(id string) error
	LookupMatching(ip net.IP, host, user string) (ServerBan, bool)

	// Sweep deletes every ban whose ExpiresAt has passed and returns how
	// many it removed, so the caller can fold that count into a metric.
	Sweep() int
}

// memoryServerBanRepo is the default in-memory ServerBanRepo. Catbox owns
// one and serializes all access to it on the event loop goroutine, so it
// needs no internal locking.
type memoryServerBanRepo struct {
	bans map[string]ServerBan
}

func newMemoryServerBanRepo() *memoryServerBanRepo {
	return &memoryServerBanRepo{bans: make(map[string]ServerBan)}
}

func (r *memoryServerBanRepo) Add(ban ServerBan) error {
	if ban.ID == "" {
		ban.ID = fmt.Sprintf("%s@%s", ban.UserMask, ban.HostMask)
	}
	r.bans[ban.ID] = ban
	return nil
}

func (r *memoryServerBanRepo) Remove(id string) error {
	if _, exists := r.bans[id]; !exists {
		return fmt.Errorf("no such ban: %s", id)
	}
	delete(r.bans, id)
	return nil
}

func (r *memoryServerBanRepo) LookupMatching(ip net.IP, host, user string) (ServerBan, bool) {
	for _, b := range r.bans {
		if b.matches(ip, host, user) {
			return b, true
		}
	}
	return ServerBan{}, false
}

func (r *memoryServerBanRepo) Sweep() int {
	removed := 0
	for id, b := range r.bans {
		if !b.active() {
			delete(r.bans, id)
			removed++
		}
	}
	return removed
}

func (r *memoryServerBanRepo) klineID(userMask, hostMask string) string {
	return fmt.Sprintf("%s@%s", userMask, hostMask)
}

// addAndApplyKLine records a KLine and disconnects any already-connected
// local user it matches.
func (cb *Catbox) addAndApplyKLine(kline KLine, source, reason string) {
	_ = cb.BanRepo.Add(ServerBan{
		ID:        cb.BanRepo.(*memoryServerBanRepo).klineID(kline.UserMask, kline.HostMask),
		Type:      BanKLine,
		UserMask:  kline.UserMask,
		HostMask:  kline.HostMask,
		Reason:    reason,
		SetBy:     source,
		CreatedAt: time.Now(),
	})

	cb.noticeLocalOpers(fmt.Sprintf("%s added KLINE for %s@%s: %s",
		source, kline.UserMask, kline.HostMask, reason))

	for _, u := range cb.Users {
		if !u.isLocal() {
			continue
		}
		if !u.matchesMask(kline.UserMask, kline.HostMask) {
			continue
		}
		u.LocalUser.quit(fmt.Sprintf("K-Lined: %s", reason), true)
	}
}

// removeKLine removes a KLine matching the given masks.
func (cb *Catbox) removeKLine(userMask, hostMask, source string) {
	repo := cb.BanRepo.(*memoryServerBanRepo)
	id := repo.klineID(userMask, hostMask)
	if err := cb.BanRepo.Remove(id); err != nil {
		cb.noticeLocalOpers(fmt.Sprintf("%s tried to remove unknown KLINE %s@%s",
			source, userMask, hostMask))
		return
	}
	cb.noticeLocalOpers(fmt.Sprintf("%s removed KLINE for %s@%s", source, userMask,
		hostMask))
}
