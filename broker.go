package main

import "github.com/summercat/catbox/irc"

// The broker centralizes the handful of ways a message ever reaches more
// than one local connection. Every fan-out loop that used to be written
// inline at each call site (JOIN, PART, QUIT, NICK, TOPIC, KICK, ...) goes
// through one of these instead, so the dedup and except-sender rules live
// in one place rather than being re-derived at each site.

// sendToConnection delivers m to a single local client.
func (cb *Catbox) sendToConnection(id uint64, m irc.Message) {
	if lu, ok := cb.LocalUsers[id]; ok {
		lu.maybeQueueMessage(m)
	}
}

// sendToConnections delivers m to every id in ids, skipping any that are no
// longer connected.
func (cb *Catbox) sendToConnections(ids map[uint64]struct{}, m irc.Message) {
	for id := range ids {
		cb.sendToConnection(id, m)
	}
}

// sendToChannel delivers m to every local member of channel, resolving
// membership at call time. exceptUID, if non-empty, is skipped (e.g. the
// actor of a PRIVMSG who already sees its own echo from their client).
func (cb *Catbox) sendToChannel(channel *Channel, m irc.Message, exceptUID TS6UID) {
	for uid := range channel.Members {
		if uid == exceptUID {
			continue
		}
		member, ok := cb.Users[uid]
		if !ok || !member.isLocal() {
			continue
		}
		cb.sendToConnection(member.LocalUser.ID, m)
	}
}

// sendToChannels delivers m once to every distinct local member across all
// of channels, deduplicating recipients who are in more than one of them
// (e.g. a NICK change visible to several shared channels should only
// produce one message per observer).
func (cb *Catbox) sendToChannels(channels map[string]*Channel, m irc.Message, exceptUID TS6UID) {
	seen := map[TS6UID]struct{}{}
	for _, channel := range channels {
		for uid := range channel.Members {
			if uid == exceptUID {
				continue
			}
			if _, already := seen[uid]; already {
				continue
			}
			seen[uid] = struct{}{}

			member, ok := cb.Users[uid]
			if !ok || !member.isLocal() {
				continue
			}
			cb.sendToConnection(member.LocalUser.ID, m)
		}
	}
}

// broadcast delivers m to every registered local user.
func (cb *Catbox) broadcast(m irc.Message) {
	for _, lu := range cb.LocalUsers {
		lu.maybeQueueMessage(m)
	}
}

// sendToOperators delivers m to every local user holding +o.
func (cb *Catbox) sendToOperators(m irc.Message) {
	for _, oper := range cb.Opers {
		if oper.isLocal() {
			cb.sendToConnection(oper.LocalUser.ID, m)
		}
	}
}

// sendToServer delivers m to the direct link toward sid, consulting the
// link manager (§4.8) for the next hop. A blank/unknown sid is a no-op.
func (cb *Catbox) sendToServer(sid TS6SID, m irc.Message) {
	ls := cb.nextHop(sid)
	if ls == nil {
		return
	}
	ls.maybeQueueMessage(m)
}

// nextHop resolves the direct link to send toward in order to reach sid,
// consulting each server's ClosestServer (the direct link it was learned
// through). Returns nil if sid is unknown or is this server itself.
func (cb *Catbox) nextHop(sid TS6SID) *LocalServer {
	target, ok := cb.Servers[sid]
	if !ok {
		return nil
	}
	return target.ClosestServer
}

// propagateToServers relays m to every directly linked server except
// except, the split-horizon rule every S2S command applies so a message
// does not bounce back to the link it arrived on.
func (cb *Catbox) propagateToServers(except *LocalServer, m irc.Message) {
	for _, ls := range cb.LocalServers {
		if ls == except {
			continue
		}
		ls.maybeQueueMessage(m)
	}
}

// noticeSnomask sends a server notice to every local operator who has the
// given snomask letter set in their user modes (e.g. 'C' for client
// connect/disconnect notices). Operators without the letter, and any
// non-local oper entries, are skipped.
func (cb *Catbox) noticeSnomask(letter byte, msg string) {
	for _, oper := range cb.Opers {
		if !oper.isLocal() {
			continue
		}
		if _, exists := oper.Modes[letter]; !exists {
			continue
		}
		oper.LocalUser.serverNotice(msg)
	}
}
