package main

import (
	"crypto/subtle"
	"net"
	"strings"

	"github.com/summercat/catbox/irc"
)

// webircCommand implements the WEBIRC pre-registration command used by
// trusted HTTP/websocket gateways (kiwiirc's webircgateway and similar) to
// hand off a connecting browser user's real origin instead of leaving every
// such client appearing to come from the gateway's own address.
//
// WEBIRC <password> <gateway-name> <real-hostname> <real-ip> [:options]
func (c *LocalClient) webircCommand(m irc.Message) {
	if len(m.Params) < 4 {
		// 461 ERR_NEEDMOREPARAMS
		c.messageFromServer("461", []string{"WEBIRC", "Not enough parameters"})
		return
	}

	// Only meaningful before the client has told us anything about itself;
	// a gateway that is slow to send it should send it first.
	if c.WebIRCUsed || len(c.PreRegDisplayNick) > 0 || len(c.PreRegUser) > 0 {
		c.quit("WEBIRC not permitted now")
		return
	}

	password := m.Params[0]
	realHost := m.Params[2]
	realIPStr := m.Params[3]

	realIP := net.ParseIP(realIPStr)
	if realIP == nil {
		c.messageFromServer("ERROR", []string{"Invalid WEBIRC IP"})
		return
	}

	if !c.matchingWebIRCGateway(password) {
		c.quit("Invalid WEBIRC credentials")
		return
	}

	c.Conn.IP = realIP
	c.Hostname = realHost
	c.WebIRCUsed = true

	if len(m.Params) >= 5 {
		for _, opt := range strings.Split(strings.TrimPrefix(m.Params[4], ":"), " ") {
			if strings.EqualFold(opt, "secure") {
				c.Conn.Secure = true
			}
		}
	}

}

// matchingWebIRCGateway reports whether password matches some configured
// gateway whose allowed Hosts includes the address this connection is
// actually coming from (the gateway's own address, not the spoofed one).
// Every configured gateway's password is compared, even after a match, so
// the time taken does not reveal which gateway (if any) owns the password.
func (c *LocalClient) matchingWebIRCGateway(password string) bool {
	found := false

	for _, gw := range c.Catbox.Config.WebIRCGateways {
		passOK := subtle.ConstantTimeCompare([]byte(password), []byte(gw.Pass)) == 1
		hostOK := gatewayHostAllowed(gw.Hosts, c.Conn.IP)

		if passOK && hostOK {
			found = true
		}
	}

	return found
}

// gatewayHostAllowed reports whether ip matches any entry in hosts: an
// exact IP, a CIDR range, or a "*" wildcard allowing any address (useful
// only in test/dev configuration).
func gatewayHostAllowed(hosts []string, ip net.IP) bool {
	for _, h := range hosts {
		if h == "*" {
			return true
		}
		if strings.Contains(h, "/") {
			_, ipNet, err := net.ParseCIDR(h)
			if err == nil && ipNet.Contains(ip) {
				return true
			}
			continue
		}
		if candidate := net.ParseIP(h); candidate != nil && candidate.Equal(ip) {
			return true
		}
	}
	return false
}
