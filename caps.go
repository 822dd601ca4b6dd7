package main

import (
	"sort"
	"strings"

	"github.com/summercat/catbox/irc"
)

// saslMechanisms lists the mechanisms this server will advertise under the
// sasl= capability value, in the order we prefer clients try them.
var saslMechanisms = []string{"SCRAM-SHA-256", "EXTERNAL", "PLAIN"}

// capValues gives the LS 302 value for each capability that carries one.
// Capabilities absent from this map are plain (boolean) caps.
func (cb *Catbox) capValues() map[string]string {
	return map[string]string{
		"sasl": strings.Join(saslMechanisms, ","),
	}
}

// supportedCapabilities is the authoritative capability set this server
// implements.
var supportedCapabilities = []string{
	"cap-notify",
	"multi-prefix",
	"server-time",
	"away-notify",
	"extended-join",
	"echo-message",
	"batch",
	"labeled-response",
	"account-tag",
	"account-notify",
	"message-tags",
	"setname",
	"chghost",
	"invite-notify",
	"standard-replies",
	"draft/chathistory",
	"draft/event-playback",
	"userhost-in-names",
	"sasl",
}

func isSupportedCapability(name string) bool {
	for _, c := range supportedCapabilities {
		if c == name {
			return true
		}
	}
	return false
}

// lsTokens renders the full CAP LS token list, including values (e.g.
// sasl=SCRAM-SHA-256,EXTERNAL,PLAIN) for capabilities that have one.
func (cb *Catbox) lsTokens() []string {
	values := cb.capValues()
	tokens := make([]string, 0, len(supportedCapabilities))
	for _, name := range supportedCapabilities {
		if v, ok := values[name]; ok {
			tokens = append(tokens, name+"="+v)
		} else {
			tokens = append(tokens, name)
		}
	}
	sort.Strings(tokens)
	return tokens
}

// capCommand handles the CAP LS, LIST, REQ and END subcommands during and
// after registration. LS and REQ hold registration back until CAP END,
// which calls maybeCompleteRegistration() itself.
func (c *LocalClient) capCommand(m irc.Message) {
	if len(m.Params) == 0 {
		c.messageFromServer("461", []string{"CAP", "Not enough parameters"})
		return
	}

	sub := strings.ToUpper(m.Params[0])

	switch sub {
	case "LS":
		c.CapNegotiating = true
		if len(m.Params) >= 2 && m.Params[1] == "302" {
			c.Cap302 = true
		}
		c.maybeQueueMessage(irc.Message{
			Command: "CAP",
			Params:  []string{"*", "LS", strings.Join(c.Catbox.lsTokens(), " ")},
		})

	case "LIST":
		enabled := make([]string, 0, len(c.EnabledCaps))
		for name := range c.EnabledCaps {
			enabled = append(enabled, name)
		}
		sort.Strings(enabled)
		c.maybeQueueMessage(irc.Message{
			Command: "CAP",
			Params:  []string{"*", "LIST", strings.Join(enabled, " ")},
		})

	case "REQ":
		c.CapNegotiating = true
		if len(m.Params) < 2 {
			c.messageFromServer("461", []string{"CAP", "Not enough parameters"})
			return
		}
		requested := strings.Fields(m.Params[1])

		// "Unknown requested caps NAK atomically (whole request rejected)."
		ok := true
		for _, name := range requested {
			name = strings.TrimPrefix(name, "-")
			if !isSupportedCapability(name) {
				ok = false
				break
			}
			if name == "sasl" && !c.Conn.Secure && !c.Catbox.Config.AllowInsecureSASL {
				ok = false
				break
			}
		}

		if !ok {
			c.maybeQueueMessage(irc.Message{
				Command: "CAP",
				Params:  []string{"*", "NAK", m.Params[1]},
			})
			return
		}

		for _, name := range requested {
			if strings.HasPrefix(name, "-") {
				delete(c.EnabledCaps, strings.TrimPrefix(name, "-"))
				continue
			}
			c.EnabledCaps[name] = struct{}{}
		}

		c.maybeQueueMessage(irc.Message{
			Command: "CAP",
			Params:  []string{"*", "ACK", m.Params[1]},
		})

	case "END":
		c.CapNegotiating = false
		c.maybeCompleteRegistration()

	default:
		// 410 ERR_INVALIDCAPCMD isn't universally implemented; ignore silently
		// as most servers do for forward compatibility.
	}
}

func (c *LocalClient) hasCap(name string) bool {
	_, ok := c.EnabledCaps[name]
	return ok
}
