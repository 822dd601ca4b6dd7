// Package irc provides encoding and decoding of IRC protocol messages,
// including IRCv3 message tags. It is useful for implementing clients and
// servers.
package irc

import (
	"errors"
	"fmt"
	"strings"
)

const (
	// MaxLineLength is the maximum protocol message line length (including
	// CRLF) when the connection has not negotiated the message-tags
	// capability.
	MaxLineLength = 512

	// MaxLineLengthWithTags is the maximum protocol message line length
	// (including CRLF) when the connection has negotiated message-tags.
	MaxLineLengthWithTags = 8191

	// MaxTagsLength is the maximum length of the tags portion of a line
	// (everything between the leading '@' and the SPACE before the rest of
	// the message), not counting the '@' itself.
	MaxTagsLength = 8191 - 512

	// ReplyWelcome is the RPL_WELCOME response numeric.
	ReplyWelcome = "001"

	// ReplyYoureOper is the RPL_YOUREOPER response numeric.
	ReplyYoureOper = "381"
)

// ErrTruncated is the error returned by Encode if the message gets truncated
// due to encoding to more than the permitted maximum length.
var ErrTruncated = errors.New("message truncated")

// It is not always valid for there to be a parameter with zero characters. If
// there is one, it should have a ':' prefix.
var errEmptyParam = errors.New("parameter with zero characters")

// Message holds a protocol message. See section 2.3.1 in RFC 1459/2812, and
// the IRCv3 message-tags specification for the Tags addition.
type Message struct {
	// Tags holds any IRCv3 message tags. May be nil/empty. Values are
	// already unescaped. A tag present with no '=' has an empty string
	// value (distinguishable from an absent tag only by checking Tags for
	// key presence).
	Tags map[string]string

	// Prefix may be blank. It's optional.
	Prefix string

	// Command is the IRC command. For example, PRIVMSG. It may be a numeric.
	Command string

	// There are at most 15 parameters.
	Params []string
}

func (m Message) String() string {
	return fmt.Sprintf("Tags%v Prefix [%s] Command [%s] Params%q", m.Tags,
		m.Prefix, m.Command, m.Params)
}

// SourceNick retrieves the nickname portion of the prefix. It is valid for
// this to be blank as not all messages have prefixes.
func (m Message) SourceNick() string {
	idx := strings.Index(m.Prefix, "!")
	if idx == -1 {
		return ""
	}
	return m.Prefix[:idx]
}

// Tag retrieves a tag value and whether it was present.
func (m Message) Tag(key string) (string, bool) {
	if m.Tags == nil {
		return "", false
	}
	v, ok := m.Tags[key]
	return v, ok
}
