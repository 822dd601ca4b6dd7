package main

import (
	"fmt"
	"strings"
)

// 50 is an arbitrary but common limit for channel names.
const maxChannelLength = 50

// From the TOPICLEN ISUPPORT token this server advertises.
const maxTopicLength = 390

// maxNickLength is the hard upper bound on nickname length. A server's
// configured MaxNickLength may be lower but never higher.
const maxNickLength = 30

// maxUsernameLength is the hard upper bound on USER command usernames.
const maxUsernameLength = 10

// maxRealNameLength is the hard upper bound, counted in UTF-8 code points,
// on realname (GECOS) length.
const maxRealNameLength = 50

// rfc1459Fold implements RFC 1459 casemapping: in addition to ASCII
// lowercasing, {, }, ~, and | fold to [, ], ^, and \ respectively.
func rfc1459Fold(b byte) byte {
	switch b {
	case '{':
		return '['
	case '}':
		return ']'
	case '~':
		return '^'
	case '|':
		return '\\'
	}
	if b >= 'A' && b <= 'Z' {
		return b + ('a' - 'A')
	}
	return b
}

func foldRFC1459(s string) string {
	b := make([]byte, len(s))
	for i := 0; i < len(s); i++ {
		b[i] = rfc1459Fold(s[i])
	}
	return string(b)
}

// canonicalizeNick converts the given nick to its canonical representation
// (which must be unique), using RFC 1459 casemapping.
//
// Note: We don't check validity or strip whitespace.
func canonicalizeNick(n string) string {
	return foldRFC1459(n)
}

// canonicalizeChannel converts the given channel to its canonical
// representation (which must be unique), using RFC 1459 casemapping.
//
// Note: We don't check validity or strip whitespace.
func canonicalizeChannel(c string) string {
	return foldRFC1459(c)
}

// nickSpecialFirst is the set of characters, besides a letter, permitted as
// the first character of a nickname.
const nickSpecialFirst = "[]\\`_^{|}"

// nickSpecialRest adds '-' to nickSpecialFirst for the remaining characters
// of a nickname.
const nickSpecialRest = nickSpecialFirst + "-"

// isValidNick checks if a nickname is valid: 1-maxLen chars, first char a
// letter or one of []\`_^{|}, remainder letters/digits/those specials/'-'.
func isValidNick(maxLen int, n string) bool {
	if len(n) == 0 || len(n) > maxLen {
		return false
	}

	for i := 0; i < len(n); i++ {
		c := n[i]

		isLetter := (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
		isDigit := c >= '0' && c <= '9'

		if i == 0 {
			if isLetter || strings.IndexByte(nickSpecialFirst, c) != -1 {
				continue
			}
			return false
		}

		if isLetter || isDigit || strings.IndexByte(nickSpecialRest, c) != -1 {
			continue
		}

		return false
	}

	return true
}

// isValidUser checks if a username (USER command) is valid: letters,
// digits, '_' and '-' only.
func isValidUser(maxLen int, u string) bool {
	if len(u) == 0 || len(u) > maxLen {
		return false
	}

	for i := 0; i < len(u); i++ {
		c := u[i]
		isLetter := (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
		isDigit := c >= '0' && c <= '9'
		if isLetter || isDigit || c == '_' || c == '-' {
			continue
		}
		return false
	}

	return true
}

// isValidRealName checks a realname (GECOS) is within the length limit,
// counted in UTF-8 code points. Free text is otherwise accepted.
func isValidRealName(r string) bool {
	count := 0
	for range r {
		count++
		if count > maxRealNameLength {
			return false
		}
	}
	return true
}

// isValidChannel checks a channel name for validity: starts with '#' or
// '&', is within the length limit, and contains no space, comma, control
// character, ':' or '\'.
//
// You should canonicalize it before using it as a lookup key, but validity
// does not depend on canonicalization.
func isValidChannel(c string) bool {
	if len(c) == 0 || len(c) > maxChannelLength {
		return false
	}

	if c[0] != '#' && c[0] != '&' {
		return false
	}

	for i := 1; i < len(c); i++ {
		ch := c[i]
		if ch == ' ' || ch == ',' || ch == ':' || ch == '\\' || ch < 0x20 ||
			ch == 0x7f {
			return false
		}
	}

	return true
}

// isNumericCommand reports whether command is a 3-digit numeric reply
// (e.g. "001", "433") as opposed to a named command like "PRIVMSG".
func isNumericCommand(command string) bool {
	if len(command) != 3 {
		return false
	}
	for i := 0; i < 3; i++ {
		if command[i] < '0' || command[i] > '9' {
			return false
		}
	}
	return true
}

// isValidSID checks a TS6 SID: exactly 3 characters, a leading digit
// followed by two alphanumeric (digit or uppercase letter) characters.
func isValidSID(sid string) bool {
	if len(sid) != 3 {
		return false
	}
	if sid[0] < '0' || sid[0] > '9' {
		return false
	}
	for i := 1; i < 3; i++ {
		c := sid[i]
		isDigit := c >= '0' && c <= '9'
		isUpper := c >= 'A' && c <= 'Z'
		if !isDigit && !isUpper {
			return false
		}
	}
	return true
}

// isValidUID checks a TS6 UID: a valid 3-character SID prefix followed by
// 6 uppercase-alphanumeric characters allocated by the introducing server.
func isValidUID(uid string) bool {
	if len(uid) != 9 {
		return false
	}
	if !isValidSID(uid[0:3]) {
		return false
	}
	for i := 3; i < 9; i++ {
		c := uid[i]
		isDigit := c >= '0' && c <= '9'
		isUpper := c >= 'A' && c <= 'Z'
		if !isDigit && !isUpper {
			return false
		}
	}
	return true
}

// ts6IDAlphabet is the base36 alphabet TS6 UIDs are allocated from,
// digits before letters to match the convention other ircds use.
const ts6IDAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// ts6IDLength is the number of locally-allocated characters following a
// SID in a UID (9 total per isValidUID, minus the 3-character SID).
const ts6IDLength = 6

// makeTS6ID renders id as a fixed-width, left-padded base36 string, the
// locally-allocated portion of a UID this server assigns to id. Returns an
// error once id exceeds what ts6IDLength base36 digits can hold, which
// would require roughly 2 billion concurrent connection IDs to happen.
func makeTS6ID(id uint64) (string, error) {
	max := uint64(1)
	for i := 0; i < ts6IDLength; i++ {
		max *= uint64(len(ts6IDAlphabet))
	}
	if id >= max {
		return "", fmt.Errorf("connection id %d exceeds TS6 ID space", id)
	}

	buf := make([]byte, ts6IDLength)
	base := uint64(len(ts6IDAlphabet))
	for i := ts6IDLength - 1; i >= 0; i-- {
		buf[i] = ts6IDAlphabet[id%base]
		id /= base
	}
	return string(buf), nil
}

// matchMask reports whether a nick!user@host style string matches a mask
// containing '*' (any run) and '?' (single character) wildcards. The
// comparison is case-insensitive using RFC 1459 folding.
func matchMask(mask, target string) bool {
	return wildcardMatch(foldRFC1459(mask), foldRFC1459(target))
}

// wildcardMatch implements simple glob matching with '*' and '?'.
func wildcardMatch(pattern, s string) bool {
	return wildcardMatchIdx(pattern, s, 0, 0)
}

func wildcardMatchIdx(pattern, s string, pi, si int) bool {
	for pi < len(pattern) {
		switch pattern[pi] {
		case '*':
			for pi < len(pattern) && pattern[pi] == '*' {
				pi++
			}
			if pi == len(pattern) {
				return true
			}
			for i := si; i <= len(s); i++ {
				if wildcardMatchIdx(pattern, s, pi, i) {
					return true
				}
			}
			return false
		case '?':
			if si >= len(s) {
				return false
			}
			pi++
			si++
		default:
			if si >= len(s) || s[si] != pattern[pi] {
				return false
			}
			pi++
			si++
		}
	}
	return si == len(s)
}
