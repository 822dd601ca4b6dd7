package irc

import (
	"fmt"
	"sort"
	"strings"
)

// Encode encodes the Message into a raw protocol message string.
//
// The resulting string will have a trailing CRLF.
//
// If encoding the message would exceed the allowed maximum length, we
// truncate and return as much as we can and return ErrTruncated. This
// truncated message may still be usable. The allowed maximum is
// MaxLineLengthWithTags if the message carries tags, else MaxLineLength.
//
// It does not enforce command specific semantics.
func (m Message) Encode() (string, error) {
	maxLength := MaxLineLength
	tagsPrefix := ""
	if len(m.Tags) > 0 {
		maxLength = MaxLineLengthWithTags
		tagsPrefix = encodeTags(m.Tags)
	}

	s := tagsPrefix

	if len(m.Prefix) > 0 {
		s += ":" + m.Prefix + " "
	}

	s += m.Command

	if len(s)+2 > maxLength {
		return "", fmt.Errorf("message with only tags/prefix/command is too long")
	}

	truncated := false

	// Both RFC 1459 and RFC 2812 limit us to 15 parameters.
	if len(m.Params) > 15 {
		return "", fmt.Errorf("too many parameters")
	}

	for i, param := range m.Params {
		// We need to prefix the parameter with a colon in a few cases:
		//
		// 1) When there is a space in the parameter
		//
		// 2) When the first character is a colon
		//
		// 3) When this is the last parameter and it is empty. We do this to ensure
		// it is visible. This is important e.g. in a TOPIC unset command (TS6
		// server protocol). Also, RFC 1459/2812's grammar permits this.
		//
		// RFC 2812 differs from RFC 1459 by saying that ":" is optional for the
		// 15th parameter, but we ignore that.
		if idx := strings.IndexAny(param, " "); idx != -1 ||
			(param != "" && param[0] == ':') ||
			param == "" {
			param = ":" + param

			// This must be the last parameter. There can only be one <trailing>.
			if i+1 != len(m.Params) {
				return "", fmt.Errorf(
					"parameter problem: ':' or ' ' outside last parameter")
			}
		}

		// If we add the parameter as is, do we exceed the maximum length?
		if len(s)+1+len(param)+2 > maxLength {
			// Either we can truncate the parameter and include a portion of it, or
			// the parameter is too short to include at all. If it is too short to
			// include, then don't add the space separator either.

			// Claim the space separator (1) and CRLF (2) as used. Then we can tell
			// how many bytes are available for the parameter as it is.
			lengthUsed := len(s) + 1 + 2
			lengthAvailable := maxLength - lengthUsed

			// If we prefixed the parameter with : then it's possible we include
			// only the : here (if length available is 1). This is perhaps a little
			// odd but I don't think problematic.

			if lengthAvailable > 0 {
				s += " " + param[0:lengthAvailable]
			}

			truncated = true
			break
		}

		s += " " + param
	}

	s += "\r\n"

	if truncated {
		return s, ErrTruncated
	}

	return s, nil
}

// encodeTags formats the Tags map as "@tag=value;tag2=value2 " (including
// the trailing separating space). Keys are sorted for deterministic output.
func encodeTags(tags map[string]string) string {
	if len(tags) == 0 {
		return ""
	}

	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		v := tags[k]
		if v == "" {
			parts = append(parts, k)
			continue
		}
		parts = append(parts, k+"="+escapeTagValue(v))
	}

	return "@" + strings.Join(parts, ";") + " "
}

// escapeTagValue applies the IRCv3 message-tags escape rules in reverse of
// unescapeTagValue: ';' -> \:, ' ' -> \s, '\' -> \\, CR -> \r, LF -> \n.
func escapeTagValue(v string) string {
	if !strings.ContainsAny(v, ";\\ \r\n") {
		return v
	}

	var b strings.Builder
	b.Grow(len(v) + 4)

	for i := 0; i < len(v); i++ {
		switch v[i] {
		case ';':
			b.WriteString(`\:`)
		case ' ':
			b.WriteString(`\s`)
		case '\\':
			b.WriteString(`\\`)
		case '\r':
			b.WriteString(`\r`)
		case '\n':
			b.WriteString(`\n`)
		default:
			b.WriteByte(v[i])
		}
	}

	return b.String()
}
