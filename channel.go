package main

import (
	"sort"
	"strconv"
	"strings"
	"time"
)

// MemberMode is a bitset of the per-channel member modes a user can hold.
// Precedence from high to low is Owner, Admin, Op, HalfOp, Voice; a member's
// visible prefix is whichever of these they hold that ranks highest.
type MemberMode uint8

// Member mode bits, one per letter in CHANMODES' member-target set (qaohv).
const (
	ModeVoice MemberMode = 1 << iota
	ModeHalfOp
	ModeOp
	ModeAdmin
	ModeOwner
)

// memberModeLetters maps a MemberMode bit to its mode letter, highest
// precedence first.
var memberModeLetters = []struct {
	mode   MemberMode
	letter byte
	prefix byte
}{
	{ModeOwner, 'q', '~'},
	{ModeAdmin, 'a', '&'},
	{ModeOp, 'o', '@'},
	{ModeHalfOp, 'h', '%'},
	{ModeVoice, 'v', '+'},
}

// Prefix returns the visible prefix character for the highest-precedence
// mode held, or 0 if the member holds no prefixed mode.
func (mm MemberMode) Prefix() byte {
	for _, e := range memberModeLetters {
		if mm&e.mode != 0 {
			return e.prefix
		}
	}
	return 0
}

// Prefixes returns every held prefix character in precedence order, for
// clients which have negotiated multi-prefix.
func (mm MemberMode) Prefixes() string {
	s := ""
	for _, e := range memberModeLetters {
		if mm&e.mode != 0 {
			s += string(e.prefix)
		}
	}
	return s
}

// memberModeRank ranks modes from lowest (Voice) to highest (Owner), for
// HasAtLeast comparisons.
var memberModeRank = map[MemberMode]int{
	ModeVoice:  1,
	ModeHalfOp: 2,
	ModeOp:     3,
	ModeAdmin:  4,
	ModeOwner:  5,
}

// highestRank returns the rank of the highest-precedence mode held, or 0 if
// none.
func (mm MemberMode) highestRank() int {
	best := 0
	for mode, rank := range memberModeRank {
		if mm&mode != 0 && rank > best {
			best = rank
		}
	}
	return best
}

// HasAtLeast reports whether mm includes a mode ranked at or above min
// (e.g. HasAtLeast(ModeHalfOp) is true for Op, Admin, Owner, HalfOp).
func (mm MemberMode) HasAtLeast(min MemberMode) bool {
	return mm.highestRank() >= memberModeRank[min]
}

func memberModeForLetter(letter byte) (MemberMode, bool) {
	for _, e := range memberModeLetters {
		if e.letter == letter {
			return e.mode, true
		}
	}
	return 0, false
}

func memberModeForPrefix(prefix byte) (MemberMode, bool) {
	for _, e := range memberModeLetters {
		if e.prefix == prefix {
			return e.mode, true
		}
	}
	return 0, false
}

// parseMemberPrefixes strips any leading member-mode prefix characters
// (e.g. "@+8ZZAAAAAB") off a UID as seen in SJOIN, returning the combined
// modes and the bare UID string.
func parseMemberPrefixes(uidRaw string) (MemberMode, string) {
	var modes MemberMode
	i := 0
	for i < len(uidRaw) {
		mode, ok := memberModeForPrefix(uidRaw[i])
		if !ok {
			break
		}
		modes |= mode
		i++
	}
	return modes, uidRaw[i:]
}

// Member holds a single channel member's per-channel state.
type Member struct {
	UID      TS6UID
	Nickname string
	JoinedAt time.Time
	Modes    MemberMode
}

// ChannelMode is a bitset of the simple (no-parameter, non-member-target)
// channel modes.
type ChannelMode uint16

// Channel mode bits.
const (
	ChanNoExternalMessages ChannelMode = 1 << iota // n
	ChanTopicProtected                             // t
	ChanInviteOnly                                 // i
	ChanModerated                                   // m
	ChanSecret                                      // s
	ChanPrivate                                     // p
	ChanKey                                         // k (has a key set)
	ChanLimit                                       // l (has a limit set)
)

var channelModeLetters = map[byte]ChannelMode{
	'n': ChanNoExternalMessages,
	't': ChanTopicProtected,
	'i': ChanInviteOnly,
	'm': ChanModerated,
	's': ChanSecret,
	'p': ChanPrivate,
}

// Ban is a single +b/+e/+I list entry (ban, exception, or invite mask).
type Ban struct {
	Mask  string
	SetBy string
	At    time.Time
}

// Channel holds everything to do with a channel.
type Channel struct {
	// Canonicalized name.
	Name string

	CreatedAt time.Time

	// Current topic. May be blank.
	Topic      string
	TopicSetBy string
	TopicSetAt time.Time

	// Key, if +k is set. Blank otherwise.
	Key string

	// UserLimit, meaningful only if Modes&ChanLimit is set.
	UserLimit int

	Modes ChannelMode

	Bans       []Ban
	Exceptions []Ban
	Invites    []Ban

	// InvitedSet is the transient per-nick invitation set created by INVITE,
	// consulted only while +i is set and cleared on successful JOIN.
	InvitedSet map[string]struct{}

	// Registered marks a channel that should not be destroyed when its last
	// member parts.
	Registered bool

	// Members in the channel, keyed by UID.
	// If we have zero members and are not Registered, we should not exist.
	Members map[TS6UID]*Member

	// Channel TS. Changes on channel creation (or if another server tells us
	// a different, older, TS).
	TS int64
}

// NewChannel creates a Channel with no modes set. When a JOIN creates a
// channel, joinCommand then sets +ns on it (the conventional default on
// most networks).
func NewChannel(name string, ts int64) *Channel {
	return &Channel{
		Name:       name,
		CreatedAt:  time.Now(),
		TS:         ts,
		Members:    map[TS6UID]*Member{},
		InvitedSet: map[string]struct{}{},
	}
}

func (ch *Channel) hasMode(m ChannelMode) bool {
	return ch.Modes&m != 0
}

func (ch *Channel) setMode(m ChannelMode) {
	ch.Modes |= m
}

func (ch *Channel) clearMode(m ChannelMode) {
	ch.Modes &^= m
}

// modesString renders the simple channel modes (with parameters for k/l)
// for RPL_CHANNELMODEIS (324) replies.
func (ch *Channel) modesString() (string, []string) {
	s := "+"
	var params []string

	// Deterministic, alphabetical order of the fixed letters we know about.
	order := []byte{'i', 'm', 'n', 'p', 's', 't'}
	for _, l := range order {
		if m, ok := channelModeLetters[l]; ok && ch.hasMode(m) {
			s += string(l)
		}
	}

	if ch.hasMode(ChanKey) {
		s += "k"
		params = append(params, ch.Key)
	}
	if ch.hasMode(ChanLimit) {
		s += "l"
		params = append(params, strconv.Itoa(ch.UserLimit))
	}

	return s, params
}

func (ch *Channel) member(uid TS6UID) (*Member, bool) {
	m, ok := ch.Members[uid]
	return m, ok
}

func (ch *Channel) isEmpty() bool {
	return len(ch.Members) == 0
}

// sortedMemberUIDs returns member UIDs in a stable order, useful for
// deterministic NAMES/WHO output in tests.
func (ch *Channel) sortedMemberUIDs() []TS6UID {
	uids := make([]TS6UID, 0, len(ch.Members))
	for uid := range ch.Members {
		uids = append(uids, uid)
	}
	sort.Slice(uids, func(i, j int) bool { return uids[i] < uids[j] })
	return uids
}

// banListFor returns a pointer to the list backing the b/e/I mode letter,
// so callers can append to or filter it in place.
func (ch *Channel) banListFor(letter byte) *[]Ban {
	switch letter {
	case 'e':
		return &ch.Exceptions
	case 'I':
		return &ch.Invites
	default:
		return &ch.Bans
	}
}

// removeBanMask returns list with any entry matching mask (case-insensitive)
// removed.
func removeBanMask(list []Ban, mask string) []Ban {
	out := list[:0]
	for _, b := range list {
		if !strings.EqualFold(b.Mask, mask) {
			out = append(out, b)
		}
	}
	return out
}

// findMatchingBan returns the first entry in list that matches the given
// nick!user@host or user. Each entry is checked with matchBanEntry, which
// handles both plain hostmasks and extbans (~t:value).
func (ch *Channel) findMatchingBan(list []Ban, nuh string, u *User) (Ban, bool) {
	for _, b := range list {
		if matchBanEntry(b.Mask, nuh, u) {
			return b, true
		}
	}
	return Ban{}, false
}
