// Package convo is the typed conversation schema: per-conversation read
// markers and disappearing-message settings for one-to-one chats, open
// groups, and legacy closed groups, layered over the generic mergeable
// store in package config.
package convo

import (
	"encoding/hex"
	"strings"

	"github.com/murmurchat/replica/bt"
	"github.com/murmurchat/replica/errors"
	"github.com/murmurchat/replica/sessid"
)

// Schema namespaces, the top-level keys of the conversation tree. "c" is
// reserved for a future conversation kind and is never written or
// iterated by this version.
const (
	nsOneToOne    = "1"
	nsLegacyGroup = "C"
	nsReserved    = "c"
	nsOpenGroup   = "o"
)

// Per-record field keys.
const (
	fieldExpTimer = "E" // disappearing-message timer, minutes
	fieldExpMode  = "e" // ExpirationMode, omitted when none
	fieldLastRead = "r" // last-read timestamp, unix milliseconds
)

// ExpirationMode selects when a disappearing-message timer starts.
type ExpirationMode int64

const (
	ExpirationNone      ExpirationMode = 0
	ExpirationAfterSend ExpirationMode = 1
	ExpirationAfterRead ExpirationMode = 2
)

func (m ExpirationMode) String() string {
	switch m {
	case ExpirationNone:
		return "none"
	case ExpirationAfterSend:
		return "after_send"
	case ExpirationAfterRead:
		return "after_read"
	default:
		return "unknown"
	}
}

// Record is one conversation entry of any kind.
type Record interface {
	// Kind returns the schema namespace the record lives in.
	Kind() string

	recordKey() string
	recordFields() (lastRead int64, mode ExpirationMode, timer int64)
}

// OneToOne is a direct conversation with another session ID.
type OneToOne struct {
	// SessionID identifies the peer: 66 lowercase hex digits, "05" prefix.
	SessionID string
	// LastRead is the latest read message timestamp, unix milliseconds.
	LastRead int64
	// Expiration and ExpirationMinutes hold the disappearing-message
	// setting; ExpirationMinutes is meaningful only when Expiration is
	// not ExpirationNone.
	Expiration        ExpirationMode
	ExpirationMinutes int64
}

func (c *OneToOne) Kind() string      { return nsOneToOne }
func (c *OneToOne) recordKey() string { return c.SessionID }
func (c *OneToOne) recordFields() (int64, ExpirationMode, int64) {
	return c.LastRead, c.Expiration, c.ExpirationMinutes
}

// OpenGroup is a conversation in a public room on a community server,
// identified by server base URL, room token, and the server's pubkey.
// The identifying fields are fixed at construction; the case-folding
// that makes lookups case-insensitive happens there.
type OpenGroup struct {
	baseURL string
	room    string
	pubkey  [32]byte

	// LastRead is the latest read message timestamp, unix milliseconds.
	LastRead int64
}

// NewOpenGroup builds an open group record from its raw parts. URL and
// room are ASCII-lowercased; pubkey must be exactly 32 bytes.
func NewOpenGroup(baseURL, room string, pubkey []byte) (*OpenGroup, error) {
	if baseURL == "" || room == "" {
		return nil, errors.Wrap(errors.ErrInvalidID, "open group needs a base URL and room")
	}
	if strings.ContainsRune(baseURL, 0) || strings.ContainsRune(room, 0) {
		return nil, errors.Wrap(errors.ErrInvalidID, "open group URL and room must not contain NUL")
	}
	if len(pubkey) != sessid.PubkeyLength {
		return nil, errors.Wrapf(errors.ErrInvalidPubkey,
			"open group pubkey must be %d bytes, got %d", sessid.PubkeyLength, len(pubkey))
	}
	g := &OpenGroup{
		baseURL: sessid.ASCIILower(baseURL),
		room:    sessid.ASCIILower(room),
	}
	copy(g.pubkey[:], pubkey)
	return g, nil
}

// NewOpenGroupEncoded is NewOpenGroup with the pubkey in any of its
// textual encodings (hex, base32z, base64).
func NewOpenGroupEncoded(baseURL, room, pubkey string) (*OpenGroup, error) {
	pk, err := sessid.DecodePubkey(pubkey)
	if err != nil {
		return nil, err
	}
	return NewOpenGroup(baseURL, room, pk)
}

// BaseURL returns the lowercased server base URL.
func (g *OpenGroup) BaseURL() string { return g.baseURL }

// Room returns the lowercased room token.
func (g *OpenGroup) Room() string { return g.room }

// Pubkey returns a copy of the 32-byte server pubkey.
func (g *OpenGroup) Pubkey() []byte {
	pk := make([]byte, len(g.pubkey))
	copy(pk, g.pubkey[:])
	return pk
}

// PubkeyHex returns the server pubkey as 64 lowercase hex digits.
func (g *OpenGroup) PubkeyHex() string { return hex.EncodeToString(g.pubkey[:]) }

func (g *OpenGroup) Kind() string { return nsOpenGroup }
func (g *OpenGroup) recordKey() string {
	return g.baseURL + "\x00" + g.room + "\x00" + string(g.pubkey[:])
}
func (g *OpenGroup) recordFields() (int64, ExpirationMode, int64) {
	return g.LastRead, ExpirationNone, 0
}

// openGroupFromKey rebuilds the identifying parts from a stored record
// key: lowercased URL, NUL, lowercased room, NUL, 32 raw pubkey bytes.
func openGroupFromKey(key string) (*OpenGroup, error) {
	if len(key) < sessid.PubkeyLength+2 {
		return nil, errors.Wrap(errors.ErrInvalidID, "open group key too short")
	}
	pkStart := len(key) - sessid.PubkeyLength
	if key[pkStart-1] != 0 {
		return nil, errors.Wrap(errors.ErrInvalidID, "malformed open group key")
	}
	url, room, found := strings.Cut(key[:pkStart-1], "\x00")
	if !found || url == "" || room == "" || strings.ContainsRune(room, 0) {
		return nil, errors.Wrap(errors.ErrInvalidID, "malformed open group key")
	}
	return NewOpenGroup(url, room, []byte(key[pkStart:]))
}

// LegacyGroup is a conversation in a legacy closed group. The group ID
// uses the session ID format.
type LegacyGroup struct {
	ID string
	// LastRead is the latest read message timestamp, unix milliseconds.
	LastRead int64
}

func (g *LegacyGroup) Kind() string      { return nsLegacyGroup }
func (g *LegacyGroup) recordKey() string { return g.ID }
func (g *LegacyGroup) recordFields() (int64, ExpirationMode, int64) {
	return g.LastRead, ExpirationNone, 0
}

func oneToOneFromDict(id string, d *bt.Dict) *OneToOne {
	c := &OneToOne{SessionID: id}
	c.LastRead, _ = d.GetInt(fieldLastRead)
	if mode, ok := d.GetInt(fieldExpMode); ok {
		c.Expiration = ExpirationMode(mode)
		c.ExpirationMinutes, _ = d.GetInt(fieldExpTimer)
	}
	return c
}

func legacyGroupFromDict(id string, d *bt.Dict) *LegacyGroup {
	g := &LegacyGroup{ID: id}
	g.LastRead, _ = d.GetInt(fieldLastRead)
	return g
}

func openGroupFromDict(key string, d *bt.Dict) (*OpenGroup, error) {
	g, err := openGroupFromKey(key)
	if err != nil {
		return nil, err
	}
	g.LastRead, _ = d.GetInt(fieldLastRead)
	return g, nil
}
