// Package sessid validates the textual identifiers used by the
// conversation schema: session IDs (66 hex digits with a fixed prefix)
// and 32-byte server pubkeys, which travel as hex, base32z, or base64
// text depending on where a client got them from.
package sessid

import (
	"encoding/base32"
	"encoding/base64"
	"encoding/hex"

	"github.com/murmurchat/replica/errors"
)

// SessionIDLength is the length of a session ID in hex characters: a
// one-byte prefix plus a 32-byte x25519 pubkey.
const SessionIDLength = 66

// PubkeyLength is the raw length of a server pubkey in bytes.
const PubkeyLength = 32

// base32z is the z-base-32 alphabet, unpadded.
var base32z = base32.NewEncoding("ybndrfg8ejkmcpqxot1uwisza345h769").WithPadding(base32.NoPadding)

// CheckSessionID verifies that id looks like a session ID: 66 hex digits
// beginning with "05". Legacy group IDs share the format and pass too.
func CheckSessionID(id string) error {
	if len(id) != SessionIDLength {
		return errors.Wrapf(errors.ErrInvalidID,
			"expected %d hex digits, got %d characters", SessionIDLength, len(id))
	}
	if id[0] != '0' || id[1] != '5' {
		return errors.Wrap(errors.ErrInvalidID, "session ID must start with 05")
	}
	if !isHex(id) {
		return errors.Wrap(errors.ErrInvalidID, "session ID is not hex")
	}
	return nil
}

// DecodePubkey decodes a 32-byte pubkey from its textual form. Accepted
// encodings, distinguished by length: 64 hex digits, 52 base32z
// characters, or base64 (44 characters padded, 43 unpadded).
func DecodePubkey(s string) ([]byte, error) {
	switch len(s) {
	case 2 * PubkeyLength:
		pk, err := hex.DecodeString(s)
		if err != nil {
			return nil, errors.Wrap(errors.ErrInvalidPubkey, "invalid hex")
		}
		return pk, nil
	case 52:
		pk, err := base32z.DecodeString(s)
		if err != nil || len(pk) != PubkeyLength {
			return nil, errors.Wrap(errors.ErrInvalidPubkey, "invalid base32z")
		}
		return pk, nil
	case 44:
		pk, err := base64.StdEncoding.DecodeString(s)
		if err != nil || len(pk) != PubkeyLength {
			return nil, errors.Wrap(errors.ErrInvalidPubkey, "invalid base64")
		}
		return pk, nil
	case 43:
		pk, err := base64.RawStdEncoding.DecodeString(s)
		if err != nil || len(pk) != PubkeyLength {
			return nil, errors.Wrap(errors.ErrInvalidPubkey, "invalid base64")
		}
		return pk, nil
	default:
		return nil, errors.Wrapf(errors.ErrInvalidPubkey,
			"unrecognized pubkey encoding of length %d", len(s))
	}
}

// CheckPubkey verifies a textual pubkey without returning the bytes.
func CheckPubkey(s string) error {
	_, err := DecodePubkey(s)
	return err
}

func isHex(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= '0' && c <= '9', c >= 'a' && c <= 'f', c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}

// ASCIILower lower-cases A-Z only, leaving all other bytes alone. Schema
// keys are case-folded with this rather than a locale-aware fold so the
// result is a pure function of the input bytes.
func ASCIILower(s string) string {
	lowered := []byte(s)
	changed := false
	for i, c := range lowered {
		if c >= 'A' && c <= 'Z' {
			lowered[i] = c + ('a' - 'A')
			changed = true
		}
	}
	if !changed {
		return s
	}
	return string(lowered)
}
