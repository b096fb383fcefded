package config

import (
	"bytes"
	"encoding/binary"

	"golang.org/x/crypto/blake2b"

	"github.com/murmurchat/replica/bt"
)

// Token orders one device's changes for last-writer-wins merges. It is an
// opaque marker, not a wall-clock timestamp (clocks are untrusted): the
// first 8 bytes are the device's big-endian change sequence number, the
// last 8 a BLAKE2b digest of the encoded tree the token was minted for.
// Tokens compare lexicographically, giving a total order across inputs.
type Token [16]byte

// NewToken mints the token for a tree at a given sequence number.
func NewToken(seqno uint64, encoded []byte) Token {
	var t Token
	binary.BigEndian.PutUint64(t[:8], seqno)
	sum := blake2b.Sum512(encoded)
	copy(t[8:], sum[:8])
	return t
}

// Compare returns -1, 0, or 1 ordering t against o.
func (t Token) Compare(o Token) int {
	return bytes.Compare(t[:], o[:])
}

// Rule selects how competing leaf values at one path are resolved.
type Rule int

const (
	// RuleLWW keeps the value from the input with the highest token;
	// equal tokens fall back to comparing the competing values' encoded
	// bytes (higher wins). Documented policy choice: the byte comparison
	// guarantees a total order when two devices mint identical tokens.
	RuleLWW Rule = iota

	// RuleMax keeps the numeric maximum of all competing Int values.
	// Used for monotonic counters (read markers): a smaller value
	// arriving late never regresses the stored value.
	RuleMax
)

// Policy maps a leaf path to its merge rule. A nil policy is all-LWW.
type Policy func(path []string) Rule

// Input is one tree participating in a merge, with the history token of
// the device state it came from.
type Input struct {
	Data  *bt.Dict
	Token Token
}

// Merge combines any number of input trees into a fresh tree, applying the
// per-field policy leaf by leaf at matching paths. Record existence is the
// union of all inputs. The result is independent of input order, and
// merging a result back in changes nothing: the commutativity,
// associativity, and idempotence the convergence guarantee rests on.
//
// Merge never fails: inputs that could not be decrypted or decoded must be
// rejected before this point.
func Merge(policy Policy, inputs ...Input) *bt.Dict {
	cands := make([]candidate, 0, len(inputs))
	for _, in := range inputs {
		if in.Data == nil {
			continue
		}
		cands = append(cands, candidate{val: in.Data, tok: in.Token})
	}
	merged := mergeDicts(policy, nil, cands)
	if merged == nil {
		return bt.NewDict()
	}
	return merged
}

type candidate struct {
	val bt.Value
	tok Token
}

// mergeDicts merges the dict-typed candidates at one path. Keys are the
// union of all candidates' keys.
func mergeDicts(policy Policy, path []string, cands []candidate) *bt.Dict {
	keys := make(map[string]struct{})
	for _, c := range cands {
		d := c.val.(*bt.Dict)
		for _, k := range d.Keys() {
			keys[k] = struct{}{}
		}
	}

	out := bt.NewDict()
	for k := range keys {
		var sub []candidate
		for _, c := range cands {
			if v, ok := c.val.(*bt.Dict).Get(k); ok {
				sub = append(sub, candidate{val: v, tok: c.tok})
			}
		}
		if v := mergeValues(policy, append(path, k), sub); !bt.IsEmpty(v) {
			out.Put(k, v)
		}
	}
	return out
}

// mergeValues resolves the competing values for one key.
func mergeValues(policy Policy, path []string, cands []candidate) bt.Value {
	if len(cands) == 1 {
		return bt.CloneValue(cands[0].val)
	}

	// All dicts: recurse so the per-field policy applies leaf by leaf.
	allDicts := true
	for _, c := range cands {
		if _, ok := c.val.(*bt.Dict); !ok {
			allDicts = false
			break
		}
	}
	if allDicts {
		return mergeDicts(policy, path, cands)
	}

	rule := RuleLWW
	if policy != nil {
		rule = policy(path)
	}
	if rule == RuleMax {
		if v, ok := maxInt(cands); ok {
			return v
		}
		// A non-Int competitor at a counter path (corrupt or hostile
		// peer): fall through to the deterministic LWW resolution.
	}
	return bt.CloneValue(lww(cands).val)
}

// maxInt returns the numeric maximum if every candidate is an Int.
func maxInt(cands []candidate) (bt.Value, bool) {
	best, ok := cands[0].val.(bt.Int)
	if !ok {
		return nil, false
	}
	for _, c := range cands[1:] {
		v, ok := c.val.(bt.Int)
		if !ok {
			return nil, false
		}
		if v > best {
			best = v
		}
	}
	return best, true
}

// lww picks the candidate with the highest token; ties are broken by the
// encoded bytes of the competing values, so the outcome is a pure function
// of the candidate set.
func lww(cands []candidate) candidate {
	best := cands[0]
	bestEnc := bt.Encode(best.val)
	for _, c := range cands[1:] {
		switch cmp := c.tok.Compare(best.tok); {
		case cmp > 0:
			best, bestEnc = c, bt.Encode(c.val)
		case cmp == 0:
			if enc := bt.Encode(c.val); bytes.Compare(enc, bestEnc) > 0 {
				best, bestEnc = c, enc
			}
		}
	}
	return best
}
