// Package config implements the generic mergeable, encrypted, versioned
// key/value configuration store that device state replication is built
// on. A Store owns one config tree, a symmetric key derived from the
// user's long-term secret, and the push/pull/dump lifecycle; typed
// schemas (see package convo) sit on top of it.
//
// The store is single-threaded by design: every operation runs to
// completion with no internal I/O, and callers serialize access to one
// instance. Push and pull exchange plain byte buffers; routing, retry,
// and rate limiting live in the transport layer, not here.
package config

import (
	"golang.org/x/crypto/blake2b"

	"go.uber.org/zap"

	"github.com/murmurchat/replica/bt"
	"github.com/murmurchat/replica/errors"
	"github.com/murmurchat/replica/securemem"
)

// Dump and push message keys. Fixed once; unknown keys in either survive
// round trips untouched.
const (
	keyVersion = "v" // dump format version
	keySeqno   = "#" // change sequence number
	keyDirty   = "!" // unpushed local changes flag (dump only)
	keyData    = "&" // the config tree
	keySeen    = "(" // hashes of already-applied push plaintexts (dump only)

	dumpVersion = 1
)

// Options fixes a schema type's identity: where its blobs live and how
// they are domain-separated, plus the merge policy for its fields.
type Options struct {
	// Namespace routes this schema's blobs in the shared store.
	Namespace Namespace
	// EncryptionDomain is the AEAD associated-data label; unique per
	// schema type.
	EncryptionDomain string
	// Policy maps leaf paths to merge rules. Nil means all-LWW.
	Policy Policy
}

// Store is the encrypted config store. One instance exists per device per
// schema namespace; it exclusively owns its key material for its lifetime.
type Store struct {
	opts Options
	key  *securemem.Key
	data *bt.Dict

	seqno     int64
	dirty     bool // local changes not yet pushed
	needsDump bool // state changed since last Dump
	seen      map[string]struct{}
	extra     *bt.Dict // unrecognized dump keys, preserved verbatim

	log *zap.SugaredLogger
}

// New constructs a store from the long-term secret and, optionally, a
// snapshot previously produced by Dump. A nil dump starts an empty tree.
// Snapshot bytes that fail to decrypt or decode against the derived key
// are fatal: the error wraps errors.ErrInvalidDump and no store is
// returned.
func New(secret []byte, dump []byte, opts Options, log *zap.SugaredLogger) (*Store, error) {
	if opts.EncryptionDomain == "" {
		return nil, errors.AssertionFailedf("config: empty encryption domain")
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	key, err := deriveKey(secret, opts.EncryptionDomain)
	if err != nil {
		return nil, err
	}

	s := &Store{
		opts:  opts,
		key:   key,
		data:  bt.NewDict(),
		seen:  make(map[string]struct{}),
		extra: bt.NewDict(),
		log:   log,
	}

	if len(dump) > 0 {
		if err := s.restore(dump); err != nil {
			key.Destroy()
			return nil, err
		}
	}
	return s, nil
}

// restore loads a Dump snapshot. The internal state comes back exactly as
// dumped, including merge bookkeeping and any snapshot keys this version
// does not recognize.
func (s *Store) restore(dump []byte) error {
	plaintext, err := decrypt(s.key, s.opts.EncryptionDomain+dumpDomainSuffix, dump)
	if err != nil {
		return errors.Wrap(errors.ErrInvalidDump, err.Error())
	}
	d, err := bt.DecodeDict(plaintext)
	if err != nil {
		return errors.Wrap(errors.ErrInvalidDump, err.Error())
	}

	version, ok := d.GetInt(keyVersion)
	if !ok || version < 1 {
		return errors.Wrap(errors.ErrInvalidDump, "missing dump version")
	}

	if seqno, ok := d.GetInt(keySeqno); ok && seqno > 0 {
		s.seqno = seqno
	}
	if dirty, ok := d.GetInt(keyDirty); ok && dirty != 0 {
		s.dirty = true
	}
	if data, ok := d.GetDict(keyData); ok {
		s.data = data.Clone()
	}
	if seenSet, ok := d.GetSet(keySeen); ok {
		for _, h := range seenSet.Members() {
			s.seen[h] = struct{}{}
		}
	}

	// Anything else in the snapshot came from newer software; carry it
	// so the next Dump re-emits it.
	s.extra = d.Clone()
	for _, k := range []string{keyVersion, keySeqno, keyDirty, keyData, keySeen} {
		s.extra.Delete(k)
	}
	return nil
}

// Namespace returns the storage namespace push blobs belong to.
func (s *Store) Namespace() Namespace {
	return s.opts.Namespace
}

// EncryptionDomain returns the AEAD domain label for this schema.
func (s *Store) EncryptionDomain() string {
	return s.opts.EncryptionDomain
}

// Seqno returns the current change sequence number.
func (s *Store) Seqno() int64 {
	return s.seqno
}

// NeedsPush reports whether there are local changes no push has carried.
func (s *Store) NeedsPush() bool {
	return s.dirty
}

// NeedsDump reports whether state changed since the last Dump.
func (s *Store) NeedsDump() bool {
	return s.needsDump
}

// Data exposes the config tree for schema-level reads. Callers must not
// mutate through it; writes go through SetField/EraseField so change
// tracking stays correct.
func (s *Store) Data() *bt.Dict {
	return s.data
}

// GetField reads the value at path. Absence is not an error.
func (s *Store) GetField(path ...string) (bt.Value, bool) {
	return s.data.GetPath(path...)
}

// SetField writes a value at path, creating intermediate dicts as needed.
// Writing an empty value erases. A write that leaves the tree unchanged
// does not mark the store dirty.
func (s *Store) SetField(path []string, v bt.Value) {
	if bt.IsEmpty(v) {
		s.EraseField(path...)
		return
	}
	if old, ok := s.data.GetPath(path...); ok && bt.Equal(old, v) {
		return
	}
	s.data.SetPath(path, v)
	s.dirty = true
	s.needsDump = true
}

// EraseField removes the value at path, pruning empty intermediates.
// Returns true if something was removed.
func (s *Store) EraseField(path ...string) bool {
	removed := s.data.ErasePath(path...)
	if removed {
		s.dirty = true
		s.needsDump = true
	}
	return removed
}

// Push encodes the current tree, seals it under the schema's key and
// domain label, and returns the blob together with the namespace it
// belongs to. The blob's plaintext hash is recorded so the same blob
// coming back from the store merges as a no-op.
func (s *Store) Push() (blob []byte, ns Namespace, err error) {
	if s.dirty {
		s.seqno++
		s.dirty = false
	}

	msg := bt.NewDict()
	msg.Put(keySeqno, bt.Int(s.seqno))
	msg.Put(keyData, s.data.Clone())
	plaintext := bt.Encode(msg)

	s.markSeen(plaintext)
	s.needsDump = true

	blob, err = encrypt(s.key, s.opts.EncryptionDomain, plaintext)
	if err != nil {
		return nil, 0, err
	}

	s.log.Debugw("pushed config",
		"namespace", s.opts.Namespace.String(),
		"seqno", s.seqno,
		"blob_bytes", len(blob))
	return blob, s.opts.Namespace, nil
}

// Pull decrypts one blob from a peer device and merges it into the
// current tree. The merge is atomic: a blob that fails authentication or
// decoding leaves the tree untouched and returns an error wrapping
// errors.ErrDecrypt or errors.ErrDecode — recoverable, scoped to that one
// blob. An already-applied blob is recognized and skipped.
func (s *Store) Pull(blob []byte) error {
	plaintext, err := decrypt(s.key, s.opts.EncryptionDomain, blob)
	if err != nil {
		return err
	}
	if s.wasSeen(plaintext) {
		s.log.Debugw("skipping already-merged blob",
			"namespace", s.opts.Namespace.String())
		return nil
	}

	msg, err := bt.DecodeDict(plaintext)
	if err != nil {
		return err
	}
	remoteSeqno, _ := msg.GetInt(keySeqno)
	remoteData, ok := msg.GetDict(keyData)
	if !ok {
		if _, present := msg.Get(keyData); present {
			return errors.Wrap(errors.ErrDecode, "blob data is not a dict")
		}
		remoteData = bt.NewDict()
	}

	localEnc := bt.Encode(s.data)
	merged := Merge(s.opts.Policy,
		Input{Data: s.data, Token: NewToken(uint64(s.seqno), localEnc)},
		Input{Data: remoteData, Token: NewToken(uint64(remoteSeqno), bt.Encode(remoteData))},
	)

	s.data = merged
	if remoteSeqno > s.seqno {
		s.seqno = remoteSeqno
	}
	s.markSeen(plaintext)
	s.needsDump = true

	s.log.Debugw("merged remote config",
		"namespace", s.opts.Namespace.String(),
		"remote_seqno", remoteSeqno,
		"seqno", s.seqno,
		"changed", string(localEnc) != string(bt.Encode(s.data)))
	return nil
}

// PullAll merges a batch of blobs, best effort: a blob that fails to
// decrypt or decode is logged and skipped, and does not stop the rest.
// Returns how many blobs were applied (including recognized re-deliveries).
func (s *Store) PullAll(blobs ...[]byte) int {
	applied := 0
	for i, blob := range blobs {
		if err := s.Pull(blob); err != nil {
			s.log.Warnw("rejected remote blob",
				"namespace", s.opts.Namespace.String(),
				"index", i,
				"error", err)
			continue
		}
		applied++
	}
	return applied
}

// Dump serializes the entire local state — tree, bookkeeping, and any
// unrecognized snapshot keys — to an opaque blob for local persistence.
// Restoring it through New reproduces the state exactly.
func (s *Store) Dump() ([]byte, error) {
	d := s.extra.Clone()
	d.Put(keyVersion, bt.Int(dumpVersion))
	d.Put(keySeqno, bt.Int(s.seqno))
	if s.dirty {
		d.Put(keyDirty, bt.Int(1))
	}
	d.Put(keyData, s.data.Clone())
	if len(s.seen) > 0 {
		seen := bt.NewSet()
		for h := range s.seen {
			seen.Add(h)
		}
		d.Put(keySeen, seen)
	}

	blob, err := encrypt(s.key, s.opts.EncryptionDomain+dumpDomainSuffix, bt.Encode(d))
	if err != nil {
		return nil, err
	}
	s.needsDump = false
	return blob, nil
}

// Destroy zeroes the store's key material. The store must not be used
// afterwards.
func (s *Store) Destroy() {
	if s.key != nil {
		s.key.Destroy()
	}
	s.data = nil
	s.seen = nil
}

func (s *Store) markSeen(plaintext []byte) {
	h := blake2b.Sum256(plaintext)
	s.seen[string(h[:])] = struct{}{}
}

func (s *Store) wasSeen(plaintext []byte) bool {
	h := blake2b.Sum256(plaintext)
	_, ok := s.seen[string(h[:])]
	return ok
}
