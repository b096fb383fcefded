package convo

import (
	"go.uber.org/zap"

	"github.com/murmurchat/replica/bt"
	"github.com/murmurchat/replica/config"
	"github.com/murmurchat/replica/errors"
	"github.com/murmurchat/replica/sessid"
)

// encryptionDomain labels conversation blobs and dumps for AEAD domain
// separation. Fixed forever.
const encryptionDomain = "Conversations"

// mergePolicy: last-read markers only move forward, every other field is
// last-writer-wins.
func mergePolicy(path []string) config.Rule {
	if len(path) == 3 && path[2] == fieldLastRead {
		switch path[0] {
		case nsOneToOne, nsOpenGroup, nsLegacyGroup:
			return config.RuleMax
		}
	}
	return config.RuleLWW
}

// Conversations is the conversation schema bound to one device's
// replicated store. All reads and writes go through the typed accessors;
// Push, Pull, and Dump drive replication and persistence.
type Conversations struct {
	store *config.Store
}

// New opens the conversation schema from the user's long-term secret and
// an optional prior Dump snapshot.
func New(secret, dump []byte, log *zap.SugaredLogger) (*Conversations, error) {
	s, err := config.New(secret, dump, config.Options{
		Namespace:        config.NamespaceConversations,
		EncryptionDomain: encryptionDomain,
		Policy:           mergePolicy,
	}, log)
	if err != nil {
		return nil, err
	}
	return &Conversations{store: s}, nil
}

// Store exposes the underlying generic store, mainly for diagnostics.
func (c *Conversations) Store() *config.Store { return c.store }

func (c *Conversations) Seqno() int64                { return c.store.Seqno() }
func (c *Conversations) NeedsPush() bool             { return c.store.NeedsPush() }
func (c *Conversations) NeedsDump() bool             { return c.store.NeedsDump() }
func (c *Conversations) Namespace() config.Namespace { return c.store.Namespace() }

// Push seals the current state into a blob for the shared store.
func (c *Conversations) Push() ([]byte, config.Namespace, error) { return c.store.Push() }

// Pull merges one blob from another device.
func (c *Conversations) Pull(blob []byte) error { return c.store.Pull(blob) }

// PullAll merges a batch of blobs best effort and returns how many applied.
func (c *Conversations) PullAll(blobs ...[]byte) int { return c.store.PullAll(blobs...) }

// Dump snapshots the full local state for persistence.
func (c *Conversations) Dump() ([]byte, error) { return c.store.Dump() }

// Destroy zeroes key material. The schema must not be used afterwards.
func (c *Conversations) Destroy() { c.store.Destroy() }

// GetOneToOne looks up a direct conversation. Absence is (nil, nil); a
// malformed ID or record is an error.
func (c *Conversations) GetOneToOne(sessionID string) (*OneToOne, error) {
	id := sessid.ASCIILower(sessionID)
	if err := sessid.CheckSessionID(id); err != nil {
		return nil, err
	}
	d, ok, err := c.recordDict(nsOneToOne, id)
	if err != nil || !ok {
		return nil, err
	}
	return oneToOneFromDict(id, d), nil
}

// GetOrConstructOneToOne returns the existing record or a fresh zero one
// ready to fill in and Set. The fresh record is not stored until Set.
func (c *Conversations) GetOrConstructOneToOne(sessionID string) (*OneToOne, error) {
	existing, err := c.GetOneToOne(sessionID)
	if err != nil || existing != nil {
		return existing, err
	}
	return &OneToOne{SessionID: sessid.ASCIILower(sessionID)}, nil
}

// GetOpenGroup looks up an open group conversation by its identifying
// parts. URL and room are case-insensitive.
func (c *Conversations) GetOpenGroup(baseURL, room string, pubkey []byte) (*OpenGroup, error) {
	probe, err := NewOpenGroup(baseURL, room, pubkey)
	if err != nil {
		return nil, err
	}
	d, ok, err := c.recordDict(nsOpenGroup, probe.recordKey())
	if err != nil || !ok {
		return nil, err
	}
	probe.LastRead, _ = d.GetInt(fieldLastRead)
	return probe, nil
}

// GetOrConstructOpenGroup returns the existing record or a fresh one.
func (c *Conversations) GetOrConstructOpenGroup(baseURL, room string, pubkey []byte) (*OpenGroup, error) {
	existing, err := c.GetOpenGroup(baseURL, room, pubkey)
	if err != nil || existing != nil {
		return existing, err
	}
	return NewOpenGroup(baseURL, room, pubkey)
}

// GetLegacyGroup looks up a legacy closed group conversation.
func (c *Conversations) GetLegacyGroup(id string) (*LegacyGroup, error) {
	lid := sessid.ASCIILower(id)
	if err := sessid.CheckSessionID(lid); err != nil {
		return nil, err
	}
	d, ok, err := c.recordDict(nsLegacyGroup, lid)
	if err != nil || !ok {
		return nil, err
	}
	return legacyGroupFromDict(lid, d), nil
}

// GetOrConstructLegacyGroup returns the existing record or a fresh one.
func (c *Conversations) GetOrConstructLegacyGroup(id string) (*LegacyGroup, error) {
	existing, err := c.GetLegacyGroup(id)
	if err != nil || existing != nil {
		return existing, err
	}
	return &LegacyGroup{ID: sessid.ASCIILower(id)}, nil
}

// Set stores a record, creating or updating its entry. Fields are written
// individually so fields this version does not know about survive
// untouched on the record.
func (c *Conversations) Set(r Record) error {
	key, err := validateRecord(r)
	if err != nil {
		return err
	}
	lastRead, mode, timer := r.recordFields()

	// The read marker is always present, even at zero: it anchors the
	// record's existence in the tree.
	c.store.SetField([]string{r.Kind(), key, fieldLastRead}, bt.Int(lastRead))
	if mode == ExpirationNone {
		c.store.EraseField(r.Kind(), key, fieldExpMode)
		c.store.EraseField(r.Kind(), key, fieldExpTimer)
	} else {
		c.store.SetField([]string{r.Kind(), key, fieldExpMode}, bt.Int(int64(mode)))
		c.store.SetField([]string{r.Kind(), key, fieldExpTimer}, bt.Int(timer))
	}
	return nil
}

// EraseOneToOne removes a direct conversation. Reports whether a record
// existed.
func (c *Conversations) EraseOneToOne(sessionID string) (bool, error) {
	id := sessid.ASCIILower(sessionID)
	if err := sessid.CheckSessionID(id); err != nil {
		return false, err
	}
	return c.store.EraseField(nsOneToOne, id), nil
}

// EraseOpenGroup removes an open group conversation.
func (c *Conversations) EraseOpenGroup(baseURL, room string, pubkey []byte) (bool, error) {
	probe, err := NewOpenGroup(baseURL, room, pubkey)
	if err != nil {
		return false, err
	}
	return c.store.EraseField(nsOpenGroup, probe.recordKey()), nil
}

// EraseLegacyGroup removes a legacy closed group conversation.
func (c *Conversations) EraseLegacyGroup(id string) (bool, error) {
	lid := sessid.ASCIILower(id)
	if err := sessid.CheckSessionID(lid); err != nil {
		return false, err
	}
	return c.store.EraseField(nsLegacyGroup, lid), nil
}

// Size returns the total number of conversation records.
func (c *Conversations) Size() int {
	return c.SizeOneToOne() + c.SizeOpenGroups() + c.SizeLegacyGroups()
}

// SizeOneToOne returns the number of direct conversation records.
func (c *Conversations) SizeOneToOne() int { return c.sizeNamespace(nsOneToOne) }

// SizeOpenGroups returns the number of open group records.
func (c *Conversations) SizeOpenGroups() int { return c.sizeNamespace(nsOpenGroup) }

// SizeLegacyGroups returns the number of legacy closed group records.
func (c *Conversations) SizeLegacyGroups() int { return c.sizeNamespace(nsLegacyGroup) }

// Empty reports whether no conversation records exist.
func (c *Conversations) Empty() bool { return c.Size() == 0 }

func validateRecord(r Record) (string, error) {
	switch rec := r.(type) {
	case *OneToOne:
		rec.SessionID = sessid.ASCIILower(rec.SessionID)
		return rec.SessionID, sessid.CheckSessionID(rec.SessionID)
	case *OpenGroup:
		if rec.baseURL == "" || rec.room == "" {
			return "", errors.Wrap(errors.ErrInvalidID, "open group record was not constructed")
		}
		return rec.recordKey(), nil
	case *LegacyGroup:
		rec.ID = sessid.ASCIILower(rec.ID)
		return rec.ID, sessid.CheckSessionID(rec.ID)
	default:
		return "", errors.AssertionFailedf("unknown record type %T", r)
	}
}

// recordDict fetches a record's field dict. (nil, false, nil) means the
// record does not exist; a present non-dict value is a malformed record.
func (c *Conversations) recordDict(ns, key string) (*bt.Dict, bool, error) {
	v, ok := c.store.Data().GetPath(ns, key)
	if !ok {
		return nil, false, nil
	}
	d, ok := v.(*bt.Dict)
	if !ok {
		return nil, false, errors.Wrapf(errors.ErrDecode,
			"conversation record %q/%x is not a dict", ns, key)
	}
	return d, true, nil
}

func (c *Conversations) sizeNamespace(ns string) int {
	nsv, ok := c.store.Data().Get(ns)
	if !ok {
		return 0
	}
	nsd, ok := nsv.(*bt.Dict)
	if !ok {
		return 0
	}
	n := 0
	for _, k := range nsd.Keys() {
		if _, isDict := mustGet(nsd, k).(*bt.Dict); isDict {
			n++
		}
	}
	return n
}

func mustGet(d *bt.Dict, k string) bt.Value {
	v, _ := d.Get(k)
	return v
}
