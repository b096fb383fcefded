package convo

import "github.com/murmurchat/replica/bt"

// iterNamespaces fixes the iteration order across conversation kinds.
// The reserved namespace is not visited.
var iterNamespaces = []string{nsOneToOne, nsOpenGroup, nsLegacyGroup}

// Iterator walks every conversation record in a stable order: one-to-one
// chats, then open groups, then legacy groups, each sorted by record key.
// Keys are snapshotted per namespace when the iterator enters it, so
// Delete is safe during iteration; records that vanished or do not decode
// are skipped.
type Iterator struct {
	c *Conversations

	nsIdx  int
	keys   []string // snapshot of the current namespace's keys
	keyIdx int

	curNS  string
	curKey string
	cur    Record
}

// Iterate starts a walk over all conversation records. The only safe
// mutation while iterating is the iterator's own Delete.
func (c *Conversations) Iterate() *Iterator {
	return &Iterator{c: c, keys: nil, keyIdx: 0}
}

// Next advances to the next decodable record, returning false when the
// walk is done.
func (it *Iterator) Next() bool {
	for it.nsIdx < len(iterNamespaces) {
		ns := iterNamespaces[it.nsIdx]
		if it.keys == nil {
			it.keys = it.snapshotKeys(ns)
			it.keyIdx = 0
		}
		for it.keyIdx < len(it.keys) {
			key := it.keys[it.keyIdx]
			it.keyIdx++
			if rec, ok := it.load(ns, key); ok {
				it.curNS, it.curKey, it.cur = ns, key, rec
				return true
			}
		}
		it.nsIdx++
		it.keys = nil
	}
	it.cur = nil
	return false
}

// Value returns the record Next stopped on.
func (it *Iterator) Value() Record { return it.cur }

// Delete removes the current record from the store. Iteration continues
// with the next record.
func (it *Iterator) Delete() {
	if it.cur != nil {
		it.c.store.EraseField(it.curNS, it.curKey)
		it.cur = nil
	}
}

func (it *Iterator) snapshotKeys(ns string) []string {
	nsv, ok := it.c.store.Data().Get(ns)
	if !ok {
		return []string{}
	}
	nsd, ok := nsv.(*bt.Dict)
	if !ok {
		return []string{}
	}
	return nsd.Keys()
}

// load decodes the record at ns/key, reporting false for entries that
// are gone or do not fit the schema.
func (it *Iterator) load(ns, key string) (Record, bool) {
	d, ok, err := it.c.recordDict(ns, key)
	if err != nil || !ok {
		return nil, false
	}
	switch ns {
	case nsOneToOne:
		return oneToOneFromDict(key, d), true
	case nsOpenGroup:
		g, err := openGroupFromDict(key, d)
		if err != nil {
			return nil, false
		}
		return g, true
	case nsLegacyGroup:
		return legacyGroupFromDict(key, d), true
	}
	return nil, false
}
