package convo

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/murmurchat/replica/bt"
	"github.com/murmurchat/replica/errors"
)

var testSecret = bytes.Repeat([]byte{0x24}, 32)

func sid(fill string) string {
	return "05" + strings.Repeat(fill, 64/len(fill))
}

var testPubkey = bytes.Repeat([]byte{0xc3}, 32)

func newTestConvos(t *testing.T, dump []byte) *Conversations {
	t.Helper()
	c, err := New(testSecret, dump, zaptest.NewLogger(t).Sugar())
	require.NoError(t, err)
	t.Cleanup(c.Destroy)
	return c
}

func TestOneToOne_SetGetErase(t *testing.T) {
	c := newTestConvos(t, nil)
	alice := sid("a1")

	got, err := c.GetOneToOne(alice)
	require.NoError(t, err)
	assert.Nil(t, got, "absent record is nil, not an error")

	rec, err := c.GetOrConstructOneToOne(alice)
	require.NoError(t, err)
	rec.LastRead = 1234
	rec.Expiration = ExpirationAfterRead
	rec.ExpirationMinutes = 30
	require.NoError(t, c.Set(rec))
	assert.True(t, c.NeedsPush())

	got, err = c.GetOneToOne(alice)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, int64(1234), got.LastRead)
	assert.Equal(t, ExpirationAfterRead, got.Expiration)
	assert.Equal(t, int64(30), got.ExpirationMinutes)

	removed, err := c.EraseOneToOne(alice)
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = c.EraseOneToOne(alice)
	require.NoError(t, err)
	assert.False(t, removed, "second erase finds nothing")
}

func TestOneToOne_RejectsBadSessionIDs(t *testing.T) {
	c := newTestConvos(t, nil)

	for _, bad := range []string{"", "05abc", "03" + strings.Repeat("ab", 32), sid("a1") + "ff"} {
		_, err := c.GetOneToOne(bad)
		require.Error(t, err, "id %q", bad)
		assert.True(t, errors.Is(err, errors.ErrInvalidID))

		_, err = c.EraseOneToOne(bad)
		require.Error(t, err)
	}
}

func TestOneToOne_ClearingExpirationDropsTimer(t *testing.T) {
	c := newTestConvos(t, nil)
	alice := sid("a1")

	rec := &OneToOne{SessionID: alice, LastRead: 1, Expiration: ExpirationAfterSend, ExpirationMinutes: 5}
	require.NoError(t, c.Set(rec))

	_, ok := c.Store().GetField(nsOneToOne, alice, fieldExpTimer)
	require.True(t, ok)

	rec.Expiration = ExpirationNone
	require.NoError(t, c.Set(rec))

	_, ok = c.Store().GetField(nsOneToOne, alice, fieldExpMode)
	assert.False(t, ok, "mode field must be erased when expiration is off")
	_, ok = c.Store().GetField(nsOneToOne, alice, fieldExpTimer)
	assert.False(t, ok, "timer field must be erased when expiration is off")

	got, err := c.GetOneToOne(alice)
	require.NoError(t, err)
	assert.Equal(t, ExpirationNone, got.Expiration)
	assert.Zero(t, got.ExpirationMinutes)
}

func TestOpenGroup_LookupIsCaseInsensitive(t *testing.T) {
	c := newTestConvos(t, nil)

	rec, err := NewOpenGroup("HTTPS://Example.ORG", "General", testPubkey)
	require.NoError(t, err)
	rec.LastRead = 99
	require.NoError(t, c.Set(rec))

	got, err := c.GetOpenGroup("https://example.org", "general", testPubkey)
	require.NoError(t, err)
	require.NotNil(t, got, "lowercase lookup must find the mixed-case insert")
	assert.Equal(t, int64(99), got.LastRead)
	assert.Equal(t, "https://example.org", got.BaseURL())
	assert.Equal(t, "general", got.Room())
	assert.Equal(t, testPubkey, got.Pubkey())

	// And the other direction.
	got, err = c.GetOpenGroup("HTTPS://EXAMPLE.ORG", "GENERAL", testPubkey)
	require.NoError(t, err)
	require.NotNil(t, got)

	removed, err := c.EraseOpenGroup("https://Example.org", "geNeraL", testPubkey)
	require.NoError(t, err)
	assert.True(t, removed)
}

func TestOpenGroup_Validation(t *testing.T) {
	_, err := NewOpenGroup("", "room", testPubkey)
	assert.Error(t, err)

	_, err = NewOpenGroup("https://x.org", "", testPubkey)
	assert.Error(t, err)

	_, err = NewOpenGroup("https://x.org", "room", []byte{1, 2, 3})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidPubkey))

	_, err = NewOpenGroup("https://x\x00.org", "room", testPubkey)
	assert.Error(t, err, "NUL would corrupt the record key")

	_, err = NewOpenGroupEncoded("https://x.org", "room", "not-a-pubkey")
	assert.Error(t, err)
}

func TestLegacyGroup_SetGet(t *testing.T) {
	c := newTestConvos(t, nil)
	group := sid("05ee")

	rec, err := c.GetOrConstructLegacyGroup(group)
	require.NoError(t, err)
	rec.LastRead = 777
	require.NoError(t, c.Set(rec))

	got, err := c.GetLegacyGroup(group)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, int64(777), got.LastRead)
}

func TestSet_PreservesUnknownRecordFields(t *testing.T) {
	c := newTestConvos(t, nil)
	alice := sid("a1")

	require.NoError(t, c.Set(&OneToOne{SessionID: alice, LastRead: 5}))

	// A newer peer wrote a field this version has no name for.
	c.Store().SetField([]string{nsOneToOne, alice, "z"}, bt.Bytes("future"))

	require.NoError(t, c.Set(&OneToOne{SessionID: alice, LastRead: 10}))

	v, ok := c.Store().GetField(nsOneToOne, alice, "z")
	require.True(t, ok, "updating known fields must not clobber unknown siblings")
	assert.Equal(t, bt.Bytes("future"), v)
}

func TestSizeAndEmpty(t *testing.T) {
	c := newTestConvos(t, nil)
	assert.True(t, c.Empty())

	require.NoError(t, c.Set(&OneToOne{SessionID: sid("a1"), LastRead: 1}))
	require.NoError(t, c.Set(&OneToOne{SessionID: sid("b2"), LastRead: 1}))
	require.NoError(t, c.Set(&LegacyGroup{ID: sid("05dd"), LastRead: 1}))
	og, err := NewOpenGroup("https://x.org", "room", testPubkey)
	require.NoError(t, err)
	require.NoError(t, c.Set(og))

	assert.Equal(t, 2, c.SizeOneToOne())
	assert.Equal(t, 1, c.SizeOpenGroups())
	assert.Equal(t, 1, c.SizeLegacyGroups())
	assert.Equal(t, 4, c.Size())
	assert.False(t, c.Empty())
}

func TestIterator_OrderedAcrossKinds(t *testing.T) {
	c := newTestConvos(t, nil)

	require.NoError(t, c.Set(&OneToOne{SessionID: sid("b2"), LastRead: 1}))
	require.NoError(t, c.Set(&OneToOne{SessionID: sid("a1"), LastRead: 1}))
	require.NoError(t, c.Set(&LegacyGroup{ID: sid("05dd"), LastRead: 1}))
	og, err := NewOpenGroup("https://x.org", "room", testPubkey)
	require.NoError(t, err)
	require.NoError(t, c.Set(og))

	var kinds []string
	var keys []string
	it := c.Iterate()
	for it.Next() {
		rec := it.Value()
		kinds = append(kinds, rec.Kind())
		switch r := rec.(type) {
		case *OneToOne:
			keys = append(keys, r.SessionID)
		case *OpenGroup:
			keys = append(keys, r.BaseURL()+"/"+r.Room())
		case *LegacyGroup:
			keys = append(keys, r.ID)
		}
	}

	assert.Equal(t, []string{nsOneToOne, nsOneToOne, nsOpenGroup, nsLegacyGroup}, kinds)
	assert.Equal(t, []string{sid("a1"), sid("b2"), "https://x.org/room", sid("05dd")}, keys)
}

func TestIterator_DeleteDuringIteration(t *testing.T) {
	c := newTestConvos(t, nil)

	a, b, d := sid("aa"), sid("bb"), sid("dd")
	for _, id := range []string{a, b, d} {
		require.NoError(t, c.Set(&OneToOne{SessionID: id, LastRead: 1}))
	}

	var visited []string
	it := c.Iterate()
	for it.Next() {
		rec := it.Value().(*OneToOne)
		visited = append(visited, rec.SessionID)
		if rec.SessionID == b {
			it.Delete()
		}
	}

	assert.Equal(t, []string{a, b, d}, visited, "delete must not skip the rest of the walk")

	got, err := c.GetOneToOne(b)
	require.NoError(t, err)
	assert.Nil(t, got, "deleted record must be gone")
	assert.Equal(t, 2, c.SizeOneToOne())
}

func TestIterator_SkipsMalformedEntries(t *testing.T) {
	c := newTestConvos(t, nil)
	require.NoError(t, c.Set(&OneToOne{SessionID: sid("a1"), LastRead: 1}))

	// A record slot holding something other than a field dict.
	c.Store().SetField([]string{nsOneToOne, "bogus"}, bt.Int(42))
	// An open group key that does not parse.
	c.Store().SetField([]string{nsOpenGroup, "no-separators", fieldLastRead}, bt.Int(1))

	count := 0
	it := c.Iterate()
	for it.Next() {
		count++
	}
	assert.Equal(t, 1, count)
}

func TestTwoDevices_LastReadConverges(t *testing.T) {
	dev1 := newTestConvos(t, nil)
	dev2 := newTestConvos(t, nil)
	alice := sid("a1")

	require.NoError(t, dev1.Set(&OneToOne{SessionID: alice, LastRead: 1000}))
	blob, ns, err := dev1.Push()
	require.NoError(t, err)
	assert.Equal(t, dev1.Namespace(), ns)

	require.NoError(t, dev2.Pull(blob))
	got, err := dev2.GetOneToOne(alice)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, int64(1000), got.LastRead)

	// The second device reads further; the first catches up.
	got.LastRead = 2000
	require.NoError(t, dev2.Set(got))
	blob, _, err = dev2.Push()
	require.NoError(t, err)
	require.NoError(t, dev1.Pull(blob))

	got, err = dev1.GetOneToOne(alice)
	require.NoError(t, err)
	assert.Equal(t, int64(2000), got.LastRead)

	// A stale marker from the first device cannot move it backwards.
	require.NoError(t, dev1.Pull(blob))
	got, _ = dev1.GetOneToOne(alice)
	assert.Equal(t, int64(2000), got.LastRead)
}

func TestDumpRestore_RoundTrip(t *testing.T) {
	c := newTestConvos(t, nil)
	require.NoError(t, c.Set(&OneToOne{SessionID: sid("a1"), LastRead: 123}))
	og, err := NewOpenGroup("https://x.org", "room", testPubkey)
	require.NoError(t, err)
	og.LastRead = 456
	require.NoError(t, c.Set(og))

	dump, err := c.Dump()
	require.NoError(t, err)

	restored := newTestConvos(t, dump)
	assert.Equal(t, c.Size(), restored.Size())

	got, err := restored.GetOpenGroup("https://x.org", "room", testPubkey)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, int64(456), got.LastRead)
}
