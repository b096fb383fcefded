package config

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/murmurchat/replica/bt"
	"github.com/murmurchat/replica/errors"
)

var testSecret = bytes.Repeat([]byte{0x42}, 32)

func testOptions() Options {
	return Options{
		Namespace:        NamespaceConversations,
		EncryptionDomain: "Conversations",
		Policy:           readMarkerPolicy,
	}
}

func newTestStore(t *testing.T, dump []byte) *Store {
	t.Helper()
	s, err := New(testSecret, dump, testOptions(), zaptest.NewLogger(t).Sugar())
	require.NoError(t, err)
	t.Cleanup(s.Destroy)
	return s
}

func TestNew_RejectsBadSecret(t *testing.T) {
	_, err := New([]byte("short"), nil, testOptions(), nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidSecret))
}

func TestNew_RejectsCorruptDump(t *testing.T) {
	s := newTestStore(t, nil)
	s.SetField([]string{"1", "alice", "r"}, bt.Int(1))
	dump, err := s.Dump()
	require.NoError(t, err)

	// Flip one ciphertext bit: restore must fail closed.
	dump[len(dump)-1] ^= 0x01
	_, err = New(testSecret, dump, testOptions(), nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidDump))

	// Wrong key: same failure.
	dump[len(dump)-1] ^= 0x01
	otherSecret := bytes.Repeat([]byte{0x43}, 32)
	_, err = New(otherSecret, dump, testOptions(), nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidDump))
}

func TestPushPull_TwoDevicesConverge(t *testing.T) {
	dev1 := newTestStore(t, nil)
	dev2 := newTestStore(t, nil)

	dev1.SetField([]string{"1", "alice", "r"}, bt.Int(1000))
	require.True(t, dev1.NeedsPush())

	blob1, ns, err := dev1.Push()
	require.NoError(t, err)
	assert.Equal(t, NamespaceConversations, ns)
	assert.False(t, dev1.NeedsPush())

	require.NoError(t, dev2.Pull(blob1))
	v, ok := dev2.GetField("1", "alice", "r")
	require.True(t, ok)
	assert.Equal(t, bt.Int(1000), v)

	dev2.SetField([]string{"1", "alice", "r"}, bt.Int(2000))
	blob2, _, err := dev2.Push()
	require.NoError(t, err)

	require.NoError(t, dev1.Pull(blob2))
	v, _ = dev1.GetField("1", "alice", "r")
	assert.Equal(t, bt.Int(2000), v)

	assert.True(t, bt.Equal(dev1.Data(), dev2.Data()), "devices must converge")
}

func TestPull_OwnPushIsRecognized(t *testing.T) {
	s := newTestStore(t, nil)
	s.SetField([]string{"1", "alice", "r"}, bt.Int(7))

	blob, _, err := s.Push()
	require.NoError(t, err)
	seqno := s.Seqno()
	enc := bt.Encode(s.Data())

	// The store's own blob coming back from shared storage is a no-op.
	require.NoError(t, s.Pull(blob))
	assert.Equal(t, seqno, s.Seqno())
	assert.Equal(t, enc, bt.Encode(s.Data()))
}

func TestPull_TamperedBlobLeavesStateUntouched(t *testing.T) {
	dev1 := newTestStore(t, nil)
	dev2 := newTestStore(t, nil)

	dev2.SetField([]string{"1", "bob", "r"}, bt.Int(5))
	before := bt.Encode(dev2.Data())

	dev1.SetField([]string{"1", "alice", "r"}, bt.Int(9))
	blob, _, err := dev1.Push()
	require.NoError(t, err)
	blob[len(blob)/2] ^= 0x80

	err = dev2.Pull(blob)
	require.Error(t, err)
	assert.True(t, errors.IsDecryptError(err))
	assert.Equal(t, before, bt.Encode(dev2.Data()), "failed pull must not mutate the tree")
}

func TestPull_WrongDomainFailsAuthentication(t *testing.T) {
	convos := newTestStore(t, nil)

	other, err := New(testSecret, nil, Options{
		Namespace:        NamespaceContacts,
		EncryptionDomain: "Contacts",
	}, nil)
	require.NoError(t, err)
	defer other.Destroy()

	other.SetField([]string{"x"}, bt.Int(1))
	blob, _, err := other.Push()
	require.NoError(t, err)

	// A blob from a different schema under the same secret must not be
	// accepted into this one.
	err = convos.Pull(blob)
	require.Error(t, err)
	assert.True(t, errors.IsDecryptError(err))
}

func TestPullAll_SkipsBadBlobsAndContinues(t *testing.T) {
	dev1 := newTestStore(t, nil)
	dev2 := newTestStore(t, nil)
	dev3 := newTestStore(t, nil)

	dev1.SetField([]string{"1", "alice", "r"}, bt.Int(1))
	good1, _, err := dev1.Push()
	require.NoError(t, err)

	dev2.SetField([]string{"1", "bob", "r"}, bt.Int(2))
	good2, _, err := dev2.Push()
	require.NoError(t, err)

	bad := append([]byte(nil), good1...)
	bad[0] ^= 0xFF

	applied := dev3.PullAll(good1, bad, good2)
	assert.Equal(t, 2, applied)

	_, okA := dev3.GetField("1", "alice")
	_, okB := dev3.GetField("1", "bob")
	assert.True(t, okA)
	assert.True(t, okB)
}

func TestDumpRestore_ReproducesState(t *testing.T) {
	s := newTestStore(t, nil)
	s.SetField([]string{"1", "alice", "r"}, bt.Int(123))
	s.SetField([]string{"o", "key", "r"}, bt.Int(456))

	peer := newTestStore(t, nil)
	peer.SetField([]string{"1", "carol", "r"}, bt.Int(9))
	blob, _, err := peer.Push()
	require.NoError(t, err)
	require.NoError(t, s.Pull(blob))

	dump, err := s.Dump()
	require.NoError(t, err)
	assert.False(t, s.NeedsDump())

	restored := newTestStore(t, dump)
	assert.Equal(t, s.Seqno(), restored.Seqno())
	assert.Equal(t, s.NeedsPush(), restored.NeedsPush())
	assert.Equal(t, bt.Encode(s.Data()), bt.Encode(restored.Data()))

	// Bookkeeping survives: the blob merged before the dump is still
	// recognized as already applied.
	require.NoError(t, restored.Pull(blob))
	assert.Equal(t, bt.Encode(s.Data()), bt.Encode(restored.Data()))
}

func TestDump_IsEncrypted(t *testing.T) {
	s := newTestStore(t, nil)
	s.SetField([]string{"1", "alice", "r"}, bt.Int(1))

	dump, err := s.Dump()
	require.NoError(t, err)
	assert.NotContains(t, string(dump), "alice", "dump must not leak plaintext")
}

func TestSetField_UnchangedWriteStaysClean(t *testing.T) {
	s := newTestStore(t, nil)
	s.SetField([]string{"1", "alice", "r"}, bt.Int(1))
	_, _, err := s.Push()
	require.NoError(t, err)

	s.SetField([]string{"1", "alice", "r"}, bt.Int(1))
	assert.False(t, s.NeedsPush(), "rewriting the same value is not a change")

	s.EraseField("1", "nobody")
	assert.False(t, s.NeedsPush(), "erasing an absent path is not a change")
}

func TestPushSeqno_AdvancesOnlyWhenDirty(t *testing.T) {
	s := newTestStore(t, nil)
	s.SetField([]string{"1", "alice", "r"}, bt.Int(1))

	_, _, err := s.Push()
	require.NoError(t, err)
	first := s.Seqno()

	// Re-push without changes: same seqno.
	_, _, err = s.Push()
	require.NoError(t, err)
	assert.Equal(t, first, s.Seqno())

	s.SetField([]string{"1", "alice", "r"}, bt.Int(2))
	_, _, err = s.Push()
	require.NoError(t, err)
	assert.Equal(t, first+1, s.Seqno())
}
