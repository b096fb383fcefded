// Package securemem holds secret key material in guarded memory.
//
// A Key wraps a memguard LockedBuffer: the pages are mlocked so the key
// never reaches swap, guard pages and canaries catch out-of-bounds access,
// and Destroy actively zeroes the memory rather than merely freeing it.
// Keys are exclusively owned: they are never copied, and a destroyed Key
// must not be used again.
package securemem

import (
	"github.com/awnumar/memguard"
)

// Key is a fixed secret held in locked, guarded memory.
//
// Allocation failure inside memguard is fatal to the process (it panics),
// matching the allocate-or-fail contract for key material: there is no
// meaningful way to continue without a home for the key.
type Key struct {
	buf *memguard.LockedBuffer
}

// NewKey moves the given bytes into guarded memory. The source slice is
// wiped as a side effect, so the caller's plaintext copy does not linger.
func NewKey(b []byte) *Key {
	return &Key{buf: memguard.NewBufferFromBytes(b)}
}

// NewRandomKey returns a Key filled with n cryptographically random bytes.
func NewRandomKey(n int) *Key {
	return &Key{buf: memguard.NewBufferRandom(n)}
}

// Bytes exposes the key material. The returned slice aliases the guarded
// buffer: do not retain it past the Key's lifetime and do not write to it.
func (k *Key) Bytes() []byte {
	return k.buf.Bytes()
}

// Len returns the key length in bytes.
func (k *Key) Len() int {
	return k.buf.Size()
}

// Destroy zeroes and releases the guarded memory. Idempotent.
func (k *Key) Destroy() {
	if k.buf != nil {
		k.buf.Destroy()
		k.buf = nil
	}
}

// Destroyed reports whether the key material has been wiped.
func (k *Key) Destroyed() bool {
	return k.buf == nil || !k.buf.IsAlive()
}
