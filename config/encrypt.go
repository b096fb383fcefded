package config

import (
	"crypto/rand"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/chacha20poly1305"

	"github.com/murmurchat/replica/errors"
	"github.com/murmurchat/replica/securemem"
)

// The blob boundary: XChaCha20-Poly1305 with a random 24-byte nonce
// prepended to the ciphertext and the schema's encryption domain label as
// associated data, so blobs from different schemas under the same secret
// can never be confused or replayed across namespaces. Dumps use the same
// construction under a "/dump" suffixed label, separating local snapshots
// from wire blobs.

const dumpDomainSuffix = "/dump"

// deriveKey turns the long-term secret into this schema's symmetric key.
// The secret is either the 32-byte ed25519 seed or the full 64-byte secret
// key (seed followed by pubkey); only the seed half is used. The derived
// key is a keyed BLAKE2b-256 hash of the domain label under the seed, held
// in guarded memory.
func deriveKey(secret []byte, domain string) (*securemem.Key, error) {
	var seed []byte
	switch len(secret) {
	case 32:
		seed = secret
	case 64:
		seed = secret[:32]
	default:
		return nil, errors.Wrapf(errors.ErrInvalidSecret,
			"secret must be 32 or 64 bytes, got %d", len(secret))
	}

	h, err := blake2b.New256(seed)
	if err != nil {
		return nil, errors.Wrap(err, "failed to key BLAKE2b")
	}
	h.Write([]byte("replica.config." + domain))
	subkey := h.Sum(nil)

	// NewKey wipes subkey as it moves it into guarded memory.
	return securemem.NewKey(subkey), nil
}

// encrypt seals plaintext under the derived key with the given domain
// label as associated data. Output is nonce || ciphertext.
func encrypt(key *securemem.Key, domain string, plaintext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(key.Bytes())
	if err != nil {
		return nil, errors.Wrap(err, "failed to construct AEAD")
	}
	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := rand.Read(nonce); err != nil {
		return nil, errors.Wrap(err, "failed to read nonce randomness")
	}
	out := make([]byte, 0, len(nonce)+len(plaintext)+aead.Overhead())
	out = append(out, nonce...)
	return aead.Seal(out, nonce, plaintext, []byte(domain)), nil
}

// decrypt opens nonce || ciphertext, failing closed: a short, forged, or
// corrupted blob yields errors.ErrDecrypt and no plaintext.
func decrypt(key *securemem.Key, domain string, blob []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(key.Bytes())
	if err != nil {
		return nil, errors.Wrap(err, "failed to construct AEAD")
	}
	if len(blob) < chacha20poly1305.NonceSizeX+aead.Overhead() {
		return nil, errors.Wrap(errors.ErrDecrypt, "blob too short")
	}
	nonce := blob[:chacha20poly1305.NonceSizeX]
	ct := blob[chacha20poly1305.NonceSizeX:]
	plaintext, err := aead.Open(nil, nonce, ct, []byte(domain))
	if err != nil {
		return nil, errors.Wrap(errors.ErrDecrypt, "authentication failed")
	}
	return plaintext, nil
}
