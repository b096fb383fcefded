package sessid

import (
	"bytes"
	"encoding/base32"
	"encoding/base64"
	"encoding/hex"
	"strings"
	"testing"
)

var samplePubkey = bytes.Repeat([]byte{0xd1, 0x2c}, 16)

func TestCheckSessionID(t *testing.T) {
	valid := "05" + strings.Repeat("ab12", 16)
	if err := CheckSessionID(valid); err != nil {
		t.Fatalf("valid session ID rejected: %v", err)
	}

	cases := map[string]string{
		"too short":    "05abcd",
		"too long":     valid + "00",
		"wrong prefix": "03" + strings.Repeat("ab12", 16),
		"not hex":      "05" + strings.Repeat("zz12", 16),
		"empty":        "",
	}
	for name, id := range cases {
		if err := CheckSessionID(id); err == nil {
			t.Errorf("%s: expected error for %q", name, id)
		}
	}
}

func TestDecodePubkey_AllEncodings(t *testing.T) {
	b32z := base32.NewEncoding("ybndrfg8ejkmcpqxot1uwisza345h769").WithPadding(base32.NoPadding)

	encodings := map[string]string{
		"hex":             hex.EncodeToString(samplePubkey),
		"hex upper":       strings.ToUpper(hex.EncodeToString(samplePubkey)),
		"base32z":         b32z.EncodeToString(samplePubkey),
		"base64 padded":   base64.StdEncoding.EncodeToString(samplePubkey),
		"base64 unpadded": base64.RawStdEncoding.EncodeToString(samplePubkey),
	}
	for name, enc := range encodings {
		pk, err := DecodePubkey(enc)
		if err != nil {
			t.Errorf("%s: decode failed: %v", name, err)
			continue
		}
		if !bytes.Equal(pk, samplePubkey) {
			t.Errorf("%s: decoded %x, want %x", name, pk, samplePubkey)
		}
	}
}

func TestDecodePubkey_Malformed(t *testing.T) {
	cases := map[string]string{
		"empty":            "",
		"wrong length":     "abcdef",
		"hex with garbage": strings.Repeat("zz", 32),
		"bad base64":       strings.Repeat("!", 44),
	}
	for name, in := range cases {
		if _, err := DecodePubkey(in); err == nil {
			t.Errorf("%s: expected error for %q", name, in)
		}
	}
}

func TestASCIILower(t *testing.T) {
	cases := map[string]string{
		"HTTPS://Example.ORG": "https://example.org",
		"already-lower":       "already-lower",
		"General":             "general",
		"":                    "",
		"with\x00nul\xffByte": "with\x00nul\xffbyte",
	}
	for in, want := range cases {
		if got := ASCIILower(in); got != want {
			t.Errorf("ASCIILower(%q) = %q, want %q", in, got, want)
		}
	}
}
