package bt

import (
	"strconv"

	"github.com/murmurchat/replica/errors"
)

// maxDepth bounds tree nesting during decode so hostile input cannot
// exhaust the stack.
const maxDepth = 100

// Encode returns the canonical wire form of a value. Equal values always
// produce byte-identical output.
//
// Grammar (bencode-derived, fixed for cross-device compatibility):
//
//	int    = "i" signed-decimal "e"
//	bytes  = decimal-length ":" raw-bytes
//	set    = "l" bytes* "e"          members ascending, unique
//	dict   = "d" (bytes value)* "e"  keys ascending, unique
//
// Raw values are emitted verbatim.
func Encode(v Value) []byte {
	return appendValue(nil, v)
}

func appendValue(dst []byte, v Value) []byte {
	switch t := v.(type) {
	case Int:
		dst = append(dst, 'i')
		dst = strconv.AppendInt(dst, int64(t), 10)
		return append(dst, 'e')
	case Bytes:
		return appendString(dst, string(t))
	case Raw:
		return append(dst, t...)
	case *Set:
		dst = append(dst, 'l')
		for _, m := range t.Members() {
			dst = appendString(dst, m)
		}
		return append(dst, 'e')
	case *Dict:
		dst = append(dst, 'd')
		for _, k := range t.Keys() {
			dst = appendString(dst, k)
			v, _ := t.Get(k)
			dst = appendValue(dst, v)
		}
		return append(dst, 'e')
	default:
		panic(errors.AssertionFailedf("bt: cannot encode %T", v))
	}
}

func appendString(dst []byte, s string) []byte {
	dst = strconv.AppendInt(dst, int64(len(s)), 10)
	dst = append(dst, ':')
	return append(dst, s...)
}

// DecodeDict parses a complete canonical encoding of a dict. It rejects
// truncated input, trailing bytes, out-of-order or duplicate keys, and
// malformed tokens with an error wrapping errors.ErrDecode.
func DecodeDict(data []byte) (*Dict, error) {
	dec := decoder{data: data}
	v, err := dec.value(0)
	if err != nil {
		return nil, err
	}
	d, ok := v.(*Dict)
	if !ok {
		return nil, errors.Wrap(errors.ErrDecode, "top-level value is not a dict")
	}
	if dec.pos != len(data) {
		return nil, errors.Wrapf(errors.ErrDecode, "%d trailing bytes after dict", len(data)-dec.pos)
	}
	return d, nil
}

type decoder struct {
	data []byte
	pos  int
}

func (d *decoder) peek() (byte, error) {
	if d.pos >= len(d.data) {
		return 0, errors.Wrap(errors.ErrDecode, "unexpected end of input")
	}
	return d.data[d.pos], nil
}

// value parses one self-delimiting value.
//
// Empty bytes/dicts and lists holding anything other than a sorted, unique
// run of byte-strings are canonical for some newer schema we don't know:
// they come back as Raw so they re-encode exactly as read.
func (d *decoder) value(depth int) (Value, error) {
	if depth > maxDepth {
		return nil, errors.Wrap(errors.ErrDecode, "nesting too deep")
	}
	c, err := d.peek()
	if err != nil {
		return nil, err
	}
	switch {
	case c == 'i':
		return d.integer()
	case c >= '0' && c <= '9':
		start := d.pos
		s, err := d.byteString()
		if err != nil {
			return nil, err
		}
		if len(s) == 0 {
			return Raw(d.data[start:d.pos]), nil
		}
		return Bytes(s), nil
	case c == 'l':
		return d.list(depth)
	case c == 'd':
		return d.dict(depth)
	default:
		return nil, errors.Wrapf(errors.ErrDecode, "invalid type byte %q at offset %d", c, d.pos)
	}
}

func (d *decoder) integer() (Value, error) {
	d.pos++ // 'i'
	start := d.pos
	for d.pos < len(d.data) && d.data[d.pos] != 'e' {
		d.pos++
	}
	if d.pos >= len(d.data) {
		return nil, errors.Wrap(errors.ErrDecode, "unterminated integer")
	}
	tok := string(d.data[start:d.pos])
	d.pos++ // 'e'
	if !canonicalInt(tok) {
		return nil, errors.Wrapf(errors.ErrDecode, "non-canonical integer %q", tok)
	}
	n, err := strconv.ParseInt(tok, 10, 64)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrDecode, "integer %q out of range", tok)
	}
	return Int(n), nil
}

// canonicalInt rejects empty tokens, leading zeros, "-0", and non-digits.
func canonicalInt(s string) bool {
	if s == "" || s == "-" {
		return false
	}
	body := s
	if s[0] == '-' {
		body = s[1:]
	}
	if len(body) == 0 || (len(body) > 1 && body[0] == '0') {
		return false
	}
	if s == "-0" {
		return false
	}
	for i := 0; i < len(body); i++ {
		if body[i] < '0' || body[i] > '9' {
			return false
		}
	}
	return true
}

func (d *decoder) byteString() (string, error) {
	start := d.pos
	for d.pos < len(d.data) && d.data[d.pos] != ':' {
		d.pos++
	}
	if d.pos >= len(d.data) {
		return "", errors.Wrap(errors.ErrDecode, "unterminated string length")
	}
	tok := string(d.data[start:d.pos])
	if tok == "" || (len(tok) > 1 && tok[0] == '0') {
		return "", errors.Wrapf(errors.ErrDecode, "non-canonical string length %q", tok)
	}
	n, err := strconv.ParseInt(tok, 10, 32)
	if err != nil || n < 0 {
		return "", errors.Wrapf(errors.ErrDecode, "bad string length %q", tok)
	}
	d.pos++ // ':'
	if d.pos+int(n) > len(d.data) {
		return "", errors.Wrap(errors.ErrDecode, "string truncated")
	}
	s := string(d.data[d.pos : d.pos+int(n)])
	d.pos += int(n)
	return s, nil
}

// list parses "l...e". A sorted, unique run of byte-strings is a Set; a
// string run that is unsorted or has duplicates is rejected (the canonical
// ordering rule applies at every level); anything else is preserved as Raw.
func (d *decoder) list(depth int) (Value, error) {
	start := d.pos
	d.pos++ // 'l'
	set := NewSet()
	isSet := true
	prev := ""
	first := true
	for {
		c, err := d.peek()
		if err != nil {
			return nil, err
		}
		if c == 'e' {
			d.pos++
			break
		}
		v, err := d.value(depth + 1)
		if err != nil {
			return nil, err
		}
		if !isSet {
			continue
		}
		b, ok := v.(Bytes)
		if !ok {
			isSet = false
			continue
		}
		m := string(b)
		if !first && m <= prev {
			return nil, errors.Wrapf(errors.ErrDecode, "set members out of order at offset %d", start)
		}
		set.Add(m)
		prev, first = m, false
	}
	if !isSet || set.Len() == 0 {
		return Raw(d.data[start:d.pos]), nil
	}
	return set, nil
}

func (d *decoder) dict(depth int) (Value, error) {
	start := d.pos
	d.pos++ // 'd'
	out := NewDict()
	prev := ""
	first := true
	for {
		c, err := d.peek()
		if err != nil {
			return nil, err
		}
		if c == 'e' {
			d.pos++
			break
		}
		key, err := d.byteString()
		if err != nil {
			return nil, err
		}
		if !first && key <= prev {
			return nil, errors.Wrapf(errors.ErrDecode, "dict keys out of order at key %q", key)
		}
		prev, first = key, false
		v, err := d.value(depth + 1)
		if err != nil {
			return nil, err
		}
		out.m[key] = v
	}
	// A nested empty dict is non-canonical for this schema (empty values
	// are never stored); preserve the exact bytes. At the top level an
	// empty dict is just an empty tree.
	if out.Len() == 0 && depth > 0 {
		return Raw(d.data[start:d.pos]), nil
	}
	return out, nil
}
