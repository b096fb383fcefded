// Package bt implements the canonical config tree and its wire codec.
//
// A config tree is an ordered mapping from byte-string keys to typed values:
// signed 64-bit integers, byte-strings, sets of byte-strings, or nested
// trees. The wire form is a bencode-derived grammar in which dict keys and
// set members appear in strictly ascending byte order at every level, so
// equal trees always encode to identical bytes. That determinism is load
// bearing: change detection and merge bookkeeping hash the encoding.
//
// Constructs the local schema cannot interpret (for example a list written
// by newer software) decode into Raw values that re-encode byte-for-byte,
// so data from the future survives a round trip through this version.
package bt

import (
	"sort"
)

// Value is one node of a config tree: Int, Bytes, *Set, *Dict, or Raw.
type Value interface {
	isValue()
}

// Int is a signed 64-bit integer value.
type Int int64

// Bytes is a byte-string value. Keys and most schema strings use this.
type Bytes []byte

// Raw is a verbatim, self-delimiting encoded value that the current schema
// does not interpret. It re-encodes exactly as it was read.
type Raw []byte

// Set is an unordered collection of unique byte-strings. Members are
// encoded in ascending byte order.
type Set struct {
	m map[string]struct{}
}

// Dict is a mapping from byte-string keys to values. An empty Bytes, Set,
// or Dict is never stored: putting one is equivalent to deleting the key.
type Dict struct {
	m map[string]Value
}

func (Int) isValue()   {}
func (Bytes) isValue() {}
func (Raw) isValue()   {}
func (*Set) isValue()  {}
func (*Dict) isValue() {}

// NewSet creates a set containing the given members.
func NewSet(members ...string) *Set {
	s := &Set{m: make(map[string]struct{}, len(members))}
	for _, m := range members {
		s.m[m] = struct{}{}
	}
	return s
}

// Add inserts a member. Returns true if it was not already present.
func (s *Set) Add(member string) bool {
	if _, ok := s.m[member]; ok {
		return false
	}
	s.m[member] = struct{}{}
	return true
}

// Remove deletes a member. Returns true if it was present.
func (s *Set) Remove(member string) bool {
	if _, ok := s.m[member]; !ok {
		return false
	}
	delete(s.m, member)
	return true
}

// Has reports whether member is in the set.
func (s *Set) Has(member string) bool {
	_, ok := s.m[member]
	return ok
}

// Len returns the number of members.
func (s *Set) Len() int {
	return len(s.m)
}

// Members returns all members in ascending byte order.
func (s *Set) Members() []string {
	out := make([]string, 0, len(s.m))
	for m := range s.m {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}

// NewDict creates an empty dict.
func NewDict() *Dict {
	return &Dict{m: make(map[string]Value)}
}

// Len returns the number of keys.
func (d *Dict) Len() int {
	return len(d.m)
}

// Keys returns all keys in ascending byte order.
func (d *Dict) Keys() []string {
	out := make([]string, 0, len(d.m))
	for k := range d.m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Get returns the value at key.
func (d *Dict) Get(key string) (Value, bool) {
	v, ok := d.m[key]
	return v, ok
}

// Put stores a value at key, replacing any existing value. Storing an
// empty Bytes, Set, or Dict (or nil) deletes the key instead.
func (d *Dict) Put(key string, v Value) {
	if IsEmpty(v) {
		delete(d.m, key)
		return
	}
	d.m[key] = v
}

// Delete removes key. Returns true if it was present.
func (d *Dict) Delete(key string) bool {
	if _, ok := d.m[key]; !ok {
		return false
	}
	delete(d.m, key)
	return true
}

// GetInt returns the int64 at key, or false if absent or not an Int.
func (d *Dict) GetInt(key string) (int64, bool) {
	if v, ok := d.m[key].(Int); ok {
		return int64(v), true
	}
	return 0, false
}

// GetBytes returns the byte-string at key, or false if absent or not Bytes.
func (d *Dict) GetBytes(key string) ([]byte, bool) {
	if v, ok := d.m[key].(Bytes); ok {
		return v, true
	}
	return nil, false
}

// GetDict returns the nested dict at key, or false if absent or not a Dict.
func (d *Dict) GetDict(key string) (*Dict, bool) {
	if v, ok := d.m[key].(*Dict); ok {
		return v, true
	}
	return nil, false
}

// GetSet returns the set at key, or false if absent or not a Set.
func (d *Dict) GetSet(key string) (*Set, bool) {
	if v, ok := d.m[key].(*Set); ok {
		return v, true
	}
	return nil, false
}

// IsEmpty reports whether v counts as empty for storage purposes: nil, or
// a zero-length Bytes, Raw, Set, or Dict. Int values are never empty.
func IsEmpty(v Value) bool {
	switch t := v.(type) {
	case nil:
		return true
	case Bytes:
		return len(t) == 0
	case Raw:
		return len(t) == 0
	case *Set:
		return t == nil || len(t.m) == 0
	case *Dict:
		return t == nil || len(t.m) == 0
	default:
		return false
	}
}

// CloneValue returns a deep copy of v.
func CloneValue(v Value) Value {
	switch t := v.(type) {
	case Int:
		return t
	case Bytes:
		out := make(Bytes, len(t))
		copy(out, t)
		return out
	case Raw:
		out := make(Raw, len(t))
		copy(out, t)
		return out
	case *Set:
		s := NewSet()
		for m := range t.m {
			s.m[m] = struct{}{}
		}
		return s
	case *Dict:
		return t.Clone()
	default:
		return nil
	}
}

// Clone returns a deep copy of the dict.
func (d *Dict) Clone() *Dict {
	out := &Dict{m: make(map[string]Value, len(d.m))}
	for k, v := range d.m {
		out.m[k] = CloneValue(v)
	}
	return out
}

// Equal reports whether two values encode identically.
func Equal(a, b Value) bool {
	return string(Encode(a)) == string(Encode(b))
}
