package bt

// GetPath returns the value reached by walking the given keys from d.
// Absence is not an error: a missing or wrong-variant intermediate simply
// yields false.
func (d *Dict) GetPath(path ...string) (Value, bool) {
	if len(path) == 0 {
		return nil, false
	}
	cur := d
	for _, key := range path[:len(path)-1] {
		next, ok := cur.GetDict(key)
		if !ok {
			return nil, false
		}
		cur = next
	}
	v, ok := cur.Get(path[len(path)-1])
	return v, ok
}

// SetPath writes v at the given path, creating intermediate dicts as
// needed. A non-dict intermediate is replaced. Writing an empty value is
// equivalent to ErasePath, keeping the encoding canonical.
func (d *Dict) SetPath(path []string, v Value) {
	if len(path) == 0 {
		panic("bt: SetPath with empty path")
	}
	if IsEmpty(v) {
		d.ErasePath(path...)
		return
	}
	cur := d
	for _, key := range path[:len(path)-1] {
		next, ok := cur.GetDict(key)
		if !ok {
			next = NewDict()
			cur.m[key] = next
		}
		cur = next
	}
	cur.m[path[len(path)-1]] = v
}

// ErasePath removes the value at the given path and prunes any
// intermediate dict that becomes empty as a result, up to but not
// including the root. Returns true if a value was removed.
func (d *Dict) ErasePath(path ...string) bool {
	if len(path) == 0 {
		panic("bt: ErasePath with empty path")
	}
	return erasePath(d, path)
}

func erasePath(d *Dict, path []string) bool {
	if len(path) == 1 {
		return d.Delete(path[0])
	}
	child, ok := d.GetDict(path[0])
	if !ok {
		return false
	}
	removed := erasePath(child, path[1:])
	if removed && child.Len() == 0 {
		delete(d.m, path[0])
	}
	return removed
}
