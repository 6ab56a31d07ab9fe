package crdt

// textChar is one character in a replicated text sequence. Deleted
// characters remain as tombstones so concurrent edits anchored on them
// still integrate.
type textChar struct {
	ID      Clock
	Origin  Clock
	Ch      rune
	Deleted bool
}

// textSeq is an RGA (replicated growable array) character sequence.
// Integration follows the original RGA rule: a new character goes after
// its origin, skipping over any characters with a larger identifier, so
// every replica converges on the same order regardless of delivery order.
type textSeq struct {
	chars []textChar
}

// indexOf returns the slice index of the char with the given id, or -1.
func (t *textSeq) indexOf(id Clock) int {
	for i := range t.chars {
		if t.chars[i].ID == id {
			return i
		}
	}
	return -1
}

// contains reports whether the sequence holds a char with the given id.
func (t *textSeq) contains(id Clock) bool {
	return t.indexOf(id) >= 0
}

// integrate places a new character. Returns false when the origin is
// unknown, in which case the caller buffers the op and retries after more
// of the stream arrives.
func (t *textSeq) integrate(id, origin Clock, ch rune) bool {
	if t.indexOf(id) >= 0 {
		return true // already integrated
	}
	start := 0
	if !origin.IsZero() {
		idx := t.indexOf(origin)
		if idx < 0 {
			return false
		}
		start = idx + 1
	}
	i := start
	for i < len(t.chars) && id.Less(t.chars[i].ID) {
		i++
	}
	t.chars = append(t.chars, textChar{})
	copy(t.chars[i+1:], t.chars[i:])
	t.chars[i] = textChar{ID: id, Origin: origin, Ch: ch}
	return true
}

// tombstone marks a character deleted. Returns false when the target is
// not yet known.
func (t *textSeq) tombstone(target Clock) bool {
	idx := t.indexOf(target)
	if idx < 0 {
		return false
	}
	t.chars[idx].Deleted = true
	return true
}

// visible returns the live characters in order.
func (t *textSeq) visible() []textChar {
	var out []textChar
	for _, c := range t.chars {
		if !c.Deleted {
			out = append(out, c)
		}
	}
	return out
}

// String renders the visible text.
func (t *textSeq) String() string {
	runes := make([]rune, 0, len(t.chars))
	for _, c := range t.chars {
		if !c.Deleted {
			runes = append(runes, c.Ch)
		}
	}
	return string(runes)
}

// visibleID returns the id of the n-th visible character (0-based), or
// the zero clock when n is out of range.
func (t *textSeq) visibleID(n int) (Clock, bool) {
	seen := 0
	for _, c := range t.chars {
		if c.Deleted {
			continue
		}
		if seen == n {
			return c.ID, true
		}
		seen++
	}
	return Clock{}, false
}
