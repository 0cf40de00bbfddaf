package harvest

import "strconv"

// Cursor is the incremental high-water mark for a (sub-unit, board) pair.
//
// Post ids are usually numeric but boards occasionally expose opaque ids,
// e.g. pinned "notice" rows. When both sides parse as integers the comparison
// is numeric; otherwise the ids are opaque tokens and only exact equality
// stops a page walk. Opaque ids are never ordered lexicographically.
type Cursor struct {
	raw     string
	num     int64
	numeric bool
}

// NewCursor builds a cursor from a stored post id. An empty or "0" value is
// the sentinel meaning "nothing harvested yet".
func NewCursor(raw string) Cursor {
	if raw == "" || raw == "0" {
		return Cursor{}
	}
	c := Cursor{raw: raw}
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		c.num = n
		c.numeric = true
	}
	return c
}

// IsZero reports whether the cursor is the sentinel.
func (c Cursor) IsZero() bool {
	return c.raw == ""
}

// String returns the stored post id, or "0" for the sentinel.
func (c Cursor) String() string {
	if c.raw == "" {
		return "0"
	}
	return c.raw
}

// Reached reports whether id is "not newer than" the cursor, i.e. whether the
// page walk should stop at this record.
func (c Cursor) Reached(id string) bool {
	if c.IsZero() {
		return false
	}
	if c.numeric {
		if n, err := strconv.ParseInt(id, 10, 64); err == nil {
			return n <= c.num
		}
		// Opaque id against a numeric cursor: unordered, keep walking.
		return false
	}
	return id == c.raw
}
