package vm

// Table is the open-addressed hash table used throughout the VM: global
// variables, class method tables, instance fields, and the VM's string
// intern table all share this one implementation, exactly as
// original_source/table.c's single Table type backs every one of those in
// the C source this spec was distilled from.
//
// It is hand-written rather than built on a third-party hash map (the
// pack's github.com/dolthub/swiss, repurposed elsewhere for the compiler's
// constant-pool dedup) because two operations here have no library
// equivalent: FindString's probe-by-hash-then-length-then-bytes lookup,
// which is how the intern table canonicalizes a freshly scanned string
// literal into a single canonical *ObjString without ever constructing a
// Go string-keyed map entry for it, and the GC's weak-reference sweep
// (removeWhite below, called from gc.go), which must delete entries whose key
// object did not survive a collection without copying the whole table.
// Neither operation is expressible through swiss.Map's interface.
type tableEntry struct {
	key   *ObjString
	value Value
}

type Table struct {
	count   int
	entries []tableEntry
}

const tableMaxLoad = 0.75

// Get looks up key, reporting whether it was present.
func (t *Table) Get(key *ObjString) (Value, bool) {
	if len(t.entries) == 0 {
		return Nil, false
	}
	e := findEntry(t.entries, key)
	if e.key == nil {
		return Nil, false
	}
	return e.value, true
}

// Set stores value under key, growing the table first if needed. It
// reports whether key was not already present.
func (t *Table) Set(key *ObjString, value Value) bool {
	if float64(t.count+1) > float64(len(t.entries))*tableMaxLoad {
		t.grow()
	}
	e := findEntry(t.entries, key)
	isNew := e.key == nil
	if isNew && e.value.IsNil() {
		// Only a truly empty bucket (not a tombstone) grows the live count:
		// tombstones keep probe sequences intact for later lookups.
		t.count++
	}
	e.key = key
	e.value = value
	return isNew
}

// Delete removes key, leaving a tombstone (a nil-key entry with a true
// sentinel value) so later probes for other keys that hashed to the same
// bucket still find them.
func (t *Table) Delete(key *ObjString) bool {
	if len(t.entries) == 0 {
		return false
	}
	e := findEntry(t.entries, key)
	if e.key == nil {
		return false
	}
	e.key = nil
	e.value = Bool(true)
	return true
}

// AddAll copies every entry of from into t, used by Inherit (spec §4.3) to
// seed a subclass's method table from its superclass.
func (t *Table) AddAll(from *Table) {
	for _, e := range from.entries {
		if e.key != nil {
			t.Set(e.key, e.value)
		}
	}
}

// FindString probes the table for an already-interned string with the
// given bytes and precomputed hash, returning nil if none exists. This is
// the intern table's canonicalization step: called before allocating a new
// ObjString for a literal or concatenation result.
func (t *Table) FindString(chars string, hash uint32) *ObjString {
	if len(t.entries) == 0 {
		return nil
	}
	mask := uint32(len(t.entries) - 1)
	index := hash & mask
	for {
		e := &t.entries[index]
		if e.key == nil {
			if e.value.IsNil() {
				return nil
			}
		} else if e.key.hash == hash && e.key.chars == chars {
			return e.key
		}
		index = (index + 1) & mask
	}
}

func findEntry(entries []tableEntry, key *ObjString) *tableEntry {
	mask := uint32(len(entries) - 1)
	index := key.hash & mask
	var tombstone *tableEntry
	for {
		e := &entries[index]
		if e.key == nil {
			if e.value.IsNil() {
				if tombstone != nil {
					return tombstone
				}
				return e
			}
			if tombstone == nil {
				tombstone = e
			}
		} else if e.key == key {
			return e
		}
		index = (index + 1) & mask
	}
}

func (t *Table) grow() {
	cap := 8
	if len(t.entries) > 0 {
		cap = len(t.entries) * 2
	}
	newEntries := make([]tableEntry, cap)
	t.count = 0
	for _, e := range t.entries {
		if e.key == nil {
			continue
		}
		dst := findEntry(newEntries, e.key)
		dst.key = e.key
		dst.value = e.value
		t.count++
	}
	t.entries = newEntries
}

// removeWhite deletes every entry whose key is an unmarked (white) object,
// called by the collector after marking and before sweeping the object
// list (spec §4.4): an interned string with no remaining references
// anywhere else must also stop being interned, or sweep would free an
// object this table still points to.
func (t *Table) removeWhite() {
	for i := range t.entries {
		e := &t.entries[i]
		if e.key != nil && !e.key.isMarked {
			t.Delete(e.key)
		}
	}
}

func (t *Table) each(fn func(key *ObjString, value Value)) {
	for _, e := range t.entries {
		if e.key != nil {
			fn(e.key, e.value)
		}
	}
}
