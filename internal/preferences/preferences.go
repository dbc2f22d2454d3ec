// Package preferences implements the hierarchical default lookup used
// throughout micrograder: default input values, check functions, and
// aggregators are all keyed by (DataType[, channel]) and resolved by
// deepest-prefix match.
package preferences

import "strings"

// Key is an ordered tuple whose prefixes denote increasing generality,
// e.g. Key{"Accelerometer"} is more general than Key{"Accelerometer", "z"}.
type Key []string

// NewKey is a small convenience constructor.
func NewKey(parts ...string) Key { return Key(parts) }

func (k Key) join() string { return strings.Join([]string(k), "\x1f") }

func (k Key) isStrictPrefixOf(other Key) bool {
	if len(other) <= len(k) {
		return false
	}
	for i := range k {
		if k[i] != other[i] {
			return false
		}
	}
	return true
}

type entry[V any] struct {
	key   Key
	value V
}

// Preferences is a trie-by-prefix default table: Get strips the
// rightmost key element until a match is found, with the empty key as
// the universal fallback.
type Preferences[V any] struct {
	entries []entry[V]
	index   map[string]int
}

// New returns an empty Preferences table.
func New[V any]() *Preferences[V] {
	return &Preferences[V]{index: map[string]int{}}
}

// Set records v for k, overwriting any existing exact match for k.
func (p *Preferences[V]) Set(k Key, v V) {
	p.SetOverride(k, v, false)
}

// SetOverride records v for k. If overrideSubprefs is true, any existing
// entry whose key is a strict extension of k (i.e. k is a prefix of it)
// is deleted, matching set_preference's override_subprefs behavior.
func (p *Preferences[V]) SetOverride(k Key, v V, overrideSubprefs bool) {
	cp := append(Key{}, k...)
	s := cp.join()
	if idx, ok := p.index[s]; ok {
		p.entries[idx].value = v
	} else {
		p.index[s] = len(p.entries)
		p.entries = append(p.entries, entry[V]{key: cp, value: v})
	}
	if overrideSubprefs {
		kept := p.entries[:0:0]
		newIndex := map[string]int{}
		for _, e := range p.entries {
			if cp.isStrictPrefixOf(e.key) {
				continue
			}
			newIndex[e.key.join()] = len(kept)
			kept = append(kept, e)
		}
		p.entries = kept
		p.index = newIndex
	}
}

// Get resolves k to the deepest-prefix match: k itself, then k with its
// last element dropped, and so on down to the empty key. The second
// return is false if no entry (including the empty-key default) exists.
func (p *Preferences[V]) Get(k Key) (V, bool) {
	for {
		if idx, ok := p.index[k.join()]; ok {
			return p.entries[idx].value, true
		}
		if len(k) == 0 {
			var zero V
			return zero, false
		}
		k = k[:len(k)-1]
	}
}

// Entry is one (key, value) pair, exposed by Entries for callers (e.g.
// the testcase package's YAML codec) that need to enumerate a
// Preferences table without reaching into its internals.
type Entry[V any] struct {
	Key   Key
	Value V
}

// Entries returns every stored (key, value) pair, in insertion order.
func (p *Preferences[V]) Entries() []Entry[V] {
	out := make([]Entry[V], len(p.entries))
	for i, e := range p.entries {
		out[i] = Entry[V]{Key: append(Key{}, e.key...), Value: e.value}
	}
	return out
}

// FromEntries rebuilds a Preferences table from Entries' output.
func FromEntries[V any](entries []Entry[V]) *Preferences[V] {
	p := New[V]()
	for _, e := range entries {
		p.Set(e.Key, e.Value)
	}
	return p
}

// Copy returns an independent deep copy.
func (p *Preferences[V]) Copy() *Preferences[V] {
	cp := New[V]()
	for _, e := range p.entries {
		cp.Set(append(Key{}, e.key...), e.value)
	}
	return cp
}
