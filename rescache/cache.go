// Package rescache deduplicates PDF resources (graphics states,
// shadings, patterns, images...) by a structural fingerprint,
// so that equal resources are built, and written, only once.
package rescache

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash"
	"math"
	"sort"

	"github.com/benoitkugler/pdf/model"
	"golang.org/x/crypto/blake2b"
)

// ErrInvariant is returned when the cache is misused by its caller.
var ErrInvariant = errors.New("rescache: invariant violation")

// Key is a BLAKE2b-256 fingerprint of a resource.
type Key [blake2b.Size256]byte

func (k Key) String() string { return fmt.Sprintf("%x", k[:8]) }

// Hasher builds a Key from typed fields.
// Each field is written with a type tag, and variable length fields are
// prefixed by their length, so that distinct field sequences never
// produce the same input stream.
type Hasher struct {
	h   hash.Hash
	buf [9]byte
}

// NewHasher starts a fingerprint for a resource of the given kind.
func NewHasher(kind string) *Hasher {
	h, _ := blake2b.New256(nil) // only fails for keys longer than 64 bytes
	out := &Hasher{h: h}
	return out.String(kind)
}

func (hs *Hasher) tagged(tag byte, v uint64) *Hasher {
	hs.buf[0] = tag
	binary.BigEndian.PutUint64(hs.buf[1:], v)
	hs.h.Write(hs.buf[:])
	return hs
}

// Float writes a number. -0 and 0 are considered equal.
func (hs *Hasher) Float(f float64) *Hasher {
	if f == 0 {
		f = 0
	}
	return hs.tagged('f', math.Float64bits(f))
}

// Floats writes the length of `fs`, then each number.
func (hs *Hasher) Floats(fs ...float64) *Hasher {
	hs.tagged('a', uint64(len(fs)))
	for _, f := range fs {
		hs.Float(f)
	}
	return hs
}

func (hs *Hasher) Int(i int) *Hasher { return hs.tagged('i', uint64(i)) }

func (hs *Hasher) Bool(b bool) *Hasher {
	if b {
		return hs.tagged('b', 1)
	}
	return hs.tagged('b', 0)
}

func (hs *Hasher) String(s string) *Hasher {
	hs.tagged('s', uint64(len(s)))
	hs.h.Write([]byte(s))
	return hs
}

func (hs *Hasher) Bytes(b []byte) *Hasher {
	hs.tagged('x', uint64(len(b)))
	hs.h.Write(b)
	return hs
}

// Key writes a nested fingerprint.
func (hs *Hasher) Key(k Key) *Hasher {
	hs.tagged('k', uint64(len(k)))
	hs.h.Write(k[:])
	return hs
}

// Sum returns the fingerprint of the fields written so far.
func (hs *Hasher) Sum() Key {
	var k Key
	hs.h.Sum(k[:0])
	return k
}

// Object writes the identity of a resource, as numbered by `c`.
func (hs *Hasher) Object(c *Cache, obj model.Referenceable) *Hasher {
	return hs.tagged('o', uint64(c.ID(obj)))
}

// Resources writes the entries of a resource dictionary, sorted by name.
// Two dictionaries hash the same if they bind the same names to
// the same objects.
func (hs *Hasher) Resources(c *Cache, res model.ResourcesDict) *Hasher {
	hs.String("ExtGState").Int(len(res.ExtGState))
	for _, n := range sortedNames(res.ExtGState) {
		hs.String(string(n)).Object(c, res.ExtGState[n])
	}
	hs.String("Shading").Int(len(res.Shading))
	for _, n := range sortedNames(res.Shading) {
		hs.String(string(n)).Object(c, res.Shading[n])
	}
	hs.String("Pattern").Int(len(res.Pattern))
	for _, n := range sortedNames(res.Pattern) {
		hs.String(string(n)).Object(c, res.Pattern[n])
	}
	hs.String("Font").Int(len(res.Font))
	for _, n := range sortedNames(res.Font) {
		hs.String(string(n)).Object(c, res.Font[n])
	}
	hs.String("XObject").Int(len(res.XObject))
	for _, n := range sortedNames(res.XObject) {
		hs.String(string(n)).Object(c, res.XObject[n])
	}
	return hs
}

func sortedNames[V any](m map[model.Name]V) []model.Name {
	out := make([]model.Name, 0, len(m))
	for n := range m {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Cache maps fingerprints to built objects.
// It is not safe for concurrent use: one cache serves one document.
type Cache struct {
	objects  map[Key]model.Referenceable
	building map[Key]bool
	ids      map[model.Referenceable]int
	hits     int
}

// New returns an empty cache.
func New() *Cache {
	return &Cache{
		objects:  make(map[Key]model.Referenceable),
		building: make(map[Key]bool),
		ids:      make(map[model.Referenceable]int),
	}
}

// Intern returns the object stored for `key`, calling `build` to
// create it on the first use. `build` may itself intern other keys.
func Intern[T interface {
	comparable
	model.Referenceable
}](c *Cache, key Key, build func() (T, error)) (T, error) {
	var zero T
	if obj, ok := c.objects[key]; ok {
		out, ok := obj.(T)
		if !ok {
			return zero, fmt.Errorf("%w: resource %s is a %T, not a %T", ErrInvariant, key, obj, zero)
		}
		c.hits++
		return out, nil
	}
	if c.building[key] {
		return zero, fmt.Errorf("%w: resource %s requires itself", ErrInvariant, key)
	}
	c.building[key] = true
	obj, err := build()
	delete(c.building, key)
	if err != nil {
		return zero, err
	}
	if obj == zero {
		return zero, fmt.Errorf("%w: resource %s built without object", ErrInvariant, key)
	}
	c.objects[key] = obj
	return obj, nil
}

// Lookup returns the object for `key`, if already interned.
func (c *Cache) Lookup(key Key) (model.Referenceable, bool) {
	obj, ok := c.objects[key]
	return obj, ok
}

// ID returns a number identifying `obj`, allocated in order of first use.
func (c *Cache) ID(obj model.Referenceable) int {
	id, ok := c.ids[obj]
	if !ok {
		id = len(c.ids) + 1
		c.ids[obj] = id
	}
	return id
}

// Len returns the number of distinct resources.
func (c *Cache) Len() int { return len(c.objects) }

// Hits returns the number of calls to Intern served from the cache.
func (c *Cache) Hits() int { return c.hits }
