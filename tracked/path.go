package tracked

import (
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// Key is one step of a Path: either a mapping field or a sequence index.
type Key struct {
	name    string
	index   int
	isIndex bool
}

// Field addresses a mapping entry.
func Field(name string) Key {
	return Key{name: name}
}

// Index addresses a sequence element.
func Index(i int) Key {
	return Key{index: i, isIndex: true}
}

func (k Key) IsIndex() bool { return k.isIndex }

// Name returns the field name, or the decimal index for sequence keys.
func (k Key) Name() string {
	if k.isIndex {
		return strconv.Itoa(k.index)
	}
	return k.name
}

// Int returns the sequence index and whether the key is an index.
func (k Key) Int() (int, bool) {
	return k.index, k.isIndex
}

func (k Key) String() string {
	return k.Name()
}

// ParseKey turns "3" into Index(3) and anything else into Field(s).
func ParseKey(s string) Key {
	if i, err := strconv.Atoi(s); err == nil && i >= 0 {
		return Index(i)
	}
	return Field(s)
}

// Path locates a node in the value tree. Paths are never mutated after
// construction, Child always allocates.
type Path []Key

// RootPath is the path of the root value.
var RootPath = Path{}

// ParsePath splits "/a/0/b" into Field("a"), Index(0), Field("b").
func ParsePath(s string) Path {
	s = strings.Trim(s, "/")
	if s == "" {
		return RootPath
	}
	parts := strings.Split(s, "/")
	p := make(Path, len(parts))
	for i, part := range parts {
		p[i] = ParseKey(part)
	}
	return p
}

func (p Path) Child(k Key) Path {
	c := make(Path, len(p)+1)
	copy(c, p)
	c[len(p)] = k
	return c
}

// Parent returns the path one level up. The root is its own parent.
func (p Path) Parent() Path {
	if len(p) == 0 {
		return p
	}
	return p[:len(p)-1:len(p)-1]
}

func (p Path) Equal(o Path) bool {
	if len(p) != len(o) {
		return false
	}
	for i := range p {
		if p[i] != o[i] {
			return false
		}
	}
	return true
}

// IsAncestorOf reports whether p is a prefix of o. Equal paths count.
func (p Path) IsAncestorOf(o Path) bool {
	if len(p) > len(o) {
		return false
	}
	return p.Equal(o[:len(p)])
}

// Related reports whether one path is an ancestor-or-equal of the other.
func (p Path) Related(o Path) bool {
	return p.IsAncestorOf(o) || o.IsAncestorOf(p)
}

func (p Path) String() string {
	var sb strings.Builder
	sb.WriteByte('/')
	for i, k := range p {
		if i > 0 {
			sb.WriteByte('/')
		}
		sb.WriteString(k.Name())
	}
	return sb.String()
}

// Hash is a stable digest of the path. Index and field keys with the same
// spelling hash differently.
func (p Path) Hash() uint64 {
	d := xxhash.New()
	for _, k := range p {
		if k.isIndex {
			d.WriteString("#")
		} else {
			d.WriteString("$")
		}
		d.WriteString(k.Name())
		d.WriteString("\x00")
	}
	return d.Sum64()
}
