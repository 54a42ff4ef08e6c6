package tracked

import "sort"

type sentinel struct{ name string }

func (s *sentinel) String() string { return s.name }

var (
	// Empty marks "no value": a pending root, or a property to delete when
	// passed to Set or Merge.
	Empty any = &sentinel{"empty"}

	// Postpone may be returned from a batch action to retry the batch once
	// the pending root settles.
	Postpone any = &sentinel{"postpone"}
)

// Kind is the shape of a value as far as the tree is concerned.
type Kind uint8

const (
	KindEmpty Kind = iota
	KindMapping
	KindSequence
	KindString
	KindScalar
)

func (k Kind) String() string {
	switch k {
	case KindEmpty:
		return "empty"
	case KindMapping:
		return "mapping"
	case KindSequence:
		return "sequence"
	case KindString:
		return "string"
	default:
		return "scalar"
	}
}

// KindOf classifies v. Only map[string]any and []any are containers, every
// other Go value is an opaque scalar.
func KindOf(v any) Kind {
	switch v.(type) {
	case map[string]any:
		return KindMapping
	case []any:
		return KindSequence
	case string:
		return KindString
	}
	if v == Empty {
		return KindEmpty
	}
	return KindScalar
}

// childValue reads key from container, nil when absent or not a container.
// keyFor matches k to the container it addresses: an index on a mapping
// becomes the field of the same name, so every route to an entry yields
// the same Key.
func keyFor(container any, k Key) Key {
	if _, ok := container.(map[string]any); ok && k.isIndex {
		return Field(k.Name())
	}
	return k
}

func childValue(container any, k Key) any {
	switch c := container.(type) {
	case map[string]any:
		if k.isIndex {
			return c[k.Name()]
		}
		return c[k.name]
	case []any:
		if !k.isIndex || k.index < 0 || k.index >= len(c) {
			return nil
		}
		return c[k.index]
	}
	return nil
}

func hasKey(container any, k Key) bool {
	switch c := container.(type) {
	case map[string]any:
		_, ok := c[k.Name()]
		return ok
	case []any:
		return k.isIndex && k.index >= 0 && k.index < len(c)
	}
	return false
}

// keysOf lists the current keys of a container, mapping keys sorted.
func keysOf(v any) []Key {
	switch c := v.(type) {
	case map[string]any:
		names := sortedNames(c)
		keys := make([]Key, len(names))
		for i, n := range names {
			keys[i] = Field(n)
		}
		return keys
	case []any:
		keys := make([]Key, len(c))
		for i := range c {
			keys[i] = Index(i)
		}
		return keys
	}
	return nil
}

func isPromise(v any) bool {
	_, ok := v.(Promise)
	return ok
}

func sortedNames(m map[string]any) []string {
	names := make([]string, 0, len(m))
	for n := range m {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
