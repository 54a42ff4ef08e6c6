package tracked

import (
	"fmt"
	"sort"
	"strconv"
)

// MergeUntracked merges source into the current value and returns the
// changed paths without notifying.
//
//   - sequence + sequence: concatenation
//   - sequence + map[int]any (or numeric string keys): overwrite or insert
//     by index, Empty deletes; deletions are applied from the highest index
//   - mapping + map[string]any: overwrite or insert, Empty deletes
//   - string + anything: concatenation of its text form
//   - anything else: plain assignment
//
// When the merge neither added nor removed keys and the store reports the
// handle's own path, the per-key paths are returned instead.
func (h *Handle) MergeUntracked(source any) ([]Path, error) {
	if h.store.edition == DestroyedEdition {
		return nil, newError(h.path, CodeSetStateWhenDestroyed)
	}
	current, err := h.GetUntracked(false)
	if err != nil {
		return nil, err
	}
	if fn := asUpdateFunc(source); fn != nil {
		source = fn(current)
	}

	var (
		updated  []Path
		keys     []Key
		reshaped bool
	)
	switch KindOf(current) {
	case KindSequence:
		seq := current.([]any)
		if more, ok := source.([]any); ok {
			for i, v := range more {
				if err := checkEntry(h.path.Child(Index(len(seq)+i)), v); err != nil {
					return nil, err
				}
			}
			joined := make([]any, 0, len(seq)+len(more))
			joined = append(append(joined, seq...), more...)
			return h.SetUntracked(joined, source)
		}
		byIndex, ok := indexedSource(source)
		if !ok {
			return h.SetUntracked(source, Empty)
		}
		for _, i := range sortedIndexes(byIndex) {
			if err := checkEntry(h.path.Child(Index(i)), byIndex[i]); err != nil {
				return nil, err
			}
		}
		seq, keys, reshaped = mergeSequence(seq, byIndex)
		updated, err = h.SetUntracked(seq, source)

	case KindMapping:
		fields, ok := source.(map[string]any)
		if !ok {
			return h.SetUntracked(source, Empty)
		}
		for _, name := range sortedNames(fields) {
			if err := checkEntry(h.path.Child(Field(name)), fields[name]); err != nil {
				return nil, err
			}
		}
		keys, reshaped = mergeMapping(current.(map[string]any), fields)
		updated, err = h.SetUntracked(current, source)

	case KindString:
		return h.SetUntracked(current.(string)+fmt.Sprint(source), source)

	default:
		return h.SetUntracked(source, Empty)
	}
	if err != nil {
		return nil, err
	}

	if len(updated) != 1 || !updated[0].Equal(h.path) || reshaped {
		return updated, nil
	}
	paths := make([]Path, len(keys))
	for i, k := range keys {
		paths[i] = updated[0].Child(k)
	}
	return paths, nil
}

// Merge is MergeUntracked followed by an update.
func (h *Handle) Merge(source any) error {
	paths, err := h.MergeUntracked(source)
	if err != nil {
		return err
	}
	h.store.Update(paths)
	return nil
}

// indexedSource accepts map[int]any, or a map[string]any whose keys all
// parse as non-negative integers.
func indexedSource(source any) (map[int]any, bool) {
	switch src := source.(type) {
	case map[int]any:
		return src, true
	case map[string]any:
		out := make(map[int]any, len(src))
		for k, v := range src {
			i, err := strconv.Atoi(k)
			if err != nil || i < 0 {
				return nil, false
			}
			out[i] = v
		}
		return out, true
	}
	return nil, false
}

// checkEntry applies the guards of Set to one merged entry. Entries are
// checked before the tree is touched so a failed merge changes nothing.
func checkEntry(path Path, v any) error {
	if isPromise(v) {
		return newError(path, CodeSetStateNestedToPromised)
	}
	if _, ok := Unwrap(v); ok {
		return newError(path, CodeSetStateToValueFromState)
	}
	return nil
}

func sortedIndexes(byIndex map[int]any) []int {
	indexes := make([]int, 0, len(byIndex))
	for i := range byIndex {
		indexes = append(indexes, i)
	}
	sort.Ints(indexes)
	return indexes
}

func mergeSequence(seq []any, byIndex map[int]any) ([]any, []Key, bool) {
	indexes := sortedIndexes(byIndex)

	reshaped := false
	var deleted []int
	keys := make([]Key, 0, len(indexes))
	for _, i := range indexes {
		keys = append(keys, Index(i))
		v := byIndex[i]
		if v == Empty {
			reshaped = true
			if i < len(seq) {
				deleted = append(deleted, i)
			}
			continue
		}
		if i >= len(seq) {
			reshaped = true
			for len(seq) <= i {
				seq = append(seq, nil)
			}
		}
		seq[i] = v
	}
	// highest index first so earlier positions do not shift
	for j := len(deleted) - 1; j >= 0; j-- {
		i := deleted[j]
		seq = append(seq[:i], seq[i+1:]...)
	}
	return seq, keys, reshaped
}

func mergeMapping(target, fields map[string]any) ([]Key, bool) {
	reshaped := false
	names := sortedNames(fields)
	keys := make([]Key, len(names))
	for i, name := range names {
		keys[i] = Field(name)
		v := fields[name]
		if v == Empty {
			reshaped = true
			delete(target, name)
			continue
		}
		if _, ok := target[name]; !ok {
			reshaped = true
		}
		target[name] = v
	}
	return keys, reshaped
}
