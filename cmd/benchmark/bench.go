package main

import (
	"fmt"

	"github.com/delaneyj/statetree/tracked"
)

// bench is a store of width columns, each a chain of depth nested mappings
// ending in a leaf, with one mount per column reading that leaf.
type bench struct {
	store   *tracked.Store
	width   int
	leaves  []tracked.Path
	mounts  []*tracked.Mount
	renders int
}

func newBench(width, depth int) (*bench, error) {
	root := map[string]any{"idle": 0}
	b := &bench{width: width}
	for col := 0; col < width; col++ {
		name := fmt.Sprintf("c%d", col)
		path := tracked.Path{tracked.Field(name)}
		node := map[string]any{}
		root[name] = node
		for d := 1; d < depth; d++ {
			next := map[string]any{}
			node["n"] = next
			node = next
			path = path.Child(tracked.Field("n"))
		}
		node["v"] = 0
		b.leaves = append(b.leaves, path.Child(tracked.Field("v")))
	}

	s, err := tracked.NewStore(root)
	if err != nil {
		return nil, err
	}
	b.store = s
	for range b.leaves {
		b.mounts = append(b.mounts, s.Mount(func() { b.renders++ }))
	}
	return b, b.readAll()
}

func (b *bench) setLeaf(col, v int) error {
	p, err := b.store.Set(b.leaves[col], v, tracked.Empty)
	if err != nil {
		return err
	}
	b.store.Update([]tracked.Path{p})
	return nil
}

func (b *bench) readAll() error {
	for col, m := range b.mounts {
		st := m.State()
		for _, k := range b.leaves[col] {
			st = st.Nested(k)
		}
		if _, err := st.Value(); err != nil {
			return err
		}
	}
	return nil
}
