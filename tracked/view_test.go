package tracked_test

import (
	"encoding/json"
	"testing"

	"github.com/delaneyj/statetree/tracked"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rootView(t *testing.T, st *tracked.State) *tracked.View {
	t.Helper()
	v, err := st.Value()
	require.NoError(t, err)
	view, ok := v.(*tracked.View)
	require.True(t, ok, "expected a view, got %T", v)
	return view
}

func TestViewReads(t *testing.T) {
	s, err := tracked.NewStore(map[string]any{
		"name": "n",
		"list": []any{"a", "b"},
	})
	require.NoError(t, err)

	view := rootView(t, s.Root())
	assert.Equal(t, tracked.KindMapping, view.Kind())
	assert.Equal(t, 2, view.Len())
	assert.Equal(t, []tracked.Key{tracked.Field("list"), tracked.Field("name")}, view.Keys())
	assert.True(t, view.Has(tracked.Field("name")))
	assert.False(t, view.Has(tracked.Field("nope")))

	name, err := view.Field("name")
	require.NoError(t, err)
	assert.Equal(t, "n", name)

	v, err := view.Field("list")
	require.NoError(t, err)
	list, ok := v.(*tracked.View)
	require.True(t, ok)
	assert.Equal(t, tracked.KindSequence, list.Kind())
	assert.Equal(t, "/list", list.Handle().Path().String())

	b, err := list.Index(1)
	require.NoError(t, err)
	assert.Equal(t, "b", b)

	// field keys address nothing on a sequence
	none, err := list.Field("length")
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestViewRejectsWrites(t *testing.T) {
	s, err := tracked.NewStore(map[string]any{"a": 1, "list": []any{1}})
	require.NoError(t, err)

	view := rootView(t, s.Root())
	assert.ErrorIs(t, view.Set(tracked.Field("a"), 2), tracked.ErrSetPropertyValue)
	assert.ErrorIs(t, view.Delete(tracked.Field("a")), tracked.ErrDeletePropertyValue)

	list := rootView(t, s.Root().Field("list"))
	assert.ErrorIs(t, list.Set(tracked.Index(0), 2), tracked.ErrSetPropertyValue)

	assert.Equal(t, 1, s.Get(tracked.ParsePath("/a")))
}

func TestStateRejectsPropertyWrites(t *testing.T) {
	s, err := tracked.NewStore(map[string]any{"a": 1})
	require.NoError(t, err)

	st := s.Root().Field("a")
	assert.ErrorIs(t, st.SetProperty(tracked.Field("x"), 1), tracked.ErrSetPropertyState)
	assert.ErrorIs(t, st.DeleteProperty(tracked.Field("x")), tracked.ErrDeletePropertyState)
}

func TestAssignStateToState(t *testing.T) {
	s, err := tracked.NewStore(map[string]any{"a": map[string]any{}, "b": 1})
	require.NoError(t, err)
	root := s.Root()

	err = root.Field("b").Set(root.Field("a"))
	assert.ErrorIs(t, err, tracked.ErrAssignStateToState)

	err = root.Field("b").Set(rootView(t, root.Field("a")))
	assert.ErrorIs(t, err, tracked.ErrAssignStateToState)

	assert.Equal(t, 1, s.Get(tracked.ParsePath("/b")))
}

func TestMarshalRejected(t *testing.T) {
	s, err := tracked.NewStore(map[string]any{"a": map[string]any{"x": 1}})
	require.NoError(t, err)

	_, err = json.Marshal(rootView(t, s.Root()))
	assert.ErrorIs(t, err, tracked.ErrToJSONValue)

	_, err = json.Marshal(s.Root().Field("a"))
	assert.ErrorIs(t, err, tracked.ErrToJSONState)
}

func TestUnwrap(t *testing.T) {
	s, err := tracked.NewStore(map[string]any{"a": map[string]any{}})
	require.NoError(t, err)

	st := s.Root().Field("a")
	h, ok := tracked.Unwrap(st)
	require.True(t, ok)
	assert.Same(t, st.Handle(), h)

	h, ok = tracked.Unwrap(rootView(t, st))
	require.True(t, ok)
	assert.Equal(t, "/a", h.Path().String())

	_, ok = tracked.Unwrap(map[string]any{})
	assert.False(t, ok)
	_, ok = tracked.Unwrap((*tracked.State)(nil))
	assert.False(t, ok)
}

func TestStateSelfIsStable(t *testing.T) {
	s, err := tracked.NewStore(map[string]any{"a": 1})
	require.NoError(t, err)
	m := s.Mount(func() {})

	a1 := m.State().Field("a")
	a2 := m.State().Field("a")
	assert.Same(t, a1, a2)
}

func TestStateHelpers(t *testing.T) {
	s, err := tracked.NewStore(map[string]any{
		"nothing": nil,
		"list":    []any{"a", "b"},
	})
	require.NoError(t, err)
	root := s.Root()

	st, err := root.Field("nothing").OrNull()
	require.NoError(t, err)
	assert.Nil(t, st)

	st, err = root.Field("list").OrNull()
	require.NoError(t, err)
	require.NotNil(t, st)

	keys, err := root.Field("list").Keys()
	require.NoError(t, err)
	assert.Equal(t, []tracked.Key{tracked.Index(0), tracked.Index(1)}, keys)

	entries, err := root.Field("list").Entries()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "/list/1", entries[1].State.Path().String())
	v, err := entries[1].State.Value()
	require.NoError(t, err)
	assert.Equal(t, "b", v)

	keys, err = root.Field("list").Index(0).Keys()
	require.NoError(t, err)
	assert.Nil(t, keys)
}
