package tracked_test

import (
	"errors"
	"testing"

	"github.com/delaneyj/statetree/tracked"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBatchCoalesces(t *testing.T) {
	s, err := tracked.NewStore(map[string]any{"a": 0, "b": 0})
	require.NoError(t, err)
	rec := &recorder{}
	s.Subscribe(rec)

	_, err = s.Root().Batch(func(st *tracked.State) (any, error) {
		if err := st.Field("a").Set(1); err != nil {
			return nil, err
		}
		if err := st.Field("b").Set(2); err != nil {
			return nil, err
		}
		assert.Empty(t, rec.calls)
		return nil, st.Field("a").Set(3)
	}, nil)
	require.NoError(t, err)

	require.Len(t, rec.calls, 1)
	assert.Equal(t, []string{"/a", "/b"}, pathStrings(rec.calls[0]))
	assert.Equal(t, 0, s.BatchDepth())
}

func TestBatchNested(t *testing.T) {
	s, err := tracked.NewStore(map[string]any{"a": 0, "b": 0})
	require.NoError(t, err)
	rec := &recorder{}
	s.Subscribe(rec)

	root := s.Root()
	_, err = root.Batch(func(st *tracked.State) (any, error) {
		_, err := st.Field("b").Batch(func(inner *tracked.State) (any, error) {
			assert.Equal(t, 2, s.BatchDepth())
			return nil, inner.Set(1)
		}, nil)
		if err != nil {
			return nil, err
		}
		assert.Empty(t, rec.calls)
		return nil, st.Field("a").Set(1)
	}, nil)
	require.NoError(t, err)

	require.Len(t, rec.calls, 1)
	assert.Equal(t, []string{"/b", "/a"}, pathStrings(rec.calls[0]))
}

func TestBatchNotifiesMountOnce(t *testing.T) {
	s, err := tracked.NewStore(map[string]any{"a": 0, "b": 0})
	require.NoError(t, err)
	renders := 0
	m := s.Mount(func() { renders++ })
	_, err = m.State().Field("a").Value()
	require.NoError(t, err)
	_, err = m.State().Field("b").Value()
	require.NoError(t, err)

	_, err = s.Root().Batch(func(st *tracked.State) (any, error) {
		for i := 0; i < 3; i++ {
			if err := st.Field("a").Set(i); err != nil {
				return nil, err
			}
			if err := st.Field("b").Set(i); err != nil {
				return nil, err
			}
		}
		return nil, nil
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, renders)
}

func TestBatchClosesOnPanic(t *testing.T) {
	s, err := tracked.NewStore(map[string]any{"a": 0})
	require.NoError(t, err)
	rec := &recorder{}
	s.Subscribe(rec)

	assert.Panics(t, func() {
		_, _ = s.Root().Batch(func(st *tracked.State) (any, error) {
			_ = st.Field("a").Set(1)
			panic("boom")
		}, nil)
	})
	assert.Equal(t, 0, s.BatchDepth())
	assert.Len(t, rec.calls, 1)
}

func TestBatchReturnsActionResult(t *testing.T) {
	s, err := tracked.NewStore(map[string]any{})
	require.NoError(t, err)

	boom := errors.New("boom")
	v, err := s.Root().Batch(func(*tracked.State) (any, error) {
		return 42, boom
	}, nil)
	assert.Equal(t, 42, v)
	assert.ErrorIs(t, err, boom)
}

func TestBatchPostponedUntilRootResolves(t *testing.T) {
	s, err := tracked.NewStore(tracked.Empty)
	require.NoError(t, err)

	runs := 0
	action := func(st *tracked.State) (any, error) {
		runs++
		if st.Promised() {
			return tracked.Postpone, nil
		}
		return nil, st.Field("n").Set(1)
	}

	v, err := s.Root().Batch(action, nil)
	require.NoError(t, err)
	assert.Equal(t, tracked.Postpone, v)
	assert.Equal(t, 1, runs)

	require.NoError(t, s.Root().Set(map[string]any{"n": 0}))
	assert.Equal(t, 2, runs)
	assert.Equal(t, 1, s.Get(tracked.ParsePath("/n")))
}
