package metrics_test

import (
	"testing"

	"github.com/delaneyj/statetree/plugins/metrics"
	"github.com/delaneyj/statetree/tracked"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// gathered reads one sample from the registry, matching every label given.
func gathered(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) (float64, bool) {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
	metrics:
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if want, ok := labels[lp.GetName()]; ok && want != lp.GetValue() {
					continue metrics
				}
			}
			switch {
			case m.GetCounter() != nil:
				return m.GetCounter().GetValue(), true
			case m.GetGauge() != nil:
				return m.GetGauge().GetValue(), true
			}
		}
	}
	return 0, false
}

func TestMetricsCountOperations(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := metrics.New(reg)
	require.NoError(t, err)

	s, err := tracked.NewStore(map[string]any{"a": 1}, tracked.WithPlugins(c.Plugin("main")))
	require.NoError(t, err)
	root := s.Root()

	require.NoError(t, root.Field("a").Set(2))
	require.NoError(t, root.Field("a").Set(3))
	require.NoError(t, root.Field("b").Set(1))
	require.NoError(t, root.Field("b").Set(tracked.Empty))

	_, err = root.Batch(func(st *tracked.State) (any, error) {
		_, err := st.Batch(func(inner *tracked.State) (any, error) {
			v, ok := gathered(t, reg, "statetree_batch_depth", map[string]string{"store": "main"})
			assert.True(t, ok)
			assert.Equal(t, float64(2), v)
			return nil, inner.Merge(map[string]any{"c": 1})
		}, nil)
		return nil, err
	}, nil)
	require.NoError(t, err)

	t.Run("sets", func(t *testing.T) {
		for op, want := range map[string]float64{"update": 2, "insert": 1, "delete": 1, "merge": 1} {
			v, ok := gathered(t, reg, "statetree_sets_total", map[string]string{"store": "main", "op": op})
			assert.True(t, ok, op)
			assert.Equal(t, want, v, op)
		}
	})

	t.Run("batches", func(t *testing.T) {
		v, ok := gathered(t, reg, "statetree_batches_total", map[string]string{"store": "main"})
		assert.True(t, ok)
		assert.Equal(t, float64(2), v)

		v, ok = gathered(t, reg, "statetree_batch_depth", map[string]string{"store": "main"})
		assert.True(t, ok)
		assert.Equal(t, float64(0), v)
	})

	t.Run("edition", func(t *testing.T) {
		v, ok := gathered(t, reg, "statetree_edition", map[string]string{"store": "main"})
		assert.True(t, ok)
		assert.Equal(t, float64(s.Edition()), v)
	})

	t.Run("destroy", func(t *testing.T) {
		s.Destroy()
		v, ok := gathered(t, reg, "statetree_destroys_total", map[string]string{"store": "main"})
		assert.True(t, ok)
		assert.Equal(t, float64(1), v)

		_, ok = gathered(t, reg, "statetree_edition", map[string]string{"store": "main"})
		assert.False(t, ok)
	})
}

func TestMetricsSharedRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := metrics.New(reg)
	require.NoError(t, err)
	second, err := metrics.New(reg)
	require.NoError(t, err)

	a, err := tracked.NewStore(map[string]any{"n": 0}, tracked.WithPlugins(first.Plugin("a")))
	require.NoError(t, err)
	b, err := tracked.NewStore(map[string]any{"n": 0}, tracked.WithPlugins(second.Plugin("b")))
	require.NoError(t, err)

	require.NoError(t, a.Root().Field("n").Set(1))
	require.NoError(t, b.Root().Field("n").Set(1))
	require.NoError(t, b.Root().Field("n").Set(2))

	v, ok := gathered(t, reg, "statetree_sets_total", map[string]string{"store": "a", "op": "update"})
	assert.True(t, ok)
	assert.Equal(t, float64(1), v)

	v, ok = gathered(t, reg, "statetree_sets_total", map[string]string{"store": "b", "op": "update"})
	assert.True(t, ok)
	assert.Equal(t, float64(2), v)
}
