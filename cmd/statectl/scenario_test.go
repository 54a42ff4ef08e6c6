package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/delaneyj/statetree/plugins/journal"
	"github.com/delaneyj/statetree/plugins/metrics"
	"github.com/delaneyj/statetree/tracked"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReplayCart(t *testing.T) {
	sc, err := loadScenario("testdata/cart.yaml")
	require.NoError(t, err)
	assert.Equal(t, "cart", sc.Name)

	res, err := replay(sc)
	require.NoError(t, err)

	assert.Equal(t, int64(5), res.Edition)
	assert.Equal(t, map[string]int{"/total": 1, "/owner/name": 1, "/items": 2}, res.Renders)

	require.Len(t, res.Entries, 8)
	kinds := make([]journal.Kind, len(res.Entries))
	for i, e := range res.Entries {
		kinds[i] = e.Kind
		assert.Equal(t, "checkout", e.Label)
	}
	assert.Equal(t, []journal.Kind{
		journal.KindBatchStart,
		journal.KindSet,
		journal.KindSet,
		journal.KindSet,
		journal.KindBatchFinish,
		journal.KindSet,
		journal.KindSet,
		journal.KindLog,
	}, kinds)
	assert.Equal(t, "recalc", res.Entries[0].Message)
	assert.Equal(t, "delete", res.Entries[1].Op)
	assert.Equal(t, `"pear"`, res.Entries[1].Previous)
	assert.Equal(t, "done", res.Entries[7].Message)

	var snap bytes.Buffer
	require.NoError(t, tracked.WriteJSON(&snap, res.Snapshot))
	assert.Equal(t, `{"items":["apple","plum","fig"],"owner":{"email":"ana@example.com","name":"ana"},"total":3}`, snap.String())
}

func TestDecodeScenario(t *testing.T) {
	t.Run("index merge keys", func(t *testing.T) {
		sc, err := decodeScenario(strings.NewReader(`
name: idx
initial:
  list: [a, b, c]
steps:
  - op: merge
    path: /list
    value:
      0: A
      2: C
`))
		require.NoError(t, err)
		assert.Equal(t, map[int]any{0: "A", 2: "C"}, sc.Steps[0].Value)

		res, err := replay(sc)
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"list": []any{"A", "b", "C"}}, res.Snapshot)
	})

	t.Run("unknown op", func(t *testing.T) {
		_, err := decodeScenario(strings.NewReader(`
steps:
  - op: explode
`))
		assert.ErrorContains(t, err, `unknown op "explode"`)
	})

	t.Run("unknown field", func(t *testing.T) {
		_, err := decodeScenario(strings.NewReader(`
name: x
stepz: []
`))
		assert.Error(t, err)
	})

	t.Run("nested steps outside batch", func(t *testing.T) {
		_, err := decodeScenario(strings.NewReader(`
steps:
  - op: set
    path: /a
    value: 1
    steps:
      - op: log
`))
		assert.Error(t, err)
	})

	t.Run("empty initial", func(t *testing.T) {
		sc, err := decodeScenario(strings.NewReader(`
steps:
  - op: set
    path: /a
    value: 1
`))
		require.NoError(t, err)
		res, err := replay(sc)
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"a": 1}, res.Snapshot)
	})
}

func TestReplayStepError(t *testing.T) {
	sc, err := decodeScenario(strings.NewReader(`
initial:
  list: [1]
steps:
  - op: set
    path: /list/x
    value: 1
`))
	require.NoError(t, err)

	_, err = replay(sc)
	assert.ErrorIs(t, err, tracked.ErrPathNotContainer)
	assert.ErrorContains(t, err, "step 0 (set /list/x)")
}

func TestReports(t *testing.T) {
	sc, err := loadScenario("testdata/cart.yaml")
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	c, err := metrics.New(reg)
	require.NoError(t, err)
	res, err := replay(sc, c.Plugin("cart"))
	require.NoError(t, err)

	t.Run("table", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, writeTable(&buf, res))
		out := buf.String()
		assert.Contains(t, out, `scenario "cart": 8 journal entries, edition 5`)
		assert.Contains(t, out, "batch-start")
		assert.Contains(t, out, "/owner/name")
		assert.Contains(t, out, `"total":3`)
	})

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, writeJSON(&buf, res))

		var decoded struct {
			Name     string         `json:"name"`
			Edition  int64          `json:"edition"`
			Journal  []any          `json:"journal"`
			Renders  map[string]int `json:"renders"`
			Snapshot map[string]any `json:"snapshot"`
		}
		require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
		assert.Equal(t, "cart", decoded.Name)
		assert.Equal(t, int64(5), decoded.Edition)
		assert.Len(t, decoded.Journal, 8)
		assert.Equal(t, 2, decoded.Renders["/items"])
		assert.Equal(t, float64(3), decoded.Snapshot["total"])
	})

	t.Run("metrics", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, writeMetrics(&buf, reg))
		assert.Contains(t, buf.String(), "statetree_sets_total")
		assert.Contains(t, buf.String(), "op=merge,store=cart")
	})
}
