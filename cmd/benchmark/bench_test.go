package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBenchShape(t *testing.T) {
	b, err := newBench(3, 4)
	require.NoError(t, err)
	require.Len(t, b.leaves, 3)
	assert.Equal(t, "/c2/n/n/n/v", b.leaves[2].String())
	assert.Equal(t, 0, b.store.Get(b.leaves[2]))
}

func TestScenariosRender(t *testing.T) {
	for _, sc := range scenarios {
		t.Run(sc.title, func(t *testing.T) {
			_, err := runScenario(sc, []int{1, 5}, []int{1, 3}, 10)
			require.NoError(t, err)
		})
	}
}

func TestParseSizes(t *testing.T) {
	sizes, err := parseSizes("1, 10,,100")
	require.NoError(t, err)
	assert.Equal(t, []int{1, 10, 100}, sizes)

	_, err = parseSizes("0")
	assert.Error(t, err)
	_, err = parseSizes("x")
	assert.Error(t, err)
	_, err = parseSizes("")
	assert.Error(t, err)
}
