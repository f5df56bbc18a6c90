package progknn

import (
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBruteForceKNN_WorkerCountsAgree(t *testing.T) {
	src := mustSource(t, randomRows(rand.New(rand.NewSource(11)), 120, 3))

	serial, err := BruteForceKNN(context.Background(), src, 4, nil, 1)
	require.NoError(t, err)
	require.Len(t, serial, 120)

	for _, workers := range []int{0, 2, 4, 7, 500} {
		got, err := BruteForceKNN(context.Background(), src, 4, EuclideanMetric{}, workers)
		require.NoError(t, err)
		for i := range serial {
			assert.True(t, serial[i].Equal(got[i]), "workers=%d row=%d", workers, i)
		}
	}

	for i, r := range serial {
		assert.Equal(t, 4, r.Len())
		assert.False(t, r.Contains(i), "row %d contains itself", i)
	}
}

func TestBruteForceKNN_Empty(t *testing.T) {
	got, err := BruteForceKNN(context.Background(), NewGrowingSource(2, 0), 3, nil, 4)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestBruteForceKNN_Canceled(t *testing.T) {
	src := mustSource(t, randomRows(rand.New(rand.NewSource(1)), 50, 2))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := BruteForceKNN(ctx, src, 3, nil, 2)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMeanRecall(t *testing.T) {
	tbl, _ := convergedLinearTable(t, randomRows(rand.New(rand.NewSource(5)), 40, 2), 3)

	truth := make([]*ResultSet, tbl.Size())
	for i := range truth {
		row, err := tbl.Neighbors(i)
		require.NoError(t, err)
		truth[i] = NewResultSet(row.Cap())
		for _, n := range row.Items() {
			truth[i].Add(n)
		}
	}
	recall, err := MeanRecall(tbl, truth)
	require.NoError(t, err)
	assert.Equal(t, 1.0, recall)

	// Replace one true neighbor of every row with an ID no row can hold.
	for _, r := range truth {
		items := r.Items()
		items[len(items)-1].ID = -1
	}
	recall, err = MeanRecall(tbl, truth)
	require.NoError(t, err)
	assert.InDelta(t, 2.0/3.0, recall, 1e-12)

	_, err = MeanRecall(tbl, truth[:10])
	assert.Error(t, err)
}
