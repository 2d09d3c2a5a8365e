package vector

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGuarded_DelegatesAndReportsMode(t *testing.T) {
	ctx := context.Background()
	g := NewGuarded(NewMemoryStore(), ModeMemory)
	assert.Equal(t, ModeMemory, g.Mode())

	require.NoError(t, g.InsertBatch(ctx, []Record{rec("a", "u", 1, 0)}))
	n, err := g.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, g.DeleteBySource(ctx, "u"))
	n, _ = g.Count(ctx)
	assert.Equal(t, 0, n)
	assert.NoError(t, g.Close())
}

func TestGuarded_ConcurrentWritersAndReaders(t *testing.T) {
	ctx := context.Background()
	g := NewGuarded(NewMemoryStore(), ModeMemory)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			batch := []Record{rec(string(rune('a'+i))+"_0", "u", 1, 0), rec(string(rune('a'+i))+"_1", "u", 0, 1)}
			assert.NoError(t, g.InsertBatch(ctx, batch))
		}(i)
		go func() {
			defer wg.Done()
			_, err := g.Search(ctx, []float32{1, 0}, 3)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	n, _ := g.Count(ctx)
	assert.Equal(t, 16, n)
}
