package engine

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rosie/internal/testutil"
)

func TestClock_StartsAfterGivenSeq(t *testing.T) {
	assert.Equal(t, int64(1), NewClock().Next())

	c := NewClockAt(41)
	assert.Equal(t, int64(41), c.Current())
	assert.Equal(t, int64(42), c.Next())
	assert.Equal(t, int64(42), c.Current())
}

func TestClock_SharedAcrossEngines(t *testing.T) {
	home := testutil.NewHome(t)
	c := NewClock()

	a, _, err := New(home, WithClock(c))
	require.NoError(t, err)
	b, _, err := New(home, WithClock(c))
	require.NoError(t, err)

	require.NoError(t, a.Configure([]byte(`{"expression":"[:digit:]+"}`)))
	require.NoError(t, b.Configure([]byte(`{"expression":"[:alpha:]+"}`)))
	_, err = a.Match([]byte("12"), 0)
	require.NoError(t, err)

	// two inits, two configures, one match
	assert.Equal(t, int64(5), c.Current())
	assert.Equal(t, a.Seq(), b.Seq())
}

func TestClock_ConcurrentNextIsUnique(t *testing.T) {
	c := NewClock()
	const workers, perWorker = 16, 250

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen = make(map[int64]struct{}, workers*perWorker)
	)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			local := make([]int64, 0, perWorker)
			for range perWorker {
				local = append(local, c.Next())
			}
			mu.Lock()
			for _, s := range local {
				seen[s] = struct{}{}
			}
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Len(t, seen, workers*perWorker)
	assert.Equal(t, int64(workers*perWorker), c.Current())
}
