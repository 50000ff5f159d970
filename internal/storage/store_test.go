package storage

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestRegisterStore tests the in-memory CAS register store
func TestRegisterStore(t *testing.T) {
	t.Run("get missing key", func(t *testing.T) {
		store := NewRegisterStore()
		_, err := store.Get("k")
		assert.ErrorIs(t, err, ErrKeyNotFound)
	})

	t.Run("set and get", func(t *testing.T) {
		store := NewRegisterStore()
		require.NoError(t, store.Set("k", "3"))

		value, err := store.Get("k")
		require.NoError(t, err)
		assert.Equal(t, "3", value)
	})

	t.Run("set overwrites", func(t *testing.T) {
		store := NewRegisterStore()
		require.NoError(t, store.Set("k", "1"))
		require.NoError(t, store.Set("k", "2"))

		value, err := store.Get("k")
		require.NoError(t, err)
		assert.Equal(t, "2", value)
	})

	t.Run("cas applies when precondition holds", func(t *testing.T) {
		store := NewRegisterStore()
		require.NoError(t, store.Set("k", "1"))
		require.NoError(t, store.CompareAndSwap("k", "1", "2"))

		value, err := store.Get("k")
		require.NoError(t, err)
		assert.Equal(t, "2", value)
	})

	t.Run("cas fails when precondition doesn't hold", func(t *testing.T) {
		store := NewRegisterStore()
		require.NoError(t, store.Set("k", "1"))

		err := store.CompareAndSwap("k", "9", "2")
		assert.ErrorIs(t, err, ErrCompareFailed)

		// Value unchanged
		value, err := store.Get("k")
		require.NoError(t, err)
		assert.Equal(t, "1", value)
	})

	t.Run("cas on missing key", func(t *testing.T) {
		store := NewRegisterStore()
		err := store.CompareAndSwap("k", "1", "2")
		assert.ErrorIs(t, err, ErrKeyNotFound)
	})

	t.Run("concurrent cas is atomic", func(t *testing.T) {
		store := NewRegisterStore()
		require.NoError(t, store.Set("k", "0"))

		// Only one of N racing swaps from "0" can win
		var wg sync.WaitGroup
		wins := make(chan int, 10)
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				if store.CompareAndSwap("k", "0", "1") == nil {
					wins <- i
				}
			}(i)
		}
		wg.Wait()
		close(wins)

		count := 0
		for range wins {
			count++
		}
		assert.Equal(t, 1, count)
	})
}
