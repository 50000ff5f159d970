package history

import (
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestRecorder tests append ordering and stamping
func TestRecorder(t *testing.T) {
	t.Run("indexes are monotonic", func(t *testing.T) {
		rec := NewRecorder()
		for i := 0; i < 10; i++ {
			rec.Append(Read(0))
		}
		ops := rec.Ops()
		require.Len(t, ops, 10)
		for i, op := range ops {
			assert.Equal(t, int64(i), op.Index)
		}
	})

	t.Run("timestamps never decrease", func(t *testing.T) {
		rec := NewRecorder()
		for i := 0; i < 100; i++ {
			rec.Append(Write(0, i%5))
		}
		ops := rec.Ops()
		for i := 1; i < len(ops); i++ {
			assert.GreaterOrEqual(t, ops[i].Time, ops[i-1].Time)
		}
	})

	t.Run("concurrent appends are atomic", func(t *testing.T) {
		rec := NewRecorder()
		var wg sync.WaitGroup
		const writers = 20
		const perWriter = 50
		for w := 0; w < writers; w++ {
			wg.Add(1)
			go func(proc int) {
				defer wg.Done()
				for i := 0; i < perWriter; i++ {
					inv := rec.Invoke(proc, Read(proc))
					rec.Complete(inv, OK, Int(i))
				}
			}(w)
		}
		wg.Wait()

		ops := rec.Ops()
		require.Len(t, ops, writers*perWriter*2)
		seen := make(map[int64]bool)
		for _, op := range ops {
			assert.False(t, seen[op.Index], "duplicate index %d", op.Index)
			seen[op.Index] = true
		}
		assert.NoError(t, Validate(ops))
	})

	t.Run("completion keeps mutation arguments", func(t *testing.T) {
		rec := NewRecorder()
		inv := rec.Invoke(3, CAS(7, 1, 2))
		done := rec.Complete(inv, OK, nil)
		require.NotNil(t, done.Old)
		require.NotNil(t, done.New)
		assert.Equal(t, 1, *done.Old)
		assert.Equal(t, 2, *done.New)
		assert.Equal(t, 7, done.Key)
	})
}

// TestValidate tests the per-process alternation invariant
func TestValidate(t *testing.T) {
	t.Run("valid alternation", func(t *testing.T) {
		ops := []Op{
			{Process: 0, Func: FuncWrite, Type: Invoke},
			{Process: 1, Func: FuncRead, Type: Invoke},
			{Process: 0, Func: FuncWrite, Type: OK},
			{Process: 1, Func: FuncRead, Type: Fail},
			{Process: 0, Func: FuncCAS, Type: Invoke},
			{Process: 0, Func: FuncCAS, Type: Info},
		}
		assert.NoError(t, Validate(ops))
	})

	t.Run("double invoke rejected", func(t *testing.T) {
		ops := []Op{
			{Process: 0, Func: FuncRead, Type: Invoke},
			{Process: 0, Func: FuncRead, Type: Invoke},
		}
		err := Validate(ops)
		assert.ErrorIs(t, err, ErrMalformedHistory)
	})

	t.Run("completion without invocation rejected", func(t *testing.T) {
		ops := []Op{
			{Process: 0, Func: FuncRead, Type: OK},
		}
		assert.ErrorIs(t, Validate(ops), ErrMalformedHistory)
	})

	t.Run("trailing open invocation allowed", func(t *testing.T) {
		ops := []Op{
			{Process: 0, Func: FuncWrite, Type: Invoke},
		}
		assert.NoError(t, Validate(ops))
	})

	t.Run("nemesis ops ignored", func(t *testing.T) {
		ops := []Op{
			{Process: NemesisProcess, Func: FuncStartPartition, Type: Invoke},
			{Process: NemesisProcess, Func: FuncStartPartition, Type: OK},
			{Process: NemesisProcess, Func: FuncStopPartition, Type: Invoke},
		}
		assert.NoError(t, Validate(ops))
	})
}

// TestPerKey tests sub-history splitting
func TestPerKey(t *testing.T) {
	ops := []Op{
		{Process: 0, Key: 1, Func: FuncRead, Type: Invoke},
		{Process: 1, Key: 2, Func: FuncWrite, Type: Invoke},
		{Process: NemesisProcess, Func: FuncStartPartition, Type: OK},
		{Process: 0, Key: 1, Func: FuncRead, Type: OK},
		{Process: 1, Key: 2, Func: FuncWrite, Type: OK},
	}
	keyed := PerKey(ops)
	require.Len(t, keyed, 2)
	assert.Len(t, keyed[1], 2)
	assert.Len(t, keyed[2], 2)

	nem := NemesisOps(ops)
	require.Len(t, nem, 1)
	assert.Equal(t, FuncStartPartition, nem[0].Func)
}

// TestFileRoundTrip tests history persistence
func TestFileRoundTrip(t *testing.T) {
	rec := NewRecorder()
	inv := rec.Invoke(0, Write(3, 4))
	rec.Complete(inv, OK, nil)
	inv = rec.Invoke(1, Read(3))
	rec.Complete(inv, OK, Int(4))
	rec.Invoke(NemesisProcess, Op{Func: FuncStartPartition})

	path := filepath.Join(t.TempDir(), "history.jsonl")
	require.NoError(t, WriteFile(path, rec.Ops()))

	got, err := ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, rec.Ops(), got)
}
