package store

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamware/attest/internal/history"
	"github.com/dreamware/attest/internal/storage"
)

// newTestClient starts a wire-faithful fake node and returns an open
// client pointed at it with a short request timeout.
func newTestClient(t *testing.T) (*HTTPClient, *storage.RegisterStore, *storage.Server) {
	t.Helper()
	reg := storage.NewRegisterStore()
	node := storage.NewServer(reg)
	srv := httptest.NewServer(node)
	t.Cleanup(srv.Close)

	c := NewHTTPClient(200 * time.Millisecond)
	require.NoError(t, c.OpenURL(srv.URL))
	t.Cleanup(func() { _ = c.Close() })
	return c, reg, node
}

// TestInvokeOutcomes tests the success paths against the wire protocol
func TestInvokeOutcomes(t *testing.T) {
	ctx := context.Background()

	t.Run("read absent key observes nil", func(t *testing.T) {
		c, _, _ := newTestClient(t)
		outcome, value, err := c.Invoke(ctx, history.Read(0))
		require.NoError(t, err)
		assert.Equal(t, history.OK, outcome)
		assert.Nil(t, value)
	})

	t.Run("write then read", func(t *testing.T) {
		c, _, _ := newTestClient(t)
		outcome, _, err := c.Invoke(ctx, history.Write(0, 3))
		require.NoError(t, err)
		assert.Equal(t, history.OK, outcome)

		outcome, value, err := c.Invoke(ctx, history.Read(0))
		require.NoError(t, err)
		assert.Equal(t, history.OK, outcome)
		require.NotNil(t, value)
		assert.Equal(t, 3, *value)
	})

	t.Run("cas applies when precondition holds", func(t *testing.T) {
		c, reg, _ := newTestClient(t)
		require.NoError(t, reg.Set("0", "1"))

		outcome, _, err := c.Invoke(ctx, history.CAS(0, 1, 2))
		require.NoError(t, err)
		assert.Equal(t, history.OK, outcome)

		got, err := reg.Get("0")
		require.NoError(t, err)
		assert.Equal(t, "2", got)
	})

	t.Run("cas precondition unmet is a definite fail", func(t *testing.T) {
		c, reg, _ := newTestClient(t)
		require.NoError(t, reg.Set("0", "1"))

		outcome, _, err := c.Invoke(ctx, history.CAS(0, 4, 2))
		require.NoError(t, err)
		assert.Equal(t, history.Fail, outcome)
	})

	t.Run("cas on absent key is a definite fail", func(t *testing.T) {
		c, _, _ := newTestClient(t)
		outcome, _, err := c.Invoke(ctx, history.CAS(0, 1, 2))
		require.NoError(t, err)
		assert.Equal(t, history.Fail, outcome)
	})
}

// TestTimeoutClassification tests that timeouts classify by operation kind:
// a timed-out read provably did not change state, while a timed-out
// mutation may have been applied server-side.
func TestTimeoutClassification(t *testing.T) {
	ctx := context.Background()

	t.Run("read timeout is fail", func(t *testing.T) {
		c, _, node := newTestClient(t)
		node.SetReachable(false)

		outcome, value, err := c.Invoke(ctx, history.Read(0))
		require.NoError(t, err)
		assert.Equal(t, history.Fail, outcome)
		assert.Nil(t, value)
	})

	t.Run("write timeout is info", func(t *testing.T) {
		c, _, node := newTestClient(t)
		node.SetReachable(false)

		outcome, _, err := c.Invoke(ctx, history.Write(0, 3))
		require.NoError(t, err)
		assert.Equal(t, history.Info, outcome)
	})

	t.Run("cas timeout is info", func(t *testing.T) {
		c, _, node := newTestClient(t)
		node.SetReachable(false)

		outcome, _, err := c.Invoke(ctx, history.CAS(0, 1, 2))
		require.NoError(t, err)
		assert.Equal(t, history.Info, outcome)
	})

	t.Run("context deadline behaves like a timeout", func(t *testing.T) {
		c, _, node := newTestClient(t)
		node.SetReachable(false)

		dctx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
		defer cancel()
		outcome, _, err := c.Invoke(dctx, history.Write(0, 3))
		require.NoError(t, err)
		assert.Equal(t, history.Info, outcome)
	})
}

// TestFatalErrors tests that unclassifiable failures propagate as errors
func TestFatalErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("unexpected status surfaces as an error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		}))
		defer srv.Close()

		c := NewHTTPClient(time.Second)
		require.NoError(t, c.OpenURL(srv.URL))
		defer c.Close()

		for _, op := range []history.Op{history.Read(0), history.Write(0, 1), history.CAS(0, 1, 2)} {
			_, _, err := c.Invoke(ctx, op)
			assert.Error(t, err, "op %s", op.Func)
		}
	})

	t.Run("invoke before open", func(t *testing.T) {
		c := NewHTTPClient(0)
		_, _, err := c.Invoke(ctx, history.Read(0))
		assert.ErrorIs(t, err, ErrNotOpen)
	})

	t.Run("invoke after close", func(t *testing.T) {
		c, _, _ := newTestClient(t)
		require.NoError(t, c.Close())
		_, _, err := c.Invoke(ctx, history.Read(0))
		assert.ErrorIs(t, err, ErrNotOpen)
	})
}

// TestClose tests close idempotency
func TestClose(t *testing.T) {
	c, _, _ := newTestClient(t)
	assert.NoError(t, c.Close())
	assert.NoError(t, c.Close())

	unopened := NewHTTPClient(0)
	assert.NoError(t, unopened.Close())
}
