package workload

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/dreamware/attest/internal/history"
)

// Defaults for the generated mix.
const (
	DefaultOpsPerKey = 100
	DefaultMeanGap   = 20 * time.Millisecond
	// ValueRange bounds write and cas arguments to [0, ValueRange).
	ValueRange = 5
)

// KeyWorkload produces the bounded, randomized invocation stream for one
// key. The stream is drawn from a uniform mix of read, write and cas with
// small random arguments, and is shared by all of the key's worker
// processes: Next hands out operations until the key's budget is spent.
//
// Pacing is two-layered: a per-key limiter caps the key's aggregate rate
// at one op per mean gap per worker, and each worker adds its own uniform
// jitter so invocations don't arrive in lockstep.
type KeyWorkload struct {
	key     int
	limiter *rate.Limiter
	meanGap time.Duration

	mu        sync.Mutex
	remaining int
}

// NewKeyWorkload creates a fresh stream for key with the given operation
// budget, shared by workers processes. Zero count and gap take defaults.
// Streams are restartable: a new KeyWorkload is a new sequence.
func NewKeyWorkload(key, count, workers int, meanGap time.Duration) *KeyWorkload {
	if count <= 0 {
		count = DefaultOpsPerKey
	}
	if meanGap <= 0 {
		meanGap = DefaultMeanGap
	}
	if workers <= 0 {
		workers = 1
	}
	perWorker := rate.Every(meanGap)
	return &KeyWorkload{
		key:       key,
		limiter:   rate.NewLimiter(perWorker*rate.Limit(workers), workers),
		meanGap:   meanGap,
		remaining: count,
	}
}

// Key returns the key this stream generates operations for.
func (w *KeyWorkload) Key() int { return w.key }

// Next draws the next invocation from the stream, or reports that the
// key's operation budget is exhausted.
func (w *KeyWorkload) Next(rng *rand.Rand) (history.Op, bool) {
	w.mu.Lock()
	if w.remaining <= 0 {
		w.mu.Unlock()
		return history.Op{}, false
	}
	w.remaining--
	w.mu.Unlock()

	switch rng.Intn(3) {
	case 0:
		return history.Read(w.key), true
	case 1:
		return history.Write(w.key, rng.Intn(ValueRange)), true
	default:
		return history.CAS(w.key, rng.Intn(ValueRange), rng.Intn(ValueRange)), true
	}
}

// Pace blocks until the caller may issue its next invocation: the shared
// limiter first, then the caller's own jitter of up to twice the mean gap.
// Returns early with the context's error when the run is over.
func (w *KeyWorkload) Pace(ctx context.Context, rng *rand.Rand) error {
	if err := w.limiter.Wait(ctx); err != nil {
		return err
	}
	jitter := time.Duration(rng.Int63n(int64(2 * w.meanGap)))
	t := time.NewTimer(jitter)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
