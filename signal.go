package segsieve

import (
	"context"
	"sync"
)

// signal is a coalescing wake-up: any number of rings before a wait collapse
// into one wake, and a ring never blocks. A ring that races with a waiter
// going to sleep is kept in the buffer, so no wake-up is lost.
type signal chan struct{}

// newSignal returns a signal. An open signal lets the first wait through.
func newSignal(open bool) signal {
	s := make(signal, 1)
	if open {
		s <- struct{}{}
	}
	return s
}

// ring wakes the waiter, or arms the next wait if nobody is waiting.
func (s signal) ring() {
	select {
	case s <- struct{}{}:
	default:
	}
}

// wait blocks until the signal is rung or ctx is done.
func (s signal) wait(ctx context.Context) error {
	select {
	case <-s:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// segment is a sieved chunk in transit from a worker to the merger.
// composite[i] reports whether start+i was marked composite.
type segment struct {
	start     uint64
	end       uint64
	composite []bool
}

// resultQueue carries finished segments to the merger. It has its own lock so
// that submitting a result never contends with claiming a chunk.
//
// push transfers ownership of the segment: the worker must not touch it, or
// its bitmap, afterwards.
type resultQueue struct {
	mu    sync.Mutex
	items []*segment
	bell  signal // doorbell rung on every push
}

func newResultQueue(capacity int) *resultQueue {
	return &resultQueue{
		items: make([]*segment, 0, capacity),
		bell:  newSignal(false),
	}
}

// push submits a segment and rings the doorbell.
func (q *resultQueue) push(seg *segment) {
	q.mu.Lock()
	q.items = append(q.items, seg)
	q.mu.Unlock()
	q.bell.ring()
}

// drain moves every queued segment to dst, newest first.
func (q *resultQueue) drain(dst []*segment) []*segment {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i := len(q.items) - 1; i >= 0; i-- {
		dst = append(dst, q.items[i])
		q.items[i] = nil
	}
	q.items = q.items[:0]
	return dst
}

// bitmapPool recycles segment bitmaps. Workers get; only the merger puts.
type bitmapPool struct {
	pool sync.Pool
}

func newBitmapPool(chunkSize uint64) *bitmapPool {
	p := &bitmapPool{}
	p.pool.New = func() any {
		return make([]bool, chunkSize)
	}
	return p
}

// get returns a zeroed bitmap of length n. n must not exceed the chunk size.
func (p *bitmapPool) get(n uint64) []bool {
	b := p.pool.Get().([]bool)[:n]
	clear(b)
	return b
}

// put returns a bitmap to the pool.
func (p *bitmapPool) put(b []bool) {
	//lint:ignore SA6002 slice value boxing is acceptable; pointer-to-slice adds complexity
	p.pool.Put(b[:cap(b)]) //nolint:staticcheck
}
