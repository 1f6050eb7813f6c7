package audiocapture

import "sync"

// queue is an unbounded multi-producer single-consumer chunk queue. push
// never waits for the consumer; pop blocks until a chunk arrives or the
// queue is closed and drained.
type queue struct {
	mu      sync.Mutex
	chunks  [][]float32
	queued  int
	limit   int
	dropped int
	closed  bool
	ready   chan struct{}
}

func newQueue(limit int) *queue {
	return &queue{limit: limit, ready: make(chan struct{}, 1)}
}

func (q *queue) push(chunk []float32) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	if q.limit > 0 && q.queued+len(chunk) > q.limit {
		q.dropped += len(chunk)
		q.mu.Unlock()
		return
	}
	q.chunks = append(q.chunks, chunk)
	q.queued += len(chunk)
	q.mu.Unlock()
	q.signal()
}

// pop returns the next chunk. ok is false once the queue is closed and empty.
func (q *queue) pop() (chunk []float32, ok bool) {
	for {
		q.mu.Lock()
		if len(q.chunks) > 0 {
			chunk = q.chunks[0]
			q.chunks[0] = nil
			q.chunks = q.chunks[1:]
			q.queued -= len(chunk)
			q.mu.Unlock()
			return chunk, true
		}
		if q.closed {
			q.mu.Unlock()
			return nil, false
		}
		q.mu.Unlock()
		<-q.ready
	}
}

// close marks end of input. Chunks already queued are still delivered.
func (q *queue) close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.signal()
}

func (q *queue) droppedSamples() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}

func (q *queue) signal() {
	select {
	case q.ready <- struct{}{}:
	default:
	}
}
