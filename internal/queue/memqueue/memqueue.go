// Package memqueue is an in-process queue.Queue backed by a min-heap
// ordered by visibility time, for development and single-binary
// deployments.
package memqueue

import (
	"container/heap"
	"context"
	"sync"
	"time"

	"github.com/taskgraph/engine/internal/queue"
)

type item struct {
	msg       queue.Message
	visibleAt time.Time
}

type itemHeap []*item

func (h itemHeap) Len() int            { return len(h) }
func (h itemHeap) Less(i, j int) bool  { return h[i].visibleAt.Before(h[j].visibleAt) }
func (h itemHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *itemHeap) Push(x interface{}) { *h = append(*h, x.(*item)) }
func (h *itemHeap) Pop() interface{} {
	old := *h
	n := len(old)
	it := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return it
}

// Queue is a mutex-guarded, single-process queue.Queue.
type Queue struct {
	mu     sync.Mutex
	heap   itemHeap
	notify chan struct{}
}

// New returns an empty Queue.
func New() *Queue {
	return &Queue{notify: make(chan struct{}, 1)}
}

func (q *Queue) wake() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

func (q *Queue) Push(ctx context.Context, msg queue.Message) error {
	return q.PushDelayed(ctx, msg, 0)
}

func (q *Queue) PushDelayed(ctx context.Context, msg queue.Message, delay time.Duration) error {
	q.mu.Lock()
	heap.Push(&q.heap, &item{msg: msg, visibleAt: time.Now().Add(delay)})
	q.mu.Unlock()
	q.wake()
	return nil
}

// Pop blocks until a visible message is available or ctx is done. It
// polls the heap's next-visible timer, waking early whenever a new
// message is pushed.
func (q *Queue) Pop(ctx context.Context) (queue.Message, error) {
	for {
		q.mu.Lock()
		if len(q.heap) == 0 {
			q.mu.Unlock()
			select {
			case <-ctx.Done():
				return queue.Message{}, ctx.Err()
			case <-q.notify:
				continue
			}
		}

		next := q.heap[0]
		wait := time.Until(next.visibleAt)
		if wait <= 0 {
			heap.Pop(&q.heap)
			q.mu.Unlock()
			return next.msg, nil
		}
		q.mu.Unlock()

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return queue.Message{}, ctx.Err()
		case <-q.notify:
			timer.Stop()
			continue
		case <-timer.C:
			continue
		}
	}
}

func (q *Queue) Close() error { return nil }
