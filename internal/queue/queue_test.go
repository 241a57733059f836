package queue

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPriorityQueue_OrdersByPriority(t *testing.T) {
	pq := NewPriorityQueue[string]()
	pq.Enqueue("full-sync", 2)
	pq.Enqueue("upload", 0)
	pq.Enqueue("batch", 1)

	for _, want := range []string{"upload", "batch", "full-sync"} {
		v, ok := pq.Dequeue()
		assert.True(t, ok)
		assert.Equal(t, want, v)
	}

	_, ok := pq.Dequeue()
	assert.False(t, ok)
}

func TestPriorityQueue_FIFOWithinPriority(t *testing.T) {
	pq := NewPriorityQueue[int]()
	for i := 0; i < 20; i++ {
		pq.Enqueue(i, i%2)
	}

	all := pq.DequeueAll()
	assert.Equal(t, []int{0, 2, 4, 6, 8, 10, 12, 14, 16, 18, 1, 3, 5, 7, 9, 11, 13, 15, 17, 19}, all)
	assert.Equal(t, 0, pq.Len())
}

func TestPriorityQueue_ConcurrentEnqueueDequeue(t *testing.T) {
	pq := NewPriorityQueue[int]()
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(v int) {
			defer wg.Done()
			pq.Enqueue(v, v%3)
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 50, pq.Len())

	var mu sync.Mutex
	seen := map[int]bool{}
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				v, ok := pq.Dequeue()
				if !ok {
					return
				}
				mu.Lock()
				seen[v] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, 50)
}
