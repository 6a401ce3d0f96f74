package webui

import "sync"

// DefaultEventCapacity is the size of the session event log.
const DefaultEventCapacity = 100

// CircularBuffer is a thread-safe, fixed-size FIFO that overwrites the
// oldest entry when full.
type CircularBuffer[T any] struct {
	mu       sync.RWMutex
	data     []T
	capacity int
	size     int
	head     int // next write
	tail     int // oldest
}

// NewCircularBuffer creates a buffer holding at most capacity items.
// Panics if capacity is less than 1.
func NewCircularBuffer[T any](capacity int) *CircularBuffer[T] {
	if capacity < 1 {
		panic("CircularBuffer capacity must be at least 1")
	}
	return &CircularBuffer[T]{
		data:     make([]T, capacity),
		capacity: capacity,
	}
}

// Push adds item, overwriting the oldest element when full.
func (b *CircularBuffer[T]) Push(item T) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.data[b.head] = item
	b.head = (b.head + 1) % b.capacity

	if b.size < b.capacity {
		b.size++
	} else {
		b.tail = (b.tail + 1) % b.capacity
	}
}

// GetAll returns every element, oldest first. The slice is a copy.
func (b *CircularBuffer[T]) GetAll() []T {
	return b.GetLast(b.Capacity())
}

// GetLast returns up to n of the most recent elements, oldest first.
func (b *CircularBuffer[T]) GetLast(n int) []T {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if n <= 0 || b.size == 0 {
		return []T{}
	}
	n = min(n, b.size)

	result := make([]T, n)
	start := b.size - n
	for i := 0; i < n; i++ {
		result[i] = b.data[(b.tail+start+i)%b.capacity]
	}
	return result
}

// Peek returns the most recent element.
func (b *CircularBuffer[T]) Peek() (T, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var zero T
	if b.size == 0 {
		return zero, false
	}
	return b.data[(b.head-1+b.capacity)%b.capacity], true
}

func (b *CircularBuffer[T]) Size() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.size
}

func (b *CircularBuffer[T]) Capacity() int {
	return b.capacity
}

// Clear removes all elements.
func (b *CircularBuffer[T]) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()

	clear(b.data)
	b.size = 0
	b.head = 0
	b.tail = 0
}
