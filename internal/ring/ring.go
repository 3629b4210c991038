// Package ring provides a fixed-capacity FIFO buffer. Once full, each Push
// evicts the oldest element.
package ring

type Buffer[T any] struct {
	data  []T
	start int
	size  int
}

func New[T any](capacity int) *Buffer[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Buffer[T]{data: make([]T, capacity)}
}

// Push appends v and reports whether an element was evicted.
func (b *Buffer[T]) Push(v T) (evicted bool) {
	if b.size < len(b.data) {
		b.data[(b.start+b.size)%len(b.data)] = v
		b.size++
		return false
	}
	b.data[b.start] = v
	b.start = (b.start + 1) % len(b.data)
	return true
}

func (b *Buffer[T]) Len() int { return b.size }

func (b *Buffer[T]) Cap() int { return len(b.data) }

func (b *Buffer[T]) Full() bool { return b.size == len(b.data) }

// At returns the i-th element, oldest first. Negative i counts from the newest.
func (b *Buffer[T]) At(i int) T {
	if i < 0 {
		i += b.size
	}
	if i < 0 || i >= b.size {
		panic("ring: index out of range")
	}
	return b.data[(b.start+i)%len(b.data)]
}

// Last returns the newest element and false when empty.
func (b *Buffer[T]) Last() (T, bool) {
	var zero T
	if b.size == 0 {
		return zero, false
	}
	return b.At(b.size - 1), true
}

// Slice copies the contents, oldest first.
func (b *Buffer[T]) Slice() []T {
	out := make([]T, b.size)
	for i := 0; i < b.size; i++ {
		out[i] = b.data[(b.start+i)%len(b.data)]
	}
	return out
}

// Tail copies the newest n elements (fewer if not available), oldest first.
func (b *Buffer[T]) Tail(n int) []T {
	if n > b.size {
		n = b.size
	}
	if n <= 0 {
		return nil
	}
	out := make([]T, n)
	off := b.size - n
	for i := 0; i < n; i++ {
		out[i] = b.data[(b.start+off+i)%len(b.data)]
	}
	return out
}
