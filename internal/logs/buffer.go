package logs

import "sync"

// circularBuffer implements Buffer as a thread-safe circular buffer.
type circularBuffer struct {
	entries   []LogEntry
	size      int
	head      int // Points to oldest entry
	count     int // Number of entries in buffer
	lineCount int // Total lines ever written
	mu        sync.RWMutex
}

// NewBuffer creates a new circular buffer with the specified capacity.
func NewBuffer(size int) Buffer {
	if size <= 0 {
		size = DefaultBufferSize
	}

	return &circularBuffer{
		entries: make([]LogEntry, size),
		size:    size,
	}
}

// Write appends a log entry to the buffer, overwriting the oldest entry when
// the buffer is full.
func (b *circularBuffer) Write(entry LogEntry) {
	b.mu.Lock()
	defer b.mu.Unlock()

	idx := (b.head + b.count) % b.size

	if b.count < b.size {
		b.entries[idx] = entry
		b.count++
	} else {
		b.entries[b.head] = entry
		b.head = (b.head + 1) % b.size
	}

	b.lineCount++
}

// ReadLast returns the most recent n entries in chronological order.
func (b *circularBuffer) ReadLast(n int) []LogEntry {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if n <= 0 || n > b.count {
		n = b.count
	}

	result := make([]LogEntry, 0, n)
	for i := b.count - n; i < b.count; i++ {
		idx := (b.head + i) % b.size
		result = append(result, b.entries[idx])
	}

	return result
}

// ReadAll returns all buffered entries in chronological order.
func (b *circularBuffer) ReadAll() []LogEntry {
	b.mu.RLock()
	defer b.mu.RUnlock()

	result := make([]LogEntry, b.count)
	for i := 0; i < b.count; i++ {
		idx := (b.head + i) % b.size
		result[i] = b.entries[idx]
	}

	return result
}

// Size returns the number of entries currently in the buffer.
func (b *circularBuffer) Size() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return b.count
}

// LineCount returns the total number of lines ever written to the buffer.
func (b *circularBuffer) LineCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return b.lineCount
}

// Clear empties the buffer. lineCount is not reset; it tracks total lines
// ever written.
func (b *circularBuffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.head = 0
	b.count = 0
}
