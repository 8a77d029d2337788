package tail

import (
	"errors"
	"sync"
)

// Buffer - accumulates a limited number of most recent lines.
// When buffer length has reached max value, it drops the oldest line on
// every push.
type Buffer struct {
	mu   sync.RWMutex
	max  int
	data []string
}

// New - builds tail buffer able to keep up to max lines.
func New(max int) (*Buffer, error) {
	if max <= 0 {
		return nil, errors.New("tail.New: max must be greater than 0")
	}
	return &Buffer{max: max}, nil
}

// Len - returns number of currently kept lines.
func (b *Buffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.data)
}

// Push - appends line to the buffer, evicting the oldest one if needed.
func (b *Buffer) Push(line string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.data) == b.max {
		copy(b.data, b.data[1:])
		b.data = b.data[:len(b.data)-1]
	}
	b.data = append(b.data, line)
}

// Last - makes a copy of up to n most recent lines.
// The first item of the resulting slice is the oldest.
func (b *Buffer) Last(n int) []string {
	if n < 0 {
		n = -n
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	if n == 0 || len(b.data) == 0 {
		return []string{}
	}
	if n > len(b.data) {
		n = len(b.data)
	}
	last := make([]string, n)
	copy(last, b.data[len(b.data)-n:])
	return last
}
