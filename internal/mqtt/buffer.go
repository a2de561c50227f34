package mqtt

import (
	"sync"

	"github.com/sweeney/smarthome-node/internal/connectivity"
	"github.com/sweeney/smarthome-node/internal/log"
)

// DefaultInboundCapacity bounds how many unprocessed inbound messages are held
// between drains.
const DefaultInboundCapacity = 64

// ringBuffer is a fixed-capacity FIFO that drops the oldest message when full.
// Not safe for concurrent use; inboundBuffer synchronizes it.
type ringBuffer struct {
	buf      []connectivity.Message
	capacity int
	head     int // next write position
	count    int
	dropped  int // messages lost since the last drain
}

func newRingBuffer(capacity int) *ringBuffer {
	return &ringBuffer{
		buf:      make([]connectivity.Message, capacity),
		capacity: capacity,
	}
}

func (r *ringBuffer) push(msg connectivity.Message) {
	r.buf[r.head] = msg
	r.head = (r.head + 1) % r.capacity
	if r.count == r.capacity {
		// head was pointing at the oldest entry, which is now overwritten
		r.dropped++
		return
	}
	r.count++
}

func (r *ringBuffer) drainAll() []connectivity.Message {
	if r.count == 0 {
		return nil
	}

	result := make([]connectivity.Message, r.count)
	// Oldest item is at (head - count) mod capacity
	start := (r.head - r.count + r.capacity) % r.capacity
	for i := 0; i < r.count; i++ {
		result[i] = r.buf[(start+i)%r.capacity]
		r.buf[(start+i)%r.capacity] = connectivity.Message{}
	}

	r.count = 0
	r.head = 0
	r.dropped = 0
	return result
}

func (r *ringBuffer) len() int {
	return r.count
}

// inboundBuffer is written from the paho callback goroutine and drained from
// the control loop.
type inboundBuffer struct {
	mu  sync.Mutex
	rb  *ringBuffer
	log log.Logger
}

func newInboundBuffer(capacity int, logger log.Logger) *inboundBuffer {
	if capacity <= 0 {
		capacity = DefaultInboundCapacity
	}
	return &inboundBuffer{rb: newRingBuffer(capacity), log: logger}
}

func (b *inboundBuffer) push(msg connectivity.Message) {
	b.mu.Lock()
	b.rb.push(msg)
	first := b.rb.dropped == 1
	b.mu.Unlock()

	if first {
		b.log.Warn("inbound buffer full, dropping oldest", "capacity", b.rb.capacity)
	}
}

func (b *inboundBuffer) drain() []connectivity.Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.rb.dropped > 0 {
		b.log.Warn("inbound messages dropped", "count", b.rb.dropped)
	}
	return b.rb.drainAll()
}

func (b *inboundBuffer) len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.rb.len()
}
