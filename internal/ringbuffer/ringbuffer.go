// Package ringbuffer implements the single-producer single-consumer sample
// queue that sits between the device callback and the frame reader (spec
// §3 RingBuffer<i16>). The producer never blocks: on overflow it drops the
// incoming burst whole and counts it.
package ringbuffer

import "sync/atomic"

// RingBuffer is a lock-free SPSC bounded queue of int16 samples. Capacity is
// rounded up to the next power of two. A single goroutine must call Write;
// a single (possibly different) goroutine must call Read. Split exposes
// that contract as two distinct handles, a write-only Producer and a
// read-only Consumer; it does not stop Split being called twice or a
// handle being shared between goroutines.
type RingBuffer struct {
	buf      []int16
	mask     uint64
	head     atomic.Uint64 // next index to write (producer-owned)
	tail     atomic.Uint64 // next index to read (consumer-owned)
	overflow atomic.Uint64 // count of dropped bursts
}

// New creates a ring buffer with at least capacity slots, rounded up to the
// next power of two.
func New(capacity int) *RingBuffer {
	cap := nextPowerOfTwo(capacity)
	return &RingBuffer{
		buf:  make([]int16, cap),
		mask: uint64(cap - 1),
	}
}

// Split returns a Producer/Consumer pair bound to the same storage, mirroring
// the ownership split Capture (producer) and the frame reader (consumer)
// require.
func (r *RingBuffer) Split() (*Producer, *Consumer) {
	return &Producer{r: r}, &Consumer{r: r}
}

func nextPowerOfTwo(n int) int {
	if n <= 1 {
		return 1
	}
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

// Capacity returns the total slot count.
func (r *RingBuffer) Capacity() int { return len(r.buf) }

// OverflowCount returns the number of write bursts dropped for lack of room.
func (r *RingBuffer) OverflowCount() uint64 { return r.overflow.Load() }

func (r *RingBuffer) used() uint64 {
	return r.head.Load() - r.tail.Load()
}

func (r *RingBuffer) free() uint64 {
	return uint64(len(r.buf)) - r.used()
}

// Producer is the write half of a RingBuffer, owned by the audio callback.
type Producer struct{ r *RingBuffer }

// Write attempts a non-blocking, wait-free write of samples. If there is not
// enough free space for the whole burst, nothing is written, the overflow
// counter is incremented, and ok is false. This matches the device
// callback's "never block, drop the burst" contract (spec §4.1).
func (p *Producer) Write(samples []int16) (ok bool) {
	n := uint64(len(samples))
	if n == 0 {
		return true
	}
	if n > p.r.free() {
		p.r.overflow.Add(1)
		return false
	}

	head := p.r.head.Load()
	mask := p.r.mask
	cap := uint64(len(p.r.buf))

	start := head & mask
	firstLen := cap - start
	if firstLen > n {
		firstLen = n
	}
	copy(p.r.buf[start:start+firstLen], samples[:firstLen])
	if rem := n - firstLen; rem > 0 {
		copy(p.r.buf[0:rem], samples[firstLen:])
	}

	p.r.head.Store(head + n)
	return true
}

// Slots reports how many samples can currently be written without overflow.
func (p *Producer) Slots() int { return int(p.r.free()) }

// Consumer is the read half of a RingBuffer, owned by the frame reader.
type Consumer struct{ r *RingBuffer }

// Read copies up to len(dst) available samples into dst without blocking,
// returning the number copied. A short read (including zero) means the
// ring currently holds fewer samples than requested; it is not an error.
func (c *Consumer) Read(dst []int16) int {
	avail := c.r.used()
	n := uint64(len(dst))
	if n > avail {
		n = avail
	}
	if n == 0 {
		return 0
	}

	tail := c.r.tail.Load()
	mask := c.r.mask
	cap := uint64(len(c.r.buf))

	start := tail & mask
	firstLen := cap - start
	if firstLen > n {
		firstLen = n
	}
	copy(dst[:firstLen], c.r.buf[start:start+firstLen])
	if rem := n - firstLen; rem > 0 {
		copy(dst[firstLen:n], c.r.buf[0:rem])
	}

	c.r.tail.Store(tail + n)
	return int(n)
}

// Slots reports how many samples are currently available to read.
func (c *Consumer) Slots() int { return int(c.r.used()) }
