// Package jitter implements a per-session jitter buffer for RTP-framed
// audio. It reorders out-of-order packets by sequence number, bounds
// residency by a capacity derived from the configured buffer depth, and
// tracks loss across the 16-bit sequence-number wraparound.
//
// Not safe for concurrent use — the pipeline's single per-session goroutine
// is the sole owner, per spec.
package jitter

const samplesPerFrame20ms = 320 // 20ms @ 16kHz mono

// minCapacity is the floor on max_packets regardless of how small
// max_size_ms is configured.
const minCapacity = 10

// Buffer reorders packets by sequence number and bounds how many it holds
// at once.
type Buffer struct {
	capacity int

	packets       map[uint16][]byte
	order         []uint16 // ascending sequence numbers currently resident
	lastDelivered uint16
	hasDelivered  bool

	received uint64
	lost     uint64
}

// New creates a Buffer sized from maxSizeMs and sampleRate, assuming 20ms
// frames (the pipeline's only supported frame size). Capacity is
// max(10, maxSizeMs * framesPerSecond / 1000).
func New(maxSizeMs, sampleRate int) *Buffer {
	framesPerSecond := sampleRate / samplesPerFrame20ms
	capacity := (maxSizeMs * framesPerSecond) / 1000
	if capacity < minCapacity {
		capacity = minCapacity
	}
	return &Buffer{
		capacity: capacity,
		packets:  make(map[uint16][]byte),
	}
}

// fwd returns the forward distance from a to b modulo 2^16.
func fwd(a, b uint16) uint16 {
	return b - a
}

// Insert adds a received packet. If the buffer is over capacity afterward,
// the lowest-sequence entry currently resident is evicted. It returns the
// number of frames newly counted as lost by this call (the forward gap
// between the last delivered sequence and seq), so a caller that wants to
// preserve real-time cadence can synthesize that many concealment frames.
func (b *Buffer) Insert(seq uint16, payload []byte) uint64 {
	b.received++

	var newlyLost uint64
	if b.hasDelivered {
		expected := b.lastDelivered + 1
		d := fwd(expected, seq)
		if d != 0 {
			if d <= 1<<15 {
				// seq is ahead of what we expected next: the gap is loss.
				newlyLost = uint64(d)
				b.lost += newlyLost
			} else {
				// seq is behind (a late straggler past the wrap guard): drop.
				return 0
			}
		}
	}

	if _, exists := b.packets[seq]; !exists {
		b.insertOrdered(seq)
	}
	b.packets[seq] = payload

	for len(b.order) > b.capacity {
		oldest := b.order[0]
		b.order = b.order[1:]
		delete(b.packets, oldest)
	}
	return newlyLost
}

// insertOrdered inserts seq into b.order keeping it sorted ascending.
func (b *Buffer) insertOrdered(seq uint16) {
	i := 0
	for i < len(b.order) && b.order[i] < seq {
		i++
	}
	b.order = append(b.order, 0)
	copy(b.order[i+1:], b.order[i:])
	b.order[i] = seq
}

// GetReadyFrame pops and returns the lowest-sequence resident packet. It
// returns false if the buffer is empty.
func (b *Buffer) GetReadyFrame() ([]byte, bool) {
	if len(b.order) == 0 {
		return nil, false
	}
	seq := b.order[0]
	b.order = b.order[1:]
	payload := b.packets[seq]
	delete(b.packets, seq)
	b.lastDelivered = seq
	b.hasDelivered = true
	return payload, true
}

// Size returns the number of packets currently resident.
func (b *Buffer) Size() int {
	return len(b.order)
}

// PacketLossRatio returns lost / (received + lost), or 0 if both are 0.
func (b *Buffer) PacketLossRatio() float64 {
	total := b.received + b.lost
	if total == 0 {
		return 0
	}
	return float64(b.lost) / float64(total)
}

// LevelPercent returns the buffer's occupancy as a percentage of capacity.
func (b *Buffer) LevelPercent() float64 {
	return 100 * float64(len(b.order)) / float64(b.capacity)
}

// Clear empties the buffer and forgets the last-delivered sequence number.
func (b *Buffer) Clear() {
	b.packets = make(map[uint16][]byte)
	b.order = nil
	b.hasDelivered = false
	b.lastDelivered = 0
}

// ResetStats zeroes the received/lost counters without touching resident
// packets.
func (b *Buffer) ResetStats() {
	b.received = 0
	b.lost = 0
}

// Capacity returns the buffer's configured maximum resident packet count.
func (b *Buffer) Capacity() int {
	return b.capacity
}
