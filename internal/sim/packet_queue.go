package sim

import "sync"

const (
	packetQueueOccupancyMetricKey = "sim_packet_queue_occupancy"
	packetQueueGrowthMetricKey    = "sim_packet_queue_growth_total"
	packetQueuePushedMetricKey    = "sim_packet_queue_pushed_total"
)

// PacketQueue is the FIFO between the receive loop and the tick loop. It is a
// ring that doubles when full, so Push never rejects and never waits on the
// consumer. Producer and consumer only contend on the mutex for the length of
// a copy.
type PacketQueue struct {
	mu      sync.Mutex
	data    []Packet
	head    int
	tail    int
	count   int
	metrics telemetryMetrics
}

type telemetryMetrics interface {
	Add(string, uint64)
	Store(string, uint64)
}

// NewPacketQueue constructs a queue with the provided initial capacity.
func NewPacketQueue(capacity int, metrics telemetryMetrics) *PacketQueue {
	if capacity < 1 {
		capacity = 1
	}
	return &PacketQueue{
		data:    make([]Packet, capacity),
		metrics: metrics,
	}
}

// Capacity reports the current size of the ring.
func (q *PacketQueue) Capacity() int {
	if q == nil {
		return 0
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.data)
}

// Push appends a packet and returns the queue length after the push.
func (q *PacketQueue) Push(packet Packet) int {
	if q == nil {
		return 0
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.count == len(q.data) {
		q.growLocked()
	}
	q.data[q.tail] = packet
	q.tail = (q.tail + 1) % len(q.data)
	q.count++
	if q.metrics != nil {
		q.metrics.Add(packetQueuePushedMetricKey, 1)
	}
	q.storeOccupancyLocked()
	return q.count
}

// Drain returns every queued packet in arrival order and empties the queue.
func (q *PacketQueue) Drain() []Packet {
	return q.DrainInto(nil)
}

// DrainInto is Drain appending to dst[:0], letting the tick loop reuse one
// backing array across ticks.
func (q *PacketQueue) DrainInto(dst []Packet) []Packet {
	dst = dst[:0]
	if q == nil {
		return dst
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.count == 0 {
		return dst
	}
	for i := 0; i < q.count; i++ {
		idx := (q.head + i) % len(q.data)
		dst = append(dst, q.data[idx])
		q.data[idx] = Packet{}
	}
	q.head = 0
	q.tail = 0
	q.count = 0
	q.storeOccupancyLocked()
	return dst
}

// Len reports the number of queued packets.
func (q *PacketQueue) Len() int {
	if q == nil {
		return 0
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.count
}

func (q *PacketQueue) growLocked() {
	grown := make([]Packet, len(q.data)*2)
	for i := 0; i < q.count; i++ {
		grown[i] = q.data[(q.head+i)%len(q.data)]
	}
	q.data = grown
	q.head = 0
	q.tail = q.count
	if q.metrics != nil {
		q.metrics.Add(packetQueueGrowthMetricKey, 1)
	}
}

func (q *PacketQueue) storeOccupancyLocked() {
	if q.metrics == nil {
		return
	}
	q.metrics.Store(packetQueueOccupancyMetricKey, uint64(q.count))
}
