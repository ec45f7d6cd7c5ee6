package knx

import (
	"sync"
	"sync/atomic"
)

// Transmission is an outbound cEMI frame plus its confirmation latch. It
// lives until either a matching L_Data.con arrives or the confirm timeout
// fires; exactly one waiter reads Result.
type Transmission struct {
	Frame  Frame
	Result chan TransmissionResult
}

// TransmissionResult is the outcome delivered to a Transmission's waiter.
type TransmissionResult int

const (
	ResultOK TransmissionResult = iota
	ResultTimeout
)

// PriorityQueue holds four FIFO sub-queues, one per Priority class, and
// drains them per a weighted round-robin distribution vector [system,
// urgent, normal, low]. Within a class, ordering is FIFO; across classes,
// it is the round-robin the distribution vector prescribes. Empty classes
// yield their turn rather than blocking the round.
type PriorityQueue struct {
	mu           sync.Mutex
	notEmpty     *sync.Cond
	queues       [priorityCount][]Transmission
	distribution [priorityCount]int
	highWater    int
	closed       bool

	// round-robin cursor state
	nextClass  int
	creditLeft int

	drops [priorityCount]atomic.Uint64
}

// NewPriorityQueue creates a queue with the given distribution vector
// (credits per round for system, urgent, normal, low) and a high-water
// mark bounding the total number of queued items across all classes.
func NewPriorityQueue(distribution [priorityCount]int, highWater int) *PriorityQueue {
	q := &PriorityQueue{
		distribution: distribution,
		highWater:    highWater,
	}
	q.notEmpty = sync.NewCond(&q.mu)
	q.creditLeft = distribution[0]
	return q
}

// Push appends a Transmission to its priority class's sub-queue.
//
// If the queue is at its high-water mark, Push first drops the oldest item
// in the lowest-priority non-empty class to make room, per spec: overload
// sheds low-priority backlog before dropping anything new or urgent.
func (q *PriorityQueue) Push(t Transmission) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}

	p := t.Frame.Priority
	if int(p) >= priorityCount {
		p = PriorityLow
	}

	if q.totalLen() >= q.highWater {
		q.dropFromLowestNonEmpty()
	}

	q.queues[p] = append(q.queues[p], t)
	q.notEmpty.Signal()
}

// totalLen returns the combined length of all sub-queues. Caller holds mu.
func (q *PriorityQueue) totalLen() int {
	total := 0
	for _, sub := range q.queues {
		total += len(sub)
	}
	return total
}

// dropFromLowestNonEmpty removes the oldest item from the lowest-priority
// (numerically highest Priority value) non-empty class. Caller holds mu.
func (q *PriorityQueue) dropFromLowestNonEmpty() {
	for p := priorityCount - 1; p >= 0; p-- {
		if len(q.queues[p]) > 0 {
			dropped := q.queues[p][0]
			q.queues[p] = q.queues[p][1:]
			q.drops[p].Add(1)
			if dropped.Result != nil {
				select {
				case dropped.Result <- ResultTimeout:
				default:
				}
			}
			return
		}
	}
}

// Pop blocks until a Transmission is available, then returns it following
// the weighted round-robin schedule. Returns ok=false if the queue is
// closed and drained.
func (q *PriorityQueue) Pop() (t Transmission, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for {
		if t, found := q.popRoundRobin(); found {
			return t, true
		}
		if q.closed {
			return Transmission{}, false
		}
		q.notEmpty.Wait()
	}
}

// popRoundRobin attempts one scheduling step across all classes, advancing
// the round-robin cursor. Caller holds mu. Returns found=false if every
// class is currently empty.
func (q *PriorityQueue) popRoundRobin() (Transmission, bool) {
	for attempts := 0; attempts < priorityCount; attempts++ {
		class := q.nextClass

		if q.creditLeft <= 0 || len(q.queues[class]) == 0 {
			q.advanceClass()
			continue
		}

		item := q.queues[class][0]
		q.queues[class] = q.queues[class][1:]
		q.creditLeft--
		if q.creditLeft <= 0 || len(q.queues[class]) == 0 {
			q.advanceClass()
		}
		return item, true
	}
	return Transmission{}, false
}

// advanceClass moves the cursor to the next class and resets its credit.
// A class with a zero distribution entry is skipped entirely.
func (q *PriorityQueue) advanceClass() {
	for i := 0; i < priorityCount; i++ {
		q.nextClass = (q.nextClass + 1) % priorityCount
		if q.distribution[q.nextClass] > 0 {
			q.creditLeft = q.distribution[q.nextClass]
			return
		}
	}
	// All distributions are zero; fall back to one credit so Pop still progresses.
	q.creditLeft = 1
}

// Close marks the queue closed and wakes any blocked Pop callers. Items
// already queued are still returned by subsequent Pop calls until drained.
func (q *PriorityQueue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.notEmpty.Broadcast()
}

// Len returns the total number of queued items across all classes.
func (q *PriorityQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.totalLen()
}

// QueueStats reports per-class depth and cumulative drop counts, for the
// monitor API's /status endpoint.
type QueueStats struct {
	Depth [priorityCount]int
	Drops [priorityCount]uint64
}

// Stats returns a snapshot of queue depth and drop counters per priority
// class (order: system, urgent, normal, low).
func (q *PriorityQueue) Stats() QueueStats {
	q.mu.Lock()
	var stats QueueStats
	for p := 0; p < priorityCount; p++ {
		stats.Depth[p] = len(q.queues[p])
	}
	q.mu.Unlock()

	for p := 0; p < priorityCount; p++ {
		stats.Drops[p] = q.drops[p].Load()
	}
	return stats
}
