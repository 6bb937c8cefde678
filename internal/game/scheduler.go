package game

import "container/heap"

// TaskHandle identifies a scheduled task. The zero handle is never issued.
type TaskHandle uint64

// Scheduler runs deferred callbacks on the caller's goroutine.
// Time only moves when Advance is called, so tasks fire inside a tick and
// never race the rest of the character state.
type Scheduler struct {
	now     float64
	nextID  uint64
	queue   taskQueue
	pending map[TaskHandle]*task
}

type task struct {
	handle TaskHandle
	due    float64
	seq    uint64
	fn     func()
	index  int
}

// NewScheduler creates an empty scheduler at time zero
func NewScheduler() *Scheduler {
	return &Scheduler{
		pending: make(map[TaskHandle]*task),
	}
}

// Now returns the scheduler clock in seconds
func (s *Scheduler) Now() float64 {
	return s.now
}

// Schedule runs fn once delay seconds have been advanced.
// A non-positive delay fires on the next Advance.
func (s *Scheduler) Schedule(delay float64, fn func()) TaskHandle {
	if delay < 0 {
		delay = 0
	}
	s.nextID++
	t := &task{
		handle: TaskHandle(s.nextID),
		due:    s.now + delay,
		seq:    s.nextID,
		fn:     fn,
	}
	heap.Push(&s.queue, t)
	s.pending[t.handle] = t
	return t.handle
}

// Cancel removes a pending task. Returns false if it already ran or was cancelled.
func (s *Scheduler) Cancel(h TaskHandle) bool {
	t, ok := s.pending[h]
	if !ok {
		return false
	}
	heap.Remove(&s.queue, t.index)
	delete(s.pending, h)
	return true
}

// Pending reports whether h is still waiting to run
func (s *Scheduler) Pending(h TaskHandle) bool {
	_, ok := s.pending[h]
	return ok
}

// Len returns the number of pending tasks
func (s *Scheduler) Len() int {
	return len(s.pending)
}

// Advance moves the clock forward by dt and runs every task that became due,
// earliest first, ties in scheduling order. Tasks scheduled by a running task
// also fire in this call if they are already due.
func (s *Scheduler) Advance(dt float64) {
	if dt > 0 {
		s.now += dt
	}
	for s.queue.Len() > 0 {
		next := s.queue[0]
		if next.due > s.now {
			return
		}
		heap.Pop(&s.queue)
		delete(s.pending, next.handle)
		next.fn()
	}
}

// taskQueue is a min-heap on (due, seq)
type taskQueue []*task

func (q taskQueue) Len() int { return len(q) }

func (q taskQueue) Less(i, j int) bool {
	if q[i].due != q[j].due {
		return q[i].due < q[j].due
	}
	return q[i].seq < q[j].seq
}

func (q taskQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *taskQueue) Push(x any) {
	t := x.(*task)
	t.index = len(*q)
	*q = append(*q, t)
}

func (q *taskQueue) Pop() any {
	old := *q
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.index = -1
	*q = old[:n-1]
	return t
}
