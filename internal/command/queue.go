package command

import (
	"errors"
	"hash/fnv"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/volanre/jollyred/internal/game"
)

// CommandQueue provides a non-blocking queue for client commands with worker
// pool processing. Commands are sharded by client so each client's commands
// run in the order they arrived.
type CommandQueue struct {
	shards   []chan Command
	handler  *Handler
	wg       sync.WaitGroup
	running  atomic.Bool
	stopChan chan struct{}

	// Optional hook for every processed command, for metrics
	OnProcessed func(cmd Command, accepted bool, err error)

	// Metrics
	enqueued    atomic.Uint64
	processed   atomic.Uint64
	dropped     atomic.Uint64
	failed      atomic.Uint64
	avgWaitTime atomic.Int64 // nanoseconds, exponential moving average
}

// QueueConfig holds configuration for the command queue
type QueueConfig struct {
	BufferSize int // Commands buffered per worker (default: 64)
	Workers    int // Number of worker goroutines (default: 4)
}

// DefaultQueueConfig returns sensible defaults for production
func DefaultQueueConfig() QueueConfig {
	return QueueConfig{
		BufferSize: 64,
		Workers:    4,
	}
}

// NewCommandQueue creates a new command queue with worker pool
func NewCommandQueue(handler *Handler, config QueueConfig) *CommandQueue {
	def := DefaultQueueConfig()
	if config.BufferSize <= 0 {
		config.BufferSize = def.BufferSize
	}
	if config.Workers <= 0 {
		config.Workers = def.Workers
	}

	shards := make([]chan Command, config.Workers)
	for i := range shards {
		shards[i] = make(chan Command, config.BufferSize)
	}

	return &CommandQueue{
		shards:   shards,
		handler:  handler,
		stopChan: make(chan struct{}),
	}
}

// Start launches the worker pool
func (q *CommandQueue) Start() {
	if q.running.Swap(true) {
		return // Already running
	}

	log.Printf("🚀 CommandQueue starting with %d workers, buffer size %d", len(q.shards), cap(q.shards[0]))

	for i := range q.shards {
		q.wg.Add(1)
		go q.worker(q.shards[i])
	}
}

// Stop shuts down the queue after draining what is already buffered
func (q *CommandQueue) Stop() {
	if !q.running.Swap(false) {
		return // Not running
	}

	close(q.stopChan)
	q.wg.Wait()
	q.handler.Close()

	log.Printf("📊 CommandQueue stopped - enqueued: %d, processed: %d, dropped: %d",
		q.enqueued.Load(), q.processed.Load(), q.dropped.Load())
}

// Enqueue adds a command to its client's shard (non-blocking).
// Returns false if the shard is full or the queue is stopped.
func (q *CommandQueue) Enqueue(cmd Command) bool {
	if !q.running.Load() {
		return false
	}
	cmd.ReceivedAt = time.Now()

	select {
	case q.shardFor(cmd.ClientID) <- cmd:
		q.enqueued.Add(1)
		return true
	default:
		// Shard full - drop command to prevent backpressure
		dropped := q.dropped.Add(1)
		if dropped%100 == 1 {
			log.Printf("⚠️ CommandQueue full, dropped command from %s (total dropped: %d)",
				cmd.ClientID, dropped)
		}
		return false
	}
}

func (q *CommandQueue) shardFor(clientID string) chan Command {
	h := fnv.New32a()
	h.Write([]byte(clientID))
	return q.shards[h.Sum32()%uint32(len(q.shards))]
}

// worker processes commands from one shard
func (q *CommandQueue) worker(shard chan Command) {
	defer q.wg.Done()

	for {
		select {
		case <-q.stopChan:
			for {
				select {
				case cmd := <-shard:
					q.process(cmd)
				default:
					return
				}
			}
		case cmd := <-shard:
			q.process(cmd)
		}
	}
}

func (q *CommandQueue) process(cmd Command) {
	waitTime := time.Since(cmd.ReceivedAt)
	q.updateAvgWaitTime(waitTime)

	if waitTime > 100*time.Millisecond {
		log.Printf("⚠️ Command from %s waited %.1fms in queue",
			cmd.ClientID, float64(waitTime.Microseconds())/1000)
	}

	accepted, err := q.handler.ProcessCommand(cmd)
	if err != nil {
		q.failed.Add(1)
		if !errors.Is(err, ErrRateLimited) && !errors.Is(err, game.ErrUnknownInput) {
			log.Printf("⚠️ Command %q from %s failed: %v", cmd.Name, cmd.ClientID, err)
		}
	}
	q.processed.Add(1)

	if q.OnProcessed != nil {
		q.OnProcessed(cmd, accepted, err)
	}
}

// updateAvgWaitTime updates exponential moving average
func (q *CommandQueue) updateAvgWaitTime(waitTime time.Duration) {
	current := q.avgWaitTime.Load()
	// EMA with alpha = 0.1
	newAvg := (current*9 + waitTime.Nanoseconds()) / 10
	q.avgWaitTime.Store(newAvg)
}

// Stats returns current queue statistics
func (q *CommandQueue) Stats() QueueStats {
	var pending, capacity int
	for _, s := range q.shards {
		pending += len(s)
		capacity += cap(s)
	}
	return QueueStats{
		Enqueued:       q.enqueued.Load(),
		Processed:      q.processed.Load(),
		Dropped:        q.dropped.Load(),
		Failed:         q.failed.Load(),
		Pending:        uint64(pending),
		BufferSize:     uint64(capacity),
		AvgWaitTimeMs:  float64(q.avgWaitTime.Load()) / 1e6,
		BufferUsagePct: float64(pending) / float64(capacity) * 100,
	}
}

// QueueStats holds queue metrics
type QueueStats struct {
	Enqueued       uint64  `json:"enqueued"`
	Processed      uint64  `json:"processed"`
	Dropped        uint64  `json:"dropped"`
	Failed         uint64  `json:"failed"`
	Pending        uint64  `json:"pending"`
	BufferSize     uint64  `json:"buffer_size"`
	AvgWaitTimeMs  float64 `json:"avg_wait_time_ms"`
	BufferUsagePct float64 `json:"buffer_usage_pct"`
}
