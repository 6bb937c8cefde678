package game

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

const (
	EventBufferSize         = 1024                   // Circular buffer size
	BatchFlushSize          = 64                     // Events per batch write
	BatchFlushInterval      = 100 * time.Millisecond // How often to flush
	CharacterLimiterCleanup = 5 * time.Minute        // Cleanup interval for per-character limiters
)

// EventLogConfig bounds how fast events may be recorded
type EventLogConfig struct {
	MaxEventsPerSec          int // Global rate limit
	MaxEventsPerCharacterSec int // Per-character rate limit
}

// DefaultEventLogConfig returns the default event rate limits
func DefaultEventLogConfig() EventLogConfig {
	return EventLogConfig{
		MaxEventsPerSec:          10000,
		MaxEventsPerCharacterSec: 100,
	}
}

// EventLog provides bounded, rate-limited event logging with backpressure.
// Events are written as newline-delimited JSON.
type EventLog struct {
	// Circular buffer
	buffer    [EventBufferSize]Event
	writeHead uint64 // atomic - producer position
	readHead  uint64 // atomic - consumer position

	cfg               EventLogConfig
	globalLimiter     *rate.Limiter
	characterLimiters sync.Map // map[string]*limiterEntry

	// Async writer
	writerWg sync.WaitGroup
	stopChan chan struct{}
	stopOnce sync.Once
	running  atomic.Bool

	file   *os.File
	fileMu sync.Mutex

	droppedCount uint64 // atomic
	totalCount   uint64 // atomic
}

// limiterEntry tracks per-character rate limiting
type limiterEntry struct {
	limiter  *rate.Limiter
	lastUsed atomic.Int64 // unix nano
}

// NewEventLog creates a new bounded event log
func NewEventLog(cfg EventLogConfig) *EventLog {
	if cfg.MaxEventsPerSec <= 0 {
		cfg.MaxEventsPerSec = DefaultEventLogConfig().MaxEventsPerSec
	}
	if cfg.MaxEventsPerCharacterSec <= 0 {
		cfg.MaxEventsPerCharacterSec = DefaultEventLogConfig().MaxEventsPerCharacterSec
	}
	return &EventLog{
		cfg:           cfg,
		globalLimiter: rate.NewLimiter(rate.Limit(cfg.MaxEventsPerSec), burst(cfg.MaxEventsPerSec)),
		stopChan:      make(chan struct{}),
	}
}

// burst allows a tenth of a second worth of events at once
func burst(perSec int) int {
	if b := perSec / 10; b > 0 {
		return b
	}
	return 1
}

// Start begins the async writer goroutine. An empty path keeps events in
// memory only.
func (el *EventLog) Start(filePath string) error {
	if el.running.Load() {
		return nil
	}

	if filePath != "" {
		file, err := os.OpenFile(filePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return fmt.Errorf("open event log %s: %w", filePath, err)
		}
		el.file = file
	}

	el.running.Store(true)
	el.writerWg.Add(2)
	go el.writerLoop()
	go el.cleanupLoop()

	return nil
}

// Stop flushes pending events and closes the file
func (el *EventLog) Stop() {
	el.stopOnce.Do(func() {
		if !el.running.Load() {
			return
		}
		el.running.Store(false)
		close(el.stopChan)
		el.writerWg.Wait()

		el.fileMu.Lock()
		if el.file != nil {
			el.file.Close()
		}
		el.fileMu.Unlock()
	})
}

// Emit adds an event with rate limiting.
// Returns false if rate limited or the log is not running.
func (el *EventLog) Emit(event Event) bool {
	if !el.running.Load() {
		return false
	}

	if !el.globalLimiter.Allow() {
		atomic.AddUint64(&el.droppedCount, 1)
		return false
	}

	// Per-character limit keeps one spammy client from starving the rest
	if event.CharacterID != "" {
		if !el.characterLimiter(event.CharacterID).Allow() {
			atomic.AddUint64(&el.droppedCount, 1)
			return false
		}
	}

	head := atomic.AddUint64(&el.writeHead, 1)
	tail := atomic.LoadUint64(&el.readHead)

	// Buffer full: drop the oldest event
	if head-tail >= EventBufferSize {
		atomic.AddUint64(&el.readHead, 1)
		atomic.AddUint64(&el.droppedCount, 1)
	}

	event.Sequence = head
	el.buffer[head%EventBufferSize] = event

	atomic.AddUint64(&el.totalCount, 1)
	return true
}

// EmitSimple builds and emits an event
func (el *EventLog) EmitSimple(eventType EventType, tickNum uint64, characterID string, payload interface{}) bool {
	if !el.running.Load() {
		return false
	}
	return el.Emit(NewEvent(eventType, tickNum, characterID, payload))
}

func (el *EventLog) characterLimiter(id string) *rate.Limiter {
	now := time.Now().UnixNano()
	if v, ok := el.characterLimiters.Load(id); ok {
		e := v.(*limiterEntry)
		e.lastUsed.Store(now)
		return e.limiter
	}

	perSec := el.cfg.MaxEventsPerCharacterSec
	entry := &limiterEntry{limiter: rate.NewLimiter(rate.Limit(perSec), burst(perSec))}
	entry.lastUsed.Store(now)
	actual, _ := el.characterLimiters.LoadOrStore(id, entry)
	return actual.(*limiterEntry).limiter
}

// writerLoop batches and writes events to disk asynchronously
func (el *EventLog) writerLoop() {
	defer el.writerWg.Done()

	ticker := time.NewTicker(BatchFlushInterval)
	defer ticker.Stop()

	batch := make([]Event, 0, BatchFlushSize)

	for {
		select {
		case <-el.stopChan:
			// Drain everything that is left
			for {
				batch = el.collectBatch(batch[:0])
				if len(batch) == 0 {
					return
				}
				el.flushBatch(batch)
			}
		case <-ticker.C:
			batch = el.collectBatch(batch[:0])
			if len(batch) > 0 {
				el.flushBatch(batch)
			}
		}
	}
}

// cleanupLoop removes stale limiters
func (el *EventLog) cleanupLoop() {
	defer el.writerWg.Done()

	ticker := time.NewTicker(CharacterLimiterCleanup)
	defer ticker.Stop()

	for {
		select {
		case <-el.stopChan:
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-CharacterLimiterCleanup).UnixNano()
			el.characterLimiters.Range(func(key, value interface{}) bool {
				if value.(*limiterEntry).lastUsed.Load() < cutoff {
					el.characterLimiters.Delete(key)
				}
				return true
			})
		}
	}
}

// collectBatch reads available events from the circular buffer
func (el *EventLog) collectBatch(batch []Event) []Event {
	head := atomic.LoadUint64(&el.writeHead)
	tail := atomic.LoadUint64(&el.readHead)

	for i := tail + 1; i <= head && len(batch) < BatchFlushSize; i++ {
		batch = append(batch, el.buffer[i%EventBufferSize])
	}

	if len(batch) > 0 {
		atomic.AddUint64(&el.readHead, uint64(len(batch)))
	}
	return batch
}

// flushBatch appends events to the file, one JSON object per line
func (el *EventLog) flushBatch(batch []Event) {
	el.fileMu.Lock()
	defer el.fileMu.Unlock()

	if el.file == nil {
		return
	}

	for _, event := range batch {
		data, err := json.Marshal(event)
		if err != nil {
			continue
		}
		el.file.Write(append(data, '\n'))
	}
}

// EventLogStats is a point-in-time view of the log counters
type EventLogStats struct {
	Total   uint64 `json:"total"`
	Dropped uint64 `json:"dropped"`
	Pending uint64 `json:"pending"`
	Running bool   `json:"running"`
}

// Stats returns counters for monitoring
func (el *EventLog) Stats() EventLogStats {
	head := atomic.LoadUint64(&el.writeHead)
	tail := atomic.LoadUint64(&el.readHead)

	return EventLogStats{
		Total:   atomic.LoadUint64(&el.totalCount),
		Dropped: atomic.LoadUint64(&el.droppedCount),
		Pending: head - tail,
		Running: el.running.Load(),
	}
}
