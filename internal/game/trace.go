package game

// TraceSample is one recorded point of a character's history
type TraceSample struct {
	Time     float64 `json:"t"`
	Position Vec2    `json:"position"`
	Velocity Vec2    `json:"velocity"`
	HP       int     `json:"hp"`
	State    string  `json:"state"`
}

// Trace is a fixed-capacity ring buffer of samples.
// Old samples are overwritten once it is full.
type Trace struct {
	samples    []TraceSample
	writeIndex int
	count      int
}

// NewTrace creates a trace holding up to capacity samples
func NewTrace(capacity int) *Trace {
	if capacity <= 0 {
		capacity = DefaultLimits.TraceLength
	}
	return &Trace{samples: make([]TraceSample, capacity)}
}

// Add records a sample
func (t *Trace) Add(s TraceSample) {
	t.samples[t.writeIndex] = s
	t.writeIndex = (t.writeIndex + 1) % len(t.samples)
	if t.count < len(t.samples) {
		t.count++
	}
}

// Len returns the number of valid samples
func (t *Trace) Len() int {
	return t.count
}

// Samples returns all valid samples in order (oldest first)
func (t *Trace) Samples() []TraceSample {
	if t.count == 0 {
		return nil
	}

	result := make([]TraceSample, t.count)
	start := t.writeIndex - t.count
	if start < 0 {
		start += len(t.samples)
	}
	for i := 0; i < t.count; i++ {
		result[i] = t.samples[(start+i)%len(t.samples)]
	}
	return result
}
