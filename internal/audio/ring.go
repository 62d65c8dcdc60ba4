package audio

import (
	"sync"
	"time"
)

// Ring stores the audio state of one session: a fixed-capacity rolling buffer
// holding the most recent samples of the whole session, and an unbounded
// segment buffer accumulating samples since the last finalized segment.
// Both buffers receive every appended sample.
//
// The Ring owns the session's buffer critical section: the inbound frame
// receiver and the evaluation loop both go through the mutex here, so neither
// can observe a torn append.
type Ring struct {
	capacity   int // rolling buffer capacity in samples
	sampleRate int

	// Rolling buffer (circular)
	rolling []float32
	pos     int
	full    bool

	// Segment buffer (grows until ClearSegment)
	segment []float32

	// Statistics
	totalSamples uint64
	lastAppend   time.Time

	mu sync.RWMutex
}

// RingStats represents buffer statistics for monitoring.
type RingStats struct {
	RollingSamples int     `json:"rolling_samples"`
	SegmentSamples int     `json:"segment_samples"`
	TotalSamples   uint64  `json:"total_samples"`
	RollingSeconds float64 `json:"rolling_seconds"`
	SegmentSeconds float64 `json:"segment_seconds"`
}

// NewRing creates a ring buffer holding at most capacitySeconds of audio at
// the given sample rate.
func NewRing(capacitySeconds float64, sampleRate int) *Ring {
	capacity := int(capacitySeconds * float64(sampleRate))
	if capacity < 1 {
		capacity = sampleRate
	}
	return &Ring{
		capacity:   capacity,
		sampleRate: sampleRate,
		rolling:    make([]float32, capacity),
		segment:    make([]float32, 0, sampleRate*4),
	}
}

// Append adds normalized float samples to both the rolling buffer (dropping
// the oldest samples on overflow) and the segment buffer.
func (r *Ring) Append(samples []float32) {
	if len(samples) == 0 {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, s := range samples {
		r.rolling[r.pos] = s
		r.pos++
		if r.pos >= r.capacity {
			r.pos = 0
			r.full = true
		}
	}

	r.segment = append(r.segment, samples...)
	r.totalSamples += uint64(len(samples))
	r.lastAppend = time.Now()
}

// SnapshotTail returns a copy of the most recent n samples from the segment
// buffer. If fewer than n samples are available, the result is shorter.
func (r *Ring) SnapshotTail(n int) []float32 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if n > len(r.segment) {
		n = len(r.segment)
	}
	if n <= 0 {
		return nil
	}

	out := make([]float32, n)
	copy(out, r.segment[len(r.segment)-n:])
	return out
}

// SnapshotSegment returns a copy of the full segment buffer.
func (r *Ring) SnapshotSegment() []float32 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.segment) == 0 {
		return nil
	}
	out := make([]float32, len(r.segment))
	copy(out, r.segment)
	return out
}

// SnapshotRolling returns a copy of the rolling buffer contents in
// chronological order (oldest first).
func (r *Ring) SnapshotRolling() []float32 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if !r.full {
		out := make([]float32, r.pos)
		copy(out, r.rolling[:r.pos])
		return out
	}

	out := make([]float32, r.capacity)
	n := copy(out, r.rolling[r.pos:])
	copy(out[n:], r.rolling[:r.pos])
	return out
}

// ClearSegment empties the segment buffer. The rolling buffer is untouched.
func (r *Ring) ClearSegment() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.segment = r.segment[:0]
}

// SegmentLen returns the number of samples in the segment buffer.
func (r *Ring) SegmentLen() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.segment)
}

// RollingLen returns the number of samples currently held in the rolling buffer.
func (r *Ring) RollingLen() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.full {
		return r.capacity
	}
	return r.pos
}

// Capacity returns the rolling buffer capacity in samples.
func (r *Ring) Capacity() int {
	return r.capacity
}

// SegmentDuration returns the duration of audio in the segment buffer.
func (r *Ring) SegmentDuration() time.Duration {
	return time.Duration(float64(r.SegmentLen()) / float64(r.sampleRate) * float64(time.Second))
}

// RollingDuration returns the duration of audio in the rolling buffer.
func (r *Ring) RollingDuration() time.Duration {
	return time.Duration(float64(r.RollingLen()) / float64(r.sampleRate) * float64(time.Second))
}

// LastAppend returns the time of the most recent append.
func (r *Ring) LastAppend() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lastAppend
}

// GetStats returns current buffer statistics.
func (r *Ring) GetStats() RingStats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rolling := r.pos
	if r.full {
		rolling = r.capacity
	}

	return RingStats{
		RollingSamples: rolling,
		SegmentSamples: len(r.segment),
		TotalSamples:   r.totalSamples,
		RollingSeconds: float64(rolling) / float64(r.sampleRate),
		SegmentSeconds: float64(len(r.segment)) / float64(r.sampleRate),
	}
}
