package state

import "github.com/jobscope/jobscope/internal/frame"

// ring is a fixed-size circular buffer of frames, oldest evicted first.
type ring struct {
	data  []*frame.Frame
	head  int
	count int
	size  int
}

func newRing(size int) *ring {
	return &ring{
		data: make([]*frame.Frame, size),
		size: size,
	}
}

// push adds a frame, evicting the oldest when full.
func (r *ring) push(f *frame.Frame) {
	r.data[r.head] = f
	r.head = (r.head + 1) % r.size
	if r.count < r.size {
		r.count++
	}
}

// all returns the stored frames in chronological order (oldest first).
func (r *ring) all() []*frame.Frame {
	if r.count == 0 {
		return nil
	}

	result := make([]*frame.Frame, r.count)

	// head points to the next write position, so the oldest value sits
	// count slots behind it.
	start := (r.head - r.count + r.size) % r.size
	for i := 0; i < r.count; i++ {
		result[i] = r.data[(start+i)%r.size]
	}

	return result
}

func (r *ring) len() int {
	return r.count
}
