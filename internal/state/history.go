package state

// DefaultHistoryCapacity is the number of vectors an entity retains.
const DefaultHistoryCapacity = 90

// #region history
// History is an append-only ring of vectors. Once full, each append evicts
// the oldest entry. History is not safe for concurrent use; the registry
// serializes access per entity.
type History struct {
	buf   []Vector
	start int
	n     int
}

// NewHistory creates an empty history holding at most capacity vectors.
// A non-positive capacity uses DefaultHistoryCapacity.
func NewHistory(capacity int) *History {
	if capacity <= 0 {
		capacity = DefaultHistoryCapacity
	}
	return &History{buf: make([]Vector, capacity)}
}

// Append records v, evicting the oldest vector when at capacity.
func (h *History) Append(v Vector) {
	if h.n < len(h.buf) {
		h.buf[(h.start+h.n)%len(h.buf)] = v
		h.n++
		return
	}
	h.buf[h.start] = v
	h.start = (h.start + 1) % len(h.buf)
}

// Len returns the number of retained vectors.
func (h *History) Len() int { return h.n }

// Cap returns the capacity.
func (h *History) Cap() int { return len(h.buf) }

// Current returns the most recent vector.
func (h *History) Current() (Vector, bool) {
	if h.n == 0 {
		return Vector{}, false
	}
	return h.at(h.n - 1), true
}

// Oldest returns the earliest retained vector.
func (h *History) Oldest() (Vector, bool) {
	if h.n == 0 {
		return Vector{}, false
	}
	return h.at(0), true
}

// Slice copies the retained vectors, oldest first.
func (h *History) Slice() []Vector {
	return h.Window(h.n)
}

// Window copies the most recent n vectors, oldest first.
func (h *History) Window(n int) []Vector {
	if n > h.n {
		n = h.n
	}
	if n <= 0 {
		return nil
	}
	out := make([]Vector, n)
	for i := 0; i < n; i++ {
		out[i] = h.at(h.n - n + i)
	}
	return out
}

func (h *History) at(i int) Vector {
	return h.buf[(h.start+i)%len(h.buf)]
}

// #endregion history
