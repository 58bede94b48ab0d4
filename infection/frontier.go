package infection

// frontier is a FIFO queue of user IDs awaiting expansion.
type frontier struct {
	ids  []int64
	head int
}

func newFrontier(ids ...int64) *frontier {
	return &frontier{ids: append([]int64(nil), ids...)}
}

func (f *frontier) push(ids ...int64) {
	// Reclaim the consumed prefix once it dominates the backing array.
	if f.head > 0 && f.head >= len(f.ids)/2 {
		n := copy(f.ids, f.ids[f.head:])
		f.ids = f.ids[:n]
		f.head = 0
	}
	f.ids = append(f.ids, ids...)
}

// popN removes and returns up to n IDs from the front of the queue.
func (f *frontier) popN(n int) []int64 {
	if remaining := len(f.ids) - f.head; n > remaining {
		n = remaining
	}
	out := make([]int64, n)
	copy(out, f.ids[f.head:f.head+n])
	f.head += n
	return out
}

func (f *frontier) len() int {
	return len(f.ids) - f.head
}

func (f *frontier) empty() bool {
	return f.len() == 0
}
