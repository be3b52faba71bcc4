package pool

// handleQueue is a FIFO ring of released handles.
type handleQueue struct {
	slice []Handle
	start int
	n     int
}

func (q *handleQueue) Len() int {
	return q.n
}

func (q *handleQueue) index(i int) int {
	i += q.start
	if i >= len(q.slice) {
		i -= len(q.slice)
	}
	return i
}

func (q *handleQueue) PushBack(h Handle) {
	if q.n == len(q.slice) {
		grown := make([]Handle, max(16, 2*len(q.slice)))
		for i := 0; i < q.n; i++ {
			grown[i] = q.slice[q.index(i)]
		}
		q.slice = grown
		q.start = 0
	}
	q.slice[q.index(q.n)] = h
	q.n++
}

// PopFront removes and returns the oldest handle.
func (q *handleQueue) PopFront() (Handle, bool) {
	if q.n == 0 {
		return 0, false
	}
	h := q.slice[q.start]
	q.start = q.index(1)
	q.n--
	if q.n == 0 {
		q.start = 0
	}
	return h, true
}

// Remove deletes h wherever it sits, keeping the order of the rest.
func (q *handleQueue) Remove(h Handle) bool {
	for i := 0; i < q.n; i++ {
		if q.slice[q.index(i)] != h {
			continue
		}
		for j := i; j < q.n-1; j++ {
			q.slice[q.index(j)] = q.slice[q.index(j+1)]
		}
		q.n--
		if q.n == 0 {
			q.start = 0
		}
		return true
	}
	return false
}

func (q *handleQueue) Reset() {
	q.slice = nil
	q.start = 0
	q.n = 0
}
