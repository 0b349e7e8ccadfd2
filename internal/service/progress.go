package service

import "sync"

// progress tracks finished batches and reports the highest index below which every batch is
// finished. Batches finish out of order when several workers run.
type progress struct {
	mu   sync.Mutex
	last int
	done map[int]struct{}
}

func newProgress(last int) *progress {
	return &progress{last: last, done: make(map[int]struct{})}
}

// finish marks index as finished and returns the new watermark and whether it moved.
func (p *progress) finish(index int) (int, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.done[index] = struct{}{}
	moved := false
	for {
		if _, ok := p.done[p.last+1]; !ok {
			break
		}
		delete(p.done, p.last+1)
		p.last++
		moved = true
	}
	return p.last, moved
}
