package round

// rotation is the FIFO turn order. Entrants are rotated, never re-sorted.
type rotation struct {
	items []Entrant
}

func (r *rotation) push(e Entrant) { r.items = append(r.items, e) }

func (r *rotation) pop() (Entrant, bool) {
	if len(r.items) == 0 {
		return nil, false
	}
	e := r.items[0]
	r.items[0] = nil
	r.items = r.items[1:]
	return e, true
}

func (r *rotation) dropBack() {
	if n := len(r.items); n > 0 {
		r.items[n-1] = nil
		r.items = r.items[:n-1]
	}
}

func (r *rotation) len() int { return len(r.items) }

func (r *rotation) ids() []int32 {
	out := make([]int32, len(r.items))
	for i, e := range r.items {
		out[i] = e.PlayerID()
	}
	return out
}
