package overlay

// scheduler is the per-binding inbound queue between host signals and
// resync passes. Any number of signals for one binding between two frames
// collapse into a single entry, and a frame is requested from the host only
// once per pending batch.
type scheduler struct {
	pending   map[string]struct{}
	order     []string
	requested bool
}

func newScheduler() *scheduler {
	return &scheduler{pending: make(map[string]struct{})}
}

// add queues id. It reports whether the caller must request a frame.
func (s *scheduler) add(id string) bool {
	if _, ok := s.pending[id]; !ok {
		s.pending[id] = struct{}{}
		s.order = append(s.order, id)
	}
	if s.requested {
		return false
	}
	s.requested = true
	return true
}

// cancel drops a queued id. The frame, if requested, still fires and finds
// nothing to do for it.
func (s *scheduler) cancel(id string) {
	if _, ok := s.pending[id]; !ok {
		return
	}
	delete(s.pending, id)
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i:i], s.order[i+1:]...)
			break
		}
	}
}

// drain returns queued ids in arrival order and resets the queue.
func (s *scheduler) drain() []string {
	ids := s.order
	s.order = nil
	s.pending = make(map[string]struct{})
	s.requested = false
	return ids
}

func (s *scheduler) reset() {
	s.drain()
}

func (s *scheduler) len() int {
	return len(s.order)
}
