package socketio

import "sync"

// sessionQueues runs jobs one at a time per key, in the order they were
// pushed. A key has an entry only while its jobs are draining.
type sessionQueues struct {
	mu      sync.Mutex
	pending map[string][]func()
}

func newSessionQueues() *sessionQueues {
	return &sessionQueues{pending: map[string][]func(){}}
}

// push appends job to the queue of key. It reports whether the caller must
// start draining key.
func (q *sessionQueues) push(key string, job func()) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, draining := q.pending[key]
	q.pending[key] = append(q.pending[key], job)
	return !draining
}

// drain runs the jobs of key until its queue is empty.
func (q *sessionQueues) drain(key string) {
	for {
		q.mu.Lock()
		jobs := q.pending[key]
		if len(jobs) == 0 {
			delete(q.pending, key)
			q.mu.Unlock()
			return
		}
		job := jobs[0]
		jobs[0] = nil
		q.pending[key] = jobs[1:]
		q.mu.Unlock()

		job()
	}
}

func (q *sessionQueues) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}
