package gcodedriver

import (
	"sync"
	"time"
)

// responseQueue is an unbounded FIFO of response lines with a single
// producer (the read loop) and a single waiting consumer.
type responseQueue struct {
	mx     sync.Mutex
	lines  []string
	err    error
	notify chan struct{}
}

func newResponseQueue() *responseQueue {
	return &responseQueue{notify: make(chan struct{}, 1)}
}

func (q *responseQueue) signal() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

func (q *responseQueue) push(line string) {
	q.mx.Lock()
	q.lines = append(q.lines, line)
	q.mx.Unlock()
	q.signal()
}

// close makes take return err once the queue is empty. Only the first
// error is kept.
func (q *responseQueue) close(err error) {
	q.mx.Lock()
	if q.err == nil {
		q.err = err
	}
	q.mx.Unlock()
	q.signal()
}

// drain removes and returns every queued line without blocking.
func (q *responseQueue) drain() []string {
	q.mx.Lock()
	defer q.mx.Unlock()
	lines := q.lines
	q.lines = nil
	return lines
}

// take waits up to timeout for the next line; a negative timeout waits
// forever. ok is false if the timeout expired.
func (q *responseQueue) take(timeout time.Duration) (line string, ok bool, err error) {
	var expire <-chan time.Time
	if timeout >= 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		expire = t.C
	}

	for {
		q.mx.Lock()
		if len(q.lines) > 0 {
			line = q.lines[0]
			q.lines = q.lines[1:]
			q.mx.Unlock()
			return line, true, nil
		}
		err = q.err
		q.mx.Unlock()
		if err != nil {
			return "", false, err
		}

		select {
		case <-q.notify:
		case <-expire:
			return "", false, nil
		}
	}
}
