package fleet

import (
	"sync"
	"time"

	"nathanbeddoewebdev/mcfleet/internal/domain"
)

// StateChange is published for every phase transition.
type StateChange struct {
	Identity domain.ServerIdentity `json:"identity"`
	From     domain.Phase          `json:"from"`
	To       domain.Phase          `json:"to"`
	Reason   string                `json:"reason"`
	At       time.Time             `json:"at"`
	State    domain.ServerState    `json:"state"`
}

// notifier fans state changes out to subscribers. Publishing never
// blocks: each subscriber has its own unbounded queue drained by a pump
// goroutine, so a slow consumer cannot stall a state machine.
type notifier struct {
	mu     sync.Mutex
	subs   map[int]*subscription
	nextID int
	closed bool
}

type subscription struct {
	out  chan StateChange
	done chan struct{}

	mu     sync.Mutex
	cond   *sync.Cond
	queue  []StateChange
	closed bool
}

func newNotifier() *notifier {
	return &notifier{subs: make(map[int]*subscription)}
}

func (n *notifier) subscribe() (<-chan StateChange, func()) {
	sub := &subscription{
		out:  make(chan StateChange),
		done: make(chan struct{}),
	}
	sub.cond = sync.NewCond(&sub.mu)

	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		close(sub.out)
		return sub.out, func() {}
	}
	id := n.nextID
	n.nextID++
	n.subs[id] = sub
	n.mu.Unlock()

	go sub.pump()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			n.mu.Lock()
			delete(n.subs, id)
			n.mu.Unlock()
			sub.close()
		})
	}
	return sub.out, cancel
}

func (n *notifier) publish(change StateChange) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, sub := range n.subs {
		sub.push(change)
	}
}

func (n *notifier) close() {
	n.mu.Lock()
	subs := n.subs
	n.subs = make(map[int]*subscription)
	n.closed = true
	n.mu.Unlock()

	for _, sub := range subs {
		sub.close()
	}
}

func (s *subscription) push(change StateChange) {
	s.mu.Lock()
	if !s.closed {
		s.queue = append(s.queue, change)
		s.cond.Signal()
	}
	s.mu.Unlock()
}

func (s *subscription) close() {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.done)
		s.cond.Signal()
	}
	s.mu.Unlock()
}

func (s *subscription) pump() {
	defer close(s.out)
	for {
		s.mu.Lock()
		for len(s.queue) == 0 && !s.closed {
			s.cond.Wait()
		}
		if s.closed {
			s.mu.Unlock()
			return
		}
		change := s.queue[0]
		s.queue = s.queue[1:]
		s.mu.Unlock()

		select {
		case s.out <- change:
		case <-s.done:
			return
		}
	}
}
