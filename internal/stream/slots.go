package stream

import (
	"sync"

	"golang.org/x/sync/semaphore"
)

// defaultMaxStreams caps open streams across all clients.
const defaultMaxStreams = 1000

// slots bounds open streams per client IP and in total.
type slots struct {
	total *semaphore.Weighted
	perIP int

	mu   sync.Mutex
	open map[string]int
}

func newSlots(perIP, total int) *slots {
	if perIP <= 0 {
		perIP = 1
	}
	if total <= 0 {
		total = defaultMaxStreams
	}
	return &slots{
		total: semaphore.NewWeighted(int64(total)),
		perIP: perIP,
		open:  make(map[string]int),
	}
}

// take reserves a slot for ip. ok is false when the client or the server
// is at its limit. release may be called more than once.
func (s *slots) take(ip string) (release func(), ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.open[ip] >= s.perIP || !s.total.TryAcquire(1) {
		return nil, false
	}
	s.open[ip]++

	var once sync.Once
	return func() { once.Do(func() { s.give(ip) }) }, true
}

func (s *slots) give(ip string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.open[ip]--
	if s.open[ip] <= 0 {
		delete(s.open, ip)
	}
	s.total.Release(1)
}

// inUse returns the open streams for ip.
func (s *slots) inUse(ip string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open[ip]
}
