package tracker

// Stats accumulates named counters over one tracking pass. It is not safe
// for concurrent use; a pass is single-threaded.
type Stats struct {
	counts map[string]int
}

// NewStats returns an empty counter set.
func NewStats() *Stats {
	return &Stats{counts: make(map[string]int)}
}

// Inc increments the named counter by one.
func (s *Stats) Inc(key string) {
	s.counts[key]++
}

// Add increments the named counter by n.
func (s *Stats) Add(key string, n int) {
	s.counts[key] += n
}

// Get returns the value of the named counter (0 when never incremented).
func (s *Stats) Get(key string) int {
	return s.counts[key]
}

// Counts returns the counter map for summary logging and assertions.
func (s *Stats) Counts() map[string]int {
	return s.counts
}
