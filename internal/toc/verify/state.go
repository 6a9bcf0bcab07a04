package verify

import "sync"

// itemState tracks one TOCItem's verification outcome. Fields are
// unexported and guarded by mu; goroutines write through the accessor
// methods while the final pass reads results back by list_index,
// mirroring the per-unit state struct used elsewhere in the pack for
// bounded concurrent work (mutex-guarded fields, accessor methods,
// write-back keyed by a stable index rather than arrival order).
type itemState struct {
	mu sync.Mutex

	checked       bool
	passed        bool
	appearStart   bool
	physicalIndex int
}

func (s *itemState) set(passed, appearStart bool, physicalIndex int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checked = true
	s.passed = passed
	s.appearStart = appearStart
	s.physicalIndex = physicalIndex
}

func (s *itemState) get() (checked, passed, appearStart bool, physicalIndex int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.checked, s.passed, s.appearStart, s.physicalIndex
}
