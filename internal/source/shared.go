package source

import "sync"

// SharedReceiver lets multiple workers pull FileEntry values from one
// LazySource without racing each other, per spec.md §4.5 "streaming
// mode" and §5's "mutex guarding the shared lazy-source receiver".
type SharedReceiver struct {
	mu sync.Mutex
	ls *LazySource
}

// NewSharedReceiver wraps ls for concurrent pulls.
func NewSharedReceiver(ls *LazySource) *SharedReceiver {
	return &SharedReceiver{ls: ls}
}

// Next returns the next entry and true, or the zero value and false
// once the source is exhausted.
func (s *SharedReceiver) Next() (FileEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := <-s.ls.Entries()
	return entry, ok
}
