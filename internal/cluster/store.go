package cluster

import (
	"slices"
	"strings"
	"sync"
)

// Store holds the latest snapshot per cluster. Reads never block each other
// and never see a partially written snapshot.
type Store struct {
	mu        sync.RWMutex
	snapshots map[string]*Snapshot
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{snapshots: make(map[string]*Snapshot)}
}

// Get returns the current snapshot for cluster, or false if none has been
// stored yet.
func (s *Store) Get(cluster string) (*Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.snapshots[cluster]
	return snap, ok
}

// GetAll returns every stored snapshot ordered by cluster name.
func (s *Store) GetAll() []*Snapshot {
	s.mu.RLock()
	out := make([]*Snapshot, 0, len(s.snapshots))
	for _, snap := range s.snapshots {
		out = append(out, snap)
	}
	s.mu.RUnlock()

	slices.SortFunc(out, func(a, b *Snapshot) int {
		return strings.Compare(a.Cluster, b.Cluster)
	})
	return out
}

// Put stores snap unless the cluster already has a snapshot with a higher
// sequence number. It reports whether snap was stored.
func (s *Store) Put(snap *Snapshot) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cur, ok := s.snapshots[snap.Cluster]; ok && snap.Seq < cur.Seq {
		return false
	}
	s.snapshots[snap.Cluster] = snap
	return true
}
