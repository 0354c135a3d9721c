package service

import "sync"

// AssociationLocks serializes mutating operations per association. Different
// associations proceed in parallel; record, reconcile and payout transitions
// on the same association never interleave.
type AssociationLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewAssociationLocks creates an empty lock table. One table is shared by
// every service touching the same store.
func NewAssociationLocks() *AssociationLocks {
	return &AssociationLocks{locks: make(map[string]*sync.Mutex)}
}

// Lock acquires the association's mutex and returns the unlock function.
//
//	defer locks.Lock(associationID)()
func (a *AssociationLocks) Lock(associationID string) func() {
	a.mu.Lock()
	m, ok := a.locks[associationID]
	if !ok {
		m = &sync.Mutex{}
		a.locks[associationID] = m
	}
	a.mu.Unlock()

	m.Lock()
	return m.Unlock
}
