package services

import (
	"sync"

	"finanzas/internal/core"
)

// PartitionLocks hands out one mutex per month. The spreadsheet backend has
// no transactions, so every tracker mutating a partition must hold that
// month's lock across its whole read-modify-write sequence, and all trackers
// writing to the same store must share one PartitionLocks instance.
type PartitionLocks struct {
	mu    sync.Mutex
	locks map[core.MonthKey]*sync.Mutex
}

func NewPartitionLocks() *PartitionLocks {
	return &PartitionLocks{locks: make(map[core.MonthKey]*sync.Mutex)}
}

// Get returns the mutex serializing writes to one month, creating it on
// first use.
func (p *PartitionLocks) Get(key core.MonthKey) *sync.Mutex {
	p.mu.Lock()
	defer p.mu.Unlock()
	l, ok := p.locks[key]
	if !ok {
		l = &sync.Mutex{}
		p.locks[key] = l
	}
	return l
}
