package report

import "sync"

// dateLocks hands out one mutex per date. Entries are dropped once nobody holds
// or waits on them, so the map does not grow with every day ever merged.
type dateLocks struct {
	mu    sync.Mutex
	locks map[string]*dateLock
}

type dateLock struct {
	mu   sync.Mutex
	refs int
}

func newDateLocks() *dateLocks {
	return &dateLocks{locks: make(map[string]*dateLock)}
}

// lock blocks until date is free and returns the matching unlock func.
func (d *dateLocks) lock(date string) func() {
	d.mu.Lock()
	l, ok := d.locks[date]
	if !ok {
		l = &dateLock{}
		d.locks[date] = l
	}
	l.refs++
	d.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		d.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(d.locks, date)
		}
		d.mu.Unlock()
	}
}

func (d *dateLocks) size() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.locks)
}
