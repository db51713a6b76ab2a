package orchestrator

import "sync"

// instanceLocks serializes lifecycle operations per instance within this
// process. The running-execution row in the registry is the durable guard;
// this lock closes the window between checking it and inserting a new
// execution.
type instanceLocks struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func newInstanceLocks() *instanceLocks {
	return &instanceLocks{held: make(map[string]struct{})}
}

// TryLock acquires the lock for the instance without blocking. It returns
// false when another operation already holds it.
func (l *instanceLocks) TryLock(instanceID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.held[instanceID]; ok {
		return false
	}
	l.held[instanceID] = struct{}{}
	return true
}

func (l *instanceLocks) Unlock(instanceID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, instanceID)
}
