package runtime

import (
	"sort"
	"sync"
)

// NameDirectory maps connection ids to display names.
// A name is held by at most one connection at a time.
type NameDirectory struct {
	mu      sync.RWMutex
	names   map[string]string // connection -> name
	holders map[string]string // name -> connection
}

func NewNameDirectory() *NameDirectory {
	return &NameDirectory{
		names:   make(map[string]string),
		holders: make(map[string]string),
	}
}

// TryClaim associates name with connectionID unless another connection holds it.
// The check and the write happen under one lock, so two concurrent claims of
// the same name never both succeed.
// A connection that already holds a different name keeps it: the claim fails.
func (d *NameDirectory) TryClaim(connectionID, name string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if holder, taken := d.holders[name]; taken {
		return holder == connectionID
	}
	if _, ok := d.names[connectionID]; ok {
		return false
	}
	d.names[connectionID] = name
	d.holders[name] = connectionID
	return true
}

// Release frees the name held by connectionID, if any.
func (d *NameDirectory) Release(connectionID string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	name, ok := d.names[connectionID]
	if !ok {
		return
	}
	delete(d.names, connectionID)
	delete(d.holders, name)
}

func (d *NameDirectory) IsClaimed(connectionID string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.names[connectionID]
	return ok
}

func (d *NameDirectory) NameOf(connectionID string) (string, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	name, ok := d.names[connectionID]
	return name, ok
}

// Holder returns the connection currently holding name.
func (d *NameDirectory) Holder(name string) (string, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	connectionID, ok := d.holders[name]
	return connectionID, ok
}

// Members returns a sorted snapshot of every connection holding a name.
// The slice is owned by the caller and never changes after return.
func (d *NameDirectory) Members() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	members := make([]string, 0, len(d.names))
	for connectionID := range d.names {
		members = append(members, connectionID)
	}
	sort.Strings(members)
	return members
}

func (d *NameDirectory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.names)
}

func (d *NameDirectory) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.names = make(map[string]string)
	d.holders = make(map[string]string)
}
