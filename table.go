// SPDX-License-Identifier: MIT

package unitd

import (
	"fmt"
	"sync"

	"github.com/unitd-project/unitd/unitconf"
)

// Table is the mapping UnitId -> *Unit, with no duplicates (spec §4.1). It
// also keeps an auxiliary name -> UnitId index, rebuilt whenever units are
// admitted. Scheduler and start-path goroutines take the read lock;
// structural mutation only happens during admission, before the scheduler
// starts (spec §5: "no back-pointers from units to the table are stored").
type Table struct {
	mu           sync.RWMutex
	alloc        idAllocator
	units        map[UnitId]*Unit
	byName       map[string]UnitId
	pendingNames map[UnitId]pendingNames
}

// NewTable returns an empty unit table.
func NewTable() *Table {
	return &Table{
		units:        map[UnitId]*Unit{},
		byName:       map[string]UnitId{},
		pendingNames: map[UnitId]pendingNames{},
	}
}

// AddService admits a parsed service unit, allocating a fresh UnitId.
func (t *Table) AddService(cfg unitconf.UnitConfig, svc unitconf.ServiceConfig) (UnitId, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, exists := t.byName[cfg.Name]; exists {
		return UnitId{}, fmt.Errorf("duplicate unit name %q", cfg.Name)
	}
	id := t.alloc.allocate(cfg.Name)
	u := &Unit{
		Kind:   KindService,
		Common: newCommon(id, cfg.Path, cfg.Install),
		Service: newServicePayload(svc),
	}
	t.units[id] = u
	t.byName[cfg.Name] = id
	t.pendingNames[id] = pendingNames{
		wants: cfg.Wants, requires: cfg.Requires, before: cfg.Before, after: cfg.After,
	}
	return id, nil
}

// AddSocket admits a parsed socket unit, allocating a fresh UnitId.
func (t *Table) AddSocket(cfg unitconf.UnitConfig, sock unitconf.SocketConfig) (UnitId, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, exists := t.byName[cfg.Name]; exists {
		return UnitId{}, fmt.Errorf("duplicate unit name %q", cfg.Name)
	}
	id := t.alloc.allocate(cfg.Name)
	u := &Unit{
		Kind:   KindSocket,
		Common: newCommon(id, cfg.Path, cfg.Install),
		Socket: newSocketPayload(sock),
	}
	t.units[id] = u
	t.byName[cfg.Name] = id
	t.pendingNames[id] = pendingNames{
		wants: cfg.Wants, requires: cfg.Requires, before: cfg.Before, after: cfg.After,
	}
	return id, nil
}

// Get returns the unit with the given id, or nil if absent.
func (t *Table) Get(id UnitId) *Unit {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.units[id]
}

// Lookup translates a unit name to its id.
func (t *Table) Lookup(name string) (UnitId, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	id, ok := t.byName[name]
	return id, ok
}

// All returns every unit currently admitted, in no particular order.
func (t *Table) All() []*Unit {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]*Unit, 0, len(t.units))
	for _, u := range t.units {
		out = append(out, u)
	}
	return out
}

// pendingNames holds the as-parsed (string) dependency names for a unit
// until Resolve translates them into UnitId sets and discards this
// bookkeeping.
type pendingNames struct {
	wants, requires, before, after []string
}
