// SPDX-License-Identifier: MIT

package unitd

import (
	"sync"

	"github.com/unitd-project/unitd/unitconf"
)

// Kind distinguishes the two unit variants. It is a type alias onto
// unitconf.Kind (rather than a distinct type) so that unitfile never needs
// to import this package to describe what it parsed.
type Kind = unitconf.Kind

const (
	KindService = unitconf.KindService
	KindSocket  = unitconf.KindSocket
)

// depSets holds the six dependency sets invariant 3 of the data model
// requires to stay duplicate-free, guarded by a single lock: all six are
// written together during resolution and read together during gating, so
// splitting them into per-set locks would buy nothing.
type depSets struct {
	mu         sync.RWMutex
	wants      map[UnitId]struct{}
	requires   map[UnitId]struct{}
	wantedBy   map[UnitId]struct{}
	requiredBy map[UnitId]struct{}
	before     map[UnitId]struct{}
	after      map[UnitId]struct{}
}

func newDepSets() *depSets {
	return &depSets{
		wants:      map[UnitId]struct{}{},
		requires:   map[UnitId]struct{}{},
		wantedBy:   map[UnitId]struct{}{},
		requiredBy: map[UnitId]struct{}{},
		before:     map[UnitId]struct{}{},
		after:      map[UnitId]struct{}{},
	}
}

func (d *depSets) addBefore(id UnitId)  { d.add(&d.before, id) }
func (d *depSets) addAfter(id UnitId)   { d.add(&d.after, id) }
func (d *depSets) addWants(id UnitId)   { d.add(&d.wants, id) }
func (d *depSets) addRequires(id UnitId){ d.add(&d.requires, id) }
func (d *depSets) addWantedBy(id UnitId)   { d.add(&d.wantedBy, id) }
func (d *depSets) addRequiredBy(id UnitId) { d.add(&d.requiredBy, id) }

func (d *depSets) add(set *map[UnitId]struct{}, id UnitId) {
	d.mu.Lock()
	defer d.mu.Unlock()
	(*set)[id] = struct{}{}
}

func (d *depSets) snapshot(set map[UnitId]struct{}) []UnitId {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]UnitId, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	return out
}

func (d *depSets) Before() []UnitId     { return d.snapshot(d.before) }
func (d *depSets) After() []UnitId      { return d.snapshot(d.after) }
func (d *depSets) Wants() []UnitId      { return d.snapshot(d.wants) }
func (d *depSets) Requires() []UnitId   { return d.snapshot(d.requires) }
func (d *depSets) WantedBy() []UnitId   { return d.snapshot(d.wantedBy) }
func (d *depSets) RequiredBy() []UnitId { return d.snapshot(d.requiredBy) }

// isRequires reports whether id is in the requires set, used by the gate
// check to distinguish a `requires` predecessor from a plain `after` one.
func (d *depSets) isRequires(id UnitId) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.requires[id]
	return ok
}

// Common holds the fields every unit carries regardless of kind (spec
// §3.2).
type Common struct {
	Id   UnitId
	Path string

	deps   *depSets
	status *Status

	// install holds the human-declared inverse dependencies used only
	// during resolution; it is nil after Resolve has consumed it.
	install *unitconf.InstallConfig
}

func newCommon(id UnitId, path string, install *unitconf.InstallConfig) Common {
	return Common{
		Id:      id,
		Path:    path,
		deps:    newDepSets(),
		status:  &Status{},
		install: install,
	}
}

// Status returns the unit's shared status cell.
func (c *Common) Status() *Status { return c.status }

// Deps returns the unit's dependency-set accessor.
func (c *Common) Deps() *depSets { return c.deps }

// Unit is a tagged variant: Service or Socket, carrying the fields common
// to both plus its kind-specific payload.
type Unit struct {
	Kind Kind
	Common

	Service *ServicePayload // set iff Kind == KindService
	Socket  *SocketPayload  // set iff Kind == KindSocket
}
