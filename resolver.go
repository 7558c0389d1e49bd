// SPDX-License-Identifier: MIT

package unitd

import (
	"fmt"
	"strings"
)

// UnresolvedNameError is a configuration error: a dependency (or install)
// field named a unit that does not exist in the table (spec invariant 5).
type UnresolvedNameError struct {
	Unit, Reference string
}

func (e *UnresolvedNameError) Error() string {
	return fmt.Sprintf("unit %q references unknown unit %q", e.Unit, e.Reference)
}

// TooManySocketsError reports a service that paired with more than one
// socket unit, via some combination of implicit same-stem pairing and an
// explicit Sockets= list — left ambiguous in the original and resolved
// here as an error (spec §9 Open Question).
type TooManySocketsError struct {
	Service string
	Sockets []string
}

func (e *TooManySocketsError) Error() string {
	return fmt.Sprintf("service %q paired with %d sockets (at most one is supported): %s",
		e.Service, len(e.Sockets), strings.Join(e.Sockets, ", "))
}

// edge is a staged (from, to) pair collected while iterating the table, so
// the table itself isn't mutated mid-iteration (spec §4.2 step 3).
type edge struct{ from, to UnitId }

// Resolve runs the dependency resolution algorithm of spec §4.2 over every
// unit currently admitted to t: name -> UnitId translation, symmetric edge
// closure, install-block application, implicit socket/service pairing,
// deduplication, and cycle detection. It mutates the table's units in
// place and returns the first configuration error encountered, or a
// *CirclesFound if the resulting before/after graph is not a DAG.
func Resolve(t *Table) error {
	t.mu.Lock()
	pending := make(map[UnitId]pendingNames, len(t.pendingNames))
	for id, p := range t.pendingNames {
		pending[id] = p
	}
	units := make(map[UnitId]*Unit, len(t.units))
	for id, u := range t.units {
		units[id] = u
	}
	byName := t.byName
	t.mu.Unlock()

	resolveName := func(owner UnitId, name string) (UnitId, error) {
		id, ok := byName[name]
		if !ok {
			return UnitId{}, &UnresolvedNameError{Unit: owner.Name, Reference: name}
		}
		return id, nil
	}

	var wantedByEdges, requiredByEdges, beforeEdges, afterEdges []edge

	// Step 2: translate declared names, append to matching sets.
	for id, p := range pending {
		u := units[id]
		for _, name := range p.wants {
			target, err := resolveName(id, name)
			if err != nil {
				return err
			}
			u.Deps().addWants(target)
			wantedByEdges = append(wantedByEdges, edge{target, id})
		}
		for _, name := range p.requires {
			target, err := resolveName(id, name)
			if err != nil {
				return err
			}
			u.Deps().addRequires(target)
			requiredByEdges = append(requiredByEdges, edge{target, id})
		}
		for _, name := range p.before {
			target, err := resolveName(id, name)
			if err != nil {
				return err
			}
			u.Deps().addBefore(target)
			afterEdges = append(afterEdges, edge{target, id})
		}
		for _, name := range p.after {
			target, err := resolveName(id, name)
			if err != nil {
				return err
			}
			u.Deps().addAfter(target)
			beforeEdges = append(beforeEdges, edge{target, id})
		}
	}

	// Step 4: install.wanted_by/required_by also induce ordering edges.
	for id, u := range units {
		if u.install == nil {
			continue
		}
		for _, name := range u.install.WantedBy {
			target, err := resolveName(id, name)
			if err != nil {
				return err
			}
			u.Deps().addWants(target)
			wantedByEdges = append(wantedByEdges, edge{target, id})
			// A wanted_by B: A before B.
			u.Deps().addBefore(target)
			afterEdges = append(afterEdges, edge{target, id})
		}
		for _, name := range u.install.RequiredBy {
			target, err := resolveName(id, name)
			if err != nil {
				return err
			}
			u.Deps().addRequires(target)
			requiredByEdges = append(requiredByEdges, edge{target, id})
			u.Deps().addBefore(target)
			afterEdges = append(afterEdges, edge{target, id})
		}
	}

	// Step 3: apply staged symmetric edges.
	for _, e := range wantedByEdges {
		units[e.from].Deps().addWantedBy(e.to)
	}
	for _, e := range requiredByEdges {
		units[e.from].Deps().addRequiredBy(e.to)
	}
	for _, e := range beforeEdges {
		units[e.from].Deps().addBefore(e.to)
	}
	for _, e := range afterEdges {
		units[e.from].Deps().addAfter(e.to)
	}

	// Step 6: implicit socket/service pairing.
	if err := pairSocketsAndServices(units); err != nil {
		return err
	}

	// Step 7: cycle detection over the frozen before/after graph.
	if cycles := detectCycles(units); len(cycles) > 0 {
		return &CirclesFound{Cycles: cycles}
	}

	for id := range pending {
		delete(t.pendingNames, id)
	}
	for id, u := range units {
		u.install = nil
		_ = id
	}
	return nil
}

// pairSocketsAndServices implements spec §4.2 step 6: a socket and service
// sharing a stem gain "socket before service"/"service after socket"
// edges; a service may also name sockets explicitly via its Sockets
// config. Both mechanisms add to the same socket_ids list and are
// deduplicated by socket UnitId; if, after dedup, a service ends up paired
// with more than one distinct socket, that's a TooManySocketsError (spec
// §9 Open Question resolution).
func pairSocketsAndServices(units map[UnitId]*Unit) error {
	var sockets, services []*Unit
	for _, u := range units {
		switch u.Kind {
		case KindSocket:
			sockets = append(sockets, u)
		case KindService:
			services = append(services, u)
		}
	}

	for _, svc := range services {
		paired := map[UnitId]struct{}{}
		for _, sock := range sockets {
			matches := svc.Id.Name == sock.Id.Name
			for _, want := range svc.Service.Config.Sockets {
				if want == sock.Id.Name {
					matches = true
				}
			}
			if !matches {
				continue
			}
			if _, already := paired[sock.Id]; already {
				continue
			}
			paired[sock.Id] = struct{}{}
			svc.Service.socketIDs = append(svc.Service.socketIDs, sock.Id)
			sock.Socket.addService(svc.Id)
			svc.Deps().addAfter(sock.Id)
			sock.Deps().addBefore(svc.Id)
		}
		if len(paired) > 1 {
			names := make([]string, 0, len(paired))
			for id := range paired {
				names = append(names, id.Name)
			}
			return &TooManySocketsError{Service: svc.Id.Name, Sockets: names}
		}
	}
	return nil
}
