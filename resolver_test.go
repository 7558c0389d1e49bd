// SPDX-License-Identifier: MIT

package unitd

import (
	"errors"
	"testing"

	"github.com/unitd-project/unitd/unitconf"
)

func addSvc(t *testing.T, table *Table, name string, wants, requires, before, after []string) UnitId {
	t.Helper()
	id, err := table.AddService(unitconf.UnitConfig{
		Name: name, Path: name + ".service",
		Wants: wants, Requires: requires, Before: before, After: after,
	}, unitconf.ServiceConfig{Exec: unitconf.Commandline{Path: "/bin/true"}})
	if err != nil {
		t.Fatalf("AddService(%s): %v", name, err)
	}
	return id
}

func addSock(t *testing.T, table *Table, name string) UnitId {
	t.Helper()
	id, err := table.AddSocket(unitconf.UnitConfig{Name: name, Path: name + ".socket"}, unitconf.SocketConfig{
		Kind: unitconf.SocketUnix, Path: "/run/" + name + ".sock",
	})
	if err != nil {
		t.Fatalf("AddSocket(%s): %v", name, err)
	}
	return id
}

// TestResolveEdgesAreSymmetric exercises spec §8 property 1: every edge
// the resolver creates has a matching reverse edge on the other endpoint.
func TestResolveEdgesAreSymmetric(t *testing.T) {
	table := NewTable()
	a := addSvc(t, table, "a", nil, []string{"b"}, nil, nil)
	b := addSvc(t, table, "b", nil, nil, nil, nil)

	if err := Resolve(table); err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	ua, ub := table.Get(a), table.Get(b)
	if !containsID(ua.Deps().Requires(), b) {
		t.Error("a.Requires() should contain b")
	}
	if !containsID(ub.Deps().RequiredBy(), a) {
		t.Error("b.RequiredBy() should contain a")
	}
	// requires implies ordering: a after b, b before a.
	if !containsID(ua.Deps().After(), b) {
		t.Error("a.After() should contain b (requires implies ordering)")
	}
	if !containsID(ub.Deps().Before(), a) {
		t.Error("b.Before() should contain a")
	}
}

func TestResolveUnresolvedName(t *testing.T) {
	table := NewTable()
	addSvc(t, table, "a", nil, []string{"ghost"}, nil, nil)

	err := Resolve(table)
	var unresolved *UnresolvedNameError
	if !errors.As(err, &unresolved) {
		t.Fatalf("Resolve err = %v, want *UnresolvedNameError", err)
	}
	if unresolved.Reference != "ghost" {
		t.Errorf("Reference = %q, want %q", unresolved.Reference, "ghost")
	}
}

func TestResolveDetectsCycle(t *testing.T) {
	table := NewTable()
	addSvc(t, table, "a", nil, nil, nil, []string{"b"})
	addSvc(t, table, "b", nil, nil, nil, []string{"a"})

	err := Resolve(table)
	var circles *CirclesFound
	if !errors.As(err, &circles) {
		t.Fatalf("Resolve err = %v, want *CirclesFound", err)
	}
	if len(circles.Cycles) == 0 {
		t.Error("expected at least one reported cycle")
	}
}

func TestResolveNoFalseCycleOnDiamond(t *testing.T) {
	// a after {b, c}; b, c after d: a diamond, not a cycle.
	table := NewTable()
	addSvc(t, table, "d", nil, nil, nil, nil)
	addSvc(t, table, "b", nil, nil, nil, []string{"d"})
	addSvc(t, table, "c", nil, nil, nil, []string{"d"})
	addSvc(t, table, "a", nil, nil, nil, []string{"b", "c"})

	if err := Resolve(table); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
}

func TestResolveSocketServicePairingByStem(t *testing.T) {
	table := NewTable()
	addSock(t, table, "echo")
	svc := addSvc(t, table, "echo", nil, nil, nil, nil)

	if err := Resolve(table); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	u := table.Get(svc)
	if len(u.Service.socketIDs) != 1 {
		t.Fatalf("socketIDs = %v, want exactly 1 paired socket", u.Service.socketIDs)
	}
}

func TestResolveTooManySockets(t *testing.T) {
	table := NewTable()
	addSock(t, table, "echo")
	extra, _ := table.AddSocket(unitconf.UnitConfig{Name: "extra", Path: "extra.socket"}, unitconf.SocketConfig{
		Kind: unitconf.SocketUnix, Path: "/run/extra.sock",
	})
	_ = extra
	table.AddService(unitconf.UnitConfig{Name: "echo", Path: "echo.service"}, unitconf.ServiceConfig{
		Exec: unitconf.Commandline{Path: "/bin/true"}, Sockets: []string{"extra"},
	})

	err := Resolve(table)
	var tooMany *TooManySocketsError
	if !errors.As(err, &tooMany) {
		t.Fatalf("Resolve err = %v, want *TooManySocketsError", err)
	}
}

func TestResolveIsIdempotentOnNoDuplicates(t *testing.T) {
	// spec §8 property 2: resolving twice over the same declared edges
	// must not accumulate duplicate entries (sets, not slices, enforce this
	// structurally; this test guards the public-facing snapshot count).
	table := NewTable()
	addSvc(t, table, "a", nil, []string{"b"}, nil, nil)
	addSvc(t, table, "b", nil, nil, nil, nil)
	if err := Resolve(table); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	aID, ok := table.Lookup("a")
	if !ok {
		t.Fatal("no unit named \"a\"")
	}
	u := table.Get(aID)
	if got := len(u.Deps().Requires()); got != 1 {
		t.Errorf("Requires() has %d entries, want 1", got)
	}
}

func containsID(ids []UnitId, want UnitId) bool {
	for _, id := range ids {
		if id.Equal(want) {
			return true
		}
	}
	return false
}
