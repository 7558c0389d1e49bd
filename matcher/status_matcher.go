// SPDX-License-Identifier: MIT

//go:build matchers
// +build matchers

package matcher

import (
	"fmt"

	"github.com/unitd-project/unitd"

	g "github.com/onsi/gomega"
	"github.com/onsi/gomega/types"
)

// HaveUnitStatus succeeds if ACTUAL is a *unitd.Unit (or *unitd.Status)
// whose current status kind matches want. Alternatively of a StatusKind,
// a GomegaMatcher can be given, such as Equal or a custom predicate.
func HaveUnitStatus(want interface{}) types.GomegaMatcher {
	var kindMatcher types.GomegaMatcher
	switch want := want.(type) {
	case unitd.StatusKind:
		kindMatcher = g.Equal(want)
	case types.GomegaMatcher:
		kindMatcher = want
	default:
		panic("want argument must be a unitd.StatusKind or GomegaMatcher")
	}
	return g.WithTransform(func(actual interface{}) (unitd.StatusKind, error) {
		switch v := actual.(type) {
		case *unitd.Unit:
			return v.Status().Get().Kind, nil
		case *unitd.Status:
			return v.Get().Kind, nil
		}
		return 0, fmt.Errorf("HaveUnitStatus expects a *unitd.Unit or *unitd.Status, but got %T", actual)
	}, kindMatcher)
}
