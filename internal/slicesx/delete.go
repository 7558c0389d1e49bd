// SPDX-License-Identifier: MIT

// Package slicesx holds small generic slice helpers shared across the
// supervision engine's bookkeeping (socket pairing lists, dependent-unit
// teardown lists).
package slicesx

import "golang.org/x/exp/slices"

// DeleteAndZeroFunc is like slices.DeleteFunc, but sets the remaining now
// unused elements to zero. This serves as a stop-gap measure until
// https://github.com/golang/go/issues/63393 finally trickles down as part
// of two Go releases.
func DeleteAndZeroFunc[S ~[]E, E any](s S, del func(E) bool) S {
	i := slices.IndexFunc(s, del)
	if i == -1 {
		return s
	}
	for j := i + 1; j < len(s); j++ {
		if v := s[j]; !del(v) {
			s[i] = v
			i++
		}
	}
	var zero E
	for j := i; j < len(s); j++ {
		s[j] = zero
	}
	return s[:i]
}
