// SPDX-License-Identifier: MIT

// Package log is a thin wrapper around a swappable logging backend,
// exposing free functions the way github.com/thediveo/lxkns/log does for
// the teacher. The backend defaults to logrus's standard logger.
//
// Per the post-fork child invariant (spec §4.4, §5 "fork safety"), this
// package must never be imported from the post-fork child code path: any
// logger call there could deadlock on a lock inherited from a dead thread.
package log

import "github.com/sirupsen/logrus"

var std = logrus.StandardLogger()

// SetOutput is mostly useful for tests that want to capture log output.
func SetOutput(l *logrus.Logger) { std = l }

func Debugf(format string, args ...any) { std.Debugf(format, args...) }
func Infof(format string, args ...any)  { std.Infof(format, args...) }
func Warnf(format string, args ...any)  { std.Warnf(format, args...) }
func Errorf(format string, args ...any) { std.Errorf(format, args...) }
