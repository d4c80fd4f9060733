// Package monitoring holds the package-level diagnostic logger shared by the
// recorder, pointer source and trace store.
package monitoring

import "log"

// Logf is the package-level diagnostic logger. It defaults to log.Printf but may
// be replaced by SetLogger. Tests or production code can redirect or mute it.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// Quiet mutes Logf and returns a function that restores the previous logger.
//
//	defer monitoring.Quiet()()
func Quiet() (restore func()) {
	prev := Logf
	SetLogger(nil)
	return func() { Logf = prev }
}

// Prefixed returns a logger that tags every line with prefix. The returned
// function looks Logf up on each call, so later SetLogger calls still apply.
func Prefixed(prefix string) func(format string, v ...interface{}) {
	return func(format string, v ...interface{}) {
		Logf(prefix+": "+format, v...)
	}
}
