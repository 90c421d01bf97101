// Package testutil holds helpers shared by the package tests: thread-safe
// log capture, a deadlock-bounded concurrent runner and temporary config
// files.
package testutil
